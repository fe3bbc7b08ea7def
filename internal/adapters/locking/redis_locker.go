package locking

import (
	"context"
	"fmt"
	"time"

	"github.com/Zubair-mohamed/myclinic-backend/internal/domain/providers"
	redisclient "github.com/Zubair-mohamed/myclinic-backend/internal/infrastructure/clients/redis"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the lock key only when it still holds our token, so
// a pass that outlived its TTL cannot release a lock another pass acquired.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end
`)

// RedisLocker implements the Locker interface using Redis SET NX
type RedisLocker struct {
	client *redisclient.Client
}

// NewRedisLocker creates a new Redis-based locker
func NewRedisLocker(client *redisclient.Client) providers.Locker {
	return &RedisLocker{client: client}
}

// Acquire attempts to take the lock. It returns the token needed to release
// it and whether the lock was acquired.
func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	token := uuid.New().String()

	acquired, err := l.client.Client().SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return "", false, fmt.Errorf("failed to acquire lock %s: %w", key, err)
	}
	if !acquired {
		return "", false, nil
	}

	return token, true, nil
}

// Release releases the lock if the token still owns it
func (l *RedisLocker) Release(ctx context.Context, key, token string) error {
	if err := releaseScript.Run(ctx, l.client.Client(), []string{key}, token).Err(); err != nil && err != redis.Nil {
		return fmt.Errorf("failed to release lock %s: %w", key, err)
	}
	return nil
}
