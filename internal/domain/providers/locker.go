package providers

import (
	"context"
	"time"
)

// Locker is a single-flight lock used to keep the reminder scheduler from
// running overlapping passes (periodic tick vs. manual trigger).
type Locker interface {
	// Acquire takes the named lock for at most ttl. It returns a release
	// token and false if another holder currently owns the lock.
	Acquire(ctx context.Context, key string, ttl time.Duration) (token string, acquired bool, err error)

	// Release frees the lock if token still owns it
	Release(ctx context.Context, key, token string) error
}
