package database

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/Zubair-mohamed/myclinic-backend/internal/domain/entities"
	"github.com/Zubair-mohamed/myclinic-backend/internal/domain/providers"
	"github.com/Zubair-mohamed/myclinic-backend/internal/domain/repositories"
)

// CachedUserAdapter wraps a UserRepository with read caching. Doctor lookups
// are on the hot path of every slot computation and reminder pass, while the
// directory itself changes rarely.
type CachedUserAdapter struct {
	adapter repositories.UserRepository
	cache   providers.CacheProvider
}

// NewCachedUserAdapter creates a new cached user adapter
func NewCachedUserAdapter(adapter repositories.UserRepository, cache providers.CacheProvider) repositories.UserRepository {
	return &CachedUserAdapter{
		adapter: adapter,
		cache:   cache,
	}
}

// Cache TTLs (in seconds)
const (
	userByIDTTL      = 60
	doctorsByListTTL = 30
)

func userCacheKey(id string) string {
	return fmt.Sprintf("user:%s", id)
}

func doctorsBySpecialtyCacheKey(hospitalID, specialtyID string) string {
	return fmt.Sprintf("doctors:%s:%s", hospitalID, specialtyID)
}

// GetByID retrieves a user by ID with caching
func (a *CachedUserAdapter) GetByID(ctx context.Context, id string) (*entities.User, error) {
	cacheKey := userCacheKey(id)

	if cached, err := a.cache.Get(ctx, cacheKey); err == nil {
		var user entities.User
		if err := json.Unmarshal(cached, &user); err == nil {
			return &user, nil
		}
		log.Printf("Failed to unmarshal cached user %s: %v", id, err)
	}

	user, err := a.adapter.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	// Update cache asynchronously to avoid blocking the response
	go func() {
		bgCtx := context.Background()
		if data, err := json.Marshal(user); err == nil {
			if err := a.cache.Set(bgCtx, cacheKey, data, userByIDTTL); err != nil {
				log.Printf("Failed to cache user %s: %v", id, err)
			}
		}
	}()

	return user, nil
}

// ListDoctorsBySpecialty retrieves matching doctors with caching
func (a *CachedUserAdapter) ListDoctorsBySpecialty(ctx context.Context, hospitalID, specialtyID string) ([]*entities.User, error) {
	cacheKey := doctorsBySpecialtyCacheKey(hospitalID, specialtyID)

	if cached, err := a.cache.Get(ctx, cacheKey); err == nil {
		var doctors []*entities.User
		if err := json.Unmarshal(cached, &doctors); err == nil {
			return doctors, nil
		}
		log.Printf("Failed to unmarshal cached doctor list %s: %v", cacheKey, err)
	}

	doctors, err := a.adapter.ListDoctorsBySpecialty(ctx, hospitalID, specialtyID)
	if err != nil {
		return nil, err
	}

	go func() {
		bgCtx := context.Background()
		if data, err := json.Marshal(doctors); err == nil {
			if err := a.cache.Set(bgCtx, cacheKey, data, doctorsByListTTL); err != nil {
				log.Printf("Failed to cache doctor list %s: %v", cacheKey, err)
			}
		}
	}()

	return doctors, nil
}
