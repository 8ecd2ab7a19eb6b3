// Package cache provides the per-user discovery snapshot cache. A snapshot
// lives for a bounded TTL so a dashboard reload re-renders the wizard without
// re-running the platform fan-out.
package cache

import (
	"context"
	"time"

	"github.com/jellydator/ttlcache/v3"

	"go.pilab.hu/adlink/domain"
)

// MemoryResourceCache implements domain.ResourceCache using ttlcache.
type MemoryResourceCache struct {
	cache *ttlcache.Cache[string, *domain.ResourceSet]
}

// NewMemoryResourceCache creates an in-memory resource cache with automatic
// expiry.
//
//nolint:ireturn
func NewMemoryResourceCache(ttl time.Duration) domain.ResourceCache {
	c := ttlcache.New(
		ttlcache.WithTTL[string, *domain.ResourceSet](ttl),
		ttlcache.WithDisableTouchOnHit[string, *domain.ResourceSet](),
	)

	// Start the expiry loop.
	go c.Start()

	return &MemoryResourceCache{cache: c}
}

// Get implements domain.ResourceCache.Get.
func (m *MemoryResourceCache) Get(_ context.Context, userID string) (*domain.ResourceSet, bool) {
	item := m.cache.Get(userID)
	if item == nil {
		return nil, false
	}
	return item.Value(), true
}

// Set implements domain.ResourceCache.Set.
func (m *MemoryResourceCache) Set(_ context.Context, userID string, set *domain.ResourceSet) error {
	m.cache.Set(userID, set, ttlcache.DefaultTTL)
	return nil
}

// Invalidate implements domain.ResourceCache.Invalidate.
func (m *MemoryResourceCache) Invalidate(_ context.Context, userID string) error {
	m.cache.Delete(userID)
	return nil
}
