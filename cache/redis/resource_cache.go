package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"go.pilab.hu/adlink/domain"
)

// ResourceCache implements domain.ResourceCache backed by Redis, for
// deployments where wizard requests can land on any replica.
type ResourceCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewResourceCache creates a Redis-backed resource cache. prefix namespaces
// the keys (e.g. "adlink").
func NewResourceCache(client *redis.Client, prefix string, ttl time.Duration) *ResourceCache {
	return &ResourceCache{client: client, prefix: prefix, ttl: ttl}
}

func (r *ResourceCache) key(userID string) string {
	return fmt.Sprintf("%s:resources:%s", r.prefix, userID)
}

// Get implements domain.ResourceCache.Get. A decode failure drops the entry
// and reports a miss rather than serving a corrupt snapshot.
func (r *ResourceCache) Get(ctx context.Context, userID string) (*domain.ResourceSet, bool) {
	payload, err := r.client.Get(ctx, r.key(userID)).Bytes()
	if err != nil {
		return nil, false
	}
	var set domain.ResourceSet
	if err := json.Unmarshal(payload, &set); err != nil {
		_ = r.client.Del(ctx, r.key(userID)).Err()
		return nil, false
	}
	return &set, true
}

// Set implements domain.ResourceCache.Set.
func (r *ResourceCache) Set(ctx context.Context, userID string, set *domain.ResourceSet) error {
	payload, err := json.Marshal(set)
	if err != nil {
		return fmt.Errorf("failed to marshal resource set: %w", err)
	}
	if err := r.client.Set(ctx, r.key(userID), payload, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set resource set in Redis: %w", err)
	}
	return nil
}

// Invalidate implements domain.ResourceCache.Invalidate.
func (r *ResourceCache) Invalidate(ctx context.Context, userID string) error {
	err := r.client.Del(ctx, r.key(userID)).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("failed to delete resource set from Redis: %w", err)
	}
	return nil
}
