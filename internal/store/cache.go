package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/teresa-solution/tenant-provisioning-service/internal/model"
)

// RedisClient is the subset of the redis client used by the tenant cache
type RedisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	SetEx(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Close() error
}

const (
	tombstone    = "-"
	tombstoneTTL = 30 * time.Second
)

// TenantCache is a read-through cache of active tenants keyed by id.
// Cache errors never fail a directory call; they only cost a database read.
//
// Invalidate leaves a short-lived tombstone and Set never overwrites an
// existing key, so a read that loaded a row before a write committed cannot
// cache that row after the write's invalidation.
type TenantCache struct {
	client RedisClient
	ttl    time.Duration
	logger zerolog.Logger
}

// NewTenantCache creates a tenant cache. A zero ttl selects one hour.
func NewTenantCache(client RedisClient, ttl time.Duration, logger zerolog.Logger) *TenantCache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &TenantCache{
		client: client,
		ttl:    ttl,
		logger: logger.With().Str("component", "tenant_cache").Logger(),
	}
}

func tenantKey(id int64) string {
	return fmt.Sprintf("tenant:%d", id)
}

// Get returns the cached tenant, if any
func (c *TenantCache) Get(ctx context.Context, id int64) (*model.Tenant, bool) {
	if c == nil {
		return nil, false
	}
	cached, err := c.client.Get(ctx, tenantKey(id)).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn().Err(err).Int64("tenant_id", id).Msg("tenant cache read failed")
		}
		return nil, false
	}
	if cached == tombstone {
		return nil, false
	}
	tenant := &model.Tenant{}
	if err := json.Unmarshal([]byte(cached), tenant); err != nil {
		c.logger.Warn().Err(err).Int64("tenant_id", id).Msg("discarding malformed cache entry")
		return nil, false
	}
	return tenant, true
}

// Set stores the tenant unless the key holds an entry or a tombstone
func (c *TenantCache) Set(ctx context.Context, tenant *model.Tenant) {
	if c == nil || tenant == nil {
		return
	}
	data, err := json.Marshal(tenant)
	if err != nil {
		return
	}
	if err := c.client.SetNX(ctx, tenantKey(tenant.ID), data, c.ttl).Err(); err != nil {
		c.logger.Warn().Err(err).Int64("tenant_id", tenant.ID).Msg("tenant cache write failed")
	}
}

// Invalidate replaces the cached tenant with a tombstone
func (c *TenantCache) Invalidate(ctx context.Context, id int64) {
	if c == nil {
		return
	}
	if err := c.client.SetEx(ctx, tenantKey(id), tombstone, tombstoneTTL).Err(); err != nil {
		c.logger.Warn().Err(err).Int64("tenant_id", id).Msg("tenant cache invalidation failed")
	}
}

// Close closes the underlying client
func (c *TenantCache) Close() error {
	if c == nil {
		return nil
	}
	return c.client.Close()
}
