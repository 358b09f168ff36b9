package cache

import (
	"context"
	"time"

	"github.com/genaicore/ragforge/platform/adapters"
)

// Cache is a thin, tenant-isolation-enforcing wrapper over adapters.KvAdapter.
// Every method takes tenantID explicitly and routes through Key/Prefix so
// the isolation boundary can never be bypassed by a caller constructing
// its own key string.
type Cache struct {
	kv adapters.KvAdapter
}

// New wraps kv as a tenant-isolated cache.
func New(kv adapters.KvAdapter) *Cache {
	return &Cache{kv: kv}
}

// Get reads a cached artifact for tenantID, returning ok=false on miss.
func (c *Cache) Get(ctx context.Context, tenantID, key string) (string, bool, error) {
	return c.kv.Get(ctx, Key(tenantID, key))
}

// Set stores a cached artifact for tenantID with the given TTL.
func (c *Cache) Set(ctx context.Context, tenantID, key, value string, ttl time.Duration) error {
	return c.kv.Set(ctx, Key(tenantID, key), value, ttl)
}

// ClearTenant enumerates and deletes every key under tenantID's prefix
// (§4.7 clear_tenant).
func (c *Cache) ClearTenant(ctx context.Context, tenantID string) (int, error) {
	keys, err := c.kv.ScanPrefix(ctx, Prefix(tenantID))
	if err != nil {
		return 0, err
	}
	for _, k := range keys {
		if err := c.kv.Del(ctx, k); err != nil {
			return 0, err
		}
	}
	return len(keys), nil
}
