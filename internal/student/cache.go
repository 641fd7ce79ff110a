package student

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache keeps list and count responses warm in Redis so reads survive
// short database outages. A nil Cache is a no-op.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache wraps a redis client with the configured TTL.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	if client == nil {
		return nil
	}
	return &Cache{client: client, ttl: ttl}
}

func (c *Cache) getJSON(ctx context.Context, key string, v any) bool {
	if c == nil {
		return false
	}
	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		return false
	}
	return json.Unmarshal(raw, v) == nil
}

func (c *Cache) setJSON(ctx context.Context, key string, v any) {
	if c == nil {
		return
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return
	}
	c.client.Set(ctx, key, raw, c.ttl)
}

// Invalidate drops cached reads for a record kind after a write.
func (c *Cache) Invalidate(ctx context.Context, kind string) {
	if c == nil {
		return
	}
	c.client.Del(ctx, kind+":list", kind+":count")
}

// GetList retrieves a cached listing, reporting whether it was found.
func (c *Cache) GetList(ctx context.Context, kind string, v any) bool {
	return c.getJSON(ctx, kind+":list", v)
}

// SetList stores a listing.
func (c *Cache) SetList(ctx context.Context, kind string, v any) {
	c.setJSON(ctx, kind+":list", v)
}

// GetCount retrieves a cached count.
func (c *Cache) GetCount(ctx context.Context, kind string) (int, bool) {
	var n int
	ok := c.getJSON(ctx, kind+":count", &n)
	return n, ok
}

// SetCount stores a count.
func (c *Cache) SetCount(ctx context.Context, kind string, n int) {
	c.setJSON(ctx, kind+":count", n)
}
