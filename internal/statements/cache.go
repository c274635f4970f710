package statements

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// Cache stores derived statements in redis. Keys embed the replay
// fingerprint, so a cache hit is always consistent with the current log;
// posting never needs to invalidate anything. A nil client disables caching.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	group  singleflight.Group
}

func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &Cache{client: client, ttl: ttl}
}

func (c *Cache) key(kind, companyID, fingerprint, params string) string {
	return fmt.Sprintf("stmt:%s:%s:%s:%s", kind, companyID, fingerprint, params)
}

// fetch returns the cached statement for the key, or computes it via loader
// and stores the result. Concurrent requests for the same key share one
// build. Redis failures fall through to the loader.
func (c *Cache) fetch(ctx context.Context, key string, loader func() (*Statement, error)) (*Statement, error) {
	if c == nil || c.client == nil {
		return loader()
	}
	resultChan := c.group.DoChan(key, func() (interface{}, error) {
		if raw, err := c.client.Get(ctx, key).Bytes(); err == nil {
			var st Statement
			if json.Unmarshal(raw, &st) == nil {
				return &st, nil
			}
		}
		st, err := loader()
		if err != nil {
			return nil, err
		}
		if raw, err := json.Marshal(st); err == nil {
			c.client.Set(ctx, key, raw, c.ttl)
		}
		return st, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-resultChan:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Statement), nil
	}
}
