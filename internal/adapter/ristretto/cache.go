// Package ristretto implements the cache port with an in-process
// dgraph-io/ristretto cache. It backs the project policy cache: every
// decision submission reads the project's screening policy, and this layer
// absorbs those reads between phase advancements.
package ristretto

import (
	"context"
	"time"

	"github.com/dgraph-io/ristretto/v2"
)

// Cache is a byte-cost bounded cache keyed by string.
type Cache struct {
	inner *ristretto.Cache[string, []byte]
}

// New creates the cache. maxCostBytes bounds the total size of cached
// values; cost per entry is the value's length.
func New(maxCostBytes int64) (*Cache, error) {
	inner, err := ristretto.NewCache(&ristretto.Config[string, []byte]{
		NumCounters: maxCostBytes / 100 * 10, // ~10x expected items
		MaxCost:     maxCostBytes,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &Cache{inner: inner}, nil
}

// Get retrieves a value. A miss is (nil, false, nil), never an error.
func (c *Cache) Get(_ context.Context, key string) (data []byte, ok bool, err error) {
	val, found := c.inner.Get(key)
	if !found {
		return nil, false, nil
	}
	return val, true, nil
}

// Set stores a value with a TTL. Ristretto applies writes through an async
// buffer; Wait makes the entry visible before returning, so a policy read
// right after a fill cannot miss and refill.
func (c *Cache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	c.inner.SetWithTTL(key, value, int64(len(value)), ttl)
	c.inner.Wait()
	return nil
}

// Delete removes a value. Wait for the same reason as Set: invalidation
// after a phase advance must not leave a stale policy readable.
func (c *Cache) Delete(_ context.Context, key string) error {
	c.inner.Del(key)
	c.inner.Wait()
	return nil
}

// Close shuts down the cache and releases resources.
func (c *Cache) Close() {
	c.inner.Close()
}
