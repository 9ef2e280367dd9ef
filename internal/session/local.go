package session

import (
	"context"
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto/v2"
)

// LocalCache is the in-process session backend, built on ristretto — the Go
// analogue of the original Rust implementation's moka cache. Ristretto only
// exposes a single TTL per entry, so the hard ttl bound and the idle tti
// bound are composed explicitly: each entry's value is its creation time,
// and every successful Contains both checks the hard bound against that
// timestamp and refreshes the entry's physical TTL to tti, so an idle entry
// is swept by ristretto itself once tti elapses.
type LocalCache struct {
	cache *ristretto.Cache[uint32, int64]
	ttl   time.Duration
	tti   time.Duration
	now   func() time.Time
}

// NewLocalCache builds a LocalCache sized for the given initial/max
// capacity, evicting entries after ttl (hard bound) or tti (idle bound),
// whichever comes first.
func NewLocalCache(initialCapacity int, maxCapacity int64, ttl, tti time.Duration) (*LocalCache, error) {
	numCounters := int64(initialCapacity) * 10
	if numCounters < 1000 {
		numCounters = 1000
	}
	cache, err := ristretto.NewCache(&ristretto.Config[uint32, int64]{
		NumCounters: numCounters,
		MaxCost:     maxCapacity,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("building local session cache: %w", err)
	}
	return &LocalCache{cache: cache, ttl: ttl, tti: tti, now: time.Now}, nil
}

// Contains implements Cache.
func (c *LocalCache) Contains(_ context.Context, circuitID uint32) bool {
	createdAt, found := c.cache.Get(circuitID)
	if !found {
		return false
	}
	if c.now().Sub(time.Unix(createdAt, 0)) > c.ttl {
		c.cache.Del(circuitID)
		return false
	}
	// Idle access: refresh the physical eviction clock without touching the
	// hard ttl bound we re-derive from createdAt on every lookup.
	c.cache.SetWithTTL(circuitID, createdAt, 1, c.tti)
	return true
}

// Set implements Cache.
func (c *LocalCache) Set(_ context.Context, circuitID uint32) {
	c.cache.SetWithTTL(circuitID, c.now().Unix(), 1, c.tti)
	c.cache.Wait()
}

// Close implements Cache.
func (c *LocalCache) Close() error {
	c.cache.Close()
	return nil
}
