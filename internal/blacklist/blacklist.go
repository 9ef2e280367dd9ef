// Package blacklist implements the one-shot admission set that prevents a
// consumed proof-of-work challenge from being replayed.
//
// The design is lifted directly from the teacher service's own replay guard
// in internal/pow/service.go (a sync.Map of in-flight challenges swept by a
// background ticker), generalized from variable-length challenge strings to
// the fixed 12-byte PoW challenge token.
package blacklist

import (
	"sync"
	"time"
)

// Blacklist is a concurrent, TTL-evicted set of 12-byte challenge tokens.
type Blacklist struct {
	entries sync.Map // map[[12]byte]time.Time
	ttl     time.Duration
	stop    chan struct{}
	once    sync.Once
}

// New creates a blacklist with the given TTL and starts its background
// sweep goroutine. Call Close to stop it.
func New(ttl time.Duration) *Blacklist {
	b := &Blacklist{
		ttl:  ttl,
		stop: make(chan struct{}),
	}
	go b.sweep()
	return b
}

// TryInsert atomically claims key. It returns true iff key was absent and
// is now owned by this call. sync.Map.LoadOrStore is the primitive that
// gives the at-most-one-winner guarantee required here, regardless of how
// many goroutines race on the same key.
func (b *Blacklist) TryInsert(key [12]byte) bool {
	_, loaded := b.entries.LoadOrStore(key, time.Now())
	return !loaded
}

// Close stops the background sweep. Safe to call once.
func (b *Blacklist) Close() {
	b.once.Do(func() { close(b.stop) })
}

func (b *Blacklist) sweep() {
	interval := b.ttl / 2
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case now := <-ticker.C:
			b.entries.Range(func(key, value any) bool {
				insertedAt, ok := value.(time.Time)
				if !ok || now.Sub(insertedAt) > b.ttl {
					b.entries.Delete(key)
				}
				return true
			})
		case <-b.stop:
			return
		}
	}
}
