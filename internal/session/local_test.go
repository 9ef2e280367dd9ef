package session

import (
	"context"
	"testing"
	"time"
)

func TestLocalCacheSetThenContains(t *testing.T) {
	c, err := NewLocalCache(16, 1000, time.Minute, time.Minute)
	if err != nil {
		t.Fatalf("NewLocalCache failed: %v", err)
	}
	defer c.Close()

	ctx := context.Background()
	if c.Contains(ctx, 1) {
		t.Fatalf("expected an unset circuit id to be absent")
	}

	c.Set(ctx, 1)
	if !c.Contains(ctx, 1) {
		t.Fatalf("expected a set circuit id to be present")
	}
}

func TestLocalCacheHardTTLExpires(t *testing.T) {
	// createdAt is tracked at one-second resolution (time.Unix seconds), so
	// the test sleeps for twice the ttl to stay clear of truncation noise.
	c, err := NewLocalCache(16, 1000, time.Second, time.Minute)
	if err != nil {
		t.Fatalf("NewLocalCache failed: %v", err)
	}
	defer c.Close()

	ctx := context.Background()
	c.Set(ctx, 1)
	if !c.Contains(ctx, 1) {
		t.Fatalf("expected a freshly set circuit id to be present")
	}

	time.Sleep(2 * time.Second)

	if c.Contains(ctx, 1) {
		t.Fatalf("expected the hard ttl bound to evict the entry even though idle accesses kept refreshing it")
	}
}
