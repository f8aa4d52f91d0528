package intents

import (
	"context"
	"sync"
	"time"
)

// Lease is a short-lived credential (for example an upload token) obtained
// from a collaborator service.
type Lease struct {
	Token     string
	ExpiresAt time.Time
}

// Valid reports whether the lease is still usable at now, keeping skew in
// reserve so a lease is never handed out moments before it expires.
func (l *Lease) Valid(now time.Time, skew time.Duration) bool {
	if l == nil || l.Token == "" {
		return false
	}
	return now.Add(skew).Before(l.ExpiresAt)
}

// LeaseFetcher obtains a fresh lease for a key.
type LeaseFetcher func(ctx context.Context, key string) (*Lease, error)

// LeaseCache caches leases per key with an explicit expiry check before
// reuse. Concurrent callers that find no valid lease share one in-flight
// refresh instead of each fetching their own.
type LeaseCache struct {
	mu       sync.Mutex
	leases   map[string]*Lease
	inFlight map[string]chan struct{}
	skew     time.Duration
	now      func() time.Time
}

// NewLeaseCache creates a lease cache. skew is subtracted from each lease's
// expiry when deciding whether it can be reused.
func NewLeaseCache(skew time.Duration) *LeaseCache {
	return &LeaseCache{
		leases:   make(map[string]*Lease),
		inFlight: make(map[string]chan struct{}),
		skew:     skew,
		now:      time.Now,
	}
}

// WithClock overrides the cache's time source.
func (c *LeaseCache) WithClock(now func() time.Time) *LeaseCache {
	c.now = now
	return c
}

// Get returns a valid lease for key, calling fetch when none is cached.
func (c *LeaseCache) Get(ctx context.Context, key string, fetch LeaseFetcher) (*Lease, error) {
	for {
		c.mu.Lock()
		if lease, ok := c.leases[key]; ok {
			if lease.Valid(c.now(), c.skew) {
				c.mu.Unlock()
				return lease, nil
			}
			delete(c.leases, key)
		}

		if done, ok := c.inFlight[key]; ok {
			c.mu.Unlock()
			select {
			case <-done:
				// refresh finished (or failed); look again
				continue
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		done := make(chan struct{})
		c.inFlight[key] = done
		c.mu.Unlock()

		lease, err := fetch(ctx, key)

		c.mu.Lock()
		delete(c.inFlight, key)
		if err == nil && lease != nil {
			c.leases[key] = lease
		}
		close(done)
		c.mu.Unlock()

		if err != nil {
			return nil, err
		}
		return lease, nil
	}
}

// Invalidate drops any cached lease for key, e.g. after the collaborator
// rejected it.
func (c *LeaseCache) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.leases, key)
}
