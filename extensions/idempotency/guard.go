package idempotency

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// SubmitFunc performs one submission.
type SubmitFunc func(ctx context.Context) (*Result, error)

// Guard runs submissions at most once per payload within the store's TTL.
type Guard struct {
	store        SubmissionStore
	keyGenerator KeyGenerator
}

// NewGuard creates a Guard.
//
// Default configuration:
//   - InMemoryStore with 10-minute TTL
//   - SHA256 key generator
func NewGuard(opts ...Option) *Guard {
	cfg := &config{
		ttl:          10 * time.Minute,
		keyGenerator: DefaultKeyGenerator,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	store := cfg.store
	if store == nil {
		store = NewInMemoryStore(cfg.ttl)
	}

	return &Guard{
		store:        store,
		keyGenerator: cfg.keyGenerator,
	}
}

// Store returns the guard's store.
func (g *Guard) Store() SubmissionStore {
	return g.store
}

// Cached returns the cached result of a successful submission of
// payloadBytes, or nil.
func (g *Guard) Cached(payloadBytes []byte) *Result {
	return g.store.Lookup(g.keyGenerator(payloadBytes))
}

// Do runs submit unless payloadBytes was already submitted successfully or
// is being submitted right now, in which case that submission's result is
// returned and deduplicated is true. Failed submissions are not cached.
func (g *Guard) Do(ctx context.Context, payloadBytes []byte, submit SubmitFunc) (result *Result, deduplicated bool, err error) {
	key := g.keyGenerator(payloadBytes)

	for {
		status, cached, done := g.store.CheckAndMark(key)

		switch status {
		case StatusCached:
			return cached, true, nil

		case StatusInFlight:
			waited, err := g.store.WaitForResult(ctx, key, done)
			if err != nil {
				return nil, false, err
			}
			if waited != nil {
				return waited, true, nil
			}
			// in-flight submission failed; compete for the slot again
			continue
		}

		result, err := submit(ctx)
		if err != nil {
			g.store.Fail(key, done)
			return nil, false, err
		}
		if result == nil {
			result = &Result{}
		}
		if result.ID == "" {
			result.ID = uuid.NewString()
		}
		g.store.Complete(key, result, done)
		return result, false, nil
	}
}
