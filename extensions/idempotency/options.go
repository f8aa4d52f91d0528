package idempotency

import "time"

// config holds the configuration for Guard.
type config struct {
	ttl          time.Duration
	store        SubmissionStore
	keyGenerator KeyGenerator
}

// Option configures a Guard.
type Option func(*config)

// WithTTL sets the cache TTL for successful submissions.
//
// Only applies when using the default InMemoryStore.
//
// Default: 10 minutes
func WithTTL(ttl time.Duration) Option {
	return func(c *config) {
		c.ttl = ttl
	}
}

// WithStore sets a custom SubmissionStore implementation.
// When specified, WithTTL is ignored (configure TTL on your store).
func WithStore(store SubmissionStore) Option {
	return func(c *config) {
		c.store = store
	}
}

// WithKeyGenerator sets a custom key generation function.
//
// The key must uniquely identify a submission to prevent false positive
// deduplication.
func WithKeyGenerator(gen KeyGenerator) Option {
	return func(c *config) {
		c.keyGenerator = gen
	}
}
