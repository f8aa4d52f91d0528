package idempotency

import (
	"context"
	"sync"
	"time"
)

// InMemoryStore provides an in-memory implementation of SubmissionStore
// for single-instance relays. Expired entries are cleaned up lazily.
type InMemoryStore struct {
	mu       sync.Mutex
	results  map[string]*Result
	expiry   map[string]time.Time
	inFlight map[string]chan struct{}
	ttl      time.Duration
	now      func() time.Time
}

// NewInMemoryStore creates a new in-memory submission store. ttl is how long
// successful results are cached.
func NewInMemoryStore(ttl time.Duration) *InMemoryStore {
	return &InMemoryStore{
		results:  make(map[string]*Result),
		expiry:   make(map[string]time.Time),
		inFlight: make(map[string]chan struct{}),
		ttl:      ttl,
		now:      time.Now,
	}
}

// CheckAndMark implements SubmissionStore.
func (s *InMemoryStore) CheckAndMark(key string) (SubmissionStatus, *Result, chan struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if result := s.getLocked(key); result != nil {
		return StatusCached, result, nil
	}

	if done, exists := s.inFlight[key]; exists {
		return StatusInFlight, nil, done
	}

	done := make(chan struct{})
	s.inFlight[key] = done
	return StatusNotFound, nil, done
}

// Lookup implements SubmissionStore.
func (s *InMemoryStore) Lookup(key string) *Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getLocked(key)
}

// WaitForResult implements SubmissionStore.
func (s *InMemoryStore) WaitForResult(ctx context.Context, key string, done chan struct{}) (*Result, error) {
	select {
	case <-done:
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.getLocked(key), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// getLocked returns an unexpired cached result or nil. Must be called with lock held.
func (s *InMemoryStore) getLocked(key string) *Result {
	expiry, exists := s.expiry[key]
	if !exists {
		return nil
	}
	if !s.now().Before(expiry) {
		delete(s.results, key)
		delete(s.expiry, key)
		return nil
	}
	return s.results[key]
}

// Complete implements SubmissionStore.
func (s *InMemoryStore) Complete(key string, result *Result, done chan struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.results[key] = result
	s.expiry[key] = s.now().Add(s.ttl)
	delete(s.inFlight, key)
	close(done)

	s.cleanupExpiredLocked()
}

// Fail implements SubmissionStore. Waiters retry since no result is cached.
func (s *InMemoryStore) Fail(key string, done chan struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.inFlight, key)
	close(done)
}

// InFlight returns the number of submissions currently in progress.
func (s *InMemoryStore) InFlight() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.inFlight)
}

// cleanupExpiredLocked removes expired entries. Must be called with lock held.
func (s *InMemoryStore) cleanupExpiredLocked() {
	now := s.now()
	for key, expiry := range s.expiry {
		if !now.Before(expiry) {
			delete(s.results, key)
			delete(s.expiry, key)
		}
	}
}

var _ SubmissionStore = (*InMemoryStore)(nil)
