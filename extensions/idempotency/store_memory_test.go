package idempotency

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestDefaultKeyGenerator(t *testing.T) {
	permitSig := []byte{0xaa, 0x01}
	sponsorSig := []byte{0xbb, 0x02}

	a := DefaultKeyGenerator(append(append([]byte{}, permitSig...), sponsorSig...))
	b := DefaultKeyGenerator(append(append([]byte{}, permitSig...), sponsorSig...))
	c := DefaultKeyGenerator(append(append([]byte{}, permitSig...), 0xbb, 0x03))

	if a != b {
		t.Errorf("identical submissions produced %s and %s", a, b)
	}
	if a == c {
		t.Error("different sponsor signatures produced the same key")
	}
	if len(a) != 64 {
		t.Errorf("key length = %d, want 64 hex chars", len(a))
	}
}

// clockStore returns a store whose clock the test advances by hand.
func clockStore(ttl time.Duration) (*InMemoryStore, *time.Time) {
	now := time.Unix(1_700_000_000, 0)
	store := NewInMemoryStore(ttl)
	store.now = func() time.Time { return now }
	return store, &now
}

func TestInMemoryStore_Lifecycle(t *testing.T) {
	store, _ := clockStore(time.Minute)
	const key = "permit-and-promise"

	status, cached, owner := store.CheckAndMark(key)
	if status != StatusNotFound || cached != nil {
		t.Fatalf("first check = (%v, %v), want (NotFound, nil)", status, cached)
	}

	status, _, waiter := store.CheckAndMark(key)
	if status != StatusInFlight {
		t.Fatalf("second check = %v, want InFlight", status)
	}
	if owner != waiter {
		t.Error("waiters must share the owner's done channel")
	}
	if store.InFlight() != 1 {
		t.Errorf("InFlight() = %d, want 1", store.InFlight())
	}

	store.Complete(key, &Result{ID: "sub-1", TransactionHash: "0xabc", BlockNumber: 42, Success: true}, owner)

	status, cached, _ = store.CheckAndMark(key)
	if status != StatusCached {
		t.Fatalf("check after complete = %v, want Cached", status)
	}
	if cached.TransactionHash != "0xabc" || cached.BlockNumber != 42 {
		t.Errorf("cached result = %+v", cached)
	}
	if store.InFlight() != 0 {
		t.Errorf("InFlight() = %d after complete, want 0", store.InFlight())
	}
}

func TestInMemoryStore_FailReleasesSlot(t *testing.T) {
	store, _ := clockStore(time.Minute)

	_, _, done := store.CheckAndMark("k")
	store.Fail("k", done)

	select {
	case <-done:
	default:
		t.Error("Fail must release waiters")
	}

	status, _, done := store.CheckAndMark("k")
	if status != StatusNotFound {
		t.Errorf("check after fail = %v, want NotFound so the submission can be retried", status)
	}
	store.Fail("k", done)
}

func TestInMemoryStore_ExpiryBoundary(t *testing.T) {
	store, now := clockStore(time.Minute)

	_, _, done := store.CheckAndMark("k")
	store.Complete("k", &Result{TransactionHash: "0x1"}, done)

	*now = now.Add(time.Minute - time.Nanosecond)
	if status, _, _ := store.CheckAndMark("k"); status != StatusCached {
		t.Errorf("just before expiry = %v, want Cached", status)
	}

	*now = now.Add(time.Nanosecond)
	status, _, done := store.CheckAndMark("k")
	if status != StatusNotFound {
		t.Errorf("at expiry = %v, want NotFound", status)
	}
	store.Fail("k", done)
}

func TestInMemoryStore_WaitForResult(t *testing.T) {
	t.Run("waiters share the completed result", func(t *testing.T) {
		store, _ := clockStore(time.Minute)
		_, _, done := store.CheckAndMark("k")

		var wg sync.WaitGroup
		results := make([]*Result, 3)
		errs := make([]error, 3)
		for i := range results {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				results[i], errs[i] = store.WaitForResult(context.Background(), "k", done)
			}(i)
		}

		store.Complete("k", &Result{TransactionHash: "0xshared"}, done)
		wg.Wait()

		for i := range results {
			if errs[i] != nil {
				t.Errorf("waiter %d: %v", i, errs[i])
				continue
			}
			if results[i] == nil || results[i].TransactionHash != "0xshared" {
				t.Errorf("waiter %d got %+v", i, results[i])
			}
		}
	})

	t.Run("failed submission wakes waiters empty-handed", func(t *testing.T) {
		store, _ := clockStore(time.Minute)
		_, _, done := store.CheckAndMark("k")
		store.Fail("k", done)

		result, err := store.WaitForResult(context.Background(), "k", done)
		if err != nil || result != nil {
			t.Errorf("WaitForResult = (%v, %v), want (nil, nil)", result, err)
		}
	})

	t.Run("cancelled waiter returns the context error", func(t *testing.T) {
		store, _ := clockStore(time.Minute)
		_, _, done := store.CheckAndMark("k")
		defer store.Fail("k", done)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if _, err := store.WaitForResult(ctx, "k", done); !errors.Is(err, context.Canceled) {
			t.Errorf("err = %v, want context.Canceled", err)
		}
	})
}

func TestInMemoryStore_ConcurrentCheckAndMark(t *testing.T) {
	store, _ := clockStore(time.Minute)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		byState = map[SubmissionStatus]int{}
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			status, _, _ := store.CheckAndMark("k")
			mu.Lock()
			byState[status]++
			mu.Unlock()
		}()
	}
	wg.Wait()

	if byState[StatusNotFound] != 1 || byState[StatusInFlight] != 9 {
		t.Errorf("outcomes = %v, want one owner and nine waiters", byState)
	}
}
