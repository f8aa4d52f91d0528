package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
)

// SubmissionStatus represents the result of checking the store.
type SubmissionStatus int

const (
	// StatusNotFound means no cached result and no in-flight submission.
	StatusNotFound SubmissionStatus = iota
	// StatusCached means a cached result was found.
	StatusCached
	// StatusInFlight means another request is currently submitting this payload.
	StatusInFlight
)

// Result is the outcome of a submission.
type Result struct {
	// ID identifies the submission; the guard assigns one when empty.
	ID              string `json:"id"`
	TransactionHash string `json:"transactionHash"`
	BlockNumber     uint64 `json:"blockNumber,omitempty"`
	Success         bool   `json:"success"`
	// FailureReason is set when the transaction was mined but reverted.
	FailureReason string `json:"failureReason,omitempty"`
}

// SubmissionStore defines the interface for submission idempotency storage.
// Implementations must be safe for concurrent use.
type SubmissionStore interface {
	// CheckAndMark atomically checks the store and marks the key as in-flight if needed.
	//
	// Returns:
	//   - StatusCached + result + nil: A cached result exists, return it immediately
	//   - StatusInFlight + nil + done: Another request is submitting, wait on done channel
	//   - StatusNotFound + nil + done: This request should proceed (now marked in-flight)
	//
	// The done channel must be passed to Complete() or Fail() when the operation finishes.
	CheckAndMark(key string) (SubmissionStatus, *Result, chan struct{})

	// Lookup returns the unexpired cached result for key, or nil. It never
	// marks the key in-flight.
	Lookup(key string) *Result

	// WaitForResult waits for an in-flight submission to complete, respecting context cancellation.
	//
	// Returns:
	//   - The cached result if the in-flight submission succeeded
	//   - nil if the in-flight submission failed (caller should retry)
	//   - Error if context was cancelled
	WaitForResult(ctx context.Context, key string, done chan struct{}) (*Result, error)

	// Complete caches the result and signals any waiting goroutines.
	Complete(key string, result *Result, done chan struct{})

	// Fail removes the in-flight marker without caching a result,
	// signaling waiters that they should retry.
	Fail(key string, done chan struct{})
}

// KeyGenerator generates unique keys for submission deduplication.
type KeyGenerator func(payloadBytes []byte) string

// DefaultKeyGenerator generates a key using SHA256 hash of the payload bytes.
// Signed payloads carry their signature and nonce, ensuring uniqueness per
// authorization.
func DefaultKeyGenerator(payloadBytes []byte) string {
	hash := sha256.Sum256(payloadBytes)
	return hex.EncodeToString(hash[:])
}
