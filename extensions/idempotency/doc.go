// Package idempotency deduplicates on-chain submissions.
//
// # Overview
//
// A relay that submits signed payloads on behalf of their signers must not
// send the same payload twice: clients retry while a transaction is still
// pending, and a second submission either wastes gas on a revert or, for
// payloads without a nonce, executes twice.
//
// # Usage
//
// Wrap the submission in a Guard:
//
//	guard := idempotency.NewGuard(idempotency.WithTTL(30 * time.Minute))
//
//	result, deduplicated, err := guard.Do(ctx, payloadBytes, func(ctx context.Context) (*idempotency.Result, error) {
//	    return submit(ctx)
//	})
//
// # Implementing Custom Stores
//
// For deployments with more than one relay instance, implement
// SubmissionStore with a shared backend. The interface provides:
//   - CheckAndMark: Atomic check-and-mark for deduplication
//   - WaitForResult: Wait for in-flight submissions to complete
//   - Complete: Cache successful results
//   - Fail: Clear in-flight marker on failure (allows retry)
//
// # How It Works
//
// 1. A key is generated from the payload (SHA256 hash by default)
// 2. The store atomically checks for a cached result or in-flight submission
// 3. If cached: return it without submitting
// 4. If in-flight: wait for the other submission, then return its result
// 5. Otherwise: submit, then cache the result
//
// Failed submissions are NOT cached, allowing legitimate retries.
package idempotency
