package intents

import (
	"errors"
	"fmt"
	"math/big"
)

// IntentError represents a protocol-level failure with a stable code.
// Two IntentErrors match under errors.Is when their codes are equal, so
// callers can compare against the sentinel values below regardless of the
// message or details attached at the failure site.
type IntentError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
	Err     error                  `json:"-"`
}

func (e *IntentError) Error() string {
	if e.Message == "" {
		return e.Code
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *IntentError) Unwrap() error {
	return e.Err
}

// Is reports whether target is an IntentError with the same code.
func (e *IntentError) Is(target error) bool {
	t, ok := target.(*IntentError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// NewIntentError creates a new intent error
func NewIntentError(code, message string, details map[string]interface{}) *IntentError {
	return &IntentError{
		Code:    code,
		Message: message,
		Details: details,
	}
}

// WrapIntentError creates an intent error carrying an underlying cause.
func WrapIntentError(code, message string, err error) *IntentError {
	return &IntentError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Error codes
const (
	// Authorization failures. Never retried.
	ErrCodeNotAuthorized  = "not_authorized"
	ErrCodeSignerMismatch = "signer_mismatch"

	// Staleness failures. Retry after re-fetching state.
	ErrCodeStaleVersion    = "stale_version"
	ErrCodePremintDeleted  = "premint_deleted"
	ErrCodeDeadlineExpired = "deadline_expired"

	// Input validation failures. Raised before any I/O.
	ErrCodeInvalidQuantity           = "invalid_quantity"
	ErrCodeUnsupportedPremintVersion = "unsupported_premint_version"
	ErrCodeMissingAccount            = "missing_account"
	ErrCodeInvalidInput              = "invalid_input"

	// Quote failures.
	ErrCodeQuoteSlippage = "quote_slippage_exceeded"

	// Wrapped revert decoding.
	ErrCodeNotCallFailed = "not_call_failed_error"

	// Submission failures reported by the chain or a collaborator.
	ErrCodeSubmissionFailed = "submission_failed"
	ErrCodeNotFound         = "not_found"
)

// Sentinels for errors.Is comparisons.
var (
	ErrNotAuthorized             = &IntentError{Code: ErrCodeNotAuthorized}
	ErrSignerMismatch            = &IntentError{Code: ErrCodeSignerMismatch}
	ErrStaleVersion              = &IntentError{Code: ErrCodeStaleVersion}
	ErrPremintDeleted            = &IntentError{Code: ErrCodePremintDeleted}
	ErrDeadlineExpired           = &IntentError{Code: ErrCodeDeadlineExpired}
	ErrInvalidQuantity           = &IntentError{Code: ErrCodeInvalidQuantity}
	ErrUnsupportedPremintVersion = &IntentError{Code: ErrCodeUnsupportedPremintVersion}
	ErrMissingAccount            = &IntentError{Code: ErrCodeMissingAccount}
	ErrInvalidInput              = &IntentError{Code: ErrCodeInvalidInput}
	ErrNotCallFailed             = &IntentError{Code: ErrCodeNotCallFailed}
	ErrSubmissionFailed          = &IntentError{Code: ErrCodeSubmissionFailed}
	ErrNotFound                  = &IntentError{Code: ErrCodeNotFound}
)

// QuoteSlippageError is returned when a re-fetched quote moved further than
// the caller's tolerance away from the quote it built against.
type QuoteSlippageError struct {
	Original    *big.Int
	New         *big.Int
	SlippageBps int64
}

func (e *QuoteSlippageError) Error() string {
	return fmt.Sprintf("%s: quote moved from %s to %s (tolerance %d bps)",
		ErrCodeQuoteSlippage, e.Original, e.New, e.SlippageBps)
}

// IsRetryable reports whether err belongs to a category the caller may retry
// after re-fetching fresh state: staleness and quote failures.
func IsRetryable(err error) bool {
	var slippage *QuoteSlippageError
	if errors.As(err, &slippage) {
		return true
	}
	return errors.Is(err, ErrStaleVersion) ||
		errors.Is(err, ErrDeadlineExpired) ||
		errors.Is(err, ErrSubmissionFailed)
}
