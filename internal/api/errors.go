package api

import (
	"context"
	"errors"
	"net/http"
	"time"
)

// Sentinel errors forming the fetch failure taxonomy. Callers match them
// with errors.Is at the orchestrator and pipeline boundaries.
var (
	// ErrRemoteUnavailable wraps the last failure after the retry budget is
	// exhausted.
	ErrRemoteUnavailable = errors.New("remote unavailable")

	// ErrMalformedResponse marks a payload that did not parse. The request
	// is a failed fetch, never retried.
	ErrMalformedResponse = errors.New("malformed response")

	// ErrPartialHistory marks a chunked history fetch that failed midway.
	// The bars fetched before the failure accompany the error.
	ErrPartialHistory = errors.New("partial history")
)

// RetryPolicy controls doWithRetry. It is a plain value so the schedule and
// the retryable predicate can be exercised without any network.
type RetryPolicy struct {
	MaxRetries int              // Attempts beyond the first
	Backoff    time.Duration    // Initial backoff, doubled per retry
	Retryable  func(error) bool // Which failures are worth another attempt
}

// DefaultRetryPolicy retries three times from a one-second backoff using
// DefaultRetryable.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: 3,
		Backoff:    time.Second,
		Retryable:  DefaultRetryable,
	}
}

// DefaultRetryable reports whether an error should trigger a retry:
// server-side failures, the explicit rate-limit signal, and transport-level
// errors. Cancellation and malformed payloads are not retried. A per-request
// timeout counts as a transport error and so consumes one attempt.
func DefaultRetryable(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.IsRetryable()
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, ErrMalformedResponse) {
		return false
	}
	return true
}

// IsRateLimited reports whether err carries the remote rate-limit signal.
func IsRateLimited(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusTooManyRequests
}
