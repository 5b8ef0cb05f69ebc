package trends

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/valyala/fasthttp"
)

// Retry provides bounded retries with exponential backoff. The delay before
// attempt n is backoffFactor * 2^(n-1) seconds, matching the collaborator
// contract (retries=2, backoff factor 0.5 by default).
type Retry struct {
	maxRetries    int
	backoffFactor float64
}

// NewRetry creates a retry mechanism with the given attempt budget.
func NewRetry(maxRetries int, backoffFactor float64) *Retry {
	return &Retry{
		maxRetries:    maxRetries,
		backoffFactor: backoffFactor,
	}
}

// Execute runs fn until it succeeds, fails with a non-retryable error, or the
// retry budget is exhausted.
func (r *Retry) Execute(ctx context.Context, fn func() error) error {
	var lastErr error

	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		err := fn()
		if err == nil {
			return nil
		}

		lastErr = err

		if attempt == r.maxRetries {
			break
		}

		if !r.isRetryable(err) {
			return err
		}

		delay := time.Duration(r.backoffFactor * math.Pow(2, float64(attempt)) * float64(time.Second))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}

	return lastErr
}

// isRetryable retries rate limits, server errors and transport failures, and
// fails fast on other client errors.
func (r *Retry) isRetryable(err error) bool {
	if err == nil {
		return false
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		if statusErr.Code == fasthttp.StatusTooManyRequests {
			return true
		}
		return statusErr.Code >= 500
	}

	// Network errors, timeouts and malformed responses are worth retrying.
	return true
}
