package openai

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"
)

const (
	defaultMaxRetries = 3
	baseBackoff       = 500 * time.Millisecond
)

// retryPolicy retries transient provider failures (429, 5xx, transport
// errors) with exponential backoff and jitter. Client errors fail fast.
type retryPolicy struct {
	maxRetries int
}

func newRetryPolicy(maxRetries int) retryPolicy {
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	return retryPolicy{maxRetries: maxRetries}
}

// do runs fn up to maxRetries+1 times. When a limiter is set, each attempt
// waits for a token first so retries cannot stampede the provider.
func (p retryPolicy) do(ctx context.Context, limiter *rate.Limiter, fn func(context.Context) error) error {
	var lastErr error

	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := baseBackoff << (attempt - 1)
			backoff += time.Duration(rand.Int63n(int64(backoff) / 2)) // jitter up to +50%
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}

		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return fmt.Errorf("rate limiter: %w", err)
			}
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if !isRetryable(lastErr) {
			return lastErr
		}
	}

	return lastErr
}

// isRetryable reports whether the provider error is worth another attempt.
func isRetryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return retryableStatus(apiErr.HTTPStatusCode)
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return retryableStatus(reqErr.HTTPStatusCode)
	}

	// Network-level failure without an HTTP status.
	return true
}

func retryableStatus(status int) bool {
	return status == http.StatusTooManyRequests || status >= http.StatusInternalServerError
}
