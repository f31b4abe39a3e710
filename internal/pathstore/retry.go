package pathstore

import (
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"time"
)

const MaxRetries = 3

// RetryableError is a transient pathstore failure: rate limiting or a
// server-side error.
type RetryableError struct {
	StatusCode int
	Message    string
}

func (e *RetryableError) Error() string {
	return fmt.Sprintf("pathstore retryable error (status %d): %s", e.StatusCode, e.Message)
}

// IsRetryable checks if an error is worth retrying.
func IsRetryable(err error) bool {
	var retryErr *RetryableError
	return errors.As(err, &retryErr)
}

// Backoff returns a duration for attempt n (0-indexed) with jitter.
func Backoff(attempt int) time.Duration {
	base := time.Duration(1<<uint(attempt)) * time.Second
	if base > 30*time.Second {
		base = 30 * time.Second
	}
	jitter := time.Duration(rand.Int63n(int64(base) / 2))
	return base + jitter
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}

// newRetryableError drains and closes resp.
func newRetryableError(resp *http.Response) error {
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 200))
	return &RetryableError{StatusCode: resp.StatusCode, Message: string(body)}
}
