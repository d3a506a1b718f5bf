package ai

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// DefaultRetryAfter is used when a rate-limited response does not say how long to wait.
const DefaultRetryAfter = time.Second

// ErrMalformedResponse is returned when a provider reply lacks the generated text.
var ErrMalformedResponse = errors.New("malformed analysis response")

// RateLimitError reports that the provider kept rejecting requests with 429.
type RateLimitError struct {
	RetryAfter time.Duration
	Err        error
}

func (e *RateLimitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("rate limited (retry after %s): %v", e.RetryAfter, e.Err)
	}
	return fmt.Sprintf("rate limited (retry after %s)", e.RetryAfter)
}

func (e *RateLimitError) Unwrap() error {
	return e.Err
}

// ParseRetryAfter converts a Retry-After header value into a duration. Both
// delay-seconds and HTTP-date forms are accepted; anything else yields fallback.
func ParseRetryAfter(value string, fallback time.Duration) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return fallback
	}

	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds < 0 {
			return 0
		}
		return time.Duration(seconds) * time.Second
	}

	if at, err := http.ParseTime(value); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
		return 0
	}

	return fallback
}
