package channel

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"
)

// StatusError is a non-2xx answer from a provider API.
type StatusError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: status %d: %s", e.Provider, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: status %d", e.Provider, e.StatusCode)
}

// ShouldRetry reports whether err is worth another attempt: timeouts, 408, 429 and 5xx.
func ShouldRetry(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	var se *StatusError
	if errors.As(err, &se) {
		switch {
		case se.StatusCode == 408, se.StatusCode == 429:
			return true
		case se.StatusCode >= 500 && se.StatusCode <= 599:
			return true
		}
	}
	return false
}

func Backoff(attempt int) time.Duration {
	// 200ms, 600ms, 1400ms
	base := []time.Duration{200 * time.Millisecond, 600 * time.Millisecond, 1400 * time.Millisecond}
	if attempt <= 0 {
		return base[0]
	}
	if attempt >= len(base) {
		return base[len(base)-1]
	}
	return base[attempt]
}
