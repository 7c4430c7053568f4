package channel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

const (
	defaultAttempts       = 3
	defaultAttemptTimeout = 6 * time.Second
)

// Resilient wraps a provider Sender with a local rate limit, a circuit breaker,
// a per-attempt timeout and a short retry on transient failures.
type Resilient struct {
	Name           string
	Next           Sender
	Limiter        *rate.Limiter
	Breaker        *gobreaker.CircuitBreaker
	Attempts       int
	AttemptTimeout time.Duration

	// sleep is swapped in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewResilient builds the wrapper with a breaker that opens after five
// consecutive failures.
func NewResilient(name string, next Sender, rps float64, burst int) *Resilient {
	r := &Resilient{
		Name:    name,
		Next:    next,
		Breaker: NewBreaker(name),
	}
	if rps > 0 {
		if burst <= 0 {
			burst = 1
		}
		r.Limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
	return r
}

func NewBreaker(name string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
		},
	})
}

func (r *Resilient) Send(ctx context.Context, contact, message string) error {
	attempts := r.Attempts
	if attempts <= 0 {
		attempts = defaultAttempts
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if r.Limiter != nil {
			if err := r.Limiter.Wait(ctx); err != nil {
				return fmt.Errorf("%s: rate limit wait: %w", r.Name, err)
			}
		}

		err := r.execute(ctx, contact, message)
		if err == nil {
			return nil
		}
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			// fail fast; the outbox retries later
			return fmt.Errorf("%s: %w", r.Name, err)
		}
		lastErr = err
		if !ShouldRetry(err) || attempt == attempts-1 {
			break
		}
		if err := r.wait(ctx, Backoff(attempt)); err != nil {
			return fmt.Errorf("%s: %w", r.Name, lastErr)
		}
	}
	return lastErr
}

func (r *Resilient) execute(ctx context.Context, contact, message string) error {
	timeout := r.AttemptTimeout
	if timeout <= 0 {
		timeout = defaultAttemptTimeout
	}
	call := func() (any, error) {
		reqCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		return nil, r.Next.Send(reqCtx, contact, message)
	}
	if r.Breaker == nil {
		_, err := call()
		return err
	}
	_, err := r.Breaker.Execute(call)
	return err
}

func (r *Resilient) wait(ctx context.Context, d time.Duration) error {
	if r.sleep != nil {
		return r.sleep(ctx, d)
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
