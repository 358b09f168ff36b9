package resilience

import (
	"context"
	"errors"
	"time"

	"github.com/genaicore/ragforge/platform/adapters"
	"github.com/genaicore/ragforge/platform/observability"
)

// MaxAttempts is the default retry budget (§4.5).
const MaxAttempts = 3

// BaseBackoff and MaxBackoff parameterize the exponential backoff
// wait = min(max_wait, base * 2^(attempt-1)).
const (
	BaseBackoff = 200 * time.Millisecond
	MaxBackoff  = 5 * time.Second
)

// ErrDeadlineExceeded is returned when the request's overall deadline
// passes before a retry attempt can begin.
var ErrDeadlineExceeded = errors.New("resilience: deadline exceeded before retry")

// Retrier wraps a circuit breaker with the deadline-aware exponential
// backoff policy of §4.5. Retries are only attempted on failures
// classified as transient; anything else (including a circuit-open
// error, which is never retried regardless of classification) is
// returned immediately.
type Retrier struct {
	Breaker *Registry
}

// NewRetrier builds a retrier over the given breaker registry.
func NewRetrier(breaker *Registry) *Retrier {
	return &Retrier{Breaker: breaker}
}

// Do calls fn through the (service, tenantID) breaker, retrying transient
// failures up to MaxAttempts times with exponential backoff, never
// starting an attempt once deadline has passed.
func (r *Retrier) Do(ctx context.Context, service, tenantID string, deadline time.Time, fn func(ctx context.Context) error) error {
	var lastErr error

	for attempt := 1; attempt <= MaxAttempts; attempt++ {
		if !deadline.IsZero() && time.Now().After(deadline) {
			observability.RetryAttempts.WithLabelValues(service, "deadline_exceeded").Inc()
			return ErrDeadlineExceeded
		}

		err := r.Breaker.Execute(ctx, service, tenantID, fn)
		if err == nil {
			observability.RetryAttempts.WithLabelValues(service, "success").Inc()
			return nil
		}
		lastErr = err

		if errors.Is(err, ErrCircuitOpen) {
			return err
		}
		if !isTransient(err) {
			return err
		}

		observability.RetryAttempts.WithLabelValues(service, "transient_failure").Inc()

		if attempt == MaxAttempts {
			break
		}

		wait := backoff(attempt)
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	return lastErr
}

func backoff(attempt int) time.Duration {
	d := BaseBackoff
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= MaxBackoff {
			return MaxBackoff
		}
	}
	return d
}

// isTransient reports whether err should be retried: only errors the
// adapter explicitly classified as transient via adapters.ClassifiedError.
// Unclassified and permanent errors are not retried, per §7's propagation
// policy.
func isTransient(err error) bool {
	var ce adapters.ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class() == adapters.ErrorTransient
	}
	return false
}
