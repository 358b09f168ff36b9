package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/genaicore/ragforge/platform/adapters"
)

type transientErr struct{ msg string }

func (e *transientErr) Error() string                { return e.msg }
func (e *transientErr) Class() adapters.ErrorClass    { return adapters.ErrorTransient }

func TestBreakerTripsAfterConsecutiveFailures(t *testing.T) {
	reg := NewRegistry()
	ctx := context.Background()

	failing := func(ctx context.Context) error { return &transientErr{msg: "boom"} }

	for i := 0; i < FailMax; i++ {
		_ = reg.Execute(ctx, "llm", "tenant-a", failing)
	}

	err := reg.Execute(ctx, "llm", "tenant-a", func(ctx context.Context) error { return nil })
	if !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected circuit open after %d consecutive failures, got %v", FailMax, err)
	}
}

func TestBreakerIsolatedPerTenant(t *testing.T) {
	reg := NewRegistry()
	ctx := context.Background()
	failing := func(ctx context.Context) error { return &transientErr{msg: "boom"} }

	for i := 0; i < FailMax; i++ {
		_ = reg.Execute(ctx, "llm", "tenant-a", failing)
	}

	// tenant-b's breaker for the same service must be unaffected.
	err := reg.Execute(ctx, "llm", "tenant-b", func(ctx context.Context) error { return nil })
	if err != nil {
		t.Fatalf("expected tenant-b call to succeed, got %v", err)
	}
}

func TestRetrierStopsOnPermanentError(t *testing.T) {
	reg := NewRegistry()
	r := NewRetrier(reg)
	calls := 0

	permanent := errors.New("validation failed")
	err := r.Do(context.Background(), "retrieval", "tenant-a", time.Now().Add(time.Minute), func(ctx context.Context) error {
		calls++
		return permanent
	})

	if calls != 1 {
		t.Fatalf("expected exactly 1 call for a non-transient error, got %d", calls)
	}
	if !errors.Is(err, permanent) {
		t.Fatalf("expected permanent error to propagate, got %v", err)
	}
}

func TestRetrierRetriesTransientUpToMaxAttempts(t *testing.T) {
	reg := NewRegistry()
	r := NewRetrier(reg)
	calls := 0

	err := r.Do(context.Background(), "retrieval", "tenant-a", time.Now().Add(time.Minute), func(ctx context.Context) error {
		calls++
		return &transientErr{msg: "timeout"}
	})

	if calls != MaxAttempts {
		t.Fatalf("expected %d attempts, got %d", MaxAttempts, calls)
	}
	if err == nil {
		t.Fatal("expected an error after exhausting retries")
	}
}

func TestRetrierStopsAtDeadline(t *testing.T) {
	reg := NewRegistry()
	r := NewRetrier(reg)
	calls := 0

	err := r.Do(context.Background(), "retrieval", "tenant-a", time.Now().Add(-time.Second), func(ctx context.Context) error {
		calls++
		return &transientErr{msg: "timeout"}
	})

	if calls != 0 {
		t.Fatalf("expected 0 calls once the deadline has already passed, got %d", calls)
	}
	if !errors.Is(err, ErrDeadlineExceeded) {
		t.Fatalf("expected ErrDeadlineExceeded, got %v", err)
	}
}

func TestShouldFallbackToSearch(t *testing.T) {
	if ShouldFallbackToSearch(ErrCircuitOpen, false) {
		t.Fatal("fallback must stay off when the tenant has not opted in")
	}
	if !ShouldFallbackToSearch(ErrCircuitOpen, true) {
		t.Fatal("expected fallback when enabled and circuit is open")
	}
	if ShouldFallbackToSearch(errors.New("some other error"), true) {
		t.Fatal("fallback should only trigger for a circuit-open failure")
	}
}
