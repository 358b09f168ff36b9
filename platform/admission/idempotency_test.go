package admission

import (
	"context"
	"testing"
)

func TestIdempotencyGuardMarksFirstOnly(t *testing.T) {
	ctx := context.Background()
	g := NewIdempotencyGuard(nil, 0)

	if !g.MarkIfFirst(ctx, "req-1") {
		t.Fatal("expected first observation of req-1 to be reported as first")
	}
	if g.MarkIfFirst(ctx, "req-1") {
		t.Fatal("expected second observation of req-1 to be reported as a duplicate")
	}
	if !g.MarkIfFirst(ctx, "req-2") {
		t.Fatal("expected a distinct request_id to be reported as first")
	}
}
