package runtime

import (
	"context"
	"testing"

	"github.com/genaicore/ragforge/platform/adapters"
	"github.com/genaicore/ragforge/platform/queue"
	"github.com/genaicore/ragforge/platform/sched"
	"github.com/genaicore/ragforge/platform/tenant"
)

func newTestRuntime(localQueueDepth, maxInFlight int) *Runtime {
	kv := adapters.NewMemoryKV()
	q := queue.NewTwoLevelQueue(kv, localQueueDepth)
	fair := sched.NewFair(q, nil, maxInFlight)
	return &Runtime{
		Queue:   q,
		Fair:    fair,
		Shedder: sched.NewLoadShedder(2),
	}
}

func TestShouldShedBypassesEnterpriseAndProfessional(t *testing.T) {
	rt := newTestRuntime(256, 10)
	for i := 0; i < 10; i++ {
		// Push the shedder's queue-depth threshold well past its trip
		// point so any tier subject to the check would be shed.
		rt.Queue.Enqueue(context.Background(), queue.Request{RequestID: "x"})
	}
	if rt.shouldShed(context.Background(), tenant.TierEnterprise) {
		t.Fatal("expected enterprise tier to bypass the shedder")
	}
	if rt.shouldShed(context.Background(), tenant.TierProfessional) {
		t.Fatal("expected professional tier to bypass the shedder")
	}
}

func TestShouldShedRejectsLowPriorityTiersUnderSaturation(t *testing.T) {
	rt := newTestRuntime(256, 10)
	for i := 0; i < 10; i++ {
		rt.Queue.Enqueue(context.Background(), queue.Request{RequestID: "x"})
	}
	if !rt.shouldShed(context.Background(), tenant.TierFree) {
		t.Fatal("expected free tier to be shed once queue depth exceeds threshold")
	}
	if !rt.shouldShed(context.Background(), tenant.TierStarter) {
		t.Fatal("expected starter tier to be shed once queue depth exceeds threshold")
	}
}

func TestShouldShedAdmitsLowPriorityTiersUnderLightLoad(t *testing.T) {
	rt := newTestRuntime(256, 10)
	if rt.shouldShed(context.Background(), tenant.TierFree) {
		t.Fatal("expected free tier to be admitted when queue is empty")
	}
}
