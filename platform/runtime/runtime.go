// Package runtime wires the admission gate, two-level queue, fair
// scheduler, worker pool, resilience registry, RAG pipeline, and cache
// into one process-lifetime object, and owns its startup/teardown. Stop
// stops the worker pool first (waiting up to its grace period, so no new
// work starts), then the dead-letter sweep loop; the WebSocket hub exits
// when the Start context is cancelled. The runtime does not close the
// adapters or the KV connection.
package runtime

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/genaicore/ragforge/platform/accounting"
	"github.com/genaicore/ragforge/platform/adapters"
	"github.com/genaicore/ragforge/platform/admission"
	"github.com/genaicore/ragforge/platform/cache"
	"github.com/genaicore/ragforge/platform/config"
	"github.com/genaicore/ragforge/platform/queue"
	"github.com/genaicore/ragforge/platform/rag"
	"github.com/genaicore/ragforge/platform/resilience"
	"github.com/genaicore/ragforge/platform/sched"
	"github.com/genaicore/ragforge/platform/tenant"
	"github.com/genaicore/ragforge/platform/timeline"
	"github.com/genaicore/ragforge/platform/wsstream"
)

// Runtime is the fully wired instance the gateway binary drives.
type Runtime struct {
	cfg config.Config

	KV       adapters.KvAdapter
	Tenants  tenant.Adapter
	Sink     accounting.Sink
	Gate     *admission.Gate
	Queue    *queue.TwoLevelQueue
	Fair     *sched.Fair
	Shedder  *sched.LoadShedder
	Pool     *sched.Pool
	Breakers *resilience.Registry
	Retrier  *resilience.Retrier
	Pipeline *rag.Pipeline
	Cache    *cache.Cache
	Timeline *timeline.Store
	Behavior *accounting.BehaviorCounter
	Hub      *wsstream.Hub

	sweepStop chan struct{}
}

// New wires every component over the given adapters. kv backs the queue's
// global tier, admission quota, cache, and idempotency guard; retrieval
// and llm back the RAG pipeline; tenants resolves tenant configuration;
// sink receives cost/security accounting events (a durable
// accounting.PostgresSink in production, accounting.NewLogSink for
// single-instance deployments without a dedicated accounting database).
func New(cfg config.Config, kv adapters.KvAdapter, tenants tenant.Adapter, retrieval adapters.RetrievalAdapter, llm adapters.LlmAdapter, sink accounting.Sink) *Runtime {
	gate := admission.NewGate(tenants, quotaCounter{kv}, sink)
	gate.Idempotency = admission.NewIdempotencyGuard(kv, 0)

	q := queue.NewTwoLevelQueue(kv, cfg.LocalQueueDepth)
	fair := sched.NewFair(q, sink, cfg.MaxInFlightPerInstance)
	shedder := sched.NewLoadShedder(cfg.LoadShedQueueThreshold)

	breakers := resilience.NewRegistry()
	retrier := resilience.NewRetrier(breakers)
	pipeline := rag.NewPipeline(retrieval, llm, retrier, sink)
	pipeline.Cache = cache.New(kv)
	pipeline.CacheTTL = cfg.CacheDefaultTTL

	rt := &Runtime{
		cfg:       cfg,
		KV:        kv,
		Tenants:   tenants,
		Sink:      sink,
		Gate:      gate,
		Queue:     q,
		Fair:      fair,
		Shedder:   shedder,
		Breakers:  breakers,
		Retrier:   retrier,
		Pipeline:  pipeline,
		Cache:     pipeline.Cache,
		Timeline:  timeline.NewStore(cfg.TimelineCapacity),
		Behavior:  accounting.NewBehaviorCounter(),
		sweepStop: make(chan struct{}),
	}
	rt.Pool = sched.NewPool(cfg.WorkerPoolSize, fair, rt.dispatch)
	rt.Hub = wsstream.NewHub(snapshotSource{rt})
	return rt
}

// Start launches the worker pool, the dead-letter sweep loop, and the
// WebSocket hub. It returns immediately; everything it starts runs until
// ctx is cancelled or Stop is called.
func (rt *Runtime) Start(ctx context.Context) {
	rt.Pool.Start(ctx)
	go rt.sweepLoop(ctx)
	go rt.Hub.Run(ctx)
}

// Stop tears down the runtime in the order Design Notes §9 specifies:
// workers (via Pool.Stop's grace period) before anything else, so no
// request dispatch races the rest of teardown.
func (rt *Runtime) Stop() {
	rt.Pool.Stop()
	close(rt.sweepStop)
}

// Submit admits req through the gate and enqueues it, stamping a timeline
// event at each stage.
func (rt *Runtime) Submit(ctx context.Context, req admission.Request) (admission.Accepted, error) {
	accepted, err := rt.Gate.Admit(ctx, req)
	if err != nil {
		return admission.Accepted{}, err
	}
	rt.Timeline.Record(timeline.Event{RequestID: accepted.RequestID, Stage: timeline.StageAdmitted, TenantID: accepted.TenantID})
	rt.checkScraping(ctx, accepted)

	if rt.shouldShed(ctx, accepted.Tier) {
		return admission.Accepted{}, &admission.Rejection{Reason: admission.RejectQueueOverflow, Detail: "instance shedding low-priority admission"}
	}

	outcome, err := rt.Queue.Enqueue(ctx, queue.Request{
		RequestID:    accepted.RequestID,
		TenantID:     accepted.TenantID,
		UserID:       accepted.UserID,
		Payload:      accepted.Payload,
		TierPriority: accepted.TierPriority,
		SubmittedAt:  accepted.SubmittedAt,
		DeadlineAt:   accepted.DeadlineAt,
	})
	if err != nil {
		return admission.Accepted{}, err
	}
	_ = outcome
	rt.Timeline.Record(timeline.Event{RequestID: accepted.RequestID, Stage: timeline.StageQueued, TenantID: accepted.TenantID})
	rt.Pool.Notify()
	return accepted, nil
}

// dispatch is the sched.Handler the worker pool drives: it runs the RAG
// pipeline for one dequeued request and records the result to the
// timeline.
func (rt *Runtime) dispatch(ctx context.Context, r queue.Request) error {
	rt.Timeline.Record(timeline.Event{RequestID: r.RequestID, Stage: timeline.StageDequeued, TenantID: r.TenantID})

	fallback := false
	if cfg, err := rt.Tenants.GetTenant(ctx, r.TenantID); err == nil {
		fallback = cfg.FallbackToSearchEnabled
	}

	_, err := rt.Pipeline.Run(ctx, rag.Request{
		RequestID:        r.RequestID,
		TenantID:         r.TenantID,
		UserID:           r.UserID,
		Query:            r.Payload,
		DeadlineAt:       r.DeadlineAt,
		FallbackToSearch: fallback,
	})
	if err != nil {
		rt.Timeline.Record(timeline.Event{RequestID: r.RequestID, Stage: timeline.StageFailed, TenantID: r.TenantID})
		return err
	}
	rt.Timeline.Record(timeline.Event{RequestID: r.RequestID, Stage: timeline.StageCompleted, TenantID: r.TenantID})
	return nil
}

// checkScraping records the admitted request in the per-(tenant,user)
// behavior window and raises a security event if the query pattern looks
// like systematic enumeration rather than organic use.
func (rt *Runtime) checkScraping(ctx context.Context, accepted admission.Accepted) {
	distinct, total := rt.Behavior.Record(accepted.TenantID, accepted.UserID, accepted.Payload, time.Now())
	if !accounting.IsScraping(distinct, total) {
		return
	}
	if rt.Sink != nil {
		rt.Sink.SecurityEvent(ctx, accounting.SecurityEvent{
			TenantID:  accepted.TenantID,
			RequestID: accepted.RequestID,
			Kind:      "scraping_suspected",
			Detail:    fmt.Sprintf("user %s: %d/%d distinct queries in window", accepted.UserID, distinct, total),
			Timestamp: time.Now(),
		})
	}
}

// shouldShed reports whether a just-admitted Starter/Free request should be
// shed at enqueue time given current instance load. Enterprise and
// Professional tiers bypass the shedder entirely, per LoadShedder.ShouldAdmit's
// contract.
func (rt *Runtime) shouldShed(ctx context.Context, tier tenant.Tier) bool {
	if tier != tenant.TierStarter && tier != tenant.TierFree {
		return false
	}
	local, global, err := rt.Queue.Depth(ctx)
	if err != nil {
		return false
	}
	depth := local + int(global)
	return !rt.Shedder.ShouldAdmit(depth, rt.Fair.Saturation())
}

func (rt *Runtime) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-rt.sweepStop:
			return
		case <-ticker.C:
			ids, err := rt.Queue.SweepExpired(ctx, time.Now())
			if err != nil {
				log.Printf("runtime: sweep failed: %v", err)
				continue
			}
			for _, id := range ids {
				rt.Timeline.Record(timeline.Event{RequestID: id, Stage: timeline.StageDeadLettered})
			}
		}
	}
}

// quotaCounter adapts adapters.KvAdapter's IncrWithExpiry into
// admission.QuotaCounter.
type quotaCounter struct {
	kv adapters.KvAdapter
}

func (q quotaCounter) IncrementAndCheck(ctx context.Context, tenantID string, limit int64) (int64, bool, error) {
	key := "genai:quota:" + tenantID + ":" + time.Now().UTC().Format("20060102")
	n, err := q.kv.IncrWithExpiry(ctx, key, 24*time.Hour)
	if err != nil {
		return 0, false, err
	}
	return n, n <= limit, nil
}

// snapshotSource adapts Runtime into wsstream.MetricsSource.
type snapshotSource struct {
	rt *Runtime
}

func (s snapshotSource) Snapshot(ctx context.Context, tenantID string) (wsstream.Snapshot, error) {
	local, global, err := s.rt.Queue.Depth(ctx)
	if err != nil {
		return wsstream.Snapshot{}, err
	}
	total, byTier := s.rt.Fair.Snapshot()
	byTierStr := make(map[string]int, len(byTier))
	for t, n := range byTier {
		byTierStr[string(t)] = n
	}
	return wsstream.Snapshot{
		TenantID:    tenantID,
		LocalDepth:  local,
		GlobalDepth: global,
		InFlight:    total,
		InFlightTop: byTierStr,
		ShedState:   s.rt.Shedder.State().String(),
	}, nil
}
