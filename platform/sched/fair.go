// Package sched implements the work-conserving weighted-fair scheduler
// (§4.3) that sits between the two-level queue and the worker pool, plus
// the fixed-size worker pool and the instance-level load shedder that
// protects it. Adapted from control_plane/scheduler/scheduler.go's
// in-flight bookkeeping and single mutual-exclusion domain, narrowed from
// per-node reconciliation admission to per-tenant-tier fair queuing.
package sched

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/genaicore/ragforge/platform/observability"
	"github.com/genaicore/ragforge/platform/queue"
	"github.com/genaicore/ragforge/platform/tenant"
)

// DefaultMaxInFlightPerInstance is the global in-flight ceiling (§4.3) when
// the caller does not override it via config.
const DefaultMaxInFlightPerInstance = 100

const (
	// NoisyNeighborThreshold is the per-tenant in-flight fraction that
	// trips the metrics-only noisy-neighbour signal.
	NoisyNeighborThreshold = 0.20
	// NoisyNeighborAlertThreshold escalates to a security event.
	NoisyNeighborAlertThreshold = 0.30
)

// Source is the narrow view of the two-level queue the scheduler drains
// from and dead-letters into. Defined here (not satisfied-in-place against
// queue.TwoLevelQueue's full API) so the selection algorithm stays
// unit-testable against a fake.
type Source interface {
	Dequeue(ctx context.Context) (queue.Request, bool, error)
	DeadLetter(ctx context.Context, r queue.Request, now time.Time, source string) error
}

// SecuritySink is the narrow slice of accounting.Sink the scheduler needs,
// to avoid depending on the whole accounting package from this hot path.
type SecuritySink interface {
	NoisyNeighborAlert(tenantID string, fraction float64)
}

// Fair implements the §4.3 work-conserving weighted fair queuing
// algorithm. Because the underlying two-level queue is itself only
// priority-ordered (not tier-segregated), Fair classifies on drain: it
// pulls requests off the source into per-tier staging FIFOs, preserving
// arrival order within a tier, and applies the tier-cap/work-conservation
// selection purely over those staging FIFOs. This mirrors the classify-
// then-schedule structure real WFQ implementations use.
type Fair struct {
	mu sync.Mutex

	maxInFlight    int
	inFlightTot    int
	inFlightTier   map[tenant.Tier]int
	inFlightTenant map[string]int
	staged         map[tenant.Tier][]queue.Request

	source Source
	sink   SecuritySink
}

// NewFair builds a scheduler draining from source with the given global
// in-flight ceiling. A non-positive maxInFlight falls back to
// DefaultMaxInFlightPerInstance.
func NewFair(source Source, sink SecuritySink, maxInFlight int) *Fair {
	if maxInFlight <= 0 {
		maxInFlight = DefaultMaxInFlightPerInstance
	}
	staged := make(map[tenant.Tier][]queue.Request, len(tenant.Tiers))
	for _, t := range tenant.Tiers {
		staged[t] = nil
	}
	return &Fair{
		maxInFlight:    maxInFlight,
		inFlightTier:   make(map[tenant.Tier]int),
		inFlightTenant: make(map[string]int),
		staged:         staged,
		source:         source,
		sink:           sink,
	}
}

func tierFromPriority(p int) tenant.Tier {
	for _, t := range tenant.Tiers {
		if t.Priority() == p {
			return t
		}
	}
	return tenant.TierFree
}

// refill drains the source into per-tier staging until it is empty or
// returns an error, stopping early if a hard cap on drain batch size is
// hit so one Select call cannot stall forever on a saturated queue. A
// request whose deadline has already passed is dead-lettered immediately
// rather than staged, so staging never hides an expired item from the
// sweep the way leaving it in the local/global queue would.
func (f *Fair) refill(ctx context.Context, now time.Time) error {
	const maxDrainPerCall = 1024
	for i := 0; i < maxDrainPerCall; i++ {
		r, ok, err := f.source.Dequeue(ctx)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		if r.Expired(now) {
			if err := f.source.DeadLetter(ctx, r, now, "staged"); err != nil {
				return err
			}
			continue
		}
		t := tierFromPriority(r.TierPriority)
		f.staged[t] = append(f.staged[t], r)
	}
	return nil
}

// purgeExpiredStaged dead-letters any already-staged request whose deadline
// has passed since it was staged, so a request can never sit in staged
// indefinitely past its deadline waiting for tier headroom.
func (f *Fair) purgeExpiredStaged(ctx context.Context, now time.Time) error {
	for _, tier := range tenant.Tiers {
		q := f.staged[tier]
		kept := q[:0]
		for _, r := range q {
			if r.Expired(now) {
				if err := f.source.DeadLetter(ctx, r, now, "staged"); err != nil {
					return err
				}
				continue
			}
			kept = append(kept, r)
		}
		f.staged[tier] = kept
	}
	return nil
}

func (f *Fair) capFor(tier tenant.Tier) int {
	return int(math.Floor(float64(f.maxInFlight) * float64(tier.FairShareMilli()) / 1000.0))
}

// popStaged removes and returns the oldest staged request for a tier.
func (f *Fair) popStaged(tier tenant.Tier) (queue.Request, bool) {
	q := f.staged[tier]
	if len(q) == 0 {
		return queue.Request{}, false
	}
	r := q[0]
	f.staged[tier] = q[1:]
	return r, true
}

// Select implements the §4.3 algorithm: strict per-tier caps in priority
// order, falling through to work-conserving dispatch of the highest-
// priority staged item when every tier with demand is at cap but total
// in-flight still has headroom. Returns ok=false when the instance is at
// its global ceiling or nothing is available.
func (f *Fair) Select(ctx context.Context) (queue.Request, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	now := time.Now()
	if err := f.refill(ctx, now); err != nil {
		return queue.Request{}, false, err
	}
	if err := f.purgeExpiredStaged(ctx, now); err != nil {
		return queue.Request{}, false, err
	}

	if f.inFlightTot >= f.maxInFlight {
		return queue.Request{}, false, nil
	}

	for _, tier := range tenant.Tiers {
		if f.inFlightTier[tier] >= f.capFor(tier) {
			continue
		}
		if r, ok := f.popStaged(tier); ok {
			f.admit(tier, "tier_cap")
			return r, true, nil
		}
	}

	// Work conservation: every tier with pending demand is at cap, but the
	// instance still has headroom. Take the highest-priority tier that
	// still has staged demand, cap or no.
	for _, tier := range tenant.Tiers {
		if r, ok := f.popStaged(tier); ok {
			f.admit(tier, "work_conserving")
			return r, true, nil
		}
	}

	return queue.Request{}, false, nil
}

func (f *Fair) admit(tier tenant.Tier, path string) {
	f.inFlightTot++
	f.inFlightTier[tier]++
	observability.SchedulerInFlight.WithLabelValues(string(tier)).Set(float64(f.inFlightTier[tier]))
	observability.SchedulerDispatches.WithLabelValues(string(tier), path).Inc()
}

// Dispatched records per-tenant in-flight bookkeeping once the caller
// knows which tenant owns the dispatched request, and evaluates the
// noisy-neighbour thresholds (§4.3).
func (f *Fair) Dispatched(tenantID string, tier tenant.Tier) {
	f.mu.Lock()
	f.inFlightTenant[tenantID]++
	fraction := float64(f.inFlightTenant[tenantID]) / float64(f.maxInFlight)
	f.mu.Unlock()

	if fraction > NoisyNeighborAlertThreshold {
		observability.SchedulerNoisyNeighbor.WithLabelValues(tenantID, "alert").Inc()
		if f.sink != nil {
			f.sink.NoisyNeighborAlert(tenantID, fraction)
		}
	} else if fraction > NoisyNeighborThreshold {
		observability.SchedulerNoisyNeighbor.WithLabelValues(tenantID, "warn").Inc()
	}
}

// Completed decrements in-flight bookkeeping. Callers must invoke this
// exactly once per request previously returned from Select, after having
// called Dispatched — completion notifications are monotonic by
// construction (§5).
func (f *Fair) Completed(tenantID string, tier tenant.Tier) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.inFlightTot > 0 {
		f.inFlightTot--
	}
	if f.inFlightTier[tier] > 0 {
		f.inFlightTier[tier]--
	}
	if f.inFlightTenant[tenantID] > 0 {
		f.inFlightTenant[tenantID]--
	}
	observability.SchedulerInFlight.WithLabelValues(string(tier)).Set(float64(f.inFlightTier[tier]))
}

// Saturation reports current in-flight load as a fraction of maxInFlight,
// for the load shedder's admission decision.
func (f *Fair) Saturation() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return float64(f.inFlightTot) / float64(f.maxInFlight)
}

// Snapshot reports current in-flight counts for diagnostics.
func (f *Fair) Snapshot() (total int, byTier map[tenant.Tier]int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	byTier = make(map[tenant.Tier]int, len(f.inFlightTier))
	for t, n := range f.inFlightTier {
		byTier[t] = n
	}
	return f.inFlightTot, byTier
}
