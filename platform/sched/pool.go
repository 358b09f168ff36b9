package sched

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/genaicore/ragforge/platform/observability"
	"github.com/genaicore/ragforge/platform/queue"
)

// GracePeriod bounds how long Pool.Stop waits for in-flight work to drain
// before returning regardless (§4.4 "Worker Pool"), mirroring the
// cancel-then-wait shutdown fluxforge/agent/main.go uses around its signal
// handler, generalized into an explicit timeout here instead of an
// unbounded <-ctx.Done().
const GracePeriod = 120 * time.Second

// Handler executes one dispatched request through the RAG pipeline. The
// pool only logs a returned error; it emits no CostEvent or audit event on
// completion. Handler itself must honor ctx's deadline.
type Handler func(ctx context.Context, r queue.Request) error

// Pool is a fixed-size set of cooperative workers pulling dispatch
// decisions from a Fair scheduler (§4.4). Adapted from
// control_plane/scheduler/scheduler.go's worker/processNextTask split,
// replacing its 100ms-poll ticker with idle workers blocking on a wakeup
// channel, backed by a slower 250ms safety-net poll.
type Pool struct {
	size     int
	fair     *Fair
	handler  Handler
	wakeup   chan struct{}

	wg       sync.WaitGroup
	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewPool builds a pool of size cooperative workers dispatching through
// fair and executing each request with handler.
func NewPool(size int, fair *Fair, handler Handler) *Pool {
	if size <= 0 {
		size = 1
	}
	return &Pool{
		size:    size,
		fair:    fair,
		handler: handler,
		wakeup:  make(chan struct{}, 1),
		stopCh:  make(chan struct{}),
	}
}

// Notify wakes idle workers after a new item is enqueued or a completion
// frees capacity, instead of polling (§5 "blocking; wake-up on new arrival
// or on completion freeing capacity").
func (p *Pool) Notify() {
	select {
	case p.wakeup <- struct{}{}:
	default:
	}
}

// Start launches the pool's workers; they run until ctx is cancelled or
// Stop is called.
func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.size; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}
}

func (p *Pool) worker(ctx context.Context, id int) {
	defer p.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			log.Printf("sched: worker %d panicked: %v", id, r)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stopCh:
			return
		default:
		}

		r, ok, err := p.fair.Select(ctx)
		if err != nil {
			log.Printf("sched: worker %d select error: %v", id, err)
			p.idleWait(ctx)
			continue
		}
		if !ok {
			p.idleWait(ctx)
			continue
		}

		p.run(ctx, r)
	}
}

func (p *Pool) idleWait(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-p.stopCh:
	case <-p.wakeup:
	case <-time.After(250 * time.Millisecond):
		// Safety-net poll: covers completions/enqueues that raced the
		// Notify call and found the channel already full.
	}
}

func (p *Pool) run(ctx context.Context, r queue.Request) {
	tier := tierFromPriority(r.TierPriority)
	p.fair.Dispatched(r.TenantID, tier)

	reqCtx, cancel := context.WithDeadline(ctx, r.DeadlineAt)
	defer cancel()

	start := time.Now()
	err := p.handler(reqCtx, r)
	_ = time.Since(start)

	if err != nil {
		log.Printf("sched: request %s failed: %v", r.RequestID, err)
	}

	p.fair.Completed(r.TenantID, tier)
	observability.WorkerPoolSaturation.Set(p.saturation())
	p.Notify()
}

func (p *Pool) saturation() float64 {
	total, _ := p.fair.Snapshot()
	return float64(total) / float64(p.size)
}

// Stop signals all workers to exit and waits up to GracePeriod for them to
// finish in-flight work before returning.
func (p *Pool) Stop() {
	p.stopOnce.Do(func() { close(p.stopCh) })

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(GracePeriod):
		log.Printf("sched: pool stop grace period (%s) exceeded, returning with workers still draining", GracePeriod)
	}
}

// Size reports how many workers the pool was configured with.
func (p *Pool) Size() int {
	return p.size
}
