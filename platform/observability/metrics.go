// Package observability holds the Prometheus metrics for the admission,
// queue, scheduler, resilience, and accounting subsystems. Adapted from
// control_plane/observability/metrics.go's promauto vector style, renamed
// from the reconciliation domain (flux_*) to the RAG-serving domain.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// --- Admission ---

	AdmissionAccepted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ragforge_admission_accepted_total",
		Help: "Requests accepted by the admission gate, by tenant tier",
	}, []string{"tier"})

	AdmissionRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ragforge_admission_rejections_total",
		Help: "Requests rejected by the admission gate, by reason",
	}, []string{"reason"})

	AdmissionQuotaErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ragforge_admission_quota_errors_total",
		Help: "Daily quota store errors encountered during admission (fail-open)",
	})

	// --- Queue ---

	QueueDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "ragforge_queue_depth",
		Help: "Current number of requests in the queue",
	}, []string{"level"}) // local, global, dlq

	QueueOldestAge = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "ragforge_queue_oldest_request_age_seconds",
		Help: "Age of the oldest queued request",
	}, []string{"tier"})

	QueueOverflows = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ragforge_queue_overflow_total",
		Help: "Enqueue attempts rejected because the push to the global queue failed (the global level has no capacity limit)",
	})

	QueueExpired = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ragforge_queue_expired_total",
		Help: "Requests swept to the dead-letter queue after their deadline passed",
	}, []string{"level"})

	// --- Scheduler ---

	SchedulerDispatches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ragforge_scheduler_dispatch_total",
		Help: "Requests dispatched by the fair scheduler",
	}, []string{"tier", "path"}) // path: tier_cap, work_conserving

	SchedulerInFlight = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "ragforge_scheduler_in_flight",
		Help: "Current in-flight request count",
	}, []string{"tier"})

	SchedulerNoisyNeighbor = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ragforge_scheduler_noisy_neighbor_total",
		Help: "Noisy-neighbour threshold crossings, by tenant and severity",
	}, []string{"tenant_id", "severity"}) // severity: warn, alert

	WorkerPoolSaturation = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ragforge_worker_pool_saturation",
		Help: "Ratio of active workers to pool size (0.0-1.0)",
	})

	// --- Resilience ---

	CircuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "ragforge_circuit_breaker_state",
		Help: "Circuit breaker state (0=closed, 1=half_open, 2=open)",
	}, []string{"service", "tenant_id"})

	CircuitBreakerTrips = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ragforge_circuit_breaker_trips_total",
		Help: "Circuit breaker open transitions",
	}, []string{"service", "tenant_id"})

	RetryAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ragforge_retry_attempts_total",
		Help: "Retry attempts issued per resilience adapter call",
	}, []string{"service", "outcome"}) // outcome: success, transient_failure, deadline_exceeded

	// --- RAG pipeline ---

	RetrievalLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ragforge_retrieval_latency_seconds",
		Help:    "Hybrid retrieval latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"source"}) // bm25, vector, merged

	LLMLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ragforge_llm_latency_seconds",
		Help:    "LLM call latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"tenant_id"})

	LLMTokensUsed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ragforge_llm_tokens_total",
		Help: "LLM tokens consumed",
	}, []string{"tenant_id"})

	CrossTenantLeakage = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ragforge_cross_tenant_leakage_total",
		Help: "Tenant-isolation check failures, by requesting tenant",
	}, []string{"tenant_id"})

	PIIRedactions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ragforge_pii_redactions_total",
		Help: "PII redactions performed, by pattern kind",
	}, []string{"kind"})

	// --- Accounting ---

	CostEventAmount = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ragforge_cost_event_amount_total",
		Help: "Accumulated cost units emitted by CostEvent, by tenant and kind",
	}, []string{"tenant_id", "kind"})

	SecurityEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ragforge_security_events_total",
		Help: "Security events emitted, by tenant and kind",
	}, []string{"tenant_id", "kind"})
)
