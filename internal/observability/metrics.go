package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the coverage engine.
type Metrics struct {
	// --- Engine operations ---
	OpsApplied  *prometheus.CounterVec
	OpsRejected *prometheus.CounterVec
	OpDuration  *prometheus.HistogramVec
	Sequence    prometheus.Gauge

	// --- Pool accounting ---
	PoolBalance       prometheus.Gauge
	FeeRevenue        prometheus.Gauge
	PremiumsCollected prometheus.Counter
	PayoutsTotal      prometheus.Counter
	RefundsTotal      prometheus.Counter
	WithdrawalsTotal  prometheus.Counter

	// --- Lifecycle state ---
	ActivePolicies prometheus.Gauge
	ClaimsPending  prometheus.Gauge

	// --- Payment rail ---
	RailCalls    *prometheus.CounterVec
	RailDuration *prometheus.HistogramVec

	// --- Event side channel ---
	EventsEmitted *prometheus.CounterVec
	SinkDrops     *prometheus.CounterVec

	// --- Audit persistence ---
	AuditEventsWritten prometheus.Counter
	AuditErrors        prometheus.Counter
	AuditBatchSize     prometheus.Histogram

	// --- HTTP API ---
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
}

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	opBuckets := []float64{
		0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005,
		0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0,
	}

	return &Metrics{
		OpsApplied: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "cover_engine_ops_applied_total",
			Help: "Operations successfully committed by the engine",
		}, []string{"op"}),

		OpsRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "cover_engine_ops_rejected_total",
			Help: "Operations rejected (validation, payment, authorization)",
		}, []string{"op", "reason"}),

		OpDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "cover_engine_op_duration_seconds",
			Help:    "End-to-end operation duration including the rail call",
			Buckets: opBuckets,
		}, []string{"op"}),

		Sequence: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "cover_engine_sequence",
			Help: "Current event sequence number",
		}),

		PoolBalance: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "cover_pool_balance",
			Help: "Current premium pool balance",
		}),

		FeeRevenue: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "cover_fee_revenue_units",
			Help: "Accumulated claim processing fee revenue",
		}),

		PremiumsCollected: promauto.NewCounter(prometheus.CounterOpts{
			Name: "cover_premiums_collected_total",
			Help: "Total premiums credited to the pool",
		}),

		PayoutsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "cover_claim_payouts_total",
			Help: "Total approved claim payouts debited from the pool",
		}),

		RefundsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "cover_cancellation_refunds_total",
			Help: "Total prorated refunds debited from the pool",
		}),

		WithdrawalsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "cover_admin_withdrawals_total",
			Help: "Total administrative withdrawals debited from the pool",
		}),

		ActivePolicies: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "cover_active_policies",
			Help: "Policies currently active",
		}),

		ClaimsPending: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "cover_claims_pending",
			Help: "Claims awaiting adjudication",
		}),

		RailCalls: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "cover_rail_calls_total",
			Help: "Payment rail calls by direction and outcome",
		}, []string{"call", "outcome"}),

		RailDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "cover_rail_call_duration_seconds",
			Help:    "Payment rail call latency",
			Buckets: opBuckets,
		}, []string{"call"}),

		EventsEmitted: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "cover_events_emitted_total",
			Help: "Envelopes emitted to the event sink",
		}, []string{"event_type"}),

		SinkDrops: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "cover_sink_drops_total",
			Help: "Envelopes dropped due to a full sink channel",
		}, []string{"sink"}),

		AuditEventsWritten: promauto.NewCounter(prometheus.CounterOpts{
			Name: "cover_audit_events_written_total",
			Help: "Envelopes written to the audit log",
		}),

		AuditErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "cover_audit_errors_total",
			Help: "Audit log write failures",
		}),

		AuditBatchSize: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "cover_audit_batch_size",
			Help:    "Envelopes per audit write batch",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250},
		}),

		HTTPRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "cover_http_requests_total",
			Help: "API requests by route and status",
		}, []string{"route", "status"}),

		HTTPDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "cover_http_request_duration_seconds",
			Help:    "API request latency",
			Buckets: opBuckets,
		}, []string{"route"}),
	}
}
