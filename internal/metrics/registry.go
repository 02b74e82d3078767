package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "fraud_engine"

// Registry holds all engine metrics. Construct one per process; tests
// pass their own prometheus registerer to avoid collisions.
type Registry struct {
	// Investigation lifecycle
	InvestigationsStarted   prometheus.Counter
	InvestigationsCompleted prometheus.Counter
	InvestigationsFailed    *prometheus.CounterVec
	InvestigationsSkipped   prometheus.Counter
	InvestigationDuration   prometheus.Histogram

	// Scoring
	TransactionsScored  prometheus.Counter
	TransactionsDropped prometheus.Counter
	FraudPredictions    prometheus.Counter
	HeuristicOnlyRuns   prometheus.Counter
	ScoringBatchSize    prometheus.Histogram

	// Stores
	FetchRetries       prometheus.Counter
	CacheHits          prometheus.Counter
	CacheMisses        prometheus.Counter
	ExcludedFromMatrix prometheus.Counter
}

// NewRegistry creates the engine metrics against the given registerer
func NewRegistry(reg prometheus.Registerer) *Registry {
	factory := promauto.With(reg)

	return &Registry{
		InvestigationsStarted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "investigation",
			Name:      "started_total",
			Help:      "Total number of investigations started",
		}),
		InvestigationsCompleted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "investigation",
			Name:      "completed_total",
			Help:      "Total number of investigations completed successfully",
		}),
		InvestigationsFailed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "investigation",
			Name:      "failed_total",
			Help:      "Total number of failed investigations",
		}, []string{"reason"}),
		InvestigationsSkipped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "investigation",
			Name:      "skipped_total",
			Help:      "Investigations skipped because a completed run already exists",
		}),
		InvestigationDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "investigation",
			Name:      "duration_seconds",
			Help:      "Wall-clock investigation duration",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 15), // 10ms to ~5m
		}),

		TransactionsScored: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scoring",
			Name:      "transactions_total",
			Help:      "Total number of transactions scored",
		}),
		TransactionsDropped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scoring",
			Name:      "transactions_dropped_total",
			Help:      "Transactions dropped by the max_transactions cap",
		}),
		FraudPredictions: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scoring",
			Name:      "fraud_predictions_total",
			Help:      "Transactions classified as fraud",
		}),
		HeuristicOnlyRuns: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scoring",
			Name:      "heuristic_only_batches_total",
			Help:      "Batches scored without the anomaly model due to insufficient samples",
		}),
		ScoringBatchSize: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "scoring",
			Name:      "batch_size",
			Help:      "Observed scoring batch sizes",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12), // 1 to 2048
		}),

		FetchRetries: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "fetch_retries_total",
			Help:      "Transaction fetch attempts beyond the first",
		}),
		CacheHits: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "cache_hits_total",
			Help:      "Completed-investigation cache hits",
		}),
		CacheMisses: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "cache_misses_total",
			Help:      "Completed-investigation cache misses",
		}),
		ExcludedFromMatrix: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "evaluation",
			Name:      "excluded_total",
			Help:      "Transactions excluded from confusion matrices for missing ground truth",
		}),
	}
}

// ObserveInvestigation records the duration of a finished investigation
func (r *Registry) ObserveInvestigation(start time.Time) {
	r.InvestigationDuration.Observe(time.Since(start).Seconds())
}
