package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the heist ledger.
type Metrics struct {
	// --- Op processing ---
	OpsApplied  *prometheus.CounterVec
	OpsRejected *prometheus.CounterVec
	OpDuration  *prometheus.HistogramVec
	Sequence    prometheus.Gauge

	// --- Ledger state ---
	OpenBets           prometheus.Gauge
	RegisteredAccounts prometheus.Gauge
	SyntheticPrice     prometheus.Gauge
	TrackedAssets      prometheus.Gauge

	// --- Price feed ---
	FeedMessages  *prometheus.CounterVec
	FeedErrors    *prometheus.CounterVec
	FeedToApply   prometheus.Histogram

	// --- Persistence ---
	PersistOpsWritten   prometheus.Counter
	PersistBatchSize    prometheus.Histogram
	PersistBatchDur     prometheus.Histogram
	PersistErrors       *prometheus.CounterVec
	PersistRetry        prometheus.Counter
	PersistLastSequence prometheus.Gauge
	PersistBackpressure prometheus.Counter

	// --- Snapshot & replay ---
	SnapshotTaken     prometheus.Counter
	SnapshotDuration  prometheus.Histogram
	SnapshotSizeBytes prometheus.Gauge
	SnapshotLastSeq   prometheus.Gauge
	ReplayOpsTotal    prometheus.Counter
	ReplayDuration    prometheus.Gauge

	// --- HTTP API ---
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
}

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	applyBuckets := []float64{
		0.000001, 0.000005, 0.00001, 0.000025, 0.00005,
		0.0001, 0.00025, 0.0005, 0.001, 0.002, 0.005, 0.01,
	}

	return &Metrics{
		// Op processing
		OpsApplied: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "heist_ops_applied_total",
			Help: "State-mutating calls successfully applied",
		}, []string{"op_type"}),

		OpsRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "heist_ops_rejected_total",
			Help: "Calls rejected before mutating state",
		}, []string{"op_type", "reason"}),

		OpDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "heist_op_apply_duration_seconds",
			Help:    "Time to apply a single op",
			Buckets: applyBuckets,
		}, []string{"op_type"}),

		Sequence: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "heist_sequence",
			Help: "Current global op sequence number",
		}),

		// Ledger state
		OpenBets: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "heist_open_bets",
			Help: "Accounts with an open bet",
		}),

		RegisteredAccounts: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "heist_registered_accounts",
			Help: "Registration count including re-registrations",
		}),

		SyntheticPrice: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "heist_synthetic_price",
			Help: "Current stHEIST price (approximate float)",
		}),

		TrackedAssets: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "heist_tracked_assets",
			Help: "Assets with a published price",
		}),

		// Price feed
		FeedMessages: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "heist_feed_messages_total",
			Help: "Messages consumed from the price feed",
		}, []string{"subject"}),

		FeedErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "heist_feed_errors_total",
			Help: "Feed messages dropped (parse or apply failure)",
		}, []string{"reason"}),

		FeedToApply: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "heist_feed_to_apply_seconds",
			Help:    "NATS receive to ledger apply complete",
			Buckets: applyBuckets,
		}),

		// Persistence
		PersistOpsWritten: promauto.NewCounter(prometheus.CounterOpts{
			Name: "heist_persist_ops_written_total",
			Help: "Op records written to Postgres",
		}),

		PersistBatchSize: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "heist_persist_batch_size",
			Help:    "Op records per batch",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500},
		}),

		PersistBatchDur: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "heist_persist_batch_duration_seconds",
			Help:    "Postgres batch write duration",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		}),

		PersistErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "heist_persist_errors_total",
			Help: "Persistence errors",
		}, []string{"error_type"}),

		PersistRetry: promauto.NewCounter(prometheus.CounterOpts{
			Name: "heist_persist_retry_total",
			Help: "Persistence retries",
		}),

		PersistLastSequence: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "heist_persist_last_sequence",
			Help: "Last persisted sequence",
		}),

		PersistBackpressure: promauto.NewCounter(prometheus.CounterOpts{
			Name: "heist_persist_backpressure_total",
			Help: "Times the ledger blocked on the persist channel",
		}),

		// Snapshot & replay
		SnapshotTaken: promauto.NewCounter(prometheus.CounterOpts{
			Name: "heist_snapshot_taken_total",
			Help: "Snapshots created",
		}),

		SnapshotDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "heist_snapshot_duration_seconds",
			Help:    "Snapshot creation time",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1.0, 5.0, 10.0},
		}),

		SnapshotSizeBytes: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "heist_snapshot_size_bytes",
			Help: "Last snapshot size",
		}),

		SnapshotLastSeq: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "heist_snapshot_last_sequence",
			Help: "Sequence of last snapshot",
		}),

		ReplayOpsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "heist_replay_ops_total",
			Help: "Op records replayed on startup",
		}),

		ReplayDuration: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "heist_replay_duration_seconds",
			Help: "Total replay time",
		}),

		// HTTP API
		HTTPRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "heist_http_requests_total",
			Help: "API requests by route and status",
		}, []string{"route", "status"}),

		HTTPDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "heist_http_request_duration_seconds",
			Help:    "API request latency",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		}, []string{"route"}),
	}
}
