// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the engine.
type Metrics struct {
	// Trade metrics
	TradesProcessed prometheus.Counter
	TradesRejected  *prometheus.CounterVec
	TradesDeferred  prometheus.Counter
	TradesReplayed  prometheus.Counter

	// Epoch metrics
	EpochActivations   prometheus.Counter
	PositionsApplied   prometheus.Counter
	PositionsWithdrawn prometheus.Counter
	AnchorManeuvers    prometheus.Counter

	// External collaborator metrics
	DecryptionRequests prometheus.Counter
	YieldDeposits      prometheus.Counter
	YieldDepositErrors prometheus.Counter

	// Storage metrics
	StorageErrors *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "liquid_ip"
	}

	return &Metrics{
		TradesProcessed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "trades_processed_total",
			Help:      "Total number of trade attempts evaluated",
		}),
		TradesRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "trades_rejected_total",
			Help:      "Total number of trade attempts rejected by reason",
		}, []string{"reason"}),
		TradesDeferred: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "trades_deferred_total",
			Help:      "Total number of trades deferred awaiting decryption",
		}),
		TradesReplayed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "trades_replayed_total",
			Help:      "Total number of deferred trades replayed after resolution",
		}),

		EpochActivations: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "epoch_activations_total",
			Help:      "Total number of epoch activations",
		}),
		PositionsApplied: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "positions_applied_total",
			Help:      "Total number of liquidity positions placed",
		}),
		PositionsWithdrawn: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "positions_withdrawn_total",
			Help:      "Total number of liquidity positions withdrawn",
		}),
		AnchorManeuvers: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "anchor_maneuvers_total",
			Help:      "Total number of anchor maneuvers executed",
		}),

		DecryptionRequests: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "oracle",
			Name:      "decryption_requests_total",
			Help:      "Total number of decryption requests issued",
		}),
		YieldDeposits: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "yield",
			Name:      "deposits_total",
			Help:      "Total number of proceeds deposits to the yield venue",
		}),
		YieldDepositErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "yield",
			Name:      "deposit_errors_total",
			Help:      "Total number of failed yield deposits left pending",
		}),

		StorageErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "errors_total",
			Help:      "Total number of storage errors by store",
		}, []string{"store"}),
	}
}

// Handler returns an HTTP handler serving the metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
