package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the collectors exposed on /metrics.
	Registry = prometheus.NewRegistry()

	TradeTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "escrow",
			Subsystem: "engine",
			Name:      "trade_transitions_total",
			Help:      "Committed trade state transitions.",
		},
		[]string{"from", "to"},
	)

	TxConflicts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "escrow",
			Subsystem: "engine",
			Name:      "tx_conflicts_total",
			Help:      "Transactions retried after losing a concurrent update race.",
		},
	)

	ExpiredTrades = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "escrow",
			Subsystem: "engine",
			Name:      "expired_trades_total",
			Help:      "Stale trades cancelled by the sweeper.",
		},
	)

	NotificationsDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "escrow",
			Subsystem: "notify",
			Name:      "dropped_total",
			Help:      "Events dropped because the dispatch queue was full.",
		},
	)

	NotificationsFailed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "escrow",
			Subsystem: "notify",
			Name:      "failed_total",
			Help:      "Events the downstream notifier rejected.",
		},
	)

	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "escrow",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "escrow",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
		},
		[]string{"method", "path"},
	)
)

func init() {
	Registry.MustRegister(
		TradeTransitions,
		TxConflicts,
		ExpiredTrades,
		NotificationsDropped,
		NotificationsFailed,
		HTTPRequests,
		HTTPDuration,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler exposes the registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}
