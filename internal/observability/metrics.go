// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Lineage metrics
	Promotions       *prometheus.CounterVec
	TrackedWallets   *prometheus.GaugeVec
	SeedTransactions *prometheus.CounterVec

	// Correlation metrics
	AssetMentions *prometheus.CounterVec
	Transitions   *prometheus.CounterVec
	Convergences  *prometheus.CounterVec

	// Notification metrics
	NotificationsSent   *prometheus.CounterVec
	NotificationsFailed *prometheus.CounterVec

	// Subscription metrics
	ActiveSubscriptions *prometheus.GaugeVec
	SubscribeErrors     *prometheus.CounterVec
	EventsDropped       *prometheus.CounterVec
	HandlerPanics       prometheus.Counter

	// Latency metrics
	RPCCallLatency *prometheus.HistogramVec
	EventLatency   *prometheus.HistogramVec
	NotifyLatency  prometheus.Histogram

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "lineage_tracker"
	}

	return &Metrics{
		Promotions: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "lineage",
			Name:      "promotions_total",
			Help:      "Promotion attempts by lineage and outcome",
		}, []string{"lineage", "outcome"}),
		TrackedWallets: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "lineage",
			Name:      "tracked_wallets",
			Help:      "Derived wallets currently tracked per lineage",
		}, []string{"lineage"}),
		SeedTransactions: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "lineage",
			Name:      "seed_transactions_total",
			Help:      "Seed wallet transactions by lineage and result",
		}, []string{"lineage", "result"}),

		AssetMentions: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "correlation",
			Name:      "asset_mentions_total",
			Help:      "Asset mentions extracted from derived wallet transactions",
		}, []string{"lineage"}),
		Transitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "correlation",
			Name:      "transitions_total",
			Help:      "Correlation table transitions by source and target state",
		}, []string{"from", "to"}),
		Convergences: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "correlation",
			Name:      "convergences_total",
			Help:      "Convergence notifications decided, split by first fire and refire",
		}, []string{"kind"}),

		NotificationsSent: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notify",
			Name:      "sent_total",
			Help:      "Notifications delivered per notifier",
		}, []string{"notifier"}),
		NotificationsFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notify",
			Name:      "failed_total",
			Help:      "Notification delivery failures per notifier",
		}, []string{"notifier"}),

		ActiveSubscriptions: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ws",
			Name:      "active_subscriptions",
			Help:      "Open log subscriptions by kind",
		}, []string{"kind"}),
		SubscribeErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ws",
			Name:      "subscribe_errors_total",
			Help:      "Failed log subscription attempts by kind",
		}, []string{"kind"}),
		EventsDropped: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tracker",
			Name:      "events_dropped_total",
			Help:      "Notifications dropped before reaching the table, by reason",
		}, []string{"reason"}),
		HandlerPanics: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tracker",
			Name:      "handler_panics_total",
			Help:      "Recovered panics in event handlers",
		}),

		RPCCallLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "rpc",
			Name:      "call_duration_seconds",
			Help:      "RPC call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		EventLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "tracker",
			Name:      "event_duration_seconds",
			Help:      "Time to handle one log notification",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind"}),
		NotifyLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "notify",
			Name:      "send_duration_seconds",
			Help:      "Time to resolve, format and deliver one alert",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),

		DBQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "db",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "db",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordPromotion records one PromoteOrRefresh outcome.
func RecordPromotion(lineage, outcome string) {
	DefaultMetrics.Promotions.WithLabelValues(lineage, outcome).Inc()
}

// SetTrackedWallets sets the tracked wallet gauge for a lineage.
func SetTrackedWallets(lineage string, n int) {
	DefaultMetrics.TrackedWallets.WithLabelValues(lineage).Set(float64(n))
}

// RecordSeedTransaction records how a seed transaction was handled.
func RecordSeedTransaction(lineage, result string) {
	DefaultMetrics.SeedTransactions.WithLabelValues(lineage, result).Inc()
}

// RecordMention records an extracted asset mention.
func RecordMention(lineage string) {
	DefaultMetrics.AssetMentions.WithLabelValues(lineage).Inc()
}

// RecordTransition records a correlation table transition.
func RecordTransition(from, to string, notify, refire bool) {
	DefaultMetrics.Transitions.WithLabelValues(from, to).Inc()
	if !notify {
		return
	}
	kind := "first"
	if refire {
		kind = "refire"
	}
	DefaultMetrics.Convergences.WithLabelValues(kind).Inc()
}

// RecordNotification records a delivery attempt.
func RecordNotification(notifier string, err error) {
	if err != nil {
		DefaultMetrics.NotificationsFailed.WithLabelValues(notifier).Inc()
		return
	}
	DefaultMetrics.NotificationsSent.WithLabelValues(notifier).Inc()
}

// RecordNotifyLatency records the end-to-end gateway send time.
func RecordNotifyLatency(seconds float64) {
	DefaultMetrics.NotifyLatency.Observe(seconds)
}

// AddActiveSubscriptions adjusts the open subscription gauge.
func AddActiveSubscriptions(kind string, delta int) {
	DefaultMetrics.ActiveSubscriptions.WithLabelValues(kind).Add(float64(delta))
}

// RecordSubscribeError records a failed subscription attempt.
func RecordSubscribeError(kind string) {
	DefaultMetrics.SubscribeErrors.WithLabelValues(kind).Inc()
}

// RecordDropped records a notification dropped before correlation.
func RecordDropped(reason string) {
	DefaultMetrics.EventsDropped.WithLabelValues(reason).Inc()
}

// RecordPanic records a recovered handler panic.
func RecordPanic() {
	DefaultMetrics.HandlerPanics.Inc()
}

// RecordEventLatency records how long one notification took to handle.
func RecordEventLatency(kind string, seconds float64) {
	DefaultMetrics.EventLatency.WithLabelValues(kind).Observe(seconds)
}

// RecordRPCLatency records RPC call latency.
func RecordRPCLatency(method string, seconds float64) {
	DefaultMetrics.RPCCallLatency.WithLabelValues(method).Observe(seconds)
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}
