// Package metrics exposes Prometheus counters for the bot's request path.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every collector the bot registers. Construct once with
// NewMetrics and share across packages.
type Metrics struct {
	MessagesProcessed *prometheus.CounterVec // status: ok, denied, limited, quota, error
	AccessDenials     *prometheus.CounterVec // reason: not_approved, expired, not_member
	RateLimited       *prometheus.CounterVec // domain: message, media, command
	QuotaRejections   *prometheus.CounterVec // feature: request, token, search, imagine, doc, img, pro
	ProviderRequests  *prometheus.CounterVec // model, status: ok, error
	ProviderLatency   *prometheus.HistogramVec
	BroadcastsSent    prometheus.Counter
}

// NewMetrics registers every collector on the given registerer. Pass
// prometheus.DefaultRegisterer in production and a fresh registry in tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		MessagesProcessed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "bot_messages_processed_total",
			Help: "Inbound messages by final outcome",
		}, []string{"status"}),
		AccessDenials: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "bot_access_denials_total",
			Help: "Requests rejected by the access controller",
		}, []string{"reason"}),
		RateLimited: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "bot_rate_limited_total",
			Help: "Requests rejected by a cooldown window",
		}, []string{"domain"}),
		QuotaRejections: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "bot_quota_rejections_total",
			Help: "Requests rejected by a daily quota",
		}, []string{"feature"}),
		ProviderRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "bot_provider_requests_total",
			Help: "Upstream model calls by result",
		}, []string{"model", "status"}),
		ProviderLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "bot_provider_latency_seconds",
			Help:    "Upstream model call duration",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 40, 60},
		}, []string{"model"}),
		BroadcastsSent: factory.NewCounter(prometheus.CounterOpts{
			Name: "bot_broadcasts_sent_total",
			Help: "Broadcast messages delivered to users",
		}),
	}
}
