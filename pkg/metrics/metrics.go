package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "foodorder"

// Menu fetch outcomes.
const (
	MenuFetchOK       = "ok"
	MenuFetchFallback = "fallback"
	MenuFetchStale    = "stale"
)

// Metrics bundles the collectors shared by the API and workers. A nil *Metrics
// is valid and records nothing.
type Metrics struct {
	httpDuration    *prometheus.HistogramVec
	menuFetch       *prometheus.CounterVec
	checkout        *prometheus.CounterVec
	feedSubscribers *prometheus.GaugeVec
	outboxPublish   *prometheus.CounterVec
	cronJobs        *prometheus.HistogramVec
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		return &Metrics{}
	}
	httpDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "Duration of HTTP requests by route and status.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route", "status"})
	menuFetch := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "menu_fetch_total",
		Help:      "Menu fetches by outcome.",
	}, []string{"outcome"})
	checkout := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "checkout_total",
		Help:      "Checkout submissions by outcome.",
	}, []string{"outcome"})
	feedSubscribers := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "order_feed_subscribers",
		Help:      "Live order feed subscriptions.",
	}, []string{"scope"})
	outboxPublish := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "outbox_publish_total",
		Help:      "Outbox publish attempts by transport and result.",
	}, []string{"transport", "result"})
	cronJobs := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "cron_job_duration_seconds",
		Help:      "Maintenance job runs by job and result.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"job", "result"})
	reg.MustRegister(httpDuration, menuFetch, checkout, feedSubscribers, outboxPublish, cronJobs)
	return &Metrics{
		httpDuration:    httpDuration,
		menuFetch:       menuFetch,
		checkout:        checkout,
		feedSubscribers: feedSubscribers,
		outboxPublish:   outboxPublish,
		cronJobs:        cronJobs,
	}
}

// ObserveHTTP records a served request.
func (m *Metrics) ObserveHTTP(method, route string, status int, duration time.Duration) {
	if m == nil || m.httpDuration == nil {
		return
	}
	m.httpDuration.WithLabelValues(method, normalizeLabel(route), strconv.Itoa(status)).Observe(duration.Seconds())
}

// MenuFetch counts a menu fetch outcome.
func (m *Metrics) MenuFetch(outcome string) {
	if m == nil || m.menuFetch == nil {
		return
	}
	m.menuFetch.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// Checkout counts a checkout result; outcome is "ok" or an error code.
func (m *Metrics) Checkout(outcome string) {
	if m == nil || m.checkout == nil {
		return
	}
	m.checkout.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// FeedOpened tracks a new order feed subscription.
func (m *Metrics) FeedOpened(scope string) {
	if m == nil || m.feedSubscribers == nil {
		return
	}
	m.feedSubscribers.WithLabelValues(normalizeLabel(scope)).Inc()
}

// FeedClosed reverses FeedOpened.
func (m *Metrics) FeedClosed(scope string) {
	if m == nil || m.feedSubscribers == nil {
		return
	}
	m.feedSubscribers.WithLabelValues(normalizeLabel(scope)).Dec()
}

// OutboxPublish counts a publish attempt.
func (m *Metrics) OutboxPublish(transport, result string) {
	if m == nil || m.outboxPublish == nil {
		return
	}
	m.outboxPublish.WithLabelValues(normalizeLabel(transport), normalizeLabel(result)).Inc()
}

// CronJob records one maintenance job run; result is "success" or "failure".
func (m *Metrics) CronJob(job, result string, duration time.Duration) {
	if m == nil || m.cronJobs == nil {
		return
	}
	m.cronJobs.WithLabelValues(normalizeLabel(job), normalizeLabel(result)).Observe(duration.Seconds())
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
