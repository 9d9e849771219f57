// Package metrics exposes the service counters. A nil *Metrics is valid and
// records nothing.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "chat"

type Metrics struct {
	reg prometheus.Gatherer

	translations *prometheus.CounterVec // result: cached|translated|own|failed
	feedEvents   *prometheus.CounterVec // result: applied|duplicate|malformed
	feedErrors   prometheus.Counter
	pushes       *prometheus.CounterVec // result: sent|skipped|failed
	sends        prometheus.Counter
	events       *prometheus.CounterVec // result: delivered|failed
	sessions     prometheus.Gauge
}

// New registers the collectors on reg. Pass prometheus.NewRegistry() in
// tests to avoid duplicate registration panics.
func New(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		reg: reg,
		translations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "translations_total",
			Help:      "Translation resolutions by outcome.",
		}, []string{"result"}),
		feedEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feed_events_total",
			Help:      "Feed records observed by ingestors.",
		}, []string{"result"}),
		feedErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feed_errors_total",
			Help:      "Subscriptions that ended with an error.",
		}),
		pushes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "push_notifications_total",
			Help:      "Push notification attempts by outcome.",
		}, []string{"result"}),
		sends: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_sent_total",
			Help:      "Messages appended through the send path.",
		}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "messages.created deliveries reported by the broker writer.",
		}, []string{"result"}),
		sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ws_sessions",
			Help:      "Open websocket sessions.",
		}),
	}
	reg.MustRegister(m.translations, m.feedEvents, m.feedErrors, m.pushes, m.sends, m.events, m.sessions)
	return m
}

// Handler serves the registry in the exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

func (m *Metrics) Translation(result string) {
	if m == nil {
		return
	}
	m.translations.WithLabelValues(result).Inc()
}

func (m *Metrics) FeedEvent(result string) {
	if m == nil {
		return
	}
	m.feedEvents.WithLabelValues(result).Inc()
}

func (m *Metrics) FeedError() {
	if m == nil {
		return
	}
	m.feedErrors.Inc()
}

func (m *Metrics) Push(result string) {
	if m == nil {
		return
	}
	m.pushes.WithLabelValues(result).Inc()
}

func (m *Metrics) Sent() {
	if m == nil {
		return
	}
	m.sends.Inc()
}

// EventsPublished counts n events with the given delivery result.
func (m *Metrics) EventsPublished(result string, n int) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(result).Add(float64(n))
}

// Sessions sets the number of open websocket sessions.
func (m *Metrics) Sessions(n int) {
	if m == nil {
		return
	}
	m.sessions.Set(float64(n))
}
