// Package metrics exposes relay counters to prometheus. A nil *Metrics is
// valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/cyberinferno/galaxy-relay/protocol"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "galaxy_relay"

// Metrics holds the relay collectors and the registry they live in.
type Metrics struct {
	registry *prometheus.Registry

	connections prometheus.Gauge
	messages    *prometheus.CounterVec
	denied      *prometheus.CounterVec
	logins      *prometheus.CounterVec
	sessions    prometheus.Gauge
	games       *prometheus.CounterVec
	choiceWait  prometheus.Histogram
}

// New creates the collectors in a fresh registry, together with the Go
// runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections",
			Help:      "Open peer connections.",
		}),
		messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_received_total",
			Help:      "Decoded inbound messages by type.",
		}, []string{"type"}),
		denied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_denied_total",
			Help:      "Inbound messages answered with DENIED, by type.",
		}, []string{"type"}),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "logins_total",
			Help:      "Login attempts by result.",
		}, []string{"result"}),
		sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions",
			Help:      "Live lobby sessions.",
		}),
		games: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "games_total",
			Help:      "Games by outcome: started, finished, aborted.",
		}, []string{"outcome"}),
		choiceWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "choice_wait_seconds",
			Help:      "Time from CHOOSE to the matching reply.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
	}

	m.registry.MustRegister(
		m.connections, m.messages, m.denied, m.logins, m.sessions, m.games, m.choiceWait,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// Registry returns the registry backing m.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}

	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ConnOpened counts a new connection.
func (m *Metrics) ConnOpened() {
	if m != nil {
		m.connections.Inc()
	}
}

// ConnClosed counts a released connection.
func (m *Metrics) ConnClosed() {
	if m != nil {
		m.connections.Dec()
	}
}

// Received counts a decoded inbound message.
func (m *Metrics) Received(t protocol.MsgType) {
	if m != nil {
		m.messages.WithLabelValues(t.String()).Inc()
	}
}

// Denied counts a rejected inbound message.
func (m *Metrics) Denied(t protocol.MsgType) {
	if m != nil {
		m.denied.WithLabelValues(t.String()).Inc()
	}
}

// Login counts a login attempt.
func (m *Metrics) Login(ok bool) {
	if m == nil {
		return
	}

	result := "denied"
	if ok {
		result = "ok"
	}
	m.logins.WithLabelValues(result).Inc()
}

// Sessions sets the live session count.
func (m *Metrics) Sessions(n int) {
	if m != nil {
		m.sessions.Set(float64(n))
	}
}

// Game counts a game outcome.
func (m *Metrics) Game(outcome string) {
	if m != nil {
		m.games.WithLabelValues(outcome).Inc()
	}
}

// ChoiceAnswered records how long a player took to answer.
func (m *Metrics) ChoiceAnswered(d time.Duration) {
	if m != nil {
		m.choiceWait.Observe(d.Seconds())
	}
}
