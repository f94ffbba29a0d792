package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"voxelsession.ai/internal/session"
)

// Metrics holds the session server collectors. It also serves as a
// session.Recorder so violations and disconnects are counted as they
// happen.
type Metrics struct {
	ActiveSessions prometheus.Gauge
	TotalSessions  prometheus.Counter

	Disconnects *prometheus.CounterVec
	Violations  *prometheus.CounterVec

	ChatBroadcasts prometheus.Counter
	DispatchDepth  prometheus.Gauge

	TickDuration prometheus.Histogram
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "voxelsession_active_sessions",
			Help: "Number of connected sessions",
		}),
		TotalSessions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "voxelsession_sessions_total",
			Help: "Total number of sessions that completed the handshake",
		}),
		Disconnects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "voxelsession_disconnects_total",
			Help: "Disconnects by reason",
		}, []string{"reason"}),
		Violations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "voxelsession_violations_total",
			Help: "Physics violations by kind",
		}, []string{"kind"}),
		ChatBroadcasts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "voxelsession_chat_broadcasts_total",
			Help: "Chat messages broadcast to all sessions",
		}),
		DispatchDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "voxelsession_dispatch_queue_depth",
			Help: "Links waiting in all ordered dispatch chains",
		}),
		TickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "voxelsession_tick_duration_seconds",
			Help:    "Time spent in one hub tick",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05},
		}),
	}
	reg.MustRegister(
		m.ActiveSessions,
		m.TotalSessions,
		m.Disconnects,
		m.Violations,
		m.ChatBroadcasts,
		m.DispatchDepth,
		m.TickDuration,
	)
	return m
}

func (m *Metrics) RecordJoin() {
	if m == nil {
		return
	}
	m.TotalSessions.Inc()
	m.ActiveSessions.Inc()
}

func (m *Metrics) RecordLeave() {
	if m == nil {
		return
	}
	m.ActiveSessions.Dec()
}

func (m *Metrics) RecordChatBroadcast() {
	if m == nil {
		return
	}
	m.ChatBroadcasts.Inc()
}

// RecordTick stores the duration of one tick in seconds and the summed
// dispatch queue depth seen at its end.
func (m *Metrics) RecordTick(seconds float64, depth int) {
	if m == nil {
		return
	}
	m.TickDuration.Observe(seconds)
	m.DispatchDepth.Set(float64(depth))
}

func (m *Metrics) RecordViolation(v session.Violation) {
	if m == nil {
		return
	}
	m.Violations.WithLabelValues(v.Kind).Inc()
}

func (m *Metrics) RecordDisconnect(d session.DisconnectRecord) {
	if m == nil {
		return
	}
	m.Disconnects.WithLabelValues(d.Reason).Inc()
}
