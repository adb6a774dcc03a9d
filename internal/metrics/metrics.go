// Package metrics exposes the engine's Prometheus instrumentation. All
// collectors register against a caller-supplied registry so tests can use a
// fresh one.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/pipewatch/pipewatch/internal/event"
)

type Metrics struct {
	// Loop counters.
	Ticks               prometheus.Counter
	EnumerationFailures prometheus.Counter
	PipesAdded          prometheus.Counter
	PipesRemoved        prometheus.Counter
	SessionsStarted     prometheus.Counter

	// Session outcomes.
	SessionFailures *prometheus.CounterVec
	Messages        *prometheus.CounterVec
	BytesRead       prometheus.Counter

	// Point-in-time state.
	LiveSessions prometheus.Gauge
	TrackedPipes prometheus.Gauge
}

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Ticks: f.NewCounter(prometheus.CounterOpts{
			Name: "pipewatch_ticks_total",
			Help: "Enumeration ticks executed.",
		}),
		EnumerationFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "pipewatch_enumeration_failures_total",
			Help: "Ticks skipped because the enumerator failed.",
		}),
		PipesAdded: f.NewCounter(prometheus.CounterOpts{
			Name: "pipewatch_pipes_added_total",
			Help: "Pipe names that appeared since the previous tick.",
		}),
		PipesRemoved: f.NewCounter(prometheus.CounterOpts{
			Name: "pipewatch_pipes_removed_total",
			Help: "Pipe names that vanished since the previous tick.",
		}),
		SessionsStarted: f.NewCounter(prometheus.CounterOpts{
			Name: "pipewatch_sessions_started_total",
			Help: "Capture sessions spawned for added pipes.",
		}),
		SessionFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "pipewatch_session_failures_total",
			Help: "Sessions that ended in failure, by reason.",
		}, []string{"reason"}),
		Messages: f.NewCounterVec(prometheus.CounterOpts{
			Name: "pipewatch_messages_total",
			Help: "Messages captured, by classification.",
		}, []string{"classification"}),
		BytesRead: f.NewCounter(prometheus.CounterOpts{
			Name: "pipewatch_bytes_read_total",
			Help: "Payload bytes read from pipe servers.",
		}),
		LiveSessions: f.NewGauge(prometheus.GaugeOpts{
			Name: "pipewatch_live_sessions",
			Help: "Sessions currently in the live table.",
		}),
		TrackedPipes: f.NewGauge(prometheus.GaugeOpts{
			Name: "pipewatch_tracked_pipes",
			Help: "Pipes in the most recent filtered snapshot.",
		}),
	}
}

// Sink observes the event stream for the counters driven by sessions rather
// than by the loop: failures by reason, messages by classification, bytes.
func (m *Metrics) Sink() event.Sink {
	return event.SinkFunc(func(e event.Event) {
		switch e.Kind {
		case event.SessionFailed:
			m.SessionFailures.WithLabelValues(e.Reason).Inc()
		case event.Message:
			m.Messages.WithLabelValues(e.Classification).Inc()
			m.BytesRead.Add(float64(e.Size))
		}
	})
}
