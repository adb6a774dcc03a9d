package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/pipewatch/pipewatch/internal/event"
)

func TestNewRegistersCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.Ticks.Inc()
	m.Ticks.Inc()
	m.LiveSessions.Set(3)

	if got := testutil.ToFloat64(m.Ticks); got != 2 {
		t.Errorf("ticks = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.LiveSessions); got != 3 {
		t.Errorf("live sessions = %v, want 3", got)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if len(families) == 0 {
		t.Fatal("nothing registered")
	}
}

func TestSinkCountsSessionEvents(t *testing.T) {
	m := New(prometheus.NewRegistry())
	sink := m.Sink()

	sink.Publish(event.Event{Kind: event.SessionFailed, Reason: event.ReasonAccessDenied})
	sink.Publish(event.Event{Kind: event.SessionFailed, Reason: event.ReasonAccessDenied})
	sink.Publish(event.Event{Kind: event.SessionFailed, Reason: event.ReasonConnectTimeout})
	sink.Publish(event.Event{Kind: event.Message, Classification: "text", Size: 10})
	sink.Publish(event.Event{Kind: event.Message, Classification: "binary", Size: 6})
	sink.Publish(event.Event{Kind: event.PipeAdded, Pipe: "ignored"})

	if got := testutil.ToFloat64(m.SessionFailures.WithLabelValues(event.ReasonAccessDenied)); got != 2 {
		t.Errorf("access_denied failures = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.SessionFailures.WithLabelValues(event.ReasonConnectTimeout)); got != 1 {
		t.Errorf("connect_timeout failures = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.Messages.WithLabelValues("text")); got != 1 {
		t.Errorf("text messages = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.BytesRead); got != 16 {
		t.Errorf("bytes read = %v, want 16", got)
	}
}

func TestTwoRegistriesDoNotCollide(t *testing.T) {
	a := New(prometheus.NewRegistry())
	b := New(prometheus.NewRegistry())

	a.Ticks.Inc()
	if got := testutil.ToFloat64(b.Ticks); got != 0 {
		t.Errorf("registries must be independent, got %v", got)
	}
}
