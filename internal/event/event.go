// Package event defines the structured events the monitor and its sessions
// publish, and the sinks that deliver them to the console, the session
// registry and the live feed.
package event

import (
	"encoding/json"
	"time"

	"github.com/pipewatch/pipewatch/internal/pipes"
)

// Kind classifies monitor and session events.
type Kind int

const (
	PipeAdded Kind = iota
	PipeRemoved
	SessionConnected
	SessionClosed
	SessionFailed
	Message
)

var kindNames = map[Kind]string{
	PipeAdded:        "pipe_added",
	PipeRemoved:      "pipe_removed",
	SessionConnected: "session_connected",
	SessionClosed:    "session_closed",
	SessionFailed:    "session_failed",
	Message:          "message",
}

var kindFromName = map[string]Kind{
	"pipe_added":        PipeAdded,
	"pipe_removed":      PipeRemoved,
	"session_connected": SessionConnected,
	"session_closed":    SessionClosed,
	"session_failed":    SessionFailed,
	"message":           Message,
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

func (k Kind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

func (k *Kind) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if v, ok := kindFromName[s]; ok {
		*k = v
	}
	return nil
}

// Terminal reasons attached to session_closed and session_failed events.
const (
	ReasonRemoteClosed   = "remote_closed"
	ReasonCanceled       = "canceled"
	ReasonConnectTimeout = "connect_timeout"
	ReasonAccessDenied   = "access_denied"
	ReasonConnectError   = "connect_error"
	ReasonReadError      = "read_error"
)

// Event is one observation. Only the fields relevant to the kind are set.
type Event struct {
	Kind      Kind      `json:"kind"`
	At        time.Time `json:"at"`
	Pipe      string    `json:"pipe"`
	SessionID string    `json:"sessionId,omitempty"`

	// Info accompanies pipe_added when the enumerator had metadata.
	Info *pipes.Info `json:"info,omitempty"`

	// Reason and Err describe terminal session transitions.
	Reason string `json:"reason,omitempty"`
	Err    string `json:"error,omitempty"`

	// Message payload fields.
	Size           int    `json:"size,omitempty"`
	Classification string `json:"classification,omitempty"`
	Encoding       string `json:"encoding,omitempty"`
	Charset        string `json:"charset,omitempty"`
	Payload        string `json:"payload,omitempty"`
}

// Sink consumes events. Publish must be safe for concurrent use; sessions
// publish from their own goroutines.
type Sink interface {
	Publish(Event)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(Event)

func (f SinkFunc) Publish(e Event) { f(e) }

type multi []Sink

func (m multi) Publish(e Event) {
	for _, s := range m {
		s.Publish(e)
	}
}

// Multi fans events out to every non-nil sink in order.
func Multi(sinks ...Sink) Sink {
	out := make(multi, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

// Suppress wraps a sink and drops the event kinds the output flags hide.
// Quiet drops the routine connect/disconnect lines; HideErrors drops session
// failures. The underlying state machines are unaffected.
type Suppress struct {
	Next       Sink
	Quiet      bool
	HideErrors bool
}

func (s Suppress) Publish(e Event) {
	switch e.Kind {
	case SessionConnected, SessionClosed:
		if s.Quiet {
			return
		}
	case SessionFailed:
		if s.HideErrors {
			return
		}
	}
	s.Next.Publish(e)
}
