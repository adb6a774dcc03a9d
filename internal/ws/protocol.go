package ws

import (
	"github.com/pipewatch/pipewatch/internal/event"
	"github.com/pipewatch/pipewatch/internal/pipes"
	"github.com/pipewatch/pipewatch/internal/session"
)

type MessageType string

const (
	// MsgSnapshot carries the full current state: session records plus the
	// latest pipe snapshot. Sent on connect and on the reconcile interval.
	MsgSnapshot MessageType = "snapshot"

	// MsgEvents carries a throttled batch of monitor/session events.
	MsgEvents MessageType = "events"
)

// Message is the frame sent to websocket clients. Seq increases by one per
// frame so clients can detect gaps after a dropped connection.
type Message struct {
	Type    MessageType `json:"type"`
	Seq     uint64      `json:"seq"`
	Payload interface{} `json:"payload"`
}

type SnapshotPayload struct {
	Sessions []*session.Record `json:"sessions"`
	Pipes    []pipes.Info      `json:"pipes,omitempty"`
}

type EventsPayload struct {
	Events []event.Event `json:"events"`
}
