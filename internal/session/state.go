package session

import (
	"encoding/json"
	"time"
)

// State is one pipe session's position in its lifecycle. Closed and Failed
// are terminal; Closed covers both remote closure and cancellation, Failed
// covers connect and read errors.
type State int

const (
	Connecting State = iota
	Connected
	Reading
	Closed
	Failed
)

var stateNames = map[State]string{
	Connecting: "connecting",
	Connected:  "connected",
	Reading:    "reading",
	Closed:     "closed",
	Failed:     "failed",
}

var stateFromName = map[string]State{
	"connecting": Connecting,
	"connected":  Connected,
	"reading":    Reading,
	"closed":     Closed,
	"failed":     Failed,
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

func (s State) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *State) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	if v, ok := stateFromName[name]; ok {
		*s = v
	}
	return nil
}

func (s State) IsTerminal() bool {
	return s == Closed || s == Failed
}

// Record is the observable snapshot of one session, kept in the Store for
// the HTTP API and the live feed. The running session owns the authoritative
// state; records are published copies.
type Record struct {
	ID         string     `json:"id"`
	Pipe       string     `json:"pipe"`
	State      State      `json:"state"`
	Reason     string     `json:"reason,omitempty"`
	StartedAt  time.Time  `json:"startedAt"`
	LastReadAt time.Time  `json:"lastReadAt"`
	EndedAt    *time.Time `json:"endedAt,omitempty"`
	BytesRead  int64      `json:"bytesRead"`
	Messages   int        `json:"messages"`
	LastError  string     `json:"lastError,omitempty"`
}

// Clone returns a deep copy of the Record, duplicating pointer fields so the
// copy can be mutated independently of the original.
func (r *Record) Clone() *Record {
	c := *r
	if r.EndedAt != nil {
		t := *r.EndedAt
		c.EndedAt = &t
	}
	return &c
}

func (r *Record) IsTerminal() bool {
	return r.State.IsTerminal()
}
