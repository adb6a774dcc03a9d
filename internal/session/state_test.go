package session

import (
	"encoding/json"
	"testing"
	"time"
)

func TestStateMarshalJSON(t *testing.T) {
	tests := []struct {
		state    State
		expected string
	}{
		{Connecting, `"connecting"`},
		{Connected, `"connected"`},
		{Reading, `"reading"`},
		{Closed, `"closed"`},
		{Failed, `"failed"`},
	}

	for _, tt := range tests {
		data, err := json.Marshal(tt.state)
		if err != nil {
			t.Errorf("Marshal(%v) error: %v", tt.state, err)
			continue
		}
		if string(data) != tt.expected {
			t.Errorf("Marshal(%v) = %s, want %s", tt.state, data, tt.expected)
		}
	}
}

func TestStateUnmarshalJSON(t *testing.T) {
	var s State
	if err := json.Unmarshal([]byte(`"reading"`), &s); err != nil {
		t.Fatalf("Unmarshal error: %v", err)
	}
	if s != Reading {
		t.Errorf("Unmarshal = %v, want Reading", s)
	}
}

func TestStateRoundTrip(t *testing.T) {
	for st := range stateNames {
		data, err := json.Marshal(st)
		if err != nil {
			t.Fatalf("Marshal(%v) error: %v", st, err)
		}
		var back State
		if err := json.Unmarshal(data, &back); err != nil {
			t.Fatalf("Unmarshal(%s) error: %v", data, err)
		}
		if back != st {
			t.Errorf("round trip %v = %v", st, back)
		}
	}
}

func TestStateStringUnknown(t *testing.T) {
	if got := State(99).String(); got != "unknown" {
		t.Errorf("State(99).String() = %q, want unknown", got)
	}
}

func TestIsTerminal(t *testing.T) {
	tests := []struct {
		state State
		want  bool
	}{
		{Connecting, false},
		{Connected, false},
		{Reading, false},
		{Closed, true},
		{Failed, true},
	}

	for _, tt := range tests {
		if got := tt.state.IsTerminal(); got != tt.want {
			t.Errorf("%v.IsTerminal() = %v, want %v", tt.state, got, tt.want)
		}
	}
}

func TestRecordClone(t *testing.T) {
	ended := time.Now()
	r := &Record{
		ID:      "s1",
		Pipe:    "svcctl",
		State:   Failed,
		EndedAt: &ended,
	}

	c := r.Clone()
	*c.EndedAt = c.EndedAt.Add(time.Hour)
	c.Pipe = "other"

	if !r.EndedAt.Equal(ended) {
		t.Error("mutating clone's EndedAt leaked into original")
	}
	if r.Pipe != "svcctl" {
		t.Error("mutating clone leaked into original")
	}
}
