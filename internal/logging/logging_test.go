package logging

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    zapcore.Level
		wantErr bool
	}{
		{"debug", zapcore.DebugLevel, false},
		{"info", zapcore.InfoLevel, false},
		{"warn", zapcore.WarnLevel, false},
		{"error", zapcore.ErrorLevel, false},
		{"WARN", zapcore.WarnLevel, false},
		// zap reads the empty string as info.
		{"", zapcore.InfoLevel, false},
		// Unknown names error out and fall back to info.
		{"verbose", zapcore.InfoLevel, true},
		{"trace", zapcore.InfoLevel, true},
	}

	for _, tt := range tests {
		name := tt.in
		if name == "" {
			name = "empty"
		}
		t.Run(name, func(t *testing.T) {
			got, err := parseLevel(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("parseLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestNewRespectsConfiguredLevel(t *testing.T) {
	log, err := New(Config{Level: "warn"})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	if !log.Core().Enabled(zapcore.WarnLevel) {
		t.Error("warn should be enabled at warn level")
	}
	if log.Core().Enabled(zapcore.InfoLevel) {
		t.Error("info should be disabled at warn level")
	}
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	log, err := New(Config{Level: "loud"})
	if err == nil {
		t.Fatal("New() with an unknown level should return an error")
	}
	if log != nil {
		t.Errorf("New() = %v, want nil logger on error", log)
	}
}

func TestNamedAppendsSegment(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	log := &Logger{Logger: zap.New(core)}

	log.Named("ws").Info("client connected")

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("recorded %d entries, want 1", len(entries))
	}
	if entries[0].LoggerName != "ws" {
		t.Errorf("LoggerName = %q, want %q", entries[0].LoggerName, "ws")
	}
	if entries[0].Message != "client connected" {
		t.Errorf("Message = %q, want %q", entries[0].Message, "client connected")
	}
}

func TestNewNopDiscards(t *testing.T) {
	log := NewNop()
	if log.Core().Enabled(zapcore.ErrorLevel) {
		t.Error("nop logger should not enable any level")
	}
	log.Named("child").Error("dropped")
}
