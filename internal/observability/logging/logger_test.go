package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"", slog.LevelInfo},
		{"WARN", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"verbose", slog.LevelInfo},
	}
	for _, tc := range cases {
		if got := ParseLevel(tc.in); got != tc.want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestLoggerEmitsServiceAttribute(t *testing.T) {
	var buf bytes.Buffer
	logger := NewJSONLoggerTo(&buf, "knowbase-api", "info")

	logger.Info("started", "port", "8080")

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	if record["service"] != "knowbase-api" {
		t.Fatalf("expected service attribute, got %v", record["service"])
	}
	if record["msg"] != "started" {
		t.Fatalf("expected msg attribute, got %v", record["msg"])
	}
}

func TestLoggerFiltersBelowConfiguredLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewJSONLoggerTo(&buf, "knowbase-api", "warn")

	logger.Info("suppressed")
	if buf.Len() != 0 {
		t.Fatalf("info line must be filtered at warn level, got %q", buf.String())
	}

	logger.Warn("kept")
	if buf.Len() == 0 {
		t.Fatalf("warn line must pass at warn level")
	}
}
