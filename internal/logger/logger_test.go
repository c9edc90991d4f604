package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestJSONOutputCarriesServiceAndFields(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "debug", Format: "json", Output: &buf, ServiceName: "rendercue"})

	log.WithComponent("worker").WithJobID("job-1").Info("frame rendered", "frame", 3)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("parse log line: %v (%s)", err, buf.String())
	}
	if entry["msg"] != "frame rendered" || entry["service"] != "rendercue" {
		t.Fatalf("unexpected entry %v", entry)
	}
	if entry["component"] != "worker" || entry["job_id"] != "job-1" {
		t.Fatalf("missing context fields in %v", entry)
	}
	if entry["frame"] != float64(3) {
		t.Fatalf("frame = %v", entry["frame"])
	}
}

func TestLevels(t *testing.T) {
	tests := []struct {
		level     string
		logFn     func(*Logger)
		shouldLog bool
	}{
		{"info", func(l *Logger) { l.Info("x") }, true},
		{"info", func(l *Logger) { l.Debug("x") }, false},
		{"warning", func(l *Logger) { l.Info("x") }, false},
		{"error", func(l *Logger) { l.Error("x") }, true},
		{"", func(l *Logger) { l.Info("x") }, true},
	}
	for _, tt := range tests {
		var buf bytes.Buffer
		tt.logFn(New(Config{Level: tt.level, Output: &buf}))
		if (buf.Len() > 0) != tt.shouldLog {
			t.Errorf("level %q: shouldLog=%v, got output %q", tt.level, tt.shouldLog, buf.String())
		}
	}
}

func TestWithError(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Output: &buf})
	if log.WithError(nil) != log {
		t.Fatal("WithError(nil) should return the same logger")
	}
	log.WithError(errors.New("disk full")).Warn("write failed")
	if !strings.Contains(buf.String(), "disk full") {
		t.Fatalf("expected error text in %q", buf.String())
	}
}

func TestNopDiscards(t *testing.T) {
	OrNop(nil).Error("nothing to see")
}
