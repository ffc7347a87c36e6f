package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{" error ", slog.LevelError},
		{"invalid", slog.LevelInfo},
		{"", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNewText(t *testing.T) {
	var buf bytes.Buffer
	logger := NewText("info", &buf)
	logger.Info("trial finished")
	if !strings.Contains(buf.String(), "trial finished") {
		t.Errorf("Expected log output to contain 'trial finished', got: %s", buf.String())
	}
}

func TestLogLevels(t *testing.T) {
	tests := []struct {
		name     string
		logLevel string
		logFunc  func(string, ...any)
		expected bool
	}{
		{"Debug when debug level", "debug", Debug, true},
		{"Debug when info level", "info", Debug, false},
		{"Info when info level", "info", Info, true},
		{"Warn when error level", "error", Warn, false},
		{"Error when info level", "info", Error, true},
	}

	original := Default
	defer func() { Default = original }()

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			Default = New(tt.logLevel, &buf)
			tt.logFunc("message")
			if got := buf.Len() > 0; got != tt.expected {
				t.Errorf("Expected output=%v, got output=%v (%s)", tt.expected, got, buf.String())
			}
		})
	}
}

func TestForVariantAddsAttributes(t *testing.T) {
	var buf bytes.Buffer
	base := New("info", &buf)
	ForVariant(ForExperiment(base, "exp1"), "MLP").Info("variant started")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("Failed to parse JSON log: %v", err)
	}
	if entry["experiment"] != "exp1" {
		t.Errorf("Expected experiment=exp1, got %v", entry["experiment"])
	}
	if entry["variant"] != "MLP" {
		t.Errorf("Expected variant=MLP, got %v", entry["variant"])
	}
}

func TestOrDefault(t *testing.T) {
	if OrDefault(nil) == nil {
		t.Fatal("Expected a non-nil fallback logger")
	}
	l := Discard()
	if OrDefault(l) != l {
		t.Error("Expected the supplied logger to be returned")
	}
}

func TestWith(t *testing.T) {
	var buf bytes.Buffer
	original := Default
	defer func() { Default = original }()
	Default = New("info", &buf)

	With("method", "random").Info("search started")
	if !strings.Contains(buf.String(), `"method":"random"`) {
		t.Errorf("Expected method attribute in output, got: %s", buf.String())
	}
}
