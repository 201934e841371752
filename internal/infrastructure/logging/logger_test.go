package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/tmarsden/edgeflow-core/internal/infrastructure/config"
)

func TestNewHandlerVariants(t *testing.T) {
	cases := []config.LoggingConfig{
		{Level: "info", Format: "json", Output: "stdout"},
		{Level: "debug", Format: "text", Output: "stderr"},
		{Level: "", Format: "", Output: ""},
	}
	for _, cfg := range cases {
		if New(cfg, "1.0.0") == nil {
			t.Fatalf("New(%+v) returned nil", cfg)
		}
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"DEBUG":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"bogus":   slog.LevelInfo,
		"":        slog.LevelInfo,
	}
	for in, want := range cases {
		if got := parseLevel(in); got != want {
			t.Errorf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestWithReturnsDerivedLogger(t *testing.T) {
	base := Default()
	child := base.With("component", "engine")
	if child == nil || child == base {
		t.Fatal("With should return a distinct derived logger")
	}
}

func TestRecordsCarryDefaultFields(t *testing.T) {
	var buf bytes.Buffer
	h := slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}).
		WithAttrs([]slog.Attr{
			slog.String("service", "edgeflow"),
			slog.String("version", "test"),
		})

	log := &Logger{Logger: slog.New(h)}
	log.Info("engine started", "queue_size", 100)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("parsing record: %v", err)
	}
	if entry["service"] != "edgeflow" || entry["version"] != "test" {
		t.Errorf("default fields missing: %v", entry)
	}
	if entry["msg"] != "engine started" {
		t.Errorf("msg = %v", entry["msg"])
	}
	if entry["queue_size"] != float64(100) {
		t.Errorf("queue_size = %v", entry["queue_size"])
	}
}
