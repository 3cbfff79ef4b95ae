package infra

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"path/filepath"
	"testing"

	"go.opentelemetry.io/otel/trace"

	"mongo-migrations/config"
)

func spanContext(t *testing.T) context.Context {
	t.Helper()
	traceID, err := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	if err != nil {
		t.Fatal(err)
	}
	spanID, err := trace.SpanIDFromHex("00f067aa0ba902b7")
	if err != nil {
		t.Fatal(err)
	}
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	})
	return trace.ContextWithSpanContext(context.Background(), sc)
}

func decode(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var record map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("failed to decode log record: %v", err)
	}
	return record
}

func TestTraceHandler_AddsTraceFields(t *testing.T) {
	var buf bytes.Buffer
	cfg := &config.Config{OtelEnabled: true, GoogleCloudProject: "my-project"}
	logger := slog.New(NewTraceHandler(slog.NewJSONHandler(&buf, nil), cfg))

	logger.With("run_id", "r1").InfoContext(spanContext(t), "applying migration", "version", "M20240101000000_Init")

	record := decode(t, &buf)
	if record["trace"] != "4bf92f3577b34da6a3ce929d0e0e4736" || record["spanId"] != "00f067aa0ba902b7" {
		t.Errorf("missing trace fields: %v", record)
	}
	if record["logging.googleapis.com/trace"] != "projects/my-project/traces/4bf92f3577b34da6a3ce929d0e0e4736" {
		t.Errorf("missing cloud logging trace: %v", record)
	}
	if record["run_id"] != "r1" || record["version"] != "M20240101000000_Init" {
		t.Errorf("missing attributes: %v", record)
	}
}

func TestTraceHandler_TagsDatabaseName(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewTraceHandler(slog.NewJSONHandler(&buf, nil), &config.Config{DatabaseName: "appdb"}))

	logger.With("run_id", "r1").Info("migration applied", "version", "M20240101000000_Init")

	record := decode(t, &buf)
	if record["db.name"] != "appdb" || record["run_id"] != "r1" {
		t.Errorf("want db.name tagged on every record, got %v", record)
	}

	buf.Reset()
	slog.New(NewTraceHandler(slog.NewJSONHandler(&buf, nil), &config.Config{})).Info("no database")
	if _, ok := decode(t, &buf)["db.name"]; ok {
		t.Error("db.name must be omitted when no database is configured")
	}
}

func TestTraceHandler_DisabledOtel(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewTraceHandler(slog.NewJSONHandler(&buf, nil), &config.Config{}))

	logger.InfoContext(spanContext(t), "database updated")

	if _, ok := decode(t, &buf)["trace"]; ok {
		t.Error("trace fields must not be added when otel is disabled")
	}
}

func TestSetupLogger_WritesRotatingFile(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	path := filepath.Join(t.TempDir(), "migrator.log")
	logger, closer := SetupLogger(&config.Config{LogLevel: "WARN", LogFile: path, LogMaxSizeMB: 1})
	defer closer.Close()

	if logger.Enabled(context.Background(), slog.LevelInfo) {
		t.Error("info must be disabled at WARN level")
	}
	if !logger.Enabled(context.Background(), slog.LevelWarn) {
		t.Error("warn must be enabled at WARN level")
	}
}
