package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
)

func TestWriteAuditLog(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var buf bytes.Buffer
	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, nil)))

	WriteAuditLog(context.Background(), AuditLog{
		Operation: "mark",
		Database:  "Orders",
		Version:   "M20240101000000_Init",
		Result:    Result(nil),
	})

	var record map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("failed to decode log: %v", err)
	}
	if record["operation"] != "mark" || record["database"] != "Orders" || record["result"] != ResultSuccess {
		t.Errorf("unexpected audit record: %v", record)
	}
	if record["timestamp"] == "" {
		t.Error("expected a timestamp")
	}
}

func TestResult(t *testing.T) {
	if Result(errors.New("boom")) != ResultFailure {
		t.Error("expected failure for non-nil error")
	}
}
