package infra

import (
	"context"
	"io"
	"log/slog"
	"os"

	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
	"gopkg.in/natefinch/lumberjack.v2"

	"mongo-migrations/config"
)

// TraceHandler はトレース情報と対象データベース名をログに付与するslogハンドラ。
type TraceHandler struct {
	handler      slog.Handler
	projectID    string
	databaseName string
	otelEnabled  bool
}

// NewTraceHandler はトレース情報付きのslogハンドラを生成する。
func NewTraceHandler(handler slog.Handler, cfg *config.Config) *TraceHandler {
	return &TraceHandler{
		handler:      handler,
		projectID:    cfg.GoogleCloudProject,
		databaseName: cfg.DatabaseName,
		otelEnabled:  cfg.OtelEnabled,
	}
}

// Enabled はハンドラがログを処理するかどうかを返す。
func (h *TraceHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

// Handle はログレコードを処理し、db.nameとトレース情報を付与する。
func (h *TraceHandler) Handle(ctx context.Context, r slog.Record) error {
	if h.databaseName != "" {
		r.AddAttrs(slog.String(string(semconv.DBNameKey), h.databaseName))
	}
	if h.otelEnabled {
		h.addTrace(&r, trace.SpanContextFromContext(ctx))
	}
	return h.handler.Handle(ctx, r)
}

func (h *TraceHandler) addTrace(r *slog.Record, sc trace.SpanContext) {
	if !sc.IsValid() {
		return
	}
	traceID := sc.TraceID().String()
	spanID := sc.SpanID().String()

	r.AddAttrs(
		slog.String("trace", traceID),
		slog.String("spanId", spanID),
		slog.Bool("traceSampled", sc.IsSampled()),
	)

	// Cloud Logging連携
	if h.projectID != "" {
		r.AddAttrs(
			slog.String("logging.googleapis.com/trace", "projects/"+h.projectID+"/traces/"+traceID),
			slog.String("logging.googleapis.com/spanId", spanID),
		)
	}
}

// WithAttrs は属性を追加した新しいハンドラを返す。
func (h *TraceHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return h.wrap(h.handler.WithAttrs(attrs))
}

// WithGroup はグループを追加した新しいハンドラを返す。
func (h *TraceHandler) WithGroup(name string) slog.Handler {
	return h.wrap(h.handler.WithGroup(name))
}

func (h *TraceHandler) wrap(next slog.Handler) *TraceHandler {
	clone := *h
	clone.handler = next
	return &clone
}

// SetupLogger はトレース情報付きのグローバルロガーを設定する。
// LogFileが設定されている場合はローテーションするファイルにも出力し、
// 終了時に閉じるためのio.Closerを返す。
func SetupLogger(cfg *config.Config) (*slog.Logger, io.Closer) {
	var out io.Writer = os.Stdout
	var closer io.Closer = nopCloser{}

	if cfg.LogFile != "" {
		file := &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    cfg.LogMaxSizeMB,
			MaxBackups: 5,
			Compress:   true,
		}
		out = io.MultiWriter(os.Stdout, file)
		closer = file
	}

	jsonHandler := slog.NewJSONHandler(out, &slog.HandlerOptions{Level: cfg.SlogLevel()})
	logger := slog.New(NewTraceHandler(jsonHandler, cfg))
	slog.SetDefault(logger)
	return logger, closer
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
