package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"go.mongodb.org/mongo-driver/mongo"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"mongo-migrations/config"
	"mongo-migrations/internal/infra"
	"mongo-migrations/internal/registry"
	"mongo-migrations/internal/repository"
	"mongo-migrations/internal/usecase"
	"mongo-migrations/migrations"
)

// app はコマンド間で共有する依存関係。
type app struct {
	cfg       *config.Config
	logger    *slog.Logger
	logCloser io.Closer
	tp        *sdktrace.TracerProvider
	client    *mongo.Client

	locator *registry.Locator
	status  *usecase.StatusService
	runner  *usecase.Runner
}

// newApp は設定を読み込み、ロガー・トレーサー・DB接続を初期化して依存関係を組み立てる。
func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(envFile)
	if err != nil {
		return nil, err
	}

	// トレーサー初期化（ロガー設定の前に実行）
	tp, err := infra.InitTracer(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to init tracer: %w", err)
	}

	// トレース情報付きロガーを設定
	logger, logCloser := infra.SetupLogger(cfg)

	client, err := infra.NewMongoClient(ctx, cfg)
	if err != nil {
		infra.ShutdownTracer(ctx, tp)
		_ = logCloser.Close()
		return nil, err
	}
	db := client.Database(cfg.DatabaseName)

	// DI
	locator := registry.NewLocator(migrations.Registry())
	if experimental || cfg.IncludeExperimental {
		locator.Filters = nil
	}
	ledger := repository.NewLedgerRepository(db, cfg.VersionCollection)
	status := usecase.NewStatusService(ledger, locator, logger)
	safety := usecase.NewSafetyNet(repository.NewBackupRepository(client), cfg.DatabaseName, logger)
	runner := usecase.NewRunner(db, status, locator, safety, usecase.RunnerConfig{
		DatabaseName: cfg.DatabaseName,
		Servers:      cfg.Servers(),
		Logger:       logger,
	})

	return &app{
		cfg:       cfg,
		logger:    logger,
		logCloser: logCloser,
		tp:        tp,
		client:    client,
		locator:   locator,
		status:    status,
		runner:    runner,
	}, nil
}

// Close は接続を閉じる。
func (a *app) Close(ctx context.Context) {
	if err := a.client.Disconnect(ctx); err != nil {
		a.logger.ErrorContext(ctx, "failed to disconnect mongodb",
			"operation", "close",
			"error", err,
		)
	}
	infra.ShutdownTracer(ctx, a.tp)
	_ = a.logCloser.Close()
}

// withApp はappを初期化してfnを実行し、終了時に接続を閉じる。
func withApp(ctx context.Context, fn func(ctx context.Context, a *app) error) error {
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close(context.Background())
	return fn(ctx, a)
}
