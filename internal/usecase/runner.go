package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/mongo"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"mongo-migrations/internal/domain"
)

const tracerName = "mongo-migrations/usecase"

// Backuper は実験的なマイグレーションの前に呼ばれる退避処理。
type Backuper interface {
	BackupAndRestore(ctx context.Context) error
}

// RunnerConfig はRunnerの設定。
type RunnerConfig struct {
	DatabaseName string
	Servers      []string
	Logger       *slog.Logger
}

// Runner は未適用のマイグレーションを順に適用する。
type Runner struct {
	db      *mongo.Database
	status  *StatusService
	locator MigrationLocator
	safety  Backuper
	cfg     RunnerConfig
	logger  *slog.Logger
	tracer  trace.Tracer
}

// NewRunner は新しいRunnerを生成する。
func NewRunner(db *mongo.Database, status *StatusService, locator MigrationLocator, safety Backuper, cfg RunnerConfig) *Runner {
	return &Runner{
		db:      db,
		status:  status,
		locator: locator,
		safety:  safety,
		cfg:     cfg,
		logger:  loggerOrDiscard(cfg.Logger),
		tracer:  otel.Tracer(tracerName),
	}
}

// Status はRunnerが使うStatusServiceを返す。
func (r *Runner) Status() *StatusService {
	return r.status
}

// UpdateToLatest は全ての未適用マイグレーションを適用する。
func (r *Runner) UpdateToLatest(ctx context.Context) (int, error) {
	latest, err := r.locator.LatestVersion()
	if err != nil {
		return 0, err
	}
	return r.UpdateTo(ctx, latest)
}

// UpdateTo はtarget以下の未適用マイグレーションを昇順に適用し、適用件数を返す。
// 失敗した時点で残りは実行しない。適用済みのものは台帳に残る。
func (r *Runner) UpdateTo(ctx context.Context, target domain.Version) (int, error) {
	unapplied, err := r.status.GetUnapplied(ctx)
	if err != nil {
		return 0, err
	}

	var pending []domain.Migration
	for _, m := range unapplied {
		if m.Metadata().Version.Compare(target) <= 0 {
			pending = append(pending, m)
		}
	}
	if len(pending) == 0 {
		return 0, nil
	}

	runID := uuid.NewString()
	ctx, span := r.tracer.Start(ctx, "migrations.update_to", trace.WithAttributes(
		attribute.String("migration.run_id", runID),
		attribute.String("db.name", r.cfg.DatabaseName),
		attribute.String("migration.target", target.String()),
		attribute.Int("migration.pending", len(pending)),
	))
	defer span.End()

	logger := r.logger.With("run_id", runID)
	logger.InfoContext(ctx, "updating database to target version",
		"operation", "update_to",
		"servers", strings.Join(r.cfg.Servers, ","),
		"database", r.cfg.DatabaseName,
		"first_unapplied", pending[0].Metadata().Version.String(),
		"target", target.String(),
		"pending", len(pending),
	)

	if containsExperimental(pending) {
		if r.safety == nil {
			return 0, fmt.Errorf("experimental migration %s requires a safety net", firstExperimental(pending))
		}
		if err := r.safety.BackupAndRestore(ctx); err != nil {
			logger.ErrorContext(ctx, "failed to back up database before experimental migration",
				"operation", "update_to",
				"database", r.cfg.DatabaseName,
				"error", err,
			)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return 0, err
		}
	}

	applied := 0
	for _, m := range pending {
		if err := ctx.Err(); err != nil {
			span.SetStatus(codes.Error, err.Error())
			return applied, err
		}
		if err := r.apply(ctx, logger, m); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return applied, err
		}
		applied++
	}

	logger.InfoContext(ctx, "database updated",
		"operation", "update_to",
		"database", r.cfg.DatabaseName,
		"applied", applied,
	)
	return applied, nil
}

func (r *Runner) apply(ctx context.Context, logger *slog.Logger, m domain.Migration) error {
	meta := m.Metadata()
	ctx, span := r.tracer.Start(ctx, "migrations.apply", trace.WithAttributes(
		attribute.String("migration.version", meta.Version.String()),
		attribute.Bool("migration.experimental", meta.Experimental),
	))
	defer span.End()

	fail := func(err error) error {
		migErr := &domain.MigrationError{
			Version:      meta.Version,
			TypeName:     fmt.Sprintf("%T", m),
			Description:  meta.Description,
			DatabaseName: r.cfg.DatabaseName,
			Err:          err,
		}
		logger.ErrorContext(ctx, "migration failed",
			"operation", "apply_migration",
			"version", meta.Version.String(),
			"type", migErr.TypeName,
			"description", meta.Description,
			"database", r.cfg.DatabaseName,
			"error", err,
		)
		span.RecordError(migErr)
		span.SetStatus(codes.Error, err.Error())
		return migErr
	}

	entry, err := r.status.StartMigration(ctx, m)
	if err != nil {
		return fail(err)
	}

	logger.InfoContext(ctx, "applying migration",
		"operation", "apply_migration",
		"version", meta.Version.String(),
		"description", meta.Description,
	)
	if err := runSafely(ctx, r.db, m); err != nil {
		return fail(err)
	}

	if err := r.status.CompleteMigration(ctx, entry); err != nil {
		return fail(err)
	}
	return nil
}

// runSafely はマイグレーションを実行し、panicをエラーに変換する。
func runSafely(ctx context.Context, db *mongo.Database, m domain.Migration) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return m.Run(ctx, db)
}

func containsExperimental(migrations []domain.Migration) bool {
	return firstExperimental(migrations) != ""
}

func firstExperimental(migrations []domain.Migration) string {
	for _, m := range migrations {
		if domain.IsExperimental(m) {
			return m.Metadata().Version.String()
		}
	}
	return ""
}
