package usecase

import (
	"context"
	"fmt"
	"log/slog"
)

// backupSuffix はバックアップデータベース名の接尾辞。
const backupSuffix = "_MigrationBackup"

// BackupRepository はデータベース単位の複製を行うリポジトリのインターフェース。
type BackupRepository interface {
	DatabaseExists(ctx context.Context, name string) (bool, error)
	CloneDatabase(ctx context.Context, source, destination string) error
	DropDatabase(ctx context.Context, name string) error
}

// BackupDatabaseName はバックアップデータベースの名前を返す。
func BackupDatabaseName(databaseName string) string {
	return databaseName + backupSuffix
}

// SafetyNet は実験的なマイグレーションの前にデータベースを退避する。
type SafetyNet struct {
	repo         BackupRepository
	databaseName string
	logger       *slog.Logger
}

// NewSafetyNet は新しいSafetyNetを生成する。
func NewSafetyNet(repo BackupRepository, databaseName string, logger *slog.Logger) *SafetyNet {
	return &SafetyNet{
		repo:         repo,
		databaseName: databaseName,
		logger:       loggerOrDiscard(logger),
	}
}

// BackupName はバックアップデータベースの名前を返す。
func (s *SafetyNet) BackupName() string {
	return BackupDatabaseName(s.databaseName)
}

// BackupAndRestore はバックアップが残っていれば先に復元してから削除し、
// その後に現在のデータベースをバックアップへ複製する。
func (s *SafetyNet) BackupAndRestore(ctx context.Context) error {
	backup := s.BackupName()

	exists, err := s.repo.DatabaseExists(ctx, backup)
	if err != nil {
		return fmt.Errorf("failed to check backup database: %w", err)
	}

	if exists {
		s.logger.WarnContext(ctx, "restoring database from previous backup",
			"operation", "backup_and_restore",
			"database", s.databaseName,
			"backup", backup,
		)
		if err := s.repo.CloneDatabase(ctx, backup, s.databaseName); err != nil {
			return fmt.Errorf("failed to restore %s from %s: %w", s.databaseName, backup, err)
		}
		if err := s.repo.DropDatabase(ctx, backup); err != nil {
			return fmt.Errorf("failed to drop backup %s: %w", backup, err)
		}
	}

	s.logger.InfoContext(ctx, "backing up database",
		"operation", "backup_and_restore",
		"database", s.databaseName,
		"backup", backup,
	)
	if err := s.repo.CloneDatabase(ctx, s.databaseName, backup); err != nil {
		return fmt.Errorf("failed to back up %s to %s: %w", s.databaseName, backup, err)
	}
	return nil
}

func loggerOrDiscard(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return logger
}
