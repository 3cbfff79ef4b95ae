// Package usecase はマイグレーションのビジネスロジックを提供する。
package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"mongo-migrations/internal/domain"
)

// LedgerRepository はマイグレーション台帳を管理するリポジトリのインターフェース。
type LedgerRepository interface {
	FindAll(ctx context.Context) ([]*domain.AppliedMigration, error)
	Insert(ctx context.Context, entry *domain.AppliedMigration) error
	Complete(ctx context.Context, version domain.Version, at time.Time) error
	DeleteIncomplete(ctx context.Context, version domain.Version) (int64, error)
}

// MigrationLocator は登録済みマイグレーションを探索するインターフェース。
type MigrationLocator interface {
	GetAllMigrations() ([]domain.Migration, error)
	GetMigrationsAfter(after *domain.Version) ([]domain.Migration, error)
	LatestVersion() (domain.Version, error)
}

// StatusService は台帳と登録済みマイグレーションを突き合わせる。
type StatusService struct {
	repo    LedgerRepository
	locator MigrationLocator
	logger  *slog.Logger
	now     func() time.Time
}

// NewStatusService は新しいStatusServiceを生成する。loggerがnilの場合は出力しない。
func NewStatusService(repo LedgerRepository, locator MigrationLocator, logger *slog.Logger) *StatusService {
	return &StatusService{
		repo:    repo,
		locator: locator,
		logger:  loggerOrDiscard(logger),
		now:     time.Now,
	}
}

// ledgeredVersions は台帳に1行でも存在するバージョンの集合を返す。
// 未完了の行も含む。
func (s *StatusService) ledgeredVersions(ctx context.Context) (map[string]struct{}, []*domain.AppliedMigration, error) {
	entries, err := s.repo.FindAll(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read ledger: %w", err)
	}
	set := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		set[e.Version.String()] = struct{}{}
	}
	return set, entries, nil
}

// GetUnapplied は台帳に存在しない既知のマイグレーションを昇順で返す。
func (s *StatusService) GetUnapplied(ctx context.Context) ([]domain.Migration, error) {
	all, err := s.locator.GetAllMigrations()
	if err != nil {
		return nil, err
	}
	applied, _, err := s.ledgeredVersions(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to fetch applied migrations",
			"operation", "get_unapplied",
			"error", err,
		)
		return nil, err
	}

	var pending []domain.Migration
	for _, m := range all {
		if _, ok := applied[m.Metadata().Version.String()]; !ok {
			pending = append(pending, m)
		}
	}
	return pending, nil
}

// IsUpToDate は未適用のマイグレーションがないかを返す。
func (s *StatusService) IsUpToDate(ctx context.Context) (bool, error) {
	pending, err := s.GetUnapplied(ctx)
	if err != nil {
		return false, err
	}
	return len(pending) == 0, nil
}

// CheckUpToDate は未適用のマイグレーションがある場合にNotUpToDateErrorを返す。
func (s *StatusService) CheckUpToDate(ctx context.Context) error {
	pending, err := s.GetUnapplied(ctx)
	if err != nil {
		return err
	}
	if len(pending) > 0 {
		return &domain.NotUpToDateError{FirstUnapplied: pending[0].Metadata().Version}
	}
	return nil
}

// GetLastApplied はバージョンが最大の台帳エントリを返す。台帳が空の場合はnil。
func (s *StatusService) GetLastApplied(ctx context.Context) (*domain.AppliedMigration, error) {
	entries, err := s.repo.FindAll(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to fetch applied migrations",
			"operation", "get_last_applied",
			"error", err,
		)
		return nil, fmt.Errorf("failed to read ledger: %w", err)
	}
	if len(entries) == 0 {
		return nil, nil
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Version.Less(entries[j].Version)
	})
	return entries[len(entries)-1], nil
}

// GetVersion はデータベースの現在のバージョンを返す。台帳が空の場合はDefaultVersion。
func (s *StatusService) GetVersion(ctx context.Context) (domain.Version, error) {
	last, err := s.GetLastApplied(ctx)
	if err != nil {
		return domain.DefaultVersion, err
	}
	if last == nil {
		return domain.DefaultVersion, nil
	}
	return last.Version, nil
}

// StartMigration は実行開始を台帳に記録する。
func (s *StatusService) StartMigration(ctx context.Context, m domain.Migration) (*domain.AppliedMigration, error) {
	entry := domain.NewAppliedMigration(m, s.now())
	if err := s.repo.Insert(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// CompleteMigration は台帳エントリに完了時刻を記録する。
func (s *StatusService) CompleteMigration(ctx context.Context, entry *domain.AppliedMigration) error {
	at := s.now().UTC()
	if err := s.repo.Complete(ctx, entry.Version, at); err != nil {
		return err
	}
	entry.CompletedOn = &at
	return nil
}

// MarkUpToVersion はtarget以下の既知のマイグレーションを実行せずに適用済みとして記録する。
// 既に台帳にあるバージョンは記録しない。
func (s *StatusService) MarkUpToVersion(ctx context.Context, target domain.Version) (int, error) {
	all, err := s.locator.GetAllMigrations()
	if err != nil {
		return 0, err
	}
	applied, _, err := s.ledgeredVersions(ctx)
	if err != nil {
		return 0, err
	}

	marked := 0
	for _, m := range all {
		v := m.Metadata().Version
		if v.Compare(target) > 0 {
			break
		}
		if _, ok := applied[v.String()]; ok {
			continue
		}
		if err := s.repo.Insert(ctx, domain.MarkerOnly(v, s.now())); err != nil {
			return marked, err
		}
		marked++
	}
	return marked, nil
}

// MarkVersion は1つのバージョンを適用済みとして記録する。既知である必要はない。
func (s *StatusService) MarkVersion(ctx context.Context, version domain.Version) error {
	return s.repo.Insert(ctx, domain.MarkerOnly(version, s.now()))
}

// Forget は指定バージョンの未完了エントリを削除し、再実行可能にする。
func (s *StatusService) Forget(ctx context.Context, version domain.Version) (int64, error) {
	deleted, err := s.repo.DeleteIncomplete(ctx, version)
	if err != nil {
		return 0, err
	}
	if deleted == 0 {
		return 0, fmt.Errorf("%w: no incomplete entry for %s", domain.ErrLedgerEntryNotFound, version)
	}
	return deleted, nil
}

// Status は既知のマイグレーションと台帳を突き合わせた一覧をバージョン昇順で返す。
// 台帳にのみ存在するバージョンも含む。
func (s *StatusService) Status(ctx context.Context) ([]domain.StatusEntry, error) {
	all, err := s.locator.GetAllMigrations()
	if err != nil {
		return nil, err
	}
	_, entries, err := s.ledgeredVersions(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to fetch applied migrations",
			"operation", "get_migration_status",
			"error", err,
		)
		return nil, err
	}

	byVersion := make(map[string]*domain.StatusEntry)
	var order []string

	for _, m := range all {
		meta := m.Metadata()
		key := meta.Version.String()
		byVersion[key] = &domain.StatusEntry{
			Version:      meta.Version,
			Description:  meta.Description,
			Experimental: meta.Experimental,
			Known:        true,
			Status:       domain.MigrationStatusPending,
		}
		order = append(order, key)
	}

	for _, e := range entries {
		key := e.Version.String()
		st, ok := byVersion[key]
		if !ok {
			st = &domain.StatusEntry{Version: e.Version, Description: e.Description}
			byVersion[key] = st
			order = append(order, key)
		}
		// 完了済みの行を優先する
		if st.Status == domain.MigrationStatusApplied {
			continue
		}
		started := e.StartedOn
		st.StartedOn = &started
		st.CompletedOn = e.CompletedOn
		st.Status = e.Status()
	}

	result := make([]domain.StatusEntry, 0, len(order))
	for _, key := range order {
		result = append(result, *byVersion[key])
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Version.Less(result[j].Version)
	})
	return result, nil
}
