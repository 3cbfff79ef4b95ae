package usecase

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"

	"mongo-migrations/internal/domain"
)

// eventLog は呼び出し順序を記録する。
type eventLog struct {
	events []string
}

func (l *eventLog) add(format string, args ...interface{}) {
	l.events = append(l.events, fmt.Sprintf(format, args...))
}

// mockLedgerRepository はテスト用のインメモリ台帳。
type mockLedgerRepository struct {
	log       *eventLog
	entries   []*domain.AppliedMigration
	findErr   error
	insertErr error
	writes    int
}

func (m *mockLedgerRepository) FindAll(ctx context.Context) ([]*domain.AppliedMigration, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	out := make([]*domain.AppliedMigration, len(m.entries))
	for i, e := range m.entries {
		c := *e
		out[i] = &c
	}
	return out, nil
}

func (m *mockLedgerRepository) Insert(ctx context.Context, entry *domain.AppliedMigration) error {
	if m.insertErr != nil {
		return m.insertErr
	}
	m.writes++
	if m.log != nil {
		m.log.add("start %s", entry.Version)
	}
	c := *entry
	m.entries = append(m.entries, &c)
	return nil
}

func (m *mockLedgerRepository) Complete(ctx context.Context, version domain.Version, at time.Time) error {
	for _, e := range m.entries {
		if e.Version.Equal(version) && e.CompletedOn == nil {
			m.writes++
			if m.log != nil {
				m.log.add("complete %s", version)
			}
			t := at
			e.CompletedOn = &t
			return nil
		}
	}
	return domain.ErrLedgerEntryNotFound
}

func (m *mockLedgerRepository) DeleteIncomplete(ctx context.Context, version domain.Version) (int64, error) {
	var kept []*domain.AppliedMigration
	var deleted int64
	for _, e := range m.entries {
		if e.Version.Equal(version) && e.CompletedOn == nil {
			deleted++
			continue
		}
		kept = append(kept, e)
	}
	m.entries = kept
	return deleted, nil
}

// mockLocator は固定のマイグレーション一覧を返す。
type mockLocator struct {
	migrations []domain.Migration
	err        error
}

func (m *mockLocator) GetAllMigrations() ([]domain.Migration, error) {
	return m.migrations, m.err
}

func (m *mockLocator) GetMigrationsAfter(after *domain.Version) ([]domain.Migration, error) {
	if m.err != nil {
		return nil, m.err
	}
	var out []domain.Migration
	for _, mig := range m.migrations {
		if after == nil || mig.Metadata().Version.Compare(*after) > 0 {
			out = append(out, mig)
		}
	}
	return out, nil
}

func (m *mockLocator) LatestVersion() (domain.Version, error) {
	if m.err != nil {
		return domain.DefaultVersion, m.err
	}
	if len(m.migrations) == 0 {
		return domain.DefaultVersion, nil
	}
	return m.migrations[len(m.migrations)-1].Metadata().Version, nil
}

// mockMigration は実行を記録するマイグレーション。
type mockMigration struct {
	meta   domain.Metadata
	log    *eventLog
	err    error
	panics bool
	runs   int
}

func newMockMigration(log *eventLog, version string, experimental bool) *mockMigration {
	return &mockMigration{
		meta: domain.Metadata{
			Version:      domain.MustParseVersion(version),
			Description:  "mock " + version,
			Experimental: experimental,
		},
		log: log,
	}
}

func (m *mockMigration) Metadata() domain.Metadata {
	return m.meta
}

func (m *mockMigration) Run(ctx context.Context, db *mongo.Database) error {
	m.runs++
	if m.log != nil {
		m.log.add("run %s", m.meta.Version)
	}
	if m.panics {
		panic("unexpected state")
	}
	return m.err
}

// mockBackupRepository はバックアップ操作を記録する。
type mockBackupRepository struct {
	log      *eventLog
	existing map[string]bool
	cloneErr error
}

func (m *mockBackupRepository) DatabaseExists(ctx context.Context, name string) (bool, error) {
	return m.existing[name], nil
}

func (m *mockBackupRepository) CloneDatabase(ctx context.Context, source, destination string) error {
	if m.cloneErr != nil {
		return m.cloneErr
	}
	m.log.add("clone %s -> %s", source, destination)
	if m.existing == nil {
		m.existing = make(map[string]bool)
	}
	m.existing[destination] = true
	return nil
}

func (m *mockBackupRepository) DropDatabase(ctx context.Context, name string) error {
	m.log.add("drop %s", name)
	delete(m.existing, name)
	return nil
}

func fixedClock(s *StatusService) time.Time {
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return at }
	return at
}
