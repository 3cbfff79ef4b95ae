package domain

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
)

// MarkerDescription は手動でマークされた台帳エントリの説明。
const MarkerDescription = "manually marked"

// Metadata はマイグレーションの宣言情報。
type Metadata struct {
	Version     Version
	Description string
	// Experimental は未検証のマイグレーションを示す。既定のフィルタで除外され、
	// 実行時にはバックアップが取得される。
	Experimental bool
}

// Migration はマイグレーションの実行単位。
// データベースはRunの引数として渡され、実装側で保持しない。
type Migration interface {
	Metadata() Metadata
	Run(ctx context.Context, db *mongo.Database) error
}

// IsExperimental はマイグレーションが実験的かを返す。
func IsExperimental(m Migration) bool {
	if m == nil {
		return false
	}
	return m.Metadata().Experimental
}

// MigrationStatus はマイグレーションの適用状態を表す。
type MigrationStatus string

const (
	MigrationStatusPending MigrationStatus = "pending"
	MigrationStatusApplied MigrationStatus = "applied"
	// MigrationStatusIncomplete は開始されたが完了していない（実行中またはクラッシュ）状態。
	MigrationStatusIncomplete MigrationStatus = "incomplete"
)

// AppliedMigration は台帳の1レコード。
// CompletedOn が nil の場合は開始済み・未完了を表す。
type AppliedMigration struct {
	Version     Version    `bson:"version"`
	Description string     `bson:"description"`
	StartedOn   time.Time  `bson:"startedOn"`
	CompletedOn *time.Time `bson:"completedOn"`
}

// NewAppliedMigration はマイグレーション開始時の台帳エントリを生成する。
func NewAppliedMigration(m Migration, now time.Time) *AppliedMigration {
	meta := m.Metadata()
	return &AppliedMigration{
		Version:     meta.Version,
		Description: meta.Description,
		StartedOn:   now.UTC(),
	}
}

// MarkerOnly はマイグレーションを実行せずに適用済みとする台帳エントリを生成する。
func MarkerOnly(version Version, now time.Time) *AppliedMigration {
	at := now.UTC()
	return &AppliedMigration{
		Version:     version,
		Description: MarkerDescription,
		StartedOn:   at,
		CompletedOn: &at,
	}
}

// Status は台帳エントリの状態を返す。
func (a *AppliedMigration) Status() MigrationStatus {
	if a.CompletedOn == nil {
		return MigrationStatusIncomplete
	}
	return MigrationStatusApplied
}

func (a *AppliedMigration) String() string {
	completed := "never"
	if a.CompletedOn != nil {
		completed = a.CompletedOn.Format(time.RFC3339)
	}
	return fmt.Sprintf("%s started on %s completed on %s", a.Version, a.StartedOn.Format(time.RFC3339), completed)
}

// StatusEntry は既知のマイグレーションと台帳を突き合わせた結果。
type StatusEntry struct {
	Version      Version
	Description  string
	Experimental bool
	Known        bool // 登録済みのマイグレーションに存在するか
	Status       MigrationStatus
	StartedOn    *time.Time
	CompletedOn  *time.Time
}
