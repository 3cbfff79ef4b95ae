// Package repository はMongoDBへの永続化を提供する。
package repository

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"mongo-migrations/internal/domain"
)

// DefaultLedgerCollection は台帳コレクションの既定名。
const DefaultLedgerCollection = "DatabaseVersion"

// LedgerRepository はマイグレーション台帳を管理するリポジトリ。
// 台帳は対象データベース内のコレクションに保存される。
type LedgerRepository struct {
	coll *mongo.Collection
}

// NewLedgerRepository は新しいLedgerRepositoryを生成する。
// collectionが空の場合はDefaultLedgerCollectionを使う。
func NewLedgerRepository(db *mongo.Database, collection string) *LedgerRepository {
	if collection == "" {
		collection = DefaultLedgerCollection
	}
	return &LedgerRepository{coll: db.Collection(collection)}
}

// CollectionName は台帳コレクション名を返す。
func (r *LedgerRepository) CollectionName() string {
	return r.coll.Name()
}

// FindAll は台帳の全レコードを取得する。
// コレクションが存在しない場合は空のスライスを返す。
func (r *LedgerRepository) FindAll(ctx context.Context) ([]*domain.AppliedMigration, error) {
	cursor, err := r.coll.Find(ctx, bson.D{})
	if err != nil {
		slog.ErrorContext(ctx, "failed to find ledger entries",
			"operation", "find_all_ledger",
			"collection", r.coll.Name(),
			"error", err,
		)
		return nil, fmt.Errorf("failed to find ledger entries: %w", err)
	}

	entries := []*domain.AppliedMigration{}
	if err := cursor.All(ctx, &entries); err != nil {
		slog.ErrorContext(ctx, "failed to decode ledger entries",
			"operation", "find_all_ledger",
			"collection", r.coll.Name(),
			"error", err,
		)
		return nil, fmt.Errorf("failed to decode ledger entries: %w", err)
	}
	return entries, nil
}

// Insert は台帳にレコードを追加する。
func (r *LedgerRepository) Insert(ctx context.Context, entry *domain.AppliedMigration) error {
	if _, err := r.coll.InsertOne(ctx, entry); err != nil {
		slog.ErrorContext(ctx, "failed to insert ledger entry",
			"operation", "insert_ledger",
			"version", entry.Version.String(),
			"error", err,
		)
		return fmt.Errorf("failed to insert ledger entry %s: %w", entry.Version, err)
	}
	return nil
}

// Complete は未完了のレコードに完了時刻を設定する。
func (r *LedgerRepository) Complete(ctx context.Context, version domain.Version, at time.Time) error {
	filter := bson.M{"version": version, "completedOn": nil}
	update := bson.M{"$set": bson.M{"completedOn": at.UTC()}}

	result, err := r.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		slog.ErrorContext(ctx, "failed to complete ledger entry",
			"operation", "complete_ledger",
			"version", version.String(),
			"error", err,
		)
		return fmt.Errorf("failed to complete ledger entry %s: %w", version, err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("%w: no running entry for %s", domain.ErrLedgerEntryNotFound, version)
	}
	return nil
}

// DeleteIncomplete は指定バージョンの未完了レコードを削除し、削除件数を返す。
func (r *LedgerRepository) DeleteIncomplete(ctx context.Context, version domain.Version) (int64, error) {
	result, err := r.coll.DeleteMany(ctx, bson.M{"version": version, "completedOn": nil})
	if err != nil {
		slog.ErrorContext(ctx, "failed to delete incomplete ledger entries",
			"operation", "delete_incomplete_ledger",
			"version", version.String(),
			"error", err,
		)
		return 0, fmt.Errorf("failed to delete incomplete ledger entries %s: %w", version, err)
	}
	return result.DeletedCount, nil
}
