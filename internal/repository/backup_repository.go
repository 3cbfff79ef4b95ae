package repository

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// cloneBatchSize はクローン時に1回のInsertManyで書き込むドキュメント数。
const cloneBatchSize = 1000

// BackupRepository はデータベース単位の複製・削除を行うリポジトリ。
type BackupRepository struct {
	client *mongo.Client
}

// NewBackupRepository は新しいBackupRepositoryを生成する。
func NewBackupRepository(client *mongo.Client) *BackupRepository {
	return &BackupRepository{client: client}
}

// DatabaseExists は指定名のデータベースが存在するかを大文字小文字を区別せずに確認する。
func (r *BackupRepository) DatabaseExists(ctx context.Context, name string) (bool, error) {
	names, err := r.client.ListDatabaseNames(ctx, bson.D{})
	if err != nil {
		slog.ErrorContext(ctx, "failed to list databases",
			"operation", "database_exists",
			"database", name,
			"error", err,
		)
		return false, fmt.Errorf("failed to list databases: %w", err)
	}
	for _, n := range names {
		if strings.EqualFold(n, name) {
			return true, nil
		}
	}
	return false, nil
}

// CloneDatabase はsourceの全コレクションをdestinationへ複製する。
// 複製先の同名コレクションは事前に空にされる。
func (r *BackupRepository) CloneDatabase(ctx context.Context, source, destination string) error {
	src := r.client.Database(source)
	dst := r.client.Database(destination)

	names, err := src.ListCollectionNames(ctx, bson.D{})
	if err != nil {
		slog.ErrorContext(ctx, "failed to list collections",
			"operation", "clone_database",
			"source", source,
			"error", err,
		)
		return fmt.Errorf("failed to list collections of %s: %w", source, err)
	}

	for _, name := range names {
		if err := cloneCollection(ctx, src.Collection(name), dst.Collection(name)); err != nil {
			slog.ErrorContext(ctx, "failed to clone collection",
				"operation", "clone_database",
				"source", source,
				"destination", destination,
				"collection", name,
				"error", err,
			)
			return fmt.Errorf("failed to clone %s.%s to %s: %w", source, name, destination, err)
		}
	}
	return nil
}

func cloneCollection(ctx context.Context, src, dst *mongo.Collection) error {
	if _, err := dst.DeleteMany(ctx, bson.D{}); err != nil {
		return fmt.Errorf("clearing destination: %w", err)
	}

	cursor, err := src.Find(ctx, bson.D{})
	if err != nil {
		return fmt.Errorf("reading source: %w", err)
	}
	defer cursor.Close(ctx)

	batch := make([]interface{}, 0, cloneBatchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if _, err := dst.InsertMany(ctx, batch); err != nil {
			return fmt.Errorf("writing destination: %w", err)
		}
		batch = make([]interface{}, 0, cloneBatchSize)
		return nil
	}

	for cursor.Next(ctx) {
		doc := make(bson.Raw, len(cursor.Current))
		copy(doc, cursor.Current)
		batch = append(batch, doc)
		if len(batch) == cloneBatchSize {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	if err := cursor.Err(); err != nil {
		return fmt.Errorf("reading source: %w", err)
	}
	return flush()
}

// DropDatabase はデータベースを削除する。
func (r *BackupRepository) DropDatabase(ctx context.Context, name string) error {
	if err := r.client.Database(name).Drop(ctx); err != nil {
		slog.ErrorContext(ctx, "failed to drop database",
			"operation", "drop_database",
			"database", name,
			"error", err,
		)
		return fmt.Errorf("failed to drop database %s: %w", name, err)
	}
	return nil
}
