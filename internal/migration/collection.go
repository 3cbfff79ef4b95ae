package migration

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"mongo-migrations/internal/domain"
)

// Collection はコレクションマイグレーションが使う操作。*mongo.Collection が満たす。
type Collection interface {
	Name() string
	Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) (*mongo.Cursor, error)
	ReplaceOne(ctx context.Context, filter interface{}, replacement interface{}, opts ...*options.ReplaceOptions) (*mongo.UpdateResult, error)
}

// TransformFunc は1件のドキュメントをその場で書き換え、変更したかを返す。
// フィールド順は保存時の順序のまま渡される。
type TransformFunc func(ctx context.Context, coll Collection, doc *bson.D) (bool, error)

// CollectionMigration は1つのコレクションのドキュメントを順に変換するマイグレーション。
type CollectionMigration struct {
	Meta           domain.Metadata
	CollectionName string
	// Filter は対象ドキュメントを絞り込むクエリ。nil の場合は全件。
	Filter    interface{}
	Transform TransformFunc
}

// Metadata はマイグレーションの宣言情報を返す。
func (c *CollectionMigration) Metadata() domain.Metadata {
	return c.Meta
}

// Run は対象コレクションを解決してApplyを実行する。
func (c *CollectionMigration) Run(ctx context.Context, db *mongo.Database) error {
	return c.Apply(ctx, db.Collection(c.CollectionName))
}

// Apply はフィルタに一致するドキュメントを1件ずつ変換し、変更されたものを書き戻す。
// 1件でも失敗した場合はマイグレーション全体が失敗する。
func (c *CollectionMigration) Apply(ctx context.Context, coll Collection) error {
	if c.Transform == nil {
		return fmt.Errorf("collection migration %s has no transform", c.Meta.Version)
	}

	filter := c.Filter
	if filter == nil {
		filter = bson.D{}
	}

	cursor, err := coll.Find(ctx, filter)
	if err != nil {
		return fmt.Errorf("failed to query collection %s: %w", coll.Name(), err)
	}
	defer cursor.Close(ctx)

	for cursor.Next(ctx) {
		raw := cursor.Current
		var doc bson.D
		if err := bson.Unmarshal(raw, &doc); err != nil {
			return c.documentError(coll, rawDocumentID(raw), fmt.Errorf("decoding document: %w", err))
		}
		if err := c.updateDocument(ctx, coll, raw, &doc); err != nil {
			return c.documentError(coll, DocumentID(doc), err)
		}
	}

	if err := cursor.Err(); err != nil {
		return fmt.Errorf("failed to iterate collection %s: %w", coll.Name(), err)
	}
	return nil
}

// updateDocument は変換後のドキュメントを保存済みの _id で書き戻す。
// フィルタには読み出したままの _id のバイト列を使う。
func (c *CollectionMigration) updateDocument(ctx context.Context, coll Collection, raw bson.Raw, doc *bson.D) error {
	changed, err := c.Transform(ctx, coll, doc)
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}

	id, err := raw.LookupErr(IDField)
	if err != nil {
		return errors.New("document has no _id")
	}

	result, err := coll.ReplaceOne(ctx, bson.D{{Key: IDField, Value: id}}, *doc)
	if err != nil {
		return err
	}
	if result.MatchedCount != 1 {
		return fmt.Errorf("%w: id %v", domain.ErrDocumentNotMatched, id)
	}
	return nil
}

func (c *CollectionMigration) documentError(coll Collection, id interface{}, err error) error {
	return &domain.DocumentUpdateError{
		Collection:  coll.Name(),
		DocumentID:  id,
		Version:     c.Meta.Version,
		Description: c.Meta.Description,
		Err:         err,
	}
}

// rawDocumentID はデコードできないドキュメントから _id を取り出す。
func rawDocumentID(raw bson.Raw) interface{} {
	id, err := raw.LookupErr(IDField)
	if err != nil {
		return MissingDocumentID
	}
	return id
}
