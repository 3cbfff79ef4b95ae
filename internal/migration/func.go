// Package migration はマイグレーション単位の実装（関数型・コレクション型）を提供する。
package migration

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo"

	"mongo-migrations/internal/domain"
)

// RunFunc はデータベース全体に対する任意の更新処理。
type RunFunc func(ctx context.Context, db *mongo.Database) error

// Func は任意の処理を実行するマイグレーション。
type Func struct {
	meta domain.Metadata
	run  RunFunc
}

// NewFunc は新しいFuncマイグレーションを生成する。
func NewFunc(meta domain.Metadata, run RunFunc) *Func {
	return &Func{meta: meta, run: run}
}

// Metadata はマイグレーションの宣言情報を返す。
func (f *Func) Metadata() domain.Metadata {
	return f.meta
}

// Run はマイグレーションを実行する。
func (f *Func) Run(ctx context.Context, db *mongo.Database) error {
	if f.run == nil {
		return nil
	}
	return f.run(ctx, db)
}
