// Package middleware は横断的な処理（監査ログ）を提供する。
package middleware

import (
	"context"
	"log/slog"
	"time"
)

// 監査ログの結果。
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// AuditLog は監査ログの構造体。
type AuditLog struct {
	Operation string `json:"operation"`
	Database  string `json:"database"`
	Version   string `json:"version,omitempty"`
	Result    string `json:"result"`
	Timestamp string `json:"timestamp"`
}

// WriteAuditLog は台帳を変更する管理操作の監査ログを出力する。
func WriteAuditLog(ctx context.Context, entry AuditLog) {
	if entry.Timestamp == "" {
		entry.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}
	slog.InfoContext(ctx, "migration operation completed",
		"operation", entry.Operation,
		"database", entry.Database,
		"version", entry.Version,
		"result", entry.Result,
		"timestamp", entry.Timestamp,
	)
}

// Result はエラーの有無から監査ログの結果を返す。
func Result(err error) string {
	if err != nil {
		return ResultFailure
	}
	return ResultSuccess
}
