package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidVersion はバージョン文字列の形式が不正な場合のエラー。
	ErrInvalidVersion = errors.New("invalid migration version")

	// ErrDiscoveryFailed はマイグレーションの読み込みに失敗した場合のエラー。
	ErrDiscoveryFailed = errors.New("cannot load migrations")

	// ErrDuplicateVersion は同じバージョンのマイグレーションが複数登録されている場合のエラー。
	ErrDuplicateVersion = errors.New("duplicate migration version")

	// ErrNotUpToDate は未適用のマイグレーションが残っている場合のエラー。
	ErrNotUpToDate = errors.New("database is not up to date")

	// ErrMigrationFailed はマイグレーション実行時のエラー。
	ErrMigrationFailed = errors.New("migration failed to be applied")

	// ErrDocumentUpdateFailed はドキュメント単位の更新に失敗した場合のエラー。
	ErrDocumentUpdateFailed = errors.New("failed to update document")

	// ErrDocumentNotMatched は置換対象のドキュメントが見つからなかった場合のエラー。
	ErrDocumentNotMatched = errors.New("replace matched no document")

	// ErrLedgerEntryNotFound は対象の台帳エントリが存在しない場合のエラー。
	ErrLedgerEntryNotFound = errors.New("ledger entry not found")
)

// VersionFormatError のReason。
const (
	ReasonEmpty     = "empty"
	ReasonFormat    = "format"
	ReasonPrefix    = "prefix"
	ReasonComponent = "component"
)

// VersionFormatError はバージョン文字列のどこが不正かを表す。
type VersionFormatError struct {
	Input     string
	Reason    string
	Component string // Reason が component の場合のみ
	Value     string
}

func (e *VersionFormatError) Error() string {
	switch e.Reason {
	case ReasonEmpty:
		return "the migration version is empty"
	case ReasonPrefix:
		return fmt.Sprintf("the migration version (%s) must start with the letter M", e.Input)
	case ReasonComponent:
		return fmt.Sprintf("the %s component (%s) of the version (%s) is invalid", e.Component, e.Value, e.Input)
	default:
		return fmt.Sprintf("the migration version (%s) must be of the format MyyyyMMddHHmmss_Name", e.Input)
	}
}

// Is は ErrInvalidVersion との比較を可能にする。
func (e *VersionFormatError) Is(target error) bool {
	return target == ErrInvalidVersion
}

// DiscoveryError はマイグレーションの読み込み元を特定できる形でエラーを包む。
type DiscoveryError struct {
	Source string
	Err    error
}

func (e *DiscoveryError) Error() string {
	return fmt.Sprintf("cannot load migrations from %s: %v", e.Source, e.Err)
}

func (e *DiscoveryError) Unwrap() error {
	return e.Err
}

func (e *DiscoveryError) Is(target error) bool {
	return target == ErrDiscoveryFailed
}

// NotUpToDateError は最初の未適用バージョンを保持する。
type NotUpToDateError struct {
	FirstUnapplied Version
}

func (e *NotUpToDateError) Error() string {
	return fmt.Sprintf("database contains unapplied migrations starting with %s", e.FirstUnapplied)
}

func (e *NotUpToDateError) Is(target error) bool {
	return target == ErrNotUpToDate
}

// DocumentUpdateError はコレクションマイグレーションで1件のドキュメント更新に失敗したことを表す。
type DocumentUpdateError struct {
	Collection  string
	DocumentID  interface{}
	Version     Version
	Description string
	Err         error
}

func (e *DocumentUpdateError) Error() string {
	return fmt.Sprintf("failed to update document %v in collection %s (migration %s %q): %v",
		e.DocumentID, e.Collection, e.Version, e.Description, e.Err)
}

func (e *DocumentUpdateError) Unwrap() error {
	return e.Err
}

func (e *DocumentUpdateError) Is(target error) bool {
	return target == ErrDocumentUpdateFailed
}

// MigrationError はマイグレーション単位の失敗に実行コンテキストを付与する。
type MigrationError struct {
	Version      Version
	TypeName     string
	Description  string
	DatabaseName string
	Err          error
}

func (e *MigrationError) Error() string {
	return fmt.Sprintf("migration failed to be applied: %v (version=%s type=%s description=%q database=%s)",
		e.Err, e.Version, e.TypeName, e.Description, e.DatabaseName)
}

func (e *MigrationError) Unwrap() error {
	return e.Err
}

func (e *MigrationError) Is(target error) bool {
	return target == ErrMigrationFailed
}
