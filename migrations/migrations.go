// Package migrations はアプリケーションのマイグレーションを登録する。
package migrations

import (
	"mongo-migrations/internal/domain"
	"mongo-migrations/internal/registry"
)

// UsersCollection はユーザーコレクション名。
const UsersCollection = "users"

// Registry はアプリケーションのマイグレーションを登録したRegistryを返す。
func Registry() *registry.Registry {
	return registry.New("migrations").Register(
		normalizeUserEmail,
		createUserEmailIndex,
		renameUserFullName,
	)
}

func mustVersion(text string) domain.Version {
	return domain.MustParseVersion(text)
}
