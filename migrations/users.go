package migrations

import (
	"context"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"mongo-migrations/internal/domain"
	"mongo-migrations/internal/migration"
)

func normalizeUserEmail() (domain.Migration, error) {
	return &migration.CollectionMigration{
		Meta: domain.Metadata{
			Version:     mustVersion("M20240101000000_NormalizeUserEmail"),
			Description: "lowercase and trim user email addresses",
		},
		CollectionName: UsersCollection,
		Filter:         bson.M{"email": bson.M{"$type": "string"}},
		Transform:      NormalizeEmail,
	}, nil
}

// NormalizeEmail はemailを小文字化し前後の空白を除去する。
func NormalizeEmail(ctx context.Context, coll migration.Collection, doc *bson.D) (bool, error) {
	value, _ := migration.Lookup(*doc, "email")
	email, ok := value.(string)
	if !ok {
		return false, fmt.Errorf("email is %T, not a string", value)
	}
	normalized := strings.ToLower(strings.TrimSpace(email))
	if normalized == email {
		return false, nil
	}
	migration.SetField(doc, "email", normalized)
	return true, nil
}

func createUserEmailIndex() (domain.Migration, error) {
	meta := domain.Metadata{
		Version:     mustVersion("M20240115000000_CreateUserEmailIndex"),
		Description: "unique index on users.email",
	}
	return migration.NewFunc(meta, func(ctx context.Context, db *mongo.Database) error {
		_, err := db.Collection(UsersCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetName("email_unique").SetUnique(true).SetSparse(true),
		})
		if err != nil {
			return fmt.Errorf("failed to create email index: %w", err)
		}
		return nil
	}), nil
}

func renameUserFullName() (domain.Migration, error) {
	return &migration.CollectionMigration{
		Meta: domain.Metadata{
			Version:      mustVersion("M20240201000000_RenameUserFullName"),
			Description:  "rename users.fullname to users.fullName",
			Experimental: true,
		},
		CollectionName: UsersCollection,
		Filter:         bson.M{"fullname": bson.M{"$exists": true}},
		Transform:      RenameFullName,
	}, nil
}

// RenameFullName はfullnameフィールドをfullNameに変更する。
func RenameFullName(ctx context.Context, coll migration.Collection, doc *bson.D) (bool, error) {
	return migration.RenameField(doc, "fullname", "fullName"), nil
}
