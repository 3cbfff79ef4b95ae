package migrations

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"mongo-migrations/internal/domain"
	"mongo-migrations/internal/registry"
)

func TestRegistry_LoadsInOrder(t *testing.T) {
	loc := registry.NewLocator(Registry())

	all, err := loc.GetAllMigrations()
	require.NoError(t, err)
	require.Len(t, all, 2, "experimental migrations are excluded by default")
	require.Equal(t, "M20240101000000_NormalizeUserEmail", all[0].Metadata().Version.String())
	require.Equal(t, "M20240115000000_CreateUserEmailIndex", all[1].Metadata().Version.String())

	loc.Filters = nil
	all, err = loc.GetAllMigrations()
	require.NoError(t, err)
	require.Len(t, all, 3)
	require.True(t, domain.IsExperimental(all[2]))
}

func TestNormalizeEmail(t *testing.T) {
	ctx := context.Background()

	doc := bson.D{{Key: "_id", Value: 1}, {Key: "email", Value: "  Alice@Example.COM "}, {Key: "name", Value: "Alice"}}
	changed, err := NormalizeEmail(ctx, nil, &doc)
	require.NoError(t, err)
	require.True(t, changed)
	require.Equal(t, bson.D{{Key: "_id", Value: 1}, {Key: "email", Value: "alice@example.com"}, {Key: "name", Value: "Alice"}}, doc)

	changed, err = NormalizeEmail(ctx, nil, &doc)
	require.NoError(t, err)
	require.False(t, changed)

	_, err = NormalizeEmail(ctx, nil, &bson.D{{Key: "_id", Value: 2}, {Key: "email", Value: 42}})
	require.Error(t, err)
}

func TestRenameFullName(t *testing.T) {
	doc := bson.D{{Key: "_id", Value: 1}, {Key: "fullname", Value: "Alice Smith"}, {Key: "age", Value: 30}}
	changed, err := RenameFullName(context.Background(), nil, &doc)
	require.NoError(t, err)
	require.True(t, changed)
	require.Equal(t, bson.D{{Key: "_id", Value: 1}, {Key: "fullName", Value: "Alice Smith"}, {Key: "age", Value: 30}}, doc)
}
