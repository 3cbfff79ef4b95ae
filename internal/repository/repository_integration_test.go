//go:build integration

package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"mongo-migrations/internal/domain"
)

// setupTestClient はテスト用のMongoDBコンテナを起動して接続する。
func setupTestClient(t *testing.T) *mongo.Client {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "mongo:7",
			ExposedPorts: []string{"27017/tcp"},
			WaitingFor:   wait.ForListeningPort("27017/tcp"),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("failed to start mongo container: %v", err)
	}
	t.Cleanup(func() {
		_ = container.Terminate(ctx)
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "27017/tcp")
	require.NoError(t, err)

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(fmt.Sprintf("mongodb://%s:%s", host, port.Port())))
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = client.Disconnect(ctx)
	})
	require.NoError(t, client.Ping(ctx, nil))
	return client
}

func TestLedgerRepository(t *testing.T) {
	ctx := context.Background()
	client := setupTestClient(t)
	repo := NewLedgerRepository(client.Database("ledger_test"), "")
	require.Equal(t, DefaultLedgerCollection, repo.CollectionName())

	// コレクションが存在しない場合は空
	entries, err := repo.FindAll(ctx)
	require.NoError(t, err)
	require.Empty(t, entries)

	v1 := domain.MustParseVersion("M20190718000000_First")
	v2 := domain.MustParseVersion("M20190719000000_Second")
	started := time.Date(2019, 7, 18, 10, 0, 0, 0, time.UTC)

	require.NoError(t, repo.Insert(ctx, &domain.AppliedMigration{Version: v1, Description: "first", StartedOn: started}))
	require.NoError(t, repo.Insert(ctx, domain.MarkerOnly(v2, started)))

	require.NoError(t, repo.Complete(ctx, v1, started.Add(time.Minute)))
	require.ErrorIs(t, repo.Complete(ctx, v1, started), domain.ErrLedgerEntryNotFound)

	entries, err = repo.FindAll(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	for _, e := range entries {
		require.Equal(t, domain.MigrationStatusApplied, e.Status())
	}

	// 保存形式は正規の文字列
	var raw bson.M
	require.NoError(t, client.Database("ledger_test").Collection(DefaultLedgerCollection).
		FindOne(ctx, bson.M{"description": "first"}).Decode(&raw))
	require.Equal(t, "M20190718000000_First", raw["version"])

	// 未完了レコードの削除
	v3 := domain.MustParseVersion("M20190720000000_Crashed")
	require.NoError(t, repo.Insert(ctx, &domain.AppliedMigration{Version: v3, StartedOn: started}))
	deleted, err := repo.DeleteIncomplete(ctx, v3)
	require.NoError(t, err)
	require.EqualValues(t, 1, deleted)

	deleted, err = repo.DeleteIncomplete(ctx, v1)
	require.NoError(t, err)
	require.EqualValues(t, 0, deleted)
}

func TestBackupRepository(t *testing.T) {
	ctx := context.Background()
	client := setupTestClient(t)
	repo := NewBackupRepository(client)

	docs := make([]interface{}, 0, cloneBatchSize+5)
	for i := 0; i < cloneBatchSize+5; i++ {
		docs = append(docs, bson.M{"n": i})
	}
	_, err := client.Database("Live").Collection("items").InsertMany(ctx, docs)
	require.NoError(t, err)

	exists, err := repo.DatabaseExists(ctx, "live")
	require.NoError(t, err)
	require.True(t, exists)

	exists, err = repo.DatabaseExists(ctx, "Live_MigrationBackup")
	require.NoError(t, err)
	require.False(t, exists)

	// 複製先の既存ドキュメントは置き換えられる
	_, err = client.Database("Live_MigrationBackup").Collection("items").InsertOne(ctx, bson.M{"stale": true})
	require.NoError(t, err)

	require.NoError(t, repo.CloneDatabase(ctx, "Live", "Live_MigrationBackup"))

	count, err := client.Database("Live_MigrationBackup").Collection("items").CountDocuments(ctx, bson.D{})
	require.NoError(t, err)
	require.EqualValues(t, cloneBatchSize+5, count)

	require.NoError(t, repo.DropDatabase(ctx, "Live_MigrationBackup"))
	exists, err = repo.DatabaseExists(ctx, "Live_MigrationBackup")
	require.NoError(t, err)
	require.False(t, exists)
}
