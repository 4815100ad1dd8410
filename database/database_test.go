package database_test

import (
	"context"
	"testing"

	"github.com/sagarc03/swiftpath"
	"github.com/sagarc03/swiftpath/database"
	"github.com/sagarc03/swiftpath/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnect_SQLite(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	repo, cleanup, err := database.Connect(ctx, database.Config{Type: "sqlite", DSN: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(cleanup)

	require.NoError(t, repo.Ping(ctx))

	_, err = repo.CreateContainer(ctx, "bucket")
	require.NoError(t, err)

	_, replaced, err := repo.Upsert(ctx, metadata.Object{Container: "bucket", Key: "k", SizeBytes: 1})
	require.NoError(t, err)
	assert.False(t, replaced)

	page, err := repo.List(ctx, "bucket", metadata.ListQuery{})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "k", page.Items[0].Key)
}

func TestConnect_CustomTables(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	repo, cleanup, err := database.Connect(ctx, database.Config{
		Type:   "sqlite",
		DSN:    ":memory:",
		Tables: metadata.Tables{Containers: "my_containers", Objects: "my_objects"},
	})
	require.NoError(t, err)
	t.Cleanup(cleanup)

	_, err = repo.GetContainer(ctx, "missing")
	assert.ErrorIs(t, err, swiftpath.ErrNotFound)
}

func TestConnect_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cfg     database.Config
		wantErr string
	}{
		{name: "invalid type", cfg: database.Config{Type: "mysql", DSN: "x"}, wantErr: "unsupported database type: mysql"},
		{name: "empty type", cfg: database.Config{DSN: "x"}, wantErr: "unsupported database type"},
		{
			name:    "invalid tables",
			cfg:     database.Config{Type: "sqlite", DSN: ":memory:", Tables: metadata.Tables{Containers: "Bad", Objects: "o"}},
			wantErr: "invalid table name",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			repo, cleanup, err := database.Connect(context.Background(), tt.cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
			assert.Nil(t, repo)
			assert.Nil(t, cleanup)
		})
	}
}
