package sqlite_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/sagarc03/swiftpath"
	"github.com/sagarc03/swiftpath/database/sqlite"
	"github.com/sagarc03/swiftpath/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func putObject(t *testing.T, repo *sqlite.Repo, key string, size int64) metadata.Object {
	t.Helper()

	obj := metadata.Object{
		ID:          uuid.New(),
		Container:   "bucket",
		Key:         key,
		ContentType: "application/octet-stream",
		Etag:        "etag-" + key,
		SizeBytes:   size,
	}
	_, _, err := repo.Upsert(context.Background(), obj)
	require.NoError(t, err)
	return obj
}

func TestMigrate_ValidateSchema(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db := openMemory(t)
	tables := testTables(t)

	err := sqlite.ValidateSchema(ctx, db, tables)
	assert.ErrorContains(t, err, "does not exist")

	require.NoError(t, sqlite.Migrate(ctx, db, tables))
	require.NoError(t, sqlite.Migrate(ctx, db, tables), "migrate is idempotent")
	assert.NoError(t, sqlite.ValidateSchema(ctx, db, tables))

	require.NoError(t, sqlite.DropTables(ctx, db, tables))
	assert.Error(t, sqlite.ValidateSchema(ctx, db, tables))
}

func TestValidateSchema_MismatchedColumns(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db := openMemory(t)
	tables := testTables(t)

	require.NoError(t, sqlite.Migrate(ctx, db, tables))
	_, err := db.ExecContext(ctx, fmt.Sprintf(`DROP TABLE "%s"`, tables.Objects))
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, fmt.Sprintf(`CREATE TABLE "%s" (id TEXT NOT NULL, key INTEGER)`, tables.Objects))
	require.NoError(t, err)

	err = sqlite.ValidateSchema(ctx, db, tables)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing columns")
	assert.Contains(t, err.Error(), "key: expected text, got integer")
}

func TestNewRepo_InvalidTables(t *testing.T) {
	t.Parallel()

	_, err := sqlite.NewRepo(openMemory(t), metadata.Tables{Containers: "x; DROP", Objects: "o"})
	assert.ErrorContains(t, err, "invalid table name")
}

func TestRepo_Containers(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := setupTestRepo(t)

	_, err := repo.CreateContainer(ctx, "bucket")
	assert.ErrorIs(t, err, swiftpath.ErrExists)

	putObject(t, repo, "a", 3)
	putObject(t, repo, "b/c", 4)

	c, err := repo.GetContainer(ctx, "bucket")
	require.NoError(t, err)
	assert.Equal(t, "bucket", c.Name)
	assert.Equal(t, int64(2), c.Count)
	assert.Equal(t, int64(7), c.Bytes)

	_, err = repo.GetContainer(ctx, "missing")
	assert.ErrorIs(t, err, swiftpath.ErrNotFound)

	assert.ErrorIs(t, repo.DeleteContainer(ctx, "bucket"), swiftpath.ErrDirectoryNotEmpty)
	assert.ErrorIs(t, repo.DeleteContainer(ctx, "missing"), swiftpath.ErrNotFound)

	_, err = repo.CreateContainer(ctx, "empty")
	require.NoError(t, err)
	require.NoError(t, repo.DeleteContainer(ctx, "empty"))
	_, err = repo.GetContainer(ctx, "empty")
	assert.ErrorIs(t, err, swiftpath.ErrNotFound)
}

func TestRepo_ListContainers_Paginates(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := setupTestRepo(t)
	for _, name := range []string{"alpha", "zulu", "mike"} {
		_, err := repo.CreateContainer(ctx, name)
		require.NoError(t, err)
	}

	var got []string
	cursor := ""
	for {
		page, err := repo.ListContainers(ctx, metadata.ContainerQuery{Limit: 2, Cursor: cursor})
		require.NoError(t, err)
		for _, c := range page.Items {
			got = append(got, c.Name)
		}
		if page.NextCursor == "" {
			break
		}
		cursor = page.NextCursor
	}

	assert.Equal(t, []string{"alpha", "bucket", "mike", "zulu"}, got)
}

func TestRepo_Upsert(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := setupTestRepo(t)

	first := putObject(t, repo, "k", 1)

	second := metadata.Object{
		ID:          uuid.New(),
		Container:   "bucket",
		Key:         "k",
		ContentType: "text/plain",
		Etag:        "new",
		SizeBytes:   2,
	}
	previous, replaced, err := repo.Upsert(ctx, second)
	require.NoError(t, err)
	assert.True(t, replaced)
	assert.Equal(t, first.ID, previous.ID)

	got, err := repo.Get(ctx, "bucket", "k")
	require.NoError(t, err)
	assert.Equal(t, second.ID, got.ID)
	assert.Equal(t, "text/plain", got.ContentType)
	assert.Equal(t, int64(2), got.SizeBytes)
	assert.Equal(t, previous.CreatedAt, got.CreatedAt)

	_, _, err = repo.Upsert(ctx, metadata.Object{Container: "missing", Key: "k"})
	assert.ErrorIs(t, err, swiftpath.ErrNotFound)
}

func TestRepo_Upsert_Symlink(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := setupTestRepo(t)

	_, replaced, err := repo.Upsert(ctx, metadata.Object{
		Container:      "bucket",
		Key:            "link",
		ContentType:    swiftpath.SymlinkContentType,
		SymlinkTarget:  "other/target",
		SymlinkAccount: "AUTH_x",
	})
	require.NoError(t, err)
	assert.False(t, replaced)

	got, err := repo.Get(ctx, "bucket", "link")
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, got.ID)
	assert.Equal(t, "other/target", got.SymlinkTarget)
	assert.Equal(t, "AUTH_x", got.SymlinkAccount)
}

func TestRepo_Delete(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := setupTestRepo(t)
	obj := putObject(t, repo, "gone", 1)

	deleted, err := repo.Delete(ctx, "bucket", "gone")
	require.NoError(t, err)
	assert.Equal(t, obj.ID, deleted.ID)

	_, err = repo.Get(ctx, "bucket", "gone")
	assert.ErrorIs(t, err, swiftpath.ErrNotFound)

	_, err = repo.Delete(ctx, "bucket", "gone")
	assert.ErrorIs(t, err, swiftpath.ErrNotFound)
}

func TestRepo_Touch(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := setupTestRepo(t)
	putObject(t, repo, "k", 1)

	before, err := repo.Get(ctx, "bucket", "k")
	require.NoError(t, err)

	after, err := repo.Touch(ctx, "bucket", "k")
	require.NoError(t, err)
	assert.False(t, after.UpdatedAt.Before(before.UpdatedAt))

	_, err = repo.Touch(ctx, "bucket", "missing")
	assert.ErrorIs(t, err, swiftpath.ErrNotFound)
}

func TestRepo_List(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := setupTestRepo(t)
	for _, key := range []string{"a/1", "a/2", "A/3", "a_b", "b", "a/sub/4"} {
		putObject(t, repo, key, 1)
	}

	tests := []struct {
		name   string
		prefix string
		want   []string
	}{
		{name: "all", prefix: "", want: []string{"A/3", "a/1", "a/2", "a/sub/4", "a_b", "b"}},
		{name: "prefix is case sensitive", prefix: "a/", want: []string{"a/1", "a/2", "a/sub/4"}},
		{name: "underscore is literal", prefix: "a_", want: []string{"a_b"}},
		{name: "no match", prefix: "zz", want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []string
			cursor := ""
			for {
				page, err := repo.List(ctx, "bucket", metadata.ListQuery{Prefix: tt.prefix, Limit: 2, Cursor: cursor})
				require.NoError(t, err)
				for _, item := range page.Items {
					got = append(got, item.Key)
				}
				if page.NextCursor == "" {
					break
				}
				cursor = page.NextCursor
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRepo_List_InvalidCursor(t *testing.T) {
	t.Parallel()

	_, err := setupTestRepo(t).List(context.Background(), "bucket", metadata.ListQuery{Cursor: "!!"})
	assert.ErrorContains(t, err, "invalid encoding")
}
