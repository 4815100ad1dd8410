package local_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sagarc03/swiftpath"
	"github.com/sagarc03/swiftpath/backend/backendtest"
	"github.com/sagarc03/swiftpath/backend/local"
	"github.com/sagarc03/swiftpath/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openBackend(t *testing.T) (*local.Backend, string) {
	t.Helper()

	root := filepath.Join(t.TempDir(), "data")
	b, err := local.Open(context.Background(), local.Config{
		Root:     root,
		Database: database.Config{Type: "sqlite", DSN: ":memory:"},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })

	return b, root
}

// blobCount counts content files, skipping directories.
func blobCount(t *testing.T, root string) int {
	t.Helper()

	n := 0
	err := filepath.WalkDir(root, func(_ string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			n++
		}
		return nil
	})
	require.NoError(t, err)
	return n
}

func TestBackend_Conformance(t *testing.T) {
	backendtest.Run(t, func(t *testing.T) swiftpath.Backend {
		b, _ := openBackend(t)
		return b
	})
}

func TestBackend_Name(t *testing.T) {
	b, _ := openBackend(t)
	assert.Equal(t, "local", b.Name())
}

func TestBackend_ReplacedContentIsRemoved(t *testing.T) {
	ctx := context.Background()
	b, root := openBackend(t)
	require.NoError(t, b.CreateContainer(ctx, "c"))

	backendtest.Put(t, b, "c", "k", "one")
	backendtest.Put(t, b, "c", "k", "two")
	assert.Equal(t, 1, blobCount(t, root))

	require.NoError(t, b.Copy(ctx, swiftpath.ObjectRef{Container: "c", Key: "k"}, swiftpath.ObjectRef{Container: "c", Key: "k2"}))
	assert.Equal(t, 2, blobCount(t, root))

	require.NoError(t, b.Delete(ctx, swiftpath.ObjectRef{Container: "c", Key: "k"}))
	assert.Equal(t, 1, blobCount(t, root))
}

func TestBackend_FailedPutLeavesNoContent(t *testing.T) {
	ctx := context.Background()
	b, root := openBackend(t)

	_, err := b.Put(ctx, swiftpath.ObjectRef{Container: "missing", Key: "k"}, strings.NewReader("x"), swiftpath.PutOptions{})
	assert.ErrorIs(t, err, swiftpath.ErrNotFound)
	assert.Equal(t, 0, blobCount(t, root))
}

func TestBackend_DetectsContentType(t *testing.T) {
	ctx := context.Background()
	b, _ := openBackend(t)
	require.NoError(t, b.CreateContainer(ctx, "c"))

	tests := []struct {
		key  string
		body string
		want string
	}{
		{key: "data.json", body: "{}", want: "application/json"},
		{key: "report", body: "%PDF-1.7\n", want: "application/pdf"},
		{key: "empty", body: "", want: "application/octet-stream"},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			info, err := b.Put(ctx, swiftpath.ObjectRef{Container: "c", Key: tt.key}, strings.NewReader(tt.body), swiftpath.PutOptions{})
			require.NoError(t, err)
			assert.Equal(t, tt.want, info.ContentType)
		})
	}
}

func TestBackend_ListSkipsCollapsedPrefixes(t *testing.T) {
	ctx := context.Background()
	b, _ := openBackend(t)
	require.NoError(t, b.CreateContainer(ctx, "c"))

	for i := range 30 {
		backendtest.Put(t, b, "c", "big/"+strings.Repeat("x", i+1), "x")
	}
	backendtest.Put(t, b, "c", "z", "z")

	res, err := b.List(ctx, "c", swiftpath.ListQuery{Delimiter: "/", Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"big/"}, res.Prefixes)
	require.Len(t, res.Objects, 1)
	assert.Equal(t, "z", res.Objects[0].Key)
	assert.Empty(t, res.NextMarker)
}

func TestBackend_PersistsAcrossOpen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	cfg := local.Config{
		Root:     filepath.Join(dir, "data"),
		Database: database.Config{Type: "sqlite", DSN: filepath.Join(dir, "meta.db")},
	}

	b, err := local.Open(ctx, cfg)
	require.NoError(t, err)
	require.NoError(t, b.CreateContainer(ctx, "c"))
	backendtest.Put(t, b, "c", "k", "kept")
	require.NoError(t, b.Close())

	b, err = local.Open(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })
	assert.Equal(t, "kept", backendtest.Read(t, b, "c", "k"))
}

func TestOpen_BadDatabase(t *testing.T) {
	_, err := local.Open(context.Background(), local.Config{
		Root:     t.TempDir(),
		Database: database.Config{Type: "oracle", DSN: "x"},
	})
	assert.ErrorContains(t, err, "unsupported database type")
}
