// Package backendtest checks that a swiftpath.Backend behaves the way the
// path layer expects. Backend packages call Run from their own tests.
package backendtest

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/sagarc03/swiftpath"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory returns an empty backend. It is called once per subtest.
type Factory func(t *testing.T) swiftpath.Backend

// Run exercises containers, listings and object operations. Symlink tests
// run only when the backend implements swiftpath.Symlinker.
func Run(t *testing.T, newBackend Factory) {
	t.Helper()

	t.Run("containers", func(t *testing.T) { runContainerTests(t, newBackend(t)) })
	t.Run("list", func(t *testing.T) { runListTests(t, newBackend(t)) })
	t.Run("list pagination", func(t *testing.T) { runPaginationTests(t, newBackend(t)) })
	t.Run("objects", func(t *testing.T) { runObjectTests(t, newBackend(t)) })
	t.Run("symlinks", func(t *testing.T) {
		b := newBackend(t)
		if _, ok := b.(swiftpath.Symlinker); !ok {
			t.Skipf("%s has no native symlinks", b.Name())
		}
		runSymlinkTests(t, b)
	})
	t.Run("path layer", func(t *testing.T) { runPathTests(t, newBackend(t)) })
}

func ref(container, key string) swiftpath.ObjectRef {
	return swiftpath.ObjectRef{Container: container, Key: key}
}

// Put writes body under container/key.
func Put(t *testing.T, b swiftpath.Backend, container, key, body string) {
	t.Helper()
	_, err := b.Put(context.Background(), ref(container, key), strings.NewReader(body), swiftpath.PutOptions{})
	require.NoError(t, err)
}

// Read returns the content of container/key.
func Read(t *testing.T, b swiftpath.Backend, container, key string) string {
	t.Helper()
	_, rc, err := b.Get(context.Background(), ref(container, key))
	require.NoError(t, err)
	defer func() { _ = rc.Close() }()

	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	return string(data)
}

func seed(t *testing.T, b swiftpath.Backend, keys ...string) {
	t.Helper()
	require.NoError(t, b.CreateContainer(context.Background(), "c"))
	for _, k := range keys {
		Put(t, b, "c", k, k)
	}
}

func runContainerTests(t *testing.T, b swiftpath.Backend) {
	ctx := context.Background()

	require.NoError(t, b.CreateContainer(ctx, "b"))
	require.NoError(t, b.CreateContainer(ctx, "a"))
	assert.ErrorIs(t, b.CreateContainer(ctx, "a"), swiftpath.ErrExists)

	res, err := b.ListContainers(ctx, "", 1)
	require.NoError(t, err)
	require.Len(t, res.Containers, 1)
	assert.Equal(t, "a", res.Containers[0].Name)
	assert.Equal(t, "a", res.NextMarker)

	res, err = b.ListContainers(ctx, res.NextMarker, 1)
	require.NoError(t, err)
	require.Len(t, res.Containers, 1)
	assert.Equal(t, "b", res.Containers[0].Name)
	assert.Empty(t, res.NextMarker)

	Put(t, b, "a", "x", "12345")
	info, err := b.StatContainer(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, int64(1), info.Count)
	assert.Equal(t, int64(5), info.Bytes)

	assert.ErrorIs(t, b.DeleteContainer(ctx, "a"), swiftpath.ErrDirectoryNotEmpty)
	assert.ErrorIs(t, b.DeleteContainer(ctx, "missing"), swiftpath.ErrNotFound)
	require.NoError(t, b.DeleteContainer(ctx, "b"))

	_, err = b.StatContainer(ctx, "b")
	assert.ErrorIs(t, err, swiftpath.ErrNotFound)

	_, err = b.List(ctx, "b", swiftpath.ListQuery{})
	assert.ErrorIs(t, err, swiftpath.ErrNotFound)
}

func keysOf(res swiftpath.ListResult) []string {
	keys := make([]string, 0, len(res.Objects))
	for _, o := range res.Objects {
		keys = append(keys, o.Key)
	}
	return keys
}

func runListTests(t *testing.T, b swiftpath.Backend) {
	seed(t, b, "a/1", "a/2", "a/b/3", "b", "c/4")

	tests := []struct {
		name         string
		query        swiftpath.ListQuery
		wantObjects  []string
		wantPrefixes []string
	}{
		{
			name:        "flat",
			query:       swiftpath.ListQuery{},
			wantObjects: []string{"a/1", "a/2", "a/b/3", "b", "c/4"},
		},
		{
			name:         "top level",
			query:        swiftpath.ListQuery{Delimiter: "/"},
			wantObjects:  []string{"b"},
			wantPrefixes: []string{"a/", "c/"},
		},
		{
			name:         "one level down",
			query:        swiftpath.ListQuery{Prefix: "a/", Delimiter: "/"},
			wantObjects:  []string{"a/1", "a/2"},
			wantPrefixes: []string{"a/b/"},
		},
		{
			name:        "prefix without delimiter",
			query:       swiftpath.ListQuery{Prefix: "a/"},
			wantObjects: []string{"a/1", "a/2", "a/b/3"},
		},
		{
			name:         "marker after prefix skips its keys",
			query:        swiftpath.ListQuery{Delimiter: "/", Marker: "a/"},
			wantObjects:  []string{"b"},
			wantPrefixes: []string{"c/"},
		},
		{
			name:        "marker is exclusive",
			query:       swiftpath.ListQuery{Marker: "a/2"},
			wantObjects: []string{"a/b/3", "b", "c/4"},
		},
		{
			name:  "no match",
			query: swiftpath.ListQuery{Prefix: "zz"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := b.List(context.Background(), "c", tt.query)
			require.NoError(t, err)
			assert.Equal(t, tt.wantObjects, nilIfEmpty(keysOf(res)))
			assert.Equal(t, tt.wantPrefixes, nilIfEmpty(res.Prefixes))
			assert.Empty(t, res.NextMarker)
		})
	}
}

func nilIfEmpty(s []string) []string {
	if len(s) == 0 {
		return nil
	}
	return s
}

func runPaginationTests(t *testing.T, b swiftpath.Backend) {
	seed(t, b, "a/1", "a/2", "b", "c/1", "d")

	var entries []string
	marker := ""
	pages := 0
	for {
		res, err := b.List(context.Background(), "c", swiftpath.ListQuery{Delimiter: "/", Marker: marker, Limit: 2})
		require.NoError(t, err)
		pages++

		entries = append(entries, res.Prefixes...)
		entries = append(entries, keysOf(res)...)
		if res.NextMarker == "" {
			break
		}
		marker = res.NextMarker
	}

	assert.ElementsMatch(t, []string{"a/", "b", "c/", "d"}, entries)
	assert.Equal(t, 2, pages)
}

func runObjectTests(t *testing.T, b swiftpath.Backend) {
	ctx := context.Background()
	seed(t, b)

	_, err := b.Put(ctx, ref("missing", "k"), strings.NewReader("x"), swiftpath.PutOptions{})
	assert.ErrorIs(t, err, swiftpath.ErrNotFound)

	info, err := b.Put(ctx, ref("c", "doc.json"), strings.NewReader(`{"a":1}`), swiftpath.PutOptions{ContentType: "application/json"})
	require.NoError(t, err)
	assert.Equal(t, int64(7), info.Size)
	assert.Equal(t, "application/json", info.ContentType)
	assert.Equal(t, "bb6cb5c68df4652941caf652a366f2d8", info.Hash)

	stat, err := b.Stat(ctx, ref("c", "doc.json"))
	require.NoError(t, err)
	assert.Equal(t, info.Hash, stat.Hash)
	assert.False(t, stat.IsSymlink())

	Put(t, b, "c", "doc.json", "replaced")
	assert.Equal(t, "replaced", Read(t, b, "c", "doc.json"))

	require.NoError(t, b.Copy(ctx, ref("c", "doc.json"), ref("c", "copy.json")))
	assert.Equal(t, "replaced", Read(t, b, "c", "copy.json"))

	require.NoError(t, b.Touch(ctx, ref("c", "copy.json")))
	assert.ErrorIs(t, b.Touch(ctx, ref("c", "missing")), swiftpath.ErrNotFound)

	require.NoError(t, b.Delete(ctx, ref("c", "doc.json")))
	assert.ErrorIs(t, b.Delete(ctx, ref("c", "doc.json")), swiftpath.ErrNotFound)

	_, _, err = b.Get(ctx, ref("c", "doc.json"))
	assert.ErrorIs(t, err, swiftpath.ErrNotFound)
	_, err = b.Stat(ctx, ref("c", "doc.json"))
	assert.ErrorIs(t, err, swiftpath.ErrNotFound)
	assert.ErrorIs(t, b.Copy(ctx, ref("c", "doc.json"), ref("c", "x")), swiftpath.ErrNotFound)

	assert.Equal(t, "replaced", Read(t, b, "c", "copy.json"))
}

func runSymlinkTests(t *testing.T, b swiftpath.Backend) {
	ctx := context.Background()
	seed(t, b, "target")
	linker := b.(swiftpath.Symlinker)

	require.NoError(t, linker.Symlink(ctx, ref("c", "link"), ref("c", "target"), swiftpath.SymlinkOptions{}))
	assert.Equal(t, "target", Read(t, b, "c", "link"))

	info, err := b.Stat(ctx, ref("c", "link"))
	require.NoError(t, err)
	assert.True(t, info.IsSymlink())
	assert.Equal(t, "c/target", info.SymlinkTarget)
	assert.Equal(t, int64(len("target")), info.Size)

	require.NoError(t, b.Copy(ctx, ref("c", "link"), ref("c", "link2")))
	info, err = b.Stat(ctx, ref("c", "link2"))
	require.NoError(t, err)
	assert.True(t, info.IsSymlink(), "a copied link stays a link")

	require.NoError(t, b.Delete(ctx, ref("c", "target")))
	info, err = b.Stat(ctx, ref("c", "link"))
	require.NoError(t, err, "dangling links are still reported")
	assert.True(t, info.IsSymlink())

	_, _, err = b.Get(ctx, ref("c", "link"))
	assert.ErrorIs(t, err, swiftpath.ErrNotFound)

	opts := swiftpath.SymlinkOptions{TargetAccount: "AUTH_other"}
	require.NoError(t, linker.Symlink(ctx, ref("c", "remote"), ref("shared", "x"), opts))
	info, err = b.Stat(ctx, ref("c", "remote"))
	require.NoError(t, err)
	assert.Equal(t, "shared/x", info.SymlinkTarget)
	assert.Equal(t, "AUTH_other", info.SymlinkAccount)

	require.NoError(t, b.Copy(ctx, ref("c", "remote"), ref("c", "remote2")))
	info, err = b.Stat(ctx, ref("c", "remote2"))
	require.NoError(t, err)
	assert.Equal(t, "shared/x", info.SymlinkTarget)
	assert.Equal(t, "AUTH_other", info.SymlinkAccount, "copy keeps the target account")
}

// runPathTests drives the backend through the path layer.
func runPathTests(t *testing.T, b swiftpath.Backend) {
	ctx := context.Background()
	seed(t, b, "dir/a.txt", "dir/sub/b.txt")

	dir, err := swiftpath.New(b, "/c/dir")
	require.NoError(t, err)

	isDir, err := dir.IsDir(ctx)
	require.NoError(t, err)
	assert.True(t, isDir)

	var got []string
	for p, err := range dir.RGlob(ctx, "*.txt") {
		require.NoError(t, err)
		got = append(got, p.String())
	}
	assert.ElementsMatch(t, []string{"/c/dir/a.txt", "/c/dir/sub/b.txt"}, got)

	target, err := dir.WithName("moved")
	require.NoError(t, err)
	moved, err := dir.Rename(ctx, target.Pure())
	require.NoError(t, err)
	assert.Equal(t, "/c/moved", moved.String())
	assert.Equal(t, "dir/sub/b.txt", Read(t, b, "c", "moved/sub/b.txt"))

	exists, err := dir.Exists(ctx)
	require.NoError(t, err)
	assert.False(t, exists)
}
