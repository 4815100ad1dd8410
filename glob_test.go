package swiftpath_test

import (
	"context"
	"testing"

	"github.com/sagarc03/swiftpath"
	"github.com/sagarc03/swiftpath/backend/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func globFixture(t *testing.T) *memory.Backend {
	t.Helper()
	b := fixture(t,
		"a.txt",
		"b.json",
		"logs/2024/jan.gz",
		"logs/2024/feb.gz",
		"logs/2025/mar.gz",
		"logs/readme.txt",
		"deep/x/y/z.txt",
	)
	require.NoError(t, newPath(t, b, "/bucket/emptydir").Mkdir(context.Background(), swiftpath.MkdirOptions{}))
	return b
}

func TestPath_Glob(t *testing.T) {
	ctx := context.Background()
	bucket := newPath(t, globFixture(t), "/bucket")

	tests := []struct {
		pattern string
		want    []string
	}{
		{pattern: "*.txt", want: []string{"/bucket/a.txt"}},
		{pattern: "*", want: []string{"/bucket/a.txt", "/bucket/b.json", "/bucket/deep", "/bucket/emptydir", "/bucket/logs"}},
		{pattern: "logs/*", want: []string{"/bucket/logs/2024", "/bucket/logs/2025", "/bucket/logs/readme.txt"}},
		{pattern: "logs/2024/*.gz", want: []string{"/bucket/logs/2024/feb.gz", "/bucket/logs/2024/jan.gz"}},
		{pattern: "logs/*/*.gz", want: []string{"/bucket/logs/2024/feb.gz", "/bucket/logs/2024/jan.gz", "/bucket/logs/2025/mar.gz"}},
		{pattern: "**/*.txt", want: []string{"/bucket/a.txt", "/bucket/deep/x/y/z.txt", "/bucket/logs/readme.txt"}},
		{pattern: "logs/**/*.gz", want: []string{"/bucket/logs/2024/feb.gz", "/bucket/logs/2024/jan.gz", "/bucket/logs/2025/mar.gz"}},
		{pattern: "deep/**", want: []string{"/bucket/deep", "/bucket/deep/x", "/bucket/deep/x/y"}},
		{pattern: "logs/202?", want: []string{"/bucket/logs/2024", "/bucket/logs/2025"}},
		{pattern: "a.txt", want: []string{"/bucket/a.txt"}},
		{pattern: "logs/2024", want: []string{"/bucket/logs/2024"}},
		{pattern: "missing.txt", want: nil},
		{pattern: "missing/*", want: nil},
		{pattern: "a.txt/*", want: nil},
		{pattern: "emptydir/*", want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.pattern, func(t *testing.T) {
			assert.Equal(t, tt.want, names(t, bucket.Glob(ctx, tt.pattern)))
		})
	}
}

func TestPath_GlobHidesMarkers(t *testing.T) {
	ctx := context.Background()
	bucket := newPath(t, globFixture(t), "/bucket")

	for p, err := range bucket.Glob(ctx, "**/*") {
		require.NoError(t, err)
		assert.NotEqual(t, swiftpath.MarkerName, p.Name())
	}
}

func TestPath_RGlob(t *testing.T) {
	ctx := context.Background()
	b := globFixture(t)

	assert.Equal(t,
		[]string{"/bucket/logs/2024/feb.gz", "/bucket/logs/2024/jan.gz", "/bucket/logs/2025/mar.gz"},
		names(t, newPath(t, b, "/bucket").RGlob(ctx, "*.gz")))

	assert.Equal(t,
		[]string{"/bucket/logs/2024/feb.gz", "/bucket/logs/2024/jan.gz"},
		names(t, newPath(t, b, "/bucket/logs/2024").RGlob(ctx, "*.gz")))
}

func TestPath_GlobFromRoot(t *testing.T) {
	ctx := context.Background()
	b := globFixture(t)
	require.NoError(t, newPath(t, b, "/other").Mkdir(ctx, swiftpath.MkdirOptions{}))
	require.NoError(t, newPath(t, b, "/other/c.txt").WriteText(ctx, "c"))

	root := newPath(t, b, "/")
	assert.Equal(t, []string{"/bucket", "/other"}, names(t, root.Glob(ctx, "*")))
	assert.Equal(t, []string{"/bucket/a.txt", "/other/c.txt"}, names(t, root.Glob(ctx, "*/*.txt")))
}

func TestPath_GlobErrors(t *testing.T) {
	ctx := context.Background()
	bucket := newPath(t, globFixture(t), "/bucket")

	tests := []struct {
		pattern string
		want    error
	}{
		{pattern: "", want: swiftpath.ErrInvalidPath},
		{pattern: "/abs/*", want: swiftpath.ErrUnsupported},
		{pattern: "../*", want: swiftpath.ErrInvalidPath},
		{pattern: "a**b", want: swiftpath.ErrInvalidPath},
		{pattern: "[", want: swiftpath.ErrInvalidPath},
	}

	for _, tt := range tests {
		t.Run(tt.pattern, func(t *testing.T) {
			var gotErr error
			for _, err := range bucket.Glob(ctx, tt.pattern) {
				gotErr = err
			}
			assert.ErrorIs(t, gotErr, tt.want)
		})
	}

	var gotErr error
	for _, err := range bucket.RGlob(ctx, "/abs") {
		gotErr = err
	}
	assert.ErrorIs(t, gotErr, swiftpath.ErrUnsupported)
}
