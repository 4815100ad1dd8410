package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sagarc03/swiftpath"
	"github.com/sagarc03/swiftpath/backend/memory"
	"github.com/sagarc03/swiftpath/config"
)

func TestNewFormatter(t *testing.T) {
	t.Run("json formatter", func(t *testing.T) {
		_, ok := NewFormatter(true, false).(*JSONFormatter)
		assert.True(t, ok)
	})

	t.Run("human formatter quiet", func(t *testing.T) {
		hf, ok := NewFormatter(false, true).(*HumanFormatter)
		require.True(t, ok)
		assert.True(t, hf.Quiet)
	})
}

func entries(t *testing.T) []swiftpath.DirEntry {
	t.Helper()

	b := memory.New()
	mk := func(s string) swiftpath.Path {
		p, err := swiftpath.New(b, s)
		require.NoError(t, err)
		return p
	}
	mod := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return []swiftpath.DirEntry{
		{Path: mk("/box/docs"), Name: "docs", IsDir: true},
		{Path: mk("/box/a.txt"), Name: "a.txt", Size: 2048, ModTime: mod, Hash: "abc"},
		{Path: mk("/box/latest"), Name: "latest", IsSymlink: true},
	}
}

func TestHumanFormatter_FormatEntries(t *testing.T) {
	t.Parallel()

	t.Run("table", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		require.NoError(t, (&HumanFormatter{}).FormatEntries(&buf, "/box", entries(t)))

		out := buf.String()
		assert.Contains(t, out, "NAME")
		assert.Contains(t, out, "docs/")
		assert.Contains(t, out, "latest@")
		assert.Contains(t, out, "2.0 KB")
		assert.Contains(t, out, "3 entries")
	})

	t.Run("empty", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		require.NoError(t, (&HumanFormatter{}).FormatEntries(&buf, "/box", nil))
		assert.Equal(t, "/box is empty\n", buf.String())
	})

	t.Run("quiet drops header and summary", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		require.NoError(t, (&HumanFormatter{Quiet: true}).FormatEntries(&buf, "/box", entries(t)))
		assert.NotContains(t, buf.String(), "NAME")
		assert.NotContains(t, buf.String(), "entries")
	})
}

func TestJSONFormatter_FormatEntries(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, (&JSONFormatter{}).FormatEntries(&buf, "/box", entries(t)))

	var out struct {
		Dir     string `json:"dir"`
		Entries []struct {
			Path     string `json:"path"`
			IsDir    bool   `json:"is_dir"`
			Size     int64  `json:"size_bytes"`
			Modified string `json:"modified"`
		} `json:"entries"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	assert.Equal(t, "/box", out.Dir)
	require.Len(t, out.Entries, 3)
	assert.Equal(t, "/box/docs", out.Entries[0].Path)
	assert.True(t, out.Entries[0].IsDir)
	assert.Empty(t, out.Entries[0].Modified)
	assert.Equal(t, int64(2048), out.Entries[1].Size)
	assert.Equal(t, "2024-05-01T12:00:00Z", out.Entries[1].Modified)
}

func TestHumanFormatter_FormatStat(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		st       swiftpath.StatResult
		contains []string
		excludes []string
	}{
		{
			name:     "object",
			st:       swiftpath.StatResult{Size: 5, ContentType: "text/plain", Hash: "h1"},
			contains: []string{"Type:         object", "5 B (5 bytes)", "text/plain", "h1"},
		},
		{
			name:     "directory",
			st:       swiftpath.StatResult{IsDir: true},
			contains: []string{"Type:         directory", "Modified:     -"},
			excludes: []string{"Size:"},
		},
		{
			name:     "symlink",
			st:       swiftpath.StatResult{IsSymlink: true, SymlinkTarget: "box/a.txt"},
			contains: []string{"Type:         symlink", "Target:       box/a.txt"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			require.NoError(t, (&HumanFormatter{}).FormatStat(&buf, "/box/x", tt.st))
			for _, s := range tt.contains {
				assert.Contains(t, buf.String(), s)
			}
			for _, s := range tt.excludes {
				assert.NotContains(t, buf.String(), s)
			}
		})
	}
}

func TestFormatDone(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, (&HumanFormatter{}).FormatDone(&buf, "removed", "/box/a"))
	assert.Equal(t, "removed: /box/a\n", buf.String())

	buf.Reset()
	require.NoError(t, (&HumanFormatter{Quiet: true}).FormatDone(&buf, "removed", "/box/a"))
	assert.Empty(t, buf.String())

	buf.Reset()
	require.NoError(t, (&JSONFormatter{}).FormatDone(&buf, "removed", "/box/a"))
	assert.JSONEq(t, `{"action":"removed","path":"/box/a"}`, buf.String())
}

func TestFormatError(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, (&JSONFormatter{}).FormatError(&buf, errors.New("boom")))
	assert.JSONEq(t, `{"error":"boom"}`, buf.String())

	buf.Reset()
	require.NoError(t, (&HumanFormatter{}).FormatError(&buf, errors.New("boom")))
	assert.Equal(t, "Error: boom\n", buf.String())
}

func TestFormatProfiles(t *testing.T) {
	t.Parallel()

	profiles := []config.Profile{
		{Name: "prod", Backend: config.BackendSwift, AuthURL: "https://keystone/v3", Username: "ops", Password: "supersecretpw"},
		{Name: "dev", Backend: config.BackendRemote, Endpoint: "http://localhost:5708", AccessKey: "AKIADEV", SecretKey: "devsecretvalue"},
	}

	t.Run("human list masks secrets", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		require.NoError(t, (&HumanFormatter{}).FormatProfileList(&buf, profiles, "prod", false))
		out := buf.String()
		assert.Contains(t, out, "prod")
		assert.Contains(t, out, "https://keystone/v3")
		assert.NotContains(t, out, "devsecretvalue")
	})

	t.Run("json show", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		require.NoError(t, (&JSONFormatter{}).FormatProfileShow(&buf, profiles[1], true, false))

		var out map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
		assert.Equal(t, "dev", out["name"])
		assert.Equal(t, "remote", out["backend"])
		assert.Equal(t, "devs...alue", out["secret_key"])
	})

	t.Run("json show secrets", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		require.NoError(t, (&JSONFormatter{}).FormatProfileShow(&buf, profiles[0], false, true))
		assert.Contains(t, buf.String(), "supersecretpw")
	})
}

func TestFormatSize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		bytes int64
		want  string
	}{
		{0, "0 B"},
		{1023, "1023 B"},
		{1024, "1.0 KB"},
		{1536, "1.5 KB"},
		{5 * 1024 * 1024, "5.0 MB"},
		{3 * 1024 * 1024 * 1024, "3.0 GB"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, formatSize(tt.bytes))
	}
}

func TestMaskSecret(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "(not set)", maskSecret("", false))
	assert.Equal(t, "********", maskSecret("short", false))
	assert.Equal(t, "abcd...mnop", maskSecret("abcdefghijklmnop", false))
	assert.Equal(t, "abcdefghijklmnop", maskSecret("abcdefghijklmnop", true))
}
