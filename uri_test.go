package swiftpath_test

import (
	"testing"

	"github.com/sagarc03/swiftpath"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPurePath_AsURI(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{path: "/", want: "swift://"},
		{path: "/bucket", want: "swift://bucket"},
		{path: "/bucket/dir/a.txt", want: "swift://bucket/dir/a.txt"},
		{path: "/bucket/with space", want: "swift://bucket/with%20space"},
		{path: "/bucket/100%", want: "swift://bucket/100%25"},
		{path: "/bucket/a#b?c", want: "swift://bucket/a%23b%3Fc"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, swiftpath.MustPurePath(tt.path).AsURI())
		})
	}
}

func TestParseURI_RoundTrip(t *testing.T) {
	paths := []string{
		"/",
		"/bucket",
		"/bucket/plain/key.txt",
		"/bucket/with space/and%percent",
		"/bucket/hash#and?query",
		"/bucket/semi;colon,comma",
		"/bücket/ключ/日本語.txt",
		"/bucket/plus+equals=at@",
	}

	for _, s := range paths {
		t.Run(s, func(t *testing.T) {
			p := swiftpath.MustPurePath(s)
			back, err := swiftpath.ParseURI(p.AsURI())
			require.NoError(t, err)
			assert.True(t, p.Equal(back), "%s -> %s -> %s", p, p.AsURI(), back)
		})
	}
}

func TestParseURI_Errors(t *testing.T) {
	tests := []struct {
		name string
		uri  string
	}{
		{name: "wrong scheme", uri: "s3://bucket/key"},
		{name: "no scheme", uri: "/bucket/key"},
		{name: "bad escape", uri: "swift://bucket/%zz"},
		{name: "above root", uri: "swift://bucket/../.."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := swiftpath.ParseURI(tt.uri)
			assert.ErrorIs(t, err, swiftpath.ErrInvalidPath)
		})
	}
}
