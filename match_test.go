package swiftpath_test

import (
	"testing"

	"github.com/sagarc03/swiftpath"
	"github.com/stretchr/testify/assert"
)

func TestPurePath_Match(t *testing.T) {
	tests := []struct {
		path    string
		pattern string
		want    bool
	}{
		{path: "/c/a/b.txt", pattern: "*.txt", want: true},
		{path: "/c/a/b.txt", pattern: "b.txt", want: true},
		{path: "/c/a/b.txt", pattern: "a/*.txt", want: true},
		{path: "/c/a/b.txt", pattern: "*/a/b.txt", want: true},
		{path: "/c/a/b.txt", pattern: "x/*.txt", want: false},
		{path: "/c/a/b.txt", pattern: "*.json", want: false},
		{path: "/c/a/b.txt", pattern: "?.txt", want: true},
		{path: "/c/a/b.txt", pattern: "[ab].txt", want: true},
		{path: "/c/a/b.txt", pattern: "[^ab].txt", want: false},
		{path: "/c/a/b.txt", pattern: "/c/*/b.txt", want: true},
		{path: "/c/a/b.txt", pattern: "/a/b.txt", want: false},
		{path: "/c/a/b.txt", pattern: "too/many/segments/here", want: false},
		{path: "/c/a/b.txt", pattern: "", want: false},
		{path: "/c/a/b.txt", pattern: "[", want: false},
		{path: "/", pattern: "*", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.path+" "+tt.pattern, func(t *testing.T) {
			assert.Equal(t, tt.want, swiftpath.MustPurePath(tt.path).Match(tt.pattern))
		})
	}
}
