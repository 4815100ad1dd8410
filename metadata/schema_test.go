package metadata_test

import (
	"testing"

	"github.com/sagarc03/swiftpath/metadata"
	"github.com/stretchr/testify/assert"
)

func TestSchema_CheckColumns(t *testing.T) {
	t.Parallel()

	want := metadata.Schema{
		"key":  {Type: "text"},
		"size": {Type: "bigint"},
		"etag": {Type: "text", Nullable: true},
	}

	tests := []struct {
		name     string
		got      map[string]metadata.Column
		contains []string
	}{
		{
			name: "match with extra column and case difference",
			got: map[string]metadata.Column{
				"key":   {Type: "TEXT"},
				"size":  {Type: "bigint"},
				"etag":  {Type: "text", Nullable: true},
				"extra": {Type: "integer"},
			},
		},
		{
			name:     "missing columns sorted",
			got:      map[string]metadata.Column{"key": {Type: "text"}},
			contains: []string{"table objects schema validation failed", "missing columns: etag, size"},
		},
		{
			name: "type and nullability mismatch",
			got: map[string]metadata.Column{
				"key":  {Type: "text", Nullable: true},
				"size": {Type: "INTEGER"},
				"etag": {Type: "text", Nullable: true},
			},
			contains: []string{
				"key: expected nullable=false, got nullable=true",
				"size: expected bigint, got integer",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := want.CheckColumns("objects", tt.got)
			if len(tt.contains) == 0 {
				assert.NoError(t, err)
				return
			}
			for _, s := range tt.contains {
				assert.ErrorContains(t, err, s)
			}
		})
	}
}
