package metadata_test

import (
	"encoding/base64"
	"testing"

	"github.com/sagarc03/swiftpath/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeCursor_DecodeCursor_RoundTrip(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		key  string
	}{
		{name: "simple key", key: "test/file.txt"},
		{name: "key with pipe character", key: "path|with|pipes.txt"},
		{name: "deeply nested key", key: "a/b/c/d/e/f/g/h/i/j/file.txt"},
		{name: "prefix skip", key: "photos/" + metadata.LastKey},
		{name: "unicode", key: "données/été.csv"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			encoded := metadata.EncodeCursor(tt.key)
			assert.NotEmpty(t, encoded)

			decoded, err := metadata.DecodeCursor(encoded)
			require.NoError(t, err)
			assert.Equal(t, tt.key, decoded.After)
		})
	}
}

func TestDecodeCursor_EmptyString(t *testing.T) {
	t.Parallel()

	cursor, err := metadata.DecodeCursor("")
	require.NoError(t, err)
	assert.Empty(t, cursor.After)
}

func TestDecodeCursor_Invalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cursor  string
		wantErr string
	}{
		{name: "invalid base64", cursor: "not-valid-base64!!!", wantErr: "invalid encoding"},
		{name: "missing tag", cursor: base64.URLEncoding.EncodeToString([]byte("file.txt")), wantErr: "invalid format"},
		{name: "empty key", cursor: base64.URLEncoding.EncodeToString([]byte("k|")), wantErr: "empty key"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := metadata.DecodeCursor(tt.cursor)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestEscapeLikePattern(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input string
		want  string
	}{
		{input: "plain/prefix", want: "plain/prefix"},
		{input: "100%", want: `100\%`},
		{input: "snake_case", want: `snake\_case`},
		{input: `back\slash`, want: `back\\slash`},
		{input: `%_\`, want: `\%\_\\`},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, metadata.EscapeLikePattern(tt.input))
		})
	}
}

func TestTables_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		tables  metadata.Tables
		wantErr string
	}{
		{name: "defaults", tables: metadata.DefaultTables},
		{name: "empty", tables: metadata.Tables{Containers: "c"}, wantErr: "cannot be empty"},
		{name: "uppercase", tables: metadata.Tables{Containers: "Containers", Objects: "objects"}, wantErr: "invalid table name"},
		{name: "leading digit", tables: metadata.Tables{Containers: "1c", Objects: "objects"}, wantErr: "invalid table name"},
		{name: "same table", tables: metadata.Tables{Containers: "t", Objects: "t"}, wantErr: "share the table"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := tt.tables.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
