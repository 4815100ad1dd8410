package metadata

import (
	"encoding/base64"
	"fmt"
	"strings"
)

const cursorTag = "k|"

// LastKey is larger than every key a listing can return, so a cursor of
// prefix+LastKey resumes after everything below prefix.
const LastKey = "\U0010FFFF"

// Cursor is the decoded position of a listing. Rows sorting after After are
// returned next.
type Cursor struct {
	After string
}

// EncodeCursor encodes the last returned key to a base64 string for pagination.
func EncodeCursor(after string) string {
	return base64.URLEncoding.EncodeToString([]byte(cursorTag + after))
}

// DecodeCursor decodes a pagination cursor string back to cursor data.
func DecodeCursor(cursor string) (Cursor, error) {
	if cursor == "" {
		return Cursor{}, nil
	}

	decoded, err := base64.URLEncoding.DecodeString(cursor)
	if err != nil {
		return Cursor{}, fmt.Errorf("decode cursor: invalid encoding: %w", err)
	}

	after, ok := strings.CutPrefix(string(decoded), cursorTag)
	if !ok {
		return Cursor{}, fmt.Errorf("decode cursor: invalid format")
	}

	if after == "" {
		return Cursor{}, fmt.Errorf("decode cursor: empty key")
	}

	return Cursor{After: after}, nil
}

// EscapeLikePattern escapes special LIKE characters (%, _, \) to prevent SQL injection.
func EscapeLikePattern(pattern string) string {
	pattern = strings.ReplaceAll(pattern, `\`, `\\`)
	pattern = strings.ReplaceAll(pattern, `%`, `\%`)
	pattern = strings.ReplaceAll(pattern, `_`, `\_`)
	return pattern
}
