package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/sagarc03/swiftpath/metadata"
)

// SQLite reports declared types, so these match the CREATE TABLE statements.
var (
	containersSchema = metadata.Schema{
		"name":       {Type: "text"},
		"created_at": {Type: "text"},
	}
	objectsSchema = metadata.Schema{
		"id":              {Type: "text"},
		"container":       {Type: "text"},
		"key":             {Type: "text"},
		"content_type":    {Type: "text"},
		"etag":            {Type: "text"},
		"size_bytes":      {Type: "integer"},
		"symlink_target":  {Type: "text"},
		"symlink_account": {Type: "text"},
		"created_at":      {Type: "text"},
		"updated_at":      {Type: "text"},
	}
)

// ValidateSchema checks that both tables exist with the expected columns.
func ValidateSchema(ctx context.Context, db *sql.DB, tables metadata.Tables) error {
	for table, schema := range map[string]metadata.Schema{
		tables.Containers: containersSchema,
		tables.Objects:    objectsSchema,
	} {
		got, err := tableColumns(ctx, db, table)
		if err != nil {
			return fmt.Errorf("validate schema %s: %w", table, err)
		}
		if err := schema.CheckColumns(table, got); err != nil {
			return fmt.Errorf("validate schema %s: %w", table, err)
		}
	}
	return nil
}

// tableColumns reads PRAGMA table_info. A missing table is an error.
func tableColumns(ctx context.Context, db *sql.DB, table string) (map[string]metadata.Column, error) {
	if !metadata.IsValidTableName(table) {
		return nil, fmt.Errorf("invalid table name: %s", table)
	}

	var name string
	err := db.QueryRowContext(ctx, `SELECT name FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("table %s does not exist", table)
	}
	if err != nil {
		return nil, fmt.Errorf("check table exists: %w", err)
	}

	rows, err := db.QueryContext(ctx, fmt.Sprintf(`PRAGMA table_info(%s)`, quoteIdentifier(table)))
	if err != nil {
		return nil, fmt.Errorf("query columns: %w", err)
	}
	defer func() { _ = rows.Close() }()

	cols := make(map[string]metadata.Column)
	for rows.Next() {
		var (
			cid, notNull, pk int
			col, typ         string
			dflt             sql.NullString
		)
		if err := rows.Scan(&cid, &col, &typ, &notNull, &dflt, &pk); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		cols[col] = metadata.Column{Type: typ, Nullable: notNull == 0}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read columns: %w", err)
	}
	return cols, nil
}
