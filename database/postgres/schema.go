package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sagarc03/swiftpath/metadata"
)

const timestamptz = "timestamp with time zone"

var (
	containersSchema = metadata.Schema{
		"name":       {Type: "text"},
		"created_at": {Type: timestamptz},
	}
	objectsSchema = metadata.Schema{
		"id":              {Type: "uuid"},
		"container":       {Type: "text"},
		"key":             {Type: "text"},
		"content_type":    {Type: "text"},
		"etag":            {Type: "text"},
		"size_bytes":      {Type: "bigint"},
		"symlink_target":  {Type: "text"},
		"symlink_account": {Type: "text"},
		"created_at":      {Type: timestamptz},
		"updated_at":      {Type: timestamptz},
	}
)

// ValidateSchema checks that both tables exist in the public schema with
// the expected columns.
func ValidateSchema(ctx context.Context, pool *pgxpool.Pool, tables metadata.Tables) error {
	for table, schema := range map[string]metadata.Schema{
		tables.Containers: containersSchema,
		tables.Objects:    objectsSchema,
	} {
		got, err := tableColumns(ctx, pool, table)
		if err != nil {
			return fmt.Errorf("validate schema %s: %w", table, err)
		}
		if err := schema.CheckColumns(table, got); err != nil {
			return fmt.Errorf("validate schema %s: %w", table, err)
		}
	}
	return nil
}

func tableColumns(ctx context.Context, pool *pgxpool.Pool, table string) (map[string]metadata.Column, error) {
	if !metadata.IsValidTableName(table) {
		return nil, fmt.Errorf("invalid table name: %s", table)
	}

	rows, err := pool.Query(ctx, `
		SELECT column_name, data_type, is_nullable
		FROM information_schema.columns
		WHERE table_schema = 'public' AND table_name = $1`, table)
	if err != nil {
		return nil, fmt.Errorf("query columns: %w", err)
	}
	defer rows.Close()

	cols := make(map[string]metadata.Column)
	for rows.Next() {
		var col, typ, nullable string
		if err := rows.Scan(&col, &typ, &nullable); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		cols[col] = metadata.Column{Type: typ, Nullable: nullable == "YES"}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read columns: %w", err)
	}

	// information_schema has no rows for a table that is not there.
	if len(cols) == 0 {
		return nil, fmt.Errorf("table %s does not exist", table)
	}
	return cols, nil
}
