package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/sagarc03/swiftpath/metadata"
)

// quoteIdentifier quotes a table or index name. Names are checked by
// metadata.Tables.Validate before they get here.
func quoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// Timestamps are RFC 3339 text; sqlite has no native time type.
const (
	containersDDL = `CREATE TABLE IF NOT EXISTS %[1]s (
		name TEXT NOT NULL PRIMARY KEY,
		created_at TEXT NOT NULL
	)`

	objectsDDL = `CREATE TABLE IF NOT EXISTS %[1]s (
		id TEXT NOT NULL PRIMARY KEY,
		container TEXT NOT NULL,
		key TEXT NOT NULL,
		content_type TEXT NOT NULL,
		etag TEXT NOT NULL,
		size_bytes INTEGER NOT NULL,
		symlink_target TEXT NOT NULL DEFAULT '',
		symlink_account TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`

	objectsIndexDDL = `CREATE UNIQUE INDEX IF NOT EXISTS %[2]s ON %[1]s (container, key)`
)

// Migrate creates the containers and objects tables if they do not exist.
// Both are created in one transaction.
func Migrate(ctx context.Context, db *sql.DB, tables metadata.Tables) error {
	objects := quoteIdentifier(tables.Objects)
	listing := quoteIdentifier("idx_" + tables.Objects + "_listing")

	stmts := []struct {
		table string
		sql   string
	}{
		{tables.Containers, fmt.Sprintf(containersDDL, quoteIdentifier(tables.Containers))},
		{tables.Objects, fmt.Sprintf(objectsDDL, objects)},
		{tables.Objects, fmt.Sprintf(objectsIndexDDL, objects, listing)},
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, s := range stmts {
		if _, err := tx.ExecContext(ctx, s.sql); err != nil {
			return fmt.Errorf("migrate up %s: %w", s.table, err)
		}
	}
	return tx.Commit()
}

// DropTables removes both tables, objects first.
func DropTables(ctx context.Context, db *sql.DB, tables metadata.Tables) error {
	for _, name := range []string{tables.Objects, tables.Containers} {
		if _, err := db.ExecContext(ctx, "DROP TABLE IF EXISTS "+quoteIdentifier(name)); err != nil {
			return fmt.Errorf("migrate down %s: %w", name, err)
		}
	}
	return nil
}
