package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sagarc03/swiftpath/metadata"
)

// Migrate creates the containers and objects tables if they do not exist.
func Migrate(ctx context.Context, pool *pgxpool.Pool, tables metadata.Tables) error {
	if err := createContainersTable(ctx, pool, tables.Containers); err != nil {
		return fmt.Errorf("migrate up %s: %w", tables.Containers, err)
	}

	if err := createObjectsTable(ctx, pool, tables.Objects); err != nil {
		return fmt.Errorf("migrate up %s: %w", tables.Objects, err)
	}

	return nil
}

// DropTables removes both tables, objects first.
func DropTables(ctx context.Context, pool *pgxpool.Pool, tables metadata.Tables) error {
	for _, name := range []string{tables.Objects, tables.Containers} {
		sql := fmt.Sprintf("DROP TABLE IF EXISTS %s", pgx.Identifier{name}.Sanitize())
		if _, err := pool.Exec(ctx, sql); err != nil {
			return fmt.Errorf("migrate down %s: %w", name, err)
		}
	}

	return nil
}

func createContainersTable(ctx context.Context, pool *pgxpool.Pool, tableName string) error {
	sql := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			name TEXT PRIMARY KEY,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
	`, pgx.Identifier{tableName}.Sanitize())

	if _, err := pool.Exec(ctx, sql); err != nil {
		return fmt.Errorf("create containers table: %w", err)
	}
	return nil
}

func createObjectsTable(ctx context.Context, pool *pgxpool.Pool, tableName string) error {
	quotedTable := pgx.Identifier{tableName}.Sanitize()
	indexListing := pgx.Identifier{fmt.Sprintf("idx_%s_listing", tableName)}.Sanitize()

	// Keys sort bytewise so listings match Swift's ordering.
	sql := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			container TEXT NOT NULL,
			key TEXT COLLATE "C" NOT NULL,
			content_type TEXT NOT NULL,
			etag TEXT NOT NULL,
			size_bytes BIGINT NOT NULL,
			symlink_target TEXT NOT NULL DEFAULT '',
			symlink_account TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE UNIQUE INDEX IF NOT EXISTS %s
		ON %s (container, key);
	`,
		quotedTable,
		indexListing, quotedTable,
	)

	if _, err := pool.Exec(ctx, sql); err != nil {
		return fmt.Errorf("create objects table: %w", err)
	}
	return nil
}
