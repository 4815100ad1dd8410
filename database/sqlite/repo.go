// Package sqlite implements metadata.Repo using SQLite.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sagarc03/swiftpath"
	"github.com/sagarc03/swiftpath/metadata"
)

const objectColumns = `id, container, key, content_type, etag, size_bytes,
	symlink_target, symlink_account, created_at, updated_at`

type Repo struct {
	db         *sql.DB
	containers string
	objects    string
}

// NewRepo returns a repo over already migrated tables.
func NewRepo(db *sql.DB, tables metadata.Tables) (*Repo, error) {
	if err := tables.Validate(); err != nil {
		return nil, fmt.Errorf("new repo: %w", err)
	}

	return &Repo{
		db:         db,
		containers: quoteIdentifier(tables.Containers),
		objects:    quoteIdentifier(tables.Objects),
	}, nil
}

func (r *Repo) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanObject(s scanner) (metadata.Object, error) {
	var m metadata.Object
	var idStr, createdAt, updatedAt string

	err := s.Scan(&idStr, &m.Container, &m.Key, &m.ContentType, &m.Etag, &m.SizeBytes,
		&m.SymlinkTarget, &m.SymlinkAccount, &createdAt, &updatedAt)
	if err != nil {
		return metadata.Object{}, err
	}

	m.ID, err = uuid.Parse(idStr)
	if err != nil {
		return metadata.Object{}, fmt.Errorf("parse uuid: %w", err)
	}

	m.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return metadata.Object{}, fmt.Errorf("parse created_at: %w", err)
	}

	m.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt)
	if err != nil {
		return metadata.Object{}, fmt.Errorf("parse updated_at: %w", err)
	}

	return m, nil
}

func scanContainer(s scanner) (metadata.Container, error) {
	var c metadata.Container
	var createdAt string

	if err := s.Scan(&c.Name, &createdAt, &c.Count, &c.Bytes); err != nil {
		return metadata.Container{}, err
	}

	var err error
	c.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return metadata.Container{}, fmt.Errorf("parse created_at: %w", err)
	}

	return c, nil
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

func limitOf(n int) int {
	if n <= 0 {
		return swiftpath.DefaultListLimit
	}
	return n
}

func (r *Repo) CreateContainer(ctx context.Context, name string) (metadata.Container, error) {
	query := fmt.Sprintf( //nolint:gosec // G201: table name is validated
		`INSERT INTO %s (name, created_at) VALUES (?, ?) ON CONFLICT (name) DO NOTHING`, r.containers)

	ts := now()
	result, err := r.db.ExecContext(ctx, query, name, ts)
	if err != nil {
		return metadata.Container{}, fmt.Errorf("create container: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return metadata.Container{}, fmt.Errorf("create container: rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return metadata.Container{}, fmt.Errorf("create container: %w", swiftpath.ErrExists)
	}

	createdAt, _ := time.Parse(time.RFC3339Nano, ts)
	return metadata.Container{Name: name, CreatedAt: createdAt}, nil
}

func (r *Repo) containerQuery(where string) string {
	return fmt.Sprintf(
		`SELECT c.name, c.created_at, COUNT(o.id), COALESCE(SUM(o.size_bytes), 0)
		FROM %s c
		LEFT JOIN %s o ON o.container = c.name
		WHERE %s
		GROUP BY c.name, c.created_at
		ORDER BY c.name
		LIMIT ?`, r.containers, r.objects, where)
}

func (r *Repo) GetContainer(ctx context.Context, name string) (metadata.Container, error) {
	c, err := scanContainer(r.db.QueryRowContext(ctx, r.containerQuery("c.name = ?"), name, 1))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return metadata.Container{}, fmt.Errorf("get container: %w", swiftpath.ErrNotFound)
		}
		return metadata.Container{}, fmt.Errorf("get container: %w", err)
	}
	return c, nil
}

func (r *Repo) ListContainers(ctx context.Context, q metadata.ContainerQuery) (metadata.ContainerListResult, error) {
	cursor, err := metadata.DecodeCursor(q.Cursor)
	if err != nil {
		return metadata.ContainerListResult{}, fmt.Errorf("list containers: %w", err)
	}
	limit := limitOf(q.Limit)

	rows, err := r.db.QueryContext(ctx, r.containerQuery("c.name > ?"), cursor.After, limit+1)
	if err != nil {
		return metadata.ContainerListResult{}, fmt.Errorf("list containers: %w", err)
	}
	defer func() { _ = rows.Close() }()

	items := make([]metadata.Container, 0, limit)
	for rows.Next() {
		c, scanErr := scanContainer(rows)
		if scanErr != nil {
			return metadata.ContainerListResult{}, fmt.Errorf("list containers: scan: %w", scanErr)
		}
		items = append(items, c)
	}

	if err := rows.Err(); err != nil {
		return metadata.ContainerListResult{}, fmt.Errorf("list containers: rows: %w", err)
	}

	var nextCursor string
	if len(items) > limit {
		nextCursor = metadata.EncodeCursor(items[limit-1].Name)
		items = items[:limit]
	}

	return metadata.ContainerListResult{Items: items, NextCursor: nextCursor}, nil
}

func (r *Repo) DeleteContainer(ctx context.Context, name string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("delete container: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var count int64
	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE container = ?`, r.objects) //nolint:gosec // table name is validated
	if err := tx.QueryRowContext(ctx, countQuery, name).Scan(&count); err != nil {
		return fmt.Errorf("delete container: count: %w", err)
	}

	if count > 0 {
		return fmt.Errorf("delete container: %w", swiftpath.ErrDirectoryNotEmpty)
	}

	deleteQuery := fmt.Sprintf(`DELETE FROM %s WHERE name = ?`, r.containers) //nolint:gosec // table name is validated
	result, err := tx.ExecContext(ctx, deleteQuery, name)
	if err != nil {
		return fmt.Errorf("delete container: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete container: rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("delete container: %w", swiftpath.ErrNotFound)
	}

	return tx.Commit()
}

func (r *Repo) Get(ctx context.Context, container, key string) (metadata.Object, error) {
	return r.get(ctx, r.db, container, key)
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (r *Repo) get(ctx context.Context, q queryer, container, key string) (metadata.Object, error) {
	query := fmt.Sprintf( //nolint:gosec // G201: table name is validated
		`SELECT %s FROM %s WHERE container = ? AND key = ?`, objectColumns, r.objects)

	m, err := scanObject(q.QueryRowContext(ctx, query, container, key))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return metadata.Object{}, swiftpath.ErrNotFound
		}
		return metadata.Object{}, fmt.Errorf("get: %w", err)
	}

	return m, nil
}

func (r *Repo) Upsert(ctx context.Context, obj metadata.Object) (metadata.Object, bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return metadata.Object{}, false, fmt.Errorf("upsert: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var name string
	containerQuery := fmt.Sprintf(`SELECT name FROM %s WHERE name = ?`, r.containers) //nolint:gosec // table name is validated
	if err := tx.QueryRowContext(ctx, containerQuery, obj.Container).Scan(&name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return metadata.Object{}, false, fmt.Errorf("upsert: container %s: %w", obj.Container, swiftpath.ErrNotFound)
		}
		return metadata.Object{}, false, fmt.Errorf("upsert: check container: %w", err)
	}

	previous, err := r.get(ctx, tx, obj.Container, obj.Key)
	replaced := err == nil
	if err != nil && !errors.Is(err, swiftpath.ErrNotFound) {
		return metadata.Object{}, false, fmt.Errorf("upsert: check existing: %w", err)
	}

	if obj.ID == uuid.Nil {
		obj.ID = uuid.New()
	}

	ts := now()
	createdAt := ts
	if replaced {
		createdAt = previous.CreatedAt.UTC().Format(time.RFC3339Nano)
		deleteQuery := fmt.Sprintf(`DELETE FROM %s WHERE container = ? AND key = ?`, r.objects) //nolint:gosec // table name is validated
		if _, err := tx.ExecContext(ctx, deleteQuery, obj.Container, obj.Key); err != nil {
			return metadata.Object{}, false, fmt.Errorf("upsert: replace: %w", err)
		}
	}

	insertQuery := fmt.Sprintf( //nolint:gosec // G201: table name is validated
		`INSERT INTO %s (%s) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, r.objects, objectColumns)

	_, err = tx.ExecContext(ctx, insertQuery,
		obj.ID.String(), obj.Container, obj.Key, obj.ContentType, obj.Etag, obj.SizeBytes,
		obj.SymlinkTarget, obj.SymlinkAccount, createdAt, ts,
	)
	if err != nil {
		return metadata.Object{}, false, fmt.Errorf("upsert: insert: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return metadata.Object{}, false, fmt.Errorf("upsert: commit: %w", err)
	}

	return previous, replaced, nil
}

func (r *Repo) Delete(ctx context.Context, container, key string) (metadata.Object, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return metadata.Object{}, fmt.Errorf("delete: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	m, err := r.get(ctx, tx, container, key)
	if err != nil {
		return metadata.Object{}, fmt.Errorf("delete: %w", err)
	}

	query := fmt.Sprintf(`DELETE FROM %s WHERE id = ?`, r.objects) //nolint:gosec // table name is validated
	if _, err := tx.ExecContext(ctx, query, m.ID.String()); err != nil {
		return metadata.Object{}, fmt.Errorf("delete: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return metadata.Object{}, fmt.Errorf("delete: commit: %w", err)
	}

	return m, nil
}

func (r *Repo) Touch(ctx context.Context, container, key string) (metadata.Object, error) {
	query := fmt.Sprintf( //nolint:gosec // G201: table name is validated
		`UPDATE %s SET updated_at = ? WHERE container = ? AND key = ?`, r.objects)

	result, err := r.db.ExecContext(ctx, query, now(), container, key)
	if err != nil {
		return metadata.Object{}, fmt.Errorf("touch: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return metadata.Object{}, fmt.Errorf("touch: rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return metadata.Object{}, fmt.Errorf("touch: %w", swiftpath.ErrNotFound)
	}

	return r.Get(ctx, container, key)
}

func (r *Repo) List(ctx context.Context, container string, q metadata.ListQuery) (metadata.ListResult, error) {
	cursor, err := metadata.DecodeCursor(q.Cursor)
	if err != nil {
		return metadata.ListResult{}, fmt.Errorf("list: %w", err)
	}
	limit := limitOf(q.Limit)

	// LIKE is case-insensitive in SQLite, so the prefix is compared with substr.
	query := fmt.Sprintf( //nolint:gosec // G201: table name is validated
		`SELECT %s FROM %s
		WHERE container = ? AND substr(key, 1, length(?)) = ? AND key > ?
		ORDER BY key
		LIMIT ?`, objectColumns, r.objects)

	rows, err := r.db.QueryContext(ctx, query, container, q.Prefix, q.Prefix, cursor.After, limit+1)
	if err != nil {
		return metadata.ListResult{}, fmt.Errorf("list: %w", err)
	}
	defer func() { _ = rows.Close() }()

	items := make([]metadata.Object, 0, limit)
	for rows.Next() {
		m, scanErr := scanObject(rows)
		if scanErr != nil {
			return metadata.ListResult{}, fmt.Errorf("list: scan: %w", scanErr)
		}
		items = append(items, m)
	}

	if err := rows.Err(); err != nil {
		return metadata.ListResult{}, fmt.Errorf("list: rows: %w", err)
	}

	var nextCursor string
	if len(items) > limit {
		nextCursor = metadata.EncodeCursor(items[limit-1].Key)
		items = items[:limit]
	}

	return metadata.ListResult{Items: items, NextCursor: nextCursor}, nil
}
