// Package postgres implements metadata.Repo using PostgreSQL through pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sagarc03/swiftpath"
	"github.com/sagarc03/swiftpath/metadata"
)

const objectColumns = `id, container, key, content_type, etag, size_bytes,
	symlink_target, symlink_account, created_at, updated_at`

type Repo struct {
	pool       *pgxpool.Pool
	containers string
	objects    string
}

func NewRepo(pool *pgxpool.Pool, tables metadata.Tables) (*Repo, error) {
	if err := tables.Validate(); err != nil {
		return nil, fmt.Errorf("new repo: %w", err)
	}

	return &Repo{
		pool:       pool,
		containers: pgx.Identifier{tables.Containers}.Sanitize(),
		objects:    pgx.Identifier{tables.Objects}.Sanitize(),
	}, nil
}

// Ping verifies database connectivity
func (r *Repo) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func scanObject(row pgx.Row) (metadata.Object, error) {
	var m metadata.Object
	err := row.Scan(&m.ID, &m.Container, &m.Key, &m.ContentType, &m.Etag, &m.SizeBytes,
		&m.SymlinkTarget, &m.SymlinkAccount, &m.CreatedAt, &m.UpdatedAt)
	return m, err
}

func limitOf(n int) int {
	if n <= 0 {
		return swiftpath.DefaultListLimit
	}
	return n
}

func (r *Repo) CreateContainer(ctx context.Context, name string) (metadata.Container, error) {
	query := fmt.Sprintf(`
		INSERT INTO %s (name) VALUES ($1)
		ON CONFLICT (name) DO NOTHING
		RETURNING created_at
	`, r.containers)

	c := metadata.Container{Name: name}
	err := r.pool.QueryRow(ctx, query, name).Scan(&c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return metadata.Container{}, fmt.Errorf("create container: %w", swiftpath.ErrExists)
		}
		return metadata.Container{}, fmt.Errorf("create container: %w", err)
	}

	return c, nil
}

func (r *Repo) containerQuery(where string) string {
	return fmt.Sprintf(`
		SELECT c.name, c.created_at, COUNT(o.id), COALESCE(SUM(o.size_bytes), 0)::BIGINT
		FROM %s c
		LEFT JOIN %s o ON o.container = c.name
		WHERE %s
		GROUP BY c.name, c.created_at
		ORDER BY c.name COLLATE "C"
		LIMIT $2
	`, r.containers, r.objects, where)
}

func (r *Repo) GetContainer(ctx context.Context, name string) (metadata.Container, error) {
	var c metadata.Container
	err := r.pool.QueryRow(ctx, r.containerQuery("c.name = $1"), name, 1).Scan(&c.Name, &c.CreatedAt, &c.Count, &c.Bytes)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
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

	rows, err := r.pool.Query(ctx, r.containerQuery(`c.name COLLATE "C" > $1`), cursor.After, limit+1)
	if err != nil {
		return metadata.ContainerListResult{}, fmt.Errorf("list containers: %w", err)
	}
	defer rows.Close()

	items := make([]metadata.Container, 0, limit)
	for rows.Next() {
		var c metadata.Container
		if err := rows.Scan(&c.Name, &c.CreatedAt, &c.Count, &c.Bytes); err != nil {
			return metadata.ContainerListResult{}, fmt.Errorf("list containers: scan: %w", err)
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
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("delete container: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var nonEmpty bool
	countQuery := fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE container = $1)`, r.objects)
	if err := tx.QueryRow(ctx, countQuery, name).Scan(&nonEmpty); err != nil {
		return fmt.Errorf("delete container: count: %w", err)
	}

	if nonEmpty {
		return fmt.Errorf("delete container: %w", swiftpath.ErrDirectoryNotEmpty)
	}

	result, err := tx.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE name = $1`, r.containers), name)
	if err != nil {
		return fmt.Errorf("delete container: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("delete container: %w", swiftpath.ErrNotFound)
	}

	return tx.Commit(ctx)
}

func (r *Repo) Get(ctx context.Context, container, key string) (metadata.Object, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE container = $1 AND key = $2
	`, objectColumns, r.objects)

	m, err := scanObject(r.pool.QueryRow(ctx, query, container, key))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return metadata.Object{}, swiftpath.ErrNotFound
		}
		return metadata.Object{}, fmt.Errorf("get: %w", err)
	}

	return m, nil
}

func (r *Repo) Upsert(ctx context.Context, obj metadata.Object) (metadata.Object, bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return metadata.Object{}, false, fmt.Errorf("upsert: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var name string
	containerQuery := fmt.Sprintf(`SELECT name FROM %s WHERE name = $1 FOR SHARE`, r.containers)
	if err := tx.QueryRow(ctx, containerQuery, obj.Container).Scan(&name); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return metadata.Object{}, false, fmt.Errorf("upsert: container %s: %w", obj.Container, swiftpath.ErrNotFound)
		}
		return metadata.Object{}, false, fmt.Errorf("upsert: check container: %w", err)
	}

	previousQuery := fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE container = $1 AND key = $2
		FOR UPDATE
	`, objectColumns, r.objects)

	previous, err := scanObject(tx.QueryRow(ctx, previousQuery, obj.Container, obj.Key))
	replaced := err == nil
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return metadata.Object{}, false, fmt.Errorf("upsert: check existing: %w", err)
	}
	if !replaced {
		previous = metadata.Object{}
	}

	if obj.ID == uuid.Nil {
		obj.ID = uuid.New()
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (id, container, key, content_type, etag, size_bytes, symlink_target, symlink_account)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (container, key) DO UPDATE
		SET id = EXCLUDED.id,
			content_type = EXCLUDED.content_type,
			etag = EXCLUDED.etag,
			size_bytes = EXCLUDED.size_bytes,
			symlink_target = EXCLUDED.symlink_target,
			symlink_account = EXCLUDED.symlink_account,
			updated_at = NOW()
	`, r.objects)

	_, err = tx.Exec(ctx, query, obj.ID, obj.Container, obj.Key, obj.ContentType, obj.Etag, obj.SizeBytes,
		obj.SymlinkTarget, obj.SymlinkAccount)
	if err != nil {
		return metadata.Object{}, false, fmt.Errorf("upsert: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return metadata.Object{}, false, fmt.Errorf("upsert: commit: %w", err)
	}

	return previous, replaced, nil
}

func (r *Repo) Delete(ctx context.Context, container, key string) (metadata.Object, error) {
	query := fmt.Sprintf(`
		DELETE FROM %s
		WHERE container = $1 AND key = $2
		RETURNING %s
	`, r.objects, objectColumns)

	m, err := scanObject(r.pool.QueryRow(ctx, query, container, key))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return metadata.Object{}, fmt.Errorf("delete: %w", swiftpath.ErrNotFound)
		}
		return metadata.Object{}, fmt.Errorf("delete: %w", err)
	}

	return m, nil
}

func (r *Repo) Touch(ctx context.Context, container, key string) (metadata.Object, error) {
	query := fmt.Sprintf(`
		UPDATE %s
		SET updated_at = NOW()
		WHERE container = $1 AND key = $2
		RETURNING %s
	`, r.objects, objectColumns)

	m, err := scanObject(r.pool.QueryRow(ctx, query, container, key))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return metadata.Object{}, fmt.Errorf("touch: %w", swiftpath.ErrNotFound)
		}
		return metadata.Object{}, fmt.Errorf("touch: %w", err)
	}

	return m, nil
}

func (r *Repo) List(ctx context.Context, container string, q metadata.ListQuery) (metadata.ListResult, error) {
	cursor, err := metadata.DecodeCursor(q.Cursor)
	if err != nil {
		return metadata.ListResult{}, fmt.Errorf("list: %w", err)
	}
	limit := limitOf(q.Limit)

	query := fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE container = $1 AND key LIKE $2 || '%%' AND key > $3
		ORDER BY key
		LIMIT $4
	`, objectColumns, r.objects)

	rows, err := r.pool.Query(ctx, query, container, metadata.EscapeLikePattern(q.Prefix), cursor.After, limit+1)
	if err != nil {
		return metadata.ListResult{}, fmt.Errorf("list: %w", err)
	}
	defer rows.Close()

	items := make([]metadata.Object, 0, limit)
	for rows.Next() {
		m, err := scanObject(rows)
		if err != nil {
			return metadata.ListResult{}, fmt.Errorf("list: scan: %w", err)
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
