package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sagarc03/swiftpath/database/postgres"
	"github.com/sagarc03/swiftpath/database/sqlite"
	"github.com/sagarc03/swiftpath/metadata"

	_ "modernc.org/sqlite" // SQLite driver
)

// Config selects the metadata database.
type Config struct {
	// Type is "sqlite" or "postgres".
	Type string `mapstructure:"type" validate:"required,oneof=sqlite postgres"`
	// DSN is a file path or ":memory:" for sqlite, a connection URL for postgres.
	DSN    string          `mapstructure:"dsn" validate:"required"`
	Tables metadata.Tables `mapstructure:"tables"`
}

// handle is an open connection before it has been migrated. Each step is
// run in order; close releases it when a step fails or on cleanup.
type handle struct {
	ping     func(context.Context) error
	migrate  func(context.Context, metadata.Tables) error
	validate func(context.Context, metadata.Tables) error
	repo     func(metadata.Tables) (metadata.Repo, error)
	close    func()
}

var drivers = map[string]func(context.Context, string) (*handle, error){
	"sqlite":   openSQLite,
	"postgres": openPostgres,
}

// Connect opens the database, migrates it to the current schema and checks
// the result. The cleanup func closes the connection.
func Connect(ctx context.Context, cfg Config) (metadata.Repo, func(), error) {
	tables := cfg.Tables
	if tables == (metadata.Tables{}) {
		tables = metadata.DefaultTables
	}
	if err := tables.Validate(); err != nil {
		return nil, nil, fmt.Errorf("connect: %w", err)
	}

	open, ok := drivers[cfg.Type]
	if !ok {
		return nil, nil, fmt.Errorf("unsupported database type: %s", cfg.Type)
	}

	h, err := open(ctx, cfg.DSN)
	if err != nil {
		return nil, nil, err
	}

	steps := []struct {
		name string
		run  func() error
	}{
		{"ping", func() error { return h.ping(ctx) }},
		{"migrate", func() error { return h.migrate(ctx, tables) }},
		{"validate schema", func() error { return h.validate(ctx, tables) }},
	}
	for _, s := range steps {
		if err := s.run(); err != nil {
			h.close()
			return nil, nil, fmt.Errorf("%s %s: %w", s.name, cfg.Type, err)
		}
	}

	repo, err := h.repo(tables)
	if err != nil {
		h.close()
		return nil, nil, fmt.Errorf("create %s repo: %w", cfg.Type, err)
	}
	return repo, h.close, nil
}

func openSQLite(_ context.Context, dsn string) (*handle, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// one writer at a time, and :memory: is per connection
	db.SetMaxOpenConns(1)

	return &handle{
		ping: db.PingContext,
		migrate: func(ctx context.Context, t metadata.Tables) error {
			return sqlite.Migrate(ctx, db, t)
		},
		validate: func(ctx context.Context, t metadata.Tables) error {
			return sqlite.ValidateSchema(ctx, db, t)
		},
		repo: func(t metadata.Tables) (metadata.Repo, error) {
			return sqlite.NewRepo(db, t)
		},
		close: func() { _ = db.Close() },
	}, nil
}

func openPostgres(ctx context.Context, dsn string) (*handle, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	return &handle{
		ping: pool.Ping,
		migrate: func(ctx context.Context, t metadata.Tables) error {
			return postgres.Migrate(ctx, pool, t)
		},
		validate: func(ctx context.Context, t metadata.Tables) error {
			return postgres.ValidateSchema(ctx, pool, t)
		},
		repo: func(t metadata.Tables) (metadata.Repo, error) {
			return postgres.NewRepo(pool, t)
		},
		close: pool.Close,
	}, nil
}
