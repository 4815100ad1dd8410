// Package database connects the metadata store used by the local backend.
//
// Two databases are supported. Both keep a containers table and an objects
// table and sort keys bytewise, so listings come back in the same order a
// Swift cluster would return them.
//
// # Supported Backends
//
//   - PostgreSQL: pgx connection pool, for stores shared by several processes
//   - SQLite: modernc.org/sqlite, for single-node and development use
//
// # Usage
//
//	cfg := database.Config{
//	    Type: "sqlite",
//	    DSN:  "swiftpath.db",
//	}
//
//	repo, cleanup, err := database.Connect(ctx, cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer cleanup()
//
// Connect runs migrations and validates the schema before returning. Empty
// table names fall back to metadata.DefaultTables.
package database
