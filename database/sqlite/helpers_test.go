package sqlite_test

import (
	"context"
	"crypto/rand"
	"database/sql"
	"fmt"
	"math"
	"math/big"
	"testing"

	"github.com/sagarc03/swiftpath/database/sqlite"
	"github.com/sagarc03/swiftpath/metadata"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite" // SQLite driver
)

func getRandomString(t *testing.T) string {
	t.Helper()
	n, err := rand.Int(rand.Reader, big.NewInt(math.MaxInt64))
	require.NoError(t, err, "random string")
	return fmt.Sprintf("test%x", n.Int64())
}

func openMemory(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err, "failed to open")
	// every connection to :memory: is a separate database
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	return db
}

func testTables(t *testing.T) metadata.Tables {
	t.Helper()
	suffix := getRandomString(t)
	return metadata.Tables{
		Containers: "containers_" + suffix,
		Objects:    "objects_" + suffix,
	}
}

// setupTestRepo creates a migrated repo with a container named "bucket".
func setupTestRepo(t *testing.T) *sqlite.Repo {
	t.Helper()

	ctx := context.Background()
	db := openMemory(t)
	tables := testTables(t)

	require.NoError(t, sqlite.Migrate(ctx, db, tables), "failed to migrate")

	repo, err := sqlite.NewRepo(db, tables)
	require.NoError(t, err)

	_, err = repo.CreateContainer(ctx, "bucket")
	require.NoError(t, err)

	return repo
}
