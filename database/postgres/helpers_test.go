package postgres_test

import (
	"context"
	"crypto/rand"
	"fmt"
	"math"
	"math/big"
	"sync"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sagarc03/swiftpath/database/postgres"
	"github.com/sagarc03/swiftpath/metadata"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	pgcontainer "github.com/testcontainers/testcontainers-go/modules/postgres"
)

var (
	testPool     *pgxpool.Pool
	testPoolOnce sync.Once
	testPoolErr  error
)

// getSharedTestDatabase returns a pool on one postgres container shared by
// every test in the package. Tests isolate themselves with random table names.
func getSharedTestDatabase(t *testing.T) *pgxpool.Pool {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	testPoolOnce.Do(func() {
		ctx := context.Background()

		pgContainer, err := pgcontainer.Run(ctx,
			"postgres:18-alpine",
			pgcontainer.WithDatabase("testdb"),
			pgcontainer.WithUsername("testuser"),
			pgcontainer.WithPassword("testpass"),
			pgcontainer.BasicWaitStrategies(),
		)
		if err != nil {
			testPoolErr = fmt.Errorf("start postgres container: %w", err)
			return
		}

		connectionStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
		if err != nil {
			_ = testcontainers.TerminateContainer(pgContainer)
			testPoolErr = fmt.Errorf("connection string: %w", err)
			return
		}

		testPool, testPoolErr = pgxpool.New(ctx, connectionStr)
	})

	if testPoolErr != nil {
		t.Skipf("postgres unavailable: %v", testPoolErr)
	}

	return testPool
}

// getRandomString generates a random string for unique test identifiers.
func getRandomString(t *testing.T) string {
	t.Helper()
	n, err := rand.Int(rand.Reader, big.NewInt(math.MaxInt64))
	require.NoError(t, err, "random string")
	return fmt.Sprintf("test%x", n.Int64())
}

func testTables(t *testing.T) metadata.Tables {
	t.Helper()
	suffix := getRandomString(t)
	return metadata.Tables{
		Containers: "containers_" + suffix,
		Objects:    "objects_" + suffix,
	}
}

// setupTestRepo migrates fresh tables holding a container named "bucket".
func setupTestRepo(t *testing.T) *postgres.Repo {
	t.Helper()

	ctx := context.Background()
	pool := getSharedTestDatabase(t)
	tables := testTables(t)

	require.NoError(t, postgres.Migrate(ctx, pool, tables), "failed to migrate")
	t.Cleanup(func() { _ = postgres.DropTables(context.Background(), pool, tables) })

	repo, err := postgres.NewRepo(pool, tables)
	require.NoError(t, err)

	_, err = repo.CreateContainer(ctx, "bucket")
	require.NoError(t, err)

	return repo
}
