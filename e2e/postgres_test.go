package e2e_test

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/testcontainers/testcontainers-go"
	pgcontainer "github.com/testcontainers/testcontainers-go/modules/postgres"
)

var (
	testDSN     string
	testDSNOnce sync.Once
	testDSNErr  error
)

// getSharedPostgresDSN starts one postgres container for the package.
// Servers isolate themselves with a random table prefix.
func getSharedPostgresDSN(t *testing.T) (dsn, tables string) {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping e2e test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	testDSNOnce.Do(func() {
		ctx := context.Background()

		pgContainer, err := pgcontainer.Run(ctx,
			"postgres:18-alpine",
			pgcontainer.WithDatabase("testdb"),
			pgcontainer.WithUsername("testuser"),
			pgcontainer.WithPassword("testpass"),
			pgcontainer.BasicWaitStrategies(),
		)
		if err != nil {
			testDSNErr = err
			return
		}

		testDSN, testDSNErr = pgContainer.ConnectionString(ctx, "sslmode=disable")
		if testDSNErr != nil {
			_ = testcontainers.TerminateContainer(pgContainer)
		}
	})

	if testDSNErr != nil {
		t.Skipf("postgres unavailable: %v", testDSNErr)
	}
	return testDSN, "t" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}
