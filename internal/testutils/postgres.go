// Package testutils starts throwaway databases for integration tests.
package testutils

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// defaultPostgresVersion is used when POSTGRES_VERSION is not set.
const defaultPostgresVersion = "15.3"

// SkipUnlessIntegration skips the test unless LAUNCHPAD_INTEGRATION is set.
// Integration tests need a container runtime.
func SkipUnlessIntegration(t *testing.T) {
	t.Helper()
	if os.Getenv("LAUNCHPAD_INTEGRATION") == "" {
		t.Skip("set LAUNCHPAD_INTEGRATION=1 to run integration tests")
	}
}

// StartPostgres runs a postgres container for the duration of the test and
// returns its connection URL.
func StartPostgres(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	waitForLogs := wait.
		ForLog("database system is ready to accept connections").
		WithOccurrence(2).
		WithStartupTimeout(30 * time.Second)

	pgVersion := os.Getenv("POSTGRES_VERSION")
	if pgVersion == "" {
		pgVersion = defaultPostgresVersion
	}

	ctr, err := postgres.RunContainer(ctx,
		testcontainers.WithImage("postgres:"+pgVersion),
		testcontainers.WithWaitStrategy(waitForLogs),
	)
	if err != nil {
		t.Fatalf("start postgres container: %v", err)
	}
	t.Cleanup(func() {
		_ = ctr.Terminate(context.Background())
	})

	connStr, err := ctr.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("container connection string: %v", err)
	}
	return connStr
}
