// Package testdb provides a live Postgres connection for repository
// integration tests, grounded on the teacher's test/testdb/helper.go.
// Each test is responsible for its own fixture cleanup; Setup only manages
// the connection lifecycle (connect, ping, close-on-cleanup).
package testdb

import (
	"context"
	"os"
	"testing"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/driftline/signalcore/internal/storage/postgres"
)

// TestDB wraps a live Postgres connection for integration tests.
type TestDB struct {
	DB *postgres.DB
}

// Setup connects to the test database named by TEST_DATABASE_URL, or a
// local default, and registers cleanup. Requires a running Postgres
// instance with the schema migrated, and fails the calling test when the
// database cannot be reached. Tests that insert fixture rows should use
// unique IDs (or truncate their tables in a t.Cleanup) since rows persist
// across test runs.
func Setup(t *testing.T) *TestDB {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		dsn = "host=localhost port=5432 user=signalcore password=signalcore dbname=signalcore_test sslmode=disable"
	}

	conn, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		t.Fatalf("failed to connect to test database: %v", err)
	}

	if err := conn.PingContext(context.Background()); err != nil {
		t.Fatalf("failed to ping test database: %v (DSN: %s)", err, dsn)
	}

	db := postgres.WrapForTest(conn)

	tdb := &TestDB{DB: db}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Logf("warning: failed to close test database: %v", err)
		}
	})

	return tdb
}
