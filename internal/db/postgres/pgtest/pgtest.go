// Package pgtest starts a throwaway Postgres for integration tests.
package pgtest

import (
	"context"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/lgoty/benefitsearch/internal/db/postgres"
)

// Start runs a Postgres container, applies migrations and returns a store.
// The test is skipped in -short mode.
func Start(t *testing.T) *postgres.Store {
	t.Helper()
	s := StartEmpty(t)
	if _, err := s.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return s
}

// StartEmpty is Start without migrations.
func StartEmpty(t *testing.T) *postgres.Store {
	t.Helper()
	if testing.Short() {
		t.Skip("integration test: requires docker")
	}

	ctx := context.Background()
	ctr, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("benefitsearch_test"),
		tcpostgres.WithUsername("test_user"),
		tcpostgres.WithPassword("test_password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		t.Fatalf("start postgres container: %v", err)
	}
	t.Cleanup(func() {
		if err := ctr.Terminate(context.Background()); err != nil {
			t.Logf("terminate postgres container: %v", err)
		}
	})

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("connection string: %v", err)
	}
	s, err := postgres.Open(postgres.Config{DSN: dsn, MaxOpenConns: 5})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(s.Close)
	if err := s.WaitForReady(ctx, 30*time.Second); err != nil {
		t.Fatalf("wait for postgres: %v", err)
	}
	return s
}
