// Package dbtest connects integration tests to the database named by TEST_DB_DSN.
package dbtest

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/stretchr/testify/require"

	"github.com/magicparents/carebook/internal/migrate"
)

// lockKey serializes integration tests from different packages, which
// `go test ./...` runs in parallel against the same database.
const lockKey = 7_240_519

var tables = []string{
	"public.provider_ratings",
	"public.reviews",
	"public.bookings",
	"public.availability_slots",
	"public.users",
}

// Pool returns a migrated, emptied database pool, or skips the test when
// TEST_DB_DSN is not set. The pool is closed when the test ends.
func Pool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	loadDotEnv()

	dsn := os.Getenv("TEST_DB_DSN")
	if dsn == "" {
		t.Skip("TEST_DB_DSN not set")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)

	lockConn, err := pool.Acquire(ctx)
	require.NoError(t, err)
	_, err = lockConn.Exec(ctx, "SELECT pg_advisory_lock($1)", lockKey)
	require.NoError(t, err)

	t.Cleanup(func() {
		_, _ = lockConn.Exec(context.Background(), "SELECT pg_advisory_unlock($1)", lockKey)
		lockConn.Release()
		pool.Close()
	})

	_, err = migrate.Up(ctx, pool)
	require.NoError(t, err)
	Truncate(t, pool)
	return pool
}

// Truncate empties every application table.
func Truncate(t *testing.T, pool *pgxpool.Pool) {
	t.Helper()
	for _, table := range tables {
		_, err := pool.Exec(context.Background(), "TRUNCATE TABLE "+table+" CASCADE")
		require.NoError(t, err, "truncate %s", table)
	}
}

// CreateUser inserts an identity record and returns its id.
func CreateUser(t *testing.T, pool *pgxpool.Pool, role string, hourPrice float64, location string) string {
	t.Helper()
	id := uuid.NewString()
	_, err := pool.Exec(context.Background(),
		`INSERT INTO public.users (id, email, display_name, role, hour_price, location) VALUES ($1, $2, $3, $4, $5, $6)`,
		id, id+"@example.com", role+" "+id[:8], role, hourPrice, location,
	)
	require.NoError(t, err)
	return id
}

// loadDotEnv picks up a .env at the module root, if any.
func loadDotEnv() {
	dir, err := os.Getwd()
	if err != nil {
		return
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			_ = godotenv.Load(filepath.Join(dir, ".env"))
			return
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return
		}
		dir = parent
	}
}
