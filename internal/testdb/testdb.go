package testdb

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/phrazzld/scry-studio/internal/ciutil"
	"github.com/phrazzld/scry-studio/internal/platform/postgres"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	image        = "postgres:16-alpine"
	startTimeout = 60 * time.Second
)

// Database is a migrated test database.
type Database struct {
	DB  *sql.DB
	URL string
}

// Setup returns a migrated database, skipping the test in -short mode. The
// database and any container behind it are released when the test ends.
func Setup(t *testing.T) *Database {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	url := ciutil.TestDatabaseURL(logger)
	if url == "" {
		url = startContainer(t, ctx)
	}

	db, err := postgres.Open(ctx, url, 5, 2, time.Minute)
	require.NoError(t, err, "failed to open test database")
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, postgres.Migrate(ctx, db, "up", logger), "failed to migrate test database")
	return &Database{DB: db, URL: url}
}

func startContainer(t *testing.T, ctx context.Context) string {
	t.Helper()
	container, err := tcpostgres.Run(ctx, image,
		tcpostgres.WithDatabase("studio_test"),
		tcpostgres.WithUsername("test"),
		tcpostgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(startTimeout)),
	)
	require.NoError(t, err, "failed to start postgres container")
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	url, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	return url
}

// WithTx runs fn inside a transaction that is always rolled back, so tests
// sharing a database do not see each other's rows.
func WithTx(t *testing.T, db *sql.DB, fn func(t *testing.T, tx *sql.Tx)) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	tx, err := db.BeginTx(ctx, nil)
	require.NoError(t, err, "failed to begin test transaction")
	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			t.Logf("failed to roll back test transaction: %v", err)
		}
	}()

	fn(t, tx)
}

// Truncate removes every job row. Tests that observe notifications cannot
// run inside WithTx, since NOTIFY is only delivered on commit.
func Truncate(t *testing.T, db *sql.DB) {
	t.Helper()
	_, err := db.ExecContext(context.Background(), "TRUNCATE generation_jobs")
	require.NoError(t, err)
}
