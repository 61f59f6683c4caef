package testdb

import (
	"context"
	"database/sql"
	"net/url"
	"os"
	"sync"
	"testing"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver
	"github.com/phrazzld/taskplan-api/internal/platform/postgres"
	"github.com/phrazzld/taskplan-api/internal/store"
	"github.com/stretchr/testify/require"
)

// URLEnvVars are checked in order for the test database URL.
var URLEnvVars = []string{"DATABASE_URL", "TASKPLAN_DATABASE_URL"}

var migrateOnce sync.Once

// GetTestDatabaseURL returns the first non-empty URL from URLEnvVars.
func GetTestDatabaseURL() string {
	for _, name := range URLEnvVars {
		if v := os.Getenv(name); v != "" {
			return v
		}
	}
	return ""
}

// MaskDatabaseURL hides the password of a database URL for logging.
func MaskDatabaseURL(dbURL string) string {
	u, err := url.Parse(dbURL)
	if err != nil || u.User == nil {
		return dbURL
	}
	if _, ok := u.User.Password(); ok {
		u.User = url.UserPassword(u.User.Username(), "redacted")
	}
	return u.String()
}

// Open connects to the test database and applies the migrations once per
// process. It skips the test when no database URL is set.
func Open(t *testing.T) *sql.DB {
	t.Helper()

	dbURL := GetTestDatabaseURL()
	if dbURL == "" {
		t.Skip("DATABASE_URL not set, skipping database test")
	}

	db, err := sql.Open("pgx", dbURL)
	require.NoError(t, err, "failed to open database %s", MaskDatabaseURL(dbURL))
	t.Cleanup(func() { _ = db.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, db.PingContext(ctx), "failed to ping database %s", MaskDatabaseURL(dbURL))

	var migrateErr error
	migrateOnce.Do(func() {
		migrateErr = postgres.Migrate(context.Background(), db, "up", nil)
	})
	require.NoError(t, migrateErr, "failed to apply migrations")
	return db
}

// WithTx runs fn with a context carrying a fresh transaction, which is always
// rolled back afterwards. Stores called with that context join the transaction.
func WithTx(t *testing.T, db *sql.DB, fn func(t *testing.T, ctx context.Context)) {
	t.Helper()

	tx, err := db.BeginTx(context.Background(), nil)
	require.NoError(t, err, "failed to begin transaction")
	defer func() {
		_ = tx.Rollback()
	}()

	fn(t, store.WithTx(context.Background(), tx))
}
