package testutil

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"net"
	"net/url"
	"os"
	"strings"
	"time"

	// Registers the "pgx" database/sql driver.
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/jemaat/portal/internal/migrate"
)

// TestingTB is the subset of testing.TB the helpers need.
type TestingTB interface {
	Helper()
	Skip(args ...any)
	Skipf(format string, args ...any)
	Fatal(args ...any)
	Fatalf(format string, args ...any)
	Logf(format string, args ...any)
	Cleanup(func())
}

// TestDBConfig locates the Postgres instance used by integration tests.
type TestDBConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
}

// DefaultTestDBConfig reads TEST_DB_* and falls back to the docker-compose
// test profile on port 55432.
func DefaultTestDBConfig() TestDBConfig {
	return TestDBConfig{
		Host:     envOr("TEST_DB_HOST", "localhost"),
		Port:     envOr("TEST_DB_PORT", "55432"),
		User:     envOr("TEST_DB_USER", "portal"),
		Password: envOr("TEST_DB_PASSWORD", "portal"),
		DBName:   envOr("TEST_DB_NAME", "portal_test"),
	}
}

// DSN renders the config as a postgres URL. An empty searchPath leaves the
// server default in place.
func (c TestDBConfig) DSN(searchPath string) string {
	q := url.Values{}
	q.Set("sslmode", envOr("DB_SSL_MODE", "disable"))
	if searchPath != "" {
		q.Set("search_path", searchPath)
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     net.JoinHostPort(c.Host, c.Port),
		Path:     "/" + c.DBName,
		RawQuery: q.Encode(),
	}
	return u.String()
}

// WithAutoDB runs fn against a migrated database. With TEST_DB_EPHEMERAL set
// each call gets its own schema, otherwise the shared database is emptied
// before fn runs.
func WithAutoDB(t TestingTB, fn func(*sql.DB)) {
	t.Helper()
	if envBool("TEST_DB_EPHEMERAL") {
		WithEphemeralDB(t, fn)
		return
	}

	db := open(t, DefaultTestDBConfig().DSN(""))
	migrateOrFail(t, db)
	truncate(t, db)
	fn(db)
}

// WithEphemeralDB runs fn against a fresh schema that is dropped on cleanup.
func WithEphemeralDB(t TestingTB, fn func(*sql.DB)) {
	t.Helper()
	cfg := DefaultTestDBConfig()
	admin := open(t, cfg.DSN(""))

	schema := "t_" + randomHex(4)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := admin.ExecContext(ctx, "CREATE SCHEMA "+schema); err != nil {
		t.Fatalf("create schema %s: %v", schema, err)
	}
	t.Logf("using ephemeral schema %s", schema)

	db := open(t, cfg.DSN(schema+",public"))
	// Registered after open so it runs before the db handle is closed.
	t.Cleanup(func() {
		dropCtx, dropCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer dropCancel()
		if _, err := admin.ExecContext(dropCtx, "DROP SCHEMA IF EXISTS "+schema+" CASCADE"); err != nil {
			t.Logf("drop schema %s: %v", schema, err)
		}
	})
	migrateOrFail(t, db)
	fn(db)
}

// open connects to dsn, skipping the test when Postgres is unreachable unless
// TEST_REQUIRE_DB or TEST_REQUIRE_INFRA is set.
func open(t TestingTB, dsn string) *sql.DB {
	t.Helper()
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		t.Fatal("open test database:", err)
	}
	t.Cleanup(func() {
		if cerr := db.Close(); cerr != nil {
			t.Logf("close test database: %v", cerr)
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if pingErr := db.PingContext(ctx); pingErr != nil {
		if envBool("TEST_REQUIRE_DB") || envBool("TEST_REQUIRE_INFRA") {
			t.Fatal("test database not available:", pingErr)
		}
		t.Skip("test database not available (docker compose --profile test up -d):", pingErr)
	}
	return db
}

func migrateOrFail(t TestingTB, db *sql.DB) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if _, err := migrate.Run(ctx, db, nil); err != nil {
		t.Fatal("migrate test database:", err)
	}
}

func truncate(t TestingTB, db *sql.DB) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := db.ExecContext(ctx, "TRUNCATE access_events"); err != nil {
		t.Fatal("truncate access_events:", err)
	}
}

// TestTime is the fixed instant tests build fixtures around.
func TestTime() time.Time {
	return time.Date(2025, 3, 2, 9, 0, 0, 0, time.UTC)
}

// FixedTimeFunc returns a clock stuck at ts.
func FixedTimeFunc(ts time.Time) func() time.Time {
	return func() time.Time { return ts }
}

func randomHex(n int) string {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return strings.ReplaceAll(time.Now().Format("150405.000000"), ".", "")
	}
	return hex.EncodeToString(b)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBool(key string) bool {
	switch strings.ToLower(os.Getenv(key)) {
	case "1", "true", "yes", "y":
		return true
	}
	return false
}
