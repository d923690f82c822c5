// Package dbtest starts a throwaway Postgres for repository integration tests.
//
// Tests only run when MEMBER_SERVICE_PG_TESTS=1; otherwise Pool skips the calling test.
// Each test package passes its own port so packages can run in parallel.
package dbtest

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"testing"

	embeddedpostgres "github.com/fergusstrange/embedded-postgres"
	"github.com/jackc/pgx/v5/pgxpool"

	"member-service/internal/db"
	"member-service/internal/db/migrate"
)

// EnvFlag enables the integration tests.
const EnvFlag = "MEMBER_SERVICE_PG_TESTS"

var pool *pgxpool.Pool

// Main wraps testing.M: it boots Postgres on port, applies migrations, runs the tests and
// stops the database. Without EnvFlag it runs the tests directly.
func Main(m *testing.M, port uint32) int {
	if os.Getenv(EnvFlag) != "1" {
		return m.Run()
	}
	const (
		user     = "member"
		password = "member_secret"
		database = "member_test"
	)
	runtime := filepath.Join(os.TempDir(), fmt.Sprintf("member-service-pg-%d", port))
	pg := embeddedpostgres.NewDatabase(
		embeddedpostgres.DefaultConfig().
			Port(port).
			Username(user).
			Password(password).
			Database(database).
			RuntimePath(runtime),
	)
	if err := pg.Start(); err != nil {
		log.Printf("dbtest: start embedded postgres: %v", err)
		return 1
	}
	defer func() {
		if err := pg.Stop(); err != nil {
			log.Printf("dbtest: stop embedded postgres: %v", err)
		}
	}()

	dsn := fmt.Sprintf("postgres://%s:%s@localhost:%d/%s?sslmode=disable", user, password, port, database)
	if err := migrate.Run(dsn, migrate.Up); err != nil {
		log.Printf("dbtest: migrate: %v", err)
		return 1
	}
	p, err := db.Open(context.Background(), dsn)
	if err != nil {
		log.Printf("dbtest: open: %v", err)
		return 1
	}
	defer p.Close()
	pool = p
	return m.Run()
}

// Pool returns the shared pool with every table truncated, or skips t when integration
// tests are disabled.
func Pool(t testing.TB) *pgxpool.Pool {
	t.Helper()
	if pool == nil {
		t.Skipf("set %s=1 to run Postgres integration tests", EnvFlag)
	}
	_, err := pool.Exec(context.Background(),
		"TRUNCATE audit_logs, user_passkeys, passkey_challenges, user_sessions, user_shadows, user_profiles, users")
	if err != nil {
		t.Fatalf("truncate: %v", err)
	}
	return pool
}

// InsertUser adds an active member row so tables referencing users can be exercised.
func InsertUser(t testing.TB, p *pgxpool.Pool, id, loginID string) {
	t.Helper()
	_, err := p.Exec(context.Background(),
		"INSERT INTO users (id, login_id, status, role, company_id) VALUES ($1, $2, 'active', 'member', '')", id, loginID)
	if err != nil {
		t.Fatalf("insert user %s: %v", loginID, err)
	}
}
