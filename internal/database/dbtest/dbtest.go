// Package dbtest opens the integration test database. Tests that use it
// are skipped unless BZF_TEST_DB holds a PostgreSQL connection string.
package dbtest

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/bravozulu-films/bzf/internal/database"
)

// EnvVar names the connection string variable.
const EnvVar = "BZF_TEST_DB"

// Open connects to the test database and bootstraps the schema. The
// pool is closed when the test ends.
func Open(t *testing.T) *database.DB {
	t.Helper()
	conn := os.Getenv(EnvVar)
	if conn == "" {
		t.Skipf("%s not set", EnvVar)
	}
	db, err := database.Open(context.Background(), conn)
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	t.Cleanup(db.Close)
	return db
}

// Member inserts a member with a unique email and username and returns
// its id. The row is deleted when the test ends.
func Member(t *testing.T, db *database.DB) int64 {
	t.Helper()
	ctx := context.Background()
	name := "t_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:20]

	var id int64
	err := db.Pool.QueryRow(ctx,
		`INSERT INTO users (email, username, password, display_name)
		 VALUES ($1, $2, 'x', 'Test Member') RETURNING id`,
		name+"@test.bzf.example", name).Scan(&id)
	if err != nil {
		t.Fatalf("insert member: %v", err)
	}
	t.Cleanup(func() {
		_, _ = db.Pool.Exec(context.Background(), `DELETE FROM users WHERE id = $1`, id)
	})
	return id
}
