// Package testutil provides testing utilities.
package testutil

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/jmoiron/sqlx"

	"choreboard/internal/db"
)

// NewSQLiteDB opens an initialized SQLite database in a per-test directory.
// The handle is closed when the test ends.
func NewSQLiteDB(t *testing.T) *sqlx.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "todo.db")
	dbx, err := db.Connect("sqlite", path+"?_pragma=busy_timeout(5000)")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { dbx.Close() })

	if err := db.Initialize(context.Background(), dbx); err != nil {
		t.Fatalf("failed to initialize test database: %v", err)
	}
	return dbx
}
