package credstore

import (
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

// testDB creates a temporary SQLite database with the pin_users schema
// applied. The database file is cleaned up when the test completes.
func testDB(t *testing.T) *sql.DB {
	t.Helper()

	// Use a temp file so WAL mode works (in-memory doesn't support it)
	f, err := os.CreateTemp("", "credstore-test-*.db")
	if err != nil {
		t.Fatalf("creating temp db: %v", err)
	}
	dbPath := f.Name()
	f.Close()
	t.Cleanup(func() { os.Remove(dbPath) })

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=ON")
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	migrationSQL := `
		CREATE TABLE pin_users (
			username     TEXT PRIMARY KEY,
			pin          TEXT NOT NULL,
			is_active    INTEGER NOT NULL DEFAULT 1,
			times_used   INTEGER NOT NULL DEFAULT 0,
			created_at   TEXT NOT NULL,
			updated_at   TEXT NOT NULL,
			last_used_at TEXT
		) STRICT;

		CREATE UNIQUE INDEX idx_pin_users_pin ON pin_users(pin);
	`
	if _, err := db.Exec(migrationSQL); err != nil {
		t.Fatalf("creating pin_users table: %v", err)
	}

	return db
}

// testFileStore creates a FileStore backed by a file in a temp directory.
func testFileStore(t *testing.T) *FileStore {
	t.Helper()
	return NewFileStore(filepath.Join(t.TempDir(), "users.json"))
}

func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool    { return &b }
