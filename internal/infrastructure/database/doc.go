// Package database provides SQLite connectivity for DoorOpener Core.
//
// This package manages:
//   - Database connection with WAL mode for concurrent access
//   - Embedded schema migrations (additive-only)
//   - Connection lifecycle and health checks
//
// Security Considerations:
//   - All queries use parameterised statements (no SQL injection)
//   - Database file permissions are set to 0600 (owner read/write only)
//
// The connection pool is pinned to a single writer, matching SQLite's model:
// concurrent credential mutations serialise at the pool, which gives the
// store its atomic-replace discipline without extra locking.
//
// Usage:
//
//	db, err := database.Open(ctx, database.Config{Path: "./data/dooropener.db", WALMode: true})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    log.Fatal(err)
//	}
package database
