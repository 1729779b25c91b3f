package credstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// SQLiteStore implements Store over the pin_users table.
//
// The table lives in the shared DoorOpener database; transactions give the
// equivalent atomic-replace discipline the file backend gets from rename.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a SQLite-backed credential store.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

const pinUserColumns = "username, pin, is_active, times_used, created_at, updated_at, last_used_at"

// Create inserts a new credential record.
func (s *SQLiteStore) Create(ctx context.Context, username, pin string, active bool) (*Record, error) {
	if !IsValidUsername(username) {
		return nil, ErrInvalidUsername
	}
	if !IsValidPIN(pin) {
		return nil, ErrInvalidPIN
	}

	now := time.Now().UTC()
	ts := now.Format(time.RFC3339)

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO pin_users (username, pin, is_active, times_used, created_at, updated_at)
		 VALUES (?, ?, ?, 0, ?, ?)`,
		username, pin, boolToInt(active), ts, ts,
	)
	if err != nil {
		if constraintErr := mapUniqueViolation(err); constraintErr != nil {
			return nil, constraintErr
		}
		return nil, fmt.Errorf("creating pin user: %w", err)
	}

	return &Record{
		Username:  username,
		PIN:       pin,
		Active:    active,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Update mutates only the supplied fields of an existing record.
func (s *SQLiteStore) Update(ctx context.Context, username string, pin *string, active *bool) (*Record, error) {
	if pin != nil && !IsValidPIN(*pin) {
		return nil, ErrInvalidPIN
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("starting update transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // Rollback is no-op after commit

	rec, err := scanPinUser(tx.QueryRowContext(ctx,
		"SELECT "+pinUserColumns+" FROM pin_users WHERE username = ?", username))
	if err != nil {
		return nil, err
	}

	if pin != nil {
		rec.PIN = *pin
	}
	if active != nil {
		rec.Active = *active
	}
	rec.UpdatedAt = time.Now().UTC()

	_, err = tx.ExecContext(ctx,
		`UPDATE pin_users SET pin = ?, is_active = ?, updated_at = ? WHERE username = ?`,
		rec.PIN, boolToInt(rec.Active), rec.UpdatedAt.Format(time.RFC3339), username,
	)
	if err != nil {
		if constraintErr := mapUniqueViolation(err); constraintErr != nil {
			return nil, constraintErr
		}
		return nil, fmt.Errorf("updating pin user: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing pin user update: %w", err)
	}
	return rec, nil
}

// Delete removes a record.
func (s *SQLiteStore) Delete(ctx context.Context, username string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM pin_users WHERE username = ?", username)
	if err != nil {
		return fmt.Errorf("deleting pin user: %w", err)
	}

	rows, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	if rows == 0 {
		return ErrUserNotFound
	}
	return nil
}

// Touch records a successful use. Absent usernames are a silent no-op.
func (s *SQLiteStore) Touch(ctx context.Context, username string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE pin_users SET times_used = times_used + 1, last_used_at = ? WHERE username = ?`,
		time.Now().UTC().Format(time.RFC3339), username,
	)
	if err != nil {
		return fmt.Errorf("touching pin user: %w", err)
	}
	return nil
}

// Exists reports whether a record is present.
func (s *SQLiteStore) Exists(ctx context.Context, username string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM pin_users WHERE username = ?", username).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("checking pin user: %w", err)
	}
	return count > 0, nil
}

// List returns all records ordered by username.
func (s *SQLiteStore) List(ctx context.Context) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+pinUserColumns+" FROM pin_users ORDER BY username ASC")
	if err != nil {
		return nil, fmt.Errorf("listing pin users: %w", err)
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		rec, err := scanPinUser(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating pin users: %w", err)
	}
	return records, nil
}

// Snapshot returns the current records keyed by username.
func (s *SQLiteStore) Snapshot(ctx context.Context) (map[string]Record, error) {
	records, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	snapshot := make(map[string]Record, len(records))
	for _, rec := range records {
		snapshot[rec.Username] = rec
	}
	return snapshot, nil
}

// rowScanner is satisfied by both sql.Row and sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanPinUser scans a record from a row.
func scanPinUser(row rowScanner) (*Record, error) {
	var rec Record
	var isActive int
	var createdAt, updatedAt string
	var lastUsedAt sql.NullString

	err := row.Scan(&rec.Username, &rec.PIN, &isActive, &rec.TimesUsed,
		&createdAt, &updatedAt, &lastUsedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("scanning pin user: %w", err)
	}

	rec.Active = isActive != 0
	rec.CreatedAt, _ = time.Parse(time.RFC3339, createdAt) //nolint:errcheck // format is controlled
	rec.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt) //nolint:errcheck // format is controlled
	if lastUsedAt.Valid {
		t, err := time.Parse(time.RFC3339, lastUsedAt.String)
		if err == nil {
			rec.LastUsedAt = &t
		}
	}

	return &rec, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// mapUniqueViolation maps SQLite UNIQUE constraint failures to the
// matching sentinel error, or returns nil for other errors.
func mapUniqueViolation(err error) error {
	msg := err.Error()
	if !strings.Contains(msg, "UNIQUE constraint failed") {
		return nil
	}
	if strings.Contains(msg, "pin_users.pin") {
		return ErrPINTaken
	}
	return ErrUserExists
}
