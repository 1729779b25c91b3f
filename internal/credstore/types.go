package credstore

import (
	"context"
	"errors"
	"regexp"
	"time"
)

// usernamePattern defines the valid format for managed usernames:
// alphanumeric, dots, hyphens, underscores, 1-32 characters.
var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9._-]{1,32}$`)

// IsValidUsername checks if a username meets format requirements.
func IsValidUsername(username string) bool {
	return usernamePattern.MatchString(username)
}

// PIN length bounds.
const (
	minPINLength = 4
	maxPINLength = 8
)

// IsValidPIN checks that a PIN is 4-8 ASCII digits, nothing else.
func IsValidPIN(pin string) bool {
	if len(pin) < minPINLength || len(pin) > maxPINLength {
		return false
	}
	for i := 0; i < len(pin); i++ {
		if pin[i] < '0' || pin[i] > '9' {
			return false
		}
	}
	return true
}

// Record is a managed PIN credential.
//
// Records are owned exclusively by the Store; callers mutate them only
// through Create/Update/Delete/Touch.
type Record struct {
	Username   string     `json:"username"`
	PIN        string     `json:"pin"`
	Active     bool       `json:"active"`
	TimesUsed  int        `json:"times_used"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
}

// Store is the durable credential store contract.
//
// Every mutating operation performs an atomic durable write: a crash
// mid-write never leaves partial state, and a failed write leaves both the
// in-memory and durable state at their pre-write values.
type Store interface {
	// Create persists a new record. Fails with ErrUserExists if the username
	// is present, ErrInvalidUsername/ErrInvalidPIN on malformed input, and
	// ErrPINTaken if another record already holds the PIN.
	Create(ctx context.Context, username, pin string, active bool) (*Record, error)

	// Update mutates only the supplied fields and bumps updated_at.
	// Fails with ErrUserNotFound if the username is absent.
	Update(ctx context.Context, username string, pin *string, active *bool) (*Record, error)

	// Delete removes a record. Fails with ErrUserNotFound if absent.
	Delete(ctx context.Context, username string) error

	// Touch records a successful use: increments times_used and stamps
	// last_used_at. A missing username is a silent no-op, not an error.
	Touch(ctx context.Context, username string) error

	// Exists reports whether a record is present.
	Exists(ctx context.Context, username string) (bool, error)

	// List returns all records. Iteration order is the store's natural
	// order; insertion order is not preserved across reloads.
	List(ctx context.Context) ([]Record, error)

	// Snapshot returns the current records keyed by username, for the
	// effective-table resolver.
	Snapshot(ctx context.Context) (map[string]Record, error)
}

// Sentinel errors for store operations.
var (
	ErrUserNotFound    = errors.New("credstore: user not found")
	ErrUserExists      = errors.New("credstore: username already exists")
	ErrInvalidUsername = errors.New("credstore: invalid username")
	ErrInvalidPIN      = errors.New("credstore: invalid pin")
	ErrPINTaken        = errors.New("credstore: pin already in use by another user")
)
