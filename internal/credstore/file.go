package credstore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// File permissions for the store document and its directory.
const (
	storeDirPermissions  = 0750
	storeFilePermissions = 0600
)

// fileDocument is the on-disk JSON shape:
//
//	{"users": {"alice": {"pin": "1234", "active": true, ...}}}
//
// The layout is shared with earlier deployments, so field names and the
// nullable last_used_at are kept as-is. A missing times_used reads as 0.
type fileDocument struct {
	Users map[string]fileRecord `json:"users"`
}

type fileRecord struct {
	PIN        string     `json:"pin"`
	Active     bool       `json:"active"`
	TimesUsed  int        `json:"times_used"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	LastUsedAt *time.Time `json:"last_used_at"`
}

// FileStore is a JSON-document credential store with atomic writes.
//
// The document is loaded lazily on first access and cached; a corrupt or
// missing file is treated as an empty store. Every mutation marshals the
// full state to a temp file in the same directory and renames it over the
// target, so a crash mid-write never corrupts the store. Mutations build
// the new state on a copy: if the write fails, memory and disk both keep
// the pre-write state.
type FileStore struct {
	path string

	mu     sync.Mutex
	users  map[string]fileRecord
	loaded bool
}

// NewFileStore creates a store backed by the JSON document at path.
// The file is not touched until first access.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// ensureLoaded reads the document on first access. Caller holds s.mu.
func (s *FileStore) ensureLoaded() {
	if s.loaded {
		return
	}
	s.users = make(map[string]fileRecord)
	s.loaded = true

	data, err := os.ReadFile(s.path)
	if err != nil {
		return // missing file is an empty store
	}

	var doc fileDocument
	if err := json.Unmarshal(data, &doc); err != nil || doc.Users == nil {
		return // corrupt file is an empty store
	}
	s.users = doc.Users
}

// persist writes the given state atomically and, on success, adopts it.
// Caller holds s.mu.
func (s *FileStore) persist(users map[string]fileRecord) error {
	if err := os.MkdirAll(filepath.Dir(s.path), storeDirPermissions); err != nil {
		return fmt.Errorf("creating store directory: %w", err)
	}

	data, err := json.MarshalIndent(fileDocument{Users: users}, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding store: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".users-*.json")
	if err != nil {
		return fmt.Errorf("creating temp store file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()           //nolint:errcheck // Best effort cleanup on error path
		os.Remove(tmpName)    //nolint:errcheck // Best effort cleanup on error path
		return fmt.Errorf("writing temp store file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName) //nolint:errcheck // Best effort cleanup on error path
		return fmt.Errorf("closing temp store file: %w", err)
	}
	if err := os.Chmod(tmpName, storeFilePermissions); err != nil {
		os.Remove(tmpName) //nolint:errcheck // Best effort cleanup on error path
		return fmt.Errorf("setting store file permissions: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName) //nolint:errcheck // Best effort cleanup on error path
		return fmt.Errorf("replacing store file: %w", err)
	}

	s.users = users
	return nil
}

// cloneUsers copies the current state so mutations never touch the
// committed map before the durable write succeeds. Caller holds s.mu.
func (s *FileStore) cloneUsers() map[string]fileRecord {
	clone := make(map[string]fileRecord, len(s.users)+1)
	for k, v := range s.users {
		clone[k] = v
	}
	return clone
}

// pinHolder returns the username holding pin, if any. Caller holds s.mu.
func (s *FileStore) pinHolder(pin string) (string, bool) {
	for username, rec := range s.users {
		if rec.PIN == pin {
			return username, true
		}
	}
	return "", false
}

// Create persists a new credential record.
func (s *FileStore) Create(ctx context.Context, username, pin string, active bool) (*Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !IsValidUsername(username) {
		return nil, ErrInvalidUsername
	}
	if !IsValidPIN(pin) {
		return nil, ErrInvalidPIN
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoaded()

	if _, ok := s.users[username]; ok {
		return nil, ErrUserExists
	}
	if holder, ok := s.pinHolder(pin); ok && holder != username {
		return nil, ErrPINTaken
	}

	now := time.Now().UTC()
	rec := fileRecord{
		PIN:       pin,
		Active:    active,
		CreatedAt: now,
		UpdatedAt: now,
	}

	users := s.cloneUsers()
	users[username] = rec
	if err := s.persist(users); err != nil {
		return nil, err
	}

	return recordFrom(username, rec), nil
}

// Update mutates only the supplied fields of an existing record.
func (s *FileStore) Update(ctx context.Context, username string, pin *string, active *bool) (*Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if pin != nil && !IsValidPIN(*pin) {
		return nil, ErrInvalidPIN
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoaded()

	rec, ok := s.users[username]
	if !ok {
		return nil, ErrUserNotFound
	}
	if pin != nil {
		if holder, held := s.pinHolder(*pin); held && holder != username {
			return nil, ErrPINTaken
		}
		rec.PIN = *pin
	}
	if active != nil {
		rec.Active = *active
	}
	rec.UpdatedAt = time.Now().UTC()

	users := s.cloneUsers()
	users[username] = rec
	if err := s.persist(users); err != nil {
		return nil, err
	}

	return recordFrom(username, rec), nil
}

// Delete removes a record.
func (s *FileStore) Delete(ctx context.Context, username string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoaded()

	if _, ok := s.users[username]; !ok {
		return ErrUserNotFound
	}

	users := s.cloneUsers()
	delete(users, username)
	return s.persist(users)
}

// Touch records a successful use of a credential.
// Absent usernames (base-table-only users) are a silent no-op.
func (s *FileStore) Touch(ctx context.Context, username string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoaded()

	rec, ok := s.users[username]
	if !ok {
		return nil
	}

	now := time.Now().UTC()
	rec.TimesUsed++
	rec.LastUsedAt = &now

	users := s.cloneUsers()
	users[username] = rec
	return s.persist(users)
}

// Exists reports whether a record is present.
func (s *FileStore) Exists(ctx context.Context, username string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoaded()

	_, ok := s.users[username]
	return ok, nil
}

// List returns all records sorted by username.
func (s *FileStore) List(ctx context.Context) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoaded()

	records := make([]Record, 0, len(s.users))
	for username, rec := range s.users {
		records = append(records, *recordFrom(username, rec))
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].Username < records[j].Username
	})
	return records, nil
}

// Snapshot returns the current records keyed by username.
func (s *FileStore) Snapshot(ctx context.Context) (map[string]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoaded()

	snapshot := make(map[string]Record, len(s.users))
	for username, rec := range s.users {
		snapshot[username] = *recordFrom(username, rec)
	}
	return snapshot, nil
}

// recordFrom converts the on-disk shape to the public Record.
func recordFrom(username string, rec fileRecord) *Record {
	return &Record{
		Username:   username,
		PIN:        rec.PIN,
		Active:     rec.Active,
		TimesUsed:  rec.TimesUsed,
		CreatedAt:  rec.CreatedAt,
		UpdatedAt:  rec.UpdatedAt,
		LastUsedAt: rec.LastUsedAt,
	}
}
