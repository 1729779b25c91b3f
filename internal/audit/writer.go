package audit

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// File permissions for the trail and its directory.
const (
	trailDirPermissions  = 0750
	trailFilePermissions = 0600
)

// unknownUser is written when an attempt matched no credential.
const unknownUser = "UNKNOWN"

// sessionFragmentLen bounds how much of the session identifier lands in
// the trail. The fragment is enough to correlate a session-scoped block
// with its attempts without writing the full cookie value to disk.
const sessionFragmentLen = 8

// Record is one audit trail entry. The JSON field names match the
// historical on-disk format, so older trails remain readable.
type Record struct {
	Timestamp time.Time `json:"timestamp"`
	IP        string    `json:"ip"`
	Session   string    `json:"session,omitempty"`
	User      string    `json:"user"`
	Status    string    `json:"status"`
	Details   string    `json:"details,omitempty"`
}

// NewRecord builds a record, substituting the unknown-user marker when no
// credential matched and truncating the session identifier to a fragment.
func NewRecord(ts time.Time, ip, session, user, status, details string) Record {
	if user == "" {
		user = unknownUser
	}
	if len(session) > sessionFragmentLen {
		session = session[:sessionFragmentLen]
	}
	return Record{
		Timestamp: ts.UTC(),
		IP:        ip,
		Session:   session,
		User:      user,
		Status:    status,
		Details:   details,
	}
}

// Notifier receives each record as it is appended, for live feeds.
type Notifier func(Record)

// Trail is an append-only JSON-lines audit log.
//
// Appends never fail the calling request: a write error is logged and
// swallowed, because refusing entry over a full disk is worse than a gap
// in the trail. The file is opened lazily and kept open for the trail's
// lifetime.
type Trail struct {
	path   string
	logger *slog.Logger

	mu       sync.Mutex
	file     *os.File
	notifier Notifier
}

// NewTrail creates a trail appending to the file at path.
func NewTrail(path string, logger *slog.Logger) *Trail {
	return &Trail{path: path, logger: logger}
}

// Subscribe registers a notifier called after each successful append.
// The callback runs under the trail lock and must return quickly.
func (t *Trail) Subscribe(n Notifier) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.notifier = n
}

// Append writes one record. Errors are logged, never returned: the trail
// is best effort by contract.
func (t *Trail) Append(rec Record) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.append(rec); err != nil {
		t.logger.Error("audit append failed", "error", err, "status", rec.Status)
		return
	}
	if t.notifier != nil {
		t.notifier(rec)
	}
}

// append does the durable write. Caller holds t.mu.
func (t *Trail) append(rec Record) error {
	if t.file == nil {
		if err := os.MkdirAll(filepath.Dir(t.path), trailDirPermissions); err != nil {
			return fmt.Errorf("creating audit directory: %w", err)
		}
		f, err := os.OpenFile(t.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, trailFilePermissions)
		if err != nil {
			return fmt.Errorf("opening audit trail: %w", err)
		}
		t.file = f
	}

	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encoding audit record: %w", err)
	}
	line = append(line, '\n')

	if _, err := t.file.Write(line); err != nil {
		// drop the handle so the next append retries the open
		t.file.Close() //nolint:errcheck // already on the error path
		t.file = nil
		return fmt.Errorf("writing audit record: %w", err)
	}
	return nil
}

// Close releases the trail's file handle.
func (t *Trail) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.file == nil {
		return nil
	}
	err := t.file.Close()
	t.file = nil
	return err
}

// Path returns the trail file location.
func (t *Trail) Path() string {
	return t.path
}
