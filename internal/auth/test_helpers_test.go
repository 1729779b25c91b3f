package auth

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/dooropener-core/internal/credstore"
)

// testLimits keeps thresholds small and windows short for test speed.
var testLimits = Limits{
	ClientMaxFailures:  5,
	SessionMaxFailures: 3,
	GlobalMaxFailures:  100,
	BlockDuration:      5 * time.Minute,
	GlobalWindow:       time.Hour,
}

// fakeClock is an adjustable time source shared by tracker and engine.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 1, 22, 10, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// testTracker creates a tracker on the fake clock.
func testTracker(t *testing.T, clock *fakeClock) *Tracker {
	t.Helper()
	tracker := NewTracker(testLimits)
	tracker.now = clock.Now
	return tracker
}

// testEngine wires an engine over a file-backed store with the given static
// PIN table. Sleeps are captured instead of executed.
type testEngine struct {
	*Engine
	store  *credstore.FileStore
	clock  *fakeClock
	sleeps []time.Duration
}

func newTestEngine(t *testing.T, base map[string]string, policy IdentityPolicy) *testEngine {
	t.Helper()

	clock := newFakeClock()
	store := credstore.NewFileStore(filepath.Join(t.TempDir(), "users.json"))
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	resolver := credstore.NewResolver(base, store, logger)
	tracker := testTracker(t, clock)

	te := &testEngine{store: store, clock: clock}
	te.Engine = NewEngine(resolver, store, tracker, policy, logger)
	te.Engine.now = clock.Now
	te.Engine.sleep = func(d time.Duration) { te.sleeps = append(te.sleeps, d) }
	return te
}

// attempt builds a baseline attempt for the given PIN.
func testAttempt(pin string) Attempt {
	return Attempt{
		PIN:         pin,
		IP:          "203.0.113.7",
		Fingerprint: Fingerprint("203.0.113.7", "test-agent", "en-GB"),
		SessionID:   "session-1",
	}
}

// faultyResolver builds a resolver over a misbehaving store.
func faultyResolver(t *testing.T, store credstore.Store) *credstore.Resolver {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return credstore.NewResolver(map[string]string{"alice": "1234"}, store, logger)
}

// faultyStore implements credstore.Store and fails or panics on demand.
type faultyStore struct {
	credstore.Store
	panicOnSnapshot bool
	snapshotErr     error
}

func (s *faultyStore) Snapshot(ctx context.Context) (map[string]credstore.Record, error) {
	if s.panicOnSnapshot {
		panic("snapshot fault injection")
	}
	return nil, s.snapshotErr
}
