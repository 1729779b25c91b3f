package auth

import (
	"sync"
	"time"
)

// maxProgressiveDelay caps the synchronous delay applied to denials.
const maxProgressiveDelay = 16 * time.Second

// Limits configures the layered failure budgets.
type Limits struct {
	// ClientMaxFailures blocks an IP+fingerprint pair once reached.
	ClientMaxFailures int

	// SessionMaxFailures blocks a session cookie once reached.
	SessionMaxFailures int

	// GlobalMaxFailures freezes the whole service for the remainder of
	// the current window once reached.
	GlobalMaxFailures int

	// BlockDuration is how long a triggered client or session block lasts.
	BlockDuration time.Duration

	// GlobalWindow is the fixed window over which global failures count.
	GlobalWindow time.Duration
}

// clientState tracks failures for one scope key.
type clientState struct {
	failures     int
	blockedUntil time.Time
	lastFailure  time.Time
}

// FailureResult reports the counter state after recording one failure.
type FailureResult struct {
	ClientFailures  int
	SessionFailures int

	// ClientBlockedUntil / SessionBlockedUntil are non-zero when the
	// scope is blocked, whether this failure triggered the block or an
	// earlier one did.
	ClientBlockedUntil  time.Time
	SessionBlockedUntil time.Time

	// Delay is the progressive delay owed for this failure. The caller
	// applies it outside the tracker lock.
	Delay time.Duration

	// RemainingAttempts is how many more client-scope failures fit
	// before the block triggers, floored at zero.
	RemainingAttempts int
}

// Tracker keeps the three failure scopes behind one mutex.
//
// Client scope is keyed by IP plus fingerprint, session scope by the session
// cookie, and the global scope is a single fixed-window counter. A success
// clears the client and session scopes; the global counter only resets when
// its window rolls over, so a success can never mask a service-wide attack.
type Tracker struct {
	limits Limits
	now    func() time.Time

	mu          sync.Mutex
	clients     map[string]*clientState
	sessions    map[string]*clientState
	globalCount int
	windowStart time.Time
}

// NewTracker creates a tracker with the given limits.
func NewTracker(limits Limits) *Tracker {
	return &Tracker{
		limits:   limits,
		now:      time.Now,
		clients:  make(map[string]*clientState),
		sessions: make(map[string]*clientState),
	}
}

// ClientKey builds the client-scope key from IP and fingerprint.
func ClientKey(ip, fingerprint string) string {
	return ip + "|" + fingerprint
}

// GlobalExhausted reports whether the service-wide budget for the current
// window is spent. Checking never mutates any counter.
func (t *Tracker) GlobalExhausted() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.rollWindow()
	return t.globalCount >= t.limits.GlobalMaxFailures
}

// GlobalWindowReset returns when the current global window ends.
func (t *Tracker) GlobalWindowReset() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.rollWindow()
	return t.windowStart.Add(t.limits.GlobalWindow)
}

// rollWindow resets the global counter when its window has elapsed.
// Caller holds t.mu.
func (t *Tracker) rollWindow() {
	now := t.now()
	if t.windowStart.IsZero() {
		t.windowStart = now
		return
	}
	if now.Sub(t.windowStart) >= t.limits.GlobalWindow {
		t.windowStart = now
		t.globalCount = 0
	}
}

// ClientBlocked reports whether the client scope is inside a timed block.
func (t *Tracker) ClientBlocked(key string) (time.Time, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.blocked(t.clients, key)
}

// SessionBlocked reports whether the session scope is inside a timed block.
func (t *Tracker) SessionBlocked(sessionID string) (time.Time, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.blocked(t.sessions, sessionID)
}

// blocked checks one scope map for an unexpired block. Caller holds t.mu.
func (t *Tracker) blocked(scope map[string]*clientState, key string) (time.Time, bool) {
	state, ok := scope[key]
	if !ok || state.blockedUntil.IsZero() {
		return time.Time{}, false
	}
	if t.now().Before(state.blockedUntil) {
		return state.blockedUntil, true
	}
	// expired block: counters start fresh on the next failure
	delete(scope, key)
	return time.Time{}, false
}

// RecordFailure increments all three scopes for one failed attempt and
// reports the resulting state, including any block this failure triggered.
func (t *Tracker) RecordFailure(clientKey, sessionID string) FailureResult {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	t.rollWindow()
	t.globalCount++

	client := t.bump(t.clients, clientKey, now)
	session := t.bump(t.sessions, sessionID, now)

	if client.failures >= t.limits.ClientMaxFailures && client.blockedUntil.IsZero() {
		client.blockedUntil = now.Add(t.limits.BlockDuration)
	}
	if session.failures >= t.limits.SessionMaxFailures && session.blockedUntil.IsZero() {
		session.blockedUntil = now.Add(t.limits.BlockDuration)
	}

	// a failure that lands inside a block is not also delayed; the block
	// expiry is the throttle
	var delay time.Duration
	if client.blockedUntil.IsZero() && session.blockedUntil.IsZero() {
		delay = DelayForFailures(session.failures)
	}

	remaining := t.limits.ClientMaxFailures - client.failures
	if remaining < 0 {
		remaining = 0
	}

	return FailureResult{
		ClientFailures:      client.failures,
		SessionFailures:     session.failures,
		ClientBlockedUntil:  client.blockedUntil,
		SessionBlockedUntil: session.blockedUntil,
		Delay:               delay,
		RemainingAttempts:   remaining,
	}
}

// bump increments one scope entry. Caller holds t.mu.
func (t *Tracker) bump(scope map[string]*clientState, key string, now time.Time) *clientState {
	state, ok := scope[key]
	if !ok {
		state = &clientState{}
		scope[key] = state
	}
	state.failures++
	state.lastFailure = now
	return state
}

// ResetClient clears the client and session scopes after a success. The
// global counter is deliberately left alone.
func (t *Tracker) ResetClient(clientKey, sessionID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	delete(t.clients, clientKey)
	delete(t.sessions, sessionID)
}

// Sweep drops entries whose block has expired and whose last failure is
// older than the block duration, bounding memory under churn. Returns the
// number of entries removed.
func (t *Tracker) Sweep() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	removed := 0
	for _, scope := range []map[string]*clientState{t.clients, t.sessions} {
		for key, state := range scope {
			if !state.blockedUntil.IsZero() && now.Before(state.blockedUntil) {
				continue
			}
			if now.Sub(state.lastFailure) < t.limits.BlockDuration {
				continue
			}
			delete(scope, key)
			removed++
		}
	}
	return removed
}

// DelayForFailures maps a session failure count to the progressive delay
// applied before the denial is returned: 1s, 2s, 4s, 8s, then capped at 16s.
func DelayForFailures(failures int) time.Duration {
	if failures <= 0 {
		return 0
	}
	if failures > 5 {
		return maxProgressiveDelay
	}
	d := time.Second << (failures - 1)
	if d > maxProgressiveDelay {
		return maxProgressiveDelay
	}
	return d
}
