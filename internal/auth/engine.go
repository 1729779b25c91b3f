package auth

import (
	"context"
	"log/slog"
	"time"

	"github.com/nerrad567/dooropener-core/internal/credstore"
)

// Engine evaluates gate attempts against the layered failure budgets, the
// identity policy, and the effective credential table.
type Engine struct {
	resolver *credstore.Resolver
	store    credstore.Store
	tracker  *Tracker
	policy   IdentityPolicy
	logger   *slog.Logger

	// injectable for tests; the delay runs outside every lock so a
	// penalised client never stalls other requests
	sleep func(time.Duration)
	now   func() time.Time
}

// NewEngine creates an evaluation engine.
func NewEngine(resolver *credstore.Resolver, store credstore.Store, tracker *Tracker, policy IdentityPolicy, logger *slog.Logger) *Engine {
	return &Engine{
		resolver: resolver,
		store:    store,
		tracker:  tracker,
		policy:   policy,
		logger:   logger,
		sleep:    time.Sleep,
		now:      time.Now,
	}
}

// Evaluate decides one gate attempt.
//
// Scope precedence is fixed: the global budget is consulted first, then the
// session block, then the client block, and only then do credentials get
// looked at. Denials below the block layer apply a progressive delay before
// returning. Any panic during evaluation is converted into a fail-closed
// EXCEPTION denial.
func (e *Engine) Evaluate(ctx context.Context, attempt Attempt) (decision Decision) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("gate evaluation panicked", "panic", r)
			decision = Decision{Outcome: OutcomeException, Reason: "internal evaluation fault"}
		}
	}()

	// a service-wide freeze is checked without touching any counter, so
	// probing during the freeze cannot extend it
	if e.tracker.GlobalExhausted() {
		until := e.tracker.GlobalWindowReset()
		return Decision{
			Outcome:      OutcomeGlobalBlocked,
			Reason:       "global failure budget exhausted",
			BlockedUntil: &until,
		}
	}

	clientKey := ClientKey(attempt.IP, attempt.Fingerprint)

	if until, blocked := e.tracker.SessionBlocked(attempt.SessionID); blocked {
		return Decision{
			Outcome:      OutcomeSessionBlocked,
			Reason:       "session temporarily blocked",
			BlockedUntil: &until,
		}
	}

	if until, blocked := e.tracker.ClientBlocked(clientKey); blocked {
		return Decision{
			Outcome:      OutcomeIPBlocked,
			Reason:       "client temporarily blocked",
			BlockedUntil: &until,
		}
	}

	if attempt.Identity != nil && e.policy.Enabled {
		switch err := e.policy.Check(attempt.Identity, e.now()); {
		case err == nil && !e.policy.RequirePIN:
			e.tracker.ResetClient(clientKey, attempt.SessionID)
			return Decision{
				Outcome:  OutcomeSuccess,
				Username: attempt.Identity.Subject,
				Reason:   "federated identity accepted",
			}
		case err == nil:
			// two-factor mode: identity accepted, PIN still required
		default:
			e.logger.Warn("identity assertion rejected",
				"subject", attempt.Identity.Subject, "error", err)
			// rejected assertions fall through to the PIN path
		}
	}

	if !credstore.IsValidPIN(attempt.PIN) {
		return e.deny(OutcomeInvalidFormat, "pin failed format check", clientKey, attempt.SessionID)
	}

	username, err := e.resolver.Lookup(ctx, attempt.PIN)
	if err != nil {
		// the credential table is unreadable; fail closed without
		// penalising the client for our own fault
		e.logger.Error("credential lookup failed", "error", err)
		return Decision{Outcome: OutcomeException, Reason: "credential store unavailable"}
	}

	if username == "" {
		return e.deny(OutcomeAuthFailure, "pin matched no user", clientKey, attempt.SessionID)
	}

	e.tracker.ResetClient(clientKey, attempt.SessionID)
	if err := e.store.Touch(ctx, username); err != nil {
		// usage stats are best effort; the grant stands
		e.logger.Warn("recording credential use failed", "username", username, "error", err)
	}

	return Decision{Outcome: OutcomeSuccess, Username: username}
}

// deny records the failure in every scope, applies the progressive delay
// outside the tracker lock, and builds the denial.
func (e *Engine) deny(outcome Outcome, reason, clientKey, sessionID string) Decision {
	result := e.tracker.RecordFailure(clientKey, sessionID)

	if result.Delay > 0 {
		e.sleep(result.Delay)
	}

	decision := Decision{
		Outcome:           outcome,
		Reason:            reason,
		Delay:             result.Delay,
		RemainingAttempts: result.RemainingAttempts,
	}

	// surface the tighter of any blocks this failure triggered; the
	// outcome stays a failure because the attempt itself was evaluated
	switch {
	case !result.SessionBlockedUntil.IsZero():
		decision.BlockedUntil = &result.SessionBlockedUntil
	case !result.ClientBlockedUntil.IsZero():
		decision.BlockedUntil = &result.ClientBlockedUntil
	}

	return decision
}
