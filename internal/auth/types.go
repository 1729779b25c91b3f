package auth

import (
	"errors"
	"time"
)

// Outcome classifies the result of a gate attempt. The values are stable
// strings: they are written to the audit trail and published on the event
// bus, so renaming one is a breaking change for downstream consumers.
type Outcome string

const (
	// OutcomeSuccess is a granted attempt.
	OutcomeSuccess Outcome = "SUCCESS"

	// OutcomeInvalidFormat is a denial for a PIN that fails the format
	// rules before any table lookup happens.
	OutcomeInvalidFormat Outcome = "INVALID_FORMAT"

	// OutcomeAuthFailure is a well-formed PIN that matches no user.
	OutcomeAuthFailure Outcome = "AUTH_FAILURE"

	// OutcomeSessionBlocked is a denial because the session is inside a
	// timed block.
	OutcomeSessionBlocked Outcome = "SESSION_BLOCKED"

	// OutcomeIPBlocked is a denial because the client (IP plus
	// fingerprint) is inside a timed block.
	OutcomeIPBlocked Outcome = "IP_BLOCKED"

	// OutcomeGlobalBlocked is a denial because the service-wide failure
	// budget for the current window is exhausted.
	OutcomeGlobalBlocked Outcome = "GLOBAL_BLOCKED"

	// OutcomeSuspicious is a denial for requests rejected before
	// evaluation, such as a missing User-Agent.
	OutcomeSuspicious Outcome = "SUSPICIOUS"

	// OutcomeException is a fail-closed denial after an internal fault
	// during evaluation.
	OutcomeException Outcome = "EXCEPTION"

	// OutcomeOpenFailure marks an authenticated attempt whose actuator
	// command failed. It is recorded by the caller, never returned by
	// Evaluate.
	OutcomeOpenFailure Outcome = "OPEN_FAILURE"
)

// Granted reports whether the outcome authorises the open command.
func (o Outcome) Granted() bool {
	return o == OutcomeSuccess
}

// Attempt is one gate request as seen by the evaluation engine.
type Attempt struct {
	// PIN is the submitted code, already trimmed of surrounding
	// whitespace by the transport layer.
	PIN string

	// IP is the client address after proxy-header resolution.
	IP string

	// Fingerprint is the request fingerprint from Fingerprint.
	Fingerprint string

	// SessionID identifies the browser session cookie.
	SessionID string

	// Identity carries the reverse-proxy identity assertion, if any.
	Identity *Assertion
}

// Decision is the engine's verdict on an attempt.
type Decision struct {
	Outcome  Outcome
	Username string

	// Reason is a short human-readable explanation for the audit trail.
	Reason string

	// BlockedUntil is set when the denial carries a timed block, either
	// pre-existing or triggered by this attempt.
	BlockedUntil *time.Time

	// Delay is the progressive delay that was applied before returning.
	Delay time.Duration

	// RemainingAttempts is how many more failures the client scope
	// tolerates before a block, so denials can warn the user.
	RemainingAttempts int
}

// Sentinel errors for the auth package.
var (
	// ErrIdentityExpired marks an identity assertion past its expiry.
	ErrIdentityExpired = errors.New("auth: identity assertion expired")

	// ErrIdentityForbidden marks an assertion whose subject is not in
	// the allowed group.
	ErrIdentityForbidden = errors.New("auth: identity not in allowed group")
)
