package auth

import (
	"strings"
	"time"
)

// Assertion is a federated identity forwarded by the reverse proxy.
//
// The proxy terminates the OIDC flow and forwards the authenticated subject
// in trusted headers; the relay never speaks to the identity provider
// itself. An assertion is only as trustworthy as the network path to the
// proxy, so deployments must ensure these headers cannot arrive from
// outside it.
type Assertion struct {
	// Subject is the authenticated principal, typically an email address.
	Subject string

	// Groups lists the group memberships asserted by the provider.
	Groups []string

	// ExpiresAt is the assertion expiry. Zero means the proxy did not
	// forward one, which is treated as not expired.
	ExpiresAt time.Time
}

// IdentityPolicy governs how assertions participate in gate decisions.
type IdentityPolicy struct {
	// Enabled turns assertion processing on. When false, assertions are
	// ignored entirely and every attempt needs a PIN.
	Enabled bool

	// RequirePIN demands a valid PIN even for an accepted assertion
	// (two-factor mode). When false an accepted assertion grants on
	// its own.
	RequirePIN bool

	// AllowedGroup restricts acceptance to subjects carrying this group.
	// Empty accepts any authenticated subject.
	AllowedGroup string
}

// Check validates an assertion against the policy. A nil error means the
// subject is accepted; the caller decides whether a PIN is still required.
func (p IdentityPolicy) Check(a *Assertion, now time.Time) error {
	if !a.ExpiresAt.IsZero() && !now.Before(a.ExpiresAt) {
		return ErrIdentityExpired
	}
	if p.AllowedGroup == "" {
		return nil
	}
	for _, group := range a.Groups {
		if strings.EqualFold(group, p.AllowedGroup) {
			return nil
		}
	}
	return ErrIdentityForbidden
}
