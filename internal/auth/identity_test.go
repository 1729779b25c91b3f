package auth

import (
	"errors"
	"testing"
	"time"
)

func TestIdentityPolicy_Check(t *testing.T) {
	now := time.Date(2026, 1, 22, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		policy    IdentityPolicy
		assertion Assertion
		wantErr   error
	}{
		{
			name:      "no group restriction accepts any subject",
			policy:    IdentityPolicy{Enabled: true},
			assertion: Assertion{Subject: "a@example.org"},
			wantErr:   nil,
		},
		{
			name:      "matching group accepted",
			policy:    IdentityPolicy{Enabled: true, AllowedGroup: "door-users"},
			assertion: Assertion{Subject: "a@example.org", Groups: []string{"door-users"}},
			wantErr:   nil,
		},
		{
			name:      "group match is case insensitive",
			policy:    IdentityPolicy{Enabled: true, AllowedGroup: "Door-Users"},
			assertion: Assertion{Subject: "a@example.org", Groups: []string{"door-users"}},
			wantErr:   nil,
		},
		{
			name:      "missing group rejected",
			policy:    IdentityPolicy{Enabled: true, AllowedGroup: "door-users"},
			assertion: Assertion{Subject: "a@example.org", Groups: []string{"staff"}},
			wantErr:   ErrIdentityForbidden,
		},
		{
			name:      "expired assertion rejected",
			policy:    IdentityPolicy{Enabled: true},
			assertion: Assertion{Subject: "a@example.org", ExpiresAt: now.Add(-time.Second)},
			wantErr:   ErrIdentityExpired,
		},
		{
			name:      "expiry exactly now is expired",
			policy:    IdentityPolicy{Enabled: true},
			assertion: Assertion{Subject: "a@example.org", ExpiresAt: now},
			wantErr:   ErrIdentityExpired,
		},
		{
			name:      "zero expiry treated as not expired",
			policy:    IdentityPolicy{Enabled: true, AllowedGroup: "door-users"},
			assertion: Assertion{Subject: "a@example.org", Groups: []string{"door-users"}},
			wantErr:   nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.policy.Check(&tt.assertion, now)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Check() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestFingerprint(t *testing.T) {
	a := Fingerprint("203.0.113.7", "agent", "en-GB")
	b := Fingerprint("203.0.113.7", "agent", "en-GB")
	if a != b {
		t.Error("fingerprint not stable for identical inputs")
	}
	if len(a) != 64 {
		t.Errorf("fingerprint length = %d, want 64 hex chars", len(a))
	}

	// any single attribute change yields a different fingerprint, and
	// attribute boundaries cannot be shifted to collide
	if Fingerprint("203.0.113.8", "agent", "en-GB") == a {
		t.Error("fingerprint ignores IP")
	}
	if Fingerprint("203.0.113.7", "agent2", "en-GB") == a {
		t.Error("fingerprint ignores user agent")
	}
	if Fingerprint("203.0.113.7", "agent", "en-US") == a {
		t.Error("fingerprint ignores accept-language")
	}
	if Fingerprint("203.0.113.7agent", "", "en-GB") == a {
		t.Error("fingerprint allows boundary shifting between attributes")
	}
}
