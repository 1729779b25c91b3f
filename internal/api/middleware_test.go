package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		forwarded  string
		realIP     string
		want       string
	}{
		{"remote addr only", "203.0.113.7:54321", "", "", "203.0.113.7"},
		{"forwarded first hop wins", "10.0.0.1:80", "198.51.100.4, 10.0.0.1", "", "198.51.100.4"},
		{"forwarded with spaces", "10.0.0.1:80", " 198.51.100.4 , 10.0.0.1", "", "198.51.100.4"},
		{"real ip fallback", "10.0.0.1:80", "", "198.51.100.9", "198.51.100.9"},
		{"forwarded beats real ip", "10.0.0.1:80", "198.51.100.4", "198.51.100.9", "198.51.100.4"},
		{"unparseable remote addr", "not-a-hostport", "", "", "not-a-hostport"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.forwarded != "" {
				req.Header.Set("X-Forwarded-For", tt.forwarded)
			}
			if tt.realIP != "" {
				req.Header.Set("X-Real-IP", tt.realIP)
			}

			if got := clientIP(req); got != tt.want {
				t.Errorf("clientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestIdentityFromRequest_Absent(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if got := identityFromRequest(req); got != nil {
		t.Errorf("identityFromRequest() = %+v, want nil", got)
	}
}

func TestIdentityFromRequest_Full(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(headerIdentitySubject, "carol@example.org")
	req.Header.Set(headerIdentityGroups, "door-users, family ,")
	req.Header.Set(headerIdentityExpires, "2026-01-22T12:00:00Z")

	a := identityFromRequest(req)
	if a == nil {
		t.Fatal("identityFromRequest() = nil")
	}
	if a.Subject != "carol@example.org" {
		t.Errorf("subject = %q", a.Subject)
	}
	if len(a.Groups) != 2 || a.Groups[0] != "door-users" || a.Groups[1] != "family" {
		t.Errorf("groups = %v", a.Groups)
	}
	want := time.Date(2026, 1, 22, 12, 0, 0, 0, time.UTC)
	if !a.ExpiresAt.Equal(want) {
		t.Errorf("expires = %v, want %v", a.ExpiresAt, want)
	}
}

func TestIdentityFromRequest_UnixExpiry(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(headerIdentitySubject, "carol@example.org")
	req.Header.Set(headerIdentityExpires, "1769083200")

	a := identityFromRequest(req)
	if a == nil {
		t.Fatal("identityFromRequest() = nil")
	}
	if !a.ExpiresAt.Equal(time.Unix(1769083200, 0)) {
		t.Errorf("expires = %v", a.ExpiresAt)
	}
}

func TestIdentityFromRequest_GarbledExpiry(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(headerIdentitySubject, "carol@example.org")
	req.Header.Set(headerIdentityExpires, "whenever")

	a := identityFromRequest(req)
	if a == nil {
		t.Fatal("identityFromRequest() = nil")
	}
	// an unreadable expiry must not produce an unexpiring assertion
	if !a.ExpiresAt.Before(time.Now()) {
		t.Errorf("expires = %v, want already expired", a.ExpiresAt)
	}
}

func TestDisplayName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"alice", "Alice"},
		{"carol@example.org", "carol@example.org"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := displayName(tt.in); got != tt.want {
			t.Errorf("displayName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
