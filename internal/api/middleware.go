package api

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/dooropener-core/internal/auth"
)

// contextKey is a private type for context keys to avoid collisions.
type contextKey string

const (
	// ctxKeyRequestID is the context key for the request ID.
	ctxKeyRequestID contextKey = "request_id"

	// ctxKeySessionID is the context key for the gate session cookie value.
	ctxKeySessionID contextKey = "session_id"
)

// sessionCookieName carries the per-browser session identity used by the
// session failure scope.
const sessionCookieName = "door_session"

// requestIDMiddleware generates a unique request ID for each request.
// If the client sends an X-Request-ID header, it is used; otherwise one is generated.
func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = generateRequestID()
		}
		w.Header().Set("X-Request-ID", requestID)
		ctx := context.WithValue(r.Context(), ctxKeyRequestID, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// loggingMiddleware logs each HTTP request with method, path, status, and duration.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrapped, r)
		s.logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", wrapped.status,
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", r.Context().Value(ctxKeyRequestID),
		)
	})
}

// recoveryMiddleware catches panics in handlers and returns a 500 response.
func (s *Server) recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				s.logger.Error("panic recovered in HTTP handler",
					"error", err,
					"method", r.Method,
					"path", r.URL.Path,
					"request_id", r.Context().Value(ctxKeyRequestID),
				)
				writeInternalError(w, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// securityHeadersMiddleware sets browser hardening headers on every
// response. HSTS is left to the reverse proxy, which terminates TLS.
func (s *Server) securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		h.Set("Content-Security-Policy",
			"default-src 'self'; script-src 'self' 'unsafe-inline'; "+
				"style-src 'self' 'unsafe-inline'; img-src 'self' data:; font-src 'self'")
		next.ServeHTTP(w, r)
	})
}

// maxRequestBodySize is the maximum allowed request body size (1 MB).
const maxRequestBodySize = 1 << 20

// bodySizeLimitMiddleware limits the size of incoming request bodies to prevent
// denial-of-service attacks via oversized payloads.
func (s *Server) bodySizeLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		}
		next.ServeHTTP(w, r)
	})
}

// sessionMiddleware ensures every gate request carries a session cookie.
//
// A new UUID cookie is issued when absent, so the session failure scope
// starts tracking from the first attempt. Clearing cookies mid-block only
// narrows an attacker to the IP scope, which keeps counting.
func (s *Server) sessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var sessionID string
		if cookie, err := r.Cookie(sessionCookieName); err == nil && cookie.Value != "" {
			sessionID = cookie.Value
		} else {
			sessionID = uuid.NewString()
			http.SetCookie(w, &http.Cookie{
				Name:     sessionCookieName,
				Value:    sessionID,
				Path:     "/",
				HttpOnly: true,
				SameSite: http.SameSiteStrictMode,
			})
		}
		ctx := context.WithValue(r.Context(), ctxKeySessionID, sessionID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// sessionID returns the request's session cookie value.
func sessionID(r *http.Request) string {
	id, _ := r.Context().Value(ctxKeySessionID).(string) //nolint:errcheck // absent value reads as empty
	return id
}

// clientIP resolves the originating client address.
//
// The relay always sits behind a reverse proxy, so proxy headers win over
// the socket peer: first hop of X-Forwarded-For, then X-Real-IP, then
// RemoteAddr.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if real := r.Header.Get("X-Real-IP"); real != "" {
		return strings.TrimSpace(real)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// Identity assertion headers, as forwarded by an oauth2-proxy style
// authenticating reverse proxy.
const (
	headerIdentitySubject = "X-Auth-Request-Email"
	headerIdentityGroups  = "X-Auth-Request-Groups"
	headerIdentityExpires = "X-Auth-Request-Expires"
)

// identityFromRequest extracts the proxy's identity assertion, if present.
// The expiry header accepts RFC 3339 or Unix seconds; an unparseable value
// yields an already-expired assertion rather than an unexpiring one.
func identityFromRequest(r *http.Request) *auth.Assertion {
	subject := strings.TrimSpace(r.Header.Get(headerIdentitySubject))
	if subject == "" {
		return nil
	}

	assertion := &auth.Assertion{Subject: subject}

	if groups := r.Header.Get(headerIdentityGroups); groups != "" {
		for _, group := range strings.Split(groups, ",") {
			if g := strings.TrimSpace(group); g != "" {
				assertion.Groups = append(assertion.Groups, g)
			}
		}
	}

	if raw := strings.TrimSpace(r.Header.Get(headerIdentityExpires)); raw != "" {
		if ts, err := time.Parse(time.RFC3339, raw); err == nil {
			assertion.ExpiresAt = ts
		} else if secs, err := strconv.ParseInt(raw, 10, 64); err == nil {
			assertion.ExpiresAt = time.Unix(secs, 0)
		} else {
			assertion.ExpiresAt = time.Unix(1, 0)
		}
	}

	return assertion
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// requestIDBytes is the number of random bytes used for request IDs.
const requestIDBytes = 8

// generateRequestID creates a random hex request ID.
func generateRequestID() string {
	b := make([]byte, requestIDBytes)
	//nolint:errcheck // crypto/rand.Read always returns len(b) on supported platforms
	rand.Read(b)
	return hex.EncodeToString(b)
}
