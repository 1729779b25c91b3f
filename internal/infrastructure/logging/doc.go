// Package logging provides structured logging for DoorOpener Core.
//
// It wraps Go's standard log/slog package so every component logs through
// one configuration: JSON for production, text for development, with
// service/version fields attached to all entries.
//
// Never log PINs, tokens, or the admin password. Attempt outcomes belong in
// the audit trail (internal/audit), not the operational log; this logger
// carries operational events only.
package logging
