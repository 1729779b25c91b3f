// Package audit keeps the append-only trail of gate attempts.
//
// The trail is a flat JSON-lines file: one object per attempt with
// timestamp, client address, matched user, outcome, and free-form details.
// Appends are deliberately best effort so a logging fault can never refuse
// entry. The reader tolerates both the current JSON format and the older
// dash-delimited plain-text format, skipping lines it cannot parse.
package audit
