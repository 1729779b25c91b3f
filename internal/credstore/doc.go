// Package credstore manages DoorOpener's durable PIN credentials.
//
// Credentials come from two places: a static username-to-PIN table in the
// YAML configuration, and a mutable store of records managed at runtime
// through the admin API. The Store interface abstracts the durable backend;
// FileStore keeps an atomically-replaced JSON document on disk and
// SQLiteStore keeps rows in the shared database. The Resolver merges both
// sources into the effective table used by authentication: active store
// records overlay the static table and inactive records suppress a username
// entirely, including its static entry.
package credstore
