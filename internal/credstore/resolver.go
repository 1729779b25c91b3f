package credstore

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
)

// Resolver merges the static PIN table from configuration with the mutable
// records held in a Store. Store records win: an active record adds or
// replaces a user, an inactive record removes the user even when the static
// table still carries a PIN for it.
type Resolver struct {
	base   map[string]string
	store  Store
	logger *slog.Logger
}

// NewResolver creates a resolver over the given static table and store.
// The base map is copied so later mutation of the caller's map has no effect.
func NewResolver(base map[string]string, store Store, logger *slog.Logger) *Resolver {
	copied := make(map[string]string, len(base))
	for username, pin := range base {
		copied[username] = pin
	}
	return &Resolver{base: copied, store: store, logger: logger}
}

// Effective returns the merged username-to-PIN table.
//
// Active store records with a valid PIN overlay the static table. Inactive
// records remove the username entirely. An active record carrying a malformed
// PIN is skipped with a warning and the static entry, if any, survives.
func (r *Resolver) Effective(ctx context.Context) (map[string]string, error) {
	snapshot, err := r.store.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading credential store: %w", err)
	}

	effective := make(map[string]string, len(r.base)+len(snapshot))
	for username, pin := range r.base {
		effective[username] = pin
	}

	for username, rec := range snapshot {
		if !rec.Active {
			delete(effective, username)
			continue
		}
		if !IsValidPIN(rec.PIN) {
			if r.logger != nil {
				r.logger.Warn("skipping credential record with malformed pin",
					"username", username)
			}
			continue
		}
		effective[username] = rec.PIN
	}

	return effective, nil
}

// Lookup returns the username owning the given PIN, or "" when no user
// matches. When the static table carries the same PIN for several usernames
// the lexicographically first one wins, so repeated lookups stay stable.
func (r *Resolver) Lookup(ctx context.Context, pin string) (string, error) {
	effective, err := r.Effective(ctx)
	if err != nil {
		return "", err
	}

	usernames := make([]string, 0, len(effective))
	for username := range effective {
		usernames = append(usernames, username)
	}
	sort.Strings(usernames)

	for _, username := range usernames {
		if effective[username] == pin {
			return username, nil
		}
	}
	return "", nil
}
