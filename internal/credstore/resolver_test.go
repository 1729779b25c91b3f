package credstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestResolver_StoreOverlaysBase(t *testing.T) {
	ctx := context.Background()
	store := testFileStore(t)

	if _, err := store.Create(ctx, "bob", "222222", true); err != nil {
		t.Fatalf("create: %v", err)
	}

	resolver := NewResolver(map[string]string{"alice": "1111"}, store, nil)
	effective, err := resolver.Effective(ctx)
	if err != nil {
		t.Fatalf("effective: %v", err)
	}

	if effective["alice"] != "1111" {
		t.Errorf("alice pin = %q, want base 1111", effective["alice"])
	}
	if effective["bob"] != "222222" {
		t.Errorf("bob pin = %q, want store 222222", effective["bob"])
	}
}

func TestResolver_ActiveRecordReplacesBasePIN(t *testing.T) {
	ctx := context.Background()
	store := testFileStore(t)

	if _, err := store.Create(ctx, "alice", "999999", true); err != nil {
		t.Fatalf("create: %v", err)
	}

	resolver := NewResolver(map[string]string{"alice": "1111"}, store, nil)
	effective, err := resolver.Effective(ctx)
	if err != nil {
		t.Fatalf("effective: %v", err)
	}

	if effective["alice"] != "999999" {
		t.Errorf("alice pin = %q, want store override 999999", effective["alice"])
	}
}

func TestResolver_InactiveRecordRemovesUser(t *testing.T) {
	ctx := context.Background()
	store := testFileStore(t)

	// an inactive record suppresses the user even when the static
	// table still carries a PIN for them
	if _, err := store.Create(ctx, "alice", "999999", false); err != nil {
		t.Fatalf("create: %v", err)
	}

	resolver := NewResolver(map[string]string{"alice": "1111"}, store, nil)
	effective, err := resolver.Effective(ctx)
	if err != nil {
		t.Fatalf("effective: %v", err)
	}

	if _, ok := effective["alice"]; ok {
		t.Errorf("alice present after inactive override: %v", effective)
	}
}

func TestResolver_MalformedStorePINKeepsBaseEntry(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "users.json")

	// a hand-edited document can carry a PIN the API would reject;
	// the resolver must skip it without dropping the static entry
	doc := `{"users": {"alice": {"pin": "not-digits", "active": true}}}`
	if err := os.WriteFile(path, []byte(doc), 0600); err != nil {
		t.Fatalf("writing store file: %v", err)
	}

	resolver := NewResolver(map[string]string{"alice": "1111"}, NewFileStore(path), nil)
	effective, err := resolver.Effective(ctx)
	if err != nil {
		t.Fatalf("effective: %v", err)
	}

	if effective["alice"] != "1111" {
		t.Errorf("alice pin = %q, want base 1111 to survive malformed override", effective["alice"])
	}
}

func TestResolver_BaseMapIsCopied(t *testing.T) {
	ctx := context.Background()
	base := map[string]string{"alice": "1111"}

	resolver := NewResolver(base, testFileStore(t), nil)
	base["mallory"] = "666666"

	effective, err := resolver.Effective(ctx)
	if err != nil {
		t.Fatalf("effective: %v", err)
	}
	if _, ok := effective["mallory"]; ok {
		t.Error("mutation of caller's map leaked into resolver")
	}
}

func TestResolver_LookupMatchesUser(t *testing.T) {
	ctx := context.Background()
	store := testFileStore(t)

	if _, err := store.Create(ctx, "bob", "222222", true); err != nil {
		t.Fatalf("create: %v", err)
	}

	resolver := NewResolver(map[string]string{"alice": "1111"}, store, nil)

	username, err := resolver.Lookup(ctx, "222222")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if username != "bob" {
		t.Errorf("lookup = %q, want bob", username)
	}

	username, err = resolver.Lookup(ctx, "0000")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if username != "" {
		t.Errorf("lookup of unknown pin = %q, want empty", username)
	}
}

func TestResolver_LookupDuplicateBasePINIsStable(t *testing.T) {
	ctx := context.Background()

	// two static entries sharing a PIN resolve to the lexicographically
	// first username on every call
	base := map[string]string{"zoe": "1111", "alice": "1111"}
	resolver := NewResolver(base, testFileStore(t), nil)

	for i := 0; i < 5; i++ {
		username, err := resolver.Lookup(ctx, "1111")
		if err != nil {
			t.Fatalf("lookup: %v", err)
		}
		if username != "alice" {
			t.Fatalf("lookup %d = %q, want alice", i, username)
		}
	}
}
