package credstore

import (
	"context"
	"errors"
	"testing"
)

// storeBackends returns each Store implementation under a readable name so
// the contract suite runs against both.
func storeBackends(t *testing.T) map[string]Store {
	t.Helper()
	return map[string]Store{
		"file":   testFileStore(t),
		"sqlite": NewSQLiteStore(testDB(t)),
	}
}

func TestStore_CreateAndReadBack(t *testing.T) {
	for name, store := range storeBackends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			rec, err := store.Create(ctx, "alice", "123456", true)
			if err != nil {
				t.Fatalf("create: %v", err)
			}
			if rec.Username != "alice" || rec.PIN != "123456" || !rec.Active {
				t.Errorf("unexpected record: %+v", rec)
			}
			if rec.TimesUsed != 0 {
				t.Errorf("new record times_used = %d, want 0", rec.TimesUsed)
			}
			if rec.CreatedAt.IsZero() || rec.UpdatedAt.IsZero() {
				t.Error("timestamps not set on create")
			}
			if rec.LastUsedAt != nil {
				t.Errorf("new record last_used_at = %v, want nil", rec.LastUsedAt)
			}

			records, err := store.List(ctx)
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if len(records) != 1 || records[0].Username != "alice" {
				t.Errorf("list = %+v, want single alice record", records)
			}
		})
	}
}

func TestStore_CreateRejectsDuplicateUsername(t *testing.T) {
	for name, store := range storeBackends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			if _, err := store.Create(ctx, "alice", "123456", true); err != nil {
				t.Fatalf("create: %v", err)
			}
			_, err := store.Create(ctx, "alice", "654321", true)
			if !errors.Is(err, ErrUserExists) {
				t.Errorf("duplicate username error = %v, want ErrUserExists", err)
			}
		})
	}
}

func TestStore_CreateRejectsDuplicatePIN(t *testing.T) {
	for name, store := range storeBackends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			if _, err := store.Create(ctx, "alice", "123456", true); err != nil {
				t.Fatalf("create: %v", err)
			}
			_, err := store.Create(ctx, "bob", "123456", true)
			if !errors.Is(err, ErrPINTaken) {
				t.Errorf("duplicate pin error = %v, want ErrPINTaken", err)
			}
		})
	}
}

func TestStore_CreateValidatesInput(t *testing.T) {
	for name, store := range storeBackends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			if _, err := store.Create(ctx, "bad user!", "123456", true); !errors.Is(err, ErrInvalidUsername) {
				t.Errorf("invalid username error = %v, want ErrInvalidUsername", err)
			}
			if _, err := store.Create(ctx, "alice", "12ab", true); !errors.Is(err, ErrInvalidPIN) {
				t.Errorf("invalid pin error = %v, want ErrInvalidPIN", err)
			}
			if _, err := store.Create(ctx, "alice", "123", true); !errors.Is(err, ErrInvalidPIN) {
				t.Errorf("short pin error = %v, want ErrInvalidPIN", err)
			}
		})
	}
}

func TestStore_UpdatePartialFields(t *testing.T) {
	for name, store := range storeBackends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			if _, err := store.Create(ctx, "alice", "123456", true); err != nil {
				t.Fatalf("create: %v", err)
			}

			// PIN-only update leaves active untouched
			rec, err := store.Update(ctx, "alice", strPtr("999999"), nil)
			if err != nil {
				t.Fatalf("update pin: %v", err)
			}
			if rec.PIN != "999999" || !rec.Active {
				t.Errorf("after pin update: %+v", rec)
			}

			// active-only update leaves the PIN untouched
			rec, err = store.Update(ctx, "alice", nil, boolPtr(false))
			if err != nil {
				t.Fatalf("update active: %v", err)
			}
			if rec.PIN != "999999" || rec.Active {
				t.Errorf("after active update: %+v", rec)
			}
		})
	}
}

func TestStore_UpdateMissingUser(t *testing.T) {
	for name, store := range storeBackends(t) {
		t.Run(name, func(t *testing.T) {
			_, err := store.Update(context.Background(), "ghost", strPtr("123456"), nil)
			if !errors.Is(err, ErrUserNotFound) {
				t.Errorf("update missing error = %v, want ErrUserNotFound", err)
			}
		})
	}
}

func TestStore_UpdateRejectsTakenPIN(t *testing.T) {
	for name, store := range storeBackends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			if _, err := store.Create(ctx, "alice", "123456", true); err != nil {
				t.Fatalf("create alice: %v", err)
			}
			if _, err := store.Create(ctx, "bob", "654321", true); err != nil {
				t.Fatalf("create bob: %v", err)
			}

			_, err := store.Update(ctx, "bob", strPtr("123456"), nil)
			if !errors.Is(err, ErrPINTaken) {
				t.Errorf("update to taken pin error = %v, want ErrPINTaken", err)
			}
		})
	}
}

func TestStore_DeleteAndExists(t *testing.T) {
	for name, store := range storeBackends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			if _, err := store.Create(ctx, "alice", "123456", true); err != nil {
				t.Fatalf("create: %v", err)
			}

			exists, err := store.Exists(ctx, "alice")
			if err != nil || !exists {
				t.Fatalf("exists before delete = %v, %v; want true, nil", exists, err)
			}

			if err := store.Delete(ctx, "alice"); err != nil {
				t.Fatalf("delete: %v", err)
			}

			exists, err = store.Exists(ctx, "alice")
			if err != nil || exists {
				t.Errorf("exists after delete = %v, %v; want false, nil", exists, err)
			}

			if err := store.Delete(ctx, "alice"); !errors.Is(err, ErrUserNotFound) {
				t.Errorf("double delete error = %v, want ErrUserNotFound", err)
			}
		})
	}
}

func TestStore_TouchIncrementsUsage(t *testing.T) {
	for name, store := range storeBackends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			if _, err := store.Create(ctx, "alice", "123456", true); err != nil {
				t.Fatalf("create: %v", err)
			}

			for i := 0; i < 3; i++ {
				if err := store.Touch(ctx, "alice"); err != nil {
					t.Fatalf("touch %d: %v", i, err)
				}
			}

			snapshot, err := store.Snapshot(ctx)
			if err != nil {
				t.Fatalf("snapshot: %v", err)
			}
			rec := snapshot["alice"]
			if rec.TimesUsed != 3 {
				t.Errorf("times_used = %d, want 3", rec.TimesUsed)
			}
			if rec.LastUsedAt == nil {
				t.Error("last_used_at not set after touch")
			}
		})
	}
}

func TestStore_TouchMissingUserIsNoOp(t *testing.T) {
	for name, store := range storeBackends(t) {
		t.Run(name, func(t *testing.T) {
			if err := store.Touch(context.Background(), "ghost"); err != nil {
				t.Errorf("touch on missing user = %v, want nil", err)
			}
		})
	}
}

func TestStore_ListSortedByUsername(t *testing.T) {
	for name, store := range storeBackends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			for i, username := range []string{"carol", "alice", "bob"} {
				pin := []string{"111111", "222222", "333333"}[i]
				if _, err := store.Create(ctx, username, pin, true); err != nil {
					t.Fatalf("create %s: %v", username, err)
				}
			}

			records, err := store.List(ctx)
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			want := []string{"alice", "bob", "carol"}
			if len(records) != len(want) {
				t.Fatalf("list returned %d records, want %d", len(records), len(want))
			}
			for i, rec := range records {
				if rec.Username != want[i] {
					t.Errorf("list[%d] = %q, want %q", i, rec.Username, want[i])
				}
			}
		})
	}
}
