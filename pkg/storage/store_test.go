package storage

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/zapstreak/zapstreak-sdk-go/pkg/model"
)

// openStores builds one of each Store implementation so every case runs
// against both.
func openStores(t *testing.T) map[string]Store {
	t.Helper()
	boltStore, err := NewBoltStore(filepath.Join(t.TempDir(), "state.db"), nil)
	if err != nil {
		t.Fatalf("open bolt store: %v", err)
	}
	t.Cleanup(func() { _ = boltStore.Close() })
	return map[string]Store{
		"bolt":   boltStore,
		"memory": NewMemoryStore(),
	}
}

func TestStreakRoundTrip(t *testing.T) {
	for name, store := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			if _, err := store.GetStreak("alice"); !errors.Is(err, ErrNotFound) {
				t.Fatalf("missing record: got %v, want ErrNotFound", err)
			}

			rec := &model.StreakRecord{
				Identity:          "alice",
				CurrentStreakDays: 4,
				LastRewardedDay:   3,
				LastActivityDay:   time.Date(2026, 8, 25, 0, 0, 0, 0, time.UTC),
				UpdatedAt:         time.Now().UTC(),
			}
			if err := store.PutStreak(rec); err != nil {
				t.Fatalf("put: %v", err)
			}

			got, err := store.GetStreak("alice")
			if err != nil {
				t.Fatalf("get: %v", err)
			}
			if got.CurrentStreakDays != 4 || got.LastRewardedDay != 3 {
				t.Errorf("record = %+v", got)
			}
			if !got.LastActivityDay.Equal(rec.LastActivityDay) {
				t.Errorf("activity day = %v", got.LastActivityDay)
			}

			rec.CurrentStreakDays = 5
			if err := store.PutStreak(rec); err != nil {
				t.Fatalf("overwrite: %v", err)
			}
			got, _ = store.GetStreak("alice")
			if got.CurrentStreakDays != 5 {
				t.Errorf("overwrite not applied: %+v", got)
			}
		})
	}
}

func TestPendingRoundTrip(t *testing.T) {
	for name, store := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			p := &model.PendingPayment{
				ID:          "pp-1",
				Identity:    "alice",
				Invoice:     "lnbc10n1fake",
				PaymentHash: "deadbeef",
				Tier:        "member",
				AmountMsat:  285000,
				Attempts: []model.PaymentAttempt{
					{Destination: "alice@pay.example.com", Error: "timeout", At: time.Now().UTC()},
				},
				CreatedAt: time.Now().UTC(),
			}
			if err := store.PutPending(p); err != nil {
				t.Fatalf("put: %v", err)
			}

			got, err := store.GetPending("alice")
			if err != nil {
				t.Fatalf("get: %v", err)
			}
			if got.ID != "pp-1" || got.AmountMsat != 285000 || len(got.Attempts) != 1 {
				t.Errorf("pending = %+v", got)
			}

			// Mutating the returned record must not leak into the store.
			got.Attempts[0].Destination = "mutated"
			reread, _ := store.GetPending("alice")
			if reread.Attempts[0].Destination != "alice@pay.example.com" {
				t.Error("stored attempts aliased by caller mutation")
			}

			if err := store.DeletePending("alice"); err != nil {
				t.Fatalf("delete: %v", err)
			}
			if _, err := store.GetPending("alice"); !errors.Is(err, ErrNotFound) {
				t.Fatalf("after delete: got %v, want ErrNotFound", err)
			}
		})
	}
}

func TestResolverEntryRoundTrip(t *testing.T) {
	for name, store := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			e := &model.ResolverEntry{
				Identity:     "npub1opaque",
				Destinations: []string{"alice@pay.example.com", "lnbc10n1backup"},
				FetchedAt:    time.Now().UTC(),
			}
			if err := store.PutResolverEntry(e); err != nil {
				t.Fatalf("put: %v", err)
			}

			got, err := store.GetResolverEntry("npub1opaque")
			if err != nil {
				t.Fatalf("get: %v", err)
			}
			if len(got.Destinations) != 2 {
				t.Errorf("entry = %+v", got)
			}

			// An empty destination list is a valid negative cache entry.
			if err := store.PutResolverEntry(&model.ResolverEntry{Identity: "npub1nothing", FetchedAt: time.Now().UTC()}); err != nil {
				t.Fatalf("put empty: %v", err)
			}
			empty, err := store.GetResolverEntry("npub1nothing")
			if err != nil {
				t.Fatalf("get empty: %v", err)
			}
			if len(empty.Destinations) != 0 {
				t.Errorf("empty entry = %+v", empty)
			}

			if err := store.DeleteResolverEntry("npub1opaque"); err != nil {
				t.Fatalf("delete: %v", err)
			}
			if _, err := store.GetResolverEntry("npub1opaque"); !errors.Is(err, ErrNotFound) {
				t.Fatalf("after delete: got %v, want ErrNotFound", err)
			}
		})
	}
}

func TestFailureMarks(t *testing.T) {
	for name, store := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			got, err := store.FailedDestinations("alice")
			if err != nil || len(got) != 0 {
				t.Fatalf("empty set: got %v, %v", got, err)
			}

			for _, dest := range []string{"zeta@pay.example.com", "alpha@pay.example.com", "zeta@pay.example.com"} {
				if err := store.MarkFailed("alice", dest); err != nil {
					t.Fatalf("mark %s: %v", dest, err)
				}
			}

			got, err = store.FailedDestinations("alice")
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			want := []string{"alpha@pay.example.com", "zeta@pay.example.com"}
			if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
				t.Errorf("failed destinations = %v, want deduplicated sorted %v", got, want)
			}

			if err := store.ClearFailed("alice"); err != nil {
				t.Fatalf("clear: %v", err)
			}
			got, _ = store.FailedDestinations("alice")
			if len(got) != 0 {
				t.Errorf("marks survived clear: %v", got)
			}
		})
	}
}

func TestBoltStoreReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")

	store, err := NewBoltStore(path, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	rec := &model.StreakRecord{Identity: "alice", CurrentStreakDays: 7, LastRewardedDay: 7}
	if err := store.PutStreak(rec); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := NewBoltStore(path, nil)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	got, err := reopened.GetStreak("alice")
	if err != nil {
		t.Fatalf("get after reopen: %v", err)
	}
	if got.CurrentStreakDays != 7 || got.LastRewardedDay != 7 {
		t.Errorf("record lost across reopen: %+v", got)
	}
}
