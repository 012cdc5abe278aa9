package history

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/indrav/forecourt/internal/dnscheck"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestAppendAndList(t *testing.T) {
	store := newTestStore(t)

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		err := store.Append(Check{
			DomainID:    "dom-1",
			Hostname:    "heromotors.com",
			CheckedAt:   base.Add(time.Duration(i) * time.Minute),
			AllVerified: i == 2,
			Records: []dnscheck.RecordStatus{
				{Type: "A", Name: "@", Matched: i == 2},
			},
		})
		if err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}
	// Another domain must not leak into the listing.
	if err := store.Append(Check{DomainID: "dom-2", Hostname: "other.com", CheckedAt: base}); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	checks, err := store.ListByDomain("dom-1", 0)
	if err != nil {
		t.Fatalf("ListByDomain() error = %v", err)
	}
	if len(checks) != 3 {
		t.Fatalf("got %d checks, want 3", len(checks))
	}
	// Newest first.
	if !checks[0].AllVerified {
		t.Error("first entry should be the verified one")
	}
	if !checks[0].CheckedAt.After(checks[1].CheckedAt) {
		t.Errorf("checks out of order: %v then %v", checks[0].CheckedAt, checks[1].CheckedAt)
	}
	for _, check := range checks {
		if check.DomainID != "dom-1" {
			t.Errorf("foreign domain in listing: %s", check.DomainID)
		}
	}
}

func TestListSameSecondOrdering(t *testing.T) {
	store := newTestStore(t)

	// Fractional parts chosen so a trimmed-zero encoding would sort
	// ".2Z" after ".25Z" and flip the order.
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	for _, ts := range []time.Time{base.Add(200 * time.Millisecond), base.Add(250 * time.Millisecond)} {
		if err := store.Append(Check{DomainID: "dom-1", Hostname: "heromotors.com", CheckedAt: ts}); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}

	checks, err := store.ListByDomain("dom-1", 0)
	if err != nil {
		t.Fatalf("ListByDomain() error = %v", err)
	}
	if len(checks) != 2 {
		t.Fatalf("got %d checks, want 2", len(checks))
	}
	if !checks[0].CheckedAt.After(checks[1].CheckedAt) {
		t.Errorf("checks out of order within a second: %v then %v", checks[0].CheckedAt, checks[1].CheckedAt)
	}
}

func TestListLimit(t *testing.T) {
	store := newTestStore(t)

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		if err := store.Append(Check{DomainID: "dom-1", Hostname: "heromotors.com", CheckedAt: base.Add(time.Duration(i) * time.Second)}); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}

	checks, err := store.ListByDomain("dom-1", 2)
	if err != nil {
		t.Fatalf("ListByDomain() error = %v", err)
	}
	if len(checks) != 2 {
		t.Fatalf("got %d checks, want 2", len(checks))
	}
}

func TestListUnknownDomain(t *testing.T) {
	store := newTestStore(t)

	checks, err := store.ListByDomain("missing", 10)
	if err != nil {
		t.Fatalf("ListByDomain() error = %v", err)
	}
	if len(checks) != 0 {
		t.Errorf("got %d checks, want 0", len(checks))
	}
}

func TestPrune(t *testing.T) {
	store := newTestStore(t)

	old := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	recent := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	for _, ts := range []time.Time{old, old.Add(time.Hour), recent} {
		if err := store.Append(Check{DomainID: "dom-1", Hostname: "heromotors.com", CheckedAt: ts}); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}

	removed, err := store.Prune(time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("Prune() error = %v", err)
	}
	if removed != 2 {
		t.Errorf("removed = %d, want 2", removed)
	}

	checks, err := store.ListByDomain("dom-1", 0)
	if err != nil {
		t.Fatalf("ListByDomain() error = %v", err)
	}
	if len(checks) != 1 {
		t.Errorf("got %d checks after prune, want 1", len(checks))
	}
}
