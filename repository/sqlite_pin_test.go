package repository

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/akinalp/gatherly/pkg"
)

func TestToggleAlternates(t *testing.T) {
	db := newTestDB(t)
	messages := NewSQLiteMessageRepo(db)
	pins := NewSQLitePinRepo(db)
	ctx := context.Background()

	m := appendText(t, messages, "evt-1", "alice", "bookmark me")

	want := []bool{true, false, true}
	for i, w := range want {
		got, err := pins.Toggle(ctx, m.ID, "bob")
		if err != nil {
			t.Fatalf("toggle %d: %v", i, err)
		}
		if got != w {
			t.Fatalf("toggle %d = %v, want %v", i, got, w)
		}
	}
}

func TestToggleConvergesUnderConcurrency(t *testing.T) {
	db := newTestDB(t)
	messages := NewSQLiteMessageRepo(db)
	pins := NewSQLitePinRepo(db)
	ctx := context.Background()

	m := appendText(t, messages, "evt-1", "alice", "bookmark me")

	for _, calls := range []int{6, 7} {
		// reset to unpinned
		list, err := pins.ListByUser(ctx, "bob", "evt-1")
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(list) == 1 {
			if _, err := pins.Toggle(ctx, m.ID, "bob"); err != nil {
				t.Fatalf("reset toggle: %v", err)
			}
		}

		var wg sync.WaitGroup
		for i := 0; i < calls; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := pins.Toggle(ctx, m.ID, "bob"); err != nil {
					t.Errorf("toggle: %v", err)
				}
			}()
		}
		wg.Wait()

		list, err = pins.ListByUser(ctx, "bob", "evt-1")
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		pinned := len(list) == 1
		if pinned != (calls%2 == 1) {
			t.Fatalf("after %d toggles pinned=%v", calls, pinned)
		}
	}
}

func TestPersonalPinsArePerUser(t *testing.T) {
	db := newTestDB(t)
	messages := NewSQLiteMessageRepo(db)
	pins := NewSQLitePinRepo(db)
	ctx := context.Background()

	m := appendText(t, messages, "evt-1", "alice", "hello")
	if _, err := pins.Toggle(ctx, m.ID, "bob"); err != nil {
		t.Fatalf("toggle: %v", err)
	}

	bob, err := pins.ListByUser(ctx, "bob", "evt-1")
	if err != nil {
		t.Fatalf("list bob: %v", err)
	}
	carol, err := pins.ListByUser(ctx, "carol", "evt-1")
	if err != nil {
		t.Fatalf("list carol: %v", err)
	}
	if len(bob) != 1 || len(carol) != 0 {
		t.Fatalf("bob=%d carol=%d, want 1 and 0", len(bob), len(carol))
	}

	// personal pins leave the global pin alone
	got, err := messages.GetByID(ctx, m.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.GlobalPinned {
		t.Fatal("personal pin set the global pin")
	}
}

func TestToggleUnknownMessage(t *testing.T) {
	pins := NewSQLitePinRepo(newTestDB(t))

	if _, err := pins.Toggle(context.Background(), "missing", "bob"); !errors.Is(err, pkg.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}
