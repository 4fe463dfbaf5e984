package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/akinalp/gatherly/models"
	"github.com/akinalp/gatherly/pkg"
)

func TestAppendAssignsStrictlyIncreasingTimestamps(t *testing.T) {
	db := newTestDB(t)
	frozen := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	repo := newSQLiteMessageRepo(db, func() time.Time { return frozen })

	var prev time.Time
	for i := 0; i < 5; i++ {
		msg := appendText(t, repo, "evt-1", "alice", fmt.Sprintf("m%d", i))
		if !msg.CreatedAt.After(prev) {
			t.Fatalf("message %d: created_at %v not after %v", i, msg.CreatedAt, prev)
		}
		prev = msg.CreatedAt
	}

	// another room starts from the wall clock again
	other := appendText(t, repo, "evt-2", "bob", "hi")
	if !other.CreatedAt.Equal(frozen) {
		t.Fatalf("other room created_at = %v, want %v", other.CreatedAt, frozen)
	}
}

func TestAppendConcurrentSameRoom(t *testing.T) {
	db := newTestDB(t)
	repo := NewSQLiteMessageRepo(db)

	const n = 40
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sender := fmt.Sprintf("u%d", i)
			_, err := repo.Append(context.Background(), "evt-1", &sender,
				models.MessageBody{Kind: models.BodyText, Text: "x"})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	page, err := repo.Page(context.Background(), "evt-1", nil, 100)
	if err != nil {
		t.Fatalf("page: %v", err)
	}
	if len(page.Messages) != n {
		t.Fatalf("got %d messages, want %d", len(page.Messages), n)
	}
	for i := 1; i < len(page.Messages); i++ {
		if !page.Messages[i].CreatedAt.After(page.Messages[i-1].CreatedAt) {
			t.Fatalf("messages %d and %d not strictly ordered", i-1, i)
		}
	}
}

func TestPageProgressLaw(t *testing.T) {
	db := newTestDB(t)
	repo := NewSQLiteMessageRepo(db)
	ctx := context.Background()

	for i := 0; i < 7; i++ {
		appendText(t, repo, "evt-1", "alice", fmt.Sprintf("m%d", i))
	}
	appendText(t, repo, "evt-other", "alice", "noise")

	first, err := repo.Page(ctx, "evt-1", nil, 3)
	if err != nil {
		t.Fatalf("first page: %v", err)
	}
	if len(first.Messages) != 3 || !first.HasMore {
		t.Fatalf("first page: %d messages, hasMore=%v", len(first.Messages), first.HasMore)
	}
	if first.Messages[2].Body.Text != "m6" || first.Messages[0].Body.Text != "m4" {
		t.Fatalf("first page should be m4..m6 oldest first, got %q..%q",
			first.Messages[0].Body.Text, first.Messages[2].Body.Text)
	}

	seen := map[string]bool{}
	for _, m := range first.Messages {
		seen[m.ID] = true
	}

	cursor := first.Messages[0].CreatedAt
	second, err := repo.Page(ctx, "evt-1", &cursor, 3)
	if err != nil {
		t.Fatalf("second page: %v", err)
	}
	if len(second.Messages) != 3 || !second.HasMore {
		t.Fatalf("second page: %d messages, hasMore=%v", len(second.Messages), second.HasMore)
	}
	for _, m := range second.Messages {
		if seen[m.ID] {
			t.Fatalf("message %s appears on both pages", m.ID)
		}
		if !m.CreatedAt.Before(cursor) {
			t.Fatalf("message %s not strictly older than cursor", m.ID)
		}
	}

	cursor = second.Messages[0].CreatedAt
	third, err := repo.Page(ctx, "evt-1", &cursor, 3)
	if err != nil {
		t.Fatalf("third page: %v", err)
	}
	if len(third.Messages) != 1 || third.HasMore {
		t.Fatalf("third page: %d messages, hasMore=%v", len(third.Messages), third.HasMore)
	}
	if third.Messages[0].Body.Text != "m0" {
		t.Fatalf("third page = %q, want m0", third.Messages[0].Body.Text)
	}
}

func TestPageCursorWithSubMicrosecondPrecision(t *testing.T) {
	repo := NewSQLiteMessageRepo(newTestDB(t))
	msg := appendText(t, repo, "evt-1", "alice", "just before the cursor")

	before := msg.CreatedAt.Add(500 * time.Nanosecond)
	page, err := repo.Page(context.Background(), "evt-1", &before, 10)
	if err != nil {
		t.Fatalf("page: %v", err)
	}
	if len(page.Messages) != 1 || page.Messages[0].ID != msg.ID {
		t.Fatalf("page before %v = %+v, want %s", before, page.Messages, msg.ID)
	}

	// the message's own timestamp still excludes it
	page, err = repo.Page(context.Background(), "evt-1", &msg.CreatedAt, 10)
	if err != nil {
		t.Fatalf("page at created_at: %v", err)
	}
	if len(page.Messages) != 0 {
		t.Fatalf("page at created_at = %+v, want empty", page.Messages)
	}
}

func TestCursorMicrosRoundsUp(t *testing.T) {
	base := time.UnixMicro(1_700_000_000_000_123)
	for _, tc := range []struct {
		in   time.Time
		want int64
	}{
		{base, 1_700_000_000_000_123},
		{base.Add(1), 1_700_000_000_000_124},
		{base.Add(999), 1_700_000_000_000_124},
	} {
		if got := cursorMicros(tc.in); got != tc.want {
			t.Fatalf("cursorMicros(%v) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestPageEmptyRoom(t *testing.T) {
	repo := NewSQLiteMessageRepo(newTestDB(t))

	page, err := repo.Page(context.Background(), "nobody-here", nil, 50)
	if err != nil {
		t.Fatalf("page: %v", err)
	}
	if len(page.Messages) != 0 || page.HasMore {
		t.Fatalf("empty room page = %+v", page)
	}
}

func TestImageBodyRoundTrip(t *testing.T) {
	repo := NewSQLiteMessageRepo(newTestDB(t))
	ctx := context.Background()

	sender := "alice"
	msg, err := repo.Append(ctx, "evt-1", &sender,
		models.MessageBody{Kind: models.BodyImage, URL: "https://cdn.example.com/a.png"})
	if err != nil {
		t.Fatalf("append: %v", err)
	}

	got, err := repo.GetByID(ctx, msg.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Body.Kind != models.BodyImage || got.Body.URL != "https://cdn.example.com/a.png" || got.Body.Text != "" {
		t.Fatalf("body = %+v", got.Body)
	}
	if got.SenderID == nil || *got.SenderID != "alice" {
		t.Fatalf("sender = %v", got.SenderID)
	}
}

func TestSystemMessageHasNoSender(t *testing.T) {
	repo := NewSQLiteMessageRepo(newTestDB(t))
	ctx := context.Background()

	msg, err := repo.Append(ctx, "evt-1", nil, models.MessageBody{Kind: models.BodyText, Text: "welcome"})
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	got, err := repo.GetByID(ctx, msg.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.SenderID != nil {
		t.Fatalf("sender = %q, want nil", *got.SenderID)
	}
}

func TestSetGlobalPinReplacesPrevious(t *testing.T) {
	repo := NewSQLiteMessageRepo(newTestDB(t))
	ctx := context.Background()

	m1 := appendText(t, repo, "evt-1", "alice", "one")
	m2 := appendText(t, repo, "evt-1", "alice", "two")
	other := appendText(t, repo, "evt-2", "alice", "elsewhere")

	if _, _, err := repo.SetGlobalPin(ctx, other.ID, "admin"); err != nil {
		t.Fatalf("pin other room: %v", err)
	}
	if _, _, err := repo.SetGlobalPin(ctx, m1.ID, "admin"); err != nil {
		t.Fatalf("pin m1: %v", err)
	}
	pinned, unpinned, err := repo.SetGlobalPin(ctx, m2.ID, "admin")
	if err != nil {
		t.Fatalf("pin m2: %v", err)
	}
	if !pinned.GlobalPinned || pinned.GlobalPinnedBy == nil || *pinned.GlobalPinnedBy != "admin" || pinned.GlobalPinnedAt == nil {
		t.Fatalf("m2 pin fields not set: %+v", pinned)
	}
	if len(unpinned) != 1 || unpinned[0] != m1.ID {
		t.Fatalf("unpinned = %v, want [%s]", unpinned, m1.ID)
	}

	list, err := repo.ListGlobalPinned(ctx, "evt-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || list[0].ID != m2.ID {
		t.Fatalf("pinned list = %+v, want only m2", list)
	}

	got, err := repo.GetByID(ctx, m1.ID)
	if err != nil {
		t.Fatalf("get m1: %v", err)
	}
	if got.GlobalPinned || got.GlobalPinnedBy != nil || got.GlobalPinnedAt != nil {
		t.Fatalf("m1 still pinned: %+v", got)
	}

	// the other room keeps its pin
	otherList, err := repo.ListGlobalPinned(ctx, "evt-2")
	if err != nil {
		t.Fatalf("list other: %v", err)
	}
	if len(otherList) != 1 {
		t.Fatalf("other room pins = %d, want 1", len(otherList))
	}
}

func TestSetGlobalPinSameMessageTwice(t *testing.T) {
	repo := NewSQLiteMessageRepo(newTestDB(t))
	ctx := context.Background()
	m := appendText(t, repo, "evt-1", "alice", "one")

	for i := 0; i < 2; i++ {
		_, unpinned, err := repo.SetGlobalPin(ctx, m.ID, "admin")
		if err != nil {
			t.Fatalf("pin #%d: %v", i, err)
		}
		if len(unpinned) != 0 {
			t.Fatalf("pin #%d unpinned %v", i, unpinned)
		}
	}
}

func TestGlobalPinExclusiveUnderConcurrency(t *testing.T) {
	repo := NewSQLiteMessageRepo(newTestDB(t))
	ctx := context.Background()

	var ids []string
	for i := 0; i < 10; i++ {
		ids = append(ids, appendText(t, repo, "evt-1", "alice", fmt.Sprintf("m%d", i)).ID)
	}

	var wg sync.WaitGroup
	for round := 0; round < 3; round++ {
		for _, id := range ids {
			wg.Add(1)
			go func(id string) {
				defer wg.Done()
				if _, _, err := repo.SetGlobalPin(ctx, id, "admin"); err != nil {
					t.Errorf("pin %s: %v", id, err)
				}
			}(id)
		}
	}
	wg.Wait()

	list, err := repo.ListGlobalPinned(ctx, "evt-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("%d messages pinned after concurrent pins, want 1", len(list))
	}
}

func TestClearGlobalPin(t *testing.T) {
	repo := NewSQLiteMessageRepo(newTestDB(t))
	ctx := context.Background()
	m := appendText(t, repo, "evt-1", "alice", "one")

	if _, _, err := repo.SetGlobalPin(ctx, m.ID, "admin"); err != nil {
		t.Fatalf("pin: %v", err)
	}
	cleared, err := repo.ClearGlobalPin(ctx, m.ID)
	if err != nil {
		t.Fatalf("clear: %v", err)
	}
	if cleared.GlobalPinned {
		t.Fatal("message still pinned after clear")
	}

	list, err := repo.ListGlobalPinned(ctx, "evt-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("pinned list = %d, want 0", len(list))
	}
}

func TestPinUnknownMessage(t *testing.T) {
	repo := NewSQLiteMessageRepo(newTestDB(t))
	ctx := context.Background()

	if _, _, err := repo.SetGlobalPin(ctx, "missing", "admin"); !errors.Is(err, pkg.ErrNotFound) {
		t.Fatalf("SetGlobalPin err = %v, want ErrNotFound", err)
	}
	if _, err := repo.ClearGlobalPin(ctx, "missing"); !errors.Is(err, pkg.ErrNotFound) {
		t.Fatalf("ClearGlobalPin err = %v, want ErrNotFound", err)
	}
	if _, err := repo.GetByID(ctx, "missing"); !errors.Is(err, pkg.ErrNotFound) {
		t.Fatalf("GetByID err = %v, want ErrNotFound", err)
	}
}
