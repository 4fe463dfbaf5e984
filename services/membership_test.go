package services

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/akinalp/gatherly/database"
	"github.com/akinalp/gatherly/models"
	"github.com/akinalp/gatherly/pkg"
	"github.com/akinalp/gatherly/repository"
)

type countingMembers struct {
	repository.MembershipRepository
	calls int
}

func (c *countingMembers) MemberRole(ctx context.Context, roomID, userID string) (models.Role, error) {
	c.calls++
	return c.MembershipRepository.MemberRole(ctx, roomID, userID)
}

func newCountingMembers(t *testing.T) *countingMembers {
	t.Helper()

	db, err := database.New(filepath.Join(t.TempDir(), "chat.db"), database.Migrations(), zerolog.Nop())
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return &countingMembers{MembershipRepository: repository.NewSQLiteMembershipRepo(db.Conn)}
}

func TestCanViewCachesAnswers(t *testing.T) {
	repo := newCountingMembers(t)
	checker := NewMembershipChecker(repo, time.Minute)
	defer checker.Close()
	ctx := context.Background()
	bob := models.Identity{UserID: "bob", Role: models.RoleUser}

	if err := checker.CanView(ctx, bob, "evt-1"); !errors.Is(err, pkg.ErrNotAMember) {
		t.Fatalf("err = %v, want ErrNotAMember", err)
	}
	if err := checker.CanView(ctx, bob, "evt-1"); !errors.Is(err, pkg.ErrNotAMember) {
		t.Fatalf("cached err = %v, want ErrNotAMember", err)
	}
	if repo.calls != 1 {
		t.Fatalf("repository asked %d times, want 1", repo.calls)
	}

	// adding the member invalidates the cached "no"
	if err := checker.AddMember(ctx, "evt-1", "bob", models.RoleUser); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := checker.CanView(ctx, bob, "evt-1"); err != nil {
		t.Fatalf("after add: %v", err)
	}

	if err := checker.RemoveMember(ctx, "evt-1", "bob"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := checker.CanView(ctx, bob, "evt-1"); !errors.Is(err, pkg.ErrNotAMember) {
		t.Fatalf("after remove err = %v, want ErrNotAMember", err)
	}
}

func TestAdminsViewEveryRoom(t *testing.T) {
	repo := newCountingMembers(t)
	checker := NewMembershipChecker(repo, time.Minute)
	defer checker.Close()

	admin := models.Identity{UserID: "root", Role: models.RoleAdmin}
	if err := checker.CanView(context.Background(), admin, "evt-9"); err != nil {
		t.Fatalf("admin: %v", err)
	}
	if repo.calls != 0 {
		t.Fatalf("admin check hit the repository %d times", repo.calls)
	}
}

func TestAddMemberRejectsUnknownRole(t *testing.T) {
	checker := NewMembershipChecker(newCountingMembers(t), time.Minute)
	defer checker.Close()

	err := checker.AddMember(context.Background(), "evt-1", "bob", "overlord")
	if !errors.Is(err, pkg.ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}
}

func TestCanPinGloballyUsesRoomRole(t *testing.T) {
	repo := newCountingMembers(t)
	checker := NewMembershipChecker(repo, time.Minute)
	defer checker.Close()
	ctx := context.Background()

	// creator of evt-1 only; the token role is creator everywhere
	carol := models.Identity{UserID: "carol", Role: models.RoleCreator}
	if err := checker.AddMember(ctx, "evt-1", "carol", models.RoleCreator); err != nil {
		t.Fatalf("add evt-1: %v", err)
	}
	if err := checker.AddMember(ctx, "evt-2", "carol", models.RoleUser); err != nil {
		t.Fatalf("add evt-2: %v", err)
	}

	if err := checker.CanPinGlobally(ctx, carol, "evt-1"); err != nil {
		t.Fatalf("creator of evt-1: %v", err)
	}
	if err := checker.CanPinGlobally(ctx, carol, "evt-2"); !errors.Is(err, pkg.ErrForbidden) {
		t.Fatalf("plain member of evt-2: err = %v, want ErrForbidden", err)
	}
	if err := checker.CanPinGlobally(ctx, carol, "evt-3"); !errors.Is(err, pkg.ErrNotAMember) {
		t.Fatalf("outsider of evt-3: err = %v, want ErrNotAMember", err)
	}

	// promotion invalidates the cached role
	if err := checker.AddMember(ctx, "evt-2", "carol", models.RoleCreator); err != nil {
		t.Fatalf("promote: %v", err)
	}
	if err := checker.CanPinGlobally(ctx, carol, "evt-2"); err != nil {
		t.Fatalf("after promotion: %v", err)
	}

	calls := repo.calls
	admin := models.Identity{UserID: "root", Role: models.RoleAdmin}
	if err := checker.CanPinGlobally(ctx, admin, "evt-9"); err != nil {
		t.Fatalf("admin: %v", err)
	}
	if repo.calls != calls {
		t.Fatal("admin pin check hit the repository")
	}
}
