package services

import (
	"context"
	"fmt"
	"time"

	"github.com/akinalp/gatherly/models"
	"github.com/akinalp/gatherly/pkg"
	"github.com/akinalp/gatherly/pkg/cache"
	"github.com/akinalp/gatherly/repository"
)

// MembershipChecker answers "may this identity view this room" and "may it pin
// for everyone there".
//
// Admins may do both in every room. Everyone else needs an event_members row, and
// global pins also need that row to carry the creator (or admin) role; the role
// in the token does not count for a room. Rows are cached for a short TTL because
// the question is asked on every join, send and history request; AddMember and
// RemoveMember invalidate the cached row.
type MembershipChecker interface {
	CanView(ctx context.Context, identity models.Identity, roomID string) error
	CanPinGlobally(ctx context.Context, identity models.Identity, roomID string) error
	AddMember(ctx context.Context, roomID, userID string, role models.Role) error
	RemoveMember(ctx context.Context, roomID, userID string) error
	Close()
}

// membershipChecker caches the member's room role; "" records a non-member.
type membershipChecker struct {
	repo  repository.MembershipRepository
	cache *cache.TTLCache[string, models.Role]
}

// NewMembershipChecker wraps repo with a TTL cache.
func NewMembershipChecker(repo repository.MembershipRepository, ttl time.Duration) MembershipChecker {
	return &membershipChecker{
		repo:  repo,
		cache: cache.New[string, models.Role](ttl, 2*ttl),
	}
}

func membershipKey(roomID, userID string) string {
	return roomID + "\x00" + userID
}

// CanView returns nil or an error wrapping pkg.ErrNotAMember.
func (m *membershipChecker) CanView(ctx context.Context, identity models.Identity, roomID string) error {
	if roomID == "" {
		return fmt.Errorf("%w: room_id is required", pkg.ErrValidation)
	}
	if identity.Role == models.RoleAdmin {
		return nil
	}
	_, err := m.roomRole(ctx, roomID, identity.UserID)
	return err
}

// CanPinGlobally returns nil, an error wrapping pkg.ErrNotAMember, or one
// wrapping pkg.ErrForbidden when the member's room role may not pin.
func (m *membershipChecker) CanPinGlobally(ctx context.Context, identity models.Identity, roomID string) error {
	if roomID == "" {
		return fmt.Errorf("%w: room_id is required", pkg.ErrValidation)
	}
	if identity.Role == models.RoleAdmin {
		return nil
	}
	role, err := m.roomRole(ctx, roomID, identity.UserID)
	if err != nil {
		return err
	}
	if !role.CanPinGlobally() {
		return fmt.Errorf("%w: only the event's creators and admins can pin for everyone", pkg.ErrForbidden)
	}
	return nil
}

func (m *membershipChecker) roomRole(ctx context.Context, roomID, userID string) (models.Role, error) {
	key := membershipKey(roomID, userID)
	role, hit := m.cache.Get(key)
	if !hit {
		var err error
		role, err = m.repo.MemberRole(ctx, roomID, userID)
		if err != nil {
			return "", err
		}
		m.cache.Set(key, role)
	}

	if role == "" {
		return "", fmt.Errorf("%w: %s", pkg.ErrNotAMember, roomID)
	}
	return role, nil
}

func (m *membershipChecker) AddMember(ctx context.Context, roomID, userID string, role models.Role) error {
	if roomID == "" || userID == "" {
		return fmt.Errorf("%w: room_id and user_id are required", pkg.ErrValidation)
	}
	if role == "" {
		role = models.RoleUser
	}
	if !role.Valid() {
		return fmt.Errorf("%w: unknown role %q", pkg.ErrValidation, role)
	}

	if err := m.repo.Add(ctx, &models.RoomMember{RoomID: roomID, UserID: userID, Role: role}); err != nil {
		return err
	}
	m.cache.Delete(membershipKey(roomID, userID))
	return nil
}

func (m *membershipChecker) RemoveMember(ctx context.Context, roomID, userID string) error {
	err := m.repo.Remove(ctx, roomID, userID)
	m.cache.Delete(membershipKey(roomID, userID))
	return err
}

func (m *membershipChecker) Close() {
	m.cache.Close()
}
