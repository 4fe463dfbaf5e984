package repository

import (
	"context"

	"github.com/akinalp/gatherly/models"
)

// MembershipRepository answers "may this user view this room" and "what is the
// user's role there". The rows belong to the event/RSVP service; the chat core
// only reads them, apart from the admin seed endpoint.
type MembershipRepository interface {
	// MemberRole returns the user's role in the room, or "" when the user is
	// not a member.
	MemberRole(ctx context.Context, roomID, userID string) (models.Role, error)
	Add(ctx context.Context, member *models.RoomMember) error
	Remove(ctx context.Context, roomID, userID string) error
}
