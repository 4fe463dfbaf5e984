package services

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/akinalp/gatherly/models"
	"github.com/akinalp/gatherly/pkg"
	"github.com/akinalp/gatherly/repository"
	"github.com/akinalp/gatherly/ws"
)

// PinService handles both pin tiers.
//
// Global pins are exclusive per room and visible to everyone; setting or clearing
// one is limited to the room's creators and to admins, and broadcast as
// pin-changed. Personal pins
// are private bookmarks: the toggle result goes back to the caller and nowhere else.
type PinService interface {
	PinGlobal(ctx context.Context, identity models.Identity, messageID string) (*models.Message, error)
	UnpinGlobal(ctx context.Context, identity models.Identity, messageID string) (*models.Message, error)
	TogglePersonal(ctx context.Context, identity models.Identity, messageID string) (*models.PinToggleResult, error)
	ListGlobal(ctx context.Context, identity models.Identity, roomID string) ([]models.Message, error)
	ListPersonal(ctx context.Context, identity models.Identity, roomID string) ([]models.Message, error)
}

type pinService struct {
	messages repository.MessageRepository
	pins     repository.PinRepository
	members  MembershipChecker
	hub      ws.Broadcaster
	log      zerolog.Logger
}

// NewPinService wires the service.
func NewPinService(
	messages repository.MessageRepository,
	pins repository.PinRepository,
	members MembershipChecker,
	hub ws.Broadcaster,
	logger zerolog.Logger,
) PinService {
	return &pinService{
		messages: messages,
		pins:     pins,
		members:  members,
		hub:      hub,
		log:      logger,
	}
}

// visibleMessage loads a message and checks the caller may see its room. A
// message in a room the caller cannot view is reported as not a member, never
// with its contents.
func (s *pinService) visibleMessage(ctx context.Context, identity models.Identity, messageID string) (*models.Message, error) {
	if messageID == "" {
		return nil, fmt.Errorf("%w: message_id is required", pkg.ErrValidation)
	}
	msg, err := s.messages.GetByID(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if err := s.members.CanView(ctx, identity, msg.RoomID); err != nil {
		return nil, err
	}
	return msg, nil
}

// pinnableMessage is visibleMessage plus the room-role check for global pins.
func (s *pinService) pinnableMessage(ctx context.Context, identity models.Identity, messageID string) (*models.Message, error) {
	msg, err := s.visibleMessage(ctx, identity, messageID)
	if err != nil {
		return nil, err
	}
	if err := s.members.CanPinGlobally(ctx, identity, msg.RoomID); err != nil {
		return nil, err
	}
	return msg, nil
}

func (s *pinService) PinGlobal(ctx context.Context, identity models.Identity, messageID string) (*models.Message, error) {
	if _, err := s.pinnableMessage(ctx, identity, messageID); err != nil {
		return nil, err
	}

	pinned, unpinned, err := s.messages.SetGlobalPin(ctx, messageID, identity.UserID)
	if err != nil {
		return nil, err
	}

	s.hub.Deliver(pinned.RoomID, ws.Event{
		Op: ws.OpPinChanged,
		Data: models.PinChange{
			RoomID:   pinned.RoomID,
			Message:  pinned,
			Unpinned: unpinned,
		},
	})

	s.log.Info().Str("room_id", pinned.RoomID).Str("message_id", messageID).
		Str("by", identity.UserID).Strs("unpinned", unpinned).Msg("global pin set")
	return pinned, nil
}

func (s *pinService) UnpinGlobal(ctx context.Context, identity models.Identity, messageID string) (*models.Message, error) {
	if _, err := s.pinnableMessage(ctx, identity, messageID); err != nil {
		return nil, err
	}

	cleared, err := s.messages.ClearGlobalPin(ctx, messageID)
	if err != nil {
		return nil, err
	}

	s.hub.Deliver(cleared.RoomID, ws.Event{
		Op: ws.OpPinChanged,
		Data: models.PinChange{
			RoomID:  cleared.RoomID,
			Message: cleared,
		},
	})
	return cleared, nil
}

func (s *pinService) TogglePersonal(ctx context.Context, identity models.Identity, messageID string) (*models.PinToggleResult, error) {
	if _, err := s.visibleMessage(ctx, identity, messageID); err != nil {
		return nil, err
	}

	pinned, err := s.pins.Toggle(ctx, messageID, identity.UserID)
	if err != nil {
		return nil, err
	}
	return &models.PinToggleResult{MessageID: messageID, Pinned: pinned}, nil
}

func (s *pinService) ListGlobal(ctx context.Context, identity models.Identity, roomID string) ([]models.Message, error) {
	if err := s.members.CanView(ctx, identity, roomID); err != nil {
		return nil, err
	}
	return s.messages.ListGlobalPinned(ctx, roomID)
}

func (s *pinService) ListPersonal(ctx context.Context, identity models.Identity, roomID string) ([]models.Message, error) {
	if err := s.members.CanView(ctx, identity, roomID); err != nil {
		return nil, err
	}
	return s.pins.ListByUser(ctx, identity.UserID, roomID)
}
