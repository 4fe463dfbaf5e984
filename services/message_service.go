package services

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/akinalp/gatherly/models"
	"github.com/akinalp/gatherly/pkg"
	"github.com/akinalp/gatherly/pkg/metrics"
	"github.com/akinalp/gatherly/pkg/ratelimit"
	"github.com/akinalp/gatherly/repository"
	"github.com/akinalp/gatherly/ws"
)

// MessageLimits bounds message bodies and history pages.
type MessageLimits struct {
	MaxTextRunes    int
	MaxImageURLLen  int
	DefaultPageSize int
	MaxPageSize     int
}

// TypingClearer ends a user's typing spell. *TypingTracker implements it.
type TypingClearer interface {
	ClearUser(roomID, userID string)
}

// MessageService sends messages and serves history.
//
// Send validates before anything is written: a rejected body never reaches the
// store or the room. A stored message is delivered to every session in the room,
// the sender's included, and ends the sender's typing spell there. The WebSocket
// and REST send paths both go through Send.
type MessageService interface {
	Send(ctx context.Context, identity models.Identity, roomID string, body models.MessageBody) (*models.Message, error)
	History(ctx context.Context, identity models.Identity, roomID string, before *time.Time, limit int) (*models.MessagePage, error)
}

type messageService struct {
	messages repository.MessageRepository
	members  MembershipChecker
	limiter  ratelimit.Limiter
	hub      ws.Broadcaster
	typing   TypingClearer
	limits   MessageLimits
	log      zerolog.Logger
}

// NewMessageService wires the service. limiter and typing may be nil.
func NewMessageService(
	messages repository.MessageRepository,
	members MembershipChecker,
	limiter ratelimit.Limiter,
	hub ws.Broadcaster,
	typing TypingClearer,
	limits MessageLimits,
	logger zerolog.Logger,
) MessageService {
	return &messageService{
		messages: messages,
		members:  members,
		limiter:  limiter,
		hub:      hub,
		typing:   typing,
		limits:   limits,
		log:      logger,
	}
}

func (s *messageService) Send(ctx context.Context, identity models.Identity, roomID string, body models.MessageBody) (*models.Message, error) {
	if err := body.Validate(s.limits.MaxTextRunes, s.limits.MaxImageURLLen); err != nil {
		return nil, fmt.Errorf("%w: %s", pkg.ErrValidation, err.Error())
	}

	if err := s.members.CanView(ctx, identity, roomID); err != nil {
		return nil, err
	}

	if s.limiter != nil && !s.limiter.Allow(ctx, identity.UserID) {
		metrics.RateLimitHits.WithLabelValues("message").Inc()
		return nil, fmt.Errorf("%w: slow down", pkg.ErrRateLimited)
	}

	senderID := identity.UserID
	msg, err := s.messages.Append(ctx, roomID, &senderID, body)
	if err != nil {
		return nil, err
	}
	metrics.MessagesAppended.WithLabelValues(string(body.Kind)).Inc()

	s.hub.Deliver(roomID, ws.Event{
		Op:   ws.OpMessageCreated,
		Data: msg,
	})
	if s.typing != nil {
		s.typing.ClearUser(roomID, identity.UserID)
	}

	s.log.Debug().Str("room_id", roomID).Str("message_id", msg.ID).Str("kind", string(body.Kind)).Msg("message sent")
	return msg, nil
}

// History clamps limit into [1, MaxPageSize]; zero means DefaultPageSize.
func (s *messageService) History(ctx context.Context, identity models.Identity, roomID string, before *time.Time, limit int) (*models.MessagePage, error) {
	if err := s.members.CanView(ctx, identity, roomID); err != nil {
		return nil, err
	}

	switch {
	case limit <= 0:
		limit = s.limits.DefaultPageSize
	case limit > s.limits.MaxPageSize:
		limit = s.limits.MaxPageSize
	}

	return s.messages.Page(ctx, roomID, before, limit)
}
