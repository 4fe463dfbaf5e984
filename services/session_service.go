package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/akinalp/gatherly/models"
	"github.com/akinalp/gatherly/pkg"
	"github.com/akinalp/gatherly/ws"
)

// requestTimeout bounds the store work done for one inbound frame.
const requestTimeout = 10 * time.Second

// SessionService is the connection session manager. It implements
// ws.Authenticator and ws.SessionHandler: the ws package owns sockets and the room
// index, this type owns what a session is allowed to do and what the room hears
// about it.
type SessionService struct {
	hub      *ws.Hub
	auth     AuthService
	members  MembershipChecker
	messages MessageService
	pins     PinService
	reads    ReadStateService
	typing   *TypingTracker
	log      zerolog.Logger
}

// NewSessionService wires the session manager.
func NewSessionService(
	hub *ws.Hub,
	auth AuthService,
	members MembershipChecker,
	messages MessageService,
	pins PinService,
	reads ReadStateService,
	typing *TypingTracker,
	logger zerolog.Logger,
) *SessionService {
	return &SessionService{
		hub:      hub,
		auth:     auth,
		members:  members,
		messages: messages,
		pins:     pins,
		reads:    reads,
		typing:   typing,
		log:      logger,
	}
}

// Authenticate maps the connection credential to an identity or ErrUnauthorized.
func (s *SessionService) Authenticate(credential string) (*models.Identity, error) {
	return s.auth.Authenticate(credential)
}

// BindToRoom joins the session to roomID.
//
// Steps, in order:
//  1. Membership check. On rejection the session keeps whatever binding it had
//     and learns nothing about the room.
//  2. If the session sits in another room, it leaves it first, with the usual
//     user-left notice there.
//  3. The session is added to the room index, so it sees every event from here on.
//  4. The newest history page and the global pins are loaded. A message sent
//     between 3 and 4 can show up both in the page and as message-created; clients
//     dedupe by id.
//  5. The read cursor moves to now.
//  6. The other sessions in the room get user-joined, unless the user already had
//     a session there.
//
// Joining the room the session is already in repeats 4 and 5 only.
func (s *SessionService) BindToRoom(ctx context.Context, c *ws.Client, roomID string) (*ws.JoinedData, error) {
	identity := c.Identity()

	if err := s.members.CanView(ctx, identity, roomID); err != nil {
		return nil, err
	}

	current := c.Room()
	if current != "" && current != roomID {
		s.leaveRoom(c)
	}

	_, first := s.hub.Bind(c, roomID)

	// A store failure undoes a fresh binding before any notice went out, so the
	// index never holds a session the room was not told about.
	rollback := func() {
		if current != roomID {
			s.hub.Unbind(c)
		}
	}

	page, err := s.messages.History(ctx, identity, roomID, nil, 0)
	if err != nil {
		rollback()
		return nil, err
	}
	pins, err := s.pins.ListGlobal(ctx, identity, roomID)
	if err != nil {
		rollback()
		return nil, err
	}

	if _, err := s.reads.Touch(ctx, identity.UserID, roomID); err != nil {
		// The session is usable without a fresh cursor; unread counts lag until
		// the next touch.
		s.log.Warn().Err(err).Str("room_id", roomID).Str("user_id", identity.UserID).Msg("failed to touch read cursor")
	}

	if first {
		s.hub.DeliverExcept(roomID, c, ws.Event{
			Op:   ws.OpUserJoined,
			Data: presence(roomID, identity, "joined"),
		})
	}

	s.log.Info().Str("room_id", roomID).Str("user_id", identity.UserID).
		Str("session_id", c.ID()).Str("previous", current).Msg("session joined room")

	return &ws.JoinedData{
		RoomID:  roomID,
		History: page,
		Pins:    pins,
		Online:  s.hub.RoomUserIDs(roomID),
	}, nil
}

// Unbind removes the session from its room: index first, then, when it was the
// user's last session there, the typing entry and user-left to whoever remains.
// It returns the room left, or "".
func (s *SessionService) Unbind(c *ws.Client) string {
	return s.leaveRoom(c)
}

func (s *SessionService) leaveRoom(c *ws.Client) string {
	room, last := s.hub.Unbind(c)
	if room == "" {
		return ""
	}

	// Typing state is per user, so it ends only with the user's last session in
	// the room; another tab may still be typing.
	identity := c.Identity()
	if last {
		s.typing.ClearUser(room, identity.UserID)
		s.hub.Deliver(room, ws.Event{
			Op:   ws.OpUserLeft,
			Data: presence(room, identity, "left"),
		})
	}

	s.log.Info().Str("room_id", room).Str("user_id", identity.UserID).
		Str("session_id", c.ID()).Msg("session left room")
	return room
}

func presence(roomID string, identity models.Identity, verb string) models.Presence {
	name := identity.Username
	if name == "" {
		name = identity.UserID
	}
	return models.Presence{
		RoomID:   roomID,
		UserID:   identity.UserID,
		Username: identity.Username,
		Text:     fmt.Sprintf("%s %s the chat", name, verb),
	}
}

// HandleDisconnect runs for voluntary and involuntary disconnects alike, so the
// room hears the same user-left either way.
func (s *SessionService) HandleDisconnect(c *ws.Client) {
	s.Unbind(c)
}

// HandleInbound dispatches one client frame. Failures go back to the caller as an
// error event and nothing is broadcast.
func (s *SessionService) HandleInbound(c *ws.Client, in ws.Inbound) {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	if err := s.dispatch(ctx, c, in); err != nil {
		if !isClientError(err) {
			s.log.Error().Err(err).Str("op", in.Op).Str("user_id", c.UserID()).Msg("request failed")
		}
		c.SendError(in, err)
	}
}

func (s *SessionService) dispatch(ctx context.Context, c *ws.Client, in ws.Inbound) error {
	identity := c.Identity()

	switch in.Op {
	case ws.OpJoin:
		var d ws.RoomData
		if err := decode(in, &d); err != nil {
			return err
		}
		joined, err := s.BindToRoom(ctx, c, d.RoomID)
		if err != nil {
			return err
		}
		c.Send(ws.Event{Op: ws.OpJoined, Nonce: in.Nonce, Data: joined})

	case ws.OpLeave:
		room := s.Unbind(c)
		c.Send(ws.Event{Op: ws.OpLeft, Nonce: in.Nonce, Data: ws.RoomData{RoomID: room}})

	case ws.OpSend:
		var d ws.SendData
		if err := decode(in, &d); err != nil {
			return err
		}
		if err := s.requireBound(c, d.RoomID); err != nil {
			return err
		}
		msg, err := s.messages.Send(ctx, identity, d.RoomID, d.Body)
		if err != nil {
			return err
		}
		c.Send(ws.Event{Op: ws.OpSent, Nonce: in.Nonce, Data: msg})

	case ws.OpTyping:
		var d ws.TypingData
		if err := decode(in, &d); err != nil {
			return err
		}
		if err := s.requireBound(c, d.RoomID); err != nil {
			return err
		}
		s.typing.SetTyping(d.RoomID, identity.UserID, d.IsTyping)

	case ws.OpPinGlobal:
		var d ws.MessageRef
		if err := decode(in, &d); err != nil {
			return err
		}
		_, err := s.pins.PinGlobal(ctx, identity, d.MessageID)
		return err

	case ws.OpUnpinGlobal:
		var d ws.MessageRef
		if err := decode(in, &d); err != nil {
			return err
		}
		_, err := s.pins.UnpinGlobal(ctx, identity, d.MessageID)
		return err

	case ws.OpPinPersonal:
		var d ws.MessageRef
		if err := decode(in, &d); err != nil {
			return err
		}
		result, err := s.pins.TogglePersonal(ctx, identity, d.MessageID)
		if err != nil {
			return err
		}
		c.Send(ws.Event{Op: ws.OpPinPersonalAck, Nonce: in.Nonce, Data: result})

	case ws.OpHistory:
		var d ws.HistoryData
		if err := decode(in, &d); err != nil {
			return err
		}
		if d.RoomID == "" {
			d.RoomID = c.Room()
		}
		page, err := s.messages.History(ctx, identity, d.RoomID, d.Before, d.Limit)
		if err != nil {
			return err
		}
		if d.Before == nil {
			// Reading the newest page counts as catching up.
			if _, err := s.reads.Touch(ctx, identity.UserID, d.RoomID); err != nil {
				s.log.Warn().Err(err).Str("room_id", d.RoomID).Msg("failed to touch read cursor")
			}
		}
		c.Send(ws.Event{Op: ws.OpHistoryPage, Nonce: in.Nonce, Data: page})

	case ws.OpUnreadCounts:
		counts, err := s.reads.UnreadCounts(ctx, identity.UserID)
		if err != nil {
			return err
		}
		c.Send(ws.Event{Op: ws.OpUnreadCountsAck, Nonce: in.Nonce, Data: counts})

	default:
		return fmt.Errorf("%w: unknown op %q", pkg.ErrBadRequest, in.Op)
	}

	return nil
}

// requireBound rejects room actions from a session that has not joined the room.
func (s *SessionService) requireBound(c *ws.Client, roomID string) error {
	if roomID == "" {
		return fmt.Errorf("%w: room_id is required", pkg.ErrValidation)
	}
	if c.Room() != roomID {
		return fmt.Errorf("%w: join %s first", pkg.ErrNotAMember, roomID)
	}
	return nil
}

func decode(in ws.Inbound, v any) error {
	if err := in.Decode(v); err != nil {
		return fmt.Errorf("%w: malformed %s payload", pkg.ErrBadRequest, in.Op)
	}
	return nil
}

func isClientError(err error) bool {
	for _, target := range []error{
		pkg.ErrUnauthorized, pkg.ErrNotAMember, pkg.ErrValidation, pkg.ErrNotFound,
		pkg.ErrForbidden, pkg.ErrRateLimited, pkg.ErrBadRequest, pkg.ErrAlreadyExists,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
