package ws

import (
	"encoding/json"
	"sync"

	"github.com/rs/zerolog"

	"github.com/akinalp/gatherly/pkg/metrics"
)

// Broadcaster is the delivery surface services depend on. Hub implements it;
// tests can swap in a recorder.
type Broadcaster interface {
	Deliver(roomID string, event Event)
	DeliverExcept(roomID string, except *Client, event Event)
	RoomUserIDs(roomID string) []string
}

// Hub is the room membership index and the broadcast router.
//
// rooms maps a room id to the sessions bound to it. Bind, Unbind and Unregister
// take the write lock; Deliver walks the live set under the read lock, so a
// session is either fully in a room or not in it while an event goes out.
//
// A Hub is created by main and passed around; there is no package-level instance.
type Hub struct {
	mu       sync.RWMutex
	rooms    map[string]*roomState
	sessions map[*Client]struct{}
	closed   bool

	log zerolog.Logger
}

// roomState is one room of the index. members changes under Hub.mu (write);
// deliverMu orders deliveries so seq order is queue order in every session.
// The state, seq included, goes away when the last session leaves.
type roomState struct {
	members map[*Client]struct{}

	deliverMu sync.Mutex
	seq       int64
}

// NewHub creates an empty hub.
func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		rooms:    make(map[string]*roomState),
		sessions: make(map[*Client]struct{}),
		log:      logger,
	}
}

// Register adds a freshly connected session. It returns false when the hub is
// shutting down; the caller should then close the connection.
func (h *Hub) Register(c *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return false
	}
	h.sessions[c] = struct{}{}
	metrics.SessionsConnected.Inc()

	h.log.Debug().Str("session_id", c.id).Str("user_id", c.identity.UserID).Msg("session registered")
	return true
}

// Unregister forgets the session and closes it. Room cleanup (and the notices that
// go with it) is the SessionHandler's job and has normally run already; any
// binding left over is dropped silently. Calling it twice is harmless.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	h.unbindLocked(c)
	if _, ok := h.sessions[c]; ok {
		delete(h.sessions, c)
		metrics.SessionsConnected.Dec()
	}
	h.mu.Unlock()

	c.Close()
}

// Bind moves the session into room. It returns the room the session was bound to
// before ("" if none) and whether the session's user had no other session in room,
// both decided under the same lock as the move. Binding to the current room
// changes nothing and reports first=false.
func (h *Hub) Bind(c *Client, room string) (prev string, first bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	prev = c.room
	if prev == room {
		return prev, false
	}
	if prev != "" {
		h.removeFromRoomLocked(c, prev)
	} else {
		metrics.SessionsBound.Inc()
	}

	first = !h.userInRoomLocked(room, c.identity.UserID)

	rs, ok := h.rooms[room]
	if !ok {
		rs = &roomState{members: make(map[*Client]struct{})}
		h.rooms[room] = rs
	}
	rs.members[c] = struct{}{}
	c.room = room

	h.log.Debug().Str("session_id", c.id).Str("room_id", room).Str("previous", prev).Msg("session bound")
	return prev, first
}

// Unbind removes the session from its room. It returns that room ("" if the
// session was unbound) and whether it was the user's last session there.
func (h *Hub) Unbind(c *Client) (room string, last bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.unbindLocked(c)
}

func (h *Hub) unbindLocked(c *Client) (string, bool) {
	room := c.room
	if room == "" {
		return "", false
	}
	h.removeFromRoomLocked(c, room)
	c.room = ""
	metrics.SessionsBound.Dec()
	return room, !h.userInRoomLocked(room, c.identity.UserID)
}

func (h *Hub) removeFromRoomLocked(c *Client, room string) {
	rs, ok := h.rooms[room]
	if !ok {
		return
	}
	delete(rs.members, c)
	if len(rs.members) == 0 {
		delete(h.rooms, room)
	}
}

// membersLocked returns the sessions bound to room, nil when there are none.
func (h *Hub) membersLocked(room string) map[*Client]struct{} {
	if rs, ok := h.rooms[room]; ok {
		return rs.members
	}
	return nil
}

func (h *Hub) userInRoomLocked(room, userID string) bool {
	for c := range h.membersLocked(room) {
		if c.identity.UserID == userID {
			return true
		}
	}
	return false
}

// RoomOf returns the room the session is bound to, or "".
func (h *Hub) RoomOf(c *Client) string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return c.room
}

// Deliver sends event to every session bound to room.
func (h *Hub) Deliver(room string, event Event) {
	h.DeliverExcept(room, nil, event)
}

// DeliverExcept sends event to every session bound to room other than except.
//
// The event gets the room's next seq and is encoded once, both under the room's
// delivery lock, so concurrent deliveries reach every queue in seq order. Each
// enqueue is non-blocking: a session whose queue is full loses the event and is
// disconnected, so one slow reader never holds up the rest of the room.
func (h *Hub) DeliverExcept(room string, except *Client, event Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	rs, ok := h.rooms[room]
	if !ok {
		return
	}

	rs.deliverMu.Lock()
	defer rs.deliverMu.Unlock()

	rs.seq++
	event.Seq = rs.seq

	data, err := json.Marshal(event)
	if err != nil {
		h.log.Error().Err(err).Str("op", event.Op).Msg("failed to marshal room event")
		return
	}

	for c := range rs.members {
		if c == except {
			continue
		}
		switch c.enqueue(data) {
		case enqueueOK:
			metrics.EventsDelivered.WithLabelValues(event.Op).Inc()
		case enqueueFull:
			metrics.EventsDropped.WithLabelValues(event.Op).Inc()
			h.log.Warn().Str("session_id", c.id).Str("user_id", c.identity.UserID).
				Str("room_id", room).Msg("send queue full, dropping session")
			c.Close()
		}
	}
}

// RoomSize returns the number of sessions bound to room.
func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.membersLocked(room))
}

// RoomUserIDs returns the distinct users with at least one session in room.
func (h *Hub) RoomUserIDs(room string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	members := h.membersLocked(room)
	seen := make(map[string]struct{}, len(members))
	ids := make([]string, 0, len(members))
	for c := range members {
		if _, ok := seen[c.identity.UserID]; ok {
			continue
		}
		seen[c.identity.UserID] = struct{}{}
		ids = append(ids, c.identity.UserID)
	}
	return ids
}

// UserInRoom reports whether userID has any session bound to room.
func (h *Hub) UserInRoom(room, userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return h.userInRoomLocked(room, userID)
}

// SessionCount returns the number of registered sessions.
func (h *Hub) SessionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.sessions)
}

// Shutdown closes every session and refuses new ones. Each session's ReadPump then
// runs its normal disconnect path.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	h.closed = true
	sessions := make([]*Client, 0, len(h.sessions))
	for c := range h.sessions {
		sessions = append(sessions, c)
	}
	h.mu.Unlock()

	for _, c := range sessions {
		c.Close()
	}
	h.log.Info().Int("sessions", len(sessions)).Msg("hub shut down")
}
