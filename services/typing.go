package services

import (
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/akinalp/gatherly/models"
	"github.com/akinalp/gatherly/pkg/metrics"
	"github.com/akinalp/gatherly/ws"
)

// RoomNotifier delivers a room-scoped event. ws.Hub satisfies it.
type RoomNotifier interface {
	Deliver(roomID string, event ws.Event)
}

type typingKey struct {
	room string
	user string
}

type typingEntry struct {
	timer *time.Timer
	gen   uint64
}

// TypingTracker holds the ephemeral "who is typing" state of every room.
//
// Each (room, user) pair has at most one decay timer. Renewing replaces the timer;
// the generation number lets a timer that already fired but lost the race for mu
// see that it was replaced and do nothing. Stopping, expiring and clearing all go
// through the same removal, so each typing spell ends with exactly one
// typing-changed(false).
//
// Notices are sent through the hub's non-blocking Deliver, so a timer never waits
// on a slow session.
type TypingTracker struct {
	mu      sync.Mutex
	entries map[typingKey]*typingEntry
	nextGen uint64
	closed  bool

	ttl time.Duration
	out RoomNotifier
	log zerolog.Logger
}

// NewTypingTracker creates a tracker whose entries expire after ttl without renewal.
func NewTypingTracker(out RoomNotifier, ttl time.Duration, logger zerolog.Logger) *TypingTracker {
	return &TypingTracker{
		entries: make(map[typingKey]*typingEntry),
		ttl:     ttl,
		out:     out,
		log:     logger,
	}
}

// SetTyping records a typing signal. true starts or renews the decay timer and
// announces the user only if they were not already typing; false removes the entry.
func (t *TypingTracker) SetTyping(roomID, userID string, isTyping bool) {
	if !isTyping {
		t.ClearUser(roomID, userID)
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return
	}

	key := typingKey{room: roomID, user: userID}
	t.nextGen++
	gen := t.nextGen

	if e, ok := t.entries[key]; ok {
		e.timer.Stop()
		e.gen = gen
		e.timer = time.AfterFunc(t.ttl, func() { t.expire(key, gen) })
		return
	}

	t.entries[key] = &typingEntry{
		gen:   gen,
		timer: time.AfterFunc(t.ttl, func() { t.expire(key, gen) }),
	}
	t.notify(key, true)
}

// ClearUser ends the user's typing spell in the room, if there is one.
func (t *TypingTracker) ClearUser(roomID, userID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	key := typingKey{room: roomID, user: userID}
	e, ok := t.entries[key]
	if !ok {
		return
	}
	e.timer.Stop()
	delete(t.entries, key)
	t.notify(key, false)
}

func (t *TypingTracker) expire(key typingKey, gen uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[key]
	if !ok || e.gen != gen {
		return
	}
	delete(t.entries, key)
	metrics.TypingExpired.Inc()
	t.log.Debug().Str("room_id", key.room).Str("user_id", key.user).Msg("typing expired")
	t.notify(key, false)
}

// notify runs under mu so true/false notices for a pair leave in order.
func (t *TypingTracker) notify(key typingKey, isTyping bool) {
	t.out.Deliver(key.room, ws.Event{
		Op: ws.OpTypingChanged,
		Data: models.TypingChange{
			RoomID:   key.room,
			UserID:   key.user,
			IsTyping: isTyping,
		},
	})
}

// Typing returns the users currently typing in a room, sorted.
func (t *TypingTracker) Typing(roomID string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	var users []string
	for key := range t.entries {
		if key.room == roomID {
			users = append(users, key.user)
		}
	}
	sort.Strings(users)
	return users
}

// Close stops every timer without sending notices; used at shutdown, when the
// sessions that would receive them are going away too.
func (t *TypingTracker) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.closed = true
	for key, e := range t.entries {
		e.timer.Stop()
		delete(t.entries, key)
	}
}
