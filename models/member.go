package models

import "time"

// RoomMember records that a user may view a room's chat. Rows are written by the
// event service when an RSVP is accepted.
type RoomMember struct {
	RoomID   string    `json:"room_id"`
	UserID   string    `json:"user_id"`
	Role     Role      `json:"role"`
	JoinedAt time.Time `json:"joined_at"`
}

// Presence is the user-joined / user-left notice payload.
type Presence struct {
	RoomID   string `json:"room_id"`
	UserID   string `json:"user_id"`
	Username string `json:"username,omitempty"`
	Text     string `json:"text"` // e.g. "alice joined the chat"
}

// TypingChange is the typing-changed notice payload.
type TypingChange struct {
	RoomID   string `json:"room_id"`
	UserID   string `json:"user_id"`
	IsTyping bool   `json:"is_typing"`
}
