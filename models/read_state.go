package models

import "time"

// ReadCursor is a per (user, room) watermark: everything created at or before
// LastReadAt counts as read.
type ReadCursor struct {
	UserID     string    `json:"user_id"`
	RoomID     string    `json:"room_id"`
	LastReadAt time.Time `json:"last_read_at"`
}

// UnreadInfo is the unread count of one room.
type UnreadInfo struct {
	RoomID      string `json:"room_id"`
	UnreadCount int    `json:"unread_count"`
}
