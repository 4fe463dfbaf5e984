package models

// PinToggleResult reports the state of a personal pin after a toggle, not the
// change. Personal pins are unique per (message, user) and independent of the
// message's global pin.
type PinToggleResult struct {
	MessageID string `json:"message_id"`
	Pinned    bool   `json:"pinned"`
}

// PinChange is broadcast to the room when a global pin is set or cleared.
type PinChange struct {
	RoomID  string   `json:"room_id"`
	Message *Message `json:"message"`
	// Unpinned lists messages that lost their global pin as a side effect of this
	// change, e.g. the previous pin when a new one is set.
	Unpinned []string `json:"unpinned,omitempty"`
}
