// Package ws carries the real-time side of the chat: WebSocket sessions, the room
// membership index and the broadcast router.
//
// Flow of one message:
//  1. Client frame {op:"send", d:{...}} arrives in a session's ReadPump.
//  2. ReadPump hands it to the SessionHandler (services.SessionService).
//  3. The service appends to the store and calls Hub.Deliver for the room.
//  4. Hub enqueues the encoded event on every session bound to that room.
//  5. Each session's WritePump drains its own queue onto the socket.
package ws

import (
	"encoding/json"
	"time"

	"github.com/akinalp/gatherly/models"
)

// Event is an outbound frame.
//
// Seq numbers room broadcasts: each room counts 1, 2, 3... in the order its
// sessions receive them, so a gap means a lost event. It is zero on direct
// responses and starts over once a room has emptied. Nonce echoes the nonce of
// the request a response answers.
type Event struct {
	Op    string `json:"op"`
	Data  any    `json:"d,omitempty"`
	Seq   int64  `json:"seq,omitempty"`
	Nonce string `json:"nonce,omitempty"`
}

// Inbound is a client frame. Data stays raw until the op is known.
type Inbound struct {
	Op    string          `json:"op"`
	Data  json.RawMessage `json:"d,omitempty"`
	Nonce string          `json:"nonce,omitempty"`
}

// Decode unmarshals the payload into v.
func (in Inbound) Decode(v any) error {
	if len(in.Data) == 0 {
		return json.Unmarshal([]byte("{}"), v)
	}
	return json.Unmarshal(in.Data, v)
}

// ─── Ops ───

// Client → server
const (
	OpHeartbeat    = "heartbeat"
	OpJoin         = "join"
	OpLeave        = "leave"
	OpSend         = "send"
	OpTyping       = "typing"
	OpPinGlobal    = "pin_global"
	OpUnpinGlobal  = "unpin_global"
	OpPinPersonal  = "pin_personal"
	OpHistory      = "history"
	OpUnreadCounts = "unread_counts"
)

// Server → room (broadcast)
const (
	OpMessageCreated = "message-created"
	OpPinChanged     = "pin-changed"
	OpUserJoined     = "user-joined"
	OpUserLeft       = "user-left"
	OpTypingChanged  = "typing-changed"
)

// Server → requesting session only
const (
	OpReady           = "ready"
	OpHeartbeatAck    = "heartbeat_ack"
	OpJoined          = "joined"
	OpLeft            = "left"
	OpSent            = "sent"
	OpHistoryPage     = "history"
	OpPinPersonalAck  = "pin-personal"
	OpUnreadCountsAck = "unread-counts"
	OpError           = "error"
)

// ─── Payloads ───

type RoomData struct {
	RoomID string `json:"room_id"`
}

type SendData struct {
	RoomID string             `json:"room_id"`
	Body   models.MessageBody `json:"body"`
}

type TypingData struct {
	RoomID   string `json:"room_id"`
	IsTyping bool   `json:"is_typing"`
}

type MessageRef struct {
	MessageID string `json:"message_id"`
}

// HistoryData asks for a page; Before is the CreatedAt of the oldest message the
// client already holds.
type HistoryData struct {
	RoomID string     `json:"room_id"`
	Before *time.Time `json:"before,omitempty"`
	Limit  int        `json:"limit,omitempty"`
}

// ReadyData is the first frame of every connection.
type ReadyData struct {
	SessionID string          `json:"session_id"`
	User      models.Identity `json:"user"`
}

// JoinedData answers a successful join with the initial view of the room.
type JoinedData struct {
	RoomID  string              `json:"room_id"`
	History *models.MessagePage `json:"history"`
	Pins    []models.Message    `json:"pins"`
	Online  []string            `json:"online"`
}

// ErrorData reports a failed request to the caller only.
type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Op      string `json:"op,omitempty"`
}
