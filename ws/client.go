package ws

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/akinalp/gatherly/models"
	"github.com/akinalp/gatherly/pkg"
)

const (
	// writeWait bounds a single socket write.
	writeWait = 10 * time.Second

	// pongWait is how long a session may stay silent. Clients send a heartbeat
	// every 30s; three missed heartbeats mark the connection dead.
	pongWait = 90 * time.Second

	// pingPeriod must be shorter than pongWait.
	pingPeriod = 30 * time.Second

	// defaultMaxFrameBytes applies when HandlerOptions.MaxFrameBytes is unset.
	defaultMaxFrameBytes = 64 * 1024

	// oversizeFactor bounds how far past the frame limit a frame may run before
	// the connection is dropped instead of answered with an error.
	oversizeFactor = 4
)

var errFrameTooLarge = errors.New("frame too large")

// SessionHandler receives what a session reads. services.SessionService implements
// it; the interface lives here so ws never imports services.
//
// HandleInbound is called on the session's read goroutine, one frame at a time, so
// a session's requests are handled in the order they were sent.
type SessionHandler interface {
	HandleInbound(c *Client, in Inbound)
	HandleDisconnect(c *Client)
}

type enqueueResult int

const (
	enqueueOK enqueueResult = iota
	enqueueFull
	enqueueClosed
)

// Client is one live connection: the Session of the chat core.
//
// Two goroutines serve it. ReadPump owns reads and runs inbound handling; WritePump
// is the only writer and drains send. Everything else talks to the session by
// enqueueing encoded frames.
type Client struct {
	id       string
	hub      *Hub
	conn     *websocket.Conn
	identity models.Identity
	handler  SessionHandler
	log      zerolog.Logger

	// maxFrame is the largest inbound frame handled; larger ones are answered
	// with a validation error.
	maxFrame int64

	// room is guarded by hub.mu.
	room string

	mu     sync.Mutex // guards send and closed
	send   chan []byte
	closed bool
}

func newClient(hub *Hub, conn *websocket.Conn, identity models.Identity, handler SessionHandler, queueSize int, maxFrame int64, logger zerolog.Logger) *Client {
	id := uuid.NewString()
	if maxFrame <= 0 {
		maxFrame = defaultMaxFrameBytes
	}
	return &Client{
		id:       id,
		hub:      hub,
		conn:     conn,
		identity: identity,
		handler:  handler,
		maxFrame: maxFrame,
		send:     make(chan []byte, queueSize),
		log:      logger.With().Str("session_id", id).Str("user_id", identity.UserID).Logger(),
	}
}

// ID returns the session id.
func (c *Client) ID() string { return c.id }

// Identity returns the authenticated user behind the session.
func (c *Client) Identity() models.Identity { return c.identity }

// UserID is shorthand for Identity().UserID.
func (c *Client) UserID() string { return c.identity.UserID }

// Room returns the room the session is bound to, or "".
func (c *Client) Room() string { return c.hub.RoomOf(c) }

// Send encodes event and queues it for this session only. It reports whether the
// frame was queued; a full queue closes the session.
func (c *Client) Send(event Event) bool {
	data, err := json.Marshal(event)
	if err != nil {
		c.log.Error().Err(err).Str("op", event.Op).Msg("failed to marshal event")
		return false
	}

	switch c.enqueue(data) {
	case enqueueOK:
		return true
	case enqueueFull:
		c.log.Warn().Str("op", event.Op).Msg("send queue full, dropping session")
		c.Close()
	}
	return false
}

// SendError reports err to this session as an error event answering req.
func (c *Client) SendError(req Inbound, err error) {
	code := pkg.ErrorCode(err)
	msg := err.Error()
	if code == pkg.CodeInternal {
		msg = pkg.ErrInternal.Error()
	}
	c.Send(Event{
		Op:    OpError,
		Nonce: req.Nonce,
		Data:  ErrorData{Code: code, Message: msg, Op: req.Op},
	})
}

// enqueue never blocks. After Close it is a no-op.
func (c *Client) enqueue(data []byte) enqueueResult {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return enqueueClosed
	}
	select {
	case c.send <- data:
		return enqueueOK
	default:
		return enqueueFull
	}
}

// Close stops the session: the queue is closed so WritePump sends a close frame
// and exits, and the socket is closed so ReadPump unblocks and runs the disconnect
// path. Safe to call from any goroutine, any number of times.
func (c *Client) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	c.mu.Unlock()

	if c.conn != nil {
		// Give WritePump a moment to flush the close frame before the socket goes.
		time.AfterFunc(writeWait/10, func() { c.conn.Close() })
	}
}

// ReadPump reads frames until the connection fails or is closed, then runs the
// disconnect path exactly once. It blocks; run it on the HTTP handler goroutine.
func (c *Client) ReadPump() {
	defer func() {
		c.handler.HandleDisconnect(c)
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	// Frames between maxFrame and the hard cap are skipped and answered; past the
	// cap gorilla fails the read with 1009.
	c.conn.SetReadLimit(c.maxFrame * oversizeFactor)
	if err := c.refreshDeadline(); err != nil {
		return
	}
	c.conn.SetPongHandler(func(string) error { return c.refreshDeadline() })

	for {
		raw, err := c.readFrame()
		if errors.Is(err, errFrameTooLarge) {
			c.log.Debug().Int64("limit", c.maxFrame).Msg("oversized frame rejected")
			c.SendError(Inbound{}, fmt.Errorf("%w: frame exceeds %d bytes", pkg.ErrValidation, c.maxFrame))
			continue
		}
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Info().Err(err).Msg("connection lost")
			}
			return
		}

		var in Inbound
		if err := json.Unmarshal(raw, &in); err != nil {
			c.SendError(Inbound{}, pkg.ErrBadRequest)
			continue
		}

		if in.Op == OpHeartbeat {
			if err := c.refreshDeadline(); err != nil {
				return
			}
			c.Send(Event{Op: OpHeartbeatAck, Nonce: in.Nonce})
			continue
		}

		c.handler.HandleInbound(c, in)
	}
}

// readFrame returns the next message, or errFrameTooLarge when it is longer than
// maxFrame. The unread rest of an oversized message is discarded by the next
// NextReader call.
func (c *Client) readFrame() ([]byte, error) {
	_, r, err := c.conn.NextReader()
	if err != nil {
		return nil, err
	}
	raw, err := io.ReadAll(io.LimitReader(r, c.maxFrame+1))
	if err != nil {
		return nil, err
	}
	if int64(len(raw)) > c.maxFrame {
		return nil, errFrameTooLarge
	}
	return raw, nil
}

func (c *Client) refreshDeadline() error {
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.log.Warn().Err(err).Msg("failed to set read deadline")
		return err
	}
	return nil
}

// WritePump drains the send queue onto the socket and pings on idle. It exits when
// the queue is closed or a write fails.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				c.write(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.write(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) write(messageType int, data []byte) error {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.conn.WriteMessage(messageType, data)
}
