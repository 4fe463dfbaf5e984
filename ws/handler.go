package ws

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/akinalp/gatherly/models"
	"github.com/akinalp/gatherly/pkg"
	"github.com/akinalp/gatherly/pkg/metrics"
	"github.com/akinalp/gatherly/pkg/ratelimit"
)

// Authenticator turns the connection credential into an identity. It is declared
// here, not in services, to keep ws free of a services import.
type Authenticator interface {
	Authenticate(credential string) (*models.Identity, error)
}

// HandlerOptions configures the upgrade endpoint.
type HandlerOptions struct {
	AllowedOrigins []string
	QueueSize      int
	ConnectLimiter *ratelimit.ConnectRateLimiter // nil disables the per-IP limit

	// MaxFrameBytes caps one inbound frame. It must admit the largest valid
	// send after JSON escaping; config.ChatConfig.FrameLimit computes that.
	MaxFrameBytes int64
}

// Handler upgrades GET /ws to a session.
type Handler struct {
	hub      *Hub
	auth     Authenticator
	sessions SessionHandler
	opts     HandlerOptions
	upgrader websocket.Upgrader
	log      zerolog.Logger
}

// NewHandler wires the upgrade endpoint.
func NewHandler(hub *Hub, auth Authenticator, sessions SessionHandler, opts HandlerOptions, logger zerolog.Logger) *Handler {
	if opts.QueueSize <= 0 {
		opts.QueueSize = 256
	}
	if opts.MaxFrameBytes <= 0 {
		opts.MaxFrameBytes = defaultMaxFrameBytes
	}
	h := &Handler{
		hub:      hub,
		auth:     auth,
		sessions: sessions,
		opts:     opts,
		log:      logger,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

// HandleConnection authenticates and upgrades the request.
//
// Browsers cannot set headers on a WebSocket handshake, so the credential travels
// as ?token=; an Authorization: Bearer header is accepted too for non-browser
// clients. Authentication fails closed: nothing is upgraded without an identity.
func (h *Handler) HandleConnection(w http.ResponseWriter, r *http.Request) {
	if h.opts.ConnectLimiter != nil {
		ip := ratelimit.ExtractIP(r)
		if !h.opts.ConnectLimiter.Allow(ip) {
			metrics.RateLimitHits.WithLabelValues("connect").Inc()
			retry := h.opts.ConnectLimiter.RetryAfterSeconds(ip)
			w.Header().Set("Retry-After", strconv.Itoa(retry))
			pkg.ErrorWithMessage(w, http.StatusTooManyRequests, ratelimit.FormatRetryMessage(retry))
			return
		}
	}

	token := r.URL.Query().Get("token")
	if token == "" {
		token = strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	}
	if token == "" {
		pkg.Error(w, pkg.ErrUnauthorized)
		return
	}

	identity, err := h.auth.Authenticate(token)
	if err != nil {
		pkg.Error(w, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		h.log.Warn().Err(err).Str("user_id", identity.UserID).Msg("upgrade failed")
		return
	}

	client := newClient(h.hub, conn, *identity, h.sessions, h.opts.QueueSize, h.opts.MaxFrameBytes, h.log)
	if !h.hub.Register(client) {
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
		conn.Close()
		return
	}

	client.Send(Event{
		Op:   OpReady,
		Data: ReadyData{SessionID: client.id, User: *identity},
	})

	go client.WritePump()
	client.ReadPump()
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range h.opts.AllowedOrigins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	h.log.Warn().Str("origin", origin).Msg("origin rejected")
	return false
}
