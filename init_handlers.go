// Package main: handler layer construction.
package main

import (
	"database/sql"

	"github.com/rs/zerolog"

	"github.com/akinalp/gatherly/config"
	"github.com/akinalp/gatherly/handlers"
	"github.com/akinalp/gatherly/pkg/logger"
	"github.com/akinalp/gatherly/ws"
)

// Handlers holds every handler instance.
type Handlers struct {
	Health    *handlers.HealthHandler
	Message   *handlers.MessageHandler
	Pin       *handlers.PinHandler
	ReadState *handlers.ReadStateHandler
	Member    *handlers.MemberHandler
	WS        *ws.Handler
}

// initHandlers builds the REST handlers and the WebSocket upgrade endpoint.
func initHandlers(svcs *Services, limiters *RateLimiters, hub *ws.Hub, db *sql.DB, cfg *config.Config, root zerolog.Logger) *Handlers {
	return &Handlers{
		Health:    handlers.NewHealthHandler(db, hub),
		Message:   handlers.NewMessageHandler(svcs.Message, cfg.Chat.FrameLimit()),
		Pin:       handlers.NewPinHandler(svcs.Pin),
		ReadState: handlers.NewReadStateHandler(svcs.ReadState, svcs.Members),
		Member:    handlers.NewMemberHandler(svcs.Members),
		WS: ws.NewHandler(hub, svcs.Session, svcs.Session, ws.HandlerOptions{
			AllowedOrigins: cfg.Server.AllowedOrigins,
			QueueSize:      cfg.Chat.SendQueueSize,
			ConnectLimiter: limiters.Connect,
			MaxFrameBytes:  cfg.Chat.FrameLimit(),
		}, logger.Component(root, "ws")),
	}
}
