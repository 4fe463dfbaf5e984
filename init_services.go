// Package main: service layer construction.
//
// Order matters: the typing tracker needs the hub and must exist before the
// message service, which clears a sender's typing spell; the session service
// comes last.
package main

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/akinalp/gatherly/config"
	"github.com/akinalp/gatherly/pkg/logger"
	"github.com/akinalp/gatherly/pkg/ratelimit"
	"github.com/akinalp/gatherly/services"
	"github.com/akinalp/gatherly/ws"
)

// Services holds every service instance.
type Services struct {
	Auth      services.AuthService
	Members   services.MembershipChecker
	Message   services.MessageService
	Pin       services.PinService
	ReadState services.ReadStateService
	Typing    *services.TypingTracker
	Session   *services.SessionService
}

// RateLimiters holds the limiters that need closing on shutdown.
type RateLimiters struct {
	Message ratelimit.Limiter
	Connect *ratelimit.ConnectRateLimiter
}

// initRateLimiters picks the Redis limiter when REDIS_URL is set so several
// instances share one budget per user; otherwise limits are per process. A Redis
// that does not answer at startup falls back to the in-memory limiter.
func initRateLimiters(cfg *config.Config, root zerolog.Logger) *RateLimiters {
	log := logger.Component(root, "ratelimit")
	chat := cfg.Chat

	limiters := &RateLimiters{
		Connect: ratelimit.NewConnectRateLimiter(chat.ConnectLimit, time.Minute),
	}

	if cfg.Redis.URL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		rl, err := ratelimit.NewRedisLimiter(ctx, cfg.Redis.URL, chat.RateLimitMessages, chat.RateLimitWindow, log)
		if err == nil {
			log.Info().Msg("using redis send limiter")
			limiters.Message = rl
			return limiters
		}
		log.Warn().Err(err).Msg("redis unavailable, falling back to in-memory send limiter")
	}

	limiters.Message = ratelimit.NewMessageRateLimiter(chat.RateLimitMessages, chat.RateLimitWindow, chat.RateLimitCooldown)
	return limiters
}

// initServices builds the service layer.
func initServices(repos *Repositories, hub *ws.Hub, limiters *RateLimiters, cfg *config.Config, root zerolog.Logger) *Services {
	chat := cfg.Chat

	authService := services.NewAuthService(cfg.JWT.Secret)
	members := services.NewMembershipChecker(repos.Membership, chat.MembershipCacheTTL)
	typing := services.NewTypingTracker(hub, chat.TypingTTL, logger.Component(root, "typing"))

	messageService := services.NewMessageService(
		repos.Message,
		members,
		limiters.Message,
		hub,
		typing,
		services.MessageLimits{
			MaxTextRunes:    chat.MaxTextLength,
			MaxImageURLLen:  chat.MaxImageURLLength,
			DefaultPageSize: chat.DefaultPageSize,
			MaxPageSize:     chat.MaxPageSize,
		},
		logger.Component(root, "message"),
	)

	pinService := services.NewPinService(repos.Message, repos.Pin, members, hub, logger.Component(root, "pin"))
	readStateService := services.NewReadStateService(repos.ReadState)

	sessionService := services.NewSessionService(
		hub,
		authService,
		members,
		messageService,
		pinService,
		readStateService,
		typing,
		logger.Component(root, "session"),
	)

	return &Services{
		Auth:      authService,
		Members:   members,
		Message:   messageService,
		Pin:       pinService,
		ReadState: readStateService,
		Typing:    typing,
		Session:   sessionService,
	}
}
