// Package main is the entry point of the gatherly chat server.
//
// main only wires things together; there are no package-level globals:
//  1. Config
//  2. Logger
//  3. Database (embedded migrations)
//  4. Repositories
//  5. WebSocket hub
//  6. Rate limiters and services
//  7. Handlers and routes
//  8. HTTP server and graceful shutdown
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/akinalp/gatherly/config"
	"github.com/akinalp/gatherly/database"
	"github.com/akinalp/gatherly/pkg/logger"
	"github.com/akinalp/gatherly/ws"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "gatherly: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// ─── 1. Config ───
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// ─── 2. Logger ───
	root := logger.New(cfg.Server.Env, cfg.Server.LogLevel)
	log := logger.Component(root, "main")
	log.Info().Str("addr", cfg.Server.Addr()).Str("env", cfg.Server.Env).Msg("gatherly server starting")

	// ─── 3. Database ───
	db, err := database.New(cfg.Database.Path, database.Migrations(), logger.Component(root, "database"))
	if err != nil {
		return fmt.Errorf("init database: %w", err)
	}
	defer db.Close()

	// ─── 4. Repositories ───
	repos := initRepositories(db.Conn)

	// ─── 5. WebSocket hub ───
	hub := ws.NewHub(logger.Component(root, "hub"))

	// ─── 6. Services ───
	limiters := initRateLimiters(cfg, root)
	defer limiters.Connect.Close()
	defer limiters.Message.Close()

	svcs := initServices(repos, hub, limiters, cfg, root)
	defer svcs.Members.Close()
	defer svcs.Typing.Close()

	// ─── 7. Handlers + routes ───
	h := initHandlers(svcs, limiters, hub, db.Conn, cfg, root)
	router := initRoutes(h, svcs.Auth, cfg, logger.Component(root, "http"))

	// ─── 8. HTTP server ───
	// No WriteTimeout: it would cut long-lived WebSocket connections; the write
	// pump sets its own per-frame deadline.
	srv := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")

	// Close sessions first so clients see the close frame, then stop accepting
	// requests and wait up to 5s for in-flight ones.
	svcs.Typing.Close()
	hub.Shutdown()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("forced shutdown: %w", err)
	}

	log.Info().Msg("server stopped gracefully")
	return nil
}
