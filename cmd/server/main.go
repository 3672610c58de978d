// Club membership backend server.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

	"github.com/sdmedia/clubbot/internal/api"
	"github.com/sdmedia/clubbot/internal/approval"
	"github.com/sdmedia/clubbot/internal/bot"
	"github.com/sdmedia/clubbot/internal/config"
	"github.com/sdmedia/clubbot/internal/gateway"
	"github.com/sdmedia/clubbot/internal/intent"
	"github.com/sdmedia/clubbot/internal/middleware"
	"github.com/sdmedia/clubbot/internal/store"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting server", "port", cfg.Port, "operators", len(cfg.OperatorIDs), "subscription_days", cfg.SubscriptionDays)

	// Initialize dependencies.
	repo, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()

	if err := repo.Ping(context.Background()); err != nil {
		slog.Error("Database health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database connected")

	// Wire the engine. The gateway doubles as the outbound transport
	// sender; the dispatcher is plugged into it afterwards since each is
	// one half of the event loop.
	gw := gateway.NewHandler(nil, cfg.GatewayToken)
	approvals := approval.New(repo, gw, cfg, nil)
	machine := intent.NewMachine(repo, approvals, gw, cfg.OperatorChatID)
	dispatcher := bot.NewDispatcher(cfg, repo, machine, approvals, gw, nil)
	gw.SetDispatcher(dispatcher)

	healthHandler := api.NewHealthHandler(repo)
	memberHandler := api.NewMemberHandler(repo, nil)

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)

	// Public routes.
	healthHandler.RegisterHealth(r)

	// Transport gateway.
	r.Get("/gateway/ws", gw.ServeHTTP)

	// Admin API behind bearer auth.
	r.Group(func(r chi.Router) {
		r.Use(middleware.BearerAuth(cfg.AdminToken))
		memberHandler.RegisterRoutes(r)
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // websocket gateway connections are long-lived
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Start server.
	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal.
	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server stopped successfully")
}
