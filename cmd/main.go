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

	"raaibar/backend/internal/api/handler"
	"raaibar/backend/internal/auth"
	"raaibar/backend/internal/chathub"
	"raaibar/backend/internal/config"
	"raaibar/backend/internal/friends"
	"raaibar/backend/internal/localization"
	"raaibar/backend/internal/messaging"
	"raaibar/backend/internal/storage"

	"github.com/gin-gonic/gin"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(log)
	log.Info("starting Raaibar backend", "addr", cfg.Addr)

	if err := run(cfg, log); err != nil {
		log.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 1. Stores
	stores, err := storage.Open(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := stores.Close(); err != nil {
			log.Error("failed to close stores", "error", err)
		}
	}()

	// 2. Hub and services
	hub := chathub.NewRouter(log)
	friendsSvc := friends.NewService(stores.Graph, hub, log)

	opts := []messaging.Option{messaging.WithSenderEcho(cfg.EchoToSender)}
	if cfg.RequireFriends {
		opts = append(opts, messaging.WithGate(friendsSvc))
	}
	messages := messaging.NewService(stores.Conversations, hub, log, opts...)

	localizer, err := localization.Default()
	if err != nil {
		return err
	}
	issuer := auth.NewIssuer(cfg.JWTSecret, cfg.TokenTTL)

	// 3. Gin
	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	h := handler.NewHandler(hub, messages, friendsSvc, issuer, localizer, cfg.DefaultLanguage, log)

	server := &http.Server{
		Addr:           cfg.Addr,
		Handler:        handler.NewRouter(h, log),
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("http server listening", "addr", cfg.Addr)
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Shutdown does not track hijacked websocket connections.
	hub.CloseAll()
	return server.Shutdown(shutdownCtx)
}
