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

	"github.com/comanda-app/comanda/internal/auth"
	"github.com/comanda-app/comanda/internal/config"
	"github.com/comanda-app/comanda/internal/fanout"
	"github.com/comanda-app/comanda/internal/server"
	"github.com/comanda-app/comanda/internal/service"
	"github.com/comanda-app/comanda/internal/storage/sqlite"
	"github.com/comanda-app/comanda/pkg/logging"
)

func main() {
	logging.Setup()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		slog.Error("Failed to open database", "error", err, "path", cfg.DBPath)
		os.Exit(1)
	}
	defer store.Close()
	slog.Info("Database ready", "path", cfg.DBPath)

	var transports []fanout.Transport
	if cfg.RedisAddr != "" {
		redisTransport := fanout.NewRedisTransport(cfg.RedisAddr)
		defer redisTransport.Close()
		transports = append(transports, redisTransport)
		slog.Info("Redis event transport enabled", "addr", cfg.RedisAddr)
	}
	broadcaster := fanout.NewBroadcaster(transports...)

	tokens := auth.NewJWTManager(cfg.JWTSecret, cfg.TokenTTL)
	authenticator := auth.NewStaffAuthenticator(store)

	authSvc := service.NewAuthService(authenticator, tokens)
	sessionSvc := service.NewSessionService(store, broadcaster)
	orderSvc := service.NewOrderService(store, broadcaster, tokens, cfg.PayLinkTTL)

	srv := server.New(tokens, broadcaster, authSvc, sessionSvc, orderSvc)

	httpServer := &http.Server{
		Addr:    cfg.Addr,
		Handler: srv.Handler(),
	}

	go func() {
		slog.Info("Server listening", "addr", cfg.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("Shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		slog.Error("Shutdown failed", "error", err)
	}
}
