package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tesloshop/relay/internal/auth"
	"github.com/tesloshop/relay/internal/config"
	"github.com/tesloshop/relay/internal/directory"
	"github.com/tesloshop/relay/internal/hub"
	"github.com/tesloshop/relay/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config error", "error", err)
		os.Exit(1)
	}
	setupLogging(cfg.Log.Level)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := directory.OpenDB(cfg.Store.Path)
	if err != nil {
		slog.Error("store open error", "path", cfg.Store.Path, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	store, err := directory.NewStore(db)
	if err != nil {
		slog.Error("store init error", "error", err)
		os.Exit(1)
	}

	verifier := auth.NewJWTVerifier(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.Expiration)

	h := hub.NewHub()
	go h.Run(ctx)

	s := server.New(ctx, h, verifier, store, cfg.Handshake.Timeout, hub.Options{
		SendBuffer:   cfg.Socket.SendBuffer,
		WriteTimeout: cfg.Socket.WriteTimeout,
		PingInterval: cfg.Socket.PingInterval,
		MessageRate:  cfg.Socket.MessageRate,
		MessageBurst: cfg.Socket.MessageBurst,
	})

	srv := &http.Server{
		Addr:    cfg.App.Addr,
		Handler: s.Router(),
	}

	// Start server in a goroutine so we can listen for shutdown signals.
	go func() {
		slog.Info("relay starting", "addr", cfg.App.Addr, "env", cfg.App.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal.
	<-ctx.Done()
	slog.Info("shutting down relay")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
	slog.Info("relay stopped")
}

func setupLogging(level string) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})))
}
