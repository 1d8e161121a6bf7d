package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"waasp/internal/app"
	"waasp/internal/config"
	"waasp/pkg/logger"
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	a, err := app.New(rootCtx, cfg, log)
	if err != nil {
		log.Error("startup failed", "err", err)
		os.Exit(1)
	}
	defer a.Close()

	if err := a.Serve(rootCtx); err != nil {
		log.Error("server stopped", "err", err)
		os.Exit(1)
	}
	log.Info("shutdown complete")
}
