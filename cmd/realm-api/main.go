package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"hearthrealm/internal/api"
	"hearthrealm/internal/auth"
	"hearthrealm/internal/config"
	"hearthrealm/internal/db"
	"hearthrealm/internal/events"
	"hearthrealm/internal/game"
	"hearthrealm/internal/rules"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadAPIFromEnv()
	if err != nil {
		slog.Error("load config", "err", err)
		os.Exit(1)
	}

	logger := config.NewLogger(cfg.LogLevel)
	pool, err := db.Connect(ctx, cfg.DatabaseURL, "realm-api")
	if err != nil {
		logger.Error("db connect failed", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	applied, err := db.Migrate(ctx, pool)
	if err != nil {
		logger.Error("migrate failed", "err", err)
		os.Exit(1)
	}
	if len(applied) > 0 {
		logger.Info("migrations applied", "names", applied)
	}

	ruleset, err := loadRules(cfg.RulesPath)
	if err != nil {
		logger.Error("load rules failed", "err", err)
		os.Exit(1)
	}
	gameSvc := game.NewService(pool, ruleset, logger)
	gameSvc.SetWeekLength(cfg.WorldTickEvery)
	if err := gameSvc.Seed(ctx); err != nil {
		logger.Error("seed failed", "err", err)
		os.Exit(1)
	}

	hub := events.NewHub(logger)
	notes, err := db.Listen(ctx, cfg.DatabaseURL, logger, db.ChannelEvents)
	if err != nil {
		logger.Error("listen failed", "err", err)
		os.Exit(1)
	}
	go hub.Run(ctx, notes)

	tokens := auth.NewTokens(cfg.JWTSecret, cfg.TokenTTL)
	server := api.New(cfg, logger, tokens, gameSvc, hub)
	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	logger.Info("realm api listening", "addr", cfg.Addr)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server failed", "err", err)
		os.Exit(1)
	}
}

func loadRules(path string) (*rules.Rules, error) {
	if path == "" {
		return rules.Default()
	}
	return rules.Load(path)
}
