package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"hearthrealm/internal/chronicle"
	"hearthrealm/internal/config"
	"hearthrealm/internal/db"
	"hearthrealm/internal/game"
	"hearthrealm/internal/rules"
	"hearthrealm/internal/worker"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadWorkerFromEnv()
	if err != nil {
		slog.Error("load config", "err", err)
		os.Exit(1)
	}

	logger := config.NewLogger(cfg.LogLevel)
	pool, err := db.Connect(ctx, cfg.DatabaseURL, "realm-worker")
	if err != nil {
		logger.Error("db connect failed", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	if _, err := db.Migrate(ctx, pool); err != nil {
		logger.Error("migrate failed", "err", err)
		os.Exit(1)
	}

	var ruleset *rules.Rules
	if cfg.RulesPath == "" {
		ruleset, err = rules.Default()
	} else {
		ruleset, err = rules.Load(cfg.RulesPath)
	}
	if err != nil {
		logger.Error("load rules failed", "err", err)
		os.Exit(1)
	}

	svc := game.NewService(pool, ruleset, logger)
	svc.SetWeekLength(cfg.WorldTickEvery)
	if err := svc.Seed(ctx); err != nil {
		logger.Error("seed failed", "err", err)
		os.Exit(1)
	}

	archive := chronicle.NewWriter(cfg.ChronicleDir, "ticks")
	defer archive.Close()

	announcer, err := chronicle.NewAnnouncer(cfg.DiscordToken, cfg.DiscordChannel)
	if err != nil {
		logger.Error("discord setup failed", "err", err)
		os.Exit(1)
	}
	defer announcer.Close()

	runner := worker.New(svc, worker.Config{
		TickEvery:  cfg.WorldTickEvery,
		PollEvery:  cfg.ActionPollEvery,
		RegenEvery: cfg.RegenEvery,
	}, logger).WithArchive(archive)
	if announcer != nil {
		runner.WithAnnouncer(announcer)
	}

	if cfg.RunOnce {
		if err := runner.RunOnce(ctx); err != nil {
			logger.Error("run once failed", "err", err)
			os.Exit(1)
		}
		logger.Info("worker run-once completed")
		return
	}

	wake, err := db.Listen(ctx, cfg.DatabaseURL, logger, db.ChannelActionQueue)
	if err != nil {
		logger.Error("listen failed", "err", err)
		os.Exit(1)
	}
	if err := runner.Run(ctx, wake); err != nil {
		logger.Error("worker stopped", "err", err)
		os.Exit(1)
	}
}
