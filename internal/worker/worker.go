// Package worker drives the background side of the realm: due action
// queues, vitals regeneration and the weekly world tick.
package worker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"hearthrealm/internal/db"
	"hearthrealm/internal/game"
)

// Game is the part of game.Service the worker drives.
type Game interface {
	ProcessQueues(ctx context.Context) (game.ProcessReport, error)
	RegenerateVitals(ctx context.Context) (int64, error)
	RunWorldTick(ctx context.Context, minGap time.Duration) (game.TickReport, error)
	CompleteConstruction(ctx context.Context) (game.ConstructionResult, error)
	DistributeRewards(ctx context.Context, period string) (game.RewardReport, error)
}

// Archive stores tick reports.
type Archive interface {
	Write(v any) error
}

// Announcer posts a tick summary somewhere players read it.
type Announcer interface {
	Announce(rep game.TickReport) error
}

type Config struct {
	TickEvery  time.Duration
	PollEvery  time.Duration
	RegenEvery time.Duration
}

type Runner struct {
	game      Game
	log       *slog.Logger
	cfg       Config
	archive   Archive
	announcer Announcer
}

func New(g Game, cfg Config, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{game: g, cfg: cfg, log: logger}
}

// WithArchive sets where tick reports are chronicled.
func (r *Runner) WithArchive(a Archive) *Runner {
	r.archive = a
	return r
}

// WithAnnouncer sets an announcer for tick summaries. A nil announcer is
// ignored.
func (r *Runner) WithAnnouncer(a Announcer) *Runner {
	r.announcer = a
	return r
}

// minGap keeps two workers, or a restart right after a tick, from running
// the same week twice.
func (r *Runner) minGap() time.Duration {
	return r.cfg.TickEvery * 9 / 10
}

// RunOnce runs a single pass of every job.
func (r *Runner) RunOnce(ctx context.Context) error {
	if _, err := r.drainQueues(ctx); err != nil {
		return err
	}
	if _, err := r.game.RegenerateVitals(ctx); err != nil {
		return err
	}
	_, err := r.worldTick(ctx)
	return err
}

// Run loops until ctx is cancelled. wake carries NOTIFY traffic from the
// action queue channel; it may be nil, in which case the poll interval
// alone drives queue processing.
func (r *Runner) Run(ctx context.Context, wake <-chan db.Notification) error {
	poll := time.NewTicker(r.cfg.PollEvery)
	defer poll.Stop()
	regen := time.NewTicker(r.cfg.RegenEvery)
	defer regen.Stop()
	tick := time.NewTicker(r.cfg.TickEvery)
	defer tick.Stop()

	r.log.Info("worker started",
		"tick_every", r.cfg.TickEvery.String(),
		"poll_every", r.cfg.PollEvery.String(),
		"regen_every", r.cfg.RegenEvery.String(),
	)
	r.runTick(ctx)
	for {
		select {
		case <-ctx.Done():
			r.log.Info("worker shutdown")
			return nil
		case n, ok := <-wake:
			if !ok {
				wake = nil
				continue
			}
			if n.Channel != "" && n.Channel != db.ChannelActionQueue {
				continue
			}
			r.runQueues(ctx)
		case <-poll.C:
			r.runQueues(ctx)
		case <-regen.C:
			n, err := r.game.RegenerateVitals(ctx)
			if err != nil {
				r.log.Error("vitals regen failed", "err", err)
				continue
			}
			r.log.Debug("vitals regenerated", "players", n)
		case <-tick.C:
			r.runTick(ctx)
		}
	}
}

func (r *Runner) runQueues(ctx context.Context) {
	if _, err := r.drainQueues(ctx); err != nil && ctx.Err() == nil {
		r.log.Error("action queue processing failed", "err", err)
	}
}

func (r *Runner) runTick(ctx context.Context) {
	if _, err := r.worldTick(ctx); err != nil && ctx.Err() == nil {
		r.log.Error("world tick failed", "err", err)
	}
}

// drainQueues keeps claiming batches until one comes back empty.
func (r *Runner) drainQueues(ctx context.Context) (game.ProcessReport, error) {
	var total game.ProcessReport
	for {
		rep, err := r.game.ProcessQueues(ctx)
		if err != nil {
			return total, err
		}
		total.Claimed += rep.Claimed
		total.Succeeded += rep.Succeeded
		total.Completed += rep.Completed
		total.Failed += rep.Failed
		if rep.Claimed == 0 || ctx.Err() != nil {
			return total, nil
		}
	}
}

// worldTick advances the world a week and runs the jobs that hang off it.
// A tick refused for cooldown is not an error; construction still
// completes on schedule.
func (r *Runner) worldTick(ctx context.Context) (*game.TickReport, error) {
	var out *game.TickReport
	rep, err := r.game.RunWorldTick(ctx, r.minGap())
	switch {
	case errors.Is(err, game.ErrCooldown), errors.Is(err, game.ErrAlreadyRan):
		r.log.Info("world tick skipped", "reason", err.Error())
	case err != nil:
		return nil, err
	default:
		out = &rep
		r.log.Info("world tick complete",
			"period", rep.Period,
			"season", rep.Calendar.Season,
			"settlements", len(rep.Settlements),
			"petitions_approved", rep.PetitionsApproved,
		)
	}

	built, err := r.game.CompleteConstruction(ctx)
	if err != nil {
		return out, err
	}
	if built.Completed > 0 {
		r.log.Info("construction completed", "count", built.Completed)
	}
	if out == nil {
		return nil, nil
	}

	rewards, err := r.game.DistributeRewards(ctx, out.ClosedPeriod)
	switch {
	case errors.Is(err, game.ErrAlreadyRan):
	case err != nil:
		return out, err
	default:
		r.log.Info("rewards distributed", "period", rewards.Period, "winners", len(rewards.Winners))
	}

	if r.archive != nil {
		if err := r.archive.Write(out); err != nil {
			r.log.Error("chronicle write failed", "err", err)
		}
	}
	if r.announcer != nil {
		if err := r.announcer.Announce(*out); err != nil {
			r.log.Warn("announce failed", "err", err)
		}
	}
	return out, nil
}
