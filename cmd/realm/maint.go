package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"hearthrealm/internal/config"
	"hearthrealm/internal/db"
	"hearthrealm/internal/game"
	"hearthrealm/internal/rules"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
)

// maintEnv is the direct database access the maint commands share.
type maintEnv struct {
	cfg  config.MaintConfig
	pool *pgxpool.Pool
	svc  *game.Service
}

func openMaint(ctx context.Context) (*maintEnv, error) {
	cfg, err := config.LoadMaintFromEnv()
	if err != nil {
		return nil, err
	}
	pool, err := db.Connect(ctx, cfg.DatabaseURL, "realm-maint")
	if err != nil {
		return nil, err
	}
	var ruleset *rules.Rules
	if cfg.RulesPath == "" {
		ruleset, err = rules.Default()
	} else {
		ruleset, err = rules.Load(cfg.RulesPath)
	}
	if err != nil {
		pool.Close()
		return nil, err
	}
	svc := game.NewService(pool, ruleset, config.NewLogger(cfg.LogLevel))
	svc.SetWeekLength(cfg.WorldTickEvery)
	return &maintEnv{cfg: cfg, pool: pool, svc: svc}, nil
}

func (m *maintEnv) Close() {
	m.pool.Close()
}

func newMaintCmd() *cobra.Command {
	maint := &cobra.Command{
		Use:   "maint",
		Short: "Operator commands run directly against the database",
	}
	maint.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations and seed the world",
		RunE: withMaint(func(ctx context.Context, m *maintEnv, _ []string) (any, error) {
			applied, err := db.Migrate(ctx, m.pool)
			if err != nil {
				return nil, err
			}
			if err := m.svc.Seed(ctx); err != nil {
				return nil, err
			}
			return map[string]any{"applied": applied}, nil
		}),
	})
	var force bool
	tick := &cobra.Command{
		Use:   "world-tick",
		Short: "Advance the world one week now",
		RunE: withMaint(func(ctx context.Context, m *maintEnv, _ []string) (any, error) {
			minGap := m.cfg.WorldTickEvery * 9 / 10
			if force {
				minGap = 0
			}
			return m.svc.RunWorldTick(ctx, minGap)
		}),
	}
	tick.Flags().BoolVar(&force, "force", false, "ignore the minimum gap since the last tick")
	maint.AddCommand(tick)
	maint.AddCommand(&cobra.Command{
		Use:   "complete-construction",
		Short: "Finish headquarters whose build time is up",
		RunE: withMaint(func(ctx context.Context, m *maintEnv, _ []string) (any, error) {
			return m.svc.CompleteConstruction(ctx)
		}),
	})
	maint.AddCommand(&cobra.Command{
		Use:   "distribute-rewards [period]",
		Short: "Pay dice rewards for a week (default: the week before the current one)",
		Args:  cobra.MaximumNArgs(1),
		RunE: withMaint(func(ctx context.Context, m *maintEnv, args []string) (any, error) {
			period, err := periodArg(ctx, m, args)
			if err != nil {
				return nil, err
			}
			return m.svc.DistributeRewards(ctx, period)
		}),
	})
	maint.AddCommand(&cobra.Command{
		Use:   "collect-taxes [period]",
		Short: "Collect income tax for a week (default: the week before the current one)",
		Args:  cobra.MaximumNArgs(1),
		RunE: withMaint(func(ctx context.Context, m *maintEnv, args []string) (any, error) {
			period, err := periodArg(ctx, m, args)
			if err != nil {
				return nil, err
			}
			return m.svc.CollectTaxes(ctx, period)
		}),
	})
	return maint
}

func withMaint(fn func(ctx context.Context, m *maintEnv, args []string) (any, error)) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		m, err := openMaint(ctx)
		if err != nil {
			return err
		}
		defer m.Close()
		out, err := fn(ctx, m, args)
		if game.IsAlreadyRan(err) {
			printWarn(err.Error())
			return nil
		}
		if err != nil {
			return err
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}
}

// periodArg defaults to the week that closed most recently.
func periodArg(ctx context.Context, m *maintEnv, args []string) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}
	cal, err := m.svc.Calendar(ctx)
	if err != nil {
		return "", err
	}
	prev, ok := cal.Prev(m.svc.Rules())
	if !ok {
		return "", fmt.Errorf("no week has closed yet")
	}
	return prev.PeriodKey(), nil
}
