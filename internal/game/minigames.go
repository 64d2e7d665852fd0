package game

import (
	"context"
	"fmt"
	"math"

	"github.com/jackc/pgx/v5"

	"hearthrealm/internal/rules"
)

const jobDistributeRewards = "distribute_rewards"

type DiceInput struct {
	PlayerID       int64
	Stake          int64
	IdempotencyKey string
}

type DiceOutcome struct {
	DieOne int    `json:"die_one"`
	DieTwo int    `json:"die_two"`
	Result string `json:"result"`
	Payout int64  `json:"payout"`
	Rake   int64  `json:"rake"`
	Net    int64  `json:"net"`
	Gold   int64  `json:"gold,omitempty"`
	Period string `json:"period"`
}

type RewardReport struct {
	Period  string        `json:"period"`
	Winners []RewardEntry `json:"winners"`
	Paid    int64         `json:"paid"`
}

type RewardEntry struct {
	LocationID int64  `json:"location_id"`
	Player     string `json:"player"`
	Place      int    `json:"place"`
	Net        int64  `json:"net"`
	Reward     int64  `json:"reward"`
}

// ScoreDice settles a roll of two dice. Doubles pay the multiplier less the
// rake, a plain seven returns the stake, anything else loses it.
func ScoreDice(d rules.DiceRules, stake int64, one, two int) DiceOutcome {
	out := DiceOutcome{DieOne: one, DieTwo: two}
	switch {
	case one == two:
		gross := float64(stake) * d.DoublesMultiplier
		out.Result = "doubles"
		out.Rake = int64(math.Floor(gross * d.Rake))
		out.Payout = int64(math.Floor(gross)) - out.Rake
	case one+two == 7:
		out.Result = "push"
		out.Payout = stake
	default:
		out.Result = "lose"
		out.Rake = int64(math.Floor(float64(stake) * d.Rake))
	}
	out.Net = out.Payout - stake
	return out
}

func (s *Service) RollDice(ctx context.Context, in DiceInput) (DiceOutcome, error) {
	var out DiceOutcome
	d := s.rules.Dice
	if in.Stake < d.MinStake || in.Stake > d.MaxStake {
		return out, fieldError("stake", fmt.Sprintf("must be between %d and %d", d.MinStake, d.MaxStake))
	}
	err := s.inTx(ctx, pgx.ReadCommitted, func(tx pgx.Tx) error {
		if err := claimIdempotency(ctx, tx, in.PlayerID, in.IdempotencyKey, "dice"); err != nil {
			return err
		}
		p, err := lockPlayerTx(ctx, tx, in.PlayerID)
		if err != nil {
			return err
		}
		loc, err := requireSettlementTx(ctx, tx, p.LocationID)
		if err != nil {
			return err
		}
		if p.Gold < in.Stake {
			return fmt.Errorf("%w: need %d, have %d", ErrInsufficientGold, in.Stake, p.Gold)
		}
		cal, _, err := loadCalendarTx(ctx, tx, false)
		if err != nil {
			return err
		}
		out = ScoreDice(d, in.Stake, s.rng.Intn(6)+1, s.rng.Intn(6)+1)
		out.Period = cal.PeriodKey()
		if err := adjustGoldTx(ctx, tx, &p, out.Net, fmt.Sprintf("dice:%d", loc.ID), "dice"); err != nil {
			return err
		}
		if err := addTreasuryTx(ctx, tx, loc.ID, out.Rake); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO realm.dice_games (player_id, location_id, period_key, stake, die_one, die_two, payout, rake)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, p.ID, loc.ID, out.Period, in.Stake, out.DieOne, out.DieTwo, out.Payout, out.Rake); err != nil {
			return err
		}
		out.Gold = p.Gold
		return nil
	})
	return out, err
}

// DistributeRewards pays the top net dice winners of period at each
// settlement. It runs once per period.
func (s *Service) DistributeRewards(ctx context.Context, period string) (RewardReport, error) {
	var rep RewardReport
	err := s.inTx(ctx, pgx.ReadCommitted, func(tx pgx.Tx) error {
		var err error
		rep, err = s.distributeRewardsTx(ctx, tx, period)
		return err
	})
	if err != nil {
		return rep, err
	}
	s.log.Info("rewards distributed", "period", period, "winners", len(rep.Winners), "paid", rep.Paid)
	return rep, nil
}

func (s *Service) distributeRewardsTx(ctx context.Context, tx pgx.Tx, period string) (RewardReport, error) {
	rep := RewardReport{Period: period, Winners: []RewardEntry{}}
	if err := claimJobRun(ctx, tx, jobDistributeRewards, period, rep); err != nil {
		return rep, err
	}
	rows, err := tx.Query(ctx, `
		WITH totals AS (
			SELECT location_id, player_id, SUM(payout - stake)::bigint AS net, MIN(id) AS first_game
			FROM realm.dice_games
			WHERE period_key = $1
			GROUP BY location_id, player_id
			HAVING SUM(payout - stake) > 0
		),
		ranked AS (
			SELECT location_id, player_id, net,
			       ROW_NUMBER() OVER (PARTITION BY location_id ORDER BY net DESC, first_game) AS place
			FROM totals
		)
		SELECT r.location_id, r.player_id, p.username, r.net, r.place
		FROM ranked r JOIN realm.players p ON p.id = r.player_id
		WHERE r.place <= $2
		ORDER BY r.location_id, r.place
	`, period, len(s.rules.Rewards))
	if err != nil {
		return rep, err
	}
	type winner struct {
		entry    RewardEntry
		playerID int64
	}
	var winners []winner
	for rows.Next() {
		var w winner
		if err := rows.Scan(&w.entry.LocationID, &w.playerID, &w.entry.Player, &w.entry.Net, &w.entry.Place); err != nil {
			rows.Close()
			return rep, err
		}
		w.entry.Reward = s.rules.Rewards[w.entry.Place-1]
		winners = append(winners, w)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return rep, err
	}
	for _, w := range winners {
		p, err := lockPlayerTx(ctx, tx, w.playerID)
		if err != nil {
			return rep, err
		}
		if err := adjustGoldTx(ctx, tx, &p, w.entry.Reward, "rewards:"+period, "dice_reward"); err != nil {
			return rep, err
		}
		rep.Winners = append(rep.Winners, w.entry)
		rep.Paid += w.entry.Reward
	}
	if err := updateJobSummary(ctx, tx, jobDistributeRewards, period, rep); err != nil {
		return rep, err
	}
	if len(rep.Winners) > 0 {
		if err := publishEvent(ctx, tx, "minigame.rewards", 0, rep); err != nil {
			return rep, err
		}
	}
	return rep, nil
}
