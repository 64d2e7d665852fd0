package game

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

type HQView struct {
	Location     LocationRef `json:"location"`
	Tier         int         `json:"tier"`
	BuildingTier int         `json:"building_tier,omitempty"`
	CompletesAt  *time.Time  `json:"completes_at,omitempty"`
	Buffs        Buffs       `json:"buffs"`
}

type ConstructionResult struct {
	Completed int `json:"completed"`
}

func (s *Service) hqTx(ctx context.Context, q querier, religionID int64) (HQView, error) {
	var out HQView
	var locID int64
	var building *int
	err := q.QueryRow(ctx, `
		SELECT location_id, tier, building_tier, completes_at FROM realm.religion_hqs WHERE religion_id = $1
	`, religionID).Scan(&locID, &out.Tier, &building, &out.CompletesAt)
	if err == pgx.ErrNoRows {
		return out, fmt.Errorf("%w: headquarters", ErrNotFound)
	}
	if err != nil {
		return out, err
	}
	if building != nil {
		out.BuildingTier = *building
	}
	out.Buffs = HQBuffs(s.rules, out.Tier)
	out.Location, err = locationRefTx(ctx, q, locID)
	return out, err
}

// prophetTx locks the religion led by playerID.
func prophetTx(ctx context.Context, tx pgx.Tx, playerID int64) (int64, int64, error) {
	var id, treasury int64
	err := tx.QueryRow(ctx, `
		SELECT id, treasury FROM realm.religions WHERE founder_id = $1 FOR UPDATE
	`, playerID).Scan(&id, &treasury)
	if err == pgx.ErrNoRows {
		return 0, 0, fmt.Errorf("%w: only a prophet can do that", ErrForbidden)
	}
	return id, treasury, err
}

func spendTreasuryTx(ctx context.Context, tx pgx.Tx, religionID, treasury, cost int64) error {
	if treasury < cost {
		return fmt.Errorf("%w: the treasury holds %d, construction costs %d", ErrInsufficientGold, treasury, cost)
	}
	_, err := tx.Exec(ctx, `UPDATE realm.religions SET treasury = treasury - $2 WHERE id = $1`, religionID, cost)
	return err
}

// BuildHQ starts construction of a tier 1 headquarters where the prophet
// stands.
func (s *Service) BuildHQ(ctx context.Context, playerID int64) (HQView, error) {
	var religionID int64
	err := s.inTx(ctx, pgx.ReadCommitted, func(tx pgx.Tx) error {
		p, err := lockPlayerTx(ctx, tx, playerID)
		if err != nil {
			return err
		}
		id, treasury, err := prophetTx(ctx, tx, playerID)
		if err != nil {
			return err
		}
		religionID = id
		loc, err := requireSettlementTx(ctx, tx, p.LocationID)
		if err != nil {
			return err
		}
		tier, _ := s.rules.HQTier(1)
		if err := spendTreasuryTx(ctx, tx, id, treasury, tier.Cost); err != nil {
			return err
		}
		done := s.now().Add(time.Duration(tier.BuildWeeks) * s.week)
		_, err = tx.Exec(ctx, `
			INSERT INTO realm.religion_hqs (religion_id, location_id, tier, building_tier, completes_at)
			VALUES ($1, $2, 0, 1, $3)
		`, id, loc.ID, done)
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: headquarters already built", ErrConflict)
		}
		return err
	})
	if err != nil {
		return HQView{}, err
	}
	return s.hqTx(ctx, s.db, religionID)
}

func (s *Service) UpgradeHQ(ctx context.Context, playerID int64) (HQView, error) {
	var religionID int64
	err := s.inTx(ctx, pgx.ReadCommitted, func(tx pgx.Tx) error {
		id, treasury, err := prophetTx(ctx, tx, playerID)
		if err != nil {
			return err
		}
		religionID = id
		var current int
		var building *int
		err = tx.QueryRow(ctx, `
			SELECT tier, building_tier FROM realm.religion_hqs WHERE religion_id = $1 FOR UPDATE
		`, id).Scan(&current, &building)
		if err == pgx.ErrNoRows {
			return fmt.Errorf("%w: build headquarters first", ErrNotFound)
		}
		if err != nil {
			return err
		}
		if building != nil {
			return fmt.Errorf("%w: construction already under way", ErrConflict)
		}
		next, ok := s.rules.HQTier(current + 1)
		if !ok {
			return fmt.Errorf("%w: headquarters are at the highest tier", ErrInvalidInput)
		}
		if err := spendTreasuryTx(ctx, tx, id, treasury, next.Cost); err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `
			UPDATE realm.religion_hqs SET building_tier = $2, completes_at = $3 WHERE religion_id = $1
		`, id, next.Tier, s.now().Add(time.Duration(next.BuildWeeks)*s.week))
		return err
	})
	if err != nil {
		return HQView{}, err
	}
	return s.hqTx(ctx, s.db, religionID)
}

// CompleteConstruction finishes every HQ whose construction time is up.
func (s *Service) CompleteConstruction(ctx context.Context) (ConstructionResult, error) {
	var res ConstructionResult
	err := s.inTx(ctx, pgx.ReadCommitted, func(tx pgx.Tx) error {
		res = ConstructionResult{}
		rows, err := tx.Query(ctx, `
			UPDATE realm.religion_hqs q
			SET tier = q.building_tier, building_tier = NULL, completes_at = NULL
			FROM realm.religions r
			WHERE r.id = q.religion_id AND q.building_tier IS NOT NULL AND q.completes_at <= $1
			RETURNING r.name, q.location_id, q.tier
		`, s.now())
		if err != nil {
			return err
		}
		type done struct {
			name  string
			locID int64
			tier  int
		}
		var finished []done
		for rows.Next() {
			var d done
			if err := rows.Scan(&d.name, &d.locID, &d.tier); err != nil {
				rows.Close()
				return err
			}
			finished = append(finished, d)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}
		for _, d := range finished {
			if err := publishEvent(ctx, tx, "religion.hq_completed", d.locID, map[string]any{"religion": d.name, "tier": d.tier}); err != nil {
				return err
			}
		}
		res.Completed = len(finished)
		return nil
	})
	if err != nil {
		return res, err
	}
	if res.Completed > 0 {
		s.log.Info("hq construction completed", "count", res.Completed)
	}
	return res, nil
}
