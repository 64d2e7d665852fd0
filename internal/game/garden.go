package game

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

type HarvestResult struct {
	Crop    string  `json:"crop"`
	Item    string  `json:"item"`
	Qty     int64   `json:"quantity"`
	LevelUp LevelUp `json:"level_up"`
}

// Plant sows a crop in the first free plot of the player's garden rooms.
func (s *Service) Plant(ctx context.Context, playerID int64, crop string) (HouseView, error) {
	c, ok := s.rules.Crops[crop]
	if !ok {
		return HouseView{}, fieldError("crop", "unknown crop")
	}
	err := s.inTx(ctx, pgx.ReadCommitted, func(tx pgx.Tx) error {
		_, h, err := lockHomeTx(ctx, tx, playerID)
		if err != nil {
			return err
		}
		cal, _, err := loadCalendarTx(ctx, tx, false)
		if err != nil {
			return err
		}
		if !s.rules.Season(cal.Season).Plantable {
			return fmt.Errorf("%w: nothing grows in %s", ErrInvalidInput, cal.Season)
		}
		level, err := skillLevelTx(ctx, tx, playerID, "farming")
		if err != nil {
			return err
		}
		if level < c.Level {
			return fmt.Errorf("%w: %s needs farming level %d", ErrInvalidInput, crop, c.Level)
		}
		roomID, plot, err := s.freePlotTx(ctx, tx, h)
		if err != nil {
			return err
		}
		inv, err := s.loadInventoryTx(ctx, tx, playerID)
		if err != nil {
			return err
		}
		if err := inv.Remove(c.Seed, 1); err != nil {
			return err
		}
		if err := saveInventoryTx(ctx, tx, playerID, inv); err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO realm.garden_plots (room_id, plot, crop_key, planted_week) VALUES ($1, $2, $3, $4)
		`, roomID, plot, crop, cal.WeekIndex(s.rules))
		return err
	})
	if err != nil {
		return HouseView{}, err
	}
	return s.House(ctx, playerID)
}

func (s *Service) freePlotTx(ctx context.Context, tx pgx.Tx, h houseRow) (int64, int, error) {
	rows, err := tx.Query(ctx, `
		SELECT r.id, COALESCE(array_agg(g.plot) FILTER (WHERE g.id IS NOT NULL), '{}')
		FROM realm.house_rooms r
		LEFT JOIN realm.garden_plots g ON g.room_id = r.id
		WHERE r.house_id = $1 AND r.room_type = 'garden'
		GROUP BY r.id
		ORDER BY r.id
	`, h.ID)
	if err != nil {
		return 0, 0, err
	}
	defer rows.Close()
	plots := s.rules.Houses[h.Tier].GardenPlots
	gardens := 0
	for rows.Next() {
		var roomID int64
		var used []int32
		if err := rows.Scan(&roomID, &used); err != nil {
			return 0, 0, err
		}
		gardens++
		taken := make(map[int]bool, len(used))
		for _, u := range used {
			taken[int(u)] = true
		}
		for i := 1; i <= plots; i++ {
			if !taken[i] {
				return roomID, i, nil
			}
		}
	}
	if err := rows.Err(); err != nil {
		return 0, 0, err
	}
	if gardens == 0 {
		return 0, 0, fmt.Errorf("%w: build a garden room first", ErrInvalidInput)
	}
	return 0, 0, fmt.Errorf("%w: every garden plot is in use", ErrInvalidInput)
}

func (s *Service) Harvest(ctx context.Context, playerID, plotID int64) (HarvestResult, error) {
	var out HarvestResult
	err := s.inTx(ctx, pgx.ReadCommitted, func(tx pgx.Tx) error {
		_, h, err := lockHomeTx(ctx, tx, playerID)
		if err != nil {
			return err
		}
		var crop string
		var planted int
		err = tx.QueryRow(ctx, `
			SELECT g.crop_key, g.planted_week FROM realm.garden_plots g
			JOIN realm.house_rooms r ON r.id = g.room_id
			WHERE g.id = $1 AND r.house_id = $2
			FOR UPDATE OF g
		`, plotID, h.ID).Scan(&crop, &planted)
		if err == pgx.ErrNoRows {
			return fmt.Errorf("%w: plot", ErrNotFound)
		}
		if err != nil {
			return err
		}
		cal, _, err := loadCalendarTx(ctx, tx, false)
		if err != nil {
			return err
		}
		c := s.rules.Crops[crop]
		if !CropReady(c, planted, cal.WeekIndex(s.rules)) {
			return fmt.Errorf("%w: the %s is not ready yet", ErrInvalidInput, crop)
		}
		inv, err := s.loadInventoryTx(ctx, tx, playerID)
		if err != nil {
			return err
		}
		if err := inv.Add(c.Yield, c.YieldQty); err != nil {
			return err
		}
		if err := saveInventoryTx(ctx, tx, playerID, inv); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM realm.garden_plots WHERE id = $1`, plotID); err != nil {
			return err
		}
		up, err := s.awardXPTx(ctx, tx, playerID, "farming", c.XP)
		if err != nil {
			return err
		}
		out = HarvestResult{Crop: crop, Item: c.Yield, Qty: c.YieldQty, LevelUp: up}
		return nil
	})
	return out, err
}
