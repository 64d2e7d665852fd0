package game

import (
	"context"
	"fmt"
	"math"

	"github.com/jackc/pgx/v5"

	"hearthrealm/internal/rules"
)

type TravelInput struct {
	PlayerID    int64
	Destination string
}

type TravelResult struct {
	From       LocationRef `json:"from"`
	To         LocationRef `json:"to"`
	Distance   float64     `json:"distance"`
	EnergyCost int         `json:"energy_cost"`
	Energy     int         `json:"energy"`
}

func Distance(ax, ay, bx, by float64) float64 {
	return math.Hypot(ax-bx, ay-by)
}

// TravelCost is the energy needed to cover distance.
func TravelCost(r *rules.Rules, distance float64) int {
	return r.Travel.BaseEnergy + int(math.Ceil(distance*r.Travel.EnergyPerUnit))
}

func locationRefTx(ctx context.Context, q querier, id int64) (LocationRef, error) {
	var ref LocationRef
	err := q.QueryRow(ctx, `SELECT id, key, name, kind FROM realm.locations WHERE id = $1`, id).
		Scan(&ref.ID, &ref.Key, &ref.Name, &ref.Kind)
	if err == pgx.ErrNoRows {
		return ref, fmt.Errorf("%w: location", ErrNotFound)
	}
	return ref, err
}

func locationByKeyTx(ctx context.Context, q querier, key string) (LocationRef, float64, float64, error) {
	var ref LocationRef
	var x, y float64
	err := q.QueryRow(ctx, `SELECT id, key, name, kind, x, y FROM realm.locations WHERE key = $1`, key).
		Scan(&ref.ID, &ref.Key, &ref.Name, &ref.Kind, &x, &y)
	if err == pgx.ErrNoRows {
		return ref, 0, 0, fmt.Errorf("%w: location %q", ErrNotFound, key)
	}
	return ref, x, y, err
}

// Seed inserts the rule-defined locations, their starting population and
// stockpiles, and the world calendar. Existing rows are left alone.
func (s *Service) Seed(ctx context.Context) error {
	return s.inTx(ctx, pgx.ReadCommitted, func(tx pgx.Tx) error {
		cal := FirstCalendar(s.rules)
		if _, err := tx.Exec(ctx, `
			INSERT INTO realm.world_state (id, year, season, week, day) VALUES (1, $1, $2, $3, $4)
			ON CONFLICT (id) DO NOTHING
		`, cal.Year, cal.Season, cal.Week, cal.Day); err != nil {
			return err
		}
		ids := make(map[string]int64, len(s.rules.Locations))
		inserted := 0
		for _, l := range s.rules.Locations {
			var parent any
			if l.Parent != "" {
				parent = ids[l.Parent]
			}
			var id int64
			err := tx.QueryRow(ctx, `
				INSERT INTO realm.locations (key, name, kind, parent_id, x, y, capacity, tax_rate)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
				ON CONFLICT (key) DO NOTHING
				RETURNING id
			`, l.Key, l.Name, l.Kind, parent, l.X, l.Y, l.Capacity, l.TaxRate).Scan(&id)
			if err == pgx.ErrNoRows {
				if err := tx.QueryRow(ctx, `SELECT id FROM realm.locations WHERE key = $1`, l.Key).Scan(&id); err != nil {
					return err
				}
				ids[l.Key] = id
				continue
			}
			if err != nil {
				return err
			}
			ids[l.Key] = id
			inserted++
			if err := s.seedSettlementTx(ctx, tx, id, l, cal.Year); err != nil {
				return fmt.Errorf("seed %s: %w", l.Key, err)
			}
		}
		if inserted > 0 {
			if _, err := s.recomputePricesTx(ctx, tx); err != nil {
				return err
			}
			s.log.Info("world seeded", "locations", inserted)
		}
		return nil
	})
}

func (s *Service) seedSettlementTx(ctx context.Context, tx pgx.Tx, id int64, l rules.LocationSeed, year int) error {
	if !rules.IsSettlement(l.Kind) {
		return nil
	}
	for item, qty := range l.Stockpile {
		if _, err := tx.Exec(ctx, `
			INSERT INTO realm.location_stockpiles (location_id, item_key, quantity) VALUES ($1, $2, $3)
			ON CONFLICT (location_id, item_key) DO NOTHING
		`, id, item, qty); err != nil {
			return err
		}
	}
	npcs := SeedPopulation(s.rng, l.Population, year, s.rules.NPC.AdultAge)
	rows := make([][]any, 0, len(npcs))
	for _, n := range npcs {
		rows = append(rows, []any{id, n.Name, n.Gender, n.BirthYear})
	}
	_, err := tx.CopyFrom(ctx,
		pgx.Identifier{"realm", "location_npcs"},
		[]string{"location_id", "name", "gender", "birth_year"},
		pgx.CopyFromRows(rows),
	)
	return err
}

// Travel moves the player to another settlement within range.
func (s *Service) Travel(ctx context.Context, in TravelInput) (TravelResult, error) {
	var out TravelResult
	err := s.inTx(ctx, pgx.ReadCommitted, func(tx pgx.Tx) error {
		p, err := lockPlayerTx(ctx, tx, in.PlayerID)
		if err != nil {
			return err
		}
		dest, dx, dy, err := locationByKeyTx(ctx, tx, in.Destination)
		if err != nil {
			return err
		}
		if !rules.IsSettlement(dest.Kind) {
			return fieldError("destination", "must be a village or town")
		}
		if dest.ID == p.LocationID {
			return fieldError("destination", "you are already there")
		}
		if err := ensureIdleTx(ctx, tx, p.ID); err != nil {
			return err
		}
		var fx, fy float64
		if err := tx.QueryRow(ctx, `SELECT x, y FROM realm.locations WHERE id = $1`, p.LocationID).Scan(&fx, &fy); err != nil {
			return err
		}
		dist := Distance(fx, fy, dx, dy)
		if dist > s.rules.Travel.MaxDistance {
			return fmt.Errorf("%w: %s is %.1f away, the road only reaches %.0f", ErrInvalidInput, dest.Name, dist, s.rules.Travel.MaxDistance)
		}
		cost := TravelCost(s.rules, dist)
		if err := spendEnergyTx(ctx, tx, &p, cost); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `UPDATE realm.players SET location_id = $2, updated_at = now() WHERE id = $1`, p.ID, dest.ID); err != nil {
			return err
		}
		from, err := locationRefTx(ctx, tx, p.LocationID)
		if err != nil {
			return err
		}
		out = TravelResult{From: from, To: dest, Distance: math.Round(dist*10) / 10, EnergyCost: cost, Energy: p.Energy}
		return nil
	})
	return out, err
}

// ensureIdleTx rejects movement while the player is fighting or working.
func ensureIdleTx(ctx context.Context, q querier, playerID int64) error {
	var busy string
	err := q.QueryRow(ctx, `
		SELECT 'in combat' FROM realm.combat_sessions WHERE player_id = $1 AND status = 'active'
		UNION ALL
		SELECT 'busy with an action queue' FROM realm.action_queues WHERE player_id = $1 AND status = 'active'
		LIMIT 1
	`, playerID).Scan(&busy)
	if err == pgx.ErrNoRows {
		return nil
	}
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: you are %s", ErrConflict, busy)
}

// requireSettlementTx returns the player's current location, which must be
// a village or town.
func requireSettlementTx(ctx context.Context, q querier, locationID int64) (LocationRef, error) {
	ref, err := locationRefTx(ctx, q, locationID)
	if err != nil {
		return ref, err
	}
	if !rules.IsSettlement(ref.Kind) {
		return ref, fmt.Errorf("%w: you must be in a village or town", ErrWrongLocation)
	}
	return ref, nil
}

func (s *Service) World(ctx context.Context) (WorldView, error) {
	var out WorldView
	cal, err := s.Calendar(ctx)
	if err != nil {
		return out, err
	}
	out.Calendar = cal
	rows, err := s.db.Query(ctx, `
		SELECT l.id, l.key, l.name, l.kind, COALESCE(p.name, ''), l.capacity, l.treasury, l.tax_rate,
		       (SELECT COUNT(*) FROM realm.location_npcs n WHERE n.location_id = l.id AND n.alive),
		       COALESCE(ruler.username, '')
		FROM realm.locations l
		LEFT JOIN realm.locations p ON p.id = l.parent_id
		LEFT JOIN realm.player_roles pr ON pr.location_id = l.id
		LEFT JOIN realm.players ruler ON ruler.id = pr.player_id
		ORDER BY l.id
	`)
	if err != nil {
		return out, err
	}
	defer rows.Close()
	for rows.Next() {
		var v SettlementView
		if err := rows.Scan(&v.ID, &v.Key, &v.Name, &v.Kind, &v.Parent, &v.Capacity, &v.Treasury, &v.TaxRate, &v.Population, &v.Ruler); err != nil {
			return out, err
		}
		out.Settlements = append(out.Settlements, v)
	}
	return out, rows.Err()
}
