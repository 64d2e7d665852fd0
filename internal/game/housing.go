package game

import (
	"context"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v5"
)

type HouseView struct {
	ID        int64         `json:"id"`
	Tier      string        `json:"tier"`
	Location  LocationRef   `json:"location"`
	Condition int           `json:"condition"`
	MaxRooms  int           `json:"max_rooms"`
	Rooms     []RoomView    `json:"rooms"`
	Servants  []ServantView `json:"servants"`
	Buffs     Buffs         `json:"buffs"`
}

type RoomView struct {
	ID        int64      `json:"id"`
	Type      string     `json:"type"`
	Furniture []string   `json:"furniture"`
	Plots     []PlotView `json:"plots,omitempty"`
}

type PlotView struct {
	ID      int64  `json:"id"`
	Plot    int    `json:"plot"`
	Crop    string `json:"crop"`
	Planted int    `json:"planted_week"`
	Ready   bool   `json:"ready"`
}

type ServantView struct {
	ID   int64  `json:"id"`
	Type string `json:"type"`
	Wage int64  `json:"wage"`
}

type houseRow struct {
	ID         int64
	LocationID int64
	Tier       string
	Condition  int
}

func lockHouseTx(ctx context.Context, tx pgx.Tx, playerID int64) (houseRow, error) {
	var h houseRow
	err := tx.QueryRow(ctx, `
		SELECT id, location_id, tier, condition FROM realm.player_houses WHERE player_id = $1 FOR UPDATE
	`, playerID).Scan(&h.ID, &h.LocationID, &h.Tier, &h.Condition)
	if err == pgx.ErrNoRows {
		return h, fmt.Errorf("%w: you do not own a house", ErrNotFound)
	}
	return h, err
}

// lockHomeTx locks the player and their house and requires them to be at
// home.
func lockHomeTx(ctx context.Context, tx pgx.Tx, playerID int64) (playerRow, houseRow, error) {
	p, err := lockPlayerTx(ctx, tx, playerID)
	if err != nil {
		return p, houseRow{}, err
	}
	h, err := lockHouseTx(ctx, tx, playerID)
	if err != nil {
		return p, h, err
	}
	if p.LocationID != h.LocationID {
		return p, h, fmt.Errorf("%w: you must be at your house", ErrWrongLocation)
	}
	return p, h, nil
}

// RepairCost is the gold needed to bring a house back to full condition.
func RepairCost(repairRate int64, condition int) int64 {
	if condition >= 100 {
		return 0
	}
	return int64(100-condition) * repairRate
}

func (s *Service) BuyHouse(ctx context.Context, playerID int64, tier string) (HouseView, error) {
	def, ok := s.rules.Houses[tier]
	if !ok {
		return HouseView{}, fieldError("tier", "unknown house tier")
	}
	err := s.inTx(ctx, pgx.ReadCommitted, func(tx pgx.Tx) error {
		p, err := lockPlayerTx(ctx, tx, playerID)
		if err != nil {
			return err
		}
		loc, err := requireSettlementTx(ctx, tx, p.LocationID)
		if err != nil {
			return err
		}
		if err := adjustGoldTx(ctx, tx, &p, -def.Price, fmt.Sprintf("treasury:%d", loc.ID), "house_buy"); err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO realm.player_houses (player_id, location_id, tier) VALUES ($1, $2, $3)
		`, p.ID, loc.ID, tier)
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: you already own a house", ErrConflict)
		}
		if err != nil {
			return err
		}
		if err := addTreasuryTx(ctx, tx, loc.ID, def.Price); err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `UPDATE realm.players SET home_location_id = $2 WHERE id = $1`, p.ID, loc.ID)
		return err
	})
	if err != nil {
		return HouseView{}, err
	}
	return s.House(ctx, playerID)
}

func (s *Service) AddRoom(ctx context.Context, playerID int64, roomType string) (HouseView, error) {
	room, ok := s.rules.Rooms[roomType]
	if !ok {
		return HouseView{}, fieldError("type", "unknown room type")
	}
	err := s.inTx(ctx, pgx.ReadCommitted, func(tx pgx.Tx) error {
		p, h, err := lockHomeTx(ctx, tx, playerID)
		if err != nil {
			return err
		}
		var rooms int
		if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM realm.house_rooms WHERE house_id = $1`, h.ID).Scan(&rooms); err != nil {
			return err
		}
		if rooms >= s.rules.Houses[h.Tier].MaxRooms {
			return fmt.Errorf("%w: a %s has room for %d rooms", ErrInvalidInput, h.Tier, s.rules.Houses[h.Tier].MaxRooms)
		}
		if err := adjustGoldTx(ctx, tx, &p, -room.Price, "builder", "house_room"); err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `INSERT INTO realm.house_rooms (house_id, room_type) VALUES ($1, $2)`, h.ID, roomType)
		return err
	})
	if err != nil {
		return HouseView{}, err
	}
	return s.House(ctx, playerID)
}

func (s *Service) AddFurniture(ctx context.Context, playerID, roomID int64, furniture string) (HouseView, error) {
	f, ok := s.rules.Furniture[furniture]
	if !ok {
		return HouseView{}, fieldError("furniture", "unknown furniture")
	}
	err := s.inTx(ctx, pgx.ReadCommitted, func(tx pgx.Tx) error {
		p, h, err := lockHomeTx(ctx, tx, playerID)
		if err != nil {
			return err
		}
		var roomType string
		err = tx.QueryRow(ctx, `SELECT room_type FROM realm.house_rooms WHERE id = $1 AND house_id = $2`, roomID, h.ID).Scan(&roomType)
		if err == pgx.ErrNoRows {
			return fmt.Errorf("%w: room", ErrNotFound)
		}
		if err != nil {
			return err
		}
		if roomType != f.Room {
			return fieldError("furniture", fmt.Sprintf("belongs in a %s", f.Room))
		}
		if err := adjustGoldTx(ctx, tx, &p, -f.Price, "carpenter", "house_furniture"); err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `INSERT INTO realm.house_furniture (room_id, furniture_key) VALUES ($1, $2)`, roomID, furniture)
		return err
	})
	if err != nil {
		return HouseView{}, err
	}
	return s.House(ctx, playerID)
}

func (s *Service) RepairHouse(ctx context.Context, playerID int64) (HouseView, error) {
	err := s.inTx(ctx, pgx.ReadCommitted, func(tx pgx.Tx) error {
		p, h, err := lockHomeTx(ctx, tx, playerID)
		if err != nil {
			return err
		}
		cost := RepairCost(s.rules.Houses[h.Tier].RepairRate, h.Condition)
		if cost == 0 {
			return fmt.Errorf("%w: the house needs no repair", ErrInvalidInput)
		}
		if err := adjustGoldTx(ctx, tx, &p, -cost, "builder", "house_repair"); err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `UPDATE realm.player_houses SET condition = 100 WHERE id = $1`, h.ID)
		return err
	})
	if err != nil {
		return HouseView{}, err
	}
	return s.House(ctx, playerID)
}

func (s *Service) House(ctx context.Context, playerID int64) (HouseView, error) {
	var out HouseView
	var locID int64
	err := s.db.QueryRow(ctx, `
		SELECT id, tier, condition, location_id FROM realm.player_houses WHERE player_id = $1
	`, playerID).Scan(&out.ID, &out.Tier, &out.Condition, &locID)
	if err == pgx.ErrNoRows {
		return out, fmt.Errorf("%w: you do not own a house", ErrNotFound)
	}
	if err != nil {
		return out, err
	}
	out.MaxRooms = s.rules.Houses[out.Tier].MaxRooms
	if out.Location, err = locationRefTx(ctx, s.db, locID); err != nil {
		return out, err
	}
	cal, err := s.Calendar(ctx)
	if err != nil {
		return out, err
	}
	now := cal.WeekIndex(s.rules)

	rows, err := s.db.Query(ctx, `
		SELECT r.id, r.room_type, COALESCE(array_agg(f.furniture_key ORDER BY f.id) FILTER (WHERE f.id IS NOT NULL), '{}')
		FROM realm.house_rooms r
		LEFT JOIN realm.house_furniture f ON f.room_id = r.id
		WHERE r.house_id = $1
		GROUP BY r.id, r.room_type
		ORDER BY r.id
	`, out.ID)
	if err != nil {
		return out, err
	}
	byRoom := make(map[int64]int)
	var furniture []string
	for rows.Next() {
		var rv RoomView
		if err := rows.Scan(&rv.ID, &rv.Type, &rv.Furniture); err != nil {
			rows.Close()
			return out, err
		}
		furniture = append(furniture, rv.Furniture...)
		byRoom[rv.ID] = len(out.Rooms)
		out.Rooms = append(out.Rooms, rv)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return out, err
	}

	plots, err := s.db.Query(ctx, `
		SELECT g.id, g.room_id, g.plot, g.crop_key, g.planted_week
		FROM realm.garden_plots g JOIN realm.house_rooms r ON r.id = g.room_id
		WHERE r.house_id = $1
		ORDER BY g.room_id, g.plot
	`, out.ID)
	if err != nil {
		return out, err
	}
	for plots.Next() {
		var pv PlotView
		var roomID int64
		if err := plots.Scan(&pv.ID, &roomID, &pv.Plot, &pv.Crop, &pv.Planted); err != nil {
			plots.Close()
			return out, err
		}
		pv.Ready = CropReady(s.rules.Crops[pv.Crop], pv.Planted, now)
		if i, ok := byRoom[roomID]; ok {
			out.Rooms[i].Plots = append(out.Rooms[i].Plots, pv)
		}
	}
	plots.Close()
	if err := plots.Err(); err != nil {
		return out, err
	}

	if out.Servants, err = s.servantsTx(ctx, s.db, out.ID); err != nil {
		return out, err
	}
	sort.Strings(furniture)
	out.Buffs = HouseBuffs(s.rules, out.Condition, furniture)
	return out, nil
}
