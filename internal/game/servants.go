package game

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

func (s *Service) servantsTx(ctx context.Context, q querier, houseID int64) ([]ServantView, error) {
	rows, err := q.Query(ctx, `SELECT id, servant_type FROM realm.servants WHERE house_id = $1 ORDER BY id`, houseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]ServantView, 0)
	for rows.Next() {
		var sv ServantView
		if err := rows.Scan(&sv.ID, &sv.Type); err != nil {
			return nil, err
		}
		sv.Wage = s.rules.Servants[sv.Type].Wage
		out = append(out, sv)
	}
	return out, rows.Err()
}

// Hire takes on a servant. The first week's wage is paid up front.
func (s *Service) Hire(ctx context.Context, playerID int64, servantType string) (HouseView, error) {
	def, ok := s.rules.Servants[servantType]
	if !ok {
		return HouseView{}, fieldError("type", "unknown servant type")
	}
	err := s.inTx(ctx, pgx.ReadCommitted, func(tx pgx.Tx) error {
		p, h, err := lockHomeTx(ctx, tx, playerID)
		if err != nil {
			return err
		}
		var staff int
		if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM realm.servants WHERE house_id = $1`, h.ID).Scan(&staff); err != nil {
			return err
		}
		if limit := s.rules.Houses[h.Tier].MaxServants; staff >= limit {
			return fmt.Errorf("%w: a %s can keep %d servants", ErrInvalidInput, h.Tier, limit)
		}
		if err := adjustGoldTx(ctx, tx, &p, -def.Wage, "servant:"+servantType, "servant_hire"); err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `INSERT INTO realm.servants (house_id, servant_type) VALUES ($1, $2)`, h.ID, servantType)
		return err
	})
	if err != nil {
		return HouseView{}, err
	}
	return s.House(ctx, playerID)
}

func (s *Service) Dismiss(ctx context.Context, playerID, servantID int64) (HouseView, error) {
	cmd, err := s.db.Exec(ctx, `
		DELETE FROM realm.servants sv USING realm.player_houses h
		WHERE sv.id = $1 AND sv.house_id = h.id AND h.player_id = $2
	`, servantID, playerID)
	if err != nil {
		return HouseView{}, err
	}
	if cmd.RowsAffected() == 0 {
		return HouseView{}, fmt.Errorf("%w: servant", ErrNotFound)
	}
	return s.House(ctx, playerID)
}

type WageReport struct {
	Paid int   `json:"paid"`
	Quit int   `json:"quit"`
	Gold int64 `json:"gold"`
}

// payServantsTx pays every servant's weekly wage. A servant whose employer
// cannot pay leaves.
func (s *Service) payServantsTx(ctx context.Context, tx pgx.Tx) (WageReport, error) {
	var rep WageReport
	rows, err := tx.Query(ctx, `
		SELECT sv.id, sv.servant_type, h.player_id
		FROM realm.servants sv JOIN realm.player_houses h ON h.id = sv.house_id
		ORDER BY h.player_id, sv.id
	`)
	if err != nil {
		return rep, err
	}
	type staff struct {
		id, player int64
		kind       string
	}
	var all []staff
	for rows.Next() {
		var st staff
		if err := rows.Scan(&st.id, &st.kind, &st.player); err != nil {
			rows.Close()
			return rep, err
		}
		all = append(all, st)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return rep, err
	}
	players := make(map[int64]*playerRow)
	for _, st := range all {
		p, ok := players[st.player]
		if !ok {
			row, err := lockPlayerTx(ctx, tx, st.player)
			if err != nil {
				return rep, err
			}
			p = &row
			players[st.player] = p
		}
		wage := s.rules.Servants[st.kind].Wage
		if p.Gold < wage {
			if _, err := tx.Exec(ctx, `DELETE FROM realm.servants WHERE id = $1`, st.id); err != nil {
				return rep, err
			}
			rep.Quit++
			continue
		}
		if err := adjustGoldTx(ctx, tx, p, -wage, "servant:"+st.kind, "servant_wage"); err != nil {
			return rep, err
		}
		rep.Paid++
		rep.Gold += wage
	}
	return rep, nil
}
