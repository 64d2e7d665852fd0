package game

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/jackc/pgx/v5"

	"hearthrealm/internal/rules"
)

// Buffs are the bonuses a player currently enjoys from their house and the
// HQ of their religion.
type Buffs struct {
	EnergyRegen   int            `json:"energy_regen"`
	HPRegen       int            `json:"hp_regen"`
	XPBonus       map[string]int `json:"xp_bonus,omitempty"`
	DevotionBonus int            `json:"devotion_bonus"`
}

func (b *Buffs) addXP(skill string, pct int) {
	if pct == 0 || skill == "" {
		return
	}
	if b.XPBonus == nil {
		b.XPBonus = make(map[string]int)
	}
	b.XPBonus[skill] += pct
}

// HouseBuffs sums furniture buffs. A house in poor repair grants nothing.
func HouseBuffs(r *rules.Rules, condition int, furniture []string) Buffs {
	var b Buffs
	if condition < r.HouseBuffMinCondition {
		return b
	}
	for _, key := range furniture {
		f, ok := r.Furniture[key]
		if !ok {
			continue
		}
		switch f.Buff {
		case "energy_regen":
			b.EnergyRegen += f.Amount
		case "hp_regen":
			b.HPRegen += f.Amount
		case "xp_bonus":
			b.addXP(f.Skill, f.Amount)
		}
	}
	return b
}

// HQBuffs are granted to every member of a religion whose HQ reached tier.
func HQBuffs(r *rules.Rules, tier int) Buffs {
	var b Buffs
	t, ok := r.HQTier(tier)
	if !ok {
		return b
	}
	b.addXP("prayer", t.PrayerXPBonus)
	b.DevotionBonus = t.DevotionBonus
	b.HPRegen = t.HPRegen
	return b
}

func (b Buffs) merge(o Buffs) Buffs {
	b.EnergyRegen += o.EnergyRegen
	b.HPRegen += o.HPRegen
	b.DevotionBonus += o.DevotionBonus
	for skill, pct := range o.XPBonus {
		b.addXP(skill, pct)
	}
	return b
}

func (s *Service) buffsTx(ctx context.Context, q querier, playerID int64) (Buffs, error) {
	var out Buffs
	var houseID int64
	var condition int
	err := q.QueryRow(ctx, `SELECT id, condition FROM realm.player_houses WHERE player_id = $1`, playerID).Scan(&houseID, &condition)
	switch {
	case err == pgx.ErrNoRows:
	case err != nil:
		return out, err
	default:
		rows, err := q.Query(ctx, `
			SELECT hf.furniture_key
			FROM realm.house_furniture hf
			JOIN realm.house_rooms r ON r.id = hf.room_id
			WHERE r.house_id = $1
		`, houseID)
		if err != nil {
			return out, err
		}
		keys, err := pgx.CollectRows(rows, pgx.RowTo[string])
		if err != nil {
			return out, err
		}
		out = HouseBuffs(s.rules, condition, keys)
	}

	var tier int
	err = q.QueryRow(ctx, `
		SELECT q.tier FROM realm.religion_members m
		JOIN realm.religion_hqs q ON q.religion_id = m.religion_id
		WHERE m.player_id = $1
	`, playerID).Scan(&tier)
	if err != nil && err != pgx.ErrNoRows {
		return out, err
	}
	return out.merge(HQBuffs(s.rules, tier)), nil
}

// furnitureBuffJSON renders the furniture table for jsonb_to_recordset.
func (s *Service) furnitureBuffJSON() string {
	type row struct {
		Key    string `json:"key"`
		Buff   string `json:"buff"`
		Amount int    `json:"amount"`
	}
	rows := make([]row, 0, len(s.rules.Furniture))
	for key, f := range s.rules.Furniture {
		rows = append(rows, row{Key: key, Buff: f.Buff, Amount: f.Amount})
	}
	raw, _ := json.Marshal(rows)
	return string(raw)
}

// hqRegenJSON maps tier number to the hp regen bonus.
func (s *Service) hqRegenJSON() string {
	m := make(map[string]int, len(s.rules.HQTiers))
	for _, t := range s.rules.HQTiers {
		m[strconv.Itoa(t.Tier)] = t.HPRegen
	}
	raw, _ := json.Marshal(m)
	return string(raw)
}
