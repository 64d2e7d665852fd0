package game

import (
	"context"
	"fmt"
	"math"

	"github.com/jackc/pgx/v5"
)

const MaxLevel = 99

var xpTable = buildXPTable()

func buildXPTable() [MaxLevel + 1]int64 {
	var table [MaxLevel + 1]int64
	points := 0.0
	for lvl := 1; lvl <= MaxLevel; lvl++ {
		table[lvl] = int64(math.Floor(points / 4))
		points += math.Floor(float64(lvl) + 300*math.Pow(2, float64(lvl)/7))
	}
	return table
}

// XPForLevel is the total xp needed to reach level.
func XPForLevel(level int) int64 {
	level = clamp(level, 1, MaxLevel)
	return xpTable[level]
}

func LevelForXP(xp int64) int {
	lvl := 1
	for lvl < MaxLevel && xp >= xpTable[lvl+1] {
		lvl++
	}
	return lvl
}

// CombatLevel derives the displayed combat level from combat skills.
func CombatLevel(levels map[string]int) int {
	lv := func(k string) int {
		if v, ok := levels[k]; ok && v > 0 {
			return v
		}
		return 1
	}
	base := 0.25 * float64(lv("defence")+lv("hitpoints")+lv("prayer")/2)
	melee := 0.325 * float64(lv("attack")+lv("strength"))
	return int(math.Floor(base + melee))
}

// applyXPBonus scales xp by a percentage bonus, rounding down.
func applyXPBonus(xp int64, bonusPct int) int64 {
	if bonusPct <= 0 {
		return xp
	}
	return xp + xp*int64(bonusPct)/100
}

func skillLevelsTx(ctx context.Context, q querier, playerID int64) (map[string]int, error) {
	rows, err := q.Query(ctx, `SELECT skill, level FROM realm.player_skills WHERE player_id = $1`, playerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[string]int)
	for rows.Next() {
		var skill string
		var level int
		if err := rows.Scan(&skill, &level); err != nil {
			return nil, err
		}
		out[skill] = level
	}
	return out, rows.Err()
}

func skillLevelTx(ctx context.Context, q querier, playerID int64, skill string) (int, error) {
	var level int
	err := q.QueryRow(ctx, `SELECT level FROM realm.player_skills WHERE player_id = $1 AND skill = $2`, playerID, skill).Scan(&level)
	if err == pgx.ErrNoRows {
		return 1, nil
	}
	return level, err
}

// awardXPTx adds xp (after buffs) and recomputes the level.
func (s *Service) awardXPTx(ctx context.Context, tx pgx.Tx, playerID int64, skill string, xp int64) (LevelUp, error) {
	if !s.rules.HasSkill(skill) {
		return LevelUp{}, fmt.Errorf("%w: unknown skill %q", ErrInvalidInput, skill)
	}
	buffs, err := s.buffsTx(ctx, tx, playerID)
	if err != nil {
		return LevelUp{}, err
	}
	xp = applyXPBonus(xp, buffs.XPBonus[skill])

	var before, after int64
	err = tx.QueryRow(ctx, `
		INSERT INTO realm.player_skills (player_id, skill, xp, level)
		VALUES ($1, $2, $3, 1)
		ON CONFLICT (player_id, skill) DO UPDATE SET xp = realm.player_skills.xp + EXCLUDED.xp
		RETURNING xp - $3, xp
	`, playerID, skill, xp).Scan(&before, &after)
	if err != nil {
		return LevelUp{}, err
	}
	up := LevelUp{Skill: skill, XPGained: xp, From: LevelForXP(before), To: LevelForXP(after)}
	if up.To != up.From {
		if _, err := tx.Exec(ctx, `UPDATE realm.player_skills SET level = $3 WHERE player_id = $1 AND skill = $2`, playerID, skill, up.To); err != nil {
			return up, err
		}
		if skill == "hitpoints" {
			if _, err := tx.Exec(ctx, `
				UPDATE realm.players SET max_hp = max_hp + $2, updated_at = now() WHERE id = $1
			`, playerID, up.To-up.From); err != nil {
				return up, err
			}
		}
	}
	return up, nil
}
