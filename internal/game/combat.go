package game

import (
	"context"
	"fmt"
	"math"

	"github.com/jackc/pgx/v5"

	"hearthrealm/internal/rules"
)

const (
	CombatActive = "active"
	CombatWon    = "won"
	CombatLost   = "lost"
	CombatFled   = "fled"
)

var unarmed = rules.Weapon{Style: "crush"}

type CombatView struct {
	ID           int64  `json:"id"`
	Monster      string `json:"monster"`
	MonsterName  string `json:"monster_name"`
	MonsterHP    int    `json:"monster_hp"`
	MonsterMaxHP int    `json:"monster_max_hp"`
	Status       string `json:"status"`
	Rounds       int    `json:"rounds"`
	DamageDealt  int    `json:"damage_dealt"`
	PlayerHP     int    `json:"player_hp"`
}

type AttackResult struct {
	Session       CombatView     `json:"session"`
	PlayerHit     bool           `json:"player_hit"`
	PlayerDamage  int            `json:"player_damage"`
	MonsterHit    bool           `json:"monster_hit"`
	MonsterDamage int            `json:"monster_damage"`
	LevelUps      []LevelUp      `json:"level_ups,omitempty"`
	Loot          *rules.ItemQty `json:"loot,omitempty"`
	LootDropped   bool           `json:"loot_dropped,omitempty"`
	GoldLost      int64          `json:"gold_lost,omitempty"`
}

// HitChance is the probability an attacker lands a blow.
func HitChance(attackLevel, attackBonus, defenceLevel, defenceBonus int) float64 {
	att := float64((attackLevel + 8) * (attackBonus + 64))
	def := float64((defenceLevel + 9) * (defenceBonus + 64))
	if att > def {
		return 1 - (def+2)/(2*(att+1))
	}
	return att / (2 * (def + 1))
}

func MaxHit(strengthLevel, strengthBonus int) int {
	return int(math.Floor(0.5 + float64((strengthLevel+8)*(strengthBonus+64))/640))
}

// StyleSkill is the skill trained by fighting in a style.
func StyleSkill(style string) string {
	switch style {
	case "stab":
		return "attack"
	case "slash":
		return "strength"
	default:
		return "defence"
	}
}

// KillXP is the style and hitpoints xp for dealing damage to a monster.
func KillXP(damage int) (styleXP, hitpointsXP int64) {
	return int64(4 * damage), int64(math.Floor(1.33 * float64(damage)))
}

// RollLoot draws one entry from a weighted table. ok is false for an
// empty drop.
func RollLoot(rng Roller, table []rules.LootEntry) (rules.ItemQty, bool) {
	total := 0
	for _, e := range table {
		total += e.Weight
	}
	if total <= 0 {
		return rules.ItemQty{}, false
	}
	pick := rng.Intn(total)
	for _, e := range table {
		if pick >= e.Weight {
			pick -= e.Weight
			continue
		}
		if e.Item == "" {
			return rules.ItemQty{}, false
		}
		qty := e.Min
		if e.Max > e.Min {
			qty += int64(rng.Intn(int(e.Max-e.Min) + 1))
		}
		if qty < 1 {
			qty = 1
		}
		return rules.ItemQty{Item: e.Item, Qty: qty}, true
	}
	return rules.ItemQty{}, false
}

// CombatRound is the outcome of one exchange of blows.
type CombatRound struct {
	PlayerHit     bool
	PlayerDamage  int
	MonsterHit    bool
	MonsterDamage int
	MonsterHP     int
	PlayerHP      int
	Status        string
	GoldLost      int64
	Loot          *rules.ItemQty
	LootDropped   bool
}

// PlayRound resolves one round: the player swings, then a surviving monster
// strikes back. A won round rolls loot into inv, dropping it when the bag is
// full. A lost round leaves the player on 1 hp and short goldLoss of gold.
func PlayRound(rng Roller, m rules.Monster, w rules.Weapon, levels map[string]int, monsterHP, playerHP int, gold int64, goldLoss float64, inv *Inventory) CombatRound {
	out := CombatRound{MonsterHP: monsterHP, PlayerHP: playerHP, Status: CombatActive}
	if rng.Float64() < HitChance(levels["attack"], w.AttackBonus, m.Defence, m.StyleDefence(w.Style)) {
		out.PlayerHit = true
		out.PlayerDamage = rng.Intn(MaxHit(levels["strength"], w.StrengthBonus) + 1)
	}
	if out.PlayerDamage > out.MonsterHP {
		out.PlayerDamage = out.MonsterHP
	}
	out.MonsterHP -= out.PlayerDamage

	if out.MonsterHP <= 0 {
		out.Status = CombatWon
		if drop, ok := RollLoot(rng, m.Loot); ok {
			out.Loot = &drop
			if err := inv.Add(drop.Item, drop.Qty); err != nil {
				out.LootDropped = true
			}
		}
		return out
	}
	if rng.Float64() < HitChance(m.Attack, 0, levels["defence"], 0) {
		out.MonsterHit = true
		out.MonsterDamage = rng.Intn(m.MaxHit + 1)
	}
	out.PlayerHP -= out.MonsterDamage
	if out.PlayerHP <= 0 {
		out.Status = CombatLost
		out.PlayerHP = 1
		out.GoldLost = int64(math.Floor(float64(gold) * goldLoss))
	}
	return out
}

func (s *Service) weaponFor(p playerRow, inv *Inventory) rules.Weapon {
	if p.EquippedWeapon == "" || inv.Count(p.EquippedWeapon) == 0 {
		return unarmed
	}
	if def, ok := s.rules.Items[p.EquippedWeapon]; ok && def.Weapon != nil {
		return *def.Weapon
	}
	return unarmed
}

func (s *Service) combatView(id int64, monster string, hp int, status string, rounds, dealt, playerHP int) CombatView {
	m := s.rules.Monsters[monster]
	return CombatView{
		ID:           id,
		Monster:      monster,
		MonsterName:  m.Name,
		MonsterHP:    hp,
		MonsterMaxHP: m.HP,
		Status:       status,
		Rounds:       rounds,
		DamageDealt:  dealt,
		PlayerHP:     playerHP,
	}
}

func (s *Service) StartCombat(ctx context.Context, playerID int64, monster string) (CombatView, error) {
	var out CombatView
	m, ok := s.rules.Monsters[monster]
	if !ok {
		return out, fieldError("monster", "unknown monster")
	}
	err := s.inTx(ctx, pgx.ReadCommitted, func(tx pgx.Tx) error {
		p, err := lockPlayerTx(ctx, tx, playerID)
		if err != nil {
			return err
		}
		if err := ensureIdleTx(ctx, tx, p.ID); err != nil {
			return err
		}
		if p.HP <= 0 {
			return fmt.Errorf("%w: you are too hurt to fight", ErrInvalidInput)
		}
		if err := spendEnergyTx(ctx, tx, &p, s.rules.Vitals.CombatEnergy); err != nil {
			return err
		}
		var id int64
		err = tx.QueryRow(ctx, `
			INSERT INTO realm.combat_sessions (player_id, monster, monster_hp) VALUES ($1, $2, $3) RETURNING id
		`, p.ID, monster, m.HP).Scan(&id)
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: already in combat", ErrConflict)
		}
		if err != nil {
			return err
		}
		out = s.combatView(id, monster, m.HP, CombatActive, 0, 0, p.HP)
		return nil
	})
	return out, err
}

// Attack plays one round: the player swings, then a surviving monster
// strikes back.
func (s *Service) Attack(ctx context.Context, playerID int64) (AttackResult, error) {
	var out AttackResult
	err := s.inTx(ctx, pgx.ReadCommitted, func(tx pgx.Tx) error {
		out = AttackResult{}
		p, err := lockPlayerTx(ctx, tx, playerID)
		if err != nil {
			return err
		}
		var id int64
		var monster string
		var mhp, rounds, dealt int
		err = tx.QueryRow(ctx, `
			SELECT id, monster, monster_hp, rounds, damage_dealt FROM realm.combat_sessions
			WHERE player_id = $1 AND status = 'active'
			FOR UPDATE
		`, playerID).Scan(&id, &monster, &mhp, &rounds, &dealt)
		if err == pgx.ErrNoRows {
			return fmt.Errorf("%w: no active combat", ErrNotFound)
		}
		if err != nil {
			return err
		}
		m := s.rules.Monsters[monster]
		if err := spendEnergyTx(ctx, tx, &p, s.rules.Vitals.AttackEnergy); err != nil {
			return err
		}
		inv, err := s.loadInventoryTx(ctx, tx, p.ID)
		if err != nil {
			return err
		}
		levels, err := skillLevelsTx(ctx, tx, p.ID)
		if err != nil {
			return err
		}
		w := s.weaponFor(p, inv)

		rounds++
		round := PlayRound(s.rng, m, w, levels, mhp, p.HP, p.Gold, s.rules.Vitals.DefeatGoldLoss, inv)
		out.PlayerHit, out.PlayerDamage = round.PlayerHit, round.PlayerDamage
		out.MonsterHit, out.MonsterDamage = round.MonsterHit, round.MonsterDamage
		out.Loot, out.LootDropped, out.GoldLost = round.Loot, round.LootDropped, round.GoldLost
		mhp = round.MonsterHP
		dealt += round.PlayerDamage
		status := round.Status

		switch status {
		case CombatWon:
			styleXP, hpXP := KillXP(m.HP)
			for _, award := range []struct {
				skill string
				xp    int64
			}{{StyleSkill(w.Style), styleXP}, {"hitpoints", hpXP}} {
				up, err := s.awardXPTx(ctx, tx, p.ID, award.skill, award.xp)
				if err != nil {
					return err
				}
				out.LevelUps = append(out.LevelUps, up)
			}
			if round.Loot != nil && !round.LootDropped {
				if err := saveInventoryTx(ctx, tx, p.ID, inv); err != nil {
					return err
				}
			}
			if _, err := tx.Exec(ctx, `
				INSERT INTO realm.monster_kills (player_id, monster, kills) VALUES ($1, $2, 1)
				ON CONFLICT (player_id, monster) DO UPDATE SET kills = realm.monster_kills.kills + 1
			`, p.ID, monster); err != nil {
				return err
			}
		default:
			p.HP = round.PlayerHP
			if round.GoldLost > 0 {
				if err := adjustGoldTx(ctx, tx, &p, -round.GoldLost, "monster:"+monster, "combat_defeat"); err != nil {
					return err
				}
			}
			if _, err := tx.Exec(ctx, `UPDATE realm.players SET hp = $2, updated_at = now() WHERE id = $1`, p.ID, p.HP); err != nil {
				return err
			}
		}

		if _, err := tx.Exec(ctx, `
			UPDATE realm.combat_sessions
			SET monster_hp = $2, rounds = $3, damage_dealt = $4, status = $5,
			    ended_at = CASE WHEN $5 = 'active' THEN NULL ELSE now() END
			WHERE id = $1
		`, id, mhp, rounds, dealt, status); err != nil {
			return err
		}
		out.Session = s.combatView(id, monster, mhp, status, rounds, dealt, p.HP)
		return nil
	})
	return out, err
}

func (s *Service) Flee(ctx context.Context, playerID int64) (CombatView, error) {
	var out CombatView
	var id int64
	var monster string
	var mhp, rounds, dealt, hp int
	err := s.db.QueryRow(ctx, `
		UPDATE realm.combat_sessions c SET status = 'fled', ended_at = now()
		FROM realm.players p
		WHERE c.player_id = $1 AND c.status = 'active' AND p.id = c.player_id
		RETURNING c.id, c.monster, c.monster_hp, c.rounds, c.damage_dealt, p.hp
	`, playerID).Scan(&id, &monster, &mhp, &rounds, &dealt, &hp)
	if err == pgx.ErrNoRows {
		return out, fmt.Errorf("%w: no active combat", ErrNotFound)
	}
	if err != nil {
		return out, err
	}
	return s.combatView(id, monster, mhp, CombatFled, rounds, dealt, hp), nil
}
