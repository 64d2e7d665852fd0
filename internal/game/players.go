package game

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
)

type playerRow struct {
	ID             int64
	Username       string
	HP             int
	MaxHP          int
	Energy         int
	MaxEnergy      int
	Gold           int64
	LocationID     int64
	HomeLocationID int64
	EquippedWeapon string
}

const playerColumns = `id, username, hp, max_hp, energy, max_energy, gold, location_id, home_location_id, COALESCE(equipped_weapon, '')`

func scanPlayer(row pgx.Row) (playerRow, error) {
	var p playerRow
	err := row.Scan(&p.ID, &p.Username, &p.HP, &p.MaxHP, &p.Energy, &p.MaxEnergy, &p.Gold, &p.LocationID, &p.HomeLocationID, &p.EquippedWeapon)
	if err == pgx.ErrNoRows {
		return p, fmt.Errorf("%w: player", ErrNotFound)
	}
	return p, err
}

func lockPlayerTx(ctx context.Context, tx pgx.Tx, playerID int64) (playerRow, error) {
	return scanPlayer(tx.QueryRow(ctx, `SELECT `+playerColumns+` FROM realm.players WHERE id = $1 FOR UPDATE`, playerID))
}

func spendEnergyTx(ctx context.Context, tx pgx.Tx, p *playerRow, amount int) error {
	if p.Energy < amount {
		return fmt.Errorf("%w: need %d, have %d", ErrInsufficientEnergy, amount, p.Energy)
	}
	p.Energy -= amount
	_, err := tx.Exec(ctx, `UPDATE realm.players SET energy = $2, updated_at = now() WHERE id = $1`, p.ID, p.Energy)
	return err
}

// adjustGoldTx moves gold in or out of the wallet; negative deltas fail with
// ErrInsufficientGold rather than going below zero.
func adjustGoldTx(ctx context.Context, tx pgx.Tx, p *playerRow, delta int64, counterparty, action string) error {
	if delta == 0 {
		return nil
	}
	if p.Gold+delta < 0 {
		return fmt.Errorf("%w: need %d, have %d", ErrInsufficientGold, -delta, p.Gold)
	}
	p.Gold += delta
	if _, err := tx.Exec(ctx, `UPDATE realm.players SET gold = $2, updated_at = now() WHERE id = $1`, p.ID, p.Gold); err != nil {
		return err
	}
	return appendLedger(ctx, tx, p.ID, counterparty, action, delta)
}

// CreatePlayer registers a new account at the spawn settlement with every
// skill at level 1.
func (s *Service) CreatePlayer(ctx context.Context, in SignupInput) (int64, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Username = strings.TrimSpace(in.Username)
	if err := ValidateEmail(in.Email); err != nil {
		return 0, err
	}
	if err := ValidateUsername(in.Username); err != nil {
		return 0, err
	}
	var id int64
	err := s.inTx(ctx, pgx.ReadCommitted, func(tx pgx.Tx) error {
		var spawnID int64
		if err := tx.QueryRow(ctx, `SELECT id FROM realm.locations WHERE key = $1`, s.rules.SpawnLocation).Scan(&spawnID); err != nil {
			if err == pgx.ErrNoRows {
				return fmt.Errorf("spawn location %q not seeded", s.rules.SpawnLocation)
			}
			return err
		}
		v := s.rules.Vitals
		err := tx.QueryRow(ctx, `
			INSERT INTO realm.players (email, username, password_hash, hp, max_hp, energy, max_energy, gold, location_id, home_location_id)
			VALUES ($1, $2, $3, $4, $4, $5, $5, $6, $7, $7)
			RETURNING id
		`, in.Email, in.Username, in.PasswordHash, v.StartHP, v.StartEnergy, v.StartGold, spawnID).Scan(&id)
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("%w: email or username already taken", ErrConflict)
			}
			return err
		}
		for _, skill := range s.rules.Skills {
			if _, err := tx.Exec(ctx, `
				INSERT INTO realm.player_skills (player_id, skill, xp, level) VALUES ($1, $2, 0, 1)
			`, id, skill); err != nil {
				return err
			}
		}
		return appendLedger(ctx, tx, id, "starter", "signup", v.StartGold)
	})
	if err != nil {
		return 0, err
	}
	s.log.Info("player created", "player_id", id, "username", in.Username)
	return id, nil
}

func (s *Service) Credentials(ctx context.Context, email string) (Credentials, error) {
	var c Credentials
	err := s.db.QueryRow(ctx, `
		SELECT id, username, password_hash FROM realm.players WHERE email = $1
	`, strings.ToLower(strings.TrimSpace(email))).Scan(&c.PlayerID, &c.Username, &c.PasswordHash)
	if err == pgx.ErrNoRows {
		return c, fmt.Errorf("%w: player", ErrNotFound)
	}
	return c, err
}

// Profile assembles the character sheet.
func (s *Service) Profile(ctx context.Context, playerID int64) (PlayerView, error) {
	var out PlayerView
	p, err := scanPlayer(s.db.QueryRow(ctx, `SELECT `+playerColumns+` FROM realm.players WHERE id = $1`, playerID))
	if err != nil {
		return out, err
	}
	out = PlayerView{
		ID:             p.ID,
		Username:       p.Username,
		HP:             p.HP,
		MaxHP:          p.MaxHP,
		Energy:         p.Energy,
		MaxEnergy:      p.MaxEnergy,
		Gold:           p.Gold,
		EquippedWeapon: p.EquippedWeapon,
	}
	if out.Location, err = locationRefTx(ctx, s.db, p.LocationID); err != nil {
		return out, err
	}
	if out.Home, err = locationRefTx(ctx, s.db, p.HomeLocationID); err != nil {
		return out, err
	}

	rows, err := s.db.Query(ctx, `SELECT skill, level, xp FROM realm.player_skills WHERE player_id = $1 ORDER BY skill`, playerID)
	if err != nil {
		return out, err
	}
	levels := make(map[string]int)
	for rows.Next() {
		var sv SkillView
		if err := rows.Scan(&sv.Skill, &sv.Level, &sv.XP); err != nil {
			rows.Close()
			return out, err
		}
		sv.Next = XPForLevel(sv.Level + 1)
		levels[sv.Skill] = sv.Level
		out.Skills = append(out.Skills, sv)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return out, err
	}
	out.CombatLevel = CombatLevel(levels)

	inv, err := s.loadInventoryTx(ctx, s.db, playerID)
	if err != nil {
		return out, err
	}
	out.Inventory = inv.Stacks()
	if out.Buffs, err = s.buffsTx(ctx, s.db, playerID); err != nil {
		return out, err
	}

	err = s.db.QueryRow(ctx, `
		SELECT r.name FROM realm.religion_members m JOIN realm.religions r ON r.id = m.religion_id WHERE m.player_id = $1
	`, playerID).Scan(&out.Religion)
	if err := optional(err); err != nil {
		return out, err
	}
	var kind, locName string
	err = s.db.QueryRow(ctx, `
		SELECT l.kind, l.name FROM realm.player_roles pr JOIN realm.locations l ON l.id = pr.location_id WHERE pr.player_id = $1 LIMIT 1
	`, playerID).Scan(&kind, &locName)
	switch {
	case err == nil:
		out.Office = fmt.Sprintf("%s of %s", s.rules.Offices[kind].Title, locName)
	case optional(err) != nil:
		return out, err
	}
	return out, nil
}

// RegenerateVitals restores energy and hp for every player, adding the
// bonuses from their house, servants and religion HQ.
func (s *Service) RegenerateVitals(ctx context.Context) (int64, error) {
	v := s.rules.Vitals
	cook := s.rules.Servants["cook"].HPPerRegen
	var n int64
	err := s.inTx(ctx, pgx.ReadCommitted, func(tx pgx.Tx) error {
		cmd, err := tx.Exec(ctx, `
			WITH house_buffs AS (
				SELECT h.player_id,
				       h.location_id,
				       COALESCE(SUM(CASE WHEN f.buff = 'energy_regen' THEN f.amount END), 0) AS energy_bonus,
				       COALESCE(SUM(CASE WHEN f.buff = 'hp_regen' THEN f.amount END), 0) AS hp_bonus
				FROM realm.player_houses h
				LEFT JOIN realm.house_rooms r ON r.house_id = h.id
				LEFT JOIN realm.house_furniture hf ON hf.room_id = r.id
				LEFT JOIN jsonb_to_recordset($4::jsonb) AS f(key text, buff text, amount int) ON f.key = hf.furniture_key
				WHERE h.condition >= $3
				GROUP BY h.player_id, h.location_id
			),
			cooks AS (
				SELECT h.player_id, h.location_id, COUNT(*) * $5::int AS hp_bonus
				FROM realm.servants sv
				JOIN realm.player_houses h ON h.id = sv.house_id
				WHERE sv.servant_type = 'cook'
				GROUP BY h.player_id, h.location_id
			),
			hq AS (
				SELECT m.player_id, COALESCE((($6::jsonb) ->> (q.tier::text))::int, 0) AS hp_bonus
				FROM realm.religion_members m
				JOIN realm.religion_hqs q ON q.religion_id = m.religion_id
				WHERE q.tier > 0
			)
			UPDATE realm.players p
			SET energy = LEAST(p.max_energy, p.energy + $1 + COALESCE(CASE WHEN hb.location_id = p.location_id THEN hb.energy_bonus END, 0)),
			    hp = LEAST(p.max_hp, p.hp + $2
			        + COALESCE(CASE WHEN hb.location_id = p.location_id THEN hb.hp_bonus END, 0)
			        + COALESCE(CASE WHEN c.location_id = p.location_id THEN c.hp_bonus END, 0)
			        + COALESCE(hq.hp_bonus, 0)),
			    updated_at = now()
			FROM realm.players base
			LEFT JOIN house_buffs hb ON hb.player_id = base.id
			LEFT JOIN cooks c ON c.player_id = base.id
			LEFT JOIN hq ON hq.player_id = base.id
			WHERE p.id = base.id
			  AND (p.energy < p.max_energy OR p.hp < p.max_hp)
		`, v.EnergyPerRegen, v.HPPerRegen, s.rules.HouseBuffMinCondition, s.furnitureBuffJSON(), cook, s.hqRegenJSON())
		if err != nil {
			return err
		}
		n = cmd.RowsAffected()
		return nil
	})
	if err != nil {
		return 0, err
	}
	s.log.Debug("vitals regenerated", "players", n)
	return n, nil
}
