package game

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
)

const ProphetRank = "prophet"

type CreateReligionInput struct {
	PlayerID int64
	Name     string
	Deity    string
}

type ReligionView struct {
	ID       int64   `json:"id"`
	Name     string  `json:"name"`
	Deity    string  `json:"deity"`
	Founder  string  `json:"founder"`
	Treasury int64   `json:"treasury"`
	Members  int     `json:"members"`
	HQ       *HQView `json:"hq,omitempty"`
	Rank     string  `json:"rank,omitempty"`
	Devotion int64   `json:"devotion"`
}

type PrayResult struct {
	Devotion int64   `json:"devotion"`
	Rank     string  `json:"rank"`
	LevelUp  LevelUp `json:"level_up"`
	Energy   int     `json:"energy"`
}

// DevotionGain applies a percentage bonus to a devotion award.
func DevotionGain(base int64, bonusPct int) int64 {
	return applyXPBonus(base, bonusPct)
}

type membership struct {
	ReligionID int64
	FounderID  int64
	Devotion   int64
}

func membershipTx(ctx context.Context, q querier, playerID int64, lock bool) (membership, error) {
	var m membership
	sql := `
		SELECT m.religion_id, r.founder_id, m.devotion
		FROM realm.religion_members m JOIN realm.religions r ON r.id = m.religion_id
		WHERE m.player_id = $1`
	if lock {
		sql += ` FOR UPDATE OF m, r`
	}
	err := q.QueryRow(ctx, sql, playerID).Scan(&m.ReligionID, &m.FounderID, &m.Devotion)
	if err == pgx.ErrNoRows {
		return m, fmt.Errorf("%w: you do not follow a religion", ErrNotFound)
	}
	return m, err
}

func (s *Service) rankOf(m membership, playerID int64) string {
	if m.FounderID == playerID {
		return ProphetRank
	}
	return s.rules.RankFor(m.Devotion)
}

func (s *Service) CreateReligion(ctx context.Context, in CreateReligionInput) (ReligionView, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Deity = strings.TrimSpace(in.Deity)
	if err := validateEntityName(in.Name); err != nil {
		return ReligionView{}, err
	}
	if err := validateEntityName(in.Deity); err != nil {
		return ReligionView{}, renameField(err, "name", "deity")
	}
	var id int64
	err := s.inTx(ctx, pgx.ReadCommitted, func(tx pgx.Tx) error {
		p, err := lockPlayerTx(ctx, tx, in.PlayerID)
		if err != nil {
			return err
		}
		if _, err := membershipTx(ctx, tx, p.ID, false); err == nil {
			return fmt.Errorf("%w: leave your current religion first", ErrConflict)
		}
		if err := adjustGoldTx(ctx, tx, &p, -s.rules.Religion.FoundingCost, "temple", "religion_found"); err != nil {
			return err
		}
		err = tx.QueryRow(ctx, `
			INSERT INTO realm.religions (name, deity, founder_id) VALUES ($1, $2, $3) RETURNING id
		`, in.Name, in.Deity, p.ID).Scan(&id)
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: a religion named %q already exists", ErrConflict, in.Name)
		}
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `INSERT INTO realm.religion_members (religion_id, player_id) VALUES ($1, $2)`, id, p.ID); err != nil {
			return err
		}
		return publishEvent(ctx, tx, "religion.founded", p.LocationID, map[string]any{"religion": in.Name, "deity": in.Deity, "prophet": p.Username})
	})
	if err != nil {
		return ReligionView{}, err
	}
	return s.Religion(ctx, in.PlayerID, id)
}

func (s *Service) JoinReligion(ctx context.Context, playerID, religionID int64) (ReligionView, error) {
	err := s.inTx(ctx, pgx.ReadCommitted, func(tx pgx.Tx) error {
		if _, err := lockPlayerTx(ctx, tx, playerID); err != nil {
			return err
		}
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM realm.religions WHERE id = $1)`, religionID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("%w: religion", ErrNotFound)
		}
		_, err := tx.Exec(ctx, `INSERT INTO realm.religion_members (religion_id, player_id) VALUES ($1, $2)`, religionID, playerID)
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: leave your current religion first", ErrConflict)
		}
		return err
	})
	if err != nil {
		return ReligionView{}, err
	}
	return s.Religion(ctx, playerID, religionID)
}

// LeaveReligion removes the player. The last member to leave dissolves the
// religion; its prophet may not abandon remaining followers.
func (s *Service) LeaveReligion(ctx context.Context, playerID int64) (bool, error) {
	dissolved := false
	err := s.inTx(ctx, pgx.ReadCommitted, func(tx pgx.Tx) error {
		dissolved = false
		m, err := membershipTx(ctx, tx, playerID, true)
		if err != nil {
			return err
		}
		var members int
		if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM realm.religion_members WHERE religion_id = $1`, m.ReligionID).Scan(&members); err != nil {
			return err
		}
		if members <= 1 {
			dissolved = true
			_, err := tx.Exec(ctx, `DELETE FROM realm.religions WHERE id = $1`, m.ReligionID)
			return err
		}
		if m.FounderID == playerID {
			return fmt.Errorf("%w: the prophet cannot leave while followers remain", ErrForbidden)
		}
		_, err = tx.Exec(ctx, `DELETE FROM realm.religion_members WHERE player_id = $1`, playerID)
		return err
	})
	return dissolved, err
}

func (s *Service) Donate(ctx context.Context, playerID, gold int64) (ReligionView, error) {
	if gold <= 0 {
		return ReligionView{}, fieldError("gold", "must be positive")
	}
	var religionID int64
	err := s.inTx(ctx, pgx.ReadCommitted, func(tx pgx.Tx) error {
		p, err := lockPlayerTx(ctx, tx, playerID)
		if err != nil {
			return err
		}
		m, err := membershipTx(ctx, tx, playerID, true)
		if err != nil {
			return err
		}
		religionID = m.ReligionID
		if err := adjustGoldTx(ctx, tx, &p, -gold, fmt.Sprintf("religion:%d", m.ReligionID), "religion_donate"); err != nil {
			return err
		}
		buffs, err := s.buffsTx(ctx, tx, playerID)
		if err != nil {
			return err
		}
		devotion := DevotionGain(gold/s.rules.Religion.GoldPerDevotion, buffs.DevotionBonus)
		if _, err := tx.Exec(ctx, `UPDATE realm.religions SET treasury = treasury + $2 WHERE id = $1`, m.ReligionID, gold); err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `UPDATE realm.religion_members SET devotion = devotion + $2 WHERE player_id = $1`, playerID, devotion)
		return err
	})
	if err != nil {
		return ReligionView{}, err
	}
	return s.Religion(ctx, playerID, religionID)
}

func (s *Service) Pray(ctx context.Context, playerID int64) (PrayResult, error) {
	var out PrayResult
	rr := s.rules.Religion
	err := s.inTx(ctx, pgx.ReadCommitted, func(tx pgx.Tx) error {
		p, err := lockPlayerTx(ctx, tx, playerID)
		if err != nil {
			return err
		}
		m, err := membershipTx(ctx, tx, playerID, true)
		if err != nil {
			return err
		}
		var last *time.Time
		if err := tx.QueryRow(ctx, `SELECT last_prayed_at FROM realm.players WHERE id = $1`, playerID).Scan(&last); err != nil {
			return err
		}
		now := s.now()
		cooldown := time.Duration(rr.PrayCooldownSeconds) * time.Second
		if last != nil && now.Sub(*last) < cooldown {
			wait := cooldown - now.Sub(*last)
			return fmt.Errorf("%w: pray again in %ds", ErrCooldown, int(wait.Seconds()+0.999))
		}
		if err := spendEnergyTx(ctx, tx, &p, rr.PrayEnergy); err != nil {
			return err
		}
		buffs, err := s.buffsTx(ctx, tx, playerID)
		if err != nil {
			return err
		}
		m.Devotion += DevotionGain(rr.PrayDevotion, buffs.DevotionBonus)
		if _, err := tx.Exec(ctx, `UPDATE realm.religion_members SET devotion = $2 WHERE player_id = $1`, playerID, m.Devotion); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `UPDATE realm.players SET last_prayed_at = $2 WHERE id = $1`, playerID, now); err != nil {
			return err
		}
		up, err := s.awardXPTx(ctx, tx, playerID, "prayer", rr.PrayXP)
		if err != nil {
			return err
		}
		out = PrayResult{Devotion: m.Devotion, Rank: s.rankOf(m, playerID), LevelUp: up, Energy: p.Energy}
		return nil
	})
	return out, err
}

// Religion describes a religion from the point of view of playerID.
func (s *Service) Religion(ctx context.Context, playerID, religionID int64) (ReligionView, error) {
	var out ReligionView
	var founderID int64
	err := s.db.QueryRow(ctx, `
		SELECT r.id, r.name, r.deity, f.username, r.founder_id, r.treasury,
		       (SELECT COUNT(*) FROM realm.religion_members m WHERE m.religion_id = r.id)
		FROM realm.religions r JOIN realm.players f ON f.id = r.founder_id
		WHERE r.id = $1
	`, religionID).Scan(&out.ID, &out.Name, &out.Deity, &out.Founder, &founderID, &out.Treasury, &out.Members)
	if err == pgx.ErrNoRows {
		return out, fmt.Errorf("%w: religion", ErrNotFound)
	}
	if err != nil {
		return out, err
	}
	if m, err := membershipTx(ctx, s.db, playerID, false); err == nil && m.ReligionID == religionID {
		out.Rank = s.rankOf(m, playerID)
		out.Devotion = m.Devotion
	}
	hq, err := s.hqTx(ctx, s.db, religionID)
	switch {
	case err == nil:
		out.HQ = &hq
	case !errors.Is(err, ErrNotFound):
		return out, err
	}
	return out, nil
}

// MyReligion describes the religion playerID follows.
func (s *Service) MyReligion(ctx context.Context, playerID int64) (ReligionView, error) {
	m, err := membershipTx(ctx, s.db, playerID, false)
	if err != nil {
		return ReligionView{}, err
	}
	return s.Religion(ctx, playerID, m.ReligionID)
}
