package game

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
)

const (
	PetitionPending   = "pending"
	PetitionApproved  = "approved"
	PetitionRejected  = "rejected"
	PetitionWithdrawn = "withdrawn"
)

type PetitionInput struct {
	PlayerID int64
	Location string
	Message  string
}

type PetitionView struct {
	ID        int64       `json:"id"`
	Location  LocationRef `json:"location"`
	Office    string      `json:"office"`
	Player    string      `json:"player"`
	Message   string      `json:"message"`
	Status    string      `json:"status"`
	FiledWeek int         `json:"filed_week"`
}

type RoleView struct {
	Location LocationRef `json:"location"`
	Office   string      `json:"office"`
	Salary   int64       `json:"salary"`
	TaxRate  int         `json:"tax_rate"`
}

type officeRow struct {
	LocationID int64
	Kind       string
	ParentID   *int64
	HolderID   *int64
}

func lockOfficeTx(ctx context.Context, tx pgx.Tx, locationID int64) (officeRow, error) {
	var o officeRow
	err := tx.QueryRow(ctx, `
		SELECT l.id, l.kind, l.parent_id, pr.player_id
		FROM realm.locations l
		LEFT JOIN realm.player_roles pr ON pr.location_id = l.id
		WHERE l.id = $1
		FOR UPDATE OF l
	`, locationID).Scan(&o.LocationID, &o.Kind, &o.ParentID, &o.HolderID)
	if err == pgx.ErrNoRows {
		return o, fmt.Errorf("%w: location", ErrNotFound)
	}
	return o, err
}

// superiorTx returns who holds the office above locationID's; zero when
// that office is vacant or there is none.
func superiorTx(ctx context.Context, q querier, o officeRow) (int64, error) {
	if o.ParentID == nil {
		return 0, nil
	}
	var holder int64
	err := q.QueryRow(ctx, `SELECT player_id FROM realm.player_roles WHERE location_id = $1`, *o.ParentID).Scan(&holder)
	if err == pgx.ErrNoRows {
		return 0, nil
	}
	return holder, err
}

// withinTx reports whether location inner lies inside outer's territory.
func withinTx(ctx context.Context, q querier, inner, outer int64) (bool, error) {
	var ok bool
	err := q.QueryRow(ctx, `
		WITH RECURSIVE up AS (
			SELECT id, parent_id FROM realm.locations WHERE id = $1
			UNION ALL
			SELECT l.id, l.parent_id FROM realm.locations l JOIN up ON l.id = up.parent_id
		)
		SELECT EXISTS (SELECT 1 FROM up WHERE id = $2)
	`, inner, outer).Scan(&ok)
	return ok, err
}

func (s *Service) Petition(ctx context.Context, in PetitionInput) (PetitionView, error) {
	in.Message = strings.TrimSpace(in.Message)
	if len(in.Message) > 500 {
		return PetitionView{}, fieldError("message", "must be at most 500 characters")
	}
	var id int64
	err := s.inTx(ctx, pgx.ReadCommitted, func(tx pgx.Tx) error {
		p, err := lockPlayerTx(ctx, tx, in.PlayerID)
		if err != nil {
			return err
		}
		loc, _, _, err := locationByKeyTx(ctx, tx, in.Location)
		if err != nil {
			return err
		}
		office, err := lockOfficeTx(ctx, tx, loc.ID)
		if err != nil {
			return err
		}
		if office.HolderID != nil {
			return fmt.Errorf("%w: the office of %s is taken", ErrConflict, loc.Name)
		}
		var holds bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM realm.player_roles WHERE player_id = $1)`, p.ID).Scan(&holds); err != nil {
			return err
		}
		if holds {
			return fmt.Errorf("%w: resign your current office first", ErrConflict)
		}
		inside, err := withinTx(ctx, tx, p.LocationID, loc.ID)
		if err != nil {
			return err
		}
		if !inside {
			return fmt.Errorf("%w: you must be within %s to petition", ErrWrongLocation, loc.Name)
		}
		cal, _, err := loadCalendarTx(ctx, tx, false)
		if err != nil {
			return err
		}
		fee := s.rules.Petition.Fee
		if err := adjustGoldTx(ctx, tx, &p, -fee, fmt.Sprintf("treasury:%d", loc.ID), "petition_fee"); err != nil {
			return err
		}
		if err := addTreasuryTx(ctx, tx, loc.ID, fee); err != nil {
			return err
		}
		err = tx.QueryRow(ctx, `
			INSERT INTO realm.role_petitions (location_id, player_id, message, filed_week) VALUES ($1, $2, $3, $4)
			RETURNING id
		`, loc.ID, p.ID, in.Message, cal.WeekIndex(s.rules)).Scan(&id)
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: you already have a pending petition", ErrConflict)
		}
		return err
	})
	if err != nil {
		return PetitionView{}, err
	}
	return s.petitionView(ctx, s.db, id)
}

func (s *Service) petitionView(ctx context.Context, q querier, id int64) (PetitionView, error) {
	var out PetitionView
	var locID int64
	err := q.QueryRow(ctx, `
		SELECT rp.id, rp.location_id, p.username, rp.message, rp.status, rp.filed_week
		FROM realm.role_petitions rp JOIN realm.players p ON p.id = rp.player_id
		WHERE rp.id = $1
	`, id).Scan(&out.ID, &locID, &out.Player, &out.Message, &out.Status, &out.FiledWeek)
	if err == pgx.ErrNoRows {
		return out, fmt.Errorf("%w: petition", ErrNotFound)
	}
	if err != nil {
		return out, err
	}
	if out.Location, err = locationRefTx(ctx, q, locID); err != nil {
		return out, err
	}
	out.Office = s.rules.Offices[out.Location.Kind].Title
	return out, nil
}

type pendingPetition struct {
	ID         int64
	LocationID int64
	PlayerID   int64
}

func lockPendingPetitionTx(ctx context.Context, tx pgx.Tx, id int64) (pendingPetition, error) {
	var pp pendingPetition
	var status string
	err := tx.QueryRow(ctx, `
		SELECT id, location_id, player_id, status FROM realm.role_petitions WHERE id = $1 FOR UPDATE
	`, id).Scan(&pp.ID, &pp.LocationID, &pp.PlayerID, &status)
	if err == pgx.ErrNoRows {
		return pp, fmt.Errorf("%w: petition", ErrNotFound)
	}
	if err != nil {
		return pp, err
	}
	if status != PetitionPending {
		return pp, fmt.Errorf("%w: petition is %s", ErrConflict, status)
	}
	return pp, nil
}

// decideTx records the decision. Approval seats the petitioner and turns
// away every other petition for the same office.
func (s *Service) decideTx(ctx context.Context, tx pgx.Tx, pp pendingPetition, approve bool, decidedBy int64) error {
	var by any
	if decidedBy > 0 {
		by = decidedBy
	}
	status := PetitionRejected
	if approve {
		status = PetitionApproved
	}
	if _, err := tx.Exec(ctx, `
		UPDATE realm.role_petitions SET status = $2, decided_by = $3, decided_at = now() WHERE id = $1
	`, pp.ID, status, by); err != nil {
		return err
	}
	if !approve {
		return nil
	}
	_, err := tx.Exec(ctx, `INSERT INTO realm.player_roles (location_id, player_id) VALUES ($1, $2)`, pp.LocationID, pp.PlayerID)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: the office is already filled", ErrConflict)
	}
	if err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `
		UPDATE realm.role_petitions SET status = 'rejected', decided_by = $3, decided_at = now()
		WHERE location_id = $1 AND status = 'pending' AND id <> $2
	`, pp.LocationID, pp.ID, by); err != nil {
		return err
	}
	var username, locName, kind string
	if err := tx.QueryRow(ctx, `
		SELECT p.username, l.name, l.kind FROM realm.players p, realm.locations l WHERE p.id = $1 AND l.id = $2
	`, pp.PlayerID, pp.LocationID).Scan(&username, &locName, &kind); err != nil {
		return err
	}
	return publishEvent(ctx, tx, "role.appointed", pp.LocationID, map[string]any{
		"player": username, "office": s.rules.Offices[kind].Title, "location": locName,
	})
}

func (s *Service) decide(ctx context.Context, playerID, petitionID int64, approve bool) (PetitionView, error) {
	err := s.inTx(ctx, pgx.ReadCommitted, func(tx pgx.Tx) error {
		pp, err := lockPendingPetitionTx(ctx, tx, petitionID)
		if err != nil {
			return err
		}
		office, err := lockOfficeTx(ctx, tx, pp.LocationID)
		if err != nil {
			return err
		}
		superior, err := superiorTx(ctx, tx, office)
		if err != nil {
			return err
		}
		if superior == 0 || superior != playerID {
			return fmt.Errorf("%w: only the superior office holder may decide", ErrForbidden)
		}
		return s.decideTx(ctx, tx, pp, approve, playerID)
	})
	if err != nil {
		return PetitionView{}, err
	}
	return s.petitionView(ctx, s.db, petitionID)
}

func (s *Service) ApprovePetition(ctx context.Context, playerID, petitionID int64) (PetitionView, error) {
	return s.decide(ctx, playerID, petitionID, true)
}

func (s *Service) RejectPetition(ctx context.Context, playerID, petitionID int64) (PetitionView, error) {
	return s.decide(ctx, playerID, petitionID, false)
}

func (s *Service) WithdrawPetition(ctx context.Context, playerID, petitionID int64) (PetitionView, error) {
	cmd, err := s.db.Exec(ctx, `
		UPDATE realm.role_petitions SET status = 'withdrawn', decided_at = now()
		WHERE id = $1 AND player_id = $2 AND status = 'pending'
	`, petitionID, playerID)
	if err != nil {
		return PetitionView{}, err
	}
	if cmd.RowsAffected() == 0 {
		return PetitionView{}, fmt.Errorf("%w: no pending petition of yours", ErrNotFound)
	}
	return s.petitionView(ctx, s.db, petitionID)
}

func (s *Service) Resign(ctx context.Context, playerID int64) error {
	var locID int64
	err := s.db.QueryRow(ctx, `DELETE FROM realm.player_roles WHERE player_id = $1 RETURNING location_id`, playerID).Scan(&locID)
	if err == pgx.ErrNoRows {
		return fmt.Errorf("%w: you hold no office", ErrNotFound)
	}
	return err
}

func (s *Service) SetTaxRate(ctx context.Context, playerID int64, rate int) (RoleView, error) {
	if rate < 0 || rate > s.rules.Tax.MaxRate {
		return RoleView{}, fieldError("rate", fmt.Sprintf("must be between 0 and %d", s.rules.Tax.MaxRate))
	}
	var locID int64
	err := s.db.QueryRow(ctx, `
		UPDATE realm.locations l SET tax_rate = $2
		FROM realm.player_roles pr
		WHERE pr.location_id = l.id AND pr.player_id = $1
		RETURNING l.id
	`, playerID, rate).Scan(&locID)
	if err == pgx.ErrNoRows {
		return RoleView{}, fmt.Errorf("%w: you hold no office", ErrForbidden)
	}
	if err != nil {
		return RoleView{}, err
	}
	ref, err := locationRefTx(ctx, s.db, locID)
	if err != nil {
		return RoleView{}, err
	}
	office := s.rules.Offices[ref.Kind]
	return RoleView{Location: ref, Office: office.Title, Salary: office.Salary, TaxRate: rate}, nil
}

// autoApprovePetitionsTx seats petitioners whose superior office has been
// vacant for the whole waiting period. The oldest petition per office wins.
func (s *Service) autoApprovePetitionsTx(ctx context.Context, tx pgx.Tx, weekIdx int) (int, error) {
	rows, err := tx.Query(ctx, `
		SELECT DISTINCT ON (rp.location_id) rp.id, rp.location_id, rp.player_id
		FROM realm.role_petitions rp
		JOIN realm.locations l ON l.id = rp.location_id
		WHERE rp.status = 'pending'
		  AND rp.filed_week <= $1
		  AND NOT EXISTS (SELECT 1 FROM realm.player_roles pr WHERE pr.location_id = rp.location_id)
		  AND NOT EXISTS (SELECT 1 FROM realm.player_roles pr WHERE pr.location_id = l.parent_id)
		  AND NOT EXISTS (SELECT 1 FROM realm.player_roles pr WHERE pr.player_id = rp.player_id)
		ORDER BY rp.location_id, rp.filed_week, rp.id
	`, weekIdx-s.rules.Petition.AutoApproveWeeks)
	if err != nil {
		return 0, err
	}
	var due []pendingPetition
	for rows.Next() {
		var pp pendingPetition
		if err := rows.Scan(&pp.ID, &pp.LocationID, &pp.PlayerID); err != nil {
			rows.Close()
			return 0, err
		}
		due = append(due, pp)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}
	seated := make(map[int64]bool)
	n := 0
	for _, pp := range due {
		if seated[pp.PlayerID] {
			continue
		}
		if err := s.decideTx(ctx, tx, pp, true, 0); err != nil {
			return n, err
		}
		seated[pp.PlayerID] = true
		n++
	}
	return n, nil
}

type SalaryReport struct {
	Paid    int   `json:"paid"`
	Skipped int   `json:"skipped"`
	Gold    int64 `json:"gold"`
}

// paySalariesTx pays office holders from their location's treasury,
// skipping any treasury that cannot cover the salary.
func (s *Service) paySalariesTx(ctx context.Context, tx pgx.Tx) (SalaryReport, error) {
	var rep SalaryReport
	rows, err := tx.Query(ctx, `
		SELECT pr.player_id, l.id, l.kind, l.treasury
		FROM realm.player_roles pr JOIN realm.locations l ON l.id = pr.location_id
		ORDER BY l.id
		FOR UPDATE OF l
	`)
	if err != nil {
		return rep, err
	}
	type holder struct {
		player, loc int64
		kind        string
		treasury    int64
	}
	var all []holder
	for rows.Next() {
		var h holder
		if err := rows.Scan(&h.player, &h.loc, &h.kind, &h.treasury); err != nil {
			rows.Close()
			return rep, err
		}
		all = append(all, h)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return rep, err
	}
	for _, h := range all {
		salary := s.rules.Offices[h.kind].Salary
		if salary <= 0 || h.treasury < salary {
			rep.Skipped++
			continue
		}
		p, err := lockPlayerTx(ctx, tx, h.player)
		if err != nil {
			return rep, err
		}
		if err := addTreasuryTx(ctx, tx, h.loc, -salary); err != nil {
			return rep, err
		}
		if err := adjustGoldTx(ctx, tx, &p, salary, fmt.Sprintf("treasury:%d", h.loc), "office_salary"); err != nil {
			return rep, err
		}
		rep.Paid++
		rep.Gold += salary
	}
	return rep, nil
}
