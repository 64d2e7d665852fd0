package game

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/jackc/pgx/v5"
)

const jobCollectTaxes = "collect_taxes"

type TaxReport struct {
	Period    string `json:"period"`
	Taxpayers int    `json:"taxpayers"`
	Collected int64  `json:"collected"`
	Forwarded int64  `json:"forwarded"`
}

// IncomeTax is what a player holding gold owes at ratePct, capped per week.
func IncomeTax(gold int64, ratePct int, maxPerWeek int64) int64 {
	if gold <= 0 || ratePct <= 0 {
		return 0
	}
	tax := gold * int64(ratePct) / 100
	if maxPerWeek > 0 && tax > maxPerWeek {
		tax = maxPerWeek
	}
	return tax
}

// ForwardShare is the part of a settlement's receipts owed to its liege.
func ForwardShare(receipts int64, share float64) int64 {
	if receipts <= 0 || share <= 0 {
		return 0
	}
	return int64(math.Floor(float64(receipts) * share))
}

// CollectTaxes runs the weekly tax collection for period once.
func (s *Service) CollectTaxes(ctx context.Context, period string) (TaxReport, error) {
	var rep TaxReport
	err := s.inTx(ctx, pgx.ReadCommitted, func(tx pgx.Tx) error {
		var err error
		rep, err = s.collectTaxesTx(ctx, tx, period)
		return err
	})
	if err != nil {
		return rep, err
	}
	s.log.Info("taxes collected", "period", period, "taxpayers", rep.Taxpayers, "collected", rep.Collected)
	return rep, nil
}

func (s *Service) collectTaxesTx(ctx context.Context, tx pgx.Tx, period string) (TaxReport, error) {
	rep := TaxReport{Period: period}
	if err := claimJobRun(ctx, tx, jobCollectTaxes, period, rep); err != nil {
		return rep, err
	}
	rows, err := tx.Query(ctx, `
		SELECT p.id, p.home_location_id, l.tax_rate, l.parent_id
		FROM realm.players p JOIN realm.locations l ON l.id = p.home_location_id
		WHERE p.gold > 0 AND l.tax_rate > 0
		ORDER BY p.id
	`)
	if err != nil {
		return rep, err
	}
	type payer struct {
		id, home int64
		rate     int
		parent   *int64
	}
	var payers []payer
	for rows.Next() {
		var py payer
		if err := rows.Scan(&py.id, &py.home, &py.rate, &py.parent); err != nil {
			rows.Close()
			return rep, err
		}
		payers = append(payers, py)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return rep, err
	}

	receipts := make(map[int64]int64)
	parents := make(map[int64]*int64)
	for _, py := range payers {
		p, err := lockPlayerTx(ctx, tx, py.id)
		if err != nil {
			return rep, err
		}
		tax := IncomeTax(p.Gold, py.rate, s.rules.Tax.MaxPerWeek)
		if tax == 0 {
			continue
		}
		if err := adjustGoldTx(ctx, tx, &p, -tax, fmt.Sprintf("treasury:%d", py.home), "income_tax"); err != nil {
			return rep, err
		}
		receipts[py.home] += tax
		parents[py.home] = py.parent
		rep.Taxpayers++
		rep.Collected += tax
	}
	for loc, amount := range receipts {
		fwd := int64(0)
		if parent := parents[loc]; parent != nil {
			fwd = ForwardShare(amount, s.rules.Tax.ForwardShare)
			if err := addTreasuryTx(ctx, tx, *parent, fwd); err != nil {
				return rep, err
			}
		}
		if err := addTreasuryTx(ctx, tx, loc, amount-fwd); err != nil {
			return rep, err
		}
		rep.Forwarded += fwd
	}
	return rep, updateJobSummary(ctx, tx, jobCollectTaxes, period, rep)
}

// IsAlreadyRan reports whether err means the job was done for its period.
func IsAlreadyRan(err error) bool {
	return errors.Is(err, ErrAlreadyRan)
}
