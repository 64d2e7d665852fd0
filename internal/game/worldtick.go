package game

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"hearthrealm/internal/rules"
)

const jobWorldTick = "world_tick"

type TickReport struct {
	Period            string           `json:"period"`
	ClosedPeriod      string           `json:"closed_period"`
	Calendar          Calendar         `json:"calendar"`
	Settlements       []SettlementTick `json:"settlements"`
	HousesWorn        int              `json:"houses_worn"`
	PlotsHarvested    int              `json:"plots_harvested"`
	PlotsWithered     int              `json:"plots_withered"`
	PricesUpdated     int              `json:"prices_updated"`
	Wages             WageReport       `json:"wages"`
	Salaries          SalaryReport     `json:"salaries"`
	Taxes             *TaxReport       `json:"taxes,omitempty"`
	PetitionsApproved int              `json:"petitions_approved"`
	TickedAt          time.Time        `json:"ticked_at"`
}

type SettlementTick struct {
	Key        string           `json:"key"`
	Name       string           `json:"name"`
	Population int              `json:"population"`
	FoodNeed   int64            `json:"food_need"`
	FoodEaten  map[string]int64 `json:"food_eaten"`
	FullyFed   bool             `json:"fully_fed"`
	Hungry     int              `json:"hungry"`
	Starved    int              `json:"starved"`
	Life       LifeCounts       `json:"life"`
	Emigrated  int              `json:"emigrated"`
	Arrived    int              `json:"arrived"`
	Decayed    map[string]int64 `json:"decayed"`
}

type settlementState struct {
	site  SettlementSite
	key   string
	name  string
	npcs  []*NPC
	stock map[string]int64
	feed  FeedResult
	tick  *SettlementTick
}

// RunWorldTick advances the world by one week. Every step shares one
// transaction and the job_runs guard makes a week advance at most once.
// A tick sooner than minGap after the previous one fails with ErrCooldown.
func (s *Service) RunWorldTick(ctx context.Context, minGap time.Duration) (TickReport, error) {
	var rep TickReport
	err := s.inTx(ctx, pgx.ReadCommitted, func(tx pgx.Tx) error {
		var err error
		rep, err = s.worldTickTx(ctx, tx, minGap)
		return err
	})
	if err != nil {
		return rep, err
	}
	s.log.Info("world tick complete",
		"period", rep.Period,
		"settlements", len(rep.Settlements),
		"prices", rep.PricesUpdated,
		"petitions_approved", rep.PetitionsApproved,
	)
	return rep, nil
}

func (s *Service) worldTickTx(ctx context.Context, tx pgx.Tx, minGap time.Duration) (TickReport, error) {
	var rep TickReport
	now := s.now()
	closing, last, err := loadCalendarTx(ctx, tx, true)
	if err != nil {
		return rep, err
	}
	if last != nil && minGap > 0 && now.Sub(*last) < minGap {
		return rep, fmt.Errorf("%w: last tick at %s", ErrCooldown, last.Format(time.RFC3339))
	}
	next := closing.Next(s.rules)
	rep = TickReport{Period: next.PeriodKey(), ClosedPeriod: closing.PeriodKey(), Calendar: next, TickedAt: now}
	if err := claimJobRun(ctx, tx, jobWorldTick, rep.Period, map[string]any{"started_at": now}); err != nil {
		return rep, err
	}

	// 1. calendar
	if err := saveCalendarTx(ctx, tx, next, now); err != nil {
		return rep, err
	}

	// 2-3. food, then NPC life and emigration
	states, err := s.loadSettlementsTx(ctx, tx)
	if err != nil {
		return rep, err
	}
	for _, st := range states {
		st.feed = FeedSettlement(s.rules, next.Season, next.Year, st.stock, st.npcs)
		st.tick.FoodNeed = st.feed.Need
		st.tick.FoodEaten = st.feed.Consumed
		st.tick.FullyFed = st.feed.FullyFed
		st.tick.Hungry = st.feed.Hungry
		st.tick.Starved = len(st.feed.Starved)
	}
	var births []NPC
	for _, st := range states {
		life := SimulateLife(s.rules, s.rng, next.Year, st.site.Capacity, st.feed.FullyFed, st.npcs)
		st.tick.Life = life.Summary
		births = append(births, life.Births...)
	}
	for _, st := range states {
		st.site.Population = countAlive(st.npcs)
		st.site.FoodPerCapita = FoodPerCapita(s.rules, st.stock, st.site.Population)
	}
	sites := make([]SettlementSite, 0, len(states))
	for _, st := range states {
		sites = append(sites, st.site)
	}
	byID := make(map[int64]*settlementState, len(states))
	for _, st := range states {
		byID[st.site.ID] = st
	}
	for _, st := range states {
		dest, ok := NearestSettlement(st.site, sites, float64(s.rules.NPC.FoodPerWeek))
		if !ok {
			continue
		}
		moved := PlanEmigration(s.rules, s.rng, st.npcs, dest.ID)
		st.tick.Emigrated = len(moved)
		byID[dest.ID].tick.Arrived += len(moved)
	}
	for _, st := range states {
		if err := saveNPCsTx(ctx, tx, next.Year, st.npcs); err != nil {
			return rep, err
		}
	}
	if err := insertBirthsTx(ctx, tx, births); err != nil {
		return rep, err
	}

	// 4. decay
	for _, st := range states {
		st.tick.Decayed = DecayStockpile(s.rules, next.Season, st.stock)
		if err := saveStockpileTx(ctx, tx, st.site.ID, st.stock); err != nil {
			return rep, err
		}
	}
	if rep.HousesWorn, err = s.wearHousesTx(ctx, tx, next.Season); err != nil {
		return rep, err
	}
	if rep.PlotsHarvested, rep.PlotsWithered, err = s.tendGardensTx(ctx, tx, next.WeekIndex(s.rules)); err != nil {
		return rep, err
	}

	// 5. prices
	if rep.PricesUpdated, err = s.recomputePricesTx(ctx, tx); err != nil {
		return rep, err
	}

	// 6. upkeep
	if rep.Wages, err = s.payServantsTx(ctx, tx); err != nil {
		return rep, err
	}
	if rep.Salaries, err = s.paySalariesTx(ctx, tx); err != nil {
		return rep, err
	}
	taxes, err := s.collectTaxesTx(ctx, tx, rep.ClosedPeriod)
	switch {
	case err == nil:
		rep.Taxes = &taxes
	case !errors.Is(err, ErrAlreadyRan):
		return rep, err
	}
	if rep.PetitionsApproved, err = s.autoApprovePetitionsTx(ctx, tx, next.WeekIndex(s.rules)); err != nil {
		return rep, err
	}

	// 7. report
	for _, st := range states {
		st.tick.Population = countAlive(st.npcs) - st.tick.Emigrated + st.tick.Arrived + st.tick.Life.Births
		rep.Settlements = append(rep.Settlements, *st.tick)
	}
	if err := updateJobSummary(ctx, tx, jobWorldTick, rep.Period, rep); err != nil {
		return rep, err
	}
	return rep, publishEvent(ctx, tx, "world.tick", 0, rep)
}

func countAlive(npcs []*NPC) int {
	n := 0
	for _, npc := range npcs {
		if npc.Alive {
			n++
		}
	}
	return n
}

func (s *Service) loadSettlementsTx(ctx context.Context, tx pgx.Tx) ([]*settlementState, error) {
	rows, err := tx.Query(ctx, `
		SELECT id, key, name, x, y, capacity FROM realm.locations
		WHERE kind IN ('village', 'town')
		ORDER BY id
		FOR UPDATE
	`)
	if err != nil {
		return nil, err
	}
	var out []*settlementState
	for rows.Next() {
		st := &settlementState{}
		if err := rows.Scan(&st.site.ID, &st.key, &st.name, &st.site.X, &st.site.Y, &st.site.Capacity); err != nil {
			rows.Close()
			return nil, err
		}
		st.tick = &SettlementTick{Key: st.key, Name: st.name}
		out = append(out, st)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, st := range out {
		if st.npcs, err = loadNPCsTx(ctx, tx, st.site.ID); err != nil {
			return nil, err
		}
		if st.stock, err = loadStockpileTx(ctx, tx, st.site.ID); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (s *Service) wearHousesTx(ctx context.Context, tx pgx.Tx, season string) (int, error) {
	rows, err := tx.Query(ctx, `
		SELECT h.id, h.condition,
		       (SELECT COUNT(*) FROM realm.servants sv WHERE sv.house_id = h.id AND sv.servant_type = 'maid')
		FROM realm.player_houses h
		ORDER BY h.id
		FOR UPDATE OF h
	`)
	if err != nil {
		return 0, err
	}
	type house struct {
		id              int64
		condition, maid int
	}
	var houses []house
	for rows.Next() {
		var h house
		if err := rows.Scan(&h.id, &h.condition, &h.maid); err != nil {
			rows.Close()
			return 0, err
		}
		houses = append(houses, h)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}
	batch := &pgx.Batch{}
	for _, h := range houses {
		next := NextHouseCondition(s.rules, season, h.condition, h.maid)
		if next != h.condition {
			batch.Queue(`UPDATE realm.player_houses SET condition = $2 WHERE id = $1`, h.id, next)
		}
	}
	if batch.Len() == 0 {
		return 0, nil
	}
	return batch.Len(), tx.SendBatch(ctx, batch).Close()
}

// tendGardensTx lets gardeners bring in ready crops and clears plots that
// have withered.
func (s *Service) tendGardensTx(ctx context.Context, tx pgx.Tx, weekIdx int) (int, int, error) {
	rows, err := tx.Query(ctx, `
		SELECT g.id, g.crop_key, g.planted_week, h.player_id,
		       EXISTS (SELECT 1 FROM realm.servants sv WHERE sv.house_id = h.id AND sv.servant_type = 'gardener')
		FROM realm.garden_plots g
		JOIN realm.house_rooms r ON r.id = g.room_id
		JOIN realm.player_houses h ON h.id = r.house_id
		ORDER BY h.player_id, g.id
		FOR UPDATE OF g
	`)
	if err != nil {
		return 0, 0, err
	}
	type plot struct {
		id, player int64
		crop       string
		planted    int
		gardener   bool
	}
	var plots []plot
	for rows.Next() {
		var p plot
		if err := rows.Scan(&p.id, &p.crop, &p.planted, &p.player, &p.gardener); err != nil {
			rows.Close()
			return 0, 0, err
		}
		plots = append(plots, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, 0, err
	}

	harvested, withered := 0, 0
	invs := make(map[int64]*Inventory)
	for _, p := range plots {
		c := s.rules.Crops[p.crop]
		if p.gardener && CropReady(c, p.planted, weekIdx) {
			ok, err := s.gardenerHarvestTx(ctx, tx, invs, p.player, p.id, c)
			if err != nil {
				return harvested, withered, err
			}
			if ok {
				harvested++
				continue
			}
		}
		if CropWithered(c, p.planted, weekIdx) {
			if _, err := tx.Exec(ctx, `DELETE FROM realm.garden_plots WHERE id = $1`, p.id); err != nil {
				return harvested, withered, err
			}
			withered++
		}
	}
	for player, inv := range invs {
		if err := saveInventoryTx(ctx, tx, player, inv); err != nil {
			return harvested, withered, err
		}
	}
	return harvested, withered, nil
}

func (s *Service) gardenerHarvestTx(ctx context.Context, tx pgx.Tx, invs map[int64]*Inventory, playerID, plotID int64, c rules.Crop) (bool, error) {
	inv, ok := invs[playerID]
	if !ok {
		var err error
		if inv, err = s.loadInventoryTx(ctx, tx, playerID); err != nil {
			return false, err
		}
		invs[playerID] = inv
	}
	if err := inv.Add(c.Yield, c.YieldQty); err != nil {
		return false, nil
	}
	if _, err := tx.Exec(ctx, `DELETE FROM realm.garden_plots WHERE id = $1`, plotID); err != nil {
		return false, err
	}
	if _, err := s.awardXPTx(ctx, tx, playerID, "farming", c.XP); err != nil {
		return false, err
	}
	return true, nil
}
