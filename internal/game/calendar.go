package game

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"hearthrealm/internal/rules"
)

// Calendar is the world date. Day is the day of the year, 1-based.
type Calendar struct {
	Year   int    `json:"year"`
	Season string `json:"season"`
	Week   int    `json:"week"`
	Day    int    `json:"day"`
}

func FirstCalendar(r *rules.Rules) Calendar {
	return Calendar{Year: 1, Season: r.Calendar.Seasons[0].Name, Week: 1, Day: 1}
}

func seasonIndex(r *rules.Rules, name string) int {
	for i, s := range r.Calendar.Seasons {
		if s.Name == name {
			return i
		}
	}
	return 0
}

// Next advances one week, rolling over seasons and years.
func (c Calendar) Next(r *rules.Rules) Calendar {
	return CalendarFromIndex(r, c.WeekIndex(r)+1)
}

// Prev is the week before c. ok is false for the very first week.
func (c Calendar) Prev(r *rules.Rules) (Calendar, bool) {
	idx := c.WeekIndex(r)
	if idx == 0 {
		return c, false
	}
	return CalendarFromIndex(r, idx-1), true
}

// WeekIndex counts weeks since year 1, spring, week 1.
func (c Calendar) WeekIndex(r *rules.Rules) int {
	wps := r.Calendar.WeeksPerSeason
	perYear := wps * len(r.Calendar.Seasons)
	return (c.Year-1)*perYear + seasonIndex(r, c.Season)*wps + (c.Week - 1)
}

func CalendarFromIndex(r *rules.Rules, idx int) Calendar {
	if idx < 0 {
		idx = 0
	}
	wps := r.Calendar.WeeksPerSeason
	perYear := wps * len(r.Calendar.Seasons)
	year := idx/perYear + 1
	inYear := idx % perYear
	return Calendar{
		Year:   year,
		Season: r.Calendar.Seasons[inYear/wps].Name,
		Week:   inYear%wps + 1,
		Day:    inYear*r.Calendar.DaysPerWeek + 1,
	}
}

// PeriodKey names the week for job and game bookkeeping.
func (c Calendar) PeriodKey() string {
	return fmt.Sprintf("y%d-%s-w%02d", c.Year, c.Season, c.Week)
}

func (c Calendar) String() string {
	return fmt.Sprintf("Year %d, %s week %d", c.Year, c.Season, c.Week)
}

func loadCalendarTx(ctx context.Context, q querier, lock bool) (Calendar, *time.Time, error) {
	var c Calendar
	var last *time.Time
	sql := `SELECT year, season, week, day, last_tick_at FROM realm.world_state WHERE id = 1`
	if lock {
		sql += ` FOR UPDATE`
	}
	err := q.QueryRow(ctx, sql).Scan(&c.Year, &c.Season, &c.Week, &c.Day, &last)
	if err == pgx.ErrNoRows {
		return c, nil, fmt.Errorf("%w: world state not seeded", ErrNotFound)
	}
	return c, last, err
}

func saveCalendarTx(ctx context.Context, tx pgx.Tx, c Calendar, tickedAt time.Time) error {
	_, err := tx.Exec(ctx, `
		UPDATE realm.world_state SET year = $1, season = $2, week = $3, day = $4, last_tick_at = $5 WHERE id = 1
	`, c.Year, c.Season, c.Week, c.Day, tickedAt)
	return err
}

func (s *Service) Calendar(ctx context.Context) (Calendar, error) {
	c, _, err := loadCalendarTx(ctx, s.db, false)
	return c, err
}
