package game

import (
	"context"
	"sort"

	"github.com/jackc/pgx/v5"

	"hearthrealm/internal/rules"
)

type NPC struct {
	ID          int64  `json:"id"`
	LocationID  int64  `json:"location_id"`
	Name        string `json:"name"`
	Gender      string `json:"gender"`
	BirthYear   int    `json:"birth_year"`
	SpouseID    int64  `json:"spouse_id,omitempty"`
	WeeksHungry int    `json:"weeks_hungry"`
	Alive       bool   `json:"alive"`
	DeathCause  string `json:"death_cause,omitempty"`
}

func (n *NPC) Age(year int) int { return year - n.BirthYear }

var (
	femaleNames = []string{"Ada", "Brenna", "Cecily", "Edith", "Elspeth", "Greta", "Hilda", "Isolde", "Maud", "Rowena", "Sybil", "Wynne"}
	maleNames   = []string{"Aldric", "Bram", "Cedric", "Dunstan", "Edmund", "Godric", "Hamon", "Osric", "Piers", "Roland", "Tobin", "Wat"}
	surnames    = []string{"Ashdown", "Barrow", "Cooper", "Fletcher", "Hale", "Marsh", "Miller", "Reeve", "Thatcher", "Underwood", "Weaver", "Wright"}
)

func randomName(rng Roller, gender string) string {
	first := maleNames
	if gender == "female" {
		first = femaleNames
	}
	return first[rng.Intn(len(first))] + " " + surnames[rng.Intn(len(surnames))]
}

func randomGender(rng Roller) string {
	if rng.Intn(2) == 0 {
		return "female"
	}
	return "male"
}

// SeedPopulation creates n founding villagers with ages spread from infants
// to elders, most of them adults.
func SeedPopulation(rng Roller, n, year, adultAge int) []NPC {
	out := make([]NPC, 0, n)
	for i := 0; i < n; i++ {
		age := adultAge + rng.Intn(40)
		if i%4 == 3 {
			age = rng.Intn(adultAge)
		}
		gender := "female"
		if i%2 == 1 {
			gender = "male"
		}
		out = append(out, NPC{Name: randomName(rng, gender), Gender: gender, BirthYear: year - age, Alive: true})
	}
	return out
}

// DeathChance is the weekly chance an NPC of age dies of natural causes.
func DeathChance(r *rules.Rules, age int) float64 {
	for _, b := range r.NPC.DeathChance {
		if age < b.BelowAge {
			return b.Chance
		}
	}
	if n := len(r.NPC.DeathChance); n > 0 {
		return r.NPC.DeathChance[n-1].Chance
	}
	return 0
}

type LifeResult struct {
	Deaths    []*NPC     `json:"-"`
	Marriages [][2]*NPC  `json:"-"`
	Births    []NPC      `json:"-"`
	Summary   LifeCounts `json:"summary"`
}

type LifeCounts struct {
	Deaths    int `json:"deaths"`
	Marriages int `json:"marriages"`
	Births    int `json:"births"`
}

// SimulateLife runs one week of aging, marriage and births for the living
// NPCs of one settlement. npcs is mutated in place.
func SimulateLife(r *rules.Rules, rng Roller, year, capacity int, fullyFed bool, npcs []*NPC) LifeResult {
	var res LifeResult
	sort.Slice(npcs, func(i, j int) bool { return npcs[i].ID < npcs[j].ID })
	byID := make(map[int64]*NPC, len(npcs))
	for _, n := range npcs {
		byID[n.ID] = n
	}

	for _, n := range npcs {
		if !n.Alive {
			continue
		}
		if rng.Float64() < DeathChance(r, n.Age(year)) {
			n.Alive = false
			n.DeathCause = "old age"
			res.Deaths = append(res.Deaths, n)
		}
	}
	// Widowed NPCs may marry again.
	for _, n := range npcs {
		if !n.Alive || n.SpouseID == 0 {
			continue
		}
		if sp, ok := byID[n.SpouseID]; !ok || !sp.Alive {
			n.SpouseID = 0
		}
	}

	eligible := func(n *NPC) bool {
		age := n.Age(year)
		return n.Alive && n.SpouseID == 0 && age >= r.NPC.AdultAge && age <= r.NPC.MarriageMaxAge
	}
	for _, n := range npcs {
		if !eligible(n) || rng.Float64() >= r.NPC.MarriageChance {
			continue
		}
		for _, m := range npcs {
			if m == n || m.Gender == n.Gender || !eligible(m) {
				continue
			}
			n.SpouseID, m.SpouseID = m.ID, n.ID
			res.Marriages = append(res.Marriages, [2]*NPC{n, m})
			break
		}
	}

	alive := 0
	for _, n := range npcs {
		if n.Alive {
			alive++
		}
	}
	if fullyFed {
		for _, n := range npcs {
			if alive >= capacity {
				break
			}
			age := n.Age(year)
			if !n.Alive || n.Gender != "female" || n.SpouseID == 0 || age < r.NPC.AdultAge || age > r.NPC.FertileMaxAge {
				continue
			}
			if sp, ok := byID[n.SpouseID]; !ok || !sp.Alive {
				continue
			}
			if rng.Float64() < r.NPC.BirthChance {
				g := randomGender(rng)
				res.Births = append(res.Births, NPC{LocationID: n.LocationID, Name: randomName(rng, g), Gender: g, BirthYear: year, Alive: true})
				alive++
			}
		}
	}
	res.Summary = LifeCounts{Deaths: len(res.Deaths), Marriages: len(res.Marriages), Births: len(res.Births)}
	return res
}

func loadNPCsTx(ctx context.Context, q querier, locationID int64) ([]*NPC, error) {
	rows, err := q.Query(ctx, `
		SELECT id, location_id, name, gender, birth_year, COALESCE(spouse_id, 0), weeks_hungry
		FROM realm.location_npcs
		WHERE location_id = $1 AND alive
		ORDER BY id
	`, locationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*NPC
	for rows.Next() {
		n := &NPC{Alive: true}
		if err := rows.Scan(&n.ID, &n.LocationID, &n.Name, &n.Gender, &n.BirthYear, &n.SpouseID, &n.WeeksHungry); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// saveNPCsTx writes back hunger, marriages, deaths and location moves.
func saveNPCsTx(ctx context.Context, tx pgx.Tx, year int, npcs []*NPC) error {
	batch := &pgx.Batch{}
	for _, n := range npcs {
		var spouse any
		if n.SpouseID != 0 {
			spouse = n.SpouseID
		}
		if n.Alive {
			batch.Queue(`
				UPDATE realm.location_npcs SET location_id = $2, spouse_id = $3, weeks_hungry = $4 WHERE id = $1
			`, n.ID, n.LocationID, spouse, n.WeeksHungry)
			continue
		}
		batch.Queue(`
			UPDATE realm.location_npcs
			SET alive = FALSE, died_year = $2, death_cause = $3, weeks_hungry = $4, spouse_id = $5
			WHERE id = $1
		`, n.ID, year, n.DeathCause, n.WeeksHungry, spouse)
	}
	if batch.Len() == 0 {
		return nil
	}
	return tx.SendBatch(ctx, batch).Close()
}

func insertBirthsTx(ctx context.Context, tx pgx.Tx, births []NPC) error {
	if len(births) == 0 {
		return nil
	}
	rows := make([][]any, 0, len(births))
	for _, b := range births {
		rows = append(rows, []any{b.LocationID, b.Name, b.Gender, b.BirthYear})
	}
	_, err := tx.CopyFrom(ctx,
		pgx.Identifier{"realm", "location_npcs"},
		[]string{"location_id", "name", "gender", "birth_year"},
		pgx.CopyFromRows(rows),
	)
	return err
}
