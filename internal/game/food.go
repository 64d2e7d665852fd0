package game

import (
	"math"
	"sort"

	"hearthrealm/internal/rules"
)

type FeedResult struct {
	Need        int64            `json:"need"`
	Nourishment int64            `json:"nourishment"`
	Consumed    map[string]int64 `json:"consumed"`
	FullyFed    bool             `json:"fully_fed"`
	Fed         int              `json:"fed"`
	Hungry      int              `json:"hungry"`
	Starved     []*NPC           `json:"-"`
}

// FoodNeed is the weekly nourishment one NPC requires in season.
func FoodNeed(r *rules.Rules, season string) int64 {
	return int64(math.Ceil(float64(r.NPC.FoodPerWeek) * r.Season(season).FoodNeedMultiplier))
}

// FeedSettlement consumes food from stock, most perishable first, and
// updates each NPC's hunger. stock is mutated. When food runs short the
// youngest are fed first; NPCs hungry for too long starve.
func FeedSettlement(r *rules.Rules, season string, year int, stock map[string]int64, npcs []*NPC) FeedResult {
	res := FeedResult{Consumed: make(map[string]int64)}
	living := make([]*NPC, 0, len(npcs))
	for _, n := range npcs {
		if n.Alive {
			living = append(living, n)
		}
	}
	per := FoodNeed(r, season)
	res.Need = per * int64(len(living))
	if len(living) == 0 {
		res.FullyFed = true
		return res
	}

	for _, item := range r.FoodItems() {
		remaining := res.Need - res.Nourishment
		if remaining <= 0 {
			break
		}
		have := stock[item]
		if have <= 0 {
			continue
		}
		value := int64(r.Items[item].FoodValue)
		units := (remaining + value - 1) / value
		if units > have {
			units = have
		}
		stock[item] -= units
		res.Consumed[item] += units
		res.Nourishment += units * value
	}

	res.FullyFed = res.Nourishment >= res.Need
	available := res.Nourishment
	if !res.FullyFed {
		sort.SliceStable(living, func(i, j int) bool { return living[i].BirthYear > living[j].BirthYear })
	}
	for _, n := range living {
		if res.FullyFed || available >= per {
			available -= per
			n.WeeksHungry = 0
			res.Fed++
			continue
		}
		n.WeeksHungry++
		res.Hungry++
		if n.WeeksHungry >= r.NPC.StarvationWeeks {
			n.Alive = false
			n.DeathCause = "starvation"
			res.Starved = append(res.Starved, n)
		}
	}
	return res
}

// FoodPerCapita is the nourishment in stock per resident.
func FoodPerCapita(r *rules.Rules, stock map[string]int64, population int) float64 {
	var total int64
	for item, qty := range stock {
		total += qty * int64(r.Items[item].FoodValue)
	}
	if population <= 0 {
		return float64(total)
	}
	return float64(total) / float64(population)
}
