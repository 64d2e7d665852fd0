package game

import (
	"math"

	"hearthrealm/internal/rules"
)

// SettlementSite is what emigration needs to know about a settlement.
type SettlementSite struct {
	ID            int64
	X, Y          float64
	Population    int
	Capacity      int
	FoodPerCapita float64
}

// NearestSettlement picks the closest other settlement whose food stock per
// resident reaches minFood.
func NearestSettlement(from SettlementSite, sites []SettlementSite, minFood float64) (SettlementSite, bool) {
	best := SettlementSite{}
	bestDist := math.Inf(1)
	for _, s := range sites {
		if s.ID == from.ID || s.FoodPerCapita < minFood {
			continue
		}
		if d := Distance(from.X, from.Y, s.X, s.Y); d < bestDist {
			best, bestDist = s, d
		}
	}
	return best, !math.IsInf(bestDist, 1)
}

// PlanEmigration moves hungry NPCs (and their spouses) out of a settlement
// where too many go hungry. It returns the NPCs that left; their
// LocationID is updated to dest.
func PlanEmigration(r *rules.Rules, rng Roller, npcs []*NPC, dest int64) []*NPC {
	living, hungry := 0, 0
	for _, n := range npcs {
		if !n.Alive {
			continue
		}
		living++
		if n.WeeksHungry > 0 {
			hungry++
		}
	}
	if living == 0 || float64(hungry)/float64(living) <= r.NPC.EmigrationHungryRatio {
		return nil
	}
	byID := make(map[int64]*NPC, len(npcs))
	for _, n := range npcs {
		byID[n.ID] = n
	}
	var moved []*NPC
	for _, n := range npcs {
		if !n.Alive || n.WeeksHungry == 0 || n.LocationID == dest {
			continue
		}
		if rng.Float64() >= r.NPC.EmigrationChance {
			continue
		}
		n.LocationID = dest
		moved = append(moved, n)
		if sp, ok := byID[n.SpouseID]; ok && sp.Alive && sp.LocationID != dest {
			sp.LocationID = dest
			moved = append(moved, sp)
		}
	}
	return moved
}
