package game

import (
	"math"

	"hearthrealm/internal/rules"
)

// DecayedAmount is how many units of a stockpile rot in one week.
func DecayedAmount(qty int64, rate, seasonMult float64) int64 {
	f := rate * seasonMult
	if qty <= 0 || f <= 0 {
		return 0
	}
	lost := int64(math.Ceil(float64(qty) * f))
	if lost > qty {
		lost = qty
	}
	return lost
}

// DecayStockpile applies a week of decay to stock in place and returns the
// losses per item.
func DecayStockpile(r *rules.Rules, season string, stock map[string]int64) map[string]int64 {
	mult := r.Season(season).DecayMultiplier
	lost := make(map[string]int64)
	for item, qty := range stock {
		if n := DecayedAmount(qty, r.Items[item].DecayRate, mult); n > 0 {
			stock[item] = qty - n
			lost[item] = n
		}
	}
	return lost
}

// NextHouseCondition wears a house down by the season's decay, offset by
// any maids on staff.
func NextHouseCondition(r *rules.Rules, season string, condition, maids int) int {
	next := condition - r.Season(season).HouseDecay + maids*r.Servants["maid"].ConditionPerWeek
	return clamp(next, 0, 100)
}

// CropReady reports whether a plot planted in week plantedIdx can be
// harvested at nowIdx.
func CropReady(c rules.Crop, plantedIdx, nowIdx int) bool {
	return nowIdx-plantedIdx >= c.GrowthWeeks
}

// CropWithered reports whether a ready crop has been left too long.
func CropWithered(c rules.Crop, plantedIdx, nowIdx int) bool {
	return nowIdx-plantedIdx > c.GrowthWeeks+c.WitherWeeks
}
