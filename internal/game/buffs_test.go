package game

import (
	"math"
	"testing"
)

func TestHouseBuffs(t *testing.T) {
	r := testRules(t)
	furniture := []string{"straw_bed", "hearth", "anvil", "altar", "missing"}
	b := HouseBuffs(r, 80, furniture)
	if b.EnergyRegen != 2 || b.HPRegen != 2 {
		t.Fatalf("regen buffs = %+v", b)
	}
	if b.XPBonus["smithing"] != 5 || b.XPBonus["prayer"] != 10 {
		t.Fatalf("xp buffs = %+v", b.XPBonus)
	}
	if worn := HouseBuffs(r, r.HouseBuffMinCondition-1, furniture); worn.EnergyRegen != 0 || worn.XPBonus != nil {
		t.Fatalf("a worn house grants nothing, got %+v", worn)
	}
}

func TestHQBuffs(t *testing.T) {
	r := testRules(t)
	b := HQBuffs(r, 2)
	if b.XPBonus["prayer"] != 10 || b.DevotionBonus != 5 || b.HPRegen != 1 {
		t.Fatalf("tier 2 buffs = %+v", b)
	}
	if none := HQBuffs(r, 0); none.HPRegen != 0 || none.XPBonus != nil {
		t.Fatalf("an unbuilt HQ grants nothing, got %+v", none)
	}
	merged := HouseBuffs(r, 100, []string{"altar"}).merge(b)
	if merged.XPBonus["prayer"] != 20 || merged.HPRegen != 1 {
		t.Fatalf("merged buffs = %+v", merged)
	}
}

func TestTravelCost(t *testing.T) {
	r := testRules(t)
	if d := Distance(0, 0, 3, 4); d != 5 {
		t.Fatalf("distance = %f, want 5", d)
	}
	d := Distance(2, 3, 6, 1)
	if math.Abs(d-4.4721) > 0.001 {
		t.Fatalf("distance = %f", d)
	}
	if got := TravelCost(r, d); got != 15 {
		t.Fatalf("travel cost = %d, want 15", got)
	}
	if got := TravelCost(r, 0); got != r.Travel.BaseEnergy {
		t.Fatalf("zero distance costs %d, want base %d", got, r.Travel.BaseEnergy)
	}
}

func TestRepairCost(t *testing.T) {
	if got := RepairCost(2, 90); got != 20 {
		t.Fatalf("repair = %d, want 20", got)
	}
	if got := RepairCost(8, 100); got != 0 {
		t.Fatalf("a pristine house costs %d to repair", got)
	}
}

func TestSuccessChance(t *testing.T) {
	r := testRules(t)
	chop := r.Actions["chop_logs"]
	if got := SuccessChance(chop, 1); math.Abs(got-0.505) > 1e-9 {
		t.Fatalf("level 1 chance = %f", got)
	}
	if got := SuccessChance(chop, 99); got != 0.95 {
		t.Fatalf("chance must cap at 0.95, got %f", got)
	}
}
