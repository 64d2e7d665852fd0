package game

import "testing"

func TestNearestSettlement(t *testing.T) {
	from := SettlementSite{ID: 1}
	sites := []SettlementSite{
		from,
		{ID: 2, X: 10, Population: 5, Capacity: 10, FoodPerCapita: 20},
		{ID: 3, X: 3, Population: 5, Capacity: 10, FoodPerCapita: 1},
		{ID: 4, X: 5, Population: 10, Capacity: 10, FoodPerCapita: 20},
		{ID: 5, X: 12, Population: 0, Capacity: 10, FoodPerCapita: 50},
	}
	got, ok := NearestSettlement(from, sites, 7)
	if !ok || got.ID != 4 {
		t.Fatalf("nearest = %+v %v, want settlement 4", got, ok)
	}
	if _, ok := NearestSettlement(from, sites[:4], 100); ok {
		t.Fatalf("no settlement has enough food")
	}
}

func TestNearestSettlementIgnoresCrowding(t *testing.T) {
	from := SettlementSite{ID: 1}
	sites := []SettlementSite{
		{ID: 2, X: 1, Population: 10, Capacity: 10, FoodPerCapita: 50},
		{ID: 3, X: 9, Population: 1, Capacity: 10, FoodPerCapita: 50},
	}
	got, ok := NearestSettlement(from, sites, 7)
	if !ok || got.ID != 2 {
		t.Fatalf("nearest = %+v %v, want the closer full settlement 2", got, ok)
	}
}

func TestPlanEmigration(t *testing.T) {
	r := testRules(t)
	npcs := []*NPC{
		{ID: 1, LocationID: 1, SpouseID: 3, WeeksHungry: 1, Alive: true},
		{ID: 2, LocationID: 1, WeeksHungry: 2, Alive: true},
		{ID: 3, LocationID: 1, SpouseID: 1, Alive: true},
		{ID: 4, LocationID: 1, Alive: true},
	}
	moved := PlanEmigration(r, fixedRoller(0.1), npcs, 7)
	if len(moved) != 3 {
		t.Fatalf("moved %d, want 3", len(moved))
	}
	for _, id := range []int{0, 1, 2} {
		if npcs[id].LocationID != 7 {
			t.Fatalf("npc %d stayed behind", npcs[id].ID)
		}
	}
	if npcs[3].LocationID != 1 {
		t.Fatalf("fed NPC without hungry family left")
	}
}

func TestPlanEmigrationNeedsWidespreadHunger(t *testing.T) {
	r := testRules(t)
	npcs := []*NPC{
		{ID: 1, LocationID: 1, WeeksHungry: 1, Alive: true},
		{ID: 2, LocationID: 1, Alive: true},
		{ID: 3, LocationID: 1, Alive: true},
		{ID: 4, LocationID: 1, Alive: true},
	}
	if moved := PlanEmigration(r, fixedRoller(0), npcs, 7); moved != nil {
		t.Fatalf("a quarter hungry is below the threshold, moved %d", len(moved))
	}
}
