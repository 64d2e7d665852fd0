package game

import "testing"

func TestFoodNeedBySeason(t *testing.T) {
	r := testRules(t)
	if got := FoodNeed(r, "spring"); got != 7 {
		t.Fatalf("spring need = %d, want 7", got)
	}
	if got := FoodNeed(r, "winter"); got != 9 {
		t.Fatalf("winter need = %d, want 9", got)
	}
}

func TestFeedSettlementEatsMostPerishableFirst(t *testing.T) {
	r := testRules(t)
	stock := map[string]int64{"raw_fish": 3, "grain": 100, "logs": 50}
	npcs := []*NPC{
		{ID: 1, BirthYear: 1, Alive: true, WeeksHungry: 2},
		{ID: 2, BirthYear: 5, Alive: true},
	}
	res := FeedSettlement(r, "spring", 30, stock, npcs)
	if !res.FullyFed || res.Need != 14 || res.Fed != 2 {
		t.Fatalf("unexpected result %+v", res)
	}
	if res.Consumed["raw_fish"] != 3 || res.Consumed["grain"] != 8 {
		t.Fatalf("consumed = %+v", res.Consumed)
	}
	if stock["raw_fish"] != 0 || stock["grain"] != 92 || stock["logs"] != 50 {
		t.Fatalf("stock = %+v", stock)
	}
	if npcs[0].WeeksHungry != 0 {
		t.Fatalf("fed NPC should no longer be hungry")
	}
}

func TestFeedSettlementShortageFeedsYoungestFirst(t *testing.T) {
	r := testRules(t)
	stock := map[string]int64{"grain": 10}
	elder := &NPC{ID: 1, BirthYear: 1, Alive: true}
	adult := &NPC{ID: 2, BirthYear: 20, Alive: true, WeeksHungry: 2}
	child := &NPC{ID: 3, BirthYear: 30, Alive: true}
	dead := &NPC{ID: 4, BirthYear: 10}

	res := FeedSettlement(r, "spring", 40, stock, []*NPC{elder, adult, child, dead})
	if res.FullyFed || res.Need != 21 || res.Nourishment != 10 {
		t.Fatalf("unexpected result %+v", res)
	}
	if child.WeeksHungry != 0 || res.Fed != 1 || res.Hungry != 2 {
		t.Fatalf("child should be fed first: %+v", res)
	}
	if elder.WeeksHungry != 1 || !elder.Alive {
		t.Fatalf("elder = %+v", elder)
	}
	if adult.Alive || adult.DeathCause != "starvation" || len(res.Starved) != 1 {
		t.Fatalf("adult hungry for %d weeks should starve: %+v", r.NPC.StarvationWeeks, adult)
	}
	if stock["grain"] != 0 {
		t.Fatalf("all grain should be eaten, %d left", stock["grain"])
	}
}

func TestFeedEmptySettlement(t *testing.T) {
	r := testRules(t)
	res := FeedSettlement(r, "winter", 1, map[string]int64{"grain": 5}, nil)
	if !res.FullyFed || res.Need != 0 || len(res.Consumed) != 0 {
		t.Fatalf("empty settlement result %+v", res)
	}
}

func TestFoodPerCapita(t *testing.T) {
	r := testRules(t)
	stock := map[string]int64{"grain": 10, "bread": 10, "logs": 100}
	if got := FoodPerCapita(r, stock, 4); got != 10 {
		t.Fatalf("food per capita = %f, want 10", got)
	}
	if got := FoodPerCapita(r, stock, 0); got != 40 {
		t.Fatalf("empty settlement per capita = %f, want 40", got)
	}
}
