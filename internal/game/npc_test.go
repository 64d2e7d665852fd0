package game

import "testing"

func TestDeathChanceBrackets(t *testing.T) {
	r := testRules(t)
	tests := []struct {
		age  int
		want float64
	}{
		{10, 0.0005},
		{49, 0.0005},
		{50, 0.002},
		{70, 0.01},
		{300, 0.04},
	}
	for _, tc := range tests {
		if got := DeathChance(r, tc.age); got != tc.want {
			t.Fatalf("DeathChance(%d) = %f, want %f", tc.age, got, tc.want)
		}
	}
}

func TestSeedPopulation(t *testing.T) {
	npcs := SeedPopulation(fixedRoller(0.5), 8, 100, 18)
	if len(npcs) != 8 {
		t.Fatalf("seeded %d, want 8", len(npcs))
	}
	for i, n := range npcs {
		if !n.Alive || n.Name == "" {
			t.Fatalf("npc %d = %+v", i, n)
		}
		adult := n.Age(100) >= 18
		if i%4 == 3 && adult {
			t.Fatalf("every fourth villager is a child, got %+v", n)
		}
		if i%4 != 3 && !adult {
			t.Fatalf("villager %d should be an adult, got %+v", i, n)
		}
	}
}

func TestSimulateLifeMarriageAndBirth(t *testing.T) {
	r := testRules(t)
	her := &NPC{ID: 1, LocationID: 9, Gender: "female", BirthYear: 80, Alive: true}
	him := &NPC{ID: 2, LocationID: 9, Gender: "male", BirthYear: 78, Alive: true}

	res := SimulateLife(r, fixedRoller(0.01), 100, 10, true, []*NPC{him, her})
	if res.Summary.Deaths != 0 || res.Summary.Marriages != 1 || res.Summary.Births != 1 {
		t.Fatalf("summary = %+v", res.Summary)
	}
	if her.SpouseID != 2 || him.SpouseID != 1 {
		t.Fatalf("expected a married couple, got %d and %d", her.SpouseID, him.SpouseID)
	}
	baby := res.Births[0]
	if baby.LocationID != 9 || baby.BirthYear != 100 || baby.Gender != "female" || baby.Name != "Ada Ashdown" {
		t.Fatalf("baby = %+v", baby)
	}
}

func TestSimulateLifeNoBirthsWhenHungryOrFull(t *testing.T) {
	r := testRules(t)
	couple := func() []*NPC {
		return []*NPC{
			{ID: 1, Gender: "female", BirthYear: 80, SpouseID: 2, Alive: true},
			{ID: 2, Gender: "male", BirthYear: 80, SpouseID: 1, Alive: true},
		}
	}
	if res := SimulateLife(r, fixedRoller(0.01), 100, 10, false, couple()); len(res.Births) != 0 {
		t.Fatalf("hungry settlements have no births")
	}
	if res := SimulateLife(r, fixedRoller(0.01), 100, 2, true, couple()); len(res.Births) != 0 {
		t.Fatalf("full settlements have no births")
	}
}

func TestSimulateLifeWidowsCanRemarry(t *testing.T) {
	r := testRules(t)
	widow := &NPC{ID: 1, Gender: "female", BirthYear: 60, SpouseID: 2, Alive: true}
	elder := &NPC{ID: 2, Gender: "male", BirthYear: 10, SpouseID: 1, Alive: true}
	rng := &scriptedRoller{floats: []float64{0.5, 0.0}}

	res := SimulateLife(r, rng, 100, 10, false, []*NPC{widow, elder})
	if elder.Alive || elder.DeathCause != "old age" || res.Summary.Deaths != 1 {
		t.Fatalf("elder should die of old age: %+v", elder)
	}
	if widow.SpouseID != 0 {
		t.Fatalf("widow still married to %d", widow.SpouseID)
	}
}
