package game

import (
	"testing"

	"hearthrealm/internal/rules"
)

func TestHitChance(t *testing.T) {
	low := HitChance(1, 0, 1, 0)
	if low < 0.44 || low > 0.45 {
		t.Fatalf("even fight hit chance = %f", low)
	}
	high := HitChance(99, 10, 1, 0)
	if high < 0.95 || high >= 1 {
		t.Fatalf("strong attacker hit chance = %f", high)
	}
	if HitChance(10, 0, 10, 20) >= HitChance(10, 0, 10, 0) {
		t.Fatalf("defence bonus must lower the hit chance")
	}
}

func TestMaxHit(t *testing.T) {
	tests := []struct {
		level, bonus, want int
	}{
		{1, 0, 1},
		{99, 0, 11},
		{1, 6, 1},
		{40, 9, 5},
	}
	for _, tc := range tests {
		if got := MaxHit(tc.level, tc.bonus); got != tc.want {
			t.Fatalf("MaxHit(%d, %d) = %d, want %d", tc.level, tc.bonus, got, tc.want)
		}
	}
}

func TestStyleSkillAndKillXP(t *testing.T) {
	for style, skill := range map[string]string{"stab": "attack", "slash": "strength", "crush": "defence"} {
		if got := StyleSkill(style); got != skill {
			t.Fatalf("StyleSkill(%s) = %s, want %s", style, got, skill)
		}
	}
	styleXP, hpXP := KillXP(5)
	if styleXP != 20 || hpXP != 6 {
		t.Fatalf("KillXP(5) = %d, %d", styleXP, hpXP)
	}
}

func TestRollLoot(t *testing.T) {
	r := testRules(t)
	goblin := r.Monsters["goblin"].Loot

	got, ok := RollLoot(&scriptedRoller{ints: []int{0}}, goblin)
	if !ok || got != (rules.ItemQty{Item: "bones", Qty: 1}) {
		t.Fatalf("expected bones, got %+v %v", got, ok)
	}
	got, ok = RollLoot(&scriptedRoller{ints: []int{22, 2}}, goblin)
	if !ok || got != (rules.ItemQty{Item: "wheat_seed", Qty: 3}) {
		t.Fatalf("expected 3 wheat seed, got %+v %v", got, ok)
	}
	if _, ok := RollLoot(&scriptedRoller{ints: []int{30}}, goblin); ok {
		t.Fatalf("expected the empty drop")
	}
	if _, ok := RollLoot(&scriptedRoller{}, nil); ok {
		t.Fatalf("an empty table drops nothing")
	}
}

func TestStyleDefence(t *testing.T) {
	wolf := testRules(t).Monsters["wolf"]
	if wolf.StyleDefence("slash") != 15 || wolf.StyleDefence("crush") != 2 {
		t.Fatalf("unexpected wolf defences %+v", wolf)
	}
}

func TestPlayRound(t *testing.T) {
	r := testRules(t)
	goblin := r.Monsters["goblin"]
	levels := map[string]int{"attack": 1, "strength": 1, "defence": 1}
	loss := r.Vitals.DefeatGoldLoss

	t.Run("defeat", func(t *testing.T) {
		inv := NewInventory(r.Inventory.Slots, r.Items, nil)
		rng := &scriptedRoller{floats: []float64{0.99, 0}, ints: []int{2}}
		got := PlayRound(rng, goblin, unarmed, levels, goblin.HP, 2, 155, loss, inv)
		if got.Status != CombatLost || got.PlayerHP != 1 || got.GoldLost != 15 {
			t.Fatalf("got %+v, want lost on 1 hp less 15 gold", got)
		}
		if got.PlayerHit || !got.MonsterHit || got.MonsterDamage != 2 || got.MonsterHP != goblin.HP {
			t.Fatalf("unexpected blows %+v", got)
		}
	})

	t.Run("both standing", func(t *testing.T) {
		inv := NewInventory(r.Inventory.Slots, r.Items, nil)
		rng := &scriptedRoller{floats: []float64{0, 0}, ints: []int{1, 2}}
		got := PlayRound(rng, goblin, unarmed, levels, goblin.HP, 50, 155, loss, inv)
		if got.Status != CombatActive || got.MonsterHP != goblin.HP-1 || got.PlayerHP != 48 || got.GoldLost != 0 {
			t.Fatalf("got %+v", got)
		}
	})

	t.Run("win with room for loot", func(t *testing.T) {
		inv := NewInventory(r.Inventory.Slots, r.Items, nil)
		rng := &scriptedRoller{floats: []float64{0}, ints: []int{1, 0}}
		got := PlayRound(rng, goblin, unarmed, levels, 1, 50, 155, loss, inv)
		if got.Status != CombatWon || got.MonsterHP != 0 || got.PlayerDamage != 1 {
			t.Fatalf("got %+v", got)
		}
		if got.Loot == nil || got.LootDropped || inv.Count("bones") != 1 {
			t.Fatalf("loot %+v dropped=%v bones=%d", got.Loot, got.LootDropped, inv.Count("bones"))
		}
	})

	t.Run("win with a full bag drops loot", func(t *testing.T) {
		inv := NewInventory(1, r.Items, []Stack{{Slot: 0, Item: "logs", Quantity: 3}})
		rng := &scriptedRoller{floats: []float64{0}, ints: []int{1, 0}}
		got := PlayRound(rng, goblin, unarmed, levels, 1, 50, 155, loss, inv)
		if got.Status != CombatWon || got.Loot == nil || !got.LootDropped {
			t.Fatalf("got %+v", got)
		}
		if inv.Count("bones") != 0 || inv.Count("logs") != 3 {
			t.Fatalf("a dropped loot roll changed the bag")
		}
	})

	t.Run("damage capped at remaining hp", func(t *testing.T) {
		inv := NewInventory(r.Inventory.Slots, r.Items, nil)
		sword := rules.Weapon{Style: "slash", AttackBonus: 50, StrengthBonus: 50}
		rng := &scriptedRoller{floats: []float64{0}, ints: []int{9, 3}}
		got := PlayRound(rng, goblin, sword, map[string]int{"attack": 60, "strength": 60}, 4, 50, 0, loss, inv)
		if got.PlayerDamage != 4 || got.MonsterHP != 0 {
			t.Fatalf("got %+v", got)
		}
	})
}
