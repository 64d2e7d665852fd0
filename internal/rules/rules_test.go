package rules

import (
	"strings"
	"testing"
)

func TestDefaultRulesLoad(t *testing.T) {
	r, err := Default()
	if err != nil {
		t.Fatalf("load default rules: %v", err)
	}
	if r.Inventory.Slots != 28 {
		t.Fatalf("slots = %d, want 28", r.Inventory.Slots)
	}
	spawn, ok := r.Location(r.SpawnLocation)
	if !ok || !IsSettlement(spawn.Kind) {
		t.Fatalf("spawn location %q must be a settlement", r.SpawnLocation)
	}
	if len(r.HQTiers) != 5 {
		t.Fatalf("hq tiers = %d, want 5", len(r.HQTiers))
	}
	if w := r.Items["bronze_dagger"].Weapon; w == nil || w.Style != "stab" {
		t.Fatalf("bronze dagger should be a stab weapon, got %+v", w)
	}
}

func TestParseRejectsSchemaViolations(t *testing.T) {
	cases := map[string]string{
		"missing sections": "spawn_location: x\n",
		"bad weapon style": strings.Replace(string(defaultRules), "style: stab", "style: poke", 1),
		"negative rake":    strings.Replace(string(defaultRules), "rake: 0.10", "rake: -1", 1),
	}
	for name, raw := range cases {
		if _, err := Parse([]byte(raw)); err == nil {
			t.Fatalf("%s: expected parse error", name)
		}
	}
}

func TestParseRejectsDanglingReferences(t *testing.T) {
	raw := strings.Replace(string(defaultRules), "parent: oakbarrow\n    x: 2", "parent: nowhere\n    x: 2", 1)
	if _, err := Parse([]byte(raw)); err == nil || !strings.Contains(err.Error(), "unknown parent") {
		t.Fatalf("expected unknown parent error, got %v", err)
	}
}

func TestFoodItemsMostPerishableFirst(t *testing.T) {
	r, err := Default()
	if err != nil {
		t.Fatal(err)
	}
	foods := r.FoodItems()
	if len(foods) == 0 {
		t.Fatalf("expected food items")
	}
	if foods[0] != "raw_fish" {
		t.Fatalf("first food = %q, want raw_fish", foods[0])
	}
	if foods[len(foods)-1] != "grain" {
		t.Fatalf("last food = %q, want grain", foods[len(foods)-1])
	}
	for _, f := range foods {
		if r.Items[f].FoodValue <= 0 {
			t.Fatalf("%q is not food", f)
		}
	}
}

func TestRankFor(t *testing.T) {
	r, err := Default()
	if err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		devotion int64
		want     string
	}{
		{0, "follower"},
		{99, "follower"},
		{100, "acolyte"},
		{500, "priest"},
		{9000, "priest"},
	}
	for _, tc := range tests {
		if got := r.RankFor(tc.devotion); got != tc.want {
			t.Fatalf("devotion=%d got %q want %q", tc.devotion, got, tc.want)
		}
	}
}

func TestSeasonFallback(t *testing.T) {
	r, err := Default()
	if err != nil {
		t.Fatal(err)
	}
	if got := r.Season("winter"); got.Plantable || got.FoodNeedMultiplier != 1.25 {
		t.Fatalf("winter rules wrong: %+v", got)
	}
	if got := r.Season("monsoon"); got.DecayMultiplier != 1 {
		t.Fatalf("unknown season should default to 1x decay, got %+v", got)
	}
}
