package game

import "testing"

func TestDecayedAmount(t *testing.T) {
	tests := []struct {
		qty        int64
		rate, mult float64
		want       int64
	}{
		{10, 0.25, 1, 3},
		{10, 0.25, 0.5, 2},
		{1, 0.01, 1, 1},
		{0, 0.5, 1, 0},
		{5, 0, 1, 0},
		{3, 0.5, 4, 3},
	}
	for _, tc := range tests {
		if got := DecayedAmount(tc.qty, tc.rate, tc.mult); got != tc.want {
			t.Fatalf("DecayedAmount(%d, %v, %v) = %d, want %d", tc.qty, tc.rate, tc.mult, got, tc.want)
		}
	}
}

func TestDecayStockpile(t *testing.T) {
	r := testRules(t)
	stock := map[string]int64{"raw_fish": 40, "copper_ore": 120}
	lost := DecayStockpile(r, "summer", stock)
	if _, ok := lost["copper_ore"]; ok || stock["copper_ore"] != 120 {
		t.Fatalf("ore does not rot: %+v", stock)
	}
	if lost["raw_fish"] <= 0 || stock["raw_fish"]+lost["raw_fish"] != 40 {
		t.Fatalf("fish decay stock=%d lost=%d", stock["raw_fish"], lost["raw_fish"])
	}
	winter := map[string]int64{"raw_fish": 40}
	DecayStockpile(r, "winter", winter)
	if winter["raw_fish"] <= stock["raw_fish"] {
		t.Fatalf("winter should preserve more fish than summer")
	}
}

func TestNextHouseCondition(t *testing.T) {
	r := testRules(t)
	tests := []struct {
		season          string
		condition, maid int
		want            int
	}{
		{"spring", 50, 0, 49},
		{"winter", 50, 0, 48},
		{"spring", 99, 1, 100},
		{"winter", 1, 0, 0},
	}
	for _, tc := range tests {
		if got := NextHouseCondition(r, tc.season, tc.condition, tc.maid); got != tc.want {
			t.Fatalf("%s %d maids=%d: got %d, want %d", tc.season, tc.condition, tc.maid, got, tc.want)
		}
	}
}

func TestCropLifecycle(t *testing.T) {
	wheat := testRules(t).Crops["wheat"]
	if CropReady(wheat, 10, 11) || !CropReady(wheat, 10, 12) {
		t.Fatalf("wheat grows for %d weeks", wheat.GrowthWeeks)
	}
	if CropWithered(wheat, 10, 16) || !CropWithered(wheat, 10, 17) {
		t.Fatalf("wheat withers after %d more weeks", wheat.WitherWeeks)
	}
}
