package game

import "testing"

func TestXPTable(t *testing.T) {
	tests := []struct {
		level int
		xp    int64
	}{
		{1, 0},
		{2, 83},
		{99, 13_034_431},
	}
	for _, tc := range tests {
		if got := XPForLevel(tc.level); got != tc.xp {
			t.Fatalf("XPForLevel(%d) = %d, want %d", tc.level, got, tc.xp)
		}
	}
	if XPForLevel(0) != 0 || XPForLevel(200) != XPForLevel(MaxLevel) {
		t.Fatalf("levels out of range must clamp")
	}
}

func TestLevelForXP(t *testing.T) {
	tests := []struct {
		xp    int64
		level int
	}{
		{0, 1},
		{82, 1},
		{83, 2},
		{13_034_430, 98},
		{13_034_431, 99},
		{200_000_000, 99},
	}
	for _, tc := range tests {
		if got := LevelForXP(tc.xp); got != tc.level {
			t.Fatalf("LevelForXP(%d) = %d, want %d", tc.xp, got, tc.level)
		}
	}
}

func TestCombatLevel(t *testing.T) {
	if got := CombatLevel(map[string]int{}); got != 1 {
		t.Fatalf("fresh combat level = %d, want 1", got)
	}
	got := CombatLevel(map[string]int{"attack": 1, "strength": 1, "defence": 1, "hitpoints": 10, "prayer": 1})
	if got != 3 {
		t.Fatalf("combat level = %d, want 3", got)
	}
}

func TestApplyXPBonus(t *testing.T) {
	if got := applyXPBonus(25, 10); got != 27 {
		t.Fatalf("bonus xp = %d, want 27", got)
	}
	if got := applyXPBonus(25, 0); got != 25 {
		t.Fatalf("zero bonus changed xp to %d", got)
	}
	if got := DevotionGain(100, 5); got != 105 {
		t.Fatalf("devotion = %d, want 105", got)
	}
}
