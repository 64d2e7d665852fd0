package game

import "testing"

func TestRunRepetition(t *testing.T) {
	r := testRules(t)
	chop := r.Actions["chop_logs"]
	cook := r.Actions["cook_fish"]

	tests := []struct {
		name        string
		action      string
		energy      int
		stacks      []Stack
		slots       int
		roll        float64
		done, reps  int
		wantReason  string
		wantSpent   int
		wantSuccess bool
		wantDone    int
		wantFinish  bool
	}{
		{name: "tired", action: "chop_logs", energy: chop.Energy - 1, roll: 0, done: 0, reps: 3,
			wantReason: "not enough energy", wantDone: 0},
		{name: "no fish to cook", action: "cook_fish", energy: 50, roll: 0, done: 1, reps: 3,
			wantReason: "missing inputs", wantDone: 1},
		{name: "missed roll still costs energy", action: "chop_logs", energy: 50, roll: 0.99, done: 0, reps: 3,
			wantSpent: chop.Energy, wantDone: 1},
		{name: "last repetition completes", action: "chop_logs", energy: 50, roll: 0, done: 2, reps: 3,
			wantSpent: chop.Energy, wantSuccess: true, wantDone: 3, wantFinish: true},
		{name: "missed last repetition completes", action: "chop_logs", energy: 50, roll: 0.99, done: 0, reps: 1,
			wantSpent: chop.Energy, wantDone: 1, wantFinish: true},
		{name: "full bag", action: "chop_logs", energy: 50, slots: 1, stacks: []Stack{{Slot: 0, Item: "bones", Quantity: 1}},
			roll: 0, done: 0, reps: 3, wantReason: "inventory full", wantSpent: chop.Energy, wantDone: 0},
		{name: "cooking consumes the fish", action: "cook_fish", energy: 50, stacks: []Stack{{Slot: 0, Item: "raw_fish", Quantity: 2}},
			roll: 0, done: 0, reps: 5, wantSpent: cook.Energy, wantSuccess: true, wantDone: 1},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			slots := tc.slots
			if slots == 0 {
				slots = r.Inventory.Slots
			}
			inv := NewInventory(slots, r.Items, tc.stacks)
			before := inv.Stacks()
			got := RunRepetition(r.Actions[tc.action], fixedRoller(tc.roll), tc.energy, 1, inv, tc.done, tc.reps)
			if got.FailReason != tc.wantReason || got.EnergySpent != tc.wantSpent || got.Success != tc.wantSuccess ||
				got.Done != tc.wantDone || got.Completed != tc.wantFinish {
				t.Fatalf("got %+v", got)
			}
			if !tc.wantSuccess && len(inv.Stacks()) != len(before) {
				t.Fatalf("inventory changed without a success: %+v", inv.Stacks())
			}
		})
	}
}

func TestRunRepetitionMovesItems(t *testing.T) {
	r := testRules(t)
	inv := NewInventory(r.Inventory.Slots, r.Items, []Stack{{Slot: 0, Item: "raw_fish", Quantity: 2}})
	RunRepetition(r.Actions["cook_fish"], fixedRoller(0), 10, 1, inv, 0, 2)
	if inv.Count("raw_fish") != 1 || inv.Count("cooked_fish") != 1 {
		t.Fatalf("raw=%d cooked=%d", inv.Count("raw_fish"), inv.Count("cooked_fish"))
	}

	chop := NewInventory(r.Inventory.Slots, r.Items, nil)
	RunRepetition(r.Actions["chop_logs"], fixedRoller(0.99), 10, 1, chop, 0, 2)
	if chop.Count("logs") != 0 {
		t.Fatalf("a missed chop produced logs")
	}
}
