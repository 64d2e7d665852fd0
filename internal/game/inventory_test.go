package game

import (
	"errors"
	"testing"

	"hearthrealm/internal/rules"
)

func TestInventoryStacksStackableItems(t *testing.T) {
	r := testRules(t)
	inv := NewInventory(r.Inventory.Slots, r.Items, nil)
	for i := 0; i < 3; i++ {
		if err := inv.Add("logs", 5); err != nil {
			t.Fatalf("add logs: %v", err)
		}
	}
	if got := inv.Count("logs"); got != 15 {
		t.Fatalf("logs = %d, want 15", got)
	}
	if free := inv.FreeSlots(); free != r.Inventory.Slots-1 {
		t.Fatalf("free slots = %d, want %d", free, r.Inventory.Slots-1)
	}
}

func TestInventoryUnstackableItemsTakeOneSlotEach(t *testing.T) {
	r := testRules(t)
	inv := NewInventory(r.Inventory.Slots, r.Items, nil)
	if err := inv.Add("bronze_dagger", 3); err != nil {
		t.Fatalf("add daggers: %v", err)
	}
	stacks := inv.Stacks()
	if len(stacks) != 3 {
		t.Fatalf("stacks = %d, want 3", len(stacks))
	}
	for i, st := range stacks {
		if st.Slot != i || st.Quantity != 1 {
			t.Fatalf("stack %d = %+v", i, st)
		}
	}
}

func TestInventoryFullIsAllOrNothing(t *testing.T) {
	r := testRules(t)
	inv := NewInventory(2, r.Items, []Stack{{Slot: 0, Item: "logs", Quantity: 4}})
	err := inv.Add("bronze_sword", 2)
	if !errors.Is(err, ErrInventoryFull) {
		t.Fatalf("expected inventory full, got %v", err)
	}
	if inv.Count("bronze_sword") != 0 || inv.FreeSlots() != 1 {
		t.Fatalf("failed add must not change the inventory")
	}
	if err := inv.Add("logs", 10); err != nil {
		t.Fatalf("stacking onto an existing slot needs no room: %v", err)
	}
}

func TestInventoryRemove(t *testing.T) {
	r := testRules(t)
	inv := NewInventory(r.Inventory.Slots, r.Items, []Stack{
		{Slot: 0, Item: "bronze_dagger", Quantity: 1},
		{Slot: 1, Item: "bones", Quantity: 2},
		{Slot: 4, Item: "bronze_dagger", Quantity: 1},
	})
	if err := inv.Remove("bronze_dagger", 1); err != nil {
		t.Fatalf("remove: %v", err)
	}
	stacks := inv.Stacks()
	if len(stacks) != 2 || stacks[0].Slot != 0 || stacks[0].Item != "bronze_dagger" {
		t.Fatalf("expected the highest slot to be drained first, got %+v", stacks)
	}
	if err := inv.Remove("bones", 3); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected invalid input removing more than held, got %v", err)
	}
	if inv.Count("bones") != 2 {
		t.Fatalf("failed remove must not change counts")
	}
	if err := inv.Add("unobtainium", 1); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("unknown item should be rejected, got %v", err)
	}
}

func TestInventoryHasAll(t *testing.T) {
	r := testRules(t)
	inv := NewInventory(r.Inventory.Slots, r.Items, []Stack{{Slot: 0, Item: "copper_ore", Quantity: 3}})
	if !inv.HasAll([]rules.ItemQty{{Item: "copper_ore", Qty: 2}}) {
		t.Fatalf("expected 2 copper ore to be available")
	}
	if inv.HasAll([]rules.ItemQty{{Item: "copper_ore", Qty: 2}, {Item: "copper_ore", Qty: 2}}) {
		t.Fatalf("repeated requirements must add up")
	}
}
