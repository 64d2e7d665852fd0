package game

import (
	"context"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v5"

	"hearthrealm/internal/rules"
)

type Stack struct {
	Slot     int    `json:"slot"`
	Item     string `json:"item"`
	Quantity int64  `json:"quantity"`
}

// Inventory is an in-memory view of a player's slots. Mutations either
// apply fully or leave the inventory untouched.
type Inventory struct {
	max     int
	catalog map[string]rules.Item
	slots   map[int]Stack
	dirty   bool
}

func NewInventory(maxSlots int, catalog map[string]rules.Item, stacks []Stack) *Inventory {
	inv := &Inventory{max: maxSlots, catalog: catalog, slots: make(map[int]Stack, len(stacks))}
	for _, st := range stacks {
		inv.slots[st.Slot] = st
	}
	return inv
}

func (inv *Inventory) clone() *Inventory {
	c := &Inventory{max: inv.max, catalog: inv.catalog, slots: make(map[int]Stack, len(inv.slots)), dirty: inv.dirty}
	for k, v := range inv.slots {
		c.slots[k] = v
	}
	return c
}

func (inv *Inventory) Count(item string) int64 {
	var n int64
	for _, st := range inv.slots {
		if st.Item == item {
			n += st.Quantity
		}
	}
	return n
}

func (inv *Inventory) FreeSlots() int {
	return inv.max - len(inv.slots)
}

// slotsNeeded is how many new slots adding qty of item would take.
func (inv *Inventory) slotsNeeded(item string, qty int64) int {
	def := inv.catalog[item]
	if def.Stackable {
		for _, st := range inv.slots {
			if st.Item == item {
				return 0
			}
		}
		return 1
	}
	return int(qty)
}

func (inv *Inventory) CanAdd(item string, qty int64) bool {
	return inv.slotsNeeded(item, qty) <= inv.FreeSlots()
}

func (inv *Inventory) Add(item string, qty int64) error {
	if qty <= 0 {
		return fmt.Errorf("%w: quantity must be > 0", ErrInvalidInput)
	}
	def, ok := inv.catalog[item]
	if !ok {
		return fmt.Errorf("%w: unknown item %q", ErrInvalidInput, item)
	}
	if !inv.CanAdd(item, qty) {
		return fmt.Errorf("%w: no room for %d %s", ErrInventoryFull, qty, def.Name)
	}
	inv.dirty = true
	if def.Stackable {
		for slot, st := range inv.slots {
			if st.Item == item {
				st.Quantity += qty
				inv.slots[slot] = st
				return nil
			}
		}
		slot := inv.firstFree()
		inv.slots[slot] = Stack{Slot: slot, Item: item, Quantity: qty}
		return nil
	}
	for i := int64(0); i < qty; i++ {
		slot := inv.firstFree()
		inv.slots[slot] = Stack{Slot: slot, Item: item, Quantity: 1}
	}
	return nil
}

func (inv *Inventory) Remove(item string, qty int64) error {
	if qty <= 0 {
		return fmt.Errorf("%w: quantity must be > 0", ErrInvalidInput)
	}
	if have := inv.Count(item); have < qty {
		return fmt.Errorf("%w: need %d %s, have %d", ErrInvalidInput, qty, item, have)
	}
	inv.dirty = true
	// Drain from the highest slot down so the front of the bag stays put.
	slots := inv.sortedSlots()
	for i := len(slots) - 1; i >= 0 && qty > 0; i-- {
		st := inv.slots[slots[i]]
		if st.Item != item {
			continue
		}
		take := st.Quantity
		if take > qty {
			take = qty
		}
		st.Quantity -= take
		qty -= take
		if st.Quantity == 0 {
			delete(inv.slots, st.Slot)
		} else {
			inv.slots[st.Slot] = st
		}
	}
	return nil
}

// HasAll reports whether every requirement is present.
func (inv *Inventory) HasAll(reqs []rules.ItemQty) bool {
	need := make(map[string]int64)
	for _, r := range reqs {
		need[r.Item] += r.Qty
	}
	for item, qty := range need {
		if inv.Count(item) < qty {
			return false
		}
	}
	return true
}

func (inv *Inventory) Stacks() []Stack {
	out := make([]Stack, 0, len(inv.slots))
	for _, slot := range inv.sortedSlots() {
		out = append(out, inv.slots[slot])
	}
	return out
}

func (inv *Inventory) firstFree() int {
	for i := 0; i < inv.max; i++ {
		if _, used := inv.slots[i]; !used {
			return i
		}
	}
	return -1
}

func (inv *Inventory) sortedSlots() []int {
	out := make([]int, 0, len(inv.slots))
	for slot := range inv.slots {
		out = append(out, slot)
	}
	sort.Ints(out)
	return out
}

func (s *Service) loadInventoryTx(ctx context.Context, q querier, playerID int64) (*Inventory, error) {
	rows, err := q.Query(ctx, `
		SELECT slot, item_key, quantity
		FROM realm.player_inventory
		WHERE player_id = $1
		ORDER BY slot
	`, playerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var stacks []Stack
	for rows.Next() {
		var st Stack
		if err := rows.Scan(&st.Slot, &st.Item, &st.Quantity); err != nil {
			return nil, err
		}
		stacks = append(stacks, st)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return NewInventory(s.rules.Inventory.Slots, s.rules.Items, stacks), nil
}

// saveInventoryTx rewrites the player's slots when the inventory changed.
func saveInventoryTx(ctx context.Context, tx pgx.Tx, playerID int64, inv *Inventory) error {
	if !inv.dirty {
		return nil
	}
	if _, err := tx.Exec(ctx, `DELETE FROM realm.player_inventory WHERE player_id = $1`, playerID); err != nil {
		return err
	}
	stacks := inv.Stacks()
	if len(stacks) == 0 {
		inv.dirty = false
		return nil
	}
	rows := make([][]any, 0, len(stacks))
	for _, st := range stacks {
		rows = append(rows, []any{playerID, st.Slot, st.Item, st.Quantity})
	}
	_, err := tx.CopyFrom(ctx,
		pgx.Identifier{"realm", "player_inventory"},
		[]string{"player_id", "slot", "item_key", "quantity"},
		pgx.CopyFromRows(rows),
	)
	if err == nil {
		inv.dirty = false
	}
	return err
}

// Equip puts a weapon from the inventory in the player's hand.
func (s *Service) Equip(ctx context.Context, playerID int64, item string) (PlayerView, error) {
	def, ok := s.rules.Items[item]
	if !ok || def.Weapon == nil {
		return PlayerView{}, fieldError("item", "is not a weapon")
	}
	err := s.inTx(ctx, pgx.ReadCommitted, func(tx pgx.Tx) error {
		if _, err := lockPlayerTx(ctx, tx, playerID); err != nil {
			return err
		}
		inv, err := s.loadInventoryTx(ctx, tx, playerID)
		if err != nil {
			return err
		}
		if inv.Count(item) == 0 {
			return fmt.Errorf("%w: you do not have a %s", ErrInvalidInput, def.Name)
		}
		_, err = tx.Exec(ctx, `UPDATE realm.players SET equipped_weapon = $2, updated_at = now() WHERE id = $1`, playerID, item)
		return err
	})
	if err != nil {
		return PlayerView{}, err
	}
	return s.Profile(ctx, playerID)
}

func (s *Service) Unequip(ctx context.Context, playerID int64) (PlayerView, error) {
	if _, err := s.db.Exec(ctx, `UPDATE realm.players SET equipped_weapon = NULL, updated_at = now() WHERE id = $1`, playerID); err != nil {
		return PlayerView{}, err
	}
	return s.Profile(ctx, playerID)
}

// Eat consumes one unit of food and heals the player.
func (s *Service) Eat(ctx context.Context, playerID int64, item string) (PlayerView, error) {
	def, ok := s.rules.Items[item]
	if !ok || def.Heal <= 0 {
		return PlayerView{}, fieldError("item", "is not edible")
	}
	err := s.inTx(ctx, pgx.ReadCommitted, func(tx pgx.Tx) error {
		p, err := lockPlayerTx(ctx, tx, playerID)
		if err != nil {
			return err
		}
		inv, err := s.loadInventoryTx(ctx, tx, playerID)
		if err != nil {
			return err
		}
		if err := inv.Remove(item, 1); err != nil {
			return err
		}
		if err := saveInventoryTx(ctx, tx, playerID, inv); err != nil {
			return err
		}
		hp := clamp(p.HP+def.Heal, 0, p.MaxHP)
		_, err = tx.Exec(ctx, `UPDATE realm.players SET hp = $2, updated_at = now() WHERE id = $1`, playerID, hp)
		return err
	})
	if err != nil {
		return PlayerView{}, err
	}
	return s.Profile(ctx, playerID)
}
