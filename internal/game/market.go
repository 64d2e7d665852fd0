package game

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/jackc/pgx/v5"

	"hearthrealm/internal/rules"
)

// PriceFor scales an item's base price by scarcity at one settlement.
func PriceFor(r *rules.Rules, item string, stock int64) int64 {
	def := r.Items[item]
	target := def.TargetStock
	if target <= 0 {
		target = 1
	}
	if stock < 1 {
		stock = 1
	}
	factor := clampFloat(math.Sqrt(float64(target)/float64(stock)), r.Market.MinFactor, r.Market.MaxFactor)
	price := int64(math.Round(float64(def.BasePrice) * factor))
	if price < 1 {
		price = 1
	}
	return price
}

// SellPrice is what the settlement pays per unit.
func SellPrice(r *rules.Rules, price int64) int64 {
	return int64(math.Floor(float64(price) * r.Market.SellRatio))
}

// SalesTax is the settlement's cut of a trade of gross value.
func SalesTax(gross int64, ratePct int) int64 {
	if ratePct <= 0 || gross <= 0 {
		return 0
	}
	return gross * int64(ratePct) / 100
}

type marketSite struct {
	ID      int64
	TaxRate int
}

func lockMarketSiteTx(ctx context.Context, tx pgx.Tx, locationID int64) (marketSite, error) {
	var m marketSite
	err := tx.QueryRow(ctx, `SELECT id, tax_rate FROM realm.locations WHERE id = $1 FOR UPDATE`, locationID).Scan(&m.ID, &m.TaxRate)
	return m, err
}

func stockTx(ctx context.Context, q querier, locationID int64, item string, lock bool) (int64, error) {
	sql := `SELECT quantity FROM realm.location_stockpiles WHERE location_id = $1 AND item_key = $2`
	if lock {
		sql += ` FOR UPDATE`
	}
	var qty int64
	err := q.QueryRow(ctx, sql, locationID, item).Scan(&qty)
	if err == pgx.ErrNoRows {
		return 0, nil
	}
	return qty, err
}

func adjustStockTx(ctx context.Context, tx pgx.Tx, locationID int64, item string, delta int64) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO realm.location_stockpiles (location_id, item_key, quantity) VALUES ($1, $2, GREATEST($3, 0))
		ON CONFLICT (location_id, item_key) DO UPDATE SET quantity = realm.location_stockpiles.quantity + $3
	`, locationID, item, delta)
	return err
}

func setPriceTx(ctx context.Context, q querier, locationID int64, item string, price int64) error {
	_, err := q.Exec(ctx, `
		INSERT INTO realm.market_prices (location_id, item_key, price, updated_at) VALUES ($1, $2, $3, now())
		ON CONFLICT (location_id, item_key) DO UPDATE SET price = EXCLUDED.price, updated_at = now()
	`, locationID, item, price)
	return err
}

func loadPricesTx(ctx context.Context, q querier, locationID int64) (map[string]int64, error) {
	rows, err := q.Query(ctx, `SELECT item_key, price FROM realm.market_prices WHERE location_id = $1`, locationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[string]int64)
	for rows.Next() {
		var item string
		var price int64
		if err := rows.Scan(&item, &price); err != nil {
			return nil, err
		}
		out[item] = price
	}
	return out, rows.Err()
}

func postedPriceTx(ctx context.Context, q querier, locationID int64, item string) (map[string]int64, error) {
	var price int64
	err := q.QueryRow(ctx, `SELECT price FROM realm.market_prices WHERE location_id = $1 AND item_key = $2`, locationID, item).Scan(&price)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return map[string]int64{item: price}, nil
}

// QuotedPrice is the posted price of item, falling back to the scarcity
// price for items no tick or trade has priced yet.
func QuotedPrice(r *rules.Rules, posted map[string]int64, item string, stock int64) int64 {
	if p, ok := posted[item]; ok && p > 0 {
		return p
	}
	return PriceFor(r, item, stock)
}

func addTreasuryTx(ctx context.Context, q querier, locationID, amount int64) error {
	if amount == 0 {
		return nil
	}
	_, err := q.Exec(ctx, `UPDATE realm.locations SET treasury = treasury + $2 WHERE id = $1`, locationID, amount)
	return err
}

// Prices lists what the player's current settlement trades.
func (s *Service) Prices(ctx context.Context, playerID int64) ([]MarketRow, error) {
	var locID int64
	if err := s.db.QueryRow(ctx, `SELECT location_id FROM realm.players WHERE id = $1`, playerID).Scan(&locID); err != nil {
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("%w: player", ErrNotFound)
		}
		return nil, err
	}
	if _, err := requireSettlementTx(ctx, s.db, locID); err != nil {
		return nil, err
	}
	stock, err := loadStockpileTx(ctx, s.db, locID)
	if err != nil {
		return nil, err
	}
	posted, err := loadPricesTx(ctx, s.db, locID)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(s.rules.Items))
	for k := range s.rules.Items {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]MarketRow, 0, len(keys))
	for _, k := range keys {
		price := QuotedPrice(s.rules, posted, k, stock[k])
		out = append(out, MarketRow{
			Item:      k,
			Name:      s.rules.Items[k].Name,
			Stock:     stock[k],
			BuyPrice:  price,
			SellPrice: SellPrice(s.rules, price),
		})
	}
	return out, nil
}

func (s *Service) validateTrade(in TradeInput) error {
	if _, ok := s.rules.Items[in.Item]; !ok {
		return fieldError("item", "unknown item")
	}
	if in.Quantity <= 0 || in.Quantity > 10000 {
		return fieldError("quantity", "must be between 1 and 10000")
	}
	return nil
}

// Buy takes goods from the settlement stockpile.
func (s *Service) Buy(ctx context.Context, in TradeInput) (TradeResult, error) {
	var out TradeResult
	if err := s.validateTrade(in); err != nil {
		return out, err
	}
	err := s.inTx(ctx, pgx.ReadCommitted, func(tx pgx.Tx) error {
		if err := claimIdempotency(ctx, tx, in.PlayerID, in.IdempotencyKey, "market_buy"); err != nil {
			return err
		}
		p, err := lockPlayerTx(ctx, tx, in.PlayerID)
		if err != nil {
			return err
		}
		if _, err := requireSettlementTx(ctx, tx, p.LocationID); err != nil {
			return err
		}
		site, err := lockMarketSiteTx(ctx, tx, p.LocationID)
		if err != nil {
			return err
		}
		stock, err := stockTx(ctx, tx, site.ID, in.Item, true)
		if err != nil {
			return err
		}
		if stock < in.Quantity {
			return fmt.Errorf("%w: only %d %s in stock", ErrInvalidInput, stock, in.Item)
		}
		posted, err := postedPriceTx(ctx, tx, site.ID, in.Item)
		if err != nil {
			return err
		}
		price := QuotedPrice(s.rules, posted, in.Item, stock)
		gross := price * in.Quantity
		tax := SalesTax(gross, site.TaxRate)

		inv, err := s.loadInventoryTx(ctx, tx, p.ID)
		if err != nil {
			return err
		}
		if err := inv.Add(in.Item, in.Quantity); err != nil {
			return err
		}
		if err := adjustGoldTx(ctx, tx, &p, -(gross + tax), fmt.Sprintf("treasury:%d", site.ID), "market_buy"); err != nil {
			return err
		}
		if err := saveInventoryTx(ctx, tx, p.ID, inv); err != nil {
			return err
		}
		if err := adjustStockTx(ctx, tx, site.ID, in.Item, -in.Quantity); err != nil {
			return err
		}
		if err := addTreasuryTx(ctx, tx, site.ID, tax); err != nil {
			return err
		}
		if err := setPriceTx(ctx, tx, site.ID, in.Item, PriceFor(s.rules, in.Item, stock-in.Quantity)); err != nil {
			return err
		}
		out = TradeResult{Item: in.Item, Quantity: in.Quantity, UnitPrice: price, Total: gross + tax, Tax: tax, Gold: p.Gold}
		return nil
	})
	return out, err
}

// Sell hands goods to the settlement stockpile.
func (s *Service) Sell(ctx context.Context, in TradeInput) (TradeResult, error) {
	var out TradeResult
	if err := s.validateTrade(in); err != nil {
		return out, err
	}
	err := s.inTx(ctx, pgx.ReadCommitted, func(tx pgx.Tx) error {
		if err := claimIdempotency(ctx, tx, in.PlayerID, in.IdempotencyKey, "market_sell"); err != nil {
			return err
		}
		p, err := lockPlayerTx(ctx, tx, in.PlayerID)
		if err != nil {
			return err
		}
		if _, err := requireSettlementTx(ctx, tx, p.LocationID); err != nil {
			return err
		}
		site, err := lockMarketSiteTx(ctx, tx, p.LocationID)
		if err != nil {
			return err
		}
		inv, err := s.loadInventoryTx(ctx, tx, p.ID)
		if err != nil {
			return err
		}
		if err := inv.Remove(in.Item, in.Quantity); err != nil {
			return err
		}
		if p.EquippedWeapon == in.Item && inv.Count(in.Item) == 0 {
			if _, err := tx.Exec(ctx, `UPDATE realm.players SET equipped_weapon = NULL WHERE id = $1`, p.ID); err != nil {
				return err
			}
		}
		stock, err := stockTx(ctx, tx, site.ID, in.Item, true)
		if err != nil {
			return err
		}
		posted, err := postedPriceTx(ctx, tx, site.ID, in.Item)
		if err != nil {
			return err
		}
		unit := SellPrice(s.rules, QuotedPrice(s.rules, posted, in.Item, stock))
		gross := unit * in.Quantity
		tax := SalesTax(gross, site.TaxRate)
		if err := saveInventoryTx(ctx, tx, p.ID, inv); err != nil {
			return err
		}
		if err := adjustGoldTx(ctx, tx, &p, gross-tax, fmt.Sprintf("treasury:%d", site.ID), "market_sell"); err != nil {
			return err
		}
		if err := adjustStockTx(ctx, tx, site.ID, in.Item, in.Quantity); err != nil {
			return err
		}
		if err := addTreasuryTx(ctx, tx, site.ID, tax); err != nil {
			return err
		}
		if err := setPriceTx(ctx, tx, site.ID, in.Item, PriceFor(s.rules, in.Item, stock+in.Quantity)); err != nil {
			return err
		}
		out = TradeResult{Item: in.Item, Quantity: in.Quantity, UnitPrice: unit, Total: gross - tax, Tax: tax, Gold: p.Gold}
		return nil
	})
	return out, err
}

// recomputePricesTx refreshes the price of every item at every settlement.
func (s *Service) recomputePricesTx(ctx context.Context, tx pgx.Tx) (int, error) {
	rows, err := tx.Query(ctx, `SELECT id FROM realm.locations WHERE kind IN ('village', 'town')`)
	if err != nil {
		return 0, err
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return 0, err
	}
	batch := &pgx.Batch{}
	for _, id := range ids {
		stock, err := loadStockpileTx(ctx, tx, id)
		if err != nil {
			return 0, err
		}
		for item := range s.rules.Items {
			batch.Queue(`
				INSERT INTO realm.market_prices (location_id, item_key, price, updated_at) VALUES ($1, $2, $3, now())
				ON CONFLICT (location_id, item_key) DO UPDATE SET price = EXCLUDED.price, updated_at = now()
			`, id, item, PriceFor(s.rules, item, stock[item]))
		}
	}
	n := batch.Len()
	if n == 0 {
		return 0, nil
	}
	return n, tx.SendBatch(ctx, batch).Close()
}

func loadStockpileTx(ctx context.Context, q querier, locationID int64) (map[string]int64, error) {
	rows, err := q.Query(ctx, `SELECT item_key, quantity FROM realm.location_stockpiles WHERE location_id = $1`, locationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[string]int64)
	for rows.Next() {
		var item string
		var qty int64
		if err := rows.Scan(&item, &qty); err != nil {
			return nil, err
		}
		out[item] = qty
	}
	return out, rows.Err()
}

func saveStockpileTx(ctx context.Context, tx pgx.Tx, locationID int64, stock map[string]int64) error {
	batch := &pgx.Batch{}
	for item, qty := range stock {
		batch.Queue(`
			INSERT INTO realm.location_stockpiles (location_id, item_key, quantity) VALUES ($1, $2, $3)
			ON CONFLICT (location_id, item_key) DO UPDATE SET quantity = EXCLUDED.quantity
		`, locationID, item, qty)
	}
	if batch.Len() == 0 {
		return nil
	}
	return tx.SendBatch(ctx, batch).Close()
}
