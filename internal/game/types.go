package game

import (
	"encoding/json"
	"time"
)

type WorldEvent struct {
	ID         int64           `json:"id"`
	Kind       string          `json:"kind"`
	LocationID int64           `json:"location_id,omitempty"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	CreatedAt  time.Time       `json:"created_at,omitempty"`
}

type PlayerView struct {
	ID             int64       `json:"id"`
	Username       string      `json:"username"`
	HP             int         `json:"hp"`
	MaxHP          int         `json:"max_hp"`
	Energy         int         `json:"energy"`
	MaxEnergy      int         `json:"max_energy"`
	Gold           int64       `json:"gold"`
	Location       LocationRef `json:"location"`
	Home           LocationRef `json:"home"`
	EquippedWeapon string      `json:"equipped_weapon,omitempty"`
	CombatLevel    int         `json:"combat_level"`
	Skills         []SkillView `json:"skills"`
	Inventory      []Stack     `json:"inventory"`
	Buffs          Buffs       `json:"buffs"`
	Religion       string      `json:"religion,omitempty"`
	Office         string      `json:"office,omitempty"`
}

type LocationRef struct {
	ID   int64  `json:"id"`
	Key  string `json:"key"`
	Name string `json:"name"`
	Kind string `json:"kind"`
}

type SkillView struct {
	Skill string `json:"skill"`
	Level int    `json:"level"`
	XP    int64  `json:"xp"`
	Next  int64  `json:"next_level_xp"`
}

type LevelUp struct {
	Skill    string `json:"skill"`
	XPGained int64  `json:"xp_gained"`
	From     int    `json:"from"`
	To       int    `json:"to"`
}

type SignupInput struct {
	Email        string
	Username     string
	PasswordHash string
}

type Credentials struct {
	PlayerID     int64
	Username     string
	PasswordHash string
}

type TradeInput struct {
	PlayerID       int64
	Item           string
	Quantity       int64
	IdempotencyKey string
}

type TradeResult struct {
	Item      string `json:"item"`
	Quantity  int64  `json:"quantity"`
	UnitPrice int64  `json:"unit_price"`
	Total     int64  `json:"total"`
	Tax       int64  `json:"tax"`
	Gold      int64  `json:"gold"`
}

type MarketRow struct {
	Item      string `json:"item"`
	Name      string `json:"name"`
	Stock     int64  `json:"stock"`
	BuyPrice  int64  `json:"buy_price"`
	SellPrice int64  `json:"sell_price"`
}

type WorldView struct {
	Calendar    Calendar         `json:"calendar"`
	Settlements []SettlementView `json:"settlements"`
}

type SettlementView struct {
	LocationRef
	Parent     string `json:"parent"`
	Population int    `json:"population"`
	Capacity   int    `json:"capacity"`
	Treasury   int64  `json:"treasury"`
	TaxRate    int    `json:"tax_rate"`
	Ruler      string `json:"ruler,omitempty"`
}
