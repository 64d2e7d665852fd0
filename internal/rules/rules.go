// Package rules holds the game-balance tables: items, actions, monsters,
// locations, housing, religion, offices and the minigame settings.
package rules

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

//go:embed rules.yaml
var defaultRules []byte

//go:embed schema.json
var schemaJSON string

type Rules struct {
	SpawnLocation string         `yaml:"spawn_location"`
	Inventory     InventoryRules `yaml:"inventory"`
	Travel        TravelRules    `yaml:"travel"`
	Vitals        VitalsRules    `yaml:"vitals"`
	Skills        []string       `yaml:"skills"`
	Calendar      CalendarRules  `yaml:"calendar"`

	Items     map[string]Item    `yaml:"items"`
	Actions   map[string]Action  `yaml:"actions"`
	Monsters  map[string]Monster `yaml:"monsters"`
	Locations []LocationSeed     `yaml:"locations"`
	Offices   map[string]Office  `yaml:"offices"`
	NPC       NPCRules           `yaml:"npc"`
	Market    MarketRules        `yaml:"market"`

	Houses                map[string]HouseTier `yaml:"houses"`
	HouseBuffMinCondition int                  `yaml:"house_buff_min_condition"`
	Rooms                 map[string]Room      `yaml:"rooms"`
	Furniture             map[string]Furniture `yaml:"furniture"`
	Crops                 map[string]Crop      `yaml:"crops"`
	Servants              map[string]Servant   `yaml:"servants"`

	Religion ReligionRules `yaml:"religion"`
	HQTiers  []HQTier      `yaml:"hq_tiers"`
	Petition PetitionRules `yaml:"petition"`
	Tax      TaxRules      `yaml:"tax"`
	Dice     DiceRules     `yaml:"dice"`
	Rewards  []int64       `yaml:"rewards"`
}

type InventoryRules struct {
	Slots int `yaml:"slots"`
}

type TravelRules struct {
	MaxDistance   float64 `yaml:"max_distance"`
	BaseEnergy    int     `yaml:"base_energy"`
	EnergyPerUnit float64 `yaml:"energy_per_unit"`
}

type VitalsRules struct {
	EnergyPerRegen int     `yaml:"energy_per_regen"`
	HPPerRegen     int     `yaml:"hp_per_regen"`
	StartHP        int     `yaml:"start_hp"`
	StartEnergy    int     `yaml:"start_energy"`
	StartGold      int64   `yaml:"start_gold"`
	CombatEnergy   int     `yaml:"combat_energy"`
	AttackEnergy   int     `yaml:"attack_energy"`
	DefeatGoldLoss float64 `yaml:"defeat_gold_loss"`
}

type CalendarRules struct {
	WeeksPerSeason int          `yaml:"weeks_per_season"`
	DaysPerWeek    int          `yaml:"days_per_week"`
	Seasons        []SeasonRule `yaml:"seasons"`
}

type SeasonRule struct {
	Name               string  `yaml:"name"`
	DecayMultiplier    float64 `yaml:"decay_multiplier"`
	FoodNeedMultiplier float64 `yaml:"food_need_multiplier"`
	Plantable          bool    `yaml:"plantable"`
	HouseDecay         int     `yaml:"house_decay"`
}

type Item struct {
	Name        string  `yaml:"name" json:"name"`
	Category    string  `yaml:"category" json:"category"`
	Stackable   bool    `yaml:"stackable" json:"stackable"`
	BasePrice   int64   `yaml:"base_price" json:"base_price"`
	TargetStock int64   `yaml:"target_stock" json:"target_stock"`
	DecayRate   float64 `yaml:"decay_rate" json:"decay_rate,omitempty"`
	FoodValue   int     `yaml:"food_value" json:"food_value,omitempty"`
	Heal        int     `yaml:"heal" json:"heal,omitempty"`
	Weapon      *Weapon `yaml:"weapon" json:"weapon,omitempty"`
}

type Weapon struct {
	Style         string `yaml:"style" json:"style"`
	AttackBonus   int    `yaml:"attack_bonus" json:"attack_bonus"`
	StrengthBonus int    `yaml:"strength_bonus" json:"strength_bonus"`
}

type ItemQty struct {
	Item string `yaml:"item" json:"item"`
	Qty  int64  `yaml:"qty" json:"qty"`
}

type Action struct {
	Skill           string    `yaml:"skill"`
	Level           int       `yaml:"level"`
	Energy          int       `yaml:"energy"`
	XP              int64     `yaml:"xp"`
	Inputs          []ItemQty `yaml:"inputs"`
	Outputs         []ItemQty `yaml:"outputs"`
	BaseSuccess     float64   `yaml:"base_success"`
	SuccessPerLevel float64   `yaml:"success_per_level"`
	DelaySeconds    int       `yaml:"delay_seconds"`
}

type Monster struct {
	Name         string      `yaml:"name"`
	HP           int         `yaml:"hp"`
	Attack       int         `yaml:"attack"`
	Strength     int         `yaml:"strength"`
	Defence      int         `yaml:"defence"`
	StabDefence  int         `yaml:"stab_defence"`
	SlashDefence int         `yaml:"slash_defence"`
	CrushDefence int         `yaml:"crush_defence"`
	MaxHit       int         `yaml:"max_hit"`
	Loot         []LootEntry `yaml:"loot"`
}

// StyleDefence returns the monster's defence bonus against an attack style.
func (m Monster) StyleDefence(style string) int {
	switch style {
	case "stab":
		return m.StabDefence
	case "slash":
		return m.SlashDefence
	default:
		return m.CrushDefence
	}
}

// LootEntry with an empty Item is a "nothing" drop.
type LootEntry struct {
	Item   string `yaml:"item"`
	Min    int64  `yaml:"min"`
	Max    int64  `yaml:"max"`
	Weight int    `yaml:"weight"`
}

type LocationSeed struct {
	Key        string           `yaml:"key"`
	Name       string           `yaml:"name"`
	Kind       string           `yaml:"kind"`
	Parent     string           `yaml:"parent"`
	X          float64          `yaml:"x"`
	Y          float64          `yaml:"y"`
	Capacity   int              `yaml:"capacity"`
	Population int              `yaml:"population"`
	TaxRate    int              `yaml:"tax_rate"`
	Stockpile  map[string]int64 `yaml:"stockpile"`
}

type Office struct {
	Title  string `yaml:"title"`
	Salary int64  `yaml:"salary"`
}

type NPCRules struct {
	AdultAge              int          `yaml:"adult_age"`
	MarriageMaxAge        int          `yaml:"marriage_max_age"`
	FertileMaxAge         int          `yaml:"fertile_max_age"`
	MarriageChance        float64      `yaml:"marriage_chance"`
	BirthChance           float64      `yaml:"birth_chance"`
	EmigrationHungryRatio float64      `yaml:"emigration_hungry_ratio"`
	EmigrationChance      float64      `yaml:"emigration_chance"`
	StarvationWeeks       int          `yaml:"starvation_weeks"`
	FoodPerWeek           int          `yaml:"food_per_week"`
	DeathChance           []AgeBracket `yaml:"death_chance"`
}

type AgeBracket struct {
	BelowAge int     `yaml:"below_age"`
	Chance   float64 `yaml:"chance"`
}

type MarketRules struct {
	SellRatio float64 `yaml:"sell_ratio"`
	MinFactor float64 `yaml:"min_factor"`
	MaxFactor float64 `yaml:"max_factor"`
}

type HouseTier struct {
	Price       int64 `yaml:"price"`
	MaxRooms    int   `yaml:"max_rooms"`
	RepairRate  int64 `yaml:"repair_rate"`
	MaxServants int   `yaml:"max_servants"`
	GardenPlots int   `yaml:"garden_plots"`
}

type Room struct {
	Price int64 `yaml:"price"`
}

type Furniture struct {
	Room   string `yaml:"room"`
	Price  int64  `yaml:"price"`
	Buff   string `yaml:"buff"`
	Skill  string `yaml:"skill"`
	Amount int    `yaml:"amount"`
}

type Crop struct {
	Seed        string `yaml:"seed"`
	Yield       string `yaml:"yield"`
	YieldQty    int64  `yaml:"yield_qty"`
	GrowthWeeks int    `yaml:"growth_weeks"`
	XP          int64  `yaml:"xp"`
	Level       int    `yaml:"level"`
	WitherWeeks int    `yaml:"wither_weeks"`
}

type Servant struct {
	Wage             int64 `yaml:"wage"`
	ConditionPerWeek int   `yaml:"condition_per_week"`
	HPPerRegen       int   `yaml:"hp_per_regen"`
}

type ReligionRules struct {
	FoundingCost        int64  `yaml:"founding_cost"`
	PrayEnergy          int    `yaml:"pray_energy"`
	PrayDevotion        int64  `yaml:"pray_devotion"`
	PrayXP              int64  `yaml:"pray_xp"`
	PrayCooldownSeconds int    `yaml:"pray_cooldown_seconds"`
	GoldPerDevotion     int64  `yaml:"gold_per_devotion"`
	Ranks               []Rank `yaml:"ranks"`
}

type Rank struct {
	Name        string `yaml:"name"`
	MinDevotion int64  `yaml:"min_devotion"`
}

type HQTier struct {
	Tier          int   `yaml:"tier"`
	Cost          int64 `yaml:"cost"`
	BuildWeeks    int   `yaml:"build_weeks"`
	PrayerXPBonus int   `yaml:"prayer_xp_bonus"`
	DevotionBonus int   `yaml:"devotion_bonus"`
	HPRegen       int   `yaml:"hp_regen"`
}

type PetitionRules struct {
	Fee              int64 `yaml:"fee"`
	AutoApproveWeeks int   `yaml:"auto_approve_weeks"`
}

type TaxRules struct {
	MaxRate      int     `yaml:"max_rate"`
	MaxPerWeek   int64   `yaml:"max_per_week"`
	ForwardShare float64 `yaml:"forward_share"`
}

type DiceRules struct {
	MinStake          int64   `yaml:"min_stake"`
	MaxStake          int64   `yaml:"max_stake"`
	Rake              float64 `yaml:"rake"`
	DoublesMultiplier float64 `yaml:"doubles_multiplier"`
}

// Default returns the embedded rule set.
func Default() (*Rules, error) {
	return Parse(defaultRules)
}

// Load reads a rules file from disk. An empty path loads the embedded rules.
func Load(path string) (*Rules, error) {
	if strings.TrimSpace(path) == "" {
		return Default()
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	r, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return r, nil
}

// Parse validates raw YAML against the rules schema and decodes it.
func Parse(raw []byte) (*Rules, error) {
	if err := validateSchema(raw); err != nil {
		return nil, err
	}
	var r Rules
	if err := yaml.Unmarshal(raw, &r); err != nil {
		return nil, fmt.Errorf("rules.yaml: %w", err)
	}
	if err := r.check(); err != nil {
		return nil, err
	}
	return &r, nil
}

func validateSchema(raw []byte) error {
	schema, err := jsonschema.CompileString("rules.schema.json", schemaJSON)
	if err != nil {
		return fmt.Errorf("compile rules schema: %w", err)
	}
	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("rules.yaml: %w", err)
	}
	// Round-trip through JSON so numbers and maps have the shapes the
	// validator expects.
	b, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("rules.yaml: %w", err)
	}
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("rules schema: %w", err)
	}
	return nil
}

// check enforces cross references the schema cannot express.
func (r *Rules) check() error {
	locs := make(map[string]LocationSeed, len(r.Locations))
	for _, l := range r.Locations {
		if _, dup := locs[l.Key]; dup {
			return fmt.Errorf("duplicate location %q", l.Key)
		}
		locs[l.Key] = l
	}
	for _, l := range r.Locations {
		if l.Parent != "" {
			if _, ok := locs[l.Parent]; !ok {
				return fmt.Errorf("location %q: unknown parent %q", l.Key, l.Parent)
			}
		}
		for item := range l.Stockpile {
			if _, ok := r.Items[item]; !ok {
				return fmt.Errorf("location %q: unknown stockpile item %q", l.Key, item)
			}
		}
	}
	spawn, ok := locs[r.SpawnLocation]
	if !ok || !IsSettlement(spawn.Kind) {
		return fmt.Errorf("spawn location %q is not a settlement", r.SpawnLocation)
	}
	for key, a := range r.Actions {
		if !r.HasSkill(a.Skill) {
			return fmt.Errorf("action %q: unknown skill %q", key, a.Skill)
		}
		for _, io := range append(append([]ItemQty{}, a.Inputs...), a.Outputs...) {
			if _, ok := r.Items[io.Item]; !ok {
				return fmt.Errorf("action %q: unknown item %q", key, io.Item)
			}
		}
	}
	for key, m := range r.Monsters {
		for _, e := range m.Loot {
			if e.Item == "" {
				continue
			}
			if _, ok := r.Items[e.Item]; !ok {
				return fmt.Errorf("monster %q: unknown loot item %q", key, e.Item)
			}
		}
	}
	for key, c := range r.Crops {
		if _, ok := r.Items[c.Seed]; !ok {
			return fmt.Errorf("crop %q: unknown seed %q", key, c.Seed)
		}
		if _, ok := r.Items[c.Yield]; !ok {
			return fmt.Errorf("crop %q: unknown yield %q", key, c.Yield)
		}
	}
	for key, f := range r.Furniture {
		if _, ok := r.Rooms[f.Room]; !ok {
			return fmt.Errorf("furniture %q: unknown room %q", key, f.Room)
		}
	}
	for i, t := range r.HQTiers {
		if t.Tier != i+1 {
			return fmt.Errorf("hq tier %d out of order", t.Tier)
		}
	}
	return nil
}

// IsSettlement reports whether players and NPCs can live at a location kind.
func IsSettlement(kind string) bool {
	return kind == "village" || kind == "town"
}

func (r *Rules) HasSkill(name string) bool {
	for _, s := range r.Skills {
		if s == name {
			return true
		}
	}
	return false
}

func (r *Rules) Season(name string) SeasonRule {
	for _, s := range r.Calendar.Seasons {
		if s.Name == name {
			return s
		}
	}
	return SeasonRule{Name: name, DecayMultiplier: 1, FoodNeedMultiplier: 1, Plantable: true, HouseDecay: 1}
}

func (r *Rules) Location(key string) (LocationSeed, bool) {
	for _, l := range r.Locations {
		if l.Key == key {
			return l, true
		}
	}
	return LocationSeed{}, false
}

// HQTier returns the tier definition, tiers being 1-based.
func (r *Rules) HQTier(tier int) (HQTier, bool) {
	if tier < 1 || tier > len(r.HQTiers) {
		return HQTier{}, false
	}
	return r.HQTiers[tier-1], true
}

// RankFor maps devotion to the highest rank whose threshold is met.
func (r *Rules) RankFor(devotion int64) string {
	best := ""
	var bestMin int64 = -1
	for _, rk := range r.Religion.Ranks {
		if devotion >= rk.MinDevotion && rk.MinDevotion > bestMin {
			best, bestMin = rk.Name, rk.MinDevotion
		}
	}
	return best
}

// FoodItems lists food item keys, most perishable first.
func (r *Rules) FoodItems() []string {
	out := make([]string, 0)
	for k, it := range r.Items {
		if it.FoodValue > 0 {
			out = append(out, k)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := r.Items[out[i]], r.Items[out[j]]
		if a.DecayRate != b.DecayRate {
			return a.DecayRate > b.DecayRate
		}
		return out[i] < out[j]
	})
	return out
}
