package main

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"hearthrealm/internal/game"

	"github.com/fatih/color"
	"golang.org/x/term"
)

var (
	stdinReader = bufio.NewReader(os.Stdin)
	accent      = color.New(color.FgCyan, color.Bold)
	success     = color.New(color.FgGreen, color.Bold)
	warn        = color.New(color.FgYellow, color.Bold)
	danger      = color.New(color.FgRed, color.Bold)
	neutral     = color.New(color.FgHiWhite)
	gold        = color.New(color.FgYellow)
)

func printSuccess(msg string) {
	success.Println(msg)
}

func printWarn(msg string) {
	warn.Println(msg)
}

func printError(msg string) {
	danger.Println(msg)
}

func printInfo(msg string) {
	neutral.Println(msg)
}

// printMessage echoes the server's message, falling back when it is empty.
func printMessage(msg, fallback string) {
	if strings.TrimSpace(msg) == "" {
		msg = fallback
	}
	if msg != "" {
		printSuccess(capitalize(msg) + ".")
	}
}

func promptRequired(label string) (string, error) {
	for {
		fmt.Printf("%s: ", label)
		text, err := stdinReader.ReadString('\n')
		if err != nil {
			return "", err
		}
		text = strings.TrimSpace(text)
		if text != "" {
			return text, nil
		}
		printWarn(label + " is required.")
	}
}

// promptPassword reads without echo when stdin is a terminal.
func promptPassword(label string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return promptRequired(label)
	}
	for {
		fmt.Printf("%s: ", label)
		raw, err := term.ReadPassword(fd)
		fmt.Println()
		if err != nil {
			return "", err
		}
		if text := strings.TrimSpace(string(raw)); text != "" {
			return text, nil
		}
		printWarn(label + " is required.")
	}
}

func promptInt64(label string, min int64) (int64, error) {
	for {
		text, err := promptRequired(label)
		if err != nil {
			return 0, err
		}
		v, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			printWarn("Enter a whole number.")
			continue
		}
		if v < min {
			printWarn(fmt.Sprintf("Value must be >= %d", min))
			continue
		}
		return v, nil
	}
}

func renderProfile(p game.PlayerView) {
	accent.Printf("\n== %s (combat %d) ==\n", p.Username, p.CombatLevel)
	fmt.Printf("HP:        %s\n", meter(p.HP, p.MaxHP))
	fmt.Printf("Energy:    %s\n", meter(p.Energy, p.MaxEnergy))
	fmt.Printf("Gold:      %s\n", formatGold(p.Gold))
	fmt.Printf("Location:  %s (%s)\n", p.Location.Name, p.Location.Kind)
	fmt.Printf("Home:      %s\n", p.Home.Name)
	if p.EquippedWeapon != "" {
		fmt.Printf("Weapon:    %s\n", itemName(p.EquippedWeapon))
	}
	if p.Religion != "" {
		fmt.Printf("Religion:  %s\n", p.Religion)
	}
	if p.Office != "" {
		fmt.Printf("Office:    %s\n", p.Office)
	}

	fmt.Println()
	accent.Println("Skills")
	fmt.Printf("%-14s %6s %12s %12s\n", "SKILL", "LEVEL", "XP", "NEXT")
	for _, s := range p.Skills {
		fmt.Printf("%-14s %6d %12s %12s\n", s.Skill, s.Level, comma(s.XP), comma(s.Next))
	}

	fmt.Println()
	accent.Println("Inventory")
	if len(p.Inventory) == 0 {
		printInfo("Empty.")
	} else {
		for _, st := range p.Inventory {
			fmt.Printf("[%2d] %-22s x%d\n", st.Slot, truncate(itemName(st.Item), 22), st.Quantity)
		}
	}
	renderBuffs(p.Buffs)
	fmt.Println()
}

func renderBuffs(b game.Buffs) {
	if b.EnergyRegen == 0 && b.HPRegen == 0 && b.DevotionBonus == 0 && len(b.XPBonus) == 0 {
		return
	}
	fmt.Println()
	accent.Println("Buffs")
	if b.EnergyRegen > 0 {
		fmt.Printf("  +%d energy per regen\n", b.EnergyRegen)
	}
	if b.HPRegen > 0 {
		fmt.Printf("  +%d hp per regen\n", b.HPRegen)
	}
	skills := make([]string, 0, len(b.XPBonus))
	for s := range b.XPBonus {
		skills = append(skills, s)
	}
	sort.Strings(skills)
	for _, s := range skills {
		fmt.Printf("  +%d%% %s xp\n", b.XPBonus[s], s)
	}
	if b.DevotionBonus > 0 {
		fmt.Printf("  +%d%% devotion\n", b.DevotionBonus)
	}
}

func renderWorld(w game.WorldView) {
	accent.Printf("\n== %s ==\n", w.Calendar)
	fmt.Printf("%-4s %-18s %-8s %-16s %8s %10s %5s %-14s\n", "ID", "NAME", "KIND", "PARENT", "POP", "TREASURY", "TAX", "RULER")
	for _, s := range w.Settlements {
		ruler := s.Ruler
		if ruler == "" {
			ruler = "-"
		}
		fmt.Printf("%-4d %-18s %-8s %-16s %4d/%-3d %10s %4d%% %-14s\n",
			s.ID, truncate(s.Name, 18), s.Kind, truncate(s.Parent, 16), s.Population, s.Capacity,
			comma(s.Treasury), s.TaxRate, truncate(ruler, 14))
	}
	fmt.Println()
}

func renderQueue(q game.QueueView) {
	accent.Printf("\n== %s x%d ==\n", q.Action, q.Repetitions)
	fmt.Printf("Status:    %s\n", statusColor(q.Status))
	fmt.Printf("Progress:  %d/%d (%d successful)\n", q.CompletedReps, q.Repetitions, q.Successes)
	fmt.Printf("XP gained: %s\n", comma(q.XPGained))
	if q.FailureReason != "" {
		fmt.Printf("Stopped:   %s\n", danger.Sprint(q.FailureReason))
	}
	if q.Status == "active" {
		fmt.Printf("Next rep:  %s\n", q.NextRunAt.Local().Format("15:04:05"))
	}
	fmt.Println()
}

func renderCombat(c game.CombatView) {
	accent.Printf("\n== %s ==\n", c.MonsterName)
	fmt.Printf("Monster:   %s\n", meter(c.MonsterHP, c.MonsterMaxHP))
	fmt.Printf("You:       %d hp\n", c.PlayerHP)
	fmt.Printf("Rounds:    %d   damage dealt: %d\n", c.Rounds, c.DamageDealt)
	fmt.Printf("Status:    %s\n", statusColor(c.Status))
	fmt.Println()
}

func renderAttack(out game.AttackResult) {
	if out.PlayerHit {
		success.Printf("You hit the %s for %d.\n", out.Session.MonsterName, out.PlayerDamage)
	} else {
		neutral.Printf("You miss the %s.\n", out.Session.MonsterName)
	}
	if out.MonsterHit {
		danger.Printf("The %s hits you for %d.\n", out.Session.MonsterName, out.MonsterDamage)
	} else if out.Session.Status == "active" {
		neutral.Printf("The %s misses.\n", out.Session.MonsterName)
	}
	for _, lu := range out.LevelUps {
		success.Printf("%s level %d -> %d (+%s xp)\n", lu.Skill, lu.From, lu.To, comma(lu.XPGained))
	}
	if out.Loot != nil {
		if out.LootDropped {
			warn.Printf("Your pack is full; %d %s left on the ground.\n", out.Loot.Qty, itemName(out.Loot.Item))
		} else {
			gold.Printf("Loot: %d %s\n", out.Loot.Qty, itemName(out.Loot.Item))
		}
	}
	if out.GoldLost > 0 {
		danger.Printf("You lost %s gold.\n", comma(out.GoldLost))
	}
	renderCombat(out.Session)
}

func renderMarket(rows []game.MarketRow) {
	accent.Println("\n== MARKET ==")
	if len(rows) == 0 {
		printInfo("Nothing for sale here.")
		return
	}
	fmt.Printf("%-16s %-22s %8s %8s %8s\n", "ITEM", "NAME", "STOCK", "BUY", "SELL")
	for _, r := range rows {
		fmt.Printf("%-16s %-22s %8d %8s %8s\n", r.Item, truncate(r.Name, 22), r.Stock, comma(r.BuyPrice), comma(r.SellPrice))
	}
	fmt.Println()
}

func renderTrade(msg string, out game.TradeResult) {
	printMessage(msg, "")
	fmt.Printf("Unit price: %s   tax: %s   gold: %s\n", comma(out.UnitPrice), comma(out.Tax), formatGold(out.Gold))
}

func renderDice(out game.DiceOutcome) {
	fmt.Printf("[%d] [%d]  ", out.DieOne, out.DieTwo)
	switch out.Result {
	case "doubles":
		success.Println(strings.ToUpper(out.Result))
	case "push":
		neutral.Println(out.Result)
	default:
		danger.Println(out.Result)
	}
	fmt.Printf("Net: %s   gold: %s\n", colorizeGold(out.Net), formatGold(out.Gold))
}

func renderHouse(h game.HouseView) {
	accent.Printf("\n== %s in %s ==\n", capitalize(h.Tier), h.Location.Name)
	fmt.Printf("Condition: %s\n", conditionColor(h.Condition))
	fmt.Printf("Rooms:     %d/%d\n", len(h.Rooms), h.MaxRooms)
	for _, r := range h.Rooms {
		furniture := "bare"
		if len(r.Furniture) > 0 {
			furniture = strings.Join(r.Furniture, ", ")
		}
		fmt.Printf("  #%-4d %-10s %s\n", r.ID, r.Type, furniture)
		for _, p := range r.Plots {
			state := "growing"
			if p.Ready {
				state = success.Sprint("ready")
			}
			fmt.Printf("        plot %d (#%d): %s, %s\n", p.Plot, p.ID, p.Crop, state)
		}
	}
	if len(h.Servants) > 0 {
		fmt.Println("Servants:")
		for _, sv := range h.Servants {
			fmt.Printf("  #%-4d %-10s %s/week\n", sv.ID, sv.Type, comma(sv.Wage))
		}
	}
	renderBuffs(h.Buffs)
	fmt.Println()
}

func renderReligion(r game.ReligionView) {
	accent.Printf("\n== %s ==\n", r.Name)
	fmt.Printf("Deity:     %s\n", r.Deity)
	fmt.Printf("Prophet:   %s\n", r.Founder)
	fmt.Printf("Members:   %d\n", r.Members)
	fmt.Printf("Treasury:  %s\n", formatGold(r.Treasury))
	if r.Rank != "" {
		fmt.Printf("Your rank: %s (%s devotion)\n", r.Rank, comma(r.Devotion))
	}
	if r.HQ != nil {
		fmt.Printf("HQ:        tier %d in %s", r.HQ.Tier, r.HQ.Location.Name)
		if r.HQ.CompletesAt != nil {
			fmt.Printf(" (tier %d ready %s)", r.HQ.BuildingTier, r.HQ.CompletesAt.Local().Format("Jan 2 15:04"))
		}
		fmt.Println()
	}
	fmt.Println()
}

func renderPetition(p game.PetitionView) {
	fmt.Printf("Petition #%d for %s of %s by %s: %s\n", p.ID, p.Office, p.Location.Name, p.Player, statusColor(p.Status))
}

func meter(v, max int) string {
	text := fmt.Sprintf("%d/%d", v, max)
	switch {
	case max <= 0:
		return text
	case v*4 <= max:
		return danger.Sprint(text)
	case v*2 <= max:
		return warn.Sprint(text)
	default:
		return success.Sprint(text)
	}
}

func conditionColor(c int) string {
	return meter(c, 100) + "%"
}

func statusColor(status string) string {
	switch status {
	case "active", "pending":
		return accent.Sprint(status)
	case "completed", "won", "approved":
		return success.Sprint(status)
	case "failed", "lost", "rejected":
		return danger.Sprint(status)
	default:
		return neutral.Sprint(status)
	}
}

func formatGold(v int64) string {
	return gold.Sprint(comma(v) + "g")
}

func colorizeGold(v int64) string {
	text := comma(v)
	if v > 0 {
		text = "+" + text
	}
	switch {
	case v > 0:
		return success.Sprint(text)
	case v < 0:
		return danger.Sprint(text)
	default:
		return neutral.Sprint(text)
	}
}

func comma(v int64) string {
	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}
	s := strconv.FormatInt(v, 10)
	if len(s) <= 3 {
		return sign + s
	}
	var b strings.Builder
	lead := len(s) % 3
	if lead > 0 {
		b.WriteString(s[:lead])
	}
	for i := lead; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return sign + b.String()
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if n <= 0 || len(s) <= n {
		return s
	}
	if n <= 3 {
		return s[:n]
	}
	return s[:n-3] + "..."
}

func itemName(key string) string {
	return strings.ReplaceAll(key, "_", " ")
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
