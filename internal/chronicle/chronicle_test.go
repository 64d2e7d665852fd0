package chronicle

import (
	"bufio"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"hearthrealm/internal/game"
)

func TestWriterRotatesHourlyAndRoundTrips(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir, "ticks")
	clock := time.Date(2026, 3, 1, 10, 59, 0, 0, time.UTC)
	w.now = func() time.Time { return clock }

	if err := w.Write(game.TickReport{Period: "y1-spring-w02"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := w.Write(game.TickReport{Period: "y1-spring-w03"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	clock = clock.Add(2 * time.Minute)
	if err := w.Write(game.TickReport{Period: "y1-spring-w04"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	files, _ := filepath.Glob(filepath.Join(dir, "ticks-*.jsonl.zst"))
	if len(files) != 2 {
		t.Fatalf("files = %v, want two hourly files", files)
	}
	first, err := ReadAll[game.TickReport](w.Path("2026-03-01-10"))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(first) != 2 || first[1].Period != "y1-spring-w03" {
		t.Fatalf("first hour = %+v", first)
	}
	second, err := ReadAll[game.TickReport](w.Path("2026-03-01-11"))
	if err != nil || len(second) != 1 {
		t.Fatalf("second hour = %+v, %v", second, err)
	}
}

func TestReadAllMissingFile(t *testing.T) {
	if _, err := ReadAll[map[string]any](filepath.Join(t.TempDir(), "nope.jsonl.zst")); !os.IsNotExist(err) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
}

func TestTickSummary(t *testing.T) {
	rep := game.TickReport{
		Calendar: game.Calendar{Year: 2, Season: "winter", Week: 3},
		Settlements: []game.SettlementTick{
			{Name: "Millbrook", FullyFed: true, Life: game.LifeCounts{Births: 2, Deaths: 1}},
			{Name: "Fenwick", Hungry: 4, Starved: 1, Emigrated: 3},
		},
		PetitionsApproved: 1,
	}
	msg := TickSummary(rep)
	for _, want := range []string{"Year 2, winter week 3", "Food ran short in Fenwick: 4 went hungry", "Births 2, deaths 1 (1 starved), 3 villagers moved away.", "1 petition(s)"} {
		if !strings.Contains(msg, want) {
			t.Fatalf("summary missing %q:\n%s", want, msg)
		}
	}
	if strings.Contains(msg, "Millbrook") {
		t.Fatalf("fed settlements are not mentioned:\n%s", msg)
	}
}

func TestNewAnnouncerDisabledWithoutCredentials(t *testing.T) {
	a, err := NewAnnouncer("", "123")
	if err != nil || a != nil {
		t.Fatalf("expected a disabled announcer, got %v %v", a, err)
	}
	if err := a.Announce(game.TickReport{}); err != nil {
		t.Fatalf("nil announcer must be a no-op: %v", err)
	}
}

type brokenSink struct{}

func (brokenSink) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestCloseReportsFlushFailure(t *testing.T) {
	f, err := os.Create(filepath.Join(t.TempDir(), "ticks.jsonl.zst"))
	if err != nil {
		t.Fatal(err)
	}
	w := NewWriter(t.TempDir(), "ticks")
	w.f, w.w, w.curHour = f, bufio.NewWriter(brokenSink{}), "2026-01-01-00"
	if _, err := w.w.WriteString("{}\n"); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err == nil || !strings.Contains(err.Error(), "disk full") {
		t.Fatalf("close = %v, want the flush error", err)
	}
	if w.f != nil || w.w != nil {
		t.Fatal("close must release the file even when the flush fails")
	}
}
