package worker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"hearthrealm/internal/db"
	"hearthrealm/internal/game"
)

type fakeGame struct {
	batches   []int
	queueErr  error
	regens    int
	tickErr   error
	ticks     int
	minGap    time.Duration
	built     int
	rewarded  []string
	rewardErr error
	processed chan int
	advanced  map[string]bool
}

func (f *fakeGame) ProcessQueues(context.Context) (game.ProcessReport, error) {
	if f.queueErr != nil {
		return game.ProcessReport{}, f.queueErr
	}
	if len(f.batches) == 0 {
		return game.ProcessReport{}, nil
	}
	n := f.batches[0]
	f.batches = f.batches[1:]
	if f.processed != nil {
		f.processed <- n
	}
	return game.ProcessReport{Claimed: n, Succeeded: n}, nil
}

func (f *fakeGame) RegenerateVitals(context.Context) (int64, error) {
	f.regens++
	return 3, nil
}

func (f *fakeGame) RunWorldTick(_ context.Context, minGap time.Duration) (game.TickReport, error) {
	f.minGap = minGap
	if f.tickErr != nil {
		return game.TickReport{}, f.tickErr
	}
	const period = "y1-summer-w01"
	if f.advanced[period] {
		return game.TickReport{}, fmt.Errorf("%w: world_tick %s", game.ErrAlreadyRan, period)
	}
	if f.advanced == nil {
		f.advanced = make(map[string]bool)
	}
	f.advanced[period] = true
	f.ticks++
	return game.TickReport{Period: period, ClosedPeriod: "y1-spring-w12"}, nil
}

func (f *fakeGame) CompleteConstruction(context.Context) (game.ConstructionResult, error) {
	f.built++
	return game.ConstructionResult{}, nil
}

func (f *fakeGame) DistributeRewards(_ context.Context, period string) (game.RewardReport, error) {
	f.rewarded = append(f.rewarded, period)
	return game.RewardReport{Period: period}, f.rewardErr
}

type memArchive struct{ lines []any }

func (m *memArchive) Write(v any) error {
	m.lines = append(m.lines, v)
	return nil
}

type failingAnnouncer struct{ calls int }

func (a *failingAnnouncer) Announce(game.TickReport) error {
	a.calls++
	return errors.New("discord down")
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig() Config {
	return Config{TickEvery: time.Hour, PollEvery: time.Hour, RegenEvery: time.Hour}
}

func TestRunOnce(t *testing.T) {
	g := &fakeGame{batches: []int{50, 12}}
	archive := &memArchive{}
	ann := &failingAnnouncer{}
	r := New(g, testConfig(), quietLogger()).WithArchive(archive).WithAnnouncer(ann)

	if err := r.RunOnce(context.Background()); err != nil {
		t.Fatalf("run once: %v", err)
	}
	if len(g.batches) != 0 {
		t.Fatalf("expected queues drained, %d batches left", len(g.batches))
	}
	if g.regens != 1 || g.ticks != 1 || g.built != 1 {
		t.Fatalf("regens=%d ticks=%d built=%d", g.regens, g.ticks, g.built)
	}
	if g.minGap != 54*time.Minute {
		t.Fatalf("min gap = %s", g.minGap)
	}
	if len(g.rewarded) != 1 || g.rewarded[0] != "y1-spring-w12" {
		t.Fatalf("rewards should close the previous week, got %v", g.rewarded)
	}
	if len(archive.lines) != 1 {
		t.Fatalf("expected one chronicle line, got %d", len(archive.lines))
	}
	if ann.calls != 1 {
		t.Fatalf("announcer called %d times", ann.calls)
	}
}

func TestWorldTickCooldownStillCompletesConstruction(t *testing.T) {
	g := &fakeGame{tickErr: fmt.Errorf("%w: last tick moments ago", game.ErrCooldown)}
	archive := &memArchive{}
	r := New(g, testConfig(), quietLogger()).WithArchive(archive)

	rep, err := r.worldTick(context.Background())
	if err != nil {
		t.Fatalf("cooldown should not be an error: %v", err)
	}
	if rep != nil {
		t.Fatalf("expected no report, got %+v", rep)
	}
	if g.built != 1 {
		t.Fatal("construction should still be completed")
	}
	if len(g.rewarded) != 0 || len(archive.lines) != 0 {
		t.Fatal("no rewards or chronicle without a tick")
	}
}

func TestWorldTickSamePeriodRunsOnce(t *testing.T) {
	g := &fakeGame{}
	archive := &memArchive{}
	var logs bytes.Buffer
	r := New(g, testConfig(), slog.New(slog.NewTextHandler(&logs, nil))).WithArchive(archive)

	if rep, err := r.worldTick(context.Background()); err != nil || rep == nil {
		t.Fatalf("first tick: rep=%v err=%v", rep, err)
	}
	rep, err := r.worldTick(context.Background())
	if err != nil {
		t.Fatalf("a repeated period should be skipped, got %v", err)
	}
	if rep != nil {
		t.Fatalf("expected no report for the repeat, got %+v", rep)
	}
	if g.ticks != 1 || len(g.rewarded) != 1 || len(archive.lines) != 1 {
		t.Fatalf("ticks=%d rewarded=%v chronicle=%d", g.ticks, g.rewarded, len(archive.lines))
	}
	if g.built != 2 {
		t.Fatalf("construction runs on every tick attempt, got %d", g.built)
	}
	if !strings.Contains(logs.String(), "world tick skipped") {
		t.Fatalf("skip not logged: %s", logs.String())
	}
}

func TestWorldTickRewardsAlreadyPaid(t *testing.T) {
	g := &fakeGame{rewardErr: game.ErrAlreadyRan}
	r := New(g, testConfig(), quietLogger())
	if _, err := r.worldTick(context.Background()); err != nil {
		t.Fatalf("already-paid rewards should be ignored: %v", err)
	}
}

func TestWorldTickFailure(t *testing.T) {
	boom := errors.New("db gone")
	g := &fakeGame{tickErr: boom}
	r := New(g, testConfig(), quietLogger())
	if _, err := r.worldTick(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected db error, got %v", err)
	}
	if g.built != 0 {
		t.Fatal("construction should not run after a failed tick")
	}
}

func TestRunOnceStopsOnQueueError(t *testing.T) {
	boom := errors.New("queue broke")
	g := &fakeGame{queueErr: boom}
	r := New(g, testConfig(), quietLogger())
	if err := r.RunOnce(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected queue error, got %v", err)
	}
	if g.ticks != 0 {
		t.Fatal("tick should not run after queue failure")
	}
}

func TestRunWakesOnNotify(t *testing.T) {
	g := &fakeGame{batches: []int{1}, processed: make(chan int, 1)}
	r := New(g, testConfig(), quietLogger())
	ctx, cancel := context.WithCancel(context.Background())
	wake := make(chan db.Notification, 2)
	wake <- db.Notification{Channel: db.ChannelEvents, Payload: "{}"}
	wake <- db.Notification{Channel: db.ChannelActionQueue, Payload: "7"}

	done := make(chan error, 1)
	go func() { done <- r.Run(ctx, wake) }()

	select {
	case n := <-g.processed:
		if n != 1 {
			t.Fatalf("processed batch of %d", n)
		}
	case <-time.After(2 * time.Second):
		cancel()
		t.Fatal("queue batch was not processed after notify")
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("run: %v", err)
	}
}
