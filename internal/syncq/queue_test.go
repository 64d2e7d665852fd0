package syncq

import (
	"context"
	"errors"
	"os"
	"testing"
)

func TestOutboxPushDedupesByKey(t *testing.T) {
	o := Open(t.TempDir())
	cmd := Command{Method: "POST", Path: "/v1/market/buy", Body: map[string]any{"item": "bread"}, IdempotencyKey: "k1"}
	for i := 0; i < 2; i++ {
		if err := o.Push(cmd); err != nil {
			t.Fatalf("push: %v", err)
		}
	}
	if err := o.Push(Command{Method: "POST", Path: "/v1/minigames/dice", IdempotencyKey: "k2"}); err != nil {
		t.Fatalf("push: %v", err)
	}
	got, err := o.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 commands, got %d", len(got))
	}
	if got[0].QueuedAt.IsZero() {
		t.Fatal("expected queued_at to be stamped")
	}
	if got[0].Body["item"] != "bread" {
		t.Fatalf("body lost: %#v", got[0].Body)
	}
}

func TestOutboxLoadMissingFile(t *testing.T) {
	got, err := Open(t.TempDir()).Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty outbox, got %d", len(got))
	}
}

func TestOutboxDrain(t *testing.T) {
	errOffline := errors.New("connection refused")
	errRejected := errors.New("not enough gold")

	o := Open(t.TempDir())
	for _, key := range []string{"ok", "offline", "rejected"} {
		if err := o.Push(Command{Method: "POST", Path: "/v1/market/sell", IdempotencyKey: key}); err != nil {
			t.Fatalf("push: %v", err)
		}
	}
	send := func(_ context.Context, cmd Command) (string, error) {
		switch cmd.IdempotencyKey {
		case "offline":
			return "", errOffline
		case "rejected":
			return "", errRejected
		}
		return "sold", nil
	}
	keep := func(err error) bool { return errors.Is(err, errOffline) }

	results, err := o.Drain(context.Background(), send, keep)
	if err != nil {
		t.Fatalf("drain: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if results[0].Message != "sold" || results[0].Err != nil {
		t.Fatalf("unexpected first result: %+v", results[0])
	}
	left, err := o.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(left) != 1 || left[0].IdempotencyKey != "offline" {
		t.Fatalf("expected only the offline command to remain, got %+v", left)
	}
}

func TestOutboxDrainEmptiesFile(t *testing.T) {
	o := Open(t.TempDir())
	if err := o.Push(Command{Method: "POST", Path: "/v1/minigames/dice", IdempotencyKey: "k"}); err != nil {
		t.Fatalf("push: %v", err)
	}
	send := func(context.Context, Command) (string, error) { return "", nil }
	if _, err := o.Drain(context.Background(), send, func(error) bool { return true }); err != nil {
		t.Fatalf("drain: %v", err)
	}
	if _, err := os.Stat(o.path); !os.IsNotExist(err) {
		t.Fatalf("expected outbox file removed, stat err = %v", err)
	}
}

func TestOutboxDrainStopsOnCancel(t *testing.T) {
	o := Open(t.TempDir())
	for _, key := range []string{"a", "b"} {
		if err := o.Push(Command{Method: "POST", Path: "/v1/market/buy", IdempotencyKey: key}); err != nil {
			t.Fatalf("push: %v", err)
		}
	}
	ctx, cancel := context.WithCancel(context.Background())
	send := func(context.Context, Command) (string, error) {
		cancel()
		return "", nil
	}
	results, err := o.Drain(ctx, send, func(error) bool { return false })
	if err != nil {
		t.Fatalf("drain: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected one send before cancel, got %d", len(results))
	}
	left, _ := o.Load()
	if len(left) != 1 || left[0].IdempotencyKey != "b" {
		t.Fatalf("expected b to remain, got %+v", left)
	}
}
