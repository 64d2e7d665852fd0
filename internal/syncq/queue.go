// Package syncq keeps writes the client could not deliver while the server
// was unreachable, so `realm sync` can replay them later under their
// original idempotency keys.
package syncq

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

type Command struct {
	Method         string         `json:"method"`
	Path           string         `json:"path"`
	Body           map[string]any `json:"body,omitempty"`
	IdempotencyKey string         `json:"idempotency_key"`
	QueuedAt       time.Time      `json:"queued_at"`
}

// Outbox is a JSON file of pending commands inside the client state dir.
type Outbox struct {
	path string
}

func Open(dir string) *Outbox {
	return &Outbox{path: filepath.Join(dir, "outbox.json")}
}

func (o *Outbox) Load() ([]Command, error) {
	raw, err := os.ReadFile(o.path)
	if err != nil {
		if os.IsNotExist(err) {
			return []Command{}, nil
		}
		return nil, err
	}
	if len(raw) == 0 {
		return []Command{}, nil
	}
	var out []Command
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (o *Outbox) Save(commands []Command) error {
	if len(commands) == 0 {
		if err := os.Remove(o.path); err != nil && !os.IsNotExist(err) {
			return err
		}
		return nil
	}
	raw, err := json.MarshalIndent(commands, "", "  ")
	if err != nil {
		return err
	}
	tmp := o.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, o.path)
}

// Push appends cmd unless a command with the same idempotency key is
// already waiting.
func (o *Outbox) Push(cmd Command) error {
	commands, err := o.Load()
	if err != nil {
		return err
	}
	for _, c := range commands {
		if cmd.IdempotencyKey != "" && c.IdempotencyKey == cmd.IdempotencyKey {
			return nil
		}
	}
	if cmd.QueuedAt.IsZero() {
		cmd.QueuedAt = time.Now().UTC()
	}
	return o.Save(append(commands, cmd))
}

// Result of one replayed command.
type Result struct {
	Command Command
	Message string
	Err     error
}

// Sender delivers a queued command. Errors for which keep returns true stay
// in the outbox; others are dropped after being reported.
type Sender func(ctx context.Context, cmd Command) (string, error)

// Drain replays every queued command in order and rewrites the outbox with
// the ones that should be retried.
func (o *Outbox) Drain(ctx context.Context, send Sender, keep func(error) bool) ([]Result, error) {
	commands, err := o.Load()
	if err != nil {
		return nil, err
	}
	results := make([]Result, 0, len(commands))
	remaining := make([]Command, 0, len(commands))
	for i, cmd := range commands {
		if ctx.Err() != nil {
			remaining = append(remaining, commands[i:]...)
			break
		}
		msg, err := send(ctx, cmd)
		results = append(results, Result{Command: cmd, Message: msg, Err: err})
		if err != nil && keep(err) {
			remaining = append(remaining, cmd)
		}
	}
	return results, o.Save(remaining)
}
