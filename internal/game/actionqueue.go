package game

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"

	"hearthrealm/internal/db"
	"hearthrealm/internal/rules"
)

const (
	QueueActive    = "active"
	QueueCompleted = "completed"
	QueueCancelled = "cancelled"
	QueueFailed    = "failed"

	maxRepetitions = 1000
	queueBatchSize = 50
)

type StartQueueInput struct {
	PlayerID    int64
	Action      string
	Repetitions int
}

type QueueView struct {
	ID            int64     `json:"id"`
	Action        string    `json:"action"`
	Repetitions   int       `json:"repetitions"`
	CompletedReps int       `json:"completed_reps"`
	Successes     int       `json:"successes"`
	XPGained      int64     `json:"xp_gained"`
	Status        string    `json:"status"`
	FailureReason string    `json:"failure_reason,omitempty"`
	NextRunAt     time.Time `json:"next_run_at"`
	CreatedAt     time.Time `json:"created_at"`
}

type ProcessReport struct {
	Claimed   int `json:"claimed"`
	Succeeded int `json:"succeeded"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
}

// SuccessChance is the odds one repetition of a yields its outputs.
func SuccessChance(a rules.Action, level int) float64 {
	return clampFloat(a.BaseSuccess+a.SuccessPerLevel*float64(level), 0, 0.95)
}

const queueColumns = `id, action, repetitions, completed_reps, successes, xp_gained, status, COALESCE(failure_reason, ''), next_run_at, created_at`

func scanQueue(row pgx.Row) (QueueView, error) {
	var q QueueView
	err := row.Scan(&q.ID, &q.Action, &q.Repetitions, &q.CompletedReps, &q.Successes, &q.XPGained, &q.Status, &q.FailureReason, &q.NextRunAt, &q.CreatedAt)
	return q, err
}

// StartQueue schedules repetitions of a skilling action for the player.
func (s *Service) StartQueue(ctx context.Context, in StartQueueInput) (QueueView, error) {
	var out QueueView
	a, ok := s.rules.Actions[in.Action]
	if !ok {
		return out, fieldError("action", "unknown action")
	}
	if in.Repetitions < 1 || in.Repetitions > maxRepetitions {
		return out, fieldError("repetitions", fmt.Sprintf("must be between 1 and %d", maxRepetitions))
	}
	err := s.inTx(ctx, pgx.ReadCommitted, func(tx pgx.Tx) error {
		p, err := lockPlayerTx(ctx, tx, in.PlayerID)
		if err != nil {
			return err
		}
		if err := ensureIdleTx(ctx, tx, p.ID); err != nil {
			return err
		}
		level, err := skillLevelTx(ctx, tx, p.ID, a.Skill)
		if err != nil {
			return err
		}
		if level < a.Level {
			return fmt.Errorf("%w: %s needs %s level %d", ErrInvalidInput, in.Action, a.Skill, a.Level)
		}
		out, err = scanQueue(tx.QueryRow(ctx, `
			INSERT INTO realm.action_queues (player_id, action, repetitions, next_run_at)
			VALUES ($1, $2, $3, $4)
			RETURNING `+queueColumns,
			p.ID, in.Action, in.Repetitions, s.now()))
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: an action queue is already running", ErrConflict)
		}
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `SELECT pg_notify($1, $2)`, db.ChannelActionQueue, strconv.FormatInt(out.ID, 10))
		return err
	})
	return out, err
}

func (s *Service) CancelQueue(ctx context.Context, playerID int64) (QueueView, error) {
	out, err := scanQueue(s.db.QueryRow(ctx, `
		UPDATE realm.action_queues SET status = 'cancelled', updated_at = now()
		WHERE player_id = $1 AND status = 'active'
		RETURNING `+queueColumns, playerID))
	if err == pgx.ErrNoRows {
		return out, fmt.Errorf("%w: no active action queue", ErrNotFound)
	}
	return out, err
}

// QueueStatus returns the active queue, or the most recent one.
func (s *Service) QueueStatus(ctx context.Context, playerID int64) (QueueView, error) {
	out, err := scanQueue(s.db.QueryRow(ctx, `
		SELECT `+queueColumns+` FROM realm.action_queues
		WHERE player_id = $1
		ORDER BY (status = 'active') DESC, created_at DESC
		LIMIT 1
	`, playerID))
	if err == pgx.ErrNoRows {
		return out, fmt.Errorf("%w: no action queue", ErrNotFound)
	}
	return out, err
}

// ProcessQueues runs one repetition for each due queue, claiming at most
// one batch so several workers can share the table.
func (s *Service) ProcessQueues(ctx context.Context) (ProcessReport, error) {
	var rep ProcessReport
	err := s.inTx(ctx, pgx.ReadCommitted, func(tx pgx.Tx) error {
		rep = ProcessReport{}
		rows, err := tx.Query(ctx, `
			SELECT id, player_id, action, repetitions, completed_reps
			FROM realm.action_queues
			WHERE status = 'active' AND next_run_at <= $1
			ORDER BY next_run_at
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		`, s.now(), queueBatchSize)
		if err != nil {
			return err
		}
		type due struct {
			id, playerID int64
			action       string
			reps, done   int
		}
		var batch []due
		for rows.Next() {
			var d due
			if err := rows.Scan(&d.id, &d.playerID, &d.action, &d.reps, &d.done); err != nil {
				rows.Close()
				return err
			}
			batch = append(batch, d)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}
		rep.Claimed = len(batch)
		for _, d := range batch {
			outcome, err := s.runRepetitionTx(ctx, tx, d.id, d.playerID, d.action, d.reps, d.done)
			if err != nil {
				return fmt.Errorf("queue %d: %w", d.id, err)
			}
			switch outcome {
			case repSucceeded:
				rep.Succeeded++
			case repCompleted:
				rep.Succeeded++
				rep.Completed++
			case repCompletedMiss:
				rep.Completed++
			case repFailed:
				rep.Failed++
			}
		}
		return nil
	})
	if err != nil {
		return ProcessReport{}, err
	}
	if rep.Claimed > 0 {
		s.log.Debug("action queues processed", "claimed", rep.Claimed, "completed", rep.Completed, "failed", rep.Failed)
	}
	return rep, nil
}

type repOutcome int

const (
	repMissed repOutcome = iota
	repSucceeded
	repCompleted
	repCompletedMiss
	repFailed
)

func (s *Service) failQueueTx(ctx context.Context, tx pgx.Tx, queueID, playerID int64, reason string) (repOutcome, error) {
	if _, err := tx.Exec(ctx, `
		UPDATE realm.action_queues SET status = 'failed', failure_reason = $2, updated_at = now() WHERE id = $1
	`, queueID, reason); err != nil {
		return repFailed, err
	}
	return repFailed, publishEvent(ctx, tx, "queue.failed", 0, map[string]any{"player_id": playerID, "queue_id": queueID, "reason": reason})
}

// Repetition is the outcome of one queued action step.
type Repetition struct {
	FailReason  string
	EnergySpent int
	Success     bool
	Done        int
	Completed   bool
}

// RunRepetition plays one repetition of a. On success inv holds the
// consumed inputs and new outputs; otherwise it is left untouched. Energy is
// spent on every attempt that gets as far as the roll.
func RunRepetition(a rules.Action, rng Roller, energy, level int, inv *Inventory, done, reps int) Repetition {
	if energy < a.Energy {
		return Repetition{FailReason: "not enough energy", Done: done}
	}
	if !inv.HasAll(a.Inputs) {
		return Repetition{FailReason: "missing inputs", Done: done}
	}
	out := Repetition{EnergySpent: a.Energy, Done: done}
	if rng.Float64() < SuccessChance(a, level) {
		trial := inv.clone()
		for _, in := range a.Inputs {
			if err := trial.Remove(in.Item, in.Qty); err != nil {
				out.FailReason = "missing inputs"
				return out
			}
		}
		for _, o := range a.Outputs {
			if err := trial.Add(o.Item, o.Qty); err != nil {
				out.FailReason = "inventory full"
				return out
			}
		}
		*inv = *trial
		out.Success = true
	}
	out.Done = done + 1
	out.Completed = out.Done >= reps
	return out
}

func (s *Service) runRepetitionTx(ctx context.Context, tx pgx.Tx, queueID, playerID int64, action string, reps, done int) (repOutcome, error) {
	a, ok := s.rules.Actions[action]
	if !ok {
		return s.failQueueTx(ctx, tx, queueID, playerID, "unknown action")
	}
	p, err := lockPlayerTx(ctx, tx, playerID)
	if err != nil {
		return repFailed, err
	}
	inv, err := s.loadInventoryTx(ctx, tx, playerID)
	if err != nil {
		return repFailed, err
	}
	level, err := skillLevelTx(ctx, tx, playerID, a.Skill)
	if err != nil {
		return repFailed, err
	}

	res := RunRepetition(a, s.rng, p.Energy, level, inv, done, reps)
	if res.EnergySpent > 0 {
		if err := spendEnergyTx(ctx, tx, &p, res.EnergySpent); err != nil {
			return repFailed, err
		}
	}
	if res.FailReason != "" {
		return s.failQueueTx(ctx, tx, queueID, playerID, res.FailReason)
	}
	var xp int64
	if res.Success {
		if err := saveInventoryTx(ctx, tx, playerID, inv); err != nil {
			return repFailed, err
		}
		up, err := s.awardXPTx(ctx, tx, playerID, a.Skill, a.XP)
		if err != nil {
			return repFailed, err
		}
		xp = up.XPGained
		if up.To > up.From {
			if err := publishEvent(ctx, tx, "skill.level_up", p.LocationID, map[string]any{"player": p.Username, "skill": up.Skill, "level": up.To}); err != nil {
				return repFailed, err
			}
		}
	}

	status := QueueActive
	if res.Completed {
		status = QueueCompleted
	}
	okInc := 0
	if res.Success {
		okInc = 1
	}
	next := s.now().Add(time.Duration(a.DelaySeconds) * time.Second)
	if _, err := tx.Exec(ctx, `
		UPDATE realm.action_queues
		SET completed_reps = $2, successes = successes + $3, xp_gained = xp_gained + $4,
		    status = $5, next_run_at = $6, updated_at = now()
		WHERE id = $1
	`, queueID, res.Done, okInc, xp, status, next); err != nil {
		return repFailed, err
	}
	switch {
	case res.Completed && res.Success:
		return repCompleted, nil
	case res.Completed:
		return repCompletedMiss, nil
	case res.Success:
		return repSucceeded, nil
	}
	return repMissed, nil
}
