package game

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	mathrand "math/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"hearthrealm/internal/db"
	"hearthrealm/internal/rules"
)

// Roller is the randomness the rule functions draw from. *rand.Rand
// satisfies it; tests pass fixed sequences.
type Roller interface {
	Float64() float64
	Intn(n int) int
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Service struct {
	db    *pgxpool.Pool
	rules *rules.Rules
	log   *slog.Logger
	rng   *lockedRand
	now   func() time.Time
	week  time.Duration
}

func NewService(pool *pgxpool.Pool, r *rules.Rules, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		db:    pool,
		rules: r,
		log:   logger,
		rng:   &lockedRand{r: mathrand.New(mathrand.NewSource(time.Now().UnixNano()))},
		now:   time.Now,
		week:  time.Hour,
	}
}

func (s *Service) Rules() *rules.Rules { return s.rules }

// SetWeekLength sets how much wall-clock time one world week spans. It
// should match the world tick interval.
func (s *Service) SetWeekLength(d time.Duration) {
	if d > 0 {
		s.week = d
	}
}

type lockedRand struct {
	mu sync.Mutex
	r  *mathrand.Rand
}

func (l *lockedRand) Float64() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Float64()
}

func (l *lockedRand) Intn(n int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Intn(n)
}

// inTx runs fn in a transaction, retrying serialization failures with
// exponential backoff.
func (s *Service) inTx(ctx context.Context, iso pgx.TxIsoLevel, fn func(tx pgx.Tx) error) error {
	const maxAttempts = 8
	retryDelay := 75 * time.Millisecond
	for attempt := 0; attempt < maxAttempts; attempt++ {
		tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: iso})
		if err != nil {
			return err
		}
		err = func() error {
			defer tx.Rollback(ctx)
			if err := fn(tx); err != nil {
				return err
			}
			return tx.Commit(ctx)
		}()
		if err == nil {
			return nil
		}
		if !isSerializationError(err) {
			return err
		}
		if attempt == maxAttempts-1 {
			return ErrTxConflict
		}
		if err := sleepWithContext(ctx, retryDelay); err != nil {
			return err
		}
		if retryDelay < 1200*time.Millisecond {
			retryDelay *= 2
		}
	}
	return ErrTxConflict
}

func isSerializationError(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && (pgErr.Code == "40001" || pgErr.Code == "40P01")
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// optional treats a missing row as no error.
func optional(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return nil
	}
	return err
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func claimIdempotency(ctx context.Context, tx pgx.Tx, playerID int64, key, action string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return fieldError("idempotency_key", "is required")
	}
	cmd, err := tx.Exec(ctx, `
		INSERT INTO realm.idempotency_keys (player_id, key, action, created_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (player_id, key) DO NOTHING
	`, playerID, key, action)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrDuplicateIdempotency
	}
	return nil
}

// appendLedger records a gold movement between a player's wallet and a
// named counterparty account (treasury:<id>, religion:<id>, house, ...).
func appendLedger(ctx context.Context, q querier, playerID int64, counterparty, action string, walletDelta int64) error {
	if walletDelta == 0 {
		return nil
	}
	meta, _ := json.Marshal(map[string]any{"action": action})
	var pid any
	if playerID > 0 {
		pid = playerID
	}
	_, err := q.Exec(ctx, `
		INSERT INTO realm.ledger_entries (tx_group_id, player_id, account, delta, metadata)
		VALUES
		($1, $2, 'wallet', $3, $5::jsonb),
		($1, $2, $4, $6, $5::jsonb)
	`, uuid.New(), pid, walletDelta, counterparty, string(meta), -walletDelta)
	return err
}

// claimJobRun marks (job, period) as done; ErrAlreadyRan when it already was.
func claimJobRun(ctx context.Context, q querier, job, period string, summary any) error {
	raw, err := json.Marshal(summary)
	if err != nil {
		return err
	}
	cmd, err := q.Exec(ctx, `
		INSERT INTO realm.job_runs (job, period_key, summary)
		VALUES ($1, $2, $3::jsonb)
		ON CONFLICT (job, period_key) DO NOTHING
	`, job, period, string(raw))
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s %s", ErrAlreadyRan, job, period)
	}
	return nil
}

func updateJobSummary(ctx context.Context, q querier, job, period string, summary any) error {
	raw, err := json.Marshal(summary)
	if err != nil {
		return err
	}
	_, err = q.Exec(ctx, `UPDATE realm.job_runs SET summary = $3::jsonb WHERE job = $1 AND period_key = $2`, job, period, string(raw))
	return err
}

// publishEvent stores a world event and notifies listeners in the same
// transaction, so the NOTIFY only fires if the write commits.
func publishEvent(ctx context.Context, q querier, kind string, locationID int64, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	var loc any
	if locationID > 0 {
		loc = locationID
	}
	var id int64
	if err := q.QueryRow(ctx, `
		INSERT INTO realm.world_events (kind, location_id, payload)
		VALUES ($1, $2, $3::jsonb)
		RETURNING id
	`, kind, loc, string(body)).Scan(&id); err != nil {
		return err
	}
	envelope, err := json.Marshal(WorldEvent{ID: id, Kind: kind, LocationID: locationID, Payload: body})
	if err != nil {
		return err
	}
	// NOTIFY payloads are capped at 8000 bytes.
	if len(envelope) > 7900 {
		envelope, _ = json.Marshal(WorldEvent{ID: id, Kind: kind, LocationID: locationID})
	}
	_, err = q.Exec(ctx, `SELECT pg_notify($1, $2)`, db.ChannelEvents, string(envelope))
	return err
}
