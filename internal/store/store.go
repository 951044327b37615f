package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"cashflip/internal/game"
)

// Querier is the subset of pgx satisfied by both *pgxpool.Pool and pgx.Tx, so
// the same statements run standalone or inside a ledger transaction.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// SessionStore persists sessions and flip events in postgres.
type SessionStore struct {
	pool *pgxpool.Pool
}

func NewSessionStore(pool *pgxpool.Pool) *SessionStore {
	return &SessionStore{pool: pool}
}

// UpsertSession writes the full session row. The ledger calls this inside its
// wallet transaction so money and session state commit together.
func UpsertSession(ctx context.Context, q Querier, s *game.Session) error {
	snapshot, err := json.Marshal(s.Snapshot)
	if err != nil {
		return fmt.Errorf("failed to encode config snapshot: %w", err)
	}

	_, err = q.Exec(ctx, `
		INSERT INTO sessions (
			id, player_id, currency, stake_amount, cashout_balance, total_won,
			total_flips, server_seed, server_seed_hash, client_seed, nonce,
			status, started_at, last_flip_at, paused_at, snapshot, budget,
			holiday_boosted, override_id
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)
		ON CONFLICT (id) DO UPDATE SET
			cashout_balance = EXCLUDED.cashout_balance,
			total_won       = EXCLUDED.total_won,
			total_flips     = EXCLUDED.total_flips,
			nonce           = EXCLUDED.nonce,
			status          = EXCLUDED.status,
			last_flip_at    = EXCLUDED.last_flip_at,
			paused_at       = EXCLUDED.paused_at,
			override_id     = EXCLUDED.override_id`,
		s.ID, s.PlayerID, s.Currency, s.StakeAmount, s.CashoutBalance, s.TotalWon,
		s.TotalFlips, s.ServerSeed, s.ServerSeedHash, s.ClientSeed, s.Nonce,
		s.Status, s.StartedAt, s.LastFlipAt, s.PausedAt, snapshot, s.Budget,
		s.HolidayBoosted, s.OverrideID)
	if err != nil {
		return fmt.Errorf("failed to upsert session %s: %w", s.ID, err)
	}
	return nil
}

func (st *SessionStore) Save(ctx context.Context, s *game.Session) error {
	return UpsertSession(ctx, st.pool, s)
}

func (st *SessionStore) Load(ctx context.Context, id string) (*game.Session, error) {
	var (
		s        game.Session
		snapshot []byte
	)
	err := st.pool.QueryRow(ctx, `
		SELECT id, player_id, currency, stake_amount, cashout_balance, total_won,
		       total_flips, server_seed, server_seed_hash, client_seed, nonce,
		       status, started_at, last_flip_at, paused_at, snapshot, budget,
		       holiday_boosted, override_id
		FROM sessions WHERE id = $1`, id).Scan(
		&s.ID, &s.PlayerID, &s.Currency, &s.StakeAmount, &s.CashoutBalance,
		&s.TotalWon, &s.TotalFlips, &s.ServerSeed, &s.ServerSeedHash,
		&s.ClientSeed, &s.Nonce, &s.Status, &s.StartedAt, &s.LastFlipAt,
		&s.PausedAt, &snapshot, &s.Budget, &s.HolidayBoosted, &s.OverrideID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, game.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session %s: %w", id, err)
	}

	if err := json.Unmarshal(snapshot, &s.Snapshot); err != nil {
		return nil, fmt.Errorf("failed to decode config snapshot for session %s: %w", id, err)
	}
	return &s, nil
}

func (st *SessionStore) AppendFlipEvent(ctx context.Context, ev *game.FlipEvent) error {
	_, err := st.pool.Exec(ctx, `
		INSERT INTO flip_events (
			id, session_id, flip_number, roll, is_zero, denomination_id,
			amount, overridden, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		ev.ID, ev.SessionID, ev.FlipNumber, ev.Roll, ev.IsZero,
		ev.DenominationID, ev.Amount, ev.Overridden, ev.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to append flip event for session %s: %w", ev.SessionID, err)
	}
	return nil
}

func (st *SessionStore) Events(ctx context.Context, sessionID string) ([]game.FlipEvent, error) {
	rows, err := st.pool.Query(ctx, `
		SELECT id, session_id, flip_number, roll, is_zero, denomination_id,
		       amount, overridden, created_at
		FROM flip_events WHERE session_id = $1 ORDER BY flip_number`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load flip events for session %s: %w", sessionID, err)
	}
	defer rows.Close()

	var events []game.FlipEvent
	for rows.Next() {
		var ev game.FlipEvent
		if err := rows.Scan(&ev.ID, &ev.SessionID, &ev.FlipNumber, &ev.Roll,
			&ev.IsZero, &ev.DenominationID, &ev.Amount, &ev.Overridden,
			&ev.CreatedAt); err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}
