package ledger

import (
	"context"
	"fmt"
	"log"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"cashflip/internal/game"
	"cashflip/internal/store"
)

// Transaction kinds recorded against wallet movements.
const (
	TX_KIND_STAKE   = "stake"
	TX_KIND_CASHOUT = "cashout"
	TX_KIND_LOSS    = "loss"
	TX_KIND_EXPIRY  = "expiry"
)

// PgLedger is the real-money boundary. Each operation runs the wallet
// adjustment, the audit row, and the session write in one transaction; a
// session never reaches a paid-out state without the wallet reflecting it.
type PgLedger struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *PgLedger {
	return &PgLedger{pool: pool}
}

func (l *PgLedger) DebitStake(ctx context.Context, s *game.Session) error {
	return l.withTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE wallets SET balance = balance - $1, updated_at = now()
			WHERE player_id = $2 AND currency = $3 AND balance >= $1`,
			s.StakeAmount, s.PlayerID, s.Currency)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return game.ErrInsufficientFunds
		}

		if err := l.recordTx(ctx, tx, s, TX_KIND_STAKE, s.StakeAmount.Neg()); err != nil {
			return err
		}
		return store.UpsertSession(ctx, tx, s)
	})
}

func (l *PgLedger) Settle(ctx context.Context, s *game.Session, amount decimal.Decimal) error {
	return l.withTx(ctx, func(tx pgx.Tx) error {
		if amount.IsPositive() {
			if _, err := tx.Exec(ctx, `
				UPDATE wallets SET balance = balance + $1, updated_at = now()
				WHERE player_id = $2 AND currency = $3`,
				amount, s.PlayerID, s.Currency); err != nil {
				return err
			}
		}

		if err := l.recordTx(ctx, tx, s, settleKind(s.Status), amount); err != nil {
			return err
		}
		return store.UpsertSession(ctx, tx, s)
	})
}

// settleKind labels the audit row by how the session ended. Zero-amount rows
// are still written so losses and forfeits leave a trace.
func settleKind(status game.SessionStatus) string {
	switch status {
	case game.StatusLost:
		return TX_KIND_LOSS
	case game.StatusExpired:
		return TX_KIND_EXPIRY
	default:
		return TX_KIND_CASHOUT
	}
}

func (l *PgLedger) recordTx(ctx context.Context, tx pgx.Tx, s *game.Session, kind string, amount decimal.Decimal) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO wallet_transactions (player_id, currency, session_id, kind, amount)
		VALUES ($1,$2,$3,$4,$5)`,
		s.PlayerID, s.Currency, s.ID, kind, amount)
	return err
}

func (l *PgLedger) withTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := l.pool.Begin(ctx)
	if err != nil {
		log.Printf("[LEDGER] Failed to begin transaction: %v", err)
		return game.ErrLedgerFailure
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		if gameErr, ok := err.(*game.Error); ok {
			return gameErr
		}
		log.Printf("[LEDGER] Transaction failed: %v", err)
		return game.ErrLedgerFailure
	}

	if err := tx.Commit(ctx); err != nil {
		log.Printf("[LEDGER] Commit failed: %v", err)
		return game.ErrLedgerFailure
	}
	return nil
}

// EnsureWallet opens a zero-balance wallet if the player has none yet.
func (l *PgLedger) EnsureWallet(ctx context.Context, playerID, currency string) error {
	_, err := l.pool.Exec(ctx, `
		INSERT INTO wallets (player_id, currency, balance)
		VALUES ($1, $2, 0)
		ON CONFLICT (player_id, currency) DO NOTHING`, playerID, currency)
	if err != nil {
		return fmt.Errorf("failed to ensure wallet for %s: %w", playerID, err)
	}
	return nil
}

// Balance reads the current wallet balance.
func (l *PgLedger) Balance(ctx context.Context, playerID, currency string) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := l.pool.QueryRow(ctx, `
		SELECT balance FROM wallets WHERE player_id = $1 AND currency = $2`,
		playerID, currency).Scan(&balance)
	if err == pgx.ErrNoRows {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to read balance for %s: %w", playerID, err)
	}
	return balance, nil
}

// Credit adds funds to a wallet (admin and testing surface).
func (l *PgLedger) Credit(ctx context.Context, playerID, currency string, amount decimal.Decimal) error {
	if err := l.EnsureWallet(ctx, playerID, currency); err != nil {
		return err
	}
	_, err := l.pool.Exec(ctx, `
		UPDATE wallets SET balance = balance + $1, updated_at = now()
		WHERE player_id = $2 AND currency = $3`, amount, playerID, currency)
	if err != nil {
		return fmt.Errorf("failed to credit wallet for %s: %w", playerID, err)
	}
	return nil
}
