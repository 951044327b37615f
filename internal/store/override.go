package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"cashflip/internal/game"
)

// OverrideStore serves administrator test overrides from postgres.
type OverrideStore struct {
	pool *pgxpool.Pool
}

func NewOverrideStore(pool *pgxpool.Pool) *OverrideStore {
	return &OverrideStore{pool: pool}
}

func (st *OverrideStore) Enabled(ctx context.Context) ([]*game.OverrideConfig, error) {
	rows, err := st.pool.Query(ctx, `
		SELECT id, name, enabled, mode, force_zero_at_flip,
		       fixed_zero_probability, win_streak_length, scope, session_id,
		       auto_disable_after, sessions_used
		FROM override_configs WHERE enabled`)
	if err != nil {
		return nil, fmt.Errorf("failed to load override configs: %w", err)
	}
	defer rows.Close()

	var configs []*game.OverrideConfig
	for rows.Next() {
		var cfg game.OverrideConfig
		if err := rows.Scan(&cfg.ID, &cfg.Name, &cfg.Enabled, &cfg.Mode,
			&cfg.ForceZeroAtFlip, &cfg.FixedZeroProbability,
			&cfg.WinStreakLength, &cfg.Scope, &cfg.SessionID,
			&cfg.AutoDisableAfter, &cfg.SessionsUsed); err != nil {
			return nil, err
		}
		configs = append(configs, &cfg)
	}
	return configs, rows.Err()
}

// MarkUsed burns one influenced session. Crossing the auto-disable limit
// flips the config off in the same statement, so concurrent sessions cannot
// race past it.
func (st *OverrideStore) MarkUsed(ctx context.Context, id int64) error {
	_, err := st.pool.Exec(ctx, `
		UPDATE override_configs SET
			sessions_used = sessions_used + 1,
			enabled = CASE
				WHEN auto_disable_after > 0 AND sessions_used + 1 >= auto_disable_after
				THEN false ELSE enabled
			END,
			updated_at = now()
		WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to mark override %d used: %w", id, err)
	}
	return nil
}
