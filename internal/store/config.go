package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"cashflip/internal/game"
)

// ConfigStore serves the administrator-managed payout configuration tables.
// The engine pins the returned snapshot for the session's lifetime; live
// edits only affect sessions started afterwards.
type ConfigStore struct {
	pool *pgxpool.Pool
}

func NewConfigStore(pool *pgxpool.Pool) *ConfigStore {
	return &ConfigStore{pool: pool}
}

func (st *ConfigStore) Snapshot(ctx context.Context, currency string) (*game.ConfigSnapshot, error) {
	var raw []byte
	err := st.pool.QueryRow(ctx, `
		SELECT config FROM payout_configs
		WHERE currency = $1 AND active ORDER BY version DESC LIMIT 1`,
		currency).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, game.ErrNoActiveConfig
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load payout config for %s: %w", currency, err)
	}

	var snap game.ConfigSnapshot
	if err := json.Unmarshal(raw, &snap.Config); err != nil {
		return nil, fmt.Errorf("failed to decode payout config for %s: %w", currency, err)
	}

	if snap.Denominations, err = st.denominations(ctx, currency); err != nil {
		return nil, err
	}
	if snap.Tiers, err = st.tiers(ctx, currency); err != nil {
		return nil, err
	}
	return &snap, nil
}

func (st *ConfigStore) denominations(ctx context.Context, currency string) ([]game.Denomination, error) {
	rows, err := st.pool.Query(ctx, `
		SELECT id, value, weight, is_zero, active, display_order
		FROM denominations WHERE currency = $1 ORDER BY display_order`, currency)
	if err != nil {
		return nil, fmt.Errorf("failed to load denominations for %s: %w", currency, err)
	}
	defer rows.Close()

	var denoms []game.Denomination
	for rows.Next() {
		var d game.Denomination
		if err := rows.Scan(&d.ID, &d.Value, &d.Weight, &d.IsZero, &d.Active,
			&d.DisplayOrder); err != nil {
			return nil, err
		}
		denoms = append(denoms, d)
	}
	return denoms, rows.Err()
}

func (st *ConfigStore) tiers(ctx context.Context, currency string) ([]game.StakeTier, error) {
	rows, err := st.pool.Query(ctx, `
		SELECT id, name, min_stake, max_stake, denomination_ids, active
		FROM stake_tiers WHERE currency = $1 ORDER BY min_stake`, currency)
	if err != nil {
		return nil, fmt.Errorf("failed to load stake tiers for %s: %w", currency, err)
	}
	defer rows.Close()

	var tiers []game.StakeTier
	for rows.Next() {
		var t game.StakeTier
		if err := rows.Scan(&t.ID, &t.Name, &t.MinStake, &t.MaxStake,
			&t.DenominationIDs, &t.Active); err != nil {
			return nil, err
		}
		tiers = append(tiers, t)
	}
	return tiers, rows.Err()
}
