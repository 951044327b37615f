package game

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"
)

// In-memory implementations of the engine's collaborator interfaces. The
// engine tests run against these; the postgres implementations live in
// internal/ledger and internal/store.

// MemoryLedger keeps wallet balances in a map and applies the same
// conditional-debit rule as the postgres ledger.
type MemoryLedger struct {
	mu       sync.Mutex
	balances map[string]decimal.Decimal

	// FailNext makes the next money movement fail, for exercising the
	// rollback path.
	FailNext bool
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{balances: make(map[string]decimal.Decimal)}
}

func walletKey(playerID, currency string) string {
	return playerID + ":" + currency
}

func (l *MemoryLedger) SetBalance(playerID, currency string, balance decimal.Decimal) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances[walletKey(playerID, currency)] = balance
}

func (l *MemoryLedger) Balance(playerID, currency string) decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[walletKey(playerID, currency)]
}

func (l *MemoryLedger) DebitStake(ctx context.Context, s *Session) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.FailNext {
		l.FailNext = false
		return ErrLedgerFailure
	}

	key := walletKey(s.PlayerID, s.Currency)
	balance := l.balances[key]
	if balance.LessThan(s.StakeAmount) {
		return ErrInsufficientFunds
	}
	l.balances[key] = balance.Sub(s.StakeAmount)
	return nil
}

func (l *MemoryLedger) Settle(ctx context.Context, s *Session, amount decimal.Decimal) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.FailNext {
		l.FailNext = false
		return ErrLedgerFailure
	}

	key := walletKey(s.PlayerID, s.Currency)
	l.balances[key] = l.balances[key].Add(amount)
	return nil
}

// MemoryStore persists sessions and flip events in maps.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]Session
	events   map[string][]FlipEvent
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]Session),
		events:   make(map[string][]FlipEvent),
	}
}

func (m *MemoryStore) Save(ctx context.Context, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = *s
	return nil
}

func (m *MemoryStore) Load(ctx context.Context, id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return &s, nil
}

func (m *MemoryStore) AppendFlipEvent(ctx context.Context, ev *FlipEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events[ev.SessionID] = append(m.events[ev.SessionID], *ev)
	return nil
}

func (m *MemoryStore) Events(ctx context.Context, sessionID string) ([]FlipEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	events := make([]FlipEvent, len(m.events[sessionID]))
	copy(events, m.events[sessionID])
	return events, nil
}

// MemoryConfigStore serves one snapshot per currency.
type MemoryConfigStore struct {
	mu        sync.Mutex
	snapshots map[string]ConfigSnapshot
}

func NewMemoryConfigStore() *MemoryConfigStore {
	return &MemoryConfigStore{snapshots: make(map[string]ConfigSnapshot)}
}

func (m *MemoryConfigStore) Put(currency string, snap ConfigSnapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots[currency] = snap
}

func (m *MemoryConfigStore) Snapshot(ctx context.Context, currency string) (*ConfigSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap, ok := m.snapshots[currency]
	if !ok {
		return nil, ErrNoActiveConfig
	}
	return &snap, nil
}

// MemoryOverrideStore holds administrator override configs.
type MemoryOverrideStore struct {
	mu      sync.Mutex
	configs map[int64]*OverrideConfig
}

func NewMemoryOverrideStore() *MemoryOverrideStore {
	return &MemoryOverrideStore{configs: make(map[int64]*OverrideConfig)}
}

func (m *MemoryOverrideStore) Put(cfg *OverrideConfig) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.configs[cfg.ID] = cfg
}

func (m *MemoryOverrideStore) Get(id int64) *OverrideConfig {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.configs[id]
}

func (m *MemoryOverrideStore) Enabled(ctx context.Context) ([]*OverrideConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var enabled []*OverrideConfig
	for _, cfg := range m.configs {
		if cfg.Enabled {
			copied := *cfg
			enabled = append(enabled, &copied)
		}
	}
	return enabled, nil
}

func (m *MemoryOverrideStore) MarkUsed(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cfg, ok := m.configs[id]
	if !ok {
		return nil
	}
	cfg.MarkUsed()
	return nil
}
