package game

import (
	"time"

	"github.com/shopspring/decimal"
)

type SessionStatus string

const (
	StatusActive    SessionStatus = "active"
	StatusLost      SessionStatus = "lost"
	StatusCashedOut SessionStatus = "cashed_out"
	StatusPaused    SessionStatus = "paused"
	StatusExpired   SessionStatus = "expired"
)

// Terminal reports whether no further transition is possible.
func (s SessionStatus) Terminal() bool {
	return s == StatusLost || s == StatusCashedOut || s == StatusExpired
}

// Session is one wagering episode. The nonce increases by exactly 1 per
// accepted flip and is never reused; CashoutBalance only ever grows on a win,
// shrinks by the pause fee, and is zeroed on loss or flushed on cashout.
type Session struct {
	ID       string `json:"id"`
	PlayerID string `json:"player_id"`
	Currency string `json:"currency"`

	StakeAmount    decimal.Decimal `json:"stake_amount"`
	CashoutBalance decimal.Decimal `json:"cashout_balance"`
	TotalWon       decimal.Decimal `json:"total_won"` // budget accounting, pause fees excluded
	TotalFlips     int             `json:"total_flips"`

	ServerSeed     string `json:"-"` // secret until a terminal state
	ServerSeedHash string `json:"server_seed_hash"`
	ClientSeed     string `json:"client_seed"`
	Nonce          int    `json:"nonce"`

	Status SessionStatus `json:"status"`

	StartedAt  time.Time  `json:"started_at"`
	LastFlipAt *time.Time `json:"last_flip_at,omitempty"`
	PausedAt   *time.Time `json:"paused_at,omitempty"`

	// Pinned at start; administrators changing live settings never affect
	// a running session.
	Snapshot ConfigSnapshot `json:"snapshot"`

	// Budget-decay state, fixed at start.
	Budget         decimal.Decimal `json:"budget"`
	HolidayBoosted bool            `json:"holiday_boosted"`

	// Simulation override influence, settled once at terminal time.
	OverrideID int64 `json:"override_id,omitempty"`
}

// FlipEvent is the append-only audit record of one accepted flip, used for
// provably-fair replay once the server seed is revealed.
type FlipEvent struct {
	ID             string          `json:"id"`
	SessionID      string          `json:"session_id"`
	FlipNumber     int             `json:"flip_number"` // equals the nonce
	Roll           float64         `json:"roll"`
	IsZero         bool            `json:"is_zero"`
	DenominationID int64           `json:"denomination_id,omitempty"`
	Amount         decimal.Decimal `json:"amount"`
	Overridden     bool            `json:"overridden"`
	CreatedAt      time.Time       `json:"created_at"`
}

// StartResult is returned to the caller of StartSession.
type StartResult struct {
	SessionID      string          `json:"session_id"`
	ServerSeedHash string          `json:"server_seed_hash"`
	Stake          decimal.Decimal `json:"stake"`
	Currency       string          `json:"currency"`
}

// FlipResult is returned to the caller of Flip.
type FlipResult struct {
	IsZero            bool            `json:"is_zero"`
	DenominationValue decimal.Decimal `json:"denomination_value,omitempty"`
	FlipNumber        int             `json:"flip_number"`
	CashoutBalance    decimal.Decimal `json:"cashout_balance"`
	Status            SessionStatus   `json:"status"`
	ServerSeed        string          `json:"server_seed,omitempty"` // revealed on terminal flips
}

// CashoutResult is returned to the caller of Cashout.
type CashoutResult struct {
	AmountSettled decimal.Decimal `json:"amount_settled"`
	ServerSeed    string          `json:"server_seed"`
}

// PauseQuote prices a pause without mutating the session (confirm=false).
type PauseQuote struct {
	PauseCost    decimal.Decimal `json:"pause_cost"`
	BalanceAfter decimal.Decimal `json:"balance_after"`
	Confirmed    bool            `json:"confirmed"`
}

// SessionView is the player-visible session state. The server seed appears
// only after the session reaches a terminal state.
type SessionView struct {
	ID             string          `json:"id"`
	PlayerID       string          `json:"player_id"`
	Currency       string          `json:"currency"`
	StakeAmount    decimal.Decimal `json:"stake_amount"`
	CashoutBalance decimal.Decimal `json:"cashout_balance"`
	TotalFlips     int             `json:"total_flips"`
	Status         SessionStatus   `json:"status"`
	ServerSeedHash string          `json:"server_seed_hash"`
	ClientSeed     string          `json:"client_seed"`
	ServerSeed     string          `json:"server_seed,omitempty"`
	StartedAt      time.Time       `json:"started_at"`
}

// View projects the session for players, hiding the seed until reveal time.
func (s *Session) View() SessionView {
	v := SessionView{
		ID:             s.ID,
		PlayerID:       s.PlayerID,
		Currency:       s.Currency,
		StakeAmount:    s.StakeAmount,
		CashoutBalance: s.CashoutBalance,
		TotalFlips:     s.TotalFlips,
		Status:         s.Status,
		ServerSeedHash: s.ServerSeedHash,
		ClientSeed:     s.ClientSeed,
		StartedAt:      s.StartedAt,
	}
	if s.Status.Terminal() {
		v.ServerSeed = s.ServerSeed
	}
	return v
}

// FlipCheck is one row of a replay verification report.
type FlipCheck struct {
	FlipNumber   int     `json:"flip_number"`
	RecordedRoll float64 `json:"recorded_roll"`
	ReplayedRoll float64 `json:"replayed_roll"`
	Overridden   bool    `json:"overridden"`
	Match        bool    `json:"match"`
}

// VerifyResult is the provably-fair replay report for a completed session.
type VerifyResult struct {
	SessionID       string      `json:"session_id"`
	CommitmentValid bool        `json:"commitment_valid"`
	AllRollsMatch   bool        `json:"all_rolls_match"`
	Flips           []FlipCheck `json:"flips"`
}
