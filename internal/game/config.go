package game

import (
	"time"

	"github.com/shopspring/decimal"
)

// PayoutMode selects which resolver computes flip outcomes.
type PayoutMode string

const (
	// ModeEscalatingCurve targets an average session length; the zero
	// probability grows with each flip.
	ModeEscalatingCurve PayoutMode = "escalating_curve"
	// ModeBudgetDecay fixes the session payout budget up front and decays
	// it geometrically across flips (what you see is what you get).
	ModeBudgetDecay PayoutMode = "budget_decay"
)

// ExpiredBalancePolicy decides what happens to an accumulated balance when a
// session is force-expired by the duration limit.
type ExpiredBalancePolicy string

const (
	ExpiredForfeit ExpiredBalancePolicy = "forfeit"
	ExpiredCredit  ExpiredBalancePolicy = "credit"
)

// ZERO_PROBABILITY_CAP is the hard ceiling on the escalating curve.
const ZERO_PROBABILITY_CAP = 0.95

// Denomination is a cash amount that can be won on a flip. The shown value
// equals the credited amount.
type Denomination struct {
	ID           int64           `json:"id"`
	Value        decimal.Decimal `json:"value"`
	Weight       int             `json:"weight"`
	IsZero       bool            `json:"is_zero"`
	Active       bool            `json:"active"`
	DisplayOrder int             `json:"display_order"`
}

// StakeTier maps an inclusive stake range to the denomination subset eligible
// for it.
type StakeTier struct {
	ID              int64           `json:"id"`
	Name            string          `json:"name"`
	MinStake        decimal.Decimal `json:"min_stake"`
	MaxStake        decimal.Decimal `json:"max_stake"`
	DenominationIDs []int64         `json:"denomination_ids"`
	Active          bool            `json:"active"`
}

// Contains reports whether a stake falls inside the tier's range.
func (t *StakeTier) Contains(stake decimal.Decimal) bool {
	return t.Active &&
		stake.GreaterThanOrEqual(t.MinStake) &&
		stake.LessThanOrEqual(t.MaxStake)
}

// CurveParams drive the escalating-curve resolver.
type CurveParams struct {
	ZeroBaseRate       float64 `json:"zero_base_rate"`
	ZeroGrowthRate     float64 `json:"zero_growth_rate"`
	MinFlipsBeforeZero int     `json:"min_flips_before_zero"`
}

// HolidayTrigger occasionally boosts a session's payout budget. Rolled once
// per session start, never per flip.
type HolidayTrigger struct {
	Enabled        bool    `json:"enabled"`
	BoostPct       float64 `json:"boost_pct"`
	FrequencyOneIn int     `json:"frequency_one_in"`
	MaxTierCeiling int64   `json:"max_tier_ceiling"` // highest eligible tier id
}

// BudgetParams drive the budget-decay resolver.
type BudgetParams struct {
	NormalPayoutTargetPct float64        `json:"normal_payout_target_pct"`
	BoostPayoutTargetPct  float64        `json:"boost_payout_target_pct"`
	DecayFactor           float64        `json:"decay_factor"`
	JitterWidth           float64        `json:"jitter_width"`
	Holiday               HolidayTrigger `json:"holiday"`
}

// PayoutConfig is one versioned, administrator-controlled parameter set.
// Exactly one version is active per currency at a time.
type PayoutConfig struct {
	Version  int        `json:"version"`
	Currency string     `json:"currency"`
	Mode     PayoutMode `json:"mode"`

	MinStake              decimal.Decimal      `json:"min_stake"`
	MaxCashout            decimal.Decimal      `json:"max_cashout"`
	MinFlipsBeforeCashout int                  `json:"min_flips_before_cashout"`
	MaxSessionDuration    time.Duration        `json:"max_session_duration"`
	PauseCostPercent      decimal.Decimal      `json:"pause_cost_percent"`
	MaxFlipsPerSession    int                  `json:"max_flips_per_session"`
	ExpiredPolicy         ExpiredBalancePolicy `json:"expired_policy"`

	Curve  CurveParams  `json:"curve"`
	Budget BudgetParams `json:"budget"`
}

// ConfigSnapshot is the immutable view of the configuration a session pins at
// start. Administrators may change the live tables mid-flight; a running
// session never observes that.
type ConfigSnapshot struct {
	Config        PayoutConfig   `json:"config"`
	Denominations []Denomination `json:"denominations"`
	Tiers         []StakeTier    `json:"tiers"`
}

// TierFor returns the active tier the stake falls into, or nil.
func (s *ConfigSnapshot) TierFor(stake decimal.Decimal) *StakeTier {
	for i := range s.Tiers {
		if s.Tiers[i].Contains(stake) {
			return &s.Tiers[i]
		}
	}
	return nil
}

// EligiblePool returns the win denominations a stake can draw from: active,
// non-zero, filtered by the stake's tier. A stake outside every active tier
// falls back to the full active non-zero catalogue.
func (s *ConfigSnapshot) EligiblePool(stake decimal.Decimal) []Denomination {
	tier := s.TierFor(stake)

	var allowed map[int64]bool
	if tier != nil {
		allowed = make(map[int64]bool, len(tier.DenominationIDs))
		for _, id := range tier.DenominationIDs {
			allowed[id] = true
		}
	}

	var pool []Denomination
	for _, d := range s.Denominations {
		if !d.Active || d.IsZero {
			continue
		}
		if allowed != nil && !allowed[d.ID] {
			continue
		}
		pool = append(pool, d)
	}
	return pool
}

// Validate rejects a snapshot no session may start under.
func (s *ConfigSnapshot) Validate(stake decimal.Decimal) error {
	if s.Config.Mode != ModeEscalatingCurve && s.Config.Mode != ModeBudgetDecay {
		return &Error{
			Kind:    KindConfig,
			Code:    "InvalidMode",
			Message: "unknown payout mode: " + string(s.Config.Mode),
		}
	}

	pool := s.EligiblePool(stake)
	if len(pool) == 0 {
		return ErrEmptyDenominationPool
	}
	for _, d := range pool {
		if d.Weight <= 0 {
			return &Error{
				Kind:    KindConfig,
				Code:    "InvalidWeight",
				Message: "denomination weights must be positive",
			}
		}
	}

	if s.Config.Mode == ModeBudgetDecay {
		b := s.Config.Budget
		if b.DecayFactor <= 0 || b.NormalPayoutTargetPct <= 0 {
			return &Error{
				Kind:    KindConfig,
				Code:    "InvalidBudgetParams",
				Message: "budget-decay mode requires positive decay factor and payout target",
			}
		}
	}
	if s.Config.MaxFlipsPerSession <= 0 {
		return &Error{
			Kind:    KindConfig,
			Code:    "InvalidFlipLimit",
			Message: "max flips per session must be positive",
		}
	}

	return nil
}
