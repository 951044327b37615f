package game

// OverrideMode is an administrator test-harness behavior that replaces the
// resolver's zero-decision for designated sessions. Overrides never touch
// production randomness: the fair roll is still drawn and recorded.
type OverrideMode string

const (
	OverrideNormal           OverrideMode = "normal"
	OverrideForceZeroAt      OverrideMode = "force_zero_at"
	OverrideFixedProbability OverrideMode = "fixed_probability"
	OverrideStreakThenLose   OverrideMode = "streak_then_lose"
)

type OverrideScope string

const (
	ScopeSingleSession OverrideScope = "single_session"
	ScopeAllPlayers    OverrideScope = "all_players"
)

// OverrideConfig is one administrator test configuration. At most one may be
// enabled per scope; it burns out after AutoDisableAfter influenced sessions.
type OverrideConfig struct {
	ID      int64        `json:"id"`
	Name    string       `json:"name"`
	Enabled bool         `json:"enabled"`
	Mode    OverrideMode `json:"mode"`

	ForceZeroAtFlip      int     `json:"force_zero_at_flip,omitempty"`
	FixedZeroProbability float64 `json:"fixed_zero_probability,omitempty"`
	WinStreakLength      int     `json:"win_streak_length,omitempty"`

	Scope     OverrideScope `json:"scope"`
	SessionID string        `json:"session_id,omitempty"` // single_session binding

	AutoDisableAfter int `json:"auto_disable_after"`
	SessionsUsed     int `json:"sessions_used"`
}

// OverrideDecision replaces (or passes through) the resolver's zero-decision.
// A forced win still selects its denomination through the normal weighted
// draw.
type OverrideDecision int

const (
	DecisionPassThrough OverrideDecision = iota
	DecisionForceZero
	DecisionForceWin
)

// AppliesTo reports whether this override intercepts the given session.
func (o *OverrideConfig) AppliesTo(sessionID string) bool {
	if o == nil || !o.Enabled || o.Mode == OverrideNormal {
		return false
	}
	if o.Scope == ScopeSingleSession {
		return o.SessionID == sessionID
	}
	return true
}

// Decide replaces the zero-decision for one flip. The fair roll is consumed
// only by fixed_probability mode; the other modes decide on flip number
// alone.
func (o *OverrideConfig) Decide(flipNumber int, roll float64) OverrideDecision {
	switch o.Mode {
	case OverrideForceZeroAt:
		if flipNumber == o.ForceZeroAtFlip {
			return DecisionForceZero
		}
		return DecisionForceWin
	case OverrideFixedProbability:
		if roll < o.FixedZeroProbability {
			return DecisionForceZero
		}
		return DecisionForceWin
	case OverrideStreakThenLose:
		if flipNumber <= o.WinStreakLength {
			return DecisionForceWin
		}
		return DecisionForceZero
	default:
		return DecisionPassThrough
	}
}

// MarkUsed burns one influenced session and reports whether the config must
// now disable itself. Called exactly once per influenced session, when that
// session reaches a terminal state.
func (o *OverrideConfig) MarkUsed() (disabled bool) {
	o.SessionsUsed++
	if o.AutoDisableAfter > 0 && o.SessionsUsed >= o.AutoDisableAfter {
		o.Enabled = false
		return true
	}
	return false
}
