package game

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"
	"unicode"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"cashflip/internal/fair"
)

const (
	REDIS_KEY_SESSION_PREFIX = "cashflip:session:"
	SESSION_MIRROR_TTL       = 1 * time.Hour

	MAX_CLIENT_SEED_LEN = 64
)

// Ledger applies session outcomes to the player's durable wallet. Both
// methods are transactional: the wallet adjustment and the session record
// either both commit or neither does.
type Ledger interface {
	// DebitStake withdraws the stake and records the opened session.
	// Returns ErrInsufficientFunds when the wallet cannot cover it.
	DebitStake(ctx context.Context, s *Session) error
	// Settle credits amount (zero for losses and forfeits) and records the
	// session's terminal state.
	Settle(ctx context.Context, s *Session, amount decimal.Decimal) error
}

// SessionStore persists non-monetary session state and the append-only flip
// audit trail.
type SessionStore interface {
	Save(ctx context.Context, s *Session) error
	Load(ctx context.Context, id string) (*Session, error)
	AppendFlipEvent(ctx context.Context, ev *FlipEvent) error
	Events(ctx context.Context, sessionID string) ([]FlipEvent, error)
}

// ConfigStore serves the administrator-managed payout configuration.
type ConfigStore interface {
	// Snapshot returns the active configuration for a currency together
	// with the denomination catalogue and stake tiers, as one immutable
	// unit. Returns ErrNoActiveConfig when none is active.
	Snapshot(ctx context.Context, currency string) (*ConfigSnapshot, error)
}

// OverrideStore serves and settles administrator test overrides.
type OverrideStore interface {
	Enabled(ctx context.Context) ([]*OverrideConfig, error)
	// MarkUsed burns one influenced session and auto-disables the config
	// when its limit is reached.
	MarkUsed(ctx context.Context, id int64) error
}

// Engine owns session lifecycles. Requests across sessions run in parallel;
// within one session every operation goes through that session's TryLock, so
// a second concurrent request fails fast with FlipInProgress instead of
// queueing.
type Engine struct {
	ledger    Ledger
	store     SessionStore
	configs   ConfigStore
	overrides OverrideStore

	cache *redis.Client // optional live mirror of active sessions
	hub   *Hub          // optional flip event feed

	seedFn func() string

	mu    sync.RWMutex
	slots map[string]*sessionSlot
}

type sessionSlot struct {
	mu sync.Mutex
	s  *Session
}

func NewEngine(ledger Ledger, store SessionStore, configs ConfigStore, overrides OverrideStore) *Engine {
	return &Engine{
		ledger:    ledger,
		store:     store,
		configs:   configs,
		overrides: overrides,
		seedFn:    fair.GenerateSeed,
		slots:     make(map[string]*sessionSlot),
	}
}

// WithSeedSource replaces the server seed generator. Deterministic seeds make
// scripted scenarios reproducible; production always uses crypto/rand seeds.
func (e *Engine) WithSeedSource(fn func() string) *Engine {
	e.seedFn = fn
	return e
}

// WithCache mirrors active session views into Redis, like live round state.
func (e *Engine) WithCache(client *redis.Client) *Engine {
	e.cache = client
	return e
}

// WithHub broadcasts flip events to connected websocket clients.
func (e *Engine) WithHub(hub *Hub) *Engine {
	e.hub = hub
	return e
}

// StartSession validates the stake, pins a configuration snapshot, rolls the
// holiday trigger, and debits the stake atomically with the session insert.
func (e *Engine) StartSession(ctx context.Context, playerID string, stake decimal.Decimal, currency, clientSeed string) (*StartResult, error) {
	if !validClientSeed(clientSeed) {
		return nil, ErrInvalidSeed
	}
	if clientSeed == "" {
		clientSeed = fair.GenerateSeed()
	}

	snap, err := e.configs.Snapshot(ctx, currency)
	if err != nil {
		return nil, err
	}
	if stake.LessThan(snap.Config.MinStake) {
		return nil, ErrInvalidStake
	}
	if err := snap.Validate(stake); err != nil {
		return nil, err
	}

	serverSeed := e.seedFn()
	now := time.Now()

	s := &Session{
		ID:             uuid.NewString(),
		PlayerID:       playerID,
		Currency:       currency,
		StakeAmount:    stake,
		CashoutBalance: decimal.Zero,
		TotalWon:       decimal.Zero,
		ServerSeed:     serverSeed,
		ServerSeedHash: fair.HashCommitment(serverSeed),
		ClientSeed:     clientSeed,
		Status:         StatusActive,
		StartedAt:      now,
		Snapshot:       *snap,
	}

	if snap.Config.Mode == ModeBudgetDecay {
		// Rolled once per session, never per flip.
		holidayRoll := fair.DrawSalted(serverSeed, clientSeed, "holiday", 0)
		s.HolidayBoosted = HolidayBoostApplies(snap, stake, holidayRoll)
		s.Budget = SessionBudget(stake, EffectiveTargetPct(snap, s.HolidayBoosted))
	}

	if err := e.ledger.DebitStake(ctx, s); err != nil {
		return nil, err
	}

	e.mu.Lock()
	e.slots[s.ID] = &sessionSlot{s: s}
	e.mu.Unlock()

	e.mirror(ctx, s)
	e.publish("session_started", s.View())
	log.Printf("[ENGINE] Session %s started: player=%s stake=%s %s mode=%s",
		s.ID, playerID, stake.StringFixed(2), currency, snap.Config.Mode)

	return &StartResult{
		SessionID:      s.ID,
		ServerSeedHash: s.ServerSeedHash,
		Stake:          stake,
		Currency:       currency,
	}, nil
}

// Flip resolves the next round for a session. Exactly one flip can be in
// flight per session; a concurrent call fails immediately.
func (e *Engine) Flip(ctx context.Context, sessionID string) (*FlipResult, error) {
	slot, err := e.slot(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !slot.mu.TryLock() {
		return nil, ErrFlipInProgress
	}
	defer slot.mu.Unlock()

	s := slot.s
	if err := e.expireIfStale(ctx, s); err != nil {
		return nil, err
	}
	if s.Status != StatusActive {
		return nil, ErrSessionNotActive
	}

	flipNumber := s.Nonce + 1
	roll := fair.Draw(s.ServerSeed, s.ClientSeed, flipNumber)
	denomRoll := fair.DrawSalted(s.ServerSeed, s.ClientSeed, "denom", flipNumber)

	outcome, overridden := e.resolve(ctx, s, flipNumber, roll, denomRoll)

	// Work on a copy; commit only after persistence succeeds so a ledger
	// failure leaves the session retryable.
	next := *s
	now := time.Now()
	next.Nonce = flipNumber
	next.TotalFlips = flipNumber
	next.LastFlipAt = &now

	ev := &FlipEvent{
		ID:         uuid.NewString(),
		SessionID:  s.ID,
		FlipNumber: flipNumber,
		Roll:       roll,
		IsZero:     outcome.IsZero,
		Amount:     decimal.Zero,
		Overridden: overridden,
		CreatedAt:  now,
	}

	if outcome.IsZero {
		next.CashoutBalance = decimal.Zero
		next.Status = StatusLost
		if err := e.ledger.Settle(ctx, &next, decimal.Zero); err != nil {
			return nil, e.ledgerError(s, err)
		}
	} else {
		win := e.clampWin(&next, outcome.Denomination.Value)
		next.CashoutBalance = next.CashoutBalance.Add(win)
		next.TotalWon = next.TotalWon.Add(win)
		ev.DenominationID = outcome.Denomination.ID
		ev.Amount = win
		if err := e.store.Save(ctx, &next); err != nil {
			return nil, e.ledgerError(s, err)
		}
	}

	*s = next
	if err := e.store.AppendFlipEvent(ctx, ev); err != nil {
		// The flip is committed; a lost audit row is logged, not replayed.
		log.Printf("[ENGINE] Failed to append flip event for session %s: %v", s.ID, err)
	}

	if s.Status.Terminal() {
		e.settleOverride(ctx, s)
	}
	e.mirror(ctx, s)
	e.publish("flip", ev)

	res := &FlipResult{
		IsZero:         outcome.IsZero,
		FlipNumber:     flipNumber,
		CashoutBalance: s.CashoutBalance,
		Status:         s.Status,
	}
	if !outcome.IsZero {
		res.DenominationValue = ev.Amount
	}
	if s.Status.Terminal() {
		res.ServerSeed = s.ServerSeed
	}
	return res, nil
}

// Cashout settles the accumulated balance to the player's wallet and reveals
// the server seed.
func (e *Engine) Cashout(ctx context.Context, sessionID string) (*CashoutResult, error) {
	slot, err := e.slot(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !slot.mu.TryLock() {
		return nil, ErrFlipInProgress
	}
	defer slot.mu.Unlock()

	s := slot.s
	if err := e.expireIfStale(ctx, s); err != nil {
		return nil, err
	}
	if s.Status != StatusActive {
		return nil, ErrSessionNotActive
	}
	if s.TotalFlips < s.Snapshot.Config.MinFlipsBeforeCashout {
		return nil, ErrCashoutTooEarly
	}
	if s.CashoutBalance.IsZero() {
		return nil, ErrNothingToCashOut
	}

	amount := s.CashoutBalance
	next := *s
	next.Status = StatusCashedOut
	if err := e.ledger.Settle(ctx, &next, amount); err != nil {
		return nil, e.ledgerError(s, err)
	}
	*s = next

	e.settleOverride(ctx, s)
	e.mirror(ctx, s)
	e.publish("cashout", s.View())
	log.Printf("[ENGINE] Session %s cashed out %s %s after %d flips",
		s.ID, amount.StringFixed(2), s.Currency, s.TotalFlips)

	return &CashoutResult{AmountSettled: amount, ServerSeed: s.ServerSeed}, nil
}

// Pause quotes or applies the pause fee. With confirm=false nothing mutates.
func (e *Engine) Pause(ctx context.Context, sessionID string, confirm bool) (*PauseQuote, error) {
	slot, err := e.slot(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !slot.mu.TryLock() {
		return nil, ErrFlipInProgress
	}
	defer slot.mu.Unlock()

	s := slot.s
	if err := e.expireIfStale(ctx, s); err != nil {
		return nil, err
	}
	if s.Status != StatusActive {
		return nil, ErrSessionNotActive
	}

	cost := s.CashoutBalance.Mul(s.Snapshot.Config.PauseCostPercent).Div(decimal.NewFromInt(100)).Round(2)
	quote := &PauseQuote{
		PauseCost:    cost,
		BalanceAfter: s.CashoutBalance.Sub(cost),
		Confirmed:    confirm,
	}
	if !confirm {
		return quote, nil
	}

	next := *s
	now := time.Now()
	next.CashoutBalance = quote.BalanceAfter
	next.Status = StatusPaused
	next.PausedAt = &now
	if err := e.store.Save(ctx, &next); err != nil {
		return nil, e.ledgerError(s, err)
	}
	*s = next

	e.mirror(ctx, s)
	e.publish("paused", s.View())
	return quote, nil
}

// Resume transitions paused → active without touching balance, nonce, or
// seeds.
func (e *Engine) Resume(ctx context.Context, sessionID string) error {
	slot, err := e.slot(ctx, sessionID)
	if err != nil {
		return err
	}
	if !slot.mu.TryLock() {
		return ErrFlipInProgress
	}
	defer slot.mu.Unlock()

	s := slot.s
	if err := e.expireIfStale(ctx, s); err != nil {
		return err
	}
	if s.Status != StatusPaused {
		return ErrSessionNotPaused
	}

	next := *s
	next.Status = StatusActive
	next.PausedAt = nil
	if err := e.store.Save(ctx, &next); err != nil {
		return e.ledgerError(s, err)
	}
	*s = next

	e.mirror(ctx, s)
	e.publish("resumed", s.View())
	return nil
}

// Session returns the player-visible view. Reads block behind an in-flight
// flip instead of failing; only writers use TryLock.
func (e *Engine) Session(ctx context.Context, sessionID string) (*SessionView, error) {
	slot, err := e.slot(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	slot.mu.Lock()
	v := slot.s.View()
	slot.mu.Unlock()
	return &v, nil
}

// Verify replays every recorded flip of a completed session against the
// revealed server seed. Must be bit-exact with the published commitment.
func (e *Engine) Verify(ctx context.Context, sessionID string) (*VerifyResult, error) {
	slot, err := e.slot(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	slot.mu.Lock()
	s := *slot.s
	slot.mu.Unlock()

	if !s.Status.Terminal() {
		return nil, &Error{
			Kind:    KindState,
			Code:    "SeedNotRevealed",
			Message: "verification is only possible after the session ends",
		}
	}

	events, err := e.store.Events(ctx, sessionID)
	if err != nil {
		return nil, e.ledgerError(&s, err)
	}

	result := &VerifyResult{
		SessionID:       s.ID,
		CommitmentValid: fair.VerifyCommitment(s.ServerSeed, s.ServerSeedHash),
		AllRollsMatch:   true,
	}
	for _, ev := range events {
		replayed := fair.Draw(s.ServerSeed, s.ClientSeed, ev.FlipNumber)
		check := FlipCheck{
			FlipNumber:   ev.FlipNumber,
			RecordedRoll: ev.Roll,
			ReplayedRoll: replayed,
			Overridden:   ev.Overridden,
			Match:        replayed == ev.Roll,
		}
		if !check.Match {
			result.AllRollsMatch = false
		}
		result.Flips = append(result.Flips, check)
	}
	return result, nil
}

// resolve runs the override layer, then the mode's resolver. The flip cap is
// enforced here: past MaxFlipsPerSession the outcome is a forced zero.
func (e *Engine) resolve(ctx context.Context, s *Session, flipNumber int, roll, denomRoll float64) (Outcome, bool) {
	cfg := s.Snapshot.Config
	if flipNumber > cfg.MaxFlipsPerSession {
		return Outcome{IsZero: true}, false
	}

	if ov := e.activeOverride(ctx, s); ov != nil {
		if s.OverrideID == 0 {
			s.OverrideID = ov.ID
		}
		switch ov.Decide(flipNumber, roll) {
		case DecisionForceZero:
			return Outcome{IsZero: true}, true
		case DecisionForceWin:
			// Budget exhaustion still outranks a forced win.
			return e.resolveNormal(s, flipNumber, roll, denomRoll, true), true
		}
	}

	return e.resolveNormal(s, flipNumber, roll, denomRoll, false), false
}

func (e *Engine) resolveNormal(s *Session, flipNumber int, roll, denomRoll float64, forceWin bool) Outcome {
	cfg := s.Snapshot.Config
	if cfg.Mode == ModeBudgetDecay {
		return ResolveBudget(&s.Snapshot, s.StakeAmount, s.Budget, s.TotalWon, flipNumber, denomRoll)
	}
	if forceWin {
		pool := s.Snapshot.EligiblePool(s.StakeAmount)
		return Outcome{Denomination: pickByWeight(pool, denomRoll)}
	}
	return ResolveCurve(&s.Snapshot, s.StakeAmount, flipNumber, roll, denomRoll)
}

// activeOverride finds the enabled override applicable to this session. A
// single-session binding takes precedence over an all-players config.
func (e *Engine) activeOverride(ctx context.Context, s *Session) *OverrideConfig {
	if e.overrides == nil {
		return nil
	}
	enabled, err := e.overrides.Enabled(ctx)
	if err != nil {
		log.Printf("[ENGINE] Failed to load overrides: %v", err)
		return nil
	}

	var global *OverrideConfig
	for _, ov := range enabled {
		if !ov.AppliesTo(s.ID) {
			continue
		}
		if ov.Scope == ScopeSingleSession {
			return ov
		}
		global = ov
	}
	return global
}

// settleOverride burns the influenced session against its override config,
// exactly once, at terminal time.
func (e *Engine) settleOverride(ctx context.Context, s *Session) {
	if s.OverrideID == 0 || e.overrides == nil {
		return
	}
	if err := e.overrides.MarkUsed(ctx, s.OverrideID); err != nil {
		log.Printf("[ENGINE] Failed to settle override %d: %v", s.OverrideID, err)
	}
}

// expireIfStale lazily expires a session that outlived its maximum duration.
// The balance disposition follows the configured policy.
func (e *Engine) expireIfStale(ctx context.Context, s *Session) error {
	cfg := s.Snapshot.Config
	if s.Status.Terminal() || cfg.MaxSessionDuration <= 0 {
		return nil
	}
	if time.Since(s.StartedAt) <= cfg.MaxSessionDuration {
		return nil
	}

	amount := decimal.Zero
	if cfg.ExpiredPolicy == ExpiredCredit {
		amount = s.CashoutBalance
	}

	next := *s
	next.Status = StatusExpired
	if err := e.ledger.Settle(ctx, &next, amount); err != nil {
		return e.ledgerError(s, err)
	}
	*s = next

	e.settleOverride(ctx, s)
	e.mirror(ctx, s)
	e.publish("expired", s.View())
	log.Printf("[ENGINE] Session %s expired, %s policy applied", s.ID, cfg.ExpiredPolicy)
	return ErrSessionExpired
}

// clampWin caps a win so the balance never exceeds the configured maximum
// cashout.
func (e *Engine) clampWin(s *Session, value decimal.Decimal) decimal.Decimal {
	max := s.Snapshot.Config.MaxCashout
	if max.IsPositive() && s.CashoutBalance.Add(value).GreaterThan(max) {
		return max.Sub(s.CashoutBalance)
	}
	return value
}

func (e *Engine) slot(ctx context.Context, sessionID string) (*sessionSlot, error) {
	e.mu.RLock()
	slot, ok := e.slots[sessionID]
	e.mu.RUnlock()
	if ok {
		return slot, nil
	}

	// Rehydrate from the store after a restart.
	s, err := e.store.Load(ctx, sessionID)
	if err != nil || s == nil {
		return nil, ErrSessionNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if existing, ok := e.slots[sessionID]; ok {
		return existing, nil
	}
	slot = &sessionSlot{s: s}
	e.slots[sessionID] = slot
	return slot, nil
}

// mirror writes the public session view to Redis for cheap reads, the way
// live round state is mirrored.
func (e *Engine) mirror(ctx context.Context, s *Session) {
	if e.cache == nil {
		return
	}
	data, err := json.Marshal(s.View())
	if err != nil {
		return
	}
	if err := e.cache.Set(ctx, REDIS_KEY_SESSION_PREFIX+s.ID, data, SESSION_MIRROR_TTL).Err(); err != nil {
		log.Printf("[ENGINE] Failed to mirror session %s: %v", s.ID, err)
	}
}

func (e *Engine) publish(msgType string, data interface{}) {
	if e.hub == nil {
		return
	}
	e.hub.Broadcast(map[string]interface{}{
		"type": msgType,
		"data": data,
	})
}

// validClientSeed accepts printable seeds up to MAX_CLIENT_SEED_LEN. The seed
// goes into HMAC messages and disclosure reports verbatim, so control
// characters are rejected.
func validClientSeed(seed string) bool {
	if len(seed) > MAX_CLIENT_SEED_LEN {
		return false
	}
	for _, r := range seed {
		if !unicode.IsPrint(r) {
			return false
		}
	}
	return true
}

func (e *Engine) ledgerError(s *Session, err error) error {
	if gameErr, ok := err.(*Error); ok {
		return gameErr
	}
	log.Printf("[ENGINE] Ledger failure for session %s: %v", s.ID, err)
	return ErrLedgerFailure
}
