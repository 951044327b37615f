package game

import (
	"math"

	"github.com/shopspring/decimal"
)

// Outcome is the result of resolving one flip: a loss that zeroes the
// session, or a won denomination.
type Outcome struct {
	IsZero       bool
	Denomination *Denomination
}

// ZeroProbability computes the escalating-curve loss probability for flip n
// (1-indexed). The first MinFlipsBeforeZero flips can never lose; past that
// the probability approaches 1 asymptotically and is capped at 0.95.
func ZeroProbability(p CurveParams, flipNumber int) float64 {
	if flipNumber <= p.MinFlipsBeforeZero {
		return 0
	}
	grown := p.ZeroBaseRate + (1-p.ZeroBaseRate)*(1-math.Exp(-p.ZeroGrowthRate*float64(flipNumber-p.MinFlipsBeforeZero)))
	return math.Min(ZERO_PROBABILITY_CAP, grown)
}

// ResolveCurve resolves flip n in escalating-curve mode. The zero decision
// uses the primary roll (roll < P loses, ties win); the win denomination is
// picked from the eligible pool by catalogue weight using the independently
// salted denomination roll.
func ResolveCurve(snap *ConfigSnapshot, stake decimal.Decimal, flipNumber int, roll, denomRoll float64) Outcome {
	if roll < ZeroProbability(snap.Config.Curve, flipNumber) {
		return Outcome{IsZero: true}
	}

	pool := snap.EligiblePool(stake)
	return Outcome{Denomination: pickByWeight(pool, denomRoll)}
}

// BudgetWeights returns the normalized geometric decay weights
// w_i = e^(-k*(i-1)) / sum for i = 1..maxFlips. They sum to 1.
func BudgetWeights(k float64, maxFlips int) []float64 {
	weights := make([]float64, maxFlips)
	var sum float64
	for i := 0; i < maxFlips; i++ {
		weights[i] = math.Exp(-k * float64(i))
		sum += weights[i]
	}
	for i := range weights {
		weights[i] /= sum
	}
	return weights
}

// SessionBudget is the total payout budget for a stake at a target percent,
// rounded to cents.
func SessionBudget(stake decimal.Decimal, targetPct float64) decimal.Decimal {
	return stake.Mul(decimal.NewFromFloat(targetPct)).Div(decimal.NewFromInt(100)).Round(2)
}

// HolidayBoostApplies rolls the per-session holiday trigger. Fires when the
// draw lands under 1/frequency and the stake's tier is at or below the
// configured ceiling tier. Stakes outside every tier are never boosted.
func HolidayBoostApplies(snap *ConfigSnapshot, stake decimal.Decimal, roll float64) bool {
	h := snap.Config.Budget.Holiday
	if !h.Enabled || h.FrequencyOneIn <= 0 {
		return false
	}
	tier := snap.TierFor(stake)
	if tier == nil || tier.ID > h.MaxTierCeiling {
		return false
	}
	return roll < 1.0/float64(h.FrequencyOneIn)
}

// EffectiveTargetPct picks the payout target for the whole session: boosted
// when the holiday trigger fired at start, normal otherwise.
func EffectiveTargetPct(snap *ConfigSnapshot, boosted bool) float64 {
	if boosted {
		return snap.Config.Budget.BoostPayoutTargetPct
	}
	return snap.Config.Budget.NormalPayoutTargetPct
}

// ResolveBudget resolves flip n in budget-decay mode. paidSoFar is the sum of
// payouts already made this session. The remaining budget must cover the
// smallest eligible denomination or the flip is a forced zero; otherwise the
// pick tracks the geometric per-flip target, jittered by the salted roll when
// the configuration asks for variance.
func ResolveBudget(snap *ConfigSnapshot, stake, budget, paidSoFar decimal.Decimal, flipNumber int, denomRoll float64) Outcome {
	pool := snap.EligiblePool(stake)
	remaining := budget.Sub(paidSoFar)

	var fits []Denomination
	for _, d := range pool {
		if d.Value.LessThanOrEqual(remaining) {
			fits = append(fits, d)
		}
	}
	if len(fits) == 0 {
		return Outcome{IsZero: true}
	}

	weights := BudgetWeights(snap.Config.Budget.DecayFactor, snap.Config.MaxFlipsPerSession)
	idx := flipNumber - 1
	if idx >= len(weights) {
		idx = len(weights) - 1
	}
	target := budget.Mul(decimal.NewFromFloat(weights[idx]))

	if snap.Config.Budget.JitterWidth > 0 {
		return Outcome{Denomination: pickNearTarget(fits, target, snap.Config.Budget.JitterWidth, denomRoll)}
	}
	return Outcome{Denomination: pickClosest(fits, target)}
}

// pickByWeight selects a denomination by relative catalogue weight. roll is
// in [0, 1]; the last entry absorbs rounding at the top of the range.
func pickByWeight(pool []Denomination, roll float64) *Denomination {
	if len(pool) == 0 {
		return nil
	}

	var total int
	for _, d := range pool {
		total += d.Weight
	}

	point := roll * float64(total)
	var cursor float64
	for i := range pool {
		cursor += float64(pool[i].Weight)
		if point < cursor {
			return &pool[i]
		}
	}
	return &pool[len(pool)-1]
}

// pickClosest is the zero-jitter budget pick: the fitting denomination whose
// value is closest to the target, ties broken toward the larger value.
func pickClosest(fits []Denomination, target decimal.Decimal) *Denomination {
	best := &fits[0]
	bestDist := fits[0].Value.Sub(target).Abs()
	for i := 1; i < len(fits); i++ {
		dist := fits[i].Value.Sub(target).Abs()
		switch {
		case dist.LessThan(bestDist):
			best, bestDist = &fits[i], dist
		case dist.Equal(bestDist) && fits[i].Value.GreaterThan(best.Value):
			best = &fits[i]
		}
	}
	return best
}

// pickNearTarget is the jittered budget pick: each fitting denomination is
// scored by catalogue weight discounted by its distance from the target, and
// the salted roll selects within the scored mass. Expected payout still
// tracks the budget curve while individual picks stay unpredictable.
func pickNearTarget(fits []Denomination, target decimal.Decimal, width float64, roll float64) *Denomination {
	scores := make([]float64, len(fits))
	var total float64
	for i, d := range fits {
		dist, _ := d.Value.Sub(target).Abs().Float64()
		scores[i] = float64(d.Weight) / (1.0 + dist/width)
		total += scores[i]
	}

	point := roll * total
	var cursor float64
	for i := range fits {
		cursor += scores[i]
		if point < cursor {
			return &fits[i]
		}
	}
	return &fits[len(fits)-1]
}
