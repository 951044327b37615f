package game

import (
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

// testSnapshot builds a small but realistic configuration: four win
// denominations, a zero marker, an inactive denomination, and two tiers.
func testSnapshot(mode PayoutMode) ConfigSnapshot {
	return ConfigSnapshot{
		Config: PayoutConfig{
			Version:               1,
			Currency:              "USD",
			Mode:                  mode,
			MinStake:              dec("0.50"),
			MaxCashout:            dec("1000.00"),
			MinFlipsBeforeCashout: 1,
			MaxSessionDuration:    30 * time.Minute,
			PauseCostPercent:      dec("10"),
			MaxFlipsPerSession:    20,
			ExpiredPolicy:         ExpiredForfeit,
			Curve: CurveParams{
				ZeroBaseRate:       0.05,
				ZeroGrowthRate:     0.08,
				MinFlipsBeforeZero: 2,
			},
			Budget: BudgetParams{
				NormalPayoutTargetPct: 95,
				BoostPayoutTargetPct:  120,
				DecayFactor:           0.3,
				Holiday: HolidayTrigger{
					Enabled:        true,
					FrequencyOneIn: 100,
					MaxTierCeiling: 1,
				},
			},
		},
		Denominations: []Denomination{
			{ID: 1, Value: dec("0.10"), Weight: 10, Active: true},
			{ID: 2, Value: dec("0.25"), Weight: 6, Active: true},
			{ID: 3, Value: dec("0.50"), Weight: 4, Active: true},
			{ID: 4, Value: dec("1.00"), Weight: 2, Active: true},
			{ID: 5, Value: dec("0.00"), Weight: 1, IsZero: true, Active: true},
			{ID: 6, Value: dec("5.00"), Weight: 1, Active: false},
		},
		Tiers: []StakeTier{
			{ID: 1, Name: "low", MinStake: dec("0.50"), MaxStake: dec("2.00"), DenominationIDs: []int64{1, 2, 3}, Active: true},
			{ID: 2, Name: "high", MinStake: dec("2.01"), MaxStake: dec("100.00"), DenominationIDs: []int64{2, 3, 4}, Active: true},
		},
	}
}

func TestZeroProbability_Curve(t *testing.T) {
	params := CurveParams{ZeroBaseRate: 0.05, ZeroGrowthRate: 0.08, MinFlipsBeforeZero: 2}

	tests := []struct {
		name string
		flip int
		want float64
	}{
		{name: "flip 1 is free", flip: 1, want: 0},
		{name: "flip 2 is free", flip: 2, want: 0},
		{name: "flip 3", flip: 3, want: 0.123},
		{name: "flip 10", flip: 10, want: 0.499},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ZeroProbability(params, tt.flip)
			if math.Abs(got-tt.want) > 0.001 {
				t.Errorf("ZeroProbability(%d) = %v, want %v", tt.flip, got, tt.want)
			}
		})
	}
}

func TestZeroProbability_MonotoneAndCapped(t *testing.T) {
	params := CurveParams{ZeroBaseRate: 0.05, ZeroGrowthRate: 0.08, MinFlipsBeforeZero: 2}

	prev := 0.0
	for n := 1; n <= 200; n++ {
		p := ZeroProbability(params, n)
		if p < prev {
			t.Fatalf("ZeroProbability decreased at flip %d: %v < %v", n, p, prev)
		}
		if p > ZERO_PROBABILITY_CAP {
			t.Fatalf("ZeroProbability(%d) = %v exceeds cap %v", n, p, ZERO_PROBABILITY_CAP)
		}
		prev = p
	}
}

func TestResolveCurve(t *testing.T) {
	snap := testSnapshot(ModeEscalatingCurve)
	stake := dec("1.00")

	t.Run("roll below P loses", func(t *testing.T) {
		// Flip 10 has P ~0.499
		out := ResolveCurve(&snap, stake, 10, 0.10, 0.5)
		if !out.IsZero {
			t.Error("expected a zero outcome")
		}
	})

	t.Run("roll above P wins", func(t *testing.T) {
		out := ResolveCurve(&snap, stake, 10, 0.90, 0.5)
		if out.IsZero {
			t.Fatal("expected a win")
		}
		if out.Denomination == nil {
			t.Fatal("win outcome missing denomination")
		}
	})

	t.Run("tie resolves to win", func(t *testing.T) {
		p := ZeroProbability(snap.Config.Curve, 10)
		out := ResolveCurve(&snap, stake, 10, p, 0.5)
		if out.IsZero {
			t.Error("roll == P must win, not lose")
		}
	})

	t.Run("early flips never lose", func(t *testing.T) {
		for flip := 1; flip <= 2; flip++ {
			out := ResolveCurve(&snap, stake, flip, 0.0, 0.5)
			if out.IsZero {
				t.Errorf("flip %d lost despite being below min_flips_before_zero", flip)
			}
		}
	})

	t.Run("win pool respects the stake tier", func(t *testing.T) {
		// Low tier excludes the 1.00 denomination.
		for roll := 0.0; roll < 1.0; roll += 0.05 {
			out := ResolveCurve(&snap, stake, 3, 0.99, roll)
			if out.IsZero {
				t.Fatal("expected a win")
			}
			if out.Denomination.ID == 4 {
				t.Errorf("denomination %d is outside the low tier", out.Denomination.ID)
			}
		}
	})
}

func TestPickByWeight(t *testing.T) {
	pool := []Denomination{
		{ID: 1, Value: dec("0.10"), Weight: 10, Active: true},
		{ID: 2, Value: dec("0.25"), Weight: 6, Active: true},
		{ID: 3, Value: dec("0.50"), Weight: 4, Active: true},
	}

	tests := []struct {
		name string
		roll float64
		want int64
	}{
		{name: "low roll picks heaviest", roll: 0.0, want: 1},
		{name: "middle of mass", roll: 0.6, want: 2},
		{name: "upper mass", roll: 0.9, want: 3},
		{name: "roll of 1 stays in range", roll: 1.0, want: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := pickByWeight(pool, tt.roll)
			if got.ID != tt.want {
				t.Errorf("pickByWeight(roll=%v) = %d, want %d", tt.roll, got.ID, tt.want)
			}
		})
	}
}

func TestBudgetWeights_Normalized(t *testing.T) {
	tests := []struct {
		name     string
		k        float64
		maxFlips int
	}{
		{name: "typical", k: 0.3, maxFlips: 20},
		{name: "short session", k: 0.5, maxFlips: 3},
		{name: "long session", k: 0.05, maxFlips: 200},
		{name: "single flip", k: 1.0, maxFlips: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			weights := BudgetWeights(tt.k, tt.maxFlips)
			if len(weights) != tt.maxFlips {
				t.Fatalf("len = %d, want %d", len(weights), tt.maxFlips)
			}

			var sum float64
			for i, w := range weights {
				sum += w
				if i > 0 && w > weights[i-1] {
					t.Errorf("weights must decay: w[%d]=%v > w[%d]=%v", i, w, i-1, weights[i-1])
				}
			}
			if math.Abs(sum-1.0) > 1e-9 {
				t.Errorf("weights sum = %v, want 1 within 1e-9", sum)
			}
		})
	}
}

func TestSessionBudget(t *testing.T) {
	budget := SessionBudget(dec("10.00"), 95)
	if !budget.Equal(dec("9.50")) {
		t.Errorf("SessionBudget(10.00, 95%%) = %s, want 9.50", budget)
	}
}

func TestResolveBudget_ExhaustionForcesZero(t *testing.T) {
	snap := testSnapshot(ModeBudgetDecay)
	stake := dec("1.00")
	budget := SessionBudget(stake, 95) // 0.95

	// Smallest eligible denomination is 0.10; with 0.90 already paid the
	// remaining 0.05 cannot cover it.
	out := ResolveBudget(&snap, stake, budget, dec("0.90"), 5, 0.5)
	if !out.IsZero {
		t.Error("exhausted budget must force a zero outcome")
	}

	// Exactly the smallest denomination remaining still fits.
	out = ResolveBudget(&snap, stake, budget, dec("0.85"), 5, 0.5)
	if out.IsZero {
		t.Error("a budget that covers the smallest denomination must not force zero")
	}
}

func TestResolveBudget_ClosestFit(t *testing.T) {
	snap := testSnapshot(ModeBudgetDecay)
	stake := dec("1.00")
	budget := dec("0.95")

	// Flip 1 carries the largest weight, so its target is the biggest
	// slice of the budget; the 0.25 denomination sits closest for these
	// parameters.
	out := ResolveBudget(&snap, stake, budget, decimal.Zero, 1, 0.5)
	if out.IsZero {
		t.Fatal("expected a win")
	}
	if !out.Denomination.Value.Equal(dec("0.25")) {
		t.Errorf("closest fit = %s, want 0.25", out.Denomination.Value)
	}

	// Deep into the session the target decays toward the smallest value.
	out = ResolveBudget(&snap, stake, budget, decimal.Zero, 15, 0.5)
	if out.IsZero {
		t.Fatal("expected a win")
	}
	if !out.Denomination.Value.Equal(dec("0.10")) {
		t.Errorf("decayed target fit = %s, want 0.10", out.Denomination.Value)
	}
}

func TestResolveBudget_NeverExceedsRemaining(t *testing.T) {
	snap := testSnapshot(ModeBudgetDecay)
	stake := dec("1.00")
	budget := dec("0.95")

	paid := decimal.Zero
	for flip := 1; flip <= snap.Config.MaxFlipsPerSession; flip++ {
		out := ResolveBudget(&snap, stake, budget, paid, flip, 0.37)
		if out.IsZero {
			return
		}
		paid = paid.Add(out.Denomination.Value)
		if paid.GreaterThan(budget) {
			t.Fatalf("paid %s exceeds budget %s at flip %d", paid, budget, flip)
		}
	}
}

func TestPickClosest_TieGoesToLarger(t *testing.T) {
	fits := []Denomination{
		{ID: 1, Value: dec("0.10"), Weight: 1},
		{ID: 2, Value: dec("0.30"), Weight: 1},
	}
	// Target 0.20 is equidistant; the larger value wins the tie.
	got := pickClosest(fits, dec("0.20"))
	if got.ID != 2 {
		t.Errorf("tie break picked %d, want the larger denomination", got.ID)
	}
}

func TestPickNearTarget_StaysWithinFits(t *testing.T) {
	fits := []Denomination{
		{ID: 1, Value: dec("0.10"), Weight: 10},
		{ID: 2, Value: dec("0.25"), Weight: 6},
		{ID: 3, Value: dec("0.50"), Weight: 4},
	}

	for roll := 0.0; roll <= 1.0; roll += 0.01 {
		got := pickNearTarget(fits, dec("0.25"), 0.1, roll)
		if got == nil {
			t.Fatalf("pickNearTarget returned nil at roll %v", roll)
		}
	}
}

func TestHolidayBoost(t *testing.T) {
	snap := testSnapshot(ModeBudgetDecay)

	t.Run("fires for low tier under threshold", func(t *testing.T) {
		if !HolidayBoostApplies(&snap, dec("1.00"), 0.005) {
			t.Error("draw below 1/frequency should fire for an eligible tier")
		}
	})

	t.Run("does not fire above threshold", func(t *testing.T) {
		if HolidayBoostApplies(&snap, dec("1.00"), 0.5) {
			t.Error("draw above 1/frequency must not fire")
		}
	})

	t.Run("tier above ceiling is ineligible", func(t *testing.T) {
		if HolidayBoostApplies(&snap, dec("50.00"), 0.005) {
			t.Error("high tier is above the ceiling and must not boost")
		}
	})

	t.Run("stake outside all tiers is ineligible", func(t *testing.T) {
		if HolidayBoostApplies(&snap, dec("500.00"), 0.005) {
			t.Error("stake outside every tier must not boost")
		}
	})

	t.Run("boost swaps the target percent", func(t *testing.T) {
		if got := EffectiveTargetPct(&snap, true); got != 120 {
			t.Errorf("boosted pct = %v, want 120", got)
		}
		if got := EffectiveTargetPct(&snap, false); got != 95 {
			t.Errorf("normal pct = %v, want 95", got)
		}
	})
}

func TestEligiblePool_Fallback(t *testing.T) {
	snap := testSnapshot(ModeEscalatingCurve)

	// A stake outside every tier falls back to all active non-zero
	// denominations.
	pool := snap.EligiblePool(dec("500.00"))
	if len(pool) != 4 {
		t.Fatalf("fallback pool size = %d, want 4", len(pool))
	}
	for _, d := range pool {
		if d.IsZero || !d.Active {
			t.Errorf("fallback pool contains ineligible denomination %d", d.ID)
		}
	}
}
