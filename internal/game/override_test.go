package game

import (
	"testing"
)

func TestOverrideConfig_AppliesTo(t *testing.T) {
	tests := []struct {
		name      string
		config    *OverrideConfig
		sessionID string
		want      bool
	}{
		{
			name:      "disabled config never applies",
			config:    &OverrideConfig{Enabled: false, Mode: OverrideForceZeroAt, Scope: ScopeAllPlayers},
			sessionID: "s1",
			want:      false,
		},
		{
			name:      "normal mode never applies",
			config:    &OverrideConfig{Enabled: true, Mode: OverrideNormal, Scope: ScopeAllPlayers},
			sessionID: "s1",
			want:      false,
		},
		{
			name:      "all players scope applies to any session",
			config:    &OverrideConfig{Enabled: true, Mode: OverrideStreakThenLose, Scope: ScopeAllPlayers},
			sessionID: "anything",
			want:      true,
		},
		{
			name:      "single session scope matches its binding",
			config:    &OverrideConfig{Enabled: true, Mode: OverrideForceZeroAt, Scope: ScopeSingleSession, SessionID: "s1"},
			sessionID: "s1",
			want:      true,
		},
		{
			name:      "single session scope ignores other sessions",
			config:    &OverrideConfig{Enabled: true, Mode: OverrideForceZeroAt, Scope: ScopeSingleSession, SessionID: "s1"},
			sessionID: "s2",
			want:      false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.config.AppliesTo(tt.sessionID); got != tt.want {
				t.Errorf("AppliesTo(%q) = %v, want %v", tt.sessionID, got, tt.want)
			}
		})
	}
}

func TestOverrideConfig_Decide(t *testing.T) {
	t.Run("force_zero_at", func(t *testing.T) {
		cfg := &OverrideConfig{Mode: OverrideForceZeroAt, ForceZeroAtFlip: 3}

		for flip := 1; flip <= 5; flip++ {
			got := cfg.Decide(flip, 0.99)
			want := DecisionForceWin
			if flip == 3 {
				want = DecisionForceZero
			}
			if got != want {
				t.Errorf("flip %d: Decide() = %v, want %v", flip, got, want)
			}
		}
	})

	t.Run("fixed_probability uses the fair roll", func(t *testing.T) {
		cfg := &OverrideConfig{Mode: OverrideFixedProbability, FixedZeroProbability: 0.5}

		if got := cfg.Decide(1, 0.3); got != DecisionForceZero {
			t.Errorf("roll below P: Decide() = %v, want force zero", got)
		}
		if got := cfg.Decide(1, 0.7); got != DecisionForceWin {
			t.Errorf("roll above P: Decide() = %v, want force win", got)
		}
		// Ties win, matching the resolver's rule.
		if got := cfg.Decide(1, 0.5); got != DecisionForceWin {
			t.Errorf("roll == P: Decide() = %v, want force win", got)
		}
	})

	t.Run("streak_then_lose", func(t *testing.T) {
		cfg := &OverrideConfig{Mode: OverrideStreakThenLose, WinStreakLength: 4}

		for flip := 1; flip <= 4; flip++ {
			if got := cfg.Decide(flip, 0.0); got != DecisionForceWin {
				t.Errorf("flip %d: Decide() = %v, want force win", flip, got)
			}
		}
		if got := cfg.Decide(5, 0.99); got != DecisionForceZero {
			t.Errorf("flip 5: Decide() = %v, want force zero", got)
		}
	})

	t.Run("normal passes through", func(t *testing.T) {
		cfg := &OverrideConfig{Mode: OverrideNormal}
		if got := cfg.Decide(1, 0.5); got != DecisionPassThrough {
			t.Errorf("Decide() = %v, want pass through", got)
		}
	})
}

func TestOverrideConfig_MarkUsed(t *testing.T) {
	t.Run("auto disables at the limit", func(t *testing.T) {
		cfg := &OverrideConfig{Enabled: true, Mode: OverrideForceZeroAt, AutoDisableAfter: 3}

		for i := 1; i <= 2; i++ {
			if disabled := cfg.MarkUsed(); disabled {
				t.Fatalf("disabled after %d sessions, want 3", i)
			}
			if !cfg.Enabled {
				t.Fatalf("config disabled early after %d sessions", i)
			}
		}

		if disabled := cfg.MarkUsed(); !disabled {
			t.Fatal("config must disable on the 3rd influenced session")
		}
		if cfg.Enabled {
			t.Error("config still enabled after reaching its limit")
		}
		if cfg.SessionsUsed != 3 {
			t.Errorf("SessionsUsed = %d, want 3", cfg.SessionsUsed)
		}
	})

	t.Run("zero limit never disables", func(t *testing.T) {
		cfg := &OverrideConfig{Enabled: true, Mode: OverrideForceZeroAt, AutoDisableAfter: 0}

		for i := 0; i < 10; i++ {
			cfg.MarkUsed()
		}
		if !cfg.Enabled {
			t.Error("config with no limit must stay enabled")
		}
	})
}
