package scorer

import (
	"math"
	"testing"
)

func TestKillEqualRatingsNoHeadshot(t *testing.T) {
	s := New(Config{})
	res := s.Kill(1000, 50, 1000, 1.0, false)

	// Equal ratings -> E_k = 0.5, K = KBase * kFactor(50) (about 1.95:
	// games in [30,400) decay linearly from 2.0 toward 1.0).
	if res.KillerDelta <= 0 {
		t.Fatalf("expected positive killer delta, got %d", res.KillerDelta)
	}
	wantVictim := -int(math.Round(0.8 * float64(res.KillerDelta)))
	if res.VictimDelta != wantVictim {
		t.Fatalf("want victim delta %d got %d", wantVictim, res.VictimDelta)
	}
}

func TestKillHeadshotIncreasesGain(t *testing.T) {
	s := New(Config{})
	plain := s.Kill(1000, 50, 1000, 1.0, false)
	hs := s.Kill(1000, 50, 1000, 1.0, true)

	if hs.KillerDelta <= plain.KillerDelta {
		t.Fatalf("expected headshot gain %d to exceed plain gain %d", hs.KillerDelta, plain.KillerDelta)
	}
}

func TestKillClampsToSkillMaxChange(t *testing.T) {
	s := New(Config{SkillMaxChange: 5})
	// A huge rating gap would otherwise produce a huge delta.
	res := s.Kill(400, 500, 2400, 5.0, true)
	if res.KillerDelta > 5 || res.KillerDelta < -5 {
		t.Fatalf("expected killer delta clamped to +/-5, got %d", res.KillerDelta)
	}
	if res.VictimDelta > 5 || res.VictimDelta < -5 {
		t.Fatalf("expected victim delta clamped to +/-5, got %d", res.VictimDelta)
	}
}

func TestTeamkillFixedDeltas(t *testing.T) {
	s := New(Config{})
	res := s.Teamkill()
	if res.KillerDelta != -10 || res.VictimDelta != 5 {
		t.Fatalf("unexpected teamkill deltas: %+v", res)
	}
}

func TestSuicideFixedDelta(t *testing.T) {
	s := New(Config{})
	if got := s.Suicide(); got != -5 {
		t.Fatalf("want -5 got %d", got)
	}
}

func TestApplyClampsAtZero(t *testing.T) {
	if got := Apply(3, -10); got != 0 {
		t.Fatalf("want 0 got %d", got)
	}
	if got := Apply(20, -10); got != 10 {
		t.Fatalf("want 10 got %d", got)
	}
}

func TestKFactorDecaysWithGamesPlayed(t *testing.T) {
	low := kFactor(10)
	mid := kFactor(200)
	high := kFactor(500)

	if low != kFactorLow {
		t.Fatalf("want low-games kFactor %v got %v", kFactorLow, low)
	}
	if high != kFactorHigh {
		t.Fatalf("want high-games kFactor %v got %v", kFactorHigh, high)
	}
	if !(mid < low && mid > high) {
		t.Fatalf("expected mid-games kFactor %v strictly between %v and %v", mid, high, low)
	}
}
