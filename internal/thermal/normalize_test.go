package thermal

import (
	"math"
	"testing"
)

func scoreMapOf(w, h int, vs ...float64) *ScoreMap {
	m := NewScoreMap(w, h)
	copy(m.V, vs)
	return m
}

func TestPercentileBoundsKnownDistribution(t *testing.T) {
	// 11 values 0.0..1.0: rank floor(p*(n-1)) indexes the sorted slice
	// directly.
	m := scoreMapOf(11, 1, 0.5, 0.1, 0.9, 0.3, 0.7, 0.0, 1.0, 0.2, 0.8, 0.4, 0.6)

	b := PercentileBounds(m, 0.5, 0.9)
	if math.Abs(b.Low-0.5) > 1e-12 {
		t.Errorf("Low = %v, want 0.5", b.Low)
	}
	if math.Abs(b.High-0.9) > 1e-12 {
		t.Errorf("High = %v, want 0.9", b.High)
	}
}

func TestPercentileBoundsRankClamped(t *testing.T) {
	m := scoreMapOf(3, 1, 0.2, 0.4, 0.6)
	b := PercentileBounds(m, -0.5, 1.5)
	if b.Low != 0.2 {
		t.Errorf("Low = %v, want first order statistic 0.2", b.Low)
	}
	if b.High != 0.6 {
		t.Errorf("High = %v, want last order statistic 0.6", b.High)
	}
}

func TestPercentileBoundsDegenerateRepair(t *testing.T) {
	m := scoreMapOf(4, 1, 0.5, 0.5, 0.5, 0.5)
	b := PercentileBounds(m, 0.8, 0.98)
	if b.High <= b.Low {
		t.Fatalf("degenerate bounds not repaired: Low=%v High=%v", b.Low, b.High)
	}
	if math.Abs(b.High-b.Low-minRange) > 1e-15 {
		t.Errorf("High-Low = %v, want minRange %v", b.High-b.Low, minRange)
	}
}

func TestPercentileBoundsEmpty(t *testing.T) {
	b := PercentileBounds(NewScoreMap(0, 0), 0.8, 0.98)
	if b.Low != 0 || b.High != 1 {
		t.Errorf("empty map bounds = %+v, want {0 1}", b)
	}
}

func TestNormalizeClipsAndRescales(t *testing.T) {
	m := scoreMapOf(5, 1, 0.0, 0.2, 0.5, 0.8, 1.0)
	out := Normalize(m, NormBounds{Low: 0.2, High: 0.8})

	want := []float64{0, 0, 0.5, 1, 1}
	for i, w := range want {
		if math.Abs(out.V[i]-w) > 1e-12 {
			t.Errorf("norm[%d] = %v, want %v", i, out.V[i], w)
		}
	}
}

func TestNormalizeDoesNotMutateInput(t *testing.T) {
	m := scoreMapOf(3, 1, 0.1, 0.5, 0.9)
	Normalize(m, NormBounds{Low: 0.2, High: 0.8})
	if m.V[0] != 0.1 || m.V[1] != 0.5 || m.V[2] != 0.9 {
		t.Errorf("input mutated: %v", m.V)
	}
}
