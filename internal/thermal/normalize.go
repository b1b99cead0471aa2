package thermal

import "sort"

// minRange keeps the normalisation denominator strictly positive when the
// two order statistics coincide (constant or near-constant frames).
const minRange = 1e-6

// NormBounds holds the per-frame black/white points of the dynamic range
// stretch. High also serves as the hotspot mask threshold for the frame.
type NormBounds struct {
	Low, High float64
}

// PercentileBounds computes the order statistics of the score map at the
// two percentile ranks floor(p·(N−1)), each clamped to [0, N−1]. The
// bounds are recomputed independently every frame; High is repaired to
// Low+minRange when the distribution is degenerate.
func PercentileBounds(m *ScoreMap, pLow, pHigh float64) NormBounds {
	n := len(m.V)
	if n == 0 {
		return NormBounds{Low: 0, High: 1}
	}

	sorted := make([]float64, n)
	copy(sorted, m.V)
	sort.Float64s(sorted)

	lowRank := clampInt(int(pLow*float64(n-1)), 0, n-1)
	highRank := clampInt(int(pHigh*float64(n-1)), 0, n-1)

	b := NormBounds{Low: sorted[lowRank], High: sorted[highRank]}
	if b.High <= b.Low {
		b.High = b.Low + minRange
	}
	return b
}

// Normalize rescales the score map into [0,1] against the given bounds:
// clip((v − low) / (high − low), 0, 1).
func Normalize(m *ScoreMap, b NormBounds) *ScoreMap {
	out := NewScoreMap(m.W, m.H)
	span := b.High - b.Low
	for i, v := range m.V {
		out.V[i] = clamp((v-b.Low)/span, 0, 1)
	}
	return out
}
