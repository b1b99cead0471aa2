package thermal

// smoothRadius gives the 5×5 box filter window.
const smoothRadius = 2

// BoxSmooth applies a 5×5 box average to the score map, replicating edge
// values at the borders. Smoothing runs before percentile computation and
// thresholding so single-pixel artefacts do not seed hotspots.
func BoxSmooth(m *ScoreMap) *ScoreMap {
	out := NewScoreMap(m.W, m.H)
	const n = float64((2*smoothRadius + 1) * (2*smoothRadius + 1))
	for y := 0; y < m.H; y++ {
		for x := 0; x < m.W; x++ {
			var sum float64
			for dy := -smoothRadius; dy <= smoothRadius; dy++ {
				sy := clampInt(y+dy, 0, m.H-1)
				for dx := -smoothRadius; dx <= smoothRadius; dx++ {
					sx := clampInt(x+dx, 0, m.W-1)
					sum += m.V[sy*m.W+sx]
				}
			}
			out.V[y*m.W+x] = sum / n
		}
	}
	return out
}

func clampInt(x, lo, hi int) int {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
