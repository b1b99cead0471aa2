package thermal

// ScoreMap is a W×H matrix of per-pixel scores in [0,1], row-major.
// Score maps are ephemeral: one is recomputed from scratch every frame.
type ScoreMap struct {
	W, H int
	V    []float64
}

// NewScoreMap allocates a zeroed W×H score map.
func NewScoreMap(w, h int) *ScoreMap {
	return &ScoreMap{W: w, H: h, V: make([]float64, w*h)}
}

// At returns the score at (x, y).
func (m *ScoreMap) At(x, y int) float64 { return m.V[y*m.W+x] }

// Set stores the score at (x, y).
func (m *ScoreMap) Set(x, y int, v float64) { m.V[y*m.W+x] = v }
