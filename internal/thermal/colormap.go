package thermal

import "math"

// Ramp segment boundaries in gamma-adjusted space.
const (
	rampCyan   = 0.33
	rampYellow = 0.66
)

// OverlayColor is a colour-mapped sample: channels and alpha in [0,1].
type OverlayColor struct {
	R, G, B, A float64
}

// MapColor maps a normalised value t through the fixed blue→cyan→yellow→red
// ramp. The value is first contrast-shaped as tg = t^gamma; alpha scales
// linearly with tg up to alphaMax. The ramp is continuous at both segment
// boundaries, exactly pure blue at tg=0 and pure red at tg=1.
func MapColor(t, gamma, alphaMax float64) OverlayColor {
	tg := math.Pow(clamp(t, 0, 1), gamma)

	var c OverlayColor
	switch {
	case tg < rampCyan:
		u := tg / rampCyan
		c = OverlayColor{R: 0, G: u, B: 1}
	case tg < rampYellow:
		u := (tg - rampCyan) / 0.33
		c = OverlayColor{R: u, G: 1, B: 1 - u}
	default:
		u := (tg - rampYellow) / 0.34
		c = OverlayColor{R: 1, G: 1 - u, B: 0}
	}
	c.A = clamp(alphaMax*tg, 0, 1)
	return c
}
