package thermal

import "github.com/banshee-data/thermal.report/internal/video"

// BlendOverlay composites the colour-mapped normalised score map onto the
// frame in place: out = in·(1−α) + colour·α per channel, clamped and
// quantised back to 8-bit. When the overlay is disabled the caller simply
// skips this step, leaving the frame pixel-identical to the input.
func BlendOverlay(f *video.Frame, norm *ScoreMap, gamma, alphaMax float64) {
	for i, j := 0, 0; i < len(f.Pix); i, j = i+3, j+1 {
		c := MapColor(norm.V[j], gamma, alphaMax)
		f.Pix[i] = blendChannel(f.Pix[i], c.R, c.A)
		f.Pix[i+1] = blendChannel(f.Pix[i+1], c.G, c.A)
		f.Pix[i+2] = blendChannel(f.Pix[i+2], c.B, c.A)
	}
}

func blendChannel(in uint8, overlay, alpha float64) uint8 {
	v := (float64(in)/255.0)*(1-alpha) + overlay*alpha
	return uint8(clamp(v*255.0, 0, 255))
}
