package thermal

import (
	"math"

	"github.com/banshee-data/thermal.report/internal/video"
)

// Epsilons guarding the ratio terms of the heat model.
const (
	redDominanceEps = 1e-4
	saturationEps   = 1e-6
)

// HeatScore computes the per-pixel heat score of a frame. The score is a
// pure function of the pixel's colour channels (normalised to [0,1]):
//
//	luma·(0.5+0.5·saturation)·(0.5+0.5·redDominance) + warmBoost
//
// clipped to [0,1]. Bright, saturated, red-dominant pixels score high;
// scene history plays no part.
func HeatScore(f *video.Frame) *ScoreMap {
	m := NewScoreMap(f.W, f.H)
	for i, j := 0, 0; i < len(f.Pix); i, j = i+3, j+1 {
		r := float64(f.Pix[i]) / 255.0
		g := float64(f.Pix[i+1]) / 255.0
		b := float64(f.Pix[i+2]) / 255.0

		luma := 0.2126*r + 0.7152*g + 0.0722*b
		redDom := r / (g + b + redDominanceEps)
		warmBoost := math.Max(r-math.Max(g, b), 0)

		cmax := math.Max(r, math.Max(g, b))
		cmin := math.Min(r, math.Min(g, b))
		sat := (cmax - cmin) / (cmax + saturationEps)

		m.V[j] = clamp(luma*(0.5+0.5*sat)*(0.5+0.5*redDom)+warmBoost, 0, 1)
	}
	return m
}

// ScoreToTemp maps a heat score to degrees Celsius:
//
//	ambientC + (maxC − ambientC) · clip(score,0,1)^gamma
//
// Monotonically non-decreasing in score whenever maxC > ambientC.
func ScoreToTemp(score, ambientC, maxC, gamma float64) float64 {
	sc := math.Pow(clamp(score, 0, 1), gamma)
	return ambientC + (maxC-ambientC)*sc
}
