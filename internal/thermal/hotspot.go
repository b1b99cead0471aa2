package thermal

import (
	"sort"

	"gonum.org/v1/gonum/floats"
)

// Hotspot is a connected region of pixels whose smoothed heat score meets
// the frame's high percentile threshold, within the allowed area band.
// Hotspots are immutable once created.
type Hotspot struct {
	X         int     `json:"x"`
	Y         int     `json:"y"`
	W         int     `json:"w"`
	H         int     `json:"h"`
	Pixels    int     `json:"pixels"`
	MeanScore float64 `json:"meanScore"`
	TempC     float64 `json:"tempC"`
	FrameIdx  int     `json:"frameIdx"`
	TSec      float64 `json:"tSec"`
}

// DetectHotspots thresholds the smoothed score map at thr, labels
// 8-connected components, filters them by pixel area, and maps each
// surviving component's mean score to a temperature. Components are
// returned sorted by area descending (stable on ties, preserving scan
// order), at most MaxBoxesPerFrame of them.
//
// The area band is inclusive at both edges: a component of exactly
// minArea or exactly maxArea pixels survives.
func DetectHotspots(smoothed *ScoreMap, thr float64, cfg RunConfig) []Hotspot {
	w, h := smoothed.W, smoothed.H
	total := w * h
	if total == 0 {
		return nil
	}

	minArea := int(float64(total) * MinAreaFraction)
	if minArea < 1 {
		minArea = 1
	}
	maxArea := int(float64(total) * MaxAreaFraction)
	if maxArea < minArea {
		maxArea = minArea
	}

	// 0 = unvisited or below threshold, >0 = component ID.
	labels := make([]int, total)
	queue := make([]int, 0, 64)
	var spots []Hotspot

	nextLabel := 0
	for start := 0; start < total; start++ {
		if labels[start] != 0 || smoothed.V[start] < thr {
			continue
		}

		nextLabel++
		labels[start] = nextLabel
		queue = append(queue[:0], start)

		minX, maxX := start%w, start%w
		minY, maxY := start/w, start/w
		scores := []float64{smoothed.V[start]}

		// Queue-based expansion over the 8-neighbourhood.
		for qi := 0; qi < len(queue); qi++ {
			idx := queue[qi]
			px, py := idx%w, idx/w
			for dy := -1; dy <= 1; dy++ {
				ny := py + dy
				if ny < 0 || ny >= h {
					continue
				}
				for dx := -1; dx <= 1; dx++ {
					if dx == 0 && dy == 0 {
						continue
					}
					nx := px + dx
					if nx < 0 || nx >= w {
						continue
					}
					nidx := ny*w + nx
					if labels[nidx] != 0 || smoothed.V[nidx] < thr {
						continue
					}
					labels[nidx] = nextLabel
					queue = append(queue, nidx)
					scores = append(scores, smoothed.V[nidx])
					if nx < minX {
						minX = nx
					}
					if nx > maxX {
						maxX = nx
					}
					if ny < minY {
						minY = ny
					}
					if ny > maxY {
						maxY = ny
					}
				}
			}
		}

		area := len(scores)
		if area < minArea || area > maxArea {
			continue
		}

		mean := floats.Sum(scores) / float64(area)
		spots = append(spots, Hotspot{
			X:         minX,
			Y:         minY,
			W:         maxX - minX + 1,
			H:         maxY - minY + 1,
			Pixels:    area,
			MeanScore: mean,
			TempC:     ScoreToTemp(mean, cfg.AmbientC, cfg.MaxC, cfg.Gamma),
		})
	}

	sort.SliceStable(spots, func(i, j int) bool {
		return spots[i].Pixels > spots[j].Pixels
	})
	if len(spots) > MaxBoxesPerFrame {
		spots = spots[:MaxBoxesPerFrame]
	}
	return spots
}
