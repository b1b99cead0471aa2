package thermal

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"

	"gonum.org/v1/gonum/floats"
)

// Summary is the aggregate record of one completed run. Min/max hotspot
// temperatures are computed over every accumulated hotspot, not just the
// retained top-N, and are null when the run produced none.
type Summary struct {
	File            string    `json:"file"`
	Width           int       `json:"width"`
	Height          int       `json:"height"`
	FramesUsed      int       `json:"framesUsed"`
	DurationSec     float64   `json:"durationSec"`
	Stat            string    `json:"stat"`
	PercentileLow   float64   `json:"percentileLow"`
	PercentileHigh  float64   `json:"percentileHigh"`
	AmbientC        float64   `json:"ambientC"`
	MaxC            float64   `json:"maxC"`
	Gamma           float64   `json:"gamma"`
	MinHotspotTempC *float64  `json:"minHotspotTempC"`
	MaxHotspotTempC *float64  `json:"maxHotspotTempC"`
	Hotspots        []Hotspot `json:"hotspots"`
}

// Aggregator accumulates hotspots across the frames of a run. It is
// append-only, single-writer, and never deduplicates: spatially
// overlapping hotspots from consecutive frames are distinct entries.
type Aggregator struct {
	spots []Hotspot
}

// NewAggregator returns an empty run-scoped aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{}
}

// Add appends one frame's surviving hotspots.
func (a *Aggregator) Add(spots []Hotspot) {
	a.spots = append(a.spots, spots...)
}

// Count reports the number of hotspots accumulated so far.
func (a *Aggregator) Count() int { return len(a.spots) }

// Build assembles the run summary: the accumulated hotspots sorted by
// area descending with the top SummaryTopN retained, and the min/max
// temperature across all of them.
func (a *Aggregator) Build(cfg RunConfig, inputName string, width, height, framesUsed int, durationSec float64) Summary {
	s := Summary{
		File:           filepath.Base(inputName),
		Width:          width,
		Height:         height,
		FramesUsed:     framesUsed,
		DurationSec:    durationSec,
		Stat:           cfg.Stat,
		PercentileLow:  cfg.PercentileLow,
		PercentileHigh: cfg.PercentileHigh,
		AmbientC:       cfg.AmbientC,
		MaxC:           cfg.MaxC,
		Gamma:          cfg.Gamma,
		Hotspots:       []Hotspot{},
	}

	if len(a.spots) > 0 {
		temps := make([]float64, len(a.spots))
		for i, h := range a.spots {
			temps[i] = h.TempC
		}
		minTemp, maxTemp := floats.Min(temps), floats.Max(temps)
		s.MinHotspotTempC = &minTemp
		s.MaxHotspotTempC = &maxTemp

		top := make([]Hotspot, len(a.spots))
		copy(top, a.spots)
		sort.SliceStable(top, func(i, j int) bool {
			return top[i].Pixels > top[j].Pixels
		})
		if len(top) > SummaryTopN {
			top = top[:SummaryTopN]
		}
		s.Hotspots = top
	}

	return s
}

// WriteSummary writes the summary as indented JSON, creating parent
// directories as needed.
func WriteSummary(path string, s Summary) error {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
