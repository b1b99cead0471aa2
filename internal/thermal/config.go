// Package thermal implements the pseudo-thermal visualisation pipeline:
// a per-pixel heat score, per-frame dynamic range normalisation against
// percentile order statistics, a fixed colour ramp composited over the
// source frame, and connected-region hotspot detection aggregated into a
// run summary.
//
// Every frame is scored independently. There is no temporal accumulation
// and no cross-frame state beyond the hotspot list and the frame counter.
package thermal

// Processing defaults. These mirror the CLI defaults of thermal-proc.
const (
	DefaultPercentileLow  = 0.80
	DefaultPercentileHigh = 0.98
	DefaultGamma          = 1.2
	DefaultAlphaMax       = 0.6
	DefaultAmbientC       = 22.0
	DefaultMaxC           = 120.0
	DefaultStat           = "avg"
)

// Hotspot filtering and reporting limits.
const (
	// MinAreaFraction and MaxAreaFraction bound the accepted component
	// size as a fraction of total frame pixels, inclusive at both edges.
	MinAreaFraction = 1e-4
	MaxAreaFraction = 0.25
	// MaxBoxesPerFrame caps surviving hotspots per frame.
	MaxBoxesPerFrame = 20
	// SummaryTopN caps the hotspot list embedded in the run summary.
	SummaryTopN = 40
)

// RunConfig holds the per-run processing parameters. Build one with
// Sanitized before starting a run; the pipeline assumes the invariants
// (percentileHigh > percentileLow, gamma and alpha in range) hold.
type RunConfig struct {
	PercentileLow  float64
	PercentileHigh float64
	Gamma          float64
	AlphaMax       float64
	AmbientC       float64
	MaxC           float64

	// Stat is a metadata tag ("avg" or "max") recorded in the summary.
	// It never alters pixel processing.
	Stat string

	// EMA is accepted for CLI compatibility and ignored by the pipeline.
	EMA float64

	Overlay bool
	Preview bool

	// SummaryPath, when set, is where the run summary JSON is written on
	// normal completion.
	SummaryPath string
}

// DefaultRunConfig returns a config with overlay enabled and all tuning
// values at their defaults.
func DefaultRunConfig() RunConfig {
	return RunConfig{
		PercentileLow:  DefaultPercentileLow,
		PercentileHigh: DefaultPercentileHigh,
		Gamma:          DefaultGamma,
		AlphaMax:       DefaultAlphaMax,
		AmbientC:       DefaultAmbientC,
		MaxC:           DefaultMaxC,
		Stat:           DefaultStat,
		Overlay:        true,
	}
}

// Sanitized clamps out-of-range values and repairs the percentile ordering
// instead of rejecting bad input. Invalid values are silently pulled back
// into range; percentileHigh is bumped above percentileLow when needed.
func (c RunConfig) Sanitized() RunConfig {
	c.PercentileLow = clamp(c.PercentileLow, 0, 0.999)
	c.PercentileHigh = clamp(c.PercentileHigh, 0, 0.999)
	if c.PercentileHigh <= c.PercentileLow {
		c.PercentileHigh = clamp(c.PercentileLow+0.01, 0, 0.999)
	}
	c.Gamma = clamp(c.Gamma, 0.1, 6.0)
	c.AlphaMax = clamp(c.AlphaMax, 0, 1)
	c.EMA = clamp(c.EMA, 0, 1)
	if c.Stat != "avg" && c.Stat != "max" {
		c.Stat = DefaultStat
	}
	return c
}

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
