// Package config loads server-side processing defaults from a JSON
// file. Fields omitted from the file keep their built-in values, so a
// partial config is safe; uploads can still override any field per job.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/banshee-data/thermal.report/internal/thermal"
)

// ProcessingDefaults mirrors the tunable pipeline parameters. All
// fields are pointers so absent JSON keys are distinguishable from
// explicit zeroes.
type ProcessingDefaults struct {
	PercentileLow  *float64 `json:"plow,omitempty"`
	PercentileHigh *float64 `json:"phigh,omitempty"`
	Gamma          *float64 `json:"gamma,omitempty"`
	AlphaMax       *float64 `json:"alpha,omitempty"`
	AmbientC       *float64 `json:"ambient,omitempty"`
	MaxC           *float64 `json:"maxc,omitempty"`
	Stat           *string  `json:"stat,omitempty"`
}

// Load reads processing defaults from path. The file must be JSON and
// under 1MB. Values are not range-checked here; RunConfig.Sanitized
// clamps them at use, matching how per-upload overrides are treated.
func Load(path string) (*ProcessingDefaults, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("defaults file must have .json extension, got %q", ext)
	}

	info, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat defaults file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if info.Size() > maxFileSize {
		return nil, fmt.Errorf("defaults file too large: %d bytes (max %d)", info.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read defaults file: %w", err)
	}

	d := &ProcessingDefaults{}
	if err := json.Unmarshal(data, d); err != nil {
		return nil, fmt.Errorf("failed to parse defaults JSON: %w", err)
	}
	return d, nil
}

// Apply overlays the set fields onto base and returns the result.
func (d *ProcessingDefaults) Apply(base thermal.RunConfig) thermal.RunConfig {
	if d == nil {
		return base
	}
	if d.PercentileLow != nil {
		base.PercentileLow = *d.PercentileLow
	}
	if d.PercentileHigh != nil {
		base.PercentileHigh = *d.PercentileHigh
	}
	if d.Gamma != nil {
		base.Gamma = *d.Gamma
	}
	if d.AlphaMax != nil {
		base.AlphaMax = *d.AlphaMax
	}
	if d.AmbientC != nil {
		base.AmbientC = *d.AmbientC
	}
	if d.MaxC != nil {
		base.MaxC = *d.MaxC
	}
	if d.Stat != nil {
		base.Stat = *d.Stat
	}
	return base
}
