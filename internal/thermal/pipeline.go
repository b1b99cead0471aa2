package thermal

import (
	"fmt"
	"io"

	"github.com/banshee-data/thermal.report/internal/monitoring"
	"github.com/banshee-data/thermal.report/internal/video"
)

// progressInterval is the frame cadence of progress log lines.
const progressInterval = 30

// Run processes every frame of dec through the pipeline and writes the
// results to enc. Frames are handled strictly sequentially: a frame is
// fully scored, normalised, composited, annotated, and written before the
// next is read. Run returns the assembled summary on normal completion.
//
// The caller owns dec and enc and must close them on every exit path; the
// encoder flushes frame by frame, so an externally killed run leaves a
// valid playable prefix behind.
func Run(dec video.Decoder, enc video.Encoder, cfg RunConfig, inputName string) (Summary, error) {
	meta := dec.Meta()
	fps := meta.FPS
	if fps <= 0 {
		fps = video.FallbackFPS
	}

	approxDuration := 0.0
	if meta.FrameCount > 0 {
		approxDuration = float64(meta.FrameCount) / fps
	}
	monitoring.Logf("[thermal-proc] meta width=%d height=%d fps=%.3f frames=%d approxDuration=%.3fs",
		meta.Width, meta.Height, fps, meta.FrameCount, approxDuration)

	agg := NewAggregator()
	frameIdx := 0

	for {
		frame, err := dec.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Summary{}, fmt.Errorf("read frame %d: %w", frameIdx, err)
		}

		smoothed := BoxSmooth(HeatScore(frame))
		bounds := PercentileBounds(smoothed, cfg.PercentileLow, cfg.PercentileHigh)

		spots := DetectHotspots(smoothed, bounds.High, cfg)
		for i := range spots {
			spots[i].FrameIdx = frameIdx
			spots[i].TSec = float64(frameIdx) / fps
		}

		if cfg.Overlay {
			BlendOverlay(frame, Normalize(smoothed, bounds), cfg.Gamma, cfg.AlphaMax)
		}
		if cfg.Preview && len(spots) > 0 {
			DrawHotspots(frame, spots, cfg.AmbientC, cfg.MaxC)
		}

		if err := enc.WriteFrame(frame); err != nil {
			return Summary{}, fmt.Errorf("write frame %d: %w", frameIdx, err)
		}

		agg.Add(spots)
		frameIdx++
		logProgress(frameIdx, meta.FrameCount)
	}

	durationSec := float64(frameIdx) / fps
	monitoring.Logf("[thermal-proc] done OK frames=%d realDuration=%.3fs", frameIdx, durationSec)

	return agg.Build(cfg, inputName, meta.Width, meta.Height, frameIdx, durationSec), nil
}

// logProgress emits a line every progressInterval frames and on the final
// frame when the total count is known.
func logProgress(frameIdx, totalFrames int) {
	if totalFrames > 0 {
		if frameIdx%progressInterval == 0 || frameIdx == totalFrames {
			pct := float64(frameIdx) / float64(totalFrames) * 100.0
			monitoring.Logf("[thermal-proc] progress %d/%d (%.1f%%)", frameIdx, totalFrames, pct)
		}
		return
	}
	if frameIdx%progressInterval == 0 {
		monitoring.Logf("[thermal-proc] progress %d/?", frameIdx)
	}
}
