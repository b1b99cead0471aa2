// Command thermal-proc renders a pseudo-thermal heatmap overlay onto a
// video and reports detected hotspots.
//
//	thermal-proc [flags] input.mp4 output.mp4
//
// Each frame is scored independently; there is no temporal accumulation.
// Diagnostics go to stderr, one line per event, so a supervising process
// can tail them while the run is in flight.
//
// Exit statuses: 0 success, 2 usage error, 3 input unavailable, 4 output
// unavailable, 5 required processing dependency missing.
package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/banshee-data/thermal.report/internal/thermal"
	"github.com/banshee-data/thermal.report/internal/video"
)

const (
	exitUsage             = 2
	exitInputUnavailable  = 3
	exitOutputUnavailable = 4
	exitDependencyMissing = 5
)

func main() {
	os.Exit(run())
}

func run() int {
	pLow := flag.Float64("plow", thermal.DefaultPercentileLow, "Low percentile in [0,1] for normalization")
	pHigh := flag.Float64("phigh", thermal.DefaultPercentileHigh, "High percentile in [0,1] for normalization")
	gamma := flag.Float64("gamma", thermal.DefaultGamma, "Gamma for non-linear contrast on normalized heat")
	alpha := flag.Float64("alpha", thermal.DefaultAlphaMax, "Maximum overlay opacity in [0,1]")
	stat := flag.String("stat", thermal.DefaultStat, "Meta stat recorded in the summary (avg|max); never alters pixels")
	ambient := flag.Float64("ambient", thermal.DefaultAmbientC, "Approximate ambient temperature in C")
	maxC := flag.Float64("maxc", thermal.DefaultMaxC, "Simulated temperature in C for score=1")
	ema := flag.Float64("ema", 0, "Accepted for compatibility; ignored")
	summaryPath := flag.String("summary-json", "", "If set, write a JSON run summary here")
	preview := flag.Bool("preview", false, "Draw hotspot bounding boxes and temperatures on the output")
	noOverlay := flag.Bool("no-overlay", false, "Disable the heatmap overlay (keeps original video)")
	flag.Parse()

	if flag.NArg() != 2 {
		fmt.Fprintln(os.Stderr, "usage: thermal-proc [flags] <input> <output>")
		flag.PrintDefaults()
		return exitUsage
	}
	inputPath, outputPath := flag.Arg(0), flag.Arg(1)

	log.SetFlags(0)

	// Fail before touching any file if the codec tools are absent.
	if err := video.CheckTools(); err != nil {
		log.Printf("[thermal-proc] ERROR %v", err)
		return exitDependencyMissing
	}

	cfg := thermal.RunConfig{
		PercentileLow:  *pLow,
		PercentileHigh: *pHigh,
		Gamma:          *gamma,
		AlphaMax:       *alpha,
		AmbientC:       *ambient,
		MaxC:           *maxC,
		Stat:           *stat,
		EMA:            *ema,
		Overlay:        !*noOverlay,
		Preview:        *preview,
		SummaryPath:    *summaryPath,
	}.Sanitized()

	dec, err := video.OpenDecoder(inputPath)
	if err != nil {
		log.Printf("[thermal-proc] ERROR cannot_open_input %s: %v", inputPath, err)
		return exitInputUnavailable
	}
	defer dec.Close()

	enc, err := video.OpenEncoder(outputPath, dec.Meta())
	if err != nil {
		log.Printf("[thermal-proc] ERROR cannot_open_output %s: %v", outputPath, err)
		return exitOutputUnavailable
	}
	defer enc.Close()

	summary, err := thermal.Run(dec, enc, cfg, inputPath)
	if err != nil {
		log.Printf("[thermal-proc] ERROR %v", err)
		if errors.Is(err, video.ErrOutputUnavailable) {
			return exitOutputUnavailable
		}
		return exitInputUnavailable
	}

	if err := enc.Close(); err != nil {
		log.Printf("[thermal-proc] ERROR finalize output: %v", err)
		return exitOutputUnavailable
	}

	// The run already succeeded: a summary write failure downgrades to a
	// warning.
	if cfg.SummaryPath != "" {
		if err := thermal.WriteSummary(cfg.SummaryPath, summary); err != nil {
			log.Printf("[thermal-proc] WARNING: cannot write summary-json: %v", err)
		} else {
			log.Printf("[thermal-proc] summary written to %s", cfg.SummaryPath)
		}
	}

	return 0
}
