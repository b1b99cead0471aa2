// Command probe-batch probes a set of videos with ffprobe and writes
// timestamped JSON and CSV reports under an output directory.
//
//	probe-batch [flags] [path ...]
//
// Paths may be files or directories (scanned recursively for .mp4 and
// .mov). With no arguments the default asset directories are scanned.
// A file that fails to probe is reported and skipped; the batch
// succeeds if at least one file probes cleanly.
//
// Exit statuses: 0 success, 2 no videos found, 3 every probe failed.
package main

import (
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/banshee-data/thermal.report/internal/probe"
)

const (
	exitNoVideos  = 2
	exitAllFailed = 3
)

// defaultScanDirs are scanned when no paths are given.
var defaultScanDirs = []string{"assets", "cvassets"}

func main() {
	os.Exit(run())
}

func run() int {
	outDir := flag.String("out", "outputs", "Directory for JSON and CSV reports")
	flag.Parse()

	log.SetFlags(0)
	warnf := func(format string, v ...any) {
		log.Printf("[probe-batch] WARNING: "+format, v...)
	}

	args := flag.Args()
	if len(args) == 0 {
		for _, d := range defaultScanDirs {
			if info, err := os.Stat(d); err == nil && info.IsDir() {
				args = append(args, d)
			}
		}
	}

	targets, err := probe.CollectVideos(args, warnf)
	if err != nil {
		log.Printf("[probe-batch] ERROR %v", err)
		return exitNoVideos
	}
	if len(targets) == 0 {
		log.Printf("[probe-batch] no videos found; pass files or directories, or populate ./assets or ./cvassets")
		return exitNoVideos
	}

	log.Printf("[probe-batch] videos to process: %d", len(targets))
	var results []*probe.Result
	for i, path := range targets {
		log.Printf("[probe-batch] [%d/%d] probing %s", i+1, len(targets), path)
		r, err := probe.Run(path)
		if err != nil {
			warnf("%v", err)
			continue
		}
		results = append(results, r)
	}
	if len(results) == 0 {
		log.Printf("[probe-batch] no usable output; every probe failed")
		return exitAllFailed
	}

	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		log.Printf("[probe-batch] ERROR cannot create output dir: %v", err)
		return exitAllFailed
	}
	stamp := time.Now().Format("20060102_150405")
	jsonPath := filepath.Join(*outDir, fmt.Sprintf("probe_results_%s.json", stamp))
	csvPath := filepath.Join(*outDir, fmt.Sprintf("probe_results_%s.csv", stamp))

	if err := writeJSON(jsonPath, results); err != nil {
		log.Printf("[probe-batch] ERROR %v", err)
		return exitAllFailed
	}
	if err := writeCSV(csvPath, results); err != nil {
		log.Printf("[probe-batch] ERROR %v", err)
		return exitAllFailed
	}

	log.Printf("[probe-batch] OK\nJSON: %s\nCSV : %s", jsonPath, csvPath)
	return 0
}

func writeJSON(path string, results []*probe.Result) error {
	out, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, out, 0o644)
}

func writeCSV(path string, results []*probe.Result) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(probe.Headers()); err != nil {
		return err
	}
	for _, r := range results {
		if err := w.Write(probe.FlattenRow(r)); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}
