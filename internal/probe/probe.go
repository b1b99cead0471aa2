// Package probe inspects video files with ffprobe and flattens the
// results for batch reporting. One probe per file; the batch tool
// aggregates into JSON (full) and CSV (flattened) exports.
package probe

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/banshee-data/thermal.report/internal/video"
)

// videoExts are the extensions picked up when scanning directories.
var videoExts = map[string]bool{
	".mp4": true,
	".mov": true,
}

// Stream is one elementary stream as reported by ffprobe.
type Stream struct {
	Index      int    `json:"index"`
	CodecName  string `json:"codec_name"`
	CodecType  string `json:"codec_type"`
	Width      int    `json:"width,omitempty"`
	Height     int    `json:"height,omitempty"`
	RFrameRate string `json:"r_frame_rate,omitempty"`
	PixFmt     string `json:"pix_fmt,omitempty"`
	NbFrames   string `json:"nb_frames,omitempty"`
	Channels   int    `json:"channels,omitempty"`
	SampleRate string `json:"sample_rate,omitempty"`
	Duration   string `json:"duration,omitempty"`
	BitRate    string `json:"bit_rate,omitempty"`
}

// Format is the ffprobe container-level block.
type Format struct {
	Filename       string            `json:"filename"`
	FormatName     string            `json:"format_name"`
	FormatLongName string            `json:"format_long_name"`
	Duration       string            `json:"duration"`
	Size           string            `json:"size"`
	BitRate        string            `json:"bit_rate"`
	NbStreams      int               `json:"nb_streams"`
	Tags           map[string]string `json:"tags,omitempty"`
}

// Result is the full probe output for one file.
type Result struct {
	File    string   `json:"file"`
	Streams []Stream `json:"streams"`
	Format  Format   `json:"format"`
}

// Run probes a single file. The returned error contains ffprobe's
// stderr when the tool itself rejected the file.
func Run(path string) (*Result, error) {
	if _, err := exec.LookPath("ffprobe"); err != nil {
		return nil, fmt.Errorf("%w: ffprobe not found on PATH", video.ErrDependencyMissing)
	}

	cmd := exec.Command("ffprobe",
		"-v", "error",
		"-show_format",
		"-show_streams",
		"-of", "json",
		path,
	)
	var stderr strings.Builder
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("probe failed for %s: %v: %s", path, err, strings.TrimSpace(stderr.String()))
	}

	var r Result
	if err := json.Unmarshal(out, &r); err != nil {
		return nil, fmt.Errorf("invalid probe output for %s: %w", path, err)
	}
	r.File = path
	return &r, nil
}

// firstStream returns the first stream of the given codec type, or nil.
func (r *Result) firstStream(codecType string) *Stream {
	for i := range r.Streams {
		if r.Streams[i].CodecType == codecType {
			return &r.Streams[i]
		}
	}
	return nil
}

// Headers lists the flattened CSV columns, in write order.
func Headers() []string {
	return []string{
		"file",
		"format_name",
		"duration_s",
		"size_bytes",
		"bitrate_bps",
		"nb_streams",
		"video_codec",
		"width",
		"height",
		"frame_rate",
		"pix_fmt",
		"nb_frames",
		"audio_codec",
		"audio_channels",
		"audio_samplerate_hz",
		"tag_title",
		"tag_encoder",
	}
}

// FlattenRow flattens one result into CSV fields matching Headers.
// Missing values stay empty rather than failing the row.
func FlattenRow(r *Result) []string {
	row := make([]string, 0, len(Headers()))
	row = append(row,
		filepath.Base(r.File),
		r.Format.FormatName,
		r.Format.Duration,
		r.Format.Size,
		r.Format.BitRate,
		strconv.Itoa(r.Format.NbStreams),
	)
	if v := r.firstStream("video"); v != nil {
		row = append(row, v.CodecName, strconv.Itoa(v.Width), strconv.Itoa(v.Height),
			v.RFrameRate, v.PixFmt, v.NbFrames)
	} else {
		row = append(row, "", "", "", "", "", "")
	}
	if a := r.firstStream("audio"); a != nil {
		row = append(row, a.CodecName, strconv.Itoa(a.Channels), a.SampleRate)
	} else {
		row = append(row, "", "", "")
	}
	row = append(row, r.Format.Tags["title"], r.Format.Tags["encoder"])
	return row
}

// CollectVideos expands a mix of file and directory arguments into a
// deduplicated, sorted list of video files. Directories are walked
// recursively; unknown paths are reported through warnf and skipped.
func CollectVideos(args []string, warnf func(format string, v ...any)) ([]string, error) {
	seen := make(map[string]bool)
	for _, a := range args {
		info, err := os.Stat(a)
		if err != nil {
			warnf("path not found: %s", a)
			continue
		}
		if !info.IsDir() {
			abs, err := filepath.Abs(a)
			if err != nil {
				return nil, err
			}
			seen[abs] = true
			continue
		}
		err = filepath.WalkDir(a, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() || !videoExts[strings.ToLower(filepath.Ext(path))] {
				return nil
			}
			abs, err := filepath.Abs(path)
			if err != nil {
				return err
			}
			seen[abs] = true
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", a, err)
		}
	}

	out := make([]string, 0, len(seen))
	for p := range seen {
		out = append(out, p)
	}
	sort.Strings(out)
	return out, nil
}
