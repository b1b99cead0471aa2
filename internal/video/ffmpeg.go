package video

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// FallbackFPS is used when the container reports no usable frame rate.
const FallbackFPS = 25.0

// CheckTools verifies that ffmpeg and ffprobe are on PATH. It is called
// before any file is touched so a missing dependency fails fast.
func CheckTools() error {
	for _, tool := range []string{"ffmpeg", "ffprobe"} {
		if _, err := exec.LookPath(tool); err != nil {
			return fmt.Errorf("%w: %s not found in PATH", ErrDependencyMissing, tool)
		}
	}
	return nil
}

// ffprobe JSON for the first video stream.
type probeStream struct {
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	RFrameRate string `json:"r_frame_rate"`
	NbFrames   string `json:"nb_frames"`
}

type probeOutput struct {
	Streams []probeStream `json:"streams"`
}

// Probe reads stream metadata for the first video stream of path.
func Probe(path string) (Meta, error) {
	if _, err := os.Stat(path); err != nil {
		return Meta{}, fmt.Errorf("%w: %s", ErrInputUnavailable, path)
	}

	out, err := exec.Command("ffprobe",
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=width,height,r_frame_rate,nb_frames",
		"-of", "json",
		path,
	).Output()
	if err != nil {
		return Meta{}, fmt.Errorf("%w: ffprobe failed for %s: %v", ErrInputUnavailable, path, err)
	}

	var p probeOutput
	if err := json.Unmarshal(out, &p); err != nil {
		return Meta{}, fmt.Errorf("%w: bad ffprobe output for %s: %v", ErrInputUnavailable, path, err)
	}
	if len(p.Streams) == 0 {
		return Meta{}, fmt.Errorf("%w: no video stream in %s", ErrInputUnavailable, path)
	}

	s := p.Streams[0]
	if s.Width <= 0 || s.Height <= 0 {
		return Meta{}, fmt.Errorf("%w: zero dimensions in %s", ErrInputUnavailable, path)
	}

	meta := Meta{Width: s.Width, Height: s.Height}
	meta.FPS = parseRate(s.RFrameRate)
	if n, err := strconv.Atoi(s.NbFrames); err == nil && n > 0 {
		meta.FrameCount = n
	}
	return meta, nil
}

// parseRate parses an ffprobe rational like "30000/1001". Returns 0 when
// the rate is absent or degenerate.
func parseRate(r string) float64 {
	num, den, ok := strings.Cut(r, "/")
	if !ok {
		v, _ := strconv.ParseFloat(r, 64)
		return v
	}
	n, err1 := strconv.ParseFloat(num, 64)
	d, err2 := strconv.ParseFloat(den, 64)
	if err1 != nil || err2 != nil || d == 0 {
		return 0
	}
	return n / d
}

// FFmpegDecoder streams rgb24 frames from an ffmpeg rawvideo pipe.
type FFmpegDecoder struct {
	meta   Meta
	cmd    *exec.Cmd
	stdout io.ReadCloser
}

// OpenDecoder probes path and starts an ffmpeg process decoding it to raw
// rgb24 frames on stdout.
func OpenDecoder(path string) (*FFmpegDecoder, error) {
	meta, err := Probe(path)
	if err != nil {
		return nil, err
	}

	cmd := exec.Command("ffmpeg",
		"-v", "error",
		"-i", path,
		"-f", "rawvideo",
		"-pix_fmt", "rgb24",
		"-",
	)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInputUnavailable, err)
	}
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: cannot start ffmpeg: %v", ErrInputUnavailable, err)
	}
	return &FFmpegDecoder{meta: meta, cmd: cmd, stdout: stdout}, nil
}

func (d *FFmpegDecoder) Meta() Meta { return d.meta }

// Next reads one frame. A clean or partial end of stream is io.EOF.
func (d *FFmpegDecoder) Next() (*Frame, error) {
	f := NewFrame(d.meta.Width, d.meta.Height)
	if _, err := io.ReadFull(d.stdout, f.Pix); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("decode frame: %w", err)
	}
	return f, nil
}

func (d *FFmpegDecoder) Close() error {
	d.stdout.Close()
	// The process may still be writing when closed early; reap it either way.
	if err := d.cmd.Wait(); err != nil {
		if _, ok := err.(*exec.ExitError); ok {
			return nil
		}
		return err
	}
	return nil
}

// FFmpegEncoder feeds rgb24 frames to an ffmpeg process encoding h264/yuv420p.
type FFmpegEncoder struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	closed bool
}

// OpenEncoder prepares the output path and starts the encoder process.
// Frames are written at meta's rate, or FallbackFPS when unset.
func OpenEncoder(path string, meta Meta) (*FFmpegEncoder, error) {
	fps := meta.FPS
	if fps <= 0 {
		fps = FallbackFPS
	}

	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrOutputUnavailable, path, err)
		}
	}
	// Probe writability up front: ffmpeg reports open failures only after
	// the first frame is piped in.
	probe, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrOutputUnavailable, path, err)
	}
	probe.Close()

	cmd := exec.Command("ffmpeg",
		"-v", "error",
		"-y",
		"-f", "rawvideo",
		"-pix_fmt", "rgb24",
		"-s", fmt.Sprintf("%dx%d", meta.Width, meta.Height),
		"-r", fmt.Sprintf("%.6f", fps),
		"-i", "-",
		"-c:v", "libx264",
		"-pix_fmt", "yuv420p",
		path,
	)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOutputUnavailable, err)
	}
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: cannot start ffmpeg: %v", ErrOutputUnavailable, err)
	}
	return &FFmpegEncoder{cmd: cmd, stdin: stdin}, nil
}

func (e *FFmpegEncoder) WriteFrame(f *Frame) error {
	if _, err := e.stdin.Write(f.Pix); err != nil {
		return fmt.Errorf("%w: encode frame: %v", ErrOutputUnavailable, err)
	}
	return nil
}

// Close flushes the pipe and waits for the encoder to finalise the file.
// Closing twice is safe; the second call is a no-op.
func (e *FFmpegEncoder) Close() error {
	if e.closed {
		return nil
	}
	e.closed = true
	if err := e.stdin.Close(); err != nil {
		return err
	}
	if err := e.cmd.Wait(); err != nil {
		return fmt.Errorf("%w: ffmpeg: %v", ErrOutputUnavailable, err)
	}
	return nil
}

var (
	_ Decoder = (*FFmpegDecoder)(nil)
	_ Encoder = (*FFmpegEncoder)(nil)
)
