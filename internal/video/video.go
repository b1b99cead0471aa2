// Package video provides frame-level access to video files. The codec
// backends sit behind small Decoder/Encoder interfaces so the processing
// pipeline can run against in-memory frame sequences in tests and against
// ffmpeg rawvideo pipes in production.
package video

import "errors"

// Failure sentinels. Callers classify terminal failures with errors.Is to
// pick the right exit status.
var (
	// ErrInputUnavailable means the input path is missing or the decoder
	// could not open it.
	ErrInputUnavailable = errors.New("input unavailable")
	// ErrOutputUnavailable means the encoder could not be opened for the
	// output path, or the encoder process rejected a frame.
	ErrOutputUnavailable = errors.New("output unavailable")
	// ErrDependencyMissing means a required external tool (ffmpeg/ffprobe)
	// is not installed.
	ErrDependencyMissing = errors.New("processing dependency missing")
)

// Meta describes a video stream. FPS is 0 when the rate could not be
// detected; FrameCount is 0 when the container does not report it.
type Meta struct {
	Width      int
	Height     int
	FPS        float64
	FrameCount int
}

// Frame is a single decoded video frame: packed RGB, 3 bytes per pixel,
// row-major. Frames are ephemeral; the pipeline never retains one past the
// iteration that produced it.
type Frame struct {
	W, H int
	Pix  []byte
}

// NewFrame allocates a zeroed W×H RGB frame.
func NewFrame(w, h int) *Frame {
	return &Frame{W: w, H: h, Pix: make([]byte, w*h*3)}
}

// Clone returns a deep copy of the frame.
func (f *Frame) Clone() *Frame {
	c := &Frame{W: f.W, H: f.H, Pix: make([]byte, len(f.Pix))}
	copy(c.Pix, f.Pix)
	return c
}

// RGB returns the channel bytes of the pixel at (x, y).
func (f *Frame) RGB(x, y int) (r, g, b uint8) {
	i := (y*f.W + x) * 3
	return f.Pix[i], f.Pix[i+1], f.Pix[i+2]
}

// SetRGB sets the pixel at (x, y).
func (f *Frame) SetRGB(x, y int, r, g, b uint8) {
	i := (y*f.W + x) * 3
	f.Pix[i], f.Pix[i+1], f.Pix[i+2] = r, g, b
}

// Decoder yields the frames of a video in order. Next returns io.EOF after
// the last frame.
type Decoder interface {
	Meta() Meta
	Next() (*Frame, error)
	Close() error
}

// Encoder consumes frames in order and finalises the output on Close.
type Encoder interface {
	WriteFrame(*Frame) error
	Close() error
}
