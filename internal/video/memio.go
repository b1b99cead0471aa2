package video

import "io"

// MemDecoder serves a fixed frame sequence from memory. It hands out deep
// copies so callers may mutate frames in place.
type MemDecoder struct {
	meta   Meta
	frames []*Frame
	next   int
}

// NewMemDecoder wraps frames with the given metadata.
func NewMemDecoder(meta Meta, frames []*Frame) *MemDecoder {
	return &MemDecoder{meta: meta, frames: frames}
}

func (d *MemDecoder) Meta() Meta { return d.meta }

func (d *MemDecoder) Next() (*Frame, error) {
	if d.next >= len(d.frames) {
		return nil, io.EOF
	}
	f := d.frames[d.next].Clone()
	d.next++
	return f, nil
}

func (d *MemDecoder) Close() error { return nil }

// MemEncoder collects written frames for inspection in tests.
type MemEncoder struct {
	Frames []*Frame
	Closed bool
}

func (e *MemEncoder) WriteFrame(f *Frame) error {
	e.Frames = append(e.Frames, f.Clone())
	return nil
}

func (e *MemEncoder) Close() error {
	e.Closed = true
	return nil
}

var (
	_ Decoder = (*MemDecoder)(nil)
	_ Encoder = (*MemEncoder)(nil)
)
