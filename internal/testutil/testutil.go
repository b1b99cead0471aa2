// Package testutil provides shared test utilities and fixtures.
//
// This package centralises common test helpers to reduce code duplication
// across test files and improve test maintainability.
package testutil

import (
	"testing"

	"github.com/banshee-data/thermal.report/internal/video"
)

// AssertStatusCode checks that the response status code matches expected.
func AssertStatusCode(t *testing.T, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("status code = %d, want %d", got, want)
	}
}

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// SolidFrame builds a frame filled with one colour.
func SolidFrame(w, h int, r, g, b uint8) *video.Frame {
	f := video.NewFrame(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			f.SetRGB(x, y, r, g, b)
		}
	}
	return f
}

// PaintRect paints an axis-aligned rectangle onto a frame. Coordinates
// outside the frame are ignored.
func PaintRect(f *video.Frame, x0, y0, w, h int, r, g, b uint8) {
	for y := y0; y < y0+h; y++ {
		if y < 0 || y >= f.H {
			continue
		}
		for x := x0; x < x0+w; x++ {
			if x < 0 || x >= f.W {
				continue
			}
			f.SetRGB(x, y, r, g, b)
		}
	}
}
