package thermal

import (
	"fmt"
	"image"
	"image/color"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/banshee-data/thermal.report/internal/video"
)

const boxThickness = 2

// DrawHotspots draws a bounding box and a temperature label for each
// hotspot onto the frame. Box colour runs green→red with the hotspot's
// temperature between ambientC and maxC.
func DrawHotspots(f *video.Frame, spots []Hotspot, ambientC, maxC float64) {
	canvas := &rgbCanvas{frame: f}
	for _, s := range spots {
		col := tempColor(s.TempC, ambientC, maxC)
		drawRect(f, s.X, s.Y, s.W, s.H, col)
		drawLabel(canvas, fmt.Sprintf("%.1fC", s.TempC), s.X, s.Y, col)
	}
}

// tempColor maps a temperature to a box colour: ambient is green, maxC is
// red. When maxC ≤ ambientC everything renders red.
func tempColor(tempC, ambientC, maxC float64) color.RGBA {
	frac := 1.0
	if maxC > ambientC {
		frac = clamp((tempC-ambientC)/(maxC-ambientC), 0, 1)
	}
	return color.RGBA{
		R: uint8(255 * frac),
		G: uint8(255 * (1 - frac)),
		A: 255,
	}
}

// drawRect strokes the rectangle from (x,y) to (x+w,y+h), boxThickness pixels
// wide, clipped to the frame.
func drawRect(f *video.Frame, x, y, w, h int, col color.RGBA) {
	x1, y1 := x+w, y+h
	for t := 0; t < boxThickness; t++ {
		drawHLine(f, x-t, x1+t, y-t, col)
		drawHLine(f, x-t, x1+t, y1+t, col)
		drawVLine(f, y-t, y1+t, x-t, col)
		drawVLine(f, y-t, y1+t, x1+t, col)
	}
}

func drawHLine(f *video.Frame, x0, x1, y int, col color.RGBA) {
	if y < 0 || y >= f.H {
		return
	}
	for x := clampInt(x0, 0, f.W-1); x <= clampInt(x1, 0, f.W-1); x++ {
		f.SetRGB(x, y, col.R, col.G, col.B)
	}
}

func drawVLine(f *video.Frame, y0, y1, x int, col color.RGBA) {
	if x < 0 || x >= f.W {
		return
	}
	for y := clampInt(y0, 0, f.H-1); y <= clampInt(y1, 0, f.H-1); y++ {
		f.SetRGB(x, y, col.R, col.G, col.B)
	}
}

// drawLabel renders text just above the box's top-left corner, kept on
// screen when the box touches the frame edge.
func drawLabel(canvas *rgbCanvas, text string, x, y int, col color.RGBA) {
	face := basicfont.Face7x13
	baseline := y - 5
	if baseline < face.Ascent {
		baseline = face.Ascent
	}
	d := font.Drawer{
		Dst:  canvas,
		Src:  image.NewUniform(col),
		Face: face,
		Dot:  fixed.P(clampInt(x, 0, canvas.frame.W-1), baseline),
	}
	d.DrawString(text)
}

// rgbCanvas adapts a packed-RGB frame to draw.Image so the font rasteriser
// can write into it directly.
type rgbCanvas struct {
	frame *video.Frame
}

func (c *rgbCanvas) ColorModel() color.Model { return color.RGBAModel }

func (c *rgbCanvas) Bounds() image.Rectangle {
	return image.Rect(0, 0, c.frame.W, c.frame.H)
}

func (c *rgbCanvas) At(x, y int) color.Color {
	if x < 0 || x >= c.frame.W || y < 0 || y >= c.frame.H {
		return color.RGBA{}
	}
	r, g, b := c.frame.RGB(x, y)
	return color.RGBA{R: r, G: g, B: b, A: 255}
}

func (c *rgbCanvas) Set(x, y int, col color.Color) {
	if x < 0 || x >= c.frame.W || y < 0 || y >= c.frame.H {
		return
	}
	r, g, b, _ := col.RGBA()
	c.frame.SetRGB(x, y, uint8(r>>8), uint8(g>>8), uint8(b>>8))
}
