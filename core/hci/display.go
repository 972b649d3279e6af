package hci

import (
	"image/color"

	"tinygo.org/x/drivers"
	"tinygo.org/x/tinyfont"
	"tinygo.org/x/tinyfont/proggy"

	"conductor/hal"
)

// Panel geometry in pixels; mirrors the host framebuffer layout.
const (
	cellW  = 9
	cellH  = 14
	margin = 8
)

var (
	colorBG   = color.RGBA{R: 0x10, G: 0x1c, B: 0x30, A: 0xff}
	colorText = color.RGBA{R: 0xff, G: 0xc4, B: 0x3a, A: 0xff}
)

// fbDisplay adapts hal.Framebuffer to the displayer contract the font
// renderer draws through.
type fbDisplay struct {
	fb hal.Framebuffer
}

func newFBDisplay(fb hal.Framebuffer) *fbDisplay {
	return &fbDisplay{fb: fb}
}

func (d *fbDisplay) Size() (x, y int16) {
	if d.fb == nil {
		return 0, 0
	}
	return int16(d.fb.Width()), int16(d.fb.Height())
}

func (d *fbDisplay) SetPixel(x, y int16, c color.RGBA) {
	if d.fb == nil || d.fb.Format() != hal.PixelFormatRGB565 {
		return
	}
	buf := d.fb.Buffer()
	if buf == nil {
		return
	}

	w := d.fb.Width()
	h := d.fb.Height()
	ix := int(x)
	iy := int(y)
	if ix < 0 || ix >= w || iy < 0 || iy >= h {
		return
	}

	pixel := rgb565From888(c.R, c.G, c.B)
	off := iy*d.fb.StrideBytes() + ix*2
	if off < 0 || off+1 >= len(buf) {
		return
	}
	buf[off] = byte(pixel)
	buf[off+1] = byte(pixel >> 8)
}

func (d *fbDisplay) Display() error {
	if d.fb == nil {
		return nil
	}
	return d.fb.Present()
}

func (d *fbDisplay) FillRectangle(x, y, width, height int16, c color.RGBA) error {
	if d.fb == nil || d.fb.Format() != hal.PixelFormatRGB565 {
		return nil
	}
	buf := d.fb.Buffer()
	if buf == nil {
		return nil
	}

	w := d.fb.Width()
	h := d.fb.Height()

	x0 := clampInt(int(x), 0, w)
	y0 := clampInt(int(y), 0, h)
	x1 := clampInt(int(x)+int(width), 0, w)
	y1 := clampInt(int(y)+int(height), 0, h)
	if x0 >= x1 || y0 >= y1 {
		return nil
	}

	pixel := rgb565From888(c.R, c.G, c.B)
	lo := byte(pixel)
	hi := byte(pixel >> 8)

	stride := d.fb.StrideBytes()
	for py := y0; py < y1; py++ {
		row := py * stride
		for px := x0; px < x1; px++ {
			off := row + px*2
			if off < 0 || off+1 >= len(buf) {
				continue
			}
			buf[off] = lo
			buf[off+1] = hi
		}
	}
	return nil
}

func (d *fbDisplay) SetRotation(rotation drivers.Rotation) error {
	_ = rotation
	return nil
}

func rgb565From888(r, g, b uint8) uint16 {
	return uint16((uint16(r>>3)&0x1F)<<11 | (uint16(g>>2)&0x3F)<<5 | (uint16(b>>3) & 0x1F))
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Renderer draws grid rows onto the framebuffer cell by cell.
type Renderer struct {
	disp *fbDisplay
	font tinyfont.Fonter
}

// NewRenderer builds the panel renderer over a framebuffer.
func NewRenderer(fb hal.Framebuffer) *Renderer {
	if fb == nil {
		return nil
	}
	return &Renderer{
		disp: newFBDisplay(fb),
		font: &proggy.TinySZ8pt7b,
	}
}

func (r *Renderer) clear() {
	w, h := r.disp.Size()
	_ = r.disp.FillRectangle(0, 0, w, h, colorBG)
	_ = r.disp.Display()
}

func (r *Renderer) drawLine(g *Grid, line int) {
	y := int16(margin + line*cellH)
	_ = r.disp.FillRectangle(int16(margin), y, Cols*cellW, cellH, colorBG)
	for col := 0; col < Cols; col++ {
		ch := g.cells[line][col]
		if ch == ' ' {
			continue
		}
		x := int16(margin + col*cellW)
		tinyfont.WriteLine(r.disp, r.font, x, y+cellH-3, string(rune(ch)), colorText)
	}
	_ = r.disp.Display()
}
