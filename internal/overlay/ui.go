// Package overlay is the immediate-mode control panel drawn over the
// surface. Widgets are rebuilt every frame from the input state, rasterised
// on the CPU with gg and composited on the GPU.
package overlay

import (
	"fmt"
	"image"
	"image/draw"

	"github.com/gogpu/gg"
	"github.com/gogpu/gg/text"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const (
	rowHeight  = 24.0
	padding    = 10.0
	labelWidth = 100.0
	valueWidth = 50.0
	boxSize    = 14.0
	fontSize   = 13.0
)

var (
	panelColor  = gg.RGBA2(0.10, 0.11, 0.14, 0.85)
	trackColor  = gg.RGBA2(0.25, 0.27, 0.32, 1)
	accentColor = gg.RGBA2(0.36, 0.62, 0.95, 1)
	textColor   = gg.RGBA2(0.92, 0.93, 0.95, 1)
	dimColor    = gg.RGBA2(0.60, 0.62, 0.66, 1)
)

type rect struct {
	x0, y0, x1, y1 float64
}

func (r rect) contains(x, y float64) bool {
	return x >= r.x0 && x < r.x1 && y >= r.y0 && y < r.y1
}

// UI is an immediate-mode widget set over a fixed-size panel
type UI struct {
	dc      *gg.Context
	printer *message.Printer
	input   Input

	originX, originY float64
	width, height    int

	row     int
	active  string
	hovered bool
	err     error
}

// NewUI creates a panel of the given size in pixels
func NewUI(width, height int) (*UI, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid panel size %dx%d", width, height)
	}
	source, err := text.NewFontSource(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("font load failed: %w", err)
	}
	dc := gg.NewContext(width, height)
	dc.SetFont(source.Face(fontSize))

	return &UI{
		dc:      dc,
		printer: message.NewPrinter(language.English),
		width:   width,
		height:  height,
	}, nil
}

// Input returns the pointer state fed by window callbacks
func (u *UI) Input() *Input {
	return &u.input
}

// SetOrigin places the panel's top-left corner in framebuffer pixels
func (u *UI) SetOrigin(x, y float64) {
	u.originX, u.originY = x, y
}

// Origin returns the panel's top-left corner
func (u *UI) Origin() (float64, float64) {
	return u.originX, u.originY
}

// Size returns the panel size in pixels
func (u *UI) Size() (int, int) {
	return u.width, u.height
}

// WantsMouse reports whether the pointer was over the panel or a widget
// held it during the last frame
func (u *UI) WantsMouse() bool {
	return u.hovered || u.active != ""
}

// local returns the pointer in panel coordinates
func (u *UI) local() (float64, float64) {
	return u.input.X - u.originX, u.input.Y - u.originY
}

// Begin clears the panel and draws its title row
func (u *UI) Begin(title string) {
	u.row = 0
	u.err = nil
	mx, my := u.local()
	u.hovered = rect{0, 0, float64(u.width), float64(u.height)}.contains(mx, my)

	u.dc.Clear()
	u.dc.SetColor(panelColor.Color())
	u.dc.DrawRoundedRectangle(0, 0, float64(u.width), float64(u.height), 8)
	u.fill()

	r := u.nextRow()
	u.dc.SetColor(textColor.Color())
	u.dc.DrawString(title, r.x0, baseline(r))
}

// nextRow reserves the next full-width row
func (u *UI) nextRow() rect {
	y := padding + float64(u.row)*rowHeight
	u.row++
	return rect{padding, y, float64(u.width) - padding, y + rowHeight}
}

func baseline(r rect) float64 {
	return r.y0 + rowHeight/2 + fontSize/3
}

func (u *UI) fill() {
	if err := u.dc.Fill(); err != nil && u.err == nil {
		u.err = err
	}
}

func (u *UI) format(format string, args ...any) string {
	return u.printer.Sprintf(format, args...)
}

// Label draws a row of text. Numbers are formatted with thousands separators.
func (u *UI) Label(format string, args ...any) {
	r := u.nextRow()
	u.dc.SetColor(dimColor.Color())
	u.dc.DrawString(u.format(format, args...), r.x0, baseline(r))
}

// trackRect is the draggable part of a slider row
func trackRect(r rect) rect {
	mid := (r.y0 + r.y1) / 2
	return rect{r.x0 + labelWidth, mid - 4, r.x1 - valueWidth, mid + 4}
}

// SliderFloat edits v within [lo, hi] by dragging. It reports whether v changed.
func (u *UI) SliderFloat(label string, v *float32, lo, hi float32) bool {
	r := u.nextRow()
	track := trackRect(r)
	hit := rect{track.x0, r.y0, track.x1, r.y1}
	mx, my := u.local()

	if u.input.Pressed && hit.contains(mx, my) {
		u.active = label
	}
	changed := false
	if u.active == label && u.input.Down {
		t := (mx - track.x0) / (track.x1 - track.x0)
		t = min(max(t, 0), 1)
		next := lo + float32(t)*(hi-lo)
		if next != *v {
			*v = next
			changed = true
		}
	}

	u.dc.SetColor(textColor.Color())
	u.dc.DrawString(label, r.x0, baseline(r))

	u.dc.SetColor(trackColor.Color())
	u.dc.DrawRoundedRectangle(track.x0, track.y0, track.x1-track.x0, track.y1-track.y0, 4)
	u.fill()

	t := 0.0
	if hi != lo {
		t = float64((*v - lo) / (hi - lo))
	}
	t = min(max(t, 0), 1)
	knob := track.x0 + t*(track.x1-track.x0)
	u.dc.SetColor(accentColor.Color())
	u.dc.DrawRoundedRectangle(track.x0, track.y0, knob-track.x0, track.y1-track.y0, 4)
	u.fill()
	u.dc.DrawCircle(knob, (track.y0+track.y1)/2, 6)
	u.fill()

	u.dc.SetColor(textColor.Color())
	u.dc.DrawString(u.format("%.2f", *v), track.x1+8, baseline(r))
	return changed
}

// Checkbox toggles v when its row is clicked
func (u *UI) Checkbox(label string, v *bool) bool {
	r := u.nextRow()
	mx, my := u.local()
	changed := false
	if u.input.Pressed && r.contains(mx, my) {
		*v = !*v
		changed = true
	}

	by := (r.y0+r.y1)/2 - boxSize/2
	u.dc.SetColor(trackColor.Color())
	u.dc.DrawRoundedRectangle(r.x0, by, boxSize, boxSize, 3)
	u.fill()
	if *v {
		u.dc.SetColor(accentColor.Color())
		u.dc.DrawRoundedRectangle(r.x0+3, by+3, boxSize-6, boxSize-6, 2)
		u.fill()
	}
	u.dc.SetColor(textColor.Color())
	u.dc.DrawString(label, r.x0+boxSize+8, baseline(r))
	return changed
}

// Choice cycles through options: clicking the left half of the value steps
// back, the right half steps forward
func (u *UI) Choice(label string, options []string, selected *int) bool {
	r := u.nextRow()
	if len(options) == 0 {
		return false
	}
	value := rect{r.x0 + labelWidth, r.y0, r.x1, r.y1}
	mx, my := u.local()
	changed := false
	if u.input.Pressed && value.contains(mx, my) {
		step := 1
		if mx < (value.x0+value.x1)/2 {
			step = -1
		}
		*selected = (*selected + step + len(options)) % len(options)
		changed = true
	}
	if *selected < 0 || *selected >= len(options) {
		*selected = 0
	}

	u.dc.SetColor(textColor.Color())
	u.dc.DrawString(label, r.x0, baseline(r))
	u.dc.SetColor(trackColor.Color())
	u.dc.DrawRoundedRectangle(value.x0, value.y0+3, value.x1-value.x0, rowHeight-6, 4)
	u.fill()
	u.dc.SetColor(textColor.Color())
	u.dc.DrawStringAnchored("<  "+options[*selected]+"  >", (value.x0+value.x1)/2, baseline(r), 0.5, 0)
	return changed
}

// End finishes the frame and returns the first drawing error, if any
func (u *UI) End() error {
	if u.input.Released || !u.input.Down {
		u.active = ""
	}
	u.input.endFrame()
	return u.err
}

// Image returns the rasterised panel with premultiplied alpha
func (u *UI) Image() *image.RGBA {
	img := u.dc.Image()
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba
	}
	rgba := image.NewRGBA(img.Bounds())
	draw.Draw(rgba, rgba.Bounds(), img, image.Point{}, draw.Src)
	return rgba
}

// Close releases the drawing context
func (u *UI) Close() error {
	return u.dc.Close()
}
