package overlay

import (
	"slices"

	"github.com/rajveermalviya/go-webgpu/wgpu"

	"isosandbox/internal/config"
	"isosandbox/internal/density"
	"isosandbox/internal/gpu"
)

const (
	// PanelWidth and PanelHeight size the rasterised panel in pixels
	PanelWidth  = 320
	PanelHeight = 300
	margin      = 12
)

// Params are the user-adjustable values the panel edits before the density pass
type Params struct {
	Field      string
	Radius     float32
	Offset     float32
	Frequency  float32
	Threshold  float32
	CPU        bool
	AutoRotate bool
}

// ParamsFromConfig seeds the panel from the loaded configuration
func ParamsFromConfig(cfg *config.Config) Params {
	return Params{
		Field:      cfg.Field.Kind,
		Radius:     float32(cfg.Field.Radius),
		Offset:     float32(cfg.Field.Offset),
		Frequency:  float32(cfg.Field.Frequency),
		Threshold:  float32(cfg.Extract.Threshold),
		CPU:        cfg.Extract.Backend == config.BackendCPU,
		AutoRotate: cfg.Features.AutoRotate,
	}
}

// Density converts the panel values into field parameters at time t
func (p Params) Density(t float32) density.Params {
	return density.Params{
		Radius:    p.Radius,
		Offset:    p.Offset,
		Frequency: p.Frequency,
		Time:      t,
	}
}

// Backend names the extraction backend
func (p Params) Backend() string {
	if p.CPU {
		return config.BackendCPU
	}
	return config.BackendGPU
}

// Status is the read-only information shown under the controls
type Status struct {
	FPS       float64
	Triangles int
	Capacity  int
	Grid      string
}

// BuildPanel lays out the control panel for one frame and reports whether
// any parameter changed
func BuildPanel(u *UI, p *Params, st Status) bool {
	changed := false

	u.Begin("isosandbox")

	fields := density.Names()
	selected := slices.Index(fields, p.Field)
	if u.Choice("field", fields, &selected) {
		p.Field = fields[selected]
		changed = true
	}
	changed = u.SliderFloat("radius", &p.Radius, 0.1, 1.2) || changed
	changed = u.SliderFloat("offset", &p.Offset, -1, 1) || changed
	changed = u.SliderFloat("frequency", &p.Frequency, 0.5, 8) || changed
	changed = u.SliderFloat("threshold", &p.Threshold, -0.5, 0.5) || changed
	changed = u.Checkbox("cpu extraction", &p.CPU) || changed
	changed = u.Checkbox("auto rotate", &p.AutoRotate) || changed

	u.Label("grid %s", st.Grid)
	u.Label("triangles %d / %d", st.Triangles, st.Capacity)
	u.Label("%.0f fps", st.FPS)
	return changed
}

// Overlay pairs the panel with its GPU compositor
type Overlay struct {
	ui   *UI
	comp *Compositor

	Visible bool
}

// New creates the overlay for a swap chain format
func New(ctx *gpu.Context, format wgpu.TextureFormat, visible bool) (*Overlay, error) {
	ui, err := NewUI(PanelWidth, PanelHeight)
	if err != nil {
		return nil, err
	}
	ui.SetOrigin(margin, margin)

	comp, err := NewCompositor(ctx, format, PanelWidth, PanelHeight)
	if err != nil {
		ui.Close()
		return nil, err
	}
	return &Overlay{ui: ui, comp: comp, Visible: visible}, nil
}

// Input returns the pointer state fed by window callbacks
func (o *Overlay) Input() *Input {
	return o.ui.Input()
}

// Toggle shows or hides the panel
func (o *Overlay) Toggle() {
	o.Visible = !o.Visible
}

// WantsMouse reports whether pointer input belongs to the panel
func (o *Overlay) WantsMouse() bool {
	return o.Visible && o.ui.WantsMouse()
}

// Update builds the panel and uploads it. Nothing happens while hidden.
func (o *Overlay) Update(p *Params, st Status, fbWidth, fbHeight int) (bool, error) {
	if !o.Visible {
		o.ui.Input().endFrame()
		return false, nil
	}
	changed := BuildPanel(o.ui, p, st)
	if err := o.ui.End(); err != nil {
		return changed, err
	}
	x, y := o.ui.Origin()
	o.comp.Upload(o.ui.Image(), x, y, fbWidth, fbHeight)
	return changed, nil
}

// Draw composites the panel into an open render pass
func (o *Overlay) Draw(pass *wgpu.RenderPassEncoder) {
	o.comp.Draw(pass)
}

// Release frees the overlay
func (o *Overlay) Release() {
	if o.comp != nil {
		o.comp.Release()
		o.comp = nil
	}
	if o.ui != nil {
		o.ui.Close()
		o.ui = nil
	}
}
