// Package renderer records the per-frame GPU work: density and extraction
// compute passes into double-buffered geometry, then the mesh draw and any
// overlay layers into the swap chain image.
package renderer

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/rajveermalviya/go-webgpu/wgpu"

	"isosandbox/internal/density"
	"isosandbox/internal/gpu"
	"isosandbox/internal/logging"
	"isosandbox/internal/mc"
	"isosandbox/pkg/grid"
)

// Layer is drawn in its own pass after the mesh, without depth
type Layer interface {
	Draw(pass *wgpu.RenderPassEncoder)
}

// FrameInput is everything one frame needs from the caller
type FrameInput struct {
	Transform mgl32.Mat4
	Field     density.Field
	Params    density.Params
	Iso       float32
	// Mesh, when set, is a CPU extraction drawn instead of running the compute passes
	Mesh    *mc.Mesh
	Overlay Layer
}

// Stats describes the last recorded frame
type Stats struct {
	Frame     uint64 `json:"frame"`
	Backend   string `json:"backend"`
	Triangles int    `json:"triangles"`
	Capacity  int    `json:"capacity"`
	Overflow  bool   `json:"overflow"`
	Skipped   uint64 `json:"skipped"`
	Width     uint32 `json:"width"`
	Height    uint32 `json:"height"`
}

// Renderer handles all WebGPU rendering
type Renderer struct {
	ctx    *gpu.Context
	format wgpu.TextureFormat

	target   *surfaceTarget
	present  *Presentation
	volume   *VolumeTexture
	geometry *GeometryBuffers
	compute  *computePasses
	raster   *rasterizer

	stats Stats
}

// New creates the renderer for a grid extent and an initial framebuffer size.
// The volume and geometry buffers are sized once here and never reallocated.
func New(ctx *gpu.Context, extent grid.Extent, width, height int, vsync bool) (*Renderer, error) {
	if err := extent.Validate(); err != nil {
		return nil, err
	}
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid framebuffer size %dx%d", width, height)
	}

	r := &Renderer{ctx: ctx}
	if err := r.init(extent, uint32(width), uint32(height), vsync); err != nil {
		r.Release()
		return nil, err
	}
	return r, nil
}

func (r *Renderer) init(extent grid.Extent, width, height uint32, vsync bool) error {
	r.format = r.ctx.Surface.GetPreferredFormat(r.ctx.Adapter)

	r.target = &surfaceTarget{
		device:      r.ctx.Device,
		surface:     r.ctx.Surface,
		format:      r.format,
		presentMode: presentMode(vsync),
	}
	if err := r.target.Configure(width, height); err != nil {
		return err
	}
	r.present = newPresentation(r.target, width, height)

	var err error
	r.volume, err = newVolumeTexture(r.ctx.Device, extent)
	if err != nil {
		return err
	}
	r.geometry, err = newGeometryBuffers(r.ctx.Device, extent)
	if err != nil {
		return err
	}
	r.compute, err = newComputePasses(r.ctx, r.volume, r.geometry)
	if err != nil {
		return err
	}
	r.raster, err = newRasterizer(r.ctx, r.format)
	if err != nil {
		return err
	}

	r.stats.Capacity = int(r.geometry.Layout().Triangles)
	r.stats.Width, r.stats.Height = width, height
	logging.Logger().Info("renderer ready",
		"grid", extent.String(),
		"capacity", r.stats.Capacity,
		"format", r.format,
		"vsync", vsync)
	return nil
}

// Format returns the swap chain format, for layers that build their own pipelines
func (r *Renderer) Format() wgpu.TextureFormat {
	return r.format
}

// Frame records, submits and presents one frame. Compute work is submitted
// even when no swap chain image could be acquired; in that case the
// acquisition error is returned and nothing is presented.
func (r *Renderer) Frame(in FrameInput) error {
	slot := r.geometry.Next()

	encoder, err := r.ctx.Device.CreateCommandEncoder(&wgpu.CommandEncoderDescriptor{Label: "frame_encoder"})
	if err != nil {
		return err
	}
	defer encoder.Release()

	onDevice := in.Mesh == nil
	if onDevice {
		pipeline, err := r.compute.densityPipelineFor(in.Field)
		if err != nil {
			return err
		}
		r.compute.writeParams(slot, in.Params, in.Iso)
		r.compute.encodeDensity(encoder, pipeline)
		r.compute.encodeExtract(encoder, slot)
	} else if err := r.geometry.upload(r.ctx.Queue, slot, in.Mesh); err != nil {
		return err
	}

	view, acquireErr := r.target.Acquire()
	if acquireErr == nil {
		defer view.Release()

		staging, err := r.raster.stageTransform(encoder, in.Transform)
		if err != nil {
			return err
		}
		defer staging.Release()

		encodeClear(encoder, view, r.target.depthView)
		r.raster.encodeDraw(encoder, view, r.target.depthView, slot)
		if in.Overlay != nil {
			encodeLayer(encoder, view, in.Overlay)
		}
	}

	cmdBuffer, err := encoder.Finish(&wgpu.CommandBufferDescriptor{})
	if err != nil {
		return err
	}
	defer cmdBuffer.Release()

	r.ctx.Queue.Submit(cmdBuffer)
	if onDevice {
		r.geometry.requestReadback(slot)
	}

	r.stats.Frame++
	if onDevice {
		tris, overflow := r.geometry.LastCount()
		r.stats.Backend, r.stats.Triangles, r.stats.Overflow = "gpu", int(tris), overflow
	} else {
		r.stats.Backend, r.stats.Triangles, r.stats.Overflow = "cpu", in.Mesh.TriangleCount(), false
	}

	if acquireErr != nil {
		r.stats.Skipped++
		return fmt.Errorf("acquire swap chain image: %w", acquireErr)
	}
	r.target.Present()
	return nil
}

// encodeLayer draws a layer over the frame with no depth attachment
func encodeLayer(encoder *wgpu.CommandEncoder, view *wgpu.TextureView, layer Layer) {
	pass := encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
		Label: "overlay_pass",
		ColorAttachments: []wgpu.RenderPassColorAttachment{{
			View:    view,
			LoadOp:  wgpu.LoadOp_Load,
			StoreOp: wgpu.StoreOp_Store,
		}},
	})
	layer.Draw(pass)
	pass.End()
	pass.Release()
}

// Resize handles window resize. Only the swap chain and its depth
// attachment are rebuilt; a zero-area size is ignored.
func (r *Renderer) Resize(width, height int) error {
	changed, err := r.present.Resize(width, height)
	if err != nil {
		return err
	}
	if changed {
		r.stats.Width, r.stats.Height = r.present.Size()
		logging.Logger().Debug("swap chain reconfigured", "width", width, "height", height)
	}
	return nil
}

// Stats returns statistics for the last frame
func (r *Renderer) Stats() Stats {
	return r.stats
}

// Release frees all GPU resources owned by the renderer. The gpu.Context
// stays with its owner.
func (r *Renderer) Release() {
	if r.raster != nil {
		r.raster.Release()
		r.raster = nil
	}
	if r.compute != nil {
		r.compute.Release()
		r.compute = nil
	}
	if r.geometry != nil {
		r.geometry.Release()
		r.geometry = nil
	}
	if r.volume != nil {
		r.volume.Release()
		r.volume = nil
	}
	if r.target != nil {
		r.target.Release()
		r.target = nil
	}
}
