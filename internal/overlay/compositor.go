package overlay

import (
	"fmt"
	"image"

	"github.com/rajveermalviya/go-webgpu/wgpu"

	"isosandbox/internal/gpu"
)

// PanelFormat is the texel format of the uploaded panel
const PanelFormat = wgpu.TextureFormat_RGBA8Unorm

// CompositeShader draws the panel texture as a screen-space quad
const CompositeShader = `
struct Rect {
    // left, top, right, bottom in clip space
    bounds: vec4<f32>,
}

struct VertexOutput {
    @builtin(position) position: vec4<f32>,
    @location(0) uv: vec2<f32>,
}

@group(0) @binding(0) var<uniform> rect: Rect;
@group(0) @binding(1) var panel_sampler: sampler;
@group(0) @binding(2) var panel: texture_2d<f32>;

@vertex
fn vs_main(@builtin(vertex_index) i: u32) -> VertexOutput {
    let corner = vec2<f32>(f32(i & 1u), f32((i >> 1u) & 1u));
    var out: VertexOutput;
    let x = mix(rect.bounds.x, rect.bounds.z, corner.x);
    let y = mix(rect.bounds.y, rect.bounds.w, corner.y);
    out.position = vec4<f32>(x, y, 0.0, 1.0);
    out.uv = corner;
    return out;
}

@fragment
fn fs_main(in: VertexOutput) -> @location(0) vec4<f32> {
    return textureSample(panel, panel_sampler, in.uv);
}
`

// premultipliedBlend composites colour that is already weighted by alpha
var premultipliedBlend = wgpu.BlendState{
	Color: wgpu.BlendComponent{
		SrcFactor: wgpu.BlendFactor_One,
		DstFactor: wgpu.BlendFactor_OneMinusSrcAlpha,
		Operation: wgpu.BlendOperation_Add,
	},
	Alpha: wgpu.BlendComponent{
		SrcFactor: wgpu.BlendFactor_One,
		DstFactor: wgpu.BlendFactor_OneMinusSrcAlpha,
		Operation: wgpu.BlendOperation_Add,
	},
}

// panelBounds maps a pixel rectangle on the framebuffer to clip space
// (left, top, right, bottom)
func panelBounds(x, y, w, h float64, fbWidth, fbHeight int) [4]float32 {
	fw, fh := float64(fbWidth), float64(fbHeight)
	return [4]float32{
		float32(2*x/fw - 1),
		float32(1 - 2*y/fh),
		float32(2*(x+w)/fw - 1),
		float32(1 - 2*(y+h)/fh),
	}
}

// Compositor uploads the rasterised panel and draws it over the frame
type Compositor struct {
	device *wgpu.Device
	queue  *wgpu.Queue

	width, height int

	texture   *wgpu.Texture
	view      *wgpu.TextureView
	sampler   *wgpu.Sampler
	rect      *wgpu.Buffer
	layout    *wgpu.BindGroupLayout
	bindGroup *wgpu.BindGroup
	pipeline  *wgpu.RenderPipeline
}

// NewCompositor creates the panel texture and pipeline for a swap chain format
func NewCompositor(ctx *gpu.Context, format wgpu.TextureFormat, width, height int) (*Compositor, error) {
	c := &Compositor{
		device: ctx.Device,
		queue:  ctx.Queue,
		width:  width,
		height: height,
	}
	if err := c.init(ctx, format); err != nil {
		c.Release()
		return nil, err
	}
	return c, nil
}

func (c *Compositor) init(ctx *gpu.Context, format wgpu.TextureFormat) error {
	var err error
	c.texture, err = c.device.CreateTexture(&wgpu.TextureDescriptor{
		Label: "overlay_texture",
		Size: wgpu.Extent3D{
			Width:              uint32(c.width),
			Height:             uint32(c.height),
			DepthOrArrayLayers: 1,
		},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     wgpu.TextureDimension_2D,
		Format:        PanelFormat,
		Usage:         wgpu.TextureUsage_TextureBinding | wgpu.TextureUsage_CopyDst,
	})
	if err != nil {
		return fmt.Errorf("overlay texture creation failed: %w", err)
	}
	c.view, err = c.texture.CreateView(nil)
	if err != nil {
		return fmt.Errorf("overlay view creation failed: %w", err)
	}

	c.sampler, err = c.device.CreateSampler(&wgpu.SamplerDescriptor{
		AddressModeU:   wgpu.AddressMode_ClampToEdge,
		AddressModeV:   wgpu.AddressMode_ClampToEdge,
		AddressModeW:   wgpu.AddressMode_ClampToEdge,
		MagFilter:      wgpu.FilterMode_Nearest,
		MinFilter:      wgpu.FilterMode_Nearest,
		MipmapFilter:   wgpu.MipmapFilterMode_Nearest,
		MaxAnisotrophy: 1,
	})
	if err != nil {
		return fmt.Errorf("overlay sampler creation failed: %w", err)
	}

	c.rect, err = c.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "overlay_rect",
		Size:  16,
		Usage: wgpu.BufferUsage_Uniform | wgpu.BufferUsage_CopyDst,
	})
	if err != nil {
		return fmt.Errorf("overlay rect creation failed: %w", err)
	}

	c.layout, err = c.device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label: "overlay_bind_group_layout",
		Entries: []wgpu.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: wgpu.ShaderStage_Vertex,
				Buffer:     wgpu.BufferBindingLayout{Type: wgpu.BufferBindingType_Uniform},
			},
			{
				Binding:    1,
				Visibility: wgpu.ShaderStage_Fragment,
				Sampler:    wgpu.SamplerBindingLayout{Type: wgpu.SamplerBindingType_Filtering},
			},
			{
				Binding:    2,
				Visibility: wgpu.ShaderStage_Fragment,
				Texture: wgpu.TextureBindingLayout{
					SampleType:    wgpu.TextureSampleType_Float,
					ViewDimension: wgpu.TextureViewDimension_2D,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("overlay bind group layout creation failed: %w", err)
	}

	c.bindGroup, err = c.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:  "overlay_bind_group",
		Layout: c.layout,
		Entries: []wgpu.BindGroupEntry{
			{Binding: 0, Buffer: c.rect, Size: 16},
			{Binding: 1, Sampler: c.sampler},
			{Binding: 2, TextureView: c.view},
		},
	})
	if err != nil {
		return fmt.Errorf("overlay bind group creation failed: %w", err)
	}

	shader, err := ctx.CreateShader("overlay_shader", CompositeShader)
	if err != nil {
		return err
	}
	defer shader.Release()

	pipelineLayout, err := c.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            "overlay_pipeline_layout",
		BindGroupLayouts: []*wgpu.BindGroupLayout{c.layout},
	})
	if err != nil {
		return fmt.Errorf("overlay pipeline layout creation failed: %w", err)
	}
	defer pipelineLayout.Release()

	c.pipeline, err = c.device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  "overlay_pipeline",
		Layout: pipelineLayout,
		Vertex: wgpu.VertexState{
			Module:     shader,
			EntryPoint: "vs_main",
		},
		Fragment: &wgpu.FragmentState{
			Module:     shader,
			EntryPoint: "fs_main",
			Targets: []wgpu.ColorTargetState{{
				Format:    format,
				Blend:     &premultipliedBlend,
				WriteMask: wgpu.ColorWriteMask_All,
			}},
		},
		Primitive: wgpu.PrimitiveState{
			Topology: wgpu.PrimitiveTopology_TriangleStrip,
		},
		Multisample: wgpu.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		return fmt.Errorf("overlay pipeline creation failed: %w", err)
	}
	return nil
}

// Upload copies the panel image and its placement for the next draw
func (c *Compositor) Upload(img *image.RGBA, x, y float64, fbWidth, fbHeight int) {
	b := img.Bounds()
	w, h := min(b.Dx(), c.width), min(b.Dy(), c.height)
	c.queue.WriteTexture(
		&wgpu.ImageCopyTexture{Texture: c.texture, MipLevel: 0, Origin: wgpu.Origin3D{}, Aspect: wgpu.TextureAspect_All},
		img.Pix,
		&wgpu.TextureDataLayout{Offset: 0, BytesPerRow: uint32(img.Stride), RowsPerImage: uint32(b.Dy())},
		&wgpu.Extent3D{Width: uint32(w), Height: uint32(h), DepthOrArrayLayers: 1},
	)
	bounds := panelBounds(x, y, float64(c.width), float64(c.height), fbWidth, fbHeight)
	c.queue.WriteBuffer(c.rect, 0, wgpu.ToBytes(bounds[:]))
}

// Draw records the panel quad into an open render pass
func (c *Compositor) Draw(pass *wgpu.RenderPassEncoder) {
	pass.SetPipeline(c.pipeline)
	pass.SetBindGroup(0, c.bindGroup, nil)
	pass.Draw(4, 1, 0, 0)
}

// Release frees the compositor's GPU resources
func (c *Compositor) Release() {
	if c.pipeline != nil {
		c.pipeline.Release()
		c.pipeline = nil
	}
	if c.bindGroup != nil {
		c.bindGroup.Release()
		c.bindGroup = nil
	}
	if c.layout != nil {
		c.layout.Release()
		c.layout = nil
	}
	if c.rect != nil {
		c.rect.Release()
		c.rect = nil
	}
	if c.sampler != nil {
		c.sampler.Release()
		c.sampler = nil
	}
	if c.view != nil {
		c.view.Release()
		c.view = nil
	}
	if c.texture != nil {
		c.texture.Release()
		c.texture = nil
	}
}
