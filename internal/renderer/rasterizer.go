package renderer

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/rajveermalviya/go-webgpu/wgpu"

	"isosandbox/internal/gpu"
)

// TransformSize is the byte size of the column-major transform matrix
const TransformSize = 64

// ClearColor is the background behind the surface
var ClearColor = wgpu.Color{R: 0.08, G: 0.09, B: 0.11, A: 1.0}

// meshBlend is standard over-compositing: source alpha weights the source
// colour and the destination contributes its complement
var meshBlend = wgpu.BlendState{
	Color: wgpu.BlendComponent{
		SrcFactor: wgpu.BlendFactor_SrcAlpha,
		DstFactor: wgpu.BlendFactor_OneMinusSrcAlpha,
		Operation: wgpu.BlendOperation_Add,
	},
	Alpha: wgpu.BlendComponent{
		SrcFactor: wgpu.BlendFactor_One,
		DstFactor: wgpu.BlendFactor_Zero,
		Operation: wgpu.BlendOperation_Add,
	},
}

// meshVertexLayout describes Vertex to the pipeline
func meshVertexLayout() wgpu.VertexBufferLayout {
	return wgpu.VertexBufferLayout{
		ArrayStride: VertexStride,
		StepMode:    wgpu.VertexStepMode_Vertex,
		Attributes: []wgpu.VertexAttribute{
			{Format: wgpu.VertexFormat_Float32x3, Offset: 0, ShaderLocation: 0},
			{Format: wgpu.VertexFormat_Float32x3, Offset: 12, ShaderLocation: 1},
		},
	}
}

// rasterizer draws the extracted triangles
type rasterizer struct {
	device *wgpu.Device

	pipeline  *wgpu.RenderPipeline
	layout    *wgpu.BindGroupLayout
	transform *wgpu.Buffer
	bindGroup *wgpu.BindGroup
}

func newRasterizer(ctx *gpu.Context, format wgpu.TextureFormat) (*rasterizer, error) {
	r := &rasterizer{device: ctx.Device}
	if err := r.init(ctx, format); err != nil {
		r.Release()
		return nil, err
	}
	return r, nil
}

func (r *rasterizer) init(ctx *gpu.Context, format wgpu.TextureFormat) error {
	shader, err := ctx.CreateShader("mesh_shader", MeshShader)
	if err != nil {
		return err
	}
	defer shader.Release()

	r.transform, err = r.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "transform",
		Size:  TransformSize,
		Usage: wgpu.BufferUsage_Storage | wgpu.BufferUsage_CopyDst,
	})
	if err != nil {
		return fmt.Errorf("transform buffer creation failed: %w", err)
	}

	r.layout, err = r.device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label: "mesh_bind_group_layout",
		Entries: []wgpu.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: wgpu.ShaderStage_Vertex,
				Buffer:     wgpu.BufferBindingLayout{Type: wgpu.BufferBindingType_ReadOnlyStorage},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("bind group layout creation failed: %w", err)
	}

	r.bindGroup, err = r.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:  "mesh_bind_group",
		Layout: r.layout,
		Entries: []wgpu.BindGroupEntry{
			{Binding: 0, Buffer: r.transform, Size: TransformSize},
		},
	})
	if err != nil {
		return fmt.Errorf("bind group creation failed: %w", err)
	}

	pipelineLayout, err := r.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            "mesh_pipeline_layout",
		BindGroupLayouts: []*wgpu.BindGroupLayout{r.layout},
	})
	if err != nil {
		return fmt.Errorf("pipeline layout creation failed: %w", err)
	}
	defer pipelineLayout.Release()

	r.pipeline, err = r.device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  "mesh_pipeline",
		Layout: pipelineLayout,
		Vertex: wgpu.VertexState{
			Module:     shader,
			EntryPoint: "vs_main",
			Buffers:    []wgpu.VertexBufferLayout{meshVertexLayout()},
		},
		Fragment: &wgpu.FragmentState{
			Module:     shader,
			EntryPoint: "fs_main",
			Targets: []wgpu.ColorTargetState{{
				Format:    format,
				Blend:     &meshBlend,
				WriteMask: wgpu.ColorWriteMask_All,
			}},
		},
		Primitive: wgpu.PrimitiveState{
			Topology:  wgpu.PrimitiveTopology_TriangleList,
			FrontFace: wgpu.FrontFace_CCW,
			CullMode:  wgpu.CullMode_None,
		},
		DepthStencil: &wgpu.DepthStencilState{
			Format:            DepthFormat,
			DepthWriteEnabled: true,
			DepthCompare:      wgpu.CompareFunction_Less,
			StencilFront:      wgpu.StencilFaceState{Compare: wgpu.CompareFunction_Always},
			StencilBack:       wgpu.StencilFaceState{Compare: wgpu.CompareFunction_Always},
		},
		Multisample: wgpu.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		return fmt.Errorf("pipeline creation failed: %w", err)
	}
	return nil
}

// stageTransform records the copy of this frame's matrix into the
// device-resident transform buffer. It must precede the render pass in the
// same encoder. The staging buffer is returned for release after submit.
func (r *rasterizer) stageTransform(encoder *wgpu.CommandEncoder, m mgl32.Mat4) (*wgpu.Buffer, error) {
	staging, err := r.device.CreateBufferInit(&wgpu.BufferInitDescriptor{
		Label:    "transform_staging",
		Contents: wgpu.ToBytes(m[:]),
		Usage:    wgpu.BufferUsage_CopySrc,
	})
	if err != nil {
		return nil, fmt.Errorf("transform staging failed: %w", err)
	}
	encoder.CopyBufferToBuffer(staging, 0, r.transform, 0, TransformSize)
	return staging, nil
}

// encodeClear clears the colour and depth attachments
func encodeClear(encoder *wgpu.CommandEncoder, color, depth *wgpu.TextureView) {
	pass := encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
		Label: "clear_pass",
		ColorAttachments: []wgpu.RenderPassColorAttachment{{
			View:       color,
			LoadOp:     wgpu.LoadOp_Clear,
			StoreOp:    wgpu.StoreOp_Store,
			ClearValue: ClearColor,
		}},
		DepthStencilAttachment: &wgpu.RenderPassDepthStencilAttachment{
			View:            depth,
			DepthLoadOp:     wgpu.LoadOp_Clear,
			DepthStoreOp:    wgpu.StoreOp_Store,
			DepthClearValue: 1,
		},
	})
	pass.End()
	pass.Release()
}

// encodeDraw draws a geometry slot over the existing attachment contents
func (r *rasterizer) encodeDraw(encoder *wgpu.CommandEncoder, color, depth *wgpu.TextureView, slot *GeometrySlot) {
	if !slot.indirect && slot.count == 0 {
		return
	}
	pass := encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
		Label: "mesh_pass",
		ColorAttachments: []wgpu.RenderPassColorAttachment{{
			View:    color,
			LoadOp:  wgpu.LoadOp_Load,
			StoreOp: wgpu.StoreOp_Store,
		}},
		DepthStencilAttachment: &wgpu.RenderPassDepthStencilAttachment{
			View:         depth,
			DepthLoadOp:  wgpu.LoadOp_Load,
			DepthStoreOp: wgpu.StoreOp_Store,
		},
	})
	pass.SetPipeline(r.pipeline)
	pass.SetBindGroup(0, r.bindGroup, nil)
	pass.SetVertexBuffer(0, slot.vertices, 0, wgpu.WholeSize)
	pass.SetIndexBuffer(slot.indices, wgpu.IndexFormat_Uint32, 0, wgpu.WholeSize)
	if slot.indirect {
		pass.DrawIndexedIndirect(slot.drawArgs, 0)
	} else {
		pass.DrawIndexed(slot.count, 1, 0, 0, 0)
	}
	pass.End()
	pass.Release()
}

func (r *rasterizer) Release() {
	if r.pipeline != nil {
		r.pipeline.Release()
		r.pipeline = nil
	}
	if r.bindGroup != nil {
		r.bindGroup.Release()
		r.bindGroup = nil
	}
	if r.layout != nil {
		r.layout.Release()
		r.layout = nil
	}
	if r.transform != nil {
		r.transform.Release()
		r.transform = nil
	}
}
