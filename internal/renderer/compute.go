package renderer

import (
	"fmt"
	"unsafe"

	"github.com/rajveermalviya/go-webgpu/wgpu"

	"isosandbox/internal/density"
	"isosandbox/internal/gpu"
	"isosandbox/internal/logging"
	"isosandbox/internal/mc"
	"isosandbox/pkg/grid"
)

// VolumeFormat is the texel format of the density texture
const VolumeFormat = wgpu.TextureFormat_R32Float

// fieldUniform matches FieldParams in the density shader
type fieldUniform struct {
	Shape  [4]float32
	Extent [4]uint32
}

// extractUniform matches ExtractParams in the extraction shader
type extractUniform struct {
	Extent   [4]uint32
	Capacity uint32
	Stride   uint32
	Iso      float32
	_        uint32
}

func newFieldUniform(e grid.Extent, prm density.Params) fieldUniform {
	return fieldUniform{
		Shape:  [4]float32{prm.Radius, prm.Offset, prm.Frequency, prm.Time},
		Extent: [4]uint32{uint32(e.X), uint32(e.Y), uint32(e.Z), 0},
	}
}

func newExtractUniform(e grid.Extent, iso float32) extractUniform {
	return extractUniform{
		Extent:   [4]uint32{uint32(e.X), uint32(e.Y), uint32(e.Z), 0},
		Capacity: uint32(mc.Capacity(e)),
		Stride:   uint32(mc.TableStride()),
		Iso:      iso,
	}
}

// densityDispatch covers one invocation per sample
func densityDispatch(e grid.Extent) [3]uint32 {
	return [3]uint32{
		grid.DispatchSize(e.X, WorkgroupSize),
		grid.DispatchSize(e.Y, WorkgroupSize),
		grid.DispatchSize(e.Z, WorkgroupSize),
	}
}

// extractDispatch covers one invocation per cell
func extractDispatch(e grid.Extent) [3]uint32 {
	c := e.Cells()
	return [3]uint32{
		grid.DispatchSize(c.X, WorkgroupSize),
		grid.DispatchSize(c.Y, WorkgroupSize),
		grid.DispatchSize(c.Z, WorkgroupSize),
	}
}

// VolumeTexture is the scalar volume on the device. It is written by the
// density pass as a storage texture and sampled by the extraction pass.
type VolumeTexture struct {
	extent  grid.Extent
	texture *wgpu.Texture
	view    *wgpu.TextureView
}

func newVolumeTexture(device *wgpu.Device, e grid.Extent) (*VolumeTexture, error) {
	texture, err := device.CreateTexture(&wgpu.TextureDescriptor{
		Label: "density_volume",
		Size: wgpu.Extent3D{
			Width:              uint32(e.X),
			Height:             uint32(e.Y),
			DepthOrArrayLayers: uint32(e.Z),
		},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     wgpu.TextureDimension_3D,
		Format:        VolumeFormat,
		Usage:         wgpu.TextureUsage_StorageBinding | wgpu.TextureUsage_TextureBinding,
	})
	if err != nil {
		return nil, fmt.Errorf("volume texture creation failed: %w", err)
	}

	view, err := texture.CreateView(&wgpu.TextureViewDescriptor{
		Format:          VolumeFormat,
		Dimension:       wgpu.TextureViewDimension_3D,
		BaseMipLevel:    0,
		MipLevelCount:   1,
		BaseArrayLayer:  0,
		ArrayLayerCount: 1,
		Aspect:          wgpu.TextureAspect_All,
	})
	if err != nil {
		texture.Release()
		return nil, fmt.Errorf("volume view creation failed: %w", err)
	}
	return &VolumeTexture{extent: e, texture: texture, view: view}, nil
}

// Extent returns the sample extent of the texture
func (v *VolumeTexture) Extent() grid.Extent {
	return v.extent
}

func (v *VolumeTexture) Release() {
	if v.view != nil {
		v.view.Release()
		v.view = nil
	}
	if v.texture != nil {
		v.texture.Release()
		v.texture = nil
	}
}

// computePasses owns the density and extraction pipelines
type computePasses struct {
	ctx    *gpu.Context
	extent grid.Extent

	sampler *wgpu.Sampler
	table   *wgpu.Buffer

	fieldParams   *wgpu.Buffer
	extractParams *wgpu.Buffer

	densityLayout   *wgpu.BindGroupLayout
	densityPipeline *wgpu.PipelineLayout
	densityGroup    *wgpu.BindGroup
	// density pipelines are compiled on first use of each field
	densityPipelines map[string]*wgpu.ComputePipeline

	extractLayout   *wgpu.BindGroupLayout
	extractPipeline *wgpu.ComputePipeline
	finalize        *wgpu.ComputePipeline
}

func newComputePasses(ctx *gpu.Context, volume *VolumeTexture, geometry *GeometryBuffers) (*computePasses, error) {
	c := &computePasses{
		ctx:              ctx,
		extent:           volume.extent,
		densityPipelines: make(map[string]*wgpu.ComputePipeline),
	}
	if err := c.init(volume, geometry); err != nil {
		c.Release()
		return nil, err
	}
	return c, nil
}

func (c *computePasses) init(volume *VolumeTexture, geometry *GeometryBuffers) error {
	device := c.ctx.Device
	var err error

	c.sampler, err = device.CreateSampler(&wgpu.SamplerDescriptor{
		AddressModeU:   wgpu.AddressMode_ClampToEdge,
		AddressModeV:   wgpu.AddressMode_ClampToEdge,
		AddressModeW:   wgpu.AddressMode_ClampToEdge,
		MagFilter:      wgpu.FilterMode_Nearest,
		MinFilter:      wgpu.FilterMode_Nearest,
		MipmapFilter:   wgpu.MipmapFilterMode_Nearest,
		MaxAnisotrophy: 1,
	})
	if err != nil {
		return fmt.Errorf("volume sampler creation failed: %w", err)
	}

	c.table, err = device.CreateBufferInit(&wgpu.BufferInitDescriptor{
		Label:    "case_table",
		Contents: wgpu.ToBytes(mc.EncodeTable()),
		Usage:    wgpu.BufferUsage_Storage,
	})
	if err != nil {
		return fmt.Errorf("case table creation failed: %w", err)
	}

	c.fieldParams, err = device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "field_params",
		Size:  uint64(unsafe.Sizeof(fieldUniform{})),
		Usage: wgpu.BufferUsage_Uniform | wgpu.BufferUsage_CopyDst,
	})
	if err != nil {
		return fmt.Errorf("field params creation failed: %w", err)
	}
	c.extractParams, err = device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "extract_params",
		Size:  uint64(unsafe.Sizeof(extractUniform{})),
		Usage: wgpu.BufferUsage_Uniform | wgpu.BufferUsage_CopyDst,
	})
	if err != nil {
		return fmt.Errorf("extract params creation failed: %w", err)
	}

	if err := c.initDensity(volume); err != nil {
		return err
	}
	return c.initExtract(volume, geometry)
}

func (c *computePasses) initDensity(volume *VolumeTexture) error {
	device := c.ctx.Device
	var err error

	c.densityLayout, err = device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label: "density_bind_group_layout",
		Entries: []wgpu.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: wgpu.ShaderStage_Compute,
				StorageTexture: wgpu.StorageTextureBindingLayout{
					Access:        wgpu.StorageTextureAccess_WriteOnly,
					Format:        VolumeFormat,
					ViewDimension: wgpu.TextureViewDimension_3D,
				},
			},
			{
				Binding:    1,
				Visibility: wgpu.ShaderStage_Compute,
				Buffer:     wgpu.BufferBindingLayout{Type: wgpu.BufferBindingType_Uniform},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("density bind group layout creation failed: %w", err)
	}

	c.densityPipeline, err = device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            "density_pipeline_layout",
		BindGroupLayouts: []*wgpu.BindGroupLayout{c.densityLayout},
	})
	if err != nil {
		return fmt.Errorf("density pipeline layout creation failed: %w", err)
	}

	c.densityGroup, err = device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:  "density_bind_group",
		Layout: c.densityLayout,
		Entries: []wgpu.BindGroupEntry{
			{Binding: 0, TextureView: volume.view},
			{Binding: 1, Buffer: c.fieldParams, Size: uint64(unsafe.Sizeof(fieldUniform{}))},
		},
	})
	if err != nil {
		return fmt.Errorf("density bind group creation failed: %w", err)
	}
	return nil
}

func (c *computePasses) initExtract(volume *VolumeTexture, geometry *GeometryBuffers) error {
	device := c.ctx.Device
	var err error

	storage := func(binding uint32, kind wgpu.BufferBindingType) wgpu.BindGroupLayoutEntry {
		return wgpu.BindGroupLayoutEntry{
			Binding:    binding,
			Visibility: wgpu.ShaderStage_Compute,
			Buffer:     wgpu.BufferBindingLayout{Type: kind},
		}
	}
	c.extractLayout, err = device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label: "extract_bind_group_layout",
		Entries: []wgpu.BindGroupLayoutEntry{
			storage(0, wgpu.BufferBindingType_Storage),
			storage(1, wgpu.BufferBindingType_Storage),
			{
				Binding:    2,
				Visibility: wgpu.ShaderStage_Compute,
				Texture: wgpu.TextureBindingLayout{
					SampleType:    wgpu.TextureSampleType_UnfilterableFloat,
					ViewDimension: wgpu.TextureViewDimension_3D,
				},
			},
			{
				Binding:    3,
				Visibility: wgpu.ShaderStage_Compute,
				Sampler:    wgpu.SamplerBindingLayout{Type: wgpu.SamplerBindingType_NonFiltering},
			},
			storage(4, wgpu.BufferBindingType_Storage),
			storage(5, wgpu.BufferBindingType_Uniform),
			storage(6, wgpu.BufferBindingType_ReadOnlyStorage),
			storage(7, wgpu.BufferBindingType_Storage),
		},
	})
	if err != nil {
		return fmt.Errorf("extract bind group layout creation failed: %w", err)
	}

	pipelineLayout, err := device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            "extract_pipeline_layout",
		BindGroupLayouts: []*wgpu.BindGroupLayout{c.extractLayout},
	})
	if err != nil {
		return fmt.Errorf("extract pipeline layout creation failed: %w", err)
	}
	defer pipelineLayout.Release()

	shader, err := c.ctx.CreateShader("extract_shader", ExtractShader())
	if err != nil {
		return err
	}
	defer shader.Release()

	c.extractPipeline, err = device.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
		Label:  "extract_pipeline",
		Layout: pipelineLayout,
		Compute: wgpu.ProgrammableStageDescriptor{
			Module:     shader,
			EntryPoint: "extract",
		},
	})
	if err != nil {
		return fmt.Errorf("extract pipeline creation failed: %w", err)
	}
	c.finalize, err = device.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
		Label:  "finalize_pipeline",
		Layout: pipelineLayout,
		Compute: wgpu.ProgrammableStageDescriptor{
			Module:     shader,
			EntryPoint: "finalize",
		},
	})
	if err != nil {
		return fmt.Errorf("finalize pipeline creation failed: %w", err)
	}

	layout := geometry.Layout()
	for _, s := range geometry.slots {
		s.extractGroup, err = device.CreateBindGroup(&wgpu.BindGroupDescriptor{
			Label:  fmt.Sprintf("extract_bind_group_%d", s.index),
			Layout: c.extractLayout,
			Entries: []wgpu.BindGroupEntry{
				{Binding: 0, Buffer: s.vertices, Size: layout.VertexBytes},
				{Binding: 1, Buffer: s.indices, Size: layout.IndexBytes},
				{Binding: 2, TextureView: volume.view},
				{Binding: 3, Sampler: c.sampler},
				{Binding: 4, Buffer: s.counter, Size: counterSize},
				{Binding: 5, Buffer: c.extractParams, Size: uint64(unsafe.Sizeof(extractUniform{}))},
				{Binding: 6, Buffer: c.table, Size: wgpu.WholeSize},
				{Binding: 7, Buffer: s.drawArgs, Size: drawArgsSize},
			},
		})
		if err != nil {
			return fmt.Errorf("extract bind group %d creation failed: %w", s.index, err)
		}
	}
	return nil
}

// densityPipelineFor returns the compiled density pass for a field
func (c *computePasses) densityPipelineFor(f density.Field) (*wgpu.ComputePipeline, error) {
	if p, ok := c.densityPipelines[f.Name()]; ok {
		return p, nil
	}
	src, ok := f.(density.Shader)
	if !ok {
		return nil, fmt.Errorf("field %s has no compute shader", f.Name())
	}

	shader, err := c.ctx.CreateShader("density_"+f.Name(), DensityShader(src))
	if err != nil {
		return nil, err
	}
	defer shader.Release()

	pipeline, err := c.ctx.Device.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
		Label:  "density_pipeline_" + f.Name(),
		Layout: c.densityPipeline,
		Compute: wgpu.ProgrammableStageDescriptor{
			Module:     shader,
			EntryPoint: "density",
		},
	})
	if err != nil {
		return nil, fmt.Errorf("density pipeline %s creation failed: %w", f.Name(), err)
	}
	logging.Logger().Debug("density pipeline compiled", "field", f.Name())
	c.densityPipelines[f.Name()] = pipeline
	return pipeline, nil
}

// writeParams stages this frame's uniforms and resets the slot counter.
// Queue writes land before the next submitted command buffer.
func (c *computePasses) writeParams(slot *GeometrySlot, prm density.Params, iso float32) {
	queue := c.ctx.Queue
	queue.WriteBuffer(c.fieldParams, 0, wgpu.ToBytes([]fieldUniform{newFieldUniform(c.extent, prm)}))
	queue.WriteBuffer(c.extractParams, 0, wgpu.ToBytes([]extractUniform{newExtractUniform(c.extent, iso)}))
	queue.WriteBuffer(slot.counter, 0, make([]byte, counterSize))
}

// encodeDensity records the density pass
func (c *computePasses) encodeDensity(encoder *wgpu.CommandEncoder, pipeline *wgpu.ComputePipeline) {
	d := densityDispatch(c.extent)
	pass := encoder.BeginComputePass(&wgpu.ComputePassDescriptor{Label: "density_pass"})
	pass.SetPipeline(pipeline)
	pass.SetBindGroup(0, c.densityGroup, nil)
	pass.DispatchWorkgroups(d[0], d[1], d[2])
	pass.End()
	pass.Release()
}

// encodeExtract records extraction and finalize as a pass after the density
// pass, then copies the counter for readback. The pass boundary orders the
// texture writes before the reads.
func (c *computePasses) encodeExtract(encoder *wgpu.CommandEncoder, slot *GeometrySlot) {
	d := extractDispatch(c.extent)
	if d[0] > 0 && d[1] > 0 && d[2] > 0 {
		pass := encoder.BeginComputePass(&wgpu.ComputePassDescriptor{Label: "extract_pass"})
		pass.SetPipeline(c.extractPipeline)
		pass.SetBindGroup(0, slot.extractGroup, nil)
		pass.DispatchWorkgroups(d[0], d[1], d[2])
		pass.End()
		pass.Release()
	}

	pass := encoder.BeginComputePass(&wgpu.ComputePassDescriptor{Label: "finalize_pass"})
	pass.SetPipeline(c.finalize)
	pass.SetBindGroup(0, slot.extractGroup, nil)
	pass.DispatchWorkgroups(1, 1, 1)
	pass.End()
	pass.Release()

	encoder.CopyBufferToBuffer(slot.counter, 0, slot.readback, 0, counterSize)
	slot.indirect = true
}

func (c *computePasses) Release() {
	for name, p := range c.densityPipelines {
		p.Release()
		delete(c.densityPipelines, name)
	}
	if c.finalize != nil {
		c.finalize.Release()
		c.finalize = nil
	}
	if c.extractPipeline != nil {
		c.extractPipeline.Release()
		c.extractPipeline = nil
	}
	if c.extractLayout != nil {
		c.extractLayout.Release()
		c.extractLayout = nil
	}
	if c.densityGroup != nil {
		c.densityGroup.Release()
		c.densityGroup = nil
	}
	if c.densityPipeline != nil {
		c.densityPipeline.Release()
		c.densityPipeline = nil
	}
	if c.densityLayout != nil {
		c.densityLayout.Release()
		c.densityLayout = nil
	}
	for _, b := range []**wgpu.Buffer{&c.extractParams, &c.fieldParams, &c.table} {
		if *b != nil {
			(*b).Release()
			*b = nil
		}
	}
	if c.sampler != nil {
		c.sampler.Release()
		c.sampler = nil
	}
}
