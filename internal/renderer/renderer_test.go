package renderer

import (
	"errors"
	"fmt"
	"testing"
	"unsafe"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/rajveermalviya/go-webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"isosandbox/internal/density"
	"isosandbox/internal/gpu"
	"isosandbox/internal/mc"
	"isosandbox/pkg/grid"
)

type fakeSwapChain struct {
	sizes [][2]uint32
	err   error
}

func (f *fakeSwapChain) Configure(width, height uint32) error {
	if f.err != nil {
		return f.err
	}
	f.sizes = append(f.sizes, [2]uint32{width, height})
	return nil
}

func TestResizeIgnoresZeroAreaAndKeepsBuffers(t *testing.T) {
	fake := &fakeSwapChain{}
	volume := &VolumeTexture{extent: grid.Cube(8)}
	geometry := &GeometryBuffers{layout: LayoutFor(grid.Cube(8))}
	r := &Renderer{
		present:  newPresentation(fake, 800, 600),
		volume:   volume,
		geometry: geometry,
	}

	require.NoError(t, r.Resize(0, 0))
	assert.Empty(t, fake.sizes, "minimised window must not reconfigure")
	assert.Equal(t, 0, r.present.Reconfigures())

	require.NoError(t, r.Resize(640, 480))
	assert.Equal(t, [][2]uint32{{640, 480}}, fake.sizes)
	assert.Equal(t, 1, r.present.Reconfigures())

	w, h := r.present.Size()
	assert.Equal(t, uint32(640), w)
	assert.Equal(t, uint32(480), h)
	assert.Same(t, volume, r.volume)
	assert.Same(t, geometry, r.geometry)
	assert.Equal(t, grid.Cube(8), r.volume.Extent())
}

func TestResizeSameSizeIsNoop(t *testing.T) {
	fake := &fakeSwapChain{}
	p := newPresentation(fake, 800, 600)

	changed, err := p.Resize(800, 600)
	require.NoError(t, err)
	assert.False(t, changed)

	changed, err = p.Resize(0, 600)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Empty(t, fake.sizes)
}

func TestResizeFailureKeepsSize(t *testing.T) {
	boom := errors.New("boom")
	p := newPresentation(&fakeSwapChain{err: boom}, 800, 600)

	changed, err := p.Resize(1024, 768)
	assert.ErrorIs(t, err, boom)
	assert.False(t, changed)
	w, h := p.Size()
	assert.Equal(t, uint32(800), w)
	assert.Equal(t, uint32(600), h)
}

func TestClassifyAcquireError(t *testing.T) {
	assert.NoError(t, classifyAcquireError(nil))

	for _, msg := range []string{"Surface is Outdated", "device lost", "Timeout waiting for frame"} {
		err := classifyAcquireError(errors.New(msg))
		assert.ErrorIs(t, err, ErrSurfaceStale, msg)
	}

	other := errors.New("out of memory")
	err := classifyAcquireError(other)
	assert.NotErrorIs(t, err, ErrSurfaceStale)
	assert.Equal(t, other, err)
}

func TestPresentMode(t *testing.T) {
	assert.Equal(t, wgpu.PresentMode_Fifo, presentMode(true))
	assert.Equal(t, wgpu.PresentMode_Immediate, presentMode(false))
}

func TestVertexLayout(t *testing.T) {
	assert.Equal(t, uint64(24), VertexStride)

	l := meshVertexLayout()
	assert.Equal(t, VertexStride, l.ArrayStride)
	require.Len(t, l.Attributes, 2)
	assert.Equal(t, uint32(0), l.Attributes[0].ShaderLocation)
	assert.Equal(t, uint64(unsafe.Offsetof(Vertex{}.Color)), l.Attributes[1].Offset)
	assert.Equal(t, uint32(1), l.Attributes[1].ShaderLocation)
}

func TestLayoutFor(t *testing.T) {
	l := LayoutFor(grid.Extent{X: 2, Y: 3, Z: 4})
	tris := uint32(5 * 1 * 2 * 3)

	assert.Equal(t, tris, l.Triangles)
	assert.Equal(t, 3*tris, l.Vertices)
	assert.Equal(t, 3*tris, l.Indices)
	assert.Equal(t, uint64(3*tris)*24, l.VertexBytes)
	assert.Equal(t, uint64(3*tris)*4, l.IndexBytes)
}

func TestUniformLayouts(t *testing.T) {
	assert.Equal(t, uintptr(32), unsafe.Sizeof(fieldUniform{}))
	assert.Equal(t, uintptr(32), unsafe.Sizeof(extractUniform{}))
	assert.Equal(t, TransformSize, int(unsafe.Sizeof(mgl32.Mat4{})))

	e := grid.Extent{X: 5, Y: 6, Z: 7}
	f := newFieldUniform(e, density.Params{Radius: 0.5, Offset: 0.1, Frequency: 2, Time: 3})
	assert.Equal(t, [4]float32{0.5, 0.1, 2, 3}, f.Shape)
	assert.Equal(t, [4]uint32{5, 6, 7, 0}, f.Extent)

	x := newExtractUniform(e, 0.25)
	assert.Equal(t, uint32(mc.Capacity(e)), x.Capacity)
	assert.Equal(t, uint32(mc.TableStride()), x.Stride)
	assert.Equal(t, float32(0.25), x.Iso)
}

func TestDispatchSizes(t *testing.T) {
	e := grid.Extent{X: 9, Y: 4, Z: 1}
	assert.Equal(t, [3]uint32{3, 1, 1}, densityDispatch(e))
	assert.Equal(t, [3]uint32{2, 1, 0}, extractDispatch(e))

	e = grid.Cube(48)
	assert.Equal(t, [3]uint32{12, 12, 12}, densityDispatch(e))
	assert.Equal(t, [3]uint32{12, 12, 12}, extractDispatch(e))
}

func TestDecodeCounter(t *testing.T) {
	raw := []byte{
		7, 0, 0, 0,
		5, 0, 0, 0,
		1, 0, 0, 0,
		0, 0, 0, 0,
	}
	c := decodeCounter(raw)
	assert.Equal(t, counterState{Reserved: 7, Written: 5, Overflow: 1}, c)
	assert.Equal(t, counterState{}, decodeCounter(raw[:4]))

	g := &GeometryBuffers{layout: GeometryLayout{Triangles: 4}, last: counterState{Written: 9, Overflow: 1}}
	tris, overflow := g.LastCount()
	assert.Equal(t, uint32(4), tris, "draw count is clamped to capacity")
	assert.True(t, overflow)
}

func TestFlattenEncodesNormals(t *testing.T) {
	m := &mc.Mesh{
		Vertices: []mc.Vertex{
			{Position: mgl32.Vec3{0.1, 0.2, 0.3}, Normal: mgl32.Vec3{1, 0, 0}},
			{Position: mgl32.Vec3{-1, 0, 1}, Normal: mgl32.Vec3{0, -1, 0}},
		},
	}
	v := flatten(m)
	require.Len(t, v, 2)
	assert.Equal(t, [3]float32{0.1, 0.2, 0.3}, v[0].Position)
	assert.Equal(t, [3]float32{1, 0.5, 0.5}, v[0].Color)
	assert.Equal(t, [3]float32{0.5, 0, 0.5}, v[1].Color)
}

func TestCheckFits(t *testing.T) {
	g := &GeometryBuffers{layout: LayoutFor(grid.Cube(2))}

	ok := &mc.Mesh{Indices: make([]uint32, g.layout.Indices), Vertices: make([]mc.Vertex, 3)}
	assert.NoError(t, g.checkFits(ok))

	over := &mc.Mesh{Indices: make([]uint32, g.layout.Indices+3)}
	assert.ErrorIs(t, g.checkFits(over), mc.ErrCapacityExceeded)
}

func TestShadersValidate(t *testing.T) {
	assert.NoError(t, gpu.ValidateWGSL(MeshShader), "mesh shader")
	assert.NoError(t, gpu.ValidateWGSL(ExtractShader()), "extract shader")

	for _, name := range density.Names() {
		f, err := density.Lookup(name)
		require.NoError(t, err)
		src, ok := f.(density.Shader)
		require.True(t, ok, "%s has no shader", name)
		assert.NoError(t, gpu.ValidateWGSL(DensityShader(src)), "density shader %s", name)
	}
}

func TestComputeEntryPoints(t *testing.T) {
	eps, err := gpu.EntryPoints(ExtractShader())
	require.NoError(t, err)

	byName := map[string][3]uint32{}
	for _, ep := range eps {
		byName[ep.Name] = ep.Workgroup
	}
	assert.Equal(t, [3]uint32{WorkgroupSize, WorkgroupSize, WorkgroupSize}, byName["extract"])
	assert.Equal(t, [3]uint32{1, 1, 1}, byName["finalize"])

	eps, err = gpu.EntryPoints(DensityShader(density.Sphere{}))
	require.NoError(t, err)
	require.Len(t, eps, 1)
	assert.Equal(t, "density", eps[0].Name)
	assert.Equal(t, [3]uint32{WorkgroupSize, WorkgroupSize, WorkgroupSize}, eps[0].Workgroup)
}

func TestEdgeTableMatchesCube(t *testing.T) {
	src := edgeTableWGSL()
	assert.Contains(t, src, "fn edge_corner(e: u32, end: u32) -> u32")
	for e := 0; e < grid.EdgeCount; e++ {
		a, b := grid.EdgeCorners(e)
		assert.Contains(t, src, fmt.Sprintf("%du, %du", a, b))
	}
}

