package density

import (
	"context"
	"strings"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"isosandbox/pkg/grid"
)

func TestGeneratorRejectsInvalidExtent(t *testing.T) {
	_, err := NewGenerator(grid.Extent{X: 4, Y: 0, Z: 4}, Sphere{})
	assert.ErrorIs(t, err, grid.ErrInvalidExtent)

	_, err = NewLatticeGenerator(grid.Extent{X: -1, Y: 1, Z: 1}, func(grid.Coord) float32 { return 0 })
	assert.ErrorIs(t, err, grid.ErrInvalidExtent)

	_, err = NewGenerator(grid.Cube(2), nil)
	assert.Error(t, err)

	_, err = NewVolume(grid.Extent{})
	assert.ErrorIs(t, err, grid.ErrInvalidExtent)
}

func TestGenerateSphere(t *testing.T) {
	e := grid.Cube(5)
	gen, err := NewGenerator(e, Sphere{})
	require.NoError(t, err)
	gen.SetWorkers(3)

	vol, err := NewVolume(e)
	require.NoError(t, err)
	require.NoError(t, gen.Generate(context.Background(), vol, Params{Radius: 0.5}))

	// Lattice point 2 maps to the origin, 0 and 4 to the faces of [-1, 1]^3.
	assert.InDelta(t, -0.5, vol.At(grid.Coord{X: 2, Y: 2, Z: 2}), 1e-6)
	assert.InDelta(t, 0.5, vol.At(grid.Coord{X: 4, Y: 2, Z: 2}), 1e-6)
	assert.InDelta(t, 0.5, vol.At(grid.Coord{X: 2, Y: 0, Z: 2}), 1e-6)

	lo, hi := vol.Range()
	assert.InDelta(t, -0.5, lo, 1e-6)
	assert.InDelta(t, mgl32.Vec3{1, 1, 1}.Len()-0.5, hi, 1e-5)
}

func TestGenerateAppliesOffset(t *testing.T) {
	e := grid.Extent{X: 3, Y: 2, Z: 4}
	gen, err := NewLatticeGenerator(e, func(c grid.Coord) float32 {
		return float32(c.X + 10*c.Y + 100*c.Z)
	})
	require.NoError(t, err)

	vol, err := NewVolume(e)
	require.NoError(t, err)
	require.NoError(t, gen.Generate(context.Background(), vol, Params{Offset: 0.5}))

	for i, v := range vol.Data() {
		c := e.CoordOf(i)
		assert.Equal(t, float32(c.X+10*c.Y+100*c.Z)+0.5, v)
	}
}

func TestGenerateExtentMismatch(t *testing.T) {
	gen, err := NewGenerator(grid.Cube(4), Sphere{})
	require.NoError(t, err)
	vol, err := NewVolume(grid.Cube(3))
	require.NoError(t, err)
	assert.Error(t, gen.Generate(context.Background(), vol, Params{}))
}

func TestGenerateCancelled(t *testing.T) {
	gen, err := NewGenerator(grid.Cube(8), Sphere{})
	require.NoError(t, err)
	vol, err := NewVolume(grid.Cube(8))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, gen.Generate(ctx, vol, Params{}), context.Canceled)
}

func TestGradientPointsOutward(t *testing.T) {
	e := grid.Cube(9)
	gen, err := NewGenerator(e, Sphere{})
	require.NoError(t, err)
	vol, err := NewVolume(e)
	require.NoError(t, err)
	require.NoError(t, gen.Generate(context.Background(), vol, Params{Radius: 0.5}))

	g := vol.Gradient(grid.Coord{X: 6, Y: 4, Z: 4})
	assert.InDelta(t, 1, g.Len(), 0.05)
	assert.Greater(t, g[0], float32(0.9))

	// Faces fall back to one-sided differences.
	g = vol.Gradient(grid.Coord{X: 0, Y: 4, Z: 4})
	assert.Less(t, g[0], float32(0))
}

func TestCatalogue(t *testing.T) {
	names := Names()
	assert.Equal(t, []string{"blobs", "constant", "gyroid", "sphere", "torus", "waves"}, names)

	for _, name := range names {
		f, err := Lookup(name)
		require.NoError(t, err)
		assert.Equal(t, name, f.Name())

		sh, ok := f.(Shader)
		require.True(t, ok, "%s has no shader", name)
		assert.True(t, strings.Contains(sh.WGSL(), "fn field(p: vec3<f32>) -> f32"), name)
	}

	_, err := Lookup("teapot")
	assert.ErrorIs(t, err, ErrUnknownField)
}

func TestFieldValues(t *testing.T) {
	prm := Params{Radius: 0.5, Frequency: 2}

	assert.InDelta(t, -0.5, Sphere{}.Eval(mgl32.Vec3{}, prm), 1e-6)
	// Point on the torus ring centre line: inside by the tube radius.
	assert.InDelta(t, -0.175, Torus{}.Eval(mgl32.Vec3{0.5, 0, 0}, prm), 1e-6)
	assert.InDelta(t, 0.5, Constant{}.Eval(mgl32.Vec3{0.3, -0.2, 0.9}, prm), 1e-6)
	assert.InDelta(t, 0.2, Waves{}.Eval(mgl32.Vec3{0, 0.2, 0}, prm), 1e-6)
	// Outside the clipping sphere the gyroid is positive.
	assert.Greater(t, Gyroid{}.Eval(mgl32.Vec3{0.9, 0.9, 0.9}, prm), float32(0))
	assert.Less(t, Blobs{}.Eval(blobCenter(0, 0), prm), float32(0))
}
