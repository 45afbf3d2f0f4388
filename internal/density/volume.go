package density

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"

	"isosandbox/pkg/grid"
)

// Volume is a dense scalar field sampled on a lattice, x varying fastest
type Volume struct {
	extent grid.Extent
	data   []float32
}

// NewVolume allocates a zeroed volume. The extent is fixed for the volume's lifetime.
func NewVolume(extent grid.Extent) (*Volume, error) {
	if err := extent.Validate(); err != nil {
		return nil, err
	}
	return &Volume{
		extent: extent,
		data:   make([]float32, extent.Len()),
	}, nil
}

// Extent returns the sample extent
func (v *Volume) Extent() grid.Extent {
	return v.extent
}

// Data exposes the samples in upload order
func (v *Volume) Data() []float32 {
	return v.data
}

// At returns the sample at c. c must lie inside the extent.
func (v *Volume) At(c grid.Coord) float32 {
	return v.data[v.extent.Index(c)]
}

// Set stores a sample
func (v *Volume) Set(c grid.Coord, value float32) {
	v.data[v.extent.Index(c)] = value
}

// Fill overwrites every sample with fn
func (v *Volume) Fill(fn func(c grid.Coord) float32) {
	for i := range v.data {
		v.data[i] = fn(v.extent.CoordOf(i))
	}
}

// Range returns the smallest and largest sample
func (v *Volume) Range() (lo, hi float32) {
	lo, hi = math32.Inf(1), math32.Inf(-1)
	for _, d := range v.data {
		lo = math32.Min(lo, d)
		hi = math32.Max(hi, d)
	}
	return lo, hi
}

// Gradient estimates the density gradient at a lattice point in world units.
// Central differences inside the volume, one-sided on its faces.
func (v *Volume) Gradient(c grid.Coord) mgl32.Vec3 {
	e := v.extent
	return mgl32.Vec3{
		v.partial(c, grid.Coord{X: 1}, e.X),
		v.partial(c, grid.Coord{Y: 1}, e.Y),
		v.partial(c, grid.Coord{Z: 1}, e.Z),
	}
}

func (v *Volume) partial(c, step grid.Coord, n int) float32 {
	if n < 2 {
		return 0
	}
	hi := v.extent.Clamp(c.Add(step))
	lo := v.extent.Clamp(grid.Coord{X: c.X - step.X, Y: c.Y - step.Y, Z: c.Z - step.Z})
	samples := float32((hi.X - lo.X) + (hi.Y - lo.Y) + (hi.Z - lo.Z))
	spacing := 2 / float32(n-1)
	return (v.At(hi) - v.At(lo)) / (samples * spacing)
}
