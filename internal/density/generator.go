package density

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"github.com/go-gl/mathgl/mgl32"
	"golang.org/x/sync/errgroup"

	"isosandbox/pkg/grid"
)

// LatticeFunc evaluates density directly from lattice coordinates
type LatticeFunc func(c grid.Coord) float32

// Generator fills a Volume with one sample per lattice point.
// It is the CPU twin of the density compute pass.
type Generator struct {
	extent  grid.Extent
	name    string
	sample  func(c grid.Coord, prm Params) float32
	workers int
}

// NewGenerator evaluates field at the world position of every lattice point.
// Invalid extents are rejected here rather than per frame.
func NewGenerator(extent grid.Extent, field Field) (*Generator, error) {
	if err := extent.Validate(); err != nil {
		return nil, err
	}
	if field == nil {
		return nil, errors.New("density generator needs a field")
	}
	return &Generator{
		extent: extent,
		name:   field.Name(),
		sample: func(c grid.Coord, prm Params) float32 {
			x, y, z := extent.Normalize(float32(c.X), float32(c.Y), float32(c.Z))
			return field.Eval(mgl32.Vec3{x, y, z}, prm) + prm.Offset
		},
		workers: runtime.NumCPU(),
	}, nil
}

// NewLatticeGenerator evaluates fn at every lattice point
func NewLatticeGenerator(extent grid.Extent, fn LatticeFunc) (*Generator, error) {
	if err := extent.Validate(); err != nil {
		return nil, err
	}
	if fn == nil {
		return nil, errors.New("density generator needs a function")
	}
	return &Generator{
		extent: extent,
		name:   "lattice",
		sample: func(c grid.Coord, prm Params) float32 {
			return fn(c) + prm.Offset
		},
		workers: runtime.NumCPU(),
	}, nil
}

// SetWorkers bounds the goroutines used by Generate
func (g *Generator) SetWorkers(n int) {
	if n < 1 {
		n = 1
	}
	g.workers = n
}

// Name returns the underlying field name
func (g *Generator) Name() string {
	return g.name
}

// Extent returns the lattice extent the generator was built for
func (g *Generator) Extent() grid.Extent {
	return g.extent
}

// Generate overwrites every sample of vol. Work is split into z-slabs.
func (g *Generator) Generate(ctx context.Context, vol *Volume, prm Params) error {
	if vol.Extent() != g.extent {
		return fmt.Errorf("volume extent %s does not match generator extent %s", vol.Extent(), g.extent)
	}

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(g.workers)

	e := g.extent
	for z := 0; z < e.Z; z++ {
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			for y := 0; y < e.Y; y++ {
				for x := 0; x < e.X; x++ {
					c := grid.Coord{X: x, Y: y, Z: z}
					vol.Set(c, g.sample(c, prm))
				}
			}
			return nil
		})
	}
	return eg.Wait()
}
