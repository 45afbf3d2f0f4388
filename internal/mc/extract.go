package mc

import (
	"errors"
	"fmt"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"

	"isosandbox/internal/density"
	"isosandbox/pkg/grid"
)

// ErrCapacityExceeded is returned when a surface needs more triangles than
// the geometry buffers can hold
var ErrCapacityExceeded = errors.New("iso-surface exceeds geometry capacity")

// MaxTrianglesPerCell bounds the triangles of one cell. Cases whose surface
// crosses seven edges form a heptagon, which needs five triangles.
const MaxTrianglesPerCell = 5

// Capacity returns the triangle capacity for an extent: the per-cell bound
// times the number of cells, never less than one cell's worth
func Capacity(e grid.Extent) int {
	return MaxTrianglesPerCell * max(e.Cells().Len(), 1)
}

// Extractor turns a scalar volume into a triangle mesh on the CPU.
// It is the reference for the extraction compute pass and is not safe
// for concurrent use.
type Extractor struct {
	extent   grid.Extent
	capacity int
	edges    []int32
	mesh     Mesh
}

// NewExtractor prepares an extractor for volumes of the given extent
func NewExtractor(extent grid.Extent) (*Extractor, error) {
	if err := extent.Validate(); err != nil {
		return nil, err
	}
	return &Extractor{
		extent:   extent,
		capacity: Capacity(extent),
		edges:    make([]int32, 3*extent.Len()),
	}, nil
}

// Capacity returns the maximum number of triangles Extract may emit
func (x *Extractor) Capacity() int {
	return x.capacity
}

// Extract builds the surface where the volume crosses iso. Cells are visited
// in z, y, x order and vertices are shared between cells, so equal inputs give
// identical meshes. The returned mesh is reused by the next call.
func (x *Extractor) Extract(vol *density.Volume, iso float32) (*Mesh, error) {
	if vol.Extent() != x.extent {
		return nil, fmt.Errorf("volume extent %s does not match extractor extent %s", vol.Extent(), x.extent)
	}
	for i := range x.edges {
		x.edges[i] = -1
	}
	x.mesh.Reset()

	cells := x.extent.Cells()
	var corners [grid.CornerCount]float32
	for z := 0; z < cells.Z; z++ {
		for y := 0; y < cells.Y; y++ {
			for xx := 0; xx < cells.X; xx++ {
				origin := grid.Coord{X: xx, Y: y, Z: z}
				for i := range corners {
					corners[i] = vol.At(origin.Add(grid.CornerOffset(i)))
				}
				c := cases[CaseIndex(corners, iso)]
				if len(c.Triangles) == 0 {
					continue
				}
				if x.mesh.TriangleCount()+len(c.Triangles) > x.capacity {
					return nil, fmt.Errorf("%w: cell %s needs more than %d triangles", ErrCapacityExceeded, origin, x.capacity)
				}
				for _, tri := range c.Triangles {
					for _, e := range tri {
						x.mesh.Indices = append(x.mesh.Indices, x.vertex(vol, origin, e, iso))
					}
				}
			}
		}
	}
	return &x.mesh, nil
}

// vertex returns the index of the vertex on local edge e of the cell at
// origin, interpolating it on first use.
func (x *Extractor) vertex(vol *density.Volume, origin grid.Coord, e int, iso float32) uint32 {
	ca, cb := grid.EdgeCorners(e)
	pa := origin.Add(grid.CornerOffset(ca))
	pb := origin.Add(grid.CornerOffset(cb))

	key := 3*x.extent.Index(pa) + grid.EdgeAxis(e)
	if idx := x.edges[key]; idx >= 0 {
		return uint32(idx)
	}

	da, db := vol.At(pa), vol.At(pb)
	t := float32(0.5)
	if d := db - da; d != 0 {
		t = mgl32.Clamp((iso-da)/d, 0, 1)
	}

	lx := float32(pa.X) + t*float32(pb.X-pa.X)
	ly := float32(pa.Y) + t*float32(pb.Y-pa.Y)
	lz := float32(pa.Z) + t*float32(pb.Z-pa.Z)
	px, py, pz := x.extent.Normalize(lx, ly, lz)

	ga, gb := vol.Gradient(pa), vol.Gradient(pb)
	n := ga.Add(gb.Sub(ga).Mul(t))
	if l := n.Len(); l > 0 && !math32.IsNaN(l) {
		n = n.Mul(1 / l)
	} else {
		n = mgl32.Vec3{0, 1, 0}
	}

	idx := uint32(len(x.mesh.Vertices))
	x.mesh.Vertices = append(x.mesh.Vertices, Vertex{Position: mgl32.Vec3{px, py, pz}, Normal: n})
	x.edges[key] = int32(idx)
	return idx
}
