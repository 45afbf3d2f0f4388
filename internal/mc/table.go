package mc

import (
	"isosandbox/pkg/grid"
)

// Corner order of each cube face, counter-clockwise seen from outside the cell
var faces = [6][4]int{
	{0, 4, 6, 2}, // -X
	{1, 3, 7, 5}, // +X
	{0, 1, 5, 4}, // -Y
	{2, 6, 7, 3}, // +Y
	{0, 2, 3, 1}, // -Z
	{4, 5, 7, 6}, // +Z
}

// Case is the surface inside one cell for a given corner configuration.
// Polygons are closed loops of edge ids wound so that their normal points
// from the inside corners to the outside corners; Triangles fan them.
type Case struct {
	Polygons  [][]int
	Triangles [][3]int
}

var (
	cases        [256]Case
	maxTriangles int
)

func init() {
	for mask := range cases {
		cases[mask] = buildCase(uint8(mask))
		maxTriangles = max(maxTriangles, len(cases[mask].Triangles))
	}
	if maxTriangles > MaxTrianglesPerCell {
		panic("marching cubes case exceeds MaxTrianglesPerCell")
	}
}

// CaseFor returns the surface pieces of a corner mask. Bit i is set when corner i is inside.
func CaseFor(mask uint8) Case {
	return cases[mask]
}

// MaxTriangles is the largest triangle count of any case
func MaxTriangles() int {
	return maxTriangles
}

// CaseIndex classifies the eight corner samples of a cell.
// A corner is inside when its value is strictly below iso.
func CaseIndex(corners [grid.CornerCount]float32, iso float32) uint8 {
	var mask uint8
	for i, d := range corners {
		if d < iso {
			mask |= 1 << i
		}
	}
	return mask
}

// TableStride is the number of u32 words per case in the encoded table
func TableStride() int {
	return 1 + 3*maxTriangles
}

// EncodeTable flattens the triangle lists for upload: per case one triangle
// count followed by three edge ids per triangle, padded to TableStride.
func EncodeTable() []uint32 {
	stride := TableStride()
	out := make([]uint32, 256*stride)
	for mask, c := range cases {
		base := mask * stride
		out[base] = uint32(len(c.Triangles))
		for i, tri := range c.Triangles {
			for k, e := range tri {
				out[base+1+3*i+k] = uint32(e)
			}
		}
	}
	return out
}

// buildCase walks the boundary of every face. Each run of inside corners on
// a face contributes one segment from the crossing where the walk leaves the
// run back to the crossing where it entered. Inside corners on a face with
// two runs stay separated, and the result only depends on that face's signs,
// so two cells sharing a face always produce the same segments on it.
func buildCase(mask uint8) Case {
	inside := func(c int) bool { return mask&(1<<c) != 0 }

	var next [grid.EdgeCount]int
	for i := range next {
		next[i] = -1
	}
	for _, f := range faces {
		for k := 0; k < 4; k++ {
			a, b := f[k], f[(k+1)%4]
			if !inside(a) || inside(b) {
				continue
			}
			j := k
			for inside(f[j]) {
				j = (j + 3) % 4
			}
			leave := grid.EdgeBetween(a, b)
			enter := grid.EdgeBetween(f[j], f[(j+1)%4])
			next[leave] = enter
		}
	}

	var c Case
	var seen [grid.EdgeCount]bool
	for start := range next {
		if next[start] < 0 || seen[start] {
			continue
		}
		var loop []int
		for e := start; !seen[e]; e = next[e] {
			seen[e] = true
			loop = append(loop, e)
		}
		// The walk circles the inside corners clockwise; flip to face outward.
		for i, j := 0, len(loop)-1; i < j; i, j = i+1, j-1 {
			loop[i], loop[j] = loop[j], loop[i]
		}
		c.Polygons = append(c.Polygons, loop)
		for i := 1; i+1 < len(loop); i++ {
			c.Triangles = append(c.Triangles, [3]int{loop[0], loop[i], loop[i+1]})
		}
	}
	return c
}
