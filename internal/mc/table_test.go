package mc

import (
	"sort"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"isosandbox/pkg/grid"
)

func cornerVec(i int) mgl32.Vec3 {
	o := grid.CornerOffset(i)
	return mgl32.Vec3{float32(o.X), float32(o.Y), float32(o.Z)}
}

func edgeMidpoint(e int) mgl32.Vec3 {
	a, b := grid.EdgeCorners(e)
	return cornerVec(a).Add(cornerVec(b)).Mul(0.5)
}

func TestFacesWoundOutward(t *testing.T) {
	centre := mgl32.Vec3{0.5, 0.5, 0.5}
	for i, f := range faces {
		a, b, c := cornerVec(f[0]), cornerVec(f[1]), cornerVec(f[2])
		n := b.Sub(a).Cross(c.Sub(b))
		out := a.Add(c).Mul(0.5).Sub(centre)
		assert.Greater(t, n.Dot(out), float32(0), "face %d", i)
	}
}

func TestEmptyAndFullCasesHaveNoSurface(t *testing.T) {
	assert.Empty(t, CaseFor(0).Triangles)
	assert.Empty(t, CaseFor(255).Triangles)
}

func TestPolygonsCoverCrossingEdges(t *testing.T) {
	for mask := 1; mask < 255; mask++ {
		inside := func(c int) bool { return mask&(1<<c) != 0 }

		var want []int
		for e := 0; e < grid.EdgeCount; e++ {
			a, b := grid.EdgeCorners(e)
			if inside(a) != inside(b) {
				want = append(want, e)
			}
		}

		c := CaseFor(uint8(mask))
		var got []int
		tris := 0
		for _, p := range c.Polygons {
			require.GreaterOrEqual(t, len(p), 3, "case %d", mask)
			got = append(got, p...)
			tris += len(p) - 2
		}
		sort.Ints(got)
		assert.Equal(t, want, got, "case %d", mask)
		assert.Len(t, c.Triangles, tris, "case %d", mask)
		assert.LessOrEqual(t, len(c.Triangles), MaxTrianglesPerCell, "case %d", mask)
	}
}

func TestCaseTriangleBound(t *testing.T) {
	assert.Equal(t, MaxTrianglesPerCell, MaxTriangles())

	// Seven crossed edges form a heptagon, which cannot be covered by fewer than five triangles
	c := CaseFor(0x3d)
	require.Len(t, c.Polygons, 1)
	assert.Len(t, c.Polygons[0], 7)
	assert.Len(t, c.Triangles, 5)
}

func TestSingleCornerCases(t *testing.T) {
	for corner := 0; corner < grid.CornerCount; corner++ {
		c := CaseFor(uint8(1) << corner)
		require.Len(t, c.Triangles, 1)

		tri := c.Triangles[0]
		a, b, v := edgeMidpoint(tri[0]), edgeMidpoint(tri[1]), edgeMidpoint(tri[2])
		n := b.Sub(a).Cross(v.Sub(a))
		away := mgl32.Vec3{0.5, 0.5, 0.5}.Sub(cornerVec(corner))
		assert.Greater(t, n.Dot(away), float32(0), "corner %d", corner)

		// The inverted configuration is the same triangle facing the other way.
		inv := CaseFor(^(uint8(1) << corner))
		require.Len(t, inv.Triangles, 1)
		ia, ib, iv := edgeMidpoint(inv.Triangles[0][0]), edgeMidpoint(inv.Triangles[0][1]), edgeMidpoint(inv.Triangles[0][2])
		assert.Less(t, ib.Sub(ia).Cross(iv.Sub(ia)).Dot(away), float32(0), "inverted corner %d", corner)
	}
}

func TestAmbiguousFaceSeparatesInsideCorners(t *testing.T) {
	// Corners 0 and 3 share the -Z face diagonally.
	c := CaseFor(1<<0 | 1<<3)
	assert.Len(t, c.Polygons, 2)
	assert.Len(t, c.Triangles, 2)
}

func TestCaseIndex(t *testing.T) {
	corners := [grid.CornerCount]float32{-1, 1, 1, 1, 1, 1, 1, 0.5}
	// Equal to the threshold counts as outside.
	assert.Equal(t, uint8(1), CaseIndex(corners, 0.5))
	assert.Equal(t, uint8(1|1<<7), CaseIndex(corners, 0.6))
}

type segment struct{ a, b int }

func segments(c Case, edgeMap func(int) int) map[segment]bool {
	out := make(map[segment]bool)
	for _, p := range c.Polygons {
		for i := range p {
			a, b := edgeMap(p[i]), edgeMap(p[(i+1)%len(p)])
			if a > b {
				a, b = b, a
			}
			out[segment{a, b}] = true
		}
	}
	return out
}

func TestMirrorSymmetry(t *testing.T) {
	swapCorner := func(c int) int {
		return c&4 | (c&1)<<1 | (c&2)>>1
	}
	swapEdge := func(e int) int {
		a, b := grid.EdgeCorners(e)
		return grid.EdgeBetween(swapCorner(a), swapCorner(b))
	}
	identity := func(e int) int { return e }

	for mask := 0; mask < 256; mask++ {
		mirrored := 0
		for c := 0; c < grid.CornerCount; c++ {
			if mask&(1<<c) != 0 {
				mirrored |= 1 << swapCorner(c)
			}
		}
		orig := CaseFor(uint8(mask))
		mirror := CaseFor(uint8(mirrored))

		assert.Equal(t, segments(mirror, identity), segments(orig, swapEdge), "case %d", mask)
		assert.Len(t, mirror.Triangles, len(orig.Triangles), "case %d", mask)
	}
}

func TestEncodeTable(t *testing.T) {
	stride := TableStride()
	data := EncodeTable()
	require.Len(t, data, 256*stride)

	for mask := 0; mask < 256; mask++ {
		c := CaseFor(uint8(mask))
		base := mask * stride
		require.Equal(t, uint32(len(c.Triangles)), data[base], "case %d", mask)
		for i, tri := range c.Triangles {
			for k, e := range tri {
				assert.Equal(t, uint32(e), data[base+1+3*i+k])
			}
		}
	}
}
