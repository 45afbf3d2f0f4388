package mc

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// Vertex is an extracted surface point with its outward normal
type Vertex struct {
	Position mgl32.Vec3
	Normal   mgl32.Vec3
}

// Mesh is an indexed triangle list, three indices per triangle
type Mesh struct {
	Vertices []Vertex
	Indices  []uint32
}

// TriangleCount returns the number of triangles
func (m *Mesh) TriangleCount() int {
	return len(m.Indices) / 3
}

// Reset empties the mesh and keeps its storage
func (m *Mesh) Reset() {
	m.Vertices = m.Vertices[:0]
	m.Indices = m.Indices[:0]
}

// OpenEdges counts undirected edges that are not shared by exactly two triangles.
// Zero means the mesh is closed.
func (m *Mesh) OpenEdges() int {
	type edge struct{ a, b uint32 }
	uses := make(map[edge]int, len(m.Indices))
	for t := 0; t+2 < len(m.Indices); t += 3 {
		tri := m.Indices[t : t+3]
		for k := 0; k < 3; k++ {
			a, b := tri[k], tri[(k+1)%3]
			if a > b {
				a, b = b, a
			}
			uses[edge{a, b}]++
		}
	}
	open := 0
	for _, n := range uses {
		if n != 2 {
			open++
		}
	}
	return open
}

// Bounds returns the axis-aligned box around all vertices.
// An empty mesh yields a zero box.
func (m *Mesh) Bounds() (lo, hi mgl32.Vec3) {
	if len(m.Vertices) == 0 {
		return
	}
	inf := math32.Inf(1)
	lo = mgl32.Vec3{inf, inf, inf}
	hi = mgl32.Vec3{-inf, -inf, -inf}
	for _, v := range m.Vertices {
		for i := 0; i < 3; i++ {
			lo[i] = math32.Min(lo[i], v.Position[i])
			hi[i] = math32.Max(hi[i], v.Position[i])
		}
	}
	return lo, hi
}

// FaceNormal returns the unnormalised right-hand normal of triangle t
func (m *Mesh) FaceNormal(t int) mgl32.Vec3 {
	a := m.Vertices[m.Indices[3*t]].Position
	b := m.Vertices[m.Indices[3*t+1]].Position
	c := m.Vertices[m.Indices[3*t+2]].Position
	return b.Sub(a).Cross(c.Sub(a))
}
