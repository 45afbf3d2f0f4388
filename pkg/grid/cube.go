package grid

// Corner numbering: bit 0 is +X, bit 1 is +Y, bit 2 is +Z.
//
// Edge numbering groups edges by axis: 0-3 run along X, 4-7 along Y,
// 8-11 along Z. Within a group the edges are ordered by the remaining
// two bits of their lower corner.

const (
	CornerCount = 8
	EdgeCount   = 12
)

// CornerOffset returns the lattice offset of corner i from the cell origin
func CornerOffset(i int) Coord {
	return Coord{X: i & 1, Y: (i >> 1) & 1, Z: (i >> 2) & 1}
}

var edgeCorners = [EdgeCount][2]int{
	// X edges
	{0, 1}, {2, 3}, {4, 5}, {6, 7},
	// Y edges
	{0, 2}, {1, 3}, {4, 6}, {5, 7},
	// Z edges
	{0, 4}, {1, 5}, {2, 6}, {3, 7},
}

// EdgeCorners returns the two corners joined by edge e, lower corner first
func EdgeCorners(e int) (a, b int) {
	return edgeCorners[e][0], edgeCorners[e][1]
}

// EdgeAxis returns 0, 1 or 2 for edges running along X, Y or Z
func EdgeAxis(e int) int {
	return e / 4
}

// EdgeBetween returns the edge joining corners a and b, or -1 if they are not adjacent
func EdgeBetween(a, b int) int {
	for e, c := range edgeCorners {
		if (c[0] == a && c[1] == b) || (c[0] == b && c[1] == a) {
			return e
		}
	}
	return -1
}

// DispatchSize returns the number of workgroups needed to cover n invocations
func DispatchSize(n, workgroup int) uint32 {
	if n <= 0 {
		return 0
	}
	return uint32((n + workgroup - 1) / workgroup)
}
