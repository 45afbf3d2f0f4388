package grid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtentValidate(t *testing.T) {
	tests := []struct {
		name    string
		extent  Extent
		wantErr bool
	}{
		{"unit", Cube(1), false},
		{"flat", Extent{X: 4, Y: 1, Z: 4}, false},
		{"zero", Extent{X: 0, Y: 2, Z: 2}, true},
		{"negative", Extent{X: 2, Y: 2, Z: -3}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.extent.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidExtent)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestIndexRoundTrip(t *testing.T) {
	e := Extent{X: 3, Y: 4, Z: 5}
	seen := make(map[int]bool)
	for z := 0; z < e.Z; z++ {
		for y := 0; y < e.Y; y++ {
			for x := 0; x < e.X; x++ {
				c := Coord{X: x, Y: y, Z: z}
				i := e.Index(c)
				require.False(t, seen[i], "index %d reused", i)
				seen[i] = true
				assert.Equal(t, c, e.CoordOf(i))
			}
		}
	}
	assert.Len(t, seen, e.Len())
	assert.Equal(t, 0, e.Index(Coord{}))
	assert.Equal(t, 1, e.Index(Coord{X: 1}))
	assert.Equal(t, e.X, e.Index(Coord{Y: 1}))
}

func TestCells(t *testing.T) {
	assert.Equal(t, Extent{X: 1, Y: 1, Z: 1}, Cube(2).Cells())
	assert.Equal(t, Extent{X: 0, Y: 3, Z: 0}, Extent{X: 1, Y: 4, Z: 1}.Cells())
	assert.Equal(t, 0, Cube(1).Cells().Len())
}

func TestNormalize(t *testing.T) {
	e := Extent{X: 3, Y: 5, Z: 1}
	x, y, z := e.Normalize(0, 4, 0)
	assert.InDelta(t, -1, x, 1e-6)
	assert.InDelta(t, 1, y, 1e-6)
	assert.InDelta(t, -1, z, 1e-6)

	x, _, _ = e.Normalize(1, 0, 0)
	assert.InDelta(t, 0, x, 1e-6)
}

func TestClampAndContains(t *testing.T) {
	e := Cube(4)
	assert.True(t, e.Contains(Coord{X: 3, Y: 0, Z: 2}))
	assert.False(t, e.Contains(Coord{X: 4}))
	assert.False(t, e.Contains(Coord{Y: -1}))
	assert.Equal(t, Coord{X: 3, Y: 0, Z: 2}, e.Clamp(Coord{X: 9, Y: -2, Z: 2}))
}

func TestCubeEdges(t *testing.T) {
	for e := 0; e < EdgeCount; e++ {
		a, b := EdgeCorners(e)
		oa, ob := CornerOffset(a), CornerOffset(b)
		d := Coord{X: ob.X - oa.X, Y: ob.Y - oa.Y, Z: ob.Z - oa.Z}

		// Every edge is a unit step along its axis from the lower corner.
		want := [3]Coord{{X: 1}, {Y: 1}, {Z: 1}}[EdgeAxis(e)]
		assert.Equal(t, want, d, "edge %d", e)
		assert.Equal(t, e, EdgeBetween(a, b))
		assert.Equal(t, e, EdgeBetween(b, a))
	}
	assert.Equal(t, -1, EdgeBetween(0, 7))
	assert.Equal(t, -1, EdgeBetween(0, 3))
}

func TestDispatchSize(t *testing.T) {
	assert.Equal(t, uint32(0), DispatchSize(0, 4))
	assert.Equal(t, uint32(1), DispatchSize(1, 4))
	assert.Equal(t, uint32(1), DispatchSize(4, 4))
	assert.Equal(t, uint32(2), DispatchSize(5, 4))
	assert.Equal(t, uint32(16), DispatchSize(64, 4))
}
