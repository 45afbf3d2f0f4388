package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"isosandbox/internal/density"
	"isosandbox/pkg/grid"
)

func waitResult(t *testing.T, m *Mesher) MeshResult {
	t.Helper()
	var res MeshResult
	require.Eventually(t, func() bool {
		var ok bool
		res, ok = m.Poll()
		return ok
	}, 5*time.Second, time.Millisecond)
	return res
}

func TestMesherExtractsSphere(t *testing.T) {
	m, err := NewMesher(grid.Cube(16), 2)
	require.NoError(t, err)
	defer m.Close()

	require.True(t, m.Request(MeshJob{
		Field:  density.Sphere{},
		Params: density.Params{Radius: 0.6},
	}))
	res := waitResult(t, m)

	require.NoError(t, res.Err)
	require.NotNil(t, res.Mesh)
	assert.Positive(t, res.Mesh.TriangleCount())
	assert.Zero(t, res.Mesh.OpenEdges())
	assert.Equal(t, "sphere", res.Job.Field.Name())
}

func TestMesherResultsAreOwned(t *testing.T) {
	m, err := NewMesher(grid.Cube(12), 1)
	require.NoError(t, err)
	defer m.Close()

	m.Request(MeshJob{Field: density.Sphere{}, Params: density.Params{Radius: 0.7}})
	first := waitResult(t, m)
	require.NoError(t, first.Err)
	count := first.Mesh.TriangleCount()
	vertex := first.Mesh.Vertices[0]

	m.Request(MeshJob{Field: density.Sphere{}, Params: density.Params{Radius: 0.2}})
	second := waitResult(t, m)
	require.NoError(t, second.Err)

	assert.Less(t, second.Mesh.TriangleCount(), count)
	assert.Equal(t, count, first.Mesh.TriangleCount(), "earlier mesh is not overwritten")
	assert.Equal(t, vertex, first.Mesh.Vertices[0])
}

func TestMesherEmptySurface(t *testing.T) {
	m, err := NewMesher(grid.Cube(8), 1)
	require.NoError(t, err)
	defer m.Close()

	m.Request(MeshJob{Field: density.Constant{}, Params: density.Params{Offset: 1}})
	res := waitResult(t, m)
	require.NoError(t, res.Err)
	assert.Zero(t, res.Mesh.TriangleCount())
}

func TestMesherRejectsMissingField(t *testing.T) {
	m, err := NewMesher(grid.Cube(4), 1)
	require.NoError(t, err)
	defer m.Close()

	m.Request(MeshJob{})
	res := waitResult(t, m)
	assert.Error(t, res.Err)
	assert.Nil(t, res.Mesh)
}

func TestMesherKeepsLatestRequest(t *testing.T) {
	m, err := NewMesher(grid.Cube(24), 1)
	require.NoError(t, err)
	defer m.Close()

	var want float32
	for i := range 20 {
		want = 0.1 + 0.02*float32(i)
		m.Request(MeshJob{Field: density.Sphere{}, Params: density.Params{Radius: want}})
	}

	// The final request is always processed, though earlier ones may be dropped
	require.Eventually(t, func() bool {
		res, ok := m.Poll()
		return ok && res.Job.Params.Radius == want
	}, 10*time.Second, time.Millisecond)
}

func TestMesherClose(t *testing.T) {
	m, err := NewMesher(grid.Cube(8), 1)
	require.NoError(t, err)

	m.Close()
	m.Close()
	assert.False(t, m.Request(MeshJob{Field: density.Sphere{}}))
}

func TestNewMesherRejectsInvalidExtent(t *testing.T) {
	_, err := NewMesher(grid.Extent{X: 0, Y: 4, Z: 4}, 1)
	assert.Error(t, err)
}
