package gpu

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const computeSource = `
@group(0) @binding(0) var<storage, read_write> data: array<f32>;

@compute @workgroup_size(4, 4, 4)
fn main(@builtin(global_invocation_id) id: vec3<u32>) {
    let i = id.x + id.y * 4u + id.z * 16u;
    data[i] = f32(i) * 0.5;
}
`

func TestValidateWGSL(t *testing.T) {
	require.NoError(t, ValidateWGSL(computeSource))
	assert.Error(t, ValidateWGSL(`fn broken( -> {`))
}

func TestEntryPoints(t *testing.T) {
	eps, err := EntryPoints(computeSource)
	require.NoError(t, err)
	require.Len(t, eps, 1)
	assert.Equal(t, "main", eps[0].Name)
	assert.Equal(t, [3]uint32{4, 4, 4}, eps[0].Workgroup)
}

func TestReleaseIsSafeOnEmptyContext(t *testing.T) {
	c := &Context{}
	assert.NotPanics(t, c.Release)
}
