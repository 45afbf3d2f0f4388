package renderer

import (
	"fmt"
	"strings"

	"isosandbox/internal/density"
	"isosandbox/pkg/grid"
)

// WorkgroupSize is the edge length of the cubic compute workgroups
const WorkgroupSize = 4

const fieldMarker = "// @field"

// MeshShader draws the extracted triangles. The transform is a read-only
// storage buffer refreshed every frame; colour encodes the surface normal.
const MeshShader = `
struct VertexInput {
    @location(0) position: vec3<f32>,
    @location(1) color: vec3<f32>,
}

struct VertexOutput {
    @builtin(position) position: vec4<f32>,
    @location(0) color: vec3<f32>,
}

@group(0) @binding(0) var<storage, read> transform: mat4x4<f32>;

@vertex
fn vs_main(in: VertexInput) -> VertexOutput {
    var out: VertexOutput;
    out.position = transform * vec4<f32>(in.position, 1.0);
    out.color = in.color;
    return out;
}

@fragment
fn fs_main(in: VertexOutput) -> @location(0) vec4<f32> {
    let normal = normalize(in.color * 2.0 - vec3<f32>(1.0));
    let light = normalize(vec3<f32>(0.4, 0.8, 0.45));
    let shade = 0.35 + 0.65 * abs(dot(normal, light));
    return vec4<f32>(in.color * shade, 1.0);
}
`

// densityTemplate fills the scalar volume. The selected field's WGSL
// replaces the marker line.
const densityTemplate = `
struct FieldParams {
    // radius, offset, frequency, time
    shape: vec4<f32>,
    // samples per axis
    extent: vec4<u32>,
}

@group(0) @binding(0) var volume: texture_storage_3d<r32float, write>;
@group(0) @binding(1) var<uniform> params: FieldParams;

` + fieldMarker + `

fn world(c: vec3<f32>) -> vec3<f32> {
    let d = max(vec3<f32>(params.extent.xyz) - vec3<f32>(1.0), vec3<f32>(1.0));
    return c / d * 2.0 - vec3<f32>(1.0);
}

@compute @workgroup_size(4, 4, 4)
fn density(@builtin(global_invocation_id) id: vec3<u32>) {
    if (any(id >= params.extent.xyz)) {
        return;
    }
    let value = field(world(vec3<f32>(id))) + params.shape.y;
    textureStore(volume, vec3<i32>(id), vec4<f32>(value, 0.0, 0.0, 0.0));
}
`

// DensityShader assembles the density pass for a field
func DensityShader(f density.Shader) string {
	return strings.Replace(densityTemplate, fieldMarker, f.WGSL(), 1)
}

// extractTemplate turns the volume into triangles. One invocation per cell
// reserves its triangles with atomicAdd and writes them only when the
// reservation fits the capacity. finalize turns the written count into
// indirect draw arguments.
const extractTemplate = `
struct Counter {
    reserved: atomic<u32>,
    written: atomic<u32>,
    overflow: atomic<u32>,
    pad: u32,
}

struct ExtractParams {
    // samples per axis
    extent: vec4<u32>,
    capacity: u32,
    stride: u32,
    iso: f32,
    pad: u32,
}

struct DrawArgs {
    index_count: u32,
    instance_count: u32,
    first_index: u32,
    base_vertex: i32,
    first_instance: u32,
}

@group(0) @binding(0) var<storage, read_write> vertices: array<f32>;
@group(0) @binding(1) var<storage, read_write> indices: array<u32>;
@group(0) @binding(2) var volume: texture_3d<f32>;
@group(0) @binding(3) var volume_sampler: sampler;
@group(0) @binding(4) var<storage, read_write> counter: Counter;
@group(0) @binding(5) var<uniform> params: ExtractParams;
@group(0) @binding(6) var<storage, read> table: array<u32>;
@group(0) @binding(7) var<storage, read_write> draw: DrawArgs;

%s

fn corner_offset(c: u32) -> vec3<u32> {
    return vec3<u32>(c & 1u, (c >> 1u) & 1u, (c >> 2u) & 1u);
}

fn load(p: vec3<i32>) -> f32 {
    let hi = vec3<i32>(params.extent.xyz) - vec3<i32>(1);
    let q = clamp(p, vec3<i32>(0), hi);
    let uvw = (vec3<f32>(q) + vec3<f32>(0.5)) / vec3<f32>(params.extent.xyz);
    return textureSampleLevel(volume, volume_sampler, uvw, 0.0).x;
}

fn partial_diff(p: vec3<i32>, dir: vec3<i32>, n: u32) -> f32 {
    if (n < 2u) {
        return 0.0;
    }
    let top = vec3<i32>(params.extent.xyz) - vec3<i32>(1);
    let hi = clamp(p + dir, vec3<i32>(0), top);
    let lo = clamp(p - dir, vec3<i32>(0), top);
    let d = hi - lo;
    let span = f32(d.x + d.y + d.z);
    let spacing = 2.0 / f32(n - 1u);
    return (load(hi) - load(lo)) / (span * spacing);
}

fn gradient(p: vec3<i32>) -> vec3<f32> {
    return vec3<f32>(
        partial_diff(p, vec3<i32>(1, 0, 0), params.extent.x),
        partial_diff(p, vec3<i32>(0, 1, 0), params.extent.y),
        partial_diff(p, vec3<i32>(0, 0, 1), params.extent.z)
    );
}

fn world(c: vec3<f32>) -> vec3<f32> {
    let d = max(vec3<f32>(params.extent.xyz) - vec3<f32>(1.0), vec3<f32>(1.0));
    return c / d * 2.0 - vec3<f32>(1.0);
}

@compute @workgroup_size(4, 4, 4)
fn extract(@builtin(global_invocation_id) id: vec3<u32>) {
    let cells = params.extent.xyz - vec3<u32>(1u);
    if (any(id >= cells)) {
        return;
    }

    var values: array<f32, 8>;
    var mask = 0u;
    for (var c = 0u; c < 8u; c = c + 1u) {
        let v = load(vec3<i32>(id + corner_offset(c)));
        values[c] = v;
        if (v < params.iso) {
            mask = mask | (1u << c);
        }
    }

    let base = mask * params.stride;
    let count = table[base];
    if (count == 0u) {
        return;
    }

    let first = atomicAdd(&counter.reserved, count);
    if (first + count > params.capacity) {
        atomicStore(&counter.overflow, 1u);
        return;
    }

    for (var i = 0u; i < count * 3u; i = i + 1u) {
        let e = table[base + 1u + i];
        let ca = edge_corner(e, 0u);
        let cb = edge_corner(e, 1u);
        let pa = vec3<i32>(id + corner_offset(ca));
        let pb = vec3<i32>(id + corner_offset(cb));
        let da = values[ca];
        let db = values[cb];

        var t = 0.5;
        if (db != da) {
            t = clamp((params.iso - da) / (db - da), 0.0, 1.0);
        }
        let pos = world(mix(vec3<f32>(pa), vec3<f32>(pb), t));

        var n = mix(gradient(pa), gradient(pb), t);
        if (dot(n, n) > 0.0) {
            n = normalize(n);
        } else {
            n = vec3<f32>(0.0, 1.0, 0.0);
        }
        let color = n * 0.5 + vec3<f32>(0.5);

        let slot = first * 3u + i;
        let o = slot * 6u;
        vertices[o] = pos.x;
        vertices[o + 1u] = pos.y;
        vertices[o + 2u] = pos.z;
        vertices[o + 3u] = color.x;
        vertices[o + 4u] = color.y;
        vertices[o + 5u] = color.z;
        indices[slot] = slot;
    }
    atomicAdd(&counter.written, count);
}

@compute @workgroup_size(1)
fn finalize() {
    let n = min(atomicLoad(&counter.written), params.capacity);
    draw.index_count = n * 3u;
    draw.instance_count = 1u;
    draw.first_index = 0u;
    draw.base_vertex = 0;
    draw.first_instance = 0u;
}
`

// ExtractShader assembles the extraction pass with the cube edge table
func ExtractShader() string {
	return fmt.Sprintf(extractTemplate, edgeTableWGSL())
}

// edgeTableWGSL emits edge_corner(e, end), the corner at either end of a cube edge
func edgeTableWGSL() string {
	var b strings.Builder
	b.WriteString("fn edge_corner(e: u32, end: u32) -> u32 {\n")
	b.WriteString("    var corners = array<u32, 24>(")
	for e := 0; e < grid.EdgeCount; e++ {
		a, c := grid.EdgeCorners(e)
		if e > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%du, %du", a, c)
	}
	b.WriteString(");\n")
	b.WriteString("    return corners[e * 2u + end];\n")
	b.WriteString("}\n")
	return b.String()
}
