package density

import (
	"errors"
	"fmt"
	"sort"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// ErrUnknownField is returned by Lookup for names outside the catalogue
var ErrUnknownField = errors.New("unknown density field")

// Params are the user-adjustable inputs shared by every field.
// The same values feed the CPU evaluators and the GPU uniform.
type Params struct {
	Radius    float32
	Offset    float32
	Frequency float32
	Time      float32
}

// Field is a pure density function of world position in [-1, 1]^3.
// Negative values are inside the surface.
type Field interface {
	Name() string
	Eval(p mgl32.Vec3, prm Params) float32
}

// Shader is implemented by fields that can run in the density compute pass.
// WGSL must define `fn field(p: vec3<f32>) -> f32` and may read
// params.shape (radius, offset, frequency, time).
type Shader interface {
	WGSL() string
}

var catalogue = map[string]Field{
	"sphere":   Sphere{},
	"torus":    Torus{},
	"gyroid":   Gyroid{},
	"blobs":    Blobs{},
	"waves":    Waves{},
	"constant": Constant{},
}

// Lookup returns the named field
func Lookup(name string) (Field, error) {
	f, ok := catalogue[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownField, name)
	}
	return f, nil
}

// Names lists the catalogue in a stable order
func Names() []string {
	names := make([]string, 0, len(catalogue))
	for n := range catalogue {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Sphere is the signed distance to a sphere of the given radius
type Sphere struct{}

func (Sphere) Name() string { return "sphere" }

func (Sphere) Eval(p mgl32.Vec3, prm Params) float32 {
	return length3(p) - prm.Radius
}

func (Sphere) WGSL() string {
	return `
fn field(p: vec3<f32>) -> f32 {
    return length(p) - params.shape.x;
}
`
}

// Torus lies in the XZ plane; its tube radius is a fixed fraction of the ring radius
type Torus struct{}

func (Torus) Name() string { return "torus" }

func (Torus) Eval(p mgl32.Vec3, prm Params) float32 {
	qx := math32.Hypot(p[0], p[2]) - prm.Radius
	return math32.Hypot(qx, p[1]) - prm.Radius*0.35
}

func (Torus) WGSL() string {
	return `
fn field(p: vec3<f32>) -> f32 {
    let q = vec2<f32>(length(p.xz) - params.shape.x, p.y);
    return length(q) - params.shape.x * 0.35;
}
`
}

// Gyroid is a triply periodic surface clipped to a sphere
type Gyroid struct{}

func (Gyroid) Name() string { return "gyroid" }

func (Gyroid) Eval(p mgl32.Vec3, prm Params) float32 {
	f := prm.Frequency * math32.Pi
	x, y, z := p[0]*f, p[1]*f, p[2]*f
	g := (math32.Sin(x)*math32.Cos(y) + math32.Sin(y)*math32.Cos(z) + math32.Sin(z)*math32.Cos(x)) / f
	return math32.Max(g, length3(p)-prm.Radius)
}

func (Gyroid) WGSL() string {
	return `
fn field(p: vec3<f32>) -> f32 {
    let f = params.shape.z * 3.14159265;
    let q = p * f;
    let g = (sin(q.x) * cos(q.y) + sin(q.y) * cos(q.z) + sin(q.z) * cos(q.x)) / f;
    return max(g, length(p) - params.shape.x);
}
`
}

// Blobs are three metaballs orbiting the origin, blended with a smooth minimum
type Blobs struct{}

func (Blobs) Name() string { return "blobs" }

func (Blobs) Eval(p mgl32.Vec3, prm Params) float32 {
	d := float32(1e9)
	for i := 0; i < 3; i++ {
		c := blobCenter(i, prm.Time)
		d = smoothMin(d, length3(p.Sub(c))-prm.Radius*0.5, 0.3)
	}
	return d
}

func blobCenter(i int, t float32) mgl32.Vec3 {
	phase := float32(i) * 2 * math32.Pi / 3
	return mgl32.Vec3{
		0.45 * math32.Cos(t+phase),
		0.45 * math32.Sin(1.3*t+float32(i)),
		0.45 * math32.Sin(t+phase),
	}
}

func smoothMin(a, b, k float32) float32 {
	h := math32.Max(k-math32.Abs(a-b), 0) / k
	return math32.Min(a, b) - h*h*k*0.25
}

func (Blobs) WGSL() string {
	return `
fn smooth_min(a: f32, b: f32, k: f32) -> f32 {
    let h = max(k - abs(a - b), 0.0) / k;
    return min(a, b) - h * h * k * 0.25;
}

fn field(p: vec3<f32>) -> f32 {
    let t = params.shape.w;
    var d = 1e9;
    for (var i = 0u; i < 3u; i = i + 1u) {
        let phase = f32(i) * 2.0 * 3.14159265 / 3.0;
        let c = 0.45 * vec3<f32>(cos(t + phase), sin(1.3 * t + f32(i)), sin(t + phase));
        d = smooth_min(d, length(p - c) - params.shape.x * 0.5, 0.3);
    }
    return d;
}
`
}

// Waves is a rippled horizontal plane
type Waves struct{}

func (Waves) Name() string { return "waves" }

func (Waves) Eval(p mgl32.Vec3, prm Params) float32 {
	f := prm.Frequency * math32.Pi
	return p[1] + 0.25*prm.Radius*math32.Sin(f*p[0]+prm.Time)*math32.Cos(f*p[2])
}

func (Waves) WGSL() string {
	return `
fn field(p: vec3<f32>) -> f32 {
    let f = params.shape.z * 3.14159265;
    return p.y + 0.25 * params.shape.x * sin(f * p.x + params.shape.w) * cos(f * p.z);
}
`
}

// Constant has the same value everywhere: the radius parameter
type Constant struct{}

func (Constant) Name() string { return "constant" }

func (Constant) Eval(_ mgl32.Vec3, prm Params) float32 {
	return prm.Radius
}

func (Constant) WGSL() string {
	return `
fn field(p: vec3<f32>) -> f32 {
    return params.shape.x;
}
`
}

func length3(p mgl32.Vec3) float32 {
	return math32.Sqrt(p[0]*p[0] + p[1]*p[1] + p[2]*p[2])
}
