package camera

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

const (
	MinDistance = 1.5
	MaxDistance = 8

	// Keep the camera off the poles so the up vector stays valid
	maxPitch = math32.Pi/2 - 0.05
)

// Camera orbits the volume centre and produces the per-frame transform
type Camera struct {
	// Orbit angles in radians
	Yaw   float32
	Pitch float32

	// Distance from the target
	Distance float32
	Target   mgl32.Vec3

	// Vertical field of view in degrees
	FOV float32

	// Viewport dimensions
	ViewportWidth  int
	ViewportHeight int

	// Radians per dragged pixel, distance factor per scroll step
	RotateSpeed float32
	ZoomSpeed   float32

	// Radians per second applied by Update when AutoRotate is set
	AutoRotate bool
	SpinRate   float32

	// State tracking
	isDragging bool
	lastDragX  float64
	lastDragY  float64
}

// NewCamera creates a camera looking at the origin
func NewCamera(width, height int) *Camera {
	c := &Camera{
		ViewportWidth:  width,
		ViewportHeight: height,
		FOV:            45,
		RotateSpeed:    0.01,
		ZoomSpeed:      0.1,
		SpinRate:       0.4,
	}
	c.Reset()
	return c
}

// Reset restores the initial orbit
func (c *Camera) Reset() {
	c.Yaw = math32.Pi / 4
	c.Pitch = 0.45
	c.Distance = 3.2
	c.Target = mgl32.Vec3{}
}

// SetViewport updates the viewport dimensions. Zero-area viewports keep the previous aspect.
func (c *Camera) SetViewport(width, height int) {
	if width <= 0 || height <= 0 {
		return
	}
	c.ViewportWidth = width
	c.ViewportHeight = height
}

// Rotate orbits the camera by the given pixel delta
func (c *Camera) Rotate(deltaX, deltaY float64) {
	c.Yaw -= float32(deltaX) * c.RotateSpeed
	c.Pitch += float32(deltaY) * c.RotateSpeed
	c.clampPosition()
}

// Zoom moves the camera towards the target for positive steps
func (c *Camera) Zoom(steps float64) {
	c.Distance *= math32.Pow(1-c.ZoomSpeed, float32(steps))
	c.clampPosition()
}

// Update advances automatic rotation by dt seconds. Dragging pauses it.
func (c *Camera) Update(dt float32) {
	if !c.AutoRotate || c.isDragging {
		return
	}
	c.Yaw = math32.Mod(c.Yaw+c.SpinRate*dt, 2*math32.Pi)
}

// StartDrag begins a drag operation
func (c *Camera) StartDrag(x, y float64) {
	c.isDragging = true
	c.lastDragX = x
	c.lastDragY = y
}

// Drag continues a drag operation
func (c *Camera) Drag(x, y float64) {
	if !c.isDragging {
		return
	}

	c.Rotate(x-c.lastDragX, y-c.lastDragY)

	c.lastDragX = x
	c.lastDragY = y
}

// EndDrag ends a drag operation
func (c *Camera) EndDrag() {
	c.isDragging = false
}

// IsDragging returns whether a drag is in progress
func (c *Camera) IsDragging() bool {
	return c.isDragging
}

// Eye returns the camera position in world space
func (c *Camera) Eye() mgl32.Vec3 {
	cp := math32.Cos(c.Pitch)
	return c.Target.Add(mgl32.Vec3{
		c.Distance * cp * math32.Sin(c.Yaw),
		c.Distance * math32.Sin(c.Pitch),
		c.Distance * cp * math32.Cos(c.Yaw),
	})
}

// Aspect returns the viewport aspect ratio
func (c *Camera) Aspect() float32 {
	if c.ViewportHeight <= 0 {
		return 1
	}
	return float32(c.ViewportWidth) / float32(c.ViewportHeight)
}

// View returns the world-to-camera matrix
func (c *Camera) View() mgl32.Mat4 {
	return mgl32.LookAtV(c.Eye(), c.Target, mgl32.Vec3{0, 1, 0})
}

// Projection returns a perspective matrix with WebGPU's [0, 1] depth range
func (c *Camera) Projection() mgl32.Mat4 {
	gl := mgl32.Perspective(mgl32.DegToRad(c.FOV), c.Aspect(), 0.05, 50)
	// mgl32 targets OpenGL clip space (z in [-1, 1]); remap z to [0, 1].
	clip := mgl32.Mat4{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 0.5, 0,
		0, 0, 0.5, 1,
	}
	return clip.Mul4(gl)
}

// Transform returns projection * view, the matrix uploaded every frame
func (c *Camera) Transform() mgl32.Mat4 {
	return c.Projection().Mul4(c.View())
}

// clampPosition keeps the orbit within valid bounds
func (c *Camera) clampPosition() {
	c.Pitch = mgl32.Clamp(c.Pitch, -maxPitch, maxPitch)
	c.Distance = mgl32.Clamp(c.Distance, MinDistance, MaxDistance)
}
