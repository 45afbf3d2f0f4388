package grid

import (
	"errors"
	"fmt"
)

// ErrInvalidExtent is returned when an extent has an axis smaller than one sample
var ErrInvalidExtent = errors.New("invalid grid extent")

// Extent is the number of lattice samples along each axis
type Extent struct {
	X int
	Y int
	Z int
}

// Coord is a lattice coordinate
type Coord struct {
	X int
	Y int
	Z int
}

func (e Extent) String() string {
	return fmt.Sprintf("%dx%dx%d", e.X, e.Y, e.Z)
}

func (c Coord) String() string {
	return fmt.Sprintf("(%d,%d,%d)", c.X, c.Y, c.Z)
}

// Cube returns an extent with n samples on every axis
func Cube(n int) Extent {
	return Extent{X: n, Y: n, Z: n}
}

// Validate rejects zero or negative axes
func (e Extent) Validate() error {
	if e.X < 1 || e.Y < 1 || e.Z < 1 {
		return fmt.Errorf("%w: %s", ErrInvalidExtent, e)
	}
	return nil
}

// Len returns the number of samples
func (e Extent) Len() int {
	return e.X * e.Y * e.Z
}

// Cells returns the extent of unit cells spanned by the samples.
// An axis with a single sample spans no cells.
func (e Extent) Cells() Extent {
	return Extent{X: max(e.X-1, 0), Y: max(e.Y-1, 0), Z: max(e.Z-1, 0)}
}

// Index returns the linear index of c, x varying fastest
func (e Extent) Index(c Coord) int {
	return (c.Z*e.Y+c.Y)*e.X + c.X
}

// CoordOf is the inverse of Index
func (e Extent) CoordOf(i int) Coord {
	x := i % e.X
	i /= e.X
	return Coord{X: x, Y: i % e.Y, Z: i / e.Y}
}

// Contains reports whether c lies inside the extent
func (e Extent) Contains(c Coord) bool {
	return c.X >= 0 && c.Y >= 0 && c.Z >= 0 && c.X < e.X && c.Y < e.Y && c.Z < e.Z
}

// Clamp moves c to the nearest coordinate inside the extent
func (e Extent) Clamp(c Coord) Coord {
	return Coord{
		X: clamp(c.X, 0, e.X-1),
		Y: clamp(c.Y, 0, e.Y-1),
		Z: clamp(c.Z, 0, e.Z-1),
	}
}

// Normalize maps a lattice coordinate (possibly fractional) to [-1, 1] on each axis.
// Axes with a single sample map to -1.
func (e Extent) Normalize(x, y, z float32) (float32, float32, float32) {
	return norm(x, e.X), norm(y, e.Y), norm(z, e.Z)
}

func norm(v float32, n int) float32 {
	d := float32(n - 1)
	if d < 1 {
		d = 1
	}
	return v/d*2 - 1
}

// Add returns the component-wise sum
func (c Coord) Add(o Coord) Coord {
	return Coord{X: c.X + o.X, Y: c.Y + o.Y, Z: c.Z + o.Z}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
