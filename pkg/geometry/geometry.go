// Package geometry maps points from source-frame pixel space onto the
// destination canvas. Everything here is pure: no state, no errors.
package geometry

import "fmt"

// Point is a 2D position in pixels.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Pt is shorthand for Point{X: x, Y: y}.
func Pt(x, y float64) Point {
	return Point{X: x, Y: y}
}

// Size is a width/height pair in pixels.
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Sz is shorthand for Size{Width: w, Height: h}.
func Sz(w, h float64) Size {
	return Size{Width: w, Height: h}
}

// Empty reports whether either dimension is zero or negative.
// Mapping against an empty source size divides by zero.
func (s Size) Empty() bool {
	return s.Width <= 0 || s.Height <= 0
}

// Aspect returns width/height, or 0 for an empty size.
func (s Size) Aspect() float64 {
	if s.Empty() {
		return 0
	}
	return s.Width / s.Height
}

// Swap returns the size with width and height exchanged.
func (s Size) Swap() Size {
	return Size{Width: s.Height, Height: s.Width}
}

// Rect is the destination drawing rectangle inside the canvas (the viewport).
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Min returns the top-left corner.
func (r Rect) Min() Point {
	return Point{X: r.X, Y: r.Y}
}

// Max returns the bottom-right corner.
func (r Rect) Max() Point {
	return Point{X: r.X + r.Width, Y: r.Y + r.Height}
}

// Center returns the midpoint of the rectangle.
func (r Rect) Center() Point {
	return Point{X: r.X + r.Width/2, Y: r.Y + r.Height/2}
}

// Corners returns the corners clockwise from the top-left.
func (r Rect) Corners() [4]Point {
	return [4]Point{
		{X: r.X, Y: r.Y},
		{X: r.X + r.Width, Y: r.Y},
		{X: r.X + r.Width, Y: r.Y + r.Height},
		{X: r.X, Y: r.Y + r.Height},
	}
}

// Size returns the rectangle's extent.
func (r Rect) Size() Size {
	return Size{Width: r.Width, Height: r.Height}
}

// Empty reports whether the rectangle has no area.
func (r Rect) Empty() bool {
	return r.Width <= 0 || r.Height <= 0
}

func (r Rect) String() string {
	return fmt.Sprintf("(%.1f,%.1f %.1fx%.1f)", r.X, r.Y, r.Width, r.Height)
}

// Transform selects how a source-space point maps into canvas space.
type Transform int

const (
	// Identity scales the source frame into the letterboxed viewport as-is.
	Identity Transform = iota
	// Rotated90 turns the source frame 90° counter-clockwise before
	// scaling it into the letterboxed viewport.
	Rotated90
)

func (t Transform) String() string {
	switch t {
	case Identity:
		return "identity"
	case Rotated90:
		return "rotated90"
	default:
		return fmt.Sprintf("transform(%d)", int(t))
	}
}

// MapPoint maps p from source-frame pixels into canvas pixels.
//
// Under Rotated90 the rotation is applied first (rx = y, ry = W - x), giving
// a point in an H×W frame, and only then rescaled into the viewport. The
// viewport is already the rotated frame's on-canvas footprint.
//
// The caller must not pass an empty source size.
func MapPoint(p Point, source Size, viewport Rect, t Transform) Point {
	switch t {
	case Rotated90:
		rx := p.Y
		ry := source.Width - p.X
		return Point{
			X: MapRange(rx, 0, source.Height, viewport.X, viewport.X+viewport.Width),
			Y: MapRange(ry, 0, source.Width, viewport.Y, viewport.Y+viewport.Height),
		}
	default:
		return Point{
			X: MapRange(p.X, 0, source.Width, viewport.X, viewport.X+viewport.Width),
			Y: MapRange(p.Y, 0, source.Height, viewport.Y, viewport.Y+viewport.Height),
		}
	}
}

// MapRange linearly rescales v from [inMin, inMax] to [outMin, outMax].
// Values outside the input range extrapolate.
func MapRange(v, inMin, inMax, outMin, outMax float64) float64 {
	return outMin + (v-inMin)/(inMax-inMin)*(outMax-outMin)
}

// Lerp interpolates between a and b by t.
func Lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}

// Clamp limits value to [min, max].
func Clamp(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}
