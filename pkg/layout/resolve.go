// Package layout decides where the source frame lands on the canvas and
// which transform maps detections onto it.
package layout

import (
	"fmt"

	"github.com/teslashibe/go-posecam/pkg/geometry"
)

// Orientation is the device orientation.
type Orientation int

const (
	Landscape Orientation = iota
	Portrait
)

func (o Orientation) String() string {
	switch o {
	case Landscape:
		return "landscape"
	case Portrait:
		return "portrait"
	default:
		return fmt.Sprintf("orientation(%d)", int(o))
	}
}

// ParseOrientation accepts "portrait" or "landscape". Anything else is
// treated as landscape.
func ParseOrientation(s string) Orientation {
	if s == "portrait" {
		return Portrait
	}
	return Landscape
}

func (o Orientation) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

func (o *Orientation) UnmarshalText(b []byte) error {
	*o = ParseOrientation(string(b))
	return nil
}

// OrientationOf reports portrait when the canvas is taller than it is wide.
// A square canvas counts as landscape.
func OrientationOf(width, height float64) Orientation {
	if height > width {
		return Portrait
	}
	return Landscape
}

// Resolve computes the viewport and transform for a source frame shown on
// a canvas in the given orientation.
//
// Landscape letterboxes the frame as-is. Portrait rotates the frame 90°
// first, so the source extents are swapped before fitting, and selects
// geometry.Rotated90. ok is false when either size is degenerate; the
// caller should skip the render pass.
func Resolve(canvas, source geometry.Size, o Orientation) (viewport geometry.Rect, transform geometry.Transform, ok bool) {
	if canvas.Empty() || source.Empty() {
		return geometry.Rect{}, geometry.Identity, false
	}

	transform = geometry.Identity
	placed := source
	if o == Portrait {
		transform = geometry.Rotated90
		placed = source.Swap()
	}

	return letterbox(canvas, placed), transform, true
}

// letterbox fits placed inside canvas preserving its aspect ratio and
// centers it on the free axis.
func letterbox(canvas, placed geometry.Size) geometry.Rect {
	canvasAspect := canvas.Aspect()
	placedAspect := placed.Aspect()

	if canvasAspect > placedAspect {
		// Canvas is relatively wider: fit height, pad left/right.
		w := canvas.Height * placedAspect
		return geometry.Rect{
			X:      (canvas.Width - w) / 2,
			Y:      0,
			Width:  w,
			Height: canvas.Height,
		}
	}

	h := canvas.Width / placedAspect
	return geometry.Rect{
		X:      0,
		Y:      (canvas.Height - h) / 2,
		Width:  canvas.Width,
		Height: h,
	}
}
