// Package render draws the fading pose trail, the source frame and the VU
// meter onto a canvas once per display tick.
package render

import (
	"image/color"

	"github.com/teslashibe/go-posecam/pkg/geometry"
	"gocv.io/x/gocv"
)

// Canvas is a drawing surface in canvas pixel space.
type Canvas interface {
	Size() geometry.Size
	Clear(c color.RGBA)
	// DrawFrame scales frame into viewport. Under geometry.Rotated90 the
	// frame is turned 90° counter-clockwise first.
	DrawFrame(frame gocv.Mat, viewport geometry.Rect, t geometry.Transform)
	Line(a, b geometry.Point, c color.RGBA, thickness int)
	Circle(center geometry.Point, radius float64, c color.RGBA, thickness int)
	Ellipse(center geometry.Point, rx, ry float64, c color.RGBA, thickness int)
	Polygon(pts []geometry.Point, c color.RGBA, thickness int)
	Rect(r geometry.Rect, c color.RGBA, thickness int)
	Text(s string, at geometry.Point, scale float64, c color.RGBA)
}

// Filled is the thickness value that fills a shape instead of outlining it.
const Filled = -1

var (
	Black = color.RGBA{0, 0, 0, 255}
	White = color.RGBA{255, 255, 255, 255}
	Red   = color.RGBA{255, 0, 0, 255}
)
