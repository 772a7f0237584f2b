package render

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"sync"

	"github.com/teslashibe/go-posecam/pkg/geometry"
	"gocv.io/x/gocv"
)

// MatCanvas draws into an OpenCV BGR image.
type MatCanvas struct {
	mu  sync.Mutex
	img gocv.Mat
}

// NewMatCanvas allocates a width×height canvas.
func NewMatCanvas(width, height int) *MatCanvas {
	return &MatCanvas{img: gocv.NewMatWithSize(height, width, gocv.MatTypeCV8UC3)}
}

// Resize reallocates the canvas when the display size changes.
func (c *MatCanvas) Resize(width, height int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.img.Cols() == width && c.img.Rows() == height {
		return
	}
	c.img.Close()
	c.img = gocv.NewMatWithSize(height, width, gocv.MatTypeCV8UC3)
}

func (c *MatCanvas) Size() geometry.Size {
	return geometry.Sz(float64(c.img.Cols()), float64(c.img.Rows()))
}

func (c *MatCanvas) Clear(col color.RGBA) {
	c.img.SetTo(gocv.NewScalar(float64(col.B), float64(col.G), float64(col.R), 0))
}

func (c *MatCanvas) DrawFrame(frame gocv.Mat, viewport geometry.Rect, t geometry.Transform) {
	if frame.Empty() {
		return
	}

	bounds := image.Rect(0, 0, c.img.Cols(), c.img.Rows())
	dst := toImageRect(viewport).Intersect(bounds)
	if dst.Empty() {
		return
	}

	src := frame
	switch frame.Channels() {
	case 4:
		bgr := gocv.NewMat()
		defer bgr.Close()
		gocv.CvtColor(frame, &bgr, gocv.ColorBGRAToBGR)
		src = bgr
	case 1:
		bgr := gocv.NewMat()
		defer bgr.Close()
		gocv.CvtColor(frame, &bgr, gocv.ColorGrayToBGR)
		src = bgr
	}

	if t == geometry.Rotated90 {
		rotated := gocv.NewMat()
		defer rotated.Close()
		gocv.Rotate(src, &rotated, gocv.Rotate90CounterClockwise)
		src = rotated
	}

	resized := gocv.NewMat()
	defer resized.Close()
	gocv.Resize(src, &resized, image.Pt(dst.Dx(), dst.Dy()), 0, 0, gocv.InterpolationLinear)

	roi := c.img.Region(dst)
	defer roi.Close()
	resized.CopyTo(&roi)
}

func (c *MatCanvas) Line(a, b geometry.Point, col color.RGBA, thickness int) {
	gocv.Line(&c.img, toImagePoint(a), toImagePoint(b), col, thickness)
}

func (c *MatCanvas) Circle(center geometry.Point, radius float64, col color.RGBA, thickness int) {
	gocv.Circle(&c.img, toImagePoint(center), roundPx(radius), col, thickness)
}

func (c *MatCanvas) Ellipse(center geometry.Point, rx, ry float64, col color.RGBA, thickness int) {
	axes := image.Pt(roundPx(rx), roundPx(ry))
	gocv.Ellipse(&c.img, toImagePoint(center), axes, 0, 0, 360, col, thickness)
}

func (c *MatCanvas) Polygon(pts []geometry.Point, col color.RGBA, thickness int) {
	if len(pts) < 3 {
		return
	}
	poly := make([]image.Point, len(pts))
	for i, p := range pts {
		poly[i] = toImagePoint(p)
	}
	pv := gocv.NewPointsVectorFromPoints([][]image.Point{poly})
	defer pv.Close()

	if thickness == Filled {
		gocv.FillPoly(&c.img, pv, col)
		return
	}
	gocv.Polylines(&c.img, pv, true, col, thickness)
}

func (c *MatCanvas) Rect(r geometry.Rect, col color.RGBA, thickness int) {
	gocv.Rectangle(&c.img, toImageRect(r), col, thickness)
}

func (c *MatCanvas) Text(s string, at geometry.Point, scale float64, col color.RGBA) {
	gocv.PutText(&c.img, s, toImagePoint(at), gocv.FontHersheySimplex, scale, col, 1)
}

// EncodeJPEG returns the canvas as a JPEG.
func (c *MatCanvas) EncodeJPEG(quality int) ([]byte, error) {
	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, c.img, []int{gocv.IMWriteJpegQuality, quality})
	if err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	defer buf.Close()

	// The native buffer is freed on Close.
	out := make([]byte, buf.Len())
	copy(out, buf.GetBytes())
	return out, nil
}

// Mat exposes the underlying image. It stays owned by the canvas.
func (c *MatCanvas) Mat() gocv.Mat {
	return c.img
}

// Close releases the image.
func (c *MatCanvas) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.img.Close()
}

func roundPx(v float64) int {
	return int(math.Round(v))
}

func toImagePoint(p geometry.Point) image.Point {
	return image.Pt(roundPx(p.X), roundPx(p.Y))
}

func toImageRect(r geometry.Rect) image.Rectangle {
	return image.Rect(roundPx(r.X), roundPx(r.Y), roundPx(r.X+r.Width), roundPx(r.Y+r.Height))
}

var _ Canvas = (*MatCanvas)(nil)
