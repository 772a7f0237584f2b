package render

import (
	"image/color"
	"sync"

	"github.com/teslashibe/go-posecam/pkg/geometry"
	"gocv.io/x/gocv"
)

// OpKind identifies a recorded draw call.
type OpKind string

const (
	OpClear   OpKind = "clear"
	OpFrame   OpKind = "frame"
	OpLine    OpKind = "line"
	OpCircle  OpKind = "circle"
	OpEllipse OpKind = "ellipse"
	OpPolygon OpKind = "polygon"
	OpRect    OpKind = "rect"
	OpText    OpKind = "text"
)

// Op is one recorded draw call.
type Op struct {
	Kind      OpKind
	Points    []geometry.Point
	Radius    geometry.Size
	Rect      geometry.Rect
	Transform geometry.Transform
	Color     color.RGBA
	Thickness int
	Text      string
}

// Recorder is a Canvas that records draw calls instead of rasterising them.
// It backs the headless mode and the tests.
type Recorder struct {
	mu   sync.Mutex
	size geometry.Size
	ops  []Op
}

// NewRecorder creates a recorder reporting the given canvas size.
func NewRecorder(size geometry.Size) *Recorder {
	return &Recorder{size: size}
}

func (r *Recorder) Size() geometry.Size {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.size
}

// Resize changes the reported canvas size.
func (r *Recorder) Resize(width, height int) {
	r.mu.Lock()
	r.size = geometry.Sz(float64(width), float64(height))
	r.mu.Unlock()
}

// Clear drops the recorded ops and records the clear itself.
func (r *Recorder) Clear(c color.RGBA) {
	r.mu.Lock()
	r.ops = append(r.ops[:0], Op{Kind: OpClear, Color: c})
	r.mu.Unlock()
}

func (r *Recorder) DrawFrame(frame gocv.Mat, viewport geometry.Rect, t geometry.Transform) {
	r.add(Op{Kind: OpFrame, Rect: viewport, Transform: t})
}

func (r *Recorder) Line(a, b geometry.Point, c color.RGBA, thickness int) {
	r.add(Op{Kind: OpLine, Points: []geometry.Point{a, b}, Color: c, Thickness: thickness})
}

func (r *Recorder) Circle(center geometry.Point, radius float64, c color.RGBA, thickness int) {
	r.add(Op{Kind: OpCircle, Points: []geometry.Point{center}, Radius: geometry.Sz(radius, radius), Color: c, Thickness: thickness})
}

func (r *Recorder) Ellipse(center geometry.Point, rx, ry float64, c color.RGBA, thickness int) {
	r.add(Op{Kind: OpEllipse, Points: []geometry.Point{center}, Radius: geometry.Sz(rx, ry), Color: c, Thickness: thickness})
}

func (r *Recorder) Polygon(pts []geometry.Point, c color.RGBA, thickness int) {
	r.add(Op{Kind: OpPolygon, Points: append([]geometry.Point(nil), pts...), Color: c, Thickness: thickness})
}

func (r *Recorder) Rect(rect geometry.Rect, c color.RGBA, thickness int) {
	r.add(Op{Kind: OpRect, Rect: rect, Color: c, Thickness: thickness})
}

func (r *Recorder) Text(s string, at geometry.Point, scale float64, c color.RGBA) {
	r.add(Op{Kind: OpText, Points: []geometry.Point{at}, Color: c, Text: s})
}

func (r *Recorder) add(op Op) {
	r.mu.Lock()
	r.ops = append(r.ops, op)
	r.mu.Unlock()
}

// Ops returns a copy of the ops recorded since the last Clear.
func (r *Recorder) Ops() []Op {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Op(nil), r.ops...)
}

// Count returns how many ops of kind were recorded since the last Clear.
func (r *Recorder) Count(kind OpKind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, op := range r.ops {
		if op.Kind == kind {
			n++
		}
	}
	return n
}

var _ Canvas = (*Recorder)(nil)
