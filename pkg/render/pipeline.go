package render

import (
	"fmt"
	"image/color"
	"time"

	"github.com/teslashibe/go-posecam/pkg/debug"
	"github.com/teslashibe/go-posecam/pkg/geometry"
	"github.com/teslashibe/go-posecam/pkg/history"
	"github.com/teslashibe/go-posecam/pkg/layout"
	"github.com/teslashibe/go-posecam/pkg/vumeter"
	"gocv.io/x/gocv"
)

// ThresholdFunc returns the live keypoint confidence threshold.
type ThresholdFunc func() float64

// Options tune drawing. Zero values fall back to DefaultOptions.
type Options struct {
	Background    color.RGBA
	EdgeThickness int
	GlyphScale    float64
}

// DefaultOptions returns the standard look.
func DefaultOptions() Options {
	return Options{
		Background:    Black,
		EdgeThickness: 2,
		GlyphScale:    1,
	}
}

// TickInput is the per-tick state owned by the caller.
type TickInput struct {
	// Frame is the current source frame. nil or empty draws no background.
	Frame *gocv.Mat
	// OverlayOpen gates the VU meter.
	OverlayOpen bool
	Meter       vumeter.Reading
}

// Stats describes what a tick drew.
type Stats struct {
	Pruned    int                `json:"pruned"`
	Snapshots int                `json:"snapshots"`
	Poses     int                `json:"poses"`
	Edges     int                `json:"edges"`
	Keypoints int                `json:"keypoints"`
	Threshold float64            `json:"threshold"`
	Transform geometry.Transform `json:"transform"`
	// Skipped is set when there was no source geometry to map against.
	Skipped bool `json:"skipped"`
	Meter   bool `json:"meter"`
}

// Pipeline renders the pose trail. It reads the history buffer and the
// resolver but never writes to anything except its canvas and the prune.
type Pipeline struct {
	canvas    Canvas
	buffer    *history.Buffer
	layout    *layout.Resolver
	threshold ThresholdFunc
	opts      Options
	ticks     uint64
}

// NewPipeline wires a pipeline to its canvas and state.
func NewPipeline(canvas Canvas, buffer *history.Buffer, resolver *layout.Resolver, threshold ThresholdFunc, opts Options) *Pipeline {
	def := DefaultOptions()
	if opts.EdgeThickness <= 0 {
		opts.EdgeThickness = def.EdgeThickness
	}
	if opts.GlyphScale <= 0 {
		opts.GlyphScale = def.GlyphScale
	}
	if opts.Background == (color.RGBA{}) {
		opts.Background = def.Background
	}
	return &Pipeline{
		canvas:    canvas,
		buffer:    buffer,
		layout:    resolver,
		threshold: threshold,
		opts:      opts,
	}
}

// Canvas returns the canvas the pipeline draws on.
func (p *Pipeline) Canvas() Canvas {
	return p.canvas
}

// Tick draws one display frame at now.
func (p *Pipeline) Tick(now time.Time, in TickInput) Stats {
	p.ticks++
	var st Stats

	st.Pruned = p.buffer.Prune(now)
	lay := p.layout.Current()
	st.Transform = lay.Transform

	p.canvas.Clear(p.opts.Background)

	if lay.Valid {
		if in.Frame != nil && !in.Frame.Empty() {
			p.canvas.DrawFrame(*in.Frame, lay.Viewport, lay.Transform)
		}
		// Re-read every tick so slider changes apply on the next frame.
		st.Threshold = p.threshold()
		p.drawTrail(now, lay, &st)
	} else {
		st.Skipped = true
	}

	if in.OverlayOpen {
		p.drawMeter(in.Meter)
		st.Meter = true
	}

	if debug.Render && p.ticks%30 == 0 {
		debug.Log("🎨 tick %d: snapshots=%d edges=%d keypoints=%d pruned=%d skipped=%v\n",
			p.ticks, st.Snapshots, st.Edges, st.Keypoints, st.Pruned, st.Skipped)
	}
	return st
}

func (p *Pipeline) drawTrail(now time.Time, lay layout.Result, st *Stats) {
	for snap := range p.buffer.Snapshots() {
		st.Snapshots++
		// Snapshots taken before a camera flip keep the old frame size.
		source := lay.Source
		if !snap.Source.Empty() {
			source = snap.Source
		}
		mapPt := func(pt geometry.Point) geometry.Point {
			return geometry.MapPoint(pt, source, lay.Viewport, lay.Transform)
		}

		age := p.buffer.AgeFactor(now, snap.CapturedAt)

		for _, ps := range snap.Poses {
			st.Poses++
			col := Fade(BaseColor(ps.Index), age)

			for _, e := range ps.Skeleton {
				p.canvas.Line(mapPt(e.A.Position), mapPt(e.B.Position), col, p.opts.EdgeThickness)
				st.Edges++
			}

			for _, kp := range ps.Keypoints {
				if kp.Score <= st.Threshold {
					continue
				}
				drawGlyph(p.canvas, kp.Part.Glyph(), mapPt(kp.Position), p.opts.GlyphScale, age)
				st.Keypoints++
			}
		}
	}
}

// Meter geometry, relative to the canvas.
const (
	meterMargin = 16.0
	meterHeight = 14.0
	meterWidth  = 0.4
)

var (
	meterFrame = color.RGBA{200, 200, 200, 255}
	meterFill  = color.RGBA{0, 200, 80, 255}
	meterPeak  = color.RGBA{255, 60, 60, 255}
)

// MeterRect returns where the VU meter sits on a canvas of size.
func MeterRect(size geometry.Size) geometry.Rect {
	return geometry.Rect{
		X:      meterMargin,
		Y:      size.Height - meterMargin - meterHeight,
		Width:  size.Width * meterWidth,
		Height: meterHeight,
	}
}

func (p *Pipeline) drawMeter(r vumeter.Reading) {
	box := MeterRect(p.canvas.Size())

	level := box
	level.Width = box.Width * geometry.Clamp(r.Level, 0, 1)
	if level.Width > 0 {
		p.canvas.Rect(level, meterFill, Filled)
	}

	peakX := box.X + box.Width*geometry.Clamp(r.Peak, 0, 1)
	p.canvas.Line(geometry.Pt(peakX, box.Y), geometry.Pt(peakX, box.Y+box.Height), meterPeak, 2)

	p.canvas.Rect(box, meterFrame, 1)
	p.canvas.Text(fmt.Sprintf("%.0f dB", r.DBFS), geometry.Pt(box.X+box.Width+8, box.Y+box.Height), 0.45, meterFrame)
}
