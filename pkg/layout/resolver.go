package layout

import (
	"sync"

	"github.com/teslashibe/go-posecam/pkg/geometry"
)

// Result is a resolved layout.
type Result struct {
	Canvas      geometry.Size      `json:"canvas"`
	Source      geometry.Size      `json:"source"`
	Orientation Orientation        `json:"orientation"`
	Viewport    geometry.Rect      `json:"viewport"`
	Transform   geometry.Transform `json:"transform"`
	// Valid is false until both canvas and source sizes are known.
	Valid bool `json:"valid"`
}

// Resolver caches the last layout and recomputes only when an input changes.
//
// Inputs are set by event handlers (resize, orientation, new source size);
// the render loop reads Current every tick.
type Resolver struct {
	mu          sync.RWMutex
	canvas      geometry.Size
	source      geometry.Size
	orientation Orientation
	current     Result
	computed    bool
	changes     int
}

// NewResolver creates a resolver for an initial canvas size. Orientation is
// derived from the canvas.
func NewResolver(canvas geometry.Size) *Resolver {
	r := &Resolver{
		canvas:      canvas,
		orientation: OrientationOf(canvas.Width, canvas.Height),
	}
	r.recompute()
	return r
}

// SetCanvas records a canvas resize.
func (r *Resolver) SetCanvas(canvas geometry.Size) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if canvas == r.canvas {
		return false
	}
	r.canvas = canvas
	r.recompute()
	return true
}

// SetSource records the native size of the current source frame.
func (r *Resolver) SetSource(source geometry.Size) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if source == r.source {
		return false
	}
	r.source = source
	r.recompute()
	return true
}

// SetOrientation records an orientation change.
func (r *Resolver) SetOrientation(o Orientation) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if o == r.orientation {
		return false
	}
	r.orientation = o
	r.recompute()
	return true
}

// Update sets every input at once and reports whether the layout changed.
func (r *Resolver) Update(canvas, source geometry.Size, o Orientation) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if canvas == r.canvas && source == r.source && o == r.orientation && r.computed {
		return false
	}
	r.canvas, r.source, r.orientation = canvas, source, o
	r.recompute()
	return true
}

// Current returns the cached layout.
func (r *Resolver) Current() Result {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current
}

// Orientation returns the current orientation input.
func (r *Resolver) Orientation() Orientation {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.orientation
}

// Changes returns how many times the layout was recomputed.
func (r *Resolver) Changes() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.changes
}

// recompute must be called with mu held.
func (r *Resolver) recompute() {
	viewport, transform, ok := Resolve(r.canvas, r.source, r.orientation)
	r.current = Result{
		Canvas:      r.canvas,
		Source:      r.source,
		Orientation: r.orientation,
		Viewport:    viewport,
		Transform:   transform,
		Valid:       ok,
	}
	r.computed = true
	r.changes++
}
