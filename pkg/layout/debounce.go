package layout

import (
	"sync"
	"time"
)

// DefaultSettle is how long orientation events must stop arriving before
// the camera is re-acquired.
const DefaultSettle = 300 * time.Millisecond

// Debouncer coalesces bursts of events into one call after a quiet period.
// A device rotation fires many resize events; only the last one matters.
type Debouncer struct {
	mu     sync.Mutex
	settle time.Duration
	fn     func(Orientation)
	timer  *time.Timer
	last   Orientation
	gen    uint64 // bumped by Trigger and Stop; a timer with an older gen is stale
}

// NewDebouncer calls fn with the latest orientation once events have been
// quiet for settle. settle <= 0 uses DefaultSettle.
func NewDebouncer(settle time.Duration, fn func(Orientation)) *Debouncer {
	if settle <= 0 {
		settle = DefaultSettle
	}
	return &Debouncer{settle: settle, fn: fn}
}

// Trigger records an event and restarts the settle timer.
func (d *Debouncer) Trigger(o Orientation) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.last = o
	if d.timer != nil {
		d.timer.Stop()
	}
	d.gen++
	gen := d.gen
	d.timer = time.AfterFunc(d.settle, func() { d.fire(gen) })
}

func (d *Debouncer) fire(gen uint64) {
	d.mu.Lock()
	if gen != d.gen {
		d.mu.Unlock()
		return
	}
	o := d.last
	d.timer = nil
	fn := d.fn
	d.mu.Unlock()

	if fn != nil {
		fn(o)
	}
}

// Stop cancels any pending call.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.gen++
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

func (d *Debouncer) pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.timer != nil
}
