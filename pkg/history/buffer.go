// Package history keeps the time-windowed trail of pose detection
// snapshots that the renderer fades out.
package history

import (
	"iter"
	"sync"
	"time"

	"github.com/teslashibe/go-posecam/pkg/pose"
)

// Window is how long a snapshot stays in the trail.
const Window = 2000 * time.Millisecond

// Buffer is an insertion-ordered store of snapshots bounded by Window.
//
// Entries are evicted lazily by Prune, never by a timer. Appends may come
// from any goroutine; the renderer prunes and reads once per tick.
type Buffer struct {
	mu      sync.RWMutex
	entries []pose.Snapshot
	window  time.Duration
}

// New creates a buffer with the standard 2s window.
func New() *Buffer {
	return NewWithWindow(Window)
}

// NewWithWindow creates a buffer with a custom window.
func NewWithWindow(window time.Duration) *Buffer {
	return &Buffer{window: window}
}

// Window returns the eviction window.
func (b *Buffer) Window() time.Duration {
	return b.window
}

// Append inserts snap at the tail. Arrival order wins: a late snapshot with
// an older timestamp still goes last.
func (b *Buffer) Append(snap pose.Snapshot) {
	b.mu.Lock()
	b.entries = append(b.entries, snap)
	b.mu.Unlock()
}

// Prune removes every entry older than the window at now and returns how
// many were removed.
func (b *Buffer) Prune(now time.Time) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	expired := 0
	for _, e := range b.entries {
		if now.Sub(e.CapturedAt) > b.window {
			expired++
		}
	}
	if expired == 0 {
		return 0
	}

	// Copy rather than compact in place: views handed out by Snapshots
	// still point at the old array.
	kept := make([]pose.Snapshot, 0, len(b.entries)-expired)
	for _, e := range b.entries {
		if now.Sub(e.CapturedAt) > b.window {
			continue
		}
		kept = append(kept, e)
	}
	b.entries = kept
	return expired
}

// Snapshots returns the current entries, oldest inserted first.
//
// The sequence is lazy and restartable. Each iteration walks the entries
// present when Snapshots was called; later appends and prunes are not seen.
func (b *Buffer) Snapshots() iter.Seq[pose.Snapshot] {
	b.mu.RLock()
	view := b.entries[:len(b.entries):len(b.entries)]
	b.mu.RUnlock()

	return func(yield func(pose.Snapshot) bool) {
		for _, e := range view {
			if !yield(e) {
				return
			}
		}
	}
}

// Len returns the number of buffered snapshots.
func (b *Buffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.entries)
}

// Reset drops every entry.
func (b *Buffer) Reset() {
	b.mu.Lock()
	b.entries = nil
	b.mu.Unlock()
}

// AgeFactor returns how far through the window a snapshot captured at
// capturedAt is, clamped to [0, 1]. 0 is fresh, 1 is about to expire.
func AgeFactor(now, capturedAt time.Time) float64 {
	return ageFactor(now, capturedAt, Window)
}

// AgeFactor is the buffer's own window variant of the package function.
func (b *Buffer) AgeFactor(now, capturedAt time.Time) float64 {
	return ageFactor(now, capturedAt, b.window)
}

func ageFactor(now, capturedAt time.Time, window time.Duration) float64 {
	if window <= 0 {
		return 1
	}
	f := float64(now.Sub(capturedAt)) / float64(window)
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
