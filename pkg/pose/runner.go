package pose

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/teslashibe/go-posecam/pkg/geometry"
	"gocv.io/x/gocv"
)

// FrameSource hands the runner the latest camera frame.
type FrameSource interface {
	// CloneLatest returns a copy of the most recent frame. The caller
	// closes it. ok is false until the first frame arrives.
	CloneLatest() (frame gocv.Mat, ok bool)
}

// ResultFunc receives every detection result together with the size of the
// frame it came from and the time it arrived.
type ResultFunc func(poses []Pose, source geometry.Size, at time.Time)

// Runner drives a Detector at its own cadence, off the render path.
// At most one inference is in flight; ticks that land while the model is
// busy are skipped.
type Runner struct {
	detector Detector
	frames   FrameSource
	interval time.Duration
	logger   *slog.Logger

	// Now is the clock used to stamp results.
	Now func() time.Time

	mu       sync.Mutex
	onResult ResultFunc

	busy     atomic.Bool
	results  atomic.Int64
	skipped  atomic.Int64
	failures atomic.Int64
}

// NewRunner creates a runner that polls frames every interval.
func NewRunner(detector Detector, frames FrameSource, interval time.Duration, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		detector: detector,
		frames:   frames,
		interval: interval,
		logger:   logger,
		Now:      time.Now,
	}
}

// OnResult sets the result callback. Only the first call takes effect.
func (r *Runner) OnResult(fn ResultFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.onResult == nil {
		r.onResult = fn
	}
}

// Run polls until ctx is cancelled.
func (r *Runner) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !r.busy.CompareAndSwap(false, true) {
				r.skipped.Add(1)
				continue
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				defer r.busy.Store(false)
				r.DetectOnce()
			}()
		}
	}
}

// DetectOnce runs a single detection on the latest frame and delivers the
// result. It reports whether a result was delivered.
func (r *Runner) DetectOnce() bool {
	frame, ok := r.frames.CloneLatest()
	if !ok {
		return false
	}
	defer frame.Close()

	source := geometry.Sz(float64(frame.Cols()), float64(frame.Rows()))
	poses, err := r.detector.Detect(frame)
	if err != nil {
		if r.failures.Add(1)%50 == 1 {
			r.logger.Warn("pose detection failed", "error", err, "failures", r.failures.Load())
		}
		return false
	}

	r.mu.Lock()
	fn := r.onResult
	r.mu.Unlock()

	r.results.Add(1)
	if fn != nil {
		fn(poses, source, r.Now())
	}
	return true
}

// RunnerStats contains runner counters.
type RunnerStats struct {
	Results  int64 `json:"results"`
	Skipped  int64 `json:"skipped"`
	Failures int64 `json:"failures"`
}

// Stats returns runner counters.
func (r *Runner) Stats() RunnerStats {
	return RunnerStats{
		Results:  r.results.Load(),
		Skipped:  r.skipped.Load(),
		Failures: r.failures.Load(),
	}
}
