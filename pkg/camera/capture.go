package camera

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-posecam/pkg/debug"
)

// CaptureSource reads a camera attached to this machine through OpenCV.
type CaptureSource struct {
	cfg    Config
	logger *slog.Logger
	slot   frameSlot

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}

	reads  atomic.Int64
	misses atomic.Int64
}

// NewCaptureSource creates a local capture source. Device indices come from
// cfg.
func NewCaptureSource(cfg Config, logger *slog.Logger) *CaptureSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &CaptureSource{cfg: cfg, logger: logger}
}

func (s *CaptureSource) Name() string { return "capture" }

// Acquire opens the device for c.Facing and starts the grab loop.
func (s *CaptureSource) Acquire(ctx context.Context, c Constraints) error {
	s.Stop()

	device := s.cfg.Device(c.Facing)
	webcam, err := gocv.VideoCaptureDevice(device)
	if err != nil {
		return fmt.Errorf("open capture device %d: %w", device, err)
	}
	if !webcam.IsOpened() {
		webcam.Close()
		return fmt.Errorf("capture device %d not available", device)
	}

	webcam.Set(gocv.VideoCaptureFrameWidth, float64(c.Width))
	webcam.Set(gocv.VideoCaptureFrameHeight, float64(c.Height))
	if c.Framerate > 0 {
		webcam.Set(gocv.VideoCaptureFPS, float64(c.Framerate))
	}
	webcam.Set(gocv.VideoCaptureBufferSize, 1)

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.mu.Lock()
	s.cancel = cancel
	s.done = done
	s.mu.Unlock()

	s.logger.Info("camera acquired",
		"device", device,
		"facing", c.Facing,
		"width", webcam.Get(gocv.VideoCaptureFrameWidth),
		"height", webcam.Get(gocv.VideoCaptureFrameHeight),
	)

	go s.grabLoop(runCtx, webcam, done)
	return nil
}

func (s *CaptureSource) grabLoop(ctx context.Context, webcam *gocv.VideoCapture, done chan struct{}) {
	defer close(done)
	defer webcam.Close()

	img := gocv.NewMat()
	defer img.Close()

	for ctx.Err() == nil {
		if ok := webcam.Read(&img); !ok || img.Empty() {
			if s.misses.Add(1)%100 == 1 {
				debug.Log("📷 capture read returned no frame (%d misses)\n", s.misses.Load())
			}
			time.Sleep(10 * time.Millisecond)
			continue
		}
		s.reads.Add(1)
		s.slot.store(img.Clone(), time.Now())
	}
}

func (s *CaptureSource) Latest() (Frame, bool) {
	return s.slot.latest()
}

// Stop releases the device and waits for the grab loop to exit. The last
// frame is kept.
func (s *CaptureSource) Stop() error {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	<-done
	return nil
}

// Close stops capture and drops the last frame.
func (s *CaptureSource) Close() error {
	s.Stop()
	s.slot.close()
	return nil
}

// Reads returns the number of frames grabbed.
func (s *CaptureSource) Reads() int64 { return s.reads.Load() }

var _ Source = (*CaptureSource)(nil)
