package camera

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"gocv.io/x/gocv"
)

// RequestFunc asks the connected device to start its camera with c.
type RequestFunc func(c Constraints) error

// DeviceSource serves frames published by a browser device, either JPEGs
// over the device websocket or frames decoded from its WebRTC track.
type DeviceSource struct {
	logger *slog.Logger
	slot   frameSlot

	mu      sync.Mutex
	request RequestFunc
	current Constraints
	active  bool

	frames  atomic.Int64
	decodes atomic.Int64 // JPEGs that failed to decode
}

// NewDeviceSource creates a device source. request may be nil until a
// device connects; see SetRequester.
func NewDeviceSource(request RequestFunc, logger *slog.Logger) *DeviceSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &DeviceSource{request: request, logger: logger}
}

func (s *DeviceSource) Name() string { return "device" }

// SetRequester installs the function used to send constraints.
func (s *DeviceSource) SetRequester(fn RequestFunc) {
	s.mu.Lock()
	s.request = fn
	s.mu.Unlock()
}

// Acquire sends c to the device. The device stops its old track before
// opening the new one; frames keep coming from whichever is live.
func (s *DeviceSource) Acquire(ctx context.Context, c Constraints) error {
	s.mu.Lock()
	request := s.request
	s.current = c
	s.active = true
	s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	if request == nil {
		return fmt.Errorf("no device connected")
	}
	if err := request(c); err != nil {
		return fmt.Errorf("request camera %s %dx%d: %w", c.Facing, c.Width, c.Height, err)
	}
	return nil
}

// Constraints returns the last constraints requested.
func (s *DeviceSource) Constraints() Constraints {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// PushJPEG decodes and stores a JPEG frame.
func (s *DeviceSource) PushJPEG(data []byte) error {
	img, err := gocv.IMDecode(data, gocv.IMReadColor)
	if err != nil {
		s.decodes.Add(1)
		return fmt.Errorf("decode frame: %w", err)
	}
	if img.Empty() {
		img.Close()
		s.decodes.Add(1)
		return fmt.Errorf("decode frame: empty image")
	}
	s.PushMat(img)
	return nil
}

// PushMat stores a decoded frame, taking ownership of img.
func (s *DeviceSource) PushMat(img gocv.Mat) {
	if !s.Active() {
		img.Close()
		return
	}
	s.frames.Add(1)
	s.slot.store(img, time.Now())
}

// Active reports whether frames are being accepted.
func (s *DeviceSource) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

func (s *DeviceSource) Latest() (Frame, bool) {
	return s.slot.latest()
}

// Stop ignores further frames until the next Acquire. The last frame is
// kept.
func (s *DeviceSource) Stop() error {
	s.mu.Lock()
	s.active = false
	s.mu.Unlock()
	return nil
}

// Close stops the source and drops the last frame.
func (s *DeviceSource) Close() error {
	s.Stop()
	s.slot.close()
	return nil
}

// Frames returns the number of frames accepted.
func (s *DeviceSource) Frames() int64 { return s.frames.Load() }

var _ Source = (*DeviceSource)(nil)
