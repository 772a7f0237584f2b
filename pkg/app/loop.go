package app

import (
	"time"

	"github.com/teslashibe/go-posecam/pkg/audioio"
	"github.com/teslashibe/go-posecam/pkg/camera"
	"github.com/teslashibe/go-posecam/pkg/captions"
	"github.com/teslashibe/go-posecam/pkg/debug"
	"github.com/teslashibe/go-posecam/pkg/device"
	"github.com/teslashibe/go-posecam/pkg/geometry"
	"github.com/teslashibe/go-posecam/pkg/layout"
	"github.com/teslashibe/go-posecam/pkg/pose"
	"github.com/teslashibe/go-posecam/pkg/render"
	"github.com/teslashibe/go-posecam/pkg/settings"
	"github.com/teslashibe/go-posecam/pkg/video"
	"github.com/teslashibe/go-posecam/pkg/vumeter"
)

// FrameQuality is the JPEG quality of frames sent to overlay viewers.
const FrameQuality = 75

type resizable interface {
	Resize(width, height int)
}

type jpegEncoder interface {
	EncodeJPEG(quality int) ([]byte, error)
}

// Tick advances the display by one frame: it drains the input queues,
// draws the trail over the latest camera frame, and publishes the result.
// Only the display loop calls Tick.
func (a *App) Tick(now time.Time) render.Stats {
	a.drain(now)

	in := render.TickInput{
		OverlayOpen: a.overlayOpen.Load(),
		Meter:       a.meter.Reading(now),
	}

	frame, ok := a.camera.Latest()
	if ok {
		defer frame.Close()
		a.resolver.SetSource(geometry.Sz(float64(frame.Width), float64(frame.Height)))
		in.Frame = &frame.Mat
	}

	st := a.pipeline.Tick(now, in)

	a.mu.Lock()
	a.ticks++
	ticks := a.ticks
	a.last = st
	a.lastTick = now
	a.mu.Unlock()

	a.publish(ticks)
	return st
}

// drain applies everything queued since the last tick. Each queue is
// drained only up to its length at entry so a busy producer cannot stall
// the frame.
func (a *App) drain(now time.Time) {
	for n := len(a.snapshots); n > 0; n-- {
		a.buffer.Append(<-a.snapshots)
	}

	for n := len(a.levels); n > 0; n-- {
		a.meter.Sample(<-a.levels, now)
	}

	if a.captions != nil {
		texts := a.captions.Texts()
		for n := len(texts); n > 0; n-- {
			t := <-texts
			if t.Final {
				debug.CaptionLog("💬 %s\n", t.Text)
			}
			a.pager.Add(t)
		}
	}

	for n := len(a.viewports); n > 0; n-- {
		a.applyViewport(<-a.viewports)
	}
}

// applyViewport resizes the canvas and, when the orientation flips,
// updates the layout at once and reacquires the camera after it settles.
func (a *App) applyViewport(v viewport) {
	if v.width > 0 && v.height > 0 {
		if r, ok := a.canvas.(resizable); ok {
			r.Resize(v.width, v.height)
		}
		a.resolver.SetCanvas(canvasSize(v))
	}
	if a.resolver.SetOrientation(v.orientation) {
		debug.Log("🔄 orientation: %s\n", v.orientation)
		a.debouncer.Trigger(v.orientation)
	}
}

func (a *App) publish(ticks uint64) {
	if a.output == nil {
		return
	}
	if a.output.WantsFrame() {
		if enc, ok := a.canvas.(jpegEncoder); ok {
			jpeg, err := enc.EncodeJPEG(FrameQuality)
			if err != nil {
				a.encodeErrors.Add(1)
			} else {
				a.output.SendFrame(jpeg)
			}
		}
	}
	if ticks%a.statusEvery == 0 {
		a.output.PublishStatus(a.State())
	}
}

// Status is the full application state shown on the dashboard.
type Status struct {
	Ticks       uint64               `json:"ticks"`
	LastTick    time.Time            `json:"last_tick"`
	Render      render.Stats         `json:"render"`
	Layout      layout.Result        `json:"layout"`
	Orientation layout.Orientation   `json:"orientation"`
	Settings    settings.Settings    `json:"settings"`
	OverlayOpen bool                 `json:"overlay_open"`
	Meter       vumeter.Reading      `json:"meter"`
	Captions    CaptionStatus        `json:"captions"`
	Camera      camera.Stats         `json:"camera"`
	Detector    pose.RunnerStats     `json:"detector"`
	History     int                  `json:"history"`
	Dropped     DropStats            `json:"dropped"`
	Audio       *audioio.SourceStats `json:"audio,omitempty"`
	Devices     *device.Stats        `json:"devices,omitempty"`
	Ingest      *video.IngestStats   `json:"ingest,omitempty"`
}

// CaptionStatus combines what is on screen with the recognizer session.
type CaptionStatus struct {
	captions.View
	Enabled bool                   `json:"enabled"`
	Session *captions.SessionStats `json:"session,omitempty"`
}

// DropStats counts inputs discarded because a queue was full.
type DropStats struct {
	Snapshots    int64 `json:"snapshots"`
	Levels       int64 `json:"levels"`
	EncodeErrors int64 `json:"encode_errors"`
}

// State returns a snapshot of the application state.
func (a *App) State() Status {
	a.mu.Lock()
	st := Status{
		Ticks:    a.ticks,
		LastTick: a.lastTick,
		Render:   a.last,
	}
	a.mu.Unlock()

	st.Layout = a.resolver.Current()
	st.Orientation = a.resolver.Orientation()
	st.Settings = a.settings.Get()
	st.OverlayOpen = a.overlayOpen.Load()
	st.Meter = a.meter.Reading(st.LastTick)
	st.Camera = a.camera.Stats()
	st.Detector = a.runner.Stats()
	st.History = a.buffer.Len()
	st.Dropped = DropStats{
		Snapshots:    a.snapshotDrops.Load(),
		Levels:       a.levelDrops.Load(),
		EncodeErrors: a.encodeErrors.Load(),
	}

	st.Captions.View = a.pager.View()
	if a.captions != nil {
		ss := a.captions.Stats()
		st.Captions.Enabled = a.captions.Enabled()
		st.Captions.Session = &ss
	}
	if s, ok := a.audio.(audioio.SourceWithStats); ok {
		as := s.Stats()
		st.Audio = &as
	}
	if a.devices != nil {
		ds := a.devices.GetStats()
		st.Devices = &ds
	}
	if a.ingest != nil {
		is := a.ingest.Stats()
		st.Ingest = &is
	}
	return st
}
