package app

import (
	"github.com/teslashibe/go-posecam/pkg/camera"
	"github.com/teslashibe/go-posecam/pkg/settings"
	"github.com/teslashibe/go-posecam/pkg/web"
)

// Compile-time check that App drives the dashboard.
var _ web.Controller = (*App)(nil)

// Status implements web.Controller.
func (a *App) Status() any { return a.State() }

// Settings returns the live settings.
func (a *App) Settings() *settings.Live { return a.settings }

// Camera returns the camera manager.
func (a *App) Camera() *camera.Manager { return a.camera }

// SwitchCamera flips between the front and rear camera.
func (a *App) SwitchCamera() camera.FacingMode {
	facing, _ := a.camera.Switch(a.runContext())
	return facing
}

// SetViewport queues a canvas size and orientation report. It is applied
// on the next tick. When the queue is full the oldest report is dropped
// since only the newest one matters. Sizes larger than MaxViewport are
// scaled down keeping their aspect ratio.
func (a *App) SetViewport(width, height int, orientation string) {
	w, h := clampViewport(width, height)
	v := viewport{
		width:       w,
		height:      h,
		orientation: orientationOf(width, height, orientation),
	}
	for {
		select {
		case a.viewports <- v:
			return
		default:
		}
		select {
		case <-a.viewports:
		default:
		}
	}
}

// SetOverlayOpen shows or hides the control overlay. Closing with confirm
// persists the current settings.
func (a *App) SetOverlayOpen(open, confirm bool) error {
	was := a.overlayOpen.Swap(open)
	if open && !was {
		// Stale peaks from before the overlay opened are meaningless.
		a.meter.Reset()
	}
	if !open && confirm {
		return a.settings.Save()
	}
	return nil
}

// OverlayOpen reports whether the control overlay is showing.
func (a *App) OverlayOpen() bool { return a.overlayOpen.Load() }

// ToggleCaptions starts or stops speech recognition. It returns whether
// captions are now enabled; always false when no recognizer is configured.
func (a *App) ToggleCaptions() bool {
	if a.captions == nil {
		return false
	}
	on := a.captions.Toggle()
	if !on {
		a.pager.Clear()
	}
	return on
}

// ToggleCaptionsHidden hides or shows the caption lines without stopping
// recognition. It returns whether captions are now hidden.
func (a *App) ToggleCaptionsHidden() bool {
	return a.pager.ToggleHidden()
}

func clampViewport(width, height int) (int, int) {
	long := max(width, height)
	if long <= MaxViewport {
		return width, height
	}
	scale := float64(MaxViewport) / float64(long)
	w := max(int(float64(width)*scale), 1)
	h := max(int(float64(height)*scale), 1)
	return w, h
}
