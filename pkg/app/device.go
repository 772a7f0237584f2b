package app

import (
	"github.com/teslashibe/go-posecam/pkg/camera"
	"github.com/teslashibe/go-posecam/pkg/device"
	"github.com/teslashibe/go-posecam/pkg/layout"
	"github.com/teslashibe/go-posecam/pkg/protocol"
	"github.com/teslashibe/go-posecam/pkg/video"
)

// initDevice wires a browser device as camera, microphone and viewport.
// Frames and audio arrive either as websocket messages or over WebRTC.
func (a *App) initDevice() {
	a.devices = device.NewHub(a.logger)
	src := camera.NewDeviceSource(a.devices.RequestCamera, a.logger)
	a.source = src

	var audio video.AudioSink
	if a.push != nil {
		audio = a.push
	}
	a.ingest = video.NewIngest(video.DefaultIngestConfig(), a.devices, src, audio, a.logger)

	a.devices.OnConnect(func(id string) {
		a.logger.Info("device connected", "device", id)
		// The newest device becomes active and needs constraints.
		a.camera.Reacquire(a.runContext(), a.resolver.Orientation())
	})
	a.devices.OnDisconnect(func(id string) {
		a.logger.Info("device disconnected", "device", id)
		a.ingest.Close(id)
	})

	a.devices.OnFrame(func(id string, frame *protocol.FrameData) {
		data, err := frame.DecodeFrameData()
		if err != nil {
			a.logger.Debug("bad frame payload", "device", id, "error", err)
			return
		}
		if err := src.PushJPEG(data); err != nil {
			a.logger.Debug("frame rejected", "device", id, "error", err)
		}
	})

	a.devices.OnMic(func(id string, mic *protocol.MicData) {
		if a.push == nil {
			return
		}
		data, err := mic.DecodeMicData()
		if err != nil {
			a.logger.Debug("bad mic payload", "device", id, "error", err)
			return
		}
		a.push.PushPCM(data, mic.SampleRate, mic.Channels)
	})

	a.devices.OnViewport(func(id string, vp *protocol.ViewportData) {
		a.SetViewport(vp.Width, vp.Height, vp.Orientation)
	})

	a.devices.OnOffer(func(id string, offer *protocol.SessionDescription) {
		if err := a.ingest.HandleOffer(a.runContext(), id, offer.SDP); err != nil {
			a.logger.Warn("webrtc offer failed", "device", id, "error", err)
		}
	})
	a.devices.OnICE(func(id string, c *protocol.ICECandidate) {
		if err := a.ingest.AddICECandidate(id, *c); err != nil {
			a.logger.Debug("ice candidate rejected", "device", id, "error", err)
		}
	})
}

// orientationOf reads a reported orientation, deriving it from the size
// when the device did not say.
func orientationOf(width, height int, reported string) layout.Orientation {
	if reported != "" {
		return layout.ParseOrientation(reported)
	}
	return layout.OrientationOf(float64(width), float64(height))
}
