package video

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/pion/rtp/codecs"
	"github.com/pion/webrtc/v3"
	"gopkg.in/hraban/opus.v2"

	"github.com/teslashibe/go-posecam/pkg/audioio"
	"github.com/teslashibe/go-posecam/pkg/protocol"
)

const (
	// Opus always decodes at 48kHz in WebRTC.
	opusSampleRate = 48000
	opusChannels   = 1
	// 120ms at 48kHz, the longest Opus frame.
	opusFrameSamples = 5760
)

// ErrNoPeer is returned when a device has no peer connection.
var ErrNoPeer = errors.New("no peer connection for device")

// Signaler carries answers and local candidates back to a device.
type Signaler interface {
	SendAnswer(deviceID, sdp string) error
	SendICE(deviceID string, c protocol.ICECandidate) error
}

// FrameSink receives decoded camera frames.
type FrameSink interface {
	PushJPEG(jpeg []byte) error
}

// AudioSink receives decoded microphone audio.
type AudioSink interface {
	Push(chunk audioio.AudioChunk) bool
}

// IngestConfig configures WebRTC ingest.
type IngestConfig struct {
	// ICEServers used for the peer connection. Empty means host candidates only.
	ICEServers []string

	// Quality of the JPEGs produced by the decoder (1-100).
	Quality int
}

// DefaultIngestConfig returns an ingest config for a local network.
func DefaultIngestConfig() IngestConfig {
	return IngestConfig{Quality: 85}
}

type peer struct {
	pc     *webrtc.PeerConnection
	cancel context.CancelFunc
}

// Ingest answers device offers and routes the incoming tracks: video into
// the frame sink via the H264 decoder, audio into the audio sink.
type Ingest struct {
	cfg      IngestConfig
	signaler Signaler
	frames   FrameSink
	audio    AudioSink
	logger   *slog.Logger

	// NewDecoder builds the per-peer H264 decoder. Tests replace it.
	NewDecoder func(quality int, onFrame func([]byte)) *Decoder

	mu    sync.Mutex
	peers map[string]*peer

	videoPackets atomic.Int64
	audioPackets atomic.Int64
	frameErrors  atomic.Int64
	audioDrops   atomic.Int64
}

// IngestStats reports ingest counters.
type IngestStats struct {
	Peers        int   `json:"peers"`
	VideoPackets int64 `json:"video_packets"`
	AudioPackets int64 `json:"audio_packets"`
	FrameErrors  int64 `json:"frame_errors"`
	AudioDrops   int64 `json:"audio_drops"`
}

// NewIngest creates an ingest. frames or audio may be nil to ignore a track.
func NewIngest(cfg IngestConfig, signaler Signaler, frames FrameSink, audio AudioSink, logger *slog.Logger) *Ingest {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ingest{
		cfg:        cfg,
		signaler:   signaler,
		frames:     frames,
		audio:      audio,
		logger:     logger.With("component", "video-ingest"),
		NewDecoder: NewDecoder,
		peers:      make(map[string]*peer),
	}
}

// HandleOffer answers an SDP offer from a device, replacing any previous
// peer connection for it.
func (in *Ingest) HandleOffer(ctx context.Context, deviceID, sdp string) error {
	in.Close(deviceID)

	config := webrtc.Configuration{}
	if len(in.cfg.ICEServers) > 0 {
		config.ICEServers = []webrtc.ICEServer{{URLs: in.cfg.ICEServers}}
	}
	pc, err := webrtc.NewPeerConnection(config)
	if err != nil {
		return fmt.Errorf("new peer connection: %w", err)
	}

	for _, kind := range []webrtc.RTPCodecType{webrtc.RTPCodecTypeVideo, webrtc.RTPCodecTypeAudio} {
		if _, err := pc.AddTransceiverFromKind(kind, webrtc.RTPTransceiverInit{
			Direction: webrtc.RTPTransceiverDirectionRecvonly,
		}); err != nil {
			pc.Close()
			return fmt.Errorf("add %s transceiver: %w", kind, err)
		}
	}

	peerCtx, cancel := context.WithCancel(ctx)
	p := &peer{pc: pc, cancel: cancel}

	pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		in.logger.Info("track received", "device", deviceID, "kind", track.Kind().String(), "codec", track.Codec().MimeType)
		switch track.Kind() {
		case webrtc.RTPCodecTypeVideo:
			go in.readVideo(peerCtx, deviceID, track)
		case webrtc.RTPCodecTypeAudio:
			go in.readAudio(peerCtx, deviceID, track)
		}
	})

	pc.OnICECandidate(func(candidate *webrtc.ICECandidate) {
		if candidate == nil {
			return
		}
		ci := candidate.ToJSON()
		c := protocol.ICECandidate{
			Candidate:     ci.Candidate,
			SDPMid:        ci.SDPMid,
			SDPMLineIndex: ci.SDPMLineIndex,
		}
		if err := in.signaler.SendICE(deviceID, c); err != nil {
			in.logger.Debug("send candidate failed", "device", deviceID, "error", err)
		}
	})

	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		in.logger.Info("connection state", "device", deviceID, "state", state.String())
		if state == webrtc.PeerConnectionStateFailed {
			in.closePeer(deviceID, p)
		}
	})

	if err := pc.SetRemoteDescription(webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: sdp}); err != nil {
		cancel()
		pc.Close()
		return fmt.Errorf("set remote description: %w", err)
	}
	answer, err := pc.CreateAnswer(nil)
	if err != nil {
		cancel()
		pc.Close()
		return fmt.Errorf("create answer: %w", err)
	}
	if err := pc.SetLocalDescription(answer); err != nil {
		cancel()
		pc.Close()
		return fmt.Errorf("set local description: %w", err)
	}

	in.mu.Lock()
	in.peers[deviceID] = p
	in.mu.Unlock()

	if err := in.signaler.SendAnswer(deviceID, answer.SDP); err != nil {
		in.Close(deviceID)
		return fmt.Errorf("send answer: %w", err)
	}
	return nil
}

// AddICECandidate adds a remote candidate from a device.
func (in *Ingest) AddICECandidate(deviceID string, c protocol.ICECandidate) error {
	in.mu.Lock()
	p := in.peers[deviceID]
	in.mu.Unlock()
	if p == nil {
		return ErrNoPeer
	}
	return p.pc.AddICECandidate(webrtc.ICECandidateInit{
		Candidate:     c.Candidate,
		SDPMid:        c.SDPMid,
		SDPMLineIndex: c.SDPMLineIndex,
	})
}

func (in *Ingest) readVideo(ctx context.Context, deviceID string, track *webrtc.TrackRemote) {
	dec := in.NewDecoder(in.cfg.Quality, func(jpeg []byte) {
		if in.frames == nil {
			return
		}
		if err := in.frames.PushJPEG(jpeg); err != nil {
			in.frameErrors.Add(1)
		}
	})
	if err := dec.Start(ctx); err != nil {
		in.logger.Error("decoder start failed", "device", deviceID, "error", err)
		return
	}
	defer dec.Close()

	var depacketizer codecs.H264Packet
	for {
		pkt, _, err := track.ReadRTP()
		if err != nil {
			return
		}
		in.videoPackets.Add(1)

		nal, err := depacketizer.Unmarshal(pkt.Payload)
		if err != nil || len(nal) == 0 {
			continue
		}
		if _, err := dec.Write(nal); err != nil {
			in.logger.Debug("decoder write failed", "device", deviceID, "error", err)
			return
		}
	}
}

func (in *Ingest) readAudio(ctx context.Context, deviceID string, track *webrtc.TrackRemote) {
	decoder, err := opus.NewDecoder(opusSampleRate, opusChannels)
	if err != nil {
		in.logger.Error("opus decoder failed", "device", deviceID, "error", err)
		return
	}
	frame := make([]int16, opusFrameSamples)

	for ctx.Err() == nil {
		pkt, _, err := track.ReadRTP()
		if err != nil {
			return
		}
		in.audioPackets.Add(1)
		in.decodeAudio(decoder, pkt.Payload, frame)
	}
}

// decodeAudio decodes one Opus packet and pushes it to the audio sink.
func (in *Ingest) decodeAudio(decoder *opus.Decoder, payload []byte, frame []int16) {
	if in.audio == nil || len(payload) == 0 {
		return
	}
	n, err := decoder.Decode(payload, frame)
	if err != nil || n == 0 {
		return
	}
	samples := make([]int16, n*opusChannels)
	copy(samples, frame[:n*opusChannels])
	if !in.audio.Push(audioio.AudioChunk{Samples: samples, SampleRate: opusSampleRate, Channels: opusChannels}) {
		in.audioDrops.Add(1)
	}
}

// Close tears down a device's peer connection.
func (in *Ingest) Close(deviceID string) {
	in.mu.Lock()
	p := in.peers[deviceID]
	in.mu.Unlock()
	if p != nil {
		in.closePeer(deviceID, p)
	}
}

// closePeer closes p and forgets it if it is still the device's peer.
func (in *Ingest) closePeer(deviceID string, p *peer) {
	in.mu.Lock()
	if in.peers[deviceID] == p {
		delete(in.peers, deviceID)
	}
	in.mu.Unlock()

	p.cancel()
	if err := p.pc.Close(); err != nil {
		in.logger.Debug("peer close failed", "device", deviceID, "error", err)
	}
}

// CloseAll tears down every peer connection.
func (in *Ingest) CloseAll() {
	in.mu.Lock()
	ids := make([]string, 0, len(in.peers))
	for id := range in.peers {
		ids = append(ids, id)
	}
	in.mu.Unlock()
	for _, id := range ids {
		in.Close(id)
	}
}

// Stats returns ingest counters.
func (in *Ingest) Stats() IngestStats {
	in.mu.Lock()
	peers := len(in.peers)
	in.mu.Unlock()
	return IngestStats{
		Peers:        peers,
		VideoPackets: in.videoPackets.Load(),
		AudioPackets: in.audioPackets.Load(),
		FrameErrors:  in.frameErrors.Load(),
		AudioDrops:   in.audioDrops.Load(),
	}
}
