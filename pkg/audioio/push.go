package audioio

import (
	"context"
	"log/slog"
)

// PushSource delivers audio that someone else captured: the browser device
// publishing PCM over its websocket, or the Opus track of a WebRTC peer.
// Push never blocks; chunks arriving while the queue is full are dropped.
type PushSource struct {
	*stream
}

// NewPushSource creates a push source. Pushed chunks are converted to the
// configured rate and channel count.
func NewPushSource(cfg Config, logger *slog.Logger) *PushSource {
	return &PushSource{stream: newStream(cfg, logger, string(BackendPush))}
}

// Start accepts pushes until ctx is done or Stop is called.
func (p *PushSource) Start(ctx context.Context) error {
	stop, started, err := p.begin()
	if err != nil || !started {
		return err
	}

	go func() {
		select {
		case <-ctx.Done():
			p.stopRun(stop)
		case <-stop:
		}
	}()

	p.logger.Info("push audio source started", "sample_rate", p.cfg.SampleRate)
	return nil
}

// Push queues a chunk. It reports false when the source is stopped or the
// queue is full.
func (p *PushSource) Push(chunk AudioChunk) bool {
	if len(chunk.Samples) == 0 {
		return false
	}
	if chunk.SampleRate == 0 {
		chunk.SampleRate = p.cfg.SampleRate
	}
	if chunk.Channels == 0 {
		chunk.Channels = 1
	}
	return p.emit(chunk.Convert(p.cfg.SampleRate, p.cfg.Channels))
}

// PushPCM queues raw little-endian PCM16.
func (p *PushSource) PushPCM(data []byte, sampleRate, channels int) bool {
	return p.Push(ChunkFromBytes(data, sampleRate, channels))
}

var _ SourceWithStats = (*PushSource)(nil)
