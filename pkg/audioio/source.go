package audioio

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
)

// AudioChunk represents a chunk of audio data.
type AudioChunk struct {
	// Samples contains interleaved PCM16 samples.
	Samples []int16

	SampleRate int
	Channels   int
}

// Bytes returns the chunk as little-endian PCM16.
func (c *AudioChunk) Bytes() []byte {
	return SamplesToBytes(c.Samples)
}

// ChunkFromBytes builds a chunk from little-endian PCM16.
func ChunkFromBytes(data []byte, sampleRate, channels int) AudioChunk {
	return AudioChunk{
		Samples:    BytesToSamples(data),
		SampleRate: sampleRate,
		Channels:   channels,
	}
}

// Duration returns the duration of the chunk in seconds.
func (c *AudioChunk) Duration() float64 {
	if c.SampleRate == 0 || c.Channels == 0 {
		return 0
	}
	return float64(len(c.Samples)) / float64(c.SampleRate*c.Channels)
}

// Convert returns the chunk at the given rate and channel count. Any
// conversion goes through mono.
func (c AudioChunk) Convert(sampleRate, channels int) AudioChunk {
	if c.SampleRate == sampleRate && c.Channels == channels {
		return c
	}
	samples := c.Samples
	if c.Channels == 2 {
		samples = StereoToMono(samples)
	}
	if c.SampleRate != sampleRate {
		samples = Resample(samples, c.SampleRate, sampleRate)
	}
	if channels == 2 {
		samples = MonoToStereo(samples)
	}
	return AudioChunk{Samples: samples, SampleRate: sampleRate, Channels: channels}
}

// Source delivers microphone audio.
type Source interface {
	// Start begins capture. Starting a running source is a no-op.
	Start(ctx context.Context) error

	// Stop halts capture and closes the stream channel.
	// It is safe to call Stop multiple times.
	Stop() error

	// Read returns the next chunk. Returns io.EOF once stopped.
	Read(ctx context.Context) (AudioChunk, error)

	// Stream returns the chunk channel for the current run.
	Stream() <-chan AudioChunk

	Config() Config

	// Name returns the backend name ("push", "exec", "mock").
	Name() string

	// Close releases all resources. A closed source cannot restart.
	io.Closer
}

// SourceStats contains statistics about the audio source.
type SourceStats struct {
	ChunksRead  int64  `json:"chunks_read"`
	SamplesRead int64  `json:"samples_read"`
	Overruns    int64  `json:"overruns"` // chunks dropped on a full queue
	Running     bool   `json:"running"`
	Backend     string `json:"backend"`
}

// SourceWithStats extends Source with statistics.
type SourceWithStats interface {
	Source
	Stats() SourceStats
}

// stream is the run/stop bookkeeping shared by every backend.
type stream struct {
	cfg     Config
	logger  *slog.Logger
	backend string

	mu       sync.Mutex
	running  bool
	closed   bool
	streamCh chan AudioChunk
	stopCh   chan struct{}

	chunks   atomic.Int64
	samples  atomic.Int64
	overruns atomic.Int64
}

func newStream(cfg Config, logger *slog.Logger, backend string) *stream {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultConfig().QueueSize
	}
	return &stream{
		cfg:      cfg,
		logger:   logger,
		backend:  backend,
		streamCh: make(chan AudioChunk, cfg.QueueSize),
		stopCh:   make(chan struct{}),
	}
}

// begin marks the stream running and returns the stop channel for this
// run. started is false if the stream was already running.
func (s *stream) begin() (stop <-chan struct{}, started bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, false, io.ErrClosedPipe
	}
	if s.running {
		return s.stopCh, false, nil
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.streamCh = make(chan AudioChunk, s.cfg.QueueSize)
	return s.stopCh, true, nil
}

// emit queues a chunk without blocking. A full queue drops the chunk.
func (s *stream) emit(chunk AudioChunk) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return false
	}
	select {
	case s.streamCh <- chunk:
		s.chunks.Add(1)
		s.samples.Add(int64(len(chunk.Samples)))
		return true
	default:
		if s.overruns.Add(1)%100 == 1 {
			s.logger.Debug("audio queue full, dropping chunk", "backend", s.backend, "overruns", s.overruns.Load())
		}
		return false
	}
}

func (s *stream) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}
	s.running = false
	close(s.stopCh)
	close(s.streamCh)

	s.logger.Info("audio source stopped", "backend", s.backend)
	return nil
}

// stopRun stops the stream only if stop still belongs to the current run,
// so a goroutine from an earlier run cannot stop a restarted source.
func (s *stream) stopRun(stop <-chan struct{}) {
	s.mu.Lock()
	current := s.running && s.stopCh == stop
	s.mu.Unlock()
	if current {
		s.Stop()
	}
}

func (s *stream) Read(ctx context.Context) (AudioChunk, error) {
	ch := s.Stream()
	select {
	case <-ctx.Done():
		return AudioChunk{}, ctx.Err()
	case chunk, ok := <-ch:
		if !ok {
			return AudioChunk{}, io.EOF
		}
		return chunk, nil
	}
}

func (s *stream) Stream() <-chan AudioChunk {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.streamCh
}

func (s *stream) Config() Config {
	return s.cfg
}

func (s *stream) Name() string {
	return s.backend
}

func (s *stream) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *stream) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	return s.Stop()
}

func (s *stream) Stats() SourceStats {
	return SourceStats{
		ChunksRead:  s.chunks.Load(),
		SamplesRead: s.samples.Load(),
		Overruns:    s.overruns.Load(),
		Running:     s.Running(),
		Backend:     s.backend,
	}
}
