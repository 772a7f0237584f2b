package captions

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/teslashibe/go-posecam/pkg/audioio"
	"github.com/teslashibe/go-posecam/pkg/debug"
)

// SessionConfig tunes the supervisor.
type SessionConfig struct {
	AudioQueue int // chunks buffered for the recognizer
	TextQueue  int // results buffered for the app

	// RestartDelay is the pause before restarting after the service ended
	// the stream. Other failures back off exponentially up to MaxBackoff.
	RestartDelay time.Duration
	MaxBackoff   time.Duration
}

func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		AudioQueue:   64,
		TextQueue:    32,
		RestartDelay: 500 * time.Millisecond,
		MaxBackoff:   10 * time.Second,
	}
}

// SessionStats reports supervisor activity.
type SessionStats struct {
	Recognizer  string `json:"recognizer"`
	Enabled     bool   `json:"enabled"`
	Unsupported bool   `json:"unsupported"`
	Running     bool   `json:"running"`
	Restarts    int64  `json:"restarts"`
	AudioDrops  int64  `json:"audio_drops"`
	TextDrops   int64  `json:"text_drops"`
}

// Session keeps a recognizer running while captions are enabled.
//
// Audio is fed with Feed and results are read from Texts; both queues are
// bounded and drop rather than block. Disable stops the current run; a run
// that ends on its own is restarted as long as captions stay enabled.
// ErrUnsupported disables captions for the life of the session.
type Session struct {
	rec    Recognizer
	cfg    SessionConfig
	logger *slog.Logger

	audio chan audioio.AudioChunk
	texts chan Text
	wake  chan struct{}

	mu          sync.Mutex
	enabled     bool
	unsupported bool
	running     bool
	cancel      context.CancelFunc

	restarts   atomic.Int64
	audioDrops atomic.Int64
	textDrops  atomic.Int64
}

// NewSession creates a disabled session around rec.
func NewSession(rec Recognizer, cfg SessionConfig, logger *slog.Logger) *Session {
	def := DefaultSessionConfig()
	if cfg.AudioQueue <= 0 {
		cfg.AudioQueue = def.AudioQueue
	}
	if cfg.TextQueue <= 0 {
		cfg.TextQueue = def.TextQueue
	}
	if cfg.RestartDelay <= 0 {
		cfg.RestartDelay = def.RestartDelay
	}
	if cfg.MaxBackoff < cfg.RestartDelay {
		cfg.MaxBackoff = cfg.RestartDelay
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		rec:    rec,
		cfg:    cfg,
		logger: logger,
		audio:  make(chan audioio.AudioChunk, cfg.AudioQueue),
		texts:  make(chan Text, cfg.TextQueue),
		wake:   make(chan struct{}, 1),
	}
}

// Enable turns captions on. It reports false if recognition turned out to
// be unsupported.
func (s *Session) Enable() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.unsupported {
		return false
	}
	s.enabled = true
	s.signal()
	return true
}

// Disable turns captions off and stops the running recognizer.
func (s *Session) Disable() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enabled = false
	if s.cancel != nil {
		s.cancel()
	}
	s.signal()
}

// Toggle flips captions and returns whether they are now enabled.
func (s *Session) Toggle() bool {
	if s.Enabled() {
		s.Disable()
		return false
	}
	return s.Enable()
}

func (s *Session) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enabled
}

// Feed queues audio for the recognizer. Audio is discarded while captions
// are disabled or when the queue is full.
func (s *Session) Feed(chunk audioio.AudioChunk) bool {
	if !s.Enabled() {
		return false
	}
	select {
	case s.audio <- chunk:
		return true
	default:
		s.audioDrops.Add(1)
		return false
	}
}

// Texts returns the result queue.
func (s *Session) Texts() <-chan Text {
	return s.texts
}

func (s *Session) Stats() SessionStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SessionStats{
		Recognizer:  s.rec.Name(),
		Enabled:     s.enabled,
		Unsupported: s.unsupported,
		Running:     s.running,
		Restarts:    s.restarts.Load(),
		AudioDrops:  s.audioDrops.Load(),
		TextDrops:   s.textDrops.Load(),
	}
}

// Run supervises the recognizer until ctx is done.
func (s *Session) Run(ctx context.Context) error {
	backoff := s.cfg.RestartDelay

	for {
		if !s.waitEnabled(ctx) {
			return nil
		}

		runCtx, cancel := context.WithCancel(ctx)
		s.mu.Lock()
		s.cancel = cancel
		s.running = true
		s.mu.Unlock()

		s.drainAudio()
		err := s.rec.Run(runCtx, s.audio, s.emit)
		cancel()

		s.mu.Lock()
		s.cancel = nil
		s.running = false
		enabled := s.enabled
		s.mu.Unlock()

		if ctx.Err() != nil {
			return nil
		}
		if errors.Is(err, ErrUnsupported) {
			s.logger.Info("captions unavailable", "recognizer", s.rec.Name(), "reason", err)
			s.mu.Lock()
			s.unsupported = true
			s.enabled = false
			s.mu.Unlock()
			continue
		}
		if !enabled {
			continue
		}

		delay := s.cfg.RestartDelay
		if Recoverable(err) {
			backoff = s.cfg.RestartDelay
			debug.CaptionLog("🎙️  %s session ended, restarting\n", s.rec.Name())
		} else {
			s.logger.Warn("caption recognizer failed", "recognizer", s.rec.Name(), "error", err, "retry_in", backoff)
			delay = backoff
			backoff = min(backoff*2, s.cfg.MaxBackoff)
		}
		s.restarts.Add(1)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
	}
}

func (s *Session) waitEnabled(ctx context.Context) bool {
	for {
		if s.Enabled() {
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-s.wake:
		}
	}
}

// drainAudio discards audio queued before this run started.
func (s *Session) drainAudio() {
	for {
		select {
		case <-s.audio:
		default:
			return
		}
	}
}

func (s *Session) emit(text string, final bool) {
	select {
	case s.texts <- Text{Text: text, Final: final, At: time.Now()}:
	default:
		s.textDrops.Add(1)
	}
}

// signal wakes Run; callers hold mu.
func (s *Session) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}
