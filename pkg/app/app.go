// Package app is the posecam orchestrator. App owns every piece of mutable
// state; the camera, detector, microphone and recognizer feed it through
// bounded queues that the display loop drains once per tick.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/teslashibe/go-posecam/internal/config"
	"github.com/teslashibe/go-posecam/pkg/audioio"
	"github.com/teslashibe/go-posecam/pkg/camera"
	"github.com/teslashibe/go-posecam/pkg/captions"
	"github.com/teslashibe/go-posecam/pkg/debug"
	"github.com/teslashibe/go-posecam/pkg/device"
	"github.com/teslashibe/go-posecam/pkg/geometry"
	"github.com/teslashibe/go-posecam/pkg/history"
	"github.com/teslashibe/go-posecam/pkg/layout"
	"github.com/teslashibe/go-posecam/pkg/pose"
	"github.com/teslashibe/go-posecam/pkg/render"
	"github.com/teslashibe/go-posecam/pkg/settings"
	"github.com/teslashibe/go-posecam/pkg/video"
	"github.com/teslashibe/go-posecam/pkg/vumeter"
	"github.com/teslashibe/go-posecam/pkg/web"
)

// Queue depths. The display tick drains them far faster than they fill.
const (
	snapshotQueue = 16
	levelQueue    = 64
	viewportQueue = 8
)

// MaxViewport bounds the longer side of a reported canvas, in pixels.
const MaxViewport = 4096

// Output receives what the display loop produces.
type Output interface {
	// WantsFrame reports whether anyone is watching the overlay, so the
	// loop can skip JPEG encoding.
	WantsFrame() bool
	SendFrame(jpeg []byte)
	PublishStatus(status any)
}

// App is the main posecam application orchestrator.
// It manages all components and their lifecycle.
type App struct {
	config config.Config
	logger *slog.Logger

	// Rendering core
	settings  *settings.Live
	buffer    *history.Buffer
	resolver  *layout.Resolver
	debouncer *layout.Debouncer
	meter     *vumeter.Meter
	pager     *captions.Pager
	canvas    render.Canvas
	pipeline  *render.Pipeline

	// Collaborators
	source     camera.Source
	camera     *camera.Manager
	detector   pose.Detector
	runner     *pose.Runner
	audio      audioio.Source
	recognizer captions.Recognizer
	captions   *captions.Session

	// Browser device mode
	devices *device.Hub
	ingest  *video.Ingest
	push    *audioio.PushSource

	// Dashboard
	server        *web.Server
	output        Output
	logs          *web.LogBuffer
	store         settings.Store
	statusEvery   uint64
	headless      bool
	captionsKnown bool

	// Bounded input queues, drained once per tick
	snapshots chan pose.Snapshot
	levels    chan float64
	viewports chan viewport

	overlayOpen atomic.Bool

	mu       sync.Mutex
	ctx      context.Context
	ticks    uint64
	last     render.Stats
	lastTick time.Time

	snapshotDrops atomic.Int64
	levelDrops    atomic.Int64
	encodeErrors  atomic.Int64
}

type viewport struct {
	width, height int
	orientation   layout.Orientation
}

// Option customizes an App. Components not provided are built by Init.
type Option func(*App)

// WithDetector uses d instead of loading the configured model.
func WithDetector(d pose.Detector) Option { return func(a *App) { a.detector = d } }

// WithCameraSource uses s instead of the configured camera source.
func WithCameraSource(s camera.Source) Option { return func(a *App) { a.source = s } }

// WithAudioSource uses s instead of the configured microphone.
func WithAudioSource(s audioio.Source) Option { return func(a *App) { a.audio = s } }

// WithRecognizer uses r for captions regardless of the configured recognizer.
func WithRecognizer(r captions.Recognizer) Option {
	return func(a *App) {
		a.recognizer = r
		a.captionsKnown = true
	}
}

// WithCanvas draws on c instead of an OpenCV canvas.
func WithCanvas(c render.Canvas) Option { return func(a *App) { a.canvas = c } }

// WithSettingsStore persists settings to s instead of the configured file.
func WithSettingsStore(s settings.Store) Option { return func(a *App) { a.store = s } }

// WithOutput sends frames and status to o instead of the web dashboard.
func WithOutput(o Output) Option {
	return func(a *App) {
		a.output = o
		a.headless = true
	}
}

// WithLogBuffer streams log records to the dashboard.
func WithLogBuffer(b *web.LogBuffer) Option { return func(a *App) { a.logs = b } }

// WithLogger sets the application logger.
func WithLogger(l *slog.Logger) Option { return func(a *App) { a.logger = l } }

// New creates a posecam application with the given configuration.
func New(cfg config.Config, opts ...Option) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	a := &App{
		config:      cfg,
		buffer:      history.New(),
		pager:       captions.NewPager(captions.MaxLines),
		statusEvery: statusInterval(cfg.TickInterval),
		snapshots:   make(chan pose.Snapshot, snapshotQueue),
		levels:      make(chan float64, levelQueue),
		viewports:   make(chan viewport, viewportQueue),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		a.logger = slog.Default()
	}
	return a, nil
}

// statusInterval publishes status about five times a second.
func statusInterval(tick time.Duration) uint64 {
	n := uint64(200 * time.Millisecond / tick)
	return max(n, 1)
}

// Init initializes all components.
// Call this after New() and before Run().
func (a *App) Init() error {
	fmt.Println("📷 posecam - live pose overlay")
	fmt.Println("==============================")
	if debug.Enabled {
		fmt.Println("🐛 Debug mode enabled")
	}

	// Settings
	if a.store == nil {
		a.store = settings.NewJSONStore(a.config.SettingsPath)
	}
	a.settings = settings.NewLive(a.store, a.logger)
	if err := a.settings.Load(); err != nil {
		fmt.Printf("⚠️  Settings: %v (using defaults)\n", err)
	}
	a.meter = vumeter.New()

	// Microphone. A browser device is also the microphone.
	deviceFed := a.source == nil && a.config.Source == config.SourceDevice
	if a.audio == nil {
		src, err := audioio.NewSource(a.config.Audio, deviceFed, a.logger)
		if err != nil {
			return fmt.Errorf("audio: %w", err)
		}
		a.audio = src
	}
	if push, ok := a.audio.(*audioio.PushSource); ok {
		a.push = push
	}
	fmt.Printf("🎤 Microphone: %s\n", a.audio.Name())

	// Camera
	if a.source == nil {
		switch a.config.Source {
		case config.SourceLocal:
			a.source = camera.NewCaptureSource(a.config.Camera, a.logger)
		default:
			a.initDevice()
		}
	}
	a.camera = camera.NewManager(a.source, a.config.Camera, a.logger)
	a.camera.OnConfigChange = func(camera.Config) error {
		a.camera.Reacquire(a.runContext(), a.resolver.Orientation())
		return nil
	}
	fmt.Printf("📹 Camera: %s (%s)\n", a.source.Name(), a.camera.Facing())

	// Pose model
	if a.detector == nil {
		fmt.Print("🧍 Loading pose model... ")
		det, err := pose.NewYOLO(a.config.Pose)
		if err != nil {
			fmt.Println("❌")
			return fmt.Errorf("pose model: %w", err)
		}
		a.detector = det
		fmt.Println("✅")
	}
	a.runner = pose.NewRunner(a.detector, a.camera, a.config.DetectEvery, a.logger)
	a.runner.OnResult(a.enqueueSnapshot)

	// Captions
	a.initCaptions()

	// Rendering core
	if a.canvas == nil {
		a.canvas = render.NewMatCanvas(a.config.CanvasWidth, a.config.CanvasHeight)
	}
	a.resolver = layout.NewResolver(a.canvas.Size())
	a.debouncer = layout.NewDebouncer(a.config.Settle, a.onOrientationSettled)
	a.pipeline = render.NewPipeline(a.canvas, a.buffer, a.resolver, a.settings.Confidence, render.DefaultOptions())

	// Dashboard
	if !a.headless {
		a.server = web.NewServer(a.config.Port, a.config.WebRoot, a, a.logs, a.logger)
		if a.devices != nil {
			a.devices.RegisterRoutes(a.server.App())
			a.devices.RegisterAPIRoutes(a.server.API())
		}
		a.output = a.server
	}
	return nil
}

func (a *App) initCaptions() {
	if !a.captionsKnown {
		switch a.config.Captions {
		case config.CaptionsRealtime:
			cfg := captions.DefaultRealtimeConfig()
			cfg.APIKey = a.config.OpenAIKey
			cfg.Language = a.config.Language
			a.recognizer = captions.NewRealtimeRecognizer(cfg, a.logger)
		case config.CaptionsGoogle:
			cfg := captions.DefaultGoogleConfig()
			cfg.APIKey = a.config.GoogleKey
			if a.config.Language != "" {
				cfg.Language = a.config.Language
			}
			a.recognizer = captions.NewGoogleRecognizer(cfg, a.logger)
		}
	}
	if a.recognizer == nil {
		fmt.Println("💬 Captions: off")
		return
	}
	a.captions = captions.NewSession(a.recognizer, captions.DefaultSessionConfig(), a.logger)
	a.captions.Enable()
	fmt.Printf("💬 Captions: %s\n", a.recognizer.Name())
}

// Run starts the background workers and drives the display tick.
// Blocks until context is cancelled.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	a.mu.Lock()
	a.ctx = ctx
	a.mu.Unlock()

	fmt.Println("\n🎬 posecam is running (Ctrl+C to exit)")

	if a.server != nil {
		a.server.StartAsync(ctx)
	}

	// Failure is logged by the manager; the loop keeps drawing black.
	a.camera.Reacquire(ctx, a.resolver.Orientation())

	var wg sync.WaitGroup
	if err := a.audio.Start(ctx); err != nil {
		fmt.Printf("⚠️  Microphone unavailable: %v\n", err)
	} else {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.pumpAudio(ctx)
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		a.runner.Run(ctx)
	}()

	if a.captions != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := a.captions.Run(ctx); err != nil {
				a.logger.Warn("captions stopped", "error", err)
			}
		}()
	}

	ticker := time.NewTicker(a.config.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			a.audio.Stop()
			wg.Wait()
			return nil
		case now := <-ticker.C:
			a.Tick(now)
		}
	}
}

// Shutdown gracefully shuts down all components.
func (a *App) Shutdown() {
	fmt.Println("\n👋 Goodbye!")

	if a.debouncer != nil {
		a.debouncer.Stop()
	}
	if a.ingest != nil {
		a.ingest.CloseAll()
	}
	if a.camera != nil {
		a.camera.Stop()
	}
	closeQuietly(a.logger, "camera", a.source)
	closeQuietly(a.logger, "audio", a.audio)
	closeQuietly(a.logger, "detector", a.detector)
	closeQuietly(a.logger, "canvas", a.canvas)
	if a.settings != nil {
		a.settings.Close()
	}
	if a.server != nil {
		a.server.Shutdown()
	}
}

func closeQuietly(logger *slog.Logger, name string, v any) {
	c, ok := v.(io.Closer)
	if !ok || c == nil {
		return
	}
	if err := c.Close(); err != nil {
		logger.Warn("close failed", "component", name, "error", err)
	}
}

// runContext returns the context of the current Run, or Background before
// Run starts.
func (a *App) runContext() context.Context {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.ctx == nil {
		return context.Background()
	}
	return a.ctx
}

// onOrientationSettled reacquires the camera once rotation has settled.
func (a *App) onOrientationSettled(o layout.Orientation) {
	debug.Log("🔄 orientation settled: %s, reacquiring camera\n", o)
	a.camera.Reacquire(a.runContext(), o)
}

// enqueueSnapshot is the detector's result callback. It runs on the
// runner's goroutine and only touches the queue.
func (a *App) enqueueSnapshot(poses []pose.Pose, source geometry.Size, at time.Time) {
	snap := pose.NewSnapshot(poses, at)
	snap.Source = source
	select {
	case a.snapshots <- snap:
	default:
		a.snapshotDrops.Add(1)
	}
}

// pumpAudio feeds microphone chunks to the level queue and the recognizer.
func (a *App) pumpAudio(ctx context.Context) {
	stream := a.audio.Stream()
	for {
		select {
		case <-ctx.Done():
			return
		case chunk, ok := <-stream:
			if !ok {
				return
			}
			a.handleAudio(chunk)
		}
	}
}

func (a *App) handleAudio(chunk audioio.AudioChunk) {
	// Gain is read per chunk so the slider applies immediately.
	level := vumeter.Level(chunk.Samples, a.settings.Gain())
	select {
	case a.levels <- level:
	default:
		a.levelDrops.Add(1)
	}
	if a.captions != nil {
		a.captions.Feed(chunk)
	}
}

// canvasSize converts a reported viewport to a canvas size.
func canvasSize(v viewport) geometry.Size {
	return geometry.Sz(float64(v.width), float64(v.height))
}
