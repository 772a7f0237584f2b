package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/teslashibe/go-posecam/internal/config"
	"github.com/teslashibe/go-posecam/pkg/audioio"
	"github.com/teslashibe/go-posecam/pkg/camera"
	"github.com/teslashibe/go-posecam/pkg/captions"
	"github.com/teslashibe/go-posecam/pkg/geometry"
	"github.com/teslashibe/go-posecam/pkg/layout"
	"github.com/teslashibe/go-posecam/pkg/pose"
	"github.com/teslashibe/go-posecam/pkg/render"
	"github.com/teslashibe/go-posecam/pkg/settings"
	"github.com/teslashibe/go-posecam/pkg/vumeter"
)

type fakeOutput struct {
	mu       sync.Mutex
	watching bool
	frames   [][]byte
	statuses []any
}

func (f *fakeOutput) WantsFrame() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.watching
}

func (f *fakeOutput) SendFrame(jpeg []byte) {
	f.mu.Lock()
	f.frames = append(f.frames, jpeg)
	f.mu.Unlock()
}

func (f *fakeOutput) PublishStatus(status any) {
	f.mu.Lock()
	f.statuses = append(f.statuses, status)
	f.mu.Unlock()
}

// jpegRecorder is a Recorder that can also "encode".
type jpegRecorder struct {
	*render.Recorder
}

func (r jpegRecorder) EncodeJPEG(quality int) ([]byte, error) {
	return []byte{0xFF, 0xD8, byte(quality), 0xFF, 0xD9}, nil
}

type fixture struct {
	app    *App
	source *camera.MockSource
	canvas *render.Recorder
	store  *settings.MemoryStore
	output *fakeOutput
	audio  *audioio.PushSource
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()

	cfg := config.Default()
	cfg.Captions = config.CaptionsOff
	cfg.Settle = 20 * time.Millisecond

	f := &fixture{
		source: camera.NewMockSource(),
		canvas: render.NewRecorder(geometry.Sz(1280, 720)),
		store:  &settings.MemoryStore{},
		output: &fakeOutput{},
		audio:  audioio.NewPushSource(audioio.DefaultConfig(), nil),
	}
	base := []Option{
		WithDetector(pose.NewMockDetector()),
		WithCameraSource(f.source),
		WithAudioSource(f.audio),
		WithCanvas(jpegRecorder{f.canvas}),
		WithSettingsStore(f.store),
		WithOutput(f.output),
	}

	a, err := New(cfg, append(base, opts...)...)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	if err := a.Init(); err != nil {
		t.Fatalf("Init error: %v", err)
	}
	t.Cleanup(a.Shutdown)
	f.app = a
	return f
}

func testPose() []pose.Pose {
	kps := []pose.Keypoint{
		{Part: pose.Nose, Position: geometry.Point{X: 320, Y: 120}, Score: 0.99},
		{Part: pose.LeftShoulder, Position: geometry.Point{X: 280, Y: 200}, Score: 0.95},
		{Part: pose.RightShoulder, Position: geometry.Point{X: 360, Y: 200}, Score: 0.95},
		{Part: pose.LeftWrist, Position: geometry.Point{X: 200, Y: 300}, Score: 0.2},
	}
	return []pose.Pose{{Score: 0.9, Keypoints: kps, Skeleton: pose.BuildSkeleton(kps, 0.5)}}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Port = ""
	if _, err := New(cfg); err == nil {
		t.Error("New should reject an invalid config")
	}
}

func TestTickDrainsSnapshotsAndPrunes(t *testing.T) {
	f := newFixture(t)
	a := f.app

	if err := <-a.camera.Reacquire(context.Background(), layout.Landscape); err != nil {
		t.Fatalf("acquire: %v", err)
	}

	t0 := time.Now()
	a.enqueueSnapshot(testPose(), geometry.Sz(1280, 720), t0)

	st := a.Tick(t0)
	if st.Skipped {
		t.Fatal("tick with a camera frame should not be skipped")
	}
	if st.Snapshots != 1 || st.Poses != 1 {
		t.Errorf("snapshots = %d, poses = %d; want 1, 1", st.Snapshots, st.Poses)
	}
	// Wrist is under the 0.9 default threshold.
	if st.Keypoints != 3 {
		t.Errorf("keypoints = %d, want 3", st.Keypoints)
	}
	if st.Edges != 1 {
		t.Errorf("edges = %d, want 1 (shoulders)", st.Edges)
	}

	st = a.Tick(t0.Add(2100 * time.Millisecond))
	if st.Pruned != 1 || st.Snapshots != 0 {
		t.Errorf("after window: pruned = %d, snapshots = %d", st.Pruned, st.Snapshots)
	}
	if a.State().History != 0 {
		t.Errorf("history = %d, want 0", a.State().History)
	}
}

func TestThresholdFollowsSettings(t *testing.T) {
	f := newFixture(t)
	a := f.app
	<-a.camera.Reacquire(context.Background(), layout.Landscape)

	if err := a.Settings().SetConfidence(0.1); err != nil {
		t.Fatal(err)
	}
	now := time.Now()
	a.enqueueSnapshot(testPose(), geometry.Sz(1280, 720), now)
	if st := a.Tick(now); st.Keypoints != 4 || st.Threshold != 0.1 {
		t.Errorf("keypoints = %d at threshold %v, want 4 at 0.1", st.Keypoints, st.Threshold)
	}
}

func TestSnapshotQueueDrops(t *testing.T) {
	f := newFixture(t)
	a := f.app
	now := time.Now()
	for range snapshotQueue + 5 {
		a.enqueueSnapshot(nil, geometry.Size{}, now)
	}
	if got := a.State().Dropped.Snapshots; got != 5 {
		t.Errorf("dropped = %d, want 5", got)
	}
	a.Tick(now)
	if a.State().History != snapshotQueue {
		t.Errorf("history = %d, want %d", a.State().History, snapshotQueue)
	}
}

func TestViewportOrientationReacquires(t *testing.T) {
	f := newFixture(t)
	a := f.app

	a.SetViewport(390, 844, "")
	a.Tick(time.Now())

	if got := f.canvas.Size(); got != geometry.Sz(390, 844) {
		t.Errorf("canvas = %+v, want 390x844", got)
	}
	if a.resolver.Orientation() != layout.Portrait {
		t.Fatalf("orientation = %s, want portrait", a.resolver.Orientation())
	}

	// Reacquire happens only after the settle delay.
	deadline := time.After(2 * time.Second)
	for {
		reqs := f.source.Requests()
		if len(reqs) > 0 {
			last := reqs[len(reqs)-1]
			if last.Height <= last.Width {
				t.Errorf("portrait request = %dx%d", last.Width, last.Height)
			}
			return
		}
		select {
		case <-deadline:
			t.Fatal("camera was not reacquired after rotation")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestViewportQueueKeepsNewest(t *testing.T) {
	f := newFixture(t)
	a := f.app
	for i := range viewportQueue + 3 {
		a.SetViewport(100+i, 50, "landscape")
	}
	a.Tick(time.Now())
	want := geometry.Sz(float64(100+viewportQueue+2), 50)
	if got := f.canvas.Size(); got != want {
		t.Errorf("canvas = %+v, want %+v", got, want)
	}
}

func TestViewportClamped(t *testing.T) {
	f := newFixture(t)
	a := f.app

	a.SetViewport(100000, 100000, "")
	a.Tick(time.Now())

	if got := f.canvas.Size(); got != geometry.Sz(MaxViewport, MaxViewport) {
		t.Errorf("canvas = %+v, want %dx%d", got, MaxViewport, MaxViewport)
	}
}

func TestClampViewport(t *testing.T) {
	tests := []struct {
		name         string
		w, h         int
		wantW, wantH int
	}{
		{"fits", 1920, 1080, 1920, 1080},
		{"at limit", MaxViewport, 100, MaxViewport, 100},
		{"square", 100000, 100000, MaxViewport, MaxViewport},
		{"keeps aspect", 8192, 4096, MaxViewport, 2048},
		{"thin stays visible", 1, 100000, 1, MaxViewport},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, h := clampViewport(tt.w, tt.h)
			if w != tt.wantW || h != tt.wantH {
				t.Errorf("clampViewport(%d, %d) = %dx%d, want %dx%d", tt.w, tt.h, w, h, tt.wantW, tt.wantH)
			}
		})
	}
}

func TestMeterDecaysWhenAudioStops(t *testing.T) {
	f := newFixture(t)
	a := f.app
	if err := a.SetOverlayOpen(true, false); err != nil {
		t.Fatal(err)
	}

	start := time.Now()
	a.handleAudio(audioio.AudioChunk{Samples: []int16{20000, -20000, 20000, -20000}, SampleRate: 24000, Channels: 1})
	a.Tick(start)
	if r := a.State().Meter; r.Level <= 0 || r.Peak <= 0 {
		t.Fatalf("meter = %+v, want a live level", r)
	}

	a.Tick(start.Add(vumeter.PeakHold + time.Millisecond))
	if r := a.State().Meter; r.Level != 0 || r.Peak != 0 {
		t.Errorf("meter = %+v, want silence after the mic goes quiet", r)
	}
}

func TestOverlay(t *testing.T) {
	tests := []struct {
		name      string
		confirm   bool
		wantSaves int
	}{
		{"cancel", false, 0},
		{"confirm", true, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			a := f.app

			a.handleAudio(audioio.AudioChunk{Samples: []int16{20000, -20000, 20000, -20000}, SampleRate: 24000, Channels: 1})
			if err := a.SetOverlayOpen(true, false); err != nil {
				t.Fatal(err)
			}
			st := a.Tick(time.Now())
			if !st.Meter {
				t.Error("meter should be drawn while the overlay is open")
			}
			if r := a.State().Meter; r.Level <= 0 {
				t.Errorf("meter level = %v, want > 0", r.Level)
			}

			if err := a.SetOverlayOpen(false, tt.confirm); err != nil {
				t.Fatal(err)
			}
			if st := a.Tick(time.Now()); st.Meter {
				t.Error("meter should be hidden when the overlay is closed")
			}
			if f.store.Saves() != tt.wantSaves {
				t.Errorf("saves = %d, want %d", f.store.Saves(), tt.wantSaves)
			}
		})
	}
}

func TestCaptionsReachPager(t *testing.T) {
	rec := captions.NewMockRecognizer(
		captions.Text{Text: "hello"},
		captions.Text{Text: "hello world", Final: true},
	)
	f := newFixture(t, WithRecognizer(rec))
	a := f.app

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go a.captions.Run(ctx)

	deadline := time.After(2 * time.Second)
	for {
		a.Tick(time.Now())
		if lines := a.State().Captions.Lines; len(lines) == 1 && lines[0] == "hello world" {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("captions = %+v", a.State().Captions)
		case <-time.After(10 * time.Millisecond):
		}
	}

	if !a.ToggleCaptionsHidden() {
		t.Error("ToggleCaptionsHidden should report hidden")
	}
	if v := a.State().Captions; !v.Hidden || len(v.Lines) != 0 {
		t.Errorf("hidden view = %+v", v.View)
	}
	a.ToggleCaptionsHidden()

	if a.ToggleCaptions() {
		t.Error("first toggle should disable captions")
	}
	if len(a.State().Captions.Lines) != 0 {
		t.Error("disabling captions should clear the lines")
	}
}

func TestCaptionsOff(t *testing.T) {
	f := newFixture(t)
	if f.app.ToggleCaptions() {
		t.Error("ToggleCaptions without a recognizer should stay off")
	}
	if f.app.State().Captions.Session != nil {
		t.Error("no session stats without a recognizer")
	}
}

func TestPublish(t *testing.T) {
	f := newFixture(t)
	a := f.app

	a.Tick(time.Now())
	if len(f.output.frames) != 0 {
		t.Error("no frame should be encoded without viewers")
	}

	f.output.mu.Lock()
	f.output.watching = true
	f.output.mu.Unlock()

	for range a.statusEvery {
		a.Tick(time.Now())
	}

	f.output.mu.Lock()
	defer f.output.mu.Unlock()
	if uint64(len(f.output.frames)) != a.statusEvery {
		t.Errorf("frames = %d, want %d", len(f.output.frames), a.statusEvery)
	}
	if len(f.output.statuses) == 0 {
		t.Fatal("status should be published")
	}
	if _, ok := f.output.statuses[0].(Status); !ok {
		t.Errorf("status type = %T", f.output.statuses[0])
	}
}

func TestSwitchCamera(t *testing.T) {
	f := newFixture(t)
	start := f.app.Camera().Facing()
	if got := f.app.SwitchCamera(); got == start {
		t.Errorf("SwitchCamera = %s, want the other side", got)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	f := newFixture(t)
	a := f.app

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	time.Sleep(150 * time.Millisecond)
	f.audio.Push(audioio.AudioChunk{Samples: make([]int16, 480), SampleRate: 24000, Channels: 1})
	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil && !errors.Is(err, context.Canceled) {
			t.Errorf("Run error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if a.State().Ticks == 0 {
		t.Error("display loop should have ticked")
	}
	if len(f.source.Requests()) == 0 {
		t.Error("Run should acquire the camera")
	}
}

func TestStatusInterval(t *testing.T) {
	tests := []struct {
		tick time.Duration
		want uint64
	}{
		{33 * time.Millisecond, 6},
		{100 * time.Millisecond, 2},
		{time.Second, 1},
	}
	for _, tt := range tests {
		if got := statusInterval(tt.tick); got != tt.want {
			t.Errorf("statusInterval(%v) = %d, want %d", tt.tick, got, tt.want)
		}
	}
}
