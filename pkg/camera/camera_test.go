package camera

import (
	"context"
	"errors"
	"testing"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-posecam/pkg/layout"
)

func TestConstraintsFor(t *testing.T) {
	tests := []struct {
		facing FacingMode
		o      layout.Orientation
		w, h   int
	}{
		{FacingUser, layout.Portrait, 720, 1280},
		{FacingUser, layout.Landscape, 1280, 720},
		{FacingEnvironment, layout.Portrait, 720, 1280},
		{FacingEnvironment, layout.Landscape, 1280, 720},
	}
	for _, tc := range tests {
		t.Run(string(tc.facing)+"/"+tc.o.String(), func(t *testing.T) {
			c := ConstraintsFor(tc.facing, tc.o)
			if c.Width != tc.w || c.Height != tc.h || c.Facing != tc.facing {
				t.Errorf("ConstraintsFor = %+v, want %s %dx%d", c, tc.facing, tc.w, tc.h)
			}
		})
	}
}

func TestParseFacingMode(t *testing.T) {
	tests := map[string]FacingMode{
		"user":        FacingUser,
		"Front":       FacingUser,
		"environment": FacingEnvironment,
		" rear ":      FacingEnvironment,
		"back":        FacingEnvironment,
	}
	for in, want := range tests {
		got, err := ParseFacingMode(in)
		if err != nil || got != want {
			t.Errorf("ParseFacingMode(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := ParseFacingMode("sideways"); err == nil {
		t.Error("expected error for unknown mode")
	}
	if FacingUser.Other() != FacingEnvironment || FacingEnvironment.Other() != FacingUser {
		t.Error("Other() should toggle")
	}
}

func TestConfigValidate(t *testing.T) {
	for _, name := range PresetNames() {
		cfg := GetPreset(name)
		if cfg == nil {
			t.Fatalf("preset %s missing", name)
		}
		if errs := cfg.Validate(); len(errs) > 0 {
			t.Errorf("preset %s invalid: %v", name, errs)
		}
	}

	bad := DefaultConfig()
	bad.ShortEdge = 2000
	bad.Quality = 0
	bad.Facing = "sideways"
	if errs := bad.Validate(); len(errs) != 3 {
		t.Errorf("Validate() = %v, want 3 errors", errs)
	}
}

func TestManager_UpdateConfig(t *testing.T) {
	m := NewManager(NewMockSource(), DefaultConfig(), nil)

	var applied Config
	m.OnConfigChange = func(cfg Config) error {
		applied = cfg
		return nil
	}

	err := m.UpdateConfig(map[string]interface{}{
		"preset":  PresetSD,
		"quality": float64(55),
		"facing":  "rear",
	})
	if err != nil {
		t.Fatal(err)
	}
	if applied.LongEdge != 640 || applied.Quality != 55 || applied.Facing != FacingEnvironment {
		t.Errorf("applied = %+v", applied)
	}
	if m.Facing() != FacingEnvironment {
		t.Errorf("Facing() = %s after config change", m.Facing())
	}

	if err := m.UpdateConfig(map[string]interface{}{"framerate": 500}); err == nil {
		t.Error("expected validation error")
	}
	if err := m.UpdateConfig(map[string]interface{}{"preset": "cinema"}); err == nil {
		t.Error("expected unknown preset error")
	}
}

func TestManager_ReacquireFollowsOrientation(t *testing.T) {
	src := NewMockSource()
	defer src.Close()
	m := NewManager(src, DefaultConfig(), nil)
	ctx := context.Background()

	if err := <-m.Reacquire(ctx, layout.Portrait); err != nil {
		t.Fatal(err)
	}
	if err := <-m.Reacquire(ctx, layout.Landscape); err != nil {
		t.Fatal(err)
	}

	reqs := src.Requests()
	if len(reqs) != 2 {
		t.Fatalf("got %d acquisitions", len(reqs))
	}
	if reqs[0].Width != 720 || reqs[0].Height != 1280 {
		t.Errorf("portrait request = %+v", reqs[0])
	}
	if reqs[1].Width != 1280 || reqs[1].Height != 720 {
		t.Errorf("landscape request = %+v", reqs[1])
	}
	if src.Stops() != 2 {
		t.Errorf("previous track should be stopped before each acquisition, got %d stops", src.Stops())
	}

	f, ok := m.Latest()
	if !ok {
		t.Fatal("no frame after acquisition")
	}
	defer f.Close()
	if f.Width != 1280 || f.Height != 720 {
		t.Errorf("frame %dx%d", f.Width, f.Height)
	}
}

func TestManager_Switch(t *testing.T) {
	src := NewMockSource()
	defer src.Close()
	m := NewManager(src, DefaultConfig(), nil)

	facing, done := m.Switch(context.Background())
	if err := <-done; err != nil {
		t.Fatal(err)
	}
	if facing != FacingEnvironment {
		t.Errorf("Switch() = %s", facing)
	}
	facing, done = m.Switch(context.Background())
	<-done
	if facing != FacingUser {
		t.Errorf("second Switch() = %s", facing)
	}

	reqs := src.Requests()
	if len(reqs) != 2 || reqs[0].Facing != FacingEnvironment || reqs[1].Facing != FacingUser {
		t.Errorf("requests = %+v", reqs)
	}
}

func TestManager_FailedAcquisitionKeepsLastFrame(t *testing.T) {
	src := NewMockSource()
	defer src.Close()
	m := NewManager(src, DefaultConfig(), nil)

	<-m.Reacquire(context.Background(), layout.Landscape)
	src.SetErr(errors.New("permission denied"))
	if err := <-m.Reacquire(context.Background(), layout.Portrait); err == nil {
		t.Fatal("expected acquisition error")
	}

	f, ok := m.Latest()
	if !ok {
		t.Fatal("last frame should survive a failed acquisition")
	}
	f.Close()

	if st := m.Stats(); st.Failures != 1 || st.Acquisitions != 2 {
		t.Errorf("stats = %+v", st)
	}
}

func TestDeviceSource(t *testing.T) {
	var sent []Constraints
	src := NewDeviceSource(func(c Constraints) error {
		sent = append(sent, c)
		return nil
	}, nil)
	defer src.Close()

	img := gocv.NewMatWithSize(48, 64, gocv.MatTypeCV8UC3)
	src.PushMat(img)
	if _, ok := src.Latest(); ok {
		t.Fatal("frames before Acquire should be ignored")
	}

	c := ConstraintsFor(FacingUser, layout.Portrait)
	if err := src.Acquire(context.Background(), c); err != nil {
		t.Fatal(err)
	}
	if len(sent) != 1 || sent[0] != c {
		t.Errorf("sent = %+v", sent)
	}

	frame := gocv.NewMatWithSize(48, 64, gocv.MatTypeCV8UC3)
	buf, err := gocv.IMEncode(gocv.JPEGFileExt, frame)
	frame.Close()
	if err != nil {
		t.Fatal(err)
	}
	defer buf.Close()

	if err := src.PushJPEG(buf.GetBytes()); err != nil {
		t.Fatal(err)
	}
	f, ok := src.Latest()
	if !ok {
		t.Fatal("no frame after PushJPEG")
	}
	defer f.Close()
	if f.Width != 64 || f.Height != 48 || f.Seq != 1 {
		t.Errorf("frame = %dx%d seq %d", f.Width, f.Height, f.Seq)
	}

	if err := src.PushJPEG([]byte("not a jpeg")); err == nil {
		t.Error("expected decode error")
	}
}

func TestDeviceSource_NoDevice(t *testing.T) {
	src := NewDeviceSource(nil, nil)
	if err := src.Acquire(context.Background(), ConstraintsFor(FacingUser, layout.Landscape)); err == nil {
		t.Error("Acquire without a device should fail")
	}
}
