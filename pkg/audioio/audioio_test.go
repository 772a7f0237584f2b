package audioio

import (
	"context"
	"errors"
	"io"
	"os/exec"
	"testing"
	"time"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.BufferDuration = 10 * time.Millisecond
	return cfg
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"default", func(*Config) {}, false},
		{"bad backend", func(c *Config) { c.Backend = "alsa" }, true},
		{"zero rate", func(c *Config) { c.SampleRate = 0 }, true},
		{"three channels", func(c *Config) { c.Channels = 3 }, true},
		{"zero buffer", func(c *Config) { c.BufferDuration = 0 }, true},
		{"zero queue", func(c *Config) { c.QueueSize = 0 }, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(&cfg)
			if err := cfg.Validate(); (err != nil) != tc.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}

func TestNewSource_Auto(t *testing.T) {
	src, err := NewSource(DefaultConfig(), true, nil)
	if err != nil {
		t.Fatal(err)
	}
	if src.Name() != "push" {
		t.Errorf("device-fed auto backend = %s, want push", src.Name())
	}

	src, err = NewSource(DefaultConfig(), false, nil)
	if err != nil {
		t.Fatal(err)
	}
	if src.Name() != "exec" {
		t.Errorf("local auto backend = %s, want exec", src.Name())
	}
}

func TestMockSource_StartStop(t *testing.T) {
	src := NewMockSource(testConfig(), nil)
	defer src.Close()

	ctx := context.Background()
	if err := src.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := src.Start(ctx); err != nil {
		t.Fatalf("second Start should be a no-op: %v", err)
	}
	if err := src.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if err := src.Stop(); err != nil {
		t.Fatalf("second Stop should be a no-op: %v", err)
	}
	if _, err := src.Read(ctx); !errors.Is(err, io.EOF) {
		t.Errorf("Read after Stop = %v, want EOF", err)
	}
}

func TestMockSource_SineWave(t *testing.T) {
	cfg := testConfig()
	src := NewMockSource(cfg, nil, WithSineWave(440, 0.5))
	defer src.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := src.Start(ctx); err != nil {
		t.Fatal(err)
	}

	chunk, err := src.Read(ctx)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if len(chunk.Samples) != cfg.BufferSize()*cfg.Channels {
		t.Errorf("got %d samples, want %d", len(chunk.Samples), cfg.BufferSize())
	}

	var peak int16
	for _, s := range chunk.Samples {
		if s > peak {
			peak = s
		}
	}
	if peak < 10000 || peak > 16500 {
		t.Errorf("peak %d, want about half scale", peak)
	}
}

func TestMockSource_ClosedCannotRestart(t *testing.T) {
	src := NewMockSource(testConfig(), nil)
	src.Close()
	if err := src.Start(context.Background()); !errors.Is(err, io.ErrClosedPipe) {
		t.Errorf("Start after Close = %v", err)
	}
}

func TestPushSource_ConvertsAndQueues(t *testing.T) {
	cfg := testConfig()
	src := NewPushSource(cfg, nil)
	defer src.Close()

	if src.Push(AudioChunk{Samples: []int16{1, 2}}) {
		t.Error("push before Start should be rejected")
	}

	ctx := context.Background()
	if err := src.Start(ctx); err != nil {
		t.Fatal(err)
	}

	// 20ms of 48kHz stereo in, 24kHz mono out.
	in := make([]int16, 960*2)
	for i := range in {
		in[i] = 1000
	}
	if !src.Push(AudioChunk{Samples: in, SampleRate: 48000, Channels: 2}) {
		t.Fatal("Push rejected")
	}

	chunk, err := src.Read(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if chunk.SampleRate != 24000 || chunk.Channels != 1 {
		t.Errorf("chunk format %d Hz × %d", chunk.SampleRate, chunk.Channels)
	}
	if len(chunk.Samples) != 480 {
		t.Errorf("got %d samples, want 480", len(chunk.Samples))
	}
	if chunk.Samples[10] != 1000 {
		t.Errorf("sample value %d, want 1000", chunk.Samples[10])
	}
}

func TestPushSource_DropsWhenFull(t *testing.T) {
	cfg := testConfig()
	cfg.QueueSize = 2
	src := NewPushSource(cfg, nil)
	defer src.Close()
	src.Start(context.Background())

	chunk := AudioChunk{Samples: []int16{1, 2, 3}, SampleRate: cfg.SampleRate, Channels: 1}
	for i := 0; i < 5; i++ {
		src.Push(chunk)
	}

	st := src.Stats()
	if st.ChunksRead != 2 || st.Overruns != 3 {
		t.Errorf("stats = %+v, want 2 queued and 3 dropped", st)
	}
}

func TestPushSource_StopsWithContext(t *testing.T) {
	src := NewPushSource(testConfig(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	src.Start(ctx)
	cancel()

	deadline := time.Now().Add(time.Second)
	for src.Running() && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if src.Running() {
		t.Error("source should stop when its context ends")
	}
}

func TestExecSource_ReadsCommandOutput(t *testing.T) {
	if _, err := exec.LookPath("head"); err != nil {
		t.Skip("head not available")
	}

	cfg := testConfig()
	src := NewExecSource(cfg, nil)
	defer src.Close()

	// Two buffers of zero bytes, then EOF.
	src.Command = func(ctx context.Context) *exec.Cmd {
		return exec.CommandContext(ctx, "head", "-c", "960", "/dev/zero")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := src.Start(ctx); err != nil {
		t.Fatal(err)
	}

	n := 0
	for {
		chunk, err := src.Read(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("Read: %v", err)
		}
		if len(chunk.Samples) != cfg.BufferSize() {
			t.Errorf("chunk has %d samples", len(chunk.Samples))
		}
		n++
	}
	if n != 2 {
		t.Errorf("read %d chunks, want 2", n)
	}
}

func TestAudioChunk(t *testing.T) {
	c := ChunkFromBytes([]byte{0x01, 0x00, 0xFF, 0xFF, 0x00, 0x80}, 16000, 1)
	want := []int16{1, -1, -32768}
	for i, s := range want {
		if c.Samples[i] != s {
			t.Errorf("sample %d = %d, want %d", i, c.Samples[i], s)
		}
	}

	if b := c.Bytes(); len(b) != 6 || b[4] != 0x00 || b[5] != 0x80 {
		t.Errorf("Bytes() = %v", b)
	}

	d := AudioChunk{Samples: make([]int16, 1600), SampleRate: 16000, Channels: 1}
	if d.Duration() != 0.1 {
		t.Errorf("Duration = %v", d.Duration())
	}
}

func TestResample(t *testing.T) {
	tests := []struct {
		name     string
		in       int
		from, to int
		want     int
	}{
		{"same rate", 480, 24000, 24000, 480},
		{"down 2:1", 960, 48000, 24000, 480},
		{"up 2:3", 320, 16000, 24000, 480},
		{"opus to google", 960, 48000, 16000, 320},
		{"empty", 0, 24000, 48000, 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			in := make([]int16, tc.in)
			for i := range in {
				in[i] = int16(i)
			}
			if got := Resample(in, tc.from, tc.to); len(got) != tc.want {
				t.Errorf("len = %d, want %d", len(got), tc.want)
			}
		})
	}
}

func TestStereoMono(t *testing.T) {
	mono := StereoToMono([]int16{100, 300, -200, 200})
	if len(mono) != 2 || mono[0] != 200 || mono[1] != 0 {
		t.Errorf("StereoToMono = %v", mono)
	}
	stereo := MonoToStereo([]int16{5, 6})
	if len(stereo) != 4 || stereo[2] != 6 || stereo[3] != 6 {
		t.Errorf("MonoToStereo = %v", stereo)
	}
}
