// Package video ingests a browser device's WebRTC camera and microphone:
// H264 video is decoded by a persistent ffmpeg process into JPEG frames and
// Opus audio is decoded to PCM.
package video

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"
)

var (
	jpegSOI = []byte{0xFF, 0xD8}
	jpegEOI = []byte{0xFF, 0xD9}
)

const (
	// maxJPEG bounds one decoded frame.
	maxJPEG = 8 << 20

	// closeTimeout is how long Close lets ffmpeg flush before killing it.
	closeTimeout = 2 * time.Second
)

// Decoder pipes an Annex-B H264 stream through one long-running ffmpeg
// process and reports every decoded frame as a JPEG.
type Decoder struct {
	// Command overrides the decoder process. Used by tests.
	Command func(ctx context.Context) *exec.Cmd

	onFrame func(jpeg []byte)

	mu      sync.Mutex
	cmd     *exec.Cmd
	stdin   io.WriteCloser
	cancel  context.CancelFunc
	done    chan struct{}
	running bool

	written atomic.Int64
	frames  atomic.Int64
}

// NewDecoder creates a decoder that calls onFrame for each frame. onFrame
// runs on the decoder's read goroutine.
func NewDecoder(quality int, onFrame func(jpeg []byte)) *Decoder {
	d := &Decoder{onFrame: onFrame}
	d.Command = func(ctx context.Context) *exec.Cmd {
		return exec.CommandContext(ctx, "ffmpeg",
			"-loglevel", "error",
			"-fflags", "nobuffer",
			"-flags", "low_delay",
			"-f", "h264", // Input format
			"-i", "pipe:0", // Read from stdin
			"-f", "image2pipe", // Output as pipe
			"-vcodec", "mjpeg", // Output as JPEG
			"-q:v", fmt.Sprint(jpegQScale(quality)),
			"pipe:1",
		)
	}
	return d
}

// jpegQScale maps a 1-100 quality onto ffmpeg's 2-31 qscale (lower is better).
func jpegQScale(quality int) int {
	if quality <= 0 || quality > 100 {
		return 3
	}
	return 2 + (100-quality)*29/100
}

// Start launches ffmpeg. Starting a running decoder is a no-op.
func (d *Decoder) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running {
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	cmd := d.Command(runCtx)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		cancel()
		return fmt.Errorf("decoder stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return fmt.Errorf("decoder stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		cancel()
		return fmt.Errorf("start decoder: %w", err)
	}

	d.cmd = cmd
	d.stdin = stdin
	d.cancel = cancel
	d.done = make(chan struct{})
	d.running = true

	go d.readLoop(stdout, d.done)
	return nil
}

func (d *Decoder) readLoop(r io.Reader, done chan struct{}) {
	defer close(done)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 256<<10), maxJPEG)
	scanner.Split(ScanJPEG)

	for scanner.Scan() {
		frame := make([]byte, len(scanner.Bytes()))
		copy(frame, scanner.Bytes())
		d.frames.Add(1)
		if d.onFrame != nil {
			d.onFrame(frame)
		}
	}
}

// Write feeds H264 data to the decoder.
func (d *Decoder) Write(h264 []byte) (int, error) {
	d.mu.Lock()
	stdin, running := d.stdin, d.running
	d.mu.Unlock()

	if !running {
		return 0, io.ErrClosedPipe
	}
	n, err := stdin.Write(h264)
	d.written.Add(int64(n))
	return n, err
}

// Close stops ffmpeg and waits for the last frames to be delivered.
func (d *Decoder) Close() error {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return nil
	}
	d.running = false
	stdin, cmd, cancel, done := d.stdin, d.cmd, d.cancel, d.done
	d.mu.Unlock()

	stdin.Close()
	select {
	case <-done:
	case <-time.After(closeTimeout):
		cancel()
		<-done
	}
	err := cmd.Wait()
	cancel()

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		// ffmpeg exits non-zero on a truncated stream.
		return nil
	}
	return err
}

// Frames returns the number of frames decoded.
func (d *Decoder) Frames() int64 { return d.frames.Load() }

// Written returns the number of H264 bytes fed to ffmpeg.
func (d *Decoder) Written() int64 { return d.written.Load() }

// ScanJPEG is a bufio.SplitFunc that yields complete JPEG images from a
// concatenated stream, skipping bytes between images.
func ScanJPEG(data []byte, atEOF bool) (advance int, token []byte, err error) {
	start := bytes.Index(data, jpegSOI)
	if start < 0 {
		if atEOF {
			return len(data), nil, nil
		}
		// Keep a trailing 0xFF that may begin the next SOI.
		if n := len(data); n > 0 && data[n-1] == 0xFF {
			return n - 1, nil, nil
		}
		return len(data), nil, nil
	}

	end := bytes.Index(data[start+len(jpegSOI):], jpegEOI)
	if end < 0 {
		if atEOF {
			return len(data), nil, nil
		}
		return start, nil, nil
	}

	stop := start + len(jpegSOI) + end + len(jpegEOI)
	return stop, data[start:stop], nil
}
