package audioio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"runtime"
	"strconv"
)

// ExecSource captures a local microphone by reading raw PCM16 from a
// capture tool's stdout: arecord on Linux, ffmpeg/avfoundation on macOS.
type ExecSource struct {
	*stream

	// Command overrides the capture command. Used by tests.
	Command func(ctx context.Context) *exec.Cmd
}

// NewExecSource creates a local microphone source.
func NewExecSource(cfg Config, logger *slog.Logger) *ExecSource {
	s := &ExecSource{stream: newStream(cfg, logger, string(BackendExec))}
	s.Command = s.defaultCommand
	return s
}

func (s *ExecSource) defaultCommand(ctx context.Context) *exec.Cmd {
	rate := strconv.Itoa(s.cfg.SampleRate)
	ch := strconv.Itoa(s.cfg.Channels)

	if runtime.GOOS == "darwin" {
		return exec.CommandContext(ctx, "ffmpeg",
			"-loglevel", "error",
			"-f", "avfoundation",
			"-i", s.cfg.device(),
			"-ac", ch,
			"-ar", rate,
			"-f", "s16le",
			"pipe:1",
		)
	}
	return exec.CommandContext(ctx, "arecord",
		"-q",
		"-D", s.cfg.device(),
		"-f", "S16_LE",
		"-r", rate,
		"-c", ch,
		"-t", "raw",
	)
}

// Start launches the capture process.
func (s *ExecSource) Start(ctx context.Context) error {
	stop, started, err := s.begin()
	if err != nil || !started {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	cmd := s.Command(runCtx)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		s.Stop()
		return fmt.Errorf("capture stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		cancel()
		s.Stop()
		return fmt.Errorf("start %s: %w", cmd.Path, err)
	}

	s.logger.Info("exec audio source started",
		"command", cmd.Path,
		"device", s.cfg.device(),
		"sample_rate", s.cfg.SampleRate,
	)

	go func() {
		select {
		case <-stop:
		case <-runCtx.Done():
		}
		cancel()
	}()

	go s.readLoop(stdout, cmd, stop, cancel)
	return nil
}

func (s *ExecSource) readLoop(r io.Reader, cmd *exec.Cmd, stop <-chan struct{}, cancel context.CancelFunc) {
	defer cancel()
	defer s.stopRun(stop)

	buf := make([]byte, s.cfg.BufferBytes())
	for {
		if _, err := io.ReadFull(r, buf); err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) && s.Running() {
				s.logger.Warn("audio capture read failed", "error", err)
			}
			break
		}
		s.emit(ChunkFromBytes(buf, s.cfg.SampleRate, s.cfg.Channels))
	}

	if err := cmd.Wait(); err != nil && s.Running() {
		s.logger.Warn("audio capture exited", "error", err)
	}
}

var _ SourceWithStats = (*ExecSource)(nil)
