package audioio

import (
	"fmt"
	"log/slog"
)

// NewSource creates an audio source for cfg.Backend.
//
// BackendAuto resolves to push when deviceFed is true (a browser device is
// the camera, so it is also the microphone) and to exec otherwise.
func NewSource(cfg Config, deviceFed bool, logger *slog.Logger) (SourceWithStats, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	backend := cfg.Backend
	if backend == BackendAuto {
		backend = BackendExec
		if deviceFed {
			backend = BackendPush
		}
	}

	logger.Info("creating audio source",
		"backend", backend,
		"sample_rate", cfg.SampleRate,
		"channels", cfg.Channels,
		"buffer_ms", cfg.BufferDuration.Milliseconds(),
	)

	switch backend {
	case BackendPush:
		return NewPushSource(cfg, logger), nil
	case BackendExec:
		return NewExecSource(cfg, logger), nil
	case BackendMock:
		return NewMockSource(cfg, logger), nil
	default:
		return nil, fmt.Errorf("unsupported backend: %s", backend)
	}
}
