package captions

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	speech "google.golang.org/api/speech/v1"

	"github.com/teslashibe/go-posecam/internal/httpc"
	"github.com/teslashibe/go-posecam/pkg/audioio"
	"github.com/teslashibe/go-posecam/pkg/debug"
)

// GoogleConfig configures the Cloud Speech-to-Text recognizer.
type GoogleConfig struct {
	// APIKey is used when set; otherwise application default credentials.
	APIKey string

	Language   string        // BCP-47, e.g. "en-US"
	SampleRate int           // audio is resampled to this before upload
	Window     time.Duration // audio per Recognize request

	// Options are appended to the client options (endpoint overrides).
	Options []option.ClientOption
}

// DefaultGoogleConfig returns 3 second windows of 16 kHz LINEAR16.
func DefaultGoogleConfig() GoogleConfig {
	return GoogleConfig{
		Language:   "en-US",
		SampleRate: 16000,
		Window:     3 * time.Second,
	}
}

// GoogleRecognizer sends fixed windows of audio to speech:recognize. Every
// window yields final text only; there are no partial results.
type GoogleRecognizer struct {
	cfg    GoogleConfig
	logger *slog.Logger
}

// NewGoogleRecognizer creates a recognizer. Missing fields fall back to
// DefaultGoogleConfig.
func NewGoogleRecognizer(cfg GoogleConfig, logger *slog.Logger) *GoogleRecognizer {
	def := DefaultGoogleConfig()
	if cfg.Language == "" {
		cfg.Language = def.Language
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = def.SampleRate
	}
	if cfg.Window <= 0 {
		cfg.Window = def.Window
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &GoogleRecognizer{cfg: cfg, logger: logger}
}

func (g *GoogleRecognizer) Name() string { return "google" }

func (g *GoogleRecognizer) service(ctx context.Context) (*speech.Service, error) {
	var opts []option.ClientOption
	if g.cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(g.cfg.APIKey))
	} else {
		ctx = httpc.OAuth2Context(ctx)
		ts, err := google.DefaultTokenSource(ctx, speech.CloudPlatformScope)
		if err != nil {
			return nil, fmt.Errorf("%w: no Google credentials: %v", ErrUnsupported, err)
		}
		opts = append(opts, option.WithHTTPClient(oauth2.NewClient(ctx, ts)))
	}
	opts = append(opts, g.cfg.Options...)

	svc, err := speech.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create speech service: %w", err)
	}
	return svc, nil
}

// Run buffers audio into windows and recognizes each one. A closed audio
// channel flushes the last partial window.
func (g *GoogleRecognizer) Run(ctx context.Context, audio <-chan audioio.AudioChunk, emit TextFunc) error {
	svc, err := g.service(ctx)
	if err != nil {
		return err
	}
	g.logger.Info("google speech recognizer started", "language", g.cfg.Language, "window", g.cfg.Window)

	window := int(g.cfg.Window.Seconds() * float64(g.cfg.SampleRate))
	buf := make([]int16, 0, window)

	for {
		select {
		case <-ctx.Done():
			return nil

		case chunk, ok := <-audio:
			if !ok {
				if len(buf) > 0 {
					if err := g.recognize(ctx, svc, buf, emit); err != nil {
						return err
					}
				}
				return ErrSessionEnded
			}
			pcm := chunk.Convert(g.cfg.SampleRate, 1)
			buf = append(buf, pcm.Samples...)
			if len(buf) < window {
				continue
			}
			if err := g.recognize(ctx, svc, buf, emit); err != nil {
				return err
			}
			buf = buf[:0]
		}
	}
}

func (g *GoogleRecognizer) recognize(ctx context.Context, svc *speech.Service, samples []int16, emit TextFunc) error {
	req := &speech.RecognizeRequest{
		Config: &speech.RecognitionConfig{
			Encoding:                   "LINEAR16",
			SampleRateHertz:            int64(g.cfg.SampleRate),
			LanguageCode:               g.cfg.Language,
			EnableAutomaticPunctuation: true,
		},
		Audio: &speech.RecognitionAudio{
			Content: base64.StdEncoding.EncodeToString(audioio.SamplesToBytes(samples)),
		},
	}

	resp, err := svc.Speech.Recognize(req).Context(ctx).Do()
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("speech recognize: %w", err)
	}

	var parts []string
	for _, result := range resp.Results {
		if len(result.Alternatives) == 0 {
			continue
		}
		if t := strings.TrimSpace(result.Alternatives[0].Transcript); t != "" {
			parts = append(parts, t)
		}
	}
	if len(parts) == 0 {
		return nil
	}

	text := strings.Join(parts, " ")
	debug.CaptionLog("🎙️  google: %s\n", text)
	emit(text, true)
	return nil
}

var _ Recognizer = (*GoogleRecognizer)(nil)
