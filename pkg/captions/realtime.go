package captions

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/teslashibe/go-posecam/internal/httpc"
	"github.com/teslashibe/go-posecam/pkg/audioio"
	"github.com/teslashibe/go-posecam/pkg/debug"
)

const (
	RealtimeURL = "wss://api.openai.com/v1/realtime?intent=transcription"

	// RealtimeModel is the transcription model requested for the session.
	RealtimeModel = "gpt-4o-transcribe"

	// RealtimeSampleRate is the rate pcm16 input must be sent at.
	RealtimeSampleRate = 24000
)

// RealtimeConfig configures the OpenAI realtime transcription recognizer.
type RealtimeConfig struct {
	APIKey   string
	URL      string
	Model    string
	Language string // ISO-639-1, empty lets the model detect it

	HandshakeTimeout time.Duration
	ReadTimeout      time.Duration
	PingInterval     time.Duration
}

// DefaultRealtimeConfig returns the settings used against api.openai.com.
func DefaultRealtimeConfig() RealtimeConfig {
	return RealtimeConfig{
		URL:              RealtimeURL,
		Model:            RealtimeModel,
		Language:         "en",
		HandshakeTimeout: 10 * time.Second,
		ReadTimeout:      120 * time.Second,
		PingInterval:     30 * time.Second,
	}
}

// RealtimeRecognizer streams audio to an OpenAI realtime transcription
// session over a websocket. Server-side VAD splits utterances; each one
// arrives as deltas followed by a completed transcript.
type RealtimeRecognizer struct {
	cfg    RealtimeConfig
	logger *slog.Logger
}

// NewRealtimeRecognizer creates a recognizer. Missing fields fall back to
// DefaultRealtimeConfig.
func NewRealtimeRecognizer(cfg RealtimeConfig, logger *slog.Logger) *RealtimeRecognizer {
	def := DefaultRealtimeConfig()
	if cfg.URL == "" {
		cfg.URL = def.URL
	}
	if cfg.Model == "" {
		cfg.Model = def.Model
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = def.HandshakeTimeout
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = def.ReadTimeout
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = def.PingInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RealtimeRecognizer{cfg: cfg, logger: logger}
}

func (r *RealtimeRecognizer) Name() string { return "realtime" }

// Run dials the service, configures a transcription session and forwards
// audio until ctx is done or the server ends the session.
func (r *RealtimeRecognizer) Run(ctx context.Context, audio <-chan audioio.AudioChunk, emit TextFunc) error {
	if r.cfg.APIKey == "" {
		return fmt.Errorf("%w: no OpenAI API key", ErrUnsupported)
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+r.cfg.APIKey)
	header.Set("OpenAI-Beta", "realtime=v1")

	ws, _, err := httpc.Dialer(r.cfg.HandshakeTimeout).DialContext(ctx, r.cfg.URL, header)
	if err != nil {
		return fmt.Errorf("connect realtime transcription: %w", err)
	}
	defer ws.Close()

	conn := &realtimeConn{ws: ws}
	ws.SetPingHandler(func(appData string) error {
		conn.mu.Lock()
		defer conn.mu.Unlock()
		return ws.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(5*time.Second))
	})

	if err := conn.sendJSON(r.sessionUpdate()); err != nil {
		return fmt.Errorf("configure transcription session: %w", err)
	}
	r.logger.Info("realtime transcription connected", "model", r.cfg.Model)

	readErr := make(chan error, 1)
	go func() {
		readErr <- r.readLoop(ws, emit)
	}()

	ping := time.NewTicker(r.cfg.PingInterval)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			conn.closeNormal()
			return nil

		case err := <-readErr:
			return err

		case chunk, ok := <-audio:
			if !ok {
				conn.closeNormal()
				return ErrSessionEnded
			}
			if err := conn.sendAudio(chunk); err != nil {
				return fmt.Errorf("send audio: %w", err)
			}

		case <-ping.C:
			if err := conn.ping(); err != nil {
				return fmt.Errorf("%w: ping: %v", ErrSessionEnded, err)
			}
		}
	}
}

func (r *RealtimeRecognizer) sessionUpdate() map[string]interface{} {
	transcription := map[string]interface{}{
		"model": r.cfg.Model,
	}
	if r.cfg.Language != "" {
		transcription["language"] = r.cfg.Language
	}
	return map[string]interface{}{
		"type": "transcription_session.update",
		"session": map[string]interface{}{
			"input_audio_format":        "pcm16",
			"input_audio_transcription": transcription,
			"turn_detection": map[string]interface{}{
				"type":                "server_vad",
				"threshold":           0.5,
				"prefix_padding_ms":   300,
				"silence_duration_ms": 500,
			},
		},
	}
}

// realtimeEvent covers the server events the recognizer reads.
type realtimeEvent struct {
	Type       string `json:"type"`
	ItemID     string `json:"item_id"`
	Delta      string `json:"delta"`
	Transcript string `json:"transcript"`
	Error      *struct {
		Type    string `json:"type"`
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (r *RealtimeRecognizer) readLoop(ws *websocket.Conn, emit TextFunc) error {
	partials := make(map[string]*strings.Builder)

	for {
		ws.SetReadDeadline(time.Now().Add(r.cfg.ReadTimeout))

		_, message, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return fmt.Errorf("%w: %v", ErrSessionEnded, err)
			}
			return fmt.Errorf("realtime read: %w", err)
		}

		var ev realtimeEvent
		if err := json.Unmarshal(message, &ev); err != nil {
			continue
		}

		switch ev.Type {
		case "transcription_session.created", "transcription_session.updated":
			debug.CaptionLog("🎙️  %s\n", ev.Type)

		case "conversation.item.input_audio_transcription.delta":
			b, ok := partials[ev.ItemID]
			if !ok {
				b = &strings.Builder{}
				partials[ev.ItemID] = b
			}
			b.WriteString(ev.Delta)
			debug.CaptionLog("🎙️  partial: %s\n", b.String())
			emit(b.String(), false)

		case "conversation.item.input_audio_transcription.completed":
			delete(partials, ev.ItemID)
			if text := strings.TrimSpace(ev.Transcript); text != "" {
				emit(text, true)
			}

		case "error":
			if ev.Error == nil {
				continue
			}
			if ev.Error.Code == "session_expired" {
				return fmt.Errorf("%w: %s", ErrSessionEnded, ev.Error.Message)
			}
			if ev.Error.Code == "invalid_api_key" {
				return fmt.Errorf("%w: %s", ErrUnsupported, ev.Error.Message)
			}
			r.logger.Warn("realtime transcription error", "code", ev.Error.Code, "message", ev.Error.Message)
		}
	}
}

// realtimeConn serializes writes; gorilla allows one concurrent writer.
type realtimeConn struct {
	ws *websocket.Conn
	mu sync.Mutex
}

func (c *realtimeConn) sendJSON(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ws.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return c.ws.WriteJSON(v)
}

func (c *realtimeConn) sendAudio(chunk audioio.AudioChunk) error {
	if len(chunk.Samples) == 0 {
		return nil
	}
	pcm := chunk.Convert(RealtimeSampleRate, 1)
	return c.sendJSON(map[string]interface{}{
		"type":  "input_audio_buffer.append",
		"audio": base64.StdEncoding.EncodeToString(pcm.Bytes()),
	})
}

func (c *realtimeConn) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(10*time.Second))
}

func (c *realtimeConn) closeNormal() {
	c.mu.Lock()
	defer c.mu.Unlock()
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
}

var _ Recognizer = (*RealtimeRecognizer)(nil)
