// Package captions turns microphone audio into caption lines.
//
// A Recognizer streams audio to a speech service and reports text as it
// arrives. A Session keeps one recognizer running while captions are
// enabled and restarts it when the service ends the stream. A Pager holds
// the lines that are shown on screen.
package captions

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/gorilla/websocket"

	"github.com/teslashibe/go-posecam/pkg/audioio"
)

var (
	// ErrUnsupported means speech recognition is not available here
	// (no credentials, no service). Captions are disabled for good.
	ErrUnsupported = errors.New("captions: speech recognition unsupported")

	// ErrSessionEnded means the service closed the stream. The session
	// restarts the recognizer if captions are still enabled.
	ErrSessionEnded = errors.New("captions: recognition session ended")
)

// Text is one recognition result.
type Text struct {
	Text  string    `json:"text"`
	Final bool      `json:"final"`
	At    time.Time `json:"at"`
}

// TextFunc receives recognized text. Partial results carry the whole
// utterance so far, not just the newest words.
type TextFunc func(text string, final bool)

// Recognizer turns a stream of audio chunks into text.
type Recognizer interface {
	Name() string

	// Run streams audio until ctx is done (returns nil), the service ends
	// the stream (ErrSessionEnded), or recognition is impossible
	// (ErrUnsupported). A closed audio channel ends the stream.
	Run(ctx context.Context, audio <-chan audioio.AudioChunk, emit TextFunc) error
}

// Recoverable reports whether a recognizer that returned err should simply
// be started again.
func Recoverable(err error) bool {
	if err == nil {
		return true
	}
	if errors.Is(err, ErrSessionEnded) || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	var closeErr *websocket.CloseError
	return errors.As(err, &closeErr)
}
