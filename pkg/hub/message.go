// Package hub fans websocket broadcasts out to every connected viewer of
// the dashboard through one goroutine per hub.
package hub

import "github.com/gofiber/websocket/v2"

// Message is one broadcast payload. Binary payloads are rendered overlay
// frames; everything else is JSON text.
type Message struct {
	Data   []byte
	Binary bool
}

func (m Message) frameType() int {
	if m.Binary {
		return websocket.BinaryMessage
	}
	return websocket.TextMessage
}
