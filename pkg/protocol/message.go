// Package protocol defines the WebSocket messages exchanged between posecam
// and a browser device that publishes its camera and microphone.
package protocol

import (
	"encoding/json"
	"fmt"
	"time"
)

// MessageType identifies the type of WebSocket message
type MessageType string

const (
	// Device → server
	TypeFrame    MessageType = "frame"    // JPEG camera frame
	TypeMic      MessageType = "mic"      // Microphone audio
	TypeViewport MessageType = "viewport" // Canvas size and orientation
	TypeOffer    MessageType = "offer"    // WebRTC offer

	// Server → device
	TypeAnswer      MessageType = "answer"      // WebRTC answer
	TypeConstraints MessageType = "constraints" // Camera to open

	// Bidirectional
	TypeICE  MessageType = "ice"  // Trickled ICE candidate
	TypePing MessageType = "ping" // Health check
	TypePong MessageType = "pong" // Health check response
)

// Message is the base wrapper for all WebSocket messages
type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp int64           `json:"ts,omitempty"` // Unix milliseconds
	Data      json.RawMessage `json:"data,omitempty"`
}

// NewMessage creates a new message with the current timestamp
func NewMessage(msgType MessageType, data interface{}) (*Message, error) {
	var rawData json.RawMessage
	if data != nil {
		var err error
		rawData, err = json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal message data: %w", err)
		}
	}

	return &Message{
		Type:      msgType,
		Timestamp: time.Now().UnixMilli(),
		Data:      rawData,
	}, nil
}

// ParseData unmarshals the message data into the provided struct
func (m *Message) ParseData(v interface{}) error {
	if m.Data == nil {
		return nil
	}
	return json.Unmarshal(m.Data, v)
}

// Bytes returns the JSON-encoded message
func (m *Message) Bytes() ([]byte, error) {
	return json.Marshal(m)
}

// ParseMessage parses a JSON message from bytes
func ParseMessage(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}
	if msg.Type == "" {
		return nil, fmt.Errorf("failed to parse message: missing type")
	}
	return &msg, nil
}

// =============================================================================
// Device → Server Message Types
// =============================================================================

// FrameData contains a video frame
type FrameData struct {
	Width   int    `json:"width"`
	Height  int    `json:"height"`
	Format  string `json:"format"` // "jpeg"
	Data    string `json:"data"`   // base64 encoded
	FrameID uint64 `json:"frame_id,omitempty"`
}

// MicData contains microphone audio
type MicData struct {
	Format     string `json:"format"`      // "pcm16"
	SampleRate int    `json:"sample_rate"` // e.g., 48000
	Channels   int    `json:"channels"`    // 1 for mono
	Data       string `json:"data"`        // base64 encoded
}

// ViewportData describes the device's drawing surface. Orientation is
// "portrait" or "landscape"; when empty it is derived from the size.
type ViewportData struct {
	Width       int     `json:"width"`
	Height      int     `json:"height"`
	Orientation string  `json:"orientation,omitempty"`
	PixelRatio  float64 `json:"pixel_ratio,omitempty"`
}

// =============================================================================
// Signalling
// =============================================================================

// SessionDescription carries an SDP offer or answer.
type SessionDescription struct {
	Type string `json:"type"` // "offer", "answer"
	SDP  string `json:"sdp"`
}

// ICECandidate is a trickled ICE candidate.
type ICECandidate struct {
	Candidate     string  `json:"candidate"`
	SDPMid        *string `json:"sdpMid,omitempty"`
	SDPMLineIndex *uint16 `json:"sdpMLineIndex,omitempty"`
}

// =============================================================================
// Server → Device Message Types
// =============================================================================

// ConstraintsData asks the device to (re)open its camera.
type ConstraintsData struct {
	FacingMode string `json:"facing_mode"` // "user", "environment"
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	Framerate  int    `json:"framerate,omitempty"`
	Quality    int    `json:"quality,omitempty"` // JPEG quality 1-100
}

// =============================================================================
// Bidirectional Message Types
// =============================================================================

// PingData contains ping information
type PingData struct {
	ID        string `json:"id"`
	Timestamp int64  `json:"ts"`
}

// PongData contains pong response
type PongData struct {
	ID        string `json:"id"`
	PingTS    int64  `json:"ping_ts"`
	PongTS    int64  `json:"pong_ts"`
	LatencyMs int64  `json:"latency_ms"`
}
