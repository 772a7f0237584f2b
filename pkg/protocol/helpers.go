package protocol

import (
	"encoding/base64"
)

// =============================================================================
// Helper functions for creating messages
// =============================================================================

// NewFrameMessage creates a frame message from raw JPEG data
func NewFrameMessage(width, height int, jpegData []byte, frameID uint64) (*Message, error) {
	return NewMessage(TypeFrame, FrameData{
		Width:   width,
		Height:  height,
		Format:  "jpeg",
		Data:    base64.StdEncoding.EncodeToString(jpegData),
		FrameID: frameID,
	})
}

// NewMicMessage creates a microphone audio message
func NewMicMessage(pcmData []byte, sampleRate, channels int) (*Message, error) {
	return NewMessage(TypeMic, MicData{
		Format:     "pcm16",
		SampleRate: sampleRate,
		Channels:   channels,
		Data:       base64.StdEncoding.EncodeToString(pcmData),
	})
}

// NewViewportMessage creates a viewport report
func NewViewportMessage(width, height int, orientation string) (*Message, error) {
	return NewMessage(TypeViewport, ViewportData{
		Width:       width,
		Height:      height,
		Orientation: orientation,
	})
}

// NewOfferMessage wraps an SDP offer
func NewOfferMessage(sdp string) (*Message, error) {
	return NewMessage(TypeOffer, SessionDescription{Type: "offer", SDP: sdp})
}

// NewAnswerMessage wraps an SDP answer
func NewAnswerMessage(sdp string) (*Message, error) {
	return NewMessage(TypeAnswer, SessionDescription{Type: "answer", SDP: sdp})
}

// NewICEMessage wraps an ICE candidate
func NewICEMessage(c ICECandidate) (*Message, error) {
	return NewMessage(TypeICE, c)
}

// NewConstraintsMessage asks the device to open a camera
func NewConstraintsMessage(c ConstraintsData) (*Message, error) {
	return NewMessage(TypeConstraints, c)
}

// NewPingMessage creates a ping message
func NewPingMessage(id string) (*Message, error) {
	return NewMessage(TypePing, PingData{ID: id})
}

// NewPongMessage creates a pong response message
func NewPongMessage(id string, pingTS, pongTS int64) (*Message, error) {
	return NewMessage(TypePong, PongData{
		ID:        id,
		PingTS:    pingTS,
		PongTS:    pongTS,
		LatencyMs: pongTS - pingTS,
	})
}

// =============================================================================
// Helper functions for parsing messages
// =============================================================================

// GetFrameData extracts frame data from a message
func (m *Message) GetFrameData() (*FrameData, error) {
	var data FrameData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// DecodeFrameData decodes the base64 image data
func (f *FrameData) DecodeFrameData() ([]byte, error) {
	return base64.StdEncoding.DecodeString(f.Data)
}

// GetMicData extracts mic data from a message
func (m *Message) GetMicData() (*MicData, error) {
	var data MicData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// DecodeMicData decodes the base64 audio data
func (mic *MicData) DecodeMicData() ([]byte, error) {
	return base64.StdEncoding.DecodeString(mic.Data)
}

// GetViewportData extracts a viewport report from a message
func (m *Message) GetViewportData() (*ViewportData, error) {
	var data ViewportData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetSessionDescription extracts an SDP offer or answer
func (m *Message) GetSessionDescription() (*SessionDescription, error) {
	var data SessionDescription
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetICECandidate extracts an ICE candidate
func (m *Message) GetICECandidate() (*ICECandidate, error) {
	var data ICECandidate
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetConstraintsData extracts camera constraints
func (m *Message) GetConstraintsData() (*ConstraintsData, error) {
	var data ConstraintsData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetPingData extracts ping data from a message
func (m *Message) GetPingData() (*PingData, error) {
	var data PingData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetPongData extracts pong data from a message
func (m *Message) GetPongData() (*PongData, error) {
	var data PongData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}
