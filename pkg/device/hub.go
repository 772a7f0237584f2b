// Package device provides the WebSocket hub browser devices connect to.
//
// A device is a phone or desktop browser that publishes its camera and
// microphone. It reports its canvas size, sends JPEG frames and PCM audio
// (or negotiates a WebRTC peer instead), and receives camera constraints.
// The most recently connected device is the active one.
package device

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/teslashibe/go-posecam/pkg/camera"
	"github.com/teslashibe/go-posecam/pkg/protocol"
)

// maxMessageSize bounds one frame; a 1280×720 JPEG in base64 fits easily.
const maxMessageSize = 4 << 20

// Connection represents a connected device
type Connection struct {
	ID        string
	Conn      *websocket.Conn
	Connected time.Time
	LastSeen  time.Time

	mu sync.Mutex
}

// Send sends a message to the device
func (d *Connection) Send(msg *protocol.Message) error {
	data, err := msg.Bytes()
	if err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return d.Conn.WriteMessage(websocket.TextMessage, data)
}

func (d *Connection) touch() {
	d.mu.Lock()
	d.LastSeen = time.Now()
	d.mu.Unlock()
}

// Hub manages WebSocket connections from devices
type Hub struct {
	logger *slog.Logger

	mu      sync.RWMutex
	devices map[string]*Connection
	active  string

	// Callbacks
	onConnect    func(deviceID string)
	onDisconnect func(deviceID string)
	onFrame      func(deviceID string, frame *protocol.FrameData)
	onMic        func(deviceID string, mic *protocol.MicData)
	onViewport   func(deviceID string, vp *protocol.ViewportData)
	onOffer      func(deviceID string, offer *protocol.SessionDescription)
	onICE        func(deviceID string, c *protocol.ICECandidate)

	// Stats
	messagesReceived atomic.Uint64
	messagesSent     atomic.Uint64
	framesReceived   atomic.Uint64
	parseErrors      atomic.Uint64
}

// NewHub creates a new device hub
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		logger:  logger,
		devices: make(map[string]*Connection),
	}
}

// OnConnect sets the callback for a device becoming active
func (h *Hub) OnConnect(callback func(deviceID string)) {
	h.mu.Lock()
	h.onConnect = callback
	h.mu.Unlock()
}

// OnDisconnect sets the callback for a device leaving
func (h *Hub) OnDisconnect(callback func(deviceID string)) {
	h.mu.Lock()
	h.onDisconnect = callback
	h.mu.Unlock()
}

// OnFrame sets the callback for incoming video frames
func (h *Hub) OnFrame(callback func(deviceID string, frame *protocol.FrameData)) {
	h.mu.Lock()
	h.onFrame = callback
	h.mu.Unlock()
}

// OnMic sets the callback for incoming microphone data
func (h *Hub) OnMic(callback func(deviceID string, mic *protocol.MicData)) {
	h.mu.Lock()
	h.onMic = callback
	h.mu.Unlock()
}

// OnViewport sets the callback for canvas size reports
func (h *Hub) OnViewport(callback func(deviceID string, vp *protocol.ViewportData)) {
	h.mu.Lock()
	h.onViewport = callback
	h.mu.Unlock()
}

// OnOffer sets the callback for WebRTC offers
func (h *Hub) OnOffer(callback func(deviceID string, offer *protocol.SessionDescription)) {
	h.mu.Lock()
	h.onOffer = callback
	h.mu.Unlock()
}

// OnICE sets the callback for trickled ICE candidates
func (h *Hub) OnICE(callback func(deviceID string, c *protocol.ICECandidate)) {
	h.mu.Lock()
	h.onICE = callback
	h.mu.Unlock()
}

// RegisterRoutes registers the device WebSocket routes
func (h *Hub) RegisterRoutes(router fiber.Router) {
	router.Use("/ws/device", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("allowed", true)
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	router.Get("/ws/device", websocket.New(h.handleDevice))
	router.Get("/ws/device/:id", websocket.New(h.handleDevice))
}

// handleDevice handles a device WebSocket connection
func (h *Hub) handleDevice(c *websocket.Conn) {
	deviceID := c.Params("id")
	if deviceID == "" {
		deviceID = generateDeviceID()
	}

	dev := &Connection{
		ID:        deviceID,
		Conn:      c,
		Connected: time.Now(),
		LastSeen:  time.Now(),
	}

	h.mu.Lock()
	if old, ok := h.devices[deviceID]; ok {
		old.Conn.Close()
	}
	h.devices[deviceID] = dev
	h.active = deviceID
	count := len(h.devices)
	onConnect := h.onConnect
	h.mu.Unlock()

	fmt.Printf("📱 Device connected: %s (total: %d)\n", deviceID, count)
	if onConnect != nil {
		onConnect(deviceID)
	}

	defer h.remove(dev)

	c.SetReadLimit(maxMessageSize)
	for {
		_, data, err := c.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Warn("device read error", "device", deviceID, "error", err)
			}
			return
		}

		dev.touch()
		h.messagesReceived.Add(1)
		h.handleMessage(deviceID, data)
	}
}

// remove unregisters dev unless a newer connection took its ID.
func (h *Hub) remove(dev *Connection) {
	h.mu.Lock()
	if h.devices[dev.ID] != dev {
		h.mu.Unlock()
		return
	}
	delete(h.devices, dev.ID)
	wasActive := h.active == dev.ID
	if wasActive {
		h.active = ""
		var newest *Connection
		for _, d := range h.devices {
			if newest == nil || d.Connected.After(newest.Connected) {
				newest = d
			}
		}
		if newest != nil {
			h.active = newest.ID
		}
	}
	count := len(h.devices)
	onDisconnect := h.onDisconnect
	h.mu.Unlock()

	fmt.Printf("📱 Device disconnected: %s (total: %d)\n", dev.ID, count)
	if onDisconnect != nil {
		onDisconnect(dev.ID)
	}
}

// handleMessage processes an incoming message from a device
func (h *Hub) handleMessage(deviceID string, data []byte) {
	msg, err := protocol.ParseMessage(data)
	if err != nil {
		h.parseErrors.Add(1)
		h.logger.Debug("device message parse error", "device", deviceID, "error", err)
		return
	}

	h.mu.RLock()
	frameCb := h.onFrame
	micCb := h.onMic
	viewportCb := h.onViewport
	offerCb := h.onOffer
	iceCb := h.onICE
	active := h.active == deviceID
	h.mu.RUnlock()

	switch msg.Type {
	case protocol.TypeFrame:
		h.framesReceived.Add(1)
		// Only the active device feeds the pipeline.
		if frameCb != nil && active {
			if frame, err := msg.GetFrameData(); err == nil {
				frameCb(deviceID, frame)
			}
		}

	case protocol.TypeMic:
		if micCb != nil && active {
			if mic, err := msg.GetMicData(); err == nil {
				micCb(deviceID, mic)
			}
		}

	case protocol.TypeViewport:
		if viewportCb != nil && active {
			if vp, err := msg.GetViewportData(); err == nil {
				viewportCb(deviceID, vp)
			}
		}

	case protocol.TypeOffer:
		if offerCb != nil {
			if offer, err := msg.GetSessionDescription(); err == nil {
				offerCb(deviceID, offer)
			}
		}

	case protocol.TypeICE:
		if iceCb != nil {
			if c, err := msg.GetICECandidate(); err == nil {
				iceCb(deviceID, c)
			}
		}

	case protocol.TypePing:
		h.SendPong(deviceID, msg.Timestamp)
	}
}

// SendConstraints asks a device to open a camera
func (h *Hub) SendConstraints(deviceID string, c camera.Constraints) error {
	msg, err := protocol.NewConstraintsMessage(protocol.ConstraintsData{
		FacingMode: string(c.Facing),
		Width:      c.Width,
		Height:     c.Height,
		Framerate:  c.Framerate,
		Quality:    c.Quality,
	})
	if err != nil {
		return err
	}
	return h.sendToDevice(deviceID, msg)
}

// RequestCamera sends constraints to the active device. It satisfies
// camera.RequestFunc.
func (h *Hub) RequestCamera(c camera.Constraints) error {
	id := h.Active()
	if id == "" {
		return fmt.Errorf("no device connected")
	}
	return h.SendConstraints(id, c)
}

// SendAnswer sends a WebRTC answer to a device
func (h *Hub) SendAnswer(deviceID, sdp string) error {
	msg, err := protocol.NewAnswerMessage(sdp)
	if err != nil {
		return err
	}
	return h.sendToDevice(deviceID, msg)
}

// SendICE trickles a local ICE candidate to a device
func (h *Hub) SendICE(deviceID string, c protocol.ICECandidate) error {
	msg, err := protocol.NewICEMessage(c)
	if err != nil {
		return err
	}
	return h.sendToDevice(deviceID, msg)
}

// SendPong sends a pong response to a device
func (h *Hub) SendPong(deviceID string, pingTS int64) error {
	msg, err := protocol.NewPongMessage("", pingTS, time.Now().UnixMilli())
	if err != nil {
		return err
	}
	return h.sendToDevice(deviceID, msg)
}

// sendToDevice sends a message to a specific device
func (h *Hub) sendToDevice(deviceID string, msg *protocol.Message) error {
	h.mu.RLock()
	dev, ok := h.devices[deviceID]
	h.mu.RUnlock()

	if !ok {
		return fiber.NewError(fiber.StatusNotFound, "device not connected")
	}

	h.messagesSent.Add(1)
	return dev.Send(msg)
}

// Active returns the ID of the active device, or "".
func (h *Hub) Active() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.active
}

// GetDevice returns a device connection by ID
func (h *Hub) GetDevice(deviceID string) *Connection {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.devices[deviceID]
}

// DeviceCount returns the number of connected devices
func (h *Hub) DeviceCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.devices)
}

// Stats contains hub statistics
type Stats struct {
	DeviceCount      int    `json:"device_count"`
	Active           string `json:"active,omitempty"`
	MessagesReceived uint64 `json:"messages_received"`
	MessagesSent     uint64 `json:"messages_sent"`
	FramesReceived   uint64 `json:"frames_received"`
	ParseErrors      uint64 `json:"parse_errors"`
}

// GetStats returns hub statistics
func (h *Hub) GetStats() Stats {
	return Stats{
		DeviceCount:      h.DeviceCount(),
		Active:           h.Active(),
		MessagesReceived: h.messagesReceived.Load(),
		MessagesSent:     h.messagesSent.Load(),
		FramesReceived:   h.framesReceived.Load(),
		ParseErrors:      h.parseErrors.Load(),
	}
}

// Info describes a connected device
type Info struct {
	ID        string    `json:"id"`
	Active    bool      `json:"active"`
	Connected time.Time `json:"connected"`
	LastSeen  time.Time `json:"last_seen"`
}

// GetDeviceInfos returns info about all connected devices
func (h *Hub) GetDeviceInfos() []Info {
	h.mu.RLock()
	defer h.mu.RUnlock()

	infos := make([]Info, 0, len(h.devices))
	for _, d := range h.devices {
		d.mu.Lock()
		infos = append(infos, Info{
			ID:        d.ID,
			Active:    d.ID == h.active,
			Connected: d.Connected,
			LastSeen:  d.LastSeen,
		})
		d.mu.Unlock()
	}
	return infos
}

// RegisterAPIRoutes registers API routes for device management
func (h *Hub) RegisterAPIRoutes(api fiber.Router) {
	devices := api.Group("/devices")

	devices.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"devices": h.GetDeviceInfos(),
			"count":   h.DeviceCount(),
		})
	})

	devices.Get("/stats", func(c *fiber.Ctx) error {
		return c.JSON(h.GetStats())
	})
}

// generateDeviceID generates a unique device ID
func generateDeviceID() string {
	return uuid.NewString()
}
