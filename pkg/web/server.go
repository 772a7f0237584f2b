// Package web serves the posecam dashboard: the rendered overlay stream,
// live status, logs and the control API.
package web

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-posecam/pkg/camera"
	"github.com/teslashibe/go-posecam/pkg/hub"
	"github.com/teslashibe/go-posecam/pkg/protocol"
	"github.com/teslashibe/go-posecam/pkg/settings"
)

// Controller is the application surface the dashboard drives.
type Controller interface {
	// Status returns a JSON-encodable snapshot of the application.
	Status() any

	Settings() *settings.Live
	Camera() *camera.Manager
	SwitchCamera() camera.FacingMode

	SetViewport(width, height int, orientation string)

	// SetOverlayOpen opens or closes the control overlay. Closing with
	// confirm persists the settings.
	SetOverlayOpen(open, confirm bool) error

	ToggleCaptions() bool
	ToggleCaptionsHidden() bool
}

// Server is the web dashboard server
type Server struct {
	app    *fiber.App
	api    fiber.Router
	port   string
	ctrl   Controller
	logger *slog.Logger

	// Hubs for websocket broadcast (thread-safe!)
	overlayHub *hub.Hub
	statusHub  *hub.Hub
	logs       *LogBuffer
}

// NewServer creates the dashboard server. Static files are served from
// root. logs may be nil.
func NewServer(port, root string, ctrl Controller, logs *LogBuffer, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if logs == nil {
		logs = NewLogBuffer(DefaultLogLines)
	}
	s := &Server{
		port:       port,
		ctrl:       ctrl,
		logger:     logger.With("component", "web"),
		overlayHub: hub.New("overlay", logger).Retain(),
		statusHub:  hub.New("status", logger).Retain(),
		logs:       logs,
	}
	s.overlayHub.OnMessage(s.handleOverlayMessage)

	app := fiber.New(fiber.Config{
		AppName:               "posecam",
		DisableStartupMessage: true,
	})

	// CORS for local development
	app.Use(cors.New())

	// Static files
	if root != "" {
		app.Static("/", root)
	}

	// API routes
	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Get("/settings", s.handleGetSettings)
	api.Put("/settings", s.handlePutSettings)
	api.Get("/camera", s.handleGetCamera)
	api.Put("/camera", s.handlePutCamera)
	api.Get("/camera/presets", s.handleCameraPresets)
	api.Post("/camera/switch", s.handleSwitchCamera)
	api.Post("/viewport", s.handleViewport)
	api.Post("/overlay/:action", s.handleOverlay)
	api.Post("/captions/toggle", s.handleCaptionsToggle)
	api.Post("/captions/hide", s.handleCaptionsHide)
	api.Get("/logs", s.handleGetLogs)

	// WebSocket upgrade middleware
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	// WebSocket routes
	app.Get("/ws/overlay", s.overlayHub.Handler())
	app.Get("/ws/status", s.statusHub.Handler())
	app.Get("/ws/logs", s.logs.hub.Handler())

	s.app = app
	s.api = api
	return s
}

// App returns the fiber app so other components can mount routes.
func (s *Server) App() *fiber.App {
	return s.app
}

// API returns the /api route group.
func (s *Server) API() fiber.Router {
	return s.api
}

// Start runs the hubs and serves until ctx is done or Listen fails.
func (s *Server) Start(ctx context.Context) error {
	fmt.Printf("🌐 Dashboard: http://localhost:%s\n", s.port)

	go s.overlayHub.Run(ctx)
	go s.statusHub.Run(ctx)
	go s.logs.hub.Run(ctx)

	go func() {
		<-ctx.Done()
		s.app.Shutdown()
	}()
	return s.app.Listen(":" + s.port)
}

// StartAsync starts the web server in a goroutine
func (s *Server) StartAsync(ctx context.Context) {
	go func() {
		if err := s.Start(ctx); err != nil {
			s.logger.Error("web server stopped", "error", err)
		}
	}()
}

// WantsFrame reports whether any overlay viewer is connected.
func (s *Server) WantsFrame() bool {
	return s.overlayHub.ClientCount() > 0
}

// SendFrame broadcasts a rendered overlay JPEG.
func (s *Server) SendFrame(jpeg []byte) {
	s.overlayHub.BroadcastBinary(jpeg)
}

// PublishStatus broadcasts a status snapshot.
func (s *Server) PublishStatus(status any) {
	if err := s.statusHub.BroadcastJSON(status); err != nil {
		s.logger.Warn("status encode failed", "error", err)
	}
}

// Hubs returns hub counters.
func (s *Server) Hubs() []hub.Stats {
	return []hub.Stats{s.overlayHub.Stats(), s.statusHub.Stats(), s.logs.hub.Stats()}
}

// Shutdown gracefully stops the web server
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

// handleOverlayMessage accepts viewport reports from overlay viewers, so a
// dashboard tab can act as the display.
func (s *Server) handleOverlayMessage(data []byte) {
	msg, err := protocol.ParseMessage(data)
	if err != nil || msg.Type != protocol.TypeViewport {
		return
	}
	vp, err := msg.GetViewportData()
	if err != nil || vp.Width <= 0 || vp.Height <= 0 {
		return
	}
	s.ctrl.SetViewport(vp.Width, vp.Height, vp.Orientation)
}
