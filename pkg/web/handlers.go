package web

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/teslashibe/go-posecam/pkg/camera"
	"github.com/teslashibe/go-posecam/pkg/protocol"
	"github.com/teslashibe/go-posecam/pkg/settings"
)

// handleStatus returns the current application status
func (s *Server) handleStatus(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"app":  s.ctrl.Status(),
		"hubs": s.Hubs(),
	})
}

func (s *Server) handleGetSettings(c *fiber.Ctx) error {
	return c.JSON(s.ctrl.Settings().Get())
}

// SettingsUpdate is the request body for PUT /api/settings. Missing fields
// are left unchanged.
type SettingsUpdate struct {
	Confidence *float64 `json:"confidence"`
	Gain       *float64 `json:"gain"`
	Save       bool     `json:"save"`
}

func (s *Server) handlePutSettings(c *fiber.Ctx) error {
	var req SettingsUpdate
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}

	live := s.ctrl.Settings()
	next := live.Get()
	if req.Confidence != nil {
		next.Confidence = *req.Confidence
	}
	if req.Gain != nil {
		next.Gain = *req.Gain
	}
	if err := live.Apply(next); err != nil {
		status := fiber.StatusInternalServerError
		if errors.Is(err, settings.ErrOutOfRange) {
			status = fiber.StatusBadRequest
		}
		return c.Status(status).JSON(fiber.Map{"error": err.Error()})
	}
	if req.Save {
		if err := live.Save(); err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
		}
	}
	return c.JSON(live.Get())
}

func (s *Server) handleGetCamera(c *fiber.Ctx) error {
	m := s.ctrl.Camera()
	return c.JSON(fiber.Map{
		"config": m.GetConfigJSON(),
		"stats":  m.Stats(),
	})
}

func (s *Server) handlePutCamera(c *fiber.Ctx) error {
	var params map[string]interface{}
	if err := c.BodyParser(&params); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}
	m := s.ctrl.Camera()
	if err := m.UpdateConfig(params); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(m.GetConfigJSON())
}

func (s *Server) handleCameraPresets(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"presets": camera.PresetNames()})
}

func (s *Server) handleSwitchCamera(c *fiber.Ctx) error {
	facing := s.ctrl.SwitchCamera()
	return c.JSON(fiber.Map{"facing": facing})
}

func (s *Server) handleViewport(c *fiber.Ctx) error {
	var vp protocol.ViewportData
	if err := c.BodyParser(&vp); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}
	if vp.Width <= 0 || vp.Height <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "width and height must be positive"})
	}
	s.ctrl.SetViewport(vp.Width, vp.Height, vp.Orientation)
	return c.SendStatus(fiber.StatusAccepted)
}

// handleOverlay opens or closes the control overlay. POST
// /api/overlay/close?confirm=true persists the settings.
func (s *Server) handleOverlay(c *fiber.Ctx) error {
	var open bool
	switch c.Params("action") {
	case "open":
		open = true
	case "close":
	default:
		return fiber.ErrNotFound
	}
	if err := s.ctrl.SetOverlayOpen(open, c.QueryBool("confirm")); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"open": open})
}

func (s *Server) handleCaptionsToggle(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"enabled": s.ctrl.ToggleCaptions()})
}

func (s *Server) handleCaptionsHide(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"hidden": s.ctrl.ToggleCaptionsHidden()})
}

// handleGetLogs returns recent log entries
func (s *Server) handleGetLogs(c *fiber.Ctx) error {
	return c.JSON(s.logs.Entries())
}
