package web

import (
	"math"

	"github.com/gofiber/fiber/v2"

	"github.com/teslashibe/go-cameraview/pkg/camera"
	"github.com/teslashibe/go-cameraview/pkg/sizes"
)

// FocusRequest is the body of POST /api/focus, in preview pixels.
type FocusRequest struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// ZoomRequest is the body of POST /api/zoom.
type ZoomRequest struct {
	Zoom float64 `json:"zoom"`
}

// FlashRequest is the body of POST /api/flash.
type FlashRequest struct {
	Flash string `json:"flash"`
}

// AutoFocusRequest is the body of POST /api/autofocus.
type AutoFocusRequest struct {
	Enabled *bool `json:"enabled"`
}

// FacingRequest is the body of POST /api/facing.
type FacingRequest struct {
	Facing string `json:"facing"`
}

// AspectRatioRequest is the body of POST /api/aspect-ratio.
type AspectRatioRequest struct {
	Ratio string `json:"ratio"`
}

// ResizeRequest is the body of POST /api/preview/resize.
type ResizeRequest struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

func accepted(c *fiber.Ctx) error {
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"status": "accepted"})
}

func badRequest(msg string) error {
	return fiber.NewError(fiber.StatusBadRequest, msg)
}

// handleStatus returns the controller status.
func (s *Server) handleStatus(c *fiber.Ctx) error {
	cam, err := s.current()
	if err != nil {
		return err
	}
	return c.JSON(cam.Status())
}

func (s *Server) handleAspectRatios(c *fiber.Ctx) error {
	cam, err := s.current()
	if err != nil {
		return err
	}
	ratios := cam.Status().SupportedAspectRatios
	if ratios == nil {
		ratios = []sizes.AspectRatio{}
	}
	return c.JSON(ratios)
}

func (s *Server) handleEvents(c *fiber.Ctx) error {
	return c.JSON(s.Events())
}

// handlePicture returns the last still picture.
func (s *Server) handlePicture(c *fiber.Ctx) error {
	data := s.lastPicture()
	if data == nil {
		return fiber.NewError(fiber.StatusNotFound, "no picture taken yet")
	}
	c.Set(fiber.HeaderContentType, "image/jpeg")
	return c.Send(data)
}

func (s *Server) handleGetConfig(c *fiber.Ctx) error {
	if s.manager == nil {
		return fiber.NewError(fiber.StatusNotFound, "config manager not configured")
	}
	return c.JSON(s.manager.GetConfig())
}

// handlePatchConfig updates individual config fields or loads a preset.
func (s *Server) handlePatchConfig(c *fiber.Ctx) error {
	if s.manager == nil {
		return fiber.NewError(fiber.StatusNotFound, "config manager not configured")
	}
	var params map[string]interface{}
	if err := c.BodyParser(&params); err != nil {
		return badRequest("invalid JSON body")
	}
	if err := s.manager.UpdateConfig(params); err != nil {
		return badRequest(err.Error())
	}
	return c.JSON(s.manager.GetConfig())
}

func (s *Server) handleStart(c *fiber.Ctx) error {
	cam, err := s.current()
	if err != nil {
		return err
	}
	cam.Start()
	return accepted(c)
}

func (s *Server) handleStop(c *fiber.Ctx) error {
	cam, err := s.current()
	if err != nil {
		return err
	}
	cam.Stop()
	return accepted(c)
}

func (s *Server) handleCapture(c *fiber.Ctx) error {
	cam, err := s.current()
	if err != nil {
		return err
	}
	cam.TakePicture()
	return accepted(c)
}

func (s *Server) handleResume(c *fiber.Ctx) error {
	cam, err := s.current()
	if err != nil {
		return err
	}
	cam.ResumePreview()
	return accepted(c)
}

func (s *Server) handleFocus(c *fiber.Ctx) error {
	cam, err := s.current()
	if err != nil {
		return err
	}
	var req FocusRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest("invalid JSON body")
	}
	if req.X < 0 || req.Y < 0 {
		return badRequest("x and y must not be negative")
	}
	cam.SetFocusAt(req.X, req.Y)
	return accepted(c)
}

// record keeps the config manager in step with a setter so a later PATCH
// does not revert it.
func (s *Server) record(fn func(cfg *camera.Config)) {
	if s.manager != nil {
		s.manager.Record(fn)
	}
}

func (s *Server) handleZoom(c *fiber.Ctx) error {
	cam, err := s.current()
	if err != nil {
		return err
	}
	var req ZoomRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest("invalid JSON body")
	}
	if req.Zoom <= 0 || math.IsInf(req.Zoom, 0) {
		return badRequest("zoom must be a positive number")
	}
	cam.SetZoom(req.Zoom)
	s.record(func(cfg *camera.Config) { cfg.ZoomLevel = req.Zoom })
	return accepted(c)
}

func (s *Server) handleFlash(c *fiber.Ctx) error {
	cam, err := s.current()
	if err != nil {
		return err
	}
	var req FlashRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest("invalid JSON body")
	}
	f, err := camera.ParseFlash(req.Flash)
	if err != nil {
		return badRequest(err.Error())
	}
	cam.SetFlash(f)
	s.record(func(cfg *camera.Config) { cfg.Flash = f })
	return accepted(c)
}

func (s *Server) handleAutoFocus(c *fiber.Ctx) error {
	cam, err := s.current()
	if err != nil {
		return err
	}
	var req AutoFocusRequest
	if err := c.BodyParser(&req); err != nil || req.Enabled == nil {
		return badRequest("enabled must be true or false")
	}
	cam.SetAutoFocus(*req.Enabled)
	s.record(func(cfg *camera.Config) { cfg.AutoFocus = *req.Enabled })
	return accepted(c)
}

func (s *Server) handleFacing(c *fiber.Ctx) error {
	cam, err := s.current()
	if err != nil {
		return err
	}
	var req FacingRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest("invalid JSON body")
	}
	f, err := camera.ParseFacing(req.Facing)
	if err != nil {
		return badRequest(err.Error())
	}
	cam.SetFacing(f)
	s.record(func(cfg *camera.Config) { cfg.Facing = f })
	return accepted(c)
}

func (s *Server) handleAspectRatio(c *fiber.Ctx) error {
	cam, err := s.current()
	if err != nil {
		return err
	}
	var req AspectRatioRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest("invalid JSON body")
	}
	r, err := sizes.Parse(req.Ratio)
	if err != nil {
		return badRequest(err.Error())
	}
	cam.SetAspectRatio(r)
	s.record(func(cfg *camera.Config) { cfg.AspectRatio = r })
	return accepted(c)
}

// handlePreviewResize reports a new viewport size from the browser.
func (s *Server) handlePreviewResize(c *fiber.Ctx) error {
	if s.preview == nil {
		return fiber.NewError(fiber.StatusNotFound, "no remote preview")
	}
	var req ResizeRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest("invalid JSON body")
	}
	if req.Width <= 0 || req.Height <= 0 {
		return badRequest("width and height must be positive")
	}
	s.preview.Resize(req.Width, req.Height)
	return accepted(c)
}
