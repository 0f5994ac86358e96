// Package web exposes a camera controller over HTTP and websockets.
package web

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-cameraview/internal/log"
	"github.com/teslashibe/go-cameraview/pkg/camera"
	"github.com/teslashibe/go-cameraview/pkg/cameraview"
	"github.com/teslashibe/go-cameraview/pkg/hub"
	"github.com/teslashibe/go-cameraview/pkg/sizes"
)

// ErrNoCamera is returned by control routes before Attach.
var ErrNoCamera = errors.New("web: no camera attached")

// Camera is the controller surface the server drives. *cameraview.Controller
// implements it.
type Camera interface {
	Start()
	Stop()
	SetFacing(f camera.Facing)
	SetAspectRatio(r sizes.AspectRatio)
	SetAutoFocus(on bool)
	SetFlash(f camera.Flash)
	SetZoom(z float64)
	SetFocusAt(x, y float64)
	TakePicture()
	ResumePreview()
	Apply(cfg camera.Config)
	Status() cameraview.Status
}

// Options configures a Server.
type Options struct {
	// Manager backs /api/config. Optional.
	Manager *camera.Manager
	// Preview backs /api/preview/resize and /ws/preview. Optional.
	Preview *PreviewSurface
	// StaticDir is served at / when set.
	StaticDir string
	// MaxPictureSize caps the still size chosen for the controller.
	MaxPictureSize sizes.Size
	Logger         *slog.Logger
}

// Server is the control API.
type Server struct {
	app        *fiber.App
	logger     *slog.Logger
	manager    *camera.Manager
	preview    *PreviewSurface
	maxPicture sizes.Size

	camMu sync.RWMutex
	cam   Camera

	eventsMu sync.RWMutex
	history  []Event

	pictureMu sync.RWMutex
	picture   []byte

	events   *hub.Hub
	pictures *hub.Hub
	frames   *hub.Hub
}

// NewServer builds the routes. Attach a camera before serving control
// requests.
func NewServer(opts Options) *Server {
	s := &Server{
		logger:     opts.Logger,
		manager:    opts.Manager,
		preview:    opts.Preview,
		maxPicture: opts.MaxPictureSize,
		events:     hub.New("events"),
		pictures:   hub.New("pictures"),
		frames:     hub.New("preview"),
	}
	if s.logger == nil {
		s.logger = log.With("component", "web")
	}
	if s.preview != nil {
		s.preview.SetOnFrame(s.frames.BroadcastBinary)
	}

	app := fiber.New(fiber.Config{
		AppName:               "cameraview",
		DisableStartupMessage: true,
		ErrorHandler:          s.handleError,
	})
	app.Use(recover.New())
	app.Use(cors.New())

	if opts.StaticDir != "" {
		app.Static("/", opts.StaticDir)
	}

	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Get("/aspect-ratios", s.handleAspectRatios)
	api.Get("/events", s.handleEvents)
	api.Get("/picture", s.handlePicture)
	api.Get("/config", s.handleGetConfig)
	api.Patch("/config", s.handlePatchConfig)
	api.Post("/start", s.handleStart)
	api.Post("/stop", s.handleStop)
	api.Post("/capture", s.handleCapture)
	api.Post("/resume", s.handleResume)
	api.Post("/focus", s.handleFocus)
	api.Post("/zoom", s.handleZoom)
	api.Post("/flash", s.handleFlash)
	api.Post("/autofocus", s.handleAutoFocus)
	api.Post("/facing", s.handleFacing)
	api.Post("/aspect-ratio", s.handleAspectRatio)
	api.Post("/preview/resize", s.handlePreviewResize)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/events", websocket.New(s.serveHub(s.events)))
	app.Get("/ws/pictures", websocket.New(s.serveHub(s.pictures)))
	app.Get("/ws/preview", websocket.New(s.serveHub(s.frames)))

	s.app = app
	return s
}

// Attach sets the camera the routes control. Config changes made through
// the manager are applied to it.
func (s *Server) Attach(cam Camera) {
	s.camMu.Lock()
	s.cam = cam
	s.camMu.Unlock()

	if s.manager != nil {
		s.manager.OnConfigChange = func(cfg camera.Config) error {
			cam.Apply(cfg)
			return nil
		}
	}
}

func (s *Server) current() (Camera, error) {
	s.camMu.RLock()
	defer s.camMu.RUnlock()
	if s.cam == nil {
		return nil, ErrNoCamera
	}
	return s.cam, nil
}

// App exposes the fiber app, mainly for app.Test.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen starts the hubs and serves on addr until Shutdown.
func (s *Server) Listen(addr string) error {
	go s.events.Run()
	go s.pictures.Run()
	go s.frames.Run()

	s.logger.Info("web server listening", "addr", addr)
	return s.app.Listen(addr)
}

// Shutdown stops the server and disconnects websocket clients.
func (s *Server) Shutdown() error {
	s.events.Stop()
	s.pictures.Stop()
	s.frames.Stop()
	return s.app.Shutdown()
}

func (s *Server) serveHub(h *hub.Hub) func(*websocket.Conn) {
	return func(conn *websocket.Conn) {
		hub.NewClient(h, conn).Run()
	}
}

func (s *Server) handleError(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	switch {
	case errors.As(err, &fe):
		code = fe.Code
	case errors.Is(err, ErrNoCamera):
		code = fiber.StatusServiceUnavailable
	}
	if code >= fiber.StatusInternalServerError {
		s.logger.Error("request failed", "path", c.Path(), "error", err)
	}
	return c.Status(code).JSON(fiber.Map{"error": err.Error()})
}
