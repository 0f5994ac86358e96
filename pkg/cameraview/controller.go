// Package cameraview drives one capture device: it opens the device, picks
// output sizes, runs the repeating preview, applies zoom, flash and focus
// changes, and sequences still captures.
//
// Every public operation is asynchronous. Operations and hardware events
// are serialized on one Executor; getters read a Status snapshot that is
// republished after each queued operation. Outcomes are reported through
// Callbacks, which run on the executor and must not block.
package cameraview

import (
	"image"
	"log/slog"
	"sync"
	"time"

	"github.com/teslashibe/go-cameraview/internal/log"
	"github.com/teslashibe/go-cameraview/pkg/camera"
	"github.com/teslashibe/go-cameraview/pkg/capture"
	"github.com/teslashibe/go-cameraview/pkg/geometry"
	"github.com/teslashibe/go-cameraview/pkg/hardware"
	"github.com/teslashibe/go-cameraview/pkg/sizes"
)

// Preview is the on-screen (or remote) surface that shows the live frames.
type Preview interface {
	Surface() hardware.Surface
	// Size is the current size of the view, in pixels.
	Size() sizes.Size
	Ready() bool
	SetBufferSize(size sizes.Size)
	SetDisplayOrientation(degrees int)
	// SetOnSurfaceChanged registers the function called whenever the
	// surface becomes ready or changes size.
	SetOnSurfaceChanged(fn func())
}

// Callbacks are the notifications owed to the embedding application. All
// fields are optional.
type Callbacks struct {
	OnCameraOpened      func()
	OnCameraClosed      func()
	OnCameraUnavailable func()
	OnSessionConfigured func()

	// OnFocusAt receives the tap position in preview pixels.
	OnFocusAt func(x, y float64)

	OnPictureTaken  func(data []byte)
	OnPictureFailed func(err error)
	OnError         func(err error)

	// ChoosePreviewSize may override the preview size. available holds
	// the picture sizes, ratio the active ratio.
	ChoosePreviewSize func(available *sizes.SizeMap, ratio sizes.AspectRatio, def sizes.Size) sizes.Size

	// ChoosePictureSize may override the still picture size.
	ChoosePictureSize func(available *sizes.SizeMap, ratio sizes.AspectRatio, def sizes.Size) sizes.Size
}

// Options configures a Controller.
type Options struct {
	// Config holds the initial parameters. The zero value means
	// camera.DefaultConfig().
	Config    camera.Config
	Callbacks Callbacks

	// Executor serializes all work. Nil starts a private Queue that
	// Close stops.
	Executor Executor

	// Clock schedules the focus-hold fallback. Nil means RealClock.
	Clock Clock

	Logger *slog.Logger
}

// zoomState is the zoom factor and everything derived from it.
type zoomState struct {
	zoom      float64
	crop      image.Rectangle
	hasCrop   bool
	afRegions []geometry.MeteringRectangle
	aeRegions []geometry.MeteringRectangle
}

// Controller owns the device and session lifecycle.
type Controller struct {
	hw      hardware.Hardware
	preview Preview
	cb      Callbacks
	exec    Executor
	queue   *Queue
	clock   Clock
	logger  *slog.Logger

	// Desired parameters. They survive stop and start.
	facing             camera.Facing
	ratio              sizes.AspectRatio
	autoFocus          bool
	flash              camera.Flash
	displayOrientation int
	maxPreview         sizes.Size
	focusHold          time.Duration

	// Per-device state. Only touched on the executor.
	gen          uint64
	attempt      uint64
	lifecycle    Lifecycle
	deviceID     hardware.DeviceID
	chars        *hardware.Characteristics
	device       hardware.Device
	session      hardware.Session
	still        hardware.StillOutput
	previewSizes *sizes.SizeMap
	pictureSizes *sizes.SizeMap
	previewSize  sizes.Size
	pictureSize  sizes.Size
	builder      *hardware.RequestBuilder
	zs           zoomState
	machine      *capture.Machine
	results      *resultListener
	fallback     Timer
	fallbackSeq  uint64

	mu     sync.RWMutex
	status Status
}

// New creates a controller for hw rendering into preview. Nothing happens
// until Start.
func New(hw hardware.Hardware, preview Preview, opts Options) *Controller {
	cfg := opts.Config
	if cfg == (camera.Config{}) {
		cfg = camera.DefaultConfig()
	}
	if cfg.AspectRatio.IsZero() {
		cfg.AspectRatio = sizes.DefaultAspectRatio
	}
	maxPreview := cfg.MaxPreview()
	if maxPreview.Width <= 0 || maxPreview.Height <= 0 {
		maxPreview = sizes.MaxPreviewSize
	}
	hold := cfg.FocusHold()
	if hold <= 0 {
		hold = camera.DefaultConfig().FocusHold()
	}

	c := &Controller{
		hw:                 hw,
		preview:            preview,
		cb:                 opts.Callbacks,
		exec:               opts.Executor,
		clock:              opts.Clock,
		logger:             opts.Logger,
		facing:             cfg.Facing,
		ratio:              cfg.AspectRatio,
		autoFocus:          cfg.AutoFocus,
		flash:              cfg.Flash,
		displayOrientation: cfg.DisplayOrientation,
		maxPreview:         maxPreview,
		focusHold:          hold,
		zs:                 zoomState{zoom: geometry.ClampZoom(cfg.ZoomLevel, camera.MaxZoomLevel)},
		machine:            capture.New(),
	}
	if c.exec == nil {
		c.queue = NewQueue()
		c.exec = c.queue
	}
	if c.clock == nil {
		c.clock = RealClock{}
	}
	if c.logger == nil {
		c.logger = log.With("component", "cameraview")
	}
	c.machine.OnTransition = func(from, to capture.State) {
		c.logger.Debug("capture state", "from", from, "to", to)
	}
	c.status = c.snapshot()

	preview.SetOnSurfaceChanged(func() {
		c.post(c.startCaptureSession)
	})
	return c
}

// Close stops the camera and, when the controller started its own queue,
// waits for queued work to finish.
func (c *Controller) Close() {
	c.Stop()
	if c.queue != nil {
		c.queue.Close()
	}
}

// Start selects and opens a device. It is a no-op while a device is open.
func (c *Controller) Start() { c.post(c.start) }

// Stop closes the session, the device and the still output.
func (c *Controller) Stop() { c.post(c.stop) }

// SetFacing selects the front or back lens, reopening if needed.
func (c *Controller) SetFacing(f camera.Facing) { c.post(func() { c.setFacing(f) }) }

// SetAspectRatio changes the output ratio, reconfiguring the session.
func (c *Controller) SetAspectRatio(r sizes.AspectRatio) { c.post(func() { c.setAspectRatio(r) }) }

func (c *Controller) SetAutoFocus(on bool) { c.post(func() { c.setAutoFocus(on) }) }

func (c *Controller) SetFlash(f camera.Flash) { c.post(func() { c.setFlash(f) }) }

// SetZoom sets the digital zoom factor. It is clamped to the device range.
func (c *Controller) SetZoom(z float64) { c.post(func() { c.setZoom(z) }) }

// SetDisplayOrientation sets the display rotation in degrees.
func (c *Controller) SetDisplayOrientation(deg int) {
	c.post(func() { c.setDisplayOrientation(deg) })
}

// SetFocusAt focuses and meters on a point of the preview, given in
// preview pixels. Continuous autofocus returns after the focus hold.
func (c *Controller) SetFocusAt(x, y float64) { c.post(func() { c.setFocusAt(x, y) }) }

// TakePicture starts a still capture. It is ignored while one is running.
func (c *Controller) TakePicture() { c.post(c.takePicture) }

// ResumePreview unlocks focus and restarts the preview after a capture.
func (c *Controller) ResumePreview() { c.post(c.resumePreview) }

// Apply applies every parameter of cfg.
func (c *Controller) Apply(cfg camera.Config) { c.post(func() { c.apply(cfg) }) }

// Status returns the latest published state.
func (c *Controller) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s := c.status
	s.SupportedAspectRatios = append([]sizes.AspectRatio(nil), s.SupportedAspectRatios...)
	return s
}

func (c *Controller) Facing() camera.Facing {
	return c.Status().Facing
}

func (c *Controller) AspectRatio() sizes.AspectRatio {
	return c.Status().AspectRatio
}

func (c *Controller) AutoFocus() bool {
	return c.Status().AutoFocus
}

func (c *Controller) Flash() camera.Flash {
	return c.Status().Flash
}

func (c *Controller) Zoom() float64 {
	return c.Status().Zoom
}

// MaxZoom is the device maximum, or 1 when no device is open.
func (c *Controller) MaxZoom() float64 {
	return c.Status().MaxZoom
}

func (c *Controller) IsCameraOpened() bool {
	return c.Status().Opened()
}

// HasManualFocus reports whether the open device accepts metering regions.
func (c *Controller) HasManualFocus() bool {
	return c.Status().ManualFocus
}

func (c *Controller) Lifecycle() Lifecycle {
	return c.Status().Lifecycle
}

func (c *Controller) CaptureState() capture.State {
	return c.Status().CaptureState
}

// SupportedAspectRatios lists the ratios of the open device.
func (c *Controller) SupportedAspectRatios() []sizes.AspectRatio {
	return c.Status().SupportedAspectRatios
}

// post queues fn and republishes the status after it ran.
func (c *Controller) post(fn func()) {
	c.exec.Post(func() {
		fn()
		c.publish()
	})
}

func (c *Controller) publish() {
	s := c.snapshot()
	c.mu.Lock()
	c.status = s
	c.mu.Unlock()
}

func (c *Controller) snapshot() Status {
	s := Status{
		Lifecycle:          c.lifecycle,
		CaptureState:       c.machine.State(),
		DeviceID:           c.deviceID,
		Facing:             c.facing,
		AspectRatio:        c.ratio,
		AutoFocus:          c.autoFocus,
		Flash:              c.flash,
		Zoom:               c.zs.zoom,
		MaxZoom:            c.maxZoom(),
		DisplayOrientation: c.displayOrientation,
		PreviewSize:        c.previewSize,
		PictureSize:        c.pictureSize,
		CropRegion:         c.zs.crop,
		ManualFocus:        c.hasManualFocus(),
	}
	if c.previewSizes != nil {
		s.SupportedAspectRatios = c.previewSizes.Ratios()
	}
	return s
}

func (c *Controller) opened() bool {
	return c.device != nil
}

func (c *Controller) maxZoom() float64 {
	if c.chars == nil || c.chars.MaxDigitalZoom == nil {
		return 1
	}
	return *c.chars.MaxDigitalZoom
}

func (c *Controller) hasManualFocus() bool {
	return c.opened() && (c.chars.AFRegionCount() > 0 || c.chars.AERegionCount() > 0)
}

func (c *Controller) fail(err error) {
	c.logger.Error("camera error", "error", err)
	if c.cb.OnError != nil {
		c.cb.OnError(err)
	}
}

func (c *Controller) apply(cfg camera.Config) {
	if mp := cfg.MaxPreview(); mp.Width > 0 && mp.Height > 0 {
		c.maxPreview = mp
	}
	if hold := cfg.FocusHold(); hold > 0 {
		c.focusHold = hold
	}
	c.setDisplayOrientation(cfg.DisplayOrientation)
	c.setAutoFocus(cfg.AutoFocus)
	c.setFlash(cfg.Flash)
	c.setZoom(cfg.ZoomLevel)
	if !cfg.AspectRatio.IsZero() {
		c.setAspectRatio(cfg.AspectRatio)
	}
	c.setFacing(cfg.Facing)
}
