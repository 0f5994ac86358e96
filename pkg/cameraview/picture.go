package cameraview

import (
	"fmt"

	"github.com/teslashibe/go-cameraview/pkg/camera"
	"github.com/teslashibe/go-cameraview/pkg/capture"
	"github.com/teslashibe/go-cameraview/pkg/geometry"
	"github.com/teslashibe/go-cameraview/pkg/hardware"
)

func (c *Controller) takePicture() {
	if c.session == nil || c.builder == nil {
		c.logger.Warn("take picture ignored, no session")
		return
	}
	if c.machine.Busy() {
		c.logger.Debug("take picture ignored, capture in progress", "state", c.machine.State())
		return
	}
	if c.autoFocus {
		c.lockFocus()
		return
	}
	c.machine.BeginCapture()
	c.captureStill()
}

// lockFocus sends a one-shot AF trigger. The lock is observed in results.
func (c *Controller) lockFocus() {
	c.builder.SetAFTrigger(hardware.AFTriggerStart)
	c.machine.BeginLocking()
	err := c.session.Capture(c.builder.Snapshot(), c.results)
	c.builder.SetAFTrigger(hardware.AFTriggerIdle)
	if err != nil {
		c.logger.Error("failed to lock focus", "error", err)
		c.machine.Reset()
		c.pictureFailed(err)
	}
}

func (c *Controller) onResult(gen uint64, r hardware.Result) {
	if gen != c.gen {
		return
	}
	switch c.machine.Process(r) {
	case capture.ActionCapture:
		c.captureStill()
	case capture.ActionPrecapture:
		c.runPrecapture()
	}
}

func (c *Controller) runPrecapture() {
	if c.session == nil || c.builder == nil {
		c.machine.Reset()
		return
	}
	c.builder.SetAEPrecaptureTrigger(hardware.AEPrecaptureTriggerStart)
	c.machine.BeginPrecapture()
	err := c.session.Capture(c.builder.Snapshot(), c.results)
	c.builder.SetAEPrecaptureTrigger(hardware.AEPrecaptureTriggerIdle)
	if err != nil {
		c.logger.Error("failed to run precapture sequence", "error", err)
		c.abortCapture(err)
	}
}

// captureStill stops the preview and submits the still request. The
// machine stays in Capturing until ResumePreview.
func (c *Controller) captureStill() {
	if c.session == nil || c.builder == nil || c.still == nil {
		c.machine.Reset()
		return
	}

	b := hardware.NewRequestBuilder(hardware.TemplateStillCapture, c.still.Surface())
	if mode, ok := c.builder.AFMode(); ok {
		b.SetAFMode(mode)
	}
	ae, flash, setFlash := stillFlashModes(c.flash)
	b.SetAEMode(ae)
	if setFlash {
		b.SetFlashMode(flash)
	}
	if c.zs.hasCrop {
		b.SetCropRegion(c.zs.crop)
	}
	if so := c.chars.SensorOrientation; so != nil {
		b.SetJPEGOrientation(geometry.JPEGOrientation(*so, c.displayOrientation, c.facing))
	}

	c.machine.BeginCapture()
	if err := c.session.StopRepeating(); err != nil {
		c.logger.Debug("stop repeating failed", "error", err)
	}
	err := c.session.Capture(b.Snapshot(), &stillListener{c: c, gen: c.gen})
	c.cancelFallback()
	if err != nil {
		c.logger.Error("cannot capture a still picture", "error", err)
		c.abortCapture(err)
	}
}

// stillFlashModes maps the flash setting for the still request. The flash
// mode is left to the AE mode except for off and torch.
func stillFlashModes(f camera.Flash) (hardware.AEMode, hardware.FlashMode, bool) {
	switch f {
	case camera.FlashOn:
		return hardware.AEModeOnAlwaysFlash, 0, false
	case camera.FlashTorch:
		return hardware.AEModeOn, hardware.FlashModeTorch, true
	case camera.FlashAuto, camera.FlashRedEye:
		return hardware.AEModeOnAutoFlash, 0, false
	}
	return hardware.AEModeOn, hardware.FlashModeOff, true
}

func (c *Controller) onStillFailed(gen uint64, err error) {
	if gen != c.gen || c.machine.State() != capture.StateCapturing {
		return
	}
	c.logger.Error("still capture failed", "error", err)
	c.abortCapture(err)
}

func (c *Controller) abortCapture(err error) {
	c.pictureFailed(err)
	c.resumePreview()
}

func (c *Controller) pictureFailed(err error) {
	if c.cb.OnPictureFailed != nil {
		c.cb.OnPictureFailed(fmt.Errorf("%w: %w", ErrCaptureFailed, err))
	}
}

func (c *Controller) onPicture(gen uint64, data []byte) {
	if gen != c.gen {
		return
	}
	c.logger.Info("picture taken", "bytes", len(data))
	if c.cb.OnPictureTaken != nil {
		c.cb.OnPictureTaken(data)
	}
}

// resumePreview cancels the focus lock, restores autofocus, flash and
// zoom, and restarts the repeating preview. The machine returns to Idle
// even if the preview could not be restarted.
func (c *Controller) resumePreview() {
	if !c.opened() || c.session == nil || c.builder == nil {
		c.machine.Reset()
		return
	}

	c.builder.SetAFTrigger(hardware.AFTriggerCancel)
	if err := c.session.Capture(c.builder.Snapshot(), c.results); err != nil {
		c.logger.Warn("failed to cancel focus lock", "error", err)
	}
	c.updateZoom()
	c.updateAutoFocus()
	c.updateFlash()
	c.builder.SetAFTrigger(hardware.AFTriggerIdle)
	if err := c.setRepeating(); err != nil {
		c.logger.Error("failed to restart preview", "error", err)
	}
	c.machine.Reset()
}

// setFocusAt meters and focuses on a tap given in preview pixels.
func (c *Controller) setFocusAt(x, y float64) {
	if c.cb.OnFocusAt != nil {
		c.cb.OnFocusAt(x, y)
	}
	if c.builder == nil {
		return
	}
	view := c.preview.Size()
	if view.Width <= 0 || view.Height <= 0 {
		return
	}
	if c.machine.Busy() {
		c.logger.Debug("focus tap ignored, capture in progress", "state", c.machine.State())
		return
	}

	nx, ny := geometry.RotateNormalized(x/float64(view.Width), y/float64(view.Height), c.displayOrientation)
	c.updateManualFocus(nx, ny)

	if c.session != nil {
		c.builder.SetAFTrigger(hardware.AFTriggerStart)
		err := c.session.Capture(c.builder.Snapshot(), c.results)
		c.builder.SetAFTrigger(hardware.AFTriggerIdle)
		if err == nil {
			err = c.setRepeating()
		}
		if err != nil {
			c.logger.Error("failed to set manual focus", "error", err)
		}
	}
	c.scheduleFallback()
}

// updateManualFocus stages tap metering regions and single-shot AF. The
// regions are skipped when the device cannot place them.
func (c *Controller) updateManualFocus(nx, ny float64) {
	switch {
	case !c.hasManualFocus():
	case c.chars.SensorOrientation == nil || !c.zs.hasCrop:
		c.logger.Debug("metering regions skipped", "error", ErrMissingMetadata)
	default:
		af, ae := geometry.RegionsForNormalizedPoint(nx, ny, c.zs.crop, *c.chars.SensorOrientation, c.facing)
		c.setRegions(af, ae)
	}
	if c.chars.SupportsAutoFocus() {
		c.builder.SetAFMode(hardware.AFModeAuto)
	}
}

func (c *Controller) scheduleFallback() {
	c.cancelFallback()
	gen, seq := c.gen, c.fallbackSeq
	c.fallback = c.clock.AfterFunc(c.focusHold, func() {
		c.post(func() { c.returnToContinuousAF(gen, seq) })
	})
}

// cancelFallback stops the pending fallback. A fallback that already fired
// but has not run yet is invalidated by the sequence bump.
func (c *Controller) cancelFallback() {
	c.fallbackSeq++
	if c.fallback != nil {
		c.fallback.Stop()
		c.fallback = nil
	}
}

func (c *Controller) returnToContinuousAF(gen, seq uint64) {
	if gen != c.gen || seq != c.fallbackSeq || c.builder == nil {
		return
	}
	c.fallback = nil
	c.updateAutoFocus()
	if c.session == nil {
		return
	}
	if err := c.setRepeating(); err != nil {
		c.logger.Warn("failed to return to continuous autofocus", "error", err)
	}
}
