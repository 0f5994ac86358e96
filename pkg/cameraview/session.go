package cameraview

import (
	"errors"
	"fmt"

	"github.com/teslashibe/go-cameraview/pkg/camera"
	"github.com/teslashibe/go-cameraview/pkg/geometry"
	"github.com/teslashibe/go-cameraview/pkg/hardware"
	"github.com/teslashibe/go-cameraview/pkg/sizes"
)

func (c *Controller) start() {
	if c.lifecycle != LifecycleClosed {
		return
	}
	c.gen++

	id, chars, facing, err := c.selectDevice()
	if err != nil {
		if errors.Is(err, ErrCameraUnavailable) {
			c.logger.Warn("no usable camera", "error", err)
			if c.cb.OnCameraUnavailable != nil {
				c.cb.OnCameraUnavailable()
			}
			return
		}
		c.fail(err)
		return
	}
	c.deviceID = id
	c.chars = chars
	c.facing = facing

	if err := c.collectSizes(); err != nil {
		c.fail(&DeviceError{ID: id, Err: err})
		c.discardDevice()
		return
	}
	if err := c.prepareStillOutput(); err != nil {
		c.fail(&DeviceError{ID: id, Err: err})
		c.discardDevice()
		return
	}

	c.lifecycle = LifecycleOpening
	c.results = &resultListener{c: c, gen: c.gen}
	c.logger.Info("opening camera", "id", id, "facing", facing, "ratio", c.ratio)

	if err := c.hw.Open(id, &deviceListener{c: c, gen: c.gen}); err != nil {
		c.openFailed(err)
	}
}

func (c *Controller) stop() {
	c.gen++
	c.teardown()
}

// teardown releases the session, the device and the still output, in that
// order, and cancels the focus-hold fallback.
func (c *Controller) teardown() {
	wasOpen := c.device != nil

	c.closeSession()
	if c.device != nil {
		if err := c.device.Close(); err != nil {
			c.logger.Debug("device close failed", "error", err)
		}
		c.device = nil
	}
	if c.still != nil {
		if err := c.still.Close(); err != nil {
			c.logger.Debug("still output close failed", "error", err)
		}
		c.still = nil
	}
	c.cancelFallback()

	c.machine.Reset()
	c.builder = nil
	c.results = nil
	c.lifecycle = LifecycleClosed
	c.discardDevice()

	if wasOpen {
		c.logger.Info("camera closed")
		if c.cb.OnCameraClosed != nil {
			c.cb.OnCameraClosed()
		}
	}
}

func (c *Controller) closeSession() {
	if c.session == nil {
		return
	}
	if err := c.session.Close(); err != nil {
		c.logger.Debug("session close failed", "error", err)
	}
	c.session = nil
}

func (c *Controller) discardDevice() {
	c.deviceID = ""
	c.chars = nil
	c.previewSizes = nil
	c.pictureSizes = nil
	c.previewSize = sizes.Size{}
	c.pictureSize = sizes.Size{}
	c.zs = zoomState{zoom: c.zs.zoom}
}

// selectDevice picks the first non-legacy device facing the desired way.
// Without a match it falls back to the first enumerated device and
// derives the facing from it.
func (c *Controller) selectDevice() (hardware.DeviceID, *hardware.Characteristics, camera.Facing, error) {
	ids, err := c.hw.Devices()
	if err != nil {
		return "", nil, c.facing, fmt.Errorf("%w: %w", ErrCameraUnavailable, err)
	}
	if len(ids) == 0 {
		return "", nil, c.facing, ErrCameraUnavailable
	}

	want := hardware.LensFacingBack
	if c.facing == camera.FacingFront {
		want = hardware.LensFacingFront
	}
	for _, id := range ids {
		chars, err := c.hw.Characteristics(id)
		if err != nil {
			c.logger.Warn("skipping device", "id", id, "error", err)
			continue
		}
		if chars.HardwareLevel == nil || *chars.HardwareLevel == hardware.HardwareLevelLegacy {
			continue
		}
		if chars.LensFacing == nil {
			return "", nil, c.facing, &DeviceError{ID: id, Err: missing("lens facing")}
		}
		if *chars.LensFacing == want {
			return id, chars, c.facing, nil
		}
	}

	id := ids[0]
	chars, err := c.hw.Characteristics(id)
	if err != nil {
		return "", nil, c.facing, fmt.Errorf("%w: %w", ErrCameraUnavailable, err)
	}
	if chars.HardwareLevel == nil || *chars.HardwareLevel == hardware.HardwareLevelLegacy {
		return "", nil, c.facing, ErrCameraUnavailable
	}
	if chars.LensFacing == nil {
		return "", nil, c.facing, &DeviceError{ID: id, Err: missing("lens facing")}
	}
	facing := camera.FacingBack
	if *chars.LensFacing == hardware.LensFacingFront {
		facing = camera.FacingFront
	}
	return id, chars, facing, nil
}

// collectSizes builds the preview and picture size maps for the selected
// device and settles the aspect ratio on one both maps support.
func (c *Controller) collectSizes() error {
	streams := c.chars.Streams
	if streams == nil {
		return missing("stream configuration")
	}
	preview := sizes.Collect(streams.PreviewSizes, c.maxPreview)
	picture := sizes.CollectAll(streams.PictureSizes)
	preview = sizes.Reconcile(preview, picture)
	if preview.IsEmpty() {
		return ErrNoOutputSizes
	}
	c.previewSizes = preview
	c.pictureSizes = picture

	if !preview.Has(c.ratio) {
		fallback := preview.Ratios()[0]
		c.logger.Info("aspect ratio not supported, using fallback", "want", c.ratio, "using", fallback)
		c.ratio = fallback
	}
	return nil
}

func (c *Controller) prepareStillOutput() error {
	if c.still != nil {
		if err := c.still.Close(); err != nil {
			c.logger.Debug("still output close failed", "error", err)
		}
		c.still = nil
	}

	size, ok := c.pictureSizes.Largest(c.ratio)
	if !ok {
		return ErrNoOutputSizes
	}
	if c.cb.ChoosePictureSize != nil {
		size = c.cb.ChoosePictureSize(c.pictureSizes, c.ratio, size)
	}

	gen := c.gen
	still, err := c.hw.NewStillOutput(size, func(data []byte) {
		c.post(func() { c.onPicture(gen, data) })
	})
	if err != nil {
		return fmt.Errorf("still output: %w", err)
	}
	c.still = still
	c.pictureSize = size
	return nil
}

// startCaptureSession configures a session over the preview and the still
// output. It waits for the device to open and the preview to be ready.
func (c *Controller) startCaptureSession() {
	if !c.opened() || !c.preview.Ready() || c.still == nil {
		return
	}
	c.closeSession()
	c.machine.Reset()

	size := c.choosePreviewSize()
	if c.cb.ChoosePreviewSize != nil {
		size = c.cb.ChoosePreviewSize(c.pictureSizes, c.ratio, size)
	}
	c.previewSize = size
	c.preview.SetBufferSize(size)

	surface := c.preview.Surface()
	c.builder = hardware.NewRequestBuilder(hardware.TemplatePreview, surface)
	c.lifecycle = LifecycleConfiguring

	c.attempt++
	l := &sessionListener{c: c, gen: c.gen, attempt: c.attempt}
	outputs := []hardware.Surface{surface, c.still.Surface()}
	if err := c.device.CreateSession(outputs, l); err != nil {
		c.lifecycle = LifecycleOpened
		c.fail(&DeviceError{ID: c.deviceID, Err: fmt.Errorf("%w: %w", ErrConfigurationFailed, err)})
	}
}

func (c *Controller) choosePreviewSize() sizes.Size {
	candidates := c.previewSizes.Sizes(c.ratio)
	view := c.preview.Size()
	size, _ := sizes.ChooseOptimal(candidates, view.Width, view.Height)
	return size
}

func (c *Controller) onOpened(gen uint64, dev hardware.Device) {
	if gen != c.gen || c.lifecycle != LifecycleOpening {
		if err := dev.Close(); err != nil {
			c.logger.Debug("stale device close failed", "error", err)
		}
		return
	}
	c.device = dev
	c.lifecycle = LifecycleOpened
	c.logger.Info("camera opened", "id", dev.ID())
	if c.cb.OnCameraOpened != nil {
		c.cb.OnCameraOpened()
	}
	c.startCaptureSession()
}

func (c *Controller) onDeviceLost(gen uint64, err error) {
	if gen != c.gen {
		return
	}
	if c.device == nil {
		if c.lifecycle == LifecycleOpening {
			c.openFailed(err)
		}
		return
	}
	if err != nil {
		c.fail(&DeviceError{ID: c.deviceID, Err: err})
	} else {
		c.logger.Warn("camera disconnected", "id", c.deviceID)
	}
	c.gen++
	c.teardown()
}

// openFailed handles a device that failed or went away before it opened.
func (c *Controller) openFailed(err error) {
	switch {
	case err == nil:
		err = hardware.ErrDeviceClosed
	case errors.Is(err, hardware.ErrAccessDenied):
		err = fmt.Errorf("%w: %w", ErrAccessDenied, err)
	}
	id := c.deviceID
	c.gen++
	c.teardown()
	c.fail(&DeviceError{ID: id, Err: err})
}

func (c *Controller) onConfigured(gen, attempt uint64, s hardware.Session) {
	if gen != c.gen || attempt != c.attempt || !c.opened() || c.lifecycle != LifecycleConfiguring {
		if err := s.Close(); err != nil {
			c.logger.Debug("stale session close failed", "error", err)
		}
		return
	}
	c.session = s
	c.lifecycle = LifecycleConfigured

	c.updateZoom()
	c.updateAutoFocus()
	c.updateFlash()
	if c.cb.OnSessionConfigured != nil {
		c.cb.OnSessionConfigured()
	}
	if err := c.setRepeating(); err != nil {
		c.logger.Error("failed to start preview", "error", err)
	}
}

func (c *Controller) onConfigureFailed(gen, attempt uint64, err error) {
	if gen != c.gen || attempt != c.attempt {
		return
	}
	c.lifecycle = LifecycleOpened
	c.builder = nil
	c.fail(&DeviceError{ID: c.deviceID, Err: fmt.Errorf("%w: %w", ErrConfigurationFailed, err)})
}

func (c *Controller) onSessionClosed(s hardware.Session) {
	if c.session != nil && c.session == s {
		c.session = nil
		if c.lifecycle == LifecycleConfigured {
			c.lifecycle = LifecycleOpened
		}
	}
}

// setRepeating submits the current builder as the repeating preview.
func (c *Controller) setRepeating() error {
	if c.session == nil || c.builder == nil {
		return hardware.ErrSessionClosed
	}
	return c.session.SetRepeating(c.builder.Snapshot(), c.results)
}

func (c *Controller) setFacing(f camera.Facing) {
	if c.facing == f {
		return
	}
	c.facing = f
	if c.lifecycle != LifecycleClosed {
		c.stop()
		c.start()
	}
}

func (c *Controller) setAspectRatio(r sizes.AspectRatio) {
	if r.IsZero() || r == c.ratio {
		return
	}
	if c.previewSizes == nil {
		c.ratio = r
		return
	}
	if !c.previewSizes.Has(r) {
		c.logger.Warn("unsupported aspect ratio", "ratio", r)
		return
	}

	reconfigure := c.session != nil || c.lifecycle == LifecycleConfiguring
	c.closeSession()

	prev := c.ratio
	c.ratio = r
	if err := c.prepareStillOutput(); err != nil {
		c.ratio = prev
		c.fail(&DeviceError{ID: c.deviceID, Err: err})
		if err := c.prepareStillOutput(); err != nil {
			c.fail(&DeviceError{ID: c.deviceID, Err: err})
		}
	}
	if reconfigure {
		c.startCaptureSession()
	}
}

func (c *Controller) setDisplayOrientation(deg int) {
	c.displayOrientation = deg
	c.preview.SetDisplayOrientation(deg)
}

func (c *Controller) setAutoFocus(on bool) {
	if c.autoFocus == on {
		return
	}
	prev := c.autoFocus
	prevZS := c.zs
	c.autoFocus = on
	if c.session == nil || c.builder == nil {
		return
	}
	prevMode, hadMode := c.builder.AFMode()
	c.updateAutoFocus()
	if err := c.setRepeating(); err != nil {
		c.logger.Warn("autofocus change rejected", "error", err)
		c.autoFocus = prev
		c.zs = prevZS
		if hadMode {
			c.builder.SetAFMode(prevMode)
		}
		c.applyZoomState()
	}
}

func (c *Controller) setFlash(f camera.Flash) {
	if c.flash == f {
		return
	}
	prev := c.flash
	c.flash = f
	if c.session == nil || c.builder == nil {
		return
	}
	c.updateFlash()
	if err := c.setRepeating(); err != nil {
		c.logger.Warn("flash change rejected", "error", err)
		c.flash = prev
		c.updateFlash()
	}
}

func (c *Controller) setZoom(z float64) {
	if c.chars == nil {
		c.zs.zoom = geometry.ClampZoom(z, camera.MaxZoomLevel)
		return
	}
	if geometry.ClampZoom(z, c.maxZoom()) == c.zs.zoom {
		return
	}
	prev := c.zs
	c.zs.zoom = z
	if !c.updateZoom() {
		c.zs = prev
		return
	}
	c.resetRegions()
	if c.session == nil {
		return
	}
	if err := c.setRepeating(); err != nil {
		c.logger.Warn("zoom change rejected", "error", err)
		c.zs = prev
		c.applyZoomState()
	}
}

// updateZoom derives the crop region from the zoom factor and stages it.
// It reports false, leaving the previous crop, when the device lacks the
// metadata.
func (c *Controller) updateZoom() bool {
	crop, effective, ok := geometry.CropRegionForZoom(c.chars.ActiveArray, c.chars.MaxDigitalZoom, c.zs.zoom)
	if !ok {
		c.logger.Debug("zoom unsupported", "error", ErrMissingMetadata)
		return false
	}
	c.zs.zoom = effective
	c.zs.crop = crop
	c.zs.hasCrop = true
	if c.builder != nil {
		c.builder.SetCropRegion(crop)
	}
	return true
}

// updateAutoFocus stages the AF mode for the autofocus flag and resets
// the metering regions. Autofocus is switched off for fixed-focus devices.
func (c *Controller) updateAutoFocus() {
	if c.builder == nil {
		return
	}
	if c.autoFocus && !c.chars.SupportsAutoFocus() {
		c.autoFocus = false
	}
	if c.autoFocus {
		c.builder.SetAFMode(hardware.AFModeContinuousPicture)
	} else {
		c.builder.SetAFMode(hardware.AFModeOff)
	}
	c.resetRegions()
}

func (c *Controller) resetRegions() {
	if !c.hasManualFocus() || !c.zs.hasCrop {
		return
	}
	zero := geometry.ZeroWeightRegions(c.zs.crop)
	c.setRegions(zero, zero)
}

func (c *Controller) setRegions(af, ae []geometry.MeteringRectangle) {
	c.zs.afRegions = geometry.TrimRegions(af, c.chars.AFRegionCount())
	c.zs.aeRegions = geometry.TrimRegions(ae, c.chars.AERegionCount())
	if c.builder != nil {
		c.builder.SetAFRegions(c.zs.afRegions)
		c.builder.SetAERegions(c.zs.aeRegions)
	}
}

// applyZoomState restages the crop and regions held in c.zs.
func (c *Controller) applyZoomState() {
	if c.builder == nil {
		return
	}
	if c.zs.hasCrop {
		c.builder.SetCropRegion(c.zs.crop)
	}
	c.builder.SetAFRegions(c.zs.afRegions)
	c.builder.SetAERegions(c.zs.aeRegions)
}

// updateFlash stages the preview AE and flash modes for the flash setting.
func (c *Controller) updateFlash() {
	if c.builder == nil {
		return
	}
	ae, flash := previewFlashModes(c.flash)
	c.builder.SetAEMode(ae).SetFlashMode(flash)
}

func previewFlashModes(f camera.Flash) (hardware.AEMode, hardware.FlashMode) {
	switch f {
	case camera.FlashOn:
		return hardware.AEModeOnAlwaysFlash, hardware.FlashModeOff
	case camera.FlashTorch:
		return hardware.AEModeOn, hardware.FlashModeTorch
	case camera.FlashAuto:
		return hardware.AEModeOnAutoFlash, hardware.FlashModeOff
	case camera.FlashRedEye:
		return hardware.AEModeOnAutoFlashRedEye, hardware.FlashModeOff
	}
	return hardware.AEModeOn, hardware.FlashModeOff
}
