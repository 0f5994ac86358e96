package hardware

import (
	"fmt"
	"image"

	"github.com/teslashibe/go-cameraview/pkg/sizes"
)

// DeviceID identifies a capture device.
type DeviceID string

// LensFacing is the direction a device points, as reported by the device.
type LensFacing int

const (
	LensFacingFront LensFacing = iota
	LensFacingBack
	LensFacingExternal
)

func (f LensFacing) String() string {
	switch f {
	case LensFacingFront:
		return "front"
	case LensFacingBack:
		return "back"
	case LensFacingExternal:
		return "external"
	}
	return fmt.Sprintf("lens(%d)", int(f))
}

// HardwareLevel is the capability tier a device reports.
type HardwareLevel int

const (
	HardwareLevelLimited HardwareLevel = iota
	HardwareLevelFull
	HardwareLevelLegacy
	HardwareLevel3
	HardwareLevelExternal
)

// AFMode is the autofocus mode of a request.
type AFMode int

const (
	AFModeOff AFMode = iota
	AFModeAuto
	AFModeMacro
	AFModeContinuousVideo
	AFModeContinuousPicture
	AFModeEDOF
)

// AEMode is the auto-exposure mode of a request.
type AEMode int

const (
	AEModeOff AEMode = iota
	AEModeOn
	AEModeOnAutoFlash
	AEModeOnAlwaysFlash
	AEModeOnAutoFlashRedEye
)

// FlashMode is the flash unit mode of a request.
type FlashMode int

const (
	FlashModeOff FlashMode = iota
	FlashModeSingle
	FlashModeTorch
)

// AFTrigger starts or cancels an autofocus scan.
type AFTrigger int

const (
	AFTriggerIdle AFTrigger = iota
	AFTriggerStart
	AFTriggerCancel
)

// AEPrecaptureTrigger starts or cancels an exposure precapture sequence.
type AEPrecaptureTrigger int

const (
	AEPrecaptureTriggerIdle AEPrecaptureTrigger = iota
	AEPrecaptureTriggerStart
	AEPrecaptureTriggerCancel
)

// AFState is the autofocus state reported in a result.
type AFState int

const (
	AFStateInactive AFState = iota
	AFStatePassiveScan
	AFStatePassiveFocused
	AFStateActiveScan
	AFStateFocusedLocked
	AFStateNotFocusedLocked
	AFStatePassiveUnfocused
)

func (s AFState) String() string {
	switch s {
	case AFStateInactive:
		return "inactive"
	case AFStatePassiveScan:
		return "passive_scan"
	case AFStatePassiveFocused:
		return "passive_focused"
	case AFStateActiveScan:
		return "active_scan"
	case AFStateFocusedLocked:
		return "focused_locked"
	case AFStateNotFocusedLocked:
		return "not_focused_locked"
	case AFStatePassiveUnfocused:
		return "passive_unfocused"
	}
	return fmt.Sprintf("af_state(%d)", int(s))
}

// AEState is the auto-exposure state reported in a result.
type AEState int

const (
	AEStateInactive AEState = iota
	AEStateSearching
	AEStateConverged
	AEStateLocked
	AEStateFlashRequired
	AEStatePrecapture
)

func (s AEState) String() string {
	switch s {
	case AEStateInactive:
		return "inactive"
	case AEStateSearching:
		return "searching"
	case AEStateConverged:
		return "converged"
	case AEStateLocked:
		return "locked"
	case AEStateFlashRequired:
		return "flash_required"
	case AEStatePrecapture:
		return "precapture"
	}
	return fmt.Sprintf("ae_state(%d)", int(s))
}

// Template selects the base configuration of a request.
type Template int

const (
	TemplatePreview Template = iota
	TemplateStillCapture
)

// StreamConfiguration lists the output sizes a device supports.
type StreamConfiguration struct {
	// PreviewSizes are sizes usable by the preview surface.
	PreviewSizes []sizes.Size
	// PictureSizes are sizes usable by the JPEG still output.
	PictureSizes []sizes.Size
}

// Characteristics is the static metadata of one device. Optional keys are
// pointers and nil when the device does not report them.
type Characteristics struct {
	LensFacing        *LensFacing
	HardwareLevel     *HardwareLevel
	ActiveArray       *image.Rectangle
	MaxDigitalZoom    *float64
	SensorOrientation *int
	AFModes           []AFMode
	MaxAFRegions      *int
	MaxAERegions      *int
	Streams           *StreamConfiguration
}

// SupportsAutoFocus reports whether any AF mode other than Off exists.
func (c *Characteristics) SupportsAutoFocus() bool {
	if len(c.AFModes) == 0 {
		return false
	}
	return !(len(c.AFModes) == 1 && c.AFModes[0] == AFModeOff)
}

// AFRegionCount returns the AF metering capability, zero when unknown.
func (c *Characteristics) AFRegionCount() int {
	if c.MaxAFRegions == nil {
		return 0
	}
	return *c.MaxAFRegions
}

// AERegionCount returns the AE metering capability, zero when unknown.
func (c *Characteristics) AERegionCount() int {
	if c.MaxAERegions == nil {
		return 0
	}
	return *c.MaxAERegions
}

// Result carries the per-frame 3A state streamed back for a request.
// Partial results may omit either field.
type Result struct {
	AFState *AFState
	AEState *AEState
}

// ResultOf builds a result; pass nil for an absent field.
func ResultOf(af *AFState, ae *AEState) Result {
	return Result{AFState: af, AEState: ae}
}

// AF returns a pointer to s, for building results.
func AF(s AFState) *AFState { return &s }

// AE returns a pointer to s, for building results.
func AE(s AEState) *AEState { return &s }
