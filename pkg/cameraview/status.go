package cameraview

import (
	"fmt"
	"image"

	"github.com/teslashibe/go-cameraview/pkg/camera"
	"github.com/teslashibe/go-cameraview/pkg/capture"
	"github.com/teslashibe/go-cameraview/pkg/hardware"
	"github.com/teslashibe/go-cameraview/pkg/sizes"
)

// Lifecycle is the device/session state of a Controller.
type Lifecycle int

const (
	LifecycleClosed Lifecycle = iota
	LifecycleOpening
	LifecycleOpened
	LifecycleConfiguring
	LifecycleConfigured
)

func (l Lifecycle) String() string {
	switch l {
	case LifecycleClosed:
		return "closed"
	case LifecycleOpening:
		return "opening"
	case LifecycleOpened:
		return "opened"
	case LifecycleConfiguring:
		return "configuring"
	case LifecycleConfigured:
		return "configured"
	}
	return fmt.Sprintf("lifecycle(%d)", int(l))
}

// MarshalText implements encoding.TextMarshaler.
func (l Lifecycle) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// Status is a point-in-time copy of the controller state. It is
// republished after every queued operation.
type Status struct {
	Lifecycle    Lifecycle         `json:"lifecycle"`
	CaptureState capture.State     `json:"capture_state"`
	DeviceID     hardware.DeviceID `json:"device_id,omitempty"`

	Facing                camera.Facing       `json:"facing"`
	AspectRatio           sizes.AspectRatio   `json:"aspect_ratio"`
	SupportedAspectRatios []sizes.AspectRatio `json:"supported_aspect_ratios"`
	AutoFocus             bool                `json:"auto_focus"`
	Flash                 camera.Flash        `json:"flash"`
	Zoom                  float64             `json:"zoom"`
	MaxZoom               float64             `json:"max_zoom"`
	DisplayOrientation    int                 `json:"display_orientation"`

	PreviewSize sizes.Size      `json:"preview_size"`
	PictureSize sizes.Size      `json:"picture_size"`
	CropRegion  image.Rectangle `json:"crop_region"`
	ManualFocus bool            `json:"manual_focus"`
}

// Opened reports whether a device is open.
func (s Status) Opened() bool {
	return s.Lifecycle >= LifecycleOpened
}
