package cameraview

import (
	"errors"
	"fmt"

	"github.com/teslashibe/go-cameraview/pkg/hardware"
)

// Common errors
var (
	// ErrCameraUnavailable means no device could be selected.
	ErrCameraUnavailable = errors.New("cameraview: camera not available")

	// ErrAccessDenied means the platform refused to open the device.
	ErrAccessDenied = errors.New("cameraview: access denied")

	// ErrConfigurationFailed means the capture session could not be
	// configured. Retry by reconfiguring the preview surface or restarting.
	ErrConfigurationFailed = errors.New("cameraview: session configuration failed")

	// ErrMissingMetadata means a characteristic the device should report
	// is absent.
	ErrMissingMetadata = errors.New("cameraview: missing metadata")

	// ErrNoOutputSizes means no preview size has a matching picture size.
	ErrNoOutputSizes = errors.New("cameraview: no usable output sizes")

	// ErrContractViolation means the hardware broke a guarantee every
	// compliant device gives.
	ErrContractViolation = errors.New("cameraview: hardware contract violation")

	// ErrCaptureFailed means a still capture did not produce a picture.
	ErrCaptureFailed = errors.New("cameraview: still capture failed")
)

// DeviceError is an error tied to one device.
type DeviceError struct {
	ID  hardware.DeviceID
	Err error
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("cameraview: device %s: %v", e.ID, e.Err)
}

func (e *DeviceError) Unwrap() error {
	return e.Err
}

func missing(key string) error {
	return fmt.Errorf("%w: %w: %s", ErrContractViolation, ErrMissingMetadata, key)
}
