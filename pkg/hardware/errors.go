package hardware

import "errors"

var (
	// ErrAccessDenied is returned when the platform refuses to open a device.
	ErrAccessDenied = errors.New("hardware: access denied")

	// ErrUnknownDevice is returned for an id that was never enumerated.
	ErrUnknownDevice = errors.New("hardware: unknown device")

	// ErrDeviceClosed is returned when using a closed device.
	ErrDeviceClosed = errors.New("hardware: device closed")

	// ErrSessionClosed is returned when submitting to a closed session.
	ErrSessionClosed = errors.New("hardware: session closed")

	// ErrIllegalState is returned for requests the device cannot honour in
	// its current state, typically while a teardown is in progress.
	ErrIllegalState = errors.New("hardware: illegal state")
)
