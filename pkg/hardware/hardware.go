// Package hardware defines the contract between the session controller and
// a capture device: device enumeration and characteristics, device and
// session lifecycle, and the per-request result stream.
//
// Implementations deliver every listener callback on their own goroutines.
// Consumers must not assume callbacks arrive on the calling goroutine.
//
// Three independent event channels are exposed as small listener
// interfaces:
//
//   - DeviceListener: device opened, closed, disconnected, failed
//   - SessionListener: session configured, configuration failed, closed
//   - ResultListener: partial and total results for each submitted request
package hardware

import "github.com/teslashibe/go-cameraview/pkg/sizes"

// Surface is an output target that frames can be routed to.
type Surface interface {
	// Size is the current buffer size of the surface.
	Size() sizes.Size
}

// FrameSink is a Surface that accepts encoded preview frames. Backends
// that produce frames in software write them to targets implementing it.
type FrameSink interface {
	Surface
	WriteFrame(jpeg []byte)
}

// Hardware enumerates and opens devices.
type Hardware interface {
	Devices() ([]DeviceID, error)
	Characteristics(id DeviceID) (*Characteristics, error)

	// Open starts opening a device. A returned error means the request was
	// rejected outright (for example ErrAccessDenied); otherwise the
	// outcome arrives on listener.
	Open(id DeviceID, listener DeviceListener) error

	// NewStillOutput creates a JPEG output of the given size. onImage is
	// called with the encoded bytes once per completed still capture.
	NewStillOutput(size sizes.Size, onImage func([]byte)) (StillOutput, error)
}

// Device is an opened capture device.
type Device interface {
	ID() DeviceID

	// CreateSession configures a session over outputs. The result arrives
	// on listener.
	CreateSession(outputs []Surface, listener SessionListener) error

	Close() error
}

// Session submits requests to a configured device.
type Session interface {
	Capture(req Request, listener ResultListener) error
	SetRepeating(req Request, listener ResultListener) error
	StopRepeating() error
	Close() error
}

// StillOutput receives still captures.
type StillOutput interface {
	Surface() Surface
	Close() error
}

// DeviceListener observes device lifecycle.
type DeviceListener interface {
	OnOpened(dev Device)
	OnClosed(dev Device)
	OnDisconnected(dev Device)
	OnError(dev Device, err error)
}

// SessionListener observes session lifecycle.
type SessionListener interface {
	OnConfigured(s Session)
	OnConfigureFailed(s Session, err error)
	OnClosed(s Session)
}

// ResultListener observes the results of submitted requests. Partial
// results for a request never arrive after its completion.
type ResultListener interface {
	OnProgressed(req Request, partial Result)
	OnCompleted(req Request, total Result)
	OnFailed(req Request, err error)
}
