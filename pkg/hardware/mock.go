package hardware

import (
	"sync"

	"github.com/teslashibe/go-cameraview/pkg/sizes"
)

// Mock implements Hardware for testing. Devices open and sessions
// configure immediately: listener callbacks are invoked synchronously from
// the calling method. Results are scripted by the test through
// MockSession.
type Mock struct {
	// OpenFunc is called when Open is invoked. A non-nil error rejects
	// the open.
	OpenFunc func(id DeviceID) error

	// OpenErrorFunc is called after OpenFunc accepts the open. A non-nil
	// error is reported through DeviceListener.OnError with a nil device
	// instead of opening, the way asynchronous backends fail.
	OpenErrorFunc func(id DeviceID) error

	// ConfigureFunc is called when a session is created. A non-nil error
	// is reported through OnConfigureFailed.
	ConfigureFunc func(outputs []Surface) error

	// SubmitFunc is called for every Capture and SetRepeating. A non-nil
	// error is returned to the caller and the request is not recorded.
	SubmitFunc func(req Request) error

	// DevicesErr is returned by Devices when set.
	DevicesErr error

	mu      sync.Mutex
	ids     []DeviceID
	chars   map[DeviceID]*Characteristics
	opens   []DeviceID
	events  []string
	devices []*MockDevice
	stills  []*MockStillOutput
}

// NewMock creates an empty mock with no devices.
func NewMock() *Mock {
	return &Mock{chars: make(map[DeviceID]*Characteristics)}
}

// AddDevice registers a device. Devices enumerate in insertion order.
func (m *Mock) AddDevice(id DeviceID, c *Characteristics) *Mock {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.chars[id]; !ok {
		m.ids = append(m.ids, id)
	}
	m.chars[id] = c
	return m
}

func (m *Mock) Devices() ([]DeviceID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.DevicesErr != nil {
		return nil, m.DevicesErr
	}
	return append([]DeviceID(nil), m.ids...), nil
}

func (m *Mock) Characteristics(id DeviceID) (*Characteristics, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.chars[id]
	if !ok {
		return nil, ErrUnknownDevice
	}
	return c, nil
}

func (m *Mock) Open(id DeviceID, listener DeviceListener) error {
	m.mu.Lock()
	m.opens = append(m.opens, id)
	_, ok := m.chars[id]
	m.mu.Unlock()

	if !ok {
		return ErrUnknownDevice
	}
	if m.OpenFunc != nil {
		if err := m.OpenFunc(id); err != nil {
			return err
		}
	}

	if m.OpenErrorFunc != nil {
		if err := m.OpenErrorFunc(id); err != nil {
			listener.OnError(nil, err)
			return nil
		}
	}

	dev := &MockDevice{mock: m, id: id, listener: listener}
	m.mu.Lock()
	m.devices = append(m.devices, dev)
	m.mu.Unlock()

	listener.OnOpened(dev)
	return nil
}

func (m *Mock) NewStillOutput(size sizes.Size, onImage func([]byte)) (StillOutput, error) {
	out := &MockStillOutput{mock: m, size: size, onImage: onImage}
	m.mu.Lock()
	m.stills = append(m.stills, out)
	m.mu.Unlock()
	return out, nil
}

// Opens returns the ids passed to Open, in order.
func (m *Mock) Opens() []DeviceID {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]DeviceID(nil), m.opens...)
}

// Events returns the teardown log: "session.close", "device.close" and
// "still.close" entries in the order they happened.
func (m *Mock) Events() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.events...)
}

// ResetEvents clears the teardown log.
func (m *Mock) ResetEvents() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = nil
}

// Device returns the most recently opened device, or nil.
func (m *Mock) Device() *MockDevice {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.devices) == 0 {
		return nil
	}
	return m.devices[len(m.devices)-1]
}

// Session returns the most recently created session, or nil.
func (m *Mock) Session() *MockSession {
	dev := m.Device()
	if dev == nil {
		return nil
	}
	return dev.Session()
}

// StillOutput returns the most recently created still output, or nil.
func (m *Mock) StillOutput() *MockStillOutput {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.stills) == 0 {
		return nil
	}
	return m.stills[len(m.stills)-1]
}

func (m *Mock) event(name string) {
	m.mu.Lock()
	m.events = append(m.events, name)
	m.mu.Unlock()
}

// MockDevice is a device opened by Mock.
type MockDevice struct {
	mock     *Mock
	id       DeviceID
	listener DeviceListener

	mu       sync.Mutex
	closed   bool
	outputs  []Surface
	sessions []*MockSession
}

func (d *MockDevice) ID() DeviceID { return d.id }

func (d *MockDevice) CreateSession(outputs []Surface, listener SessionListener) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return ErrDeviceClosed
	}
	d.outputs = append([]Surface(nil), outputs...)
	s := &MockSession{mock: d.mock, listener: listener}
	d.sessions = append(d.sessions, s)
	d.mu.Unlock()

	if d.mock.ConfigureFunc != nil {
		if err := d.mock.ConfigureFunc(outputs); err != nil {
			listener.OnConfigureFailed(s, err)
			return nil
		}
	}
	listener.OnConfigured(s)
	return nil
}

func (d *MockDevice) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	d.mu.Unlock()

	d.mock.event("device.close")
	d.listener.OnClosed(d)
	return nil
}

// Closed reports whether Close was called.
func (d *MockDevice) Closed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

// Outputs returns the surfaces of the last CreateSession.
func (d *MockDevice) Outputs() []Surface {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Surface(nil), d.outputs...)
}

// Session returns the most recent session, or nil.
func (d *MockDevice) Session() *MockSession {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.sessions) == 0 {
		return nil
	}
	return d.sessions[len(d.sessions)-1]
}

// Disconnect simulates the device going away.
func (d *MockDevice) Disconnect() { d.listener.OnDisconnected(d) }

// Fail simulates a fatal device error.
func (d *MockDevice) Fail(err error) { d.listener.OnError(d, err) }

// Submission is a request recorded by MockSession together with the
// listener it was submitted with.
type Submission struct {
	Request  Request
	Listener ResultListener
}

// Complete delivers a total result for this submission.
func (s Submission) Complete(r Result) { s.Listener.OnCompleted(s.Request, r) }

// Progress delivers a partial result for this submission.
func (s Submission) Progress(r Result) { s.Listener.OnProgressed(s.Request, r) }

// Fail delivers a failure for this submission.
func (s Submission) Fail(err error) { s.Listener.OnFailed(s.Request, err) }

// MockSession is a session created by MockDevice.
type MockSession struct {
	mock     *Mock
	listener SessionListener

	mu        sync.Mutex
	closed    bool
	captures  []Submission
	repeating []Submission
	current   *Submission
	stops     int
}

func (s *MockSession) submit(req Request) error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return ErrSessionClosed
	}
	if s.mock.SubmitFunc != nil {
		if err := s.mock.SubmitFunc(req); err != nil {
			return err
		}
	}
	return nil
}

func (s *MockSession) Capture(req Request, listener ResultListener) error {
	if err := s.submit(req); err != nil {
		return err
	}
	s.mu.Lock()
	s.captures = append(s.captures, Submission{Request: req, Listener: listener})
	s.mu.Unlock()
	return nil
}

func (s *MockSession) SetRepeating(req Request, listener ResultListener) error {
	if err := s.submit(req); err != nil {
		return err
	}
	sub := Submission{Request: req, Listener: listener}
	s.mu.Lock()
	s.repeating = append(s.repeating, sub)
	s.current = &sub
	s.mu.Unlock()
	return nil
}

func (s *MockSession) StopRepeating() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	s.stops++
	s.current = nil
	return nil
}

func (s *MockSession) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.current = nil
	s.mu.Unlock()

	s.mock.event("session.close")
	s.listener.OnClosed(s)
	return nil
}

// Closed reports whether Close was called.
func (s *MockSession) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Captures returns the one-shot submissions, in order.
func (s *MockSession) Captures() []Submission {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Submission(nil), s.captures...)
}

// LastCapture returns the most recent one-shot submission.
func (s *MockSession) LastCapture() (Submission, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.captures) == 0 {
		return Submission{}, false
	}
	return s.captures[len(s.captures)-1], true
}

// RepeatingHistory returns every SetRepeating submission, in order.
func (s *MockSession) RepeatingHistory() []Submission {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Submission(nil), s.repeating...)
}

// Repeating returns the active repeating submission.
func (s *MockSession) Repeating() (Submission, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return Submission{}, false
	}
	return *s.current, true
}

// StopCount returns the number of StopRepeating calls.
func (s *MockSession) StopCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stops
}

// Frame delivers a total result for the active repeating request. It
// reports false when nothing is repeating.
func (s *MockSession) Frame(r Result) bool {
	sub, ok := s.Repeating()
	if !ok {
		return false
	}
	sub.Complete(r)
	return true
}

// MockStillOutput is a still output created by Mock.
type MockStillOutput struct {
	mock    *Mock
	size    sizes.Size
	onImage func([]byte)

	mu     sync.Mutex
	closed bool
}

func (o *MockStillOutput) Size() sizes.Size { return o.size }
func (o *MockStillOutput) Surface() Surface { return o }

func (o *MockStillOutput) Close() error {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return nil
	}
	o.closed = true
	o.mu.Unlock()
	o.mock.event("still.close")
	return nil
}

// Closed reports whether Close was called.
func (o *MockStillOutput) Closed() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.closed
}

// Deliver hands encoded bytes to the output's consumer.
func (o *MockStillOutput) Deliver(data []byte) {
	if o.onImage != nil {
		o.onImage(data)
	}
}
