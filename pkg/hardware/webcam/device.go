package webcam

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-cameraview/pkg/hardware"
	"github.com/teslashibe/go-cameraview/pkg/sizes"
)

var errReadFrame = errors.New("webcam: failed to read frame")

type device struct {
	id       hardware.DeviceID
	active   sizes.Size
	interval time.Duration
	listener hardware.DeviceListener
	logger   *slog.Logger

	mu       sync.Mutex
	src      Source
	closed   bool
	lost     bool
	failures int
	session  *session
}

func (d *device) ID() hardware.DeviceID { return d.id }

// attach installs the opened source. It reports false, closing src, when
// the device was closed while opening.
func (d *device) attach(src Source) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		src.Close()
		return false
	}
	d.src = src
	return true
}

func (d *device) CreateSession(outputs []hardware.Surface, listener hardware.SessionListener) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return hardware.ErrDeviceClosed
	}
	prev := d.session
	s := newSession(d, outputs, listener)
	d.session = s
	d.mu.Unlock()

	if prev != nil {
		prev.Close()
	}
	go s.run()
	go listener.OnConfigured(s)
	return nil
}

func (d *device) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	s := d.session
	d.session = nil
	src := d.src
	d.src = nil
	d.mu.Unlock()

	if s != nil {
		s.Close()
	}
	var err error
	if src != nil {
		err = src.Close()
	}
	go d.listener.OnClosed(d)
	return err
}

// read grabs one frame. Repeated failures disconnect the device.
func (d *device) read(frame *gocv.Mat) error {
	d.mu.Lock()
	if d.closed || d.src == nil {
		d.mu.Unlock()
		return hardware.ErrDeviceClosed
	}
	ok := d.src.Read(frame) && !frame.Empty()
	if ok {
		d.failures = 0
		d.mu.Unlock()
		return nil
	}
	d.failures++
	disconnect := d.failures >= maxReadFailures && !d.lost
	if disconnect {
		d.lost = true
	}
	d.mu.Unlock()

	if disconnect {
		d.logger.Warn("device stopped delivering frames", "failures", maxReadFailures)
		go d.listener.OnDisconnected(d)
	}
	return errReadFrame
}

type submission struct {
	req      hardware.Request
	listener hardware.ResultListener
}

// session runs requests against its device on a frame loop. One-shot
// captures are served on the next frame; the repeating request is served
// on every frame.
type session struct {
	dev      *device
	outputs  []hardware.Surface
	listener hardware.SessionListener

	mu        sync.Mutex
	closed    bool
	repeating *submission
	pending   []submission

	wake chan struct{}
	done chan struct{}
}

func newSession(d *device, outputs []hardware.Surface, listener hardware.SessionListener) *session {
	return &session{
		dev:      d,
		outputs:  append([]hardware.Surface(nil), outputs...),
		listener: listener,
		wake:     make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
}

func (s *session) Capture(req hardware.Request, listener hardware.ResultListener) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return hardware.ErrSessionClosed
	}
	s.pending = append(s.pending, submission{req: req, listener: listener})
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
	return nil
}

func (s *session) SetRepeating(req hardware.Request, listener hardware.ResultListener) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return hardware.ErrSessionClosed
	}
	s.repeating = &submission{req: req, listener: listener}
	return nil
}

func (s *session) StopRepeating() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return hardware.ErrSessionClosed
	}
	s.repeating = nil
	return nil
}

func (s *session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.repeating = nil
	s.pending = nil
	close(s.done)
	s.mu.Unlock()

	go s.listener.OnClosed(s)
	return nil
}

func (s *session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *session) run() {
	ticker := time.NewTicker(s.dev.interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-s.wake:
		case <-ticker.C:
		}
		s.step()
	}
}

func (s *session) step() {
	s.mu.Lock()
	pending := s.pending
	s.pending = nil
	var repeating *submission
	if s.repeating != nil {
		r := *s.repeating
		repeating = &r
	}
	s.mu.Unlock()
	if len(pending) == 0 && repeating == nil {
		return
	}

	frame := gocv.NewMat()
	defer frame.Close()
	if err := s.dev.read(&frame); err != nil {
		// The repeating request simply skips the frame.
		for _, p := range pending {
			p.listener.OnFailed(p.req, err)
		}
		return
	}

	for _, p := range pending {
		s.serve(&frame, p)
	}
	if repeating != nil {
		s.serve(&frame, *repeating)
	}
}

// serve renders frame into every target of sub and reports the result.
func (s *session) serve(frame *gocv.Mat, sub submission) {
	if s.isClosed() {
		return
	}
	req := sub.req
	crop := frameCrop(req.CropRegion, s.dev.active, frame.Cols(), frame.Rows())

	for _, t := range req.Targets {
		switch out := t.(type) {
		case *stillOutput:
			rotation := 0
			if req.JPEGOrientation != nil {
				rotation = *req.JPEGOrientation
			}
			data, err := encode(frame, crop, out.Size(), rotation)
			if err != nil {
				sub.listener.OnFailed(req, err)
				return
			}
			out.deliver(data)
		case hardware.FrameSink:
			data, err := encode(frame, crop, out.Size(), 0)
			if err != nil {
				sub.listener.OnFailed(req, err)
				return
			}
			out.WriteFrame(data)
		}
	}
	sub.listener.OnCompleted(req, hardware.ResultOf(
		hardware.AF(hardware.AFStateInactive),
		hardware.AE(hardware.AEStateConverged),
	))
}
