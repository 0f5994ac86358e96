package cameraview

import "github.com/teslashibe/go-cameraview/pkg/hardware"

// The listeners below run on hardware goroutines. Each one only re-posts
// the event to the executor, tagged with the generation it belongs to.

type deviceListener struct {
	c   *Controller
	gen uint64
}

func (l *deviceListener) OnOpened(dev hardware.Device) {
	l.c.post(func() { l.c.onOpened(l.gen, dev) })
}

func (l *deviceListener) OnClosed(dev hardware.Device) {
	l.c.post(func() { l.c.onDeviceLost(l.gen, nil) })
}

func (l *deviceListener) OnDisconnected(dev hardware.Device) {
	l.c.post(func() { l.c.onDeviceLost(l.gen, nil) })
}

func (l *deviceListener) OnError(dev hardware.Device, err error) {
	l.c.post(func() { l.c.onDeviceLost(l.gen, err) })
}

type sessionListener struct {
	c       *Controller
	gen     uint64
	attempt uint64
}

func (l *sessionListener) OnConfigured(s hardware.Session) {
	l.c.post(func() { l.c.onConfigured(l.gen, l.attempt, s) })
}

func (l *sessionListener) OnConfigureFailed(s hardware.Session, err error) {
	l.c.post(func() { l.c.onConfigureFailed(l.gen, l.attempt, err) })
}

func (l *sessionListener) OnClosed(s hardware.Session) {
	l.c.post(func() { l.c.onSessionClosed(s) })
}

// resultListener feeds the repeating preview and the 3A one-shots into the
// capture state machine.
type resultListener struct {
	c   *Controller
	gen uint64
}

func (l *resultListener) OnProgressed(req hardware.Request, partial hardware.Result) {
	l.c.post(func() { l.c.onResult(l.gen, partial) })
}

func (l *resultListener) OnCompleted(req hardware.Request, total hardware.Result) {
	l.c.post(func() { l.c.onResult(l.gen, total) })
}

func (l *resultListener) OnFailed(req hardware.Request, err error) {
	l.c.post(func() {
		l.c.logger.Debug("request failed", "tag", req.Tag, "error", err)
	})
}

// stillListener observes the still capture request.
type stillListener struct {
	c   *Controller
	gen uint64
}

func (l *stillListener) OnProgressed(req hardware.Request, partial hardware.Result) {}

func (l *stillListener) OnCompleted(req hardware.Request, total hardware.Result) {
	l.c.post(func() {
		l.c.logger.Debug("still capture completed", "tag", req.Tag)
	})
}

func (l *stillListener) OnFailed(req hardware.Request, err error) {
	l.c.post(func() { l.c.onStillFailed(l.gen, err) })
}
