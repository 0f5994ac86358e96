package webcam

import (
	"errors"
	"image"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"

	"github.com/teslashibe/go-cameraview/internal/log"
	"github.com/teslashibe/go-cameraview/pkg/hardware"
	"github.com/teslashibe/go-cameraview/pkg/sizes"
)

const wait = 2 * time.Second

type fakeSource struct {
	w, h   int
	fail   atomic.Bool
	closed atomic.Bool
}

func (f *fakeSource) Read(m *gocv.Mat) bool {
	if f.fail.Load() || f.closed.Load() {
		return false
	}
	frame := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(10, 200, 30, 0), f.h, f.w, gocv.MatTypeCV8UC3)
	defer frame.Close()
	frame.CopyTo(m)
	return true
}

func (f *fakeSource) Close() error {
	f.closed.Store(true)
	return nil
}

// newTestWebcam exposes a 640x480 device at index 0 and a 1280x720 one at
// index 2. Index 1 fails to open.
func newTestWebcam(t *testing.T) (*Webcam, map[int][]*fakeSource) {
	t.Helper()
	var mu sync.Mutex
	opened := map[int][]*fakeSource{}
	w := New(Options{
		MaxDevices:    3,
		FrameInterval: 10 * time.Millisecond,
		Logger:        log.Discard(),
		Open: func(index int) (Source, error) {
			var src *fakeSource
			switch index {
			case 0:
				src = &fakeSource{w: 640, h: 480}
			case 2:
				src = &fakeSource{w: 1280, h: 720}
			default:
				return nil, errors.New("no such device")
			}
			mu.Lock()
			opened[index] = append(opened[index], src)
			mu.Unlock()
			return src, nil
		},
	})
	return w, opened
}

type deviceEvents struct {
	opened       chan hardware.Device
	closed       chan hardware.Device
	disconnected chan hardware.Device
	errs         chan error
}

func newDeviceEvents() *deviceEvents {
	return &deviceEvents{
		opened:       make(chan hardware.Device, 4),
		closed:       make(chan hardware.Device, 4),
		disconnected: make(chan hardware.Device, 4),
		errs:         make(chan error, 4),
	}
}

func (e *deviceEvents) OnOpened(d hardware.Device)           { e.opened <- d }
func (e *deviceEvents) OnClosed(d hardware.Device)           { e.closed <- d }
func (e *deviceEvents) OnDisconnected(d hardware.Device)     { e.disconnected <- d }
func (e *deviceEvents) OnError(_ hardware.Device, err error) { e.errs <- err }

type sessionEvents struct {
	configured chan hardware.Session
	closed     chan hardware.Session
}

func newSessionEvents() *sessionEvents {
	return &sessionEvents{
		configured: make(chan hardware.Session, 4),
		closed:     make(chan hardware.Session, 4),
	}
}

func (e *sessionEvents) OnConfigured(s hardware.Session)           { e.configured <- s }
func (e *sessionEvents) OnConfigureFailed(hardware.Session, error) {}
func (e *sessionEvents) OnClosed(s hardware.Session)               { e.closed <- s }

type resultEvents struct {
	completed chan hardware.Result
	failed    chan error
}

func newResultEvents() *resultEvents {
	return &resultEvents{
		completed: make(chan hardware.Result, 64),
		failed:    make(chan error, 64),
	}
}

func (e *resultEvents) OnProgressed(hardware.Request, hardware.Result) {}

func (e *resultEvents) OnCompleted(_ hardware.Request, r hardware.Result) {
	select {
	case e.completed <- r:
	default:
	}
}

func (e *resultEvents) OnFailed(_ hardware.Request, err error) {
	select {
	case e.failed <- err:
	default:
	}
}

type sink struct {
	size   sizes.Size
	frames chan []byte
}

func newSink(w, h int) *sink {
	return &sink{size: sizes.Size{Width: w, Height: h}, frames: make(chan []byte, 64)}
}

func (s *sink) Size() sizes.Size { return s.size }

func (s *sink) WriteFrame(jpeg []byte) {
	select {
	case s.frames <- jpeg:
	default:
	}
}

func receive[T any](t *testing.T, ch chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(wait):
		t.Fatal("timed out")
	}
	var zero T
	return zero
}

func openSession(t *testing.T, w *Webcam, id hardware.DeviceID, outputs ...hardware.Surface) (hardware.Device, hardware.Session, *deviceEvents) {
	t.Helper()
	dl := newDeviceEvents()
	require.NoError(t, w.Open(id, dl))
	dev := receive(t, dl.opened)
	sl := newSessionEvents()
	require.NoError(t, dev.CreateSession(outputs, sl))
	return dev, receive(t, sl.configured), dl
}

func TestWebcam_Devices(t *testing.T) {
	w, opened := newTestWebcam(t)

	ids, err := w.Devices()
	require.NoError(t, err)
	assert.Equal(t, []hardware.DeviceID{"0", "2"}, ids)
	for _, srcs := range opened {
		for _, src := range srcs {
			assert.True(t, src.closed.Load(), "scan must release the device")
		}
	}

	c, err := w.Characteristics("2")
	require.NoError(t, err)
	assert.Equal(t, hardware.LensFacingExternal, *c.LensFacing)
	assert.Equal(t, hardware.HardwareLevelExternal, *c.HardwareLevel)
	assert.Equal(t, image.Rect(0, 0, 1280, 720), *c.ActiveArray)
	assert.Equal(t, DefaultMaxZoom, *c.MaxDigitalZoom)
	assert.Equal(t, 0, *c.SensorOrientation)
	assert.False(t, c.SupportsAutoFocus())
	assert.Zero(t, c.AFRegionCount())
	assert.Equal(t, sizes.Size{Width: 1280, Height: 720}, c.Streams.PreviewSizes[0])
	assert.Equal(t, c.Streams.PreviewSizes, c.Streams.PictureSizes)

	_, err = w.Characteristics("1")
	assert.ErrorIs(t, err, hardware.ErrUnknownDevice)
}

func TestWebcam_ScansOnce(t *testing.T) {
	w, opened := newTestWebcam(t)
	_, _ = w.Devices()
	_, _ = w.Devices()
	_, _ = w.Characteristics("0")
	assert.Len(t, opened[0], 1)
}

func TestWebcam_OpenUnknown(t *testing.T) {
	w, _ := newTestWebcam(t)
	assert.ErrorIs(t, w.Open("1", newDeviceEvents()), hardware.ErrUnknownDevice)
	assert.ErrorIs(t, w.Open("7", newDeviceEvents()), hardware.ErrUnknownDevice)
}

func TestWebcam_OpenFailureReportsError(t *testing.T) {
	w, _ := newTestWebcam(t)
	_, err := w.Devices()
	require.NoError(t, err)

	w.opts.Open = func(int) (Source, error) { return nil, errors.New("busy") }
	dl := newDeviceEvents()
	require.NoError(t, w.Open("0", dl))
	err = receive(t, dl.errs)
	assert.ErrorContains(t, err, "busy")
}

func TestSession_RepeatingWritesFrames(t *testing.T) {
	w, _ := newTestWebcam(t)
	preview := newSink(320, 240)
	_, s, _ := openSession(t, w, "0", preview)

	results := newResultEvents()
	req := hardware.NewRequestBuilder(hardware.TemplatePreview, preview).Snapshot()
	require.NoError(t, s.SetRepeating(req, results))

	for i := 0; i < 3; i++ {
		assert.Equal(t, sizes.Size{Width: 320, Height: 240}, decodeSize(t, receive(t, preview.frames)))
	}
	r := receive(t, results.completed)
	require.NotNil(t, r.AFState)
	require.NotNil(t, r.AEState)
	assert.Equal(t, hardware.AFStateInactive, *r.AFState)
	assert.Equal(t, hardware.AEStateConverged, *r.AEState)

	require.NoError(t, s.StopRepeating())
}

func TestSession_StillCapture(t *testing.T) {
	w, _ := newTestWebcam(t)
	pictures := make(chan []byte, 1)
	still, err := w.NewStillOutput(sizes.Size{Width: 640, Height: 480}, func(b []byte) { pictures <- b })
	require.NoError(t, err)
	_, s, _ := openSession(t, w, "0", still.Surface())

	results := newResultEvents()
	req := hardware.NewRequestBuilder(hardware.TemplateStillCapture, still.Surface()).
		SetCropRegion(image.Rect(160, 120, 480, 360)).
		SetJPEGOrientation(90).
		Snapshot()
	require.NoError(t, s.Capture(req, results))

	assert.Equal(t, sizes.Size{Width: 480, Height: 640}, decodeSize(t, receive(t, pictures)))
	receive(t, results.completed)
}

func TestSession_ClosedStillOutputDropsImages(t *testing.T) {
	w, _ := newTestWebcam(t)
	var delivered atomic.Int32
	still, err := w.NewStillOutput(sizes.Size{Width: 320, Height: 240}, func([]byte) { delivered.Add(1) })
	require.NoError(t, err)
	_, s, _ := openSession(t, w, "0", still.Surface())
	require.NoError(t, still.Close())

	results := newResultEvents()
	req := hardware.NewRequestBuilder(hardware.TemplateStillCapture, still.Surface()).Snapshot()
	require.NoError(t, s.Capture(req, results))
	receive(t, results.completed)
	assert.Zero(t, delivered.Load())
}

func TestSession_CloseRejectsRequests(t *testing.T) {
	w, _ := newTestWebcam(t)
	preview := newSink(320, 240)
	dl := newDeviceEvents()
	require.NoError(t, w.Open("0", dl))
	dev := receive(t, dl.opened)
	sl := newSessionEvents()
	require.NoError(t, dev.CreateSession([]hardware.Surface{preview}, sl))
	s := receive(t, sl.configured)

	require.NoError(t, s.Close())
	receive(t, sl.closed)

	req := hardware.NewRequestBuilder(hardware.TemplatePreview, preview).Snapshot()
	assert.ErrorIs(t, s.SetRepeating(req, newResultEvents()), hardware.ErrSessionClosed)
	assert.ErrorIs(t, s.Capture(req, newResultEvents()), hardware.ErrSessionClosed)
}

func TestDevice_NewSessionClosesPrevious(t *testing.T) {
	w, _ := newTestWebcam(t)
	dl := newDeviceEvents()
	require.NoError(t, w.Open("0", dl))
	dev := receive(t, dl.opened)

	first := newSessionEvents()
	require.NoError(t, dev.CreateSession(nil, first))
	old := receive(t, first.configured)

	second := newSessionEvents()
	require.NoError(t, dev.CreateSession(nil, second))
	receive(t, second.configured)
	assert.Equal(t, old, receive(t, first.closed))
}

func TestDevice_Close(t *testing.T) {
	w, opened := newTestWebcam(t)
	dev, _, dl := openSession(t, w, "0")

	require.NoError(t, dev.Close())
	assert.Equal(t, dev, receive(t, dl.closed))
	srcs := opened[0]
	assert.True(t, srcs[len(srcs)-1].closed.Load())
	assert.ErrorIs(t, dev.CreateSession(nil, newSessionEvents()), hardware.ErrDeviceClosed)
	assert.NoError(t, dev.Close())
}

func TestDevice_ReadFailuresDisconnect(t *testing.T) {
	w, opened := newTestWebcam(t)
	preview := newSink(320, 240)
	dev, s, dl := openSession(t, w, "0", preview)

	req := hardware.NewRequestBuilder(hardware.TemplatePreview, preview).Snapshot()
	require.NoError(t, s.SetRepeating(req, newResultEvents()))
	receive(t, preview.frames)

	srcs := opened[0]
	srcs[len(srcs)-1].fail.Store(true)
	assert.Equal(t, dev, receive(t, dl.disconnected))
}

func TestDevice_ReadFailureFailsPendingCapture(t *testing.T) {
	w, opened := newTestWebcam(t)
	still, err := w.NewStillOutput(sizes.Size{Width: 320, Height: 240}, func([]byte) {})
	require.NoError(t, err)
	_, s, _ := openSession(t, w, "0", still.Surface())

	srcs := opened[0]
	srcs[len(srcs)-1].fail.Store(true)

	results := newResultEvents()
	req := hardware.NewRequestBuilder(hardware.TemplateStillCapture, still.Surface()).Snapshot()
	require.NoError(t, s.Capture(req, results))
	assert.ErrorIs(t, receive(t, results.failed), errReadFrame)
}
