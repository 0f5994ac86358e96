package cameraview

import (
	"image"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-cameraview/internal/log"
	"github.com/teslashibe/go-cameraview/pkg/camera"
	"github.com/teslashibe/go-cameraview/pkg/hardware"
	"github.com/teslashibe/go-cameraview/pkg/sizes"
)

func ptr[T any](v T) *T { return &v }

// manualQueue runs posted functions only when drained, on the test
// goroutine.
type manualQueue struct {
	tasks []func()
}

func (q *manualQueue) Post(fn func()) { q.tasks = append(q.tasks, fn) }

func (q *manualQueue) Drain() {
	for len(q.tasks) > 0 {
		fn := q.tasks[0]
		q.tasks = q.tasks[1:]
		fn()
	}
}

type fakeSurface struct {
	size sizes.Size
}

func (s *fakeSurface) Size() sizes.Size { return s.size }

type fakePreview struct {
	view        sizes.Size
	ready       bool
	surface     *fakeSurface
	orientation int
	onChanged   func()
}

func newFakePreview(w, h int) *fakePreview {
	return &fakePreview{
		view:    sizes.Size{Width: w, Height: h},
		ready:   true,
		surface: &fakeSurface{},
	}
}

func (p *fakePreview) Surface() hardware.Surface         { return p.surface }
func (p *fakePreview) Size() sizes.Size                  { return p.view }
func (p *fakePreview) Ready() bool                       { return p.ready }
func (p *fakePreview) SetBufferSize(size sizes.Size)     { p.surface.size = size }
func (p *fakePreview) SetDisplayOrientation(degrees int) { p.orientation = degrees }
func (p *fakePreview) SetOnSurfaceChanged(fn func())     { p.onChanged = fn }

type recorder struct {
	opened      int
	closed      int
	unavailable int
	configured  int
	focus       [][2]float64
	pictures    [][]byte
	pictureErrs []error
	errs        []error
}

func (r *recorder) callbacks() Callbacks {
	return Callbacks{
		OnCameraOpened:      func() { r.opened++ },
		OnCameraClosed:      func() { r.closed++ },
		OnCameraUnavailable: func() { r.unavailable++ },
		OnSessionConfigured: func() { r.configured++ },
		OnFocusAt:           func(x, y float64) { r.focus = append(r.focus, [2]float64{x, y}) },
		OnPictureTaken:      func(data []byte) { r.pictures = append(r.pictures, data) },
		OnPictureFailed:     func(err error) { r.pictureErrs = append(r.pictureErrs, err) },
		OnError:             func(err error) { r.errs = append(r.errs, err) },
	}
}

var (
	testActiveArray = image.Rect(0, 0, 4000, 3000)

	testPreviewSizes = []sizes.Size{
		{Width: 640, Height: 480},
		{Width: 1280, Height: 960},
		{Width: 1440, Height: 1080},
		{Width: 1280, Height: 720},
		{Width: 1920, Height: 1080},
		{Width: 1080, Height: 1080},
		{Width: 4000, Height: 3000},
	}
	testPictureSizes = []sizes.Size{
		{Width: 4000, Height: 3000},
		{Width: 2048, Height: 1536},
		{Width: 3840, Height: 2160},
	}
)

// deviceChars describes a full-level device with a 4000x3000 sensor,
// 4x zoom, autofocus and one AF and AE region.
func deviceChars(facing hardware.LensFacing) *hardware.Characteristics {
	return &hardware.Characteristics{
		LensFacing:        ptr(facing),
		HardwareLevel:     ptr(hardware.HardwareLevelFull),
		ActiveArray:       ptr(testActiveArray),
		MaxDigitalZoom:    ptr(4.0),
		SensorOrientation: ptr(90),
		AFModes: []hardware.AFMode{
			hardware.AFModeOff,
			hardware.AFModeAuto,
			hardware.AFModeContinuousPicture,
		},
		MaxAFRegions: ptr(1),
		MaxAERegions: ptr(1),
		Streams: &hardware.StreamConfiguration{
			PreviewSizes: testPreviewSizes,
			PictureSizes: testPictureSizes,
		},
	}
}

type harness struct {
	t       *testing.T
	hw      *hardware.Mock
	preview *fakePreview
	queue   *manualQueue
	clock   *MockClock
	rec     *recorder
	c       *Controller
}

func newHarness(t *testing.T, cfg camera.Config) *harness {
	t.Helper()
	h := &harness{
		t:       t,
		hw:      hardware.NewMock(),
		preview: newFakePreview(1000, 750),
		queue:   &manualQueue{},
		clock:   NewMockClock(time.Unix(0, 0)),
		rec:     &recorder{},
	}
	h.c = New(h.hw, h.preview, Options{
		Config:    cfg,
		Callbacks: h.rec.callbacks(),
		Executor:  h.queue,
		Clock:     h.clock,
		Logger:    log.Discard(),
	})
	return h
}

// newStartedHarness opens a back camera and waits for the preview.
func newStartedHarness(t *testing.T) *harness {
	t.Helper()
	h := newHarness(t, camera.Config{})
	h.hw.AddDevice("0", deviceChars(hardware.LensFacingBack))
	h.hw.AddDevice("1", deviceChars(hardware.LensFacingFront))
	h.do(h.c.Start)
	require.Equal(t, LifecycleConfigured, h.c.Lifecycle())
	return h
}

// do runs op and everything it causes.
func (h *harness) do(op func()) {
	op()
	h.queue.Drain()
}

func (h *harness) session() *hardware.MockSession {
	h.t.Helper()
	s := h.hw.Session()
	require.NotNil(h.t, s, "no session")
	return s
}

func (h *harness) repeating() hardware.Request {
	h.t.Helper()
	history := h.session().RepeatingHistory()
	require.NotEmpty(h.t, history, "no repeating request")
	return history[len(history)-1].Request
}

func (h *harness) captures() []hardware.Submission {
	return h.session().Captures()
}

func (h *harness) frame(af *hardware.AFState, ae *hardware.AEState) {
	h.t.Helper()
	require.True(h.t, h.session().Frame(hardware.ResultOf(af, ae)), "preview is not repeating")
	h.queue.Drain()
}
