// Package webcam implements hardware.Hardware on top of OpenCV video
// capture devices. Webcams have no 3A pipeline, so every result reports
// AF inactive and AE converged, and crop, scaling and JPEG rotation are
// applied in software.
package webcam

import (
	"fmt"
	"image"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-cameraview/internal/log"
	"github.com/teslashibe/go-cameraview/pkg/hardware"
	"github.com/teslashibe/go-cameraview/pkg/sizes"
)

const (
	DefaultMaxDevices    = 4
	DefaultFrameInterval = time.Second / 15
	DefaultMaxZoom       = 4.0

	// maxReadFailures consecutive failed reads count as a disconnect.
	maxReadFailures = 5
)

// Source is a frame source. *gocv.VideoCapture implements it.
type Source interface {
	Read(m *gocv.Mat) bool
	Close() error
}

// Options configures a Webcam.
type Options struct {
	// MaxDevices is the number of capture indices scanned.
	MaxDevices int
	// FrameInterval is the period of the repeating request loop.
	FrameInterval time.Duration
	// Width and Height request a capture resolution. Zero keeps the
	// device default.
	Width, Height int
	// Open opens the source at index. Defaults to OpenCapture.
	Open   func(index int) (Source, error)
	Logger *slog.Logger
}

// Webcam enumerates OpenCV capture devices.
type Webcam struct {
	opts   Options
	logger *slog.Logger

	scanOnce sync.Once
	ids      []hardware.DeviceID
	chars    map[hardware.DeviceID]*hardware.Characteristics
}

// New creates a backend. Devices are scanned on the first call to Devices.
func New(opts Options) *Webcam {
	if opts.MaxDevices <= 0 {
		opts.MaxDevices = DefaultMaxDevices
	}
	if opts.FrameInterval <= 0 {
		opts.FrameInterval = DefaultFrameInterval
	}
	if opts.Open == nil {
		opts.Open = OpenCapture(opts.Width, opts.Height)
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.With("component", "webcam")
	}
	return &Webcam{
		opts:   opts,
		logger: logger,
		chars:  make(map[hardware.DeviceID]*hardware.Characteristics),
	}
}

// OpenCapture returns an opener backed by gocv.OpenVideoCapture.
func OpenCapture(width, height int) func(int) (Source, error) {
	return func(index int) (Source, error) {
		vc, err := gocv.OpenVideoCapture(index)
		if err != nil {
			return nil, err
		}
		if !vc.IsOpened() {
			vc.Close()
			return nil, fmt.Errorf("webcam: device %d did not open", index)
		}
		if width > 0 && height > 0 {
			vc.Set(gocv.VideoCaptureFrameWidth, float64(width))
			vc.Set(gocv.VideoCaptureFrameHeight, float64(height))
		}
		return vc, nil
	}
}

func (w *Webcam) Devices() ([]hardware.DeviceID, error) {
	w.scanOnce.Do(w.scan)
	return append([]hardware.DeviceID(nil), w.ids...), nil
}

func (w *Webcam) Characteristics(id hardware.DeviceID) (*hardware.Characteristics, error) {
	w.scanOnce.Do(w.scan)
	c, ok := w.chars[id]
	if !ok {
		return nil, hardware.ErrUnknownDevice
	}
	return c, nil
}

// scan opens every index once and reads a frame to learn its size.
func (w *Webcam) scan() {
	for i := 0; i < w.opts.MaxDevices; i++ {
		src, err := w.opts.Open(i)
		if err != nil {
			continue
		}
		frame := gocv.NewMat()
		ok := src.Read(&frame) && !frame.Empty()
		size := sizes.Size{Width: frame.Cols(), Height: frame.Rows()}
		frame.Close()
		src.Close()
		if !ok {
			w.logger.Debug("device returned no frame", "index", i)
			continue
		}

		id := hardware.DeviceID(strconv.Itoa(i))
		w.ids = append(w.ids, id)
		w.chars[id] = characteristics(size)
		w.logger.Info("found device", "id", id, "size", size.String())
	}
}

func characteristics(frame sizes.Size) *hardware.Characteristics {
	facing := hardware.LensFacingExternal
	level := hardware.HardwareLevelExternal
	active := image.Rect(0, 0, frame.Width, frame.Height)
	zoom := DefaultMaxZoom
	orientation := 0
	regions := 0
	streams := streamSizes(frame)
	return &hardware.Characteristics{
		LensFacing:        &facing,
		HardwareLevel:     &level,
		ActiveArray:       &active,
		MaxDigitalZoom:    &zoom,
		SensorOrientation: &orientation,
		AFModes:           []hardware.AFMode{hardware.AFModeOff},
		MaxAFRegions:      &regions,
		MaxAERegions:      &regions,
		Streams: &hardware.StreamConfiguration{
			PreviewSizes: streams,
			PictureSizes: append([]sizes.Size(nil), streams...),
		},
	}
}

func (w *Webcam) Open(id hardware.DeviceID, listener hardware.DeviceListener) error {
	w.scanOnce.Do(w.scan)
	c, ok := w.chars[id]
	if !ok {
		return hardware.ErrUnknownDevice
	}
	index, err := strconv.Atoi(string(id))
	if err != nil {
		return hardware.ErrUnknownDevice
	}

	d := &device{
		id:       id,
		active:   sizes.Size{Width: c.ActiveArray.Dx(), Height: c.ActiveArray.Dy()},
		interval: w.opts.FrameInterval,
		listener: listener,
		logger:   w.logger.With("device", id),
	}
	go func() {
		src, err := w.opts.Open(index)
		if err != nil {
			listener.OnError(d, fmt.Errorf("webcam: open %s: %w", id, err))
			return
		}
		if !d.attach(src) {
			return
		}
		listener.OnOpened(d)
	}()
	return nil
}

func (w *Webcam) NewStillOutput(size sizes.Size, onImage func([]byte)) (hardware.StillOutput, error) {
	return &stillOutput{size: size, onImage: onImage}, nil
}

// stillOutput is both the still output and its surface.
type stillOutput struct {
	size    sizes.Size
	onImage func([]byte)

	mu     sync.Mutex
	closed bool
}

func (o *stillOutput) Surface() hardware.Surface { return o }

func (o *stillOutput) Size() sizes.Size { return o.size }

func (o *stillOutput) Close() error {
	o.mu.Lock()
	o.closed = true
	o.mu.Unlock()
	return nil
}

func (o *stillOutput) deliver(jpeg []byte) {
	o.mu.Lock()
	closed := o.closed
	o.mu.Unlock()
	if !closed && o.onImage != nil {
		o.onImage(jpeg)
	}
}
