package web

import (
	"sync"

	"github.com/teslashibe/go-cameraview/pkg/hardware"
	"github.com/teslashibe/go-cameraview/pkg/sizes"
)

// PreviewSurface is a remote preview: frames written to it are forwarded
// to the browser, and the browser reports its viewport size through
// Resize.
type PreviewSurface struct {
	mu          sync.Mutex
	view        sizes.Size
	orientation int
	onChanged   func()
	onFrame     func([]byte)
	buffer      *previewBuffer
}

// previewBuffer is the hardware-facing side of a PreviewSurface.
type previewBuffer struct {
	p    *PreviewSurface
	size sizes.Size
}

// NewPreviewSurface creates a preview with an initial viewport. A zero
// size means not ready until the first Resize.
func NewPreviewSurface(width, height int) *PreviewSurface {
	p := &PreviewSurface{view: sizes.Size{Width: width, Height: height}}
	p.buffer = &previewBuffer{p: p}
	return p
}

func (p *PreviewSurface) Surface() hardware.Surface { return p.buffer }

// Size is the viewport size.
func (p *PreviewSurface) Size() sizes.Size {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.view
}

func (p *PreviewSurface) Ready() bool {
	s := p.Size()
	return s.Width > 0 && s.Height > 0
}

func (p *PreviewSurface) SetBufferSize(size sizes.Size) {
	p.mu.Lock()
	p.buffer.size = size
	p.mu.Unlock()
}

func (p *PreviewSurface) SetDisplayOrientation(degrees int) {
	p.mu.Lock()
	p.orientation = degrees
	p.mu.Unlock()
}

// DisplayOrientation is the last rotation set by the controller.
func (p *PreviewSurface) DisplayOrientation() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.orientation
}

func (p *PreviewSurface) SetOnSurfaceChanged(fn func()) {
	p.mu.Lock()
	p.onChanged = fn
	p.mu.Unlock()
}

// SetOnFrame registers the consumer of preview frames.
func (p *PreviewSurface) SetOnFrame(fn func([]byte)) {
	p.mu.Lock()
	p.onFrame = fn
	p.mu.Unlock()
}

// Resize changes the viewport and notifies the controller.
func (p *PreviewSurface) Resize(width, height int) {
	p.mu.Lock()
	p.view = sizes.Size{Width: width, Height: height}
	fn := p.onChanged
	p.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// BufferSize is the frame size the controller chose.
func (p *PreviewSurface) BufferSize() sizes.Size {
	return p.buffer.Size()
}

func (b *previewBuffer) Size() sizes.Size {
	b.p.mu.Lock()
	defer b.p.mu.Unlock()
	return b.size
}

func (b *previewBuffer) WriteFrame(jpeg []byte) {
	b.p.mu.Lock()
	fn := b.p.onFrame
	b.p.mu.Unlock()
	if fn != nil {
		fn(jpeg)
	}
}
