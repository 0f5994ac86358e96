package hardware

import (
	"image"

	"github.com/google/uuid"

	"github.com/teslashibe/go-cameraview/pkg/geometry"
)

// Request is an immutable capture request. Nil fields and nil region
// slices are omitted: the device keeps its own default for them.
// Build requests with RequestBuilder; never mutate a submitted Request.
type Request struct {
	// Tag uniquely identifies this snapshot.
	Tag      string
	Template Template
	Targets  []Surface

	AFMode              *AFMode
	AEMode              *AEMode
	FlashMode           *FlashMode
	CropRegion          *image.Rectangle
	AFRegions           []geometry.MeteringRectangle
	AERegions           []geometry.MeteringRectangle
	AFTrigger           *AFTrigger
	AEPrecaptureTrigger *AEPrecaptureTrigger
	JPEGOrientation     *int
}

// HasTarget reports whether s is one of the request's targets.
func (r Request) HasTarget(s Surface) bool {
	for _, t := range r.Targets {
		if t == s {
			return true
		}
	}
	return false
}

// RequestBuilder accumulates request parameters between submissions.
// It is a single-writer staging area; Snapshot produces the value that is
// actually submitted.
type RequestBuilder struct {
	req Request
}

// NewRequestBuilder starts a builder for template targeting targets.
func NewRequestBuilder(template Template, targets ...Surface) *RequestBuilder {
	b := &RequestBuilder{}
	b.req.Template = template
	b.req.Targets = append([]Surface(nil), targets...)
	return b
}

// AddTarget appends an output target.
func (b *RequestBuilder) AddTarget(s Surface) *RequestBuilder {
	b.req.Targets = append(b.req.Targets, s)
	return b
}

func (b *RequestBuilder) SetAFMode(m AFMode) *RequestBuilder {
	b.req.AFMode = &m
	return b
}

func (b *RequestBuilder) SetAEMode(m AEMode) *RequestBuilder {
	b.req.AEMode = &m
	return b
}

func (b *RequestBuilder) SetFlashMode(m FlashMode) *RequestBuilder {
	b.req.FlashMode = &m
	return b
}

func (b *RequestBuilder) SetCropRegion(r image.Rectangle) *RequestBuilder {
	b.req.CropRegion = &r
	return b
}

// SetAFRegions sets the AF metering regions; nil omits the parameter.
func (b *RequestBuilder) SetAFRegions(regions []geometry.MeteringRectangle) *RequestBuilder {
	b.req.AFRegions = cloneRegions(regions)
	return b
}

// SetAERegions sets the AE metering regions; nil omits the parameter.
func (b *RequestBuilder) SetAERegions(regions []geometry.MeteringRectangle) *RequestBuilder {
	b.req.AERegions = cloneRegions(regions)
	return b
}

func (b *RequestBuilder) SetAFTrigger(t AFTrigger) *RequestBuilder {
	b.req.AFTrigger = &t
	return b
}

func (b *RequestBuilder) SetAEPrecaptureTrigger(t AEPrecaptureTrigger) *RequestBuilder {
	b.req.AEPrecaptureTrigger = &t
	return b
}

func (b *RequestBuilder) SetJPEGOrientation(deg int) *RequestBuilder {
	b.req.JPEGOrientation = &deg
	return b
}

// AFMode returns the staged AF mode.
func (b *RequestBuilder) AFMode() (AFMode, bool) {
	if b.req.AFMode == nil {
		return 0, false
	}
	return *b.req.AFMode, true
}

// CropRegion returns the staged crop region.
func (b *RequestBuilder) CropRegion() (image.Rectangle, bool) {
	if b.req.CropRegion == nil {
		return image.Rectangle{}, false
	}
	return *b.req.CropRegion, true
}

// Snapshot returns an independent copy of the staged request with a new tag.
func (b *RequestBuilder) Snapshot() Request {
	r := Request{
		Tag:       uuid.NewString(),
		Template:  b.req.Template,
		Targets:   append([]Surface(nil), b.req.Targets...),
		AFRegions: cloneRegions(b.req.AFRegions),
		AERegions: cloneRegions(b.req.AERegions),
	}
	r.AFMode = clonePtr(b.req.AFMode)
	r.AEMode = clonePtr(b.req.AEMode)
	r.FlashMode = clonePtr(b.req.FlashMode)
	r.CropRegion = clonePtr(b.req.CropRegion)
	r.AFTrigger = clonePtr(b.req.AFTrigger)
	r.AEPrecaptureTrigger = clonePtr(b.req.AEPrecaptureTrigger)
	r.JPEGOrientation = clonePtr(b.req.JPEGOrientation)
	return r
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneRegions(regions []geometry.MeteringRectangle) []geometry.MeteringRectangle {
	if regions == nil {
		return nil
	}
	out := make([]geometry.MeteringRectangle, len(regions))
	copy(out, regions)
	return out
}
