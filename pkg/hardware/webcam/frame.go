package webcam

import (
	"image"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-cameraview/pkg/sizes"
)

const jpegQuality = 90

var standardSizes = []sizes.Size{
	{Width: 320, Height: 240},
	{Width: 640, Height: 480},
	{Width: 800, Height: 600},
	{Width: 1024, Height: 768},
	{Width: 1280, Height: 960},
	{Width: 1600, Height: 1200},
	{Width: 2048, Height: 1536},
	{Width: 640, Height: 360},
	{Width: 1280, Height: 720},
	{Width: 1920, Height: 1080},
	{Width: 2560, Height: 1440},
	{Width: 3840, Height: 2160},
}

// streamSizes lists the native frame size followed by every standard size
// that fits inside it.
func streamSizes(frame sizes.Size) []sizes.Size {
	out := []sizes.Size{frame}
	for _, s := range standardSizes {
		if s != frame && s.Width <= frame.Width && s.Height <= frame.Height {
			out = append(out, s)
		}
	}
	return out
}

// frameCrop maps a crop region given in active-array coordinates onto a
// w x h frame. A nil or degenerate crop selects the whole frame.
func frameCrop(crop *image.Rectangle, active sizes.Size, w, h int) image.Rectangle {
	full := image.Rect(0, 0, w, h)
	if crop == nil || active.IsZero() {
		return full
	}
	r := image.Rect(
		crop.Min.X*w/active.Width,
		crop.Min.Y*h/active.Height,
		crop.Max.X*w/active.Width,
		crop.Max.Y*h/active.Height,
	).Intersect(full)
	if r.Empty() {
		return full
	}
	return r
}

func rotateFlag(degrees int) (gocv.RotateFlag, bool) {
	switch ((degrees % 360) + 360) % 360 {
	case 90:
		return gocv.Rotate90Clockwise, true
	case 180:
		return gocv.Rotate180Clockwise, true
	case 270:
		return gocv.Rotate90CounterClockwise, true
	}
	return 0, false
}

// encode crops frame, scales it to size (zero keeps the crop size),
// rotates it clockwise by rotation degrees and returns JPEG bytes.
func encode(frame *gocv.Mat, crop image.Rectangle, size sizes.Size, rotation int) ([]byte, error) {
	src := *frame
	if crop != image.Rect(0, 0, frame.Cols(), frame.Rows()) {
		region := frame.Region(crop)
		defer region.Close()
		src = region
	}

	scaled := gocv.NewMat()
	defer scaled.Close()
	if size.IsZero() || (size.Width == src.Cols() && size.Height == src.Rows()) {
		src.CopyTo(&scaled)
	} else {
		gocv.Resize(src, &scaled, image.Pt(size.Width, size.Height), 0, 0, gocv.InterpolationArea)
	}

	img := scaled
	if flag, ok := rotateFlag(rotation); ok {
		rotated := gocv.NewMat()
		defer rotated.Close()
		gocv.Rotate(scaled, &rotated, flag)
		img = rotated
	}

	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, img, []int{int(gocv.IMWriteJpegQuality), jpegQuality})
	if err != nil {
		return nil, err
	}
	defer buf.Close()
	return append([]byte(nil), buf.GetBytes()...), nil
}
