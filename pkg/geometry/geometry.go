// Package geometry translates user-facing zoom levels and tap coordinates
// into sensor-space crop and metering regions.
//
// All functions are pure. Missing device metadata is reported with an ok
// flag so callers can decide whether to degrade or fail.
package geometry

import (
	"image"
	"math"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/teslashibe/go-cameraview/pkg/camera"
)

// Metering weights
const (
	WeightDontCare = 0
	WeightMax      = 1000
)

// RegionFraction is the side of a tap metering window relative to the
// shorter edge of the crop region.
const RegionFraction = 1.0 / 8.0

// MeteringRectangle is a weighted region in sensor coordinates.
type MeteringRectangle struct {
	Rect   image.Rectangle `json:"rect"`
	Weight int             `json:"weight"`
}

var center = r2.Vec{X: 0.5, Y: 0.5}

// CropRegionForZoom returns the centred crop of activeArray for zoom. The
// zoom is clamped to [1, maxZoom] and the clamped value is returned. ok is
// false when either piece of metadata is missing; the caller should keep
// its previous crop.
func CropRegionForZoom(activeArray *image.Rectangle, maxZoom *float64, zoom float64) (crop image.Rectangle, effective float64, ok bool) {
	if activeArray == nil || maxZoom == nil {
		return image.Rectangle{}, zoom, false
	}
	effective = ClampZoom(zoom, *maxZoom)

	w, h := activeArray.Dx(), activeArray.Dy()
	marginW := (w - int(float64(w)/effective)) / 2
	marginH := (h - int(float64(h)/effective)) / 2

	crop = image.Rect(
		activeArray.Min.X+marginW,
		activeArray.Min.Y+marginH,
		activeArray.Min.X+w-marginW,
		activeArray.Min.Y+h-marginH,
	)
	return crop, effective, true
}

// ClampZoom limits zoom to [1, maxZoom]. A maxZoom below 1 is treated as 1.
func ClampZoom(zoom, maxZoom float64) float64 {
	if maxZoom < 1 {
		maxZoom = 1
	}
	if math.IsNaN(zoom) || zoom < 1 {
		return 1
	}
	if zoom > maxZoom {
		return maxZoom
	}
	return zoom
}

// ZeroWeightRegions is the reset state: the whole crop with weight zero,
// meaning the hardware picks its own region.
func ZeroWeightRegions(crop image.Rectangle) []MeteringRectangle {
	return []MeteringRectangle{{Rect: crop, Weight: WeightDontCare}}
}

// RotateNormalized rotates a normalized point by degrees about (0.5, 0.5).
func RotateNormalized(x, y float64, degrees int) (float64, float64) {
	if degrees%360 == 0 {
		return x, y
	}
	rot := r2.NewRotation(float64(degrees)*math.Pi/180, center)
	p := rot.Rotate(r2.Vec{X: x, Y: y})
	return snap(p.X), snap(p.Y)
}

// RegionsForNormalizedPoint maps a normalized tap to AF and AE metering
// regions inside crop. The point is rotated by -sensorOrientation, mirrored
// horizontally for the front lens, then placed in crop coordinates as a
// square window clipped to the crop.
func RegionsForNormalizedPoint(x, y float64, crop image.Rectangle, sensorOrientation int, facing camera.Facing) (af, ae []MeteringRectangle) {
	region := meteringRegion(x, y, crop, sensorOrientation, facing)
	af = []MeteringRectangle{region}
	ae = []MeteringRectangle{region}
	return af, ae
}

func meteringRegion(x, y float64, crop image.Rectangle, sensorOrientation int, facing camera.Facing) MeteringRectangle {
	sx, sy := RotateNormalized(x, y, -sensorOrientation)
	if facing == camera.FacingFront {
		sx = 1 - sx
	}

	w, h := crop.Dx(), crop.Dy()
	half := int(0.5 * RegionFraction * float64(min(w, h)))

	cx := crop.Min.X + int(sx*float64(w))
	cy := crop.Min.Y + int(sy*float64(h))

	rect := image.Rect(cx-half, cy-half, cx+half, cy+half).Intersect(crop)
	return MeteringRectangle{Rect: rect, Weight: WeightMax}
}

// TrimRegions returns at most max regions. A max of zero or less means the
// device does not accept the parameter and nil is returned.
func TrimRegions(regions []MeteringRectangle, max int) []MeteringRectangle {
	if max <= 0 || len(regions) == 0 {
		return nil
	}
	if len(regions) > max {
		regions = regions[:max]
	}
	out := make([]MeteringRectangle, len(regions))
	copy(out, regions)
	return out
}

// JPEGOrientation returns the clockwise rotation to store with a still
// picture so it displays upright.
func JPEGOrientation(sensorOrientation, displayOrientation int, facing camera.Facing) int {
	sign := -1
	if facing == camera.FacingFront {
		sign = 1
	}
	return ((sensorOrientation+displayOrientation*sign)%360 + 360) % 360
}

// snap removes floating point noise left by the rotation so that exact
// grid values stay exact.
func snap(v float64) float64 {
	const eps = 1e-9
	if r := math.Round(v*1e6) / 1e6; math.Abs(r-v) < eps {
		return r
	}
	return v
}
