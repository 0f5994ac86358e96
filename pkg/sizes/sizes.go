// Package sizes selects preview and still-picture resolutions from the
// output sizes a capture device exposes.
//
// Sizes are grouped by their reduced aspect ratio in a SizeMap. Preview
// candidates are bounded (MaxPreviewSize) and reconciled against the still
// picture sizes so that every selectable preview ratio can also be captured.
package sizes

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// MaxPreviewSize is the largest preview resolution the platform guarantees.
var MaxPreviewSize = Size{Width: 1920, Height: 1080}

// DefaultAspectRatio is used until the device reports its supported ratios.
var DefaultAspectRatio = AspectRatio{X: 4, Y: 3}

// Size is a resolution in pixels.
type Size struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Area returns width * height.
func (s Size) Area() int {
	return s.Width * s.Height
}

// Less orders sizes by area, then by width so that ordering is total.
func (s Size) Less(o Size) bool {
	if s.Area() != o.Area() {
		return s.Area() < o.Area()
	}
	if s.Width != o.Width {
		return s.Width < o.Width
	}
	return s.Height < o.Height
}

// IsZero reports whether the size is unset.
func (s Size) IsZero() bool {
	return s.Width == 0 && s.Height == 0
}

func (s Size) String() string {
	return fmt.Sprintf("%dx%d", s.Width, s.Height)
}

// AspectRatio is a reduced width:height fraction. Always build one with Of
// or Parse so that equal ratios compare equal.
type AspectRatio struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Of returns the reduced aspect ratio of w:h.
func Of(w, h int) AspectRatio {
	if w <= 0 || h <= 0 {
		return AspectRatio{}
	}
	g := gcd(w, h)
	return AspectRatio{X: w / g, Y: h / g}
}

// RatioOf returns the reduced aspect ratio of a size.
func RatioOf(s Size) AspectRatio {
	return Of(s.Width, s.Height)
}

// Parse reads a ratio written as "X:Y".
func Parse(s string) (AspectRatio, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 {
		return AspectRatio{}, fmt.Errorf("sizes: malformed aspect ratio %q", s)
	}
	x, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return AspectRatio{}, fmt.Errorf("sizes: malformed aspect ratio %q: %w", s, err)
	}
	y, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return AspectRatio{}, fmt.Errorf("sizes: malformed aspect ratio %q: %w", s, err)
	}
	if x <= 0 || y <= 0 {
		return AspectRatio{}, fmt.Errorf("sizes: aspect ratio %q must be positive", s)
	}
	return Of(x, y), nil
}

// IsZero reports whether the ratio is unset.
func (r AspectRatio) IsZero() bool {
	return r.X == 0 || r.Y == 0
}

// Float returns X/Y.
func (r AspectRatio) Float() float64 {
	if r.Y == 0 {
		return 0
	}
	return float64(r.X) / float64(r.Y)
}

// Less orders ratios by their float value.
func (r AspectRatio) Less(o AspectRatio) bool {
	return r.Float() < o.Float()
}

// Inverse swaps X and Y.
func (r AspectRatio) Inverse() AspectRatio {
	return AspectRatio{X: r.Y, Y: r.X}
}

// Matches reports whether the size has exactly this ratio.
func (r AspectRatio) Matches(s Size) bool {
	return RatioOf(s) == r
}

func (r AspectRatio) String() string {
	return fmt.Sprintf("%d:%d", r.X, r.Y)
}

// MarshalText encodes the ratio as "X:Y".
func (r AspectRatio) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText decodes "X:Y".
func (r *AspectRatio) UnmarshalText(b []byte) error {
	v, err := Parse(string(b))
	if err != nil {
		return err
	}
	*r = v
	return nil
}

func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

// sortSizes sorts in place by ascending area.
func sortSizes(s []Size) {
	sort.Slice(s, func(i, j int) bool { return s[i].Less(s[j]) })
}
