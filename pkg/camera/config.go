// Package camera holds the user-facing camera parameters: lens facing,
// aspect ratio, autofocus, flash and zoom. The same Config drives the
// session controller at startup and is updated at runtime through the
// control API.
package camera

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/teslashibe/go-cameraview/pkg/sizes"
)

// Facing selects which lens the controller opens.
type Facing int

const (
	FacingBack Facing = iota
	FacingFront
)

func (f Facing) String() string {
	switch f {
	case FacingBack:
		return "back"
	case FacingFront:
		return "front"
	}
	return fmt.Sprintf("facing(%d)", int(f))
}

// ParseFacing reads "back" or "front".
func ParseFacing(s string) (Facing, error) {
	switch s {
	case "back":
		return FacingBack, nil
	case "front":
		return FacingFront, nil
	}
	return 0, fmt.Errorf("camera: unknown facing %q", s)
}

func (f Facing) MarshalText() ([]byte, error) { return []byte(f.String()), nil }

func (f *Facing) UnmarshalText(b []byte) error {
	v, err := ParseFacing(string(b))
	if err != nil {
		return err
	}
	*f = v
	return nil
}

// Flash is the user-facing flash setting.
type Flash int

const (
	FlashOff Flash = iota
	FlashOn
	FlashTorch
	FlashAuto
	FlashRedEye
)

var flashNames = map[Flash]string{
	FlashOff:    "off",
	FlashOn:     "on",
	FlashTorch:  "torch",
	FlashAuto:   "auto",
	FlashRedEye: "red_eye",
}

func (f Flash) String() string {
	if s, ok := flashNames[f]; ok {
		return s
	}
	return fmt.Sprintf("flash(%d)", int(f))
}

// ParseFlash reads one of off, on, torch, auto, red_eye.
func ParseFlash(s string) (Flash, error) {
	for f, name := range flashNames {
		if name == s {
			return f, nil
		}
	}
	return 0, fmt.Errorf("camera: unknown flash mode %q", s)
}

func (f Flash) MarshalText() ([]byte, error) { return []byte(f.String()), nil }

func (f *Flash) UnmarshalText(b []byte) error {
	v, err := ParseFlash(string(b))
	if err != nil {
		return err
	}
	*f = v
	return nil
}

// Config holds the desired camera parameters.
type Config struct {
	Facing      Facing            `json:"facing"`
	AspectRatio sizes.AspectRatio `json:"aspect_ratio"`
	AutoFocus   bool              `json:"auto_focus"`
	Flash       Flash             `json:"flash"`

	// ZoomLevel is the digital zoom factor. The controller clamps it to
	// [1, device max] once a device is open.
	ZoomLevel float64 `json:"zoom_level"`

	// DisplayOrientation is the rotation of the display in degrees
	// (0, 90, 180, 270). It feeds the JPEG orientation and tap mapping.
	DisplayOrientation int `json:"display_orientation"`

	// Preview candidates larger than this are never chosen.
	MaxPreviewWidth  int `json:"max_preview_width"`
	MaxPreviewHeight int `json:"max_preview_height"`

	// FocusHoldMillis is how long a tap-to-focus region is held before
	// autofocus returns to continuous mode.
	FocusHoldMillis int `json:"focus_hold_ms"`
}

// Limits applied by Validate.
const (
	MaxZoomLevel       = 100.0
	MaxFocusHoldMillis = 60000
)

// DefaultConfig returns the back lens at 4:3 with continuous autofocus.
func DefaultConfig() Config {
	return Config{
		Facing:             FacingBack,
		AspectRatio:        sizes.DefaultAspectRatio,
		AutoFocus:          true,
		Flash:              FlashAuto,
		ZoomLevel:          1.0,
		DisplayOrientation: 0,
		MaxPreviewWidth:    sizes.MaxPreviewSize.Width,
		MaxPreviewHeight:   sizes.MaxPreviewSize.Height,
		FocusHoldMillis:    3000,
	}
}

// MaxPreview returns the preview bound as a Size.
func (c Config) MaxPreview() sizes.Size {
	return sizes.Size{Width: c.MaxPreviewWidth, Height: c.MaxPreviewHeight}
}

// FocusHold returns FocusHoldMillis as a duration.
func (c Config) FocusHold() time.Duration {
	return time.Duration(c.FocusHoldMillis) * time.Millisecond
}

// Validate checks if the config values are within valid ranges.
// Returns a list of validation errors, or nil if valid.
func (c *Config) Validate() []string {
	var errors []string

	if c.Facing != FacingBack && c.Facing != FacingFront {
		errors = append(errors, "facing must be back or front")
	}
	if c.AspectRatio.IsZero() {
		errors = append(errors, "aspect_ratio must be set, e.g. 4:3")
	}
	if _, ok := flashNames[c.Flash]; !ok {
		errors = append(errors, "flash must be off, on, torch, auto, or red_eye")
	}
	if c.ZoomLevel < 1.0 || c.ZoomLevel > MaxZoomLevel {
		errors = append(errors, "zoom_level must be between 1.0 and 100.0")
	}
	if c.DisplayOrientation%90 != 0 || c.DisplayOrientation < 0 || c.DisplayOrientation >= 360 {
		errors = append(errors, "display_orientation must be 0, 90, 180, or 270")
	}
	if c.MaxPreviewWidth <= 0 || c.MaxPreviewHeight <= 0 {
		errors = append(errors, "max_preview_width and max_preview_height must be positive")
	}
	if c.FocusHoldMillis <= 0 || c.FocusHoldMillis > MaxFocusHoldMillis {
		errors = append(errors, "focus_hold_ms must be between 1 and 60000")
	}

	return errors
}

// LoadConfig reads a JSON config file. Fields omitted from the file keep
// their DefaultConfig values.
func LoadConfig(path string) (Config, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return Config{}, fmt.Errorf("camera: config file must have .json extension, got %q", ext)
	}

	info, err := os.Stat(cleanPath)
	if err != nil {
		return Config{}, fmt.Errorf("camera: stat config: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if info.Size() > maxFileSize {
		return Config{}, fmt.Errorf("camera: config file too large: %d bytes (max %d)", info.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return Config{}, fmt.Errorf("camera: read config: %w", err)
	}

	cfg := DefaultConfig()
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("camera: parse config: %w", err)
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		return Config{}, fmt.Errorf("camera: invalid config: %v", errs)
	}
	return cfg, nil
}
