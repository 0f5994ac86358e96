package camera

import "github.com/teslashibe/go-cameraview/pkg/sizes"

// Preset names for common configurations
const (
	PresetDefault    = "default"
	PresetSelfie     = "selfie"
	PresetWidescreen = "widescreen"
	PresetNight      = "night"
	PresetTorch      = "torch"
	PresetZoom2x     = "zoom2x"
	PresetZoom4x     = "zoom4x"
)

// Presets returns all available preset configurations.
func Presets() map[string]Config {
	return map[string]Config{
		PresetDefault:    DefaultConfig(),
		PresetSelfie:     SelfieConfig(),
		PresetWidescreen: WidescreenConfig(),
		PresetNight:      NightConfig(),
		PresetTorch:      TorchConfig(),
		PresetZoom2x:     Zoom2xConfig(),
		PresetZoom4x:     Zoom4xConfig(),
	}
}

// PresetNames returns the list of available preset names.
func PresetNames() []string {
	return []string{
		PresetDefault,
		PresetSelfie,
		PresetWidescreen,
		PresetNight,
		PresetTorch,
		PresetZoom2x,
		PresetZoom4x,
	}
}

// GetPreset returns a preset config by name, or nil if not found.
func GetPreset(name string) *Config {
	if cfg, ok := Presets()[name]; ok {
		return &cfg
	}
	return nil
}

// SelfieConfig uses the front lens with the flash off.
func SelfieConfig() Config {
	cfg := DefaultConfig()
	cfg.Facing = FacingFront
	cfg.Flash = FlashOff
	return cfg
}

// WidescreenConfig prefers 16:9 output.
func WidescreenConfig() Config {
	cfg := DefaultConfig()
	cfg.AspectRatio = sizes.Of(16, 9)
	return cfg
}

// NightConfig always fires the flash and holds tap focus longer.
func NightConfig() Config {
	cfg := DefaultConfig()
	cfg.Flash = FlashOn
	cfg.FocusHoldMillis = 5000
	return cfg
}

// TorchConfig keeps the flash lit continuously.
func TorchConfig() Config {
	cfg := DefaultConfig()
	cfg.Flash = FlashTorch
	return cfg
}

// Zoom2xConfig returns 2x digital zoom configuration.
func Zoom2xConfig() Config {
	cfg := DefaultConfig()
	cfg.ZoomLevel = 2.0
	return cfg
}

// Zoom4xConfig returns 4x digital zoom configuration.
func Zoom4xConfig() Config {
	cfg := DefaultConfig()
	cfg.ZoomLevel = 4.0
	return cfg
}
