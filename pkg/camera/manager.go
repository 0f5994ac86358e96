package camera

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/teslashibe/go-cameraview/pkg/sizes"
)

// Manager holds the current camera configuration and handles updates.
type Manager struct {
	config Config
	mu     sync.RWMutex

	// Callback when config changes (for applying to the controller)
	OnConfigChange func(cfg Config) error
}

// NewManager creates a manager holding cfg.
func NewManager(cfg Config) *Manager {
	return &Manager{config: cfg}
}

// GetConfig returns the current camera configuration.
func (m *Manager) GetConfig() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config
}

// SetConfig validates cfg, stores it and notifies OnConfigChange. If the
// callback fails the previous config is restored.
func (m *Manager) SetConfig(cfg Config) error {
	if errors := cfg.Validate(); len(errors) > 0 {
		return fmt.Errorf("validation failed: %v", errors)
	}

	m.mu.Lock()
	prev := m.config
	m.config = cfg
	callback := m.OnConfigChange
	m.mu.Unlock()

	if callback != nil {
		if err := callback(cfg); err != nil {
			m.mu.Lock()
			m.config = prev
			m.mu.Unlock()
			return fmt.Errorf("failed to apply config: %w", err)
		}
	}

	return nil
}

// Record changes the stored config in place without notifying
// OnConfigChange, for settings the controller was already given directly.
func (m *Manager) Record(fn func(cfg *Config)) {
	m.mu.Lock()
	fn(&m.config)
	m.mu.Unlock()
}

// UpdateConfig updates specific fields of the configuration.
// Accepts a map of field names to values, as decoded from JSON.
func (m *Manager) UpdateConfig(params map[string]interface{}) error {
	cfg := m.GetConfig()

	if presetName, ok := params["preset"].(string); ok {
		preset := GetPreset(presetName)
		if preset == nil {
			return fmt.Errorf("unknown preset: %s", presetName)
		}
		cfg = *preset
	}

	for key, value := range params {
		switch key {
		case "preset":
		case "facing":
			s, ok := value.(string)
			if !ok {
				return fmt.Errorf("facing must be a string")
			}
			f, err := ParseFacing(s)
			if err != nil {
				return err
			}
			cfg.Facing = f
		case "aspect_ratio":
			s, ok := value.(string)
			if !ok {
				return fmt.Errorf("aspect_ratio must be a string")
			}
			r, err := sizes.Parse(s)
			if err != nil {
				return err
			}
			cfg.AspectRatio = r
		case "auto_focus":
			if v, ok := value.(bool); ok {
				cfg.AutoFocus = v
			}
		case "flash":
			s, ok := value.(string)
			if !ok {
				return fmt.Errorf("flash must be a string")
			}
			f, err := ParseFlash(s)
			if err != nil {
				return err
			}
			cfg.Flash = f
		case "zoom_level":
			if v, ok := toFloat(value); ok {
				cfg.ZoomLevel = v
			}
		case "display_orientation":
			if v, ok := toInt(value); ok {
				cfg.DisplayOrientation = v
			}
		case "max_preview_width":
			if v, ok := toInt(value); ok {
				cfg.MaxPreviewWidth = v
			}
		case "max_preview_height":
			if v, ok := toInt(value); ok {
				cfg.MaxPreviewHeight = v
			}
		case "focus_hold_ms":
			if v, ok := toInt(value); ok {
				cfg.FocusHoldMillis = v
			}
		default:
			return fmt.Errorf("unknown config field: %s", key)
		}
	}

	return m.SetConfig(cfg)
}

// GetConfigJSON returns the current config as a map for JSON serialization.
func (m *Manager) GetConfigJSON() map[string]interface{} {
	cfg := m.GetConfig()

	data, _ := json.Marshal(cfg)
	var result map[string]interface{}
	json.Unmarshal(data, &result)

	return result
}

func toInt(v interface{}) (int, bool) {
	switch val := v.(type) {
	case int:
		return val, true
	case int64:
		return int(val), true
	case float64:
		return int(val), true
	case json.Number:
		i, err := val.Int64()
		if err == nil {
			return int(i), true
		}
	}
	return 0, false
}

func toFloat(v interface{}) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int:
		return float64(val), true
	case int64:
		return float64(val), true
	case json.Number:
		f, err := val.Float64()
		if err == nil {
			return f, true
		}
	}
	return 0, false
}
