package camera

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/teslashibe/go-cameraview/pkg/sizes"
)

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := DefaultConfig()
	if errs := cfg.Validate(); len(errs) > 0 {
		t.Fatalf("default config invalid: %v", errs)
	}
	if cfg.AspectRatio != sizes.Of(4, 3) {
		t.Errorf("Expected 4:3 default, got %v", cfg.AspectRatio)
	}
	if cfg.FocusHold().Seconds() != 3 {
		t.Errorf("Expected 3s focus hold, got %v", cfg.FocusHold())
	}
}

func TestPresets_AllValid(t *testing.T) {
	for _, name := range PresetNames() {
		cfg := GetPreset(name)
		if cfg == nil {
			t.Fatalf("preset %s missing", name)
		}
		if errs := cfg.Validate(); len(errs) > 0 {
			t.Errorf("%s: %v", name, errs)
		}
	}
	if GetPreset("nope") != nil {
		t.Error("Expected nil for unknown preset")
	}
}

func TestValidate_Rejects(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zoom below 1", func(c *Config) { c.ZoomLevel = 0.5 }},
		{"zoom too large", func(c *Config) { c.ZoomLevel = 500 }},
		{"orientation", func(c *Config) { c.DisplayOrientation = 45 }},
		{"orientation 360", func(c *Config) { c.DisplayOrientation = 360 }},
		{"ratio", func(c *Config) { c.AspectRatio = sizes.AspectRatio{} }},
		{"flash", func(c *Config) { c.Flash = Flash(42) }},
		{"facing", func(c *Config) { c.Facing = Facing(7) }},
		{"preview bound", func(c *Config) { c.MaxPreviewWidth = 0 }},
		{"focus hold", func(c *Config) { c.FocusHoldMillis = 0 }},
	}
	for _, tc := range cases {
		cfg := DefaultConfig()
		tc.mutate(&cfg)
		if errs := cfg.Validate(); len(errs) == 0 {
			t.Errorf("%s: expected validation error", tc.name)
		}
	}
}

func TestConfig_JSON(t *testing.T) {
	cfg := SelfieConfig()
	data, err := json.Marshal(cfg)
	if err != nil {
		t.Fatal(err)
	}
	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatal(err)
	}
	if m["facing"] != "front" || m["flash"] != "off" || m["aspect_ratio"] != "4:3" {
		t.Errorf("unexpected encoding: %s", data)
	}

	var back Config
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatal(err)
	}
	if back != cfg {
		t.Errorf("got %+v, want %+v", back, cfg)
	}
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "camera.json")
	if err := os.WriteFile(path, []byte(`{"facing":"front","zoom_level":2.5}`), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Facing != FacingFront || cfg.ZoomLevel != 2.5 {
		t.Errorf("unexpected config %+v", cfg)
	}
	if cfg.Flash != FlashAuto {
		t.Errorf("omitted field should keep default, got %v", cfg.Flash)
	}

	if _, err := LoadConfig(filepath.Join(dir, "camera.yaml")); err == nil {
		t.Error("Expected extension error")
	}

	bad := filepath.Join(dir, "bad.json")
	os.WriteFile(bad, []byte(`{"zoom_level":0.1}`), 0644)
	if _, err := LoadConfig(bad); err == nil {
		t.Error("Expected validation error")
	}
}

func TestManager_UpdateConfig(t *testing.T) {
	m := NewManager(DefaultConfig())
	var applied []Config
	m.OnConfigChange = func(cfg Config) error {
		applied = append(applied, cfg)
		return nil
	}

	err := m.UpdateConfig(map[string]interface{}{
		"preset":     PresetWidescreen,
		"flash":      "torch",
		"zoom_level": float64(3),
	})
	if err != nil {
		t.Fatal(err)
	}

	got := m.GetConfig()
	if got.AspectRatio != sizes.Of(16, 9) || got.Flash != FlashTorch || got.ZoomLevel != 3 {
		t.Errorf("unexpected config %+v", got)
	}
	if len(applied) != 1 {
		t.Errorf("Expected 1 callback, got %d", len(applied))
	}
}

func TestManager_UpdateConfigErrors(t *testing.T) {
	m := NewManager(DefaultConfig())
	for _, params := range []map[string]interface{}{
		{"preset": "missing"},
		{"facing": "sideways"},
		{"flash": 3},
		{"aspect_ratio": "wide"},
		{"bogus": 1},
		{"zoom_level": 0.1},
	} {
		if err := m.UpdateConfig(params); err == nil {
			t.Errorf("Expected error for %v", params)
		}
	}
	if m.GetConfig() != DefaultConfig() {
		t.Error("config changed after failed updates")
	}
}

func TestManager_CallbackFailureRestores(t *testing.T) {
	m := NewManager(DefaultConfig())
	boom := errors.New("boom")
	m.OnConfigChange = func(Config) error { return boom }

	err := m.SetConfig(Zoom2xConfig())
	if !errors.Is(err, boom) {
		t.Fatalf("Expected wrapped callback error, got %v", err)
	}
	if m.GetConfig().ZoomLevel != 1.0 {
		t.Errorf("Expected previous config to be restored")
	}
}

func TestManager_RecordSkipsCallback(t *testing.T) {
	m := NewManager(DefaultConfig())
	calls := 0
	m.OnConfigChange = func(Config) error { calls++; return nil }

	m.Record(func(cfg *Config) { cfg.ZoomLevel = 3 })
	if calls != 0 {
		t.Errorf("Expected no callback, got %d", calls)
	}

	if err := m.UpdateConfig(map[string]interface{}{"flash": "on"}); err != nil {
		t.Fatal(err)
	}
	got := m.GetConfig()
	if got.ZoomLevel != 3 || got.Flash != FlashOn {
		t.Errorf("unexpected config %+v", got)
	}
}

func TestParseFlash(t *testing.T) {
	for f, name := range flashNames {
		got, err := ParseFlash(name)
		if err != nil || got != f {
			t.Errorf("ParseFlash(%q) = %v, %v", name, got, err)
		}
	}
	if _, err := ParseFlash("strobe"); err == nil {
		t.Error("Expected error")
	}
}

func TestConfig_DerivedValuesOnTemporaries(t *testing.T) {
	if got := DefaultConfig().FocusHold(); got.Milliseconds() != 3000 {
		t.Errorf("FocusHold = %v, want 3s", got)
	}
	if got := DefaultConfig().MaxPreview(); got != sizes.MaxPreviewSize {
		t.Errorf("MaxPreview = %v, want %v", got, sizes.MaxPreviewSize)
	}
}
