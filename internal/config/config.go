// Package config reads the daemon settings from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Defaults used when the environment does not say otherwise.
const (
	DefaultPort       = "8080"
	DefaultLogLevel   = "info"
	DefaultMaxDevices = 4
	DefaultFrameRate  = 15
)

// Env is the daemon configuration.
type Env struct {
	Port       string
	LogLevel   string
	ConfigPath string
	Preset     string
	MaxDevices int
	FrameRate  int
	WebDir     string
}

// FromEnv loads Env from CAMERAVIEW_* variables.
func FromEnv() (Env, error) {
	maxDevices, err := Int("CAMERAVIEW_MAX_DEVICES", DefaultMaxDevices)
	if err != nil {
		return Env{}, err
	}
	fps, err := Int("CAMERAVIEW_FPS", DefaultFrameRate)
	if err != nil {
		return Env{}, err
	}
	if maxDevices <= 0 {
		return Env{}, fmt.Errorf("config: CAMERAVIEW_MAX_DEVICES must be positive, got %d", maxDevices)
	}
	if fps <= 0 || fps > 120 {
		return Env{}, fmt.Errorf("config: CAMERAVIEW_FPS must be between 1 and 120, got %d", fps)
	}
	return Env{
		Port:       String("CAMERAVIEW_PORT", DefaultPort),
		LogLevel:   String("CAMERAVIEW_LOG_LEVEL", DefaultLogLevel),
		ConfigPath: os.Getenv("CAMERAVIEW_CONFIG"),
		Preset:     os.Getenv("CAMERAVIEW_PRESET"),
		MaxDevices: maxDevices,
		FrameRate:  fps,
		WebDir:     os.Getenv("CAMERAVIEW_WEB_DIR"),
	}, nil
}

// FrameInterval is the time between preview frames.
func (e Env) FrameInterval() time.Duration {
	return time.Second / time.Duration(e.FrameRate)
}

// Addr is the listen address for the web server.
func (e Env) Addr() string {
	return ":" + e.Port
}

// String returns the value of key, or def when unset or blank.
func String(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

// Int parses key as an integer, returning def when unset.
func Int(key string, def int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return n, nil
}
