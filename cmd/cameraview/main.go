// cameraview - still camera daemon
//
// Drives a local webcam through the capture controller and exposes it over
// HTTP: REST control under /api, events, pictures and preview frames on
// websockets under /ws.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/teslashibe/go-cameraview/internal/config"
	"github.com/teslashibe/go-cameraview/internal/log"
	"github.com/teslashibe/go-cameraview/pkg/camera"
	"github.com/teslashibe/go-cameraview/pkg/cameraview"
	"github.com/teslashibe/go-cameraview/pkg/hardware/webcam"
	"github.com/teslashibe/go-cameraview/pkg/sizes"
	"github.com/teslashibe/go-cameraview/pkg/web"
)

type options struct {
	env           config.Env
	captureWidth  int
	captureHeight int
	viewWidth     int
	viewHeight    int
	maxPicture    sizes.Size
}

func main() {
	opts, err := parseFlags()
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ Configuration error: %v\n", err)
		os.Exit(2)
	}
	log.Init(opts.env.LogLevel)

	if err := run(opts); err != nil {
		log.Error("cameraview exited", "error", err)
		os.Exit(1)
	}
}

func parseFlags() (options, error) {
	env, err := config.FromEnv()
	if err != nil {
		return options{}, err
	}

	port := flag.String("port", env.Port, "HTTP port (overrides CAMERAVIEW_PORT)")
	level := flag.String("log-level", env.LogLevel, "Log level: debug, info, warn, error")
	cfgPath := flag.String("config", env.ConfigPath, "JSON camera config file")
	preset := flag.String("preset", env.Preset, "Camera preset: "+fmt.Sprint(camera.PresetNames()))
	webDir := flag.String("web", env.WebDir, "Directory served at /")
	captureW := flag.Int("capture-width", 0, "Requested webcam width (0 keeps the device default)")
	captureH := flag.Int("capture-height", 0, "Requested webcam height")
	viewW := flag.Int("view-width", 1280, "Initial preview viewport width")
	viewH := flag.Int("view-height", 960, "Initial preview viewport height")
	maxPicture := flag.String("max-picture", "", "Largest still size, as WIDTHxHEIGHT")
	flag.Parse()

	env.Port, env.LogLevel, env.ConfigPath, env.Preset, env.WebDir = *port, *level, *cfgPath, *preset, *webDir
	opts := options{
		env:           env,
		captureWidth:  *captureW,
		captureHeight: *captureH,
		viewWidth:     *viewW,
		viewHeight:    *viewH,
	}
	if *maxPicture != "" {
		if _, err := fmt.Sscanf(*maxPicture, "%dx%d", &opts.maxPicture.Width, &opts.maxPicture.Height); err != nil {
			return options{}, fmt.Errorf("invalid -max-picture %q: %w", *maxPicture, err)
		}
	}
	return opts, nil
}

// loadCameraConfig resolves the initial camera parameters: a preset wins
// over a config file, which wins over the defaults.
func loadCameraConfig(env config.Env) (camera.Config, error) {
	if env.Preset != "" {
		p := camera.GetPreset(env.Preset)
		if p == nil {
			return camera.Config{}, fmt.Errorf("unknown preset %q (valid: %v)", env.Preset, camera.PresetNames())
		}
		return *p, nil
	}
	if env.ConfigPath != "" {
		return camera.LoadConfig(env.ConfigPath)
	}
	return camera.DefaultConfig(), nil
}

func run(opts options) error {
	cfg, err := loadCameraConfig(opts.env)
	if err != nil {
		return err
	}
	logger := log.With("component", "cameraview")
	logger.Info("starting",
		"port", opts.env.Port,
		"facing", cfg.Facing.String(),
		"aspect_ratio", cfg.AspectRatio.String(),
		"fps", opts.env.FrameRate,
	)

	hw := webcam.New(webcam.Options{
		MaxDevices:    opts.env.MaxDevices,
		FrameInterval: opts.env.FrameInterval(),
		Width:         opts.captureWidth,
		Height:        opts.captureHeight,
	})

	manager := camera.NewManager(cfg)
	preview := web.NewPreviewSurface(opts.viewWidth, opts.viewHeight)
	srv := web.NewServer(web.Options{
		Manager:        manager,
		Preview:        preview,
		StaticDir:      opts.env.WebDir,
		MaxPictureSize: opts.maxPicture,
	})

	ctrl := cameraview.New(hw, preview, cameraview.Options{
		Config:    cfg,
		Callbacks: srv.Callbacks(),
	})
	defer ctrl.Close()
	srv.Attach(ctrl)
	ctrl.Start()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Listen(opts.env.Addr()) }()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-errCh:
		ctrl.Stop()
		return err
	}

	ctrl.Stop()
	if err := srv.Shutdown(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
