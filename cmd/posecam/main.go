// posecam - live pose overlay with a fading skeleton trail, a VU meter and
// optional speech captions. The camera is either a local device or a
// browser connected over websocket/WebRTC.
package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"

	"github.com/teslashibe/go-posecam/internal/config"
	plog "github.com/teslashibe/go-posecam/internal/log"
	"github.com/teslashibe/go-posecam/pkg/app"
	"github.com/teslashibe/go-posecam/pkg/camera"
	"github.com/teslashibe/go-posecam/pkg/debug"
	"github.com/teslashibe/go-posecam/pkg/web"
)

func main() {
	cfg := parseFlags()

	logs := web.NewLogBuffer(web.DefaultLogLines)
	plog.Init(cfg.LogLevel, logs)

	a, err := app.New(cfg, app.WithLogger(plog.L()), app.WithLogBuffer(logs))
	if err != nil {
		log.Fatalf("❌ Configuration error: %v", err)
	}

	if err := a.Init(); err != nil {
		log.Fatalf("❌ Initialization failed: %v", err)
	}
	defer a.Shutdown()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := a.Run(ctx); err != nil {
		log.Fatalf("❌ Runtime error: %v", err)
	}
}

// parseFlags loads the config file and environment, then applies command
// line overrides.
func parseFlags() config.Config {
	configPath := flag.String("config", "", "YAML config file")
	debugFlag := flag.Bool("debug", false, "Enable verbose debug logging")
	debugRender := flag.Bool("debug-render", false, "Log render statistics every 30 ticks")
	debugCaptions := flag.Bool("debug-captions", false, "Log every partial caption")
	port := flag.String("port", "", "Dashboard port")
	source := flag.String("source", "", "Camera source: device, local")
	facing := flag.String("facing", "", "Initial camera: user, environment")
	model := flag.String("model", "", "Pose model path (ONNX)")
	captionsMode := flag.String("captions", "", "Caption recognizer: realtime, google, off")
	settingsPath := flag.String("settings", "", "Settings file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("❌ Configuration error: %v", err)
	}

	debug.Enabled, debug.Render, debug.Captions = *debugFlag, *debugRender, *debugCaptions
	if *debugFlag {
		cfg.LogLevel = "debug"
	}
	if *port != "" {
		cfg.Port = *port
	}
	if *source != "" {
		cfg.Source = *source
	}
	if *facing != "" {
		f, err := camera.ParseFacingMode(*facing)
		if err != nil {
			log.Fatalf("❌ Configuration error: %v", err)
		}
		cfg.Camera.Facing = f
	}
	if *model != "" {
		cfg.Pose.ModelPath = *model
	}
	if *captionsMode != "" {
		cfg.Captions = *captionsMode
	}
	if *settingsPath != "" {
		cfg.SettingsPath = *settingsPath
	}
	return cfg
}
