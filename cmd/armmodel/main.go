// armmodel: runs the arm model for one or more tracked hands and serves
// the resulting poses over HTTP and websockets.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/teslashibe/go-armmodel/internal/config"
	"github.com/teslashibe/go-armmodel/internal/log"
	"github.com/teslashibe/go-armmodel/internal/service"
	"github.com/teslashibe/go-armmodel/pkg/debug"
	"github.com/teslashibe/go-armmodel/pkg/sensor"
	"github.com/teslashibe/go-armmodel/pkg/web"
)

var (
	configPath  = flag.String("config", "", "YAML config file")
	port        = flag.String("port", "", "HTTP port (overrides config)")
	source      = flag.String("source", "", "Sample source: sim, replay or remote")
	script      = flag.String("script", "", "Simulation script: "+strings.Join(sensor.Scripts(), ", "))
	replay      = flag.String("replay", "", "NDJSON recording to replay (implies -source replay)")
	loop        = flag.Bool("loop", false, "Restart the replay when it ends")
	record      = flag.String("record", "", "Record samples to this NDJSON file")
	offline     = flag.Bool("offline", false, "Process the replay as fast as possible and print poses to stdout")
	debugFlag   = flag.Bool("debug", false, "Enable debug logging")
	debugFrames = flag.Bool("debug-frames", false, "Log every model update (very verbose)")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println("armmodel " + web.Version)
		return
	}

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, "armmodel:", err)
		os.Exit(2)
	}

	debug.Enabled = *debugFlag
	debug.Frames = *debugFrames
	level := cfg.Server.LogLevel
	if *debugFlag || *debugFrames {
		level = "debug"
	}
	if *offline {
		// stdout carries the poses
		log.SetOutput(os.Stderr, level, false)
	} else {
		log.Init(level)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Error("armmodel failed", "error", err)
		os.Exit(1)
	}
}

func loadConfig() (config.Config, error) {
	cfg, err := config.Load(*configPath)
	if err != nil {
		return config.Config{}, err
	}

	if *port != "" {
		cfg.Server.Port = *port
	}
	if *source != "" {
		cfg.Source.Kind = *source
	}
	if *script != "" {
		cfg.Source.Script = *script
	}
	if *replay != "" {
		cfg.Source.Replay = *replay
		if *source == "" {
			cfg.Source.Kind = config.SourceReplay
		}
	}
	if *loop {
		cfg.Source.Loop = true
	}
	if *record != "" {
		cfg.Source.Record = *record
	}
	return cfg, cfg.Validate()
}

func run(ctx context.Context, cfg config.Config) error {
	svc, err := service.New(cfg)
	if err != nil {
		return err
	}

	if *offline {
		return svc.Offline(ctx, os.Stdout)
	}

	hands := make([]string, 0, len(cfg.Hands))
	for _, h := range cfg.Hands {
		hands = append(hands, h.Name)
	}
	log.Info("armmodel starting",
		"version", web.Version,
		"source", cfg.Source.Kind,
		"hands", strings.Join(hands, ","),
		"api", "http://localhost:"+cfg.Server.Port+"/api/hands",
		"stream", "ws://localhost:"+cfg.Server.Port+"/ws/pose")
	if cfg.Source.Kind == config.SourceRemote {
		log.Info("waiting for devices", "endpoint", "ws://localhost:"+cfg.Server.Port+"/ws/device")
	}

	if err := svc.Run(ctx); err != nil {
		return err
	}
	log.Info("armmodel stopped")
	return nil
}
