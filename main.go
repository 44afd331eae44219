package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/starfield/capability"
	"github.com/pthm-cable/starfield/config"
	"github.com/pthm-cable/starfield/telemetry"
	"github.com/pthm-cable/starfield/viewer"
)

func main() {
	// CLI flags
	configPath := flag.String("config", "", "Path to config.yaml (empty = use defaults)")
	headless := flag.Bool("headless", false, "Run without graphics")
	watch := flag.Bool("watch-config", false, "Reload the config file when it changes")
	capabilities := flag.String("capabilities", "", "Capability report JSON from cmd/probe (empty = baseline limits)")
	metricsAddr := flag.String("metrics-addr", "", "Serve Prometheus metrics on this address (empty = use config)")
	logFormat := flag.String("log-format", "", "Log format, json or text (empty = use config)")
	outputDir := flag.String("output-dir", "", "Output directory for CSV logs and config snapshot")
	seed := flag.Int64("seed", 0, "RNG seed (0 = time-based)")
	maxFrames := flag.Int64("max-frames", 0, "Stop after N frames (0 = unlimited)")

	flag.Parse()

	// Initialize config before anything else
	if err := config.Init(*configPath); err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	cfg := config.Cfg()

	if *logFormat != "" {
		cfg.Logging.Format = *logFormat
	}
	logger, err := cfg.Logging.NewLogger(os.Stdout)
	if err != nil {
		slog.Error("invalid logging config", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(logger)

	rngSeed := *seed
	if rngSeed == 0 {
		rngSeed = time.Now().UnixNano()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	prober := capability.BaselineProber()
	if *capabilities != "" {
		prober, err = capability.FileProber(*capabilities)
		if err != nil {
			logger.Error("failed to load capability report", "error", err)
			os.Exit(1)
		}
	}

	exporter := telemetry.NewExporter(cfg.Metrics.Namespace)
	addr := cfg.Metrics.Addr
	if *metricsAddr != "" {
		addr = *metricsAddr
	}
	if addr != "" {
		srv := exporter.NewServer(addr)
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server stopped", "error", err)
			}
		}()
		defer srv.Close()
		logger.Info("serving metrics", "addr", addr)
	}

	opts := viewer.Options{
		Seed:      rngSeed,
		Headless:  *headless,
		OutputDir: *outputDir,
		Prober:    prober,
		Exporter:  exporter,
		Logger:    logger,
	}

	if !*headless {
		rl.SetConfigFlags(rl.FlagWindowResizable | rl.FlagMsaa4xHint)
		rl.InitWindow(int32(cfg.Screen.Width), int32(cfg.Screen.Height), "Starfield")
		defer rl.CloseWindow()
		rl.SetTargetFPS(int32(cfg.Screen.TargetFPS))
	}

	v, err := viewer.New(cfg, opts)
	if err != nil {
		logger.Error("failed to create viewer", "error", err)
		os.Exit(1)
	}
	defer v.Unload()

	if err := v.Start(ctx); err != nil {
		logger.Error("failed to start backdrop", "error", err)
		return
	}

	if *watch {
		if err := config.Watch(ctx, *configPath, 250*time.Millisecond, v.Reload); err != nil {
			logger.Warn("config watch disabled", "error", err)
		}
	}

	logger.Info("starting starfield",
		"seed", rngSeed,
		"headless", *headless,
		"max_frames", *maxFrames,
	)

	if *headless {
		// Headless mode ticks at the target frame time on the wall clock
		ticker := time.NewTicker(cfg.Derived.TargetFrameTime)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				v.UpdateHeadless(now)
			}
			if *maxFrames > 0 && v.Frame() >= *maxFrames {
				logger.Info("max frames reached", "frame", v.Frame())
				return
			}
		}
	}

	for !rl.WindowShouldClose() && ctx.Err() == nil {
		now := time.Now()
		v.Update(now)
		v.Draw(now)

		if *maxFrames > 0 && v.Frame() >= *maxFrames {
			break
		}
	}
}
