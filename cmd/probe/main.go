// Package main probes the native OpenGL driver and prints the capability
// report as JSON. The output can be passed to the viewer with -capabilities.
package main

import (
	"flag"
	"log"
	"log/slog"
	"os"
	"runtime"

	"github.com/pthm-cable/starfield/capability"
	"github.com/pthm-cable/starfield/capability/glprobe"
	"github.com/pthm-cable/starfield/config"
)

func init() {
	// GLFW must run on the main thread
	runtime.LockOSThread()
}

func main() {
	os.Exit(run())
}

// run returns the exit code: 0 when supported, 2 when the fallback is needed.
func run() int {
	configPath := flag.String("config", "", "Config YAML with capability rules (empty = use defaults)")
	outPath := flag.String("out", "", "Write the report here instead of stdout")
	userAgent := flag.String("user-agent", "", "Evaluate the rules as if on this user agent")
	verbose := flag.Bool("v", false, "Log each context rung")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	rules, err := capability.NewRules(cfg.Capability)
	if err != nil {
		log.Fatalf("invalid capability rules: %v", err)
	}

	var prober capability.Prober
	gp, err := glprobe.New()
	if err != nil {
		// Reported as unsupported rather than aborting
		logger.Warn("no OpenGL available", "error", err)
	} else {
		defer gp.Close()
		prober = gp
	}

	env := capability.Environment{UserAgent: *userAgent}
	report := capability.NewDetector(prober, rules, env, logger).Detect()

	w := os.Stdout
	if *outPath != "" {
		f, err := os.Create(*outPath)
		if err != nil {
			log.Fatalf("failed to create %s: %v", *outPath, err)
		}
		defer f.Close()
		w = f
	}
	if err := report.WriteJSON(w); err != nil {
		log.Fatalf("failed to write report: %v", err)
	}
	if !report.Supported {
		return 2
	}
	return 0
}
