// Terminal fallback demo - runs the non-WebGL particle emulator on a tcell
// screen, one cell per particle.
//
// Keys: t cycles themes, + and - change the particle count, q or Esc quits.
//
// Usage: go run ./cmd/termfield -log termfield.log
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/pthm-cable/starfield/config"
	"github.com/pthm-cable/starfield/fallback"
	"github.com/pthm-cable/starfield/fallback/term"
	"github.com/pthm-cable/starfield/theme"
)

// Terminal cells are much coarser than pixels, so configured speeds are scaled down.
const defaultSpeedScale = 0.25

func main() {
	configPath := flag.String("config", "", "Config YAML (empty = use defaults)")
	logPath := flag.String("log", "", "Write logs to this file (empty = discard)")
	speedScale := flag.Float64("speed", defaultSpeedScale, "Multiplier applied to fallback.speed_range")
	seed := flag.Int64("seed", 0, "RNG seed (0 = time-based)")
	flag.Parse()

	if err := run(*configPath, *logPath, *speedScale, *seed); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(configPath, logPath string, speedScale float64, seed int64) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// The screen owns stdout, so logs go to a file or nowhere
	var logOut io.Writer = io.Discard
	if logPath != "" {
		f, err := os.Create(logPath)
		if err != nil {
			return fmt.Errorf("creating log file: %w", err)
		}
		defer f.Close()
		logOut = f
	}
	logger, err := cfg.Logging.NewLogger(logOut)
	if err != nil {
		return err
	}

	opts, err := fallback.OptionsFromConfig(cfg.Fallback, cfg.Derived.FallbackTick)
	if err != nil {
		return err
	}
	opts.SpeedRange.Min *= speedScale
	opts.SpeedRange.Max *= speedScale

	themes, err := theme.NewManager(cfg.Theme, cfg.Derived.ThemeTransition, logger)
	if err != nil {
		return fmt.Errorf("loading themes: %w", err)
	}
	defer themes.Dispose()

	screen, err := tcell.NewScreen()
	if err != nil {
		return fmt.Errorf("creating screen: %w", err)
	}
	if err := screen.Init(); err != nil {
		return fmt.Errorf("initialising screen: %w", err)
	}
	defer screen.Fini()
	screen.HideCursor()

	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	container := term.New(screen)
	emu, err := fallback.New(container, opts, rand.New(rand.NewSource(seed)), logger)
	if err != nil {
		return err
	}
	defer emu.Stop()

	unsubscribe := themes.OnProgress(func(_ float64, c theme.Colors) {
		emu.SetColors(c.Palette())
	})
	defer unsubscribe()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	emu.Start(ctx)

	events := make(chan tcell.Event, 8)
	go func() {
		for {
			ev := screen.PollEvent()
			if ev == nil {
				return // Screen finalised
			}
			select {
			case events <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()

	names := themes.Names()
	themeIdx := 0
	for i, n := range names {
		if n == themes.Name() {
			themeIdx = i
		}
	}
	setStatus := func() {
		container.SetStatus(fmt.Sprintf(" %s | %d particles | t: theme  +/-: count  q: quit ",
			themes.Name(), emu.Count()))
	}
	setStatus()

	ticker := time.NewTicker(cfg.Derived.FallbackTick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			themes.Update(now)
		case ev := <-events:
			switch ev := ev.(type) {
			case *tcell.EventResize:
				screen.Sync()
			case *tcell.EventKey:
				switch {
				case ev.Key() == tcell.KeyEscape || ev.Key() == tcell.KeyCtrlC || ev.Rune() == 'q':
					return nil
				case ev.Rune() == 't' && len(names) > 0:
					themeIdx = (themeIdx + 1) % len(names)
					if err := themes.Transition(names[themeIdx], 0, time.Now()); err != nil {
						logger.Warn("theme switch failed", "error", err)
					}
				case ev.Rune() == '+' || ev.Rune() == '=':
					if err := emu.Resize(emu.Count() + 25); err != nil {
						logger.Warn("resize failed", "error", err)
					}
				case ev.Rune() == '-':
					if err := emu.Resize(emu.Count() - 25); err != nil {
						logger.Warn("resize failed", "error", err)
					}
				}
				setStatus()
			}
		}
	}
}
