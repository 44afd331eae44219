// Package backdrop composes the particle layers, monitors and optimizers into
// one adaptive starfield.
//
// Startup is an ordered sequence of stages (device, capability, policy, then
// layers or fallback, then subscriptions). After that the host calls Tick once
// per frame; under the fallback path the emulator drives itself and Tick only
// keeps the monitor and theme current.
package backdrop

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/sony/gobreaker"

	"github.com/pthm-cable/starfield/camera"
	"github.com/pthm-cable/starfield/capability"
	"github.com/pthm-cable/starfield/config"
	"github.com/pthm-cable/starfield/device"
	"github.com/pthm-cable/starfield/fallback"
	"github.com/pthm-cable/starfield/layer"
	"github.com/pthm-cable/starfield/quality"
	"github.com/pthm-cable/starfield/renderopt"
	"github.com/pthm-cable/starfield/telemetry"
	"github.com/pthm-cable/starfield/theme"
	"github.com/pthm-cable/starfield/ux"
)

// Mode is the active rendering path.
type Mode int

const (
	ModeNone Mode = iota // Not started, or every path failed
	ModeGPU
	ModeFallback
)

func (m Mode) String() string {
	switch m {
	case ModeGPU:
		return "gpu"
	case ModeFallback:
		return "fallback"
	}
	return "none"
}

// Host is what the embedding application provides.
type Host struct {
	// Allocator creates GPU resources. nil disables the GPU path.
	Allocator renderopt.Allocator
	// Detector is the shared capability detector. When nil one is built from Prober.
	Detector *capability.Detector
	Prober   capability.Prober
	// Container hosts fallback elements. nil makes the fallback unavailable.
	Container fallback.Container
	Notifier  Notifier
	// Measure reads the current viewport. Required.
	Measure     func() device.Viewport
	Environment device.Environment
	// Memory reads real memory usage. nil selects the particle-count estimate.
	Memory telemetry.MemoryReader
}

// Options are optional collaborators.
type Options struct {
	Logger   *slog.Logger
	Exporter *telemetry.Exporter
	Output   *telemetry.OutputManager
	UX       *ux.Source
	Seed     int64
	Now      func() time.Time // Startup clock; defaults to time.Now
}

// frameClock reports the time of the frame being ticked.
type frameClock struct{ now time.Time }

func (c *frameClock) Now() time.Time { return c.now }

// Backdrop is the composition root.
type Backdrop struct {
	cfg    *config.Config
	host   Host
	opts   Options
	logger *slog.Logger
	rng    *rand.Rand

	// Built from config in New
	presets   []layer.Preset
	table     quality.Table
	initial   quality.Level
	rules     capability.Rules
	policy    *Policy
	fbOpts    fallback.Options
	clock     frameClock
	monitor   *telemetry.Monitor
	perf      *telemetry.PerfCollector
	bookmarks *telemetry.BookmarkDetector
	optimizer *quality.Optimizer
	render    *renderopt.Optimizer
	themes    *theme.Manager
	prefs     *ux.Source
	ownsPrefs bool
	camera    *camera.Camera

	// Built by Start
	device    *device.Adapter
	gestures  *device.Recognizer
	report    capability.Report
	mode      Mode
	provider  *renderopt.Provider
	layers    []*layer.Layer
	breakers  map[string]*gobreaker.CircuitBreaker
	emulator  *fallback.Emulator
	unsubs    []func()
	statuses  []StageStatus
	startedAt time.Time
	started   bool
	disposed  bool

	// Per-frame state
	frame       int64
	lastFrame   time.Time
	sinceSample time.Duration
	sinceLog    time.Duration
	pointer     [2]float32
	panPrev     [2]float32
	pinchPrev   float32
	lastRender  renderopt.FrameStats
	warnings    int
}

// New validates cfg and builds every config-derived service. Nothing touches
// the host until Start.
func New(cfg *config.Config, host Host, opts Options) (*Backdrop, error) {
	if host.Measure == nil {
		return nil, errors.New("backdrop: host must provide Measure")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if host.Notifier == nil {
		host.Notifier = LogNotifier{Logger: opts.Logger}
	}
	logger := opts.Logger

	b := &Backdrop{
		cfg:       cfg,
		host:      host,
		opts:      opts,
		logger:    logger.With("component", "backdrop"),
		rng:       rand.New(rand.NewSource(opts.Seed)),
		breakers:  make(map[string]*gobreaker.CircuitBreaker),
		pinchPrev: 1,
	}

	var err error
	if b.presets, err = layer.Presets(cfg.Layers); err != nil {
		return nil, err
	}
	if b.table, err = quality.NewTable(cfg.Quality); err != nil {
		return nil, err
	}
	if b.initial, err = quality.ParseLevel(cfg.Quality.Initial); err != nil {
		return nil, fmt.Errorf("quality.initial: %w", err)
	}
	if b.rules, err = capability.NewRules(cfg.Capability); err != nil {
		return nil, err
	}
	if b.policy, err = NewPolicy(cfg.Fallback.Policy); err != nil {
		return nil, err
	}
	if b.fbOpts, err = fallback.OptionsFromConfig(cfg.Fallback, cfg.Derived.FallbackTick); err != nil {
		return nil, err
	}
	if _, err = device.TableFromConfig(cfg.Device); err != nil {
		return nil, err
	}
	if b.themes, err = theme.NewManager(cfg.Theme, cfg.Derived.ThemeTransition, logger); err != nil {
		return nil, err
	}
	b.optimizer, err = quality.NewOptimizer(b.table, b.initial,
		quality.OptionsFromConfig(cfg.Quality.Optimizer, cfg.Derived.Cooldown), logger)
	if err != nil {
		return nil, err
	}

	b.monitor = telemetry.NewMonitor(
		telemetry.MonitorOptionsFromConfig(cfg.Monitor, cfg.Derived.MemoryInterval),
		&b.clock, host.Memory, logger)
	b.perf = telemetry.NewPerfCollector(cfg.Monitor.SampleSize)
	b.bookmarks = telemetry.NewBookmarkDetector(10, cfg.Quality.Optimizer.TargetFPS)

	var resampleObs renderopt.ResampleObserver
	if opts.Exporter != nil {
		resampleObs = opts.Exporter
	}
	b.render = renderopt.NewOptimizer(renderopt.OptionsFromConfig(cfg.Render), resampleObs, logger)

	b.prefs = opts.UX
	if b.prefs == nil {
		b.prefs = ux.NewSource(ux.FromConfig(cfg.UX), logger)
		b.ownsPrefs = true
	}
	b.optimizer.SetPreferences(b.prefs.Current())

	b.camera = camera.New(float32(cfg.Screen.Width), float32(cfg.Screen.Height),
		float32(cfg.Screen.FOV), float32(cfg.Screen.CameraDistance))
	return b, nil
}

// Mode returns the active rendering path.
func (b *Backdrop) Mode() Mode { return b.mode }

// Statuses returns the startup stage results.
func (b *Backdrop) Statuses() []StageStatus { return b.statuses }

// Report returns the capability report from startup.
func (b *Backdrop) Report() capability.Report { return b.report }

// Layers returns the live layers. Empty outside the GPU path.
func (b *Backdrop) Layers() []*layer.Layer { return b.layers }

// Camera returns the orbit camera the render optimizer culls against.
func (b *Backdrop) Camera() *camera.Camera { return b.camera }

// Monitor returns the performance monitor.
func (b *Backdrop) Monitor() *telemetry.Monitor { return b.monitor }

// Perf returns the frame phase collector.
func (b *Backdrop) Perf() *telemetry.PerfCollector { return b.perf }

// Quality returns the quality optimizer.
func (b *Backdrop) Quality() *quality.Optimizer { return b.optimizer }

// Render returns the render optimizer.
func (b *Backdrop) Render() *renderopt.Optimizer { return b.render }

// Themes returns the theme manager.
func (b *Backdrop) Themes() *theme.Manager { return b.themes }

// Preferences returns the UX preference source.
func (b *Backdrop) Preferences() *ux.Source { return b.prefs }

// Device returns the device adapter, or nil before Start.
func (b *Backdrop) Device() *device.Adapter { return b.device }

// Provider returns the pooled resource provider, or nil outside the GPU path.
func (b *Backdrop) Provider() *renderopt.Provider { return b.provider }

// Emulator returns the fallback emulator, or nil outside the fallback path.
func (b *Backdrop) Emulator() *fallback.Emulator { return b.emulator }

// Frame returns the number of frames ticked.
func (b *Backdrop) Frame() int64 { return b.frame }

// LastRender returns the render optimizer stats of the last frame.
func (b *Backdrop) LastRender() renderopt.FrameStats { return b.lastRender }
