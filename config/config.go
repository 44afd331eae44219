// Package config provides configuration loading and access for the backdrop.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Config holds all backdrop configuration parameters.
type Config struct {
	Screen     ScreenConfig     `yaml:"screen"`
	Logging    LoggingConfig    `yaml:"logging"`
	Layers     LayersConfig     `yaml:"layers"`
	Quality    QualityConfig    `yaml:"quality"`
	Monitor    MonitorConfig    `yaml:"monitor"`
	Render     RenderConfig     `yaml:"render"`
	Device     DeviceConfig     `yaml:"device"`
	Capability CapabilityConfig `yaml:"capability"`
	Fallback   FallbackConfig   `yaml:"fallback"`
	Theme      ThemeConfig      `yaml:"theme"`
	UX         UXConfig         `yaml:"ux"`
	Benchmark  BenchmarkConfig  `yaml:"benchmark"`
	Metrics    MetricsConfig    `yaml:"metrics"`

	// Derived values computed after loading
	Derived DerivedConfig `yaml:"-"`
}

// ScreenConfig holds display and camera settings.
type ScreenConfig struct {
	Width          int     `yaml:"width"`
	Height         int     `yaml:"height"`
	TargetFPS      int     `yaml:"target_fps"`
	FOV            float64 `yaml:"fov"`             // Vertical field of view in degrees
	CameraDistance float64 `yaml:"camera_distance"` // Initial orbit distance from the origin
	UserAgent      string  `yaml:"user_agent"`      // Reported user agent for device/capability rules
	Touch          bool    `yaml:"touch"`
}

// LoggingConfig holds slog settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json or text
}

// LayersConfig selects which built-in layers are created and defines custom ones.
type LayersConfig struct {
	Enabled         []string            `yaml:"enabled"`
	Custom          []LayerPresetConfig `yaml:"custom"`
	BreakerFailures int                 `yaml:"breaker_failures"` // Consecutive update failures before a layer is skipped
	BreakerTimeout  float64             `yaml:"breaker_timeout"`  // Seconds a tripped layer stays skipped
}

// LayerPresetConfig describes a custom layer.
// Zero-valued ranges fall back to the foreground preset's values.
type LayerPresetConfig struct {
	Name                   string             `yaml:"name"`
	Share                  float64            `yaml:"share"` // Fraction of the quality particle target
	Distribution           string             `yaml:"distribution"`
	DepthRange             [2]float64         `yaml:"depth_range"`
	SizeRange              [2]float64         `yaml:"size_range"`
	VelocityRange          float64            `yaml:"velocity_range"`
	OrbitalRange           [2]float64         `yaml:"orbital_range"`
	Intensity              float64            `yaml:"intensity"`
	DepthBase              float64            `yaml:"depth_base"`
	DepthMultiplier        float64            `yaml:"depth_multiplier"`
	OrbitalSpeedMultiplier float64            `yaml:"orbital_speed_multiplier"`
	VelocityMultiplier     float64            `yaml:"velocity_multiplier"`
	BrightnessBase         float64            `yaml:"brightness_base"`
	BrightnessMultiplier   float64            `yaml:"brightness_multiplier"`
	Palette                string             `yaml:"palette"`           // Named palette (ignored when temperature_range is set)
	TemperatureRange       [2]float64         `yaml:"temperature_range"` // Kelvin range for the physical colour model
	Types                  map[string]float64 `yaml:"types"`             // Particle type -> weight
	ThemeRole              string             `yaml:"theme_role"`
}

// QualityConfig holds the quality level table and optimizer parameters.
type QualityConfig struct {
	Initial   string                        `yaml:"initial"`
	Levels    map[string]QualityLevelConfig `yaml:"levels"`
	Optimizer OptimizerConfig               `yaml:"optimizer"`
}

// QualityLevelConfig is one row of the quality table.
type QualityLevelConfig struct {
	ParticleCount   int     `yaml:"particle_count"`
	ComplexShading  bool    `yaml:"complex_shading"`
	Fog             bool    `yaml:"fog"`
	EnergyEffects   bool    `yaml:"energy_effects"`
	SizeMultiplier  float64 `yaml:"size_multiplier"`
	AnimationSpeed  float64 `yaml:"animation_speed"`
	EffectIntensity float64 `yaml:"effect_intensity"`
}

// OptimizerConfig holds the quality control loop parameters.
type OptimizerConfig struct {
	TargetFPS     float64 `yaml:"target_fps"`
	MinFPS        float64 `yaml:"min_fps"`
	UpgradeFactor float64 `yaml:"upgrade_factor"` // Upgrade when mean FPS > target * factor
	Window        int     `yaml:"window"`         // Trailing FPS samples considered
	CooldownMS    int     `yaml:"cooldown_ms"`
	SampleMS      int     `yaml:"sample_ms"` // Interval between FPS samples fed to the optimizer
}

// MonitorConfig holds performance monitor parameters.
type MonitorConfig struct {
	SampleSize          int     `yaml:"sample_size"`  // Frame times per FPS reading
	HistorySize         int     `yaml:"history_size"` // FPS readings for min/max/average
	FPSWarning          float64 `yaml:"fps_warning"`
	MemoryWarningMB     float64 `yaml:"memory_warning_mb"`
	MemoryIntervalMS    int     `yaml:"memory_interval_ms"`
	MemoryBaseMB        float64 `yaml:"memory_base_mb"`
	MemoryPerParticleMB float64 `yaml:"memory_per_particle_mb"`
	LogInterval         float64 `yaml:"log_interval"` // Seconds between perf log lines (0 = off)
}

// RenderConfig holds render optimizer parameters.
type RenderConfig struct {
	LODTiers       []LODTierConfig `yaml:"lod_tiers"`
	LODQuantum     float64         `yaml:"lod_quantum"` // Distance bucket size for the LOD cache
	CullingEnabled bool            `yaml:"culling_enabled"`
	CullMargin     float64         `yaml:"cull_margin"`
	MaxPoolSize    int             `yaml:"max_pool_size"`
}

// LODTierConfig is one level-of-detail tier.
type LODTierConfig struct {
	Distance         float64 `yaml:"distance"`
	ParticleFraction float64 `yaml:"particle_fraction"`
	Quality          float64 `yaml:"quality"`
}

// DeviceConfig holds responsive adaptation parameters.
type DeviceConfig struct {
	MobileBreakpoint    int                         `yaml:"mobile_breakpoint"`
	TabletBreakpoint    int                         `yaml:"tablet_breakpoint"`
	OrientationSettleMS int                         `yaml:"orientation_settle_ms"`
	PanThresholdPx      float64                     `yaml:"pan_threshold_px"`
	LongPressMS         int                         `yaml:"long_press_ms"`
	Types               map[string]DeviceTypeConfig `yaml:"types"`
}

// DeviceTypeConfig is the budget for one device class.
type DeviceTypeConfig struct {
	ParticleMultiplier float64 `yaml:"particle_multiplier"`
	Quality            string  `yaml:"quality"`
	AdvancedEffects    bool    `yaml:"advanced_effects"`
	MaxParticles       int     `yaml:"max_particles"`
	RenderScale        float64 `yaml:"render_scale"`
}

// CapabilityConfig holds the capability rule set.
type CapabilityConfig struct {
	MinTextureSize         int      `yaml:"min_texture_size"`
	MobileMinTextureSize   int      `yaml:"mobile_min_texture_size"`
	MinVertexUniforms      int      `yaml:"min_vertex_uniforms"`
	MinFragmentUniforms    int      `yaml:"min_fragment_uniforms"`
	RequiredExtensions     []string `yaml:"required_extensions"`
	RendererDenylist       []string `yaml:"renderer_denylist"` // Regular expressions
	CanvasWarningThreshold int      `yaml:"canvas_warning_threshold"`
}

// FallbackConfig holds the CSS-style emulator options and routing policy.
type FallbackConfig struct {
	Policy             string     `yaml:"policy"` // expr-lang boolean expression
	LowQualityFallback bool       `yaml:"low_quality_fallback"`
	Count              int        `yaml:"count"`
	Colors             []string   `yaml:"colors"`
	SizeRange          [2]float64 `yaml:"size_range"`
	SpeedRange         [2]float64 `yaml:"speed_range"` // Units per second
	LifeRange          [2]float64 `yaml:"life_range"`  // Seconds
	MaxOpacity         float64    `yaml:"max_opacity"`
	TickMS             int        `yaml:"tick_ms"`
}

// ThemeConfig holds colour themes.
type ThemeConfig struct {
	Default      string                  `yaml:"default"`
	TransitionMS int                     `yaml:"transition_ms"`
	Themes       map[string]ThemePalette `yaml:"themes"`
}

// ThemePalette holds hex colours for one theme.
type ThemePalette struct {
	Primary    string `yaml:"primary"`
	Secondary  string `yaml:"secondary"`
	Accent     string `yaml:"accent"`
	Background string `yaml:"background"`
	Foreground string `yaml:"foreground"`
	Glow       string `yaml:"glow"`
}

// UXConfig holds user experience preferences supplied by the host page.
type UXConfig struct {
	MotionReduction     bool    `yaml:"motion_reduction"`
	BatteryOptimization bool    `yaml:"battery_optimization"`
	TransitionSpeed     float64 `yaml:"transition_speed"` // Theme transitions run at this speed; 2 halves their duration
}

// BenchmarkConfig holds benchmark sweep parameters.
type BenchmarkConfig struct {
	Levels             []string `yaml:"levels"`
	ParticleCounts     []int    `yaml:"particle_counts"`
	DurationMS         int      `yaml:"duration_ms"`
	StabilityThreshold float64  `yaml:"stability_threshold"`
	MinAcceptableFPS   float64  `yaml:"min_acceptable_fps"`
	SyntheticFPS       float64  `yaml:"synthetic_fps"`
	CostPerParticleUS  float64  `yaml:"cost_per_particle_us"` // Synthetic cost model; 0 = constant frame time
}

// MetricsConfig holds Prometheus exporter settings.
type MetricsConfig struct {
	Namespace string `yaml:"namespace"`
	Addr      string `yaml:"addr"` // Empty disables the /metrics server
}

// DerivedConfig holds computed values derived from the loaded config.
type DerivedConfig struct {
	Aspect            float32       // Screen.Width / Screen.Height
	TargetFrameTime   time.Duration // 1s / Screen.TargetFPS
	Cooldown          time.Duration // Quality.Optimizer.CooldownMS
	SampleInterval    time.Duration // Quality.Optimizer.SampleMS
	MemoryInterval    time.Duration
	OrientationSettle time.Duration
	LongPress         time.Duration
	FallbackTick      time.Duration
	ThemeTransition   time.Duration
	BenchmarkDuration time.Duration
	BreakerTimeout    time.Duration
}

// global holds the loaded configuration.
var global *Config

// Init loads configuration from the given path, or uses embedded defaults if path is empty.
// Must be called before Cfg().
func Init(path string) error {
	cfg, err := Load(path)
	if err != nil {
		return err
	}
	global = cfg
	return nil
}

// MustInit is like Init but panics on error.
func MustInit(path string) {
	if err := Init(path); err != nil {
		panic(fmt.Sprintf("config: failed to initialize: %v", err))
	}
}

// Cfg returns the global configuration. Panics if Init was not called.
func Cfg() *Config {
	if global == nil {
		panic("config: Cfg() called before Init()")
	}
	return global
}

// Default returns the embedded defaults. Panics if the embedded file is invalid.
func Default() *Config {
	cfg, err := Load("")
	if err != nil {
		panic(fmt.Sprintf("config: embedded defaults: %v", err))
	}
	return cfg
}

// Load loads configuration from a YAML file, merging with embedded defaults.
// If path is empty, only embedded defaults are used.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Unmarshal into same struct - only overwrites fields present in file
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	cfg.computeDerived()

	return cfg, nil
}

// Validate rejects configurations the backdrop cannot run with.
func (c *Config) Validate() error {
	var errs []error

	if c.Screen.Width <= 0 || c.Screen.Height <= 0 {
		errs = append(errs, fmt.Errorf("screen size %dx%d must be positive", c.Screen.Width, c.Screen.Height))
	}
	for _, name := range []string{"LOW", "MEDIUM", "HIGH", "ULTRA"} {
		if _, ok := c.Quality.Levels[name]; !ok {
			errs = append(errs, fmt.Errorf("quality level %s missing from table", name))
		}
	}
	if c.Quality.Optimizer.Window < 1 {
		errs = append(errs, errors.New("quality.optimizer.window must be at least 1"))
	}
	if c.Monitor.SampleSize < 1 || c.Monitor.HistorySize < 1 {
		errs = append(errs, errors.New("monitor sample_size and history_size must be at least 1"))
	}
	if len(c.Render.LODTiers) == 0 {
		errs = append(errs, errors.New("render.lod_tiers must not be empty"))
	}
	for i := 1; i < len(c.Render.LODTiers); i++ {
		if c.Render.LODTiers[i].Distance <= c.Render.LODTiers[i-1].Distance {
			errs = append(errs, fmt.Errorf("render.lod_tiers[%d] distance %.1f not ascending", i, c.Render.LODTiers[i].Distance))
		}
	}
	if c.Device.MobileBreakpoint >= c.Device.TabletBreakpoint {
		errs = append(errs, fmt.Errorf("device breakpoints out of order: mobile %d >= tablet %d",
			c.Device.MobileBreakpoint, c.Device.TabletBreakpoint))
	}
	for _, name := range []string{"MOBILE", "TABLET", "DESKTOP"} {
		if _, ok := c.Device.Types[name]; !ok {
			errs = append(errs, fmt.Errorf("device type %s missing from table", name))
		}
	}
	if c.Theme.Default != "" {
		if _, ok := c.Theme.Themes[c.Theme.Default]; !ok {
			errs = append(errs, fmt.Errorf("default theme %q not defined", c.Theme.Default))
		}
	}

	return errors.Join(errs...)
}

// computeDerived calculates values derived from loaded config.
func (c *Config) computeDerived() {
	c.Derived.Aspect = float32(c.Screen.Width) / float32(c.Screen.Height)
	if c.Screen.TargetFPS > 0 {
		c.Derived.TargetFrameTime = time.Second / time.Duration(c.Screen.TargetFPS)
	}
	c.Derived.Cooldown = ms(c.Quality.Optimizer.CooldownMS)
	c.Derived.SampleInterval = ms(c.Quality.Optimizer.SampleMS)
	c.Derived.MemoryInterval = ms(c.Monitor.MemoryIntervalMS)
	c.Derived.OrientationSettle = ms(c.Device.OrientationSettleMS)
	c.Derived.LongPress = ms(c.Device.LongPressMS)
	c.Derived.FallbackTick = ms(c.Fallback.TickMS)
	c.Derived.ThemeTransition = ms(c.Theme.TransitionMS)
	c.Derived.BenchmarkDuration = ms(c.Benchmark.DurationMS)
	c.Derived.BreakerTimeout = time.Duration(c.Layers.BreakerTimeout * float64(time.Second))

	// Built-in layers when none are listed
	if len(c.Layers.Enabled) == 0 && len(c.Layers.Custom) == 0 {
		c.Layers.Enabled = []string{"background", "midground", "foreground", "deepspace"}
	}
	if c.Fallback.MaxOpacity == 0 {
		c.Fallback.MaxOpacity = 0.8
	}
}

func ms(v int) time.Duration {
	return time.Duration(v) * time.Millisecond
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
