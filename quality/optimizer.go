package quality

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/pthm-cable/starfield/config"
	"github.com/pthm-cable/starfield/ux"
)

// Options configures the control loop.
type Options struct {
	TargetFPS     float64
	MinFPS        float64
	UpgradeFactor float64
	Window        int
	Cooldown      time.Duration
}

// OptionsFromConfig converts the config section.
func OptionsFromConfig(c config.OptimizerConfig, cooldown time.Duration) Options {
	return Options{
		TargetFPS:     c.TargetFPS,
		MinFPS:        c.MinFPS,
		UpgradeFactor: c.UpgradeFactor,
		Window:        c.Window,
		Cooldown:      cooldown,
	}
}

// Decision is the result of one analysis.
type Decision struct {
	ShouldOptimize bool
	From           Level
	To             Level
	Config         Config // Config for To, with preference adjustments applied
	AverageFPS     float64
	Reason         string
}

// LogValue implements slog.LogValuer.
func (d Decision) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Bool("optimize", d.ShouldOptimize),
		slog.String("from", d.From.String()),
		slog.String("to", d.To.String()),
		slog.Float64("avg_fps", d.AverageFPS),
		slog.String("reason", d.Reason),
	)
}

// Cap returns the highest level the preferences allow.
func Cap(p ux.Preferences) Level {
	switch {
	case p.BatteryOptimization:
		return Medium
	case p.MotionReduction:
		return High
	default:
		return Ultra
	}
}

// Optimizer is the closed-loop quality state machine. Transitions move one
// level at a time and never happen within the cooldown of the previous one.
type Optimizer struct {
	opts   Options
	table  Table
	logger *slog.Logger

	level            Level
	pinned           bool
	prefs            ux.Preferences
	lastOptimization time.Time

	samples []float64 // Trailing FPS window, oldest first

	mu        sync.Mutex
	listeners map[int]func(Decision)
	nextID    int
}

// NewOptimizer creates an optimizer starting at initial.
func NewOptimizer(table Table, initial Level, opts Options, logger *slog.Logger) (*Optimizer, error) {
	if _, err := table.Lookup(initial); err != nil {
		return nil, err
	}
	if opts.Window < 1 {
		opts.Window = 10
	}
	if opts.UpgradeFactor <= 0 {
		opts.UpgradeFactor = 1.2
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Optimizer{
		opts:      opts,
		table:     table,
		logger:    logger.With("component", "optimizer"),
		level:     initial,
		samples:   make([]float64, 0, opts.Window),
		listeners: make(map[int]func(Decision)),
	}, nil
}

// AddSample appends one FPS reading to the trailing window.
func (o *Optimizer) AddSample(fps float64) {
	if len(o.samples) == o.opts.Window {
		copy(o.samples, o.samples[1:])
		o.samples = o.samples[:len(o.samples)-1]
	}
	o.samples = append(o.samples, fps)
}

// Samples returns the trailing window.
func (o *Optimizer) Samples() []float64 {
	return append([]float64(nil), o.samples...)
}

// Level returns the current level.
func (o *Optimizer) Level() Level { return o.level }

// Config returns the current level's config with preference adjustments.
func (o *Optimizer) Config() (Config, error) {
	c, err := o.table.Lookup(o.level)
	if err != nil {
		return Config{}, err
	}
	return o.adjust(c), nil
}

// adjust applies preference overrides to a table config.
func (o *Optimizer) adjust(c Config) Config {
	if o.prefs.MotionReduction && c.AnimationSpeed > 0.5 {
		c.AnimationSpeed = 0.5
	}
	return c
}

// Analyze evaluates the trailing window at now and applies at most one
// transition. A transition whose target is missing from the table returns
// ErrUnknownLevel and leaves the level unchanged.
func (o *Optimizer) Analyze(now time.Time) (Decision, error) {
	d := Decision{From: o.level, To: o.level}
	if len(o.samples) > 0 {
		d.AverageFPS = stat.Mean(o.samples, nil)
	}

	limit := Cap(o.prefs)
	switch {
	case o.pinned:
		d.Reason = "pinned"
	case !o.lastOptimization.IsZero() && now.Sub(o.lastOptimization) < o.opts.Cooldown:
		d.Reason = "cooldown"
	case o.level > limit:
		d.To = o.level - 1
		d.Reason = fmt.Sprintf("preferences cap quality at %s", limit)
	case len(o.samples) < o.opts.Window:
		d.Reason = "collecting samples"
	case d.AverageFPS < o.opts.MinFPS && o.level > Low:
		d.To = o.level - 1
		d.Reason = fmt.Sprintf("average %.1f fps below minimum %.0f", d.AverageFPS, o.opts.MinFPS)
	case d.AverageFPS > o.opts.TargetFPS*o.opts.UpgradeFactor && o.level < limit:
		d.To = o.level + 1
		d.Reason = fmt.Sprintf("average %.1f fps above %.0f", d.AverageFPS, o.opts.TargetFPS*o.opts.UpgradeFactor)
	default:
		d.Reason = "hold"
	}

	if d.To == d.From {
		return d, nil
	}

	c, err := o.table.Lookup(d.To)
	if err != nil {
		return Decision{From: o.level, To: o.level, AverageFPS: d.AverageFPS, Reason: "lookup failed"}, err
	}
	d.ShouldOptimize = true
	d.Config = o.adjust(c)
	o.apply(d, now)
	return d, nil
}

func (o *Optimizer) apply(d Decision, now time.Time) {
	o.level = d.To
	o.lastOptimization = now
	o.logger.Info("quality changed", "decision", d)
	o.notify(d)
}

// SetLevel forces level, bypassing the cooldown, as after device
// reclassification. Change callbacks fire when the level differs.
func (o *Optimizer) SetLevel(level Level, now time.Time, reason string) (Decision, error) {
	c, err := o.table.Lookup(level)
	if err != nil {
		return Decision{From: o.level, To: o.level}, err
	}
	d := Decision{From: o.level, To: level, Config: o.adjust(c), Reason: reason}
	if level == o.level {
		return d, nil
	}
	d.ShouldOptimize = true
	o.apply(d, now)
	return d, nil
}

// Pin freezes the optimizer at level until Unpin.
func (o *Optimizer) Pin(level Level, now time.Time) (Decision, error) {
	d, err := o.SetLevel(level, now, "pinned")
	if err != nil {
		return d, err
	}
	o.pinned = true
	return d, nil
}

// Unpin resumes automatic control.
func (o *Optimizer) Unpin() { o.pinned = false }

// Pinned reports whether the level is frozen.
func (o *Optimizer) Pinned() bool { return o.pinned }

// SetPreferences updates the UX preferences. A lowered cap takes effect on the
// next analysis outside the cooldown.
func (o *Optimizer) SetPreferences(p ux.Preferences) { o.prefs = p }

// SetTable replaces the level table, as after a config reload.
func (o *Optimizer) SetTable(t Table) error {
	if _, err := t.Lookup(o.level); err != nil {
		return err
	}
	o.table = t
	return nil
}

// SetOptions replaces the loop parameters, keeping the newest samples.
func (o *Optimizer) SetOptions(opts Options) {
	if opts.Window < 1 {
		opts.Window = o.opts.Window
	}
	if opts.UpgradeFactor <= 0 {
		opts.UpgradeFactor = o.opts.UpgradeFactor
	}
	o.opts = opts
	if len(o.samples) > opts.Window {
		o.samples = append(o.samples[:0], o.samples[len(o.samples)-opts.Window:]...)
	}
}

// OnChange registers a callback fired inline after every applied transition.
// The returned func unregisters it.
func (o *Optimizer) OnChange(fn func(Decision)) (unsubscribe func()) {
	o.mu.Lock()
	id := o.nextID
	o.nextID++
	o.listeners[id] = fn
	o.mu.Unlock()
	return func() {
		o.mu.Lock()
		delete(o.listeners, id)
		o.mu.Unlock()
	}
}

func (o *Optimizer) notify(d Decision) {
	o.mu.Lock()
	fns := make([]func(Decision), 0, len(o.listeners))
	for _, fn := range o.listeners {
		fns = append(fns, fn)
	}
	o.mu.Unlock()

	for _, fn := range fns {
		o.dispatch(fn, d)
	}
}

func (o *Optimizer) dispatch(fn func(Decision), d Decision) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("change callback panicked", "panic", r)
		}
	}()
	fn(d)
}

// Dispose drops every registered callback.
func (o *Optimizer) Dispose() {
	o.mu.Lock()
	o.listeners = make(map[int]func(Decision))
	o.mu.Unlock()
}
