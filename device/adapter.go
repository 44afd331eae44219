package device

import (
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/pthm-cable/starfield/config"
)

// Viewport is the host's drawable size in pixels.
type Viewport struct {
	Width, Height int
}

// Landscape reports whether the viewport is wider than tall.
func (v Viewport) Landscape() bool { return v.Width > v.Height }

// Change describes a device reclassification.
type Change struct {
	From, To Type
	Config   Config
	Viewport Viewport
}

// Adapter tracks the device class as the viewport changes.
type Adapter struct {
	table   Table
	bp      Breakpoints
	env     Environment
	settle  time.Duration
	measure func() Viewport
	logger  *slog.Logger

	viewport Viewport
	current  Type
	pending  bool
	dueAt    time.Time

	mu        sync.Mutex
	listeners map[int]func(Change)
	nextID    int
}

// NewAdapter classifies the initial viewport. measure reads the host's current
// viewport when a scheduled orientation re-measure comes due.
func NewAdapter(c config.DeviceConfig, settle time.Duration, env Environment, measure func() Viewport, logger *slog.Logger) (*Adapter, error) {
	table, err := TableFromConfig(c)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	a := &Adapter{
		table:     table,
		bp:        Breakpoints{Mobile: c.MobileBreakpoint, Tablet: c.TabletBreakpoint},
		env:       env,
		settle:    settle,
		measure:   measure,
		logger:    logger.With("component", "device"),
		listeners: make(map[int]func(Change)),
	}
	a.viewport = measure()
	a.current = Classify(a.viewport.Width, env, a.bp)
	a.logger.Info("device classified", "type", a.current.String(), "width", a.viewport.Width, "config", a.Config())
	return a, nil
}

// Type returns the current device class.
func (a *Adapter) Type() Type { return a.current }

// Config returns the current device budget.
func (a *Adapter) Config() Config { return a.table[a.current] }

// Viewport returns the last measured viewport.
func (a *Adapter) Viewport() Viewport { return a.viewport }

// Environment returns the host environment.
func (a *Adapter) Environment() Environment { return a.env }

// AdaptParticleCount scales a particle count by the device multiplier.
func (a *Adapter) AdaptParticleCount(base int) int {
	return int(math.Floor(float64(base) * a.Config().ParticleMultiplier))
}

// Resize records a new viewport and reclassifies immediately. It reports
// whether the device class changed.
func (a *Adapter) Resize(v Viewport) bool {
	a.viewport = v
	next := Classify(v.Width, a.env, a.bp)
	if next == a.current {
		return false
	}
	ch := Change{From: a.current, To: next, Config: a.table[next], Viewport: v}
	a.current = next
	a.logger.Info("device reclassified", "from", ch.From.String(), "to", ch.To.String(), "width", v.Width)
	a.notify(ch)
	return true
}

// OrientationChanged schedules a re-measure once the viewport has settled.
// A second change before then pushes the deadline back.
func (a *Adapter) OrientationChanged(now time.Time) {
	a.pending = true
	a.dueAt = now.Add(a.settle)
}

// Pending reports whether a re-measure is scheduled.
func (a *Adapter) Pending() bool { return a.pending }

// Update runs a scheduled re-measure when it is due. It reports whether the
// viewport was re-measured.
func (a *Adapter) Update(now time.Time) bool {
	if !a.pending || now.Before(a.dueAt) {
		return false
	}
	a.pending = false
	a.Resize(a.measure())
	return true
}

// OnChange registers a callback for reclassifications. The returned func
// unregisters it.
func (a *Adapter) OnChange(fn func(Change)) (unsubscribe func()) {
	a.mu.Lock()
	id := a.nextID
	a.nextID++
	a.listeners[id] = fn
	a.mu.Unlock()
	return func() {
		a.mu.Lock()
		delete(a.listeners, id)
		a.mu.Unlock()
	}
}

func (a *Adapter) notify(ch Change) {
	a.mu.Lock()
	fns := make([]func(Change), 0, len(a.listeners))
	for _, fn := range a.listeners {
		fns = append(fns, fn)
	}
	a.mu.Unlock()
	for _, fn := range fns {
		a.dispatch(fn, ch)
	}
}

func (a *Adapter) dispatch(fn func(Change), ch Change) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("device callback panicked", "panic", r)
		}
	}()
	fn(ch)
}

// Dispose drops every registered callback and any pending re-measure.
func (a *Adapter) Dispose() {
	a.mu.Lock()
	a.listeners = make(map[int]func(Change))
	a.mu.Unlock()
	a.pending = false
}
