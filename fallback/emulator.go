// Package fallback emulates the particle backdrop with plain host elements
// when the GPU path is unusable.
//
// Each particle is an ECS entity carrying its position, velocity, lifetime,
// appearance and host element. Expired particles are respawned in place, never
// destroyed. Once started, the emulator drives itself from its own ticker.
package fallback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/starfield/colors"
	"github.com/pthm-cable/starfield/config"
	"github.com/pthm-cable/starfield/particles"
)

// ErrNoContainer is returned when the emulator has nowhere to put elements.
var ErrNoContainer = errors.New("fallback: no container")

// Element is one host-side particle.
type Element interface {
	Move(x, y float64)
	SetOpacity(a float64)
	SetColor(c colorful.Color)
	SetSize(px float64)
	Remove()
}

// Style is an injected global style sheet.
type Style interface {
	Remove()
}

// Container hosts the emulator's elements.
type Container interface {
	Bounds() (width, height float64)
	CreateElement() (Element, error)
	InjectStyle(css string) (Style, error)
}

// Flusher is implemented by containers that batch element updates.
type Flusher interface {
	Flush()
}

// ParticleCSS is the global style every element shares.
const ParticleCSS = `.starfield-fallback-particle{position:absolute;left:0;top:0;border-radius:50%;pointer-events:none;will-change:transform,opacity}`

// Options configures the emulator.
type Options struct {
	Count      int
	Colors     []colorful.Color
	SizeRange  particles.Range
	SpeedRange particles.Range
	LifeRange  particles.Range // Seconds
	MaxOpacity float64
	Tick       time.Duration
}

// OptionsFromConfig converts the config section.
func OptionsFromConfig(c config.FallbackConfig, tick time.Duration) (Options, error) {
	cols, err := colors.ParseHex(c.Colors)
	if err != nil {
		return Options{}, fmt.Errorf("fallback colours: %w", err)
	}
	return Options{
		Count:      c.Count,
		Colors:     cols,
		SizeRange:  particles.Range{Min: c.SizeRange[0], Max: c.SizeRange[1]},
		SpeedRange: particles.Range{Min: c.SpeedRange[0], Max: c.SpeedRange[1]},
		LifeRange:  particles.Range{Min: c.LifeRange[0], Max: c.LifeRange[1]},
		MaxOpacity: c.MaxOpacity,
		Tick:       tick,
	}, nil
}

// Emulator animates host elements as particles.
type Emulator struct {
	mu        sync.Mutex
	container Container
	opts      Options
	rng       *rand.Rand
	logger    *slog.Logger

	world   *ecs.World
	mapper  *ecs.Map5[Position, Velocity, Lifetime, Appearance, Handle]
	filter  *ecs.Filter5[Position, Velocity, Lifetime, Appearance, Handle]
	handles *ecs.Map[Handle]
	order   []ecs.Entity // Creation order, for suffix removal
	style   Style

	cancel  context.CancelFunc
	done    chan struct{}
	stopped bool
}

// New creates Count elements in the container and injects the shared style.
func New(c Container, opts Options, rng *rand.Rand, logger *slog.Logger) (*Emulator, error) {
	if c == nil {
		return nil, ErrNoContainer
	}
	if logger == nil {
		logger = slog.Default()
	}
	if len(opts.Colors) == 0 {
		opts.Colors = []colorful.Color{{R: 1, G: 1, B: 1}}
	}
	if opts.MaxOpacity <= 0 {
		opts.MaxOpacity = 0.8
	}
	if opts.Tick <= 0 {
		opts.Tick = 16 * time.Millisecond
	}
	if opts.LifeRange.Max <= 0 {
		opts.LifeRange = particles.Range{Min: 2, Max: 6}
	}

	world := ecs.NewWorld()
	e := &Emulator{
		container: c,
		opts:      opts,
		rng:       rng,
		logger:    logger.With("component", "fallback"),
		world:     world,
		mapper:    ecs.NewMap5[Position, Velocity, Lifetime, Appearance, Handle](world),
		filter:    ecs.NewFilter5[Position, Velocity, Lifetime, Appearance, Handle](world),
		handles:   ecs.NewMap[Handle](world),
	}

	style, err := c.InjectStyle(ParticleCSS)
	if err != nil {
		return nil, fmt.Errorf("injecting fallback style: %w", err)
	}
	e.style = style

	if err := e.grow(opts.Count); err != nil {
		e.teardown()
		return nil, err
	}
	e.logger.Info("fallback emulator created", "particles", len(e.order))
	return e, nil
}

// Start runs the animation loop until ctx is cancelled or Stop is called.
func (e *Emulator) Start(ctx context.Context) {
	e.mu.Lock()
	if e.cancel != nil || e.stopped {
		e.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.done = make(chan struct{})
	e.mu.Unlock()

	go func() {
		defer close(e.done)
		ticker := time.NewTicker(e.opts.Tick)
		defer ticker.Stop()
		last := time.Now()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				// Clamp so a suspended host does not teleport every particle
				dt := math.Min(now.Sub(last).Seconds(), 0.1)
				last = now
				e.advance(dt)
			}
		}
	}()
}

// Stop halts the loop and removes every element and the injected style.
// Safe to call repeatedly.
func (e *Emulator) Stop() {
	e.mu.Lock()
	cancel, done := e.cancel, e.done
	e.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.teardown()
}

// Count returns the number of live particles.
func (e *Emulator) Count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.order)
}

// SetColors re-tints the existing elements. No element is recreated.
func (e *Emulator) SetColors(cols []colorful.Color) {
	if len(cols) == 0 {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.opts.Colors = cols

	i := 0
	query := e.filter.Query()
	for query.Next() {
		_, _, _, app, h := query.Get()
		app.Color = cols[i%len(cols)]
		h.Element.SetColor(app.Color)
		i++
	}
	e.flush()
}

// Resize grows by creating elements or shrinks by removing the newest ones.
func (e *Emulator) Resize(count int) error {
	if count < 0 {
		count = 0
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stopped {
		return errors.New("fallback: emulator stopped")
	}

	if count > len(e.order) {
		if err := e.grow(count - len(e.order)); err != nil {
			return err
		}
	} else {
		for _, ent := range e.order[count:] {
			e.handles.Get(ent).Element.Remove()
			e.world.RemoveEntity(ent)
		}
		e.order = e.order[:count]
	}
	e.opts.Count = count
	e.flush()
	return nil
}

// grow creates n particles. Caller holds the lock or owns the emulator.
func (e *Emulator) grow(n int) error {
	for i := 0; i < n; i++ {
		el, err := e.container.CreateElement()
		if err != nil {
			return fmt.Errorf("creating fallback element: %w", err)
		}
		var (
			pos  Position
			vel  Velocity
			life Lifetime
			app  Appearance
		)
		e.spawn(&pos, &vel, &life, &app)
		// Stagger initial ages so the field does not pulse in unison
		life.Age = e.rng.Float64() * life.Max
		app.Opacity = e.opacity(life)

		h := Handle{Element: el}
		ent := e.mapper.NewEntity(&pos, &vel, &life, &app, &h)
		e.order = append(e.order, ent)
		e.render(&pos, &app, el)
	}
	return nil
}

// spawn assigns a fresh random state.
func (e *Emulator) spawn(pos *Position, vel *Velocity, life *Lifetime, app *Appearance) {
	w, h := e.container.Bounds()
	pos.X = e.rng.Float64() * w
	pos.Y = e.rng.Float64() * h

	angle := e.rng.Float64() * 2 * math.Pi
	speed := e.opts.SpeedRange.Lerp(e.rng.Float64())
	vel.X = math.Cos(angle) * speed
	vel.Y = math.Sin(angle) * speed

	life.Age = 0
	life.Max = math.Max(e.opts.LifeRange.Lerp(e.rng.Float64()), 0.01)

	app.Color = e.opts.Colors[e.rng.Intn(len(e.opts.Colors))]
	app.Size = e.opts.SizeRange.Lerp(e.rng.Float64())
	app.Opacity = 0
}

func (e *Emulator) opacity(life Lifetime) float64 {
	return math.Sin(math.Pi*life.Age/life.Max) * e.opts.MaxOpacity
}

// advance moves every particle by dt seconds.
func (e *Emulator) advance(dt float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stopped {
		return
	}

	w, h := e.container.Bounds()
	query := e.filter.Query()
	for query.Next() {
		pos, vel, life, app, hd := query.Get()

		life.Age += dt
		if life.Age >= life.Max {
			e.spawn(pos, vel, life, app)
			hd.Element.SetColor(app.Color)
			hd.Element.SetSize(app.Size)
		} else {
			pos.X = wrap(pos.X+vel.X*dt, w)
			pos.Y = wrap(pos.Y+vel.Y*dt, h)
		}
		app.Opacity = e.opacity(*life)
		hd.Element.Move(pos.X, pos.Y)
		hd.Element.SetOpacity(app.Opacity)
	}
	e.flush()
}

func (e *Emulator) render(pos *Position, app *Appearance, el Element) {
	el.SetColor(app.Color)
	el.SetSize(app.Size)
	el.Move(pos.X, pos.Y)
	el.SetOpacity(app.Opacity)
}

func (e *Emulator) flush() {
	if f, ok := e.container.(Flusher); ok {
		f.Flush()
	}
}

// teardown removes all elements and the style. Caller holds the lock.
func (e *Emulator) teardown() {
	if e.stopped {
		return
	}
	e.stopped = true
	for _, ent := range e.order {
		e.handles.Get(ent).Element.Remove()
		e.world.RemoveEntity(ent)
	}
	e.order = nil
	if e.style != nil {
		e.style.Remove()
		e.style = nil
	}
	e.flush()
	e.logger.Info("fallback emulator stopped")
}

func wrap(v, limit float64) float64 {
	if limit <= 0 {
		return 0
	}
	v = math.Mod(v, limit)
	if v < 0 {
		v += limit
	}
	return v
}
