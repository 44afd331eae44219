package device

import (
	"log/slog"
	"math"
	"sync"
	"time"
)

// GestureKind identifies a recognised gesture.
type GestureKind int

const (
	Tap GestureKind = iota
	LongPress
	Pan
	Pinch
)

func (k GestureKind) String() string {
	switch k {
	case Tap:
		return "tap"
	case LongPress:
		return "longpress"
	case Pan:
		return "pan"
	case Pinch:
		return "pinch"
	}
	return "unknown"
}

// Gesture is one recognised gesture.
type Gesture struct {
	Kind     GestureKind
	X, Y     float32 // Current position; midpoint for pinch
	DX, DY   float32 // Offset from the touch-start position (pan)
	Scale    float32 // Current over starting distance (pinch)
	Duration time.Duration
}

type touchStart struct {
	x, y  float32
	at    time.Time
	moved bool // Passed the pan threshold
	multi bool // Took part in a two-finger gesture
}

type point struct{ x, y float32 }

// Recognizer turns touch start/move/end events into gestures.
// It tracks at most two touches; further touches are ignored.
type Recognizer struct {
	panThreshold float32
	longPress    time.Duration
	logger       *slog.Logger

	starts  map[int]*touchStart
	current map[int]point
	order   []int // Active touch ids in start order

	mu        sync.Mutex
	listeners map[int]func(Gesture)
	nextID    int
}

// NewRecognizer creates a recognizer with the given pan threshold in pixels
// and long-press duration.
func NewRecognizer(panThreshold float32, longPress time.Duration, logger *slog.Logger) *Recognizer {
	if panThreshold <= 0 {
		panThreshold = 10
	}
	if longPress <= 0 {
		longPress = 500 * time.Millisecond
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Recognizer{
		panThreshold: panThreshold,
		longPress:    longPress,
		logger:       logger.With("component", "gesture"),
		starts:       make(map[int]*touchStart),
		current:      make(map[int]point),
		listeners:    make(map[int]func(Gesture)),
	}
}

// Active returns the number of tracked touches.
func (r *Recognizer) Active() int { return len(r.order) }

// Start begins tracking touch id.
func (r *Recognizer) Start(id int, x, y float32, now time.Time) {
	if _, ok := r.starts[id]; ok || len(r.order) >= 2 {
		return
	}
	r.starts[id] = &touchStart{x: x, y: y, at: now}
	r.current[id] = point{x, y}
	r.order = append(r.order, id)
	if len(r.order) == 2 {
		for _, tid := range r.order {
			r.starts[tid].multi = true
		}
	}
}

// Move updates touch id and emits pan or pinch gestures.
func (r *Recognizer) Move(id int, x, y float32, now time.Time) {
	s, ok := r.starts[id]
	if !ok {
		return
	}
	r.current[id] = point{x, y}

	if len(r.order) == 2 {
		a, b := r.order[0], r.order[1]
		sa, sb := r.starts[a], r.starts[b]
		if sa == nil || sb == nil {
			return
		}
		startDist := dist(sa.x, sa.y, sb.x, sb.y)
		if startDist == 0 {
			return
		}
		ca, cb := r.current[a], r.current[b]
		r.emit(Gesture{
			Kind:     Pinch,
			X:        (ca.x + cb.x) / 2,
			Y:        (ca.y + cb.y) / 2,
			Scale:    dist(ca.x, ca.y, cb.x, cb.y) / startDist,
			Duration: now.Sub(s.at),
		})
		return
	}

	if s.multi {
		return
	}
	dx, dy := x-s.x, y-s.y
	if s.moved || dist(0, 0, dx, dy) > r.panThreshold {
		s.moved = true
		r.emit(Gesture{Kind: Pan, X: x, Y: y, DX: dx, DY: dy, Duration: now.Sub(s.at)})
	}
}

// End stops tracking touch id, emitting tap or long-press for a single touch
// that never moved past the pan threshold.
func (r *Recognizer) End(id int, now time.Time) {
	s, ok := r.starts[id]
	if !ok {
		return
	}
	r.forget(id)
	if s.moved || s.multi {
		return
	}
	held := now.Sub(s.at)
	kind := Tap
	if held >= r.longPress {
		kind = LongPress
	}
	r.emit(Gesture{Kind: kind, X: s.x, Y: s.y, Duration: held})
}

// Cancel stops tracking touch id without emitting anything.
func (r *Recognizer) Cancel(id int) {
	r.forget(id)
}

func (r *Recognizer) forget(id int) {
	delete(r.starts, id)
	delete(r.current, id)
	for i, tid := range r.order {
		if tid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// OnGesture registers a callback for recognised gestures. The returned func
// unregisters it.
func (r *Recognizer) OnGesture(fn func(Gesture)) (unsubscribe func()) {
	r.mu.Lock()
	id := r.nextID
	r.nextID++
	r.listeners[id] = fn
	r.mu.Unlock()
	return func() {
		r.mu.Lock()
		delete(r.listeners, id)
		r.mu.Unlock()
	}
}

func (r *Recognizer) emit(g Gesture) {
	r.mu.Lock()
	fns := make([]func(Gesture), 0, len(r.listeners))
	for _, fn := range r.listeners {
		fns = append(fns, fn)
	}
	r.mu.Unlock()
	for _, fn := range fns {
		r.dispatch(fn, g)
	}
}

func (r *Recognizer) dispatch(fn func(Gesture), g Gesture) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("gesture callback panicked", "panic", rec, "gesture", g.Kind.String())
		}
	}()
	fn(g)
}

// Dispose drops every callback and tracked touch.
func (r *Recognizer) Dispose() {
	r.mu.Lock()
	r.listeners = make(map[int]func(Gesture))
	r.mu.Unlock()
	clear(r.starts)
	clear(r.current)
	r.order = r.order[:0]
}

func dist(x1, y1, x2, y2 float32) float32 {
	return float32(math.Hypot(float64(x2-x1), float64(y2-y1)))
}
