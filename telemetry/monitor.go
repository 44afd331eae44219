// Package telemetry provides frame performance monitoring, phase timing,
// bookmarking, CSV output, and Prometheus export.
package telemetry

import (
	"log/slog"
	"runtime"
	"sync"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/pthm-cable/starfield/config"
)

// Clock is the monitor's time source.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

// Now implements Clock.
func (SystemClock) Now() time.Time { return time.Now() }

// MemoryReader returns current memory usage in megabytes. ok is false when the
// host cannot introspect memory.
type MemoryReader func() (mb float64, ok bool)

// RuntimeMemory reads the Go heap.
func RuntimeMemory() (float64, bool) {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return float64(ms.HeapAlloc) / (1 << 20), true
}

// Metrics is a snapshot of frame performance.
type Metrics struct {
	FPS           float64 // Zero until the sample window first fills
	FrameTimeMS   float64
	MemoryMB      float64
	ParticleCount int
	DrawCalls     int
	AverageFPS    float64
	MinFPS        float64
	MaxFPS        float64
	QualityLevel  string
	CulledLayers  int
}

// LogValue implements slog.LogValuer.
func (m Metrics) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Float64("fps", m.FPS),
		slog.Float64("avg_fps", m.AverageFPS),
		slog.Float64("min_fps", m.MinFPS),
		slog.Float64("max_fps", m.MaxFPS),
		slog.Float64("frame_ms", m.FrameTimeMS),
		slog.Float64("memory_mb", m.MemoryMB),
		slog.Int("particles", m.ParticleCount),
		slog.Int("draw_calls", m.DrawCalls),
		slog.String("quality", m.QualityLevel),
		slog.Int("culled_layers", m.CulledLayers),
	)
}

// MonitorOptions configures a Monitor.
type MonitorOptions struct {
	SampleSize          int
	HistorySize         int
	FPSWarning          float64
	MemoryWarningMB     float64
	MemoryInterval      time.Duration
	MemoryBaseMB        float64
	MemoryPerParticleMB float64
}

// MonitorOptionsFromConfig converts the config section.
func MonitorOptionsFromConfig(c config.MonitorConfig, memoryInterval time.Duration) MonitorOptions {
	return MonitorOptions{
		SampleSize:          c.SampleSize,
		HistorySize:         c.HistorySize,
		FPSWarning:          c.FPSWarning,
		MemoryWarningMB:     c.MemoryWarningMB,
		MemoryInterval:      memoryInterval,
		MemoryBaseMB:        c.MemoryBaseMB,
		MemoryPerParticleMB: c.MemoryPerParticleMB,
	}
}

// ring is a fixed-capacity float buffer.
type ring struct {
	data  []float64
	next  int
	count int
}

func newRing(n int) ring { return ring{data: make([]float64, n)} }

func (r *ring) push(v float64) {
	r.data[r.next] = v
	r.next = (r.next + 1) % len(r.data)
	if r.count < len(r.data) {
		r.count++
	}
}

func (r *ring) full() bool { return r.count == len(r.data) }

// values returns the filled part. Order is irrelevant to the statistics taken.
func (r *ring) values() []float64 { return r.data[:r.count] }

func (r *ring) reset() {
	r.next, r.count = 0, 0
}

// Monitor derives smoothed FPS statistics from per-frame durations.
type Monitor struct {
	opts   MonitorOptions
	clock  Clock
	memory MemoryReader
	logger *slog.Logger

	frames  ring // Frame times in ms
	history ring // Computed FPS readings

	lastTick    time.Time
	sinceMemory time.Duration
	memSampled  bool
	metrics     Metrics

	mu        sync.Mutex
	listeners map[int]func(Metrics)
	nextID    int
}

// NewMonitor creates a monitor. A nil memory reader selects the particle-count estimate.
func NewMonitor(opts MonitorOptions, clock Clock, memory MemoryReader, logger *slog.Logger) *Monitor {
	if opts.SampleSize < 1 {
		opts.SampleSize = 60
	}
	if opts.HistorySize < 1 {
		opts.HistorySize = 300
	}
	if opts.MemoryInterval <= 0 {
		opts.MemoryInterval = time.Second
	}
	if clock == nil {
		clock = SystemClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{
		opts:      opts,
		clock:     clock,
		memory:    memory,
		logger:    logger.With("component", "monitor"),
		frames:    newRing(opts.SampleSize),
		history:   newRing(opts.HistorySize),
		listeners: make(map[int]func(Metrics)),
	}
}

// Tick records the time elapsed since the previous Tick as one frame.
// The first call only establishes the baseline.
func (m *Monitor) Tick() {
	now := m.clock.Now()
	if m.lastTick.IsZero() {
		m.lastTick = now
		return
	}
	d := now.Sub(m.lastTick)
	m.lastTick = now
	m.RecordFrame(d)
}

// RecordFrame records one frame of duration d.
func (m *Monitor) RecordFrame(d time.Duration) {
	ms := float64(d) / float64(time.Millisecond)
	m.metrics.FrameTimeMS = ms
	m.frames.push(ms)

	if m.frames.full() {
		if mean := stat.Mean(m.frames.values(), nil); mean > 0 {
			m.metrics.FPS = 1000 / mean
			m.history.push(m.metrics.FPS)
			h := m.history.values()
			m.metrics.AverageFPS = stat.Mean(h, nil)
			m.metrics.MinFPS = floats.Min(h)
			m.metrics.MaxFPS = floats.Max(h)
		}
	}

	m.sinceMemory += d
	if !m.memSampled || m.sinceMemory >= m.opts.MemoryInterval {
		m.sampleMemory()
		m.sinceMemory = 0
		m.memSampled = true
	}

	m.checkWarnings()
}

func (m *Monitor) sampleMemory() {
	if m.memory != nil {
		if mb, ok := m.memory(); ok {
			m.metrics.MemoryMB = mb
			return
		}
	}
	m.metrics.MemoryMB = m.opts.MemoryBaseMB + float64(m.metrics.ParticleCount)*m.opts.MemoryPerParticleMB
}

func (m *Monitor) checkWarnings() {
	lowFPS := m.frames.full() && m.opts.FPSWarning > 0 && m.metrics.FPS < m.opts.FPSWarning
	highMem := m.opts.MemoryWarningMB > 0 && m.metrics.MemoryMB > m.opts.MemoryWarningMB
	if !lowFPS && !highMem {
		return
	}

	m.mu.Lock()
	fns := make([]func(Metrics), 0, len(m.listeners))
	for _, fn := range m.listeners {
		fns = append(fns, fn)
	}
	m.mu.Unlock()

	snap := m.metrics
	for _, fn := range fns {
		m.dispatch(fn, snap)
	}
}

func (m *Monitor) dispatch(fn func(Metrics), snap Metrics) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("warning callback panicked", "panic", r)
		}
	}()
	fn(snap)
}

// OnWarning registers a callback fired inline on every frame that breaches a
// threshold. The returned func unregisters it.
func (m *Monitor) OnWarning(fn func(Metrics)) (unsubscribe func()) {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.listeners[id] = fn
	m.mu.Unlock()
	return func() {
		m.mu.Lock()
		delete(m.listeners, id)
		m.mu.Unlock()
	}
}

// Metrics returns the current snapshot.
func (m *Monitor) Metrics() Metrics { return m.metrics }

// Ready reports whether the sample window has filled.
func (m *Monitor) Ready() bool { return m.frames.full() }

// RecentFPS returns up to n of the most recent FPS readings, oldest first.
func (m *Monitor) RecentFPS(n int) []float64 {
	if n > m.history.count {
		n = m.history.count
	}
	out := make([]float64, n)
	size := len(m.history.data)
	for i := 0; i < n; i++ {
		idx := (m.history.next - n + i + size) % size
		out[i] = m.history.data[idx]
	}
	return out
}

// SetParticleCount updates the particle count used by the memory estimate.
func (m *Monitor) SetParticleCount(n int) { m.metrics.ParticleCount = n }

// SetDrawCalls records the host's draw call count.
func (m *Monitor) SetDrawCalls(n int) { m.metrics.DrawCalls = n }

// SetQualityLevel records the active quality level for export.
func (m *Monitor) SetQualityLevel(level string) { m.metrics.QualityLevel = level }

// SetCulledLayers records how many layers were culled this frame.
func (m *Monitor) SetCulledLayers(n int) { m.metrics.CulledLayers = n }

// SetThresholds replaces the warning thresholds, as after a config reload.
func (m *Monitor) SetThresholds(fpsWarning, memoryWarningMB float64) {
	m.opts.FPSWarning = fpsWarning
	m.opts.MemoryWarningMB = memoryWarningMB
}

// Reset clears every window and rolling statistic. Counts set by the host survive.
func (m *Monitor) Reset() {
	m.frames.reset()
	m.history.reset()
	m.lastTick = time.Time{}
	m.sinceMemory = 0
	m.memSampled = false
	m.metrics = Metrics{
		ParticleCount: m.metrics.ParticleCount,
		DrawCalls:     m.metrics.DrawCalls,
		QualityLevel:  m.metrics.QualityLevel,
	}
}

// Dispose drops every registered callback.
func (m *Monitor) Dispose() {
	m.mu.Lock()
	m.listeners = make(map[int]func(Metrics))
	m.mu.Unlock()
}
