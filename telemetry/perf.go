package telemetry

import (
	"log/slog"
	"time"
)

// Phase names for one backdrop frame.
const (
	PhaseDevice    = "device"
	PhaseMonitor   = "monitor"
	PhaseOptimizer = "optimizer"
	PhaseLOD       = "lod"
	PhaseUniforms  = "uniforms"
	PhaseTheme     = "theme"
	PhaseDraw      = "draw"
)

// Phases lists every frame phase in execution order.
var Phases = []string{PhaseDevice, PhaseMonitor, PhaseOptimizer, PhaseLOD, PhaseUniforms, PhaseTheme, PhaseDraw}

// PerfSample holds timing data for a single frame.
type PerfSample struct {
	FrameDuration time.Duration
	Phases        map[string]time.Duration
}

// PerfCollector breaks frame time down by phase over a rolling window.
type PerfCollector struct {
	windowSize    int
	samples       []PerfSample
	writeIndex    int
	sampleCount   int
	currentPhases map[string]time.Duration
	frameStart    time.Time
	phaseStart    time.Time
	lastPhase     string
	now           func() time.Time
}

// NewPerfCollector creates a collector averaging over windowSize frames.
func NewPerfCollector(windowSize int) *PerfCollector {
	if windowSize < 1 {
		windowSize = 60
	}
	return &PerfCollector{
		windowSize:    windowSize,
		samples:       make([]PerfSample, windowSize),
		currentPhases: make(map[string]time.Duration),
		now:           time.Now,
	}
}

// StartFrame begins timing a new frame.
func (p *PerfCollector) StartFrame() {
	p.frameStart = p.now()
	p.currentPhases = make(map[string]time.Duration, len(Phases))
	p.lastPhase = ""
}

// StartPhase closes the running phase, if any, and opens phase.
func (p *PerfCollector) StartPhase(phase string) {
	now := p.now()
	if p.lastPhase != "" {
		p.currentPhases[p.lastPhase] += now.Sub(p.phaseStart)
	}
	p.phaseStart = now
	p.lastPhase = phase
}

// EndFrame closes the frame and stores the sample.
func (p *PerfCollector) EndFrame() {
	now := p.now()
	if p.lastPhase != "" {
		p.currentPhases[p.lastPhase] += now.Sub(p.phaseStart)
		p.lastPhase = ""
	}

	p.samples[p.writeIndex] = PerfSample{
		FrameDuration: now.Sub(p.frameStart),
		Phases:        p.currentPhases,
	}
	p.writeIndex = (p.writeIndex + 1) % p.windowSize
	if p.sampleCount < p.windowSize {
		p.sampleCount++
	}
}

// PerfStats holds aggregated phase statistics.
type PerfStats struct {
	AvgFrame time.Duration
	MinFrame time.Duration
	MaxFrame time.Duration

	// Average duration and share of frame time per phase
	PhaseAvg map[string]time.Duration
	PhasePct map[string]float64
}

// Stats aggregates the current window.
func (p *PerfCollector) Stats() PerfStats {
	st := PerfStats{
		PhaseAvg: make(map[string]time.Duration),
		PhasePct: make(map[string]float64),
	}
	if p.sampleCount == 0 {
		return st
	}

	var total time.Duration
	phaseSum := make(map[string]time.Duration)
	for i := 0; i < p.sampleCount; i++ {
		s := p.samples[i]
		total += s.FrameDuration
		if i == 0 || s.FrameDuration < st.MinFrame {
			st.MinFrame = s.FrameDuration
		}
		if s.FrameDuration > st.MaxFrame {
			st.MaxFrame = s.FrameDuration
		}
		for phase, d := range s.Phases {
			phaseSum[phase] += d
		}
	}

	n := time.Duration(p.sampleCount)
	st.AvgFrame = total / n
	for phase, sum := range phaseSum {
		st.PhaseAvg[phase] = sum / n
		if st.AvgFrame > 0 {
			st.PhasePct[phase] = float64(st.PhaseAvg[phase]) / float64(st.AvgFrame) * 100
		}
	}
	return st
}

// LogValue implements slog.LogValuer.
func (s PerfStats) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.Int64("avg_frame_us", s.AvgFrame.Microseconds()),
		slog.Int64("min_frame_us", s.MinFrame.Microseconds()),
		slog.Int64("max_frame_us", s.MaxFrame.Microseconds()),
	}
	for _, phase := range Phases {
		if pct := s.PhasePct[phase]; pct > 0.1 {
			attrs = append(attrs, slog.Float64(phase+"_pct", float64(int(pct*10))/10))
		}
	}
	return slog.GroupValue(attrs...)
}

// PerfRecord is one perf.csv row: frame timing plus the monitor snapshot.
type PerfRecord struct {
	Frame        int64   `csv:"frame"`
	FPS          float64 `csv:"fps"`
	AverageFPS   float64 `csv:"avg_fps"`
	MinFPS       float64 `csv:"min_fps"`
	MaxFPS       float64 `csv:"max_fps"`
	MemoryMB     float64 `csv:"memory_mb"`
	Particles    int     `csv:"particles"`
	Quality      string  `csv:"quality"`
	CulledLayers int     `csv:"culled_layers"`
	AvgFrameUS   int64   `csv:"avg_frame_us"`
	MaxFrameUS   int64   `csv:"max_frame_us"`
	DevicePct    float64 `csv:"device_pct"`
	MonitorPct   float64 `csv:"monitor_pct"`
	OptimizerPct float64 `csv:"optimizer_pct"`
	LODPct       float64 `csv:"lod_pct"`
	UniformsPct  float64 `csv:"uniforms_pct"`
	ThemePct     float64 `csv:"theme_pct"`
	DrawPct      float64 `csv:"draw_pct"`
}

// NewPerfRecord flattens a monitor snapshot and phase stats into one row.
func NewPerfRecord(frame int64, m Metrics, s PerfStats) PerfRecord {
	return PerfRecord{
		Frame:        frame,
		FPS:          m.FPS,
		AverageFPS:   m.AverageFPS,
		MinFPS:       m.MinFPS,
		MaxFPS:       m.MaxFPS,
		MemoryMB:     m.MemoryMB,
		Particles:    m.ParticleCount,
		Quality:      m.QualityLevel,
		CulledLayers: m.CulledLayers,
		AvgFrameUS:   s.AvgFrame.Microseconds(),
		MaxFrameUS:   s.MaxFrame.Microseconds(),
		DevicePct:    s.PhasePct[PhaseDevice],
		MonitorPct:   s.PhasePct[PhaseMonitor],
		OptimizerPct: s.PhasePct[PhaseOptimizer],
		LODPct:       s.PhasePct[PhaseLOD],
		UniformsPct:  s.PhasePct[PhaseUniforms],
		ThemePct:     s.PhasePct[PhaseTheme],
		DrawPct:      s.PhasePct[PhaseDraw],
	}
}
