package telemetry

import (
	"math"
	"testing"
	"time"
)

// steppedClock advances by a fixed step on every read.
func steppedClock(step time.Duration) func() time.Time {
	t := time.Unix(0, 0)
	return func() time.Time {
		now := t
		t = t.Add(step)
		return now
	}
}

func TestPerfCollectorPhases(t *testing.T) {
	p := NewPerfCollector(10)
	p.now = steppedClock(time.Millisecond)

	// Reads: frame start, two phase starts, end. Each read is 1ms apart.
	for i := 0; i < 4; i++ {
		p.StartFrame()
		p.StartPhase(PhaseLOD)
		p.StartPhase(PhaseDraw)
		p.EndFrame()
	}

	st := p.Stats()
	if st.AvgFrame != 3*time.Millisecond {
		t.Errorf("AvgFrame = %v, want 3ms", st.AvgFrame)
	}
	if st.PhaseAvg[PhaseLOD] != time.Millisecond || st.PhaseAvg[PhaseDraw] != time.Millisecond {
		t.Errorf("PhaseAvg = %v, want 1ms for lod and draw", st.PhaseAvg)
	}
	if pct := st.PhasePct[PhaseDraw]; math.Abs(pct-100.0/3) > 1e-9 {
		t.Errorf("draw pct = %v, want 33.3", pct)
	}
	if _, ok := st.PhaseAvg[PhaseTheme]; ok {
		t.Error("unvisited phase should not appear")
	}
}

func TestPerfCollectorWindow(t *testing.T) {
	p := NewPerfCollector(2)
	clock := time.Unix(0, 0)
	p.now = func() time.Time { return clock }

	for _, d := range []time.Duration{10, 2, 4} {
		p.StartFrame()
		clock = clock.Add(d * time.Millisecond)
		p.EndFrame()
	}

	st := p.Stats()
	if st.MinFrame != 2*time.Millisecond || st.MaxFrame != 4*time.Millisecond {
		t.Errorf("min/max = %v/%v, want 2ms/4ms", st.MinFrame, st.MaxFrame)
	}
	if st.AvgFrame != 3*time.Millisecond {
		t.Errorf("AvgFrame = %v, want 3ms", st.AvgFrame)
	}
}

func TestPerfCollectorEmpty(t *testing.T) {
	st := NewPerfCollector(0).Stats()
	if st.AvgFrame != 0 || len(st.PhaseAvg) != 0 {
		t.Errorf("empty collector stats = %+v", st)
	}
}

func TestNewPerfRecord(t *testing.T) {
	m := Metrics{FPS: 58, AverageFPS: 57, ParticleCount: 1200, QualityLevel: "MEDIUM"}
	s := PerfStats{
		AvgFrame: 17 * time.Millisecond,
		PhasePct: map[string]float64{PhaseDraw: 80, PhaseLOD: 5},
	}
	r := NewPerfRecord(42, m, s)
	if r.Frame != 42 || r.Particles != 1200 || r.Quality != "MEDIUM" {
		t.Errorf("record = %+v", r)
	}
	if r.AvgFrameUS != 17000 || r.DrawPct != 80 || r.LODPct != 5 {
		t.Errorf("timing fields = %+v", r)
	}
}
