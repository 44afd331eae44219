package telemetry

import (
	"math"
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time { return c.t }

func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func testMonitor(opts MonitorOptions, mem MemoryReader) (*Monitor, *fakeClock) {
	clk := &fakeClock{t: time.Unix(1000, 0)}
	return NewMonitor(opts, clk, mem, nil), clk
}

func TestMonitorSteadyFrames(t *testing.T) {
	m, clk := testMonitor(MonitorOptions{SampleSize: 60, HistorySize: 300}, nil)

	m.Tick()
	frame := 16670 * time.Microsecond
	for i := 0; i < 60; i++ {
		clk.advance(frame)
		m.Tick()
	}

	if !m.Ready() {
		t.Fatal("monitor should be ready after 60 frames")
	}
	got := m.Metrics()
	if math.Abs(got.FPS-60) > 1 {
		t.Errorf("FPS = %.2f, want 60±1", got.FPS)
	}
	if math.Abs(got.FrameTimeMS-16.67) > 0.01 {
		t.Errorf("FrameTimeMS = %.3f, want 16.67", got.FrameTimeMS)
	}
	if got.AverageFPS != got.FPS || got.MinFPS != got.FPS || got.MaxFPS != got.FPS {
		t.Errorf("rolling stats should equal the single reading: %+v", got)
	}
}

func TestMonitorNotReadyBeforeWindowFills(t *testing.T) {
	m, _ := testMonitor(MonitorOptions{SampleSize: 10}, nil)
	for i := 0; i < 9; i++ {
		m.RecordFrame(10 * time.Millisecond)
	}
	if m.Ready() {
		t.Error("monitor should not be ready with 9 of 10 samples")
	}
	if m.Metrics().FPS != 0 {
		t.Errorf("FPS = %v before the window fills, want 0", m.Metrics().FPS)
	}
	m.RecordFrame(10 * time.Millisecond)
	if got := m.Metrics().FPS; math.Abs(got-100) > 1e-9 {
		t.Errorf("FPS = %v, want 100", got)
	}
}

func TestMonitorFirstTickIsBaseline(t *testing.T) {
	m, clk := testMonitor(MonitorOptions{SampleSize: 1}, nil)
	m.Tick()
	if m.Ready() {
		t.Fatal("first tick must not record a frame")
	}
	clk.advance(20 * time.Millisecond)
	m.Tick()
	if got := m.Metrics().FPS; math.Abs(got-50) > 1e-9 {
		t.Errorf("FPS = %v, want 50", got)
	}
}

func TestMonitorHistoryStats(t *testing.T) {
	m, _ := testMonitor(MonitorOptions{SampleSize: 1, HistorySize: 3}, nil)
	for _, ms := range []float64{10, 20, 40, 50} {
		m.RecordFrame(time.Duration(ms * float64(time.Millisecond)))
	}
	got := m.Metrics()
	// History keeps the last three readings: 50, 25, 20.
	if got.MinFPS != 20 || got.MaxFPS != 50 {
		t.Errorf("min/max = %v/%v, want 20/50", got.MinFPS, got.MaxFPS)
	}
	if math.Abs(got.AverageFPS-95.0/3) > 1e-9 {
		t.Errorf("AverageFPS = %v, want %v", got.AverageFPS, 95.0/3)
	}
	recent := m.RecentFPS(2)
	if len(recent) != 2 || recent[0] != 25 || recent[1] != 20 {
		t.Errorf("RecentFPS(2) = %v, want [25 20]", recent)
	}
}

func TestMonitorWarnings(t *testing.T) {
	m, _ := testMonitor(MonitorOptions{SampleSize: 5, FPSWarning: 30}, nil)

	var calls int
	unsubscribe := m.OnWarning(func(Metrics) { calls++ })

	for i := 0; i < 5; i++ {
		m.RecordFrame(50 * time.Millisecond) // 20 fps
	}
	if calls != 1 {
		t.Fatalf("calls = %d after the window filled, want 1", calls)
	}
	m.RecordFrame(50 * time.Millisecond)
	if calls != 2 {
		t.Fatalf("calls = %d, want a warning on every breaching frame", calls)
	}

	unsubscribe()
	m.RecordFrame(50 * time.Millisecond)
	if calls != 2 {
		t.Errorf("calls = %d after unsubscribe, want 2", calls)
	}
}

func TestMonitorWarningPanicIsRecovered(t *testing.T) {
	m, _ := testMonitor(MonitorOptions{SampleSize: 1, FPSWarning: 30}, nil)

	var reached bool
	m.OnWarning(func(Metrics) { panic("boom") })
	m.OnWarning(func(Metrics) { reached = true })

	m.RecordFrame(100 * time.Millisecond)
	if !reached {
		t.Error("a panicking listener must not stop the others")
	}
}

func TestMonitorMemory(t *testing.T) {
	t.Run("estimate", func(t *testing.T) {
		m, _ := testMonitor(MonitorOptions{MemoryBaseMB: 50, MemoryPerParticleMB: 0.001}, nil)
		m.SetParticleCount(2000)
		m.RecordFrame(16 * time.Millisecond)
		if got := m.Metrics().MemoryMB; math.Abs(got-52) > 1e-9 {
			t.Errorf("MemoryMB = %v, want 52", got)
		}
	})

	t.Run("reader falls back to estimate", func(t *testing.T) {
		m, _ := testMonitor(MonitorOptions{MemoryBaseMB: 10}, func() (float64, bool) { return 0, false })
		m.RecordFrame(16 * time.Millisecond)
		if got := m.Metrics().MemoryMB; got != 10 {
			t.Errorf("MemoryMB = %v, want 10", got)
		}
	})

	t.Run("sampled on interval", func(t *testing.T) {
		reads := 0
		reader := func() (float64, bool) {
			reads++
			return float64(reads), true
		}
		m, _ := testMonitor(MonitorOptions{MemoryInterval: 100 * time.Millisecond}, reader)
		for i := 0; i < 10; i++ {
			m.RecordFrame(25 * time.Millisecond)
		}
		// First frame, then after 100ms and 200ms of accumulated frames.
		if reads != 3 {
			t.Errorf("reads = %d, want 3", reads)
		}
	})

	t.Run("warning", func(t *testing.T) {
		m, _ := testMonitor(MonitorOptions{SampleSize: 100, MemoryWarningMB: 100}, func() (float64, bool) { return 150, true })
		var got Metrics
		m.OnWarning(func(mt Metrics) { got = mt })
		m.RecordFrame(16 * time.Millisecond)
		if got.MemoryMB != 150 {
			t.Errorf("warning snapshot MemoryMB = %v, want 150", got.MemoryMB)
		}
	})
}

func TestMonitorReset(t *testing.T) {
	m, _ := testMonitor(MonitorOptions{SampleSize: 2}, nil)
	m.SetParticleCount(500)
	m.SetQualityLevel("HIGH")
	m.RecordFrame(10 * time.Millisecond)
	m.RecordFrame(10 * time.Millisecond)

	m.Reset()
	got := m.Metrics()
	if m.Ready() || got.FPS != 0 || got.AverageFPS != 0 {
		t.Errorf("Reset left stats behind: %+v", got)
	}
	if got.ParticleCount != 500 || got.QualityLevel != "HIGH" {
		t.Errorf("Reset dropped host-set values: %+v", got)
	}
	if len(m.RecentFPS(10)) != 0 {
		t.Error("Reset should clear FPS history")
	}
}

func TestMonitorDispose(t *testing.T) {
	m, _ := testMonitor(MonitorOptions{SampleSize: 1, FPSWarning: 30}, nil)
	var calls int
	m.OnWarning(func(Metrics) { calls++ })
	m.Dispose()
	m.RecordFrame(100 * time.Millisecond)
	if calls != 0 {
		t.Errorf("calls = %d after Dispose, want 0", calls)
	}
}
