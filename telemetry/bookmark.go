package telemetry

import (
	"fmt"
	"log/slog"

	"gonum.org/v1/gonum/stat"
)

// BookmarkType identifies the type of bookmark.
type BookmarkType string

const (
	BookmarkFPSCrash      BookmarkType = "fps_crash"
	BookmarkFPSRecovery   BookmarkType = "fps_recovery"
	BookmarkMemorySpike   BookmarkType = "memory_spike"
	BookmarkStablePerf    BookmarkType = "stable_performance"
	BookmarkQualityChange BookmarkType = "quality_change"
)

// Bookmark marks a noteworthy moment in a run.
type Bookmark struct {
	Type        BookmarkType `csv:"type"`
	Frame       int64        `csv:"frame"`
	Description string       `csv:"description"`
}

// LogValue implements slog.LogValuer.
func (b Bookmark) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("type", string(b.Type)),
		slog.Int64("frame", b.Frame),
		slog.String("description", b.Description),
	)
}

// BookmarkDetector watches periodic perf records for noteworthy changes.
type BookmarkDetector struct {
	history     []PerfRecord
	historySize int
	historyIdx  int
	historyFull bool

	targetFPS   float64
	recentPeak  float64 // Peak average FPS since the last crash
	crashed     bool
	stableCount int
	lastQuality string
}

// NewBookmarkDetector creates a detector over historySize records.
func NewBookmarkDetector(historySize int, targetFPS float64) *BookmarkDetector {
	if historySize < 5 {
		historySize = 5
	}
	return &BookmarkDetector{
		history:     make([]PerfRecord, historySize),
		historySize: historySize,
		targetFPS:   targetFPS,
	}
}

// Check analyses the latest record and returns any triggered bookmarks.
func (bd *BookmarkDetector) Check(r PerfRecord) []Bookmark {
	var out []Bookmark
	for _, check := range []func(PerfRecord) *Bookmark{
		bd.checkQualityChange,
		bd.checkCrash,
		bd.checkRecovery,
		bd.checkMemorySpike,
		bd.checkStable,
	} {
		if b := check(r); b != nil {
			out = append(out, *b)
		}
	}

	bd.history[bd.historyIdx] = r
	bd.historyIdx = (bd.historyIdx + 1) % bd.historySize
	if bd.historyIdx == 0 {
		bd.historyFull = true
	}
	if r.AverageFPS > bd.recentPeak {
		bd.recentPeak = r.AverageFPS
	}
	return out
}

func (bd *BookmarkDetector) getHistory() []PerfRecord {
	if bd.historyFull {
		return bd.history
	}
	return bd.history[:bd.historyIdx]
}

func (bd *BookmarkDetector) checkQualityChange(r PerfRecord) *Bookmark {
	prev := bd.lastQuality
	bd.lastQuality = r.Quality
	if prev == "" || prev == r.Quality {
		return nil
	}
	return &Bookmark{
		Type:        BookmarkQualityChange,
		Frame:       r.Frame,
		Description: fmt.Sprintf("Quality %s -> %s at %.1f fps", prev, r.Quality, r.AverageFPS),
	}
}

// checkCrash fires when average FPS falls more than 30% below the recent peak.
func (bd *BookmarkDetector) checkCrash(r PerfRecord) *Bookmark {
	if bd.recentPeak == 0 || r.AverageFPS == 0 {
		return nil
	}
	drop := 1 - r.AverageFPS/bd.recentPeak
	if drop <= 0.3 {
		return nil
	}
	oldPeak := bd.recentPeak
	bd.recentPeak = r.AverageFPS
	bd.crashed = true
	return &Bookmark{
		Type:        BookmarkFPSCrash,
		Frame:       r.Frame,
		Description: fmt.Sprintf("Average FPS fell %.0f%% from %.1f to %.1f", drop*100, oldPeak, r.AverageFPS),
	}
}

// checkRecovery fires once the target is reached again after a crash.
func (bd *BookmarkDetector) checkRecovery(r PerfRecord) *Bookmark {
	if !bd.crashed || r.AverageFPS < bd.targetFPS*0.95 {
		return nil
	}
	bd.crashed = false
	return &Bookmark{
		Type:        BookmarkFPSRecovery,
		Frame:       r.Frame,
		Description: fmt.Sprintf("Average FPS recovered to %.1f at %s quality", r.AverageFPS, r.Quality),
	}
}

// checkMemorySpike fires when memory exceeds 1.5x its rolling mean.
func (bd *BookmarkDetector) checkMemorySpike(r PerfRecord) *Bookmark {
	history := bd.getHistory()
	if len(history) < 3 {
		return nil
	}
	mem := make([]float64, len(history))
	for i, h := range history {
		mem[i] = h.MemoryMB
	}
	mean := stat.Mean(mem, nil)
	if mean == 0 || r.MemoryMB <= mean*1.5 {
		return nil
	}
	return &Bookmark{
		Type:        BookmarkMemorySpike,
		Frame:       r.Frame,
		Description: fmt.Sprintf("Memory %.1f MB is %.1fx the rolling mean %.1f MB", r.MemoryMB, r.MemoryMB/mean, mean),
	}
}

// checkStable fires exactly once after five consecutive low-variance records.
func (bd *BookmarkDetector) checkStable(r PerfRecord) *Bookmark {
	history := bd.getHistory()
	if len(history) < 4 || r.AverageFPS == 0 {
		bd.stableCount = 0
		return nil
	}

	fps := []float64{r.AverageFPS}
	for _, h := range history[len(history)-4:] {
		fps = append(fps, h.AverageFPS)
	}
	mean, std := stat.MeanStdDev(fps, nil)
	if mean > 0 && std/mean < 0.05 {
		bd.stableCount++
	} else {
		bd.stableCount = 0
	}

	if bd.stableCount == 5 {
		return &Bookmark{
			Type:        BookmarkStablePerf,
			Frame:       r.Frame,
			Description: fmt.Sprintf("Stable %.1f fps at %s quality with %d particles", mean, r.Quality, r.Particles),
		}
	}
	return nil
}
