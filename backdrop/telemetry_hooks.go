package backdrop

import (
	"time"

	"github.com/pthm-cable/starfield/telemetry"
)

// flushTelemetry writes a perf record and checks bookmarks every log interval.
func (b *Backdrop) flushTelemetry(dt time.Duration) {
	interval := time.Duration(b.cfg.Monitor.LogInterval * float64(time.Second))
	if interval <= 0 {
		return
	}
	b.sinceLog += dt
	if b.sinceLog < interval {
		return
	}
	b.sinceLog = 0

	m := b.monitor.Metrics()
	stats := b.perf.Stats()
	rec := telemetry.NewPerfRecord(b.frame, m, stats)
	b.logger.Info("perf", "metrics", m, "phases", stats)

	if err := b.opts.Output.WritePerf(rec); err != nil {
		b.logger.Error("failed to write perf", "error", err)
	}

	bookmarks := b.bookmarks.Check(rec)
	for _, bm := range bookmarks {
		b.logger.Info("bookmark", "bookmark", bm)
	}
	if err := b.opts.Output.WriteBookmarks(bookmarks); err != nil {
		b.logger.Error("failed to write bookmarks", "error", err)
	}
}
