package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Exporter publishes backdrop metrics to a Prometheus registry.
// A nil *Exporter accepts every call and records nothing.
type Exporter struct {
	registry *prometheus.Registry

	fps          prometheus.Gauge
	averageFPS   prometheus.Gauge
	minFPS       prometheus.Gauge
	maxFPS       prometheus.Gauge
	frameTime    prometheus.Gauge
	memory       prometheus.Gauge
	particles    prometheus.Gauge
	culledLayers prometheus.Gauge
	quality      *prometheus.GaugeVec

	transitions *prometheus.CounterVec
	resamples   *prometheus.CounterVec
	resampleDur prometheus.Histogram
	pool        *prometheus.CounterVec
	poolDispose *prometheus.CounterVec
	layerErrors *prometheus.CounterVec
}

// NewExporter registers the backdrop metrics on a fresh registry.
func NewExporter(namespace string) *Exporter {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	gauge := func(name, help string) prometheus.Gauge {
		return f.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: name, Help: help})
	}

	return &Exporter{
		registry:     reg,
		fps:          gauge("fps", "Current frames per second over the sample window"),
		averageFPS:   gauge("fps_average", "Average FPS over the history window"),
		minFPS:       gauge("fps_min", "Minimum FPS over the history window"),
		maxFPS:       gauge("fps_max", "Maximum FPS over the history window"),
		frameTime:    gauge("frame_time_ms", "Duration of the last frame in milliseconds"),
		memory:       gauge("memory_mb", "Sampled or estimated memory usage in megabytes"),
		particles:    gauge("particles", "Particles currently submitted across all layers"),
		culledLayers: gauge("culled_layers", "Layers hidden by frustum culling this frame"),
		quality: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "quality_level",
			Help:      "1 for the active quality level, 0 otherwise",
		}, []string{"level"}),
		transitions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quality_transitions_total",
			Help:      "Quality level changes applied by the optimizer",
		}, []string{"from", "to"}),
		resamples: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lod_resamples_total",
			Help:      "Particle buffer resamples caused by LOD tier changes",
		}, []string{"layer"}),
		resampleDur: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "lod_resample_seconds",
			Help:      "Time spent resampling one layer buffer",
			Buckets:   prometheus.ExponentialBuckets(0.00005, 2, 12),
		}),
		pool: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pool_requests_total",
			Help:      "Resource pool acquisitions by result",
		}, []string{"tag", "result"}),
		poolDispose: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pool_disposed_total",
			Help:      "Resources disposed because their pool was full",
		}, []string{"tag"}),
		layerErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "layer_update_errors_total",
			Help:      "Failed per-layer uniform updates",
		}, []string{"layer"}),
	}
}

// Registry exposes the underlying registry.
func (e *Exporter) Registry() *prometheus.Registry {
	if e == nil {
		return nil
	}
	return e.registry
}

// Observe publishes a monitor snapshot.
func (e *Exporter) Observe(m Metrics) {
	if e == nil {
		return
	}
	e.fps.Set(m.FPS)
	e.averageFPS.Set(m.AverageFPS)
	e.minFPS.Set(m.MinFPS)
	e.maxFPS.Set(m.MaxFPS)
	e.frameTime.Set(m.FrameTimeMS)
	e.memory.Set(m.MemoryMB)
	e.particles.Set(float64(m.ParticleCount))
	e.culledLayers.Set(float64(m.CulledLayers))
}

// SetQuality marks level as the active quality among levels.
func (e *Exporter) SetQuality(level string, levels []string) {
	if e == nil {
		return
	}
	for _, l := range levels {
		v := 0.0
		if l == level {
			v = 1
		}
		e.quality.WithLabelValues(l).Set(v)
	}
}

// QualityTransition counts one applied transition.
func (e *Exporter) QualityTransition(from, to string) {
	if e == nil {
		return
	}
	e.transitions.WithLabelValues(from, to).Inc()
}

// LODResample counts one resample and records its duration.
func (e *Exporter) LODResample(layer string, d time.Duration) {
	if e == nil {
		return
	}
	e.resamples.WithLabelValues(layer).Inc()
	e.resampleDur.Observe(d.Seconds())
}

// PoolHit counts an acquisition served from the pool.
func (e *Exporter) PoolHit(tag string) {
	if e == nil {
		return
	}
	e.pool.WithLabelValues(tag, "hit").Inc()
}

// PoolMiss counts an acquisition that had to allocate.
func (e *Exporter) PoolMiss(tag string) {
	if e == nil {
		return
	}
	e.pool.WithLabelValues(tag, "miss").Inc()
}

// PoolDisposed counts a release that overflowed the pool.
func (e *Exporter) PoolDisposed(tag string) {
	if e == nil {
		return
	}
	e.poolDispose.WithLabelValues(tag).Inc()
}

// LayerError counts a failed uniform update.
func (e *Exporter) LayerError(layer string) {
	if e == nil {
		return
	}
	e.layerErrors.WithLabelValues(layer).Inc()
}

// Handler serves the registry in the Prometheus text format.
func (e *Exporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{})
}

// NewServer returns an HTTP server exposing /metrics.
func (e *Exporter) NewServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", e.Handler())
	return &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  15 * time.Second,
	}
}
