package capability

import (
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"sync"

	"github.com/pthm-cable/starfield/config"
)

// ErrNoContext is returned by a Prober that cannot create a context for a rung.
var ErrNoContext = errors.New("capability: context unavailable")

// Prober acquires a scoped rendering context for one API rung, reads its
// limits and releases it before returning.
type Prober interface {
	Probe(api API) (Limits, error)
}

// ProberFunc adapts a function to Prober.
type ProberFunc func(api API) (Limits, error)

// Probe implements Prober.
func (f ProberFunc) Probe(api API) (Limits, error) { return f(api) }

// Environment describes the host the detector runs in.
type Environment struct {
	UserAgent string
	Touch     bool
}

var mobileUA = regexp.MustCompile(`(?i)android|iphone|ipad|ipod|mobile|blackberry|iemobile|opera mini`)

// Rules is the compiled rule set.
type Rules struct {
	MinTextureSize         int
	MobileMinTextureSize   int
	MinVertexUniforms      int
	MinFragmentUniforms    int
	RequiredExtensions     []string
	Denylist               []*regexp.Regexp
	CanvasWarningThreshold int
}

// NewRules compiles the rule set from config.
func NewRules(c config.CapabilityConfig) (Rules, error) {
	r := Rules{
		MinTextureSize:         c.MinTextureSize,
		MobileMinTextureSize:   c.MobileMinTextureSize,
		MinVertexUniforms:      c.MinVertexUniforms,
		MinFragmentUniforms:    c.MinFragmentUniforms,
		RequiredExtensions:     c.RequiredExtensions,
		CanvasWarningThreshold: c.CanvasWarningThreshold,
	}
	for _, pat := range c.RendererDenylist {
		re, err := regexp.Compile(pat)
		if err != nil {
			return Rules{}, fmt.Errorf("renderer denylist %q: %w", pat, err)
		}
		r.Denylist = append(r.Denylist, re)
	}
	return r, nil
}

// Evaluate applies the rule set to probed capabilities. caps is nil when no
// context could be acquired.
func (r Rules) Evaluate(caps *Capabilities, env Environment) Report {
	rep := Report{Capabilities: caps}
	if caps == nil {
		rep.Errors = append(rep.Errors, "no hardware-accelerated rendering context available")
		rep.RecommendedFallback = FallbackCSS
		return rep
	}

	rep.Supported = true
	denylisted := false

	if caps.MaxTextureSize < r.MinTextureSize {
		rep.Supported = false
		rep.Errors = append(rep.Errors, fmt.Sprintf("max texture size %d below %d", caps.MaxTextureSize, r.MinTextureSize))
	}
	if caps.MaxVertexUniformVectors < r.MinVertexUniforms {
		rep.Warnings = append(rep.Warnings, fmt.Sprintf("low vertex uniform vectors: %d", caps.MaxVertexUniformVectors))
	}
	if caps.MaxFragmentUniformVectors < r.MinFragmentUniforms {
		rep.Warnings = append(rep.Warnings, fmt.Sprintf("low fragment uniform vectors: %d", caps.MaxFragmentUniformVectors))
	}
	// The modern API has these in core
	if !caps.ModernAPI {
		for _, ext := range r.RequiredExtensions {
			if !caps.HasExtension(ext) {
				rep.Warnings = append(rep.Warnings, "missing extension "+ext)
			}
		}
	}
	for _, re := range r.Denylist {
		if re.MatchString(caps.Renderer) {
			denylisted = true
			rep.Warnings = append(rep.Warnings, fmt.Sprintf("renderer %q is known to be problematic", caps.Renderer))
			break
		}
	}
	if mobileUA.MatchString(env.UserAgent) && (caps.MaxTextureSize < r.MobileMinTextureSize || !caps.ModernAPI) {
		rep.Warnings = append(rep.Warnings, "limited mobile GPU")
	}

	switch {
	case !rep.Supported, denylisted:
		rep.RecommendedFallback = FallbackCSS
	case len(rep.Warnings) > r.CanvasWarningThreshold:
		rep.RecommendedFallback = FallbackCanvas
	default:
		rep.RecommendedFallback = FallbackNone
	}
	return rep
}

// Detector runs detection at most once.
type Detector struct {
	prober Prober
	rules  Rules
	env    Environment
	logger *slog.Logger

	once   sync.Once
	report Report
}

// NewDetector creates a detector. logger may be nil.
func NewDetector(p Prober, rules Rules, env Environment, logger *slog.Logger) *Detector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Detector{prober: p, rules: rules, env: env, logger: logger}
}

// Detect walks the API ladder and evaluates the first context acquired.
// Later calls return the same report.
func (d *Detector) Detect() Report {
	d.once.Do(func() {
		d.report = d.rules.Evaluate(d.acquire(), d.env)
		d.logger.Info("capability detection", "report", d.report)
	})
	return d.report
}

func (d *Detector) acquire() *Capabilities {
	if d.prober == nil {
		return nil
	}
	for _, api := range Ladder {
		lim, err := d.prober.Probe(api)
		if err != nil {
			d.logger.Debug("context rung failed", "api", string(api), "error", err)
			continue
		}
		return &Capabilities{Limits: lim, API: api, ModernAPI: api == APIModern}
	}
	return nil
}

// StaticProber serves fixed limits per rung. Missing rungs fail.
type StaticProber map[API]Limits

// Probe implements Prober.
func (s StaticProber) Probe(api API) (Limits, error) {
	lim, ok := s[api]
	if !ok {
		return Limits{}, fmt.Errorf("%w: %s", ErrNoContext, api)
	}
	return lim, nil
}

// FileProber replays the capabilities recorded in a report file, such as the
// output of the probe tool.
func FileProber(path string) (Prober, error) {
	rep, err := LoadReport(path)
	if err != nil {
		return nil, err
	}
	if rep.Capabilities == nil {
		return StaticProber{}, nil
	}
	return StaticProber{rep.Capabilities.API: rep.Capabilities.Limits}, nil
}

// BaselineProber assumes a desktop OpenGL 3.3 core context with conservative
// limits. Used by hosts that already own a context they cannot introspect.
func BaselineProber() Prober {
	return StaticProber{APIModern: {
		MaxTextureSize:            4096,
		MaxVertexUniformVectors:   256,
		MaxFragmentUniformVectors: 224,
		MaxVaryingVectors:         15,
		MaxVertexAttribs:          16,
		MaxDrawBuffers:            8,
		Renderer:                  "baseline",
		Vendor:                    "unknown",
		Version:                   "3.3",
	}}
}
