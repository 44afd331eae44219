// Package device adapts particle budgets to the viewing device and turns raw
// touch input into gestures.
package device

import (
	"fmt"
	"log/slog"
	"regexp"

	"github.com/pthm-cable/starfield/config"
)

// Type is a device class.
type Type int

const (
	Mobile Type = iota
	Tablet
	Desktop
)

var typeNames = [...]string{"MOBILE", "TABLET", "DESKTOP"}

func (t Type) String() string {
	if t < Mobile || t > Desktop {
		return fmt.Sprintf("Type(%d)", int(t))
	}
	return typeNames[t]
}

// ParseType converts a name such as "TABLET" to a Type.
func ParseType(s string) (Type, error) {
	for i, name := range typeNames {
		if name == s {
			return Type(i), nil
		}
	}
	return Desktop, fmt.Errorf("unknown device type %q", s)
}

// Config is the budget for one device class.
type Config struct {
	ParticleMultiplier float64
	Quality            string
	AdvancedEffects    bool
	MaxParticles       int
	RenderScale        float64
}

// LogValue implements slog.LogValuer.
func (c Config) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Float64("multiplier", c.ParticleMultiplier),
		slog.String("quality", c.Quality),
		slog.Bool("advanced", c.AdvancedEffects),
		slog.Int("max_particles", c.MaxParticles),
		slog.Float64("render_scale", c.RenderScale),
	)
}

// Table maps each device class to its budget.
type Table map[Type]Config

// TableFromConfig converts the config section.
func TableFromConfig(c config.DeviceConfig) (Table, error) {
	t := make(Table, len(c.Types))
	for name, tc := range c.Types {
		typ, err := ParseType(name)
		if err != nil {
			return nil, err
		}
		t[typ] = Config{
			ParticleMultiplier: tc.ParticleMultiplier,
			Quality:            tc.Quality,
			AdvancedEffects:    tc.AdvancedEffects,
			MaxParticles:       tc.MaxParticles,
			RenderScale:        tc.RenderScale,
		}
	}
	for _, typ := range []Type{Mobile, Tablet, Desktop} {
		if _, ok := t[typ]; !ok {
			return nil, fmt.Errorf("device table missing %s", typ)
		}
	}
	return t, nil
}

// Breakpoints are the inclusive viewport width limits of the smaller classes.
type Breakpoints struct {
	Mobile int
	Tablet int
}

// Environment describes the input capabilities reported by the host.
type Environment struct {
	UserAgent string
	Touch     bool
}

var (
	tabletUA  = regexp.MustCompile(`(?i)ipad|tablet|playbook|silk|kindle`)
	mobileUA  = regexp.MustCompile(`(?i)mobi|iphone|ipod|blackberry|iemobile|opera mini`)
	androidUA = regexp.MustCompile(`(?i)android`)
)

// uaClass reports the class suggested by the user agent, if any.
// Android without a mobile token is a tablet.
func uaClass(ua string) (Type, bool) {
	switch {
	case tabletUA.MatchString(ua):
		return Tablet, true
	case mobileUA.MatchString(ua):
		return Mobile, true
	case androidUA.MatchString(ua):
		return Tablet, true
	}
	return Desktop, false
}

// Classify returns the device class for a viewport width. Widths up to the
// mobile breakpoint are always MOBILE; wider touch devices whose user agent
// names a phone or tablet take that class instead of their width bucket.
func Classify(width int, env Environment, bp Breakpoints) Type {
	if width <= bp.Mobile {
		return Mobile
	}
	if env.Touch {
		if t, ok := uaClass(env.UserAgent); ok {
			return t
		}
	}
	if width <= bp.Tablet {
		return Tablet
	}
	return Desktop
}
