// Package quality maps observed frame rate to a discrete visual quality level.
package quality

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/pthm-cable/starfield/config"
	"github.com/pthm-cable/starfield/layer"
)

// ErrUnknownLevel is returned when a level name or table entry does not exist.
var ErrUnknownLevel = errors.New("unknown quality level")

// Level is an ordered quality tier.
type Level int

const (
	Low Level = iota
	Medium
	High
	Ultra
)

// Levels lists every level in ascending order.
var Levels = []Level{Low, Medium, High, Ultra}

var levelNames = [...]string{"LOW", "MEDIUM", "HIGH", "ULTRA"}

func (l Level) String() string {
	if l < Low || l > Ultra {
		return fmt.Sprintf("Level(%d)", int(l))
	}
	return levelNames[l]
}

// Valid reports whether l is one of the four levels.
func (l Level) Valid() bool { return l >= Low && l <= Ultra }

// Names returns the level names in ascending order.
func Names() []string {
	return levelNames[:]
}

// ParseLevel converts a name such as "HIGH" to a Level.
func ParseLevel(s string) (Level, error) {
	for i, name := range levelNames {
		if name == s {
			return Level(i), nil
		}
	}
	return Low, fmt.Errorf("%w: %q", ErrUnknownLevel, s)
}

// Config is the concrete parameter set for one level.
type Config struct {
	ParticleCount   int
	ComplexShading  bool
	Fog             bool
	EnergyEffects   bool
	SizeMultiplier  float64
	AnimationSpeed  float64
	EffectIntensity float64
}

// LayerSettings converts c into the per-layer settings.
func (c Config) LayerSettings() layer.Settings {
	return layer.Settings{
		ParticleCount:   c.ParticleCount,
		ComplexShading:  c.ComplexShading,
		Fog:             c.Fog,
		EnergyEffects:   c.EnergyEffects,
		SizeMultiplier:  c.SizeMultiplier,
		AnimationSpeed:  c.AnimationSpeed,
		EffectIntensity: c.EffectIntensity,
	}
}

// LogValue implements slog.LogValuer.
func (c Config) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("particles", c.ParticleCount),
		slog.Bool("complex_shading", c.ComplexShading),
		slog.Bool("fog", c.Fog),
		slog.Bool("energy", c.EnergyEffects),
		slog.Float64("size", c.SizeMultiplier),
		slog.Float64("animation", c.AnimationSpeed),
		slog.Float64("effects", c.EffectIntensity),
	)
}

// Table maps each level to its config.
type Table map[Level]Config

// NewTable builds a table from the config section. Unknown level names are rejected.
func NewTable(c config.QualityConfig) (Table, error) {
	t := make(Table, len(c.Levels))
	for name, lc := range c.Levels {
		level, err := ParseLevel(name)
		if err != nil {
			return nil, fmt.Errorf("quality table: %w", err)
		}
		t[level] = Config{
			ParticleCount:   lc.ParticleCount,
			ComplexShading:  lc.ComplexShading,
			Fog:             lc.Fog,
			EnergyEffects:   lc.EnergyEffects,
			SizeMultiplier:  lc.SizeMultiplier,
			AnimationSpeed:  lc.AnimationSpeed,
			EffectIntensity: lc.EffectIntensity,
		}
	}
	return t, nil
}

// Lookup returns the config for level. A missing entry is an error rather than
// a silent default.
func (t Table) Lookup(level Level) (Config, error) {
	c, ok := t[level]
	if !ok {
		return Config{}, fmt.Errorf("%w: %s not in table", ErrUnknownLevel, level)
	}
	return c, nil
}
