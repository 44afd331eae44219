package layer

import (
	"fmt"
	"strings"

	"github.com/pthm-cable/starfield/colors"
	"github.com/pthm-cable/starfield/config"
	"github.com/pthm-cable/starfield/particles"
)

// Kind names the visual variant a layer was built from.
type Kind uint8

const (
	Background Kind = iota
	Midground
	Foreground
	DeepSpace
	Custom
)

var kindNames = [...]string{"background", "midground", "foreground", "deepspace", "custom"}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", k)
}

// ThemeRole selects which theme colour tints a layer.
type ThemeRole string

const (
	RolePrimary    ThemeRole = "primary"
	RoleSecondary  ThemeRole = "secondary"
	RoleAccent     ThemeRole = "accent"
	RoleBackground ThemeRole = "background"
	RoleForeground ThemeRole = "foreground"
	RoleGlow       ThemeRole = "glow"
)

// Preset is the full description of a layer variant.
type Preset struct {
	Name      string
	Kind      Kind
	Share     float64 // Fraction of the global particle target
	ThemeRole ThemeRole
	Recipe    particles.Recipe
}

// BackgroundPreset returns the distant uniform star shell.
func BackgroundPreset() Preset {
	return Preset{
		Name:      "background",
		Kind:      Background,
		Share:     0.45,
		ThemeRole: RoleSecondary,
		Recipe: particles.Recipe{
			Config: particles.LayerConfiguration{
				Intensity:              0.7,
				DepthBase:              0.1,
				DepthMultiplier:        0.4,
				OrbitalSpeedMultiplier: 0.2,
				VelocityMultiplier:     0.1,
				BrightnessBase:         0.4,
				BrightnessMultiplier:   0.6,
			},
			Distribution:  particles.Spherical,
			DepthRange:    particles.Range{Min: 120, Max: 300},
			SizeRange:     particles.Range{Min: 0.5, Max: 1.5},
			VelocityRange: 0.05,
			OrbitalRange:  particles.Range{Min: 0.001, Max: 0.005},
			Color:         mustPalette("classic"),
			Types: particles.NewTypeTable(
				particles.TypeWeight{Type: particles.TypeStar, Weight: 0.95},
				particles.TypeWeight{Type: particles.TypePulsar, Weight: 0.03},
				particles.TypeWeight{Type: particles.TypeSupernova, Weight: 0.02},
			),
		},
	}
}

// MidgroundPreset returns the nebula-heavy spiral band.
func MidgroundPreset() Preset {
	return Preset{
		Name:      "midground",
		Kind:      Midground,
		Share:     0.25,
		ThemeRole: RoleAccent,
		Recipe: particles.Recipe{
			Config: particles.LayerConfiguration{
				Intensity:              0.85,
				DepthBase:              0.3,
				DepthMultiplier:        0.5,
				OrbitalSpeedMultiplier: 0.6,
				VelocityMultiplier:     0.4,
				BrightnessBase:         0.5,
				BrightnessMultiplier:   0.5,
			},
			Distribution:  particles.Spiral,
			DepthRange:    particles.Range{Min: 60, Max: 160},
			SizeRange:     particles.Range{Min: 1, Max: 3},
			VelocityRange: 0.2,
			OrbitalRange:  particles.Range{Min: 0.005, Max: 0.02},
			Color:         mustPalette("nebula"),
			Types: particles.NewTypeTable(
				particles.TypeWeight{Type: particles.TypeStar, Weight: 0.5},
				particles.TypeWeight{Type: particles.TypeNebula, Weight: 0.4},
				particles.TypeWeight{Type: particles.TypePulsar, Weight: 0.05},
				particles.TypeWeight{Type: particles.TypeEnergyField, Weight: 0.05},
			),
		},
	}
}

// ForegroundPreset returns the bright galaxy arms closest to the camera.
func ForegroundPreset() Preset {
	return Preset{
		Name:      "foreground",
		Kind:      Foreground,
		Share:     0.1,
		ThemeRole: RolePrimary,
		Recipe: particles.Recipe{
			Config: particles.LayerConfiguration{
				Intensity:              1,
				DepthBase:              0.5,
				DepthMultiplier:        0.5,
				OrbitalSpeedMultiplier: 1,
				VelocityMultiplier:     1,
				BrightnessBase:         0.6,
				BrightnessMultiplier:   0.4,
			},
			Distribution:  particles.GalaxyArm,
			DepthRange:    particles.Range{Min: 20, Max: 80},
			SizeRange:     particles.Range{Min: 2, Max: 5},
			VelocityRange: 0.5,
			OrbitalRange:  particles.Range{Min: 0.02, Max: 0.06},
			Color:         mustPalette("energy"),
			Types: particles.NewTypeTable(
				particles.TypeWeight{Type: particles.TypeStar, Weight: 0.6},
				particles.TypeWeight{Type: particles.TypeEnergyField, Weight: 0.2},
				particles.TypeWeight{Type: particles.TypeSupernova, Weight: 0.1},
				particles.TypeWeight{Type: particles.TypePulsar, Weight: 0.1},
			),
		},
	}
}

// DeepSpacePreset returns the far ring coloured by black-body temperature.
func DeepSpacePreset() Preset {
	return Preset{
		Name:      "deepspace",
		Kind:      DeepSpace,
		Share:     0.2,
		ThemeRole: RoleGlow,
		Recipe: particles.Recipe{
			Config: particles.LayerConfiguration{
				Intensity:              0.5,
				DepthBase:              0.05,
				DepthMultiplier:        0.3,
				OrbitalSpeedMultiplier: 0.1,
				VelocityMultiplier:     0.05,
				BrightnessBase:         0.3,
				BrightnessMultiplier:   0.7,
			},
			Distribution:  particles.Ring,
			DepthRange:    particles.Range{Min: 300, Max: 600},
			SizeRange:     particles.Range{Min: 0.5, Max: 2},
			VelocityRange: 0.02,
			OrbitalRange:  particles.Range{Min: 0.0005, Max: 0.002},
			Color:         particles.TemperatureColors(particles.Range{Min: 3000, Max: 12000}),
			Types: particles.NewTypeTable(
				particles.TypeWeight{Type: particles.TypeStar, Weight: 0.9},
				particles.TypeWeight{Type: particles.TypeNebula, Weight: 0.1},
			),
		},
	}
}

func mustPalette(name string) particles.ColorFunc {
	p, err := colors.Palette(name)
	if err != nil {
		panic(err)
	}
	return particles.PaletteColors(p)
}

// BuiltinPreset returns the preset for a built-in layer name.
func BuiltinPreset(name string) (Preset, bool) {
	switch strings.ToLower(name) {
	case "background":
		return BackgroundPreset(), true
	case "midground":
		return MidgroundPreset(), true
	case "foreground":
		return ForegroundPreset(), true
	case "deepspace":
		return DeepSpacePreset(), true
	}
	return Preset{}, false
}

// PresetFromConfig builds a custom preset. Unset ranges and multipliers fall
// back to the foreground preset.
func PresetFromConfig(c config.LayerPresetConfig) (Preset, error) {
	if c.Name == "" {
		return Preset{}, fmt.Errorf("custom layer has no name")
	}
	p := ForegroundPreset()
	p.Name = c.Name
	p.Kind = Custom
	p.ThemeRole = RoleForeground
	r := &p.Recipe

	if c.Share > 0 {
		p.Share = c.Share
	}
	if c.ThemeRole != "" {
		p.ThemeRole = ThemeRole(strings.ToLower(c.ThemeRole))
	}
	if c.Distribution != "" {
		d, err := particles.ParseDistribution(c.Distribution)
		if err != nil {
			return Preset{}, fmt.Errorf("layer %s: %w", c.Name, err)
		}
		r.Distribution = d
	}
	setRange(&r.DepthRange, c.DepthRange)
	setRange(&r.SizeRange, c.SizeRange)
	setRange(&r.OrbitalRange, c.OrbitalRange)
	if c.VelocityRange > 0 {
		r.VelocityRange = c.VelocityRange
	}

	lc := &r.Config
	setPositive(&lc.Intensity, c.Intensity)
	setPositive(&lc.DepthBase, c.DepthBase)
	setPositive(&lc.DepthMultiplier, c.DepthMultiplier)
	setPositive(&lc.OrbitalSpeedMultiplier, c.OrbitalSpeedMultiplier)
	setPositive(&lc.VelocityMultiplier, c.VelocityMultiplier)
	setPositive(&lc.BrightnessBase, c.BrightnessBase)
	setPositive(&lc.BrightnessMultiplier, c.BrightnessMultiplier)

	switch {
	case c.TemperatureRange[1] > 0:
		r.Color = particles.TemperatureColors(particles.Range{Min: c.TemperatureRange[0], Max: c.TemperatureRange[1]})
	case c.Palette != "":
		pal, err := colors.Palette(c.Palette)
		if err != nil {
			return Preset{}, fmt.Errorf("layer %s: %w", c.Name, err)
		}
		r.Color = particles.PaletteColors(pal)
	}

	if len(c.Types) > 0 {
		tt, err := particles.TypeTableFromNames(c.Types)
		if err != nil {
			return Preset{}, fmt.Errorf("layer %s: %w", c.Name, err)
		}
		r.Types = tt
	}

	if err := r.Validate(); err != nil {
		return Preset{}, fmt.Errorf("layer %s: %w", c.Name, err)
	}
	return p, nil
}

// Presets resolves the enabled built-ins followed by the custom layers.
func Presets(c config.LayersConfig) ([]Preset, error) {
	out := make([]Preset, 0, len(c.Enabled)+len(c.Custom))
	seen := make(map[string]bool)
	for _, name := range c.Enabled {
		p, ok := BuiltinPreset(name)
		if !ok {
			return nil, fmt.Errorf("unknown built-in layer %q", name)
		}
		if seen[p.Name] {
			return nil, fmt.Errorf("layer %q listed twice", p.Name)
		}
		seen[p.Name] = true
		out = append(out, p)
	}
	for _, cc := range c.Custom {
		p, err := PresetFromConfig(cc)
		if err != nil {
			return nil, err
		}
		if seen[p.Name] {
			return nil, fmt.Errorf("layer %q defined twice", p.Name)
		}
		seen[p.Name] = true
		out = append(out, p)
	}
	return out, nil
}

func setRange(dst *particles.Range, v [2]float64) {
	if v[0] != 0 || v[1] != 0 {
		*dst = particles.Range{Min: v[0], Max: v[1]}
	}
}

func setPositive(dst *float64, v float64) {
	if v > 0 {
		*dst = v
	}
}
