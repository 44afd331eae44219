package backdrop

import (
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// DefaultPolicy routes to the fallback only when the GPU path is unsupported,
// or on LOW quality when lowQualityFallback is set.
const DefaultPolicy = `!supported || (lowQualityFallback && quality == "LOW")`

// PolicyInput is what a routing expression can see.
type PolicyInput struct {
	Supported          bool
	Quality            string // Initial quality level name
	Device             string // MOBILE, TABLET or DESKTOP
	LowQualityFallback bool
	Warnings           int
	Fallback           string // Detector recommendation: none, canvas or css
}

func (in PolicyInput) env() map[string]any {
	return map[string]any{
		"supported":          in.Supported,
		"quality":            in.Quality,
		"device":             in.Device,
		"lowQualityFallback": in.LowQualityFallback,
		"warnings":           in.Warnings,
		"fallback":           in.Fallback,
	}
}

// Policy decides between the GPU path and the fallback emulator.
type Policy struct {
	source  string
	program *vm.Program
}

// NewPolicy compiles a boolean routing expression. An empty source selects
// DefaultPolicy.
func NewPolicy(source string) (*Policy, error) {
	if source == "" {
		source = DefaultPolicy
	}
	program, err := expr.Compile(source, expr.Env(PolicyInput{}.env()), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("fallback policy %q: %w", source, err)
	}
	return &Policy{source: source, program: program}, nil
}

// Source returns the expression text.
func (p *Policy) Source() string { return p.source }

// UseFallback evaluates the policy. true selects the fallback emulator.
func (p *Policy) UseFallback(in PolicyInput) (bool, error) {
	out, err := expr.Run(p.program, in.env())
	if err != nil {
		return !in.Supported, fmt.Errorf("evaluating fallback policy: %w", err)
	}
	use, ok := out.(bool)
	if !ok {
		return !in.Supported, fmt.Errorf("fallback policy returned %T, want bool", out)
	}
	return use, nil
}
