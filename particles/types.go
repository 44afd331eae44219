package particles

import (
	"fmt"
	"math/rand"
	"sort"
	"strings"
)

// Type is the integer-coded particle kind stored per particle.
type Type uint8

const (
	TypeStar Type = iota
	TypeSupernova
	TypePulsar
	TypeNebula
	TypeEnergyField
)

var typeNames = [...]string{"STAR", "SUPERNOVA", "PULSAR", "NEBULA", "ENERGY_FIELD"}

func (t Type) String() string {
	if int(t) < len(typeNames) {
		return typeNames[t]
	}
	return fmt.Sprintf("Type(%d)", t)
}

// ParseType parses a type name (case-insensitive).
func ParseType(s string) (Type, error) {
	u := strings.ToUpper(strings.TrimSpace(s))
	for i, name := range typeNames {
		if name == u {
			return Type(i), nil
		}
	}
	return 0, fmt.Errorf("unknown particle type %q", s)
}

// TypeWeight is one entry of a TypeTable.
type TypeWeight struct {
	Type   Type
	Weight float64
}

// TypeTable is a discrete probability table over particle types.
// Weights need not sum to one.
type TypeTable struct {
	entries []TypeWeight
	total   float64
}

// NewTypeTable builds a table from type/weight pairs. Non-positive weights are dropped.
func NewTypeTable(weights ...TypeWeight) TypeTable {
	var tt TypeTable
	for _, w := range weights {
		if w.Weight <= 0 {
			continue
		}
		tt.entries = append(tt.entries, w)
		tt.total += w.Weight
	}
	return tt
}

// TypeTableFromNames builds a table from a name -> weight map.
// Entries are ordered by type so sampling is reproducible for a given seed.
func TypeTableFromNames(weights map[string]float64) (TypeTable, error) {
	pairs := make([]TypeWeight, 0, len(weights))
	for name, w := range weights {
		t, err := ParseType(name)
		if err != nil {
			return TypeTable{}, err
		}
		pairs = append(pairs, TypeWeight{Type: t, Weight: w})
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].Type < pairs[j].Type })
	return NewTypeTable(pairs...), nil
}

// Probability returns the normalised probability of t.
func (tt TypeTable) Probability(t Type) float64 {
	if tt.total == 0 {
		if t == TypeStar {
			return 1
		}
		return 0
	}
	var w float64
	for _, e := range tt.entries {
		if e.Type == t {
			w += e.Weight
		}
	}
	return w / tt.total
}

// Sample draws a type. An empty table always yields TypeStar.
func (tt TypeTable) Sample(rng *rand.Rand) Type {
	if tt.total == 0 {
		return TypeStar
	}
	x := rng.Float64() * tt.total
	for _, e := range tt.entries {
		if x < e.Weight {
			return e.Type
		}
		x -= e.Weight
	}
	return tt.entries[len(tt.entries)-1].Type
}
