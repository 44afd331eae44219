package fallback

import "github.com/lucasb-eyer/go-colorful"

// Position is an element's top-left corner in container units.
type Position struct {
	X, Y float64
}

// Velocity is in container units per second.
type Velocity struct {
	X, Y float64
}

// Lifetime counts up from zero to Max seconds.
type Lifetime struct {
	Age float64
	Max float64
}

// Appearance is the element's visual state.
type Appearance struct {
	Color   colorful.Color
	Size    float64
	Opacity float64
}

// Handle links an entity to its host element.
type Handle struct {
	Element Element
}
