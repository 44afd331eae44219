// Package term hosts the fallback emulator in a terminal. Each element is a
// single cell whose glyph follows its size and whose colour is dimmed by its
// opacity.
package term

import (
	"sync"

	"github.com/gdamore/tcell/v2"
	"github.com/lucasb-eyer/go-colorful"

	"github.com/pthm-cable/starfield/fallback"
)

// Container implements fallback.Container on a tcell screen.
type Container struct {
	screen tcell.Screen

	mu       sync.Mutex
	elements map[*element]struct{}
	status   string
}

// New wraps an initialised screen.
func New(screen tcell.Screen) *Container {
	return &Container{screen: screen, elements: make(map[*element]struct{})}
}

// Bounds implements fallback.Container. One cell is one unit.
func (c *Container) Bounds() (float64, float64) {
	w, h := c.screen.Size()
	return float64(w), float64(h)
}

// CreateElement implements fallback.Container.
func (c *Container) CreateElement() (fallback.Element, error) {
	el := &element{container: c}
	c.mu.Lock()
	c.elements[el] = struct{}{}
	c.mu.Unlock()
	return el, nil
}

// InjectStyle implements fallback.Container. Terminals have no style sheet.
func (c *Container) InjectStyle(string) (fallback.Style, error) {
	return noStyle{}, nil
}

// SetStatus sets a line drawn at the bottom of the screen.
func (c *Container) SetStatus(s string) {
	c.mu.Lock()
	c.status = s
	c.mu.Unlock()
}

// Flush redraws every element.
func (c *Container) Flush() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.screen.Clear()
	for el := range c.elements {
		if el.opacity <= 0.02 {
			continue
		}
		col := el.color
		r, g, b := col.R*el.opacity, col.G*el.opacity, col.B*el.opacity
		style := tcell.StyleDefault.Foreground(tcell.NewRGBColor(int32(r*255), int32(g*255), int32(b*255)))
		c.screen.SetContent(int(el.x), int(el.y), glyph(el.size), nil, style)
	}

	_, h := c.screen.Size()
	for i, ch := range c.status {
		c.screen.SetContent(i, h-1, ch, nil, tcell.StyleDefault.Foreground(tcell.ColorGray))
	}
	c.screen.Show()
}

// Len returns the number of live elements.
func (c *Container) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.elements)
}

func glyph(size float64) rune {
	switch {
	case size < 1.5:
		return '.'
	case size < 2.2:
		return '·'
	case size < 2.8:
		return '•'
	default:
		return '✦'
	}
}

type element struct {
	container *Container
	x, y      float64
	opacity   float64
	color     colorful.Color
	size      float64
}

func (e *element) Move(x, y float64)         { e.x, e.y = x, y }
func (e *element) SetOpacity(a float64)      { e.opacity = a }
func (e *element) SetColor(c colorful.Color) { e.color = c }
func (e *element) SetSize(px float64)        { e.size = px }

func (e *element) Remove() {
	e.container.mu.Lock()
	delete(e.container.elements, e)
	e.container.mu.Unlock()
}

type noStyle struct{}

func (noStyle) Remove() {}
