package renderer

import (
	"sync"

	rl "github.com/gen2brain/raylib-go/raylib"
	colorful "github.com/lucasb-eyer/go-colorful"

	"github.com/pthm-cable/starfield/fallback"
)

// SpriteContainer hosts fallback particles as flat circles drawn in screen
// space. The emulator updates sprites from its own goroutine, so every
// access goes through the container lock.
type SpriteContainer struct {
	mu      sync.Mutex
	width   float64
	height  float64
	sprites []*sprite
	styles  int
}

type sprite struct {
	owner   *SpriteContainer
	x, y    float64
	opacity float64
	size    float64
	color   colorful.Color
}

// NewSpriteContainer creates a container covering a width×height screen.
func NewSpriteContainer(width, height int) *SpriteContainer {
	return &SpriteContainer{width: float64(width), height: float64(height)}
}

// Resize changes the reported bounds. Existing sprites keep their position.
func (c *SpriteContainer) Resize(width, height int) {
	c.mu.Lock()
	c.width, c.height = float64(width), float64(height)
	c.mu.Unlock()
}

// Bounds implements fallback.Container.
func (c *SpriteContainer) Bounds() (float64, float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.width, c.height
}

// CreateElement implements fallback.Container.
func (c *SpriteContainer) CreateElement() (fallback.Element, error) {
	s := &sprite{owner: c, opacity: 1, size: 2, color: colorful.Color{R: 1, G: 1, B: 1}}
	c.mu.Lock()
	c.sprites = append(c.sprites, s)
	c.mu.Unlock()
	return s, nil
}

// InjectStyle implements fallback.Container. Sprites have no style sheet;
// the count is kept so Len can report leaks.
func (c *SpriteContainer) InjectStyle(string) (fallback.Style, error) {
	c.mu.Lock()
	c.styles++
	c.mu.Unlock()
	return styleFunc(func() {
		c.mu.Lock()
		c.styles--
		c.mu.Unlock()
	}), nil
}

// Len returns the live sprite and style counts.
func (c *SpriteContainer) Len() (sprites, styles int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sprites), c.styles
}

// Draw renders every sprite. Call between BeginDrawing and EndDrawing.
func (c *SpriteContainer) Draw() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, s := range c.sprites {
		col := rl.Color{
			R: channel(float32(s.color.R)),
			G: channel(float32(s.color.G)),
			B: channel(float32(s.color.B)),
			A: channel(float32(s.opacity)),
		}
		rl.DrawCircleV(rl.Vector2{X: float32(s.x), Y: float32(s.y)}, float32(s.size/2), col)
	}
}

func (s *sprite) Move(x, y float64) {
	s.owner.mu.Lock()
	s.x, s.y = x, y
	s.owner.mu.Unlock()
}

func (s *sprite) SetOpacity(a float64) {
	s.owner.mu.Lock()
	s.opacity = a
	s.owner.mu.Unlock()
}

func (s *sprite) SetColor(col colorful.Color) {
	s.owner.mu.Lock()
	s.color = col
	s.owner.mu.Unlock()
}

func (s *sprite) SetSize(px float64) {
	s.owner.mu.Lock()
	s.size = px
	s.owner.mu.Unlock()
}

func (s *sprite) Remove() {
	c := s.owner
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, o := range c.sprites {
		if o == s {
			c.sprites = append(c.sprites[:i], c.sprites[i+1:]...)
			return
		}
	}
}

type styleFunc func()

func (f styleFunc) Remove() { f() }
