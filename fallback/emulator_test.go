package fallback

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/starfield/particles"
)

type fakeElement struct {
	x, y    float64
	opacity float64
	color   colorful.Color
	size    float64
	removed bool
}

func (f *fakeElement) Move(x, y float64)         { f.x, f.y = x, y }
func (f *fakeElement) SetOpacity(a float64)      { f.opacity = a }
func (f *fakeElement) SetColor(c colorful.Color) { f.color = c }
func (f *fakeElement) SetSize(px float64)        { f.size = px }
func (f *fakeElement) Remove()                   { f.removed = true }

type fakeStyle struct{ removed bool }

func (s *fakeStyle) Remove() { s.removed = true }

type fakeContainer struct {
	w, h     float64
	elements []*fakeElement
	styles   []*fakeStyle
	flushes  int
}

func (c *fakeContainer) Bounds() (float64, float64) { return c.w, c.h }
func (c *fakeContainer) CreateElement() (Element, error) {
	el := &fakeElement{}
	c.elements = append(c.elements, el)
	return el, nil
}
func (c *fakeContainer) InjectStyle(string) (Style, error) {
	s := &fakeStyle{}
	c.styles = append(c.styles, s)
	return s, nil
}
func (c *fakeContainer) Flush() { c.flushes++ }

func (c *fakeContainer) live() []*fakeElement {
	var out []*fakeElement
	for _, el := range c.elements {
		if !el.removed {
			out = append(out, el)
		}
	}
	return out
}

var white = colorful.Color{R: 1, G: 1, B: 1}

func testOptions(count int) Options {
	return Options{
		Count:      count,
		Colors:     []colorful.Color{white},
		SizeRange:  particles.Range{Min: 1, Max: 3},
		SpeedRange: particles.Range{Min: 5, Max: 30},
		LifeRange:  particles.Range{Min: 2, Max: 6},
		MaxOpacity: 0.8,
		Tick:       time.Millisecond,
	}
}

func newTestEmulator(t *testing.T, count int) (*Emulator, *fakeContainer) {
	t.Helper()
	c := &fakeContainer{w: 800, h: 600}
	e, err := New(c, testOptions(count), rand.New(rand.NewSource(1)), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return e, c
}

func TestNewCreatesElements(t *testing.T) {
	e, c := newTestEmulator(t, 50)
	if e.Count() != 50 || len(c.elements) != 50 {
		t.Fatalf("expected 50 elements, got %d/%d", e.Count(), len(c.elements))
	}
	if len(c.styles) != 1 {
		t.Errorf("expected one injected style, got %d", len(c.styles))
	}
	for _, el := range c.elements {
		if el.x < 0 || el.x > 800 || el.y < 0 || el.y > 600 {
			t.Fatalf("element outside bounds: %+v", el)
		}
	}
}

func TestNewWithoutContainer(t *testing.T) {
	if _, err := New(nil, testOptions(5), rand.New(rand.NewSource(1)), nil); !errors.Is(err, ErrNoContainer) {
		t.Errorf("expected ErrNoContainer, got %v", err)
	}
}

func TestExpiredParticleResets(t *testing.T) {
	e, c := newTestEmulator(t, 20)

	// Expire every particle
	query := e.filter.Query()
	for query.Next() {
		_, _, life, _, _ := query.Get()
		life.Age = life.Max
	}

	e.advance(0.001)

	query = e.filter.Query()
	for query.Next() {
		pos, _, life, _, _ := query.Get()
		if life.Age != 0 {
			t.Errorf("expected life reset to 0, got %f", life.Age)
		}
		if pos.X < 0 || pos.X > c.w || pos.Y < 0 || pos.Y > c.h {
			t.Errorf("respawned outside bounds: %+v", *pos)
		}
	}
	if len(c.elements) != 20 {
		t.Errorf("respawn allocated elements: %d", len(c.elements))
	}
}

func TestAdvanceFadesAndWraps(t *testing.T) {
	e, c := newTestEmulator(t, 30)
	for i := 0; i < 200; i++ {
		e.advance(0.05)
	}
	for _, el := range c.live() {
		if el.opacity < 0 || el.opacity > 0.8+1e-9 {
			t.Fatalf("opacity %f outside [0, 0.8]", el.opacity)
		}
		if el.x < 0 || el.x >= c.w || el.y < 0 || el.y >= c.h {
			t.Fatalf("element escaped container: %f,%f", el.x, el.y)
		}
	}
	if c.flushes == 0 {
		t.Error("expected container flushes")
	}
}

func TestSetColorsRetints(t *testing.T) {
	e, c := newTestEmulator(t, 10)
	red := colorful.Color{R: 1}
	e.SetColors([]colorful.Color{red})

	if len(c.elements) != 10 {
		t.Fatalf("recolour allocated elements: %d", len(c.elements))
	}
	for _, el := range c.elements {
		if el.color != red {
			t.Fatalf("element not re-tinted: %+v", el.color)
		}
	}
}

func TestResize(t *testing.T) {
	e, c := newTestEmulator(t, 10)

	if err := e.Resize(15); err != nil {
		t.Fatal(err)
	}
	if e.Count() != 15 || len(c.live()) != 15 {
		t.Fatalf("grow: count=%d live=%d", e.Count(), len(c.live()))
	}

	if err := e.Resize(4); err != nil {
		t.Fatal(err)
	}
	if e.Count() != 4 || len(c.live()) != 4 {
		t.Fatalf("shrink: count=%d live=%d", e.Count(), len(c.live()))
	}
	// The oldest elements survive
	for i, el := range c.elements {
		if (i < 4) == el.removed {
			t.Errorf("element %d removed=%v", i, el.removed)
		}
	}
	alive := 0
	q := ecs.NewFilter1[Handle](e.world).Query()
	for q.Next() {
		alive++
	}
	if alive != 4 {
		t.Errorf("expected 4 entities, got %d", alive)
	}
}

func TestStopTearsDown(t *testing.T) {
	e, c := newTestEmulator(t, 25)
	e.Start(context.Background())
	time.Sleep(10 * time.Millisecond)
	e.Stop()
	e.Stop()

	if len(c.live()) != 0 {
		t.Errorf("expected all elements removed, %d left", len(c.live()))
	}
	if !c.styles[0].removed {
		t.Error("expected style removed")
	}
	if err := e.Resize(5); err == nil {
		t.Error("expected error resizing a stopped emulator")
	}
}
