package term

import (
	"math/rand"
	"testing"
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/pthm-cable/starfield/fallback"
	"github.com/pthm-cable/starfield/particles"
)

func newSimScreen(t *testing.T) tcell.SimulationScreen {
	t.Helper()
	s := tcell.NewSimulationScreen("")
	if err := s.Init(); err != nil {
		t.Fatalf("screen init: %v", err)
	}
	s.SetSize(80, 24)
	t.Cleanup(s.Fini)
	return s
}

func TestContainerHostsEmulator(t *testing.T) {
	screen := newSimScreen(t)
	c := New(screen)

	opts := fallback.Options{
		Count:      40,
		SizeRange:  particles.Range{Min: 1, Max: 3},
		SpeedRange: particles.Range{Min: 1, Max: 4},
		LifeRange:  particles.Range{Min: 1, Max: 2},
		MaxOpacity: 1,
		Tick:       5 * time.Millisecond,
	}
	e, err := fallback.New(c, opts, rand.New(rand.NewSource(3)), nil)
	if err != nil {
		t.Fatal(err)
	}
	if c.Len() != 40 {
		t.Fatalf("expected 40 elements, got %d", c.Len())
	}

	w, h := c.Bounds()
	if w != 80 || h != 24 {
		t.Errorf("bounds = %vx%v, want 80x24", w, h)
	}

	if err := e.Resize(10); err != nil {
		t.Fatal(err)
	}
	if c.Len() != 10 {
		t.Errorf("expected 10 elements after shrink, got %d", c.Len())
	}

	e.Stop()
	if c.Len() != 0 {
		t.Errorf("expected no elements after stop, got %d", c.Len())
	}
}

func TestFlushDrawsStatus(t *testing.T) {
	screen := newSimScreen(t)
	c := New(screen)
	c.SetStatus("fallback")
	c.Flush()

	_, h := screen.Size()
	if got, _, _, _ := screen.GetContent(0, h-1); got != 'f' {
		t.Errorf("expected status at bottom row, got %q", got)
	}
}

func TestGlyphBySize(t *testing.T) {
	tests := []struct {
		size float64
		want rune
	}{
		{1, '.'},
		{2, '·'},
		{2.5, '•'},
		{3, '✦'},
	}
	for _, tt := range tests {
		if got := glyph(tt.size); got != tt.want {
			t.Errorf("glyph(%v) = %q, want %q", tt.size, got, tt.want)
		}
	}
}
