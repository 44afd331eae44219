package device

import (
	"testing"
	"time"

	"github.com/pthm-cable/starfield/config"
)

const (
	iphoneUA        = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 Mobile/15E148"
	ipadUA          = "Mozilla/5.0 (iPad; CPU OS 17_0 like Mac OS X) AppleWebKit/605.1.15"
	androidTabletUA = "Mozilla/5.0 (Linux; Android 14; SM-X710) AppleWebKit/537.36 Chrome/120.0 Safari/537.36"
	pixelUA         = "Mozilla/5.0 (Linux; Android 14; Pixel 8) AppleWebKit/537.36 Chrome/120.0 Mobile Safari/537.36"
	desktopUA       = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 Chrome/120.0 Safari/537.36"
)

var bp = Breakpoints{Mobile: 768, Tablet: 1024}

func TestClassify(t *testing.T) {
	tests := []struct {
		name  string
		width int
		env   Environment
		want  Type
	}{
		{"narrow desktop browser", 600, Environment{UserAgent: desktopUA}, Mobile},
		{"mobile breakpoint inclusive", 768, Environment{}, Mobile},
		{"tablet width", 900, Environment{UserAgent: desktopUA}, Tablet},
		{"tablet breakpoint inclusive", 1024, Environment{}, Tablet},
		{"desktop width", 1920, Environment{UserAgent: desktopUA}, Desktop},
		{"wide iPad with touch", 1366, Environment{UserAgent: ipadUA, Touch: true}, Tablet},
		{"landscape phone with touch", 932, Environment{UserAgent: iphoneUA, Touch: true}, Mobile},
		{"android tablet with touch", 1280, Environment{UserAgent: androidTabletUA, Touch: true}, Tablet},
		{"android phone with touch", 915, Environment{UserAgent: pixelUA, Touch: true}, Mobile},
		{"phone UA without touch uses width", 1920, Environment{UserAgent: iphoneUA}, Desktop},
		{"touch laptop", 1920, Environment{UserAgent: desktopUA, Touch: true}, Desktop},
		{"narrow iPad stays mobile", 700, Environment{UserAgent: ipadUA, Touch: true}, Mobile},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := Classify(tc.width, tc.env, bp); got != tc.want {
				t.Errorf("Classify(%d) = %s, want %s", tc.width, got, tc.want)
			}
			// Pure function: repeated calls agree.
			if again := Classify(tc.width, tc.env, bp); again != Classify(tc.width, tc.env, bp) {
				t.Error("Classify is not deterministic")
			}
		})
	}
}

type fakeHost struct{ v Viewport }

func (h *fakeHost) measure() Viewport { return h.v }

func newAdapter(t *testing.T, host *fakeHost, env Environment) *Adapter {
	t.Helper()
	c := config.Default()
	a, err := NewAdapter(c.Device, c.Derived.OrientationSettle, env, host.measure, nil)
	if err != nil {
		t.Fatal(err)
	}
	return a
}

func TestAdapterParticleCount(t *testing.T) {
	tests := []struct {
		width int
		base  int
		want  int
	}{
		{400, 1000, 300},
		{900, 1000, 600},
		{1920, 1000, 1000},
		{400, 7, 2}, // floor(2.1)
	}
	for _, tc := range tests {
		a := newAdapter(t, &fakeHost{v: Viewport{tc.width, 800}}, Environment{})
		if got := a.AdaptParticleCount(tc.base); got != tc.want {
			t.Errorf("width %d: AdaptParticleCount(%d) = %d, want %d", tc.width, tc.base, got, tc.want)
		}
	}
}

func TestAdapterResizeNotifies(t *testing.T) {
	host := &fakeHost{v: Viewport{1920, 1080}}
	a := newAdapter(t, host, Environment{})
	if a.Type() != Desktop || a.Config().Quality != "HIGH" {
		t.Fatalf("initial = %s %+v", a.Type(), a.Config())
	}

	var changes []Change
	a.OnChange(func(ch Change) { changes = append(changes, ch) })

	if a.Resize(Viewport{1600, 900}) {
		t.Error("desktop to desktop should not report a change")
	}
	if !a.Resize(Viewport{800, 600}) {
		t.Error("desktop to tablet should report a change")
	}
	if len(changes) != 1 || changes[0].From != Desktop || changes[0].To != Tablet || changes[0].Config.MaxParticles != 6000 {
		t.Errorf("changes = %+v", changes)
	}
}

func TestAdapterOrientationSettle(t *testing.T) {
	host := &fakeHost{v: Viewport{1024, 1366}}
	a := newAdapter(t, host, Environment{UserAgent: desktopUA})
	if a.Type() != Tablet {
		t.Fatalf("initial type = %s, want TABLET", a.Type())
	}

	now := time.Unix(100, 0)
	a.OrientationChanged(now)
	// The host has not resized yet when the event fires.
	host.v = Viewport{1366, 1024}

	if a.Update(now.Add(100 * time.Millisecond)) {
		t.Fatal("re-measured before the settle delay")
	}
	if a.Type() != Tablet {
		t.Fatal("type changed before the settle delay")
	}
	if !a.Update(now.Add(150 * time.Millisecond)) {
		t.Fatal("did not re-measure after the settle delay")
	}
	if a.Type() != Desktop || !a.Viewport().Landscape() {
		t.Errorf("after settle: type %s viewport %+v", a.Type(), a.Viewport())
	}
	if a.Pending() || a.Update(now.Add(time.Second)) {
		t.Error("re-measure should run once")
	}
}

func TestAdapterOrientationDebounce(t *testing.T) {
	host := &fakeHost{v: Viewport{1920, 1080}}
	a := newAdapter(t, host, Environment{})
	now := time.Unix(100, 0)

	a.OrientationChanged(now)
	a.OrientationChanged(now.Add(100 * time.Millisecond))
	if a.Update(now.Add(200 * time.Millisecond)) {
		t.Error("second change should push the deadline back")
	}
	if !a.Update(now.Add(250 * time.Millisecond)) {
		t.Error("expected re-measure at the pushed deadline")
	}
}

func TestAdapterCallbackPanicAndDispose(t *testing.T) {
	host := &fakeHost{v: Viewport{1920, 1080}}
	a := newAdapter(t, host, Environment{})

	var calls int
	a.OnChange(func(Change) { panic("boom") })
	a.OnChange(func(Change) { calls++ })
	a.Resize(Viewport{500, 800})
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}

	a.OrientationChanged(time.Unix(0, 0))
	a.Dispose()
	if a.Pending() {
		t.Error("Dispose should cancel the pending re-measure")
	}
	a.Resize(Viewport{1920, 1080})
	if calls != 1 {
		t.Error("callback fired after Dispose")
	}
}

func TestTableFromConfigMissingType(t *testing.T) {
	c := config.Default().Device
	delete(c.Types, "TABLET")
	if _, err := TableFromConfig(c); err == nil {
		t.Error("expected an error for a missing device type")
	}
}
