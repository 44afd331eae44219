package device

import (
	"math"
	"testing"
	"time"
)

func recorder(r *Recognizer) *[]Gesture {
	var got []Gesture
	r.OnGesture(func(g Gesture) { got = append(got, g) })
	return &got
}

func kinds(gs []Gesture) []GestureKind {
	out := make([]GestureKind, len(gs))
	for i, g := range gs {
		out[i] = g.Kind
	}
	return out
}

var g0 = time.Unix(500, 0)

func TestTapAndLongPress(t *testing.T) {
	tests := []struct {
		name string
		held time.Duration
		move float32
		want GestureKind
	}{
		{"quick tap", 100 * time.Millisecond, 0, Tap},
		{"tap with jitter", 100 * time.Millisecond, 5, Tap},
		{"long press", 500 * time.Millisecond, 0, LongPress},
		{"long press with jitter", 800 * time.Millisecond, 9, LongPress},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := NewRecognizer(10, 500*time.Millisecond, nil)
			got := recorder(r)

			r.Start(1, 100, 100, g0)
			if tc.move > 0 {
				r.Move(1, 100+tc.move, 100, g0.Add(tc.held/2))
			}
			r.End(1, g0.Add(tc.held))

			if len(*got) != 1 || (*got)[0].Kind != tc.want {
				t.Fatalf("gestures = %v, want [%s]", kinds(*got), tc.want)
			}
			if (*got)[0].Duration != tc.held {
				t.Errorf("Duration = %v, want %v", (*got)[0].Duration, tc.held)
			}
		})
	}
}

func TestPan(t *testing.T) {
	r := NewRecognizer(10, 500*time.Millisecond, nil)
	got := recorder(r)

	r.Start(1, 100, 100, g0)
	r.Move(1, 108, 100, g0.Add(10*time.Millisecond))
	if len(*got) != 0 {
		t.Fatalf("pan fired below the threshold: %v", kinds(*got))
	}
	r.Move(1, 130, 90, g0.Add(20*time.Millisecond))
	r.Move(1, 105, 100, g0.Add(30*time.Millisecond)) // back inside the threshold, still panning
	r.End(1, g0.Add(40*time.Millisecond))

	if k := kinds(*got); len(k) != 2 || k[0] != Pan || k[1] != Pan {
		t.Fatalf("gestures = %v, want two pans and no tap", k)
	}
	if p := (*got)[0]; p.DX != 30 || p.DY != -10 {
		t.Errorf("pan offset = (%v, %v), want (30, -10)", p.DX, p.DY)
	}
}

func TestPinch(t *testing.T) {
	r := NewRecognizer(10, 500*time.Millisecond, nil)
	got := recorder(r)

	r.Start(1, 100, 100, g0)
	r.Start(2, 200, 100, g0.Add(5*time.Millisecond))
	r.Move(2, 300, 100, g0.Add(20*time.Millisecond))

	if len(*got) != 1 || (*got)[0].Kind != Pinch {
		t.Fatalf("gestures = %v, want [pinch]", kinds(*got))
	}
	p := (*got)[0]
	if math.Abs(float64(p.Scale-2)) > 1e-6 {
		t.Errorf("Scale = %v, want 2", p.Scale)
	}
	if p.X != 200 || p.Y != 100 {
		t.Errorf("midpoint = (%v, %v), want (200, 100)", p.X, p.Y)
	}

	// Lifting both fingers is not a tap.
	r.End(1, g0.Add(30*time.Millisecond))
	r.End(2, g0.Add(40*time.Millisecond))
	if len(*got) != 1 {
		t.Errorf("gestures after release = %v", kinds(*got))
	}
}

func TestEvictedStartSuppressesGestures(t *testing.T) {
	r := NewRecognizer(10, 500*time.Millisecond, nil)
	got := recorder(r)

	r.Start(1, 100, 100, g0)
	r.Start(2, 200, 100, g0)
	r.End(1, g0.Add(10*time.Millisecond))

	// The remaining touch lost its pinch partner's baseline.
	r.Move(2, 400, 100, g0.Add(20*time.Millisecond))
	r.End(2, g0.Add(30*time.Millisecond))
	if len(*got) != 0 {
		t.Errorf("gestures = %v, want none", kinds(*got))
	}

	// Moves for untracked touches are ignored.
	r.Move(9, 0, 0, g0)
	r.End(9, g0)
	if len(*got) != 0 || r.Active() != 0 {
		t.Errorf("untracked touch produced %v, active %d", kinds(*got), r.Active())
	}
}

func TestThirdTouchIgnored(t *testing.T) {
	r := NewRecognizer(10, 500*time.Millisecond, nil)
	r.Start(1, 0, 0, g0)
	r.Start(2, 10, 0, g0)
	r.Start(3, 20, 0, g0)
	if r.Active() != 2 {
		t.Errorf("Active = %d, want 2", r.Active())
	}
}

func TestGestureCallbackPanicAndDispose(t *testing.T) {
	r := NewRecognizer(10, 500*time.Millisecond, nil)
	r.OnGesture(func(Gesture) { panic("boom") })
	got := recorder(r)

	r.Start(1, 0, 0, g0)
	r.End(1, g0)
	if len(*got) != 1 {
		t.Fatalf("gestures = %v, want one tap despite the panicking callback", kinds(*got))
	}

	r.Start(1, 0, 0, g0)
	r.Dispose()
	if r.Active() != 0 {
		t.Error("Dispose should drop tracked touches")
	}
	r.Start(2, 0, 0, g0)
	r.End(2, g0)
	if len(*got) != 1 {
		t.Error("callback fired after Dispose")
	}
}
