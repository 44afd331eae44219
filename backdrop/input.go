package backdrop

import (
	"time"

	"github.com/pthm-cable/starfield/device"
)

// SetPointer records the pointer in screen pixels. Layers receive it
// normalised to [-1, 1] on the next Tick.
func (b *Backdrop) SetPointer(x, y float32) {
	b.pointer = b.camera.NormalizePointer(x, y)
}

// Pointer returns the normalised pointer.
func (b *Backdrop) Pointer() [2]float32 { return b.pointer }

// TouchStart forwards a touch to the gesture recognizer.
func (b *Backdrop) TouchStart(id int, x, y float32, now time.Time) {
	if b.gestures == nil {
		return
	}
	b.panPrev = [2]float32{}
	b.pinchPrev = 1
	b.gestures.Start(id, x, y, now)
}

// TouchMove forwards a touch move.
func (b *Backdrop) TouchMove(id int, x, y float32, now time.Time) {
	if b.gestures == nil {
		return
	}
	b.gestures.Move(id, x, y, now)
}

// TouchEnd forwards a touch release.
func (b *Backdrop) TouchEnd(id int, now time.Time) {
	if b.gestures == nil {
		return
	}
	b.gestures.End(id, now)
}

// TouchCancel drops a touch without a gesture.
func (b *Backdrop) TouchCancel(id int) {
	if b.gestures == nil {
		return
	}
	b.gestures.Cancel(id)
}

// onGesture steers the camera: pan orbits, pinch zooms, long press resets,
// tap moves the pointer.
func (b *Backdrop) onGesture(g device.Gesture) {
	switch g.Kind {
	case device.Pan:
		b.camera.Orbit(g.DX-b.panPrev[0], g.DY-b.panPrev[1])
		b.panPrev = [2]float32{g.DX, g.DY}
		b.SetPointer(g.X, g.Y)
	case device.Pinch:
		if g.Scale > 0 && b.pinchPrev > 0 {
			b.camera.ZoomBy(g.Scale / b.pinchPrev)
		}
		b.pinchPrev = g.Scale
	case device.LongPress:
		b.camera.Reset()
	case device.Tap:
		b.SetPointer(g.X, g.Y)
	}
}

// Resize reclassifies the device and invalidates view-dependent caches.
func (b *Backdrop) Resize(width, height int) {
	if b.device == nil {
		return
	}
	if b.camera.Resize(float32(width), float32(height)) {
		b.render.Resize()
	}
	b.device.Resize(device.Viewport{Width: width, Height: height})
}

// OrientationChanged schedules a re-measure once the viewport settles.
func (b *Backdrop) OrientationChanged(now time.Time) {
	if b.device == nil {
		return
	}
	b.device.OrientationChanged(now)
}
