//go:build js && wasm

// Web entry point - runs the backdrop in a browser page. Capabilities are
// probed through real WebGL contexts and the DOM fallback hosts the particles
// in the element with id "starfield". GPU drawing needs a WebGL allocator,
// which this build does not ship, so the backdrop always runs the fallback.
//
// Build: GOOS=js GOARCH=wasm go build -o starfield.wasm ./cmd/web
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"syscall/js"
	"time"

	"github.com/pthm-cable/starfield/backdrop"
	"github.com/pthm-cable/starfield/capability/webprobe"
	"github.com/pthm-cable/starfield/config"
	"github.com/pthm-cable/starfield/device"
	"github.com/pthm-cable/starfield/fallback/dom"
	"github.com/pthm-cable/starfield/ux"
)

const containerID = "starfield"

func main() {
	cfg, err := config.Load("")
	if err != nil {
		slog.Error("failed to load config", "error", err)
		return
	}
	logger, err := cfg.Logging.NewLogger(os.Stdout)
	if err != nil {
		slog.Error("invalid logging config", "error", err)
		return
	}
	slog.SetDefault(logger)

	win := js.Global().Get("window")
	doc := js.Global().Get("document")
	viewport := func() device.Viewport {
		return device.Viewport{Width: win.Get("innerWidth").Int(), Height: win.Get("innerHeight").Int()}
	}

	host := backdrop.Host{
		Prober:   webprobe.New(),
		Notifier: bannerNotifier(doc),
		Measure:  viewport,
		Environment: device.Environment{
			UserAgent: webprobe.UserAgent(),
			Touch:     webprobe.TouchSupported(),
		},
	}
	if c, err := dom.New(containerID); err != nil {
		logger.Warn("fallback container missing", "id", containerID, "error", err)
	} else {
		host.Container = c
	}

	prefs := ux.NewSource(ux.DetectMedia(ux.FromConfig(cfg.UX)), logger)
	bd, err := backdrop.New(cfg, host, backdrop.Options{
		Logger: logger,
		UX:     prefs,
		Seed:   time.Now().UnixNano(),
	})
	if err != nil {
		logger.Error("failed to create backdrop", "error", err)
		return
	}

	statuses, err := bd.Start(context.Background())
	for _, s := range statuses {
		logger.Info("startup stage", "stage", s.Stage, "ok", s.OK, "detail", s.Detail)
	}
	if err != nil {
		logger.Error("backdrop failed to start", "error", err)
		return
	}

	var funcs []js.Func
	listen := func(target js.Value, event string, fn func(ev js.Value)) {
		f := js.FuncOf(func(_ js.Value, args []js.Value) any {
			fn(args[0])
			return nil
		})
		funcs = append(funcs, f)
		target.Call("addEventListener", event, f)
	}

	listen(win, "resize", func(js.Value) {
		v := viewport()
		bd.Resize(v.Width, v.Height)
	})
	listen(win, "orientationchange", func(js.Value) {
		bd.OrientationChanged(time.Now())
	})
	listen(win, "pointermove", func(ev js.Value) {
		bd.SetPointer(float32(ev.Get("clientX").Float()), float32(ev.Get("clientY").Float()))
	})
	touches := func(ev js.Value, fn func(id int, x, y float32)) {
		list := ev.Get("changedTouches")
		for i := 0; i < list.Length(); i++ {
			t := list.Index(i)
			fn(t.Get("identifier").Int(), float32(t.Get("clientX").Float()), float32(t.Get("clientY").Float()))
		}
	}
	listen(win, "touchstart", func(ev js.Value) {
		touches(ev, func(id int, x, y float32) { bd.TouchStart(id, x, y, time.Now()) })
	})
	listen(win, "touchmove", func(ev js.Value) {
		touches(ev, func(id int, x, y float32) { bd.TouchMove(id, x, y, time.Now()) })
	})
	listen(win, "touchend", func(ev js.Value) {
		touches(ev, func(id int, _, _ float32) { bd.TouchEnd(id, time.Now()) })
	})
	listen(win, "touchcancel", func(ev js.Value) {
		touches(ev, func(id int, _, _ float32) { bd.TouchCancel(id) })
	})

	done := make(chan struct{})
	listen(win, "pagehide", func(js.Value) {
		close(done)
	})

	// Frame loop on requestAnimationFrame; the callback re-arms itself
	var frame js.Func
	frame = js.FuncOf(func(js.Value, []js.Value) any {
		if bd.Disposed() {
			return nil
		}
		bd.Tick(time.Now())
		win.Call("requestAnimationFrame", frame)
		return nil
	})
	win.Call("requestAnimationFrame", frame)

	<-done
	bd.Dispose()
	prefs.Dispose()
	frame.Release()
	for _, f := range funcs {
		f.Release()
	}
	logger.Info("backdrop disposed")
}

// bannerNotifier shows notifications as a fixed div that removes itself
// after the notification's dismiss delay.
func bannerNotifier(doc js.Value) backdrop.Notifier {
	return backdrop.NotifierFunc(func(n backdrop.Notification) {
		body := doc.Get("body")
		if !body.Truthy() {
			return
		}
		div := doc.Call("createElement", "div")
		div.Set("className", "starfield-notification starfield-notification-"+n.Level.String())
		div.Set("textContent", n.Message)
		bg := "rgba(20,30,60,0.85)"
		if n.Level == backdrop.NotifyError {
			bg = "rgba(120,20,30,0.85)"
		}
		div.Set("style", fmt.Sprintf(
			"position:fixed;top:16px;right:16px;padding:8px 14px;border-radius:6px;color:#fff;font:14px sans-serif;z-index:1000;background:%s", bg))
		body.Call("appendChild", div)

		if n.Dismiss <= 0 {
			return
		}
		var remove js.Func
		remove = js.FuncOf(func(js.Value, []js.Value) any {
			div.Call("remove")
			remove.Release()
			return nil
		})
		js.Global().Call("setTimeout", remove, n.Dismiss.Milliseconds())
	})
}
