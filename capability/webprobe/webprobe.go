//go:build js && wasm

// Package webprobe probes WebGL contexts from a browser canvas.
package webprobe

import (
	"fmt"
	"syscall/js"

	"github.com/pthm-cable/starfield/capability"
)

var contextNames = map[capability.API]string{
	capability.APIModern:       "webgl2",
	capability.APILegacy:       "webgl",
	capability.APIExperimental: "experimental-webgl",
}

// Prober implements capability.Prober against the page's document.
type Prober struct {
	document js.Value
}

// New returns a prober bound to the global document.
func New() *Prober {
	return &Prober{document: js.Global().Get("document")}
}

// Probe implements capability.Prober. The context is lost again before returning.
func (p *Prober) Probe(api capability.API) (lim capability.Limits, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %s: %v", capability.ErrNoContext, api, r)
		}
	}()

	canvas := p.document.Call("createElement", "canvas")
	ctx := canvas.Call("getContext", contextNames[api])
	if ctx.IsNull() || ctx.IsUndefined() {
		return capability.Limits{}, fmt.Errorf("%w: %s", capability.ErrNoContext, contextNames[api])
	}
	defer release(ctx)

	param := func(name string) int {
		v := ctx.Call("getParameter", ctx.Get(name))
		if v.Type() != js.TypeNumber {
			return 0
		}
		return v.Int()
	}

	lim = capability.Limits{
		MaxTextureSize:            param("MAX_TEXTURE_SIZE"),
		MaxVertexUniformVectors:   param("MAX_VERTEX_UNIFORM_VECTORS"),
		MaxFragmentUniformVectors: param("MAX_FRAGMENT_UNIFORM_VECTORS"),
		MaxVaryingVectors:         param("MAX_VARYING_VECTORS"),
		MaxVertexAttribs:          param("MAX_VERTEX_ATTRIBS"),
		Vendor:                    ctx.Call("getParameter", ctx.Get("VENDOR")).String(),
		Renderer:                  ctx.Call("getParameter", ctx.Get("RENDERER")).String(),
		Version:                   ctx.Call("getParameter", ctx.Get("VERSION")).String(),
	}
	if api == capability.APIModern {
		lim.MaxDrawBuffers = param("MAX_DRAW_BUFFERS")
	} else if ext := ctx.Call("getExtension", "WEBGL_draw_buffers"); ext.Truthy() {
		lim.MaxDrawBuffers = ctx.Call("getParameter", ext.Get("MAX_DRAW_BUFFERS_WEBGL")).Int()
	} else {
		lim.MaxDrawBuffers = 1
	}

	// Unmasked strings identify the actual GPU where the browser allows it
	if dbg := ctx.Call("getExtension", "WEBGL_debug_renderer_info"); dbg.Truthy() {
		lim.Vendor = ctx.Call("getParameter", dbg.Get("UNMASKED_VENDOR_WEBGL")).String()
		lim.Renderer = ctx.Call("getParameter", dbg.Get("UNMASKED_RENDERER_WEBGL")).String()
	}

	if exts := ctx.Call("getSupportedExtensions"); exts.Truthy() {
		for i := 0; i < exts.Length(); i++ {
			lim.Extensions = append(lim.Extensions, exts.Index(i).String())
		}
	}
	return lim, nil
}

func release(ctx js.Value) {
	if lose := ctx.Call("getExtension", "WEBGL_lose_context"); lose.Truthy() {
		lose.Call("loseContext")
	}
}

// UserAgent returns navigator.userAgent.
func UserAgent() string {
	return js.Global().Get("navigator").Get("userAgent").String()
}

// TouchSupported reports whether the page sees touch input.
func TouchSupported() bool {
	nav := js.Global().Get("navigator")
	if n := nav.Get("maxTouchPoints"); n.Type() == js.TypeNumber && n.Int() > 0 {
		return true
	}
	return js.Global().Get("ontouchstart").Type() != js.TypeUndefined
}
