// Package glprobe probes native OpenGL contexts with GLFW.
//
// Every Probe creates a hidden window on the calling goroutine, which must be
// the locked main thread, reads the limits and destroys the window again.
package glprobe

import (
	"fmt"
	"strings"

	gl21 "github.com/go-gl/gl/v2.1/gl"
	gl41 "github.com/go-gl/gl/v4.1-core/gl"
	"github.com/go-gl/glfw/v3.3/glfw"

	"github.com/pthm-cable/starfield/capability"
)

type version struct {
	major, minor int
	core         bool
}

// Context versions tried for each rung, in order.
var rungs = map[capability.API][]version{
	capability.APIModern:       {{4, 1, true}, {3, 3, true}},
	capability.APILegacy:       {{2, 1, false}},
	capability.APIExperimental: {{0, 0, false}}, // whatever the driver offers
}

// Prober implements capability.Prober with GLFW.
type Prober struct{}

// New initialises GLFW. Call Close when done.
func New() (*Prober, error) {
	if err := glfw.Init(); err != nil {
		return nil, fmt.Errorf("glfw init: %w", err)
	}
	return &Prober{}, nil
}

// Close terminates GLFW.
func (p *Prober) Close() {
	glfw.Terminate()
}

// Probe implements capability.Prober.
func (p *Prober) Probe(api capability.API) (capability.Limits, error) {
	var lastErr error = capability.ErrNoContext
	for _, v := range rungs[api] {
		lim, err := probeVersion(v)
		if err == nil {
			return lim, nil
		}
		lastErr = err
	}
	return capability.Limits{}, lastErr
}

func probeVersion(v version) (capability.Limits, error) {
	glfw.DefaultWindowHints()
	glfw.WindowHint(glfw.Visible, glfw.False)
	if v.major > 0 {
		glfw.WindowHint(glfw.ContextVersionMajor, v.major)
		glfw.WindowHint(glfw.ContextVersionMinor, v.minor)
	}
	if v.core {
		glfw.WindowHint(glfw.OpenGLProfile, glfw.OpenGLCoreProfile)
		glfw.WindowHint(glfw.OpenGLForwardCompatible, glfw.True)
	}

	window, err := glfw.CreateWindow(16, 16, "probe", nil, nil)
	if err != nil {
		return capability.Limits{}, fmt.Errorf("%w: gl %d.%d: %v", capability.ErrNoContext, v.major, v.minor, err)
	}
	defer window.Destroy()
	window.MakeContextCurrent()
	defer glfw.DetachCurrentContext()

	if v.core {
		return modernLimits()
	}
	return legacyLimits()
}

func modernLimits() (capability.Limits, error) {
	if err := gl41.Init(); err != nil {
		return capability.Limits{}, fmt.Errorf("gl init: %w", err)
	}
	get := func(name uint32) int {
		var v int32
		gl41.GetIntegerv(name, &v)
		return int(v)
	}

	lim := capability.Limits{
		MaxTextureSize:            get(gl41.MAX_TEXTURE_SIZE),
		MaxVertexUniformVectors:   get(gl41.MAX_VERTEX_UNIFORM_VECTORS),
		MaxFragmentUniformVectors: get(gl41.MAX_FRAGMENT_UNIFORM_VECTORS),
		MaxVaryingVectors:         get(gl41.MAX_VARYING_VECTORS),
		MaxVertexAttribs:          get(gl41.MAX_VERTEX_ATTRIBS),
		MaxDrawBuffers:            get(gl41.MAX_DRAW_BUFFERS),
		Renderer:                  gl41.GoStr(gl41.GetString(gl41.RENDERER)),
		Vendor:                    gl41.GoStr(gl41.GetString(gl41.VENDOR)),
		Version:                   gl41.GoStr(gl41.GetString(gl41.VERSION)),
	}
	n := get(gl41.NUM_EXTENSIONS)
	for i := 0; i < n; i++ {
		lim.Extensions = append(lim.Extensions, gl41.GoStr(gl41.GetStringi(gl41.EXTENSIONS, uint32(i))))
	}
	return lim, nil
}

func legacyLimits() (capability.Limits, error) {
	if err := gl21.Init(); err != nil {
		return capability.Limits{}, fmt.Errorf("gl init: %w", err)
	}
	get := func(name uint32) int {
		var v int32
		gl21.GetIntegerv(name, &v)
		return int(v)
	}

	// GL 2.1 reports components, four per vector
	return capability.Limits{
		MaxTextureSize:            get(gl21.MAX_TEXTURE_SIZE),
		MaxVertexUniformVectors:   get(gl21.MAX_VERTEX_UNIFORM_COMPONENTS) / 4,
		MaxFragmentUniformVectors: get(gl21.MAX_FRAGMENT_UNIFORM_COMPONENTS) / 4,
		MaxVaryingVectors:         get(gl21.MAX_VARYING_FLOATS) / 4,
		MaxVertexAttribs:          get(gl21.MAX_VERTEX_ATTRIBS),
		MaxDrawBuffers:            get(gl21.MAX_DRAW_BUFFERS),
		Extensions:                strings.Fields(gl21.GoStr(gl21.GetString(gl21.EXTENSIONS))),
		Renderer:                  gl21.GoStr(gl21.GetString(gl21.RENDERER)),
		Vendor:                    gl21.GoStr(gl21.GetString(gl21.VENDOR)),
		Version:                   gl21.GoStr(gl21.GetString(gl21.VERSION)),
	}, nil
}
