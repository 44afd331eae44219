package renderer

import (
	_ "embed"

	rl "github.com/gen2brain/raylib-go/raylib"
	colorful "github.com/lucasb-eyer/go-colorful"
)

//go:embed shaders/backdrop.fs
var backdropFS string

// BackgroundRenderer fills the screen with the theme background and a soft
// central glow.
type BackgroundRenderer struct {
	shader        rl.Shader
	timeLoc       int32
	resolutionLoc int32
	baseColorLoc  int32
	glowColorLoc  int32

	screenW, screenH float32
	initialized      bool
}

// NewBackgroundRenderer creates a new background renderer.
func NewBackgroundRenderer(screenW, screenH int32) *BackgroundRenderer {
	return &BackgroundRenderer{
		screenW: float32(screenW),
		screenH: float32(screenH),
	}
}

// Init initializes the renderer (must be called after raylib window is created).
func (b *BackgroundRenderer) Init() {
	if b.initialized {
		return
	}

	b.shader = rl.LoadShaderFromMemory("", backdropFS)
	b.timeLoc = rl.GetShaderLocation(b.shader, "time")
	b.resolutionLoc = rl.GetShaderLocation(b.shader, "resolution")
	b.baseColorLoc = rl.GetShaderLocation(b.shader, "baseColor")
	b.glowColorLoc = rl.GetShaderLocation(b.shader, "glowColor")
	b.setResolution()

	b.initialized = true
}

func (b *BackgroundRenderer) setResolution() {
	rl.SetShaderValue(b.shader, b.resolutionLoc, []float32{b.screenW, b.screenH}, rl.ShaderUniformVec2)
}

// Resize updates the fullscreen quad.
func (b *BackgroundRenderer) Resize(screenW, screenH int32) {
	b.screenW, b.screenH = float32(screenW), float32(screenH)
	if b.initialized {
		b.setResolution()
	}
}

// Draw renders the background in the given theme colours.
func (b *BackgroundRenderer) Draw(time float32, base, glow colorful.Color) {
	if !b.initialized {
		b.Init()
	}

	rl.SetShaderValue(b.shader, b.timeLoc, []float32{time}, rl.ShaderUniformFloat)
	rl.SetShaderValue(b.shader, b.baseColorLoc, vec3(base), rl.ShaderUniformVec3)
	rl.SetShaderValue(b.shader, b.glowColorLoc, vec3(glow), rl.ShaderUniformVec3)

	rl.BeginShaderMode(b.shader)
	rl.DrawRectangle(0, 0, int32(b.screenW), int32(b.screenH), rl.White)
	rl.EndShaderMode()
}

// Unload frees resources.
func (b *BackgroundRenderer) Unload() {
	if b.initialized {
		rl.UnloadShader(b.shader)
		b.initialized = false
	}
}

func vec3(c colorful.Color) []float32 {
	return []float32{float32(c.R), float32(c.G), float32(c.B)}
}
