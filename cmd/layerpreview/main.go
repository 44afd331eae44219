// Layer preview tool - interactive tuning of a custom layer with sliders.
// The panel prints the matching layers.custom YAML entry.
//
// Usage: go run ./cmd/layerpreview
package main

import (
	"fmt"
	"math/rand"
	"strings"

	rl "github.com/gen2brain/raylib-go/raylib"
	gui "github.com/gen2brain/raylib-go/raygui"

	"github.com/pthm-cable/starfield/camera"
	"github.com/pthm-cable/starfield/colors"
	"github.com/pthm-cable/starfield/layer"
	"github.com/pthm-cable/starfield/particles"
)

const (
	windowWidth  = 1100
	windowHeight = 760
	previewSize  = 600
	panelWidth   = windowWidth - previewSize - 30
)

// LayerParams holds the tunable part of a custom layer.
type LayerParams struct {
	Distribution    particles.Distribution
	Palette         int
	Count           int
	DepthMin        float32
	DepthMax        float32
	DepthBase       float32
	DepthMultiplier float32
	BrightnessBase  float32
	BrightnessMult  float32
	SizeMin         float32
	SizeMax         float32
	Seed            int64
}

func defaultParams(palettes []string) LayerParams {
	fg := layer.ForegroundPreset().Recipe
	palette := 0
	for i, name := range palettes {
		if name == "energy" {
			palette = i
		}
	}
	return LayerParams{
		Distribution:    fg.Distribution,
		Palette:         palette,
		Count:           3000,
		DepthMin:        float32(fg.DepthRange.Min),
		DepthMax:        float32(fg.DepthRange.Max),
		DepthBase:       float32(fg.Config.DepthBase),
		DepthMultiplier: float32(fg.Config.DepthMultiplier),
		BrightnessBase:  float32(fg.Config.BrightnessBase),
		BrightnessMult:  float32(fg.Config.BrightnessMultiplier),
		SizeMin:         float32(fg.SizeRange.Min),
		SizeMax:         float32(fg.SizeRange.Max),
		Seed:            12345,
	}
}

// recipe builds the generation recipe for p, starting from the foreground preset.
func recipe(p LayerParams, palettes []string) particles.Recipe {
	r := layer.ForegroundPreset().Recipe
	r.Distribution = p.Distribution
	r.DepthRange = particles.Range{Min: float64(p.DepthMin), Max: float64(p.DepthMax)}
	r.SizeRange = particles.Range{Min: float64(p.SizeMin), Max: float64(p.SizeMax)}
	r.Config.DepthBase = float64(p.DepthBase)
	r.Config.DepthMultiplier = float64(p.DepthMultiplier)
	r.Config.BrightnessBase = float64(p.BrightnessBase)
	r.Config.BrightnessMultiplier = float64(p.BrightnessMult)
	if pal, err := colors.Palette(palettes[p.Palette]); err == nil {
		r.Color = particles.PaletteColors(pal)
	}
	return r
}

// slider draws a labelled slider and returns the new value.
func slider(x float32, y *float32, label, minText, maxText string, value, min, max float32, format string) float32 {
	rl.DrawText(label, int32(x), int32(*y), 14, rl.Gray)
	*y += 18
	v := gui.SliderBar(
		rl.Rectangle{X: x, Y: *y, Width: float32(panelWidth - 80), Height: 20},
		minText, maxText,
		value, min, max,
	)
	rl.DrawText(fmt.Sprintf(format, value), int32(x+float32(panelWidth-70)), int32(*y+2), 16, rl.DarkGray)
	*y += 35
	return v
}

func main() {
	rl.InitWindow(windowWidth, windowHeight, "Layer Preview")
	defer rl.CloseWindow()
	rl.SetTargetFPS(30)

	palettes := colors.PaletteNames()
	params := defaultParams(palettes)
	cam := camera.New(previewSize, previewSize, 60, 220)

	var buf *particles.Buffer
	var genErr error
	needsRegen := true

	for !rl.WindowShouldClose() {
		if needsRegen {
			rng := rand.New(rand.NewSource(params.Seed))
			buf, genErr = particles.Generate(recipe(params, palettes), params.Count, rng)
			needsRegen = false
		}

		// Drag in the preview to orbit, wheel to zoom
		mouse := rl.GetMousePosition()
		if mouse.X < previewSize+10 {
			if rl.IsMouseButtonDown(rl.MouseLeftButton) {
				d := rl.GetMouseDelta()
				cam.Orbit(d.X, d.Y)
			}
			if wheel := rl.GetMouseWheelMove(); wheel != 0 {
				cam.ZoomBy(1 + wheel*0.1)
			}
		}

		rl.BeginDrawing()
		rl.ClearBackground(rl.RayWhite)

		// Preview
		rl.DrawRectangle(10, 10, previewSize, previewSize, rl.Black)
		var depthSum float64
		if buf != nil {
			for i := 0; i < buf.Len(); i++ {
				sx, sy, ok := cam.WorldToScreen(buf.Position(i))
				if !ok || sx < 0 || sy < 0 || sx >= previewSize || sy >= previewSize {
					continue
				}
				c := buf.Color(i)
				col := rl.NewColor(uint8(c[0]*255), uint8(c[1]*255), uint8(c[2]*255), 255)
				r := buf.Sizes[i] * 0.5
				if r < 0.5 {
					r = 0.5
				}
				rl.DrawCircleV(rl.Vector2{X: sx + 10, Y: sy + 10}, r, col)
				depthSum += float64(buf.Depths[i])
			}
		}
		rl.DrawRectangleLines(10, 10, previewSize, previewSize, rl.DarkGray)

		statsY := int32(previewSize + 25)
		if genErr != nil {
			rl.DrawText(genErr.Error(), 15, statsY, 16, rl.Red)
		} else if buf != nil && buf.Len() > 0 {
			rl.DrawText(fmt.Sprintf("Particles: %d  Mean depth factor: %.3f", buf.Len(), depthSum/float64(buf.Len())),
				15, statsY, 16, rl.DarkGray)
		}
		rl.DrawText("Drag to orbit, wheel to zoom", 15, statsY+20, 14, rl.Gray)

		// Control panel
		panelX := float32(previewSize + 20)
		panelY := float32(10)

		rl.DrawText("Custom Layer Parameters", int32(panelX), int32(panelY), 20, rl.DarkGray)
		panelY += 35

		if gui.Button(rl.Rectangle{X: panelX, Y: panelY, Width: 200, Height: 26}, "Distribution: "+params.Distribution.String()) {
			params.Distribution = (params.Distribution + 1) % (particles.GalaxyArm + 1)
			needsRegen = true
		}
		if gui.Button(rl.Rectangle{X: panelX + 210, Y: panelY, Width: 190, Height: 26}, "Palette: "+palettes[params.Palette]) {
			params.Palette = (params.Palette + 1) % len(palettes)
			needsRegen = true
		}
		panelY += 40

		old := params
		params.Count = int(slider(panelX, &panelY, "Particle count", "100", "20000", float32(params.Count), 100, 20000, "%.0f"))
		params.DepthMin = slider(panelX, &panelY, "Depth range min", "0", "500", params.DepthMin, 0, 500, "%.0f")
		params.DepthMax = slider(panelX, &panelY, "Depth range max", "10", "800", params.DepthMax, 10, 800, "%.0f")
		if params.DepthMax < params.DepthMin {
			params.DepthMax = params.DepthMin
		}
		params.DepthBase = slider(panelX, &panelY, "Depth base", "0", "1", params.DepthBase, 0, 1, "%.2f")
		params.DepthMultiplier = slider(panelX, &panelY, "Depth multiplier", "0", "1", params.DepthMultiplier, 0, 1, "%.2f")
		params.BrightnessBase = slider(panelX, &panelY, "Brightness base", "0", "1.5", params.BrightnessBase, 0, 1.5, "%.2f")
		params.BrightnessMult = slider(panelX, &panelY, "Brightness multiplier", "0", "1.5", params.BrightnessMult, 0, 1.5, "%.2f")
		params.SizeMin = slider(panelX, &panelY, "Size min", "0.1", "5", params.SizeMin, 0.1, 5, "%.1f")
		params.SizeMax = slider(panelX, &panelY, "Size max", "0.1", "10", params.SizeMax, 0.1, 10, "%.1f")
		if params.SizeMax < params.SizeMin {
			params.SizeMax = params.SizeMin
		}
		if params != old {
			needsRegen = true
		}

		if gui.Button(rl.Rectangle{X: panelX, Y: panelY, Width: 120, Height: 30}, "Random Seed") {
			params.Seed = int64(rl.GetRandomValue(0, 99999))
			needsRegen = true
		}
		if gui.Button(rl.Rectangle{X: panelX + 130, Y: panelY, Width: 120, Height: 30}, "Reset All") {
			params = defaultParams(palettes)
			cam.Reset()
			needsRegen = true
		}
		panelY += 45

		rl.DrawText("YAML Config:", int32(panelX), int32(panelY), 16, rl.DarkGray)
		panelY += 25
		yamlLines := yamlFor(params, palettes)
		for _, line := range yamlLines {
			rl.DrawText(line, int32(panelX), int32(panelY), 14, rl.Gray)
			panelY += 16
		}

		rl.DrawText("Press C to copy YAML to clipboard", int32(panelX), int32(windowHeight-30), 12, rl.LightGray)
		if rl.IsKeyPressed(rl.KeyC) {
			rl.SetClipboardText(strings.Join(yamlLines, "\n"))
		}

		rl.EndDrawing()
	}
}

// yamlFor renders params as a layers.custom entry.
func yamlFor(p LayerParams, palettes []string) []string {
	return []string{
		"layers:",
		"  custom:",
		"    - name: preview",
		"      share: 0.1",
		fmt.Sprintf("      distribution: %s", p.Distribution),
		fmt.Sprintf("      palette: %s", palettes[p.Palette]),
		fmt.Sprintf("      depth_range: [%.0f, %.0f]", p.DepthMin, p.DepthMax),
		fmt.Sprintf("      size_range: [%.1f, %.1f]", p.SizeMin, p.SizeMax),
		fmt.Sprintf("      depth_base: %.2f", p.DepthBase),
		fmt.Sprintf("      depth_multiplier: %.2f", p.DepthMultiplier),
		fmt.Sprintf("      brightness_base: %.2f", p.BrightnessBase),
		fmt.Sprintf("      brightness_multiplier: %.2f", p.BrightnessMult),
	}
}
