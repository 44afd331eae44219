// Shader debug tool - renders one backdrop frame (background shader plus every
// layer's particle material) to a PNG file for inspection.
//
// Usage: go run ./cmd/shaderdebug -theme ember -quality ULTRA -out debug.png
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"time"

	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/starfield/camera"
	"github.com/pthm-cable/starfield/config"
	"github.com/pthm-cable/starfield/layer"
	"github.com/pthm-cable/starfield/quality"
	"github.com/pthm-cable/starfield/renderer"
	"github.com/pthm-cable/starfield/renderopt"
	"github.com/pthm-cable/starfield/theme"
)

func main() {
	configPath := flag.String("config", "", "Config YAML (empty = use defaults)")
	themeName := flag.String("theme", "", "Theme to render (empty = config default)")
	levelName := flag.String("quality", "HIGH", "Quality level: LOW, MEDIUM, HIGH or ULTRA")
	at := flag.Float64("time", 0, "Elapsed seconds passed to the shaders")
	outPath := flag.String("out", "debug.png", "Output PNG path")
	width := flag.Int("width", 1024, "Render width")
	height := flag.Int("height", 576, "Render height")
	seed := flag.Int64("seed", 1, "RNG seed for particle generation")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fail("failed to load config: %v", err)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	level, err := quality.ParseLevel(*levelName)
	if err != nil {
		fail("%v", err)
	}
	table, err := quality.NewTable(cfg.Quality)
	if err != nil {
		fail("invalid quality table: %v", err)
	}
	qc, err := table.Lookup(level)
	if err != nil {
		fail("%v", err)
	}

	themes, err := theme.NewManager(cfg.Theme, 0, logger)
	if err != nil {
		fail("invalid themes: %v", err)
	}
	if *themeName != "" {
		// A zero-length transition completes on the first update
		now := time.Now()
		if err := themes.Transition(*themeName, 0, now); err != nil {
			fail("%v", err)
		}
		themes.Update(now)
	}
	colors := themes.Current()

	presets, err := layer.Presets(cfg.Layers)
	if err != nil {
		fail("invalid layers: %v", err)
	}

	// Initialize raylib with hidden window
	rl.SetConfigFlags(rl.FlagWindowHidden)
	rl.InitWindow(int32(*width), int32(*height), "Shader Debug")
	defer rl.CloseWindow()

	provider := renderopt.NewProvider(renderer.NewAllocator(false, logger), 0, nil, logger)
	defer provider.Close()

	rng := rand.New(rand.NewSource(*seed))
	settings := qc.LayerSettings()
	var layers []*layer.Layer
	for _, p := range presets {
		l, err := layer.New(p, int(float64(settings.ParticleCount)*p.Share), provider, rng, logger)
		if err != nil {
			fail("creating layer %s: %v", p.Name, err)
		}
		defer l.Dispose()
		l.ApplyQuality(settings, nil)
		l.Recolor(theme.Tint(colors.Role(p.ThemeRole)))
		if err := l.UpdateUniforms(*at, [2]float32{}); err != nil {
			fail("layer %s uniforms: %v", p.Name, err)
		}
		layers = append(layers, l)
	}

	cam := camera.New(float32(*width), float32(*height), float32(cfg.Screen.FOV), float32(cfg.Screen.CameraDistance))
	background := renderer.NewBackgroundRenderer(int32(*width), int32(*height))
	defer background.Unload()
	particleRenderer := renderer.NewParticleRenderer(float32(cfg.Screen.CameraDistance))

	target := rl.LoadRenderTexture(int32(*width), int32(*height))
	defer rl.UnloadRenderTexture(target)

	rl.BeginTextureMode(target)
	rl.ClearBackground(rl.Black)
	background.Draw(float32(*at), colors.Background, colors.Glow)
	particleRenderer.Draw(cam, layers)
	rl.EndTextureMode()

	// Render textures are stored upside down
	img := rl.LoadImageFromTexture(target.Texture)
	rl.ImageFlipVertical(img)
	success := rl.ExportImage(*img, *outPath)
	rl.UnloadImage(img)

	if !success {
		fail("failed to export image")
	}
	total := 0
	for _, l := range layers {
		total += l.Count()
	}
	fmt.Printf("Backdrop rendered to: %s (%dx%d, %s, theme %s, %d particles)\n",
		*outPath, *width, *height, level, themes.Name(), total)
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
