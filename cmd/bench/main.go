// Package main sweeps quality levels and particle counts, reports frame-rate
// stability per combination and recommends the best stable setting.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"time"

	"github.com/fatih/color"
	jsoniter "github.com/json-iterator/go"
	"github.com/olekukonko/tablewriter"

	"github.com/pthm-cable/starfield/benchmark"
	"github.com/pthm-cable/starfield/config"
	"github.com/pthm-cable/starfield/telemetry"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

func main() {
	// CLI flags
	configPath := flag.String("config", "", "Base config YAML file (empty = use defaults)")
	runnerName := flag.String("runner", "synthetic", "Frame source: synthetic (config cost model) or tick (headless frame loop)")
	duration := flag.Duration("duration", 0, "Sampling time per combination (0 = use config)")
	outputDir := flag.String("output-dir", "", "Directory for benchmark.csv and benchmark.json")
	jsonOut := flag.Bool("json", false, "Print the report as JSON instead of a table")
	seed := flag.Int64("seed", 42, "RNG seed for the tick runner")
	verbose := flag.Bool("v", false, "Log every run")
	flag.Parse()

	if err := config.Init(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	cfg := config.Cfg()

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	d := cfg.Derived.BenchmarkDuration
	if *duration > 0 {
		d = *duration
	}
	opts, err := benchmark.OptionsFromConfig(cfg.Benchmark, d)
	if err != nil {
		log.Fatalf("invalid benchmark config: %v", err)
	}

	var runner benchmark.Runner
	switch *runnerName {
	case "synthetic":
		runner = benchmark.SyntheticRunner{
			FPS:             cfg.Benchmark.SyntheticFPS,
			CostPerParticle: time.Duration(cfg.Benchmark.CostPerParticleUS * float64(time.Microsecond)),
		}
	case "tick":
		tr := newTickRunner(*configPath, *seed, logger)
		defer tr.Close()
		runner = tr
	default:
		log.Fatalf("unknown runner %q", *runnerName)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	start := time.Now()
	report, err := benchmark.New(runner, nil, opts, logger).Run(ctx)
	if err != nil {
		log.Printf("benchmark ended early: %v", err)
	}

	out, err := telemetry.NewOutputManager(*outputDir)
	if err != nil {
		log.Fatalf("failed to create output directory: %v", err)
	}
	defer out.Close()
	if err := out.WriteRecords("benchmark.csv", report.Results); err != nil {
		log.Printf("failed to write benchmark.csv: %v", err)
	}
	if *outputDir != "" {
		if err := writeJSON(filepath.Join(out.Dir(), "benchmark.json"), report); err != nil {
			log.Printf("failed to write benchmark.json: %v", err)
		}
	}

	if *jsonOut {
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			log.Fatalf("failed to encode report: %v", err)
		}
		fmt.Println(string(data))
		return
	}

	printTable(report, opts)
	printRecommendation(report.Recommendation)
	fmt.Printf("\n%d runs in %s\n", len(report.Results), time.Since(start).Round(time.Millisecond))
}

func writeJSON(path string, report benchmark.Report) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func printTable(report benchmark.Report, opts benchmark.Options) {
	ok := color.New(color.FgHiGreen, color.Bold).SprintFunc()
	bad := color.New(color.FgHiRed).SprintFunc()
	dim := color.New(color.FgHiBlack).SprintFunc()

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Level", "Particles", "Frames", "Avg FPS", "Min FPS", "Max FPS", "Memory MB", "Stable", "Score")
	for _, r := range report.Results {
		stable := bad("no")
		if r.Stable {
			stable = ok("yes")
		}
		avg := fmt.Sprintf("%.1f", r.AverageFPS)
		if r.AverageFPS < opts.MinAcceptableFPS {
			avg = bad(avg)
		}
		if err := table.Append([]string{
			r.Level,
			strconv.Itoa(r.ParticleCount),
			strconv.Itoa(r.Frames),
			avg,
			fmt.Sprintf("%.1f", r.MinFPS),
			fmt.Sprintf("%.1f", r.MaxFPS),
			dim(fmt.Sprintf("%.1f", r.MemoryMB)),
			stable,
			fmt.Sprintf("%.2f", r.Score),
		}); err != nil {
			log.Printf("failed to append row: %v", err)
			return
		}
	}
	if err := table.Render(); err != nil {
		log.Printf("failed to render table: %v", err)
	}
}

func printRecommendation(rec benchmark.Recommendation) {
	fmt.Println()
	if !rec.Found {
		color.New(color.FgHiYellow, color.Bold).Println("No stable configuration found")
		fmt.Println(rec.Reason)
		return
	}
	color.New(color.FgHiMagenta, color.Bold, color.Underline).Println("Recommended setting")
	fmt.Printf("  level:     %s\n", color.New(color.FgHiBlue, color.Bold).Sprint(rec.Level))
	fmt.Printf("  particles: %s\n", color.New(color.FgHiBlue, color.Bold).Sprint(rec.ParticleCount))
	fmt.Printf("  avg fps:   %.1f\n", rec.AverageFPS)
	fmt.Printf("  score:     %.2f\n", rec.Score)
	fmt.Println(color.New(color.FgHiBlack).Sprint(rec.Reason))
}
