package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"time"

	"kuwahara/internal/batch"
	"kuwahara/pkg/config"
	"kuwahara/pkg/kuwahara"
)

func main() {
	// Parse command line arguments
	inputPath := flag.String("input", "", "Image file or directory of images to filter")
	outputPath := flag.String("output", "filtered", "Output file (single input) or directory")
	configPath := flag.String("config", "kuwahara.yaml", "YAML configuration file (defaults are used if it does not exist)")
	method := flag.String("method", "", "Filter method: mean or gaussian")
	radius := flag.String("radius", "", "Quadrant radius in pixels (integer >= 1)")
	sigma := flag.Float64("sigma", -1, "Gaussian sigma; 0 derives it from the radius")
	measure := flag.String("measure", "", "Measurement channel: gray, gray-rgb, hsv-value, lab-lightness, channel:N")
	precision := flag.String("precision", "", "Working precision: float32 or float64")
	border := flag.String("border", "", "Border policy: reflect101, reflect or replicate")
	numCores := flag.Int("cores", 0, "Number of CPU cores to use (default: from config)")
	saveIntermediary := flag.Bool("save-intermediary", false, "Save measurement channels and quadrant selection maps")
	intermediaryDir := flag.String("intermediary-dir", "", "Directory to save intermediary results")
	metrics := flag.Bool("metrics", false, "Report quality metrics for every image")
	verbose := flag.Bool("verbose", false, "Enable debug logging from the filter")
	writeConfig := flag.String("write-config", "", "Write the default configuration to this path and exit")
	flag.Parse()

	if *writeConfig != "" {
		if err := config.CreateDefaultConfigFile(*writeConfig); err != nil {
			log.Fatalf("Failed to write config: %v", err)
		}
		fmt.Printf("Default configuration written to %s\n", *writeConfig)
		return
	}

	// Validate inputs
	if *inputPath == "" {
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Flags that were set explicitly override the configuration file
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "method":
			cfg.Filter.Method = *method
		case "radius":
			r, err := strconv.ParseFloat(*radius, 64)
			if err != nil {
				log.Fatalf("Invalid radius %q: %v", *radius, err)
			}
			cfg.Filter.Radius = r
		case "sigma":
			cfg.Filter.Sigma = *sigma
		case "measure":
			cfg.Filter.Measurement = *measure
		case "precision":
			cfg.Filter.Precision = *precision
		case "border":
			cfg.Filter.Border = *border
		case "cores":
			cfg.Processing.NumCores = *numCores
		case "save-intermediary":
			cfg.Output.SaveIntermediaryResults = *saveIntermediary
		case "intermediary-dir":
			cfg.Output.IntermediaryDir = *intermediaryDir
		case "metrics":
			cfg.Output.ReportMetrics = *metrics
		case "verbose":
			cfg.Output.Verbose = *verbose
		}
	})

	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	opts, err := cfg.FilterOptions()
	if err != nil {
		log.Fatalf("Invalid filter options: %v", err)
	}

	if cfg.Output.Verbose {
		kuwahara.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})))
	}

	fmt.Println("================================")
	fmt.Println("KUWAHARA EDGE-PRESERVING SMOOTHING")
	fmt.Printf("Method: %s, radius: %d, measurement: %s\n", opts.Method, opts.Radius, cfg.Filter.Measurement)
	fmt.Println("================================")

	params := &batch.Params{
		InputPath:               *inputPath,
		OutputPath:              *outputPath,
		NumCores:                cfg.Processing.NumCores,
		Options:                 opts,
		Format:                  cfg.Output.Format,
		JPEGQuality:             cfg.Output.JPEGQuality,
		SaveIntermediaryResults: cfg.Output.SaveIntermediaryResults,
		IntermediaryDir:         cfg.Output.IntermediaryDir,
		ReportMetrics:           cfg.Output.ReportMetrics,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	processor := batch.NewProcessor(params)
	startTime := time.Now()
	processErr := processor.Process(ctx)
	processingTime := time.Since(startTime)

	outcomes := processor.Outcomes()
	succeeded := 0
	for _, o := range outcomes {
		if o.Err == nil {
			succeeded++
		}
	}
	fmt.Printf("\nFiltered %d of %d image(s) in %.2f seconds\n", succeeded, len(outcomes), processingTime.Seconds())

	if cfg.Output.ReportMetrics {
		for _, o := range outcomes {
			if o.Metrics == nil {
				continue
			}
			m := o.Metrics
			fmt.Printf("\n%s\n", o.Frame.Filename)
			fmt.Printf("  RMSE: %.6f  PSNR: %.2f dB  SSIM: %.3f\n", m.RMSE, m.PSNR, m.SSIM)
			fmt.Printf("  Variance reduction: %.3f  Noise reduction: %.3f\n", m.VarianceReduction, m.NoiseReduction)
			fmt.Printf("  Edge preservation: %.3f  Entropy difference: %.3f\n", m.EdgePreservation, m.EntropyDiff)
		}

		if avg, count := processor.AverageMetrics(); count > 1 {
			fmt.Printf("\nAverage over %d images:\n", count)
			fmt.Printf("=======================================\n")
			fmt.Printf("Root Mean Square Error (RMSE): %.6f\n", avg.RMSE)
			fmt.Printf("Peak Signal to Noise Ratio (PSNR): %.2f dB\n", avg.PSNR)
			fmt.Printf("Structural Similarity Index (SSIM): %.3f\n", avg.SSIM)
			fmt.Printf("Edge Preservation: %.3f\n", avg.EdgePreservation)
			fmt.Printf("Variance Reduction: %.3f\n", avg.VarianceReduction)
			fmt.Printf("Noise Reduction: %.3f\n", avg.NoiseReduction)
		}
	}

	if cfg.Output.SaveIntermediaryResults {
		fmt.Println("\nIntermediary results saved to:")
		fmt.Printf("%s\n", cfg.Output.IntermediaryDir)
		fmt.Println("- measurement: Channel the local variances were computed on")
		fmt.Println("- selection: Winning quadrant per pixel")
	}

	if processErr != nil {
		log.Fatalf("Filtering failed: %v", processErr)
	}
}
