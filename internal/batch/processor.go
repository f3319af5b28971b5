// Package batch runs the Kuwahara filter over a single image file or every
// image in a directory, writing the results and optional diagnostics.
package batch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"sync"

	"kuwahara/internal/imageio"
	"kuwahara/internal/models"
	"kuwahara/pkg/kuwahara"
	"kuwahara/pkg/quality"
	"kuwahara/pkg/visualization"
)

// Params holds the batch configuration
type Params struct {
	// InputPath is an image file or a directory of images
	InputPath string

	// OutputPath is the output file for a single input file, or the output
	// directory otherwise. A single input with an extensionless OutputPath
	// is written into that directory.
	OutputPath string

	// NumCores specifies how many CPU cores to use for parallel processing
	NumCores int

	// Options configures the filter itself
	Options kuwahara.Options

	// Format overrides the output encoder (png, jpg, bmp, tiff). Empty keeps
	// the input format where it can be encoded and falls back to png.
	Format string

	// JPEGQuality is used when writing JPEG files
	JPEGQuality int

	// SaveIntermediaryResults determines whether to save the measurement
	// channel and quadrant selection map of every image
	SaveIntermediaryResults bool

	// IntermediaryDir is where intermediary results are written
	IntermediaryDir string

	// ReportMetrics computes quality metrics for every image
	ReportMetrics bool

	// Progress receives step banners. Nil means standard output.
	Progress io.Writer
}

// Processor filters a set of images concurrently
type Processor struct {
	params   *Params
	outMu    sync.Mutex
	out      io.Writer
	inputs   []string
	outcomes []models.Outcome
}

// NewProcessor creates a new processor with the provided parameters
func NewProcessor(params *Params) *Processor {
	out := params.Progress
	if out == nil {
		out = os.Stdout
	}
	return &Processor{params: params, out: out}
}

// Process runs the complete pipeline. Every image is attempted; failures
// are joined into the returned error and recorded on the outcomes.
func (p *Processor) Process(ctx context.Context) error {
	if p.params.SaveIntermediaryResults {
		if err := os.MkdirAll(p.params.IntermediaryDir, 0755); err != nil {
			return fmt.Errorf("failed to create intermediary directory: %w", err)
		}
	}

	p.printf("Step 1: Collecting input images...\n")
	if err := p.collectInputs(); err != nil {
		return fmt.Errorf("failed to collect inputs: %w", err)
	}
	p.printf("Found %d image(s)\n", len(p.inputs))

	p.printf("Step 2: Filtering images in parallel...\n")
	p.outcomes = p.filterInParallel(ctx)

	var errs []error
	for _, o := range p.outcomes {
		if o.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", filepath.Base(o.Frame.Filename), o.Err))
		}
	}
	return errors.Join(errs...)
}

// printf writes a progress line; workers share the writer
func (p *Processor) printf(format string, args ...any) {
	p.outMu.Lock()
	defer p.outMu.Unlock()
	fmt.Fprintf(p.out, format, args...)
}

// collectInputs resolves InputPath to a sorted list of image files
func (p *Processor) collectInputs() error {
	info, err := os.Stat(p.params.InputPath)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		if !imageio.IsSupported(p.params.InputPath) {
			return fmt.Errorf("unsupported image file %s", p.params.InputPath)
		}
		p.inputs = []string{p.params.InputPath}
		return nil
	}

	entries, err := os.ReadDir(p.params.InputPath)
	if err != nil {
		return err
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && imageio.IsSupported(e.Name()) {
			names = append(names, e.Name())
		}
	}
	if len(names) == 0 {
		return fmt.Errorf("no images found in input directory")
	}

	// Numbered frames sort by number, so frame_10 follows frame_9
	sort.Slice(names, func(i, j int) bool {
		numI, numJ := extractNumber(names[i]), extractNumber(names[j])
		if numI != numJ {
			return numI < numJ
		}
		return names[i] < names[j]
	})

	p.inputs = make([]string, len(names))
	for i, name := range names {
		p.inputs[i] = filepath.Join(p.params.InputPath, name)
	}
	return nil
}

// extractNumber extracts the numeric part from a filename
func extractNumber(filename string) int {
	base := filepath.Base(filename)
	numStr := ""
	for _, c := range base {
		if c >= '0' && c <= '9' {
			numStr += string(c)
		}
	}

	if numStr != "" {
		num, err := strconv.Atoi(numStr)
		if err == nil {
			return num
		}
	}
	return 0
}

// filterInParallel spreads the inputs over NumCores workers. Each worker
// filters its image single threaded when there are enough images to keep
// every core busy.
func (p *Processor) filterInParallel(ctx context.Context) []models.Outcome {
	numCores := p.params.NumCores
	if numCores <= 0 {
		numCores = runtime.NumCPU()
	}
	workers := min(numCores, len(p.inputs))

	opts := p.params.Options
	opts.Workers = max(1, numCores/workers)

	jobs := make(chan int)
	results := make(chan models.Outcome, len(p.inputs))

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				results <- p.processFrame(ctx, idx, opts)
			}
		}()
	}

	for idx := range p.inputs {
		jobs <- idx
	}
	close(jobs)
	wg.Wait()
	close(results)

	outcomes := make([]models.Outcome, len(p.inputs))
	for o := range results {
		outcomes[o.Frame.Index] = o
	}
	return outcomes
}

// processFrame loads, filters and writes one image
func (p *Processor) processFrame(ctx context.Context, idx int, opts kuwahara.Options) models.Outcome {
	path := p.inputs[idx]
	outcome := models.Outcome{Frame: &models.Frame{Index: idx, Filename: path}}

	frame, err := imageio.Load(path, idx)
	if err != nil {
		outcome.Err = err
		return outcome
	}
	outcome.Frame = frame

	res, err := kuwahara.AnalyzeContext(ctx, frame.Pixels, opts)
	if err != nil {
		outcome.Err = fmt.Errorf("failed to filter: %w", err)
		return outcome
	}
	outcome.Filtered = res.Image
	outcome.Selection = res.Selection
	outcome.Measurement = res.Measurement

	viewer := visualization.NewViewer(res.Selection, res.Measurement)
	kuwahara.Logger().Debug("batch: frame filtered",
		"file", filepath.Base(path), "shape", frame.Pixels.Shape(),
		"selection", viewer.SelectionSummary())

	outcome.OutputPath = p.outputPath(path)
	if err := imageio.SaveGrid(outcome.OutputPath, res.Image, p.params.JPEGQuality); err != nil {
		outcome.Err = err
		return outcome
	}
	p.printf("Filtered %s -> %s\n", filepath.Base(path), outcome.OutputPath)

	if p.params.SaveIntermediaryResults {
		if err := viewer.SaveAll(p.params.IntermediaryDir, idx); err != nil {
			p.printf("Warning: Failed to save intermediary results for %s: %v\n", filepath.Base(path), err)
		}
	}

	if p.params.ReportMetrics {
		m, err := quality.Compare(frame.Pixels, res.Image)
		if err != nil {
			outcome.Err = fmt.Errorf("failed to compute metrics: %w", err)
			return outcome
		}
		outcome.Metrics = &m
	}
	return outcome
}

// outputPath derives where the filtered version of input is written
func (p *Processor) outputPath(input string) string {
	ext := imageio.Extension(p.params.Format)
	if ext == "" {
		ext = strings.ToLower(filepath.Ext(input))
		switch ext {
		case ".png", ".jpg", ".jpeg", ".bmp", ".tif", ".tiff":
		default:
			ext = ".png"
		}
	}

	out := p.params.OutputPath
	single := len(p.inputs) == 1 && input == p.params.InputPath
	if single && filepath.Ext(out) != "" {
		return out
	}

	base := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
	if single {
		base += "_kuwahara"
	}
	return filepath.Join(out, base+ext)
}

// Outcomes returns the per image results in input order
func (p *Processor) Outcomes() []models.Outcome {
	return p.outcomes
}

// AverageMetrics averages the metrics of every image that has them. The
// second return value is the number of images averaged.
func (p *Processor) AverageMetrics() (quality.Metrics, int) {
	var avg quality.Metrics
	count := 0
	for _, o := range p.outcomes {
		if o.Metrics == nil {
			continue
		}
		m := o.Metrics
		avg.RMSE += m.RMSE
		avg.PSNR += m.PSNR
		avg.SSIM += m.SSIM
		avg.MI += m.MI
		avg.EntropyDiff += m.EntropyDiff
		avg.VarianceReduction += m.VarianceReduction
		avg.EdgePreservation += m.EdgePreservation
		avg.NoiseReduction += m.NoiseReduction
		count++
	}

	if count > 0 {
		n := float64(count)
		avg.RMSE /= n
		avg.PSNR /= n
		avg.SSIM /= n
		avg.MI /= n
		avg.EntropyDiff /= n
		avg.VarianceReduction /= n
		avg.EdgePreservation /= n
		avg.NoiseReduction /= n
	}
	return avg, count
}
