// Package kuwahara implements the Kuwahara edge-preserving smoothing filter.
//
// Around every pixel four overlapping square windows of side radius+1 are
// examined, one per diagonal direction. The window whose measurement
// channel has the lowest variance wins and the pixel is replaced by that
// window's mean, for every channel at once. Flat regions are smoothed while
// edges survive because the window straddling an edge always has a high
// variance.
//
// The measurement channel defaults to the image itself for single channel
// input and to BT.601 luma of BGR input otherwise. Callers can pass an
// explicit channel or a colorspace.Extractor.
package kuwahara

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"kuwahara/pkg/colorspace"
	"kuwahara/pkg/convolve"
	"kuwahara/pkg/grid"
	"kuwahara/pkg/kernel"
)

// ErrInvalidArgument is returned for malformed images or parameters.
var ErrInvalidArgument = kernel.ErrInvalidArgument

// Re-exported so most callers only import this package.
const (
	Mean     = kernel.Mean
	Gaussian = kernel.Gaussian
)

// Precision is the floating point type statistics are accumulated in.
type Precision int

const (
	Float32 Precision = iota
	Float64
)

// String returns the configuration name of the precision.
func (p Precision) String() string {
	switch p {
	case Float32:
		return "float32"
	case Float64:
		return "float64"
	}
	return fmt.Sprintf("Precision(%d)", int(p))
}

// ParsePrecision maps "float32" or "float64" to a Precision. The empty
// string selects Float32.
func ParsePrecision(s string) (Precision, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "float32", "f32", "single":
		return Float32, nil
	case "float64", "f64", "double":
		return Float64, nil
	}
	return 0, fmt.Errorf("%w: unknown precision %q", ErrInvalidArgument, s)
}

// Options configures a filter run.
type Options struct {
	Method kernel.Method
	Radius int

	// Sigma is the Gaussian standard deviation. Values <= 0 select
	// kernel.AutoSigma(2*Radius+1). Ignored by Mean.
	Sigma float64

	// Measurement is the channel variances are computed on. It must be
	// H×W or H×W×1. When nil it is derived from the image.
	Measurement grid.Grid

	// Extractor derives the measurement channel from multichannel images
	// when Measurement is nil. Defaults to colorspace.Default().
	Extractor colorspace.Extractor

	Precision Precision
	Border    convolve.Border

	// Workers bounds concurrency. <= 0 means one worker per CPU.
	Workers int
}

// DefaultOptions returns the mean method with radius 3.
func DefaultOptions() Options {
	return Options{Method: Mean, Radius: 3}
}

// Result is the outcome of Analyze.
type Result[T grid.Pixel] struct {
	// Image has the shape and element type of the input.
	Image *grid.Image[T]

	// Selection is the H×W map of winning quadrant indices (0 to 3,
	// see kernel.Position).
	Selection *grid.Image[uint8]

	// Measurement is the H×W channel the variances were computed on.
	Measurement *grid.Image[float64]
}

// Filter applies the Kuwahara filter to img and returns a new image of the
// same shape and element type.
func Filter[T grid.Pixel](img *grid.Image[T], opts Options) (*grid.Image[T], error) {
	return FilterContext(context.Background(), img, opts)
}

// FilterContext is Filter with cancellation between quadrant jobs.
func FilterContext[T grid.Pixel](ctx context.Context, img *grid.Image[T], opts Options) (*grid.Image[T], error) {
	res, err := AnalyzeContext(ctx, img, opts)
	if err != nil {
		return nil, err
	}
	return res.Image, nil
}

// Analyze filters img and also reports which quadrant won at every pixel.
func Analyze[T grid.Pixel](img *grid.Image[T], opts Options) (*Result[T], error) {
	return AnalyzeContext(context.Background(), img, opts)
}

// AnalyzeContext is Analyze with cancellation between quadrant jobs.
func AnalyzeContext[T grid.Pixel](ctx context.Context, img *grid.Image[T], opts Options) (*Result[T], error) {
	height, width, channels, err := imageDims(img)
	if err != nil {
		return nil, err
	}
	if opts.Precision != Float32 && opts.Precision != Float64 {
		return nil, fmt.Errorf("%w: unknown precision %v", ErrInvalidArgument, opts.Precision)
	}
	switch opts.Border {
	case convolve.BorderReflect101, convolve.BorderReflect, convolve.BorderReplicate:
	default:
		return nil, fmt.Errorf("%w: unknown border policy %v", ErrInvalidArgument, opts.Border)
	}

	set, err := kernel.Build(opts.Method, opts.Radius, opts.Sigma)
	if err != nil {
		return nil, err
	}
	Logger().Debug("kuwahara: quadrant kernels built",
		"method", opts.Method, "radius", opts.Radius, "sigma", opts.Sigma,
		"height", height, "width", width, "channels", channels)

	meas, shared, err := measurementFor(img, height, width, channels, opts)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	job := &job[T]{
		img:         img,
		width:       width,
		height:      height,
		channels:    channels,
		set:         set,
		measurement: meas,
		shared:      shared,
		opts:        opts,
	}
	if opts.Precision == Float64 {
		return run[T, float64](ctx, job)
	}
	return run[T, float32](ctx, job)
}

// imageDims validates the rank of img and returns its geometry.
func imageDims[T grid.Pixel](img *grid.Image[T]) (h, w, c int, err error) {
	if img == nil {
		return 0, 0, 0, fmt.Errorf("%w: nil image", ErrInvalidArgument)
	}
	shape := img.Shape()
	switch len(shape) {
	case 2:
		h, w, c = shape[0], shape[1], 1
	case 3:
		h, w, c = shape[0], shape[1], shape[2]
	default:
		return 0, 0, 0, fmt.Errorf("%w: image must have rank 2 or 3, got shape %v", ErrInvalidArgument, shape)
	}
	if h < 1 || w < 1 || c < 1 || img.Len() != h*w*c {
		return 0, 0, 0, fmt.Errorf("%w: malformed image of shape %v", ErrInvalidArgument, shape)
	}
	return h, w, c, nil
}

// measurementFor resolves the measurement channel as an H×W float64 image.
// shared reports that it is the image itself, so the image mean maps can
// double as measurement mean maps.
func measurementFor[T grid.Pixel](img *grid.Image[T], h, w, c int, opts Options) (*grid.Image[float64], bool, error) {
	src := opts.Measurement
	shared := false

	switch {
	case src != nil:
		if !planeShape(src.Shape(), h, w) {
			return nil, false, fmt.Errorf("%w: measurement shape %v does not match image %dx%d", ErrInvalidArgument, src.Shape(), h, w)
		}
	case c == 1:
		src = img
		shared = true
	default:
		ex := opts.Extractor
		if ex == nil {
			ex = colorspace.Default()
		}
		m, err := ex.Extract(img)
		if err != nil {
			return nil, false, fmt.Errorf("failed to extract measurement channel: %w", err)
		}
		if !planeShape(m.Shape(), h, w) {
			return nil, false, fmt.Errorf("%w: extractor returned shape %v for image %dx%d", ErrInvalidArgument, m.Shape(), h, w)
		}
		src = m
	}

	data := make([]float64, h*w)
	for i := range data {
		data[i] = src.Float64At(i)
	}
	out, err := grid.FromSlice(data, h, w)
	if err != nil {
		return nil, false, err
	}
	return out, shared, nil
}

func planeShape(shape []int, h, w int) bool {
	return slices.Equal(shape, []int{h, w}) || slices.Equal(shape, []int{h, w, 1})
}

// job carries a validated filter run.
type job[T grid.Pixel] struct {
	img                     *grid.Image[T]
	width, height, channels int
	set                     kernel.QuadrantSet
	measurement             *grid.Image[float64]
	shared                  bool
	opts                    Options
}

func run[T grid.Pixel, W convolve.Float](ctx context.Context, j *job[T]) (*Result[T], error) {
	src := widen[W](j.img.Data())
	var meas []W
	if !j.shared {
		meas = widen[W](j.measurement.Data())
	}

	stats, err := computeStats(ctx, src, meas, j.width, j.height, j.channels, j.set, j.opts)
	if err != nil {
		return nil, err
	}

	out, err := grid.New[T](j.img.Shape()...)
	if err != nil {
		return nil, err
	}
	sel, err := grid.New[uint8](j.height, j.width)
	if err != nil {
		return nil, err
	}
	compose(stats, out.Data(), sel.Data(), j.channels)

	return &Result[T]{Image: out, Selection: sel, Measurement: j.measurement}, nil
}

// widen copies data into a new slice of the working type.
func widen[W convolve.Float, T grid.Pixel](data []T) []W {
	out := make([]W, len(data))
	for i, v := range data {
		out[i] = W(v)
	}
	return out
}
