// Package colorspace derives single-channel measurement signals from
// multichannel images. The Kuwahara filter computes its variances on such a
// signal, so swapping the extractor changes which edges the filter sees.
//
// Colour images are expected in BGR channel order unless an extractor says
// otherwise, with an optional fourth alpha channel that is ignored.
package colorspace

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/lucasb-eyer/go-colorful"

	"kuwahara/pkg/grid"
)

// Extractor produces a rank-2 measurement channel with the same height and
// width as src.
type Extractor interface {
	Extract(src grid.Grid) (*grid.Image[float64], error)
}

// ExtractorFunc adapts a plain function to Extractor.
type ExtractorFunc func(src grid.Grid) (*grid.Image[float64], error)

// Extract implements Extractor.
func (f ExtractorFunc) Extract(src grid.Grid) (*grid.Image[float64], error) {
	return f(src)
}

// Order is the channel layout of a colour image.
type Order int

const (
	BGR Order = iota
	RGB
)

// rgb returns the red, green and blue indices for the order.
func (o Order) rgb() (r, g, b int) {
	if o == RGB {
		return 0, 1, 2
	}
	return 2, 1, 0
}

// Gray is the ITU-R BT.601 luma, Y = 0.299 R + 0.587 G + 0.114 B, in the
// input's own intensity scale.
type Gray struct {
	Order Order
}

// Extract implements Extractor.
func (e Gray) Extract(src grid.Grid) (*grid.Image[float64], error) {
	ri, gi, bi := e.Order.rgb()
	return perPixel(src, func(px []float64, _ float64) float64 {
		return 0.299*px[ri] + 0.587*px[gi] + 0.114*px[bi]
	})
}

// HSVValue is the V component of HSV, max(R, G, B), in the input's scale.
type HSVValue struct{}

// Extract implements Extractor.
func (HSVValue) Extract(src grid.Grid) (*grid.Image[float64], error) {
	return perPixel(src, func(px []float64, scale float64) float64 {
		c := colorful.Color{R: px[0] / scale, G: px[1] / scale, B: px[2] / scale}
		_, _, v := c.Hsv()
		return v * scale
	})
}

// LabLightness is the CIE L* component of the sRGB input, mapped from
// [0, 100] onto the input's intensity scale (L*·255/100 for uint8 images,
// L*/100 for floating point images).
type LabLightness struct {
	Order Order
}

// Extract implements Extractor.
func (e LabLightness) Extract(src grid.Grid) (*grid.Image[float64], error) {
	ri, gi, bi := e.Order.rgb()
	return perPixel(src, func(px []float64, scale float64) float64 {
		c := colorful.Color{R: px[ri] / scale, G: px[gi] / scale, B: px[bi] / scale}
		l, _, _ := c.Lab()
		return l * scale
	})
}

// Channel selects one raw channel of the input.
type Channel struct {
	Index int
}

// Extract implements Extractor.
func (e Channel) Extract(src grid.Grid) (*grid.Image[float64], error) {
	h, w, c, err := dims(src)
	if err != nil {
		return nil, err
	}
	if e.Index < 0 || e.Index >= c {
		return nil, fmt.Errorf("channel %d out of range for %d-channel image", e.Index, c)
	}
	out, err := grid.New[float64](h, w)
	if err != nil {
		return nil, err
	}
	data := out.Data()
	for i := range data {
		data[i] = src.Float64At(i*c + e.Index)
	}
	return out, nil
}

// Default is the extractor used when the caller supplies none: BT.601 luma
// of a BGR image.
func Default() Extractor {
	return Gray{Order: BGR}
}

// Parse maps a configuration name to an extractor. Recognised names are
// gray (alias gray-bgr), gray-rgb, hsv-value, lab-lightness (BGR input),
// lab-lightness-rgb and channel:N.
func Parse(name string) (Extractor, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	switch n {
	case "", "gray", "grey", "gray-bgr":
		return Gray{Order: BGR}, nil
	case "gray-rgb", "grey-rgb":
		return Gray{Order: RGB}, nil
	case "hsv-value", "hsv", "value":
		return HSVValue{}, nil
	case "lab-lightness", "lab", "lightness":
		return LabLightness{Order: BGR}, nil
	case "lab-lightness-rgb":
		return LabLightness{Order: RGB}, nil
	}
	if idx, ok := strings.CutPrefix(n, "channel:"); ok {
		i, err := strconv.Atoi(idx)
		if err != nil {
			return nil, fmt.Errorf("invalid channel index in %q: %w", name, err)
		}
		return Channel{Index: i}, nil
	}
	return nil, fmt.Errorf("unknown measurement extractor %q", name)
}

func dims(src grid.Grid) (h, w, c int, err error) {
	shape := src.Shape()
	switch len(shape) {
	case 2:
		return shape[0], shape[1], 1, nil
	case 3:
		return shape[0], shape[1], shape[2], nil
	}
	return 0, 0, 0, fmt.Errorf("expected a rank 2 or 3 image, got shape %v", shape)
}

// perPixel applies fn to every pixel of a 3 or 4 channel image. Single
// channel images are already a measurement signal and are copied through.
func perPixel(src grid.Grid, fn func(px []float64, scale float64) float64) (*grid.Image[float64], error) {
	h, w, c, err := dims(src)
	if err != nil {
		return nil, err
	}
	out, err := grid.New[float64](h, w)
	if err != nil {
		return nil, err
	}
	data := out.Data()

	switch c {
	case 1:
		for i := range data {
			data[i] = src.Float64At(i)
		}
	case 3, 4:
		scale := src.FullScale()
		px := make([]float64, 3)
		for i := range data {
			for k := range px {
				px[k] = src.Float64At(i*c + k)
			}
			data[i] = fn(px, scale)
		}
	default:
		return nil, fmt.Errorf("cannot derive a measurement channel from a %d-channel image", c)
	}
	return out, nil
}
