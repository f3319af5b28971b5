// Package kernel builds the four quadrant kernels used by the Kuwahara filter.
//
// Each quadrant is a separable filter (an x kernel and a y kernel of length
// radius+1) plus the anchor that places its footprint on one side of the
// filtered pixel. The window for radius 2 looks like this, with a, b, c
// and d naming the quadrants that cover each cell:
//
//	( a  a  ab   b  b)
//	( a  a  ab   b  b)
//	(ac ac abcd bd bd)
//	( c  c  cd   d  d)
//	( c  c  cd   d  d)
package kernel

import (
	"errors"
	"fmt"
	"image"
	"math"
	"strings"

	"gonum.org/v1/gonum/floats"
)

// ErrInvalidArgument is returned for malformed filter parameters.
var ErrInvalidArgument = errors.New("invalid argument")

// Method selects how pixels inside a quadrant are weighted.
type Method int

const (
	// Mean weights every pixel of a quadrant equally.
	Mean Method = iota
	// Gaussian weights pixels by a Gaussian centred on the filtered pixel.
	Gaussian
)

// String returns the configuration name of the method.
func (m Method) String() string {
	switch m {
	case Mean:
		return "mean"
	case Gaussian:
		return "gaussian"
	}
	return fmt.Sprintf("Method(%d)", int(m))
}

// ParseMethod maps "mean" or "gaussian" (case-insensitive) to a Method.
func ParseMethod(s string) (Method, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "mean":
		return Mean, nil
	case "gaussian":
		return Gaussian, nil
	}
	return 0, fmt.Errorf("%w: unsupported method %q", ErrInvalidArgument, s)
}

// Position names the side of the filtered pixel a quadrant covers, in image
// coordinates where y grows downwards.
type Position int

const (
	BottomRight Position = iota
	TopRight
	BottomLeft
	TopLeft
)

func (p Position) String() string {
	switch p {
	case BottomRight:
		return "bottom-right"
	case TopRight:
		return "top-right"
	case BottomLeft:
		return "bottom-left"
	case TopLeft:
		return "top-left"
	}
	return fmt.Sprintf("Position(%d)", int(p))
}

// Quadrant is one separable subwindow filter.
type Quadrant struct {
	// KX is applied along rows (the x axis), KY along columns.
	KX, KY []float64

	// Shift is the kernel anchor (anchorX, anchorY). Output pixel (x, y)
	// receives Σ KY[j]·KX[i]·src(x+i-Shift.X, y+j-Shift.Y).
	Shift image.Point

	Position Position
}

// Footprint returns the offsets, relative to the filtered pixel, covered by
// the quadrant. Like any image.Rectangle, Max is exclusive.
func (q Quadrant) Footprint() image.Rectangle {
	minX := -q.Shift.X
	minY := -q.Shift.Y
	return image.Rect(minX, minY, minX+len(q.KX), minY+len(q.KY))
}

// QuadrantSet holds the four quadrants in selection order. Ties in the
// minimum-variance rule go to the lowest index.
type QuadrantSet [4]Quadrant

// Radius returns the radius the set was built for.
func (s QuadrantSet) Radius() int {
	return len(s[0].KX) - 1
}

// AutoSigma returns the standard deviation used when none is given for a
// Gaussian kernel of size ksize: 0.3*((ksize-1)*0.5 - 1) + 0.8. This is the
// default of the common Gaussian kernel generators, not a mathematical
// requirement.
func AutoSigma(ksize int) float64 {
	return 0.3*(float64(ksize-1)*0.5-1) + 0.8
}

// RadiusFromFloat converts a radius read from text configuration, rejecting
// non-integral and non-positive values.
func RadiusFromFloat(r float64) (int, error) {
	if math.IsNaN(r) || math.IsInf(r, 0) || r != math.Trunc(r) {
		return 0, fmt.Errorf("%w: radius must be an integer, got %v", ErrInvalidArgument, r)
	}
	if r < 1 {
		return 0, fmt.Errorf("%w: radius must be greater or equal 1, got %v", ErrInvalidArgument, r)
	}
	if r > math.MaxInt32 {
		return 0, fmt.Errorf("%w: radius %v is too large", ErrInvalidArgument, r)
	}
	return int(r), nil
}

// Build returns the quadrant set for method and radius. sigma is only used
// by Gaussian; a value <= 0 selects AutoSigma(2*radius+1).
func Build(method Method, radius int, sigma float64) (QuadrantSet, error) {
	var set QuadrantSet
	if radius < 1 {
		return set, fmt.Errorf("%w: radius must be greater or equal 1, got %d", ErrInvalidArgument, radius)
	}

	// Anchors for BottomRight, TopRight, BottomLeft, TopLeft
	shifts := [4]image.Point{{0, 0}, {0, radius}, {radius, 0}, {radius, radius}}

	switch method {
	case Mean:
		k := Uniform(radius + 1)
		for i := range set {
			set[i] = Quadrant{KX: k, KY: k, Shift: shifts[i], Position: Position(i)}
		}

	case Gaussian:
		left, right := GaussianHalves(radius, sigma)
		// Right halves peak at index 0 and extend forward from the anchor,
		// left halves peak at index radius and extend backward.
		pairs := [4][2][]float64{
			{right, right},
			{right, left},
			{left, right},
			{left, left},
		}
		for i := range set {
			set[i] = Quadrant{KX: pairs[i][0], KY: pairs[i][1], Shift: shifts[i], Position: Position(i)}
		}

	default:
		return set, fmt.Errorf("%w: unsupported method %v", ErrInvalidArgument, method)
	}

	return set, nil
}

// Uniform returns a box kernel of n equal weights summing to 1.
func Uniform(n int) []float64 {
	k := make([]float64, n)
	for i := range k {
		k[i] = 1
	}
	floats.Scale(1/float64(n), k)
	return k
}

// GaussianKernel returns a symmetric Gaussian kernel of size ksize
// normalised to sum 1. sigma <= 0 selects AutoSigma(ksize).
func GaussianKernel(ksize int, sigma float64) []float64 {
	if sigma <= 0 {
		sigma = AutoSigma(ksize)
	}
	center := float64(ksize-1) / 2
	scale := -0.5 / (sigma * sigma)

	k := make([]float64, ksize)
	for i := range k {
		x := float64(i) - center
		k[i] = math.Exp(scale * x * x)
	}
	floats.Scale(1/floats.Sum(k), k)
	return k
}

// GaussianHalves splits a Gaussian kernel of size 2*radius+1 into its left
// half [0..radius] and right half [radius..2*radius]. Both halves share the
// centre coefficient and each is renormalised to sum 1 on its own.
func GaussianHalves(radius int, sigma float64) (left, right []float64) {
	full := GaussianKernel(2*radius+1, sigma)

	left = append([]float64(nil), full[:radius+1]...)
	right = append([]float64(nil), full[radius:]...)

	floats.Scale(1/floats.Sum(left), left)
	floats.Scale(1/floats.Sum(right), right)
	return left, right
}
