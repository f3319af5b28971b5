// Package quality measures how a filtered image relates to its source.
// All metrics work on intensities normalised to [0, 1] by the nominal full
// scale of each grid, so uint8 and floating point images compare directly.
package quality

import (
	"fmt"
	"math"
	"slices"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"kuwahara/pkg/grid"
)

// Metrics holds the quality figures reported for one filtered image.
type Metrics struct {
	// RMSE is the root mean square difference between source and output.
	// Lower values mean the filter changed less.
	RMSE float64

	// PSNR is the peak signal to noise ratio in dB. +Inf for identical images.
	PSNR float64

	// SSIM is the global structural similarity index, from -1 to 1.
	SSIM float64

	// MI approximates the mutual information between source and output
	// under a joint Gaussian model.
	MI float64

	// EntropyDiff is the absolute difference in Shannon entropy (bits) of
	// the two intensity histograms.
	EntropyDiff float64

	// VarianceReduction is 1 - var(output)/var(source). Smoothing drives it
	// towards 1; 0 means the spread of intensities is unchanged.
	VarianceReduction float64

	// EdgePreservation is the correlation of the gradient magnitude maps.
	// Values near 1 mean edges sit in the same places with similar strength.
	EdgePreservation float64

	// NoiseReduction is 1 - HF(output)/HF(source), where HF is the share of
	// spectral energy in the high frequency band.
	NoiseReduction float64
}

// Compare computes all metrics between original and filtered, which must
// have the same shape. Multichannel images are compared on all samples;
// edge and spectral metrics use the per-pixel channel mean.
func Compare(original, filtered grid.Grid) (Metrics, error) {
	var m Metrics
	if !slices.Equal(original.Shape(), filtered.Shape()) {
		return m, fmt.Errorf("shape mismatch: %v vs %v", original.Shape(), filtered.Shape())
	}

	a := Normalize(original)
	b := Normalize(filtered)

	m.RMSE = RMSE(a, b)
	m.PSNR = PSNR(m.RMSE)
	m.SSIM = SSIM(a, b)
	m.MI = MutualInformation(a, b)
	m.EntropyDiff = EntropyDifference(a, b)
	m.VarianceReduction = VarianceReduction(a, b)

	pa, h, w, err := Plane(original)
	if err != nil {
		return m, err
	}
	pb, _, _, err := Plane(filtered)
	if err != nil {
		return m, err
	}
	m.EdgePreservation = EdgePreservation(pa, pb, w, h)

	hfA := HighFrequencyRatio(pa, w, h, DefaultCutoff)
	hfB := HighFrequencyRatio(pb, w, h, DefaultCutoff)
	if hfA > 0 {
		m.NoiseReduction = 1 - hfB/hfA
	}
	return m, nil
}

// Normalize returns the samples of g divided by its full scale.
func Normalize(g grid.Grid) []float64 {
	out := make([]float64, g.Len())
	for i := range out {
		out[i] = g.Float64At(i)
	}
	floats.Scale(1/g.FullScale(), out)
	return out
}

// Plane reduces g to a normalised H×W intensity plane by averaging channels.
func Plane(g grid.Grid) (plane []float64, h, w int, err error) {
	shape := g.Shape()
	c := 1
	switch len(shape) {
	case 2:
	case 3:
		c = shape[2]
	default:
		return nil, 0, 0, fmt.Errorf("expected a rank 2 or 3 grid, got shape %v", shape)
	}
	h, w = shape[0], shape[1]
	scale := g.FullScale() * float64(c)

	plane = make([]float64, h*w)
	for p := range plane {
		var sum float64
		for ch := 0; ch < c; ch++ {
			sum += g.Float64At(p*c + ch)
		}
		plane[p] = sum / scale
	}
	return plane, h, w, nil
}

// RMSE computes the root mean square error
func RMSE(original, filtered []float64) float64 {
	n := len(original)
	if n != len(filtered) || n == 0 {
		return 0
	}
	return floats.Distance(original, filtered, 2) / math.Sqrt(float64(n))
}

// PSNR converts an RMSE on [0, 1] data to decibels.
func PSNR(rmse float64) float64 {
	if rmse == 0 {
		return math.Inf(1)
	}
	return 20 * math.Log10(1/rmse)
}

// SSIM computes the Structural Similarity Index over the whole image
func SSIM(original, filtered []float64) float64 {
	const L = 1.0 // Dynamic range
	const k1 = 0.01
	const k2 = 0.03

	c1 := (k1 * L) * (k1 * L)
	c2 := (k2 * L) * (k2 * L)

	n := len(original)
	if n != len(filtered) || n < 2 {
		return 0
	}

	muX := stat.Mean(original, nil)
	muY := stat.Mean(filtered, nil)
	sigmaX := stat.Variance(original, nil)
	sigmaY := stat.Variance(filtered, nil)
	sigmaXY := stat.Covariance(original, filtered, nil)

	num := (2*muX*muY + c1) * (2*sigmaXY + c2)
	den := (muX*muX + muY*muY + c1) * (sigmaX + sigmaY + c2)
	if den > 0 {
		return num / den
	}
	return 0
}

// MutualInformation approximates MI as
// 0.5 * log(var(X)·var(Y) / (var(X)·var(Y) - cov(X,Y)²)).
// Identical inputs have unbounded MI and yield +Inf.
func MutualInformation(original, filtered []float64) float64 {
	n := len(original)
	if n != len(filtered) || n < 2 {
		return 0
	}

	varX := stat.Variance(original, nil)
	varY := stat.Variance(filtered, nil)
	cov := stat.Covariance(original, filtered, nil)
	if varX <= 0 || varY <= 0 {
		return 0
	}

	determinant := varX*varY - cov*cov
	if determinant <= 0 {
		return math.Inf(1)
	}
	return 0.5 * math.Log(varX*varY/determinant)
}

// EntropyDifference computes the absolute entropy difference
func EntropyDifference(original, filtered []float64) float64 {
	if len(original) != len(filtered) || len(original) == 0 {
		return 0
	}
	return math.Abs(Entropy(original) - Entropy(filtered))
}

// Entropy computes the Shannon entropy of data over 256 equal bins
// spanning its range.
func Entropy(data []float64) float64 {
	n := len(data)
	if n == 0 {
		return 0
	}

	lo, hi := floats.Min(data), floats.Max(data)
	if hi <= lo {
		return 0
	}

	const numBins = 256
	hist := make([]float64, numBins)
	binWidth := (hi - lo) / numBins
	for _, v := range data {
		bin := int((v - lo) / binWidth)
		if bin >= numBins {
			bin = numBins - 1
		} else if bin < 0 {
			bin = 0
		}
		hist[bin]++
	}

	floats.Scale(1/float64(n), hist)
	return stat.Entropy(hist) / math.Ln2
}

// VarianceReduction returns 1 - var(filtered)/var(original), or 0 when the
// original is flat.
func VarianceReduction(original, filtered []float64) float64 {
	if len(original) != len(filtered) || len(original) < 2 {
		return 0
	}
	v := stat.Variance(original, nil)
	if v <= 0 {
		return 0
	}
	return 1 - stat.Variance(filtered, nil)/v
}

// EdgePreservation correlates the Sobel gradient magnitudes of two planes.
// Two edgeless planes preserve edges perfectly; one edgeless plane against
// a textured one scores 0.
func EdgePreservation(original, filtered []float64, width, height int) float64 {
	ga := GradientMagnitude(original, width, height)
	gb := GradientMagnitude(filtered, width, height)

	flatA := floats.Max(ga) == floats.Min(ga)
	flatB := floats.Max(gb) == floats.Min(gb)
	switch {
	case flatA && flatB:
		return 1
	case flatA || flatB:
		return 0
	}
	return stat.Correlation(ga, gb, nil)
}

// GradientMagnitude applies the 3x3 Sobel operator with replicated borders.
func GradientMagnitude(plane []float64, width, height int) []float64 {
	at := func(x, y int) float64 {
		x = min(max(x, 0), width-1)
		y = min(max(y, 0), height-1)
		return plane[y*width+x]
	}

	out := make([]float64, width*height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			gx := at(x+1, y-1) + 2*at(x+1, y) + at(x+1, y+1) -
				at(x-1, y-1) - 2*at(x-1, y) - at(x-1, y+1)
			gy := at(x-1, y+1) + 2*at(x, y+1) + at(x+1, y+1) -
				at(x-1, y-1) - 2*at(x, y-1) - at(x+1, y-1)
			out[y*width+x] = math.Hypot(gx, gy)
		}
	}
	return out
}
