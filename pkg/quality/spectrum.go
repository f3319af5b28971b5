package quality

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
)

// DefaultCutoff is the normalised radial frequency above which spectral
// energy counts as high frequency.
const DefaultCutoff = 0.5

// Spectrum2D returns the 2-D DFT of a real plane in row-major order,
// computed as row transforms followed by column transforms.
func Spectrum2D(plane []float64, width, height int) []complex128 {
	out := make([]complex128, width*height)

	rowFFT := fourier.NewCmplxFFT(width)
	row := make([]complex128, width)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			row[x] = complex(plane[y*width+x], 0)
		}
		rowFFT.Coefficients(out[y*width:(y+1)*width], row)
	}

	colFFT := fourier.NewCmplxFFT(height)
	col := make([]complex128, height)
	coeffs := make([]complex128, height)
	for x := 0; x < width; x++ {
		for y := 0; y < height; y++ {
			col[y] = out[y*width+x]
		}
		colFFT.Coefficients(coeffs, col)
		for y := 0; y < height; y++ {
			out[y*width+x] = coeffs[y]
		}
	}
	return out
}

// HighFrequencyRatio is the fraction of non-DC spectral energy at normalised
// radial frequencies above cutoff, where 1 is the Nyquist frequency along
// an axis. Flat planes return 0.
func HighFrequencyRatio(plane []float64, width, height int, cutoff float64) float64 {
	spec := Spectrum2D(plane, width, height)

	var total, high float64
	for v := 0; v < height; v++ {
		fy := axisFrequency(v, height)
		for u := 0; u < width; u++ {
			if u == 0 && v == 0 {
				continue
			}
			fx := axisFrequency(u, width)
			e := cmplx.Abs(spec[v*width+u])
			e *= e
			total += e
			if math.Hypot(fx, fy) > cutoff {
				high += e
			}
		}
	}
	if total == 0 {
		return 0
	}
	return high / total
}

// axisFrequency maps DFT bin k of an n-point transform to [0, 1], with 1
// at Nyquist.
func axisFrequency(k, n int) float64 {
	if n < 2 {
		return 0
	}
	if k > n/2 {
		k = n - k
	}
	return float64(k) / (float64(n) / 2)
}
