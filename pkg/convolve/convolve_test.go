package convolve

import (
	"image"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// naive is the direct O(kx*ky) reference correlation.
func naive(src []float64, width, height, channels int, kx, ky []float64, anchor image.Point, border Border) []float64 {
	dst := make([]float64, len(src))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			for c := 0; c < channels; c++ {
				var acc float64
				for j := range ky {
					sy := border.index(y+j-anchor.Y, height)
					for i := range kx {
						sx := border.index(x+i-anchor.X, width)
						acc += ky[j] * kx[i] * src[(sy*width+sx)*channels+c]
					}
				}
				dst[(y*width+x)*channels+c] = acc
			}
		}
	}
	return dst
}

func randomBuffer(rng *rand.Rand, n int) []float64 {
	buf := make([]float64, n)
	for i := range buf {
		buf[i] = rng.Float64()
	}
	return buf
}

func TestBorderIndex(t *testing.T) {
	// Indices -3..10 for a row of 8 samples
	cases := []struct {
		border   Border
		expected []int
	}{
		{BorderReflect101, []int{3, 2, 1, 0, 1, 2, 3, 4, 5, 6, 7, 6, 5, 4}},
		{BorderReflect, []int{2, 1, 0, 0, 1, 2, 3, 4, 5, 6, 7, 7, 6, 5}},
		{BorderReplicate, []int{0, 0, 0, 0, 1, 2, 3, 4, 5, 6, 7, 7, 7, 7}},
	}
	for _, tc := range cases {
		t.Run(tc.border.String(), func(t *testing.T) {
			got := make([]int, 0, len(tc.expected))
			for p := -3; p <= 10; p++ {
				got = append(got, tc.border.index(p, 8))
			}
			assert.Equal(t, tc.expected, got)
		})
	}
}

func TestBorderIndexTinyAxes(t *testing.T) {
	for _, b := range []Border{BorderReflect101, BorderReflect, BorderReplicate} {
		for p := -7; p <= 7; p++ {
			assert.Equal(t, 0, b.index(p, 1))
			idx := b.index(p, 2)
			assert.True(t, idx == 0 || idx == 1, "%v: index(%d, 2) = %d", b, p, idx)
		}
	}
}

func TestParseBorder(t *testing.T) {
	for name, expected := range map[string]Border{
		"":           BorderReflect101,
		"reflect101": BorderReflect101,
		"Reflect":    BorderReflect,
		"replicate":  BorderReplicate,
	} {
		b, err := ParseBorder(name)
		require.NoError(t, err)
		assert.Equal(t, expected, b, "name %q", name)
	}

	_, err := ParseBorder("wrap")
	assert.Error(t, err)
}

func TestSepFilter2DMatchesNaive(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	kx := []float64{0.1, 0.2, 0.3, 0.4}
	ky := []float64{0.5, 0.25, 0.25}

	for _, border := range []Border{BorderReflect101, BorderReflect, BorderReplicate} {
		for _, channels := range []int{1, 3} {
			for _, anchor := range []image.Point{{0, 0}, {3, 0}, {0, 2}, {2, 1}} {
				width, height := 13, 9
				src := randomBuffer(rng, width*height*channels)
				dst := make([]float64, len(src))

				err := SepFilter2D(dst, src, width, height, channels, kx, ky, anchor, Options{Border: border, Workers: 3})
				require.NoError(t, err)

				expected := naive(src, width, height, channels, kx, ky, anchor, border)
				assert.InDeltaSlice(t, expected, dst, 1e-12, "border %v channels %d anchor %v", border, channels, anchor)
			}
		}
	}
}

func TestSepFilter2DFloat32(t *testing.T) {
	src := []float32{
		1, 2, 3,
		4, 5, 6,
		7, 8, 9,
	}
	dst := make([]float32, len(src))
	box := []float32{1.0 / 3, 1.0 / 3, 1.0 / 3}

	err := SepFilter2D(dst, src, 3, 3, 1, box, box, image.Pt(1, 1), Options{})
	require.NoError(t, err)

	// Centre pixel averages the whole image
	assert.InDelta(t, 5.0, float64(dst[4]), 1e-5)
	// Top-left with reflect101 averages rows {1,0,1} and columns {1,0,1}
	assert.InDelta(t, (5+4+5+2+1+2+5+4+5)/9.0, float64(dst[0]), 1e-5)
}

func TestSepFilter2DIdentity(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	src := randomBuffer(rng, 5*4*2)
	dst := make([]float64, len(src))

	err := SepFilter2D(dst, src, 5, 4, 2, []float64{1}, []float64{1}, image.Pt(0, 0), Options{})
	require.NoError(t, err)
	assert.Equal(t, src, dst)
}

func TestSepFilter2DInPlace(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	src := randomBuffer(rng, 8*6)
	k := []float64{0.25, 0.5, 0.25}

	expected := naive(src, 8, 6, 1, k, k, image.Pt(1, 1), BorderReflect101)
	err := SepFilter2D(src, src, 8, 6, 1, k, k, image.Pt(1, 1), Options{})
	require.NoError(t, err)
	assert.InDeltaSlice(t, expected, src, 1e-12)
}

func TestSepFilter2DWorkerCountInvariant(t *testing.T) {
	rng := rand.New(rand.NewSource(4))
	src := randomBuffer(rng, 31*17*3)
	kx := []float64{0.2, 0.3, 0.5}
	ky := []float64{0.6, 0.4}

	reference := make([]float64, len(src))
	require.NoError(t, SepFilter2D(reference, src, 31, 17, 3, kx, ky, image.Pt(2, 1), Options{Workers: 1}))

	for _, workers := range []int{2, 5, 17, 64} {
		dst := make([]float64, len(src))
		require.NoError(t, SepFilter2D(dst, src, 31, 17, 3, kx, ky, image.Pt(2, 1), Options{Workers: workers}))
		assert.Equal(t, reference, dst, "workers %d", workers)
	}
}

func TestSepFilter2DValidation(t *testing.T) {
	buf := make([]float64, 12)
	k := []float64{0.5, 0.5}

	assert.Error(t, SepFilter2D(buf, buf, 0, 4, 3, k, k, image.Pt(0, 0), Options{}))
	assert.Error(t, SepFilter2D(buf, buf, 4, 4, 1, k, k, image.Pt(0, 0), Options{}))
	assert.Error(t, SepFilter2D(buf, buf[:6], 4, 3, 1, k, k, image.Pt(0, 0), Options{}))
	assert.Error(t, SepFilter2D(buf, buf, 4, 3, 1, nil, k, image.Pt(0, 0), Options{}))
	assert.Error(t, SepFilter2D(buf, buf, 4, 3, 1, k, k, image.Pt(2, 0), Options{}))
	assert.Error(t, SepFilter2D(buf, buf, 4, 3, 1, k, k, image.Pt(0, -1), Options{}))
}
