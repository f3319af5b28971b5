package colorspace

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kuwahara/pkg/grid"
)

// bgrPixel builds a 1x1 three-channel uint8 image from BGR components.
func bgrPixel(t *testing.T, b, g, r uint8) *grid.Image[uint8] {
	t.Helper()
	img, err := grid.FromSlice([]uint8{b, g, r}, 1, 1, 3)
	require.NoError(t, err)
	return img
}

func TestGrayChannelOrder(t *testing.T) {
	img := bgrPixel(t, 0, 0, 200) // pure red in BGR order

	bgr, err := Gray{Order: BGR}.Extract(img)
	require.NoError(t, err)
	assert.InDelta(t, 0.299*200, bgr.Data()[0], 1e-9)

	rgb, err := Gray{Order: RGB}.Extract(img)
	require.NoError(t, err)
	assert.InDelta(t, 0.114*200, rgb.Data()[0], 1e-9)
}

func TestGrayKeepsScale(t *testing.T) {
	img, err := grid.FromSlice([]float32{0.5, 0.5, 0.5, 1, 1, 1}, 1, 2, 3)
	require.NoError(t, err)

	out, err := Default().Extract(img)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, out.Shape())
	assert.InDelta(t, 0.5, out.Data()[0], 1e-6)
	assert.InDelta(t, 1.0, out.Data()[1], 1e-6)
}

func TestHSVValueIsMaxChannel(t *testing.T) {
	img := bgrPixel(t, 10, 240, 30)
	out, err := HSVValue{}.Extract(img)
	require.NoError(t, err)
	assert.InDelta(t, 240, out.Data()[0], 1e-9)
}

func TestLabLightness(t *testing.T) {
	white := bgrPixel(t, 255, 255, 255)
	out, err := LabLightness{}.Extract(white)
	require.NoError(t, err)
	assert.InDelta(t, 255, out.Data()[0], 0.5)

	black := bgrPixel(t, 0, 0, 0)
	out, err = LabLightness{}.Extract(black)
	require.NoError(t, err)
	assert.InDelta(t, 0, out.Data()[0], 1e-9)

	// Green is perceptually much lighter than blue at equal intensity
	green, err := LabLightness{}.Extract(bgrPixel(t, 0, 255, 0))
	require.NoError(t, err)
	blue, err := LabLightness{}.Extract(bgrPixel(t, 255, 0, 0))
	require.NoError(t, err)
	assert.Greater(t, green.Data()[0], blue.Data()[0])
}

func TestAlphaIgnored(t *testing.T) {
	opaque, err := grid.FromSlice([]uint8{10, 20, 30, 255}, 1, 1, 4)
	require.NoError(t, err)
	clear, err := grid.FromSlice([]uint8{10, 20, 30, 0}, 1, 1, 4)
	require.NoError(t, err)

	a, err := Default().Extract(opaque)
	require.NoError(t, err)
	b, err := Default().Extract(clear)
	require.NoError(t, err)
	assert.Equal(t, a.Data(), b.Data())
}

func TestSingleChannelPassThrough(t *testing.T) {
	img, err := grid.FromSlice([]uint8{1, 2, 3, 4}, 2, 2)
	require.NoError(t, err)

	for _, e := range []Extractor{Default(), HSVValue{}, LabLightness{}} {
		out, err := e.Extract(img)
		require.NoError(t, err)
		assert.Equal(t, []float64{1, 2, 3, 4}, out.Data())
	}
}

func TestUnsupportedChannelCount(t *testing.T) {
	img, err := grid.New[uint8](2, 2, 2)
	require.NoError(t, err)
	_, err = Default().Extract(img)
	assert.Error(t, err)

	rank1, err := grid.New[uint8](4)
	require.NoError(t, err)
	_, err = Default().Extract(rank1)
	assert.Error(t, err)
}

func TestChannelExtractor(t *testing.T) {
	img, err := grid.FromSlice([]uint8{1, 2, 3, 4, 5, 6}, 1, 2, 3)
	require.NoError(t, err)

	out, err := Channel{Index: 2}.Extract(img)
	require.NoError(t, err)
	assert.Equal(t, []float64{3, 6}, out.Data())

	_, err = Channel{Index: 3}.Extract(img)
	assert.Error(t, err)
}

func TestParse(t *testing.T) {
	cases := map[string]Extractor{
		"":                  Gray{Order: BGR},
		"gray":              Gray{Order: BGR},
		"gray-rgb":          Gray{Order: RGB},
		"HSV-Value":         HSVValue{},
		"lab-lightness":     LabLightness{Order: BGR},
		"lab-lightness-rgb": LabLightness{Order: RGB},
		"channel:1":         Channel{Index: 1},
	}
	for name, expected := range cases {
		e, err := Parse(name)
		require.NoError(t, err, "name %q", name)
		assert.Equal(t, expected, e, "name %q", name)
	}

	_, err := Parse("ycrcb")
	assert.Error(t, err)
	_, err = Parse("channel:x")
	assert.Error(t, err)
}

func TestExtractorFunc(t *testing.T) {
	called := false
	e := ExtractorFunc(func(src grid.Grid) (*grid.Image[float64], error) {
		called = true
		return grid.FromGrid[float64](src), nil
	})
	img, err := grid.New[uint8](2, 2)
	require.NoError(t, err)
	_, err = e.Extract(img)
	require.NoError(t, err)
	assert.True(t, called)
}
