// Package visualization renders the diagnostic planes a filter run produces
// (the measurement channel and the winning quadrant map) as images.
package visualization

import (
	"fmt"
	"image"
	"image/color"
	"path/filepath"

	"gonum.org/v1/gonum/floats"

	"kuwahara/internal/imageio"
	"kuwahara/pkg/grid"
	"kuwahara/pkg/kernel"
)

// QuadrantPalette colours the selection map, indexed by kernel.Position.
var QuadrantPalette = color.Palette{
	color.RGBA{R: 230, G: 80, B: 60, A: 255},  // bottom-right
	color.RGBA{R: 70, G: 170, B: 90, A: 255},  // top-right
	color.RGBA{R: 60, G: 110, B: 220, A: 255}, // bottom-left
	color.RGBA{R: 240, G: 200, B: 60, A: 255}, // top-left
}

// Viewer holds the diagnostic planes of one filtered image
type Viewer struct {
	// selection is the H×W map of winning quadrant indices
	selection *grid.Image[uint8]

	// measurement is the H×W channel the variances were computed on
	measurement *grid.Image[float64]
}

// NewViewer creates a viewer over a selection map and measurement channel.
// Either may be nil, in which case the matching render fails.
func NewViewer(selection *grid.Image[uint8], measurement *grid.Image[float64]) *Viewer {
	return &Viewer{
		selection:   selection,
		measurement: measurement,
	}
}

// SelectionImage renders the winning quadrant of every pixel in
// QuadrantPalette colours
func (v *Viewer) SelectionImage() (*image.Paletted, error) {
	if v.selection == nil {
		return nil, fmt.Errorf("no selection map")
	}
	if v.selection.Rank() != 2 {
		return nil, fmt.Errorf("selection map must be rank 2, got shape %v", v.selection.Shape())
	}

	h, w := v.selection.Height(), v.selection.Width()
	img := image.NewPaletted(image.Rect(0, 0, w, h), QuadrantPalette)
	for i, q := range v.selection.Data() {
		if int(q) >= len(QuadrantPalette) {
			return nil, fmt.Errorf("pixel %d has invalid quadrant index %d", i, q)
		}
		img.Pix[i] = q
	}
	return img, nil
}

// MeasurementImage renders the measurement channel stretched to its own
// minimum and maximum
func (v *Viewer) MeasurementImage() (*image.Gray, error) {
	if v.measurement == nil {
		return nil, fmt.Errorf("no measurement channel")
	}
	data := v.measurement.Data()
	return imageio.PlaneToImage(v.measurement, floats.Min(data), floats.Max(data))
}

// SelectionCounts returns how many pixels each quadrant won
func (v *Viewer) SelectionCounts() [4]int {
	var counts [4]int
	if v.selection == nil {
		return counts
	}
	for _, q := range v.selection.Data() {
		if int(q) < len(counts) {
			counts[q]++
		}
	}
	return counts
}

// SelectionSummary formats SelectionCounts as percentages per position
func (v *Viewer) SelectionSummary() string {
	counts := v.SelectionCounts()
	total := 0
	for _, c := range counts {
		total += c
	}
	if total == 0 {
		return "no pixels"
	}

	s := ""
	for i, c := range counts {
		if i > 0 {
			s += ", "
		}
		s += fmt.Sprintf("%s %.1f%%", kernel.Position(i), 100*float64(c)/float64(total))
	}
	return s
}

// SaveAll writes the measurement channel and the selection map under
// outputDir as measurement/NNN.png and selection/NNN.png
func (v *Viewer) SaveAll(outputDir string, index int) error {
	name := fmt.Sprintf("%03d.png", index)

	meas, err := v.MeasurementImage()
	if err != nil {
		return err
	}
	if err := imageio.Save(filepath.Join(outputDir, "measurement", name), meas, 0); err != nil {
		return fmt.Errorf("failed to save measurement channel: %w", err)
	}

	sel, err := v.SelectionImage()
	if err != nil {
		return err
	}
	if err := imageio.Save(filepath.Join(outputDir, "selection", name), sel, 0); err != nil {
		return fmt.Errorf("failed to save selection map: %w", err)
	}
	return nil
}
