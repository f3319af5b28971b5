package grid

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// FromDense copies a gonum matrix into a rank-2 float64 Image, rows first.
func FromDense(m mat.Matrix) *Image[float64] {
	r, c := m.Dims()
	data := make([]float64, r*c)
	for y := 0; y < r; y++ {
		for x := 0; x < c; x++ {
			data[y*c+x] = m.At(y, x)
		}
	}
	return &Image[float64]{shape: []int{r, c}, data: data}
}

// ToDense copies a single-channel grid into a new gonum Dense matrix.
// Rank-3 grids are accepted when they carry exactly one channel.
func ToDense(g Grid) (*mat.Dense, error) {
	shape := g.Shape()
	switch {
	case len(shape) == 2:
	case len(shape) == 3 && shape[2] == 1:
	default:
		return nil, fmt.Errorf("cannot convert grid of shape %v to a matrix", shape)
	}
	data := make([]float64, g.Len())
	for i := range data {
		data[i] = g.Float64At(i)
	}
	return mat.NewDense(shape[0], shape[1], data), nil
}
