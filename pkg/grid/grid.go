// Package grid provides the dense numeric image grids the filter operates on.
// An Image holds an explicit shape, (H, W) or (H, W, C), and a row-major,
// channel-interleaved backing slice.
package grid

import (
	"fmt"
)

// Pixel is the set of element types an Image may carry.
type Pixel interface {
	~uint8 | ~float32 | ~float64
}

// Grid is the read-only, element-type independent view of an Image.
// It is what measurement channels and metrics accept, so callers can
// mix element types freely.
type Grid interface {
	// Shape returns the dimensions, outermost first.
	Shape() []int

	// Len returns the number of elements.
	Len() int

	// Float64At returns the element at flat index i widened to float64.
	Float64At(i int) float64

	// FullScale is the nominal maximum intensity of the element type:
	// 255 for uint8 and 1 for floating point grids.
	FullScale() float64
}

// Image is a dense grid of T with an explicit shape.
type Image[T Pixel] struct {
	shape []int
	data  []T
}

// New allocates a zeroed Image with the given shape.
// Every dimension must be positive.
func New[T Pixel](shape ...int) (*Image[T], error) {
	n, err := volume(shape)
	if err != nil {
		return nil, err
	}
	return &Image[T]{shape: append([]int(nil), shape...), data: make([]T, n)}, nil
}

// FromSlice wraps data in an Image with the given shape. The slice is
// used directly, not copied.
func FromSlice[T Pixel](data []T, shape ...int) (*Image[T], error) {
	n, err := volume(shape)
	if err != nil {
		return nil, err
	}
	if len(data) != n {
		return nil, fmt.Errorf("data length %d does not match shape %v (%d elements)", len(data), shape, n)
	}
	return &Image[T]{shape: append([]int(nil), shape...), data: data}, nil
}

func volume(shape []int) (int, error) {
	if len(shape) == 0 {
		return 0, fmt.Errorf("shape must have at least one dimension")
	}
	n := 1
	for i, d := range shape {
		if d <= 0 {
			return 0, fmt.Errorf("dimension %d must be positive, got %d", i, d)
		}
		n *= d
	}
	return n, nil
}

// Shape returns a copy of the image dimensions.
func (m *Image[T]) Shape() []int {
	return append([]int(nil), m.shape...)
}

// Rank returns the number of dimensions.
func (m *Image[T]) Rank() int {
	return len(m.shape)
}

// Len returns the number of elements.
func (m *Image[T]) Len() int {
	return len(m.data)
}

// Data returns the backing slice.
func (m *Image[T]) Data() []T {
	return m.data
}

// Height returns the first dimension.
func (m *Image[T]) Height() int {
	return m.shape[0]
}

// Width returns the second dimension, or 1 for rank-1 grids.
func (m *Image[T]) Width() int {
	if len(m.shape) < 2 {
		return 1
	}
	return m.shape[1]
}

// Channels returns the third dimension, or 1 for rank-2 grids.
func (m *Image[T]) Channels() int {
	if len(m.shape) < 3 {
		return 1
	}
	return m.shape[2]
}

// Float64At implements Grid.
func (m *Image[T]) Float64At(i int) float64 {
	return float64(m.data[i])
}

// FullScale implements Grid.
func (m *Image[T]) FullScale() float64 {
	return FullScale[T]()
}

// At returns the element at row y, column x and channel c.
func (m *Image[T]) At(y, x, c int) T {
	return m.data[(y*m.Width()+x)*m.Channels()+c]
}

// Set stores v at row y, column x and channel c.
func (m *Image[T]) Set(y, x, c int, v T) {
	m.data[(y*m.Width()+x)*m.Channels()+c] = v
}

// Clone returns a deep copy.
func (m *Image[T]) Clone() *Image[T] {
	return &Image[T]{
		shape: append([]int(nil), m.shape...),
		data:  append([]T(nil), m.data...),
	}
}

// Channel extracts channel c of a rank-3 image as a rank-2 image.
func (m *Image[T]) Channel(c int) (*Image[T], error) {
	if c < 0 || c >= m.Channels() {
		return nil, fmt.Errorf("channel %d out of range [0,%d)", c, m.Channels())
	}
	h, w, ch := m.Height(), m.Width(), m.Channels()
	out := make([]T, h*w)
	for i := range out {
		out[i] = m.data[i*ch+c]
	}
	return &Image[T]{shape: []int{h, w}, data: out}, nil
}

// FullScale returns the nominal maximum intensity for T.
func FullScale[T Pixel]() float64 {
	var zero T
	switch any(zero).(type) {
	case uint8:
		return 255
	}
	return 1
}

// Convert returns src converted element-wise to a new Image[D] of the same
// shape. Conversions into uint8 round to nearest and saturate.
func Convert[D, S Pixel](src *Image[S]) *Image[D] {
	out := &Image[D]{shape: append([]int(nil), src.shape...), data: make([]D, len(src.data))}
	cast := Caster[D]()
	for i, v := range src.data {
		out.data[i] = cast(float64(v))
	}
	return out
}

// FromGrid copies any Grid into a new Image[D] of the same shape.
func FromGrid[D Pixel](src Grid) *Image[D] {
	out := &Image[D]{shape: src.Shape(), data: make([]D, src.Len())}
	cast := Caster[D]()
	for i := range out.data {
		out.data[i] = cast(src.Float64At(i))
	}
	return out
}

// Caster returns the float64 to T conversion used when narrowing results.
// uint8 targets round half away from zero and saturate at [0,255]; float
// targets convert directly.
func Caster[T Pixel]() func(float64) T {
	var zero T
	switch any(zero).(type) {
	case uint8:
		return func(v float64) T { return T(saturateUint8(v)) }
	}
	return func(v float64) T { return T(v) }
}

func saturateUint8(v float64) uint8 {
	if v <= 0 || v != v {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(v + 0.5)
}
