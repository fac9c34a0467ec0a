// Package tensor holds the dense numeric array type the exporter pipeline
// passes between its transforms.
package tensor

import (
	"errors"
	"fmt"
)

var ErrShape = errors.New("invalid tensor shape")

// Tensor is an immutable, rectangular, dense float32 array in row-major
// order. Transforms never modify a Tensor in place; each one allocates a
// fresh Tensor for its result.
type Tensor struct {
	shape []int
	data  []float32
}

// New builds a Tensor from a shape and row-major backing data.
// The backing slice is copied, so callers are free to reuse it.
func New(shape []int, data []float32) (Tensor, error) {
	n := 1
	for _, dim := range shape {
		if dim < 0 {
			return Tensor{}, fmt.Errorf("%w: negative axis in %v", ErrShape, shape)
		}
		n *= dim
	}
	if len(data) != n {
		return Tensor{}, fmt.Errorf("%w: %v holds %d elements, got %d", ErrShape, shape, n, len(data))
	}
	t := Tensor{
		shape: make([]int, len(shape)),
		data:  make([]float32, len(data)),
	}
	copy(t.shape, shape)
	copy(t.data, data)
	return t, nil
}

// Rank returns the number of axes.
func (t Tensor) Rank() int {
	return len(t.shape)
}

// Shape returns a copy of the axis lengths.
func (t Tensor) Shape() []int {
	return append([]int(nil), t.shape...)
}

// Dim returns the length of axis i.
func (t Tensor) Dim(i int) int {
	return t.shape[i]
}

// Len returns the total element count.
func (t Tensor) Len() int {
	return len(t.data)
}

// Data returns a copy of the row-major backing storage.
func (t Tensor) Data() []float32 {
	return append([]float32(nil), t.data...)
}

// At returns the element at the given multi-index.
func (t Tensor) At(idx ...int) float32 {
	if len(idx) != len(t.shape) {
		panic(fmt.Sprintf("tensor: index rank %d against shape %v", len(idx), t.shape))
	}
	flat := 0
	for i, ix := range idx {
		if ix < 0 || ix >= t.shape[i] {
			panic(fmt.Sprintf("tensor: index %v out of range for shape %v", idx, t.shape))
		}
		flat = flat*t.shape[i] + ix
	}
	return t.data[flat]
}
