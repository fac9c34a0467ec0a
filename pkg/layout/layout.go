// Package layout reorders coefficient tensors from the training-framework
// axis convention into the memory layout the embedded inference library
// expects: batch/filter index outermost, then height, width, channel.
package layout

import (
	"fmt"

	pd "github.com/pdevine/tensor"
	"github.com/pdevine/tensor/native"

	"github.com/samcharles93/kiln/pkg/tensor"
)

// Class identifies which conversion rule applies to a source tensor.
// Classification is by rank alone, so an unsupported rank never reaches
// the conversion paths.
type Class int

const (
	// Bias is a rank-1 per-channel vector (bias or batch-norm term).
	Bias Class = iota
	// Dense is a rank-2 fully-connected weight matrix, source shape (W_in, H_out).
	Dense
	// Conv covers rank-3 and rank-4 kernels, source axis order (H, W, C, N).
	Conv
)

// Classify maps a tensor rank to its conversion class.
// Ranks outside 1..4 fail with tensor.ErrShape.
func Classify(rank int) (Class, error) {
	switch rank {
	case 1:
		return Bias, nil
	case 2:
		return Dense, nil
	case 3, 4:
		return Conv, nil
	default:
		return 0, fmt.Errorf("%w: rank %d not in 1..4", tensor.ErrShape, rank)
	}
}

// Convert remaps t into the target (N, H, W, C) order and always returns a
// rank-4 tensor. The element count is preserved exactly: this is a pure axis
// permutation plus reshape, never a value transformation.
//
//   - rank 1, length C:        -> (1, 1, 1, C), data order unchanged
//   - rank 2, (W_in, H_out):   -> (1, H_out, W_in, 1), axes transposed
//   - rank 3, (W, C, N):       -> (N, 1, W, C), treated as rank 4 with H=1
//   - rank 4, (H, W, C, N):    -> (N, H, W, C)
func Convert(t tensor.Tensor) (tensor.Tensor, error) {
	class, err := Classify(t.Rank())
	if err != nil {
		return tensor.Tensor{}, err
	}

	switch class {
	case Bias:
		// (C) reshaped to (1,1,C,1) then permuted to (1,1,1,C): the three
		// singleton axes make the permutation an identity on the data.
		return tensor.New([]int{1, 1, 1, t.Dim(0)}, t.Data())

	case Dense:
		w, h := t.Dim(0), t.Dim(1)
		out, err := permute(t, []int{1, 0})
		if err != nil {
			return tensor.Tensor{}, err
		}
		return tensor.New([]int{1, h, w, 1}, out)

	default: // Conv
		shape := t.Shape()
		if len(shape) == 3 {
			// Conv1d style kernels arrive without a height axis.
			shape = append([]int{1}, shape...)
		}
		h, w, c, n := shape[0], shape[1], shape[2], shape[3]
		out, err := permute(t, []int{3, 0, 1, 2})
		if err != nil {
			return tensor.Tensor{}, err
		}
		return tensor.New([]int{n, h, w, c}, out)
	}
}

// permute returns t's data reordered under the given axis permutation of the
// rank-4 view of t (rank-3 tensors get a leading singleton axis first).
func permute(t tensor.Tensor, axes []int) ([]float32, error) {
	if t.Len() == 0 {
		return nil, nil
	}

	shape := t.Shape()
	if len(axes) == 4 && len(shape) == 3 {
		shape = append([]int{1}, shape...)
	}

	var tt pd.Tensor = pd.New(pd.WithShape(shape...), pd.WithBacking(t.Data()))
	tt, err := pd.Transpose(tt, axes...)
	if err != nil {
		return nil, err
	}

	// flatten so the backing can be read out as a vector
	if err := tt.Reshape(tt.Shape().TotalSize()); err != nil {
		return nil, err
	}

	return native.VectorF32(tt.(*pd.Dense))
}
