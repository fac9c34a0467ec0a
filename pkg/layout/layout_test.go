package layout

import (
	"errors"
	"math/rand"
	"slices"
	"testing"

	"github.com/samcharles93/kiln/pkg/tensor"
)

func mustTensor(t *testing.T, shape []int, data []float32) tensor.Tensor {
	t.Helper()
	tt, err := tensor.New(shape, data)
	if err != nil {
		t.Fatalf("tensor.New(%v): %v", shape, err)
	}
	return tt
}

func TestClassify(t *testing.T) {
	t.Parallel()

	cases := []struct {
		rank int
		want Class
	}{
		{1, Bias},
		{2, Dense},
		{3, Conv},
		{4, Conv},
	}
	for _, tc := range cases {
		got, err := Classify(tc.rank)
		if err != nil {
			t.Fatalf("Classify(%d): %v", tc.rank, err)
		}
		if got != tc.want {
			t.Errorf("Classify(%d) = %v, want %v", tc.rank, got, tc.want)
		}
	}

	for _, rank := range []int{0, 5, 7} {
		if _, err := Classify(rank); !errors.Is(err, tensor.ErrShape) {
			t.Errorf("Classify(%d): expected tensor.ErrShape, got %v", rank, err)
		}
	}
}

func TestConvertBiasVector(t *testing.T) {
	t.Parallel()

	in := mustTensor(t, []int{5}, []float32{1, 2, 3, 4, 5})
	out, err := Convert(in)
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if !slices.Equal(out.Shape(), []int{1, 1, 1, 5}) {
		t.Fatalf("shape = %v, want [1 1 1 5]", out.Shape())
	}
	for c := 0; c < 5; c++ {
		if got, want := out.At(0, 0, 0, c), in.At(c); got != want {
			t.Errorf("out[0,0,0,%d] = %v, want %v", c, got, want)
		}
	}
}

func TestConvertDenseMatrix(t *testing.T) {
	t.Parallel()

	// (W_in=2, H_out=2) input [[1,-2],[3,-0.5]] transposes into (1,2,2,1).
	in := mustTensor(t, []int{2, 2}, []float32{1, -2, 3, -0.5})
	out, err := Convert(in)
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if !slices.Equal(out.Shape(), []int{1, 2, 2, 1}) {
		t.Fatalf("shape = %v, want [1 2 2 1]", out.Shape())
	}

	want := map[[2]int]float32{
		{0, 0}: 1,
		{1, 0}: -2,
		{0, 1}: 3,
		{1, 1}: -0.5,
	}
	for hw, v := range want {
		if got := out.At(0, hw[0], hw[1], 0); got != v {
			t.Errorf("out[0,%d,%d,0] = %v, want %v", hw[0], hw[1], got, v)
		}
	}
}

func TestConvertConvKernel(t *testing.T) {
	t.Parallel()

	// (H=1, W=1, C=2, N=3) with values [[[[1,2,3],[4,5,6]]]].
	in := mustTensor(t, []int{1, 1, 2, 3}, []float32{1, 2, 3, 4, 5, 6})
	out, err := Convert(in)
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if !slices.Equal(out.Shape(), []int{3, 1, 1, 2}) {
		t.Fatalf("shape = %v, want [3 1 1 2]", out.Shape())
	}
	if !slices.Equal(out.Data(), []float32{1, 4, 2, 5, 3, 6}) {
		t.Errorf("data = %v, want [1 4 2 5 3 6]", out.Data())
	}
}

func TestConvertConvIndexIdentity(t *testing.T) {
	t.Parallel()

	const (
		H = 3
		W = 2
		C = 4
		N = 5
	)
	rng := rand.New(rand.NewSource(1))
	data := make([]float32, H*W*C*N)
	for i := range data {
		data[i] = rng.Float32()
	}

	in := mustTensor(t, []int{H, W, C, N}, data)
	out, err := Convert(in)
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if !slices.Equal(out.Shape(), []int{N, H, W, C}) {
		t.Fatalf("shape = %v, want [%d %d %d %d]", out.Shape(), N, H, W, C)
	}

	for n := 0; n < N; n++ {
		for h := 0; h < H; h++ {
			for w := 0; w < W; w++ {
				for c := 0; c < C; c++ {
					if got, want := out.At(n, h, w, c), in.At(h, w, c, n); got != want {
						t.Fatalf("out[%d,%d,%d,%d] = %v, want in[%d,%d,%d,%d] = %v",
							n, h, w, c, got, h, w, c, n, want)
					}
				}
			}
		}
	}
}

func TestConvertRank3Kernel(t *testing.T) {
	t.Parallel()

	// (W=2, C=2, N=2) is read as (H=1, W=2, C=2, N=2).
	in := mustTensor(t, []int{2, 2, 2}, []float32{0, 1, 2, 3, 4, 5, 6, 7})
	out, err := Convert(in)
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if !slices.Equal(out.Shape(), []int{2, 1, 2, 2}) {
		t.Fatalf("shape = %v, want [2 1 2 2]", out.Shape())
	}
	for n := 0; n < 2; n++ {
		for w := 0; w < 2; w++ {
			for c := 0; c < 2; c++ {
				if got, want := out.At(n, 0, w, c), in.At(w, c, n); got != want {
					t.Errorf("out[%d,0,%d,%d] = %v, want %v", n, w, c, got, want)
				}
			}
		}
	}
}

func TestConvertDenseIndexIdentity(t *testing.T) {
	t.Parallel()

	const (
		W = 7
		H = 4
	)
	data := make([]float32, W*H)
	for i := range data {
		data[i] = float32(i)
	}

	in := mustTensor(t, []int{W, H}, data)
	out, err := Convert(in)
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if !slices.Equal(out.Shape(), []int{1, H, W, 1}) {
		t.Fatalf("shape = %v, want [1 %d %d 1]", out.Shape(), H, W)
	}
	for w := 0; w < W; w++ {
		for h := 0; h < H; h++ {
			if got, want := out.At(0, h, w, 0), in.At(w, h); got != want {
				t.Fatalf("out[0,%d,%d,0] = %v, want %v", h, w, got, want)
			}
		}
	}
}

func TestConvertPreservesElementCount(t *testing.T) {
	t.Parallel()

	shapes := [][]int{{3}, {4, 2}, {2, 3, 4}, {2, 3, 4, 5}}
	for _, shape := range shapes {
		n := 1
		for _, d := range shape {
			n *= d
		}
		in := mustTensor(t, shape, make([]float32, n))
		out, err := Convert(in)
		if err != nil {
			t.Fatalf("Convert(%v): %v", shape, err)
		}
		if out.Rank() != 4 {
			t.Errorf("Convert(%v): rank = %d, want 4", shape, out.Rank())
		}
		if out.Len() != n {
			t.Errorf("Convert(%v): %d elements, want %d", shape, out.Len(), n)
		}
	}
}
