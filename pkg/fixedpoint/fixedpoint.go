// Package fixedpoint maps floating-point coefficient tensors onto the signed
// 16-bit fixed-point representation the embedded target computes with. Every
// element of a tensor shares one power-of-two exponent, chosen so the largest
// magnitude lands in the top half of the positive int16 range.
package fixedpoint

import (
	"errors"
	"fmt"
	"math"

	"github.com/samcharles93/kiln/pkg/tensor"
)

var (
	ErrEmptyTensor  = errors.New("cannot quantize empty tensor")
	ErrInvalidValue = errors.New("non-finite value in tensor")
	ErrOverflow     = errors.New("quantized value overflows int16")
)

// Exponent search keeps max|stored| in [rangeLow, rangeHigh].
const (
	rangeLow  = 1 << 14
	rangeHigh = 1<<15 - 1
)

// Quantized is a fixed-point tensor: real value ≈ Values[i] * 2^Exponent.
type Quantized struct {
	Shape    []int
	Values   []int16
	Exponent int
}

// Quantize converts t to fixed point, auto-detecting the exponent from the
// tensor's value range. An all-zero tensor quantizes to exponent 0 and all
// zero values.
func Quantize(t tensor.Tensor) (Quantized, error) {
	data := t.Data()
	if len(data) == 0 {
		return Quantized{}, ErrEmptyTensor
	}

	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range data {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return Quantized{}, fmt.Errorf("%w: %v", ErrInvalidValue, f)
		}
		lo = math.Min(lo, f)
		hi = math.Max(hi, f)
	}

	// The target format is signed, so an entirely positive tensor still
	// spends one bit on sign: treat 0 as part of the range.
	lo = math.Min(lo, 0)

	bound := math.Max(math.Abs(lo), math.Abs(hi))
	exponent := 0
	if bound > 0 {
		for bound > rangeHigh {
			bound /= 2
			exponent++
		}
		for bound < rangeLow {
			bound *= 2
			exponent--
		}
	}

	return Quantized{
		Shape:    t.Shape(),
		Values:   scale(data, exponent),
		Exponent: exponent,
	}, nil
}

// QuantizeWithExponent converts t using a caller-supplied exponent, for
// example one determined by an earlier calibration pass. No range search is
// performed; any element that scales outside int16 fails with ErrOverflow.
func QuantizeWithExponent(t tensor.Tensor, exponent int) (Quantized, error) {
	data := t.Data()
	if len(data) == 0 {
		return Quantized{}, ErrEmptyTensor
	}

	for i, v := range data {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return Quantized{}, fmt.Errorf("%w: %v", ErrInvalidValue, f)
		}
		if s := math.Round(math.Ldexp(f, -exponent)); s > math.MaxInt16 || s < math.MinInt16 {
			return Quantized{}, fmt.Errorf("%w: element %d (%v) scales to %v under exponent %d",
				ErrOverflow, i, v, s, exponent)
		}
	}

	return Quantized{
		Shape:    t.Shape(),
		Values:   scale(data, exponent),
		Exponent: exponent,
	}, nil
}

// Dequantize recovers the approximate real-valued tensor.
func (q Quantized) Dequantize() (tensor.Tensor, error) {
	data := make([]float32, len(q.Values))
	for i, v := range q.Values {
		data[i] = float32(math.Ldexp(float64(v), q.Exponent))
	}
	return tensor.New(q.Shape, data)
}

// Len returns the total element count.
func (q Quantized) Len() int {
	return len(q.Values)
}

func scale(data []float32, exponent int) []int16 {
	out := make([]int16, len(data))
	for i, v := range data {
		s := math.Round(math.Ldexp(float64(v), -exponent))
		// The exponent search bounds the driving element just below the
		// range limit, but rounding can still carry it one past.
		if s > math.MaxInt16 {
			s = math.MaxInt16
		} else if s < math.MinInt16 {
			s = math.MinInt16
		}
		out[i] = int16(s)
	}
	return out
}
