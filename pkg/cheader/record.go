package cheader

import (
	"fmt"

	"github.com/samcharles93/kiln/pkg/fixedpoint"
	"github.com/samcharles93/kiln/pkg/tensor"
)

// Kind selects the payload representation of a Record.
type Kind int

const (
	// Float emits the coefficients as loaded, one float per element.
	Float Kind = iota
	// Fixed emits int16 elements plus the shared exponent field.
	Fixed
	// Sample emits a bare unsigned-byte element array with no metadata
	// struct, used for raw input samples.
	Sample
)

// Record is one exportable unit: a named coefficient array in target (N, H,
// W, C) order together with the metadata the consuming struct ABI needs.
// Records are built once, never modified, and consumed once by a Header.
type Record struct {
	Name string
	Kind Kind

	N, H, W, C int

	floats   []float32
	fixed    []int16
	bytes    []byte
	exponent int
}

// Stride is the row length in elements used by the consumer for addressing.
func (r Record) Stride() int {
	return r.W * r.C
}

// Len returns the payload element count.
func (r Record) Len() int {
	switch r.Kind {
	case Fixed:
		return len(r.fixed)
	case Sample:
		return len(r.bytes)
	default:
		return len(r.floats)
	}
}

// FloatRecord builds a passthrough record from a layout-converted tensor.
// The tensor must already be rank 4 in (N, H, W, C) order.
func FloatRecord(name string, t tensor.Tensor) (Record, error) {
	if t.Rank() != 4 {
		return Record{}, fmt.Errorf("%w: record %q has rank %d, want 4", tensor.ErrShape, name, t.Rank())
	}
	return Record{
		Name:   name,
		Kind:   Float,
		N:      t.Dim(0),
		H:      t.Dim(1),
		W:      t.Dim(2),
		C:      t.Dim(3),
		floats: t.Data(),
	}, nil
}

// FixedRecord builds a quantized record. The quantized shape must be rank 4
// in (N, H, W, C) order.
func FixedRecord(name string, q fixedpoint.Quantized) (Record, error) {
	if len(q.Shape) != 4 {
		return Record{}, fmt.Errorf("%w: record %q has rank %d, want 4", tensor.ErrShape, name, len(q.Shape))
	}
	values := append([]int16(nil), q.Values...)
	return Record{
		Name:     name,
		Kind:     Fixed,
		N:        q.Shape[0],
		H:        q.Shape[1],
		W:        q.Shape[2],
		C:        q.Shape[3],
		fixed:    values,
		exponent: q.Exponent,
	}, nil
}

// SampleRecord builds a raw unsigned-byte record for an input sample.
func SampleRecord(name string, data []byte) Record {
	return Record{
		Name:  name,
		Kind:  Sample,
		bytes: append([]byte(nil), data...),
	}
}

// Exponent returns the shared power-of-two scale of a Fixed record.
func (r Record) Exponent() int {
	return r.exponent
}
