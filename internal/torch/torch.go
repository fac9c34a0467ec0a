// Package torch loads tensors from PyTorch pickle checkpoints
// (pytorch_model.bin style state dicts).
package torch

import (
	"fmt"

	"github.com/nlpodyssey/gopickle/pytorch"
	"github.com/nlpodyssey/gopickle/types"

	"github.com/samcharles93/kiln/pkg/tensor"
)

// NamedTensor pairs a tensor with its state-dict key.
type NamedTensor struct {
	Name   string
	Tensor tensor.Tensor
}

// Load unpickles a checkpoint and decodes every float tensor in state-dict
// key order.
func Load(path string) ([]NamedTensor, error) {
	m, err := pytorch.Load(path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	dict, ok := m.(*types.Dict)
	if !ok {
		return nil, fmt.Errorf("%s: expected a state dict, got %T", path, m)
	}

	var out []NamedTensor
	for _, k := range dict.Keys() {
		name, ok := k.(string)
		if !ok {
			return nil, fmt.Errorf("%s: non-string state dict key %v", path, k)
		}

		pt, ok := dict.MustGet(k).(*pytorch.Tensor)
		if !ok {
			continue
		}

		t, err := decode(pt)
		if err != nil {
			return nil, fmt.Errorf("%s: tensor %s: %w", path, name, err)
		}
		out = append(out, NamedTensor{Name: name, Tensor: t})
	}
	return out, nil
}

func decode(pt *pytorch.Tensor) (tensor.Tensor, error) {
	var data []float32
	switch s := pt.Source.(type) {
	case *pytorch.FloatStorage:
		data = s.Data
	case *pytorch.HalfStorage:
		data = s.Data
	case *pytorch.BFloat16Storage:
		data = s.Data
	case *pytorch.DoubleStorage:
		data = make([]float32, len(s.Data))
		for i, v := range s.Data {
			data[i] = float32(v)
		}
	default:
		return tensor.Tensor{}, fmt.Errorf("unsupported storage type %T", s)
	}

	n := 1
	for _, dim := range pt.Size {
		n *= dim
	}
	if len(data) < n {
		return tensor.Tensor{}, fmt.Errorf("storage holds %d elements, shape %v needs %d", len(data), pt.Size, n)
	}
	return tensor.New(pt.Size, data[:n])
}
