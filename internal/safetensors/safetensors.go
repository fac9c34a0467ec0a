// Package safetensors reads safetensors files as a multi-tensor input for the
// exporter. The whole file is mapped read-only where mmap is available so
// tensor payloads are decoded straight out of the mapping.
package safetensors

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"sort"

	"github.com/d4l3k/go-bfloat16"
	json "github.com/goccy/go-json"
	"github.com/x448/float16"
	"golang.org/x/sys/unix"

	"github.com/samcharles93/kiln/pkg/tensor"
)

type TensorInfo struct {
	DType string
	Shape []int
	Start int64
	End   int64
}

type File struct {
	path      string
	data      []byte
	mmapped   bool
	dataStart int64
	names     []string
	tensors   map[string]TensorInfo
}

type tensorHeader struct {
	DType       string  `json:"dtype"`
	Shape       []int   `json:"shape"`
	DataOffsets []int64 `json:"data_offsets"`
}

// Open maps a safetensors file and parses its header. The returned file must
// be closed to release the mapping.
func Open(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	stat, err := f.Stat()
	if err != nil {
		return nil, err
	}
	size64 := stat.Size()
	if size64 < 8 || size64 > int64(int(^uint(0)>>1)) {
		return nil, fmt.Errorf("%s: not a safetensors file", path)
	}
	size := int(size64)

	// Prefer mmap for zero-copy payload slices.
	data, err := unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ, unix.MAP_SHARED)
	mmapped := err == nil
	if !mmapped {
		data = make([]byte, size)
		if _, err := f.ReadAt(data, 0); err != nil {
			return nil, err
		}
	}

	sf, err := parse(path, data, mmapped)
	if err != nil {
		if mmapped {
			_ = unix.Munmap(data)
		}
		return nil, err
	}
	return sf, nil
}

func parse(path string, data []byte, mmapped bool) (*File, error) {
	headerLen := binary.LittleEndian.Uint64(data[:8])
	if headerLen > uint64(len(data)-8) {
		return nil, fmt.Errorf("%s: header length %d exceeds file size", path, headerLen)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data[8:8+headerLen], &raw); err != nil {
		return nil, fmt.Errorf("%s: parse header: %w", path, err)
	}
	delete(raw, "__metadata__")

	tensors := make(map[string]TensorInfo, len(raw))
	names := make([]string, 0, len(raw))
	for name, msg := range raw {
		var th tensorHeader
		if err := json.Unmarshal(msg, &th); err != nil {
			return nil, fmt.Errorf("%s: parse tensor %s: %w", path, name, err)
		}
		if len(th.DataOffsets) != 2 || th.DataOffsets[1] < th.DataOffsets[0] {
			return nil, fmt.Errorf("%s: tensor %s: invalid data_offsets", path, name)
		}
		tensors[name] = TensorInfo{
			DType: th.DType,
			Shape: th.Shape,
			Start: th.DataOffsets[0],
			End:   th.DataOffsets[1],
		}
		names = append(names, name)
	}
	sort.Strings(names)

	return &File{
		path:      path,
		data:      data,
		mmapped:   mmapped,
		dataStart: int64(8 + headerLen),
		names:     names,
		tensors:   tensors,
	}, nil
}

// Close releases the mapping, if any. The file is unusable afterwards.
func (f *File) Close() error {
	data := f.data
	f.data = nil
	if f.mmapped && data != nil {
		return unix.Munmap(data)
	}
	return nil
}

// Names returns the stored tensor names in sorted order.
func (f *File) Names() []string {
	return append([]string(nil), f.names...)
}

// Info returns the stored metadata for a tensor.
func (f *File) Info(name string) (TensorInfo, bool) {
	t, ok := f.tensors[name]
	return t, ok
}

// Tensor decodes the named tensor to float32.
// Supported dtypes: F32, F16, BF16.
func (f *File) Tensor(name string) (tensor.Tensor, error) {
	info, ok := f.tensors[name]
	if !ok {
		return tensor.Tensor{}, fmt.Errorf("%s: tensor not found: %s", f.path, name)
	}

	start := f.dataStart + info.Start
	end := f.dataStart + info.End
	if start < 0 || end > int64(len(f.data)) {
		return tensor.Tensor{}, fmt.Errorf("%s: tensor %s: offsets outside file", f.path, name)
	}
	raw := f.data[start:end]

	n := 1
	for _, dim := range info.Shape {
		n *= dim
	}

	var out []float32
	switch info.DType {
	case "F32":
		if len(raw) != n*4 {
			return tensor.Tensor{}, fmt.Errorf("%s: tensor %s: invalid f32 payload size", f.path, name)
		}
		out = make([]float32, n)
		for i := range out {
			out[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
		}

	case "F16":
		if len(raw) != n*2 {
			return tensor.Tensor{}, fmt.Errorf("%s: tensor %s: invalid f16 payload size", f.path, name)
		}
		out = make([]float32, n)
		for i := range out {
			out[i] = float16.Frombits(binary.LittleEndian.Uint16(raw[i*2:])).Float32()
		}

	case "BF16":
		if len(raw) != n*2 {
			return tensor.Tensor{}, fmt.Errorf("%s: tensor %s: invalid bf16 payload size", f.path, name)
		}
		out = bfloat16.DecodeFloat32(raw)

	default:
		return tensor.Tensor{}, fmt.Errorf("%s: tensor %s: unsupported dtype %s", f.path, name, info.DType)
	}

	return tensor.New(info.Shape, out)
}
