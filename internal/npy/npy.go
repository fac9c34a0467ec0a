// Package npy loads NumPy array files, the primary container for exported
// coefficient tensors. One .npy file holds one tensor; a .npz archive bundles
// several.
package npy

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/sbinet/npyio"

	"github.com/samcharles93/kiln/pkg/tensor"
)

// NamedTensor pairs a tensor with the name it was stored under.
type NamedTensor struct {
	Name   string
	Tensor tensor.Tensor
}

// ReadFile loads a single floating-point tensor from a .npy file.
func ReadFile(path string) (tensor.Tensor, error) {
	f, err := os.Open(path)
	if err != nil {
		return tensor.Tensor{}, err
	}
	defer func() { _ = f.Close() }()

	t, err := Read(f)
	if err != nil {
		return tensor.Tensor{}, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// Read loads a floating-point tensor from npy-formatted data.
// f8 payloads are narrowed to f32; Fortran-order files are rejected.
func Read(r io.Reader) (tensor.Tensor, error) {
	rd, err := npyio.NewReader(r)
	if err != nil {
		return tensor.Tensor{}, err
	}

	hdr := rd.Header
	if hdr.Descr.Fortran {
		return tensor.Tensor{}, fmt.Errorf("fortran-order arrays are not supported")
	}

	shape := hdr.Descr.Shape
	n := 1
	for _, dim := range shape {
		n *= dim
	}

	switch {
	case strings.HasSuffix(hdr.Descr.Type, "f4"):
		data := make([]float32, n)
		if err := rd.Read(&data); err != nil {
			return tensor.Tensor{}, err
		}
		return tensor.New(shape, data)

	case strings.HasSuffix(hdr.Descr.Type, "f8"):
		wide := make([]float64, n)
		if err := rd.Read(&wide); err != nil {
			return tensor.Tensor{}, err
		}
		data := make([]float32, n)
		for i, v := range wide {
			data[i] = float32(v)
		}
		return tensor.New(shape, data)

	default:
		return tensor.Tensor{}, fmt.Errorf("unsupported dtype %q", hdr.Descr.Type)
	}
}

// ReadSample loads a raw unsigned-byte array (an input sample) from a .npy
// file, returning its flat payload.
func ReadSample(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	rd, err := npyio.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	hdr := rd.Header
	if !strings.HasSuffix(hdr.Descr.Type, "u1") {
		return nil, fmt.Errorf("%s: sample must be uint8, got dtype %q", path, hdr.Descr.Type)
	}

	n := 1
	for _, dim := range hdr.Descr.Shape {
		n *= dim
	}
	data := make([]uint8, n)
	if err := rd.Read(&data); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return data, nil
}

// ReadArchive loads every .npy entry of a .npz archive, sorted by entry name
// for a stable discovery order. Entry names have their .npy suffix stripped.
func ReadArchive(path string) ([]NamedTensor, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = zr.Close() }()

	entries := make([]*zip.File, 0, len(zr.File))
	for _, f := range zr.File {
		if strings.HasSuffix(f.Name, ".npy") {
			entries = append(entries, f)
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })

	tensors := make([]NamedTensor, 0, len(entries))
	for _, entry := range entries {
		rc, err := entry.Open()
		if err != nil {
			return nil, fmt.Errorf("%s: %s: %w", path, entry.Name, err)
		}
		t, err := Read(rc)
		_ = rc.Close()
		if err != nil {
			return nil, fmt.Errorf("%s: %s: %w", path, entry.Name, err)
		}
		tensors = append(tensors, NamedTensor{
			Name:   strings.TrimSuffix(entry.Name, ".npy"),
			Tensor: t,
		})
	}
	return tensors, nil
}
