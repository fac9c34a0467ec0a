package npy

import (
	"archive/zip"
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
)

// npyBytes builds a minimal npy v1.0 file in memory.
func npyBytes(t *testing.T, descr string, fortran bool, shape []int, payload []byte) []byte {
	t.Helper()

	// mirror numpy's own tuple syntax: (6,) for rank 1, (2, 3) otherwise
	var tuple string
	switch len(shape) {
	case 0:
		tuple = "()"
	case 1:
		tuple = fmt.Sprintf("(%d,)", shape[0])
	default:
		dims := make([]string, len(shape))
		for i, d := range shape {
			dims[i] = fmt.Sprintf("%d", d)
		}
		tuple = "(" + strings.Join(dims, ", ") + ")"
	}
	order := "False"
	if fortran {
		order = "True"
	}
	header := fmt.Sprintf("{'descr': '%s', 'fortran_order': %s, 'shape': %s, }",
		descr, order, tuple)

	// pad so magic+version+len+header is a multiple of 64, newline-terminated
	total := 6 + 2 + 2 + len(header) + 1
	pad := (64 - total%64) % 64
	header += strings.Repeat(" ", pad) + "\n"

	var buf bytes.Buffer
	buf.WriteString("\x93NUMPY")
	buf.Write([]byte{1, 0})
	if err := binary.Write(&buf, binary.LittleEndian, uint16(len(header))); err != nil {
		t.Fatalf("write header len: %v", err)
	}
	buf.WriteString(header)
	buf.Write(payload)
	return buf.Bytes()
}

func f32Payload(t *testing.T, values []float32) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, values); err != nil {
		t.Fatalf("write payload: %v", err)
	}
	return buf.Bytes()
}

func TestReadF32(t *testing.T) {
	t.Parallel()

	values := []float32{1, -2, 3, -0.5, 5, 6}
	data := npyBytes(t, "<f4", false, []int{2, 3}, f32Payload(t, values))

	tt, err := Read(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !slices.Equal(tt.Shape(), []int{2, 3}) {
		t.Errorf("shape = %v, want [2 3]", tt.Shape())
	}
	if !slices.Equal(tt.Data(), values) {
		t.Errorf("data = %v, want %v", tt.Data(), values)
	}
}

func TestReadF64Narrows(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	wide := []float64{0.5, -1.25, math.Pi}
	if err := binary.Write(&buf, binary.LittleEndian, wide); err != nil {
		t.Fatalf("write payload: %v", err)
	}
	data := npyBytes(t, "<f8", false, []int{3}, buf.Bytes())

	tt, err := Read(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	want := []float32{0.5, -1.25, float32(math.Pi)}
	if !slices.Equal(tt.Data(), want) {
		t.Errorf("data = %v, want %v", tt.Data(), want)
	}
}

func TestReadRejectsFortranOrder(t *testing.T) {
	t.Parallel()

	data := npyBytes(t, "<f4", true, []int{2, 2}, f32Payload(t, make([]float32, 4)))
	if _, err := Read(bytes.NewReader(data)); err == nil {
		t.Fatal("expected error for fortran-order array")
	}
}

func TestReadRejectsUnsupportedDType(t *testing.T) {
	t.Parallel()

	data := npyBytes(t, "<i4", false, []int{1}, []byte{1, 0, 0, 0})
	if _, err := Read(bytes.NewReader(data)); err == nil {
		t.Fatal("expected error for int32 array")
	}
}

func TestReadFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "fc1_w.npy")
	values := []float32{1, 2, 3, 4}
	if err := os.WriteFile(path, npyBytes(t, "<f4", false, []int{4}, f32Payload(t, values)), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	tt, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !slices.Equal(tt.Data(), values) {
		t.Errorf("data = %v, want %v", tt.Data(), values)
	}
}

func TestReadSample(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "sample.npy")
	payload := []byte{0, 1, 2, 255}
	if err := os.WriteFile(path, npyBytes(t, "|u1", false, []int{2, 2}, payload), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	data, err := ReadSample(path)
	if err != nil {
		t.Fatalf("ReadSample: %v", err)
	}
	if !bytes.Equal(data, payload) {
		t.Errorf("data = %v, want %v", data, payload)
	}

	// float input is not a valid sample
	fpath := filepath.Join(dir, "f.npy")
	if err := os.WriteFile(fpath, npyBytes(t, "<f4", false, []int{1}, f32Payload(t, []float32{1})), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := ReadSample(fpath); err == nil {
		t.Fatal("expected error for float sample")
	}
}

func TestReadArchive(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "weights.npz")

	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	zw := zip.NewWriter(f)
	// deliberately out of order to exercise the sort
	for _, entry := range []struct {
		name   string
		values []float32
	}{
		{"fc2_w.npy", []float32{5, 6}},
		{"conv1_b.npy", []float32{1, 2, 3}},
	} {
		w, err := zw.Create(entry.name)
		if err != nil {
			t.Fatalf("zip create %s: %v", entry.name, err)
		}
		if _, err := w.Write(npyBytes(t, "<f4", false, []int{len(entry.values)}, f32Payload(t, entry.values))); err != nil {
			t.Fatalf("zip write %s: %v", entry.name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	tensors, err := ReadArchive(path)
	if err != nil {
		t.Fatalf("ReadArchive: %v", err)
	}
	if len(tensors) != 2 {
		t.Fatalf("got %d tensors, want 2", len(tensors))
	}
	if tensors[0].Name != "conv1_b" || tensors[1].Name != "fc2_w" {
		t.Errorf("names = [%s %s], want sorted [conv1_b fc2_w]", tensors[0].Name, tensors[1].Name)
	}
	if !slices.Equal(tensors[0].Tensor.Data(), []float32{1, 2, 3}) {
		t.Errorf("conv1_b data = %v", tensors[0].Tensor.Data())
	}
}
