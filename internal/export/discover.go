package export

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/samcharles93/kiln/internal/npy"
	"github.com/samcharles93/kiln/internal/safetensors"
	"github.com/samcharles93/kiln/internal/torch"
	"github.com/samcharles93/kiln/pkg/tensor"
)

// Source is one discovered coefficient tensor, named and ready for
// conversion. Discovery returns sources in a stable sorted order; everything
// downstream treats that order as opaque.
type Source struct {
	Name   string
	Tensor tensor.Tensor
}

// Discover resolves an input path (a directory of .npy files, or a single
// .npy/.npz/.safetensors/torch checkpoint) into named tensors.
func Discover(input string) ([]Source, error) {
	info, err := os.Stat(input)
	if err != nil {
		return nil, err
	}

	var sources []Source
	if info.IsDir() {
		sources, err = discoverDir(input)
	} else {
		sources, err = readFile(input)
	}
	if err != nil {
		return nil, err
	}
	if len(sources) == 0 {
		return nil, fmt.Errorf("%s: no coefficient tensors found", input)
	}

	seen := make(map[string]struct{}, len(sources))
	for i := range sources {
		sources[i].Name = Sanitize(sources[i].Name)
		if _, ok := seen[sources[i].Name]; ok {
			return nil, fmt.Errorf("duplicate tensor name %q after sanitizing", sources[i].Name)
		}
		seen[sources[i].Name] = struct{}{}
	}
	return sources, nil
}

func discoverDir(dir string) ([]Source, error) {
	// one format per directory, probed in order
	patterns := []string{"*.npy", "*.safetensors", "*.npz", "pytorch_model*.bin", "*.pth"}
	for _, pattern := range patterns {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, err
		}
		if len(matches) == 0 {
			continue
		}
		sort.Strings(matches)

		var sources []Source
		for _, m := range matches {
			s, err := readFile(m)
			if err != nil {
				return nil, err
			}
			sources = append(sources, s...)
		}
		return sources, nil
	}
	return nil, errors.New("no supported coefficient files found")
}

func readFile(path string) ([]Source, error) {
	switch {
	case strings.HasSuffix(path, ".npy"):
		t, err := npy.ReadFile(path)
		if err != nil {
			return nil, err
		}
		name := strings.TrimSuffix(filepath.Base(path), ".npy")
		return []Source{{Name: name, Tensor: t}}, nil

	case strings.HasSuffix(path, ".npz"):
		tensors, err := npy.ReadArchive(path)
		if err != nil {
			return nil, err
		}
		sources := make([]Source, len(tensors))
		for i, nt := range tensors {
			sources[i] = Source{Name: nt.Name, Tensor: nt.Tensor}
		}
		return sources, nil

	case strings.HasSuffix(path, ".safetensors"):
		f, err := safetensors.Open(path)
		if err != nil {
			return nil, err
		}
		defer func() { _ = f.Close() }()

		var sources []Source
		for _, name := range f.Names() {
			t, err := f.Tensor(name)
			if err != nil {
				return nil, err
			}
			sources = append(sources, Source{Name: name, Tensor: t})
		}
		return sources, nil

	case strings.HasSuffix(path, ".bin") || strings.HasSuffix(path, ".pth") || strings.HasSuffix(path, ".pt"):
		tensors, err := torch.Load(path)
		if err != nil {
			return nil, err
		}
		sources := make([]Source, 0, len(tensors))
		for _, nt := range tensors {
			sources = append(sources, Source{Name: nt.Name, Tensor: nt.Tensor})
		}
		sort.Slice(sources, func(i, j int) bool { return sources[i].Name < sources[j].Name })
		return sources, nil

	default:
		return nil, fmt.Errorf("%s: unsupported input format", path)
	}
}

// Sanitize rewrites a tensor name into a valid C identifier.
func Sanitize(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for i, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '_':
			b.WriteRune(r)
		case r >= '0' && r <= '9':
			if i == 0 {
				b.WriteByte('_')
			}
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}
