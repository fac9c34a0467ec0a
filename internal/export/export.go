// Package export drives the conversion run: discover coefficient tensors,
// remap each into the target layout, optionally quantize, and serialize the
// accumulated records into a C header artifact.
package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/samcharles93/kiln/internal/logger"
	"github.com/samcharles93/kiln/internal/npy"
	"github.com/samcharles93/kiln/pkg/cheader"
	"github.com/samcharles93/kiln/pkg/fixedpoint"
	"github.com/samcharles93/kiln/pkg/layout"
)

// Mode selects the coefficient representation in the emitted header.
type Mode string

const (
	// ModeFloat keeps coefficients as loaded; the quantizer is bypassed.
	ModeFloat Mode = "float"
	// ModeFixed applies auto-exponent 16-bit quantization per tensor.
	ModeFixed Mode = "fixed"
)

// ParseMode validates a mode selector.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeFloat, ModeFixed:
		return Mode(s), nil
	default:
		return "", fmt.Errorf("unknown mode %q (want float or fixed)", s)
	}
}

// Options configures a conversion run.
type Options struct {
	// Input is a directory of .npy files or a single multi-tensor file.
	Input string

	// Output is the header file to create.
	Output string

	// Mode selects float passthrough or fixed-point quantization.
	Mode Mode

	// Guard overrides the include-guard symbol, default derived from Output.
	Guard string

	// StructName and ItemType override the emitted C type names.
	StructName string
	ItemType   string

	// Workers bounds the concurrent record conversions. Default GOMAXPROCS.
	Workers int

	Logger logger.Logger
}

// Run performs one conversion run. Records are converted concurrently
// (tensors are independent) and emitted sequentially in discovery order; the
// first failing record aborts the run and no output file is written.
func Run(ctx context.Context, opts Options) error {
	if opts.Input == "" {
		return fmt.Errorf("export: input required")
	}
	if opts.Output == "" {
		return fmt.Errorf("export: output required")
	}
	if opts.Mode == "" {
		opts.Mode = ModeFixed
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.GOMAXPROCS(0)
	}
	log := opts.Logger
	if log == nil {
		log = logger.Default()
	}

	sources, err := Discover(opts.Input)
	if err != nil {
		return err
	}
	log.Info("discovered tensors", "count", len(sources), "input", opts.Input)

	records := make([]cheader.Record, len(sources))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Workers)
	for i, src := range sources {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			rec, err := buildRecord(src, opts.Mode)
			if err != nil {
				return fmt.Errorf("%s: %w", src.Name, err)
			}
			records[i] = rec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	header := cheader.NewHeader(guardFor(opts), cheader.Options{
		StructName: opts.StructName,
		ItemType:   opts.ItemType,
	})
	for _, rec := range records {
		if rec.Kind == cheader.Fixed {
			log.Debug("converted", "tensor", rec.Name, "elements", rec.Len(), "exponent", rec.Exponent())
		} else {
			log.Debug("converted", "tensor", rec.Name, "elements", rec.Len())
		}
		header.Add(rec)
	}

	if err := writeHeader(opts.Output, header); err != nil {
		return err
	}
	log.Info("wrote header", "output", opts.Output, "records", header.Len(), "mode", string(opts.Mode))
	return nil
}

// SampleOptions configures the raw input-sample export.
type SampleOptions struct {
	// Input is a .npy file holding a uint8 array.
	Input string

	// Output is the header file to create.
	Output string

	// Name overrides the record name, default derived from Input.
	Name string

	// Guard overrides the include-guard symbol, default derived from Output.
	Guard string

	Logger logger.Logger
}

// RunSample emits a single unsigned-byte element array for a raw input
// sample. No metadata struct, no quantization.
func RunSample(opts SampleOptions) error {
	if opts.Input == "" {
		return fmt.Errorf("export: input required")
	}
	if opts.Output == "" {
		return fmt.Errorf("export: output required")
	}
	log := opts.Logger
	if log == nil {
		log = logger.Default()
	}

	data, err := npy.ReadSample(opts.Input)
	if err != nil {
		return err
	}

	name := opts.Name
	if name == "" {
		name = Sanitize(strings.TrimSuffix(filepath.Base(opts.Input), ".npy"))
	}

	header := cheader.NewHeader(guardFor(Options{Output: opts.Output, Guard: opts.Guard}), cheader.Options{})
	header.Add(cheader.SampleRecord(name, data))

	if err := writeHeader(opts.Output, header); err != nil {
		return err
	}
	log.Info("wrote sample header", "output", opts.Output, "bytes", len(data))
	return nil
}

func buildRecord(src Source, mode Mode) (cheader.Record, error) {
	nhwc, err := layout.Convert(src.Tensor)
	if err != nil {
		return cheader.Record{}, err
	}

	if mode == ModeFixed {
		q, err := fixedpoint.Quantize(nhwc)
		if err != nil {
			return cheader.Record{}, err
		}
		return cheader.FixedRecord(src.Name, q)
	}
	return cheader.FloatRecord(src.Name, nhwc)
}

func guardFor(opts Options) string {
	if opts.Guard != "" {
		return opts.Guard
	}
	base := filepath.Base(opts.Output)
	var b strings.Builder
	for _, r := range base {
		switch {
		case r >= 'a' && r <= 'z':
			b.WriteRune(r - 'a' + 'A')
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

// writeHeader renders into the target file only after every record converted
// cleanly, so a failed run leaves no partial artifact.
func writeHeader(path string, header *cheader.Header) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := header.Render(f); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return err
	}
	return f.Close()
}
