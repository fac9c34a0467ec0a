// Package cheader serializes layout-converted coefficient records into a
// statically-initialized C header matching the embedded library's struct ABI:
// per record, a flat element array plus a metadata struct referencing it with
// fields {w, h, c, n, stride, [exponent], item}.
package cheader

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
)

const (
	defaultStructName = "mat"
	defaultItemType   = "mat_item_t"

	// elements per source line in the emitted arrays
	fixedPerLine = 12
	floatPerLine = 8
	bytePerLine  = 16
)

// Options controls the emitted type names. The zero value uses the embedded
// library's defaults.
type Options struct {
	// StructName is the metadata struct type name, default "mat".
	StructName string
	// ItemType is the fixed-point element type name, default "mat_item_t".
	ItemType string
}

// Header accumulates records in memory and serializes them in one pass, so a
// failed run never leaves a partially-written artifact behind.
type Header struct {
	guard   string
	opts    Options
	records []Record
}

// NewHeader creates an empty header with the given include-guard symbol.
func NewHeader(guard string, opts Options) *Header {
	if opts.StructName == "" {
		opts.StructName = defaultStructName
	}
	if opts.ItemType == "" {
		opts.ItemType = defaultItemType
	}
	return &Header{guard: guard, opts: opts}
}

// Add appends a record. Emission preserves insertion order.
func (h *Header) Add(r Record) {
	h.records = append(h.records, r)
}

// Len returns the number of accumulated records.
func (h *Header) Len() int {
	return len(h.records)
}

// Render writes the complete header artifact.
func (h *Header) Render(w io.Writer) error {
	bw := bufio.NewWriter(w)

	fmt.Fprintf(bw, "/* Generated by kiln. DO NOT EDIT. */\n\n")
	fmt.Fprintf(bw, "#ifndef %s\n#define %s\n\n", h.guard, h.guard)
	fmt.Fprintf(bw, "#include <stdint.h>\n\n")

	for _, r := range h.records {
		if err := h.renderRecord(bw, r); err != nil {
			return err
		}
	}

	fmt.Fprintf(bw, "#endif /* %s */\n", h.guard)
	return bw.Flush()
}

func (h *Header) renderRecord(bw *bufio.Writer, r Record) error {
	switch r.Kind {
	case Fixed:
		fmt.Fprintf(bw, "static const %s %s_items[%d] = {\n", h.opts.ItemType, r.Name, r.Len())
		for i, v := range r.fixed {
			writeSep(bw, i, fixedPerLine)
			fmt.Fprintf(bw, "%d,", v)
		}
		fmt.Fprintf(bw, "\n};\n\n")
	case Float:
		fmt.Fprintf(bw, "static const float %s_items[%d] = {\n", r.Name, r.Len())
		for i, v := range r.floats {
			writeSep(bw, i, floatPerLine)
			fmt.Fprintf(bw, "%sf,", strconv.FormatFloat(float64(v), 'g', -1, 32))
		}
		fmt.Fprintf(bw, "\n};\n\n")
	case Sample:
		fmt.Fprintf(bw, "static const uint8_t %s_items[%d] = {\n", r.Name, r.Len())
		for i, v := range r.bytes {
			writeSep(bw, i, bytePerLine)
			fmt.Fprintf(bw, "%d,", v)
		}
		fmt.Fprintf(bw, "\n};\n\n")
		// raw samples carry no metadata struct
		return nil
	default:
		return fmt.Errorf("cheader: record %q has unknown kind %d", r.Name, r.Kind)
	}

	fmt.Fprintf(bw, "static const %s %s = {\n", h.opts.StructName, r.Name)
	fmt.Fprintf(bw, "\t.w = %d,\n", r.W)
	fmt.Fprintf(bw, "\t.h = %d,\n", r.H)
	fmt.Fprintf(bw, "\t.c = %d,\n", r.C)
	fmt.Fprintf(bw, "\t.n = %d,\n", r.N)
	fmt.Fprintf(bw, "\t.stride = %d,\n", r.Stride())
	if r.Kind == Fixed {
		fmt.Fprintf(bw, "\t.exponent = %d,\n", r.Exponent())
		fmt.Fprintf(bw, "\t.item = (%s *)%s_items,\n", h.opts.ItemType, r.Name)
	} else {
		fmt.Fprintf(bw, "\t.item = (float *)%s_items,\n", r.Name)
	}
	fmt.Fprintf(bw, "};\n\n")
	return nil
}

func writeSep(bw *bufio.Writer, i, perLine int) {
	if i == 0 {
		bw.WriteString("\t")
	} else if i%perLine == 0 {
		bw.WriteString("\n\t")
	} else {
		bw.WriteString(" ")
	}
}
