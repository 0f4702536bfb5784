package schema

import (
	"fmt"
	"strings"

	"firestige.xyz/strix/pkg/fields"
)

// Header is one instance of a schema: values only, no per-instance
// field metadata. Presence of optional fields is tracked so absent
// fields encode to nothing while keeping their defaults readable.
type Header struct {
	schema  *Schema
	values  map[string]fields.Value
	present map[string]bool
	// explicit records fields assigned by the caller or by decoding,
	// as opposed to schema defaults. Composition uses it to decide
	// whether a discriminator still needs auto-population.
	explicit map[string]bool
}

// NewHeader creates an instance with every field at its default.
func (s *Schema) NewHeader() *Header {
	h := &Header{
		schema:   s,
		values:   make(map[string]fields.Value, len(s.specs)),
		present:  make(map[string]bool, len(s.specs)),
		explicit: make(map[string]bool),
	}
	for _, spec := range s.specs {
		h.values[spec.Name] = defaultValue(spec)
		h.present[spec.Name] = true
	}
	return h
}

func defaultValue(spec FieldSpec) fields.Value {
	if spec.Default != nil {
		return spec.Default
	}
	switch c := spec.Codec.(type) {
	case fields.UInt, fields.Enum:
		return uint64(0)
	case fields.Bytes:
		if c.N > 0 {
			return make([]byte, c.N)
		}
		return []byte{}
	case fields.CString:
		return ""
	case Array:
		return []fields.Value{}
	default:
		return []byte{}
	}
}

// Schema returns the shared layout this header instantiates.
func (h *Header) Schema() *Schema { return h.schema }

// Proto returns the protocol short name.
func (h *Header) Proto() string { return h.schema.proto }

// ─── Decode ────────────────────────────────────────────────────────────────

// Decode parses one header from the start of data, consuming fields
// strictly in declaration order. Presence predicates and length
// functions see only siblings decoded before them. Returns the header
// and the number of bytes consumed.
func (s *Schema) Decode(data []byte) (*Header, int, error) {
	h := s.NewHeader()
	off := 0
	for _, spec := range s.specs {
		if spec.Present != nil && !spec.Present(h) {
			h.present[spec.Name] = false
			continue
		}
		budget := data[off:]
		clipped := false
		if spec.Length != nil {
			n := spec.Length(h)
			if n < 0 {
				return nil, 0, fmt.Errorf("%w: %s.%s computed negative length %d",
					fields.ErrFormat, s.proto, spec.Name, n)
			}
			if n > len(budget) {
				return nil, 0, fmt.Errorf("%w: %s.%s needs %d bytes, %d remain",
					fields.ErrShortInput, s.proto, spec.Name, n, len(budget))
			}
			budget = budget[:n]
			clipped = true
		}
		v, n, err := decodeField(spec, h, budget)
		if err != nil {
			return nil, 0, fmt.Errorf("%s.%s: %w", s.proto, spec.Name, err)
		}
		if clipped && n != len(budget) {
			return nil, 0, fmt.Errorf("%w: %s.%s consumed %d of %d budgeted bytes",
				fields.ErrFormat, s.proto, spec.Name, n, len(budget))
		}
		h.values[spec.Name] = v
		h.explicit[spec.Name] = true
		off += n
	}
	return h, off, nil
}

func decodeField(spec FieldSpec, h *Header, budget []byte) (fields.Value, int, error) {
	if arr, ok := spec.Codec.(Array); ok && arr.Counter != "" {
		return arr.decodeCounted(h, budget)
	}
	return spec.Codec.Decode(budget)
}

// ─── Encode ────────────────────────────────────────────────────────────────

// Encode serializes all present fields in declaration order.
func (h *Header) Encode() ([]byte, error) {
	out := make([]byte, 0, h.Size())
	for _, spec := range h.schema.specs {
		if spec.Present != nil && !spec.Present(h) {
			continue
		}
		b, err := spec.Codec.Encode(h.values[spec.Name])
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", h.schema.proto, spec.Name, err)
		}
		out = append(out, b...)
	}
	return out, nil
}

// Size reports the encoded byte length, computable without encoding.
func (h *Header) Size() int {
	total := 0
	for _, spec := range h.schema.specs {
		if spec.Present != nil && !spec.Present(h) {
			continue
		}
		total += spec.Codec.Size(h.values[spec.Name])
	}
	return total
}

// ─── Value access ──────────────────────────────────────────────────────────

// Has reports whether the named field is present.
func (h *Header) Has(name string) bool { return h.present[name] }

// Explicit reports whether the field was assigned (by decode or by
// the caller) rather than carrying its schema default.
func (h *Header) Explicit(name string) bool { return h.explicit[name] }

// Value returns the raw stored value of a field.
func (h *Header) Value(name string) fields.Value { return h.values[name] }

// Set assigns a field value.
func (h *Header) Set(name string, v fields.Value) {
	if _, ok := h.schema.index[name]; !ok {
		panic(fmt.Sprintf("strix: %s has no field %q", h.schema.proto, name))
	}
	h.values[name] = v
	h.present[name] = true
	h.explicit[name] = true
}

// Uint returns an integer field's value, zero if absent.
func (h *Header) Uint(name string) uint64 {
	v, err := fields.AsUint(h.values[name])
	if err != nil {
		return 0
	}
	return v
}

// SetUint assigns an integer field.
func (h *Header) SetUint(name string, v uint64) { h.Set(name, v) }

// Bytes returns a byte-string field's value.
func (h *Header) Bytes(name string) []byte {
	b, ok := h.values[name].([]byte)
	if !ok {
		return nil
	}
	return b
}

// Slice returns an array field's elements.
func (h *Header) Slice(name string) []fields.Value {
	s, ok := h.values[name].([]fields.Value)
	if !ok {
		return nil
	}
	return s
}

// Append adds an element to an array field. Counter fields bound to
// the array are deliberately not updated; stale counters are real
// wire-encoding failure modes and stay visible to callers.
func (h *Header) Append(name string, v fields.Value) {
	h.Set(name, append(h.Slice(name), v))
}

// Bit reads a named sub-field of a bit-packed integer field.
func (h *Header) Bit(field, sub string) uint64 {
	spec, ok := h.schema.spec(field)
	if !ok || len(spec.Bits) == 0 {
		return 0
	}
	width, _ := intWidth(spec.Codec)
	v, err := fields.ExtractBits(h.Uint(field), uint(width), spec.Bits, sub)
	if err != nil {
		return 0
	}
	return v
}

// SetBit writes a named sub-field without disturbing its siblings.
func (h *Header) SetBit(field, sub string, v uint64) error {
	spec, ok := h.schema.spec(field)
	if !ok || len(spec.Bits) == 0 {
		return fmt.Errorf("%w: %s.%s has no bit groups", ErrSchema, h.schema.proto, field)
	}
	width, _ := intWidth(spec.Codec)
	parent, err := fields.InsertBits(h.Uint(field), uint(width), spec.Bits, sub, v)
	if err != nil {
		return err
	}
	h.SetUint(field, parent)
	return nil
}

// RecomputeChecksum runs the schema's checksum hook and stores the
// result in the checksum field.
func (h *Header) RecomputeChecksum() error {
	if h.schema.checksumFn == nil {
		return fmt.Errorf("%w: %s declares no checksum", ErrSchema, h.schema.proto)
	}
	v, err := h.schema.checksumFn(h)
	if err != nil {
		return err
	}
	h.values[h.schema.checksumField] = v
	return nil
}

// Format renders the header one field per line.
func (h *Header) Format() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s:\n", h.schema.proto)
	for _, spec := range h.schema.specs {
		if !h.present[spec.Name] {
			continue
		}
		fmt.Fprintf(&b, "  %s: %s\n", spec.Name, spec.Codec.Format(h.values[spec.Name]))
	}
	return b.String()
}
