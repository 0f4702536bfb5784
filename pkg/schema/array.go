package schema

import (
	"errors"
	"fmt"
	"strings"

	"firestige.xyz/strix/pkg/fields"
)

// Array is a homogeneous sequence of one element type, bounded either
// by a sibling counter field or by the byte budget of the enclosing
// field's length function.
//
// Counter-bound arrays re-read the counter immediately before each
// decode iteration, so mutating the counter before decoding changes
// how many elements are read. Budget-bound arrays decode until the
// budget is consumed exactly; an element overrunning the budget is a
// format error.
type Array struct {
	Elem fields.Codec
	// Counter names a sibling integer field. Empty means budget-bound:
	// the enclosing FieldSpec must then carry a Length function.
	Counter string
}

// decodeCounted decodes Counter-many elements, reading the counter
// from the enclosing header on every iteration.
func (a Array) decodeCounted(h *Header, data []byte) (fields.Value, int, error) {
	elems := []fields.Value{}
	off := 0
	for i := uint64(0); i < h.Uint(a.Counter); i++ {
		v, n, err := a.Elem.Decode(data[off:])
		if err != nil {
			return nil, 0, fmt.Errorf("element %d: %w", i, err)
		}
		elems = append(elems, v)
		off += n
	}
	return elems, off, nil
}

// Decode handles the budget-bound form: data is exactly the byte
// budget, and it must be consumed with no element spilling past it.
func (a Array) Decode(data []byte) (fields.Value, int, error) {
	if a.Counter != "" {
		return nil, 0, fmt.Errorf("%w: counter-bound array decoded without enclosing header",
			fields.ErrFormat)
	}
	elems := []fields.Value{}
	off := 0
	for off < len(data) {
		v, n, err := a.Elem.Decode(data[off:])
		if errors.Is(err, fields.ErrShortInput) {
			return nil, 0, fmt.Errorf("%w: element %d overruns %d-byte budget",
				fields.ErrFormat, len(elems), len(data))
		}
		if err != nil {
			return nil, 0, fmt.Errorf("element %d: %w", len(elems), err)
		}
		elems = append(elems, v)
		off += n
	}
	return elems, off, nil
}

func (a Array) Encode(v fields.Value) ([]byte, error) {
	elems, ok := v.([]fields.Value)
	if !ok {
		return nil, fmt.Errorf("%w: %T is not an array value", fields.ErrValue, v)
	}
	out := []byte{}
	for i, e := range elems {
		b, err := a.Elem.Encode(e)
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		out = append(out, b...)
	}
	return out, nil
}

func (a Array) Size(v fields.Value) int {
	elems, ok := v.([]fields.Value)
	if !ok {
		return 0
	}
	total := 0
	for _, e := range elems {
		total += a.Elem.Size(e)
	}
	return total
}

func (a Array) Format(v fields.Value) string {
	elems, ok := v.([]fields.Value)
	if !ok {
		return fmt.Sprintf("<%v>", v)
	}
	parts := make([]string, len(elems))
	for i, e := range elems {
		parts[i] = a.Elem.Format(e)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// ─── Nested headers as array elements ──────────────────────────────────────

// Nested adapts a schema to the field codec interface so whole headers
// can appear as struct fields or array elements (DNS questions,
// resource records, MLD address lists carried as sub-records).
type Nested struct {
	S *Schema
}

func (n Nested) Decode(data []byte) (fields.Value, int, error) {
	h, consumed, err := n.S.Decode(data)
	if err != nil {
		return nil, 0, err
	}
	return h, consumed, nil
}

func (n Nested) Encode(v fields.Value) ([]byte, error) {
	h, ok := v.(*Header)
	if !ok {
		return nil, fmt.Errorf("%w: %T is not a %s header", fields.ErrValue, v, n.S.proto)
	}
	return h.Encode()
}

func (n Nested) Size(v fields.Value) int {
	h, ok := v.(*Header)
	if !ok {
		return 0
	}
	return h.Size()
}

func (n Nested) Format(v fields.Value) string {
	h, ok := v.(*Header)
	if !ok {
		return fmt.Sprintf("<%v>", v)
	}
	return strings.TrimRight(h.Format(), "\n")
}
