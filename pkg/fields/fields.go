// Package fields implements self-describing binary value types.
//
// Every field type satisfies the Codec capability interface so that
// structs, arrays and TLV containers can treat scalar values, nested
// records and option lists uniformly. Integer types are parameterized
// by width and byte order; enumerations wrap an integer with a
// name↔value mapping; bit groups split one stored integer into named
// sub-fields.
package fields

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Value is the decoded form of a field. Integer codecs produce uint64,
// byte codecs produce []byte, TLV codecs produce TLVRecord.
type Value = any

// Codec is the capability interface implemented by every field type.
type Codec interface {
	// Decode reads one value from the start of data and reports the
	// number of bytes consumed.
	Decode(data []byte) (Value, int, error)
	// Encode serializes v to its wire form.
	Encode(v Value) ([]byte, error)
	// Size reports the encoded byte length of v without encoding it.
	Size(v Value) int
	// Format renders v for humans.
	Format(v Value) string
}

// Sentinel errors for the decode/encode paths.
var (
	// ErrShortInput reports input shorter than a field requires.
	ErrShortInput = errors.New("strix: input shorter than field requires")
	// ErrFormat reports a structurally invalid binary record.
	ErrFormat = errors.New("strix: malformed binary record")
	// ErrValue reports a value that does not fit the field.
	ErrValue = errors.New("strix: value does not fit field")
)

// ─── Fixed-width unsigned integers ─────────────────────────────────────────

// UInt is a fixed-width unsigned integer field of 8, 16, 32 or 64 bits.
type UInt struct {
	Bits  int
	Order binary.ByteOrder
}

// U8 returns an 8-bit integer codec. Byte order is irrelevant at this width.
func U8() UInt { return UInt{Bits: 8, Order: binary.BigEndian} }

// U16 returns a 16-bit integer codec with the given byte order.
func U16(order binary.ByteOrder) UInt { return UInt{Bits: 16, Order: order} }

// U32 returns a 32-bit integer codec with the given byte order.
func U32(order binary.ByteOrder) UInt { return UInt{Bits: 32, Order: order} }

// U64 returns a 64-bit integer codec with the given byte order.
func U64(order binary.ByteOrder) UInt { return UInt{Bits: 64, Order: order} }

func (u UInt) width() int { return u.Bits / 8 }

func (u UInt) Decode(data []byte) (Value, int, error) {
	n := u.width()
	if len(data) < n {
		return nil, 0, fmt.Errorf("%w: need %d bytes, have %d", ErrShortInput, n, len(data))
	}
	var v uint64
	switch u.Bits {
	case 8:
		v = uint64(data[0])
	case 16:
		v = uint64(u.Order.Uint16(data))
	case 32:
		v = uint64(u.Order.Uint32(data))
	case 64:
		v = u.Order.Uint64(data)
	default:
		return nil, 0, fmt.Errorf("%w: unsupported integer width %d", ErrValue, u.Bits)
	}
	return v, n, nil
}

func (u UInt) Encode(v Value) ([]byte, error) {
	iv, err := AsUint(v)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, u.width())
	switch u.Bits {
	case 8:
		if iv > 0xFF {
			return nil, fmt.Errorf("%w: %d exceeds 8 bits", ErrValue, iv)
		}
		buf[0] = byte(iv)
	case 16:
		if iv > 0xFFFF {
			return nil, fmt.Errorf("%w: %d exceeds 16 bits", ErrValue, iv)
		}
		u.Order.PutUint16(buf, uint16(iv))
	case 32:
		if iv > 0xFFFFFFFF {
			return nil, fmt.Errorf("%w: %d exceeds 32 bits", ErrValue, iv)
		}
		u.Order.PutUint32(buf, uint32(iv))
	case 64:
		u.Order.PutUint64(buf, iv)
	default:
		return nil, fmt.Errorf("%w: unsupported integer width %d", ErrValue, u.Bits)
	}
	return buf, nil
}

func (u UInt) Size(Value) int { return u.width() }

func (u UInt) Format(v Value) string {
	iv, err := AsUint(v)
	if err != nil {
		return fmt.Sprintf("<%v>", v)
	}
	return fmt.Sprintf("%d", iv)
}

// AsUint coerces the common integer representations to uint64.
func AsUint(v Value) (uint64, error) {
	switch n := v.(type) {
	case uint64:
		return n, nil
	case uint32:
		return uint64(n), nil
	case uint16:
		return uint64(n), nil
	case uint8:
		return uint64(n), nil
	case uint:
		return uint64(n), nil
	case int:
		if n < 0 {
			return 0, fmt.Errorf("%w: negative value %d", ErrValue, n)
		}
		return uint64(n), nil
	case int64:
		if n < 0 {
			return 0, fmt.Errorf("%w: negative value %d", ErrValue, n)
		}
		return uint64(n), nil
	case nil:
		return 0, nil
	default:
		return 0, fmt.Errorf("%w: %T is not an integer", ErrValue, v)
	}
}

// ─── Enumerations ──────────────────────────────────────────────────────────

// Enum wraps an integer codec with a value→name mapping. Storage stays
// numeric; Format renders the symbolic name when one is known.
type Enum struct {
	UInt
	Names map[uint64]string
}

func (e Enum) Format(v Value) string {
	iv, err := AsUint(v)
	if err != nil {
		return fmt.Sprintf("<%v>", v)
	}
	if name, ok := e.Names[iv]; ok {
		return fmt.Sprintf("%s (%d)", name, iv)
	}
	return fmt.Sprintf("%d", iv)
}

// ─── Byte strings ──────────────────────────────────────────────────────────

// Bytes is a byte-string field. N >= 0 fixes the width; N < 0 consumes
// the entire budget handed to Decode (the enclosing struct clips the
// budget via its length function).
type Bytes struct {
	N int
}

// BytesN returns a fixed-width byte-string codec.
func BytesN(n int) Bytes { return Bytes{N: n} }

// BytesBudget returns a codec consuming its whole decode budget.
func BytesBudget() Bytes { return Bytes{N: -1} }

func (b Bytes) Decode(data []byte) (Value, int, error) {
	n := b.N
	if n < 0 {
		n = len(data)
	}
	if len(data) < n {
		return nil, 0, fmt.Errorf("%w: need %d bytes, have %d", ErrShortInput, n, len(data))
	}
	out := make([]byte, n)
	copy(out, data[:n])
	return out, n, nil
}

func (b Bytes) Encode(v Value) ([]byte, error) {
	bv, err := asBytes(v)
	if err != nil {
		return nil, err
	}
	if b.N >= 0 && len(bv) != b.N {
		return nil, fmt.Errorf("%w: need exactly %d bytes, have %d", ErrValue, b.N, len(bv))
	}
	out := make([]byte, len(bv))
	copy(out, bv)
	return out, nil
}

func (b Bytes) Size(v Value) int {
	if bv, err := asBytes(v); err == nil {
		return len(bv)
	}
	if b.N >= 0 {
		return b.N
	}
	return 0
}

func (b Bytes) Format(v Value) string {
	bv, err := asBytes(v)
	if err != nil {
		return fmt.Sprintf("<%v>", v)
	}
	return fmt.Sprintf("%x", bv)
}

func asBytes(v Value) ([]byte, error) {
	switch b := v.(type) {
	case []byte:
		return b, nil
	case string:
		return []byte(b), nil
	case nil:
		return nil, nil
	default:
		return nil, fmt.Errorf("%w: %T is not a byte string", ErrValue, v)
	}
}

// ─── NUL-terminated strings ────────────────────────────────────────────────

// CString reads bytes up to and including a NUL terminator. The stored
// value excludes the terminator; Encode appends it.
type CString struct{}

func (CString) Decode(data []byte) (Value, int, error) {
	for i, c := range data {
		if c == 0 {
			return string(data[:i]), i + 1, nil
		}
	}
	return nil, 0, fmt.Errorf("%w: unterminated C string", ErrShortInput)
}

func (CString) Encode(v Value) ([]byte, error) {
	bv, err := asBytes(v)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(bv)+1)
	copy(out, bv)
	return out, nil
}

func (CString) Size(v Value) int {
	bv, err := asBytes(v)
	if err != nil {
		return 0
	}
	return len(bv) + 1
}

func (CString) Format(v Value) string { return fmt.Sprintf("%q", v) }
