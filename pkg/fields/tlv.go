package fields

import (
	"encoding/binary"
	"fmt"
)

// TLVRecord is one decoded type-length-value record. The length field
// is recomputed from Raw on encode, so it always matches the value
// size; padding options that need a different wire form are handled by
// the container (see the Hop-by-Hop pad1 option, which has no length
// byte at all).
type TLVRecord struct {
	Type uint64
	Raw  []byte
}

// TLV is a type-length-value codec. TypeBits and LenBits select the
// width of the two header integers (8, 16 or 32 bits each); Order
// applies to both. Types maps type codes to names for Format.
// OneByteTypes lists type codes encoded as a bare single byte with no
// length or value.
type TLV struct {
	TypeBits     int
	LenBits      int
	Order        binary.ByteOrder
	Types        map[uint64]string
	OneByteTypes map[uint64]bool
}

func (t TLV) typeCodec() UInt { return UInt{Bits: t.TypeBits, Order: t.Order} }
func (t TLV) lenCodec() UInt  { return UInt{Bits: t.LenBits, Order: t.Order} }

func (t TLV) Decode(data []byte) (Value, int, error) {
	tv, n, err := t.typeCodec().Decode(data)
	if err != nil {
		return nil, 0, err
	}
	typ := tv.(uint64)
	if t.OneByteTypes[typ] {
		return TLVRecord{Type: typ}, n, nil
	}
	lv, ln, err := t.lenCodec().Decode(data[n:])
	if err != nil {
		return nil, 0, err
	}
	n += ln
	length := int(lv.(uint64))
	if length > len(data)-n {
		return nil, 0, fmt.Errorf("%w: TLV length %d exceeds remaining %d bytes",
			ErrFormat, length, len(data)-n)
	}
	raw := make([]byte, length)
	copy(raw, data[n:n+length])
	return TLVRecord{Type: typ, Raw: raw}, n + length, nil
}

func (t TLV) Encode(v Value) ([]byte, error) {
	rec, ok := v.(TLVRecord)
	if !ok {
		return nil, fmt.Errorf("%w: %T is not a TLV record", ErrValue, v)
	}
	tb, err := t.typeCodec().Encode(rec.Type)
	if err != nil {
		return nil, err
	}
	if t.OneByteTypes[rec.Type] {
		return tb, nil
	}
	lb, err := t.lenCodec().Encode(uint64(len(rec.Raw)))
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(tb)+len(lb)+len(rec.Raw))
	out = append(out, tb...)
	out = append(out, lb...)
	return append(out, rec.Raw...), nil
}

func (t TLV) Size(v Value) int {
	rec, ok := v.(TLVRecord)
	if !ok {
		return 0
	}
	if t.OneByteTypes[rec.Type] {
		return t.TypeBits / 8
	}
	return t.TypeBits/8 + t.LenBits/8 + len(rec.Raw)
}

func (t TLV) Format(v Value) string {
	rec, ok := v.(TLVRecord)
	if !ok {
		return fmt.Sprintf("<%v>", v)
	}
	name, known := t.Types[rec.Type]
	if !known {
		name = fmt.Sprintf("type %d", rec.Type)
	}
	if t.OneByteTypes[rec.Type] {
		return name
	}
	return fmt.Sprintf("%s len=%d value=%x", name, len(rec.Raw), rec.Raw)
}
