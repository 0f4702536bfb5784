package protos

import (
	"encoding/binary"
	"fmt"

	"firestige.xyz/strix/pkg/fields"
	"firestige.xyz/strix/pkg/schema"
)

// Hop-by-Hop option types with special padding semantics.
const (
	optPad1 = 0
	optPadN = 1
)

func newIPv6() *schema.Schema {
	return schema.MustNew(IPv6, []schema.FieldSpec{
		{Name: "verclassflow", Codec: fields.U32(binary.BigEndian), Default: uint64(6) << 28,
			Bits: []fields.BitSub{
				{Name: "version", Width: 4},
				{Name: "traffic_class", Width: 8},
				{Name: "flow_label", Width: 20},
			}},
		{Name: "payload_length", Codec: fields.U16(binary.BigEndian)},
		{Name: "next_header", Codec: fields.Enum{UInt: fields.U8(), Names: ipProtoNames}},
		{Name: "hop_limit", Codec: fields.U8(), Default: uint64(64)},
		{Name: "src", Codec: fields.BytesN(16)},
		{Name: "dst", Codec: fields.BytesN(16)},
	})
}

// hopOptionCodec frames Hop-by-Hop options: 1-byte type, 1-byte
// length, except pad1 which is a bare single byte.
var hopOptionCodec = fields.TLV{
	TypeBits: 8,
	LenBits:  8,
	Order:    binary.BigEndian,
	Types: map[uint64]string{
		optPad1: "pad1",
		optPadN: "padn",
		5:       "router-alert",
	},
	OneByteTypes: map[uint64]bool{optPad1: true},
}

func newHopByHop() *schema.Schema {
	return schema.MustNew(HopByHop, []schema.FieldSpec{
		{Name: "next_header", Codec: fields.Enum{UInt: fields.U8(), Names: ipProtoNames}},
		{Name: "hdr_ext_len", Codec: fields.U8()},
		{Name: "options", Codec: schema.Array{Elem: hopOptionCodec},
			Refs: []string{"hdr_ext_len"},
			Length: func(h *schema.Header) int {
				return int(h.Uint("hdr_ext_len")+1)*8 - 2
			}},
	})
}

// FinalizeHopByHop pads the option list to the next 8-byte boundary —
// a lone pad1 when exactly one byte is missing, a zero-filled padN
// otherwise — and updates hdr_ext_len to match.
func FinalizeHopByHop(h *schema.Header) error {
	if h.Proto() != HopByHop {
		return fmt.Errorf("%w: FinalizeHopByHop on %s header", fields.ErrValue, h.Proto())
	}
	opts := h.Slice("options")
	used := 2
	for _, o := range opts {
		used += hopOptionCodec.Size(o)
	}
	pad := (8 - used%8) % 8
	switch {
	case pad == 1:
		h.Append("options", fields.TLVRecord{Type: optPad1})
	case pad > 1:
		h.Append("options", fields.TLVRecord{Type: optPadN, Raw: make([]byte, pad-2)})
	}
	h.SetUint("hdr_ext_len", uint64((used+pad)/8-1))
	return nil
}
