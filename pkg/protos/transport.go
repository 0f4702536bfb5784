package protos

import (
	"encoding/binary"

	"firestige.xyz/strix/pkg/fields"
	"firestige.xyz/strix/pkg/schema"
)

// PortDNS is the well-known DNS port bound from UDP.
const PortDNS = 53

func newUDP() *schema.Schema {
	return schema.MustNew(UDP, []schema.FieldSpec{
		{Name: "src_port", Codec: fields.U16(binary.BigEndian)},
		{Name: "dst_port", Codec: fields.U16(binary.BigEndian)},
		{Name: "length", Codec: fields.U16(binary.BigEndian), Default: uint64(8)},
		{Name: "checksum", Codec: fields.U16(binary.BigEndian)},
	})
}

func newTCP() *schema.Schema {
	return schema.MustNew(TCP, []schema.FieldSpec{
		{Name: "src_port", Codec: fields.U16(binary.BigEndian)},
		{Name: "dst_port", Codec: fields.U16(binary.BigEndian)},
		{Name: "seq", Codec: fields.U32(binary.BigEndian)},
		{Name: "ack", Codec: fields.U32(binary.BigEndian)},
		{Name: "offsetflags", Codec: fields.U16(binary.BigEndian), Default: uint64(5) << 12,
			Bits: []fields.BitSub{
				{Name: "offset", Width: 4},
				{Name: "reserved", Width: 3},
				{Name: "ns", Width: 1},
				{Name: "cwr", Width: 1},
				{Name: "ece", Width: 1},
				{Name: "urg", Width: 1},
				{Name: "ack", Width: 1},
				{Name: "psh", Width: 1},
				{Name: "rst", Width: 1},
				{Name: "syn", Width: 1},
				{Name: "fin", Width: 1},
			}},
		{Name: "window", Codec: fields.U16(binary.BigEndian)},
		{Name: "checksum", Codec: fields.U16(binary.BigEndian)},
		{Name: "urgent", Codec: fields.U16(binary.BigEndian)},
		{Name: "options", Codec: fields.BytesBudget(), Refs: []string{"offsetflags"},
			Length: func(h *schema.Header) int {
				return int(h.Bit("offsetflags", "offset"))*4 - 20
			}},
	})
}
