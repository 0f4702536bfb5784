package protos

import (
	"encoding/binary"

	"firestige.xyz/strix/pkg/fields"
	"firestige.xyz/strix/pkg/schema"
)

// ICMPv6 type values used as discriminators.
const (
	ICMPv6TypeEchoRequest = 128
	ICMPv6TypeEchoReply   = 129
	ICMPv6TypeMLDQuery    = 130
	ICMPv6TypeMLDReport   = 131
	ICMPv6TypeMLDDone     = 132
)

func newICMPv6() *schema.Schema {
	return schema.MustNew(ICMPv6, []schema.FieldSpec{
		{Name: "type", Codec: fields.Enum{UInt: fields.U8(), Names: map[uint64]string{
			ICMPv6TypeEchoRequest: "echo-request",
			ICMPv6TypeEchoReply:   "echo-reply",
			ICMPv6TypeMLDQuery:    "mld-query",
			ICMPv6TypeMLDReport:   "mld-report",
			ICMPv6TypeMLDDone:     "mld-done",
			135:                   "neighbor-solicitation",
			136:                   "neighbor-advertisement",
		}}},
		{Name: "code", Codec: fields.U8()},
		{Name: "checksum", Codec: fields.U16(binary.BigEndian)},
	})
}

func newICMPv6Echo() *schema.Schema {
	return schema.MustNew(ICMPv6Echo, []schema.FieldSpec{
		{Name: "id", Codec: fields.U16(binary.BigEndian)},
		{Name: "seq", Codec: fields.U16(binary.BigEndian)},
		{Name: "data", Codec: fields.BytesBudget()},
	})
}

// newMLD covers the fixed 20-byte MLDv1 body shared by query, report
// and done messages.
func newMLD() *schema.Schema {
	return schema.MustNew(MLD, []schema.FieldSpec{
		{Name: "max_resp_delay", Codec: fields.U16(binary.BigEndian)},
		{Name: "reserved", Codec: fields.U16(binary.BigEndian)},
		{Name: "group", Codec: fields.BytesN(16)},
	})
}

// newMLDv2Query covers the extended query of RFC 3810, with a
// counter-bound source address list.
func newMLDv2Query() *schema.Schema {
	return schema.MustNew(MLDv2Query, []schema.FieldSpec{
		{Name: "max_resp_code", Codec: fields.U16(binary.BigEndian)},
		{Name: "reserved", Codec: fields.U16(binary.BigEndian)},
		{Name: "group", Codec: fields.BytesN(16)},
		{Name: "sqrv", Codec: fields.U8(),
			Bits: []fields.BitSub{
				{Name: "resv", Width: 4},
				{Name: "s", Width: 1},
				{Name: "qrv", Width: 3},
			}},
		{Name: "qqic", Codec: fields.U8()},
		{Name: "num_sources", Codec: fields.U16(binary.BigEndian)},
		{Name: "sources", Codec: schema.Array{Elem: fields.BytesN(16), Counter: "num_sources"}},
	})
}

// ICMPv6Checksum computes the ICMPv6 checksum over its pseudo-header:
// src and dst addresses, the upper-layer length, next-header 58, and
// the ICMPv6 message with its checksum field zeroed.
func ICMPv6Checksum(src, dst []byte, message []byte) uint16 {
	pseudo := make([]byte, 0, 40+len(message))
	pseudo = append(pseudo, src...)
	pseudo = append(pseudo, dst...)
	var length [4]byte
	binary.BigEndian.PutUint32(length[:], uint32(len(message)))
	pseudo = append(pseudo, length[:]...)
	pseudo = append(pseudo, 0, 0, 0, IPProtoICMPv6)
	pseudo = append(pseudo, message...)
	if len(message) >= 4 {
		// zero the checksum bytes at offset 2 of the message
		pseudo[40+2] = 0
		pseudo[40+3] = 0
	}
	return fields.Checksum16(pseudo)
}
