package protos

import (
	"encoding/binary"

	"firestige.xyz/strix/pkg/fields"
	"firestige.xyz/strix/pkg/schema"
)

// IP protocol numbers used as discriminator values.
const (
	IPProtoICMP     = 1
	IPProtoIGMP     = 2
	IPProtoTCP      = 6
	IPProtoUDP      = 17
	IPProtoICMPv6   = 58
	IPProtoHopByHop = 0
)

var ipProtoNames = map[uint64]string{
	IPProtoHopByHop: "hopopt",
	IPProtoICMP:     "icmp",
	IPProtoIGMP:     "igmp",
	IPProtoTCP:      "tcp",
	IPProtoUDP:      "udp",
	IPProtoICMPv6:   "ipv6-icmp",
}

func newIPv4() *schema.Schema {
	return schema.MustNew(IPv4, []schema.FieldSpec{
		{Name: "verihl", Codec: fields.U8(), Default: uint64(0x45),
			Bits: []fields.BitSub{{Name: "version", Width: 4}, {Name: "ihl", Width: 4}}},
		{Name: "tos", Codec: fields.U8()},
		{Name: "total_length", Codec: fields.U16(binary.BigEndian)},
		{Name: "id", Codec: fields.U16(binary.BigEndian)},
		{Name: "flagsfrag", Codec: fields.U16(binary.BigEndian),
			Bits: []fields.BitSub{
				{Name: "reserved", Width: 1},
				{Name: "df", Width: 1},
				{Name: "mf", Width: 1},
				{Name: "frag_offset", Width: 13},
			}},
		{Name: "ttl", Codec: fields.U8(), Default: uint64(64)},
		{Name: "protocol", Codec: fields.Enum{UInt: fields.U8(), Names: ipProtoNames}},
		{Name: "checksum", Codec: fields.U16(binary.BigEndian)},
		{Name: "src", Codec: fields.BytesN(4)},
		{Name: "dst", Codec: fields.BytesN(4)},
		{Name: "options", Codec: fields.BytesBudget(), Refs: []string{"verihl"},
			Length: func(h *schema.Header) int {
				return int(h.Bit("verihl", "ihl"))*4 - 20
			}},
	}, schema.WithChecksum("checksum", headerChecksum("checksum")))
}

// headerChecksum zeroes the named checksum field, encodes the header
// and computes the one's-complement sum over it.
func headerChecksum(field string) schema.ChecksumFn {
	return func(h *schema.Header) (uint64, error) {
		prev := h.Uint(field)
		h.SetUint(field, 0)
		b, err := h.Encode()
		h.SetUint(field, prev)
		if err != nil {
			return 0, err
		}
		return uint64(fields.Checksum16(b)), nil
	}
}

func newICMPv4() *schema.Schema {
	return schema.MustNew(ICMPv4, []schema.FieldSpec{
		{Name: "type", Codec: fields.Enum{UInt: fields.U8(), Names: map[uint64]string{
			0: "echo-reply", 3: "dest-unreachable", 5: "redirect",
			8: "echo-request", 11: "time-exceeded",
		}}},
		{Name: "code", Codec: fields.U8()},
		{Name: "checksum", Codec: fields.U16(binary.BigEndian)},
		{Name: "body", Codec: fields.BytesBudget()},
	}, schema.WithChecksum("checksum", headerChecksum("checksum")))
}

func newIGMP() *schema.Schema {
	return schema.MustNew(IGMP, []schema.FieldSpec{
		{Name: "type", Codec: fields.Enum{UInt: fields.U8(), Names: map[uint64]string{
			0x11: "membership-query", 0x16: "membership-report-v2",
			0x17: "leave-group", 0x22: "membership-report-v3",
		}}},
		{Name: "max_resp_time", Codec: fields.U8()},
		{Name: "checksum", Codec: fields.U16(binary.BigEndian)},
		{Name: "group", Codec: fields.BytesN(4)},
	}, schema.WithChecksum("checksum", headerChecksum("checksum")))
}
