// Package protos declares the shipped protocol headers on top of the
// schema engine and wires their binding graph. The catalog is
// representative rather than exhaustive: it covers every field-type
// and binding feature the engine offers (enums, bit groups, length
// functions, TLV options with padding, counter-bound arrays,
// guard-disambiguated bindings) with the protocols that exercise them.
package protos

import (
	"encoding/binary"

	"firestige.xyz/strix/pkg/fields"
	"firestige.xyz/strix/pkg/schema"
)

// Protocol short names used with the registry.
const (
	Ethernet   = "eth"
	ARP        = "arp"
	IPv4       = "ipv4"
	IPv6       = "ipv6"
	HopByHop   = "ipv6-hopbyhop"
	UDP        = "udp"
	TCP        = "tcp"
	ICMPv4     = "icmpv4"
	IGMP       = "igmp"
	ICMPv6     = "icmpv6"
	ICMPv6Echo = "icmpv6-echo"
	MLD        = "mld"
	MLDv2Query = "mldv2-query"
	DNS        = "dns"
)

// EtherType values carried by the Ethernet type field.
const (
	EtherTypeIPv4 = 0x0800
	EtherTypeARP  = 0x0806
	EtherTypeIPv6 = 0x86DD
)

var etherTypeNames = map[uint64]string{
	EtherTypeIPv4: "IPv4",
	EtherTypeARP:  "ARP",
	EtherTypeIPv6: "IPv6",
}

func newEthernet() *schema.Schema {
	return schema.MustNew(Ethernet, []schema.FieldSpec{
		{Name: "dst", Codec: fields.BytesN(6)},
		{Name: "src", Codec: fields.BytesN(6)},
		{Name: "type", Codec: fields.Enum{UInt: fields.U16(binary.BigEndian), Names: etherTypeNames}},
	})
}

func newARP() *schema.Schema {
	return schema.MustNew(ARP, []schema.FieldSpec{
		{Name: "htype", Codec: fields.U16(binary.BigEndian), Default: uint64(1)},
		{Name: "ptype", Codec: fields.Enum{UInt: fields.U16(binary.BigEndian), Names: etherTypeNames},
			Default: uint64(EtherTypeIPv4)},
		{Name: "hlen", Codec: fields.U8(), Default: uint64(6)},
		{Name: "plen", Codec: fields.U8(), Default: uint64(4)},
		{Name: "oper", Codec: fields.Enum{UInt: fields.U16(binary.BigEndian),
			Names: map[uint64]string{1: "request", 2: "reply"}}},
		{Name: "sha", Codec: fields.BytesN(6)},
		{Name: "spa", Codec: fields.BytesN(4)},
		{Name: "tha", Codec: fields.BytesN(6)},
		{Name: "tpa", Codec: fields.BytesN(4)},
	})
}
