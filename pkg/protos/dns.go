package protos

import (
	"encoding/binary"
	"fmt"
	"strings"

	"firestige.xyz/strix/pkg/fields"
	"firestige.xyz/strix/pkg/schema"
)

var dnsTypeNames = map[uint64]string{
	1: "A", 2: "NS", 5: "CNAME", 6: "SOA", 12: "PTR",
	15: "MX", 16: "TXT", 28: "AAAA", 33: "SRV", 255: "ANY",
}

// dnsName is the codec for DNS wire-format names: a run of
// length-prefixed labels ended by a zero byte or by a 2-byte
// compression pointer. The stored value is the raw wire bytes, so
// compressed names round-trip untouched; Format renders the dotted
// form.
type dnsName struct{}

func (dnsName) Decode(data []byte) (fields.Value, int, error) {
	off := 0
	for {
		if off >= len(data) {
			return nil, 0, fmt.Errorf("%w: truncated DNS name", fields.ErrShortInput)
		}
		b := data[off]
		switch {
		case b == 0:
			off++
			out := make([]byte, off)
			copy(out, data[:off])
			return out, off, nil
		case b&0xC0 == 0xC0:
			if off+2 > len(data) {
				return nil, 0, fmt.Errorf("%w: truncated DNS compression pointer", fields.ErrShortInput)
			}
			off += 2
			out := make([]byte, off)
			copy(out, data[:off])
			return out, off, nil
		case b&0xC0 != 0:
			return nil, 0, fmt.Errorf("%w: reserved DNS label flag %#x", fields.ErrFormat, b&0xC0)
		default:
			if off+1+int(b) > len(data) {
				return nil, 0, fmt.Errorf("%w: DNS label overruns input", fields.ErrShortInput)
			}
			off += 1 + int(b)
		}
	}
}

func (dnsName) Encode(v fields.Value) ([]byte, error) {
	b, ok := v.([]byte)
	if !ok {
		return nil, fmt.Errorf("%w: %T is not a DNS name", fields.ErrValue, v)
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out, nil
}

func (dnsName) Size(v fields.Value) int {
	b, _ := v.([]byte)
	return len(b)
}

func (dnsName) Format(v fields.Value) string {
	b, ok := v.([]byte)
	if !ok {
		return fmt.Sprintf("<%v>", v)
	}
	var labels []string
	off := 0
	for off < len(b) {
		c := b[off]
		if c == 0 {
			break
		}
		if c&0xC0 == 0xC0 {
			labels = append(labels, fmt.Sprintf("@%d", binary.BigEndian.Uint16(b[off:])&0x3FFF))
			break
		}
		end := off + 1 + int(c)
		if end > len(b) {
			break
		}
		labels = append(labels, string(b[off+1:end]))
		off = end
	}
	if len(labels) == 0 {
		return "."
	}
	return strings.Join(labels, ".")
}

// EncodeDNSName converts a dotted name to wire form for composition.
func EncodeDNSName(name string) ([]byte, error) {
	if name == "" || name == "." {
		return []byte{0}, nil
	}
	var out []byte
	for _, label := range strings.Split(strings.TrimSuffix(name, "."), ".") {
		if len(label) == 0 || len(label) > 63 {
			return nil, fmt.Errorf("%w: bad DNS label %q", fields.ErrValue, label)
		}
		out = append(out, byte(len(label)))
		out = append(out, label...)
	}
	return append(out, 0), nil
}

var dnsQuestion = schema.MustNew("dns-question", []schema.FieldSpec{
	{Name: "qname", Codec: dnsName{}, Default: []byte{0}},
	{Name: "qtype", Codec: fields.Enum{UInt: fields.U16(binary.BigEndian), Names: dnsTypeNames},
		Default: uint64(1)},
	{Name: "qclass", Codec: fields.U16(binary.BigEndian), Default: uint64(1)},
})

var dnsRR = schema.MustNew("dns-rr", []schema.FieldSpec{
	{Name: "name", Codec: dnsName{}, Default: []byte{0}},
	{Name: "type", Codec: fields.Enum{UInt: fields.U16(binary.BigEndian), Names: dnsTypeNames},
		Default: uint64(1)},
	{Name: "class", Codec: fields.U16(binary.BigEndian), Default: uint64(1)},
	{Name: "ttl", Codec: fields.U32(binary.BigEndian)},
	{Name: "rdlength", Codec: fields.U16(binary.BigEndian)},
	{Name: "rdata", Codec: fields.BytesBudget(), Refs: []string{"rdlength"},
		Length: func(h *schema.Header) int { return int(h.Uint("rdlength")) }},
})

// DNSQuestion returns a fresh question record header.
func DNSQuestion() *schema.Header { return dnsQuestion.NewHeader() }

// DNSRR returns a fresh resource record header.
func DNSRR() *schema.Header { return dnsRR.NewHeader() }

func newDNS() *schema.Schema {
	return schema.MustNew(DNS, []schema.FieldSpec{
		{Name: "id", Codec: fields.U16(binary.BigEndian)},
		{Name: "flags", Codec: fields.U16(binary.BigEndian),
			Bits: []fields.BitSub{
				{Name: "qr", Width: 1},
				{Name: "opcode", Width: 4},
				{Name: "aa", Width: 1},
				{Name: "tc", Width: 1},
				{Name: "rd", Width: 1},
				{Name: "ra", Width: 1},
				{Name: "z", Width: 3},
				{Name: "rcode", Width: 4},
			}},
		{Name: "qdcount", Codec: fields.U16(binary.BigEndian)},
		{Name: "ancount", Codec: fields.U16(binary.BigEndian)},
		{Name: "nscount", Codec: fields.U16(binary.BigEndian)},
		{Name: "arcount", Codec: fields.U16(binary.BigEndian)},
		{Name: "questions", Codec: schema.Array{Elem: schema.Nested{S: dnsQuestion}, Counter: "qdcount"}},
		{Name: "answers", Codec: schema.Array{Elem: schema.Nested{S: dnsRR}, Counter: "ancount"}},
		{Name: "authority", Codec: schema.Array{Elem: schema.Nested{S: dnsRR}, Counter: "nscount"}},
		{Name: "additional", Codec: schema.Array{Elem: schema.Nested{S: dnsRR}, Counter: "arcount"}},
	})
}
