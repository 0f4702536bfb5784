// Package pcapng implements the PcapNG capture-file container: a
// sequence of independently byte-ordered sections, each a run of
// length-framed blocks. Parsing preserves unknown blocks and unknown
// option codes verbatim so that re-serializing a file reproduces the
// original bytes exactly, duplicate trailing block lengths included.
package pcapng

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Block type codes and framing constants of the pcapng format.
const (
	BlockTypeSHB uint32 = 0x0A0D0D0A
	BlockTypeIDB uint32 = 0x00000001
	BlockTypeSPB uint32 = 0x00000003
	BlockTypeEPB uint32 = 0x00000006

	// ByteOrderMagic is stored at the start of every section header
	// body; the interpretation that reads it back correctly fixes the
	// section's byte order.
	ByteOrderMagic uint32 = 0x1A2B3C4D

	// SectionLengthUnknown means "read blocks to the next section
	// header or EOF".
	SectionLengthUnknown uint64 = 0xFFFFFFFFFFFFFFFF
)

// Option codes handled beyond opaque preservation.
const (
	optEndOfOpt  uint16 = 0
	OptComment   uint16 = 1
	OptIfName    uint16 = 2
	OptIfTsResol uint16 = 9
)

// Format-level sentinel errors.
var (
	ErrBadMagic       = errors.New("strix: pcapng byte-order magic not recognized")
	ErrLengthMismatch = errors.New("strix: pcapng duplicated block lengths disagree")
	ErrTruncated      = errors.New("strix: pcapng input truncated")
	ErrBlockFraming   = errors.New("strix: pcapng invalid block framing")
)

// Block is one self-framed record inside a section. Concrete types:
// *Interface, *EPB, *SPB, *UnknownBlock. The section header itself is
// carried by Section, not as a Block.
type Block interface {
	BlockType() uint32
	encodeBody(bo binary.ByteOrder) ([]byte, error)
}

// Option is one raw TLV option. Unknown codes round-trip untouched.
type Option struct {
	Code  uint16
	Value []byte
}

func pad4(n int) int { return (4 - n%4) % 4 }

// decodeOptions parses an option list terminated by end-of-options or
// by running out of bytes. The terminator itself is not kept.
func decodeOptions(data []byte, bo binary.ByteOrder) ([]Option, error) {
	var opts []Option
	off := 0
	for off+4 <= len(data) {
		code := bo.Uint16(data[off:])
		length := int(bo.Uint16(data[off+2:]))
		off += 4
		if code == optEndOfOpt {
			return opts, nil
		}
		if off+length > len(data) {
			return nil, fmt.Errorf("%w: option %d length %d exceeds remaining %d bytes",
				ErrTruncated, code, length, len(data)-off)
		}
		v := make([]byte, length)
		copy(v, data[off:off+length])
		opts = append(opts, Option{Code: code, Value: v})
		off += length + pad4(length)
	}
	return opts, nil
}

// encodeOptions emits the list with 4-byte padding per option and a
// trailing end-of-options marker. An empty list emits nothing, per the
// format's "options are optional" rule.
func encodeOptions(opts []Option, bo binary.ByteOrder) []byte {
	if len(opts) == 0 {
		return nil
	}
	out := make([]byte, 0, optionsSize(opts))
	var hdr [4]byte
	for _, o := range opts {
		bo.PutUint16(hdr[0:2], o.Code)
		bo.PutUint16(hdr[2:4], uint16(len(o.Value)))
		out = append(out, hdr[:]...)
		out = append(out, o.Value...)
		out = append(out, make([]byte, pad4(len(o.Value)))...)
	}
	bo.PutUint16(hdr[0:2], optEndOfOpt)
	bo.PutUint16(hdr[2:4], 0)
	return append(out, hdr[:]...)
}

func optionsSize(opts []Option) int {
	if len(opts) == 0 {
		return 0
	}
	n := 4 // end-of-options
	for _, o := range opts {
		n += 4 + len(o.Value) + pad4(len(o.Value))
	}
	return n
}

// appendBlock frames body as `type | total_len | body | total_len`,
// padding the body to a 4-byte multiple.
func appendBlock(buf []byte, bo binary.ByteOrder, blockType uint32, body []byte) []byte {
	total := uint32(12 + len(body) + pad4(len(body)))
	var word [4]byte
	bo.PutUint32(word[:], blockType)
	buf = append(buf, word[:]...)
	bo.PutUint32(word[:], total)
	buf = append(buf, word[:]...)
	buf = append(buf, body...)
	buf = append(buf, make([]byte, pad4(len(body)))...)
	bo.PutUint32(word[:], total)
	return append(buf, word[:]...)
}

// readFrame validates one block frame at data[off:] and returns its
// type, body slice and total length.
func readFrame(data []byte, off int, bo binary.ByteOrder) (uint32, []byte, int, error) {
	if off+12 > len(data) {
		return 0, nil, 0, fmt.Errorf("%w: %d bytes left, block frame needs 12",
			ErrTruncated, len(data)-off)
	}
	blockType := bo.Uint32(data[off:])
	total := int(bo.Uint32(data[off+4:]))
	if total < 12 || total%4 != 0 {
		return 0, nil, 0, fmt.Errorf("%w: total length %d", ErrBlockFraming, total)
	}
	if off+total > len(data) {
		return 0, nil, 0, fmt.Errorf("%w: block claims %d bytes, %d remain",
			ErrTruncated, total, len(data)-off)
	}
	trailer := int(bo.Uint32(data[off+total-4:]))
	if trailer != total {
		return 0, nil, 0, fmt.Errorf("%w: leading %d, trailing %d", ErrLengthMismatch, total, trailer)
	}
	return blockType, data[off+8 : off+total-4], total, nil
}

// UnknownBlock preserves a block of unrecognized type verbatim.
type UnknownBlock struct {
	Type uint32
	Body []byte
}

func (b *UnknownBlock) BlockType() uint32 { return b.Type }

func (b *UnknownBlock) encodeBody(binary.ByteOrder) ([]byte, error) {
	return b.Body, nil
}
