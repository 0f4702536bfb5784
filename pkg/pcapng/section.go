package pcapng

import (
	"encoding/binary"
	"fmt"
	"time"
)

// Section is one byte-order-homogeneous run of blocks. Blocks holds
// every non-SHB block in file order so encoding reproduces the
// original layout; Interfaces are views into Blocks in declaration
// order.
type Section struct {
	ByteOrder     binary.ByteOrder
	Major, Minor  uint16
	SectionLength uint64
	Options       []Option

	Blocks     []Block
	Interfaces []*Interface
}

// NewSection creates an empty version-1.0 section of unknown length.
// A nil byte order defaults to little-endian.
func NewSection(bo binary.ByteOrder) *Section {
	if bo == nil {
		bo = binary.LittleEndian
	}
	return &Section{
		ByteOrder:     bo,
		Major:         1,
		Minor:         0,
		SectionLength: SectionLengthUnknown,
	}
}

// Unknown returns the unrecognized blocks in file order.
func (s *Section) Unknown() []*UnknownBlock {
	var out []*UnknownBlock
	for _, b := range s.Blocks {
		if u, ok := b.(*UnknownBlock); ok {
			out = append(out, u)
		}
	}
	return out
}

// AddInterface appends an interface description block.
func (s *Section) AddInterface(ifc *Interface) *Interface {
	ifc.section = s
	s.Blocks = append(s.Blocks, ifc)
	s.Interfaces = append(s.Interfaces, ifc)
	return ifc
}

func (s *Section) encodeSHB() []byte {
	body := make([]byte, 16, 16+optionsSize(s.Options))
	s.ByteOrder.PutUint32(body[0:4], ByteOrderMagic)
	s.ByteOrder.PutUint16(body[4:6], s.Major)
	s.ByteOrder.PutUint16(body[6:8], s.Minor)
	s.ByteOrder.PutUint64(body[8:16], s.SectionLength)
	return append(body, encodeOptions(s.Options, s.ByteOrder)...)
}

// Encode serializes the section header followed by every block, all in
// the section's own byte order.
func (s *Section) Encode() ([]byte, error) {
	out := appendBlock(nil, s.ByteOrder, BlockTypeSHB, s.encodeSHB())
	for _, b := range s.Blocks {
		body, err := b.encodeBody(s.ByteOrder)
		if err != nil {
			return nil, err
		}
		out = appendBlock(out, s.ByteOrder, b.BlockType(), body)
	}
	return out, nil
}

// ─── Interface Description Block ───────────────────────────────────────────

// Interface is one IDB plus the packet blocks captured on it.
type Interface struct {
	LinkType uint16
	Reserved uint16
	SnapLen  uint32
	Options  []Option

	// Packets are views of the owning section's packet-bearing blocks
	// attributed to this interface, in file order.
	Packets []PacketBlock

	section *Section
}

func (i *Interface) BlockType() uint32 { return BlockTypeIDB }

// Section returns the owning section.
func (i *Interface) Section() *Section { return i.section }

func (i *Interface) encodeBody(bo binary.ByteOrder) ([]byte, error) {
	body := make([]byte, 8, 8+optionsSize(i.Options))
	bo.PutUint16(body[0:2], i.LinkType)
	bo.PutUint16(body[2:4], i.Reserved)
	bo.PutUint32(body[4:8], i.SnapLen)
	return append(body, encodeOptions(i.Options, bo)...), nil
}

// index returns this interface's position within its section.
func (i *Interface) index() uint32 {
	for n, other := range i.section.Interfaces {
		if other == i {
			return uint32(n)
		}
	}
	return 0
}

// TicksPerSecond derives the timestamp resolution from the if_tsresol
// option: high bit set selects base 2, otherwise base 10, with the low
// seven bits as the negative exponent. Default is microseconds.
func (i *Interface) TicksPerSecond() (uint64, error) {
	exp := uint8(6)
	base := uint64(10)
	for _, o := range i.Options {
		if o.Code == OptIfTsResol && len(o.Value) >= 1 {
			raw := o.Value[0]
			if raw&0x80 != 0 {
				base = 2
			}
			exp = raw & 0x7F
		}
	}
	per := uint64(1)
	for n := uint8(0); n < exp; n++ {
		next := per * base
		if next/base != per {
			return 0, fmt.Errorf("%w: if_tsresol exponent %d overflows", ErrBlockFraming, exp)
		}
		per = next
	}
	return per, nil
}

// AddEPB appends an enhanced packet block for data captured at ts.
func (i *Interface) AddEPB(data []byte, ts time.Time) (*EPB, error) {
	per, err := i.TicksPerSecond()
	if err != nil {
		return nil, err
	}
	ticks := uint64(ts.Unix())*per + uint64(ts.Nanosecond())*per/uint64(time.Second)
	b := &EPB{
		InterfaceID:   i.index(),
		TimestampHigh: uint32(ticks >> 32),
		TimestampLow:  uint32(ticks),
		CapLen:        uint32(len(data)),
		OrigLen:       uint32(len(data)),
		Data:          data,
		iface:         i,
	}
	i.section.Blocks = append(i.section.Blocks, b)
	i.Packets = append(i.Packets, b)
	return b, nil
}

// AddSPB appends a simple packet block.
func (i *Interface) AddSPB(data []byte) *SPB {
	b := &SPB{OrigLen: uint32(len(data)), Data: data, iface: i}
	i.section.Blocks = append(i.section.Blocks, b)
	i.Packets = append(i.Packets, b)
	return b
}

// ─── Packet blocks ─────────────────────────────────────────────────────────

// PacketBlock is the common view over EPB and SPB.
type PacketBlock interface {
	Block
	// PacketData returns the captured bytes.
	PacketData() []byte
	// OrigLength returns the original on-the-wire length, which may
	// exceed the captured length.
	OrigLength() uint32
	// Timestamp returns the capture time; ok is false for SPBs, which
	// carry none.
	Timestamp() (t time.Time, ok bool)
}

// EPB is an enhanced packet block.
type EPB struct {
	InterfaceID   uint32
	TimestampHigh uint32
	TimestampLow  uint32
	CapLen        uint32
	OrigLen       uint32
	Data          []byte
	Options       []Option

	iface *Interface
}

func (b *EPB) BlockType() uint32     { return BlockTypeEPB }
func (b *EPB) PacketData() []byte    { return b.Data }
func (b *EPB) OrigLength() uint32    { return b.OrigLen }
func (b *EPB) Interface() *Interface { return b.iface }

// Ticks combines the split timestamp words into the 64-bit tick count.
func (b *EPB) Ticks() uint64 {
	return uint64(b.TimestampHigh)<<32 | uint64(b.TimestampLow)
}

// Timestamp converts the tick count with the owning interface's
// resolution. ok is false when the block is detached from an
// interface or the resolution is unusable.
func (b *EPB) Timestamp() (time.Time, bool) {
	if b.iface == nil {
		return time.Time{}, false
	}
	per, err := b.iface.TicksPerSecond()
	if err != nil {
		return time.Time{}, false
	}
	ticks := b.Ticks()
	sec := ticks / per
	frac := ticks % per
	return time.Unix(int64(sec), int64(frac*uint64(time.Second)/per)).UTC(), true
}

func (b *EPB) encodeBody(bo binary.ByteOrder) ([]byte, error) {
	if int(b.CapLen) != len(b.Data) {
		return nil, fmt.Errorf("%w: EPB captured length %d, data %d bytes",
			ErrBlockFraming, b.CapLen, len(b.Data))
	}
	body := make([]byte, 20, 20+len(b.Data)+pad4(len(b.Data))+optionsSize(b.Options))
	bo.PutUint32(body[0:4], b.InterfaceID)
	bo.PutUint32(body[4:8], b.TimestampHigh)
	bo.PutUint32(body[8:12], b.TimestampLow)
	bo.PutUint32(body[12:16], b.CapLen)
	bo.PutUint32(body[16:20], b.OrigLen)
	body = append(body, b.Data...)
	body = append(body, make([]byte, pad4(len(b.Data)))...)
	return append(body, encodeOptions(b.Options, bo)...), nil
}

// SPB is a simple packet block: original length and data only, no
// timestamp, implicitly interface 0. With no captured-length field,
// the original length doubles as the captured length (clipped to the
// bytes actually stored).
type SPB struct {
	OrigLen uint32
	// Data holds the block body after the length word, including any
	// alignment padding present in the parsed file.
	Data []byte

	iface *Interface
}

func (b *SPB) BlockType() uint32     { return BlockTypeSPB }
func (b *SPB) OrigLength() uint32    { return b.OrigLen }
func (b *SPB) Interface() *Interface { return b.iface }

func (b *SPB) PacketData() []byte {
	if int(b.OrigLen) < len(b.Data) {
		return b.Data[:b.OrigLen]
	}
	return b.Data
}

func (b *SPB) Timestamp() (time.Time, bool) { return time.Time{}, false }

func (b *SPB) encodeBody(bo binary.ByteOrder) ([]byte, error) {
	body := make([]byte, 4, 4+len(b.Data)+pad4(len(b.Data)))
	bo.PutUint32(body[0:4], b.OrigLen)
	body = append(body, b.Data...)
	return append(body, make([]byte, pad4(len(b.Data)))...), nil
}
