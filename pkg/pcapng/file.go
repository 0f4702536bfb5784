package pcapng

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"time"
)

// File is an ordered list of sections. The file itself carries no byte
// order; each section decodes and encodes with its own.
type File struct {
	Sections []*Section
}

// Open reads and parses the pcapng file at path.
func Open(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Read parses a pcapng stream. The codec needs only sequential byte
// availability, so any reader works.
func Read(r io.Reader) (*File, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes a full pcapng byte image: sections until the input is
// exhausted, each section's byte order detected from its own magic.
func Parse(data []byte) (*File, error) {
	f := &File{}
	off := 0
	for off < len(data) {
		sec, n, err := parseSection(data[off:])
		if err != nil {
			return nil, fmt.Errorf("section %d at offset %d: %w", len(f.Sections), off, err)
		}
		f.Sections = append(f.Sections, sec)
		off += n
	}
	return f, nil
}

// detectByteOrder inspects the byte-order magic of an SHB body.
func detectByteOrder(body []byte) (binary.ByteOrder, error) {
	if len(body) < 4 {
		return nil, fmt.Errorf("%w: section header body too short", ErrTruncated)
	}
	switch {
	case binary.LittleEndian.Uint32(body) == ByteOrderMagic:
		return binary.LittleEndian, nil
	case binary.BigEndian.Uint32(body) == ByteOrderMagic:
		return binary.BigEndian, nil
	default:
		return nil, fmt.Errorf("%w: %#08x", ErrBadMagic, binary.BigEndian.Uint32(body))
	}
}

func parseSection(data []byte) (*Section, int, error) {
	// The SHB type code is a palindrome, so reading it before knowing
	// the byte order is safe.
	if len(data) < 12 {
		return nil, 0, fmt.Errorf("%w: %d bytes left", ErrTruncated, len(data))
	}
	if binary.BigEndian.Uint32(data) != BlockTypeSHB {
		return nil, 0, fmt.Errorf("%w: expected section header, got block type %#08x",
			ErrBlockFraming, binary.BigEndian.Uint32(data))
	}
	bo, err := detectByteOrder(data[8:])
	if err != nil {
		return nil, 0, err
	}
	_, body, n, err := readFrame(data, 0, bo)
	if err != nil {
		return nil, 0, err
	}
	if len(body) < 16 {
		return nil, 0, fmt.Errorf("%w: section header body is %d bytes", ErrTruncated, len(body))
	}
	opts, err := decodeOptions(body[16:], bo)
	if err != nil {
		return nil, 0, err
	}
	sec := &Section{
		ByteOrder:     bo,
		Major:         bo.Uint16(body[4:6]),
		Minor:         bo.Uint16(body[6:8]),
		SectionLength: bo.Uint64(body[8:16]),
		Options:       opts,
	}
	// A declared section length bounds the block scan exactly; the
	// unknown-length marker falls back to scanning for the next SHB.
	off := n
	end := len(data)
	bounded := sec.SectionLength != SectionLengthUnknown
	if bounded {
		if sec.SectionLength > uint64(len(data)-n) {
			return nil, 0, fmt.Errorf("%w: declared section length %d, %d bytes remain",
				ErrTruncated, sec.SectionLength, len(data)-n)
		}
		end = n + int(sec.SectionLength)
	}
	for off < end {
		if !bounded && off+4 <= len(data) && bo.Uint32(data[off:]) == BlockTypeSHB {
			break
		}
		blockType, body, n, err := readFrame(data[:end], off, bo)
		if err != nil {
			return nil, 0, err
		}
		if err := sec.addParsedBlock(blockType, body); err != nil {
			return nil, 0, err
		}
		off += n
	}
	return sec, off, nil
}

func (s *Section) addParsedBlock(blockType uint32, body []byte) error {
	switch blockType {
	case BlockTypeIDB:
		if len(body) < 8 {
			return fmt.Errorf("%w: interface description body is %d bytes", ErrTruncated, len(body))
		}
		opts, err := decodeOptions(body[8:], s.ByteOrder)
		if err != nil {
			return err
		}
		s.AddInterface(&Interface{
			LinkType: s.ByteOrder.Uint16(body[0:2]),
			Reserved: s.ByteOrder.Uint16(body[2:4]),
			SnapLen:  s.ByteOrder.Uint32(body[4:8]),
			Options:  opts,
		})
		return nil

	case BlockTypeEPB:
		if len(body) < 20 {
			return fmt.Errorf("%w: enhanced packet body is %d bytes", ErrTruncated, len(body))
		}
		capLen := int(s.ByteOrder.Uint32(body[12:16]))
		if 20+capLen > len(body) {
			return fmt.Errorf("%w: captured length %d exceeds body", ErrTruncated, capLen)
		}
		pktData := make([]byte, capLen)
		copy(pktData, body[20:20+capLen])
		opts, err := decodeOptions(body[20+capLen+pad4(capLen):], s.ByteOrder)
		if err != nil {
			return err
		}
		b := &EPB{
			InterfaceID:   s.ByteOrder.Uint32(body[0:4]),
			TimestampHigh: s.ByteOrder.Uint32(body[4:8]),
			TimestampLow:  s.ByteOrder.Uint32(body[8:12]),
			CapLen:        uint32(capLen),
			OrigLen:       s.ByteOrder.Uint32(body[16:20]),
			Data:          pktData,
			Options:       opts,
		}
		if int(b.InterfaceID) < len(s.Interfaces) {
			b.iface = s.Interfaces[b.InterfaceID]
			b.iface.Packets = append(b.iface.Packets, b)
		}
		s.Blocks = append(s.Blocks, b)
		return nil

	case BlockTypeSPB:
		if len(body) < 4 {
			return fmt.Errorf("%w: simple packet body is %d bytes", ErrTruncated, len(body))
		}
		raw := make([]byte, len(body)-4)
		copy(raw, body[4:])
		b := &SPB{OrigLen: s.ByteOrder.Uint32(body[0:4]), Data: raw}
		if len(s.Interfaces) > 0 {
			b.iface = s.Interfaces[0]
			b.iface.Packets = append(b.iface.Packets, b)
		}
		s.Blocks = append(s.Blocks, b)
		return nil

	default:
		cp := make([]byte, len(body))
		copy(cp, body)
		s.Blocks = append(s.Blocks, &UnknownBlock{Type: blockType, Body: cp})
		return nil
	}
}

// ─── Writing ───────────────────────────────────────────────────────────────

// Encode serializes every section in order, each in its own byte order.
func (f *File) Encode() ([]byte, error) {
	var out []byte
	for i, s := range f.Sections {
		b, err := s.Encode()
		if err != nil {
			return nil, fmt.Errorf("section %d: %w", i, err)
		}
		out = append(out, b...)
	}
	return out, nil
}

// WriteTo implements io.WriterTo.
func (f *File) WriteTo(w io.Writer) (int64, error) {
	b, err := f.Encode()
	if err != nil {
		return 0, err
	}
	n, err := w.Write(b)
	return int64(n), err
}

// WriteFile writes the file to path. With appendMode the target is
// opened in add-content mode and this file's sections land after the
// existing bytes without re-reading or rewriting them. The handle is
// synced and closed on every path.
func (f *File) WriteFile(path string, appendMode bool) (err error) {
	flags := os.O_WRONLY | os.O_CREATE
	if appendMode {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}
	out, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := out.Close(); err == nil {
			err = cerr
		}
	}()
	if _, err = f.WriteTo(out); err != nil {
		return err
	}
	return out.Sync()
}

// ─── Conversions ───────────────────────────────────────────────────────────

// ConvertOptions controls FromPackets. Enhanced blocks with synthetic
// timestamps start + i*increment are emitted when both Start and
// Increment are set; otherwise the packets become simple blocks.
type ConvertOptions struct {
	ByteOrder binary.ByteOrder
	LinkType  uint16
	SnapLen   uint32
	Start     time.Time
	Increment time.Duration
}

// FromPackets builds a single-section, single-interface file holding
// one packet block per raw packet.
func FromPackets(raws [][]byte, opts ConvertOptions) (*File, error) {
	bo := opts.ByteOrder
	if bo == nil {
		bo = binary.LittleEndian
	}
	snap := opts.SnapLen
	if snap == 0 {
		snap = 65535
	}
	sec := NewSection(bo)
	ifc := sec.AddInterface(&Interface{LinkType: opts.LinkType, SnapLen: snap})
	enhanced := !opts.Start.IsZero() && opts.Increment > 0
	for i, raw := range raws {
		if enhanced {
			if _, err := ifc.AddEPB(raw, opts.Start.Add(time.Duration(i)*opts.Increment)); err != nil {
				return nil, err
			}
		} else {
			ifc.AddSPB(raw)
		}
	}
	return &File{Sections: []*Section{sec}}, nil
}

// Packets returns every stored packet's captured bytes in file order.
func (f *File) Packets() [][]byte {
	var out [][]byte
	for _, s := range f.Sections {
		for _, b := range s.Blocks {
			if pb, ok := b.(PacketBlock); ok {
				out = append(out, pb.PacketData())
			}
		}
	}
	return out
}

// PacketsByTime returns a timestamp-keyed view of the stored packets.
// Only enhanced blocks appear; simple blocks carry no timestamp.
func (f *File) PacketsByTime() map[time.Time][]byte {
	out := make(map[time.Time][]byte)
	for _, s := range f.Sections {
		for _, b := range s.Blocks {
			epb, ok := b.(*EPB)
			if !ok {
				continue
			}
			if ts, ok := epb.Timestamp(); ok {
				out[ts] = epb.PacketData()
			}
		}
	}
	return out
}
