package pcapng

import (
	"encoding/binary"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ─── Fixture builders ──────────────────────────────────────────────────────

func put16(bo binary.ByteOrder, v uint16) []byte {
	b := make([]byte, 2)
	bo.PutUint16(b, v)
	return b
}

func put32(bo binary.ByteOrder, v uint32) []byte {
	b := make([]byte, 4)
	bo.PutUint32(b, v)
	return b
}

func put64(bo binary.ByteOrder, v uint64) []byte {
	b := make([]byte, 8)
	bo.PutUint64(b, v)
	return b
}

// frame wraps body as `type | total | body+pad | total`.
func frame(bo binary.ByteOrder, typ uint32, body []byte) []byte {
	padded := append(append([]byte(nil), body...), make([]byte, pad4(len(body)))...)
	total := uint32(12 + len(padded))
	out := put32(bo, typ)
	out = append(out, put32(bo, total)...)
	out = append(out, padded...)
	return append(out, put32(bo, total)...)
}

func opt(bo binary.ByteOrder, code uint16, val []byte) []byte {
	out := put16(bo, code)
	out = append(out, put16(bo, uint16(len(val)))...)
	out = append(out, val...)
	return append(out, make([]byte, pad4(len(val)))...)
}

func endOfOpts(bo binary.ByteOrder) []byte { return opt(bo, 0, nil) }

func shbWithLength(bo binary.ByteOrder, secLen uint64, opts []byte) []byte {
	body := put32(bo, ByteOrderMagic)
	body = append(body, put16(bo, 1)...)
	body = append(body, put16(bo, 0)...)
	body = append(body, put64(bo, secLen)...)
	return frame(bo, BlockTypeSHB, append(body, opts...))
}

func shb(bo binary.ByteOrder, opts []byte) []byte {
	return shbWithLength(bo, SectionLengthUnknown, opts)
}

func idb(bo binary.ByteOrder, linkType uint16, snapLen uint32, opts []byte) []byte {
	body := put16(bo, linkType)
	body = append(body, put16(bo, 0)...)
	body = append(body, put32(bo, snapLen)...)
	return frame(bo, BlockTypeIDB, append(body, opts...))
}

func epb(bo binary.ByteOrder, ifaceID uint32, ticks uint64, data []byte) []byte {
	body := put32(bo, ifaceID)
	body = append(body, put32(bo, uint32(ticks>>32))...)
	body = append(body, put32(bo, uint32(ticks))...)
	body = append(body, put32(bo, uint32(len(data)))...)
	body = append(body, put32(bo, uint32(len(data)))...)
	body = append(body, data...)
	return frame(bo, BlockTypeEPB, body)
}

func spb(bo binary.ByteOrder, origLen uint32, data []byte) []byte {
	body := append(put32(bo, origLen), data...)
	return frame(bo, BlockTypeSPB, body)
}

// ─── Parsing and byte-exact re-encoding ────────────────────────────────────

func TestParseRoundTrip(t *testing.T) {
	le := binary.LittleEndian
	var file []byte
	file = append(file, shb(le, nil)...)
	file = append(file, idb(le, 1, 65535, nil)...)
	file = append(file, epb(le, 0, 0x1234, []byte("abcd"))...)
	file = append(file, spb(le, 3, []byte{'x', 'y', 'z', 0})...)
	file = append(file, frame(le, 0x0BAD, []byte{1, 2, 3, 4})...)

	f, err := Parse(file)
	require.NoError(t, err)
	require.Len(t, f.Sections, 1)
	sec := f.Sections[0]
	assert.Equal(t, le, sec.ByteOrder)
	assert.Equal(t, uint16(1), sec.Major)
	assert.Equal(t, SectionLengthUnknown, sec.SectionLength)
	require.Len(t, sec.Interfaces, 1)
	assert.Equal(t, uint16(1), sec.Interfaces[0].LinkType)
	assert.Len(t, sec.Interfaces[0].Packets, 2)
	require.Len(t, sec.Unknown(), 1)
	assert.Equal(t, uint32(0x0BAD), sec.Unknown()[0].Type)
	assert.Equal(t, []byte{1, 2, 3, 4}, sec.Unknown()[0].Body)

	// Re-encoding reproduces the input byte for byte.
	out, err := f.Encode()
	require.NoError(t, err)
	assert.Equal(t, file, out)
}

func TestParseMixedEndianSections(t *testing.T) {
	le, be := binary.ByteOrder(binary.LittleEndian), binary.ByteOrder(binary.BigEndian)
	orders := []binary.ByteOrder{le, be, le}

	var file []byte
	for i, bo := range orders {
		file = append(file, shb(bo, nil)...)
		file = append(file, idb(bo, 1, 65535, nil)...)
		file = append(file, epb(bo, 0, uint64(i), []byte{byte(i), 0, 0, 0})...)
	}

	f, err := Parse(file)
	require.NoError(t, err)
	require.Len(t, f.Sections, 3)
	for i, sec := range f.Sections {
		assert.Equal(t, orders[i], sec.ByteOrder, "section %d", i)
		assert.Len(t, sec.Interfaces, 1)
		assert.Len(t, sec.Interfaces[0].Packets, 1)
	}
	assert.Len(t, f.Packets(), 3)

	out, err := f.Encode()
	require.NoError(t, err)
	assert.Equal(t, file, out)
}

func TestParseHonorsDeclaredSectionLength(t *testing.T) {
	le := binary.LittleEndian
	blocks := append(idb(le, 1, 65535, nil), spb(le, 3, []byte{'x', 'y', 'z', 0})...)

	var file []byte
	file = append(file, shbWithLength(le, uint64(len(blocks)), nil)...)
	file = append(file, blocks...)
	file = append(file, shb(le, nil)...)
	file = append(file, idb(le, 1, 0, nil)...)

	f, err := Parse(file)
	require.NoError(t, err)
	require.Len(t, f.Sections, 2)
	assert.Equal(t, uint64(len(blocks)), f.Sections[0].SectionLength)
	assert.Len(t, f.Sections[0].Blocks, 2)
	assert.Len(t, f.Sections[1].Blocks, 1)

	// The declared length re-encodes verbatim.
	out, err := f.Encode()
	require.NoError(t, err)
	assert.Equal(t, file, out)
}

func TestParseRejectsOverlongDeclaredLength(t *testing.T) {
	le := binary.LittleEndian
	_, err := Parse(shbWithLength(le, 64, nil))
	assert.ErrorIs(t, err, ErrTruncated)
}

func TestParseRejectsBlockCrossingDeclaredLength(t *testing.T) {
	le := binary.LittleEndian
	blocks := idb(le, 1, 0, nil)
	// Declare 4 bytes less than the IDB actually occupies.
	file := append(shbWithLength(le, uint64(len(blocks)-4), nil), blocks...)
	_, err := Parse(file)
	assert.ErrorIs(t, err, ErrTruncated)
}

func TestParseRejectsTrailingLengthMismatch(t *testing.T) {
	le := binary.LittleEndian
	file := append(shb(le, nil), idb(le, 1, 0, nil)...)
	// Corrupt the IDB's trailing duplicate length.
	file[len(file)-4]++
	_, err := Parse(file)
	assert.ErrorIs(t, err, ErrLengthMismatch)
}

func TestParseRejectsBadMagic(t *testing.T) {
	le := binary.LittleEndian
	file := shb(le, nil)
	file[8] = 0xEE
	_, err := Parse(file)
	assert.ErrorIs(t, err, ErrBadMagic)
}

func TestParseRejectsTruncation(t *testing.T) {
	le := binary.LittleEndian
	file := append(shb(le, nil), epb(le, 0, 0, []byte("abcd"))...)
	_, err := Parse(file[:len(file)-6])
	assert.ErrorIs(t, err, ErrTruncated)
}

func TestParseRejectsLeadingNonSHB(t *testing.T) {
	le := binary.LittleEndian
	_, err := Parse(idb(le, 1, 0, nil))
	assert.ErrorIs(t, err, ErrBlockFraming)
}

// ─── Options ───────────────────────────────────────────────────────────────

func TestOptionPreservation(t *testing.T) {
	le := binary.LittleEndian
	var opts []byte
	opts = append(opts, opt(le, OptIfName, []byte("eth0"))...)
	opts = append(opts, opt(le, OptIfTsResol, []byte{9})...)
	opts = append(opts, opt(le, 0x0BAC, []byte("custom"))...)
	opts = append(opts, endOfOpts(le)...)

	file := append(shb(le, nil), idb(le, 1, 65535, opts)...)
	f, err := Parse(file)
	require.NoError(t, err)
	ifc := f.Sections[0].Interfaces[0]
	require.Len(t, ifc.Options, 3)
	assert.Equal(t, Option{Code: OptIfName, Value: []byte("eth0")}, ifc.Options[0])
	assert.Equal(t, Option{Code: 0x0BAC, Value: []byte("custom")}, ifc.Options[2])

	per, err := ifc.TicksPerSecond()
	require.NoError(t, err)
	assert.Equal(t, uint64(1_000_000_000), per)

	out, err := f.Encode()
	require.NoError(t, err)
	assert.Equal(t, file, out)
}

func TestTicksPerSecond(t *testing.T) {
	// No if_tsresol option: microseconds.
	ifc := &Interface{}
	per, err := ifc.TicksPerSecond()
	require.NoError(t, err)
	assert.Equal(t, uint64(1_000_000), per)

	// High bit selects base 2.
	ifc.Options = []Option{{Code: OptIfTsResol, Value: []byte{0x80 | 10}}}
	per, err = ifc.TicksPerSecond()
	require.NoError(t, err)
	assert.Equal(t, uint64(1024), per)

	// Absurd exponent overflows instead of wrapping.
	ifc.Options = []Option{{Code: OptIfTsResol, Value: []byte{0x7F}}}
	_, err = ifc.TicksPerSecond()
	assert.Error(t, err)
}

// ─── Building and writing ──────────────────────────────────────────────────

func TestBuildSectionRoundTrip(t *testing.T) {
	sec := NewSection(nil)
	ifc := sec.AddInterface(&Interface{LinkType: 1, SnapLen: 65535})
	ts := time.Unix(1700000000, 123456000)
	b, err := ifc.AddEPB([]byte("ping"), ts)
	require.NoError(t, err)
	ifc.AddSPB([]byte{1, 2, 3})

	got, ok := b.Timestamp()
	require.True(t, ok)
	assert.True(t, got.Equal(ts))

	raw, err := (&File{Sections: []*Section{sec}}).Encode()
	require.NoError(t, err)
	f, err := Parse(raw)
	require.NoError(t, err)
	require.Len(t, f.Sections, 1)
	pkts := f.Sections[0].Interfaces[0].Packets
	require.Len(t, pkts, 2)
	assert.Equal(t, []byte("ping"), pkts[0].PacketData())
	assert.Equal(t, []byte{1, 2, 3}, pkts[1].PacketData())

	back, ok := pkts[0].(*EPB).Timestamp()
	require.True(t, ok)
	assert.True(t, back.Equal(ts))
	_, ok = pkts[1].Timestamp()
	assert.False(t, ok)

	out, err := f.Encode()
	require.NoError(t, err)
	assert.Equal(t, raw, out)
}

func TestSPBClipsToOriginalLength(t *testing.T) {
	le := binary.LittleEndian
	file := append(shb(le, nil), spb(le, 3, []byte{'x', 'y', 'z', 0})...)
	f, err := Parse(file)
	require.NoError(t, err)

	blk := f.Sections[0].Blocks[0].(*SPB)
	assert.Equal(t, []byte("xyz"), blk.PacketData())
	// The parsed padding byte stays in Data so re-encoding is exact.
	assert.Len(t, blk.Data, 4)

	out, err := f.Encode()
	require.NoError(t, err)
	assert.Equal(t, file, out)
}

func TestFromPacketsEnhanced(t *testing.T) {
	raws := [][]byte{[]byte("one"), []byte("two")}
	start := time.Unix(1700000000, 0)
	f, err := FromPackets(raws, ConvertOptions{
		LinkType:  1,
		Start:     start,
		Increment: 250 * time.Millisecond,
	})
	require.NoError(t, err)

	sec := f.Sections[0]
	require.Len(t, sec.Interfaces[0].Packets, 2)
	for _, p := range sec.Interfaces[0].Packets {
		_, ok := p.(*EPB)
		assert.True(t, ok)
	}
	byTime := f.PacketsByTime()
	require.Len(t, byTime, 2)
	assert.Equal(t, []byte("one"), byTime[start.UTC()])
	assert.Equal(t, []byte("two"), byTime[start.Add(250*time.Millisecond).UTC()])
}

func TestFromPacketsSimple(t *testing.T) {
	f, err := FromPackets([][]byte{[]byte("one")}, ConvertOptions{LinkType: 1})
	require.NoError(t, err)

	sec := f.Sections[0]
	assert.Equal(t, uint32(65535), sec.Interfaces[0].SnapLen)
	require.Len(t, sec.Interfaces[0].Packets, 1)
	_, ok := sec.Interfaces[0].Packets[0].(*SPB)
	assert.True(t, ok)
	assert.Empty(t, f.PacketsByTime())
	assert.Equal(t, [][]byte{[]byte("one")}, f.Packets())
}

func TestWriteFileAppend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.pcapng")

	first, err := FromPackets([][]byte{[]byte("one")}, ConvertOptions{LinkType: 1})
	require.NoError(t, err)
	require.NoError(t, first.WriteFile(path, false))

	second, err := FromPackets([][]byte{[]byte("two")}, ConvertOptions{
		ByteOrder: binary.BigEndian,
		LinkType:  1,
	})
	require.NoError(t, err)
	require.NoError(t, second.WriteFile(path, true))

	f, err := Open(path)
	require.NoError(t, err)
	require.Len(t, f.Sections, 2)
	assert.Equal(t, binary.ByteOrder(binary.LittleEndian), f.Sections[0].ByteOrder)
	assert.Equal(t, binary.ByteOrder(binary.BigEndian), f.Sections[1].ByteOrder)
	assert.Len(t, f.Packets(), 2)
}
