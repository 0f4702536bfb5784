package schema

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/strix/pkg/fields"
)

// toySchema declares a small header exercising presence, length and
// bit-group features: a flags byte, an optional id gated on flags bit
// 0, a payload length, and a variable payload clipped by it.
func toySchema(t *testing.T) *Schema {
	t.Helper()
	s, err := New("toy", []FieldSpec{
		{Name: "flags", Codec: fields.U8(), Bits: []fields.BitSub{
			{Name: "reserved", Width: 7},
			{Name: "has_id", Width: 1},
		}},
		{Name: "id", Codec: fields.U16(binary.BigEndian),
			Refs:    []string{"flags"},
			Present: func(h *Header) bool { return h.Uint("flags")&1 == 1 }},
		{Name: "plen", Codec: fields.U8()},
		{Name: "payload", Codec: fields.BytesBudget(),
			Refs:   []string{"plen"},
			Length: func(h *Header) int { return int(h.Uint("plen")) }},
	})
	require.NoError(t, err)
	return s
}

func TestDecodeOrderAndPresence(t *testing.T) {
	s := toySchema(t)

	h, n, err := s.Decode([]byte{0x01, 0xBE, 0xEF, 0x02, 0xAA, 0xBB, 0xCC})
	require.NoError(t, err)
	assert.Equal(t, 6, n)
	assert.True(t, h.Has("id"))
	assert.Equal(t, uint64(0xBEEF), h.Uint("id"))
	assert.Equal(t, []byte{0xAA, 0xBB}, h.Bytes("payload"))

	// Flags bit clear: id is skipped, not consumed.
	h, n, err = s.Decode([]byte{0x00, 0x01, 0xAA})
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.False(t, h.Has("id"))
	assert.Equal(t, []byte{0xAA}, h.Bytes("payload"))
}

func TestEncodeSkipsAbsentFields(t *testing.T) {
	s := toySchema(t)
	h := s.NewHeader()
	h.SetUint("plen", 1)
	h.Set("payload", []byte{0x7F})

	b, err := h.Encode()
	require.NoError(t, err)
	assert.Equal(t, []byte{0x00, 0x01, 0x7F}, b)
	assert.Equal(t, 3, h.Size())

	// Turning the presence bit on brings the field back.
	require.NoError(t, h.SetBit("flags", "has_id", 1))
	h.SetUint("id", 0x1234)
	b, err = h.Encode()
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01, 0x12, 0x34, 0x01, 0x7F}, b)
}

func TestDecodeRoundTrip(t *testing.T) {
	s := toySchema(t)
	wire := []byte{0x01, 0xCA, 0xFE, 0x03, 0x01, 0x02, 0x03}
	h, n, err := s.Decode(wire)
	require.NoError(t, err)
	require.Equal(t, len(wire), n)

	out, err := h.Encode()
	require.NoError(t, err)
	assert.Equal(t, wire, out)
}

func TestLengthErrors(t *testing.T) {
	s := toySchema(t)

	// Budget larger than the remaining input.
	_, _, err := s.Decode([]byte{0x00, 0x05, 0xAA})
	assert.ErrorIs(t, err, fields.ErrShortInput)

	neg, err := New("neg", []FieldSpec{
		{Name: "plen", Codec: fields.U8()},
		{Name: "payload", Codec: fields.BytesBudget(),
			Refs:   []string{"plen"},
			Length: func(h *Header) int { return int(h.Uint("plen")) - 10 }},
	})
	require.NoError(t, err)
	_, _, err = neg.Decode([]byte{0x00})
	assert.ErrorIs(t, err, fields.ErrFormat)
}

func TestClippedFieldMustConsumeBudget(t *testing.T) {
	// A fixed 2-byte field under a 3-byte budget leaves a gap.
	s, err := New("gap", []FieldSpec{
		{Name: "plen", Codec: fields.U8()},
		{Name: "v", Codec: fields.BytesN(2),
			Refs:   []string{"plen"},
			Length: func(h *Header) int { return int(h.Uint("plen")) }},
	})
	require.NoError(t, err)
	_, _, err = s.Decode([]byte{0x03, 1, 2, 3})
	assert.ErrorIs(t, err, fields.ErrFormat)
}

func TestNewRejectsForwardReference(t *testing.T) {
	_, err := New("bad", []FieldSpec{
		{Name: "payload", Codec: fields.BytesBudget(),
			Refs:   []string{"plen"},
			Length: func(h *Header) int { return int(h.Uint("plen")) }},
		{Name: "plen", Codec: fields.U8()},
	})
	assert.ErrorIs(t, err, ErrSchema)
}

func TestNewRejectsSelfReference(t *testing.T) {
	_, err := New("bad", []FieldSpec{
		{Name: "plen", Codec: fields.U8()},
		{Name: "payload", Codec: fields.BytesBudget(),
			Refs:   []string{"payload"},
			Length: func(h *Header) int { return 0 }},
	})
	assert.ErrorIs(t, err, ErrSchema)
}

func TestNewRejectsDuplicateName(t *testing.T) {
	_, err := New("bad", []FieldSpec{
		{Name: "x", Codec: fields.U8()},
		{Name: "x", Codec: fields.U8()},
	})
	assert.ErrorIs(t, err, ErrSchema)
}

func TestNewRejectsPredicateWithoutRefs(t *testing.T) {
	_, err := New("bad", []FieldSpec{
		{Name: "x", Codec: fields.U8()},
		{Name: "y", Codec: fields.U8(),
			Present: func(h *Header) bool { return true }},
	})
	assert.ErrorIs(t, err, ErrSchema)
}

func TestNewRejectsBitWidthMismatch(t *testing.T) {
	_, err := New("bad", []FieldSpec{
		{Name: "flags", Codec: fields.U16(binary.BigEndian), Bits: []fields.BitSub{
			{Name: "a", Width: 4},
			{Name: "b", Width: 4},
		}},
	})
	assert.ErrorIs(t, err, ErrSchema)
}

func TestDefaults(t *testing.T) {
	s, err := New("def", []FieldSpec{
		{Name: "ver", Codec: fields.U8(), Default: uint64(0x45)},
		{Name: "addr", Codec: fields.BytesN(4)},
	})
	require.NoError(t, err)
	h := s.NewHeader()
	assert.Equal(t, uint64(0x45), h.Uint("ver"))
	assert.Equal(t, []byte{0, 0, 0, 0}, h.Bytes("addr"))
	assert.False(t, h.Explicit("ver"))

	h.SetUint("ver", 0x46)
	assert.True(t, h.Explicit("ver"))
}

func TestChecksumHook(t *testing.T) {
	s, err := New("cks", []FieldSpec{
		{Name: "v", Codec: fields.U16(binary.BigEndian)},
		{Name: "checksum", Codec: fields.U16(binary.BigEndian)},
	}, WithChecksum("checksum", func(h *Header) (uint64, error) {
		h.values["checksum"] = uint64(0)
		b, err := h.Encode()
		if err != nil {
			return 0, err
		}
		return uint64(fields.Checksum16(b)), nil
	}))
	require.NoError(t, err)

	h := s.NewHeader()
	h.SetUint("v", 0x1234)
	h.SetUint("checksum", 0xDEAD) // stale value must not leak into the sum
	require.NoError(t, h.RecomputeChecksum())
	assert.Equal(t, uint64(^uint16(0x1234))&0xFFFF, h.Uint("checksum"))

	// Recompute is explicit: setting a field again leaves it stale.
	h.SetUint("v", 0x5678)
	assert.Equal(t, uint64(^uint16(0x1234))&0xFFFF, h.Uint("checksum"))
}
