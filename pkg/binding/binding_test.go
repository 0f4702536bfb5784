package binding

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/strix/pkg/fields"
	"firestige.xyz/strix/pkg/schema"
)

// testRegistry wires a three-protocol graph: outer carries a one-byte
// next field selecting inner-a (1) or inner-b (2); value 3 is split
// between inner-a (guarded on payload length) and inner-b (fallback).
func testRegistry(t *testing.T) *Registry {
	t.Helper()
	r := NewRegistry()
	r.MustRegister(schema.MustNew("outer", []schema.FieldSpec{
		{Name: "next", Codec: fields.U8()},
	}))
	r.MustRegister(schema.MustNew("inner-a", []schema.FieldSpec{
		{Name: "v", Codec: fields.U8()},
	}))
	r.MustRegister(schema.MustNew("inner-b", []schema.FieldSpec{
		{Name: "v", Codec: fields.U16(binary.BigEndian)},
	}))

	r.MustBind("outer", Edge{Succ: "inner-a", Discriminator: "next", Value: 1})
	r.MustBind("outer", Edge{Succ: "inner-b", Discriminator: "next", Value: 2})
	r.MustBind("outer", Edge{Succ: "inner-a", Discriminator: "next", Value: 3,
		Guard: func(payload []byte) bool { return len(payload) == 1 }})
	r.MustBind("outer", Edge{Succ: "inner-b", Discriminator: "next", Value: 3})
	return r
}

func TestDissectFollowsEdges(t *testing.T) {
	r := testRegistry(t)

	p, err := r.Dissect("outer", []byte{1, 0x7F})
	require.NoError(t, err)
	require.Len(t, p.Layers(), 2)
	assert.Equal(t, "inner-a", p.Layers()[1].Proto())
	assert.Equal(t, uint64(0x7F), p.Layer("inner-a").Uint("v"))
	assert.Empty(t, p.Payload())

	p, err = r.Dissect("outer", []byte{2, 0x12, 0x34})
	require.NoError(t, err)
	assert.Equal(t, uint64(0x1234), p.Layer("inner-b").Uint("v"))
}

func TestDissectUnmatchedBecomesPayload(t *testing.T) {
	r := testRegistry(t)
	p, err := r.Dissect("outer", []byte{9, 0xAA, 0xBB})
	require.NoError(t, err)
	assert.Len(t, p.Layers(), 1)
	assert.Equal(t, []byte{0xAA, 0xBB}, p.Payload())
}

func TestDissectGuardSplitsSharedValue(t *testing.T) {
	r := testRegistry(t)

	// One payload byte: the guarded inner-a edge wins.
	p, err := r.Dissect("outer", []byte{3, 0x7F})
	require.NoError(t, err)
	assert.NotNil(t, p.Layer("inner-a"))
	assert.Nil(t, p.Layer("inner-b"))

	// Two bytes: the guard fails, the bare edge is the fallback.
	p, err = r.Dissect("outer", []byte{3, 0x12, 0x34})
	require.NoError(t, err)
	assert.NotNil(t, p.Layer("inner-b"))
}

func TestDissectSurfacesDecodeError(t *testing.T) {
	r := testRegistry(t)
	_, err := r.Dissect("outer", []byte{})
	assert.ErrorIs(t, err, fields.ErrShortInput)
	_, err = r.Dissect("nowhere", []byte{1})
	assert.ErrorIs(t, err, ErrUnknownProto)
}

func TestBindRejectsAmbiguity(t *testing.T) {
	r := testRegistry(t)

	// Same discriminator value, neither guarded.
	err := r.Bind("outer", Edge{Succ: "inner-a", Discriminator: "next", Value: 2})
	assert.ErrorIs(t, err, ErrAmbiguous)

	// Same value, second guard: still undecidable against the first.
	err = r.Bind("outer", Edge{Succ: "inner-b", Discriminator: "next", Value: 3,
		Guard: func([]byte) bool { return true }})
	assert.ErrorIs(t, err, ErrAmbiguous)

	// Unknown endpoints.
	err = r.Bind("nowhere", Edge{Succ: "inner-a", Discriminator: "next", Value: 1})
	assert.ErrorIs(t, err, ErrUnknownProto)
	err = r.Bind("outer", Edge{Succ: "nowhere", Discriminator: "next", Value: 9})
	assert.ErrorIs(t, err, ErrUnknownProto)
}

func TestBindRejectsUnknownDiscriminator(t *testing.T) {
	r := testRegistry(t)

	// A misspelled discriminator reads as zero on every header, so a
	// zero-valued edge would match everything. Caught at Bind time.
	err := r.Bind("outer", Edge{Succ: "inner-a", Discriminator: "nxt", Value: 0})
	assert.ErrorIs(t, err, ErrUnknownField)
}

func TestRegisterRejectsDuplicate(t *testing.T) {
	r := testRegistry(t)
	err := r.Register(schema.MustNew("outer", []schema.FieldSpec{
		{Name: "x", Codec: fields.U8()},
	}))
	assert.ErrorIs(t, err, ErrDuplicate)
}

func TestAddAutoPopulatesDiscriminator(t *testing.T) {
	r := testRegistry(t)
	outer, _ := r.Proto("outer")
	innerB, _ := r.Proto("inner-b")

	p := r.NewPacket()
	oh := outer.NewHeader()
	require.NoError(t, p.Add(oh))
	bh := innerB.NewHeader()
	bh.SetUint("v", 0xBEEF)
	require.NoError(t, p.Add(bh))

	assert.Equal(t, uint64(2), oh.Uint("next"))

	b, err := p.Encode()
	require.NoError(t, err)
	assert.Equal(t, []byte{2, 0xBE, 0xEF}, b)
}

func TestAddKeepsMatchingExplicitDiscriminator(t *testing.T) {
	r := testRegistry(t)
	outer, _ := r.Proto("outer")
	innerA, _ := r.Proto("inner-a")

	p := r.NewPacket()
	oh := outer.NewHeader()
	oh.SetUint("next", 3) // the guarded edge's value, valid for inner-a
	require.NoError(t, p.Add(oh))
	require.NoError(t, p.Add(innerA.NewHeader()))
	assert.Equal(t, uint64(3), oh.Uint("next"))
}

func TestAddRejectsMismatchedDiscriminator(t *testing.T) {
	r := testRegistry(t)
	outer, _ := r.Proto("outer")
	innerA, _ := r.Proto("inner-a")

	p := r.NewPacket()
	oh := outer.NewHeader()
	oh.SetUint("next", 2) // bound to inner-b, not inner-a
	require.NoError(t, p.Add(oh))

	err := p.Add(innerA.NewHeader())
	var be *BindingError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, "outer", be.Pred)
	assert.Equal(t, "inner-a", be.Succ)
}

func TestAddRejectsUnboundPair(t *testing.T) {
	r := testRegistry(t)
	innerA, _ := r.Proto("inner-a")
	innerB, _ := r.Proto("inner-b")

	p := r.NewPacket()
	require.NoError(t, p.Add(innerA.NewHeader()))
	err := p.Add(innerB.NewHeader())
	var be *BindingError
	require.ErrorAs(t, err, &be)
	assert.Contains(t, be.Error(), "Bind")
}

func TestPacketPayloadAndString(t *testing.T) {
	r := testRegistry(t)
	outer, _ := r.Proto("outer")

	p := r.NewPacket()
	require.NoError(t, p.Add(outer.NewHeader()))
	p.SetPayload([]byte{1, 2, 3})

	b, err := p.Encode()
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 1, 2, 3}, b)
	assert.Contains(t, p.String(), "payload: 3 bytes")
}
