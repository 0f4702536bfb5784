// Package binding implements the protocol registry, the directed
// binding graph between header types, and the Packet produced by
// dissection or incremental composition.
//
// A registry is constructed once at startup — all Register and Bind
// calls before first use — and treated as an immutable snapshot
// afterwards, so concurrent lookups need no locking.
package binding

import (
	"errors"
	"fmt"

	"firestige.xyz/strix/pkg/schema"
)

// Edge is one directed binding rule: when the predecessor's
// discriminator field holds Value, the successor protocol follows.
// Guard optionally adds a constraint over the successor's raw bytes,
// used to split two successors sharing a discriminator value (MLDv2
// query vs. MLDv1, split on payload length).
type Edge struct {
	Succ          string
	Discriminator string
	Value         uint64
	Guard         func(payload []byte) bool
}

// Registration-time sentinel errors.
var (
	ErrUnknownProto = errors.New("strix: protocol not registered")
	ErrDuplicate    = errors.New("strix: protocol already registered")
	// ErrUnknownField reports an edge whose discriminator is not a
	// field of the predecessor's schema.
	ErrUnknownField = errors.New("strix: discriminator not declared by predecessor")
	// ErrAmbiguous reports two edges from one predecessor that no
	// decoded discriminator value could tell apart.
	ErrAmbiguous = errors.New("strix: ambiguous binding")
)

// Registry maps protocol short names to schemas and owns the binding
// graph.
type Registry struct {
	schemas map[string]*schema.Schema
	edges   map[string][]Edge
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		schemas: make(map[string]*schema.Schema),
		edges:   make(map[string][]Edge),
	}
}

// Register adds a schema under its protocol name.
func (r *Registry) Register(s *schema.Schema) error {
	if _, dup := r.schemas[s.Proto()]; dup {
		return fmt.Errorf("%w: %q", ErrDuplicate, s.Proto())
	}
	r.schemas[s.Proto()] = s
	return nil
}

// MustRegister is Register for startup wiring; it panics on error.
func (r *Registry) MustRegister(s *schema.Schema) {
	if err := r.Register(s); err != nil {
		panic(err)
	}
}

// Proto looks up a registered schema.
func (r *Registry) Proto(name string) (*schema.Schema, bool) {
	s, ok := r.schemas[name]
	return s, ok
}

// Bind records a directed edge from pred. Ambiguity is a registration
// error, not a dissection-time one: two edges from the same
// predecessor matching the same discriminator value may coexist only
// when exactly one of them carries a guard (the guarded edge wins, the
// bare one is the fallback).
func (r *Registry) Bind(pred string, e Edge) error {
	ps, ok := r.schemas[pred]
	if !ok {
		return fmt.Errorf("%w: predecessor %q", ErrUnknownProto, pred)
	}
	if _, ok := r.schemas[e.Succ]; !ok {
		return fmt.Errorf("%w: successor %q", ErrUnknownProto, e.Succ)
	}
	// A typo'd discriminator would read as zero at dissection time and
	// false-match any zero-valued edge; reject it here instead.
	if !ps.HasField(e.Discriminator) {
		return fmt.Errorf("%w: %s has no field %q", ErrUnknownField, pred, e.Discriminator)
	}
	for _, prev := range r.edges[pred] {
		if prev.Discriminator != e.Discriminator || prev.Value != e.Value {
			continue
		}
		if (prev.Guard == nil) == (e.Guard == nil) {
			return fmt.Errorf("%w: %s.%s=%d already binds %s, cannot also bind %s",
				ErrAmbiguous, pred, e.Discriminator, e.Value, prev.Succ, e.Succ)
		}
	}
	r.edges[pred] = append(r.edges[pred], e)
	return nil
}

// MustBind is Bind for startup wiring; it panics on error.
func (r *Registry) MustBind(pred string, e Edge) {
	if err := r.Bind(pred, e); err != nil {
		panic(err)
	}
}

// next selects the successor for a decoded header and the bytes that
// follow it. Zero matches is not an error — unknown upper layers are
// expected — so the second return distinguishes "no edge".
func (r *Registry) next(h *schema.Header, payload []byte) (Edge, bool) {
	var fallback Edge
	haveFallback := false
	for _, e := range r.edges[h.Proto()] {
		if h.Uint(e.Discriminator) != e.Value {
			continue
		}
		if e.Guard != nil {
			if e.Guard(payload) {
				return e, true
			}
			continue
		}
		fallback = e
		haveFallback = true
	}
	return fallback, haveFallback
}

// edgesTo returns all edges pred→succ.
func (r *Registry) edgesTo(pred, succ string) []Edge {
	var out []Edge
	for _, e := range r.edges[pred] {
		if e.Succ == succ {
			out = append(out, e)
		}
	}
	return out
}

// Dissect parses data starting with the named protocol, following
// binding edges until no edge matches or the input is exhausted.
// Remaining bytes become the packet's opaque trailing payload.
func (r *Registry) Dissect(start string, data []byte) (*Packet, error) {
	s, ok := r.schemas[start]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProto, start)
	}
	p := &Packet{reg: r}
	for {
		h, n, err := s.Decode(data)
		if err != nil {
			return nil, err
		}
		p.layers = append(p.layers, h)
		data = data[n:]
		if len(data) == 0 {
			return p, nil
		}
		e, ok := r.next(h, data)
		if !ok {
			p.payload = data
			return p, nil
		}
		s = r.schemas[e.Succ]
	}
}
