// Package schema implements the declarative header engine: ordered
// field descriptors built once per header type and shared read-only
// across instances, with presence and length functions evaluated
// against already-decoded sibling values strictly in field order.
package schema

import (
	"errors"
	"fmt"

	"firestige.xyz/strix/pkg/fields"
)

// PresenceFn decides whether an optional field is present, given the
// siblings decoded so far.
type PresenceFn func(h *Header) bool

// LengthFn computes a field's byte budget from siblings decoded so far.
type LengthFn func(h *Header) int

// ChecksumFn computes a checksum field's value from the current header
// state. Checksums are never computed implicitly; callers invoke
// Header.RecomputeChecksum explicitly.
type ChecksumFn func(h *Header) (uint64, error)

// ErrSchema reports an invalid schema declaration.
var ErrSchema = errors.New("strix: invalid schema")

// FieldSpec declares one field of a header type.
//
// Refs lists the sibling fields that Present and Length read. Every
// ref must name a field declared earlier; forward references are
// rejected when the schema is built, not discovered at decode time.
type FieldSpec struct {
	Name    string
	Codec   fields.Codec
	Default fields.Value
	Refs    []string
	Present PresenceFn
	Length  LengthFn
	// Bits optionally splits an integer field into named sub-fields,
	// most significant group first. Widths must sum to the field width.
	Bits []fields.BitSub
}

// Schema is the immutable field layout of one header type. Build it
// once with New and share it; instances (Header) hold only values.
type Schema struct {
	proto         string
	specs         []FieldSpec
	index         map[string]int
	checksumField string
	checksumFn    ChecksumFn
}

// Option customizes a schema at construction time.
type Option func(*Schema)

// WithChecksum registers the explicit checksum recompute hook for the
// named field.
func WithChecksum(field string, fn ChecksumFn) Option {
	return func(s *Schema) {
		s.checksumField = field
		s.checksumFn = fn
	}
}

// New builds and validates a schema. It rejects duplicate field names,
// references to unknown siblings, forward references, and bit groups
// whose widths do not cover the parent integer.
func New(proto string, specs []FieldSpec, opts ...Option) (*Schema, error) {
	if proto == "" {
		return nil, fmt.Errorf("%w: empty protocol name", ErrSchema)
	}
	s := &Schema{
		proto: proto,
		specs: specs,
		index: make(map[string]int, len(specs)),
	}
	for i, spec := range specs {
		if spec.Name == "" {
			return nil, fmt.Errorf("%w: %s field %d has no name", ErrSchema, proto, i)
		}
		if _, dup := s.index[spec.Name]; dup {
			return nil, fmt.Errorf("%w: %s duplicates field %q", ErrSchema, proto, spec.Name)
		}
		if spec.Codec == nil {
			return nil, fmt.Errorf("%w: %s.%s has no codec", ErrSchema, proto, spec.Name)
		}
		for _, ref := range spec.Refs {
			j, ok := s.index[ref]
			if !ok {
				return nil, fmt.Errorf("%w: %s.%s references unknown or later sibling %q",
					ErrSchema, proto, spec.Name, ref)
			}
			if j >= i {
				return nil, fmt.Errorf("%w: %s.%s forward-references %q",
					ErrSchema, proto, spec.Name, ref)
			}
		}
		if (spec.Present != nil || spec.Length != nil) && len(spec.Refs) == 0 {
			return nil, fmt.Errorf("%w: %s.%s has presence/length functions but declares no refs",
				ErrSchema, proto, spec.Name)
		}
		if arr, ok := spec.Codec.(Array); ok {
			if arr.Counter == "" {
				if spec.Length == nil {
					return nil, fmt.Errorf("%w: %s.%s: budget-bound array needs a length function",
						ErrSchema, proto, spec.Name)
				}
			} else if j, ok := s.index[arr.Counter]; !ok || j >= i {
				return nil, fmt.Errorf("%w: %s.%s: counter %q is not an earlier sibling",
					ErrSchema, proto, spec.Name, arr.Counter)
			}
		}
		if len(spec.Bits) > 0 {
			width, err := intWidth(spec.Codec)
			if err != nil {
				return nil, fmt.Errorf("%w: %s.%s: bit groups require an integer codec",
					ErrSchema, proto, spec.Name)
			}
			if got := fields.BitsWidth(spec.Bits); got != uint(width) {
				return nil, fmt.Errorf("%w: %s.%s bit widths sum to %d, field is %d bits",
					ErrSchema, proto, spec.Name, got, width)
			}
		}
		s.index[spec.Name] = i
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.checksumField != "" {
		if _, ok := s.index[s.checksumField]; !ok {
			return nil, fmt.Errorf("%w: %s checksum field %q not declared",
				ErrSchema, proto, s.checksumField)
		}
	}
	return s, nil
}

// MustNew is New for package-level protocol declarations; it panics on
// a declaration error.
func MustNew(proto string, specs []FieldSpec, opts ...Option) *Schema {
	s, err := New(proto, specs, opts...)
	if err != nil {
		panic(err)
	}
	return s
}

// Proto returns the protocol short name.
func (s *Schema) Proto() string { return s.proto }

// HasField reports whether the schema declares the named field.
func (s *Schema) HasField(name string) bool {
	_, ok := s.index[name]
	return ok
}

// Fields returns the ordered field names.
func (s *Schema) Fields() []string {
	names := make([]string, len(s.specs))
	for i, spec := range s.specs {
		names[i] = spec.Name
	}
	return names
}

func (s *Schema) spec(name string) (FieldSpec, bool) {
	i, ok := s.index[name]
	if !ok {
		return FieldSpec{}, false
	}
	return s.specs[i], true
}

func intWidth(c fields.Codec) (int, error) {
	switch u := c.(type) {
	case fields.UInt:
		return u.Bits, nil
	case fields.Enum:
		return u.Bits, nil
	default:
		return 0, fmt.Errorf("%w: not an integer codec", ErrSchema)
	}
}
