package binding

import (
	"fmt"
	"strings"

	"firestige.xyz/strix/pkg/schema"
)

// BindingError reports an attempted composition with no (or a
// mismatching) registered edge. It names both protocols and carries a
// constructive hint rather than silently defaulting.
type BindingError struct {
	Pred string
	Succ string
	Hint string
}

func (e *BindingError) Error() string {
	return fmt.Sprintf("strix: no binding %s -> %s: %s", e.Pred, e.Succ, e.Hint)
}

// Packet is an ordered sequence of headers, outermost first, plus an
// optional opaque trailing payload.
type Packet struct {
	reg     *Registry
	layers  []*schema.Header
	payload []byte
}

// NewPacket creates an empty packet composed against r's bindings.
func (r *Registry) NewPacket() *Packet { return &Packet{reg: r} }

// Layers returns the headers outermost-to-innermost.
func (p *Packet) Layers() []*schema.Header { return p.layers }

// Layer returns the first header of the named protocol, nil if none.
func (p *Packet) Layer(proto string) *schema.Header {
	for _, h := range p.layers {
		if h.Proto() == proto {
			return h
		}
	}
	return nil
}

// Payload returns the unstructured trailing bytes.
func (p *Packet) Payload() []byte { return p.payload }

// SetPayload sets the unstructured trailing bytes.
func (p *Packet) SetPayload(b []byte) { p.payload = b }

// Add appends h as the innermost layer, enforcing the binding graph.
//
// If the caller has not set the predecessor's discriminator, Add
// auto-populates it from the bare (guardless) edge to h's protocol.
// An explicitly set discriminator is always validated: a value no edge
// to h's protocol accepts is a BindingError, never silently kept.
func (p *Packet) Add(h *schema.Header) error {
	if len(p.layers) == 0 {
		p.layers = append(p.layers, h)
		return nil
	}
	last := p.layers[len(p.layers)-1]
	edges := p.reg.edgesTo(last.Proto(), h.Proto())
	if len(edges) == 0 {
		return &BindingError{
			Pred: last.Proto(),
			Succ: h.Proto(),
			Hint: fmt.Sprintf("register one with Bind(%q, Edge{Succ: %q, ...})",
				last.Proto(), h.Proto()),
		}
	}
	anyExplicit := false
	for _, e := range edges {
		if !last.Explicit(e.Discriminator) {
			continue
		}
		anyExplicit = true
		if last.Uint(e.Discriminator) == e.Value {
			p.layers = append(p.layers, h)
			return nil
		}
	}
	if anyExplicit {
		disc := edges[0].Discriminator
		return &BindingError{
			Pred: last.Proto(),
			Succ: h.Proto(),
			Hint: fmt.Sprintf("%s.%s=%d matches no registered edge to %s",
				last.Proto(), disc, last.Uint(disc), h.Proto()),
		}
	}
	// Prefer the guardless edge as the default discriminator value.
	def := edges[0]
	for _, e := range edges {
		if e.Guard == nil {
			def = e
			break
		}
	}
	last.SetUint(def.Discriminator, def.Value)
	p.layers = append(p.layers, h)
	return nil
}

// Encode serializes all layers in order followed by the payload.
func (p *Packet) Encode() ([]byte, error) {
	var out []byte
	for _, h := range p.layers {
		b, err := h.Encode()
		if err != nil {
			return nil, err
		}
		out = append(out, b...)
	}
	return append(out, p.payload...), nil
}

// String renders every layer and the payload length.
func (p *Packet) String() string {
	var b strings.Builder
	for _, h := range p.layers {
		b.WriteString(h.Format())
	}
	if len(p.payload) > 0 {
		fmt.Fprintf(&b, "payload: %d bytes\n", len(p.payload))
	}
	return b.String()
}
