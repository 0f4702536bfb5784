package capture

import (
	"fmt"

	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"
	"golang.org/x/net/bpf"
)

// CompileFilter compiles a textual BPF expression for Ethernet frames
// into raw instructions usable outside of a pcap handle (AF_PACKET
// sockets, userspace matching).
func CompileFilter(filter string, snapLen int) ([]bpf.RawInstruction, error) {
	pcapBpf, err := pcap.CompileBPFFilter(layers.LinkTypeEthernet, snapLen, filter)
	if err != nil {
		return nil, fmt.Errorf("%w: compile %q: %v", ErrWire, filter, err)
	}

	rawBpf := make([]bpf.RawInstruction, len(pcapBpf))
	for i, ins := range pcapBpf {
		rawBpf[i] = bpf.RawInstruction{Op: ins.Code, Jt: ins.Jt, Jf: ins.Jf, K: ins.K}
	}
	return rawBpf, nil
}

// Matcher runs a compiled filter over raw Ethernet frames in
// userspace, for paths that read frames from stored captures rather
// than a live handle (where the kernel applies the filter).
type Matcher struct {
	vm *bpf.VM
}

// NewMatcher compiles expr into a userspace BPF virtual machine.
func NewMatcher(expr string, snapLen int) (*Matcher, error) {
	raw, err := CompileFilter(expr, snapLen)
	if err != nil {
		return nil, err
	}
	prog, allDecoded := bpf.Disassemble(raw)
	if !allDecoded {
		return nil, fmt.Errorf("%w: filter %q compiled to undecodable instructions", ErrWire, expr)
	}
	vm, err := bpf.NewVM(prog)
	if err != nil {
		return nil, fmt.Errorf("%w: filter %q: %v", ErrWire, expr, err)
	}
	return &Matcher{vm: vm}, nil
}

// Match reports whether the frame passes the filter.
func (m *Matcher) Match(frame []byte) bool {
	n, err := m.vm.Run(frame)
	return err == nil && n > 0
}
