package protos

import (
	"sync"

	"firestige.xyz/strix/pkg/binding"
)

var (
	defaultOnce sync.Once
	defaultReg  *binding.Registry
)

// Default returns the shared registry with every shipped protocol and
// binding wired in. It is built once and must be treated as read-only;
// callers needing extra protocols build their own with Build.
func Default() *binding.Registry {
	defaultOnce.Do(func() { defaultReg = Build() })
	return defaultReg
}

// Build constructs a fresh registry with the shipped catalog. All
// registrations happen here, before the registry is handed out, so
// ambiguous bindings fail at startup rather than mid-dissection.
func Build() *binding.Registry {
	r := binding.NewRegistry()

	r.MustRegister(newEthernet())
	r.MustRegister(newARP())
	r.MustRegister(newIPv4())
	r.MustRegister(newIPv6())
	r.MustRegister(newHopByHop())
	r.MustRegister(newUDP())
	r.MustRegister(newTCP())
	r.MustRegister(newICMPv4())
	r.MustRegister(newIGMP())
	r.MustRegister(newICMPv6())
	r.MustRegister(newICMPv6Echo())
	r.MustRegister(newMLD())
	r.MustRegister(newMLDv2Query())
	r.MustRegister(newDNS())

	// L2 → L3
	r.MustBind(Ethernet, binding.Edge{Succ: IPv4, Discriminator: "type", Value: EtherTypeIPv4})
	r.MustBind(Ethernet, binding.Edge{Succ: ARP, Discriminator: "type", Value: EtherTypeARP})
	r.MustBind(Ethernet, binding.Edge{Succ: IPv6, Discriminator: "type", Value: EtherTypeIPv6})

	// IPv4 → L4
	r.MustBind(IPv4, binding.Edge{Succ: ICMPv4, Discriminator: "protocol", Value: IPProtoICMP})
	r.MustBind(IPv4, binding.Edge{Succ: IGMP, Discriminator: "protocol", Value: IPProtoIGMP})
	r.MustBind(IPv4, binding.Edge{Succ: TCP, Discriminator: "protocol", Value: IPProtoTCP})
	r.MustBind(IPv4, binding.Edge{Succ: UDP, Discriminator: "protocol", Value: IPProtoUDP})

	// IPv6 → extension headers and L4
	r.MustBind(IPv6, binding.Edge{Succ: HopByHop, Discriminator: "next_header", Value: IPProtoHopByHop})
	r.MustBind(IPv6, binding.Edge{Succ: ICMPv6, Discriminator: "next_header", Value: IPProtoICMPv6})
	r.MustBind(IPv6, binding.Edge{Succ: TCP, Discriminator: "next_header", Value: IPProtoTCP})
	r.MustBind(IPv6, binding.Edge{Succ: UDP, Discriminator: "next_header", Value: IPProtoUDP})
	r.MustBind(HopByHop, binding.Edge{Succ: ICMPv6, Discriminator: "next_header", Value: IPProtoICMPv6})
	r.MustBind(HopByHop, binding.Edge{Succ: TCP, Discriminator: "next_header", Value: IPProtoTCP})
	r.MustBind(HopByHop, binding.Edge{Succ: UDP, Discriminator: "next_header", Value: IPProtoUDP})

	// ICMPv6 message bodies. MLDv2 queries share type 130 with MLDv1;
	// the guard on remaining length splits them (RFC 3810 §8.1: queries
	// longer than the fixed 24-byte MLDv1 message are version 2).
	r.MustBind(ICMPv6, binding.Edge{Succ: ICMPv6Echo, Discriminator: "type", Value: ICMPv6TypeEchoRequest})
	r.MustBind(ICMPv6, binding.Edge{Succ: ICMPv6Echo, Discriminator: "type", Value: ICMPv6TypeEchoReply})
	r.MustBind(ICMPv6, binding.Edge{Succ: MLDv2Query, Discriminator: "type", Value: ICMPv6TypeMLDQuery,
		Guard: func(payload []byte) bool { return len(payload) > 23 }})
	r.MustBind(ICMPv6, binding.Edge{Succ: MLD, Discriminator: "type", Value: ICMPv6TypeMLDQuery})
	r.MustBind(ICMPv6, binding.Edge{Succ: MLD, Discriminator: "type", Value: ICMPv6TypeMLDReport})
	r.MustBind(ICMPv6, binding.Edge{Succ: MLD, Discriminator: "type", Value: ICMPv6TypeMLDDone})

	// UDP → DNS on either well-known port.
	r.MustBind(UDP, binding.Edge{Succ: DNS, Discriminator: "dst_port", Value: PortDNS})
	r.MustBind(UDP, binding.Edge{Succ: DNS, Discriminator: "src_port", Value: PortDNS})

	return r
}
