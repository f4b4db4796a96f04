package icmp

import (
	"net/netip"

	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"
)

// IANA protocol numbers.
const (
	ProtocolICMP   = 1
	ProtocolICMPv6 = 58
)

// Family selects the ICMP flavour a packet is encoded or decoded for.
type Family uint8

const (
	// FamilyV4 is ICMP over IPv4.
	FamilyV4 Family = 4
	// FamilyV6 is ICMPv6.
	FamilyV6 Family = 6
)

// FamilyOf returns the family used to probe addr.
// IPv4-mapped IPv6 addresses are probed over IPv4.
func FamilyOf(addr netip.Addr) Family {
	if addr.Is4() || addr.Is4In6() {
		return FamilyV4
	}
	return FamilyV6
}

// RequestType returns the Echo Request type code.
func (f Family) RequestType() uint8 {
	if f == FamilyV6 {
		return uint8(ipv6.ICMPTypeEchoRequest)
	}
	return uint8(ipv4.ICMPTypeEcho)
}

// ReplyType returns the Echo Reply type code.
func (f Family) ReplyType() uint8 {
	if f == FamilyV6 {
		return uint8(ipv6.ICMPTypeEchoReply)
	}
	return uint8(ipv4.ICMPTypeEchoReply)
}

// Protocol returns the IANA protocol number carrying this family.
func (f Family) Protocol() int {
	if f == FamilyV6 {
		return ProtocolICMPv6
	}
	return ProtocolICMP
}

// verifiesChecksum reports whether replies are checksummed in user space.
func (f Family) verifiesChecksum() bool {
	return f == FamilyV4
}

// String returns "icmp4" or "icmp6".
func (f Family) String() string {
	switch f {
	case FamilyV4:
		return "icmp4"
	case FamilyV6:
		return "icmp6"
	default:
		return "unknown"
	}
}
