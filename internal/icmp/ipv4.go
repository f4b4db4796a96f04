package icmp

import (
	"encoding/binary"
	"fmt"
	"net/netip"

	"golang.org/x/net/ipv4"
)

// IPv4Packet is a view over a datagram received on a raw IPv4 socket.
// Data aliases the input buffer; the view must not outlive it.
type IPv4Packet struct {
	HeaderLen int // header length in bytes, from the IHL field
	TotalLen  int // total length field as sent on the wire
	TTL       uint8
	Protocol  uint8
	Src       netip.Addr
	Dst       netip.Addr
	Data      []byte // payload after the header, normally an ICMP segment
}

// DecodeIPv4Packet locates the end of the IPv4 header in b and returns a view
// whose Data starts right after it. Nothing is copied.
//
// TotalLen is informational. Some BSD kernels hand raw datagrams up with that
// field in host byte order, so Data is not clamped by it.
func DecodeIPv4Packet(b []byte) (IPv4Packet, error) {
	if len(b) == 0 {
		return IPv4Packet{}, fmt.Errorf("%w: empty datagram", ErrMalformed)
	}
	if v := b[0] >> 4; v != ipv4.Version {
		return IPv4Packet{}, fmt.Errorf("%w: version %d", ErrMalformed, v)
	}

	hlen := int(b[0]&0x0f) << 2
	if hlen < ipv4.HeaderLen {
		return IPv4Packet{}, fmt.Errorf("%w: header length %d below minimum %d", ErrMalformed, hlen, ipv4.HeaderLen)
	}
	if len(b) < hlen {
		return IPv4Packet{}, fmt.Errorf("%w: header length %d exceeds datagram size %d", ErrMalformed, hlen, len(b))
	}

	return IPv4Packet{
		HeaderLen: hlen,
		TotalLen:  int(binary.BigEndian.Uint16(b[2:4])),
		TTL:       b[8],
		Protocol:  b[9],
		Src:       netip.AddrFrom4([4]byte(b[12:16])),
		Dst:       netip.AddrFrom4([4]byte(b[16:20])),
		Data:      b[hlen:],
	}, nil
}
