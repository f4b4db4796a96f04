package probe

import (
	"net/netip"
	"time"

	"github.com/postalsys/echoprobe/internal/icmp"
)

// Socket is a raw ICMP socket owned by a single probe.
//
// Timeouts are socket options applied to subsequent calls. A send or receive
// that exceeds its timeout returns an error matching os.ErrDeadlineExceeded.
// On IPv4 sockets RecvFrom returns whole IP datagrams; on IPv6 sockets it
// returns the ICMPv6 message only.
type Socket interface {
	SetTTL(ttl int) error
	SetWriteTimeout(d time.Duration) error
	SetReadTimeout(d time.Duration) error
	SendTo(b []byte, dst netip.Addr) error
	RecvFrom(b []byte) (int, netip.Addr, error)
	Close() error
}

// SocketFactory opens a raw socket for the given family.
type SocketFactory func(f icmp.Family) (Socket, error)

// OpenRawSocket opens a privileged raw ICMP socket for f.
func OpenRawSocket(f icmp.Family) (Socket, error) {
	return openRawSocket(f)
}
