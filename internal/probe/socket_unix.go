//go:build unix

package probe

import (
	"errors"
	"fmt"
	"net"
	"net/netip"
	"os"
	"strconv"
	"time"

	"golang.org/x/sys/unix"

	"github.com/postalsys/echoprobe/internal/icmp"
)

// rawSocket is a blocking SOCK_RAW socket driven directly through syscalls so
// that IPv4 reads keep the IP header.
type rawSocket struct {
	fd     int
	family icmp.Family
}

func openRawSocket(f icmp.Family) (Socket, error) {
	domain, proto := unix.AF_INET, unix.IPPROTO_ICMP
	if f == icmp.FamilyV6 {
		domain, proto = unix.AF_INET6, unix.IPPROTO_ICMPV6
	}

	fd, err := unix.Socket(domain, unix.SOCK_RAW, proto)
	if err != nil {
		return nil, os.NewSyscallError("socket", err)
	}
	unix.CloseOnExec(fd)

	return &rawSocket{fd: fd, family: f}, nil
}

func (s *rawSocket) SetTTL(ttl int) error {
	var err error
	if s.family == icmp.FamilyV6 {
		err = unix.SetsockoptInt(s.fd, unix.IPPROTO_IPV6, unix.IPV6_UNICAST_HOPS, ttl)
	} else {
		err = unix.SetsockoptInt(s.fd, unix.IPPROTO_IP, unix.IP_TTL, ttl)
	}
	return os.NewSyscallError("setsockopt", err)
}

func (s *rawSocket) SetWriteTimeout(d time.Duration) error {
	return s.setTimeout(unix.SO_SNDTIMEO, d)
}

func (s *rawSocket) SetReadTimeout(d time.Duration) error {
	return s.setTimeout(unix.SO_RCVTIMEO, d)
}

func (s *rawSocket) setTimeout(opt int, d time.Duration) error {
	// A zero timeval disables the timeout entirely.
	if d < time.Microsecond {
		d = time.Microsecond
	}
	tv := unix.NsecToTimeval(d.Nanoseconds())
	return os.NewSyscallError("setsockopt", unix.SetsockoptTimeval(s.fd, unix.SOL_SOCKET, opt, &tv))
}

func (s *rawSocket) SendTo(b []byte, dst netip.Addr) error {
	sa, err := s.sockaddr(dst)
	if err != nil {
		return err
	}

	for {
		err = unix.Sendto(s.fd, b, 0, sa)
		if err != unix.EINTR {
			break
		}
	}
	return wrapIOError("sendto", err)
}

func (s *rawSocket) RecvFrom(b []byte) (int, netip.Addr, error) {
	for {
		n, from, err := unix.Recvfrom(s.fd, b, 0)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return 0, netip.Addr{}, wrapIOError("recvfrom", err)
		}
		return n, addrFromSockaddr(from), nil
	}
}

func (s *rawSocket) Close() error {
	return os.NewSyscallError("close", unix.Close(s.fd))
}

func (s *rawSocket) sockaddr(dst netip.Addr) (unix.Sockaddr, error) {
	if s.family == icmp.FamilyV4 {
		dst = dst.Unmap()
		if !dst.Is4() {
			return nil, fmt.Errorf("address %s is not IPv4", dst)
		}
		return &unix.SockaddrInet4{Addr: dst.As4()}, nil
	}

	sa := &unix.SockaddrInet6{Addr: dst.As16()}
	if zone := dst.Zone(); zone != "" {
		idx, err := zoneIndex(zone)
		if err != nil {
			return nil, err
		}
		sa.ZoneId = uint32(idx)
	}
	return sa, nil
}

func zoneIndex(zone string) (int, error) {
	if idx, err := strconv.Atoi(zone); err == nil {
		return idx, nil
	}
	ifi, err := net.InterfaceByName(zone)
	if err != nil {
		return 0, fmt.Errorf("resolve zone %q: %w", zone, err)
	}
	return ifi.Index, nil
}

func addrFromSockaddr(sa unix.Sockaddr) netip.Addr {
	switch sa := sa.(type) {
	case *unix.SockaddrInet4:
		return netip.AddrFrom4(sa.Addr)
	case *unix.SockaddrInet6:
		return netip.AddrFrom16(sa.Addr)
	default:
		return netip.Addr{}
	}
}

// wrapIOError maps socket timeout errnos onto os.ErrDeadlineExceeded.
func wrapIOError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EWOULDBLOCK) || errors.Is(err, unix.ETIMEDOUT) {
		return fmt.Errorf("%s: %w", op, os.ErrDeadlineExceeded)
	}
	return os.NewSyscallError(op, err)
}
