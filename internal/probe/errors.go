package probe

import (
	"errors"
	"fmt"
	"net/netip"
	"os"
	"strings"

	"github.com/postalsys/echoprobe/internal/icmp"
)

var (
	// ErrTransport wraps socket creation, option, send and receive failures.
	ErrTransport = errors.New("transport error")

	// ErrTimeout is returned when no matching reply arrives before the deadline.
	ErrTimeout = errors.New("timed out waiting for echo reply")

	// ErrDecode wraps every failure to decode a received datagram.
	ErrDecode = errors.New("invalid echo reply")

	// ErrReplyMismatch is returned when a reply with our identifier and
	// sequence carries a different payload.
	ErrReplyMismatch = errors.New("echo reply does not match request")

	// ErrInternal signals a broken invariant, such as an encode failure on
	// a buffer the prober sized itself.
	ErrInternal = errors.New("internal error")

	// ErrUnsupported is returned on platforms without raw socket support.
	ErrUnsupported = errors.New("raw ICMP sockets are not supported on this platform")
)

// ProbeError describes a failed probe.
type ProbeError struct {
	Op   string // socket, encode, setsockopt, send, recv, decode, correlate
	Addr netip.Addr
	Err  error
}

func (e *ProbeError) Error() string {
	return fmt.Sprintf("ping %s: %s: %v", e.Addr, e.Op, e.Err)
}

func (e *ProbeError) Unwrap() error {
	return e.Err
}

// Outcome classifies a probe result for metrics labels.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrDecode):
		return "decode"
	case errors.Is(err, ErrReplyMismatch):
		return "mismatch"
	case errors.Is(err, ErrInternal):
		return "internal"
	default:
		return "transport"
	}
}

// decodeReason labels a decode failure for metrics.
func decodeReason(err error) string {
	switch {
	case errors.Is(err, icmp.ErrMalformed):
		return "malformed"
	case errors.Is(err, icmp.ErrBufferTooSmall):
		return "too_small"
	case errors.Is(err, icmp.ErrChecksumMismatch):
		return "checksum"
	case errors.Is(err, icmp.ErrUnexpectedType), errors.Is(err, icmp.ErrUnexpectedCode):
		return "not_reply"
	default:
		return "other"
	}
}

// Describe returns a human-readable explanation of a probe error.
func Describe(err error) string {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, os.ErrPermission):
		return "Permission denied - raw ICMP sockets need root or CAP_NET_RAW"
	case errors.Is(err, ErrUnsupported):
		return "Raw ICMP sockets are not available on this platform"
	case errors.Is(err, ErrTimeout):
		return "No echo reply before the timeout - host down or ICMP filtered"
	case errors.Is(err, icmp.ErrChecksumMismatch):
		return "Received a corrupted echo reply (checksum mismatch)"
	case errors.Is(err, icmp.ErrMalformed):
		return "Received a malformed IPv4 datagram"
	case errors.Is(err, ErrDecode):
		return "Received an invalid echo reply"
	case errors.Is(err, ErrReplyMismatch):
		return "Echo reply payload differs from the request"
	}

	errStr := err.Error()
	if strings.Contains(errStr, "network is unreachable") {
		return "Network unreachable"
	}
	if strings.Contains(errStr, "no route to host") {
		return "No route to host"
	}

	return errStr
}
