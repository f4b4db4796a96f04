package icmp

import "errors"

var (
	// ErrBufferTooSmall is returned when a buffer cannot hold an ICMP header
	// plus payload.
	ErrBufferTooSmall = errors.New("buffer too small")

	// ErrUnexpectedType is returned when a decoded message is not an Echo Reply
	// for the requested family.
	ErrUnexpectedType = errors.New("unexpected ICMP type")

	// ErrUnexpectedCode is returned when an Echo Reply carries a non-zero code.
	ErrUnexpectedCode = errors.New("unexpected ICMP code")

	// ErrChecksumMismatch is returned when the checksum over a reply is not zero.
	ErrChecksumMismatch = errors.New("checksum mismatch")

	// ErrMalformed is returned for IPv4 datagrams with an invalid header.
	ErrMalformed = errors.New("malformed IPv4 datagram")
)
