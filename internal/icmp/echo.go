package icmp

import (
	"encoding/binary"
	"fmt"
)

const (
	// HeaderSize is the size of the ICMP echo header in bytes.
	HeaderSize = 8

	// TokenSize is the size of the fixed probe payload in bytes.
	TokenSize = 24
)

// Token is the opaque payload echoed back by the target.
type Token [TokenSize]byte

// EchoRequest is an outbound ICMP Echo Request.
//
// Payload is borrowed: Encode copies it into the output buffer and never
// retains it.
type EchoRequest struct {
	ID      uint16
	Seq     uint16
	Payload []byte
}

// Len returns the encoded size of the request.
func (r *EchoRequest) Len() int {
	return HeaderSize + len(r.Payload)
}

// Encode writes the request for family f into out and returns the number of
// bytes written. out must hold at least r.Len() bytes.
func (r *EchoRequest) Encode(f Family, out []byte) (int, error) {
	n := r.Len()
	if len(out) < n {
		return 0, fmt.Errorf("%w: need %d bytes, have %d", ErrBufferTooSmall, n, len(out))
	}

	b := out[:n]
	b[0] = f.RequestType()
	b[1] = 0
	b[2], b[3] = 0, 0
	binary.BigEndian.PutUint16(b[4:], r.ID)
	binary.BigEndian.PutUint16(b[6:], r.Seq)
	copy(b[HeaderSize:], r.Payload)

	binary.BigEndian.PutUint16(b[2:], Checksum(b))
	return n, nil
}

// Marshal encodes the request for family f into a new buffer.
func (r *EchoRequest) Marshal(f Family) []byte {
	b := make([]byte, r.Len())
	// Cannot fail: b is sized exactly.
	_, _ = r.Encode(f, b)
	return b
}

// EchoReply is a decoded ICMP Echo Reply.
//
// Payload aliases the buffer passed to DecodeEchoReply and is only valid for
// as long as that buffer is.
type EchoReply struct {
	ID      uint16
	Seq     uint16
	Payload []byte
}

// Token interprets the first TokenSize payload bytes as a Token.
// It reports false when the payload is shorter than a token.
func (r *EchoReply) Token() (Token, bool) {
	var t Token
	if len(r.Payload) < TokenSize {
		return t, false
	}
	copy(t[:], r.Payload)
	return t, true
}

// DecodeEchoReply parses b as an Echo Reply of family f.
//
// Validation stops at the first failure: size, then type, then code, then
// (IPv4 only) checksum. Correlating the reply with a request is left to the
// caller.
func DecodeEchoReply(f Family, b []byte) (EchoReply, error) {
	if len(b) < HeaderSize {
		return EchoReply{}, fmt.Errorf("%w: ICMP segment is %d bytes, header needs %d", ErrBufferTooSmall, len(b), HeaderSize)
	}

	if want := f.ReplyType(); b[0] != want {
		return EchoReply{}, fmt.Errorf("%w: got %d, want %d", ErrUnexpectedType, b[0], want)
	}
	if b[1] != 0 {
		return EchoReply{}, fmt.Errorf("%w: %d", ErrUnexpectedCode, b[1])
	}

	if f.verifiesChecksum() {
		if sum := Checksum(b); sum != 0 {
			return EchoReply{}, fmt.Errorf("%w: residue 0x%04x", ErrChecksumMismatch, sum)
		}
	}

	return EchoReply{
		ID:      binary.BigEndian.Uint16(b[4:]),
		Seq:     binary.BigEndian.Uint16(b[6:]),
		Payload: b[HeaderSize:],
	}, nil
}
