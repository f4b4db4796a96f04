package icmp

// Checksum computes the Internet checksum (RFC 1071) of b.
//
// 16-bit big-endian words are summed, an odd trailing byte is padded with
// zero, carries are folded back into the low 16 bits and the result is
// complemented. Recomputing the checksum over a segment that already carries
// a correct checksum yields 0.
func Checksum(b []byte) uint16 {
	var sum uint32
	for i := 0; i+1 < len(b); i += 2 {
		sum += uint32(b[i])<<8 | uint32(b[i+1])
	}
	if len(b)%2 == 1 {
		sum += uint32(b[len(b)-1]) << 8
	}
	for sum>>16 != 0 {
		sum = (sum & 0xffff) + (sum >> 16)
	}
	return ^uint16(sum)
}
