// Package icmp implements the ICMP echo packet model used by echoprobe.
//
// The package is pure: it encodes Echo Requests into caller-provided buffers,
// decodes Echo Replies and unwraps the IPv4 header a raw IPv4 socket delivers
// in front of the ICMP segment. It never touches the network.
//
// # Wire format
//
//	 0                   1                   2                   3
//	 0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1
//	+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
//	|     Type      |     Code      |          Checksum             |
//	+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
//	|           Identifier          |        Sequence Number        |
//	+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
//	|                             Payload                           |
//	+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
//
// Type codes depend on the address family: ICMPv4 uses 8 (request) and
// 0 (reply), ICMPv6 uses 128 and 129. The code is always 0.
//
// # Checksums
//
// ICMPv4 checksums cover the ICMP segment only and are verified on decode.
// ICMPv6 checksums include an IP pseudo-header; on raw ICMPv6 sockets the
// kernel fills the field on send and drops corrupt packets on receive, so
// decoding a v6 reply checks type and code only.
package icmp
