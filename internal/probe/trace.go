package probe

import (
	"fmt"
	"strings"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"

	"github.com/postalsys/echoprobe/internal/icmp"
)

// dissect renders a received datagram as a one-line layer summary for debug
// logs, e.g. "IPv4 10.0.0.1>10.0.0.2 ttl=64 / ICMPv4 EchoReply id=3 seq=5".
func dissect(f icmp.Family, b []byte) string {
	first := layers.LayerTypeIPv4
	if f == icmp.FamilyV6 {
		first = layers.LayerTypeICMPv6
	}

	packet := gopacket.NewPacket(b, first, gopacket.DecodeOptions{Lazy: true, NoCopy: true})

	var parts []string
	for _, layer := range packet.Layers() {
		switch l := layer.(type) {
		case *layers.IPv4:
			parts = append(parts, fmt.Sprintf("IPv4 %s>%s ttl=%d", l.SrcIP, l.DstIP, l.TTL))
		case *layers.ICMPv4:
			parts = append(parts, fmt.Sprintf("ICMPv4 %s id=%d seq=%d", l.TypeCode, l.Id, l.Seq))
		case *layers.ICMPv6:
			parts = append(parts, fmt.Sprintf("ICMPv6 %s", l.TypeCode))
		case *layers.ICMPv6Echo:
			parts = append(parts, fmt.Sprintf("id=%d seq=%d", l.Identifier, l.SeqNumber))
		case *gopacket.Payload:
			parts = append(parts, fmt.Sprintf("payload %dB", len(*l)))
		default:
			parts = append(parts, layer.LayerType().String())
		}
	}
	if errLayer := packet.ErrorLayer(); errLayer != nil {
		parts = append(parts, "error: "+errLayer.Error().Error())
	}
	if len(parts) == 0 {
		return fmt.Sprintf("%d undecodable bytes", len(b))
	}
	return strings.Join(parts, " / ")
}
