package bpfprog

import (
	"encoding/binary"
	"fmt"
)

// Built-in static L4 port filters, for hosts that want to filter on a
// fixed TCP/UDP port without wiring an external BPF Compiler. These
// peel Ethernet, an arbitrary run of VLAN tags, and IPv4 by hand
// instead of running a BPF state machine, so they carry no dependency
// on golang.org/x/net/bpf at all.

const (
	ethernetHdrLen = 14
	vlanHdrLen     = 4
)

const (
	ipv4HdrLen = 20
	tcpHdrLen  = 20
	udpHdrLen  = 8
)

const (
	etherTypeIPv4 = 0x0800
	etherTypeVlan = 0x8100
	etherTypeIPv6 = 0x86dd
)

const (
	protoTCP = 6
	protoUDP = 17
)

func peelEthernet(p []byte) (offset int, ok bool) {
	return ethernetHdrLen, len(p) >= ethernetHdrLen
}

func etherType(hdr []byte) uint16 {
	return binary.BigEndian.Uint16(hdr[len(hdr)-2:])
}

func peelVlan(p []byte) (offset int, ok bool) {
	return vlanHdrLen, len(p) >= vlanHdrLen
}

func peelIPv4(p []byte) (offset int, ok bool) {
	if len(p) < ipv4HdrLen {
		return 0, false
	}
	ver, hlen := int(p[0]&0xf0)>>4, int(p[0]&0xf)<<2
	if ver != 4 || hlen < ipv4HdrLen {
		return 0, false
	}
	return hlen, len(p) >= int(binary.BigEndian.Uint16(p[2:4]))
}

func ipv4Proto(p []byte) byte {
	return p[9]
}

func peelTCP(p []byte) (offset int, ok bool) {
	if len(p) < tcpHdrLen {
		return 0, false
	}
	offset = int(p[12]&0xf0) >> 2
	return offset, len(p) >= offset
}

func tcpPorts(p []byte) (src, dst uint16) {
	return binary.BigEndian.Uint16(p[0:2]), binary.BigEndian.Uint16(p[2:4])
}

func peelUDP(p []byte) (offset int, ok bool) {
	if len(p) < udpHdrLen {
		return 0, false
	}
	total := int(binary.BigEndian.Uint16(p[4:6]))
	return udpHdrLen, len(p) >= total && total >= udpHdrLen
}

func udpPorts(p []byte) (src, dst uint16) {
	return binary.BigEndian.Uint16(p[0:2]), binary.BigEndian.Uint16(p[2:4])
}

// peelToL4 walks Ethernet, any number of stacked VLAN tags, and IPv4,
// returning the byte offset of the L4 payload and the IP protocol
// number. ok is false if the frame is short, malformed, not IPv4, or
// the L4 header itself doesn't fit.
func peelToL4(p []byte) (l4Offset int, proto byte, ok bool) {
	offset, ok := peelEthernet(p)
	if !ok {
		return 0, 0, false
	}
	hdr, rest := p[:offset], p[offset:]
	et := etherType(hdr)

	for et == etherTypeVlan {
		offset, ok = peelVlan(rest)
		if !ok {
			return 0, 0, false
		}
		hdr, rest = rest[:offset], rest[offset:]
		et = etherType(hdr)
	}

	if et != etherTypeIPv4 {
		return 0, 0, false
	}
	offset, ok = peelIPv4(rest)
	if !ok {
		return 0, 0, false
	}
	ipHdr := rest[:offset]
	return len(p) - len(rest) + offset, ipv4Proto(ipHdr), true
}

func tcpPortMatch(port uint16) func([]byte) bool {
	return func(p []byte) bool {
		l4, proto, ok := peelToL4(p)
		if !ok || proto != protoTCP || l4 > len(p) {
			return false
		}
		if _, ok := peelTCP(p[l4:]); !ok {
			return false
		}
		src, dst := tcpPorts(p[l4:])
		return src == port || dst == port
	}
}

func udpPortMatch(port uint16) func([]byte) bool {
	return func(p []byte) bool {
		l4, proto, ok := peelToL4(p)
		if !ok || proto != protoUDP || l4 > len(p) {
			return false
		}
		if _, ok := peelUDP(p[l4:]); !ok {
			return false
		}
		src, dst := udpPorts(p[l4:])
		return src == port || dst == port
	}
}

// TCPPort returns a Program that matches Ethernet/IPv4 frames whose
// TCP source or destination port equals port, without going through a
// Compiler.
func TCPPort(port uint16) *Program {
	return fromFunc(fmt.Sprintf("tcp port %d", port), tcpPortMatch(port))
}

// UDPPort returns a Program that matches Ethernet/IPv4 frames whose
// UDP source or destination port equals port, without going through a
// Compiler.
func UDPPort(port uint16) *Program {
	return fromFunc(fmt.Sprintf("udp port %d", port), udpPortMatch(port))
}
