package dpdk

import (
	"golang.org/x/net/bpf"

	"github.com/tbarbette/dpdk-daq/bpfprog"
)

// bpfAcceptAllProgram builds a trivial always-match BPF program, for
// tests that need a non-nil filter installed without caring about its
// semantics.
func bpfAcceptAllProgram() (*bpfprog.Program, error) {
	return bpfprog.FromInstructions("all", []bpf.Instruction{
		bpf.RetConstant{Val: 262144},
	})
}

// udpFrame and tcpFrame mirror the teacher's BPF test vector shape
// (snf/bpf_test.go): minimal Ethernet/IPv4 frames distinguished only by
// IP protocol number, enough for a "udp"-style filter to tell apart.
func ipFrame(proto byte) []byte {
	frame := []byte{
		0xff, 0xff, 0xff, 0xff, 0xff, 0xff, // dst mac
		0x0, 0x11, 0x22, 0x33, 0x44, 0x55, // src mac
		0x08, 0x0, // ether type: IPv4
		0x45, 0x0, 0x0, 0x3c, 0xa6, 0xc3, 0x40, 0x0, 0x40, proto, 0x3d, 0xd8,
		0xc0, 0xa8, 0x50, 0x2f,
		0xc0, 0xa8, 0x50, 0x2c,
		0xaf, 0x14,
		0x0, 0x50,
	}
	return frame
}

func udpFrame() []byte { return ipFrame(17) }
func tcpFrame() []byte { return ipFrame(6) }

// udpOnlyFilter matches IP protocol == UDP (17) at the fixed offset
// used by ipFrame above, mirroring what an external compiler would
// produce for "udp".
func udpOnlyFilter() (*bpfprog.Program, error) {
	const protoOffset = 23
	insns := []bpf.Instruction{
		bpf.LoadAbsolute{Off: protoOffset, Size: 1},
		bpf.JumpIf{Cond: bpf.JumpEqual, Val: 17, SkipFalse: 1},
		bpf.RetConstant{Val: 262144},
		bpf.RetConstant{Val: 0},
	}
	return bpfprog.FromInstructions("udp", insns)
}
