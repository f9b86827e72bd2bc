package bpfprog

import (
	"testing"

	"golang.org/x/net/bpf"
)

// packet mirrors the teacher's BPF test vector (snf/bpf_test.go): an
// Ethernet/IPv4/TCP frame with destination port 80.
var packet = []byte{
	0xff, 0xff, 0xff, 0xff, 0xff, 0xff, // dst mac
	0x0, 0x11, 0x22, 0x33, 0x44, 0x55, // src mac
	0x08, 0x0, // ether type: IPv4
	0x45, 0x0, 0x0, 0x3c, 0xa6, 0xc3, 0x40, 0x0, 0x40, 0x06, 0x3d, 0xd8, // ip header (proto=6 TCP)
	0xc0, 0xa8, 0x50, 0x2f, // src ip
	0xc0, 0xa8, 0x50, 0x2c, // dst ip
	0xaf, 0x14, // src port
	0x0, 0x50, // dst port 80
}

// ipv4Filter matches EtherType == 0x0800 (IPv4), mirroring what an
// external compiler would produce for "ip".
func ipv4Filter(t *testing.T) *Program {
	insns := []bpf.Instruction{
		bpf.LoadAbsolute{Off: 12, Size: 2},
		bpf.JumpIf{Cond: bpf.JumpEqual, Val: 0x0800, SkipFalse: 1},
		bpf.RetConstant{Val: 262144},
		bpf.RetConstant{Val: 0},
	}
	p, err := FromInstructions("ip", insns)
	if err != nil {
		t.Fatalf("FromInstructions: %v", err)
	}
	return p
}

// arpFilter matches EtherType == 0x0806 (ARP); the test packet above is
// IPv4 so this filter should reject it.
func arpFilter(t *testing.T) *Program {
	insns := []bpf.Instruction{
		bpf.LoadAbsolute{Off: 12, Size: 2},
		bpf.JumpIf{Cond: bpf.JumpEqual, Val: 0x0806, SkipFalse: 1},
		bpf.RetConstant{Val: 262144},
		bpf.RetConstant{Val: 0},
	}
	p, err := FromInstructions("arp", insns)
	if err != nil {
		t.Fatalf("FromInstructions: %v", err)
	}
	return p
}

func TestNilProgramAlwaysMatches(t *testing.T) {
	var p *Program
	if !p.Matches(packet) {
		t.Fatal("nil program should match everything")
	}
}

func TestProgramMatchesIPv4(t *testing.T) {
	p := ipv4Filter(t)
	if !p.Matches(packet) {
		t.Fatal("expected ip filter to match an IPv4 frame")
	}
	if p.Source() != "ip" {
		t.Fatalf("Source() = %q, want %q", p.Source(), "ip")
	}
}

func TestProgramRejectsNonMatchingFrame(t *testing.T) {
	p := arpFilter(t)
	if p.Matches(packet) {
		t.Fatal("expected arp filter to reject an IPv4 frame")
	}
}

type fakeCompiler struct {
	insns []bpf.Instruction
	err   error
}

func (f fakeCompiler) Compile(snaplen int, expr string) ([]bpf.Instruction, error) {
	return f.insns, f.err
}

func TestCompileUsesInjectedCompiler(t *testing.T) {
	c := fakeCompiler{insns: []bpf.Instruction{
		bpf.RetConstant{Val: 262144},
	}}
	p, err := Compile(c, 65535, "ip and tcp and port 80")
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if !p.Matches(packet) {
		t.Fatal("expected always-pass program to match")
	}
}

var ipv4FilterInsns = []bpf.Instruction{
	bpf.LoadAbsolute{Off: 12, Size: 2},
	bpf.JumpIf{Cond: bpf.JumpEqual, Val: 0x0800, SkipFalse: 1},
	bpf.RetConstant{Val: 262144},
	bpf.RetConstant{Val: 0},
}

var arpFilterInsns = []bpf.Instruction{
	bpf.LoadAbsolute{Off: 12, Size: 2},
	bpf.JumpIf{Cond: bpf.JumpEqual, Val: 0x0806, SkipFalse: 1},
	bpf.RetConstant{Val: 262144},
	bpf.RetConstant{Val: 0},
}

// BenchmarkProgramMatchesGood mirrors the teacher's BenchmarkNativeFilterGood
// (snf/bpf_test.go): repeatedly run a compiled VM program against a frame
// it accepts.
func BenchmarkProgramMatchesGood(b *testing.B) {
	p, err := FromInstructions("ip", ipv4FilterInsns)
	if err != nil {
		b.Fatalf("FromInstructions: %v", err)
	}
	for i := 0; i < b.N; i++ {
		if !p.Matches(packet) {
			b.Fatal("filter supposed to be good")
		}
	}
}

// BenchmarkProgramMatchesBad mirrors the teacher's BenchmarkNativeFilterBad.
func BenchmarkProgramMatchesBad(b *testing.B) {
	p, err := FromInstructions("arp", arpFilterInsns)
	if err != nil {
		b.Fatalf("FromInstructions: %v", err)
	}
	for i := 0; i < b.N; i++ {
		if p.Matches(packet) {
			b.Fatal("filter supposed to be bad")
		}
	}
}
