// Package bpfprog executes compiled BPF filter programs against raw
// frame bytes. Compiling a filter expression (tcpdump syntax) into BPF
// instructions is delegated to an external collaborator — this package
// only runs an already-assembled program, the same division of labor as
// the teacher's filter package ("mimics the BPF behaviour ... since the
// BPF compiler is available in libpcap library only and such dependency
// would be an overkill").
package bpfprog

import (
	"golang.org/x/net/bpf"

	"github.com/tbarbette/dpdk-daq/daqerr"
)

// Program is an executable filter: either a compiled BPF state machine
// or a static Go matcher built by one of this package's L4 helpers
// (see l4filter.go). A nil *Program means "no filter installed" and
// every frame passes.
type Program struct {
	insns []bpf.Instruction
	vm    *bpf.VM
	match func([]byte) bool
	src   string
}

// FromInstructions assembles a Program from raw BPF instructions
// (e.g. produced by an external Compiler, or decoded off the wire).
// This is the only constructor the core acquire engine needs, since
// compiling filter source is out of scope for this module.
func FromInstructions(src string, insns []bpf.Instruction) (*Program, error) {
	vm, err := bpf.NewVM(insns)
	if err != nil {
		return nil, daqerr.New(daqerr.Error, "bpfprog.FromInstructions", "BPF state machine compilation failed: %v", err)
	}
	return &Program{insns: insns, vm: vm, src: src}, nil
}

// fromFunc builds a Program around a static Go matcher instead of a
// compiled BPF state machine, for the built-in L4 port filters (no
// external Compiler required).
func fromFunc(src string, match func([]byte) bool) *Program {
	return &Program{match: match, src: src}
}

// Source returns the filter source string the program was compiled
// from, if known (empty for programs built directly from instructions
// without a recorded source).
func (p *Program) Source() string {
	if p == nil {
		return ""
	}
	return p.src
}

// Matches reports whether the frame passes the filter. A nil Program
// always matches (no filter installed passes everything through,
// spec.md §4.4 step 2b: "If a BPF program is installed and it rejects
// the frame").
func (p *Program) Matches(frame []byte) bool {
	if p == nil {
		return true
	}
	if p.match != nil {
		return p.match(frame)
	}
	n, err := p.vm.Run(frame)
	return err == nil && n > 0
}

// Compiler turns a tcpdump-style filter expression into BPF
// instructions. This is the "external BPF compiler" named in spec.md
// §4.3/§2 Non-goals; this package defines the contract, and its only
// implementation, PcapCompiler in pcap.go, is built only under the
// `pcap` build tag. Hosts that have another one available adapt it to
// this interface.
type Compiler interface {
	// Compile returns BPF instructions equivalent to expr, linearized
	// for the given snaplen and Ethernet link type, with optimization
	// enabled (spec.md §4.3: "(snaplen, link-type = Ethernet,
	// optimize=1)").
	Compile(snaplen int, expr string) ([]bpf.Instruction, error)
}

// Compile builds a Program from source using the given Compiler.
func Compile(c Compiler, snaplen int, expr string) (*Program, error) {
	insns, err := c.Compile(snaplen, expr)
	if err != nil {
		return nil, daqerr.New(daqerr.Error, "bpfprog.Compile", "BPF state machine compilation failed: %v", err)
	}
	return FromInstructions(expr, insns)
}
