//go:build pcap

package bpfprog

/*
#cgo LDFLAGS: -lpcap

#include <stdlib.h>
#include <pcap.h>
#include <string.h>
*/
import "C"

import (
	"errors"
	"unsafe"

	"golang.org/x/net/bpf"
)

// PcapCompiler compiles tcpdump-style filter expressions through
// libpcap's pcap_compile, the same mechanism as the teacher's
// CompileBPF in snf/bpf.go. It satisfies the Compiler interface
// declared in program.go. Building with this file requires the
// libpcap headers and library to be present (-tags pcap).
type PcapCompiler struct{}

var _ Compiler = PcapCompiler{}

// Compile implements Compiler by opening a dead pcap handle for an
// Ethernet link type at the given snaplen, compiling expr against it
// with optimization enabled, and copying the resulting BPF program out
// of C memory before the handle is closed.
func (PcapCompiler) Compile(snaplen int, expr string) ([]bpf.Instruction, error) {
	p := C.pcap_open_dead(C.DLT_EN10MB, C.int(snaplen))
	if p == nil {
		return nil, errors.New("bpfprog: unable to open a dead pcap handle")
	}
	defer C.pcap_close(p)

	cExpr := C.CString(expr)
	defer C.free(unsafe.Pointer(cExpr))

	var fp C.struct_bpf_program
	if C.pcap_compile(p, &fp, cExpr, 1, C.PCAP_NETMASK_UNKNOWN) < 0 {
		return nil, errors.New(C.GoString(C.pcap_geterr(p)))
	}
	defer C.pcap_freecode(&fp)

	raw := make([]bpf.RawInstruction, fp.bf_len)
	if fp.bf_len > 0 {
		C.memcpy(unsafe.Pointer(&raw[0]), unsafe.Pointer(fp.bf_insns),
			C.size_t(fp.bf_len)*C.sizeof_struct_bpf_insn)
	}

	insns := make([]bpf.Instruction, len(raw))
	for i, r := range raw {
		insns[i] = r
	}
	return insns, nil
}
