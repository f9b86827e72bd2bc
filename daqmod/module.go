// Package daqmod realizes the host framework's function-pointer module
// API (spec.md §6's "module descriptor") as Go data and a Go
// interface: a package-level Descriptor value plus the Module
// interface that *dpdk.Context implements for every lifecycle and
// data-plane operation. This is the Go-native reframing of the
// teacher's C struct-of-function-pointers pattern
// (`dpdk_daq_module_data` in the original source).
package daqmod

import (
	"github.com/tbarbette/dpdk-daq"
	"github.com/tbarbette/dpdk-daq/bpfprog"
)

// Module is every operation a host framework drives against an
// initialized acquisition context (spec.md §4.6, §6). Construction
// ("initialize") is a Go constructor (dpdk.New) rather than a method,
// since Go has no notion of a method that produces a fresh receiver;
// everything from SetFilter onward operates on an already-initialized
// *dpdk.Context, which satisfies this interface.
//
// The optional hooks named in spec.md §6 (modify_flow, hup_prep,
// hup_apply, hup_post, dp_add_dc) are intentionally absent, matching
// the Non-goals (no flow-modification hook, no hot-reconfiguration).
type Module interface {
	SetFilter(prog *bpfprog.Program) error
	Start() error
	Acquire(cnt int, cb dpdk.AnalysisFunc, meta dpdk.MetaFunc, user interface{}) (int, error)
	Inject(hdr *dpdk.PacketHeader, data []byte, reverse bool) error
	Breakloop()
	Stop() error
	Shutdown() error
	CheckStatus() dpdk.State
	GetStats() dpdk.Stats
	ResetStats()
	GetSnaplen() int
	GetCapabilities() uint32
	GetDatalinkType() int
	GetErrbuf() string
	SetErrbuf(string)
	GetDeviceIndex(device string) (int, error)
}

var _ Module = (*dpdk.Context)(nil)

// APIVersion mirrors the host framework's module API contract version
// a loader checks before accepting a module.
const APIVersion = 4

// Version is this module's own version number (spec.md §6: "module
// version = 3").
const Version = 3

// Name is the module's registered name.
const Name = "dpdk"

// Type bits for Descriptor.Type (spec.md §6).
const (
	TypeIntfCapable = 1 << iota
	TypeInlineCapable
	TypeMultiInstance
)

// Descriptor is the constant record a host framework inspects to
// learn what this module is and can do, the data half of the
// teacher's function-pointer struct (the behavior half is the Module
// interface above).
type Descriptor struct {
	APIVersion    int
	ModuleVersion int
	Name          string
	Type          uint32
}

// ModuleDescriptor is this module's fixed descriptor value.
var ModuleDescriptor = Descriptor{
	APIVersion:    APIVersion,
	ModuleVersion: Version,
	Name:          Name,
	Type:          TypeIntfCapable | TypeInlineCapable | TypeMultiInstance,
}
