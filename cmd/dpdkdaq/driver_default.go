//go:build !dpdk

package main

import (
	"github.com/tbarbette/dpdk-daq/eal"
	"github.com/tbarbette/dpdk-daq/eal/memdrv"
)

// newDriver builds the in-memory driver used when this
// binary is built without the `dpdk` tag (no real DPDK installation
// required). Pass a nonzero portCount to pre-size it; 0 picks a
// permissive default since the fake driver has no physical ports to
// enumerate.
func newDriver(portCount int) eal.Driver {
	if portCount <= 0 {
		portCount = 8
	}
	return memdrv.New(portCount)
}
