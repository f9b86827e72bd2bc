//go:build dpdk

package main

import (
	"github.com/tbarbette/dpdk-daq/eal"
	"github.com/tbarbette/dpdk-daq/eal/dpdkeal"
)

// newDriver builds the real cgo DPDK binding when this binary is
// built with `-tags dpdk`. portCount is unused here: dpdkeal.Init
// enumerates whatever ports the EAL args bind at rte_eal_init time.
func newDriver(portCount int) eal.Driver {
	return dpdkeal.New()
}
