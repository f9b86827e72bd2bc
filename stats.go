package dpdk

import "github.com/tbarbette/dpdk-daq/verdict"

// Stats holds the counters exposed by GetStats (spec.md §6).
type Stats struct {
	HwPacketsReceived uint64
	PacketsReceived   uint64
	PacketsFiltered   uint64
	Verdicts          [verdict.Max]uint64
	PacketsInjected   uint64
}
