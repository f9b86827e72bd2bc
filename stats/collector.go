// Package stats exposes a dpdk.Context's running counters (spec.md §6)
// as Prometheus metrics, for hosts that scrape rather than poll
// GetStats/ResetStats directly.
package stats

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/tbarbette/dpdk-daq"
	"github.com/tbarbette/dpdk-daq/verdict"
)

var (
	hwPacketsReceivedDesc = prometheus.NewDesc(
		"dpdk_daq_hw_packets_received_total", "Frames received off the NIC, before filtering.", []string{"device"}, nil)
	packetsReceivedDesc = prometheus.NewDesc(
		"dpdk_daq_packets_received_total", "Frames delivered to the analysis callback.", []string{"device"}, nil)
	packetsFilteredDesc = prometheus.NewDesc(
		"dpdk_daq_packets_filtered_total", "Frames rejected by the installed BPF filter.", []string{"device"}, nil)
	packetsInjectedDesc = prometheus.NewDesc(
		"dpdk_daq_packets_injected_total", "Frames submitted through Inject.", []string{"device"}, nil)
	verdictsDesc = prometheus.NewDesc(
		"dpdk_daq_verdicts_total", "Raw callback verdicts, by kind.", []string{"device", "verdict"}, nil)
)

// Collector polls a *dpdk.Context's statistics on every scrape and
// reports them as Prometheus counters. It holds no state of its own,
// so it is safe to register against multiple registries or recreate
// cheaply.
type Collector struct {
	ctx    *dpdk.Context
	device string
}

// NewCollector returns a Collector for ctx, labeling every metric with
// device (typically the device string the Context was built from).
func NewCollector(ctx *dpdk.Context, device string) *Collector {
	return &Collector{ctx: ctx, device: device}
}

var _ prometheus.Collector = (*Collector)(nil)

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- hwPacketsReceivedDesc
	ch <- packetsReceivedDesc
	ch <- packetsFilteredDesc
	ch <- packetsInjectedDesc
	ch <- verdictsDesc
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	snap := c.ctx.GetStats()

	ch <- prometheus.MustNewConstMetric(hwPacketsReceivedDesc, prometheus.CounterValue, float64(snap.HwPacketsReceived), c.device)
	ch <- prometheus.MustNewConstMetric(packetsReceivedDesc, prometheus.CounterValue, float64(snap.PacketsReceived), c.device)
	ch <- prometheus.MustNewConstMetric(packetsFilteredDesc, prometheus.CounterValue, float64(snap.PacketsFiltered), c.device)
	ch <- prometheus.MustNewConstMetric(packetsInjectedDesc, prometheus.CounterValue, float64(snap.PacketsInjected), c.device)

	for v := verdict.Pass; v < verdict.Max; v++ {
		ch <- prometheus.MustNewConstMetric(verdictsDesc, prometheus.CounterValue, float64(snap.Verdicts[v]), c.device, v.String())
	}
}
