package stats

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/tbarbette/dpdk-daq"
	"github.com/tbarbette/dpdk-daq/devstring"
	"github.com/tbarbette/dpdk-daq/eal/memdrv"
	"github.com/tbarbette/dpdk-daq/verdict"
)

func TestCollectorReportsContextStats(t *testing.T) {
	driver := memdrv.New(1)
	ctx, err := dpdk.New(driver, nil, dpdk.WithDevice("dpdk0"), dpdk.WithMode(devstring.Passive), dpdk.WithDpdkArgs("dpdkdaq"))
	if err != nil {
		t.Fatal(err)
	}
	if err := ctx.Start(); err != nil {
		t.Fatal(err)
	}
	driver.Feed(0, 0, []byte("frame1"), []byte("frame2"))
	if _, err := ctx.Acquire(2, func(interface{}, *dpdk.PacketHeader, []byte) verdict.Verdict {
		return verdict.Pass
	}, nil, nil); err != nil {
		t.Fatal(err)
	}

	reg := prometheus.NewRegistry()
	coll := NewCollector(ctx, "dpdk0")
	if err := reg.Register(coll); err != nil {
		t.Fatal(err)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatal(err)
	}

	var received *dto.MetricFamily
	for _, f := range families {
		if f.GetName() == "dpdk_daq_packets_received_total" {
			received = f
		}
	}
	if received == nil {
		t.Fatal("packets_received metric not found")
	}
	if got := received.Metric[0].GetCounter().GetValue(); got != 2 {
		t.Fatalf("packets_received = %v, want 2", got)
	}
}
