package dpdk

import (
	"testing"

	"github.com/tbarbette/dpdk-daq/devstring"
)

func TestPacketSourceZeroCopyReadPacketData(t *testing.T) {
	ctx, driver := newTestContext(t, 1, "dpdk0", devstring.Passive)
	if err := ctx.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	frame := []byte{0xde, 0xad, 0xbe, 0xef, 0x01, 0x02}
	driver.Feed(ctx.instances[0].Port.ID, ctx.instances[0].Queue, frame)

	ps, err := ctx.PacketSource(0)
	if err != nil {
		t.Fatalf("PacketSource: %v", err)
	}

	data, ci, err := ps.ZeroCopyReadPacketData()
	if err != nil {
		t.Fatalf("ZeroCopyReadPacketData: %v", err)
	}
	if string(data) != string(frame) {
		t.Fatalf("data = %x, want %x", data, frame)
	}
	if ci.CaptureLength != len(frame) || ci.Length != len(frame) {
		t.Fatalf("CaptureInfo lengths = %d/%d, want %d", ci.CaptureLength, ci.Length, len(frame))
	}
	if ci.InterfaceIndex != ctx.instances[0].Index {
		t.Fatalf("InterfaceIndex = %d, want %d", ci.InterfaceIndex, ctx.instances[0].Index)
	}
}

func TestPacketSourceReadPacketDataCopies(t *testing.T) {
	ctx, driver := newTestContext(t, 1, "dpdk0", devstring.Passive)
	if err := ctx.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	frame := []byte{1, 2, 3, 4}
	driver.Feed(ctx.instances[0].Port.ID, ctx.instances[0].Queue, frame)

	ps, err := ctx.PacketSource(0)
	if err != nil {
		t.Fatalf("PacketSource: %v", err)
	}

	data, _, err := ps.ReadPacketData()
	if err != nil {
		t.Fatalf("ReadPacketData: %v", err)
	}
	data[0] = 0xff

	driver.Feed(ctx.instances[0].Port.ID, ctx.instances[0].Queue, []byte{5, 6, 7, 8})
	data2, _, err := ps.ReadPacketData()
	if err != nil {
		t.Fatalf("second ReadPacketData: %v", err)
	}
	if data2[0] != 5 {
		t.Fatalf("mutating a prior ReadPacketData result affected the next read: got %x", data2)
	}
}

func TestPacketSourceReleasesPreviousBuffer(t *testing.T) {
	ctx, driver := newTestContext(t, 1, "dpdk0", devstring.Passive)
	if err := ctx.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	driver.Feed(ctx.instances[0].Port.ID, ctx.instances[0].Queue, []byte{1}, []byte{2}, []byte{3})

	ps, err := ctx.PacketSource(0)
	if err != nil {
		t.Fatalf("PacketSource: %v", err)
	}

	for i := 0; i < 3; i++ {
		if _, _, err := ps.ZeroCopyReadPacketData(); err != nil {
			t.Fatalf("read %d: %v", i, err)
		}
	}
	// Only the buffer from the latest read is still held.
	if got := ctx.ports[0].Pool().InUse(); got != 1 {
		t.Fatalf("pool InUse = %d, want 1", got)
	}
}

func TestCaptureInfoReflectsHeader(t *testing.T) {
	h := &PacketHeader{Caplen: 64, Pktlen: 128, IngressIndex: 2}
	ci := h.CaptureInfo()
	if ci.CaptureLength != 64 || ci.Length != 128 || ci.InterfaceIndex != 2 {
		t.Fatalf("unexpected CaptureInfo: %+v", ci)
	}
}
