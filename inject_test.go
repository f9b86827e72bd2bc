package dpdk

import (
	"testing"

	"github.com/tbarbette/dpdk-daq/daqerr"
	"github.com/tbarbette/dpdk-daq/devstring"
)

func TestInjectForwardsToPeer(t *testing.T) {
	ctx, driver := newTestContext(t, 2, "dpdk0:dpdk1", devstring.Inline)
	if err := ctx.Start(); err != nil {
		t.Fatal(err)
	}

	hdr := &PacketHeader{IngressIndex: ctx.instances[0].Index}
	if err := ctx.Inject(hdr, []byte("payload"), false); err != nil {
		t.Fatal(err)
	}

	sent := driver.SentFrames(1, 0)
	if len(sent) != 1 || string(sent[0]) != "payload" {
		t.Fatalf("unexpected sent frames: %v", sent)
	}
	if ctx.GetStats().PacketsInjected != 1 {
		t.Fatalf("PacketsInjected = %d, want 1", ctx.GetStats().PacketsInjected)
	}
}

func TestInjectReverseSendsOnSameInstance(t *testing.T) {
	ctx, driver := newTestContext(t, 1, "dpdk0", devstring.Passive)
	if err := ctx.Start(); err != nil {
		t.Fatal(err)
	}

	hdr := &PacketHeader{IngressIndex: ctx.instances[0].Index}
	if err := ctx.Inject(hdr, []byte("reflected"), true); err != nil {
		t.Fatal(err)
	}

	sent := driver.SentFrames(0, 0)
	if len(sent) != 1 || string(sent[0]) != "reflected" {
		t.Fatalf("unexpected sent frames: %v", sent)
	}
}

func TestInjectWithoutPeerFails(t *testing.T) {
	ctx, _ := newTestContext(t, 1, "dpdk0", devstring.Passive)
	if err := ctx.Start(); err != nil {
		t.Fatal(err)
	}

	hdr := &PacketHeader{IngressIndex: ctx.instances[0].Index}
	err := ctx.Inject(hdr, []byte("x"), false)
	if err == nil {
		t.Fatal("expected NODEV for unpeered instance")
	}
	var e *daqerr.E
	if !asDaqErr(err, &e) || e.Kind != daqerr.NoDev {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestInjectNicRejectsReturnsAgain(t *testing.T) {
	ctx, driver := newTestContext(t, 2, "dpdk0:dpdk1", devstring.Inline)
	if err := ctx.Start(); err != nil {
		t.Fatal(err)
	}
	driver.SetTxAcceptLimit(1, 0, 0)

	hdr := &PacketHeader{IngressIndex: ctx.instances[0].Index}
	err := ctx.Inject(hdr, []byte("x"), false)
	if err == nil {
		t.Fatal("expected AGAIN")
	}
	var e *daqerr.E
	if !asDaqErr(err, &e) || e.Kind != daqerr.Again {
		t.Fatalf("unexpected error: %v", err)
	}

	// No double-free: the buffer was released back to the pool.
	if ctx.ports[1].Pool().InUse() != 0 {
		t.Fatalf("pool InUse = %d, want 0", ctx.ports[1].Pool().InUse())
	}
}

func asDaqErr(err error, target **daqerr.E) bool {
	e, ok := err.(*daqerr.E)
	if !ok {
		return false
	}
	*target = e
	return true
}
