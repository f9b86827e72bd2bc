package dpdk

import (
	"github.com/tbarbette/dpdk-daq/daqerr"
	"github.com/tbarbette/dpdk-daq/mbuf"
)

// Inject transmits data as a single-frame burst on behalf of the
// Instance identified by hdr.IngressIndex (spec.md §4.5). If reverse
// is false, the frame is redirected to that Instance's peer (NODEV if
// unpeered); if true, it is sent back out the same Instance.
//
// A buffer is borrowed from the target Port's pool, the payload
// copied in verbatim, and submitted as a one-buffer tx_burst. If the
// driver accepts zero frames the buffer is released and AGAIN is
// returned, the same back-pressure signal a full transmit ring gives
// the acquire engine.
func (c *Context) Inject(hdr *PacketHeader, data []byte, reverse bool) error {
	const op = "dpdk.Context.Inject"
	if c.state != Started {
		return daqerr.New(daqerr.Error, op, "inject requires STARTED state, have %s", c.state)
	}

	inst, ok := c.instanceByIndex[hdr.IngressIndex]
	if !ok {
		return daqerr.New(daqerr.NoDev, op, "no such instance: %d", hdr.IngressIndex)
	}

	target := inst
	if !reverse {
		peer := c.peer(inst)
		if peer == nil {
			return daqerr.New(daqerr.NoDev, op, "instance %d has no peer", inst.Index)
		}
		target = peer
	}

	b, err := target.Port.pool.Get()
	if err != nil {
		return daqerr.New(daqerr.NoMem, op, "allocate inject buffer: %v", err)
	}
	b.CopyIn(data)

	n, err := c.driver.TxBurst(target.Port.ID, target.Queue, []*mbuf.Buffer{b})
	if err != nil {
		b.Release()
		return daqerr.New(daqerr.Error, op, "tx_burst: %v", err)
	}
	if n == 0 {
		b.Release()
		return daqerr.New(daqerr.Again, op, "transmit queue full")
	}

	c.stats.PacketsInjected++
	return nil
}
