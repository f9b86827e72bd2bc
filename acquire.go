package dpdk

import (
	"time"

	"github.com/tbarbette/dpdk-daq/daqerr"
	"github.com/tbarbette/dpdk-daq/mbuf"
	"github.com/tbarbette/dpdk-daq/verdict"
)

// Acquire is the inner poll loop: it round-robins over every Instance,
// drains receive bursts, applies the installed BPF filter, invokes cb
// for each passing frame, translates its verdict, and forwards or
// releases the buffer accordingly (spec.md §4.4, the module's
// centerpiece).
//
// cnt bounds the number of frames delivered to cb; cnt <= 0 means
// unbounded. meta is accepted for interface compatibility but never
// invoked, matching the contract's "metadata callback (unused here)".
// Acquire returns the number of frames actually delivered to cb during
// this call. It returns promptly (delivering however many frames it
// already had) when break_loop is raised or the idle timeout elapses
// with a full pass making no progress.
func (c *Context) Acquire(cnt int, cb AnalysisFunc, meta MetaFunc, user interface{}) (int, error) {
	const op = "dpdk.Context.Acquire"
	if c.state != Started {
		return 0, daqerr.New(daqerr.Error, op, "acquire requires STARTED state, have %s", c.state)
	}

	delivered := 0
	loopStart := time.Now()
	ts := loopStart

	for {
		if cnt > 0 && delivered >= cnt {
			return delivered, nil
		}

		gotOne, ignoredOne, sentOne := false, false, false

		for _, inst := range c.instances {
			if c.breakLoop.Load() {
				c.breakLoop.Store(false)
				return delivered, nil
			}

			peer := c.peer(inst)

			// Step 1: drain-first policy. If the peer Port already has
			// pending transmits, service those before receiving more
			// (spec.md §4.4 step 1: "never let the deferred queue
			// starve").
			if peer != nil && peer.Port.tx.Len() > 0 {
				if c.drainTx(peer.Port, peer.Queue) {
					sentOne = true
				}
				continue
			}

			// Step 2: receive.
			burst := BurstSize
			if cnt > 0 {
				if remaining := cnt - delivered; remaining < burst {
					burst = remaining
				}
			}

			bufs, err := c.driver.RxBurst(inst.Port.ID, inst.Queue, burst)
			if err != nil {
				return delivered, daqerr.New(daqerr.Error, op, "rx_burst on port %d queue %d: %v", inst.Port.ID, inst.Queue, err)
			}

			for _, b := range bufs {
				c.stats.HwPacketsReceived++

				if c.filter != nil && !c.filter.Matches(b.Bytes()) {
					ignoredOne = true
					c.stats.PacketsFiltered++
					c.dispose(peer, verdict.EffectivePass, b)
					continue
				}

				gotOne = true
				hdr := &PacketHeader{
					Timestamp:    ts,
					Caplen:       uint32(b.Len),
					Pktlen:       uint32(b.Len),
					IngressIndex: inst.Index,
					EgressIndex:  Unknown,
					IngressGroup: Unknown,
					EgressGroup:  Unknown,
				}
				if peer != nil {
					hdr.EgressIndex = peer.Index
				}

				raw := verdict.Clamp(cb(user, hdr, b.Bytes()))
				c.stats.Verdicts[raw]++
				eff := verdict.Translate(raw)

				c.stats.PacketsReceived++
				delivered++

				// Step 3: disposition.
				c.dispose(peer, eff, b)
			}

			// Step 4: transmit-drain.
			if peer != nil {
				if c.drainTx(peer.Port, peer.Queue) {
					sentOne = true
				}
			}
		}

		// Step 5: termination check.
		if !gotOne && !ignoredOne && !sentOne {
			if c.timeoutMs < 0 {
				continue
			}
			if time.Since(loopStart) > time.Duration(c.timeoutMs)*time.Millisecond {
				return delivered, nil
			}
		}
	}
}

// dispose implements spec.md §4.4 step 3: a PASS verdict on a peered
// Instance forwards the buffer to the peer Port's transmit ring;
// anything else releases it to its pool.
func (c *Context) dispose(peer *Instance, eff verdict.Effective, b *mbuf.Buffer) {
	if eff == verdict.EffectivePass && peer != nil {
		if peer.Port.tx.Push(b) {
			return
		}
		c.log.Warnw("tx_burst ring unexpectedly full, releasing buffer", "port", peer.Port.ID)
	}
	b.Release()
}

// drainTx submits port's pending transmit buffers on queue, advancing
// the ring by however many the driver accepts and leaving the rest
// owned by the ring for the next pass (spec.md §4.4 step 4). It
// reports whether any buffer was submitted.
func (c *Context) drainTx(port *Port, queue int) bool {
	sentAny := false
	for port.tx.Len() > 0 {
		m, err := c.driver.TxBurst(port.ID, queue, port.tx.Pending())
		if err != nil {
			c.log.Warnw("tx_burst failed", "port", port.ID, "queue", queue, "error", err)
			return sentAny
		}
		if m == 0 {
			// Back-pressure: buffers stay owned by the ring.
			return sentAny
		}
		port.tx.Advance(m)
		sentAny = true
	}
	return sentAny
}
