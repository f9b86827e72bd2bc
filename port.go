package dpdk

import "github.com/tbarbette/dpdk-daq/mbuf"

// BurstSize is the maximum number of buffers exchanged with the driver
// in one rx_burst/tx_burst call (spec.md glossary: "Burst").
const BurstSize = 32

// rxRingNum and txRingNum are fixed at 1 each in this design (spec.md
// §3 "rx_rings, tx_rings: ... fixed at 1 each").
const (
	rxRingNum = 1
	txRingNum = 1
)

// NumMbufs and MbufCacheSize are the per-port memory pool sizing
// constants (spec.md §3).
const (
	NumMbufs      = 8192
	MbufCacheSize = 256
)

// RxRingSize and TxRingSize are the descriptor counts used when
// setting up a port's queues (spec.md §4.2).
const (
	RxRingSize = 256
	TxRingSize = 1024
)

// txBurstCapacity is the bounded deferred-transmit ring's capacity:
// one full receive burst per receive ring (spec.md §3: "capacity
// BURST_SIZE × RX_RING_NUM").
const txBurstCapacity = BurstSize * rxRingNum

// txRing is Port's bounded deferred transmit queue: a producer
// (receive-side disposition) and a consumer (transmit-drain) sharing
// one slice under the single-threaded acquire loop, so no
// synchronization is required (spec.md §9 DESIGN NOTES).
type txRing struct {
	buf        [txBurstCapacity]*mbuf.Buffer
	start, end int
}

// Len returns the number of buffers currently pending transmission.
func (r *txRing) Len() int { return r.end - r.start }

// Push appends a buffer to the ring. The capacity invariant (spec.md
// §3: "sized so that one full receive burst per receive ring fits,
// hence append is always safe") means this never needs to check for
// overflow under the engine's own usage pattern; it still clamps
// defensively rather than silently corrupting adjacent slots.
func (r *txRing) Push(b *mbuf.Buffer) bool {
	if r.end >= len(r.buf) {
		return false
	}
	r.buf[r.end] = b
	r.end++
	return true
}

// Pending returns the slice of buffers awaiting transmission, in FIFO
// order, without removing them.
func (r *txRing) Pending() []*mbuf.Buffer {
	return r.buf[r.start:r.end]
}

// Advance marks n buffers as submitted to the driver and removes them
// from the ring. When the ring fully drains, the indices reset to
// zero (spec.md §3 invariant: "after a successful full drain tx_start
// == tx_end == 0").
func (r *txRing) Advance(n int) {
	r.start += n
	if r.start == r.end {
		r.start, r.end = 0, 0
	}
}

// releaseAll returns every pending buffer to its pool without
// transmitting, used when tearing down a started port (spec.md §5:
// "Port destruction frees pending tx_burst[tx_start..tx_end) by
// releasing each buffer to its pool").
func (r *txRing) releaseAll() {
	for i := r.start; i < r.end; i++ {
		r.buf[i].Release()
		r.buf[i] = nil
	}
	r.start, r.end = 0, 0
}

// Port owns a NIC device (a physical port index) and its receive
// memory pool, plus the bounded deferred transmit queue used by
// bridging (spec.md §3).
type Port struct {
	ID      int
	pool    *mbuf.Pool
	tx      txRing
	started bool
	refcnt  int
}

func newPort(id int, pool *mbuf.Pool) *Port {
	return &Port{ID: id, pool: pool}
}

// Pool returns the port's receive/injection memory pool.
func (p *Port) Pool() *mbuf.Pool { return p.pool }

// Started reports whether the underlying device has been started.
func (p *Port) Started() bool { return p.started }

// Refcnt reports how many Instances reference this Port.
func (p *Port) Refcnt() int { return p.refcnt }
