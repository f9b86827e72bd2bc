// Package memdrv is an in-process, pure-Go implementation of eal.Driver.
// It is not a mock: it really configures ports, really queues and
// delivers frames, and really enforces the same ownership/back-pressure
// rules a hardware poll-mode driver would — just entirely in memory.
// It backs this module's tests and its example/CLI harness, standing in
// for hardware or hugepages the way the pack's other DPDK-flavored Go
// code (a lock-free ring + mempool pair) stands in for a cgo binding.
package memdrv

import (
	"sync"
	"time"

	"github.com/tbarbette/dpdk-daq/daqerr"
	"github.com/tbarbette/dpdk-daq/eal"
	"github.com/tbarbette/dpdk-daq/mbuf"
)

// Driver is an in-memory poll-mode NIC runtime. Frames reach its rx
// queues only through Feed; frames accepted by TxBurst are recorded
// for SentFrames and are not looped back to any rx queue. The zero value is not
// usable; construct with New.
type Driver struct {
	mu          sync.Mutex
	initialized bool
	ports       map[int]*portState
	portCount   int
}

type queueState struct {
	pending [][]byte
}

type txQueueState struct {
	sent        [][]byte
	acceptLimit int // <0 means unlimited
}

type portState struct {
	cfg      eal.PortConfig
	started  bool
	promisc  bool
	pool     *mbuf.Pool
	rxQueues map[int]*queueState
	txQueues map[int]*txQueueState
}

// New creates a fake driver that will report `portCount` enumerable
// ports (as if PortCount() had already inventoried them). Init must
// still be called before any other method, as with a real EAL.
func New(portCount int) *Driver {
	return &Driver{ports: make(map[int]*portState), portCount: portCount}
}

func (d *Driver) Init(args []string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(args) == 0 {
		return daqerr.New(daqerr.Inval, "memdrv.Init", "missing EAL arguments")
	}
	d.initialized = true
	return nil
}

func (d *Driver) PortCount() (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.initialized {
		return 0, daqerr.New(daqerr.Error, "memdrv.PortCount", "EAL not initialized")
	}
	return d.portCount, nil
}

func (d *Driver) SocketID(portID int) int {
	return 0
}

func (d *Driver) PoolCreate(name string, numMbufs, cacheSize, socket int) (*mbuf.Pool, error) {
	return mbuf.NewPool(name, numMbufs, cacheSize, mbuf.DefaultBufSize), nil
}

func (d *Driver) port(portID int) *portState {
	p, ok := d.ports[portID]
	if !ok {
		p = &portState{
			rxQueues: make(map[int]*queueState),
			txQueues: make(map[int]*txQueueState),
		}
		d.ports[portID] = p
	}
	return p
}

func (d *Driver) ConfigurePort(portID int, cfg eal.PortConfig) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	p := d.port(portID)
	p.cfg = cfg
	return nil
}

func (d *Driver) SetupRxQueue(portID, queue, ringSize, socket int, pool *mbuf.Pool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	p := d.port(portID)
	p.pool = pool
	p.rxQueues[queue] = &queueState{}
	return nil
}

func (d *Driver) SetupTxQueue(portID, queue, ringSize, socket int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	p := d.port(portID)
	p.txQueues[queue] = &txQueueState{acceptLimit: -1}
	return nil
}

func (d *Driver) StartDevice(portID int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.port(portID).started = true
	return nil
}

func (d *Driver) StopDevice(portID int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.port(portID).started = false
	return nil
}

func (d *Driver) CloseDevice(portID int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.ports, portID)
	return nil
}

func (d *Driver) EnablePromiscuous(portID int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.port(portID).promisc = true
	return nil
}

// Feed enqueues raw frames as if the NIC had just DMAed them into the
// given port/queue's receive ring. Intended for tests and the example
// harness; a real driver would instead be handed frames by hardware.
func (d *Driver) Feed(portID, queue int, frames ...[]byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	q := d.port(portID).rxQueues[queue]
	for _, f := range frames {
		cp := make([]byte, len(f))
		copy(cp, f)
		q.pending = append(q.pending, cp)
	}
}

// SetTxAcceptLimit caps how many frames TxBurst accepts per call on
// the given port/queue (-1 for unlimited, the default). Used to
// exercise the acquire engine's back-pressure handling (spec.md §4.4
// step 4, §8 "NIC rejecting all transmit").
func (d *Driver) SetTxAcceptLimit(portID, queue, n int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.port(portID).txQueues[queue].acceptLimit = n
}

// SentFrames returns copies of the frames accepted so far by TxBurst
// on the given port/queue, in submission order.
func (d *Driver) SentFrames(portID, queue int) [][]byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	q := d.port(portID).txQueues[queue]
	out := make([][]byte, len(q.sent))
	copy(out, q.sent)
	return out
}

func (d *Driver) RxBurst(portID int, queue int, burstSize int) ([]*mbuf.Buffer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	p := d.port(portID)
	q, ok := p.rxQueues[queue]
	if !ok || len(q.pending) == 0 {
		return nil, nil
	}

	n := burstSize
	if n > len(q.pending) {
		n = len(q.pending)
	}

	bufs := make([]*mbuf.Buffer, 0, n)
	for i := 0; i < n; i++ {
		b, err := p.pool.Get()
		if err != nil {
			// Pool exhaustion: stop here, leave the rest pending for
			// the next poll, same as a real driver would under
			// memory pressure.
			break
		}
		frame := q.pending[i]
		b.CopyIn(frame)
		b.PortNum = uint32(portID)
		b.Timestamp = time.Now().UnixNano()
		bufs = append(bufs, b)
	}
	q.pending = q.pending[len(bufs):]
	return bufs, nil
}

func (d *Driver) TxBurst(portID int, queue int, bufs []*mbuf.Buffer) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	p := d.port(portID)
	q, ok := p.txQueues[queue]
	if !ok {
		return 0, daqerr.New(daqerr.NoDev, "memdrv.TxBurst", "tx queue %d not set up on port %d", queue, portID)
	}

	n := len(bufs)
	if q.acceptLimit >= 0 && n > q.acceptLimit {
		n = q.acceptLimit
	}

	for i := 0; i < n; i++ {
		frame := make([]byte, bufs[i].Len)
		copy(frame, bufs[i].Bytes())
		q.sent = append(q.sent, frame)
		// The driver now owns the buffer; it is recycled to its
		// originating pool, same as a real NIC completing DMA.
		bufs[i].Release()
	}
	return n, nil
}
