// Package eal defines the contract this module expects from a
// poll-mode NIC driver runtime (a DPDK-class EAL). Per spec.md's
// Non-goals ("no EAL implementation, delegated to the poll-mode driver
// runtime"), this package never implements a real EAL itself — it is
// the collaborator boundary the acquire engine is built against.
//
// Two implementations live under this package: eal/dpdkeal (a cgo
// binding of a real DPDK installation, build-tag gated) and
// eal/memdrv (an in-process fake NIC used for tests and examples).
package eal

import "github.com/tbarbette/dpdk-daq/mbuf"

// PortConfig mirrors the device configuration spec.md §4.2 requires at
// port start: a fixed single rx/tx ring layout and a standard Ethernet
// MTU.
type PortConfig struct {
	RxRings int
	TxRings int
	// MaxRxPktLen is the configured maximum frame length; spec.md §4.2
	// specifies the standard Ethernet MTU as the default.
	MaxRxPktLen int
}

// StandardEthernetMTU is the default max frame length used to
// configure a port (spec.md §4.2: "default port configuration (max
// frame = standard Ethernet MTU)").
const StandardEthernetMTU = 1518

// Driver is the poll-mode NIC runtime contract. All methods operate on
// a physical port index as assigned by the driver runtime
// (Port.port_id in spec.md §3).
type Driver interface {
	// Init performs one-time EAL initialization from the tokenized
	// dpdk_args configuration value. Must be called exactly once
	// before any other method.
	Init(args []string) error

	// PortCount returns the number of Ethernet ports the driver
	// runtime has enumerated.
	PortCount() (int, error)

	// SocketID returns the NUMA socket a port's queues should be
	// allocated on.
	SocketID(portID int) int

	// PoolCreate allocates a named memory pool of `numMbufs` buffers
	// with a `cacheSize`-sized per-core fast path, on the given NUMA
	// socket (spec.md §3: NUM_MBUFS=8192, MBUF_CACHE_SIZE=256).
	PoolCreate(name string, numMbufs, cacheSize, socket int) (*mbuf.Pool, error)

	// ConfigurePort applies the port-level configuration (spec.md
	// §4.2 step 1).
	ConfigurePort(portID int, cfg PortConfig) error

	// SetupRxQueue configures one receive queue of `ringSize`
	// descriptors drawing from pool, on the given NUMA socket
	// (spec.md §4.2 step 2, RX_RING_SIZE=256).
	SetupRxQueue(portID, queue, ringSize, socket int, pool *mbuf.Pool) error

	// SetupTxQueue configures one transmit queue of `ringSize`
	// descriptors on the given NUMA socket (spec.md §4.2 step 3,
	// TX_RING_SIZE=1024).
	SetupTxQueue(portID, queue, ringSize, socket int) error

	// StartDevice starts the device (spec.md §4.2 step 4).
	StartDevice(portID int) error

	// StopDevice stops the device, dropping further packets until the
	// next StartDevice or CloseDevice.
	StopDevice(portID int) error

	// CloseDevice releases all driver-side resources for the port.
	CloseDevice(portID int) error

	// EnablePromiscuous enables promiscuous mode on the port.
	EnablePromiscuous(portID int) error

	// RxBurst polls up to burstSize buffers off the given port/queue.
	// Returns however many are immediately available (possibly zero);
	// it never blocks.
	RxBurst(portID int, queue int, burstSize int) ([]*mbuf.Buffer, error)

	// TxBurst submits bufs for transmission on the given port/queue
	// and returns how many were accepted. Buffers not accepted remain
	// owned by the caller (spec.md §4.4 step 4: "the engine never
	// releases transmit-queued buffers on back-pressure").
	TxBurst(portID int, queue int, bufs []*mbuf.Buffer) (int, error)
}
