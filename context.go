// Package dpdk implements a packet acquisition module for a host
// IDS/IPS framework: it sources and sinks Ethernet frames through a
// poll-mode NIC driver, supports passive tap and inline bridged
// forwarding, and runs BPF filtering ahead of an analysis callback.
// The poll-mode driver runtime and the BPF compiler are both external
// collaborators (see the eal and bpfprog packages); this package is
// the lifecycle controller and acquire engine built against them.
package dpdk

import (
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/tbarbette/dpdk-daq/bpfprog"
	"github.com/tbarbette/dpdk-daq/daqerr"
	"github.com/tbarbette/dpdk-daq/devstring"
	"github.com/tbarbette/dpdk-daq/eal"
)

// State is one of the lifecycle controller's states (spec.md §4.6).
type State int

const (
	Uninitialized State = iota
	Initialized
	Started
	Stopped
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "UNINITIALIZED"
	case Initialized:
		return "INITIALIZED"
	case Started:
		return "STARTED"
	case Stopped:
		return "STOPPED"
	default:
		return "UNKNOWN"
	}
}

// Context is the module's handle: it owns every Port and Instance
// parsed from a device string, the installed filter, the lifecycle
// state, and the running statistics (spec.md §3).
type Context struct {
	device    string
	driver    eal.Driver
	mode      devstring.Mode
	snaplen   int
	timeoutMs int
	promisc   bool
	debug     bool

	filter *bpfprog.Program

	ports    []*Port
	portByID map[int]*Port

	instances       []*Instance
	instanceByIndex map[int]*Instance
	nextIndex       int

	state     State
	breakLoop atomic.Bool
	stats     Stats
	errbuf    daqerr.ErrBuf

	log *zap.SugaredLogger
}

// New parses device, allocates Ports and Instances, and performs
// one-time EAL initialization through driver (spec.md §4.1, §4.6
// "initialize"). The Context is returned in the INITIALIZED state.
//
// A nil logger installs zap.NewNop(), matching the teacher's posture
// of never forcing a logging dependency on a caller that doesn't want
// one.
func New(driver eal.Driver, logger *zap.SugaredLogger, opts ...Option) (*Context, error) {
	const op = "dpdk.New"

	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	var cfg config
	for _, o := range opts {
		o.f(&cfg)
	}

	c := &Context{
		device:          cfg.device,
		driver:          driver,
		mode:            cfg.mode,
		snaplen:         cfg.snaplen,
		timeoutMs:       normalizeTimeout(cfg.timeoutMs),
		promisc:         cfg.promisc,
		debug:           cfg.debug,
		portByID:        make(map[int]*Port),
		instanceByIndex: make(map[int]*Instance),
		log:             logger,
	}

	if len(cfg.dpdkArgs) == 0 {
		err := daqerr.New(daqerr.Inval, op, "dpdk_args is required")
		c.errbuf.SetErr(err)
		return nil, err
	}
	if err := driver.Init(cfg.dpdkArgs); err != nil {
		wrapped := daqerr.New(daqerr.Error, op, "EAL init failed: %v", err)
		c.errbuf.SetErr(wrapped)
		return nil, wrapped
	}

	portCount, err := driver.PortCount()
	if err != nil {
		wrapped := daqerr.New(daqerr.Error, op, "port enumeration failed: %v", err)
		c.errbuf.SetErr(wrapped)
		return nil, wrapped
	}
	if portCount == 0 {
		err := daqerr.New(daqerr.NoDev, op, "no ports enumerated")
		c.errbuf.SetErr(err)
		return nil, err
	}

	tokens, err := devstring.Parse(cfg.device, cfg.mode)
	if err != nil {
		c.errbuf.SetErr(err)
		return nil, err
	}
	if len(tokens) > portCount {
		err := daqerr.New(daqerr.Inval, op, "interface count %d exceeds driver port count %d", len(tokens), portCount)
		c.errbuf.SetErr(err)
		return nil, err
	}

	if err := c.build(tokens, cfg.mode); err != nil {
		c.errbuf.SetErr(err)
		return nil, err
	}

	c.state = Initialized
	if c.debug {
		c.log.Debugw("dpdk module initialized", "device", cfg.device, "mode", cfg.mode, "instances", len(c.instances), "ports", len(c.ports))
	}
	return c, nil
}

// normalizeTimeout maps any non-positive configured timeout to -1, the
// internal "disabled" sentinel (spec.md §6: "timeout (ms; ≤0 ⇒ no
// timeout)").
func normalizeTimeout(ms int) int {
	if ms > 0 {
		return ms
	}
	return -1
}

// build allocates Ports (de-duplicated by port id, spec.md §4.1 step 3)
// and Instances (step 4) from the parsed tokens, then pairs them into
// bridges if mode is not passive (step 5). On any failure it rolls
// back everything it allocated, per spec.md §7 ("initialization
// failures roll back partially allocated Ports and Instances").
func (c *Context) build(tokens []devstring.Token, mode devstring.Mode) error {
	const op = "dpdk.Context.build"

	for _, tok := range tokens {
		port, ok := c.portByID[tok.Port]
		if !ok {
			pool, err := c.driver.PoolCreate(fmt.Sprintf("MBUF_POOL%d", tok.Port), NumMbufs, MbufCacheSize, c.driver.SocketID(tok.Port))
			if err != nil {
				c.rollback()
				return daqerr.New(daqerr.NoMem, op, "pool allocation failed for port %d: %v", tok.Port, err)
			}
			port = newPort(tok.Port, pool)
			c.portByID[tok.Port] = port
			c.ports = append(c.ports, port)
		}
		port.refcnt++

		inst := newInstance(c.nextIndex, port, tok.Queue)
		c.nextIndex++
		c.instanceByIndex[inst.Index] = inst
		c.instances = append(c.instances, inst)
	}

	if mode != devstring.Inline {
		return nil
	}

	if len(c.instances)%2 != 0 {
		c.rollback()
		return daqerr.New(daqerr.Inval, op, "unpaired interface count (%d) in inline mode", len(c.instances))
	}

	for i := 0; i+1 < len(c.instances); i += 2 {
		a, b := c.instances[i], c.instances[i+1]
		if err := c.createBridge(a, b); err != nil {
			c.rollback()
			return err
		}
	}
	return nil
}

// createBridge pairs two Instances for inline forwarding (spec.md
// §4.1 step 5).
func (c *Context) createBridge(a, b *Instance) error {
	const op = "dpdk.Context.createBridge"
	if a == nil || b == nil {
		return daqerr.New(daqerr.NoDev, op, "cannot bridge: missing instance")
	}
	a.peerIdx, b.peerIdx = b.Index, a.Index
	if c.debug {
		c.log.Debugw("bridge paired", "port1", a.Port.ID, "port2", b.Port.ID)
	}
	return nil
}

// rollback releases everything build has allocated so far. Called only
// before the Context has reached INITIALIZED, so there is nothing
// beyond ports/instances to undo.
func (c *Context) rollback() {
	for _, p := range c.ports {
		p.tx.releaseAll()
	}
	c.ports = nil
	c.portByID = make(map[int]*Port)
	c.instances = nil
	c.instanceByIndex = make(map[int]*Instance)
	c.nextIndex = 0
}

// peer resolves an Instance's bridge partner, if any.
func (c *Context) peer(i *Instance) *Instance {
	if !i.HasPeer() {
		return nil
	}
	return c.instanceByIndex[i.peerIdx]
}

// SetFilter installs prog as the active BPF filter, replacing any
// previous one (spec.md §4.3). A nil prog removes filtering.
func (c *Context) SetFilter(prog *bpfprog.Program) error {
	c.filter = prog
	if c.debug {
		c.log.Debugw("filter installed", "source", prog.Source())
	}
	return nil
}

// SetFilterSource compiles expr with compiler and installs the result
// (the external-BPF-compiler collaborator path, spec.md §2/§4.3).
func (c *Context) SetFilterSource(compiler bpfprog.Compiler, expr string) error {
	prog, err := bpfprog.Compile(compiler, c.snaplen, expr)
	if err != nil {
		c.errbuf.SetErr(err)
		return err
	}
	return c.SetFilter(prog)
}

// Start configures and starts every Port's device (spec.md §4.2,
// §4.6 "start"). On any failure the context is left partially started
// per §4.2 step 5; the caller is expected to call Shutdown.
func (c *Context) Start() error {
	const op = "dpdk.Context.Start"
	if c.state != Initialized {
		return daqerr.New(daqerr.Error, op, "start requires INITIALIZED state, have %s", c.state)
	}

	for _, p := range c.ports {
		if err := c.startPort(p); err != nil {
			c.errbuf.SetErr(err)
			return err
		}
	}

	c.state = Started
	if c.debug {
		c.log.Debugw("dpdk module started", "ports", len(c.ports))
	}
	return nil
}

func (c *Context) startPort(p *Port) error {
	const op = "dpdk.Context.startPort"

	cfg := eal.PortConfig{RxRings: rxRingNum, TxRings: txRingNum, MaxRxPktLen: eal.StandardEthernetMTU}
	if err := c.driver.ConfigurePort(p.ID, cfg); err != nil {
		return daqerr.New(daqerr.Error, op, "configure port %d: %v", p.ID, err)
	}

	socket := c.driver.SocketID(p.ID)
	for q := 0; q < rxRingNum; q++ {
		if err := c.driver.SetupRxQueue(p.ID, q, RxRingSize, socket, p.pool); err != nil {
			return daqerr.New(daqerr.Error, op, "setup rx queue %d on port %d: %v", q, p.ID, err)
		}
	}
	for q := 0; q < txRingNum; q++ {
		if err := c.driver.SetupTxQueue(p.ID, q, TxRingSize, socket); err != nil {
			return daqerr.New(daqerr.Error, op, "setup tx queue %d on port %d: %v", q, p.ID, err)
		}
	}

	if err := c.driver.StartDevice(p.ID); err != nil {
		return daqerr.New(daqerr.Error, op, "start device %d: %v", p.ID, err)
	}
	p.started = true

	if c.promisc {
		if err := c.driver.EnablePromiscuous(p.ID); err != nil {
			return daqerr.New(daqerr.Error, op, "enable promiscuous on port %d: %v", p.ID, err)
		}
	}
	return nil
}

// Breakloop requests that the currently running (or next) Acquire call
// return promptly at the next Instance boundary (spec.md §4.6, §5).
// Safe to call from any goroutine.
func (c *Context) Breakloop() {
	c.breakLoop.Store(true)
}

// Stop releases every Port (stopping its device and draining any
// pending transmit buffers) and frees the instance/filter state,
// transitioning STARTED → STOPPED (spec.md §4.6).
func (c *Context) Stop() error {
	const op = "dpdk.Context.Stop"
	if c.state != Started {
		return daqerr.New(daqerr.Error, op, "stop requires STARTED state, have %s", c.state)
	}

	for _, p := range c.ports {
		p.tx.releaseAll()
		if err := c.driver.StopDevice(p.ID); err != nil {
			c.log.Warnw("stop device failed", "port", p.ID, "error", err)
		}
		p.started = false
	}

	for _, inst := range c.instances {
		inst.peerIdx = noPeer
	}
	c.instances = nil
	c.instanceByIndex = make(map[int]*Instance)
	c.filter = nil

	c.state = Stopped
	if c.debug {
		c.log.Debugw("dpdk module stopped")
	}
	return nil
}

// Shutdown frees the Context, releasing every Port's driver resources.
// Valid from STOPPED or INITIALIZED (spec.md §4.6).
func (c *Context) Shutdown() error {
	const op = "dpdk.Context.Shutdown"
	if c.state != Stopped && c.state != Initialized {
		return daqerr.New(daqerr.Error, op, "shutdown requires STOPPED or INITIALIZED state, have %s", c.state)
	}

	for _, p := range c.ports {
		p.tx.releaseAll()
		if err := c.driver.CloseDevice(p.ID); err != nil {
			c.log.Warnw("close device failed", "port", p.ID, "error", err)
		}
	}
	c.ports = nil
	c.portByID = make(map[int]*Port)
	c.instances = nil
	c.instanceByIndex = make(map[int]*Instance)

	c.state = Uninitialized
	if c.debug {
		c.log.Debugw("dpdk module shut down")
	}
	return nil
}

// CheckStatus returns the current lifecycle state.
func (c *Context) CheckStatus() State { return c.state }

// GetStats returns a copy of the running counters.
func (c *Context) GetStats() Stats { return c.stats }

// ResetStats zeroes every counter. Idempotent (spec.md §8).
func (c *Context) ResetStats() {
	c.stats = Stats{}
}

// GetSnaplen returns the configured capture length.
func (c *Context) GetSnaplen() int { return c.snaplen }

// Capability bits for GetCapabilities (spec.md §6).
const (
	CapBlock       = 1 << iota // BLOCK
	CapReplace                 // REPLACE
	CapInject                  // INJECT
	CapUnprivStart             // UNPRIV_START
	CapBreakloop               // BREAKLOOP
	CapBPF                     // BPF
	CapDeviceIndex             // DEVICE_INDEX
)

// GetCapabilities returns the module's fixed capability bitmask.
func (c *Context) GetCapabilities() uint32 {
	return CapBlock | CapReplace | CapInject | CapUnprivStart | CapBreakloop | CapBPF | CapDeviceIndex
}

// DatalinkType values recognized by GetDatalinkType.
const DatalinkEthernet = 1 // DLT_EN10MB

// GetDatalinkType returns the module's fixed datalink type.
func (c *Context) GetDatalinkType() int { return DatalinkEthernet }

// GetErrbuf returns the last error message recorded on the context.
func (c *Context) GetErrbuf() string { return c.errbuf.String() }

// SetErrbuf overwrites the last error message, for hosts that want to
// annotate the buffer themselves.
func (c *Context) SetErrbuf(msg string) { c.errbuf.Set(msg) }

// GetDeviceIndex resolves a device token (e.g. "dpdk0") to the
// Instance index bound to it, for hosts that address interfaces by
// name rather than index.
func (c *Context) GetDeviceIndex(device string) (int, error) {
	const op = "dpdk.Context.GetDeviceIndex"
	toks, err := devstring.Parse(device, devstring.Passive)
	if err != nil || len(toks) != 1 {
		return 0, daqerr.New(daqerr.Inval, op, "invalid device index specification: %q", device)
	}
	tok := toks[0]
	for _, inst := range c.instances {
		if inst.Port.ID == tok.Port && inst.Queue == tok.Queue {
			return inst.Index, nil
		}
	}
	return 0, daqerr.New(daqerr.NoDev, op, "no such device: %q", device)
}

// PacketSource returns a gopacket data source bound to the Instance at
// instanceIndex, for interactive decoding outside of Acquire.
func (c *Context) PacketSource(instanceIndex int) (*PacketSource, error) {
	const op = "dpdk.Context.PacketSource"
	inst, ok := c.instanceByIndex[instanceIndex]
	if !ok {
		return nil, daqerr.New(daqerr.NoDev, op, "no such instance: %d", instanceIndex)
	}
	return &PacketSource{ctx: c, inst: inst}, nil
}
