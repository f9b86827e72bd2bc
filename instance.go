package dpdk

// noPeer marks an Instance with no bridge partner.
const noPeer = -1

// Instance is a (Port, queue) binding exposed to the host as a logical
// interface (spec.md §3). Its peer, if any, is recorded as the peer's
// stable Index rather than a direct reference: the Context is the sole
// owner of every Instance, and a non-owning index sidesteps the
// co-owning reference cycle a direct peer pointer would create
// (spec.md §9 DESIGN NOTES).
type Instance struct {
	Index   int
	Port    *Port
	Queue   int
	peerIdx int
}

func newInstance(index int, port *Port, queue int) *Instance {
	return &Instance{Index: index, Port: port, Queue: queue, peerIdx: noPeer}
}

// HasPeer reports whether this Instance is bridged to another.
func (i *Instance) HasPeer() bool { return i.peerIdx != noPeer }
