package dpdk

import (
	"runtime"
	"time"

	"github.com/google/gopacket"

	"github.com/tbarbette/dpdk-daq/verdict"
)

// Unknown is the sentinel value for an absent ingress/egress
// index/group on a PacketHeader (spec.md §6: "egress_index = ... else
// UNKNOWN").
const Unknown = -1

// PacketHeader is the per-frame metadata handed to the analysis
// callback alongside the frame's bytes (spec.md §4.4 step 2c, §6).
type PacketHeader struct {
	Timestamp      time.Time
	Caplen         uint32
	Pktlen         uint32
	IngressIndex   int
	EgressIndex    int
	IngressGroup   int
	EgressGroup    int
	Flags          uint32
	Opaque         uint32
	PrivPtr        interface{}
	AddressSpaceID uint32
}

// CaptureInfo adapts a PacketHeader to gopacket.CaptureInfo, the same
// conversion the teacher's RecvReq.CaptureInfo performs, so decoded
// output from this module composes directly with gopacket/layers or
// gopacket/pcapgo.
func (h *PacketHeader) CaptureInfo() gopacket.CaptureInfo {
	return gopacket.CaptureInfo{
		Timestamp:      h.Timestamp,
		CaptureLength:  int(h.Caplen),
		Length:         int(h.Pktlen),
		InterfaceIndex: h.IngressIndex,
	}
}

// AnalysisFunc classifies a received frame. The callback receives a
// read-only view of the frame's bytes; it does not own the buffer and
// must not retain the slice beyond the call (spec.md §9: "the callback
// receives a read-only view, not ownership").
type AnalysisFunc func(user interface{}, hdr *PacketHeader, data []byte) verdict.Verdict

// MetaFunc is the metadata callback named in spec.md §4.4's contract;
// the module never invokes it ("a metadata callback (unused here)").
type MetaFunc func(user interface{}, hdr *PacketHeader, data []byte)

// PacketSource adapts one Instance's receive path to
// gopacket.ZeroCopyPacketDataSource/PacketDataSource, for hosts that
// want to decode frames with gopacket/layers directly instead of
// driving the acquire/callback loop (spec.md's acquire engine is the
// module's actual packet-forwarding path; this is a read-only side
// door onto the same Instance for interactive use, mirroring the
// teacher's examples/sniffer use of RingReceiver).
//
// Like the acquire engine, this busy-polls: ReadPacketData blocks
// until a frame is available. It is not used internally by Acquire.
type PacketSource struct {
	ctx  *Context
	inst *Instance
	last mbufReleaser
}

type mbufReleaser interface{ Release() }

var (
	_ gopacket.ZeroCopyPacketDataSource = (*PacketSource)(nil)
	_ gopacket.PacketDataSource         = (*PacketSource)(nil)
)

func (ps *PacketSource) releasePrevious() {
	if ps.last != nil {
		ps.last.Release()
		ps.last = nil
	}
}

// ZeroCopyReadPacketData returns a view directly into the underlying
// mbuf; the slice is invalidated by the next call.
func (ps *PacketSource) ZeroCopyReadPacketData() ([]byte, gopacket.CaptureInfo, error) {
	ps.releasePrevious()
	for {
		bufs, err := ps.ctx.driver.RxBurst(ps.inst.Port.ID, ps.inst.Queue, 1)
		if err != nil {
			return nil, gopacket.CaptureInfo{}, err
		}
		if len(bufs) == 0 {
			runtime.Gosched()
			continue
		}
		b := bufs[0]
		ps.last = b
		hdr := &PacketHeader{
			Timestamp:    time.Unix(0, b.Timestamp),
			Caplen:       uint32(b.Len),
			Pktlen:       uint32(b.Len),
			IngressIndex: ps.inst.Index,
			EgressIndex:  Unknown,
			IngressGroup: Unknown,
			EgressGroup:  Unknown,
		}
		return b.Bytes(), hdr.CaptureInfo(), nil
	}
}

// ReadPacketData is the copying variant of ZeroCopyReadPacketData,
// safe to retain past the next call.
func (ps *PacketSource) ReadPacketData() ([]byte, gopacket.CaptureInfo, error) {
	data, ci, err := ps.ZeroCopyReadPacketData()
	if err != nil {
		return nil, ci, err
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	return cp, ci, nil
}
