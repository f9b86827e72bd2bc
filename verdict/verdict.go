// Package verdict defines the callback's packet classification and its
// translation into the two effective dispositions the acquire engine
// actually acts on: forward or drop.
package verdict

// Verdict is the callback's raw classification of a frame.
type Verdict int

const (
	// Pass forwards the packet to the peer (if any) unmodified.
	Pass Verdict = iota
	// Block drops the packet.
	Block
	// Replace is treated as Pass here: the original packet is forwarded
	// unmodified, since this module applies no payload replacement.
	Replace
	// Whitelist marks the flow as trusted; treated as Pass here.
	Whitelist
	// Blacklist marks the flow as untrusted; treated as Block here.
	Blacklist
	// Ignore skips further inspection; treated as Pass here.
	Ignore
	// Retry asks the host to reclassify later; treated as Block here
	// since there is no flow-replay facility in this module.
	Retry

	// Max is one past the last defined raw verdict. Any raw verdict
	// returned by a callback at or above Max is clamped to Pass before
	// being counted or translated (spec.md §4.4 step 2d).
	Max
)

// Effective is the two-valued disposition the acquire engine uses to
// decide whether a buffer is forwarded to a peer or released.
type Effective int

const (
	// EffectivePass forwards the buffer to the peer instance's transmit
	// ring (if peered) or otherwise simply releases it without marking
	// it filtered/blocked.
	EffectivePass Effective = iota
	// EffectiveBlock releases the buffer without forwarding.
	EffectiveBlock
)

// table is the fixed verdict translation table from spec.md §6. Index is
// the raw (already clamped) verdict; value is the effective disposition.
var table = [Max]Effective{
	Pass:      EffectivePass,
	Block:     EffectiveBlock,
	Replace:   EffectivePass,
	Whitelist: EffectivePass,
	Blacklist: EffectiveBlock,
	Ignore:    EffectivePass,
	Retry:     EffectiveBlock,
}

// Clamp returns v if it is a recognized raw verdict, or Pass otherwise
// (spec.md §4.4 step 2d: "clamp any verdict >= MAX_VERDICT to PASS").
func Clamp(v Verdict) Verdict {
	if v < 0 || v >= Max {
		return Pass
	}
	return v
}

// Translate maps a raw verdict to its effective disposition per the §6
// table. The input is clamped first, so Translate never panics and
// always returns one of EffectivePass/EffectiveBlock.
func Translate(v Verdict) Effective {
	return table[Clamp(v)]
}

// String renders a raw verdict the way the host's logging would.
func (v Verdict) String() string {
	switch v {
	case Pass:
		return "PASS"
	case Block:
		return "BLOCK"
	case Replace:
		return "REPLACE"
	case Whitelist:
		return "WHITELIST"
	case Blacklist:
		return "BLACKLIST"
	case Ignore:
		return "IGNORE"
	case Retry:
		return "RETRY"
	default:
		return "UNKNOWN"
	}
}
