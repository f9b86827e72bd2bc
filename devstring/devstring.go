// Package devstring parses the module's device-string grammar (spec.md
// §4.1, §6): a colon-delimited list of `dpdk<port>[-<queue>]` tokens,
// grounded on the tokenizing loop in
// original_source/os-daq-modules/daq_dpdk.c's create_instance/
// dpdk_daq_initialize.
package devstring

import (
	"strconv"
	"strings"

	"github.com/tbarbette/dpdk-daq/daqerr"
)

// IFNAMSIZ bounds a single token's length, matching the host
// framework's interface-name buffer size.
const IFNAMSIZ = 16

// Mode selects whether the device string must describe bridged pairs.
type Mode int

const (
	// Passive is tap-only operation; tokens need not pair up.
	Passive Mode = iota
	// Inline is bridged forwarding; tokens must come in pairs.
	Inline
)

// Token is one parsed interface specification: a physical port and the
// receive/transmit queue id to bind to on that port.
type Token struct {
	Port  int
	Queue int
}

const op = "devstring.Parse"

// Parse tokenizes device on ':' and validates the grammar. A leading
// or trailing colon is always invalid. In Inline mode, an empty token
// (consecutive colons) is invalid because inline pairing requires
// every token to have a partner, and an odd number of parsed tokens is
// an error (unpaired tail). In Passive mode, empty tokens are simply
// skipped, matching the teacher's tokenizing loop.
func Parse(device string, mode Mode) ([]Token, error) {
	if device == "" {
		return nil, daqerr.New(daqerr.Inval, op, "empty interface specification")
	}
	if strings.HasPrefix(device, ":") || strings.HasSuffix(device, ":") {
		return nil, daqerr.New(daqerr.Inval, op, "invalid interface specification: %q", device)
	}
	if mode == Inline && strings.Contains(device, "::") {
		return nil, daqerr.New(daqerr.Inval, op, "invalid interface specification: %q", device)
	}

	var tokens []Token
	for _, raw := range strings.Split(device, ":") {
		if raw == "" {
			continue
		}
		if len(raw) >= IFNAMSIZ {
			return nil, daqerr.New(daqerr.Inval, op, "interface name too long (%d): %q", len(raw), raw)
		}
		tok, err := parseToken(raw)
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, tok)
	}

	if len(tokens) == 0 {
		return nil, daqerr.New(daqerr.Inval, op, "invalid interface specification: %q", device)
	}

	if mode == Inline && len(tokens)%2 != 0 {
		return nil, daqerr.New(daqerr.Inval, op, "invalid interface specification (unpaired interface): %q", device)
	}

	return tokens, nil
}

func parseToken(raw string) (Token, error) {
	const prefix = "dpdk"
	if !strings.HasPrefix(raw, prefix) {
		return Token{}, daqerr.New(daqerr.Inval, op, "invalid interface specification: %q", raw)
	}

	rest := raw[len(prefix):]
	portStr, queueStr := rest, ""
	if idx := strings.IndexByte(rest, '-'); idx >= 0 {
		portStr, queueStr = rest[:idx], rest[idx+1:]
		if queueStr == "" {
			return Token{}, daqerr.New(daqerr.Inval, op, "invalid interface specification: %q", raw)
		}
	}

	port, err := strconv.Atoi(portStr)
	if err != nil || port < 0 {
		return Token{}, daqerr.New(daqerr.Inval, op, "invalid interface specification: %q", raw)
	}

	queue := 0
	if queueStr != "" {
		queue, err = strconv.Atoi(queueStr)
		if err != nil || queue < 0 {
			return Token{}, daqerr.New(daqerr.Inval, op, "invalid interface specification: %q", raw)
		}
	}

	return Token{Port: port, Queue: queue}, nil
}
