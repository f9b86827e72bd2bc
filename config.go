package dpdk

import "github.com/tbarbette/dpdk-daq/devstring"

// config holds the options accumulated by Option values.
type config struct {
	device    string
	dpdkArgs  []string
	mode      devstring.Mode
	snaplen   int
	timeoutMs int
	promisc   bool
	debug     bool
}

// Option configures a Context at construction time, in the teacher's
// functional-options idiom (snf.HandlerOption/OpenHandle).
type Option struct {
	f func(*config)
}

// WithDevice sets the device specification string parsed by
// devstring.Parse (spec.md §4.1). Required.
func WithDevice(device string) Option {
	return Option{func(c *config) { c.device = device }}
}

// WithMode selects passive tap or inline bridged operation.
func WithMode(mode devstring.Mode) Option {
	return Option{func(c *config) { c.mode = mode }}
}

// WithDpdkArgs sets the whitespace-tokenized EAL initialization
// arguments (the `dpdk_args` configuration key, spec.md §6). Required;
// its absence is an INVAL at Initialize.
func WithDpdkArgs(args ...string) Option {
	return Option{func(c *config) { c.dpdkArgs = args }}
}

// WithSnaplen sets the maximum capture length reported by GetSnaplen.
func WithSnaplen(snaplen int) Option {
	return Option{func(c *config) { c.snaplen = snaplen }}
}

// WithTimeout sets the idle-exit timeout in milliseconds. A value
// ≤ 0 disables the idle-exit check (spec.md §6, §8 boundary behavior).
func WithTimeout(timeoutMs int) Option {
	return Option{func(c *config) { c.timeoutMs = timeoutMs }}
}

// WithPromisc enables promiscuous mode on every Port at start.
func WithPromisc() Option {
	return Option{func(c *config) { c.promisc = true }}
}

// WithDebug enables verbose lifecycle/diagnostic logging.
func WithDebug() Option {
	return Option{func(c *config) { c.debug = true }}
}
