// Command dpdkdaq is a standalone harness around the dpdk package,
// modeled on the teacher's examples/sniffer: it opens a device string,
// optionally bridges pairs of interfaces, acquires frames, and logs the
// final statistics (verdict counts included) when the acquire loop
// returns. Unlike examples/sniffer's raw flag package, its
// flags are defined with cobra and it can load its settings from a
// YAML file instead of (or alongside) the command line.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tbarbette/dpdk-daq"
	"github.com/tbarbette/dpdk-daq/devstring"
	"github.com/tbarbette/dpdk-daq/stats"
	"github.com/tbarbette/dpdk-daq/verdict"
)

type flags struct {
	device      string
	mode        string
	filter      string
	count       int
	timeoutMs   int
	promisc     bool
	debug       bool
	config      string
	dpdkArgs    []string
	metricsAddr string
}

func main() {
	f := &flags{}

	root := &cobra.Command{
		Use:   "dpdkdaq",
		Short: "Acquire and bridge packets through the dpdk poll-mode engine",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), f)
		},
	}

	root.Flags().StringVarP(&f.device, "device", "i", "", "device string, e.g. dpdk0:dpdk1")
	root.Flags().StringVarP(&f.mode, "mode", "m", "passive", "passive or inline")
	root.Flags().StringVarP(&f.filter, "filter", "f", "", "BPF filter expression (requires a compiled-in Compiler)")
	root.Flags().IntVarP(&f.count, "count", "c", 0, "number of frames to acquire, 0 for unbounded")
	root.Flags().IntVarP(&f.timeoutMs, "timeout", "t", 1000, "idle timeout in milliseconds, 0 or negative to disable")
	root.Flags().BoolVar(&f.promisc, "promisc", false, "enable promiscuous mode")
	root.Flags().BoolVar(&f.debug, "debug", false, "enable debug logging")
	root.Flags().StringVar(&f.config, "config", "", "path to a YAML config file (flags override it)")
	root.Flags().StringArrayVar(&f.dpdkArgs, "dpdk-arg", nil, "EAL argument, repeatable (default: dpdkdaq)")
	root.Flags().StringVar(&f.metricsAddr, "metrics-addr", "", "if set, serve Prometheus metrics on this address")

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, f *flags) error {
	if f.config != "" {
		fc, err := loadFileConfig(f.config)
		if err != nil {
			return fmt.Errorf("loading config %s: %w", f.config, err)
		}
		applyFileConfig(f, fc)
	}
	if f.device == "" {
		return fmt.Errorf("a device string is required (-i/--device or config device:)")
	}

	logger, err := newLogger(f.debug)
	if err != nil {
		return fmt.Errorf("building logger: %w", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()

	mode := devstring.Passive
	if f.mode == "inline" {
		mode = devstring.Inline
	}

	dpdkArgs := f.dpdkArgs
	if len(dpdkArgs) == 0 {
		dpdkArgs = []string{"dpdkdaq"}
	}

	opts := []dpdk.Option{
		dpdk.WithDevice(f.device),
		dpdk.WithMode(mode),
		dpdk.WithDpdkArgs(dpdkArgs...),
		dpdk.WithTimeout(f.timeoutMs),
	}
	if f.promisc {
		opts = append(opts, dpdk.WithPromisc())
	}
	if f.debug {
		opts = append(opts, dpdk.WithDebug())
	}

	driver := newDriver(0)
	ctxMod, err := dpdk.New(driver, sugar, opts...)
	if err != nil {
		return fmt.Errorf("initializing: %w", err)
	}

	if f.filter != "" {
		sugar.Warnw("ignoring filter: no BPF compiler is linked into this binary", "filter", f.filter)
	}

	if err := ctxMod.Start(); err != nil {
		return fmt.Errorf("starting: %w", err)
	}

	if f.metricsAddr != "" {
		serveMetrics(ctxMod, f.device, f.metricsAddr, sugar)
	}

	go func() {
		<-ctx.Done()
		ctxMod.Breakloop()
	}()

	cb := func(_ interface{}, _ *dpdk.PacketHeader, _ []byte) verdict.Verdict {
		return verdict.Pass
	}

	n, err := ctxMod.Acquire(f.count, cb, nil, nil)
	if err != nil {
		return fmt.Errorf("acquiring: %w", err)
	}
	sugar.Infow("acquire loop finished", "delivered", n, "stats", ctxMod.GetStats())

	if err := ctxMod.Stop(); err != nil {
		return fmt.Errorf("stopping: %w", err)
	}
	return ctxMod.Shutdown()
}

func applyFileConfig(f *flags, fc *fileConfig) {
	if f.device == "" {
		f.device = fc.Device
	}
	if fc.Mode != "" && f.mode == "passive" {
		f.mode = fc.Mode
	}
	if f.filter == "" {
		f.filter = fc.Filter
	}
	if f.count == 0 {
		f.count = fc.Count
	}
	if f.timeoutMs == 1000 && fc.TimeoutMs != 0 {
		f.timeoutMs = fc.TimeoutMs
	}
	f.promisc = f.promisc || fc.Promisc
	f.debug = f.debug || fc.Debug
	if len(f.dpdkArgs) == 0 {
		f.dpdkArgs = fc.DpdkArgs
	}
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func serveMetrics(ctxMod *dpdk.Context, device, addr string, log *zap.SugaredLogger) {
	coll := stats.NewCollector(ctxMod, device)
	reg := prometheus.NewRegistry()
	reg.MustRegister(coll)
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Errorw("metrics server stopped", "err", err)
		}
	}()
}
