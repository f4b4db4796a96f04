// Package main provides the CLI entry point for echoprobe.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/postalsys/echoprobe/internal/config"
	"github.com/postalsys/echoprobe/internal/icmp"
	"github.com/postalsys/echoprobe/internal/logging"
	"github.com/postalsys/echoprobe/internal/metrics"
	"github.com/postalsys/echoprobe/internal/probe"
)

var (
	// Version is set at build time
	Version = "dev"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "echoprobe",
		Short: "echoprobe - ICMP echo reachability probe",
		Long: `echoprobe sends ICMP echo requests over raw sockets and validates
the replies. It needs root or CAP_NET_RAW.`,
		Version:       Version,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(pingCmd())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "echoprobe %s\n", Version)
		},
	}
}

type pingFlags struct {
	configPath  string
	timeout     time.Duration
	ttl         int
	id          uint16
	seq         uint16
	payload     string
	payloadByte uint8
	count       int
	interval    time.Duration
	logLevel    string
	logFormat   string
	metricsFile string
}

func pingCmd() *cobra.Command {
	return newPingCmd(&pingFlags{})
}

func newPingCmd(f *pingFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ping <address>",
		Short: "Probe a host with ICMP echo requests",
		Long: `Send one or more ICMP echo requests to a literal IPv4 or IPv6 address
and report each reply. Exits non-zero if any probe fails.`,
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, err := parseAddress(args[0])
			if err != nil {
				return err
			}

			cfg, err := loadSettings(cmd, f)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return runPing(ctx, cmd, addr, cfg, f)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&f.configPath, "config", "c", "", "Path to configuration file")
	flags.DurationVarP(&f.timeout, "timeout", "W", probe.DefaultTimeout, "Time to wait for each reply")
	flags.IntVarP(&f.ttl, "ttl", "t", probe.DefaultTTL, "IPv4 TTL / IPv6 hop limit")
	flags.Uint16Var(&f.id, "id", 0, "ICMP identifier (default: allocated per probe)")
	flags.Uint16Var(&f.seq, "seq", probe.DefaultSequence, "Sequence number of the first probe")
	flags.StringVarP(&f.payload, "payload", "p", "", "Payload as hex, up to 24 bytes, zero padded")
	flags.Uint8Var(&f.payloadByte, "payload-byte", 0, "Fill the 24 byte payload with this value")
	flags.IntVarP(&f.count, "count", "n", 1, "Number of probes to send")
	flags.DurationVarP(&f.interval, "interval", "i", time.Second, "Interval between probes")
	flags.StringVar(&f.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	flags.StringVar(&f.logFormat, "log-format", "text", "Log format (text, json)")
	flags.StringVar(&f.metricsFile, "metrics-file", "", "Write Prometheus metrics to this textfile when done")
	cmd.MarkFlagsMutuallyExclusive("payload", "payload-byte")

	return cmd
}

// parseAddress accepts a literal IP, optionally in brackets. Host names are
// not resolved.
func parseAddress(s string) (netip.Addr, error) {
	s = strings.TrimSuffix(strings.TrimPrefix(s, "["), "]")
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("invalid address %q: must be a literal IPv4 or IPv6 address", s)
	}
	return addr, nil
}

// loadSettings starts from the config file (or defaults) and applies the
// flags the user set explicitly.
func loadSettings(cmd *cobra.Command, f *pingFlags) (*config.Config, error) {
	cfg := config.Default()
	if f.configPath != "" {
		loaded, err := config.Load(f.configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("timeout") {
		cfg.Probe.Timeout = f.timeout
	}
	if flags.Changed("ttl") {
		cfg.Probe.TTL = f.ttl
	}
	if flags.Changed("seq") {
		cfg.Probe.Sequence = f.seq
	}
	if flags.Changed("payload") {
		cfg.Probe.Payload = f.payload
	}
	if flags.Changed("payload-byte") {
		cfg.Probe.Payload = strings.Repeat(fmt.Sprintf("%02x", f.payloadByte), icmp.TokenSize)
	}
	if flags.Changed("count") {
		cfg.Run.Count = f.count
	}
	if flags.Changed("interval") {
		cfg.Run.Interval = f.interval
	}
	if flags.Changed("log-level") {
		cfg.Logging.Level = f.logLevel
	}
	if flags.Changed("log-format") {
		cfg.Logging.Format = f.logFormat
	}
	if flags.Changed("metrics-file") {
		cfg.Metrics.Textfile = f.metricsFile
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// probeOptions builds the options for the probe with index i.
func probeOptions(cmd *cobra.Command, f *pingFlags, cfg *config.Config, token icmp.Token, i int) probe.Options {
	seq := cfg.Probe.Sequence + uint16(i)
	opts := probe.Options{
		Timeout:  cfg.Probe.Timeout,
		TTL:      cfg.Probe.TTL,
		Sequence: &seq,
		Payload:  &token,
	}
	if cmd.Flags().Changed("id") {
		id := f.id
		opts.Identifier = &id
	}
	return opts
}

func runPing(ctx context.Context, cmd *cobra.Command, addr netip.Addr, cfg *config.Config, f *pingFlags) error {
	logger := logging.NewLogger(cfg.Logging.Level, cfg.Logging.Format)

	token, err := cfg.Probe.Token()
	if err != nil {
		return err
	}

	proberOpts := []probe.ProberOption{
		probe.WithLogger(logger),
		probe.WithAllocator(probe.NewCounter(uint16(os.Getpid()))),
	}
	var m *metrics.Metrics
	if cfg.Metrics.Textfile != "" {
		m = metrics.NewMetricsWithRegistry(prometheus.NewRegistry())
		proberOpts = append(proberOpts, probe.WithRecorder(m))
	}
	prober := probe.New(proberOpts...)

	out := newPrinter(cmd.OutOrStdout())
	out.header(addr, cfg.Probe.TTL)

	limit := rate.Inf
	if cfg.Run.Interval > 0 {
		limit = rate.Every(cfg.Run.Interval)
	}
	limiter := rate.NewLimiter(limit, 1)

	var stats summary
	for i := 0; i < cfg.Run.Count; i++ {
		if err := limiter.Wait(ctx); err != nil {
			break
		}

		opts := probeOptions(cmd, f, cfg, token, i)
		res, err := prober.Ping(addr, opts)
		stats.add(res)
		if err != nil {
			logger.Warn("probe failed",
				logging.KeyAddress, addr,
				logging.KeySequence, *opts.Sequence,
				logging.KeyError, err,
			)
			out.failure(addr, *opts.Sequence, err)
			continue
		}
		out.reply(res)
	}

	out.summary(addr, &stats)

	if m != nil {
		if err := m.WriteTextfile(cfg.Metrics.Textfile); err != nil {
			logger.Error("failed to write metrics", logging.KeyPath, cfg.Metrics.Textfile, logging.KeyError, err)
		} else {
			logger.Debug("metrics written", logging.KeyPath, cfg.Metrics.Textfile)
		}
	}

	if stats.sent == 0 && errors.Is(ctx.Err(), context.Canceled) {
		return errors.New("interrupted before the first probe")
	}
	if lost := stats.sent - stats.received; lost > 0 {
		return fmt.Errorf("%d of %d probes failed", lost, stats.sent)
	}
	logger.Debug("all probes answered", logging.KeyCount, stats.received)
	return nil
}
