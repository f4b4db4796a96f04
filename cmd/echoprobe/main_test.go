package main

import (
	"bytes"
	"errors"
	"net/netip"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/postalsys/echoprobe/internal/icmp"
	"github.com/postalsys/echoprobe/internal/probe"
)

func TestParseAddress(t *testing.T) {
	tests := []struct {
		input   string
		want    string
		wantErr bool
	}{
		{input: "192.0.2.7", want: "192.0.2.7"},
		{input: "2001:db8::1", want: "2001:db8::1"},
		{input: "[2001:db8::1]", want: "2001:db8::1"},
		{input: "fe80::1%eth0", want: "fe80::1%eth0"},
		{input: "example.com", wantErr: true},
		{input: "192.0.2.7:80", wantErr: true},
		{input: "", wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.input, func(t *testing.T) {
			addr, err := parseAddress(tc.input)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("parseAddress(%q) = %s, want error", tc.input, addr)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseAddress(%q) error = %v", tc.input, err)
			}
			if addr.String() != tc.want {
				t.Errorf("parseAddress(%q) = %s, want %s", tc.input, addr, tc.want)
			}
		})
	}
}

func TestLoadSettings_Defaults(t *testing.T) {
	var f pingFlags
	cmd := newPingCmd(&f)
	if err := cmd.ParseFlags(nil); err != nil {
		t.Fatalf("ParseFlags() error = %v", err)
	}

	cfg, err := loadSettings(cmd, &f)
	if err != nil {
		t.Fatalf("loadSettings() error = %v", err)
	}
	if cfg.Probe.TTL != probe.DefaultTTL || cfg.Probe.Timeout != probe.DefaultTimeout {
		t.Errorf("probe settings = %+v, want defaults", cfg.Probe)
	}
	if cfg.Run.Count != 1 {
		t.Errorf("Run.Count = %d, want 1", cfg.Run.Count)
	}
}

func TestLoadSettings_FlagsOverrideConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "echoprobe.yaml")
	content := `
probe:
  ttl: 10
  timeout: 2s
run:
  count: 3
  interval: 50ms
logging:
  level: debug
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	var f pingFlags
	cmd := newPingCmd(&f)
	err := cmd.ParseFlags([]string{"--config", path, "--ttl", "166", "--payload-byte", "7", "--seq", "5"})
	if err != nil {
		t.Fatalf("ParseFlags() error = %v", err)
	}

	cfg, err := loadSettings(cmd, &f)
	if err != nil {
		t.Fatalf("loadSettings() error = %v", err)
	}

	// Flags win
	if cfg.Probe.TTL != 166 {
		t.Errorf("Probe.TTL = %d, want 166", cfg.Probe.TTL)
	}
	if cfg.Probe.Sequence != 5 {
		t.Errorf("Probe.Sequence = %d, want 5", cfg.Probe.Sequence)
	}
	// File values survive where no flag was given
	if cfg.Probe.Timeout != 2*time.Second {
		t.Errorf("Probe.Timeout = %v, want 2s", cfg.Probe.Timeout)
	}
	if cfg.Run.Count != 3 || cfg.Run.Interval != 50*time.Millisecond {
		t.Errorf("Run = %+v, want count 3 every 50ms", cfg.Run)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %s, want debug", cfg.Logging.Level)
	}

	tok, err := cfg.Probe.Token()
	if err != nil {
		t.Fatalf("Token() error = %v", err)
	}
	for i, b := range tok {
		if b != 7 {
			t.Fatalf("token[%d] = %d, want 7", i, b)
		}
	}
}

func TestLoadSettings_Invalid(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"ttl", []string{"--ttl", "0"}, "probe.ttl"},
		{"count", []string{"--count", "0"}, "run.count"},
		{"payload", []string{"--payload", "nothex"}, "probe.payload"},
		{"log level", []string{"--log-level", "loud"}, "logging.level"},
		{"missing config", []string{"--config", "/nonexistent/echoprobe.yaml"}, "failed to load config"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var f pingFlags
			cmd := newPingCmd(&f)
			if err := cmd.ParseFlags(tc.args); err != nil {
				t.Fatalf("ParseFlags() error = %v", err)
			}

			_, err := loadSettings(cmd, &f)
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Errorf("loadSettings() error = %v, want to mention %q", err, tc.want)
			}
		})
	}
}

func TestPayloadFlagsAreExclusive(t *testing.T) {
	cmd := newPingCmd(&pingFlags{})
	if err := cmd.ParseFlags([]string{"--payload", "aa", "--payload-byte", "1"}); err != nil {
		t.Fatalf("ParseFlags() error = %v", err)
	}
	if err := cmd.ValidateFlagGroups(); err == nil {
		t.Error("--payload and --payload-byte together should be rejected")
	}
}

func TestProbeOptions(t *testing.T) {
	var f pingFlags
	cmd := newPingCmd(&f)
	if err := cmd.ParseFlags([]string{"--seq", "65535"}); err != nil {
		t.Fatalf("ParseFlags() error = %v", err)
	}
	cfg, err := loadSettings(cmd, &f)
	if err != nil {
		t.Fatalf("loadSettings() error = %v", err)
	}

	var tok icmp.Token
	first := probeOptions(cmd, &f, cfg, tok, 0)
	second := probeOptions(cmd, &f, cfg, tok, 1)

	if *first.Sequence != 65535 || *second.Sequence != 0 {
		t.Errorf("sequences = %d, %d, want 65535, 0", *first.Sequence, *second.Sequence)
	}
	if first.Identifier != nil {
		t.Errorf("Identifier = %d, want allocator default", *first.Identifier)
	}

	if err := cmd.ParseFlags([]string{"--id", "3"}); err != nil {
		t.Fatalf("ParseFlags() error = %v", err)
	}
	if opts := probeOptions(cmd, &f, cfg, tok, 0); opts.Identifier == nil || *opts.Identifier != 3 {
		t.Errorf("Identifier = %v, want 3", opts.Identifier)
	}
}

func TestSummary(t *testing.T) {
	var s summary
	s.add(&probe.Result{RTT: 4 * time.Millisecond, Bytes: 32, Discarded: 1})
	s.add(nil)
	s.add(&probe.Result{RTT: 2 * time.Millisecond, Bytes: 32})
	s.add(&probe.Result{RTT: 9 * time.Millisecond, Bytes: 32})

	if s.sent != 4 || s.received != 3 {
		t.Errorf("sent/received = %d/%d, want 4/3", s.sent, s.received)
	}
	if s.loss() != 25 {
		t.Errorf("loss() = %v, want 25", s.loss())
	}
	if s.min != 2*time.Millisecond || s.max != 9*time.Millisecond {
		t.Errorf("min/max = %v/%v, want 2ms/9ms", s.min, s.max)
	}
	if s.avg() != 5*time.Millisecond {
		t.Errorf("avg() = %v, want 5ms", s.avg())
	}
	if s.bytes != 96 || s.discarded != 1 {
		t.Errorf("bytes/discarded = %d/%d, want 96/1", s.bytes, s.discarded)
	}

	var empty summary
	if empty.loss() != 0 || empty.avg() != 0 {
		t.Error("empty summary should report zero loss and rtt")
	}
}

func TestPrinter(t *testing.T) {
	var buf bytes.Buffer
	p := newPrinter(&buf)
	if p.styled {
		t.Fatal("printer to a buffer should not be styled")
	}

	addr := netip.MustParseAddr("192.0.2.7")
	p.reply(&probe.Result{From: addr, ID: 3, Seq: 5, TTL: 57, Bytes: 32, RTT: 12 * time.Millisecond})
	p.failure(addr, 6, &probe.ProbeError{Op: "recv", Addr: addr, Err: probe.ErrTimeout})

	var s summary
	s.add(&probe.Result{RTT: 12 * time.Millisecond, Bytes: 32})
	s.add(nil)
	p.summary(addr, &s)

	out := buf.String()
	for _, want := range []string{
		"32 B from 192.0.2.7: id=3 seq=5 ttl=57 time=12.000ms",
		"192.0.2.7 seq=6: No echo reply before the timeout",
		"2 sent, 1 received, 50.0% loss, 32 B received",
		"rtt min/avg/max = 12.000ms/12.000ms/12.000ms",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestVersionCmd(t *testing.T) {
	var buf bytes.Buffer
	cmd := versionCmd()
	cmd.SetOut(&buf)
	cmd.SetArgs([]string{})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if got := buf.String(); got != "echoprobe "+Version+"\n" {
		t.Errorf("output = %q", got)
	}
}

func TestPingCmd_RejectsHostnames(t *testing.T) {
	cmd := pingCmd()
	cmd.SetArgs([]string{"example.com"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})

	err := cmd.Execute()
	if err == nil || !strings.Contains(err.Error(), "literal") {
		t.Errorf("Execute() error = %v, want literal address error", err)
	}
	if errors.Is(err, probe.ErrTransport) {
		t.Error("no probe should have been attempted")
	}
}
