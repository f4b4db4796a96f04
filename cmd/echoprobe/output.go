package main

import (
	"fmt"
	"io"
	"net/netip"
	"os"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"golang.org/x/term"

	"github.com/postalsys/echoprobe/internal/probe"
)

// summary accumulates per-run statistics.
type summary struct {
	sent      int
	received  int
	discarded int
	bytes     uint64
	min, max  time.Duration
	total     time.Duration
}

// add records one probe. A nil result counts as lost.
func (s *summary) add(res *probe.Result) {
	s.sent++
	if res == nil {
		return
	}

	s.received++
	s.discarded += res.Discarded
	s.bytes += uint64(res.Bytes)
	s.total += res.RTT
	if s.received == 1 || res.RTT < s.min {
		s.min = res.RTT
	}
	if res.RTT > s.max {
		s.max = res.RTT
	}
}

func (s *summary) loss() float64 {
	if s.sent == 0 {
		return 0
	}
	return float64(s.sent-s.received) * 100 / float64(s.sent)
}

func (s *summary) avg() time.Duration {
	if s.received == 0 {
		return 0
	}
	return s.total / time.Duration(s.received)
}

// printer renders results, styled only when writing to a terminal.
type printer struct {
	w      io.Writer
	styled bool

	ok   lipgloss.Style
	fail lipgloss.Style
	dim  lipgloss.Style
}

func newPrinter(w io.Writer) *printer {
	styled := false
	if f, ok := w.(*os.File); ok {
		styled = term.IsTerminal(int(f.Fd()))
	}

	return &printer{
		w:      w,
		styled: styled,
		ok:     lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		fail:   lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),
		dim:    lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
	}
}

func (p *printer) render(style lipgloss.Style, s string) string {
	if !p.styled {
		return s
	}
	return style.Render(s)
}

func (p *printer) header(addr netip.Addr, ttl int) {
	fmt.Fprintln(p.w, p.render(p.dim, fmt.Sprintf("ECHO %s: ttl=%d", addr, ttl)))
}

func (p *printer) reply(res *probe.Result) {
	line := fmt.Sprintf("%s from %s: id=%d seq=%d", humanize.Bytes(uint64(res.Bytes)), res.From, res.ID, res.Seq)
	if res.TTL > 0 {
		line += fmt.Sprintf(" ttl=%d", res.TTL)
	}
	line += " time=" + formatRTT(res.RTT)
	fmt.Fprintln(p.w, p.render(p.ok, line))
}

func (p *printer) failure(addr netip.Addr, seq uint16, err error) {
	line := fmt.Sprintf("%s seq=%d: %s", addr, seq, probe.Describe(err))
	fmt.Fprintln(p.w, p.render(p.fail, line))
}

func (p *printer) summary(addr netip.Addr, s *summary) {
	fmt.Fprintln(p.w)
	fmt.Fprintln(p.w, p.render(p.dim, fmt.Sprintf("--- %s echoprobe statistics ---", addr)))
	fmt.Fprintf(p.w, "%d sent, %d received, %.1f%% loss, %s received\n",
		s.sent, s.received, s.loss(), humanize.Bytes(s.bytes))
	if s.received > 0 {
		fmt.Fprintf(p.w, "rtt min/avg/max = %s/%s/%s\n", formatRTT(s.min), formatRTT(s.avg()), formatRTT(s.max))
	}
	if s.discarded > 0 {
		fmt.Fprintf(p.w, "%s unrelated ICMP datagrams ignored\n", humanize.Comma(int64(s.discarded)))
	}
}

// formatRTT prints a duration in milliseconds with three decimals.
func formatRTT(d time.Duration) string {
	return fmt.Sprintf("%.3fms", float64(d)/float64(time.Millisecond))
}
