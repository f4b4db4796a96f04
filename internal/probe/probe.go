// Package probe sends a single ICMP echo request to a host and validates the
// reply.
//
// Each call opens its own raw socket, sends one request, waits for the
// matching reply and closes the socket. There is no retransmission; callers
// that want retries call Ping again.
package probe

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/netip"
	"os"
	"time"

	"github.com/postalsys/echoprobe/internal/icmp"
	"github.com/postalsys/echoprobe/internal/logging"
)

const (
	// DefaultTimeout applies to both the send and the receive phase.
	DefaultTimeout = 4 * time.Second

	// DefaultTTL is the IPv4 TTL / IPv6 hop limit of outgoing requests.
	DefaultTTL = 64

	// DefaultSequence is the sequence number used when none is given.
	DefaultSequence = 1

	// recvBufferSize exceeds any echo reply plus IPv4 header we expect.
	recvBufferSize = 2048
)

// Options configures a single probe. Zero values select the defaults.
type Options struct {
	// Timeout for sending and for waiting on the reply (default: 4s).
	Timeout time.Duration

	// TTL of the request (default: 64).
	TTL int

	// Identifier overrides the prober's identifier allocator.
	Identifier *uint16

	// Sequence number of the request (default: 1).
	Sequence *uint16

	// Payload echoed by the target (default: all zero).
	Payload *icmp.Token
}

// Result describes a successful probe.
type Result struct {
	// Addr is the probed address
	Addr netip.Addr

	// From is the source address of the reply
	From netip.Addr

	Family icmp.Family
	ID     uint16
	Seq    uint16

	// Payload is a copy of the echoed payload
	Payload []byte

	// TTL of the reply datagram (IPv4 only, 0 otherwise)
	TTL int

	// Bytes is the size of the reply's ICMP segment
	Bytes int

	// RTT is measured from just before the send to just after the reply was read
	RTT time.Duration

	// Discarded counts unrelated ICMP datagrams skipped while waiting
	Discarded int
}

// Recorder receives probe outcomes. *metrics.Metrics implements it.
type Recorder interface {
	RecordProbe(family, outcome string, rttSeconds float64)
	RecordDiscard(family, reason string)
}

type nopRecorder struct{}

func (nopRecorder) RecordProbe(string, string, float64) {}
func (nopRecorder) RecordDiscard(string, string)        {}

// Prober issues echo probes. A Prober is not safe for concurrent use unless
// its allocator is.
type Prober struct {
	alloc    IdentifierAllocator
	open     SocketFactory
	logger   *slog.Logger
	recorder Recorder
	now      func() time.Time
}

// ProberOption customises a Prober.
type ProberOption func(*Prober)

// WithAllocator sets the identifier allocator.
func WithAllocator(a IdentifierAllocator) ProberOption {
	return func(p *Prober) { p.alloc = a }
}

// WithSocketFactory replaces the raw socket constructor.
func WithSocketFactory(f SocketFactory) ProberOption {
	return func(p *Prober) { p.open = f }
}

// WithLogger sets the logger used for debug output.
func WithLogger(l *slog.Logger) ProberOption {
	return func(p *Prober) { p.logger = l }
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r Recorder) ProberOption {
	return func(p *Prober) { p.recorder = r }
}

// WithClock replaces time.Now for RTT and deadline computation.
func WithClock(now func() time.Time) ProberOption {
	return func(p *Prober) { p.now = now }
}

// New creates a Prober. Without options it uses a Counter starting at zero,
// privileged raw sockets and discards logs and metrics.
func New(opts ...ProberOption) *Prober {
	p := &Prober{
		alloc:    NewCounter(0),
		open:     OpenRawSocket,
		logger:   logging.NopLogger(),
		recorder: nopRecorder{},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.With(logging.KeyComponent, "probe")
	return p
}

var defaultProber = New(WithAllocator(&lockedAllocator{alloc: NewCounter(0)}))

// Ping probes addr with the package default Prober.
func Ping(addr netip.Addr, opts Options) (*Result, error) {
	return defaultProber.Ping(addr, opts)
}

// Ping sends one echo request to addr and waits for the matching reply.
//
// Unrelated ICMP traffic seen by the raw socket (other message types, replies
// to other identifiers or sequences) is skipped until the timeout expires.
// A reply carrying our identifier and sequence but a different payload fails
// with ErrReplyMismatch.
func (p *Prober) Ping(addr netip.Addr, opts Options) (*Result, error) {
	family := icmp.FamilyOf(addr)
	if family == icmp.FamilyV4 {
		addr = addr.Unmap()
	}

	res, err := p.ping(addr, family, opts)

	rtt := 0.0
	if res != nil {
		rtt = res.RTT.Seconds()
	}
	p.recorder.RecordProbe(family.String(), Outcome(err), rtt)

	if err != nil {
		p.logger.Debug("probe failed", logging.KeyAddress, addr, logging.KeyError, err)
		return nil, err
	}
	return res, nil
}

func (p *Prober) ping(addr netip.Addr, family icmp.Family, opts Options) (*Result, error) {
	// Set defaults
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	var token icmp.Token
	if opts.Payload != nil {
		token = *opts.Payload
	}

	req := icmp.EchoRequest{Seq: DefaultSequence, Payload: token[:]}
	if opts.Identifier != nil {
		req.ID = *opts.Identifier
	} else {
		req.ID = p.alloc.Allocate()
	}
	if opts.Sequence != nil {
		req.Seq = *opts.Sequence
	}

	fail := func(op string, err error) (*Result, error) {
		return nil, &ProbeError{Op: op, Addr: addr, Err: err}
	}

	if !addr.IsValid() {
		return fail("socket", fmt.Errorf("%w: invalid address", ErrTransport))
	}

	// Open socket
	sock, err := p.open(family)
	if err != nil {
		if errors.Is(err, ErrUnsupported) {
			return fail("socket", err)
		}
		return fail("socket", fmt.Errorf("%w: %w", ErrTransport, err))
	}
	defer sock.Close()

	// Encode request
	var sendBuf [icmp.HeaderSize + icmp.TokenSize]byte
	n, err := req.Encode(family, sendBuf[:])
	if err != nil {
		return fail("encode", fmt.Errorf("%w: %w", ErrInternal, err))
	}

	// Send
	if err := sock.SetTTL(opts.TTL); err != nil {
		return fail("setsockopt", fmt.Errorf("%w: %w", ErrTransport, err))
	}
	if err := sock.SetWriteTimeout(opts.Timeout); err != nil {
		return fail("setsockopt", fmt.Errorf("%w: %w", ErrTransport, err))
	}

	start := p.now()
	if err := sock.SendTo(sendBuf[:n], addr); err != nil {
		return fail("send", transportError(err))
	}

	p.logger.Debug("echo request sent",
		logging.KeyAddress, addr,
		logging.KeyFamily, family.String(),
		logging.KeyIdentifier, req.ID,
		logging.KeySequence, req.Seq,
		logging.KeyTTL, opts.TTL,
		logging.KeyBytes, n,
	)

	// Receive until the matching reply or the deadline
	deadline := start.Add(opts.Timeout)
	var recvBuf [recvBufferSize]byte
	discarded := 0

	for {
		remaining := deadline.Sub(p.now())
		if remaining <= 0 {
			return fail("recv", ErrTimeout)
		}
		if err := sock.SetReadTimeout(remaining); err != nil {
			return fail("setsockopt", fmt.Errorf("%w: %w", ErrTransport, err))
		}

		nr, from, err := sock.RecvFrom(recvBuf[:])
		if err != nil {
			return fail("recv", transportError(err))
		}
		received := p.now()
		datagram := recvBuf[:nr]

		segment, ttl, err := icmpSegment(family, datagram)
		if err != nil {
			p.recorder.RecordDiscard(family.String(), decodeReason(err))
			return fail("decode", fmt.Errorf("%w: %w", ErrDecode, err))
		}

		reply, err := icmp.DecodeEchoReply(family, segment)
		if errors.Is(err, icmp.ErrUnexpectedType) || errors.Is(err, icmp.ErrUnexpectedCode) {
			discarded++
			p.discard(family, "not_reply", from, datagram)
			continue
		}
		if err != nil {
			p.recorder.RecordDiscard(family.String(), decodeReason(err))
			return fail("decode", fmt.Errorf("%w: %w", ErrDecode, err))
		}

		if reply.ID != req.ID || reply.Seq != req.Seq {
			discarded++
			p.discard(family, "foreign", from, datagram)
			continue
		}

		if !bytes.Equal(reply.Payload, req.Payload) {
			return fail("correlate", fmt.Errorf("%w: payload % x, want % x", ErrReplyMismatch, reply.Payload, req.Payload))
		}

		res := &Result{
			Addr:      addr,
			From:      from,
			Family:    family,
			ID:        reply.ID,
			Seq:       reply.Seq,
			Payload:   append([]byte(nil), reply.Payload...),
			TTL:       ttl,
			Bytes:     len(segment),
			RTT:       received.Sub(start),
			Discarded: discarded,
		}

		p.logger.Debug("echo reply received",
			logging.KeyAddress, from,
			logging.KeyIdentifier, reply.ID,
			logging.KeySequence, reply.Seq,
			logging.KeyTTL, ttl,
			logging.KeyBytes, len(segment),
			logging.KeyRTT, res.RTT,
		)
		return res, nil
	}
}

// icmpSegment strips the IPv4 envelope when present and returns the ICMP
// segment with the datagram's TTL.
func icmpSegment(family icmp.Family, datagram []byte) ([]byte, int, error) {
	if family == icmp.FamilyV6 {
		return datagram, 0, nil
	}
	pkt, err := icmp.DecodeIPv4Packet(datagram)
	if err != nil {
		return nil, 0, err
	}
	return pkt.Data, int(pkt.TTL), nil
}

func (p *Prober) discard(family icmp.Family, reason string, from netip.Addr, datagram []byte) {
	p.recorder.RecordDiscard(family.String(), reason)
	if p.logger.Enabled(context.Background(), slog.LevelDebug) {
		p.logger.Debug("discarded datagram",
			logging.KeyAddress, from,
			"reason", reason,
			"packet", dissect(family, datagram),
		)
	}
}

// transportError classifies socket I/O failures, separating deadline expiry.
func transportError(err error) error {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %w", ErrTransport, err)
}
