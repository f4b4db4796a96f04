//go:build unix

package probe

import (
	"errors"
	"net/netip"
	"os"
	"testing"
	"time"
)

// skipWithoutRawSockets skips tests that need root or CAP_NET_RAW.
func skipWithoutRawSockets(t *testing.T, err error) {
	t.Helper()
	if errors.Is(err, os.ErrPermission) || errors.Is(err, ErrUnsupported) {
		t.Skipf("raw ICMP sockets unavailable: %v", err)
	}
}

func TestPing_Loopback(t *testing.T) {
	seq := uint16(5)
	id := uint16(3)

	res, err := Ping(netip.MustParseAddr("127.0.0.1"), Options{
		TTL:        166,
		Identifier: &id,
		Sequence:   &seq,
		Payload:    token(7),
	})
	skipWithoutRawSockets(t, err)
	if err != nil {
		t.Fatalf("Ping(127.0.0.1) error = %v", err)
	}

	if res.ID != id || res.Seq != seq {
		t.Errorf("id/seq = %d/%d, want %d/%d", res.ID, res.Seq, id, seq)
	}
	if res.From != netip.MustParseAddr("127.0.0.1") {
		t.Errorf("From = %s, want 127.0.0.1", res.From)
	}
	if res.RTT <= 0 || res.RTT > DefaultTimeout {
		t.Errorf("RTT = %v out of range", res.RTT)
	}
}

func TestPing_UnreachableTimesOut(t *testing.T) {
	if testing.Short() {
		t.Skip("waits for the full timeout")
	}

	// TEST-NET-1 never answers
	start := time.Now()
	_, err := Ping(netip.MustParseAddr("192.0.2.1"), Options{Timeout: time.Second})
	skipWithoutRawSockets(t, err)
	if errors.Is(err, ErrTransport) {
		t.Skipf("no route to TEST-NET-1: %v", err)
	}

	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("Ping(192.0.2.1) error = %v, want ErrTimeout", err)
	}
	if elapsed := time.Since(start); elapsed < 900*time.Millisecond {
		t.Errorf("timed out after %v, want about 1s", elapsed)
	}
}
