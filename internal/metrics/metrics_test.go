package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewMetrics(t *testing.T) {
	// Create a new registry for isolated testing
	reg := prometheus.NewRegistry()
	m := NewMetricsWithRegistry(reg)

	if m == nil {
		t.Fatal("NewMetricsWithRegistry returned nil")
	}
	if m.ProbesTotal == nil {
		t.Error("ProbesTotal metric is nil")
	}
	if m.ProbeRTT == nil {
		t.Error("ProbeRTT metric is nil")
	}
	if m.DatagramsDiscarded == nil {
		t.Error("DatagramsDiscarded metric is nil")
	}
}

func TestRecordProbe(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetricsWithRegistry(reg)
	m.now = func() time.Time { return time.Unix(1700000000, 0) }

	m.RecordProbe("icmp4", "success", 0.002)
	m.RecordProbe("icmp4", "success", 0.004)
	m.RecordProbe("icmp4", "timeout", 0)
	m.RecordProbe("icmp6", "transport", 0)

	if got := testutil.ToFloat64(m.ProbesTotal.WithLabelValues("icmp4", "success")); got != 2 {
		t.Errorf("ProbesTotal[icmp4,success] = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.ProbesTotal.WithLabelValues("icmp4", "timeout")); got != 1 {
		t.Errorf("ProbesTotal[icmp4,timeout] = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.ProbesTotal.WithLabelValues("icmp6", "transport")); got != 1 {
		t.Errorf("ProbesTotal[icmp6,transport] = %v, want 1", got)
	}

	// Only successful probes are observed
	if got := testutil.CollectAndCount(m.ProbeRTT); got != 1 {
		t.Errorf("ProbeRTT series = %d, want 1", got)
	}
	if got := testutil.ToFloat64(m.LastRTT.WithLabelValues("icmp4")); got != 0.004 {
		t.Errorf("LastRTT[icmp4] = %v, want 0.004", got)
	}
	if got := testutil.ToFloat64(m.LastProbeTime.WithLabelValues("icmp6")); got != 1700000000 {
		t.Errorf("LastProbeTime[icmp6] = %v, want 1700000000", got)
	}
}

func TestRecordDiscard(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetricsWithRegistry(reg)

	m.RecordDiscard("icmp4", "foreign")
	m.RecordDiscard("icmp4", "not_reply")
	m.RecordDiscard("icmp4", "foreign")

	if got := testutil.ToFloat64(m.DatagramsDiscarded.WithLabelValues("icmp4", "foreign")); got != 2 {
		t.Errorf("DatagramsDiscarded[foreign] = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.DatagramsDiscarded.WithLabelValues("icmp4", "not_reply")); got != 1 {
		t.Errorf("DatagramsDiscarded[not_reply] = %v, want 1", got)
	}
}

func TestWriteTextfile(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetricsWithRegistry(reg)
	m.RecordProbe("icmp4", "success", 0.001)

	path := filepath.Join(t.TempDir(), "echoprobe.prom")
	if err := m.WriteTextfile(path); err != nil {
		t.Fatalf("WriteTextfile() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	out := string(data)
	for _, want := range []string{
		`echoprobe_probes_total{family="icmp4",outcome="success"} 1`,
		`echoprobe_rtt_seconds_count{family="icmp4"} 1`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("textfile missing %q:\n%s", want, out)
		}
	}
}

func TestWriteTextfile_NotGatherable(t *testing.T) {
	m := NewMetricsWithRegistry(registererOnly{prometheus.NewRegistry()})

	if err := m.WriteTextfile(filepath.Join(t.TempDir(), "x.prom")); err == nil {
		t.Error("WriteTextfile() should fail without a gatherer")
	}
}

// registererOnly hides the Gatherer half of a registry.
type registererOnly struct {
	reg *prometheus.Registry
}

func (r registererOnly) Register(c prometheus.Collector) error  { return r.reg.Register(c) }
func (r registererOnly) MustRegister(cs ...prometheus.Collector) { r.reg.MustRegister(cs...) }
func (r registererOnly) Unregister(c prometheus.Collector) bool  { return r.reg.Unregister(c) }

func TestDefaultMetrics(t *testing.T) {
	m1 := Default()
	m2 := Default()

	if m1 != m2 {
		t.Error("Default() should return same instance")
	}

	if m1 == nil {
		t.Error("Default() returned nil")
	}
}
