package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"
)

func TestNewRegistry(t *testing.T) {
	r := NewRegistry()
	if r.RunsTotal == nil || r.PhaseDuration == nil || r.SessionsTotal == nil {
		t.Fatal("metrics not initialized")
	}
	if r.registry == nil {
		t.Error("Prometheus registry not initialized")
	}
}

func TestDefaultRegistry(t *testing.T) {
	if DefaultRegistry() != DefaultRegistry() {
		t.Error("DefaultRegistry() should return the same instance")
	}
}

func TestRecordSession(t *testing.T) {
	r := NewRegistry()
	r.RecordSession("bgp", "HALF_OPEN")
	r.RecordSession("bgp", "HALF_OPEN")
	r.RecordSession("ospf", "UNIQUE_MATCH")

	counter, err := r.SessionsTotal.GetMetricWithLabelValues("bgp", "HALF_OPEN")
	if err != nil {
		t.Fatalf("Failed to get metric: %v", err)
	}
	var metric dto.Metric
	if err := counter.Write(&metric); err != nil {
		t.Fatalf("Failed to write metric: %v", err)
	}
	if metric.Counter.GetValue() != 2 {
		t.Errorf("Counter value = %v, want 2", metric.Counter.GetValue())
	}
}

func TestRecordRunAndSizes(t *testing.T) {
	r := NewRegistry()
	now := time.Unix(1700000000, 0)
	r.RecordRun("success", now)
	r.RecordRun("error", now.Add(time.Hour))
	r.SetSizes(12, 34)
	r.RecordPhase("ownership", 5*time.Millisecond)

	var metric dto.Metric
	if err := r.LastRunTimestamp.Write(&metric); err != nil {
		t.Fatalf("Failed to write metric: %v", err)
	}
	if metric.Gauge.GetValue() != 1700000000 {
		t.Errorf("LastRunTimestamp = %v, want 1700000000 (error runs do not update it)", metric.Gauge.GetValue())
	}

	families, err := r.Gatherer().Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	names := make(map[string]bool)
	for _, mf := range families {
		names[mf.GetName()] = true
	}
	for _, want := range []string{
		"sessioncheck_runs_total",
		"sessioncheck_phase_duration_seconds",
		"sessioncheck_owned_addresses",
		"sessioncheck_declarations",
	} {
		if !names[want] {
			t.Errorf("Gather() missing %s", want)
		}
	}
}

func TestWriteTextfile(t *testing.T) {
	r := NewRegistry()
	r.SetSizes(3, 4)

	path := filepath.Join(t.TempDir(), "sessioncheck.prom")
	if err := r.WriteTextfile(path); err != nil {
		t.Fatalf("WriteTextfile() error = %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading textfile: %v", err)
	}
	if !strings.Contains(string(data), "sessioncheck_declarations 4") {
		t.Errorf("textfile missing declarations gauge:\n%s", data)
	}
}
