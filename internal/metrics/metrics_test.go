package metrics

import (
	"context"
	"testing"

	dto "github.com/prometheus/client_model/go"
)

func TestNew(t *testing.T) {
	m := New()
	if m == nil {
		t.Fatal("New() returned nil")
	}
	if m.Registry() == nil {
		t.Error("Registry() returned nil")
	}
	if m.DomainConnectTotal == nil {
		t.Error("DomainConnectTotal is nil")
	}
	if m.DomainVerifyTotal == nil {
		t.Error("DomainVerifyTotal is nil")
	}
	if m.DomainRemoveTotal == nil {
		t.Error("DomainRemoveTotal is nil")
	}
	if m.DomainsByStatus == nil {
		t.Error("DomainsByStatus is nil")
	}
	if m.DNSCheckDurationSeconds == nil {
		t.Error("DNSCheckDurationSeconds is nil")
	}
	if m.APIRequestsTotal == nil {
		t.Error("APIRequestsTotal is nil")
	}
}

func TestGlobalMetrics(t *testing.T) {
	if Global() != nil {
		t.Error("Global() should be nil before SetGlobal")
	}

	m := New()
	SetGlobal(m)

	if Global() != m {
		t.Error("Global() did not return the set metrics")
	}

	SetGlobal(nil)
}

func TestIncConnect(t *testing.T) {
	m := New()
	SetGlobal(m)
	defer SetGlobal(nil)

	IncConnect("success")
	IncConnect("success")
	IncConnect("conflict")

	counter, err := m.DomainConnectTotal.GetMetricWithLabelValues("success")
	if err != nil {
		t.Fatalf("Failed to get counter: %v", err)
	}

	var metric dto.Metric
	if err := counter.Write(&metric); err != nil {
		t.Fatalf("Failed to write metric: %v", err)
	}
	if got := metric.GetCounter().GetValue(); got != 2 {
		t.Errorf("connect success counter = %v, want 2", got)
	}
}

func TestGlobalNilSafe(t *testing.T) {
	SetGlobal(nil)

	// Must not panic without a global instance
	IncConnect("success")
	IncVerify("verified")
	IncRemove("success")
	ObserveDNSCheck(0.25)
	IncDNSLookupError("A")
}

type staticCounts map[string]int

func (s staticCounts) CountByStatus(ctx context.Context) (map[string]int, error) {
	return s, nil
}

func TestCollectorRefresh(t *testing.T) {
	m := New()
	c := NewCollector(m, staticCounts{"pending_dns": 3, "verified": 1}, 0)

	c.refresh(context.Background())

	gauge, err := m.DomainsByStatus.GetMetricWithLabelValues("pending_dns")
	if err != nil {
		t.Fatalf("Failed to get gauge: %v", err)
	}
	var metric dto.Metric
	if err := gauge.Write(&metric); err != nil {
		t.Fatalf("Failed to write metric: %v", err)
	}
	if got := metric.GetGauge().GetValue(); got != 3 {
		t.Errorf("pending_dns gauge = %v, want 3", got)
	}
}
