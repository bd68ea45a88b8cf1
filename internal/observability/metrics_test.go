package observability

import (
	"testing"
	"time"
)

func TestMetricsSnapshot(t *testing.T) {
	m := NewMetrics()
	m.RecordRequest("/appointments", "POST", 201, 4*time.Millisecond)
	m.RecordRequest("/appointments", "POST", 201, 2*time.Millisecond)
	m.RecordRequest("/appointments/:id", "GET", 404, time.Millisecond)
	m.RecordError("/appointments/:id", "GET", "NOT_FOUND")

	snap := m.Snapshot()
	if len(snap.Requests) != 2 {
		t.Fatalf("expected 2 request stats, got %d", len(snap.Requests))
	}
	first := snap.Requests[0]
	if first.Key != "/appointments|POST|201" || first.Count != 2 {
		t.Fatalf("unexpected first stat %+v", first)
	}
	if first.AvgMillis != 3 {
		t.Fatalf("expected avg 3ms, got %v", first.AvgMillis)
	}
	if snap.Errors["/appointments/:id|GET|NOT_FOUND"] != 1 {
		t.Fatalf("unexpected errors %+v", snap.Errors)
	}
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.RecordRequest("/", "GET", 200, time.Millisecond)
	m.RecordError("/", "GET", "X")
	if snap := m.Snapshot(); len(snap.Requests) != 0 {
		t.Fatalf("expected empty snapshot")
	}
}
