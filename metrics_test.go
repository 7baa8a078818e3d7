package edgetill

import (
	"testing"
	"time"
)

func TestMetricsIncAndValue(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})

	m.Inc(MetricLoginSuccess)
	m.Inc(MetricLoginSuccess)
	m.Inc(MetricQueuePublished)

	if got := m.Value(MetricLoginSuccess); got != 2 {
		t.Errorf("login success = %d, want 2", got)
	}
	if got := m.Value(MetricQueuePublished); got != 1 {
		t.Errorf("queue published = %d, want 1", got)
	}
	if got := m.Value(MetricLogout); got != 0 {
		t.Errorf("untouched counter = %d, want 0", got)
	}
}

func TestMetricsDisabledIsNoOp(t *testing.T) {
	m := NewMetrics(MetricsConfig{})

	m.Inc(MetricLoginSuccess)
	m.Observe(MetricValidateLatency, time.Millisecond)

	if got := m.Value(MetricLoginSuccess); got != 0 {
		t.Errorf("disabled counter = %d, want 0", got)
	}

	s := m.Snapshot()
	if len(s.Counters) != 0 || len(s.Histograms) != 0 {
		t.Errorf("disabled snapshot not empty: %+v", s)
	}
}

func TestMetricsNilReceiver(t *testing.T) {
	var m *Metrics

	m.Inc(MetricLoginSuccess)
	m.Observe(MetricValidateLatency, time.Millisecond)

	if m.Enabled() || m.LatencyEnabled() {
		t.Error("nil metrics reported enabled")
	}
	if got := m.Value(MetricLoginSuccess); got != 0 {
		t.Errorf("nil Value = %d, want 0", got)
	}
}

func TestMetricsObserveOnlyLatencyID(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true, EnableLatencyHistograms: true})

	m.Observe(MetricValidateLatency, 3*time.Millisecond)
	m.Observe(MetricLoginSuccess, 3*time.Millisecond)

	s := m.Snapshot()
	buckets, ok := s.Histograms[MetricValidateLatency]
	if !ok {
		t.Fatal("latency histogram missing from snapshot")
	}
	if buckets[0] != 1 {
		t.Errorf("first bucket = %d, want 1", buckets[0])
	}
	if _, ok := s.Histograms[MetricLoginSuccess]; ok {
		t.Error("observation on a counter id produced a histogram")
	}
}

func TestBucketIndexBoundaries(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want int
	}{
		{0, 0},
		{5 * time.Millisecond, 0},
		{6 * time.Millisecond, 1},
		{10 * time.Millisecond, 1},
		{25 * time.Millisecond, 2},
		{50 * time.Millisecond, 3},
		{100 * time.Millisecond, 4},
		{250 * time.Millisecond, 5},
		{500 * time.Millisecond, 6},
		{501 * time.Millisecond, 7},
		{time.Hour, 7},
	}

	for _, tt := range tests {
		if got := bucketIndex(tt.d); got != tt.want {
			t.Errorf("bucketIndex(%v) = %d, want %d", tt.d, got, tt.want)
		}
	}
}

func TestMetricsSnapshotIsCopy(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})
	m.Inc(MetricLogout)

	s := m.Snapshot()
	m.Inc(MetricLogout)

	if s.Counters[MetricLogout] != 1 {
		t.Errorf("snapshot counter = %d, want 1", s.Counters[MetricLogout])
	}
	if got := m.Value(MetricLogout); got != 2 {
		t.Errorf("live counter = %d, want 2", got)
	}
}
