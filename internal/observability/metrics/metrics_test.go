package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
)

func TestTriageMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewTriageMetrics(reg)

	m.ObserveTurn("booking", false, 1.5)
	m.ObserveTurn("text", true, 0.2)
	m.ObserveLLM("agent", false, 0.8)
	m.ObserveRejection("doctor")
	m.ObserveRejection("doctor")
	m.ObserveUnknownCondition(99)
	m.ObserveHandoff("immediate")

	if got := testutil.ToFloat64(m.turnsTotal.WithLabelValues("booking", "ok")); got != 1 {
		t.Fatalf("expected 1 booking turn, got %v", got)
	}
	if got := testutil.ToFloat64(m.turnsTotal.WithLabelValues("text", "error")); got != 1 {
		t.Fatalf("expected 1 failed text turn, got %v", got)
	}
	if got := testutil.ToFloat64(m.rejectionsTotal.WithLabelValues("doctor")); got != 2 {
		t.Fatalf("expected 2 doctor rejections, got %v", got)
	}
	if got := testutil.ToFloat64(m.unknownConditions.WithLabelValues("99")); got != 1 {
		t.Fatalf("expected unknown condition 99 counted, got %v", got)
	}
	if got := testutil.ToFloat64(m.handoffsTotal.WithLabelValues("immediate")); got != 1 {
		t.Fatalf("expected 1 immediate handoff, got %v", got)
	}
}

func TestTriageMetricsDefaultRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	prev := prometheus.DefaultRegisterer
	prometheus.DefaultRegisterer = reg
	t.Cleanup(func() { prometheus.DefaultRegisterer = prev })

	m := NewTriageMetrics(nil)
	m.ObserveLLM("confirmation", true, 2)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if len(families) == 0 {
		t.Fatal("expected metrics on the default registerer")
	}
}

func TestTriageMetricsNilSafe(t *testing.T) {
	var m *TriageMetrics
	m.ObserveTurn("text", false, 0.1)
	m.ObserveLLM("agent", false, 0.1)
	m.ObserveRejection("condition_id")
	m.ObserveUnknownCondition(1)
	m.ObserveHandoff("normal")
}

func TestTriageMetricsTurnLatencyHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewTriageMetrics(reg)

	m.ObserveTurn("handoff", false, 0.5)
	m.ObserveTurn("handoff", false, 12)

	observer, err := m.turnLatency.GetMetricWithLabelValues("handoff")
	if err != nil {
		t.Fatalf("lookup histogram: %v", err)
	}
	var metric dto.Metric
	if err := observer.(prometheus.Histogram).Write(&metric); err != nil {
		t.Fatalf("write histogram: %v", err)
	}
	h := metric.GetHistogram()
	if h.GetSampleCount() != 2 {
		t.Fatalf("expected 2 samples, got %d", h.GetSampleCount())
	}
	if h.GetSampleSum() != 12.5 {
		t.Fatalf("expected sum 12.5, got %v", h.GetSampleSum())
	}
	for _, b := range h.GetBucket() {
		if b.GetUpperBound() == 1 && b.GetCumulativeCount() != 1 {
			t.Fatalf("expected one sample at or below 1s, got %d", b.GetCumulativeCount())
		}
	}
}
