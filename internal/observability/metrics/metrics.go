package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// TriageMetrics exposes counters/histograms for conversation turns and the
// triage engine.
type TriageMetrics struct {
	turnsTotal        *prometheus.CounterVec
	turnLatency       *prometheus.HistogramVec
	llmLatency        *prometheus.HistogramVec
	rejectionsTotal   *prometheus.CounterVec
	unknownConditions *prometheus.CounterVec
	handoffsTotal     *prometheus.CounterVec
}

func NewTriageMetrics(reg prometheus.Registerer) *TriageMetrics {
	m := &TriageMetrics{
		turnsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "triage",
			Subsystem: "conversation",
			Name:      "turns_total",
			Help:      "Total conversation turns by result kind",
		}, []string{"kind", "status"}),
		turnLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "triage",
			Subsystem: "conversation",
			Name:      "turn_latency_seconds",
			Help:      "End-to-end latency of one conversation turn",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 90},
		}, []string{"kind"}),
		llmLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "triage",
			Subsystem: "llm",
			Name:      "latency_seconds",
			Help:      "Latency of LLM completions by purpose",
			Buckets:   prometheus.DefBuckets,
		}, []string{"purpose", "status"}),
		rejectionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "triage",
			Subsystem: "engine",
			Name:      "validation_rejections_total",
			Help:      "Terminal submissions sent back to the agent, by missing field",
		}, []string{"missing"}),
		unknownConditions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "triage",
			Subsystem: "engine",
			Name:      "unknown_conditions_total",
			Help:      "Submissions referencing a condition id missing from the catalog",
		}, []string{"condition_id"}),
		handoffsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "triage",
			Subsystem: "engine",
			Name:      "handoffs_total",
			Help:      "Escalations to staff by urgency",
		}, []string{"urgency"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.turnsTotal, m.turnLatency, m.llmLatency, m.rejectionsTotal, m.unknownConditions, m.handoffsTotal)
	return m
}

func (m *TriageMetrics) ObserveTurn(kind string, failed bool, seconds float64) {
	if m == nil {
		return
	}
	status := "ok"
	if failed {
		status = "error"
	}
	m.turnsTotal.WithLabelValues(kind, status).Inc()
	m.turnLatency.WithLabelValues(kind).Observe(seconds)
}

func (m *TriageMetrics) ObserveLLM(purpose string, failed bool, seconds float64) {
	if m == nil {
		return
	}
	status := "ok"
	if failed {
		status = "error"
	}
	m.llmLatency.WithLabelValues(purpose, status).Observe(seconds)
}

func (m *TriageMetrics) ObserveRejection(missing string) {
	if m == nil {
		return
	}
	m.rejectionsTotal.WithLabelValues(missing).Inc()
}

// ObserveUnknownCondition satisfies triage.DataQualityObserver.
func (m *TriageMetrics) ObserveUnknownCondition(conditionID int) {
	if m == nil {
		return
	}
	m.unknownConditions.WithLabelValues(strconv.Itoa(conditionID)).Inc()
}

func (m *TriageMetrics) ObserveHandoff(urgency string) {
	if m == nil {
		return
	}
	m.handoffsTotal.WithLabelValues(urgency).Inc()
}
