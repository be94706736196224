// Package metrics provides Prometheus metrics for document question answering
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	OutcomeAnswered = "answered"
	OutcomeRefused  = "refused"
	OutcomeGreeting = "greeting"
	OutcomeError    = "error"

	StageSegment  = "segment"
	StageBuild    = "build"
	StageRetrieve = "retrieve"
	StageCompose  = "compose"

	StatusOK          = "ok"
	StatusEmptyCorpus = "empty_corpus"
	StatusError       = "error"
)

// Metrics holds all collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	IngestsTotal   *prometheus.CounterVec
	QueriesTotal   *prometheus.CounterVec
	StageDuration  *prometheus.HistogramVec
	RetrievedUnits prometheus.Histogram
	PagesIndexed   prometheus.Histogram
	ActiveSessions prometheus.Gauge
	LLMRetries     prometheus.Counter
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	m := &Metrics{}

	m.IngestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docqa_ingests_total",
			Help: "Total number of document ingests",
		},
		[]string{"status"},
	)

	m.QueriesTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docqa_queries_total",
			Help: "Total number of answered queries by outcome",
		},
		[]string{"outcome"},
	)

	m.StageDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "docqa_stage_duration_seconds",
			Help:    "Duration of pipeline stages in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"stage"},
	)

	m.RetrievedUnits = factory.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "docqa_retrieved_units",
			Help:    "Number of units left after page range filtering",
			Buckets: []float64{0, 1, 2, 3, 5, 7, 10, 20},
		},
	)

	m.PagesIndexed = factory.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "docqa_pages_indexed",
			Help:    "Number of non-blank pages indexed per document",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		},
	)

	m.ActiveSessions = factory.NewGauge(
		prometheus.GaugeOpts{
			Name: "docqa_active_sessions",
			Help: "Number of open sessions",
		},
	)

	m.LLMRetries = factory.NewCounter(
		prometheus.CounterOpts{
			Name: "docqa_llm_retries_total",
			Help: "Total number of language model retries",
		},
	)

	return m
}

func (m *Metrics) RecordIngest(status string, pages int) {
	if m == nil {
		return
	}
	m.IngestsTotal.WithLabelValues(status).Inc()
	if status == StatusOK {
		m.PagesIndexed.Observe(float64(pages))
	}
}

func (m *Metrics) RecordQuery(outcome string) {
	if m == nil {
		return
	}
	m.QueriesTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.StageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (m *Metrics) ObserveRetrieved(n int) {
	if m == nil {
		return
	}
	m.RetrievedUnits.Observe(float64(n))
}

func (m *Metrics) SessionOpened() {
	if m == nil {
		return
	}
	m.ActiveSessions.Inc()
}

func (m *Metrics) SessionClosed() {
	if m == nil {
		return
	}
	m.ActiveSessions.Dec()
}

func (m *Metrics) RecordRetry() {
	if m == nil {
		return
	}
	m.LLMRetries.Inc()
}
