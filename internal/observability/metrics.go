// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/pdiddy/research-briefing/pkg/types"
)

const namespace = "research_briefing"

// Metrics holds the counters for one run. Each Metrics owns its registry,
// so constructing several in one process (tests, repeated runs) never
// collides. A nil *Metrics is valid and records nothing.
type Metrics struct {
	Registry *prometheus.Registry

	// PapersFetched counts papers returned by each source.
	PapersFetched *prometheus.CounterVec

	// Verdicts counts terminal verdicts by state and stage.
	Verdicts *prometheus.CounterVec

	// EmbeddingDuration observes embedding call latency in seconds.
	EmbeddingDuration prometheus.Histogram

	// JudgeDuration observes judge call latency in seconds.
	JudgeDuration prometheus.Histogram

	// JudgeInFlight is the number of judge calls currently running.
	JudgeInFlight prometheus.Gauge

	// PaperErrors counts paper-local failures by kind.
	PaperErrors *prometheus.CounterVec

	// LedgerWriteErrors counts failed ledger writes.
	LedgerWriteErrors prometheus.Counter

	// RunDuration is the wall time of the last pipeline run in seconds.
	RunDuration prometheus.Gauge

	// LastRunTimestamp is the Unix time the last run finished.
	LastRunTimestamp prometheus.Gauge
}

// NewMetrics creates a Metrics instance on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Metrics{
		Registry: reg,
		PapersFetched: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "papers_fetched_total",
			Help:      "Papers returned by each source.",
		}, []string{"platform"}),
		Verdicts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "verdicts_total",
			Help:      "Terminal verdicts by state and deciding stage.",
		}, []string{"state", "stage"}),
		EmbeddingDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "embedding_call_duration_seconds",
			Help:      "Embedding provider call latency.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		JudgeDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "judge_call_duration_seconds",
			Help:      "Relevance judge call latency.",
			Buckets:   []float64{1, 2.5, 5, 10, 20, 30, 60, 120, 300},
		}),
		JudgeInFlight: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "judge_in_flight",
			Help:      "Judge calls currently running.",
		}),
		PaperErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "paper_errors_total",
			Help:      "Paper-local failures by kind.",
		}, []string{"kind"}),
		LedgerWriteErrors: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ledger_write_errors_total",
			Help:      "Failed ledger writes.",
		}),
		RunDuration: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of the last pipeline run.",
		}),
		LastRunTimestamp: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last pipeline run finished.",
		}),
	}
}

// RecordFetched adds n papers for a platform.
func (m *Metrics) RecordFetched(platform string, n int) {
	if m == nil {
		return
	}
	m.PapersFetched.WithLabelValues(platform).Add(float64(n))
}

// RecordVerdict counts a terminal verdict and its failure kind, if any.
func (m *Metrics) RecordVerdict(v types.Verdict) {
	if m == nil {
		return
	}
	m.Verdicts.WithLabelValues(string(v.State), string(v.Stage)).Inc()
	if v.ErrorKind != types.ErrorKindNone {
		m.PaperErrors.WithLabelValues(string(v.ErrorKind)).Inc()
	}
}

// ObserveEmbedding records one embedding call.
func (m *Metrics) ObserveEmbedding(d time.Duration) {
	if m == nil {
		return
	}
	m.EmbeddingDuration.Observe(d.Seconds())
}

// JudgeStarted marks a judge call in flight and returns a func that ends it.
func (m *Metrics) JudgeStarted() func() {
	if m == nil {
		return func() {}
	}
	start := time.Now()
	m.JudgeInFlight.Inc()
	return func() {
		m.JudgeInFlight.Dec()
		m.JudgeDuration.Observe(time.Since(start).Seconds())
	}
}

// RecordLedgerError counts a failed ledger write.
func (m *Metrics) RecordLedgerError() {
	if m == nil {
		return
	}
	m.LedgerWriteErrors.Inc()
}

// RecordRun records the run wall time and completion timestamp.
func (m *Metrics) RecordRun(d time.Duration, finished time.Time) {
	if m == nil {
		return
	}
	m.RunDuration.Set(d.Seconds())
	m.LastRunTimestamp.Set(float64(finished.Unix()))
}

// WriteTextfile writes the registry in Prometheus text format, atomically
// replacing path, for the node exporter textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, m.Registry)
}
