// Package metrics exposes Prometheus collectors for health analyses and repairs.
package metrics

import (
	"net/http"
	"time"

	"github.com/creditflow/workflowdoctor/pkg/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "workflowdoctor"

// Metrics groups the collectors. A nil *Metrics records nothing.
type Metrics struct {
	registry         *prometheus.Registry
	analyses         *prometheus.CounterVec
	issues           *prometheus.CounterVec
	healthScore      prometheus.Histogram
	analysisDuration prometheus.Histogram
	repairs          *prometheus.CounterVec
	batches          *prometheus.CounterVec
	sweeps           *prometheus.CounterVec
}

// New creates the collectors on a fresh registry that also carries the Go and process collectors.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		analyses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analyses_total",
			Help:      "Workflow health analyses by resulting status",
		}, []string{"status"}),
		issues: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "issues_detected_total",
			Help:      "Issues detected by severity and code",
		}, []string{"severity", "code"}),
		healthScore: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "health_score",
			Help:      "Distribution of computed health scores",
			Buckets:   []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
		}),
		analysisDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "analysis_duration_seconds",
			Help:      "Time spent loading and analyzing one workflow",
			Buckets:   prometheus.DefBuckets,
		}),
		repairs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "repair_issues_total",
			Help:      "Issues handled by repair passes, by outcome",
		}, []string{"outcome"}),
		batches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batch_workflows_total",
			Help:      "Workflows processed by batch analyses, by outcome",
		}, []string{"outcome"}),
		sweeps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sweeps_total",
			Help:      "Scheduled sweeps by outcome",
		}, []string{"outcome"}),
	}

	registry.MustRegister(
		m.analyses, m.issues, m.healthScore, m.analysisDuration, m.repairs, m.batches, m.sweeps,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// ObserveReport records one analysis.
func (m *Metrics) ObserveReport(report *models.HealthReport, elapsed time.Duration) {
	if m == nil {
		return
	}

	m.analyses.WithLabelValues(string(report.Status)).Inc()
	m.healthScore.Observe(float64(report.HealthScore))
	m.analysisDuration.Observe(elapsed.Seconds())

	for _, issue := range report.Issues.All() {
		m.issues.WithLabelValues(string(issue.Severity), issue.Code).Inc()
	}
}

// ObserveRepair records the outcome counts of a repair pass.
func (m *Metrics) ObserveRepair(result *models.RepairResult) {
	if m == nil {
		return
	}

	m.repairs.WithLabelValues("fixed").Add(float64(len(result.Fixed)))
	m.repairs.WithLabelValues("skipped").Add(float64(len(result.Skipped)))
	m.repairs.WithLabelValues("failed").Add(float64(len(result.Failed)))
}

// ObserveBatch records the per-workflow outcomes of a batch.
func (m *Metrics) ObserveBatch(summary *models.BatchSummary) {
	if m == nil {
		return
	}

	m.batches.WithLabelValues("successful").Add(float64(summary.Successful))
	m.batches.WithLabelValues("failed").Add(float64(summary.Failed))
}

// ObserveSweep records a sweep run.
func (m *Metrics) ObserveSweep(digest *models.SweepDigest) {
	if m == nil {
		return
	}

	outcome := "completed"
	if digest.Error != "" {
		outcome = "failed"
	}

	m.sweeps.WithLabelValues(outcome).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the registry the collectors live on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
