// Package metrics exposes résumé analysis counters on a private Prometheus registry.
package metrics

import (
	"errors"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "resume_analyzer"

// Recorder owns the registry and every collector. A nil *Recorder ignores all calls.
type Recorder struct {
	registry *prometheus.Registry

	sectionAnalyses  *prometheus.CounterVec
	analysisDuration *prometheus.HistogramVec
	reports          prometheus.Counter
	overallScore     prometheus.Histogram
	scoredSections   prometheus.Gauge
}

func New() *Recorder {
	registry := prometheus.NewRegistry()
	auto := promauto.With(registry)

	return &Recorder{
		registry: registry,
		sectionAnalyses: auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "section_analyses_total",
			Help:      "Section analyses by section and outcome.",
		}, []string{"section", "outcome"}),
		analysisDuration: auto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "section_analysis_duration_seconds",
			Help:      "Time spent analyzing one section, retries included.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"section"}),
		reports: auto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reports_total",
			Help:      "Reports built.",
		}),
		overallScore: auto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "report_overall_score",
			Help:      "Overall score of built reports.",
			Buckets:   prometheus.LinearBuckets(10, 10, 10),
		}),
		scoredSections: auto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "report_scored_sections",
			Help:      "Sections scored in the last report.",
		}),
	}
}

// Registry is exposed for tests and embedding into an HTTP handler.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

func (r *Recorder) ObserveAnalysis(section, outcome string, elapsed time.Duration) {
	if r == nil {
		return
	}

	r.sectionAnalyses.WithLabelValues(section, outcome).Inc()
	r.analysisDuration.WithLabelValues(section).Observe(elapsed.Seconds())
}

func (r *Recorder) ObserveReport(scoredSections int, overall float64) {
	if r == nil {
		return
	}

	r.reports.Inc()
	r.overallScore.Observe(overall)
	r.scoredSections.Set(float64(scoredSections))
}

// WriteTextfile writes the registry in the node exporter textfile format.
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil {
		return nil
	}

	path = strings.TrimSpace(path)
	if path == "" {
		return errors.New("metrics file path is required")
	}

	return prometheus.WriteToTextfile(path, r.registry)
}
