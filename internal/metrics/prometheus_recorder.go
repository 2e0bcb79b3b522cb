package metrics

import (
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	stageDuration  *prom.HistogramVec
	buildDuration  *prom.HistogramVec
	stageResults   *prom.CounterVec
	buildOutcome   *prom.CounterVec
	filesProcessed *prom.CounterVec
	tocEntries     *prom.GaugeVec
}

// NewPrometheusRecorder constructs and registers the build metrics on reg.
func NewPrometheusRecorder(reg prom.Registerer) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		stageDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "bookbuilder",
			Name:      "stage_duration_seconds",
			Help:      "Time spent inside each stage handler",
			Buckets:   prom.DefBuckets,
		}, []string{"stage"}),
		buildDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "bookbuilder",
			Name:      "build_duration_seconds",
			Help:      "Total build duration per output format",
			Buckets:   prom.DefBuckets,
		}, []string{"format"}),
		stageResults: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "bookbuilder",
			Name:      "stage_results_total",
			Help:      "Stage result counts by outcome",
		}, []string{"stage", "result"}),
		buildOutcome: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "bookbuilder",
			Name:      "build_outcomes_total",
			Help:      "Build outcomes by final status",
		}, []string{"outcome"}),
		filesProcessed: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "bookbuilder",
			Name:      "files_processed_total",
			Help:      "Files emitted by the last stage",
		}, []string{"format"}),
		tocEntries: prom.NewGaugeVec(prom.GaugeOpts{
			Namespace: "bookbuilder",
			Name:      "toc_entries",
			Help:      "Top-level entries in the last assembled table of contents",
		}, []string{"format"}),
	}
	reg.MustRegister(pr.stageDuration, pr.buildDuration, pr.stageResults, pr.buildOutcome, pr.filesProcessed, pr.tocEntries)
	return pr
}

func (p *PrometheusRecorder) ObserveStageDuration(stage string, d time.Duration) {
	p.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (p *PrometheusRecorder) ObserveBuildDuration(format string, d time.Duration) {
	p.buildDuration.WithLabelValues(format).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncStageResult(stage string, result ResultLabel) {
	p.stageResults.WithLabelValues(stage, string(result)).Inc()
}

func (p *PrometheusRecorder) IncBuildOutcome(outcome BuildOutcomeLabel) {
	p.buildOutcome.WithLabelValues(string(outcome)).Inc()
}

func (p *PrometheusRecorder) AddFilesProcessed(format string, n int) {
	p.filesProcessed.WithLabelValues(format).Add(float64(n))
}

func (p *PrometheusRecorder) SetTOCEntries(format string, n int) {
	p.tocEntries.WithLabelValues(format).Set(float64(n))
}
