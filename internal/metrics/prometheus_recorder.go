package metrics

import (
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	once           sync.Once
	stageDuration  *prom.HistogramVec
	runDuration    prom.Histogram
	stageResults   *prom.CounterVec
	runOutcome     *prom.CounterVec
	toolRetries    *prom.CounterVec
	brokenLinks    prom.Gauge
	publishedFiles prom.Gauge
}

// NewPrometheusRecorder constructs and registers Prometheus metrics (idempotent).
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{}
	pr.once.Do(func() {
		pr.stageDuration = prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "docpublish",
			Name:      "stage_duration_seconds",
			Help:      "Duration of individual pipeline stages",
			Buckets:   prom.DefBuckets,
		}, []string{"stage"})
		pr.runDuration = prom.NewHistogram(prom.HistogramOpts{
			Namespace: "docpublish",
			Name:      "run_duration_seconds",
			Help:      "Total publish run duration",
			Buckets:   prom.DefBuckets,
		})
		pr.stageResults = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "docpublish",
			Name:      "stage_results_total",
			Help:      "Stage result counts by outcome",
		}, []string{"stage", "result"})
		pr.runOutcome = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "docpublish",
			Name:      "run_outcomes_total",
			Help:      "Publish run outcomes by final status",
		}, []string{"outcome"})
		pr.toolRetries = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "docpublish",
			Name:      "tool_retries_total",
			Help:      "Retries of external tool invocations",
		}, []string{"tool"})
		pr.brokenLinks = prom.NewGauge(prom.GaugeOpts{
			Namespace: "docpublish",
			Name:      "broken_links",
			Help:      "Broken internal links found in the last verified build",
		})
		pr.publishedFiles = prom.NewGauge(prom.GaugeOpts{
			Namespace: "docpublish",
			Name:      "published_files",
			Help:      "Files copied into the publish directory by the last run",
		})
		reg.MustRegister(pr.stageDuration, pr.runDuration, pr.stageResults, pr.runOutcome, pr.toolRetries, pr.brokenLinks, pr.publishedFiles)
	})
	return pr
}

func (p *PrometheusRecorder) ObserveStageDuration(stage string, d time.Duration) {
	if p == nil || p.stageDuration == nil {
		return
	}
	p.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (p *PrometheusRecorder) ObserveRunDuration(d time.Duration) {
	if p == nil || p.runDuration == nil {
		return
	}
	p.runDuration.Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncStageResult(stage string, result ResultLabel) {
	if p == nil || p.stageResults == nil {
		return
	}
	p.stageResults.WithLabelValues(stage, string(result)).Inc()
}

func (p *PrometheusRecorder) IncRunOutcome(outcome string) {
	if p == nil || p.runOutcome == nil {
		return
	}
	p.runOutcome.WithLabelValues(outcome).Inc()
}

func (p *PrometheusRecorder) IncToolRetry(tool string) {
	if p == nil || p.toolRetries == nil {
		return
	}
	p.toolRetries.WithLabelValues(tool).Inc()
}

func (p *PrometheusRecorder) SetBrokenLinks(n int) {
	if p == nil || p.brokenLinks == nil {
		return
	}
	p.brokenLinks.Set(float64(n))
}

func (p *PrometheusRecorder) SetPublishedFiles(n int) {
	if p == nil || p.publishedFiles == nil {
		return
	}
	p.publishedFiles.Set(float64(n))
}
