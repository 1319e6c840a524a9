package metrics

import (
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

const namespace = "contentbuild"

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	stageDuration *prom.HistogramVec
	buildDuration prom.Histogram
	stageResults  *prom.CounterVec
	buildOutcome  *prom.CounterVec
	itemDuration  *prom.HistogramVec
	deltaItems    *prom.GaugeVec
	cacheFlushes  *prom.CounterVec
}

// NewPrometheusRecorder constructs the metrics and registers them with reg.
// A nil registry gets a private one.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		stageDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of pipeline stages",
			Buckets:   prom.DefBuckets,
		}, []string{"stage"}),
		buildDuration: prom.NewHistogram(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "build_duration_seconds",
			Help:      "Total pipeline duration",
			Buckets:   prom.DefBuckets,
		}),
		stageResults: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "stage_results_total",
			Help:      "Stage result counts by outcome",
		}, []string{"stage", "result"}),
		buildOutcome: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "build_outcomes_total",
			Help:      "Pipeline runs by final status",
		}, []string{"outcome"}),
		itemDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "item_build_duration_seconds",
			Help:      "Duration of individual item builds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		}, []string{"result"}),
		deltaItems: prom.NewGaugeVec(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "delta_items",
			Help:      "Items classified by the build cache in the last run",
		}, []string{"state"}),
		cacheFlushes: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "cache_flushes_total",
			Help:      "Build cache flushes by result",
		}, []string{"result"}),
	}
	reg.MustRegister(pr.stageDuration, pr.buildDuration, pr.stageResults, pr.buildOutcome, pr.itemDuration, pr.deltaItems, pr.cacheFlushes)
	return pr
}

func (p *PrometheusRecorder) ObserveStageDuration(stage string, d time.Duration) {
	if p == nil {
		return
	}
	p.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (p *PrometheusRecorder) ObserveBuildDuration(d time.Duration) {
	if p == nil {
		return
	}
	p.buildDuration.Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncStageResult(stage string, result ResultLabel) {
	if p == nil {
		return
	}
	p.stageResults.WithLabelValues(stage, string(result)).Inc()
}

func (p *PrometheusRecorder) IncBuildOutcome(outcome BuildOutcomeLabel) {
	if p == nil {
		return
	}
	p.buildOutcome.WithLabelValues(string(outcome)).Inc()
}

func (p *PrometheusRecorder) ObserveItemDuration(d time.Duration, result ResultLabel) {
	if p == nil {
		return
	}
	p.itemDuration.WithLabelValues(string(result)).Observe(d.Seconds())
}

func (p *PrometheusRecorder) SetDelta(dirty, clean int) {
	if p == nil {
		return
	}
	p.deltaItems.WithLabelValues("dirty").Set(float64(dirty))
	p.deltaItems.WithLabelValues("clean").Set(float64(clean))
}

func (p *PrometheusRecorder) IncCacheFlush(success bool) {
	if p == nil {
		return
	}
	res := string(ResultFailed)
	if success {
		res = string(ResultSuccess)
	}
	p.cacheFlushes.WithLabelValues(res).Inc()
}
