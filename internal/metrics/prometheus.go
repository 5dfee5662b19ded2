package metrics

import (
	"net/http"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "ansuz"

// PrometheusRecorder implements Recorder with Prometheus collectors.
type PrometheusRecorder struct {
	buildDuration       prom.Histogram
	buildOutcome        *prom.CounterVec
	syncDuration        *prom.HistogramVec
	syncOutcome         *prom.CounterVec
	articles            *prom.CounterVec
	retries             *prom.CounterVec
	retriesExhausted    *prom.CounterVec
	invalidations       *prom.CounterVec
	consecutiveFailures prom.Gauge
}

// NewPrometheusRecorder creates the collectors and registers them on reg.
// A nil reg gets a fresh registry.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		buildDuration: prom.NewHistogram(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "build_duration_seconds",
			Help:      "Duration of full site builds",
			Buckets:   prom.DefBuckets,
		}),
		buildOutcome: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "build_outcomes_total",
			Help:      "Full builds by outcome",
		}, []string{"outcome"}),
		syncDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "sync_duration_seconds",
			Help:      "Duration of sync runs",
			Buckets:   prom.DefBuckets,
		}, []string{"type"}),
		syncOutcome: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "sync_outcomes_total",
			Help:      "Sync runs by type and outcome",
		}, []string{"type", "outcome"}),
		articles: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "articles_total",
			Help:      "Articles processed by result",
		}, []string{"result"}),
		retries: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "retries_total",
			Help:      "Retried operations after a transient failure",
		}, []string{"op"}),
		retriesExhausted: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "retry_exhausted_total",
			Help:      "Operations that failed after every retry",
		}, []string{"op"}),
		invalidations: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "cache_invalidations_total",
			Help:      "Cache invalidation requests by result",
		}, []string{"result"}),
		consecutiveFailures: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "sync_consecutive_failures",
			Help:      "Failed syncs since the last success",
		}),
	}
	reg.MustRegister(
		pr.buildDuration, pr.buildOutcome,
		pr.syncDuration, pr.syncOutcome,
		pr.articles, pr.retries, pr.retriesExhausted,
		pr.invalidations, pr.consecutiveFailures,
	)
	return pr
}

func (p *PrometheusRecorder) ObserveBuildDuration(d time.Duration) {
	p.buildDuration.Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncBuildOutcome(outcome Outcome) {
	p.buildOutcome.WithLabelValues(string(outcome)).Inc()
}

func (p *PrometheusRecorder) ObserveSyncDuration(syncType string, d time.Duration) {
	p.syncDuration.WithLabelValues(syncType).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncSyncOutcome(syncType string, outcome Outcome) {
	p.syncOutcome.WithLabelValues(syncType, string(outcome)).Inc()
}

func (p *PrometheusRecorder) AddArticles(result ArticleResult, n int) {
	if n <= 0 {
		return
	}
	p.articles.WithLabelValues(string(result)).Add(float64(n))
}

func (p *PrometheusRecorder) IncRetry(op string) {
	p.retries.WithLabelValues(op).Inc()
}

func (p *PrometheusRecorder) IncRetryExhausted(op string) {
	p.retriesExhausted.WithLabelValues(op).Inc()
}

func (p *PrometheusRecorder) IncInvalidation(success bool) {
	res := "failed"
	if success {
		res = "success"
	}
	p.invalidations.WithLabelValues(res).Inc()
}

func (p *PrometheusRecorder) SetConsecutiveFailures(n int) {
	p.consecutiveFailures.Set(float64(n))
}

// HTTPHandler serves the metrics of reg.
func HTTPHandler(reg *prom.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{EnableOpenMetrics: true})
}
