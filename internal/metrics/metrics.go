// Package metrics exposes Prometheus collectors for the analysis pipeline.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	AnalysisDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "curator_analysis_duration_seconds",
			Help:    "Duration of one asset analysis by provider and mode",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"provider", "mode"},
	)

	StageFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "curator_agentic_stage_failures_total",
			Help: "Agentic stage failures that fell back to a placeholder",
		},
		[]string{"stage", "kind"},
	)

	BatchAssets = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "curator_batch_assets_total",
			Help: "Assets processed by batch runs by outcome",
		},
		[]string{"outcome"},
	)

	BatchInProgress = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "curator_batch_in_progress",
			Help: "Number of batch runs currently executing",
		},
	)
)

// RecordAnalysis observes one facade call.
func RecordAnalysis(provider, mode string, d time.Duration) {
	AnalysisDuration.WithLabelValues(provider, mode).Observe(d.Seconds())
}

// RecordStageFailure counts one agentic stage fallback.
func RecordStageFailure(stage, kind string) {
	StageFailures.WithLabelValues(stage, kind).Inc()
}

// RecordBatchAsset counts one batch item; ok selects the outcome label.
func RecordBatchAsset(ok bool) {
	outcome := "succeeded"
	if !ok {
		outcome = "failed"
	}
	BatchAssets.WithLabelValues(outcome).Inc()
}

// Handler serves the default registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}
