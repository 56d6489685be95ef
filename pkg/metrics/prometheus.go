package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	stageLatency *prometheus.HistogramVec
	errorsTotal  *prometheus.CounterVec
	forecasts    *prometheus.CounterVec
	horizon      prometheus.Histogram
	superseded   *prometheus.CounterVec
	queueDepth   prometheus.Gauge
	latency      *prometheus.HistogramVec
}

// New registers the collectors with reg. A nil reg uses the default
// registry; tests pass a fresh prometheus.NewRegistry().
func New(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Recorder{
		stageLatency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tradecast_pipeline_stage_seconds",
				Help:    "Duration of each forecast pipeline stage",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"stage"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tradecast_errors_total",
				Help: "Pipeline errors by kind",
			},
			[]string{"kind"},
		),
		forecasts: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tradecast_forecasts_total",
				Help: "Forecasts produced by forecaster",
			},
			[]string{"forecaster"},
		),
		horizon: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "tradecast_forecast_horizon_periods",
				Help:    "Requested forecast horizon",
				Buckets: []float64{1, 3, 6, 12, 24},
			},
		),
		superseded: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tradecast_superseded_results_total",
				Help: "Results dropped because a newer request for the session exists",
			},
			[]string{"transport"},
		),
		queueDepth: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "tradecast_dispatcher_queue_depth",
				Help: "Jobs waiting for a forecast worker",
			},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tradecast_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

func (r *Recorder) RecordStage(stage string, d time.Duration) {
	r.stageLatency.WithLabelValues(stage).Observe(d.Seconds())
}

func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

func (r *Recorder) RecordForecast(forecaster string, horizon int) {
	r.forecasts.WithLabelValues(forecaster).Inc()
	r.horizon.Observe(float64(horizon))
}

func (r *Recorder) RecordSuperseded(transport string) {
	r.superseded.WithLabelValues(transport).Inc()
}

func (r *Recorder) RecordQueueDepth(depth int) {
	r.queueDepth.Set(float64(depth))
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

// Nop discards every observation.
type Nop struct{}

func (Nop) RecordStage(string, time.Duration) {}
func (Nop) RecordError(string)                {}
func (Nop) RecordForecast(string, int)        {}
func (Nop) RecordSuperseded(string)           {}
func (Nop) RecordQueueDepth(int)              {}
func (Nop) RecordLatency(string, float64)     {}
