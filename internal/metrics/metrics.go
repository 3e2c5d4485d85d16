// Package metrics holds the prometheus collectors of the service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Recorder owns a private registry and the service collectors.
// A nil *Recorder is valid and records nothing.
type Recorder struct {
	registry *prometheus.Registry

	readingsIngested  *prometheus.CounterVec
	predictionsStored prometheus.Counter
	forecastRuns      *prometheus.CounterVec
	forecastDuration  prometheus.Histogram
	storeBusyRetries  *prometheus.CounterVec
	selfHeals         *prometheus.CounterVec
	purgedRows        *prometheus.CounterVec
}

// NewRecorder creates a Recorder with Go runtime and process collectors registered.
func NewRecorder() *Recorder {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r := &Recorder{
		registry: registry,
		readingsIngested: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "weather_readings_ingested_total",
			Help: "Ingestion attempts by result (stored, duplicate, failed).",
		}, []string{"result"}),
		predictionsStored: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "weather_predictions_stored_total",
			Help: "Hourly prediction rows written.",
		}),
		forecastRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "weather_forecast_runs_total",
			Help: "Full forecast refresh runs by status.",
		}, []string{"status"}),
		forecastDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "weather_forecast_run_duration_seconds",
			Help:    "Duration of full forecast refresh runs.",
			Buckets: prometheus.DefBuckets,
		}),
		storeBusyRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "weather_store_busy_retries_total",
			Help: "Store operations retried because the database was locked.",
		}, []string{"op"}),
		selfHeals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "weather_self_heal_total",
			Help: "Generation passes triggered by a read that found no data.",
		}, []string{"view"}),
		purgedRows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "weather_purged_rows_total",
			Help: "Rows removed by retention purges.",
		}, []string{"table"}),
	}

	registry.MustRegister(
		r.readingsIngested,
		r.predictionsStored,
		r.forecastRuns,
		r.forecastDuration,
		r.storeBusyRetries,
		r.selfHeals,
		r.purgedRows,
	)
	return r
}

// Registry returns the registry to expose, or nil for a nil Recorder.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

func (r *Recorder) ReadingIngested(result string) {
	if r == nil {
		return
	}
	r.readingsIngested.WithLabelValues(result).Inc()
}

func (r *Recorder) PredictionsStored(n int) {
	if r == nil || n <= 0 {
		return
	}
	r.predictionsStored.Add(float64(n))
}

func (r *Recorder) ForecastRun(status string, d time.Duration) {
	if r == nil {
		return
	}
	r.forecastRuns.WithLabelValues(status).Inc()
	r.forecastDuration.Observe(d.Seconds())
}

func (r *Recorder) StoreBusyRetry(op string) {
	if r == nil {
		return
	}
	r.storeBusyRetries.WithLabelValues(op).Inc()
}

func (r *Recorder) SelfHeal(view string) {
	if r == nil {
		return
	}
	r.selfHeals.WithLabelValues(view).Inc()
}

func (r *Recorder) Purged(table string, n int64) {
	if r == nil || n <= 0 {
		return
	}
	r.purgedRows.WithLabelValues(table).Add(float64(n))
}
