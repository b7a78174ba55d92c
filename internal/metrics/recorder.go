package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder is the collector's prometheus instrumentation. A nil *Recorder is
// valid and records nothing.
type Recorder struct {
	registry *prometheus.Registry

	refreshTotal    *prometheus.CounterVec
	refreshDuration *prometheus.HistogramVec
	rowsCommitted   *prometheus.CounterVec
	fetchFailures   *prometheus.CounterVec
	skippedTicks    prometheus.Counter
}

func NewRecorder() *Recorder {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r := &Recorder{
		registry: registry,
		refreshTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "weather_collector_refresh_total",
			Help: "Refresh cycles by target table and outcome.",
		}, []string{"target", "outcome"}),
		refreshDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "weather_collector_refresh_duration_seconds",
			Help:    "Duration of refresh cycles.",
			Buckets: prometheus.DefBuckets,
		}, []string{"target"}),
		rowsCommitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "weather_collector_rows_committed_total",
			Help: "Rows committed by target table.",
		}, []string{"target"}),
		fetchFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "weather_collector_fetch_failures_total",
			Help: "Provider fetch failures by kind.",
		}, []string{"kind"}),
		skippedTicks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "weather_collector_skipped_ticks_total",
			Help: "Scheduler ticks skipped because the previous refresh was still running.",
		}),
	}

	registry.MustRegister(r.refreshTotal, r.refreshDuration, r.rowsCommitted, r.fetchFailures, r.skippedTicks)
	return r
}

func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// ObserveRefresh records one finished refresh call.
func (r *Recorder) ObserveRefresh(target, outcome string, committed int, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.refreshTotal.WithLabelValues(target, outcome).Inc()
	r.refreshDuration.WithLabelValues(target).Observe(elapsed.Seconds())
	if committed > 0 {
		r.rowsCommitted.WithLabelValues(target).Add(float64(committed))
	}
}

func (r *Recorder) FetchFailed(kind string) {
	if r == nil {
		return
	}
	r.fetchFailures.WithLabelValues(kind).Inc()
}

func (r *Recorder) TickSkipped() {
	if r == nil {
		return
	}
	r.skippedTicks.Inc()
}

// Handler serves the registry in the prometheus text format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
