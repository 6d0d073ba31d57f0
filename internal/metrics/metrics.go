package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "shortcode_marketing"

// Recorder holds the service metrics on its own registry so tests and
// multiple workers in one process do not collide.
type Recorder struct {
	registry *prometheus.Registry

	sends        *prometheus.CounterVec
	sendDuration prometheus.Histogram
	dlq          *prometheus.CounterVec
	inFlight     prometheus.Gauge
}

// NewRecorder registers the service metrics plus the Go and process
// collectors on a fresh registry.
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		sends: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sends_total",
			Help:      "Marketing SMS send attempts by outcome.",
		}, []string{"outcome"}),
		sendDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "send_duration_seconds",
			Help:      "Latency of provider send calls.",
			Buckets:   prometheus.DefBuckets,
		}),
		dlq: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dlq_records_total",
			Help:      "Requests written to the dead-letter topic by failure type.",
		}, []string{"failure_type"}),
		inFlight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sends_in_flight",
			Help:      "Provider send calls currently in progress.",
		}),
	}
}

// Registry exposes the underlying registry for the HTTP handler and tests.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// ObserveSend records one provider call. A nil Recorder is a no-op.
func (r *Recorder) ObserveSend(outcome string, d time.Duration) {
	if r == nil {
		return
	}
	r.sends.WithLabelValues(outcome).Inc()
	r.sendDuration.Observe(d.Seconds())
}

// TrackInFlight increments the in-flight gauge and returns the matching
// decrement.
func (r *Recorder) TrackInFlight() func() {
	if r == nil {
		return func() {}
	}
	r.inFlight.Inc()
	return r.inFlight.Dec
}

// ObserveDLQ counts a dead-lettered request.
func (r *Recorder) ObserveDLQ(failureType string) {
	if r == nil {
		return
	}
	r.dlq.WithLabelValues(failureType).Inc()
}
