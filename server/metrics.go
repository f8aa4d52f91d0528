package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type metricsRegistry struct {
	registry          *prometheus.Registry
	sponsoredCalls    *prometheus.CounterVec
	submissionSeconds prometheus.Histogram
	sponsoredValueWei prometheus.Counter
}

func newMetricsRegistry(inFlight func() float64) *metricsRegistry {
	calls := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sponsor_relay_sponsored_calls_total",
		Help: "Sponsored call submissions by outcome",
	}, []string{"status"})

	seconds := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "sponsor_relay_submission_seconds",
		Help:    "Time from submission to mined receipt",
		Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
	})

	value := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sponsor_relay_additional_value_wei_total",
		Help: "Native value attached by the executor to successful submissions",
	})

	r := prometheus.NewRegistry()
	r.MustRegister(calls, seconds, value)
	if inFlight != nil {
		r.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "sponsor_relay_in_flight_submissions",
			Help: "Submissions currently waiting to be mined",
		}, inFlight))
	}

	return &metricsRegistry{
		registry:          r,
		sponsoredCalls:    calls,
		submissionSeconds: seconds,
		sponsoredValueWei: value,
	}
}

func (m *metricsRegistry) handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *metricsRegistry) incCall(status string) {
	m.sponsoredCalls.WithLabelValues(status).Inc()
}

func (m *metricsRegistry) observeSubmission(seconds float64) {
	m.submissionSeconds.Observe(seconds)
}

func (m *metricsRegistry) addValue(wei float64) {
	m.sponsoredValueWei.Add(wei)
}
