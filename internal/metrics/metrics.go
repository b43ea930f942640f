// Package metrics holds Prometheus instruments shared by the intake
// binaries.  All collectors are registered with the global registry, so
// mounting promhttp.Handler() is enough to expose them on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	SubmissionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intake_submissions_total",
			Help: "Submit requests by outcome (ignored, invalid, succeeded, failed, discarded).",
		}, []string{"outcome"})

	ValidationFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intake_validation_failures_total",
			Help: "Field-level validation failures by field.",
		}, []string{"field"})

	SubmissionFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intake_submission_failures_total",
			Help: "Failed creation attempts by category (http, network, decode, unexpected).",
		}, []string{"category"})

	SubmissionsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "intake_submissions_in_flight",
			Help: "Creation calls currently pending.",
		})

	CreateDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "intake_create_request_duration_seconds",
			Help:    "Latency of creation requests by status class (2xx, 4xx, 5xx, error).",
			Buckets: prometheus.DefBuckets,
		}, []string{"class"})

	PatientsStoredTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "patientsvc_patients_stored_total",
			Help: "Rows written by the reference creation endpoint by result.",
		}, []string{"result"})
)

func init() {
	prometheus.MustRegister(
		SubmissionsTotal,
		ValidationFailuresTotal,
		SubmissionFailuresTotal,
		SubmissionsInFlight,
		CreateDuration,
		PatientsStoredTotal,
	)
}

// StatusClass buckets an HTTP status for the CreateDuration label.  Zero
// means the request never produced a response.
func StatusClass(code int) string {
	switch {
	case code == 0:
		return "error"
	case code < 300:
		return "2xx"
	case code < 400:
		return "3xx"
	case code < 500:
		return "4xx"
	default:
		return "5xx"
	}
}
