package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce       sync.Once
	apiRequestsTotal   *prometheus.CounterVec
	apiLatencySeconds  *prometheus.HistogramVec
	apiErrorsTotal     *prometheus.CounterVec
	bulkRowsTotal      *prometheus.CounterVec
	bulkChunkSeconds   *prometheus.HistogramVec
	rolloverTotal      *prometheus.CounterVec
	rolloverStudents   *prometheus.CounterVec
	studentCacheLookup *prometheus.CounterVec
)

// RegisterMetrics initialises the Prometheus collectors used by the API.
func RegisterMetrics() {
	registerOnce.Do(func() {
		apiRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "records_api_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		apiLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "records_api_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
		}, []string{"method", "route"})

		apiErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "records_api_errors_total",
			Help: "Total number of error responses returned by the API.",
		}, []string{"method", "route", "status"})

		bulkRowsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "records_bulk_rows_total",
			Help: "Imported rows by kind and outcome (accepted, rejected, committed).",
		}, []string{"kind", "outcome"})

		bulkChunkSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "records_bulk_chunk_seconds",
			Help:    "Time spent committing one bulk upsert chunk.",
			Buckets: prometheus.DefBuckets,
		}, []string{"kind"})

		rolloverTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "records_rollover_total",
			Help: "Study year rollovers by result.",
		}, []string{"result"})

		rolloverStudents = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "records_rollover_students_total",
			Help: "Students processed by rollovers, by outcome (moved, promoted, graduated).",
		}, []string{"outcome"})

		studentCacheLookup = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "records_student_cache_lookups_total",
			Help: "Public student result cache lookups by result (hit, miss).",
		}, []string{"result"})

		prometheus.MustRegister(
			apiRequestsTotal,
			apiLatencySeconds,
			apiErrorsTotal,
			bulkRowsTotal,
			bulkChunkSeconds,
			rolloverTotal,
			rolloverStudents,
			studentCacheLookup,
		)
	})
}

// APIRequests exposes the counter for API requests.
func APIRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return apiRequestsTotal
}

// APILatency exposes the latency histogram for API requests.
func APILatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return apiLatencySeconds
}

// APIErrors exposes the counter for API error responses.
func APIErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return apiErrorsTotal
}

// BulkRows exposes the imported row counter.
func BulkRows() *prometheus.CounterVec {
	RegisterMetrics()
	return bulkRowsTotal
}

// BulkChunkDuration exposes the chunk commit histogram.
func BulkChunkDuration() *prometheus.HistogramVec {
	RegisterMetrics()
	return bulkChunkSeconds
}

// Rollovers exposes the rollover result counter.
func Rollovers() *prometheus.CounterVec {
	RegisterMetrics()
	return rolloverTotal
}

// RolloverStudents exposes the per-student rollover outcome counter.
func RolloverStudents() *prometheus.CounterVec {
	RegisterMetrics()
	return rolloverStudents
}

// StudentCacheLookups exposes the public result cache counter.
func StudentCacheLookups() *prometheus.CounterVec {
	RegisterMetrics()
	return studentCacheLookup
}
