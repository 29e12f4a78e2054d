package utils

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.mongodb.org/mongo-driver/mongo"
)

var InFlightRequests = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "http_in_flight_requests",
	Help: "Current number of in-flight HTTP requests.",
})

// Database Metrics
var DBQueryDurationSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "db_query_duration_seconds",
	Help:    "Duration of database queries in seconds.",
	Buckets: prometheus.DefBuckets,
}, []string{"query_type", "repository", "status"})

var DBQueryErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "db_query_errors_total",
	Help: "Total number of failed database queries.",
}, []string{"query_type", "repository"})

// TrackQuery starts a query timer and returns the func that stops it. It is meant to be
// deferred with a pointer to the method's named error result:
//
//	defer utils.TrackQuery("create", "user")(&err)
//
// mongo.ErrNoDocuments is not counted as a failure.
func TrackQuery(queryType, repository string) func(errp *error) {
	timer := prometheus.NewTimer(nil)
	return func(errp *error) {
		status := "success"
		if errp != nil && *errp != nil && !errors.Is(*errp, mongo.ErrNoDocuments) {
			status = "error"
			DBQueryErrorsTotal.WithLabelValues(queryType, repository).Inc()
		}
		DBQueryDurationSeconds.WithLabelValues(queryType, repository, status).Observe(timer.ObserveDuration().Seconds())
	}
}
