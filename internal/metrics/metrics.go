package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// User Activity Metrics
	NewUsersTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "app_new_users_total",
		Help: "Total number of new user registrations.",
	})
	TotalUsers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "app_total_users",
		Help: "Total number of registered users in the application.",
	})
	LoginAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "app_login_attempts_total",
		Help: "Total number of login attempts (successful and failed).",
	}, []string{"status"}) // status: "success" or "failed"
	OTPSentTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "app_otp_sent_total",
		Help: "Total number of one-time codes sent.",
	}, []string{"purpose"})

	// Marketplace Metrics
	ServiceCreatedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "app_service_created_total",
		Help: "Total number of services listed by providers.",
	}, []string{"category"})
	BookingCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "app_booking_created_total",
		Help: "Total number of bookings created.",
	})
	BookingStatusChangesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "app_booking_status_changes_total",
		Help: "Total number of booking status transitions.",
	}, []string{"status"})
	ReviewCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "app_review_created_total",
		Help: "Total number of reviews written.",
	})
	DescriptionGeneratedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "app_description_generated_total",
		Help: "Total number of listing descriptions generated.",
	})
	SuggestionsGeneratedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "app_suggestions_generated_total",
		Help: "Total number of service suggestion sets generated.",
	})
)
