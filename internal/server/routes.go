package server

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"gbconnect/internal/handlers"
	"gbconnect/internal/middlewares"
	"gbconnect/internal/models"
)

var (
	providerOnly = middlewares.RequireRole(models.RoleProvider)
	touristOnly  = middlewares.RequireRole(models.RoleTourist)
)

// authed wraps h with authentication and, when given, role checks.
func authed(h http.HandlerFunc, roles ...func(http.Handler) http.Handler) http.Handler {
	var next http.Handler = h
	for i := len(roles) - 1; i >= 0; i-- {
		next = roles[i](next)
	}
	return middlewares.AuthMiddleware(next)
}

func (s *Server) RegisterRoutes() http.Handler {
	r := mux.NewRouter()

	r.Use(middlewares.RequestLogger)
	r.Use(middlewares.Cors(s.allowedOrigins))
	r.Use(s.limiter.Middleware)
	r.Use(s.metrics.Instrument)

	ch := handlers.NewCommonHandler(s.db)
	r.HandleFunc("/", ch.HelloWorldHandler)
	r.HandleFunc("/health", ch.HealthHandler)
	r.Handle("/metrics", promhttp.Handler())

	s.registerAuthRoutes(r)
	s.registerProfileRoutes(r)
	s.registerCatalogRoutes(r)
	s.registerBookingRoutes(r)
	s.registerReviewRoutes(r)
	s.registerNotificationRoutes(r)
	s.registerDashboardRoutes(r)
	s.registerAssistantRoutes(r)

	return r
}

func (s *Server) registerAuthRoutes(r *mux.Router) {
	ah := handlers.NewAuthHandler(s.authService)

	r.HandleFunc("/api/auth/signup", ah.Signup).Methods("POST", "OPTIONS")
	r.HandleFunc("/api/auth/verify-otp", ah.VerifyOTP).Methods("POST", "OPTIONS")
	r.HandleFunc("/api/auth/resend-otp", ah.ResendOTP).Methods("POST", "OPTIONS")
	r.HandleFunc("/api/auth/login", ah.Login).Methods("POST", "OPTIONS")
	r.HandleFunc("/api/auth/forgot-password", ah.ForgotPassword).Methods("POST", "OPTIONS")
	r.HandleFunc("/api/auth/reset-password", ah.ResetPassword).Methods("POST", "OPTIONS")

	r.HandleFunc("/api/auth/success", ah.AuthSuccess).Methods("GET", "OPTIONS")
	r.HandleFunc("/api/auth/error", ah.AuthError).Methods("GET", "OPTIONS")
	r.HandleFunc("/api/auth/{provider}", ah.ProviderAuth).Methods("GET", "OPTIONS")
	r.HandleFunc("/api/auth/{provider}/callback", ah.ProviderCallback).Methods("GET", "OPTIONS")
}

func (s *Server) registerProfileRoutes(r *mux.Router) {
	uh := handlers.NewUserHandler(s.userService)

	r.Handle("/api/me", authed(uh.GetMyProfile)).Methods("GET", "OPTIONS")
	r.Handle("/api/me", authed(uh.UpdateMyProfile)).Methods("PATCH", "PUT", "OPTIONS")
	r.Handle("/api/me", authed(uh.DeleteMyProfile)).Methods("DELETE", "OPTIONS")
}

func (s *Server) registerCatalogRoutes(r *mux.Router) {
	ch := handlers.NewCatalogHandler(s.catalogService)

	r.HandleFunc("/api/services", ch.ListServices).Methods("GET", "OPTIONS")
	r.Handle("/api/services", authed(ch.CreateService, providerOnly)).Methods("POST", "OPTIONS")
	r.HandleFunc("/api/services/{id}", ch.GetService).Methods("GET", "OPTIONS")
	r.Handle("/api/services/{id}", authed(ch.UpdateService, providerOnly)).Methods("PUT", "PATCH", "OPTIONS")
	r.Handle("/api/services/{id}", authed(ch.DeleteService, providerOnly)).Methods("DELETE", "OPTIONS")
	r.Handle("/api/services/{id}/images", authed(ch.UploadImage, providerOnly)).Methods("POST", "OPTIONS")
	r.Handle("/api/provider/services", authed(ch.ListMyServices, providerOnly)).Methods("GET", "OPTIONS")
}

func (s *Server) registerBookingRoutes(r *mux.Router) {
	bh := handlers.NewBookingHandler(s.bookingService)

	r.Handle("/api/bookings", authed(bh.CreateBooking, touristOnly)).Methods("POST", "OPTIONS")
	r.Handle("/api/bookings", authed(bh.ListMyBookings)).Methods("GET", "OPTIONS")
	r.Handle("/api/bookings/{id}", authed(bh.GetBooking)).Methods("GET", "OPTIONS")
	r.Handle("/api/bookings/{id}/status", authed(bh.UpdateStatus)).Methods("PATCH", "PUT", "OPTIONS")
	r.Handle("/api/provider/bookings", authed(bh.ListProviderBookings, providerOnly)).Methods("GET", "OPTIONS")
}

func (s *Server) registerReviewRoutes(r *mux.Router) {
	rh := handlers.NewReviewHandler(s.reviewService)

	r.HandleFunc("/api/services/{id}/reviews", rh.ListReviews).Methods("GET", "OPTIONS")
	r.Handle("/api/services/{id}/reviews", authed(rh.CreateReview)).Methods("POST", "OPTIONS")
	r.Handle("/api/reviews/{id}", authed(rh.DeleteReview)).Methods("DELETE", "OPTIONS")
}

func (s *Server) registerNotificationRoutes(r *mux.Router) {
	nh := handlers.NewNotificationHandler(s.notificationService)

	r.Handle("/api/notifications", authed(nh.ListNotifications)).Methods("GET", "OPTIONS")
	r.Handle("/api/notifications/read-all", authed(nh.MarkAllRead)).Methods("PATCH", "POST", "OPTIONS")
	r.Handle("/api/notifications/{id}/read", authed(nh.MarkRead)).Methods("PATCH", "POST", "OPTIONS")
}

func (s *Server) registerDashboardRoutes(r *mux.Router) {
	dh := handlers.NewDashboardHandler(s.dashboardService)
	r.Handle("/api/provider/dashboard", authed(dh.ProviderDashboard, providerOnly)).Methods("GET", "OPTIONS")
}

func (s *Server) registerAssistantRoutes(r *mux.Router) {
	ah := handlers.NewAssistantHandler(s.assistantService)
	r.Handle("/api/assistant/describe", authed(ah.DescribeService, providerOnly)).Methods("POST", "OPTIONS")
	r.Handle("/api/assistant/suggestions", authed(ah.Suggestions, touristOnly)).Methods("GET", "OPTIONS")
}
