package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"

	_ "github.com/joho/godotenv/autoload"

	"gbconnect/internal/cache"
	"gbconnect/internal/database"
	"gbconnect/internal/jobs"
	"gbconnect/internal/middlewares"
	"gbconnect/internal/repositories"
	"gbconnect/internal/services"
	"gbconnect/internal/storage"
)

const defaultPort = 8080

type Server struct {
	port       int
	httpServer *http.Server
	db         database.Service
	cache      cache.Cache
	scheduler  *jobs.Scheduler

	limiter        *middlewares.RateLimiter
	metrics        *middlewares.PrometheusMiddleware
	allowedOrigins []string
	stopBackground context.CancelFunc

	userService         services.UserService
	authService         services.AuthService
	catalogService      services.CatalogService
	bookingService      services.BookingService
	reviewService       services.ReviewService
	notificationService services.NotificationService
	dashboardService    services.DashboardService
	assistantService    services.AssistantService
}

func NewServer() *Server {
	port := defaultPort
	if portStr := os.Getenv("PORT"); portStr != "" {
		p, err := strconv.Atoi(portStr)
		if err != nil {
			log.Warn().Err(err).Str("port", portStr).Msgf("Invalid PORT environment variable. Using default %d.", defaultPort)
		} else {
			port = p
		}
	}

	db := database.New()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := db.EnsureIndexes(ctx); err != nil {
		log.Fatal().Err(err).Msg("Could not create database indexes")
	}
	cancel()

	c := cache.New()

	images, err := storage.NewImageStore()
	if err != nil {
		if errors.Is(err, storage.ErrNotConfigured) {
			log.Warn().Msg("Cloudinary not configured, image uploads disabled")
		} else {
			log.Error().Err(err).Msg("Image storage disabled")
		}
		images = nil
	}

	generator, err := services.NewTextGenerator(context.Background())
	if err != nil {
		log.Warn().Err(err).Msg("Text generation disabled")
		generator = nil
	}

	userRepo := repositories.NewUserRepository(db)
	otpRepo := repositories.NewOTPRepository(db)
	serviceRepo := repositories.NewServiceRepository(db)
	bookingRepo := repositories.NewBookingRepository(db)
	reviewRepo := repositories.NewReviewRepository(db)
	notificationRepo := repositories.NewNotificationRepository(db)

	emailService := services.NewEmailService()
	otpService := services.NewOTPService(otpRepo, emailService, c)
	notificationService := services.NewNotificationService(notificationRepo)
	catalogService := services.NewCatalogService(serviceRepo, c, images)

	s := &Server{
		port:      port,
		db:        db,
		cache:     c,
		scheduler: jobs.NewScheduler(otpRepo, bookingRepo, userRepo, emailService),

		limiter:        middlewares.NewRateLimiterFromEnv(),
		metrics:        middlewares.NewPrometheusMiddleware(prometheus.DefaultRegisterer),
		allowedOrigins: middlewares.AllowedOriginsFromEnv(),

		userService:         services.NewUserService(userRepo, catalogService),
		authService:         services.NewAuthService(userRepo, otpService),
		catalogService:      catalogService,
		bookingService:      services.NewBookingService(bookingRepo, serviceRepo, userRepo, notificationService, emailService),
		reviewService:       services.NewReviewService(reviewRepo, serviceRepo, bookingRepo, userRepo, catalogService, notificationService),
		notificationService: notificationService,
		dashboardService:    services.NewDashboardService(serviceRepo, bookingRepo),
		assistantService:    services.NewAssistantService(generator, serviceRepo, bookingRepo),
	}

	services.InitializeGoth()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.port),
		Handler:      s.RegisterRoutes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	return s
}

func (s *Server) Start() error {
	bgCtx, cancel := context.WithCancel(context.Background())
	s.stopBackground = cancel
	go s.limiter.CleanupVisitors(bgCtx)

	if err := s.scheduler.Start(); err != nil {
		cancel()
		return fmt.Errorf("starting scheduler: %w", err)
	}

	log.Info().Int("port", s.port).Msg("Starting server")
	return s.httpServer.ListenAndServe()
}

func (s *Server) GracefulShutdown(done chan bool) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	log.Info().Msg("Shutting down gracefully, press Ctrl+C again to force")
	stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown with error")
	}

	if s.stopBackground != nil {
		s.stopBackground()
	}
	s.scheduler.Stop(ctx)

	if err := s.cache.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close cache")
	}
	if err := s.db.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close database connection")
	}

	log.Info().Msg("Server exiting")
	done <- true
}
