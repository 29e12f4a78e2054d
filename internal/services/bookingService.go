package services

import (
	"context"
	"errors"
	"fmt"
	"html"
	"math"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"gbconnect/internal/metrics"
	"gbconnect/internal/models"
	"gbconnect/internal/repositories"
)

type BookingService interface {
	CreateBooking(ctx context.Context, userID primitive.ObjectID, req *models.CreateBookingRequest) (*models.Booking, error)
	ListUserBookings(ctx context.Context, userID primitive.ObjectID, status string) ([]models.Booking, error)
	ListProviderBookings(ctx context.Context, providerID primitive.ObjectID, status string) ([]models.Booking, error)
	GetBooking(ctx context.Context, userID, bookingID primitive.ObjectID) (*models.Booking, error)
	UpdateBookingStatus(ctx context.Context, userID, bookingID primitive.ObjectID, status string) (*models.Booking, error)
}

type bookingService struct {
	bookingRepo   repositories.BookingRepository
	serviceRepo   repositories.ServiceRepository
	userRepo      repositories.UserRepository
	notifications NotificationService
	email         EmailService
	now           func() time.Time
}

func NewBookingService(
	bookingRepo repositories.BookingRepository,
	serviceRepo repositories.ServiceRepository,
	userRepo repositories.UserRepository,
	notifications NotificationService,
	email EmailService,
) BookingService {
	return &bookingService{
		bookingRepo:   bookingRepo,
		serviceRepo:   serviceRepo,
		userRepo:      userRepo,
		notifications: notifications,
		email:         email,
		now:           time.Now,
	}
}

var providerTransitions = map[string][]string{
	models.BookingPending:   {models.BookingConfirmed, models.BookingRejected},
	models.BookingConfirmed: {models.BookingCompleted, models.BookingCancelled},
}

var touristTransitions = map[string][]string{
	models.BookingPending:   {models.BookingCancelled},
	models.BookingConfirmed: {models.BookingCancelled},
}

func allowed(table map[string][]string, from, to string) bool {
	for _, next := range table[from] {
		if next == to {
			return true
		}
	}
	return false
}

func isBookingStatus(s string) bool {
	switch s {
	case models.BookingPending, models.BookingConfirmed, models.BookingRejected, models.BookingCancelled, models.BookingCompleted:
		return true
	}
	return false
}

// BookingUnits is the multiplier applied to the service price: nights for stays and
// transport, guests for tours and food.
func BookingUnits(category string, start, end time.Time, guests int) int {
	switch category {
	case models.CategoryAccommodation, models.CategoryTransport:
		nights := int(end.Sub(start).Hours() / 24)
		if nights < 1 {
			nights = 1
		}
		return nights
	default:
		return guests
	}
}

func parseDate(field, raw string) (time.Time, error) {
	t, err := time.ParseInLocation(models.DateLayout, strings.TrimSpace(raw), time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s must be a date in YYYY-MM-DD format", ErrInvalidInput, field)
	}
	return t, nil
}

func (s *bookingService) CreateBooking(ctx context.Context, userID primitive.ObjectID, req *models.CreateBookingRequest) (*models.Booking, error) {
	serviceID, err := primitive.ObjectIDFromHex(req.ServiceID)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid service id", ErrInvalidInput)
	}
	if req.StartDate == "" {
		return nil, fmt.Errorf("%w: startDate is required", ErrInvalidInput)
	}
	start, err := parseDate("startDate", req.StartDate)
	if err != nil {
		return nil, err
	}
	end := start
	if req.EndDate != "" {
		if end, err = parseDate("endDate", req.EndDate); err != nil {
			return nil, err
		}
	}

	now := s.now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if start.Before(today) {
		return nil, fmt.Errorf("%w: startDate cannot be in the past", ErrInvalidInput)
	}
	if end.Before(start) {
		return nil, fmt.Errorf("%w: endDate cannot be before startDate", ErrInvalidInput)
	}
	if req.Guests < 1 {
		return nil, fmt.Errorf("%w: guests must be at least 1", ErrInvalidInput)
	}

	svc, err := s.serviceRepo.FindByID(ctx, serviceID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: service not found", ErrNotFound)
		}
		return nil, err
	}
	if svc.Status != models.ServiceStatusActive {
		return nil, fmt.Errorf("%w: service is not available for booking", ErrInvalidInput)
	}
	if svc.ProviderID == userID {
		return nil, fmt.Errorf("%w: you cannot book your own service", ErrForbidden)
	}
	if svc.Capacity > 0 && req.Guests > svc.Capacity {
		return nil, fmt.Errorf("%w: guests exceed service capacity of %d", ErrInvalidInput, svc.Capacity)
	}

	units := BookingUnits(svc.Category, start, end, req.Guests)
	booking := &models.Booking{
		ServiceID:    svc.ID,
		UserID:       userID,
		ProviderID:   svc.ProviderID,
		ServiceTitle: svc.Title,
		StartDate:    start,
		EndDate:      end,
		Guests:       req.Guests,
		Notes:        strings.TrimSpace(req.Notes),
		Status:       models.BookingPending,
		TotalPrice:   math.Round(svc.Price*float64(units)*100) / 100,
	}
	if _, err := s.bookingRepo.Create(ctx, booking); err != nil {
		return nil, err
	}

	metrics.BookingCreatedTotal.Inc()
	log.Info().Str("booking_id", booking.ID.Hex()).Str("service_id", svc.ID.Hex()).Str("user_id", userID.Hex()).Msg("Booking created")

	message := fmt.Sprintf("New booking request for %s on %s (%d guests).", svc.Title, start.Format(models.DateLayout), req.Guests)
	s.notifications.Notify(ctx, svc.ProviderID, models.NotificationBookingCreated, "New booking request", message, &booking.ID)
	s.emailUser(ctx, svc.ProviderID, "New booking request on GBConnect", "<p>"+html.EscapeString(message)+"</p>")

	return booking, nil
}

func (s *bookingService) ListUserBookings(ctx context.Context, userID primitive.ObjectID, status string) ([]models.Booking, error) {
	if status != "" && !isBookingStatus(status) {
		return nil, fmt.Errorf("%w: unknown booking status %q", ErrInvalidInput, status)
	}
	return s.bookingRepo.FindByUser(ctx, userID, status)
}

func (s *bookingService) ListProviderBookings(ctx context.Context, providerID primitive.ObjectID, status string) ([]models.Booking, error) {
	if status != "" && !isBookingStatus(status) {
		return nil, fmt.Errorf("%w: unknown booking status %q", ErrInvalidInput, status)
	}
	return s.bookingRepo.FindByProvider(ctx, providerID, status)
}

// GetBooking hides bookings from anyone but their tourist and provider.
func (s *bookingService) GetBooking(ctx context.Context, userID, bookingID primitive.ObjectID) (*models.Booking, error) {
	booking, err := s.bookingRepo.FindByID(ctx, bookingID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: booking not found", ErrNotFound)
		}
		return nil, err
	}
	if booking.UserID != userID && booking.ProviderID != userID {
		return nil, fmt.Errorf("%w: booking not found", ErrNotFound)
	}
	return booking, nil
}

func (s *bookingService) UpdateBookingStatus(ctx context.Context, userID, bookingID primitive.ObjectID, status string) (*models.Booking, error) {
	if !isBookingStatus(status) {
		return nil, fmt.Errorf("%w: unknown booking status %q", ErrInvalidInput, status)
	}

	booking, err := s.GetBooking(ctx, userID, bookingID)
	if err != nil {
		return nil, err
	}

	isProvider := booking.ProviderID == userID
	mine, theirs := touristTransitions, providerTransitions
	if isProvider {
		mine, theirs = providerTransitions, touristTransitions
	}
	if !allowed(mine, booking.Status, status) {
		if allowed(theirs, booking.Status, status) {
			return nil, fmt.Errorf("%w: you cannot set this booking to %s", ErrForbidden, status)
		}
		return nil, fmt.Errorf("%w: cannot change booking from %s to %s", ErrInvalidInput, booking.Status, status)
	}

	result, err := s.bookingRepo.UpdateStatus(ctx, bookingID, booking.Status, status)
	if err != nil {
		return nil, err
	}
	if result.MatchedCount == 0 {
		return nil, fmt.Errorf("%w: booking was modified concurrently, reload and retry", ErrConflict)
	}

	previous := booking.Status
	booking.Status = status
	booking.UpdatedAt = s.now().UTC()
	metrics.BookingStatusChangesTotal.WithLabelValues(status).Inc()
	log.Info().Str("booking_id", bookingID.Hex()).Str("from", previous).Str("to", status).Msg("Booking status changed")

	counterpart := booking.ProviderID
	if isProvider {
		counterpart = booking.UserID
	}
	message := fmt.Sprintf("The booking for %s on %s is now %s.", booking.ServiceTitle, booking.StartDate.Format(models.DateLayout), status)
	s.notifications.Notify(ctx, counterpart, models.NotificationBookingStatus, "Booking "+status, message, &booking.ID)
	s.emailUser(ctx, counterpart, "Booking "+status+" on GBConnect", "<p>"+html.EscapeString(message)+"</p>")

	return booking, nil
}

func (s *bookingService) emailUser(ctx context.Context, userID primitive.ObjectID, subject, body string) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		log.Warn().Err(err).Str("user_id", userID.Hex()).Msg("Could not load user for notification email")
		return
	}
	sendEmailAsync(s.email, user.Email, subject, body)
}
