package services

import (
	"context"
	"math"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"gbconnect/internal/models"
	"gbconnect/internal/repositories"
)

type DashboardService interface {
	ProviderDashboard(ctx context.Context, providerID primitive.ObjectID) (*models.ProviderDashboard, error)
}

type dashboardService struct {
	serviceRepo repositories.ServiceRepository
	bookingRepo repositories.BookingRepository
}

func NewDashboardService(serviceRepo repositories.ServiceRepository, bookingRepo repositories.BookingRepository) DashboardService {
	return &dashboardService{serviceRepo: serviceRepo, bookingRepo: bookingRepo}
}

func (s *dashboardService) ProviderDashboard(ctx context.Context, providerID primitive.ObjectID) (*models.ProviderDashboard, error) {
	services, err := s.serviceRepo.FindByProvider(ctx, providerID)
	if err != nil {
		return nil, err
	}
	byStatus, revenue, err := s.bookingRepo.ProviderStats(ctx, providerID)
	if err != nil {
		return nil, err
	}

	dash := &models.ProviderDashboard{
		TotalServices:    int64(len(services)),
		BookingsByStatus: map[string]int64{},
		Revenue:          math.Round(revenue*100) / 100,
	}
	for _, status := range []string{models.BookingPending, models.BookingConfirmed, models.BookingRejected, models.BookingCancelled, models.BookingCompleted} {
		dash.BookingsByStatus[status] = byStatus[status]
		dash.TotalBookings += byStatus[status]
	}

	var ratingSum float64
	var rated int
	for _, svc := range services {
		if svc.Status == models.ServiceStatusActive {
			dash.ActiveServices++
		}
		if svc.ReviewCount > 0 {
			ratingSum += svc.Rating
			rated++
			dash.ReviewCount += int64(svc.ReviewCount)
		}
	}
	if rated > 0 {
		dash.AverageRating = math.Round(ratingSum/float64(rated)*100) / 100
	}
	return dash, nil
}
