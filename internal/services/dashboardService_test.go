package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"gbconnect/internal/models"
	"gbconnect/internal/repositories/repotest"
)

func TestProviderDashboard(t *testing.T) {
	services := repotest.NewServices()
	bookings := repotest.NewBookings()
	svc := NewDashboardService(services, bookings)
	ctx := context.Background()
	provider := primitive.NewObjectID()

	hotel := seedService(t, services, provider, "Hotel", models.CategoryAccommodation, 100)
	services.Items[hotel.ID].Rating = 4.5
	services.Items[hotel.ID].ReviewCount = 2
	tour := seedService(t, services, provider, "Tour", models.CategoryTour, 20)
	services.Items[tour.ID].Rating = 3.0
	services.Items[tour.ID].ReviewCount = 1
	services.Items[tour.ID].Status = models.ServiceStatusInactive
	seedService(t, services, provider, "Unrated", models.CategoryFood, 5)
	seedService(t, services, primitive.NewObjectID(), "Someone else", models.CategoryFood, 5)

	for _, b := range []models.Booking{
		{ProviderID: provider, Status: models.BookingPending, TotalPrice: 100},
		{ProviderID: provider, Status: models.BookingConfirmed, TotalPrice: 200},
		{ProviderID: provider, Status: models.BookingCompleted, TotalPrice: 40.5},
		{ProviderID: provider, Status: models.BookingCancelled, TotalPrice: 80},
		{ProviderID: primitive.NewObjectID(), Status: models.BookingCompleted, TotalPrice: 999},
	} {
		b := b
		_, err := bookings.Create(ctx, &b)
		require.NoError(t, err)
	}

	dash, err := svc.ProviderDashboard(ctx, provider)
	require.NoError(t, err)
	assert.Equal(t, int64(3), dash.TotalServices)
	assert.Equal(t, int64(2), dash.ActiveServices)
	assert.Equal(t, int64(4), dash.TotalBookings)
	assert.Equal(t, int64(1), dash.BookingsByStatus[models.BookingPending])
	assert.Equal(t, int64(0), dash.BookingsByStatus[models.BookingRejected])
	assert.Equal(t, 240.5, dash.Revenue)
	assert.Equal(t, 3.75, dash.AverageRating)
	assert.Equal(t, int64(3), dash.ReviewCount)
}

func TestProviderDashboardEmpty(t *testing.T) {
	svc := NewDashboardService(repotest.NewServices(), repotest.NewBookings())

	dash, err := svc.ProviderDashboard(context.Background(), primitive.NewObjectID())
	require.NoError(t, err)
	assert.Zero(t, dash.TotalServices)
	assert.Zero(t, dash.AverageRating)
	assert.Len(t, dash.BookingsByStatus, 5)
}
