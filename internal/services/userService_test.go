package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"

	"gbconnect/internal/cache"
	"gbconnect/internal/models"
	"gbconnect/internal/repositories/repotest"
)

func TestUserProfile(t *testing.T) {
	users := repotest.NewUsers()
	svc := NewUserService(users, NewCatalogService(repotest.NewServices(), nil, nil))
	ctx := context.Background()
	me := newUser(t, users, "Me", "me@example.com", models.RoleTourist)
	newUser(t, users, "Taken", "taken@example.com", models.RoleTourist)

	profile, err := svc.GetUserProfile(ctx, me.ID)
	require.NoError(t, err)
	assert.Equal(t, "me@example.com", profile.Email)

	_, err = svc.GetUserProfile(ctx, primitive.NewObjectID())
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = svc.UpdateUserProfile(ctx, me.ID, &models.UserProfileUpdate{})
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = svc.UpdateUserProfile(ctx, me.ID, &models.UserProfileUpdate{Name: ptr("  ")})
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = svc.UpdateUserProfile(ctx, me.ID, &models.UserProfileUpdate{Email: ptr("Taken@example.com")})
	assert.ErrorIs(t, err, ErrConflict)
	_, err = svc.UpdateUserProfile(ctx, me.ID, &models.UserProfileUpdate{Password: ptr("short")})
	assert.ErrorIs(t, err, ErrInvalidInput)

	updated, err := svc.UpdateUserProfile(ctx, me.ID, &models.UserProfileUpdate{
		Name:     ptr("New Name"),
		Bio:      ptr("Guide from Skardu"),
		Phone:    ptr(" +92 300 0000000 "),
		Email:    ptr("New@Example.com"),
		Password: ptr("long-enough"),
	})
	require.NoError(t, err)
	assert.Equal(t, "New Name", updated.Name)
	assert.Equal(t, "Guide from Skardu", updated.Bio)
	assert.Equal(t, "+92 300 0000000", updated.Phone)
	assert.Equal(t, "new@example.com", updated.Email)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(updated.Password), []byte("long-enough")))

	total, err := svc.GetTotalUsers(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)

	require.NoError(t, svc.DeleteUser(ctx, me.ID))
	assert.ErrorIs(t, svc.DeleteUser(ctx, me.ID), ErrNotFound)
}

func TestDeleteUserDeactivatesListings(t *testing.T) {
	ctx := context.Background()
	users := repotest.NewUsers()
	services := repotest.NewServices()
	catalog := NewCatalogService(services, cache.NewMemory(), nil)
	svc := NewUserService(users, catalog)

	provider := newUser(t, users, "Host", "host@example.com", models.RoleProvider)
	other := primitive.NewObjectID()
	lodge := seedService(t, services, provider.ID, "Lodge", models.CategoryAccommodation, 50)
	trek := seedService(t, services, provider.ID, "Trek", models.CategoryTour, 20)
	kept := seedService(t, services, other, "Jeep", models.CategoryTransport, 30)

	cached, err := catalog.GetService(ctx, lodge.ID)
	require.NoError(t, err)
	require.Equal(t, models.ServiceStatusActive, cached.Status)

	require.NoError(t, svc.DeleteUser(ctx, provider.ID))

	assert.Equal(t, models.ServiceStatusInactive, services.Items[lodge.ID].Status)
	assert.Equal(t, models.ServiceStatusInactive, services.Items[trek.ID].Status)
	assert.Equal(t, models.ServiceStatusActive, services.Items[kept.ID].Status)

	got, err := catalog.GetService(ctx, lodge.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ServiceStatusInactive, got.Status, "cached listing is dropped")

	page, err := catalog.ListServices(ctx, models.ServiceFilter{})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, kept.ID, page.Items[0].ID)
}
