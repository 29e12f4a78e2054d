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

func TestNotifications(t *testing.T) {
	repo := repotest.NewNotifications()
	svc := NewNotificationService(repo)
	ctx := context.Background()
	user, other := primitive.NewObjectID(), primitive.NewObjectID()

	empty, err := svc.List(ctx, user, false)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	svc.Notify(ctx, user, models.NotificationBookingStatus, "Booking confirmed", "See you soon", nil)
	svc.Notify(ctx, user, models.NotificationBookingCreated, "New booking", "Someone booked", nil)
	svc.Notify(ctx, other, models.NotificationReviewCreated, "New review", "5/5", nil)

	all, err := svc.List(ctx, user, false)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "New booking", all[0].Title, "newest first")

	assert.ErrorIs(t, svc.MarkRead(ctx, other, all[0].ID), ErrNotFound, "users only touch their own notifications")
	require.NoError(t, svc.MarkRead(ctx, user, all[0].ID))

	unread, err := svc.List(ctx, user, true)
	require.NoError(t, err)
	require.Len(t, unread, 1)
	assert.Equal(t, "Booking confirmed", unread[0].Title)

	n, err := svc.MarkAllRead(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	unread, err = svc.List(ctx, user, true)
	require.NoError(t, err)
	assert.Empty(t, unread)

	otherUnread, err := svc.List(ctx, other, true)
	require.NoError(t, err)
	assert.Len(t, otherUnread, 1)
}
