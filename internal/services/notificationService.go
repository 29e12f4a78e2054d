package services

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"gbconnect/internal/models"
	"gbconnect/internal/repositories"
)

type NotificationService interface {
	Notify(ctx context.Context, userID primitive.ObjectID, kind, title, message string, ref *primitive.ObjectID)
	List(ctx context.Context, userID primitive.ObjectID, unreadOnly bool) ([]models.Notification, error)
	MarkRead(ctx context.Context, userID, notificationID primitive.ObjectID) error
	MarkAllRead(ctx context.Context, userID primitive.ObjectID) (int64, error)
}

type notificationService struct {
	notificationRepo repositories.NotificationRepository
}

func NewNotificationService(notificationRepo repositories.NotificationRepository) NotificationService {
	return &notificationService{notificationRepo: notificationRepo}
}

// Notify stores an in-app notification. Failures are logged and never surface to the caller.
func (s *notificationService) Notify(ctx context.Context, userID primitive.ObjectID, kind, title, message string, ref *primitive.ObjectID) {
	n := &models.Notification{
		UserID:      userID,
		Title:       title,
		Message:     message,
		Type:        kind,
		ReferenceID: ref,
	}
	if _, err := s.notificationRepo.Create(ctx, n); err != nil {
		log.Warn().Err(err).Str("user_id", userID.Hex()).Str("type", kind).Msg("Failed to store notification")
	}
}

func (s *notificationService) List(ctx context.Context, userID primitive.ObjectID, unreadOnly bool) ([]models.Notification, error) {
	notifications, err := s.notificationRepo.FindByUser(ctx, userID, unreadOnly)
	if err != nil {
		return nil, err
	}
	if notifications == nil {
		notifications = []models.Notification{}
	}
	return notifications, nil
}

func (s *notificationService) MarkRead(ctx context.Context, userID, notificationID primitive.ObjectID) error {
	result, err := s.notificationRepo.MarkRead(ctx, userID, notificationID)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("%w: notification not found", ErrNotFound)
	}
	return nil
}

func (s *notificationService) MarkAllRead(ctx context.Context, userID primitive.ObjectID) (int64, error) {
	return s.notificationRepo.MarkAllRead(ctx, userID)
}
