package repositories

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"gbconnect/internal/database"
	"gbconnect/internal/models"
	"gbconnect/internal/utils"
)

const notificationPageSize = 50

type NotificationRepository interface {
	Create(ctx context.Context, n *models.Notification) (*models.Notification, error)
	FindByUser(ctx context.Context, userID primitive.ObjectID, unreadOnly bool) ([]models.Notification, error)
	MarkRead(ctx context.Context, userID, notificationID primitive.ObjectID) (*mongo.UpdateResult, error)
	MarkAllRead(ctx context.Context, userID primitive.ObjectID) (int64, error)
}

type notificationRepository struct {
	db database.Service
}

func NewNotificationRepository(db database.Service) NotificationRepository {
	return &notificationRepository{db: db}
}

func (r *notificationRepository) collection() *mongo.Collection {
	return r.db.Database().Collection(database.NotificationsCollection)
}

func (r *notificationRepository) Create(ctx context.Context, n *models.Notification) (_ *models.Notification, err error) {
	defer utils.TrackQuery("create", "notification")(&err)

	n.ID = primitive.NewObjectID()
	n.CreatedAt = time.Now().UTC()
	if _, err = r.collection().InsertOne(ctx, n); err != nil {
		return nil, fmt.Errorf("failed to create notification: %w", err)
	}
	return n, nil
}

func (r *notificationRepository) FindByUser(ctx context.Context, userID primitive.ObjectID, unreadOnly bool) (_ []models.Notification, err error) {
	defer utils.TrackQuery("findByUser", "notification")(&err)

	filter := bson.M{"user_id": userID}
	if unreadOnly {
		filter["read"] = false
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}).SetLimit(notificationPageSize)

	cursor, err := r.collection().Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve notifications: %w", err)
	}
	defer cursor.Close(ctx)

	notifications := []models.Notification{}
	if err = cursor.All(ctx, &notifications); err != nil {
		return nil, fmt.Errorf("error decoding notifications: %w", err)
	}
	return notifications, nil
}

func (r *notificationRepository) MarkRead(ctx context.Context, userID, notificationID primitive.ObjectID) (_ *mongo.UpdateResult, err error) {
	defer utils.TrackQuery("markRead", "notification")(&err)

	filter := bson.M{"_id": notificationID, "user_id": userID}
	result, err := r.collection().UpdateOne(ctx, filter, bson.M{"$set": bson.M{"read": true}})
	if err != nil {
		return nil, fmt.Errorf("failed to mark notification read: %w", err)
	}
	return result, nil
}

func (r *notificationRepository) MarkAllRead(ctx context.Context, userID primitive.ObjectID) (_ int64, err error) {
	defer utils.TrackQuery("markAllRead", "notification")(&err)

	result, err := r.collection().UpdateMany(ctx, bson.M{"user_id": userID, "read": false}, bson.M{"$set": bson.M{"read": true}})
	if err != nil {
		return 0, fmt.Errorf("failed to mark notifications read: %w", err)
	}
	return result.ModifiedCount, nil
}
