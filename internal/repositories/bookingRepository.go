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

type BookingRepository interface {
	Create(ctx context.Context, booking *models.Booking) (*models.Booking, error)
	FindByID(ctx context.Context, bookingID primitive.ObjectID) (*models.Booking, error)
	FindByUser(ctx context.Context, userID primitive.ObjectID, status string) ([]models.Booking, error)
	FindByProvider(ctx context.Context, providerID primitive.ObjectID, status string) ([]models.Booking, error)
	UpdateStatus(ctx context.Context, bookingID primitive.ObjectID, from, to string) (*mongo.UpdateResult, error)
	HasCompleted(ctx context.Context, userID, serviceID primitive.ObjectID) (bool, error)
	ProviderStats(ctx context.Context, providerID primitive.ObjectID) (map[string]int64, float64, error)
	CompleteEnded(ctx context.Context, before time.Time) (int64, error)
	FindDueReminders(ctx context.Context, from, to time.Time) ([]models.Booking, error)
	MarkReminderSent(ctx context.Context, bookingID primitive.ObjectID) error
}

type bookingRepository struct {
	db database.Service
}

func NewBookingRepository(db database.Service) BookingRepository {
	return &bookingRepository{db: db}
}

func (r *bookingRepository) collection() *mongo.Collection {
	return r.db.Database().Collection(database.BookingsCollection)
}

func (r *bookingRepository) Create(ctx context.Context, booking *models.Booking) (_ *models.Booking, err error) {
	defer utils.TrackQuery("create", "booking")(&err)

	if booking.ID.IsZero() {
		booking.ID = primitive.NewObjectID()
	}
	now := time.Now().UTC()
	booking.CreatedAt = now
	booking.UpdatedAt = now

	if _, err = r.collection().InsertOne(ctx, booking); err != nil {
		return nil, fmt.Errorf("failed to create booking: %w", err)
	}
	return booking, nil
}

func (r *bookingRepository) FindByID(ctx context.Context, bookingID primitive.ObjectID) (_ *models.Booking, err error) {
	defer utils.TrackQuery("findById", "booking")(&err)

	var booking models.Booking
	if err = r.collection().FindOne(ctx, bson.M{"_id": bookingID}).Decode(&booking); err != nil {
		return nil, err
	}
	return &booking, nil
}

func (r *bookingRepository) FindByUser(ctx context.Context, userID primitive.ObjectID, status string) (_ []models.Booking, err error) {
	defer utils.TrackQuery("findByUser", "booking")(&err)

	filter := bson.M{"user_id": userID}
	if status != "" {
		filter["status"] = status
	}
	return r.find(ctx, filter, options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
}

func (r *bookingRepository) FindByProvider(ctx context.Context, providerID primitive.ObjectID, status string) (_ []models.Booking, err error) {
	defer utils.TrackQuery("findByProvider", "booking")(&err)

	filter := bson.M{"provider_id": providerID}
	if status != "" {
		filter["status"] = status
	}
	return r.find(ctx, filter, options.Find().SetSort(bson.D{{Key: "start_date", Value: 1}}))
}

func (r *bookingRepository) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]models.Booking, error) {
	cursor, err := r.collection().Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve bookings: %w", err)
	}
	defer cursor.Close(ctx)

	bookings := []models.Booking{}
	if err := cursor.All(ctx, &bookings); err != nil {
		return nil, fmt.Errorf("error decoding bookings: %w", err)
	}
	return bookings, nil
}

// UpdateStatus only applies when the booking is still in status from, so two concurrent
// transitions cannot both succeed. MatchedCount is 0 when the booking moved on.
func (r *bookingRepository) UpdateStatus(ctx context.Context, bookingID primitive.ObjectID, from, to string) (_ *mongo.UpdateResult, err error) {
	defer utils.TrackQuery("updateStatus", "booking")(&err)

	filter := bson.M{"_id": bookingID, "status": from}
	update := bson.M{"$set": bson.M{"status": to, "updated_at": time.Now().UTC()}}
	result, err := r.collection().UpdateOne(ctx, filter, update)
	if err != nil {
		return nil, fmt.Errorf("failed to update booking status: %w", err)
	}
	return result, nil
}

func (r *bookingRepository) HasCompleted(ctx context.Context, userID, serviceID primitive.ObjectID) (_ bool, err error) {
	defer utils.TrackQuery("hasCompleted", "booking")(&err)

	filter := bson.M{"user_id": userID, "service_id": serviceID, "status": models.BookingCompleted}
	count, err := r.collection().CountDocuments(ctx, filter, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("failed to check completed bookings: %w", err)
	}
	return count > 0, nil
}

// ProviderStats returns the booking count per status and the revenue of confirmed and
// completed bookings for a provider.
func (r *bookingRepository) ProviderStats(ctx context.Context, providerID primitive.ObjectID) (_ map[string]int64, _ float64, err error) {
	defer utils.TrackQuery("providerStats", "booking")(&err)

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"provider_id": providerID}}},
		{{Key: "$group", Value: bson.M{
			"_id":   "$status",
			"count": bson.M{"$sum": 1},
			"total": bson.M{"$sum": "$total_price"},
		}}},
	}

	cursor, err := r.collection().Aggregate(ctx, pipeline)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to aggregate booking stats: %w", err)
	}
	defer cursor.Close(ctx)

	var rows []struct {
		Status string  `bson:"_id"`
		Count  int64   `bson:"count"`
		Total  float64 `bson:"total"`
	}
	if err = cursor.All(ctx, &rows); err != nil {
		return nil, 0, fmt.Errorf("error decoding booking stats: %w", err)
	}

	counts := make(map[string]int64, len(rows))
	var revenue float64
	for _, row := range rows {
		counts[row.Status] = row.Count
		if row.Status == models.BookingConfirmed || row.Status == models.BookingCompleted {
			revenue += row.Total
		}
	}
	return counts, revenue, nil
}

func (r *bookingRepository) CompleteEnded(ctx context.Context, before time.Time) (_ int64, err error) {
	defer utils.TrackQuery("completeEnded", "booking")(&err)

	filter := bson.M{"status": models.BookingConfirmed, "end_date": bson.M{"$lt": before}}
	update := bson.M{"$set": bson.M{"status": models.BookingCompleted, "updated_at": time.Now().UTC()}}
	result, err := r.collection().UpdateMany(ctx, filter, update)
	if err != nil {
		return 0, fmt.Errorf("failed to complete ended bookings: %w", err)
	}
	return result.ModifiedCount, nil
}

// FindDueReminders returns confirmed bookings starting in [from, to) that have not been reminded yet.
func (r *bookingRepository) FindDueReminders(ctx context.Context, from, to time.Time) (_ []models.Booking, err error) {
	defer utils.TrackQuery("findDueReminders", "booking")(&err)

	filter := bson.M{
		"status":        models.BookingConfirmed,
		"reminder_sent": bson.M{"$ne": true},
		"start_date":    bson.M{"$gte": from, "$lt": to},
	}
	return r.find(ctx, filter, options.Find())
}

func (r *bookingRepository) MarkReminderSent(ctx context.Context, bookingID primitive.ObjectID) (err error) {
	defer utils.TrackQuery("markReminderSent", "booking")(&err)

	_, err = r.collection().UpdateOne(ctx, bson.M{"_id": bookingID}, bson.M{"$set": bson.M{"reminder_sent": true}})
	return err
}
