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

type ReviewRepository interface {
	Create(ctx context.Context, review *models.Review) (*models.Review, error)
	FindByID(ctx context.Context, reviewID primitive.ObjectID) (*models.Review, error)
	FindByService(ctx context.Context, serviceID primitive.ObjectID) ([]models.Review, error)
	Exists(ctx context.Context, serviceID, userID primitive.ObjectID) (bool, error)
	Delete(ctx context.Context, userID, reviewID primitive.ObjectID) (*mongo.DeleteResult, error)
	Summarize(ctx context.Context, serviceID primitive.ObjectID) (models.RatingSummary, error)
}

type reviewRepository struct {
	db database.Service
}

func NewReviewRepository(db database.Service) ReviewRepository {
	return &reviewRepository{db: db}
}

func (r *reviewRepository) collection() *mongo.Collection {
	return r.db.Database().Collection(database.ReviewsCollection)
}

// Create returns the driver error untouched on a duplicate (service, user) pair so
// callers can test it with mongo.IsDuplicateKeyError.
func (r *reviewRepository) Create(ctx context.Context, review *models.Review) (_ *models.Review, err error) {
	defer utils.TrackQuery("create", "review")(&err)

	if review.ID.IsZero() {
		review.ID = primitive.NewObjectID()
	}
	review.CreatedAt = time.Now().UTC()

	if _, err = r.collection().InsertOne(ctx, review); err != nil {
		return nil, fmt.Errorf("failed to create review: %w", err)
	}
	return review, nil
}

func (r *reviewRepository) FindByID(ctx context.Context, reviewID primitive.ObjectID) (_ *models.Review, err error) {
	defer utils.TrackQuery("findById", "review")(&err)

	var review models.Review
	if err = r.collection().FindOne(ctx, bson.M{"_id": reviewID}).Decode(&review); err != nil {
		return nil, err
	}
	return &review, nil
}

func (r *reviewRepository) FindByService(ctx context.Context, serviceID primitive.ObjectID) (_ []models.Review, err error) {
	defer utils.TrackQuery("findByService", "review")(&err)

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := r.collection().Find(ctx, bson.M{"service_id": serviceID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve reviews: %w", err)
	}
	defer cursor.Close(ctx)

	reviews := []models.Review{}
	if err = cursor.All(ctx, &reviews); err != nil {
		return nil, fmt.Errorf("error decoding reviews: %w", err)
	}
	return reviews, nil
}

func (r *reviewRepository) Exists(ctx context.Context, serviceID, userID primitive.ObjectID) (_ bool, err error) {
	defer utils.TrackQuery("exists", "review")(&err)

	count, err := r.collection().CountDocuments(ctx, bson.M{"service_id": serviceID, "user_id": userID}, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("failed to check existing review: %w", err)
	}
	return count > 0, nil
}

func (r *reviewRepository) Delete(ctx context.Context, userID, reviewID primitive.ObjectID) (_ *mongo.DeleteResult, err error) {
	defer utils.TrackQuery("delete", "review")(&err)

	result, err := r.collection().DeleteOne(ctx, bson.M{"_id": reviewID, "user_id": userID})
	if err != nil {
		return nil, fmt.Errorf("failed to delete review: %w", err)
	}
	return result, nil
}

// Summarize computes the average rating and review count of a service.
func (r *reviewRepository) Summarize(ctx context.Context, serviceID primitive.ObjectID) (_ models.RatingSummary, err error) {
	defer utils.TrackQuery("summarize", "review")(&err)

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"service_id": serviceID}}},
		{{Key: "$group", Value: bson.M{
			"_id":     nil,
			"average": bson.M{"$avg": "$rating"},
			"count":   bson.M{"$sum": 1},
		}}},
	}

	cursor, err := r.collection().Aggregate(ctx, pipeline)
	if err != nil {
		return models.RatingSummary{}, fmt.Errorf("failed to aggregate ratings: %w", err)
	}
	defer cursor.Close(ctx)

	var rows []models.RatingSummary
	if err = cursor.All(ctx, &rows); err != nil {
		return models.RatingSummary{}, fmt.Errorf("error decoding ratings: %w", err)
	}
	if len(rows) == 0 {
		return models.RatingSummary{}, nil
	}
	return rows[0], nil
}
