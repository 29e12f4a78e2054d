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

type OTPRepository interface {
	Create(ctx context.Context, otp *models.OTP) (*models.OTP, error)
	Consume(ctx context.Context, email, code, purpose string) (*models.OTP, error)
	InvalidateActive(ctx context.Context, email, purpose string) error
	DeleteExpired(ctx context.Context) (int64, error)
}

type otpRepository struct {
	db database.Service
}

func NewOTPRepository(db database.Service) OTPRepository {
	return &otpRepository{db: db}
}

func (r *otpRepository) collection() *mongo.Collection {
	return r.db.Database().Collection(database.OTPsCollection)
}

func (r *otpRepository) Create(ctx context.Context, otp *models.OTP) (_ *models.OTP, err error) {
	defer utils.TrackQuery("create", "otp")(&err)

	otp.ID = primitive.NewObjectID()
	otp.CreatedAt = time.Now().UTC()
	if _, err = r.collection().InsertOne(ctx, otp); err != nil {
		return nil, fmt.Errorf("failed to store otp: %w", err)
	}
	return otp, nil
}

// Consume marks the matching unused, unexpired OTP as used in a single update and returns it.
// It returns nil when no such code exists, so a code is accepted at most once.
func (r *otpRepository) Consume(ctx context.Context, email, code, purpose string) (_ *models.OTP, err error) {
	defer utils.TrackQuery("consume", "otp")(&err)

	filter := bson.M{
		"email":      email,
		"code":       code,
		"purpose":    purpose,
		"used":       false,
		"expires_at": bson.M{"$gt": time.Now().UTC()},
	}
	opts := options.FindOneAndUpdate().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetReturnDocument(options.After)

	var otp models.OTP
	err = r.collection().FindOneAndUpdate(ctx, filter, bson.M{"$set": bson.M{"used": true}}, opts).Decode(&otp)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	return &otp, nil
}

// InvalidateActive retires every outstanding code for the email and purpose so only the newest one works.
func (r *otpRepository) InvalidateActive(ctx context.Context, email, purpose string) (err error) {
	defer utils.TrackQuery("invalidateActive", "otp")(&err)

	filter := bson.M{"email": email, "purpose": purpose, "used": false}
	_, err = r.collection().UpdateMany(ctx, filter, bson.M{"$set": bson.M{"used": true}})
	return err
}

// DeleteExpired removes codes past their expiry. Used codes are kept until then.
func (r *otpRepository) DeleteExpired(ctx context.Context) (_ int64, err error) {
	defer utils.TrackQuery("deleteExpired", "otp")(&err)

	filter := bson.M{"expires_at": bson.M{"$lt": time.Now().UTC()}}
	result, err := r.collection().DeleteMany(ctx, filter)
	if err != nil {
		return 0, err
	}
	return result.DeletedCount, nil
}
