package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"gbconnect/internal/database"
	"gbconnect/internal/models"
	"gbconnect/internal/utils"
)

type UserRepository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, userID primitive.ObjectID) (*models.User, error)
	Update(ctx context.Context, userID primitive.ObjectID, updateFields bson.M) (*mongo.UpdateResult, error)
	Delete(ctx context.Context, userID primitive.ObjectID) (*mongo.DeleteResult, error)
	CountAll(ctx context.Context) (int64, error)
}

type userRepository struct {
	db database.Service
}

func NewUserRepository(db database.Service) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) collection() *mongo.Collection {
	return r.db.Database().Collection(database.UsersCollection)
}

func (r *userRepository) Create(ctx context.Context, user *models.User) (_ *models.User, err error) {
	defer utils.TrackQuery("create", "user")(&err)

	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	if _, err = r.collection().InsertOne(ctx, user); err != nil {
		log.Error().Err(err).Str("email", user.Email).Msg("Failed to insert user into database")
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}

// FindByEmail returns mongo.ErrNoDocuments when no user has the address.
func (r *userRepository) FindByEmail(ctx context.Context, email string) (_ *models.User, err error) {
	defer utils.TrackQuery("findByEmail", "user")(&err)

	var user models.User
	if err = r.collection().FindOne(ctx, bson.M{"email": email}).Decode(&user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) FindByID(ctx context.Context, userID primitive.ObjectID) (_ *models.User, err error) {
	defer utils.TrackQuery("findById", "user")(&err)

	var user models.User
	if err = r.collection().FindOne(ctx, bson.M{"_id": userID}).Decode(&user); err != nil {
		return nil, err // Can be mongo.ErrNoDocuments
	}
	return &user, nil
}

func (r *userRepository) Update(ctx context.Context, userID primitive.ObjectID, updateFields bson.M) (_ *mongo.UpdateResult, err error) {
	defer utils.TrackQuery("update", "user")(&err)

	updateFields["updated_at"] = time.Now().UTC()
	result, err := r.collection().UpdateOne(ctx, bson.M{"_id": userID}, bson.M{"$set": updateFields})
	if err != nil {
		log.Error().Err(err).Str("user_id", userID.Hex()).Msg("Error updating user profile")
		return nil, fmt.Errorf("failed to update user profile: %w", err)
	}
	return result, nil
}

func (r *userRepository) Delete(ctx context.Context, userID primitive.ObjectID) (_ *mongo.DeleteResult, err error) {
	defer utils.TrackQuery("delete", "user")(&err)

	result, err := r.collection().DeleteOne(ctx, bson.M{"_id": userID})
	if err != nil {
		log.Error().Err(err).Str("user_id", userID.Hex()).Msg("Error deleting user account")
		return nil, fmt.Errorf("failed to delete account: %w", err)
	}
	return result, nil
}

func (r *userRepository) CountAll(ctx context.Context) (_ int64, err error) {
	defer utils.TrackQuery("countAll", "user")(&err)

	count, err := r.collection().CountDocuments(ctx, bson.M{})
	if err != nil {
		log.Error().Err(err).Msg("Failed to count total users")
		return 0, fmt.Errorf("failed to count total users: %w", err)
	}
	return count, nil
}
