package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"gbconnect/internal/models"
	"gbconnect/internal/repositories"
)

// UserService defines the profile operations of the signed-in user.
type UserService interface {
	GetUserProfile(ctx context.Context, userID primitive.ObjectID) (*models.User, error)
	UpdateUserProfile(ctx context.Context, userID primitive.ObjectID, updatePayload *models.UserProfileUpdate) (*models.User, error)
	DeleteUser(ctx context.Context, userID primitive.ObjectID) error
	GetTotalUsers(ctx context.Context) (int64, error)
}

type userService struct {
	userRepo repositories.UserRepository
	catalog  CatalogService
}

func NewUserService(userRepo repositories.UserRepository, catalog CatalogService) UserService {
	return &userService{userRepo: userRepo, catalog: catalog}
}

func (s *userService) GetTotalUsers(ctx context.Context) (int64, error) {
	return s.userRepo.CountAll(ctx)
}

func (s *userService) GetUserProfile(ctx context.Context, userID primitive.ObjectID) (*models.User, error) {
	log.Debug().Str("user_id", userID.Hex()).Msg("Attempting to retrieve user profile")
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			log.Warn().Str("user_id", userID.Hex()).Msg("User not found for profile lookup")
			return nil, fmt.Errorf("%w: user not found", ErrNotFound)
		}
		log.Error().Err(err).Str("user_id", userID.Hex()).Msg("Failed to fetch user profile")
		return nil, err
	}
	return user, nil
}

func (s *userService) UpdateUserProfile(ctx context.Context, userID primitive.ObjectID, updatePayload *models.UserProfileUpdate) (*models.User, error) {
	updateFields := bson.M{}
	if updatePayload.Name != nil {
		name := strings.TrimSpace(*updatePayload.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: name cannot be empty", ErrInvalidInput)
		}
		updateFields["name"] = name
	}
	if updatePayload.Phone != nil {
		updateFields["phone"] = strings.TrimSpace(*updatePayload.Phone)
	}
	if updatePayload.Bio != nil {
		updateFields["bio"] = strings.TrimSpace(*updatePayload.Bio)
	}
	if updatePayload.AvatarURL != nil {
		updateFields["avatar_url"] = strings.TrimSpace(*updatePayload.AvatarURL)
	}
	if updatePayload.Email != nil {
		email := normalizeEmail(*updatePayload.Email)
		if email == "" {
			return nil, fmt.Errorf("%w: email cannot be empty", ErrInvalidInput)
		}

		currentUser, err := s.GetUserProfile(ctx, userID)
		if err != nil {
			return nil, err
		}
		if currentUser.Email != email {
			_, err := s.userRepo.FindByEmail(ctx, email)
			if err == nil {
				log.Warn().Str("email", email).Msg("Email already in use by another account during profile update")
				return nil, fmt.Errorf("%w: email already in use by another account", ErrConflict)
			}
			if !errors.Is(err, mongo.ErrNoDocuments) {
				return nil, fmt.Errorf("failed to check email availability: %w", err)
			}
			updateFields["email"] = email
		}
	}
	if updatePayload.Password != nil && *updatePayload.Password != "" {
		if len(*updatePayload.Password) < MinPasswordLength {
			return nil, fmt.Errorf("%w: password must be at least %d characters", ErrInvalidInput, MinPasswordLength)
		}
		hashed, err := hashPassword(*updatePayload.Password)
		if err != nil {
			return nil, err
		}
		updateFields["password"] = hashed
	}

	if len(updateFields) == 0 {
		log.Warn().Str("user_id", userID.Hex()).Msg("No valid fields provided for user profile update")
		return nil, fmt.Errorf("%w: no valid fields provided for update", ErrInvalidInput)
	}

	result, err := s.userRepo.Update(ctx, userID, updateFields)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, fmt.Errorf("%w: email already in use by another account", ErrConflict)
		}
		return nil, err
	}
	if result.MatchedCount == 0 {
		return nil, fmt.Errorf("%w: user not found", ErrNotFound)
	}

	log.Info().Str("user_id", userID.Hex()).Msg("User profile updated successfully")
	return s.GetUserProfile(ctx, userID)
}

// DeleteUser removes the account after taking the user's listings off the catalog.
func (s *userService) DeleteUser(ctx context.Context, userID primitive.ObjectID) error {
	if err := s.catalog.DeactivateProviderServices(ctx, userID); err != nil {
		return err
	}

	result, err := s.userRepo.Delete(ctx, userID)
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return fmt.Errorf("%w: user not found", ErrNotFound)
	}

	log.Info().Str("user_id", userID.Hex()).Msg("User account deleted successfully")
	return nil
}
