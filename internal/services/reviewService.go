package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"gbconnect/internal/metrics"
	"gbconnect/internal/models"
	"gbconnect/internal/repositories"
)

const maxCommentLength = 2000

type ReviewService interface {
	CreateReview(ctx context.Context, userID, serviceID primitive.ObjectID, req *models.CreateReviewRequest) (*models.Review, error)
	ListReviews(ctx context.Context, serviceID primitive.ObjectID) ([]models.Review, error)
	DeleteReview(ctx context.Context, userID, reviewID primitive.ObjectID) error
}

type reviewService struct {
	reviewRepo    repositories.ReviewRepository
	serviceRepo   repositories.ServiceRepository
	bookingRepo   repositories.BookingRepository
	userRepo      repositories.UserRepository
	catalog       CatalogService
	notifications NotificationService
}

func NewReviewService(
	reviewRepo repositories.ReviewRepository,
	serviceRepo repositories.ServiceRepository,
	bookingRepo repositories.BookingRepository,
	userRepo repositories.UserRepository,
	catalog CatalogService,
	notifications NotificationService,
) ReviewService {
	return &reviewService{
		reviewRepo:    reviewRepo,
		serviceRepo:   serviceRepo,
		bookingRepo:   bookingRepo,
		userRepo:      userRepo,
		catalog:       catalog,
		notifications: notifications,
	}
}

func (s *reviewService) CreateReview(ctx context.Context, userID, serviceID primitive.ObjectID, req *models.CreateReviewRequest) (*models.Review, error) {
	if req.Rating < 1 || req.Rating > 5 {
		return nil, fmt.Errorf("%w: rating must be between 1 and 5", ErrInvalidInput)
	}
	comment := strings.TrimSpace(req.Comment)
	if len(comment) > maxCommentLength {
		return nil, fmt.Errorf("%w: comment is too long", ErrInvalidInput)
	}

	svc, err := s.serviceRepo.FindByID(ctx, serviceID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: service not found", ErrNotFound)
		}
		return nil, err
	}
	if svc.ProviderID == userID {
		return nil, fmt.Errorf("%w: you cannot review your own service", ErrForbidden)
	}

	exists, err := s.reviewRepo.Exists(ctx, serviceID, userID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, fmt.Errorf("%w: you have already reviewed this service", ErrConflict)
	}

	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: user not found", ErrNotFound)
		}
		return nil, err
	}

	verified, err := s.bookingRepo.HasCompleted(ctx, userID, serviceID)
	if err != nil {
		log.Warn().Err(err).Str("user_id", userID.Hex()).Msg("Could not check completed bookings for review")
	}

	review := &models.Review{
		ServiceID: serviceID,
		UserID:    userID,
		UserName:  user.Name,
		Rating:    req.Rating,
		Comment:   comment,
		Verified:  verified,
	}
	if _, err := s.reviewRepo.Create(ctx, review); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, fmt.Errorf("%w: you have already reviewed this service", ErrConflict)
		}
		return nil, err
	}

	metrics.ReviewCreatedTotal.Inc()
	log.Info().Str("review_id", review.ID.Hex()).Str("service_id", serviceID.Hex()).Int("rating", req.Rating).Msg("Review created")

	s.refreshRating(ctx, serviceID)
	message := fmt.Sprintf("%s rated %s %d/5.", user.Name, svc.Title, req.Rating)
	s.notifications.Notify(ctx, svc.ProviderID, models.NotificationReviewCreated, "New review", message, &serviceID)

	return review, nil
}

func (s *reviewService) ListReviews(ctx context.Context, serviceID primitive.ObjectID) ([]models.Review, error) {
	if _, err := s.catalog.GetService(ctx, serviceID); err != nil {
		return nil, err
	}
	reviews, err := s.reviewRepo.FindByService(ctx, serviceID)
	if err != nil {
		return nil, err
	}
	if reviews == nil {
		reviews = []models.Review{}
	}
	return reviews, nil
}

func (s *reviewService) DeleteReview(ctx context.Context, userID, reviewID primitive.ObjectID) error {
	review, err := s.reviewRepo.FindByID(ctx, reviewID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return fmt.Errorf("%w: review not found", ErrNotFound)
		}
		return err
	}
	if review.UserID != userID {
		return fmt.Errorf("%w: review not found", ErrNotFound)
	}

	result, err := s.reviewRepo.Delete(ctx, userID, reviewID)
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return fmt.Errorf("%w: review not found", ErrNotFound)
	}

	log.Info().Str("review_id", reviewID.Hex()).Msg("Review deleted")
	s.refreshRating(ctx, review.ServiceID)
	return nil
}

// refreshRating recomputes the average over all reviews of the service, rounded to two decimals.
func (s *reviewService) refreshRating(ctx context.Context, serviceID primitive.ObjectID) {
	summary, err := s.reviewRepo.Summarize(ctx, serviceID)
	if err != nil {
		log.Error().Err(err).Str("service_id", serviceID.Hex()).Msg("Failed to summarize ratings")
		return
	}
	summary.Average = math.Round(summary.Average*100) / 100

	if err := s.serviceRepo.UpdateRating(ctx, serviceID, summary); err != nil {
		log.Error().Err(err).Str("service_id", serviceID.Hex()).Msg("Failed to store service rating")
		return
	}
	s.catalog.InvalidateService(ctx, serviceID)
}
