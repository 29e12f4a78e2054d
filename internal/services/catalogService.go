package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"gbconnect/internal/cache"
	"gbconnect/internal/metrics"
	"gbconnect/internal/models"
	"gbconnect/internal/repositories"
	"gbconnect/internal/storage"
)

const (
	DefaultPageLimit = 12
	MaxPageLimit     = 50
	serviceCacheTTL  = 5 * time.Minute
)

// CatalogService manages the services providers list and tourists browse.
type CatalogService interface {
	ListServices(ctx context.Context, filter models.ServiceFilter) (*models.ServicePage, error)
	GetService(ctx context.Context, serviceID primitive.ObjectID) (*models.Service, error)
	CreateService(ctx context.Context, providerID primitive.ObjectID, req *models.CreateServiceRequest) (*models.Service, error)
	UpdateService(ctx context.Context, providerID, serviceID primitive.ObjectID, update *models.ServiceUpdate) (*models.Service, error)
	DeleteService(ctx context.Context, providerID, serviceID primitive.ObjectID) error
	ListProviderServices(ctx context.Context, providerID primitive.ObjectID) ([]models.Service, error)
	AddServiceImage(ctx context.Context, providerID, serviceID primitive.ObjectID, image io.Reader) (*models.Service, error)
	InvalidateService(ctx context.Context, serviceID primitive.ObjectID)
	DeactivateProviderServices(ctx context.Context, providerID primitive.ObjectID) error
}

type catalogService struct {
	serviceRepo repositories.ServiceRepository
	cache       cache.Cache
	images      storage.ImageStore
}

// NewCatalogService wires the catalog. images may be nil when no image storage is configured.
func NewCatalogService(serviceRepo repositories.ServiceRepository, c cache.Cache, images storage.ImageStore) CatalogService {
	if c == nil {
		c = cache.Noop{}
	}
	return &catalogService{serviceRepo: serviceRepo, cache: c, images: images}
}

func serviceCacheKey(id primitive.ObjectID) string {
	return "service:" + id.Hex()
}

func (s *catalogService) ListServices(ctx context.Context, filter models.ServiceFilter) (*models.ServicePage, error) {
	if filter.Page == 0 {
		filter.Page = 1
	}
	if filter.Limit == 0 {
		filter.Limit = DefaultPageLimit
	}
	if filter.Page < 1 || filter.Limit < 1 {
		return nil, fmt.Errorf("%w: page and limit must be positive", ErrInvalidInput)
	}
	if filter.Limit > MaxPageLimit {
		filter.Limit = MaxPageLimit
	}
	if filter.Page > math.MaxInt64/filter.Limit {
		return nil, fmt.Errorf("%w: page is out of range", ErrInvalidInput)
	}
	if filter.Category != "" && !models.IsValidCategory(filter.Category) {
		return nil, fmt.Errorf("%w: unknown category %q", ErrInvalidInput, filter.Category)
	}
	if filter.MinPrice != nil && filter.MaxPrice != nil && *filter.MinPrice > *filter.MaxPrice {
		return nil, fmt.Errorf("%w: minPrice cannot exceed maxPrice", ErrInvalidInput)
	}
	filter.Location = strings.TrimSpace(filter.Location)
	filter.Query = strings.TrimSpace(filter.Query)

	items, total, err := s.serviceRepo.FindActive(ctx, filter)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []models.Service{}
	}
	return &models.ServicePage{Items: items, Total: total, Page: filter.Page, Limit: filter.Limit}, nil
}

func (s *catalogService) GetService(ctx context.Context, serviceID primitive.ObjectID) (*models.Service, error) {
	key := serviceCacheKey(serviceID)
	if raw, ok, err := s.cache.Get(ctx, key); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Cache read failed")
	} else if ok {
		var svc models.Service
		if err := json.Unmarshal(raw, &svc); err == nil {
			return &svc, nil
		}
	}

	svc, err := s.serviceRepo.FindByID(ctx, serviceID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: service not found", ErrNotFound)
		}
		return nil, err
	}

	if raw, err := json.Marshal(svc); err == nil {
		if err := s.cache.Set(ctx, key, raw, serviceCacheTTL); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("Cache write failed")
		}
	}
	return svc, nil
}

func (s *catalogService) InvalidateService(ctx context.Context, serviceID primitive.ObjectID) {
	if err := s.cache.Delete(ctx, serviceCacheKey(serviceID)); err != nil {
		log.Warn().Err(err).Str("service_id", serviceID.Hex()).Msg("Cache invalidation failed")
	}
}

func validateServiceFields(title, category string, price float64, capacity int) error {
	if strings.TrimSpace(title) == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	if !models.IsValidCategory(category) {
		return fmt.Errorf("%w: category must be one of %s", ErrInvalidInput, strings.Join(models.ServiceCategories, ", "))
	}
	if price <= 0 {
		return fmt.Errorf("%w: price must be greater than zero", ErrInvalidInput)
	}
	if capacity < 0 {
		return fmt.Errorf("%w: capacity cannot be negative", ErrInvalidInput)
	}
	return nil
}

func (s *catalogService) CreateService(ctx context.Context, providerID primitive.ObjectID, req *models.CreateServiceRequest) (*models.Service, error) {
	if err := validateServiceFields(req.Title, req.Category, req.Price, req.Capacity); err != nil {
		return nil, err
	}

	svc := &models.Service{
		ProviderID:  providerID,
		Title:       strings.TrimSpace(req.Title),
		Description: strings.TrimSpace(req.Description),
		Category:    req.Category,
		Location:    strings.TrimSpace(req.Location),
		Price:       req.Price,
		Capacity:    req.Capacity,
		Images:      req.Images,
		Status:      models.ServiceStatusActive,
	}
	if _, err := s.serviceRepo.Create(ctx, svc); err != nil {
		return nil, err
	}

	metrics.ServiceCreatedTotal.WithLabelValues(svc.Category).Inc()
	log.Info().Str("service_id", svc.ID.Hex()).Str("provider_id", providerID.Hex()).Msg("Service created")
	return svc, nil
}

func (s *catalogService) UpdateService(ctx context.Context, providerID, serviceID primitive.ObjectID, update *models.ServiceUpdate) (*models.Service, error) {
	current, err := s.ownedService(ctx, providerID, serviceID)
	if err != nil {
		return nil, err
	}

	merged := *current
	fields := bson.M{}
	if update.Title != nil {
		merged.Title = strings.TrimSpace(*update.Title)
		fields["title"] = merged.Title
	}
	if update.Description != nil {
		fields["description"] = strings.TrimSpace(*update.Description)
	}
	if update.Category != nil {
		merged.Category = *update.Category
		fields["category"] = merged.Category
	}
	if update.Location != nil {
		fields["location"] = strings.TrimSpace(*update.Location)
	}
	if update.Price != nil {
		merged.Price = *update.Price
		fields["price"] = merged.Price
	}
	if update.Capacity != nil {
		merged.Capacity = *update.Capacity
		fields["capacity"] = merged.Capacity
	}
	if update.Images != nil {
		images := *update.Images
		if images == nil {
			images = []string{}
		}
		fields["images"] = images
	}
	if update.Status != nil {
		if *update.Status != models.ServiceStatusActive && *update.Status != models.ServiceStatusInactive {
			return nil, fmt.Errorf("%w: status must be active or inactive", ErrInvalidInput)
		}
		fields["status"] = *update.Status
	}

	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: no valid fields provided for update", ErrInvalidInput)
	}
	if err := validateServiceFields(merged.Title, merged.Category, merged.Price, merged.Capacity); err != nil {
		return nil, err
	}

	result, err := s.serviceRepo.Update(ctx, providerID, serviceID, fields)
	if err != nil {
		return nil, err
	}
	if result.MatchedCount == 0 {
		return nil, fmt.Errorf("%w: service not found", ErrNotFound)
	}
	s.InvalidateService(ctx, serviceID)

	updated, err := s.serviceRepo.FindByID(ctx, serviceID)
	if err != nil {
		return nil, err
	}
	log.Info().Str("service_id", serviceID.Hex()).Msg("Service updated")
	return updated, nil
}

func (s *catalogService) DeleteService(ctx context.Context, providerID, serviceID primitive.ObjectID) error {
	result, err := s.serviceRepo.Delete(ctx, providerID, serviceID)
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return fmt.Errorf("%w: service not found", ErrNotFound)
	}
	s.InvalidateService(ctx, serviceID)
	log.Info().Str("service_id", serviceID.Hex()).Msg("Service deleted")
	return nil
}

func (s *catalogService) DeactivateProviderServices(ctx context.Context, providerID primitive.ObjectID) error {
	owned, err := s.serviceRepo.FindByProvider(ctx, providerID)
	if err != nil {
		return err
	}
	if len(owned) == 0 {
		return nil
	}
	n, err := s.serviceRepo.DeactivateByProvider(ctx, providerID)
	if err != nil {
		log.Error().Err(err).Str("provider_id", providerID.Hex()).Msg("Failed to deactivate provider services")
		return err
	}
	for _, svc := range owned {
		s.InvalidateService(ctx, svc.ID)
	}
	log.Info().Str("provider_id", providerID.Hex()).Int64("deactivated", n).Msg("Provider services deactivated")
	return nil
}

func (s *catalogService) ListProviderServices(ctx context.Context, providerID primitive.ObjectID) ([]models.Service, error) {
	services, err := s.serviceRepo.FindByProvider(ctx, providerID)
	if err != nil {
		return nil, err
	}
	if services == nil {
		services = []models.Service{}
	}
	return services, nil
}

func (s *catalogService) AddServiceImage(ctx context.Context, providerID, serviceID primitive.ObjectID, image io.Reader) (*models.Service, error) {
	if s.images == nil {
		return nil, fmt.Errorf("%w: image storage is not configured", ErrUnavailable)
	}
	if _, err := s.ownedService(ctx, providerID, serviceID); err != nil {
		return nil, err
	}

	publicID := fmt.Sprintf("%s-%d", serviceID.Hex(), time.Now().UnixNano())
	url, err := s.images.Upload(ctx, image, publicID)
	if err != nil {
		if errors.Is(err, storage.ErrNotConfigured) {
			return nil, fmt.Errorf("%w: image storage is not configured", ErrUnavailable)
		}
		log.Error().Err(err).Str("service_id", serviceID.Hex()).Msg("Image upload failed")
		return nil, fmt.Errorf("%w: image upload failed", ErrUnavailable)
	}

	result, err := s.serviceRepo.AddImage(ctx, providerID, serviceID, url)
	if err != nil {
		return nil, err
	}
	if result.MatchedCount == 0 {
		return nil, fmt.Errorf("%w: service not found", ErrNotFound)
	}
	s.InvalidateService(ctx, serviceID)

	return s.serviceRepo.FindByID(ctx, serviceID)
}

// ownedService returns the service only when providerID owns it; anything else is a 404.
func (s *catalogService) ownedService(ctx context.Context, providerID, serviceID primitive.ObjectID) (*models.Service, error) {
	svc, err := s.serviceRepo.FindByID(ctx, serviceID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: service not found", ErrNotFound)
		}
		return nil, err
	}
	if svc.ProviderID != providerID {
		return nil, fmt.Errorf("%w: service not found", ErrNotFound)
	}
	return svc, nil
}
