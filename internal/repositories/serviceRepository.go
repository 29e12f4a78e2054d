package repositories

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"gbconnect/internal/database"
	"gbconnect/internal/models"
	"gbconnect/internal/utils"
)

type ServiceRepository interface {
	Create(ctx context.Context, svc *models.Service) (*models.Service, error)
	FindByID(ctx context.Context, serviceID primitive.ObjectID) (*models.Service, error)
	FindByIDs(ctx context.Context, serviceIDs []primitive.ObjectID) ([]models.Service, error)
	FindActive(ctx context.Context, filter models.ServiceFilter) ([]models.Service, int64, error)
	FindByProvider(ctx context.Context, providerID primitive.ObjectID) ([]models.Service, error)
	Update(ctx context.Context, providerID, serviceID primitive.ObjectID, updateFields bson.M) (*mongo.UpdateResult, error)
	AddImage(ctx context.Context, providerID, serviceID primitive.ObjectID, url string) (*mongo.UpdateResult, error)
	UpdateRating(ctx context.Context, serviceID primitive.ObjectID, summary models.RatingSummary) error
	DeactivateByProvider(ctx context.Context, providerID primitive.ObjectID) (int64, error)
	Delete(ctx context.Context, providerID, serviceID primitive.ObjectID) (*mongo.DeleteResult, error)
}

type serviceRepository struct {
	db database.Service
}

func NewServiceRepository(db database.Service) ServiceRepository {
	return &serviceRepository{db: db}
}

func (r *serviceRepository) collection() *mongo.Collection {
	return r.db.Database().Collection(database.ServicesCollection)
}

func (r *serviceRepository) Create(ctx context.Context, svc *models.Service) (_ *models.Service, err error) {
	defer utils.TrackQuery("create", "service")(&err)

	if svc.ID.IsZero() {
		svc.ID = primitive.NewObjectID()
	}
	now := time.Now().UTC()
	svc.CreatedAt = now
	svc.UpdatedAt = now
	if svc.Images == nil {
		svc.Images = []string{}
	}

	if _, err = r.collection().InsertOne(ctx, svc); err != nil {
		return nil, fmt.Errorf("failed to add service: %w", err)
	}
	return svc, nil
}

func (r *serviceRepository) FindByID(ctx context.Context, serviceID primitive.ObjectID) (_ *models.Service, err error) {
	defer utils.TrackQuery("findById", "service")(&err)

	var svc models.Service
	if err = r.collection().FindOne(ctx, bson.M{"_id": serviceID}).Decode(&svc); err != nil {
		return nil, err
	}
	return &svc, nil
}

func (r *serviceRepository) FindByIDs(ctx context.Context, serviceIDs []primitive.ObjectID) (_ []models.Service, err error) {
	defer utils.TrackQuery("findByIds", "service")(&err)

	if len(serviceIDs) == 0 {
		return []models.Service{}, nil
	}
	return r.find(ctx, bson.M{"_id": bson.M{"$in": serviceIDs}}, options.Find())
}

// buildCatalogFilter turns a catalog query into a mongo filter over active services.
func buildCatalogFilter(f models.ServiceFilter) bson.M {
	filter := bson.M{"status": models.ServiceStatusActive}

	if f.Category != "" {
		filter["category"] = f.Category
	}
	if f.Location != "" {
		filter["location"] = bson.M{"$regex": regexp.QuoteMeta(f.Location), "$options": "i"}
	}
	if f.Query != "" {
		pattern := regexp.QuoteMeta(f.Query)
		filter["$or"] = bson.A{
			bson.M{"title": bson.M{"$regex": pattern, "$options": "i"}},
			bson.M{"description": bson.M{"$regex": pattern, "$options": "i"}},
		}
	}

	price := bson.M{}
	if f.MinPrice != nil {
		price["$gte"] = *f.MinPrice
	}
	if f.MaxPrice != nil {
		price["$lte"] = *f.MaxPrice
	}
	if len(price) > 0 {
		filter["price"] = price
	}
	if len(f.ExcludeIDs) > 0 {
		filter["_id"] = bson.M{"$nin": f.ExcludeIDs}
	}
	if !f.ExcludeProvider.IsZero() {
		filter["provider_id"] = bson.M{"$ne": f.ExcludeProvider}
	}
	return filter
}

func (r *serviceRepository) FindActive(ctx context.Context, f models.ServiceFilter) (_ []models.Service, _ int64, err error) {
	defer utils.TrackQuery("findActive", "service")(&err)

	filter := buildCatalogFilter(f)

	total, err := r.collection().CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count services: %w", err)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(f.Limit).
		SetSkip((f.Page - 1) * f.Limit)

	services, err := r.find(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	return services, total, nil
}

func (r *serviceRepository) FindByProvider(ctx context.Context, providerID primitive.ObjectID) (_ []models.Service, err error) {
	defer utils.TrackQuery("findByProvider", "service")(&err)

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	return r.find(ctx, bson.M{"provider_id": providerID}, opts)
}

func (r *serviceRepository) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]models.Service, error) {
	cursor, err := r.collection().Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve services: %w", err)
	}
	defer cursor.Close(ctx)

	services := []models.Service{}
	if err := cursor.All(ctx, &services); err != nil {
		return nil, fmt.Errorf("error decoding services: %w", err)
	}
	return services, nil
}

func (r *serviceRepository) Update(ctx context.Context, providerID, serviceID primitive.ObjectID, updateFields bson.M) (_ *mongo.UpdateResult, err error) {
	defer utils.TrackQuery("update", "service")(&err)

	updateFields["updated_at"] = time.Now().UTC()
	filter := bson.M{"_id": serviceID, "provider_id": providerID}
	result, err := r.collection().UpdateOne(ctx, filter, bson.M{"$set": updateFields})
	if err != nil {
		return nil, fmt.Errorf("failed to update service: %w", err)
	}
	return result, nil
}

func (r *serviceRepository) AddImage(ctx context.Context, providerID, serviceID primitive.ObjectID, url string) (_ *mongo.UpdateResult, err error) {
	defer utils.TrackQuery("addImage", "service")(&err)

	filter := bson.M{"_id": serviceID, "provider_id": providerID}
	update := bson.M{
		"$push": bson.M{"images": url},
		"$set":  bson.M{"updated_at": time.Now().UTC()},
	}
	result, err := r.collection().UpdateOne(ctx, filter, update)
	if err != nil {
		return nil, fmt.Errorf("failed to add service image: %w", err)
	}
	return result, nil
}

func (r *serviceRepository) UpdateRating(ctx context.Context, serviceID primitive.ObjectID, summary models.RatingSummary) (err error) {
	defer utils.TrackQuery("updateRating", "service")(&err)

	update := bson.M{"$set": bson.M{"rating": summary.Average, "review_count": summary.Count}}
	if _, err = r.collection().UpdateOne(ctx, bson.M{"_id": serviceID}, update); err != nil {
		return fmt.Errorf("failed to update service rating: %w", err)
	}
	return nil
}

// DeactivateByProvider takes every active listing of the provider off the catalog.
func (r *serviceRepository) DeactivateByProvider(ctx context.Context, providerID primitive.ObjectID) (_ int64, err error) {
	defer utils.TrackQuery("deactivateByProvider", "service")(&err)

	filter := bson.M{"provider_id": providerID, "status": models.ServiceStatusActive}
	update := bson.M{"$set": bson.M{"status": models.ServiceStatusInactive, "updated_at": time.Now().UTC()}}
	result, err := r.collection().UpdateMany(ctx, filter, update)
	if err != nil {
		return 0, fmt.Errorf("failed to deactivate provider services: %w", err)
	}
	return result.ModifiedCount, nil
}

func (r *serviceRepository) Delete(ctx context.Context, providerID, serviceID primitive.ObjectID) (_ *mongo.DeleteResult, err error) {
	defer utils.TrackQuery("delete", "service")(&err)

	result, err := r.collection().DeleteOne(ctx, bson.M{"_id": serviceID, "provider_id": providerID})
	if err != nil {
		return nil, fmt.Errorf("failed to delete service: %w", err)
	}
	return result, nil
}
