package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	CategoryAccommodation = "accommodation"
	CategoryTour          = "tour"
	CategoryFood          = "food"
	CategoryTransport     = "transport"

	ServiceStatusActive   = "active"
	ServiceStatusInactive = "inactive"
)

var ServiceCategories = []string{CategoryAccommodation, CategoryTour, CategoryFood, CategoryTransport}

func IsValidCategory(c string) bool {
	for _, known := range ServiceCategories {
		if c == known {
			return true
		}
	}
	return false
}

// Service is a bookable offer listed by a provider.
type Service struct {
	ID          primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	ProviderID  primitive.ObjectID `json:"providerId" bson:"provider_id"`
	Title       string             `json:"title" bson:"title"`
	Description string             `json:"description" bson:"description"`
	Category    string             `json:"category" bson:"category"`
	Location    string             `json:"location" bson:"location"`
	Price       float64            `json:"price" bson:"price"`
	Capacity    int                `json:"capacity" bson:"capacity"`
	Images      []string           `json:"images" bson:"images"`
	Status      string             `json:"status" bson:"status"`
	Rating      float64            `json:"rating" bson:"rating"`
	ReviewCount int                `json:"reviewCount" bson:"review_count"`
	CreatedAt   time.Time          `json:"createdAt" bson:"created_at"`
	UpdatedAt   time.Time          `json:"updatedAt" bson:"updated_at"`
}

type CreateServiceRequest struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Category    string   `json:"category"`
	Location    string   `json:"location"`
	Price       float64  `json:"price"`
	Capacity    int      `json:"capacity"`
	Images      []string `json:"images"`
}

type ServiceUpdate struct {
	Title       *string   `json:"title,omitempty"`
	Description *string   `json:"description,omitempty"`
	Category    *string   `json:"category,omitempty"`
	Location    *string   `json:"location,omitempty"`
	Price       *float64  `json:"price,omitempty"`
	Capacity    *int      `json:"capacity,omitempty"`
	Images      *[]string `json:"images,omitempty"`
	Status      *string   `json:"status,omitempty"`
}

// ServiceFilter narrows the public catalog listing.
type ServiceFilter struct {
	Category string
	Location string
	Query    string
	MinPrice *float64
	MaxPrice *float64
	Page     int64
	Limit    int64

	// ExcludeIDs and ExcludeProvider are set by internal callers, never from query strings.
	ExcludeIDs      []primitive.ObjectID
	ExcludeProvider primitive.ObjectID
}

type ServicePage struct {
	Items []Service `json:"items"`
	Total int64     `json:"total"`
	Page  int64     `json:"page"`
	Limit int64     `json:"limit"`
}
