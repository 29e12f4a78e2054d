package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Review struct {
	ID        primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	ServiceID primitive.ObjectID `json:"serviceId" bson:"service_id"`
	UserID    primitive.ObjectID `json:"userId" bson:"user_id"`
	UserName  string             `json:"userName" bson:"user_name"`
	Rating    int                `json:"rating" bson:"rating"`
	Comment   string             `json:"comment" bson:"comment"`
	Verified  bool               `json:"verified" bson:"verified"`
	CreatedAt time.Time          `json:"createdAt" bson:"created_at"`
}

type CreateReviewRequest struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment"`
}

// RatingSummary is the aggregate stored back onto a service.
type RatingSummary struct {
	Average float64 `bson:"average"`
	Count   int     `bson:"count"`
}
