package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	NotificationBookingCreated = "booking_created"
	NotificationBookingStatus  = "booking_status"
	NotificationReviewCreated  = "review_created"
)

type Notification struct {
	ID          primitive.ObjectID  `json:"id" bson:"_id,omitempty"`
	UserID      primitive.ObjectID  `json:"userId" bson:"user_id"`
	Title       string              `json:"title" bson:"title"`
	Message     string              `json:"message" bson:"message"`
	Type        string              `json:"type" bson:"type"`
	ReferenceID *primitive.ObjectID `json:"referenceId,omitempty" bson:"reference_id,omitempty"`
	Read        bool                `json:"read" bson:"read"`
	CreatedAt   time.Time           `json:"createdAt" bson:"created_at"`
}
