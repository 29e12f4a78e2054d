package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	BookingPending   = "pending"
	BookingConfirmed = "confirmed"
	BookingRejected  = "rejected"
	BookingCancelled = "cancelled"
	BookingCompleted = "completed"

	DateLayout = "2006-01-02"
)

type Booking struct {
	ID           primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	ServiceID    primitive.ObjectID `json:"serviceId" bson:"service_id"`
	UserID       primitive.ObjectID `json:"userId" bson:"user_id"`
	ProviderID   primitive.ObjectID `json:"providerId" bson:"provider_id"`
	ServiceTitle string             `json:"serviceTitle" bson:"service_title"`
	StartDate    time.Time          `json:"startDate" bson:"start_date"`
	EndDate      time.Time          `json:"endDate" bson:"end_date"`
	Guests       int                `json:"guests" bson:"guests"`
	Notes        string             `json:"notes,omitempty" bson:"notes,omitempty"`
	Status       string             `json:"status" bson:"status"`
	TotalPrice   float64            `json:"totalPrice" bson:"total_price"`
	ReminderSent bool               `json:"-" bson:"reminder_sent"`
	CreatedAt    time.Time          `json:"createdAt" bson:"created_at"`
	UpdatedAt    time.Time          `json:"updatedAt" bson:"updated_at"`
}

type CreateBookingRequest struct {
	ServiceID string `json:"serviceId"`
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate,omitempty"`
	Guests    int    `json:"guests"`
	Notes     string `json:"notes,omitempty"`
}

type BookingStatusUpdate struct {
	Status string `json:"status"`
}
