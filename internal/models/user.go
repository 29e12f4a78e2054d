package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	RoleTourist  = "tourist"
	RoleProvider = "provider"

	AuthProviderLocal = "local"
)

type User struct {
	ID           primitive.ObjectID `json:"id,omitempty" bson:"_id,omitempty"`
	Name         string             `json:"name" bson:"name"`
	Email        string             `json:"email" bson:"email"`
	Password     string             `json:"-" bson:"password"`
	Role         string             `json:"role" bson:"role"`
	Phone        string             `json:"phone,omitempty" bson:"phone,omitempty"`
	Bio          string             `json:"bio,omitempty" bson:"bio,omitempty"`
	AvatarURL    string             `json:"avatarUrl,omitempty" bson:"avatar_url,omitempty"`
	Verified     bool               `json:"verified" bson:"verified"`
	AuthProvider string             `json:"authProvider" bson:"auth_provider"`
	CreatedAt    time.Time          `json:"createdAt" bson:"created_at"`
	UpdatedAt    time.Time          `json:"updatedAt" bson:"updated_at"`
}

func (u *User) IsProvider() bool {
	return u.Role == RoleProvider
}

type UserProfileUpdate struct {
	Name      *string `json:"name,omitempty"`
	Phone     *string `json:"phone,omitempty"`
	Bio       *string `json:"bio,omitempty"`
	AvatarURL *string `json:"avatarUrl,omitempty"`
	Email     *string `json:"email,omitempty"`
	Password  *string `json:"password,omitempty"`
}
