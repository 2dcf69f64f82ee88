package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User represents an account in the system.
type User struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Email        string             `bson:"email" json:"email"` // stored lowercased
	Username     string             `bson:"username" json:"username"`
	FirstName    string             `bson:"first_name" json:"first_name"`
	LastName     string             `bson:"last_name" json:"last_name"`
	PasswordHash string             `bson:"password" json:"-"`
	IsAdmin      bool               `bson:"is_admin" json:"is_admin"`
	IsStaff      bool               `bson:"is_staff" json:"is_staff"`
	IsSuperuser  bool               `bson:"is_superuser" json:"is_superuser"`
	IsActive     bool               `bson:"is_active" json:"is_active"`
	DateJoined   time.Time          `bson:"date_joined" json:"date_joined"`
}

// AdminClass reports whether the user holds any of the elevated role flags.
// Any one of them grants hotel-write access under the admin-only policy.
func (u *User) AdminClass() bool {
	return u.IsAdmin || u.IsSuperuser || u.IsStaff
}

// PublicUser is the reduced representation embedded in hotel and message
// payloads.
type PublicUser struct {
	ID        primitive.ObjectID `bson:"_id" json:"id"`
	Email     string             `bson:"email" json:"email"`
	Username  string             `bson:"username" json:"username"`
	FirstName string             `bson:"first_name" json:"first_name"`
	LastName  string             `bson:"last_name" json:"last_name"`
}

// Public returns the reduced representation of the user.
func (u *User) Public() PublicUser {
	return PublicUser{
		ID:        u.ID,
		Email:     u.Email,
		Username:  u.Username,
		FirstName: u.FirstName,
		LastName:  u.LastName,
	}
}
