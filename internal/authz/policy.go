// Package authz holds the pure authorization decisions shared by the hotel
// and message services. Decisions never touch the database: callers load the
// actor and the target resource first.
package authz

import (
	"fmt"

	"github.com/Djiouwairia/RED-Product/internal/models"
)

// Policy variant names accepted by ForVariant.
const (
	VariantAdminOnly    = "admin_only"
	VariantOwnerOrAdmin = "owner_or_admin"
)

// Policy decides whether an actor may perform an action on a resource.
// A nil hotel passed to CanWriteHotel means "create a new listing".
type Policy interface {
	CanReadHotel(actor *models.User, hotel *models.Hotel) bool
	CanWriteHotel(actor *models.User, hotel *models.Hotel) bool
	CanReadMessage(actor *models.User, msg *models.Message) bool
	CanMarkRead(actor *models.User, msg *models.Message) bool
	CanArchive(actor *models.User, msg *models.Message) bool
	CanListAllUsers(actor *models.User) bool
	Variant() string
}

// ForVariant returns the policy implementation selected by configuration.
func ForVariant(variant string) (Policy, error) {
	switch variant {
	case VariantAdminOnly, "":
		return AdminOnlyPolicy{}, nil
	case VariantOwnerOrAdmin:
		return OwnerOrAdminPolicy{}, nil
	default:
		return nil, fmt.Errorf("unknown hotel write policy variant: %q", variant)
	}
}

// basePolicy implements the decisions that do not differ between variants.
type basePolicy struct{}

func (basePolicy) CanReadHotel(actor *models.User, _ *models.Hotel) bool {
	return actor != nil
}

func (basePolicy) CanReadMessage(actor *models.User, msg *models.Message) bool {
	if actor == nil || msg == nil {
		return false
	}
	return actor.ID == msg.SenderID || actor.ID == msg.RecipientID
}

func (basePolicy) CanMarkRead(actor *models.User, msg *models.Message) bool {
	if actor == nil || msg == nil {
		return false
	}
	return actor.ID == msg.RecipientID && msg.Status == models.MessageStatusSent
}

func (basePolicy) CanArchive(actor *models.User, msg *models.Message) bool {
	if actor == nil || msg == nil {
		return false
	}
	return actor.ID == msg.SenderID || actor.ID == msg.RecipientID
}

func (basePolicy) CanListAllUsers(actor *models.User) bool {
	return actor != nil && actor.IsAdmin
}

// AdminOnlyPolicy restricts every hotel write to admin-class actors,
// regardless of ownership. This matches the reference deployment.
type AdminOnlyPolicy struct{ basePolicy }

func (AdminOnlyPolicy) CanWriteHotel(actor *models.User, _ *models.Hotel) bool {
	return actor != nil && actor.AdminClass()
}

func (AdminOnlyPolicy) Variant() string { return VariantAdminOnly }

// OwnerOrAdminPolicy additionally lets the listing's owner update or delete
// it. Creation remains open to any authenticated user.
type OwnerOrAdminPolicy struct{ basePolicy }

func (OwnerOrAdminPolicy) CanWriteHotel(actor *models.User, hotel *models.Hotel) bool {
	if actor == nil {
		return false
	}
	if actor.AdminClass() {
		return true
	}
	if hotel == nil {
		// Creating a listing of one's own.
		return true
	}
	return hotel.OwnerID == actor.ID
}

func (OwnerOrAdminPolicy) Variant() string { return VariantOwnerOrAdmin }
