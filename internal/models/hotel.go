package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Currency is the pricing currency of a hotel listing.
type Currency string

const (
	CurrencyXOF Currency = "XOF"
	CurrencyEUR Currency = "EUR"
	CurrencyUSD Currency = "USD"
)

// Currencies lists every supported currency, in display order.
var Currencies = []Currency{CurrencyXOF, CurrencyEUR, CurrencyUSD}

// Valid reports whether c is one of the supported currencies.
func (c Currency) Valid() bool {
	for _, known := range Currencies {
		if c == known {
			return true
		}
	}
	return false
}

// Hotel represents a hotel listing. OwnerID is set at creation and never
// reassigned.
type Hotel struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name          string             `bson:"name" json:"name"`
	Address       string             `bson:"address" json:"address"`
	ContactEmail  string             `bson:"contact_email" json:"contact_email"`
	Phone         string             `bson:"phone" json:"phone"`
	PricePerNight float64            `bson:"price_per_night" json:"price_per_night"`
	Currency      Currency           `bson:"currency" json:"currency"`
	Image         string             `bson:"image,omitempty" json:"image,omitempty"` // S3 object key
	OwnerID       primitive.ObjectID `bson:"owner_id" json:"owner_id"`
	CreatedAt     time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt     time.Time          `bson:"updated_at" json:"updated_at"`
}

// HotelSummary is the projection returned by list endpoints.
type HotelSummary struct {
	ID            primitive.ObjectID `bson:"_id" json:"id"`
	Name          string             `bson:"name" json:"name"`
	Address       string             `bson:"address" json:"address"`
	PricePerNight float64            `bson:"price_per_night" json:"price_per_night"`
	Currency      Currency           `bson:"currency" json:"currency"`
	Image         string             `bson:"image,omitempty" json:"image,omitempty"`
}

// HotelStats are aggregate figures over a filtered set of hotels.
type HotelStats struct {
	TotalHotels  int64              `json:"total_hotels"`
	ByCurrency   map[Currency]int64 `json:"hotels_by_currency"`
	AveragePrice float64            `json:"average_price"`
}
