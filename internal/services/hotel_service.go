package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"regexp"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Djiouwairia/RED-Product/internal/authz"
	"github.com/Djiouwairia/RED-Product/internal/db"
	"github.com/Djiouwairia/RED-Product/internal/models"
	"github.com/Djiouwairia/RED-Product/internal/storage"
	"github.com/Djiouwairia/RED-Product/internal/tasks"
)

// phonePattern matches an optional leading + followed by digits. Spaces are
// stripped before matching.
var phonePattern = regexp.MustCompile(`^\+?[0-9]+$`)

// HotelInput carries the fields accepted when creating or updating a hotel.
// On update, nil pointers leave the corresponding field untouched.
type HotelInput struct {
	Name          *string          `json:"name"`
	Address       *string          `json:"address"`
	ContactEmail  *string          `json:"contact_email"`
	Phone         *string          `json:"phone"`
	PricePerNight *float64         `json:"price_per_night"`
	Currency      *models.Currency `json:"currency"`
}

// HotelListFilters are the optional query filters for hotel listings. All
// present filters are ANDed together.
type HotelListFilters struct {
	Search   string
	Currency string
	PriceMin *float64
	PriceMax *float64
}

// IHotelService defines the interface for the hotel registry.
type IHotelService interface {
	Create(ctx context.Context, actor *models.User, input HotelInput) (*models.Hotel, error)
	List(ctx context.Context, filters HotelListFilters) ([]models.HotelSummary, error)
	ListMine(ctx context.Context, actor *models.User) ([]models.HotelSummary, error)
	Get(ctx context.Context, hotelID primitive.ObjectID) (*models.Hotel, error)
	Update(ctx context.Context, actor *models.User, hotelID primitive.ObjectID, input HotelInput) (*models.Hotel, error)
	Delete(ctx context.Context, actor *models.User, hotelID primitive.ObjectID) error
	Statistics(ctx context.Context, filters HotelListFilters) (*models.HotelStats, error)
	StatisticsFor(ctx context.Context, ownerID primitive.ObjectID) (*models.HotelStats, error)
	RequestImageUpload(ctx context.Context, actor *models.User, hotelID primitive.ObjectID, filename, contentType string) (uploadURL, s3Key string, err error)
	ConfirmImageUpload(ctx context.Context, actor *models.User, hotelID primitive.ObjectID, s3Key string) error
	ApplyProcessedImage(ctx context.Context, hotelID primitive.ObjectID, s3Key string) error
}

// hotelService implements IHotelService.
type hotelService struct {
	db         *mongo.Database
	policy     authz.Policy
	storage    storage.IS3Storage
	taskClient tasks.IClient
}

// NewHotelService creates a new HotelService. storage and taskClient may be
// nil when the image upload flow is not wired (e.g. in tests).
func NewHotelService(database *mongo.Database, policy authz.Policy, st storage.IS3Storage, taskClient tasks.IClient) IHotelService {
	return &hotelService{db: database, policy: policy, storage: st, taskClient: taskClient}
}

// roundPrice rounds to two decimal places, the precision prices are stored at.
func roundPrice(p float64) float64 {
	return math.Round(p*100) / 100
}

// validate checks input fields. For creation (requireAll) every field must be
// present; for updates only the supplied ones are checked.
func validateHotelInput(input *HotelInput, requireAll bool) error {
	fields := make(map[string]string)

	if input.Name != nil {
		*input.Name = strings.TrimSpace(*input.Name)
		if *input.Name == "" {
			fields["name"] = "name cannot be blank"
		}
	} else if requireAll {
		fields["name"] = "name is required"
	}

	if input.Address != nil {
		*input.Address = strings.TrimSpace(*input.Address)
		if *input.Address == "" {
			fields["address"] = "address cannot be blank"
		}
	} else if requireAll {
		fields["address"] = "address is required"
	}

	if input.ContactEmail != nil {
		*input.ContactEmail = strings.ToLower(strings.TrimSpace(*input.ContactEmail))
		if !emailPattern.MatchString(*input.ContactEmail) {
			fields["contact_email"] = "enter a valid email address"
		}
	} else if requireAll {
		fields["contact_email"] = "contact_email is required"
	}

	if input.Phone != nil {
		compact := strings.ReplaceAll(*input.Phone, " ", "")
		if !phonePattern.MatchString(compact) {
			fields["phone"] = "enter a valid phone number"
		} else {
			*input.Phone = compact
		}
	} else if requireAll {
		fields["phone"] = "phone is required"
	}

	if input.PricePerNight != nil {
		if *input.PricePerNight <= 0 {
			fields["price_per_night"] = "price must be greater than zero"
		} else {
			*input.PricePerNight = roundPrice(*input.PricePerNight)
		}
	} else if requireAll {
		fields["price_per_night"] = "price_per_night is required"
	}

	if input.Currency != nil {
		if !input.Currency.Valid() {
			fields["currency"] = fmt.Sprintf("currency must be one of %v", models.Currencies)
		}
	} else if requireAll {
		fields["currency"] = "currency is required"
	}

	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

// Create registers a new hotel owned by the actor.
func (s *hotelService) Create(ctx context.Context, actor *models.User, input HotelInput) (*models.Hotel, error) {
	if !s.policy.CanWriteHotel(actor, nil) {
		return nil, ErrForbidden
	}
	if err := validateHotelInput(&input, true); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	hotel := &models.Hotel{
		ID:            primitive.NewObjectID(),
		Name:          *input.Name,
		Address:       *input.Address,
		ContactEmail:  *input.ContactEmail,
		Phone:         *input.Phone,
		PricePerNight: *input.PricePerNight,
		Currency:      *input.Currency,
		OwnerID:       actor.ID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if _, err := s.db.Collection(db.HotelsCollection).InsertOne(ctx, hotel); err != nil {
		return nil, fmt.Errorf("error inserting hotel %s: %w", hotel.Name, err)
	}
	return hotel, nil
}

func buildHotelFilter(filters HotelListFilters) bson.M {
	filter := bson.M{}

	// Search is a case-insensitive substring match on the listing name only.
	if search := strings.TrimSpace(filters.Search); search != "" {
		filter["name"] = primitive.Regex{Pattern: regexp.QuoteMeta(search), Options: "i"}
	}
	if filters.Currency != "" {
		filter["currency"] = filters.Currency
	}

	price := bson.M{}
	if filters.PriceMin != nil {
		price["$gte"] = *filters.PriceMin
	}
	if filters.PriceMax != nil {
		price["$lte"] = *filters.PriceMax
	}
	if len(price) > 0 {
		filter["price_per_night"] = price
	}

	return filter
}

func (s *hotelService) findSummaries(ctx context.Context, filter bson.M) ([]models.HotelSummary, error) {
	opts := options.Find().
		SetProjection(bson.M{"_id": 1, "name": 1, "address": 1, "price_per_night": 1, "currency": 1, "image": 1}).
		SetSort(bson.D{{Key: "created_at", Value: -1}})

	cursor, err := s.db.Collection(db.HotelsCollection).Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query hotels: %w", err)
	}
	defer cursor.Close(ctx)

	hotels := []models.HotelSummary{}
	if err = cursor.All(ctx, &hotels); err != nil {
		return nil, fmt.Errorf("failed to decode hotels: %w", err)
	}
	return hotels, nil
}

// List returns hotel summaries matching the filters, newest first. Listings
// are readable by every authenticated user.
func (s *hotelService) List(ctx context.Context, filters HotelListFilters) ([]models.HotelSummary, error) {
	return s.findSummaries(ctx, buildHotelFilter(filters))
}

// ListMine returns the hotels owned by the actor, newest first.
func (s *hotelService) ListMine(ctx context.Context, actor *models.User) ([]models.HotelSummary, error) {
	return s.findSummaries(ctx, bson.M{"owner_id": actor.ID})
}

// Get returns the full hotel document.
func (s *hotelService) Get(ctx context.Context, hotelID primitive.ObjectID) (*models.Hotel, error) {
	var hotel models.Hotel
	err := s.db.Collection(db.HotelsCollection).FindOne(ctx, bson.M{"_id": hotelID}).Decode(&hotel)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, mongo.ErrNoDocuments
		}
		return nil, fmt.Errorf("error finding hotel %s: %w", hotelID.Hex(), err)
	}
	return &hotel, nil
}

// Update modifies the supplied fields of an existing hotel. OwnerID is never
// part of the update set.
func (s *hotelService) Update(ctx context.Context, actor *models.User, hotelID primitive.ObjectID, input HotelInput) (*models.Hotel, error) {
	hotel, err := s.Get(ctx, hotelID)
	if err != nil {
		return nil, err
	}
	if !s.policy.CanWriteHotel(actor, hotel) {
		return nil, ErrForbidden
	}
	if err := validateHotelInput(&input, false); err != nil {
		return nil, err
	}

	set := bson.M{}
	if input.Name != nil {
		set["name"] = *input.Name
	}
	if input.Address != nil {
		set["address"] = *input.Address
	}
	if input.ContactEmail != nil {
		set["contact_email"] = *input.ContactEmail
	}
	if input.Phone != nil {
		set["phone"] = *input.Phone
	}
	if input.PricePerNight != nil {
		set["price_per_night"] = *input.PricePerNight
	}
	if input.Currency != nil {
		set["currency"] = *input.Currency
	}
	if len(set) == 0 {
		return hotel, nil
	}
	set["updated_at"] = time.Now().UTC()

	result, err := s.db.Collection(db.HotelsCollection).UpdateByID(ctx, hotelID, bson.M{"$set": set})
	if err != nil {
		return nil, fmt.Errorf("error updating hotel %s: %w", hotelID.Hex(), err)
	}
	if result.MatchedCount == 0 {
		return nil, mongo.ErrNoDocuments
	}
	return s.Get(ctx, hotelID)
}

// Delete removes a hotel permanently.
func (s *hotelService) Delete(ctx context.Context, actor *models.User, hotelID primitive.ObjectID) error {
	hotel, err := s.Get(ctx, hotelID)
	if err != nil {
		return err
	}
	if !s.policy.CanWriteHotel(actor, hotel) {
		return ErrForbidden
	}

	result, err := s.db.Collection(db.HotelsCollection).DeleteOne(ctx, bson.M{"_id": hotelID})
	if err != nil {
		return fmt.Errorf("error deleting hotel %s: %w", hotelID.Hex(), err)
	}
	if result.DeletedCount == 0 {
		return mongo.ErrNoDocuments
	}
	log.Printf("Hotel %s deleted by user %s", hotelID.Hex(), actor.ID.Hex())
	return nil
}

// currencyGroup is one bucket of the statistics aggregation.
type currencyGroup struct {
	Currency models.Currency `bson:"_id"`
	Count    int64           `bson:"count"`
	AvgPrice float64         `bson:"avg_price"`
}

func (s *hotelService) aggregateStats(ctx context.Context, match bson.M) (*models.HotelStats, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$group", Value: bson.M{
			"_id":       "$currency",
			"count":     bson.M{"$sum": 1},
			"avg_price": bson.M{"$avg": "$price_per_night"},
		}}},
	}

	cursor, err := s.db.Collection(db.HotelsCollection).Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate hotel statistics: %w", err)
	}
	defer cursor.Close(ctx)

	var groups []currencyGroup
	if err = cursor.All(ctx, &groups); err != nil {
		return nil, fmt.Errorf("failed to decode hotel statistics: %w", err)
	}

	stats := &models.HotelStats{ByCurrency: make(map[models.Currency]int64)}
	var priceSum float64
	for _, g := range groups {
		stats.TotalHotels += g.Count
		stats.ByCurrency[g.Currency] = g.Count
		priceSum += g.AvgPrice * float64(g.Count)
	}
	if stats.TotalHotels > 0 {
		stats.AveragePrice = roundPrice(priceSum / float64(stats.TotalHotels))
	}
	return stats, nil
}

// Statistics returns aggregate figures over the hotels matching the filters,
// using the same predicate as List. The average is taken over raw prices
// regardless of currency, matching the listing dashboard.
func (s *hotelService) Statistics(ctx context.Context, filters HotelListFilters) (*models.HotelStats, error) {
	return s.aggregateStats(ctx, buildHotelFilter(filters))
}

// StatisticsFor returns aggregate figures over one owner's hotels.
func (s *hotelService) StatisticsFor(ctx context.Context, ownerID primitive.ObjectID) (*models.HotelStats, error) {
	return s.aggregateStats(ctx, bson.M{"owner_id": ownerID})
}

// RequestImageUpload presigns an S3 PUT for a new hotel image.
func (s *hotelService) RequestImageUpload(ctx context.Context, actor *models.User, hotelID primitive.ObjectID, filename, contentType string) (string, string, error) {
	hotel, err := s.Get(ctx, hotelID)
	if err != nil {
		return "", "", err
	}
	if !s.policy.CanWriteHotel(actor, hotel) {
		return "", "", ErrForbidden
	}
	if s.storage == nil {
		return "", "", fmt.Errorf("image storage is not configured")
	}
	return s.storage.GeneratePresignedPutURL(ctx, hotelID.Hex(), filename, contentType)
}

// ConfirmImageUpload enqueues normalization of an uploaded image. The key
// must belong to this hotel's upload prefix.
func (s *hotelService) ConfirmImageUpload(ctx context.Context, actor *models.User, hotelID primitive.ObjectID, s3Key string) error {
	hotel, err := s.Get(ctx, hotelID)
	if err != nil {
		return err
	}
	if !s.policy.CanWriteHotel(actor, hotel) {
		return ErrForbidden
	}
	if !strings.HasPrefix(s3Key, fmt.Sprintf("hotels/%s/", hotelID.Hex())) {
		return NewValidationError("s3_key", "key does not belong to this hotel")
	}
	if s.taskClient == nil {
		return fmt.Errorf("task queue is not configured")
	}

	task, err := tasks.NewImageProcessTask(s3Key, hotelID)
	if err != nil {
		return err
	}
	if _, err := s.taskClient.EnqueueContext(ctx, task); err != nil {
		return fmt.Errorf("failed to enqueue image processing for hotel %s: %w", hotelID.Hex(), err)
	}
	return nil
}

// ApplyProcessedImage stamps the hotel with the normalized image key. Called
// by the image worker once processing finishes.
func (s *hotelService) ApplyProcessedImage(ctx context.Context, hotelID primitive.ObjectID, s3Key string) error {
	update := bson.M{"$set": bson.M{"image": s3Key, "updated_at": time.Now().UTC()}}
	result, err := s.db.Collection(db.HotelsCollection).UpdateByID(ctx, hotelID, update)
	if err != nil {
		return fmt.Errorf("error applying image to hotel %s: %w", hotelID.Hex(), err)
	}
	if result.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}
