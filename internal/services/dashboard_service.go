package services

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/Djiouwairia/RED-Product/internal/db"
	"github.com/Djiouwairia/RED-Product/internal/models"
)

// DashboardScope selects how much the dashboard aggregator reveals.
type DashboardScope string

const (
	// ScopeGlobal includes the user breakdown and top contributors. Admin only.
	ScopeGlobal DashboardScope = "global"
	// ScopeSelf restricts the payload to the actor's own figures.
	ScopeSelf DashboardScope = "self"
)

// ScopeFor returns the widest scope the actor is entitled to.
func ScopeFor(actor *models.User) DashboardScope {
	if actor != nil && actor.AdminClass() {
		return ScopeGlobal
	}
	return ScopeSelf
}

// IDashboardService aggregates the per-domain statistics into one payload.
type IDashboardService interface {
	Stats(ctx context.Context, actor *models.User, scope DashboardScope) (*models.DashboardStats, error)
}

type dashboardService struct {
	db       *mongo.Database
	hotels   IHotelService
	messages IMessageService
}

// NewDashboardService creates a new DashboardService on top of the hotel and
// message services.
func NewDashboardService(database *mongo.Database, hotels IHotelService, messages IMessageService) IDashboardService {
	return &dashboardService{db: database, hotels: hotels, messages: messages}
}

// Stats builds the dashboard payload. The scope is decided by the caller
// (normally via ScopeFor) so handlers cannot accidentally widen it; asking
// for global scope without admin rights is ErrForbidden.
func (s *dashboardService) Stats(ctx context.Context, actor *models.User, scope DashboardScope) (*models.DashboardStats, error) {
	if scope == ScopeGlobal && !actor.AdminClass() {
		return nil, ErrForbidden
	}

	hotelStats, err := s.hotels.Statistics(ctx, HotelListFilters{})
	if err != nil {
		return nil, err
	}
	mine, err := s.hotels.StatisticsFor(ctx, actor.ID)
	if err != nil {
		return nil, err
	}
	messageStats, err := s.messages.Statistics(ctx, actor)
	if err != nil {
		return nil, err
	}

	stats := &models.DashboardStats{
		Hotels:   *hotelStats,
		MyHotels: mine.TotalHotels,
		Messages: *messageStats,
	}

	if scope == ScopeGlobal {
		users, err := s.userBreakdown(ctx)
		if err != nil {
			return nil, err
		}
		stats.Users = users

		contributors, err := s.topContributors(ctx)
		if err != nil {
			return nil, err
		}
		stats.TopContributors = contributors
	}

	return stats, nil
}

func (s *dashboardService) userBreakdown(ctx context.Context) (*models.UserBreakdown, error) {
	collection := s.db.Collection(db.UsersCollection)

	total, err := collection.CountDocuments(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("failed to count users: %w", err)
	}
	admins, err := collection.CountDocuments(ctx, bson.M{"$or": []bson.M{
		{"is_admin": true},
		{"is_staff": true},
		{"is_superuser": true},
	}})
	if err != nil {
		return nil, fmt.Errorf("failed to count admin users: %w", err)
	}

	return &models.UserBreakdown{
		Total:   total,
		Admins:  admins,
		Regular: total - admins,
	}, nil
}

// topContributors ranks owners by hotel count, top five. Ties break on owner
// id so the ranking is stable across requests.
func (s *dashboardService) topContributors(ctx context.Context) ([]models.Contributor, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.M{
			"_id":         "$owner_id",
			"hotel_count": bson.M{"$sum": 1},
		}}},
		{{Key: "$sort", Value: bson.D{
			{Key: "hotel_count", Value: -1},
			{Key: "_id", Value: 1},
		}}},
		{{Key: "$limit", Value: 5}},
		{{Key: "$lookup", Value: bson.M{
			"from":         db.UsersCollection,
			"localField":   "_id",
			"foreignField": "_id",
			"as":           "owner",
		}}},
		{{Key: "$unwind", Value: "$owner"}},
		{{Key: "$project", Value: bson.M{
			"username":    "$owner.username",
			"email":       "$owner.email",
			"hotel_count": 1,
		}}},
	}

	cursor, err := s.db.Collection(db.HotelsCollection).Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate top contributors: %w", err)
	}
	defer cursor.Close(ctx)

	contributors := []models.Contributor{}
	if err = cursor.All(ctx, &contributors); err != nil {
		return nil, fmt.Errorf("failed to decode top contributors: %w", err)
	}
	return contributors, nil
}
