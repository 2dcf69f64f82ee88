package handlers_test

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/Djiouwairia/RED-Product/internal/api/middleware"
	"github.com/Djiouwairia/RED-Product/internal/auth"
	"github.com/Djiouwairia/RED-Product/internal/models"
	"github.com/Djiouwairia/RED-Product/internal/services"
)

// --- Mocks ---

// injectActor simulates the auth middleware for routes that expect an
// authenticated user in the gin context.
func injectActor(user *models.User) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.ContextKeyActor, user)
		c.Next()
	}
}

// MockUserService implements services.IUserService
type MockUserService struct {
	mock.Mock
}

func (m *MockUserService) Register(ctx context.Context, input services.RegisterInput) (*models.User, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserService) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	args := m.Called(ctx, email, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserService) FindByID(ctx context.Context, userID primitive.ObjectID) (*models.User, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserService) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserService) UpdateProfile(ctx context.Context, userID primitive.ObjectID, input services.UpdateProfileInput) (*models.User, error) {
	args := m.Called(ctx, userID, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserService) ListUsers(ctx context.Context, actor *models.User) ([]models.PublicUser, error) {
	args := m.Called(ctx, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.PublicUser), args.Error(1)
}

func (m *MockUserService) ChangePassword(ctx context.Context, userID primitive.ObjectID, oldPassword, newPassword, newPassword2 string) error {
	args := m.Called(ctx, userID, oldPassword, newPassword, newPassword2)
	return args.Error(0)
}

func (m *MockUserService) SetPassword(ctx context.Context, userID primitive.ObjectID, newPassword string) error {
	args := m.Called(ctx, userID, newPassword)
	return args.Error(0)
}

func (m *MockUserService) RequestPasswordReset(ctx context.Context, email string) error {
	args := m.Called(ctx, email)
	return args.Error(0)
}

func (m *MockUserService) CreateSuperuser(ctx context.Context, providedSecret string, input services.RegisterInput) (*models.User, error) {
	args := m.Called(ctx, providedSecret, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserService) DeleteUserCascade(ctx context.Context, actor *models.User, userID primitive.ObjectID) error {
	args := m.Called(ctx, actor, userID)
	return args.Error(0)
}

// MockHotelService implements services.IHotelService
type MockHotelService struct {
	mock.Mock
}

func (m *MockHotelService) Create(ctx context.Context, actor *models.User, input services.HotelInput) (*models.Hotel, error) {
	args := m.Called(ctx, actor, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Hotel), args.Error(1)
}

func (m *MockHotelService) List(ctx context.Context, filters services.HotelListFilters) ([]models.HotelSummary, error) {
	args := m.Called(ctx, filters)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.HotelSummary), args.Error(1)
}

func (m *MockHotelService) ListMine(ctx context.Context, actor *models.User) ([]models.HotelSummary, error) {
	args := m.Called(ctx, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.HotelSummary), args.Error(1)
}

func (m *MockHotelService) Get(ctx context.Context, hotelID primitive.ObjectID) (*models.Hotel, error) {
	args := m.Called(ctx, hotelID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Hotel), args.Error(1)
}

func (m *MockHotelService) Update(ctx context.Context, actor *models.User, hotelID primitive.ObjectID, input services.HotelInput) (*models.Hotel, error) {
	args := m.Called(ctx, actor, hotelID, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Hotel), args.Error(1)
}

func (m *MockHotelService) Delete(ctx context.Context, actor *models.User, hotelID primitive.ObjectID) error {
	args := m.Called(ctx, actor, hotelID)
	return args.Error(0)
}

func (m *MockHotelService) Statistics(ctx context.Context, filters services.HotelListFilters) (*models.HotelStats, error) {
	args := m.Called(ctx, filters)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.HotelStats), args.Error(1)
}

func (m *MockHotelService) StatisticsFor(ctx context.Context, ownerID primitive.ObjectID) (*models.HotelStats, error) {
	args := m.Called(ctx, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.HotelStats), args.Error(1)
}

func (m *MockHotelService) RequestImageUpload(ctx context.Context, actor *models.User, hotelID primitive.ObjectID, filename, contentType string) (string, string, error) {
	args := m.Called(ctx, actor, hotelID, filename, contentType)
	return args.String(0), args.String(1), args.Error(2)
}

func (m *MockHotelService) ConfirmImageUpload(ctx context.Context, actor *models.User, hotelID primitive.ObjectID, s3Key string) error {
	args := m.Called(ctx, actor, hotelID, s3Key)
	return args.Error(0)
}

func (m *MockHotelService) ApplyProcessedImage(ctx context.Context, hotelID primitive.ObjectID, s3Key string) error {
	args := m.Called(ctx, hotelID, s3Key)
	return args.Error(0)
}

// MockMessageService implements services.IMessageService
type MockMessageService struct {
	mock.Mock
}

func (m *MockMessageService) Send(ctx context.Context, actor *models.User, input services.SendMessageInput) (*models.Message, error) {
	args := m.Called(ctx, actor, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Message), args.Error(1)
}

func (m *MockMessageService) List(ctx context.Context, actor *models.User, scope services.MessageScope) ([]models.Message, error) {
	args := m.Called(ctx, actor, scope)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Message), args.Error(1)
}

func (m *MockMessageService) Get(ctx context.Context, actor *models.User, messageID primitive.ObjectID) (*models.Message, error) {
	args := m.Called(ctx, actor, messageID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Message), args.Error(1)
}

func (m *MockMessageService) MarkRead(ctx context.Context, actor *models.User, messageID primitive.ObjectID) (*models.Message, error) {
	args := m.Called(ctx, actor, messageID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Message), args.Error(1)
}

func (m *MockMessageService) Archive(ctx context.Context, actor *models.User, messageID primitive.ObjectID) (*models.Message, error) {
	args := m.Called(ctx, actor, messageID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Message), args.Error(1)
}

func (m *MockMessageService) Delete(ctx context.Context, actor *models.User, messageID primitive.ObjectID) error {
	args := m.Called(ctx, actor, messageID)
	return args.Error(0)
}

func (m *MockMessageService) Unread(ctx context.Context, actor *models.User) ([]models.Message, error) {
	args := m.Called(ctx, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Message), args.Error(1)
}

func (m *MockMessageService) UnreadCount(ctx context.Context, actor *models.User) (int64, error) {
	args := m.Called(ctx, actor)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockMessageService) Statistics(ctx context.Context, actor *models.User) (*models.MessageStats, error) {
	args := m.Called(ctx, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.MessageStats), args.Error(1)
}

// MockDashboardService implements services.IDashboardService
type MockDashboardService struct {
	mock.Mock
}

func (m *MockDashboardService) Stats(ctx context.Context, actor *models.User, scope services.DashboardScope) (*models.DashboardStats, error) {
	args := m.Called(ctx, actor, scope)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.DashboardStats), args.Error(1)
}

// MockTokenManager implements auth.ITokenManager
type MockTokenManager struct {
	mock.Mock
}

func (m *MockTokenManager) IssuePair(user *models.User) (*auth.TokenPair, error) {
	args := m.Called(user)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*auth.TokenPair), args.Error(1)
}

func (m *MockTokenManager) IssuePasswordResetToken(user *models.User) (string, error) {
	args := m.Called(user)
	return args.String(0), args.Error(1)
}

func (m *MockTokenManager) ValidateAccess(tokenString string) (*auth.Claims, error) {
	args := m.Called(tokenString)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*auth.Claims), args.Error(1)
}

func (m *MockTokenManager) ValidateRefresh(ctx context.Context, tokenString string) (*auth.Claims, error) {
	args := m.Called(ctx, tokenString)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*auth.Claims), args.Error(1)
}

func (m *MockTokenManager) ValidatePasswordResetToken(tokenString string) (*auth.Claims, error) {
	args := m.Called(tokenString)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*auth.Claims), args.Error(1)
}

func (m *MockTokenManager) RefreshAccess(ctx context.Context, refreshToken string) (string, error) {
	args := m.Called(ctx, refreshToken)
	return args.String(0), args.Error(1)
}

func (m *MockTokenManager) RevokeRefresh(ctx context.Context, refreshToken string) error {
	args := m.Called(ctx, refreshToken)
	return args.Error(0)
}
