package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/Djiouwairia/RED-Product/internal/auth"
	"github.com/Djiouwairia/RED-Product/internal/authz"
	"github.com/Djiouwairia/RED-Product/internal/models"
	"github.com/Djiouwairia/RED-Product/internal/utils"
)

// mockTaskClient mocks tasks.IClient.
type mockTaskClient struct {
	mock.Mock
}

func (m *mockTaskClient) EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	args := m.Called(ctx, task)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*asynq.TaskInfo), args.Error(1)
}

// mockTokenManager mocks auth.ITokenManager for the reset flow.
type mockTokenManager struct {
	mock.Mock
}

func (m *mockTokenManager) IssuePair(user *models.User) (*auth.TokenPair, error) {
	args := m.Called(user)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*auth.TokenPair), args.Error(1)
}

func (m *mockTokenManager) IssuePasswordResetToken(user *models.User) (string, error) {
	args := m.Called(user)
	return args.String(0), args.Error(1)
}

func (m *mockTokenManager) ValidateAccess(tokenString string) (*auth.Claims, error) {
	args := m.Called(tokenString)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*auth.Claims), args.Error(1)
}

func (m *mockTokenManager) ValidateRefresh(ctx context.Context, tokenString string) (*auth.Claims, error) {
	args := m.Called(ctx, tokenString)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*auth.Claims), args.Error(1)
}

func (m *mockTokenManager) ValidatePasswordResetToken(tokenString string) (*auth.Claims, error) {
	args := m.Called(tokenString)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*auth.Claims), args.Error(1)
}

func (m *mockTokenManager) RefreshAccess(ctx context.Context, refreshToken string) (string, error) {
	args := m.Called(ctx, refreshToken)
	return args.String(0), args.Error(1)
}

func (m *mockTokenManager) RevokeRefresh(ctx context.Context, refreshToken string) error {
	args := m.Called(ctx, refreshToken)
	return args.Error(0)
}

// setupServicesDB returns a clean database unique to the calling test and a
// cleanup function that drops it.
func setupServicesDB(t *testing.T, suite string) (*mongo.Database, func()) {
	dbName := fmt.Sprintf("testdb_%s_%d", suite, time.Now().UnixNano())
	db := utils.SetupTestDB(t, dbName, "users", "hotels", "messages")

	cleanup := func() {
		client := db.Client()
		if err := db.Drop(context.Background()); err != nil {
			t.Logf("Failed to drop database %s: %v", dbName, err)
		}
		if err := client.Disconnect(context.Background()); err != nil {
			t.Logf("Failed to disconnect MongoDB client: %v", err)
		}
	}
	return db, cleanup
}

func testPasswordPolicy() *auth.PasswordPolicy {
	return auth.NewPasswordPolicy(8)
}

// insertTestUser registers a user directly through the service and optionally
// promotes them to admin.
func insertTestUser(t *testing.T, svc IUserService, emailAddr string, admin bool) *models.User {
	t.Helper()
	user, err := svc.Register(context.Background(), RegisterInput{
		Username:  emailAddr, // usernames must be unique too; the email serves fine
		Email:     emailAddr,
		FirstName: "Test",
		LastName:  "User",
		Password:  "sup3rsecret",
		Password2: "sup3rsecret",
	})
	require.NoError(t, err)

	if admin {
		user.IsAdmin = true
		// Persist the flag so DB-backed reads agree with the in-memory actor.
		_, err = svc.(*userService).db.Collection("users").UpdateByID(context.Background(),
			user.ID, map[string]interface{}{"$set": map[string]interface{}{"is_admin": true}})
		require.NoError(t, err)
	}
	return user
}

func currencyXOFForTest() models.Currency {
	return models.CurrencyXOF
}

func newAdminOnlyPolicy() authz.Policy {
	policy, _ := authz.ForVariant(authz.VariantAdminOnly)
	return policy
}

func newOwnerOrAdminPolicy() authz.Policy {
	policy, _ := authz.ForVariant(authz.VariantOwnerOrAdmin)
	return policy
}
