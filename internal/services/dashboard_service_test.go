package services

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Djiouwairia/RED-Product/internal/models"
)

func setupDashboardTest(t *testing.T) (IDashboardService, IHotelService, IMessageService, IUserService, func()) {
	db, cleanup := setupServicesDB(t, "dashboard_service")
	policy := newOwnerOrAdminPolicy()
	users := NewUserService(db, policy, testPasswordPolicy(), new(mockTokenManager), nil, "")
	hotels := NewHotelService(db, policy, nil, nil)
	messages := NewMessageService(db, policy)
	dashboard := NewDashboardService(db, hotels, messages)
	return dashboard, hotels, messages, users, cleanup
}

func TestScopeFor(t *testing.T) {
	assert.Equal(t, ScopeSelf, ScopeFor(nil))
	assert.Equal(t, ScopeSelf, ScopeFor(&models.User{}))
	assert.Equal(t, ScopeGlobal, ScopeFor(&models.User{IsAdmin: true}))
	assert.Equal(t, ScopeGlobal, ScopeFor(&models.User{IsStaff: true}))
	assert.Equal(t, ScopeGlobal, ScopeFor(&models.User{IsSuperuser: true}))
}

func TestDashboardService_ScopeEnforcement(t *testing.T) {
	dashboard, _, _, users, cleanup := setupDashboardTest(t)
	defer cleanup()
	ctx := context.Background()

	regular := insertTestUser(t, users, "regular@example.com", false)

	_, err := dashboard.Stats(ctx, regular, ScopeGlobal)
	assert.ErrorIs(t, err, ErrForbidden)

	stats, err := dashboard.Stats(ctx, regular, ScopeSelf)
	require.NoError(t, err)
	assert.Nil(t, stats.Users)
	assert.Nil(t, stats.TopContributors)
}

func TestDashboardService_GlobalStats(t *testing.T) {
	dashboard, hotels, messages, users, cleanup := setupDashboardTest(t)
	defer cleanup()
	ctx := context.Background()

	admin := insertTestUser(t, users, "admin@example.com", true)
	alice := insertTestUser(t, users, "alice@example.com", false)
	bob := insertTestUser(t, users, "bob@example.com", false)

	// alice owns two hotels, bob one, the admin none.
	for i, owner := range []*models.User{alice, alice, bob} {
		_, err := hotels.Create(ctx, owner, fullHotelInput(
			fmt.Sprintf("Hotel %d", i), 100, currencyXOFForTest()))
		require.NoError(t, err)
	}
	_, err := messages.Send(ctx, alice, SendMessageInput{
		RecipientID: admin.ID.Hex(), Subject: "hello", Body: "admin inbox",
	})
	require.NoError(t, err)

	stats, err := dashboard.Stats(ctx, admin, ScopeGlobal)
	require.NoError(t, err)

	require.NotNil(t, stats.Users)
	assert.Equal(t, int64(3), stats.Users.Total)
	assert.Equal(t, int64(1), stats.Users.Admins)
	assert.Equal(t, int64(2), stats.Users.Regular)

	assert.Equal(t, int64(3), stats.Hotels.TotalHotels)
	assert.Equal(t, int64(0), stats.MyHotels)
	assert.Equal(t, int64(1), stats.Messages.Received)
	assert.Equal(t, int64(1), stats.Messages.Unread)

	require.Len(t, stats.TopContributors, 2)
	assert.Equal(t, "alice@example.com", stats.TopContributors[0].Email)
	assert.Equal(t, int64(2), stats.TopContributors[0].HotelCount)
	assert.Equal(t, "bob@example.com", stats.TopContributors[1].Email)
	assert.Equal(t, int64(1), stats.TopContributors[1].HotelCount)
}

func TestDashboardService_TopContributorsCapAndTieBreak(t *testing.T) {
	dashboard, hotels, _, users, cleanup := setupDashboardTest(t)
	defer cleanup()
	ctx := context.Background()

	admin := insertTestUser(t, users, "admin@example.com", true)

	// Seven owners with one hotel each: ranking is capped at five and ties
	// resolve by owner id, so the ordering is stable.
	owners := make([]*models.User, 7)
	for i := range owners {
		owners[i] = insertTestUser(t, users, fmt.Sprintf("owner%d@example.com", i), false)
		_, err := hotels.Create(ctx, owners[i], fullHotelInput(
			fmt.Sprintf("Hotel %d", i), 100, currencyXOFForTest()))
		require.NoError(t, err)
	}

	first, err := dashboard.Stats(ctx, admin, ScopeGlobal)
	require.NoError(t, err)
	require.Len(t, first.TopContributors, 5)

	second, err := dashboard.Stats(ctx, admin, ScopeGlobal)
	require.NoError(t, err)
	assert.Equal(t, first.TopContributors, second.TopContributors)
}

func TestDashboardService_SelfScope(t *testing.T) {
	dashboard, hotels, _, users, cleanup := setupDashboardTest(t)
	defer cleanup()
	ctx := context.Background()

	alice := insertTestUser(t, users, "alice@example.com", false)
	bob := insertTestUser(t, users, "bob@example.com", false)

	_, err := hotels.Create(ctx, alice, fullHotelInput("Mine", 120, currencyXOFForTest()))
	require.NoError(t, err)
	_, err = hotels.Create(ctx, bob, fullHotelInput("Theirs", 80, currencyXOFForTest()))
	require.NoError(t, err)

	stats, err := dashboard.Stats(ctx, alice, ScopeFor(alice))
	require.NoError(t, err)

	assert.Equal(t, int64(2), stats.Hotels.TotalHotels)
	assert.Equal(t, int64(1), stats.MyHotels)
	assert.Nil(t, stats.Users)
	assert.Nil(t, stats.TopContributors)
}
