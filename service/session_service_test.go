package service

import (
	"context"
	"testing"
	"time"

	"lunch-voting-backend/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateSessionDefaults(t *testing.T) {
	db := SetupTestEnvironment(t)
	ctx := context.Background()

	r1 := createTestRestaurant(t, db, "Golden Wok")
	session, err := CreateSession(ctx, "alice", CreateSessionInput{
		Title:         "Lunch today",
		RestaurantIDs: []uint{r1.ID},
	})
	require.NoError(t, err)

	assert.Equal(t, models.SessionDraft, session.Status)
	assert.Equal(t, "alice", session.CreatorID)
	assert.Equal(t, models.DefaultVotesPerUser, session.VotesPerUser)
	assert.Nil(t, session.AutoCloseAt)
}

func TestCreateSessionValidation(t *testing.T) {
	SetupTestEnvironment(t)
	ctx := context.Background()

	_, err := CreateSession(ctx, "alice", CreateSessionInput{Title: "   "})
	assert.ErrorIs(t, err, ErrValidation)

	zero := 0
	_, err = CreateSession(ctx, "alice", CreateSessionInput{
		Title:        "Lunch",
		VotesPerUser: &zero,
	})
	assert.ErrorIs(t, err, ErrValidation)

	past := time.Now().Add(-time.Hour)
	_, err = CreateSession(ctx, "alice", CreateSessionInput{
		Title:       "Lunch",
		AutoCloseAt: &past,
	})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestCreateSessionRejectsUnknownRestaurants(t *testing.T) {
	SetupTestEnvironment(t)

	_, err := CreateSession(context.Background(), "alice", CreateSessionInput{
		Title:         "Lunch",
		RestaurantIDs: []uint{12345},
	})
	assert.ErrorIs(t, err, ErrInvalidRestaurant)
}

func TestActivateRequiresRestaurants(t *testing.T) {
	SetupTestEnvironment(t)
	ctx := context.Background()

	session, err := CreateSession(ctx, "alice", CreateSessionInput{Title: "Lunch"})
	require.NoError(t, err)

	_, err = ActivateSession(ctx, session.ID, "alice")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestActivateCreatorOnly(t *testing.T) {
	db := SetupTestEnvironment(t)
	ctx := context.Background()

	r1 := createTestRestaurant(t, db, "Golden Wok")
	session, err := CreateSession(ctx, "alice", CreateSessionInput{
		Title:         "Lunch",
		RestaurantIDs: []uint{r1.ID},
	})
	require.NoError(t, err)

	_, err = ActivateSession(ctx, session.ID, "bob")
	assert.ErrorIs(t, err, ErrForbidden)

	activated, err := ActivateSession(ctx, session.ID, "alice")
	require.NoError(t, err)
	assert.Equal(t, models.SessionActive, activated.Status)
	assert.NotNil(t, activated.ActivatedAt)

	// Activation is not repeatable.
	_, err = ActivateSession(ctx, session.ID, "alice")
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestUpdateSessionDraftOnly(t *testing.T) {
	db := SetupTestEnvironment(t)
	ctx := context.Background()

	r1 := createTestRestaurant(t, db, "Golden Wok")
	session, err := CreateSession(ctx, "alice", CreateSessionInput{
		Title:         "Lunch",
		RestaurantIDs: []uint{r1.ID},
	})
	require.NoError(t, err)

	title := "Team lunch"
	votes := 5
	updated, err := UpdateSession(ctx, session.ID, "alice", UpdateSessionInput{
		Title:        &title,
		VotesPerUser: &votes,
	})
	require.NoError(t, err)
	assert.Equal(t, "Team lunch", updated.Title)
	assert.Equal(t, 5, updated.VotesPerUser)

	_, err = UpdateSession(ctx, session.ID, "bob", UpdateSessionInput{Title: &title})
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = ActivateSession(ctx, session.ID, "alice")
	require.NoError(t, err)

	_, err = UpdateSession(ctx, session.ID, "alice", UpdateSessionInput{Title: &title})
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestAddAndRemoveRestaurants(t *testing.T) {
	db := SetupTestEnvironment(t)
	ctx := context.Background()

	r1 := createTestRestaurant(t, db, "Golden Wok")
	r2 := createTestRestaurant(t, db, "Taco Norte")

	session, err := CreateSession(ctx, "alice", CreateSessionInput{
		Title:         "Lunch",
		RestaurantIDs: []uint{r1.ID},
	})
	require.NoError(t, err)

	withR2, err := AddRestaurants(ctx, session.ID, "alice", []uint{r2.ID})
	require.NoError(t, err)
	assert.Len(t, withR2.Restaurants, 2)

	trimmed, err := RemoveRestaurants(ctx, session.ID, "alice", []uint{r1.ID})
	require.NoError(t, err)
	require.Len(t, trimmed.Restaurants, 1)
	assert.Equal(t, r2.ID, trimmed.Restaurants[0].ID)

	// Membership is frozen once the session leaves draft.
	_, err = ActivateSession(ctx, session.ID, "alice")
	require.NoError(t, err)
	_, err = AddRestaurants(ctx, session.ID, "alice", []uint{r1.ID})
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestAddRestaurantsRejectsDeactivated(t *testing.T) {
	db := SetupTestEnvironment(t)
	ctx := context.Background()

	r1 := createTestRestaurant(t, db, "Golden Wok")
	inactive := createTestRestaurant(t, db, "Closed Diner")
	require.NoError(t, db.Model(&inactive).Update("is_active", false).Error)

	session, err := CreateSession(ctx, "alice", CreateSessionInput{
		Title:         "Lunch",
		RestaurantIDs: []uint{r1.ID},
	})
	require.NoError(t, err)

	_, err = AddRestaurants(ctx, session.ID, "alice", []uint{inactive.ID})
	assert.ErrorIs(t, err, ErrInvalidRestaurant)
}

func TestCloseSessionCreatorOnly(t *testing.T) {
	db := SetupTestEnvironment(t)
	ctx := context.Background()

	r1 := createTestRestaurant(t, db, "Golden Wok")
	session := createActiveSession(t, "alice", []uint{r1.ID}, 3)

	_, err := CloseSession(ctx, session.ID, "bob")
	assert.ErrorIs(t, err, ErrForbidden)

	closed, err := CloseSession(ctx, session.ID, "alice")
	require.NoError(t, err)
	assert.Equal(t, models.SessionClosed, closed.Status)
	assert.NotNil(t, closed.ClosedAt)

	// Closing is terminal.
	_, err = CloseSession(ctx, session.ID, "alice")
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestListSessionsFilters(t *testing.T) {
	db := SetupTestEnvironment(t)
	ctx := context.Background()

	r1 := createTestRestaurant(t, db, "Golden Wok")
	_ = createActiveSession(t, "alice", []uint{r1.ID}, 3)
	_, err := CreateSession(ctx, "bob", CreateSessionInput{
		Title:         "Bob's lunch",
		RestaurantIDs: []uint{r1.ID},
	})
	require.NoError(t, err)

	active, total, err := ListSessions(ctx, ListSessionsFilter{Status: string(models.SessionActive)})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, active, 1)
	assert.Equal(t, models.SessionActive, active[0].Status)

	bobs, total, err := ListSessions(ctx, ListSessionsFilter{CreatorID: "bob"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, bobs, 1)
	assert.Equal(t, "bob", bobs[0].CreatorID)
}

func TestDeactivateRestaurantBlockedByActiveSession(t *testing.T) {
	db := SetupTestEnvironment(t)
	ctx := context.Background()

	r1 := createTestRestaurant(t, db, "Golden Wok")
	session := createActiveSession(t, "alice", []uint{r1.ID}, 3)

	err := DeactivateRestaurant(ctx, r1.ID)
	assert.ErrorIs(t, err, ErrInvalidState)

	_, err = CloseSession(ctx, session.ID, "alice")
	require.NoError(t, err)

	require.NoError(t, DeactivateRestaurant(ctx, r1.ID))

	listed, err := ListRestaurants(ctx, false)
	require.NoError(t, err)
	assert.Empty(t, listed)

	reactivated, err := ReactivateRestaurant(ctx, r1.ID)
	require.NoError(t, err)
	assert.True(t, reactivated.IsActive)
}
