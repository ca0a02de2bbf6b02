package service

import (
	"context"
	"testing"
	"time"

	"lunch-voting-backend/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCloseExpiredSessionsSweep(t *testing.T) {
	db := SetupTestEnvironment(t)
	ctx := context.Background()

	r1 := createTestRestaurant(t, db, "Golden Wok")

	base := time.Date(2026, 8, 3, 11, 0, 0, 0, time.UTC)
	withFrozenClock(t, base)

	deadline := base.Add(30 * time.Minute)
	overdue, err := CreateSession(ctx, "alice", CreateSessionInput{
		Title:         "Expiring lunch",
		AutoCloseAt:   &deadline,
		RestaurantIDs: []uint{r1.ID},
	})
	require.NoError(t, err)
	_, err = ActivateSession(ctx, overdue.ID, "alice")
	require.NoError(t, err)

	farDeadline := base.Add(24 * time.Hour)
	fresh, err := CreateSession(ctx, "alice", CreateSessionInput{
		Title:         "Tomorrow's lunch",
		AutoCloseAt:   &farDeadline,
		RestaurantIDs: []uint{r1.ID},
	})
	require.NoError(t, err)
	_, err = ActivateSession(ctx, fresh.ID, "alice")
	require.NoError(t, err)

	// Nothing is due yet.
	closed, err := CloseExpiredSessions(ctx)
	require.NoError(t, err)
	assert.Empty(t, closed)

	withFrozenClock(t, deadline.Add(time.Minute))
	closed, err = CloseExpiredSessions(ctx)
	require.NoError(t, err)
	assert.Equal(t, []uint{overdue.ID}, closed)

	closedSession, err := GetSession(ctx, overdue.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionClosed, closedSession.Status)
	require.NotNil(t, closedSession.ClosedAt)
	assert.True(t, closedSession.ClosedAt.Equal(deadline))

	stillActive, err := GetSession(ctx, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionActive, stillActive.Status)

	// The sweep is idempotent.
	closed, err = CloseExpiredSessions(ctx)
	require.NoError(t, err)
	assert.Empty(t, closed)

	// The snapshot was frozen exactly once, with the deadline as its
	// computed-at time.
	var count int64
	require.NoError(t, db.Model(&models.ResultSnapshot{}).
		Where("session_id = ?", overdue.ID).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestGetSessionLazyClosesOverdue(t *testing.T) {
	db := SetupTestEnvironment(t)
	ctx := context.Background()

	r1 := createTestRestaurant(t, db, "Golden Wok")

	base := time.Date(2026, 8, 3, 11, 0, 0, 0, time.UTC)
	withFrozenClock(t, base)

	deadline := base.Add(10 * time.Minute)
	session, err := CreateSession(ctx, "alice", CreateSessionInput{
		Title:         "Lunch",
		AutoCloseAt:   &deadline,
		RestaurantIDs: []uint{r1.ID},
	})
	require.NoError(t, err)
	_, err = ActivateSession(ctx, session.ID, "alice")
	require.NoError(t, err)

	// A plain read past the deadline observes the closed state.
	withFrozenClock(t, deadline.Add(time.Second))
	reloaded, err := GetSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionClosed, reloaded.Status)
}
