package service

import (
	"context"
	"errors"
	"strings"

	"lunch-voting-backend/database"
	"lunch-voting-backend/models"

	"gorm.io/gorm"
)

// voteWeights maps a user's vote ordinal within a session to its weight:
// the first vote counts 1.0, the second 0.5, every further vote 0.25.
var voteWeights = []float64{1.0, 0.5, 0.25}

const maxCastRetries = 3

// weightForSequence returns the weight of a user's n-th vote (1-based).
func weightForSequence(n int) float64 {
	if n < 1 {
		n = 1
	}
	if n > len(voteWeights) {
		return voteWeights[len(voteWeights)-1]
	}
	return voteWeights[n-1]
}

// CastVote records one vote by userID in the session. The weight is fixed by
// how many votes the user has already cast in this session, regardless of
// which restaurants those earlier votes went to. Votes are append-only;
// there is no retraction.
func CastVote(ctx context.Context, sessionID uint, userID string, restaurantID uint) (*models.VoteEntry, error) {
	var entry *models.VoteEntry
	var err error
	for attempt := 0; attempt < maxCastRetries; attempt++ {
		entry, err = castVoteOnce(ctx, sessionID, userID, restaurantID)
		if err == nil || !retryableCastError(err) {
			return entry, err
		}
	}
	return nil, err
}

func castVoteOnce(ctx context.Context, sessionID uint, userID string, restaurantID uint) (*models.VoteEntry, error) {
	// Persist the lazy close first; an error returned from inside the cast
	// transaction would roll a close back.
	if err := ensureFresh(ctx, sessionID); err != nil {
		return nil, err
	}

	var entry models.VoteEntry
	err := database.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var session models.VoteSession
		if err := lockSession(tx, sessionID, &session); err != nil {
			return err
		}

		now := nowFunc()
		if session.Status != models.SessionActive || session.AutoCloseDue(now) {
			return ErrInvalidState
		}

		var member int64
		if err := tx.Table("session_restaurants").
			Where("vote_session_id = ? AND restaurant_id = ?", sessionID, restaurantID).
			Count(&member).Error; err != nil {
			return err
		}
		if member == 0 {
			return ErrInvalidRestaurant
		}

		var cast int64
		if err := tx.Model(&models.VoteEntry{}).
			Where("session_id = ? AND user_id = ?", sessionID, userID).
			Count(&cast).Error; err != nil {
			return err
		}
		if int(cast) >= session.VotesPerUser {
			return ErrVoteLimitExceeded
		}

		sequence := int(cast) + 1
		entry = models.VoteEntry{
			SessionID:    sessionID,
			UserID:       userID,
			RestaurantID: restaurantID,
			Sequence:     sequence,
			Weight:       weightForSequence(sequence),
			CastAt:       now,
		}
		return tx.Create(&entry).Error
	})
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// UserVotes returns userID's votes in a session, in cast order.
func UserVotes(ctx context.Context, sessionID uint, userID string) ([]models.VoteEntry, error) {
	if err := ensureFresh(ctx, sessionID); err != nil {
		return nil, err
	}
	if err := sessionExists(ctx, sessionID); err != nil {
		return nil, err
	}
	var entries []models.VoteEntry
	err := database.DB.WithContext(ctx).
		Where("session_id = ? AND user_id = ?", sessionID, userID).
		Order("sequence ASC").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// SessionVotes returns every vote in a session, in cast order.
func SessionVotes(ctx context.Context, sessionID uint) ([]models.VoteEntry, error) {
	if err := ensureFresh(ctx, sessionID); err != nil {
		return nil, err
	}
	if err := sessionExists(ctx, sessionID); err != nil {
		return nil, err
	}
	var entries []models.VoteEntry
	err := database.DB.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at ASC, id ASC").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func sessionExists(ctx context.Context, sessionID uint) error {
	var count int64
	err := database.DB.WithContext(ctx).
		Model(&models.VoteSession{}).
		Where("id = ?", sessionID).
		Count(&count).Error
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrNotFound
	}
	return nil
}

// retryableCastError reports whether a cast failure is worth retrying: lock
// contention, deadlocks, or a duplicate sequence raced in by a concurrent
// cast from the same user. The unique index on (session, user, sequence) is
// the backstop; retrying recomputes the sequence.
func retryableCastError(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "deadlock") ||
		strings.Contains(msg, "lock wait timeout") ||
		strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "table is locked") ||
		strings.Contains(msg, "duplicate") ||
		strings.Contains(msg, "unique constraint")
}
