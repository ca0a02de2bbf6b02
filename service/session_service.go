package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"lunch-voting-backend/database"
	"lunch-voting-backend/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// nowFunc returns the current time; tests replace it to pin the clock.
var nowFunc = time.Now

// CreateSessionInput carries the caller-provided fields for a new session.
type CreateSessionInput struct {
	Title         string
	Description   string
	VotesPerUser  *int
	AutoCloseAt   *time.Time
	RestaurantIDs []uint
}

// UpdateSessionInput carries the mutable fields of a draft session. Nil
// fields are left untouched.
type UpdateSessionInput struct {
	Title          *string
	Description    *string
	VotesPerUser   *int
	AutoCloseAt    *time.Time
	ClearAutoClose bool
}

// ListSessionsFilter narrows ListSessions.
type ListSessionsFilter struct {
	Status    string
	CreatorID string
	Page      int
	PageSize  int
}

// CreateSession creates a new draft session owned by creatorID.
func CreateSession(ctx context.Context, creatorID string, in CreateSessionInput) (*models.VoteSession, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, ErrValidation
	}
	votesPerUser := models.DefaultVotesPerUser
	if in.VotesPerUser != nil {
		if *in.VotesPerUser < 1 {
			return nil, ErrValidation
		}
		votesPerUser = *in.VotesPerUser
	}
	if in.AutoCloseAt != nil && !in.AutoCloseAt.After(nowFunc()) {
		return nil, ErrValidation
	}

	session := &models.VoteSession{
		Title:        title,
		Description:  in.Description,
		CreatorID:    creatorID,
		Status:       models.SessionDraft,
		VotesPerUser: votesPerUser,
		AutoCloseAt:  in.AutoCloseAt,
	}

	err := database.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(in.RestaurantIDs) > 0 {
			restaurants, err := activeRestaurants(tx, in.RestaurantIDs)
			if err != nil {
				return err
			}
			session.Restaurants = restaurants
		}
		return tx.Create(session).Error
	})
	if err != nil {
		return nil, err
	}
	return session, nil
}

// GetSession loads a session with its restaurants, closing it first if its
// auto-close deadline has passed.
func GetSession(ctx context.Context, sessionID uint) (*models.VoteSession, error) {
	if err := ensureFresh(ctx, sessionID); err != nil {
		return nil, err
	}
	var session models.VoteSession
	err := database.DB.WithContext(ctx).
		Preload("Restaurants").
		First(&session, sessionID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// ListSessions returns sessions matching the filter, newest first. Overdue
// active sessions are closed before listing so callers never see a stale
// "active" status.
func ListSessions(ctx context.Context, filter ListSessionsFilter) ([]models.VoteSession, int64, error) {
	if _, err := CloseExpiredSessions(ctx); err != nil {
		return nil, 0, err
	}

	query := database.DB.WithContext(ctx).Model(&models.VoteSession{})
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.CreatorID != "" {
		query = query.Where("creator_id = ?", filter.CreatorID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	var sessions []models.VoteSession
	err := query.
		Preload("Restaurants").
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&sessions).Error
	if err != nil {
		return nil, 0, err
	}
	return sessions, total, nil
}

// UpdateSession edits a draft session. Only the creator may edit, and only
// while the session is still a draft.
func UpdateSession(ctx context.Context, sessionID uint, userID string, in UpdateSessionInput) (*models.VoteSession, error) {
	var session models.VoteSession
	err := database.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockSession(tx, sessionID, &session); err != nil {
			return err
		}
		if session.CreatorID != userID {
			return ErrForbidden
		}
		if session.Status != models.SessionDraft {
			return ErrInvalidState
		}

		if in.Title != nil {
			title := strings.TrimSpace(*in.Title)
			if title == "" {
				return ErrValidation
			}
			session.Title = title
		}
		if in.Description != nil {
			session.Description = *in.Description
		}
		if in.VotesPerUser != nil {
			if *in.VotesPerUser < 1 {
				return ErrValidation
			}
			session.VotesPerUser = *in.VotesPerUser
		}
		if in.ClearAutoClose {
			session.AutoCloseAt = nil
		} else if in.AutoCloseAt != nil {
			if !in.AutoCloseAt.After(nowFunc()) {
				return ErrValidation
			}
			session.AutoCloseAt = in.AutoCloseAt
		}
		return tx.Save(&session).Error
	})
	if err != nil {
		return nil, err
	}
	return GetSession(ctx, sessionID)
}

// AddRestaurants attaches restaurants to a draft session. Creator only.
// Restaurants already attached are skipped, soft-deleted or deactivated ones
// are rejected.
func AddRestaurants(ctx context.Context, sessionID uint, userID string, restaurantIDs []uint) (*models.VoteSession, error) {
	if len(restaurantIDs) == 0 {
		return nil, ErrValidation
	}
	err := database.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var session models.VoteSession
		if err := lockSession(tx, sessionID, &session); err != nil {
			return err
		}
		if session.CreatorID != userID {
			return ErrForbidden
		}
		if session.Status != models.SessionDraft {
			return ErrInvalidState
		}
		restaurants, err := activeRestaurants(tx, restaurantIDs)
		if err != nil {
			return err
		}
		return tx.Model(&session).Association("Restaurants").Append(restaurants)
	})
	if err != nil {
		return nil, err
	}
	return GetSession(ctx, sessionID)
}

// RemoveRestaurants detaches restaurants from a draft session. Creator only.
func RemoveRestaurants(ctx context.Context, sessionID uint, userID string, restaurantIDs []uint) (*models.VoteSession, error) {
	if len(restaurantIDs) == 0 {
		return nil, ErrValidation
	}
	err := database.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var session models.VoteSession
		if err := lockSession(tx, sessionID, &session); err != nil {
			return err
		}
		if session.CreatorID != userID {
			return ErrForbidden
		}
		if session.Status != models.SessionDraft {
			return ErrInvalidState
		}
		restaurants := make([]models.Restaurant, 0, len(restaurantIDs))
		for _, id := range restaurantIDs {
			restaurants = append(restaurants, models.Restaurant{Model: gorm.Model{ID: id}})
		}
		return tx.Model(&session).Association("Restaurants").Delete(restaurants)
	})
	if err != nil {
		return nil, err
	}
	return GetSession(ctx, sessionID)
}

// ActivateSession moves a draft session to active. Creator only; the session
// must contain at least one restaurant.
func ActivateSession(ctx context.Context, sessionID uint, userID string) (*models.VoteSession, error) {
	err := database.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var session models.VoteSession
		if err := lockSession(tx, sessionID, &session); err != nil {
			return err
		}
		if session.CreatorID != userID {
			return ErrForbidden
		}
		if session.Status != models.SessionDraft {
			return ErrInvalidState
		}
		count := tx.Model(&session).Association("Restaurants").Count()
		if count == 0 {
			return ErrValidation
		}
		now := nowFunc()
		session.Status = models.SessionActive
		session.ActivatedAt = &now
		return tx.Save(&session).Error
	})
	if err != nil {
		return nil, err
	}
	return GetSession(ctx, sessionID)
}

// CloseSession closes an active session on behalf of its creator, freezing
// the result snapshot in the same transaction.
func CloseSession(ctx context.Context, sessionID uint, userID string) (*models.VoteSession, error) {
	err := database.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var session models.VoteSession
		if err := lockSession(tx, sessionID, &session); err != nil {
			return err
		}
		if session.CreatorID != userID {
			return ErrForbidden
		}
		if session.Status != models.SessionActive {
			return ErrInvalidState
		}
		return closeLocked(tx, &session, nowFunc())
	})
	if err != nil {
		return nil, err
	}
	return GetSession(ctx, sessionID)
}

// lockSession loads the session row under FOR UPDATE so state transitions
// and vote counting serialize per session. SQLite (tests) has no row locks;
// its single-writer transactions give the same guarantee.
func lockSession(tx *gorm.DB, sessionID uint, out *models.VoteSession) error {
	if tx.Dialector.Name() != "sqlite" {
		tx = tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	err := tx.First(out, sessionID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

// closeLocked transitions an already-locked active session to closed and
// freezes its result snapshot. Callers hold the row lock.
func closeLocked(tx *gorm.DB, session *models.VoteSession, closedAt time.Time) error {
	session.Status = models.SessionClosed
	session.ClosedAt = &closedAt
	if err := tx.Save(session).Error; err != nil {
		return err
	}
	return freezeResults(tx, session, closedAt)
}

// ensureFresh closes the session if its auto-close deadline has passed, so
// reads and votes never observe an expired session as active. It is a no-op
// for sessions that are not overdue.
func ensureFresh(ctx context.Context, sessionID uint) error {
	return database.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var session models.VoteSession
		if err := lockSession(tx, sessionID, &session); err != nil {
			if errors.Is(err, ErrNotFound) {
				return nil
			}
			return err
		}
		if !session.AutoCloseDue(nowFunc()) {
			return nil
		}
		return closeLocked(tx, &session, *session.AutoCloseAt)
	})
}

// activeRestaurants resolves restaurant ids, rejecting unknown, soft-deleted
// or deactivated entries.
func activeRestaurants(tx *gorm.DB, ids []uint) ([]models.Restaurant, error) {
	var restaurants []models.Restaurant
	if err := tx.Where("id IN ? AND is_active = ?", ids, true).Find(&restaurants).Error; err != nil {
		return nil, err
	}
	if len(restaurants) != len(uniqueIDs(ids)) {
		return nil, ErrInvalidRestaurant
	}
	return restaurants, nil
}

func uniqueIDs(ids []uint) []uint {
	seen := make(map[uint]struct{}, len(ids))
	out := ids[:0:0]
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
