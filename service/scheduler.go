package service

import (
	"context"
	"errors"
	"log"

	"lunch-voting-backend/database"
	"lunch-voting-backend/models"

	"gorm.io/gorm"
)

// CloseExpiredSessions closes every active session whose auto-close deadline
// has passed, freezing each result snapshot with the deadline as the close
// time. It is idempotent: a session already closed by a concurrent sweep or
// by a lazy close is skipped. Returns the ids of the sessions it closed.
func CloseExpiredSessions(ctx context.Context) ([]uint, error) {
	var overdue []models.VoteSession
	err := database.DB.WithContext(ctx).
		Where("status = ? AND auto_close_at IS NOT NULL AND auto_close_at <= ?",
			models.SessionActive, nowFunc()).
		Find(&overdue).Error
	if err != nil {
		return nil, err
	}

	var closed []uint
	for i := range overdue {
		id := overdue[i].ID
		err := database.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var session models.VoteSession
			if err := lockSession(tx, id, &session); err != nil {
				return err
			}
			// Re-check under the lock; someone may have beaten us to it.
			if !session.AutoCloseDue(nowFunc()) {
				return nil
			}
			if err := closeLocked(tx, &session, *session.AutoCloseAt); err != nil {
				return err
			}
			closed = append(closed, id)
			return nil
		})
		if err != nil && !errors.Is(err, ErrNotFound) {
			log.Printf("failed to auto-close session %d: %v", id, err)
		}
	}
	return closed, nil
}
