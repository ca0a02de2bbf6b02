package models

import (
	"time"

	"gorm.io/gorm"
)

// SessionStatus is the lifecycle state of a vote session.
// Transitions are monotonic: draft -> active -> closed.
type SessionStatus string

const (
	SessionDraft  SessionStatus = "draft"
	SessionActive SessionStatus = "active"
	SessionClosed SessionStatus = "closed"
)

// DefaultVotesPerUser is applied when a session is created without an
// explicit allowance.
const DefaultVotesPerUser = 3

// VoteSession is a time-boxed voting round over a chosen restaurant subset.
type VoteSession struct {
	gorm.Model
	Title        string        `gorm:"not null" json:"title"`
	Description  string        `gorm:"type:text" json:"description,omitempty"`
	CreatorID    string        `gorm:"not null;index" json:"creator_id"`
	Status       SessionStatus `gorm:"not null;default:draft;index" json:"status"`
	VotesPerUser int           `gorm:"not null;default:3" json:"votes_per_user"`
	AutoCloseAt  *time.Time    `json:"auto_close_at,omitempty"`
	ActivatedAt  *time.Time    `json:"activated_at,omitempty"`
	ClosedAt     *time.Time    `gorm:"index" json:"closed_at,omitempty"`
	Restaurants  []Restaurant  `gorm:"many2many:session_restaurants" json:"restaurants,omitempty"`
}

// HasRestaurant reports whether the given restaurant belongs to the session.
// Restaurants must be preloaded.
func (s *VoteSession) HasRestaurant(restaurantID uint) bool {
	for _, r := range s.Restaurants {
		if r.ID == restaurantID {
			return true
		}
	}
	return false
}

// AutoCloseDue reports whether the session should be closed by the system at
// the given instant.
func (s *VoteSession) AutoCloseDue(now time.Time) bool {
	return s.Status == SessionActive && s.AutoCloseAt != nil && !s.AutoCloseAt.After(now)
}
