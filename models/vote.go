package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// VoteEntry is one cast vote inside a session. Entries are append-only;
// Sequence is the 1-based ordinal of the user's votes within the session
// (not per restaurant). Weight is persisted at cast time so a future change
// to the weighting rule never alters historical results.
type VoteEntry struct {
	gorm.Model
	SessionID    uint      `gorm:"not null;index;uniqueIndex:idx_vote_session_user_seq" json:"session_id"`
	UserID       string    `gorm:"not null;index;uniqueIndex:idx_vote_session_user_seq" json:"user_id"`
	RestaurantID uint      `gorm:"not null;index" json:"restaurant_id"`
	Sequence     int       `gorm:"not null;uniqueIndex:idx_vote_session_user_seq" json:"sequence"`
	Weight       float64   `gorm:"not null" json:"weight"`
	CastAt       time.Time `gorm:"not null" json:"cast_at"`
}

// RestaurantTotal is one standings row of a computed result.
type RestaurantTotal struct {
	RestaurantID   uint    `json:"restaurant_id"`
	RestaurantName string  `json:"restaurant_name"`
	WeightedTotal  float64 `json:"weighted_total"`
	DistinctVoters int     `json:"distinct_voters"`
}

// ResultSnapshot is the frozen outcome of a closed session, written exactly
// once when the session closes and returned verbatim afterwards. Results of
// active sessions are computed live and never persisted.
//
// A nil WinnerRestaurantID together with a non-empty TiedRestaurantIDs list
// means the tie-break could not resolve a single winner.
type ResultSnapshot struct {
	gorm.Model
	SessionID          uint           `gorm:"not null;uniqueIndex" json:"session_id"`
	Totals             datatypes.JSON `gorm:"not null" json:"-"`
	WinnerRestaurantID *uint          `json:"winner_restaurant_id"`
	TiedRestaurantIDs  datatypes.JSON `json:"-"`
	ComputedAt         time.Time      `gorm:"not null" json:"computed_at"`
}
