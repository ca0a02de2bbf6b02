package models

import (
	"gorm.io/gorm"
)

// Restaurant is a votable catalog entry. Restaurants are never hard-deleted:
// deletion flips IsActive so historical vote entries stay resolvable.
type Restaurant struct {
	gorm.Model
	Name        string `gorm:"not null;index" json:"name"`
	Description string `gorm:"type:text" json:"description,omitempty"`
	Address     string `json:"address,omitempty"`
	IsActive    bool   `gorm:"not null;default:true" json:"is_active"`
}
