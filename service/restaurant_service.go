package service

import (
	"context"
	"errors"
	"strings"

	"lunch-voting-backend/database"
	"lunch-voting-backend/models"

	"gorm.io/gorm"
)

// RestaurantInput carries the caller-provided fields of a restaurant.
type RestaurantInput struct {
	Name        string
	Description string
	Address     string
}

// CreateRestaurant adds a restaurant to the catalog.
func CreateRestaurant(ctx context.Context, in RestaurantInput) (*models.Restaurant, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, ErrValidation
	}
	restaurant := &models.Restaurant{
		Name:        name,
		Description: in.Description,
		Address:     in.Address,
		IsActive:    true,
	}
	if err := database.DB.WithContext(ctx).Create(restaurant).Error; err != nil {
		return nil, err
	}
	return restaurant, nil
}

// GetRestaurant loads one restaurant by id.
func GetRestaurant(ctx context.Context, id uint) (*models.Restaurant, error) {
	var restaurant models.Restaurant
	err := database.DB.WithContext(ctx).First(&restaurant, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &restaurant, nil
}

// ListRestaurants returns the catalog, active entries only unless
// includeInactive is set.
func ListRestaurants(ctx context.Context, includeInactive bool) ([]models.Restaurant, error) {
	query := database.DB.WithContext(ctx).Order("name ASC")
	if !includeInactive {
		query = query.Where("is_active = ?", true)
	}
	var restaurants []models.Restaurant
	if err := query.Find(&restaurants).Error; err != nil {
		return nil, err
	}
	return restaurants, nil
}

// UpdateRestaurant edits a restaurant's catalog fields.
func UpdateRestaurant(ctx context.Context, id uint, in RestaurantInput) (*models.Restaurant, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, ErrValidation
	}
	restaurant, err := GetRestaurant(ctx, id)
	if err != nil {
		return nil, err
	}
	restaurant.Name = name
	restaurant.Description = in.Description
	restaurant.Address = in.Address
	if err := database.DB.WithContext(ctx).Save(restaurant).Error; err != nil {
		return nil, err
	}
	return restaurant, nil
}

// DeactivateRestaurant takes a restaurant out of the catalog without
// touching historical votes or results. Refused while the restaurant is a
// member of any active session.
func DeactivateRestaurant(ctx context.Context, id uint) error {
	return database.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var restaurant models.Restaurant
		err := tx.First(&restaurant, id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}

		var inActive int64
		err = tx.Table("session_restaurants").
			Joins("JOIN vote_sessions ON vote_sessions.id = session_restaurants.vote_session_id").
			Where("session_restaurants.restaurant_id = ? AND vote_sessions.status = ?",
				id, models.SessionActive).
			Count(&inActive).Error
		if err != nil {
			return err
		}
		if inActive > 0 {
			return ErrInvalidState
		}

		return tx.Model(&restaurant).Update("is_active", false).Error
	})
}

// ReactivateRestaurant puts a deactivated restaurant back in the catalog.
func ReactivateRestaurant(ctx context.Context, id uint) (*models.Restaurant, error) {
	restaurant, err := GetRestaurant(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := database.DB.WithContext(ctx).
		Model(restaurant).Update("is_active", true).Error; err != nil {
		return nil, err
	}
	restaurant.IsActive = true
	return restaurant, nil
}
