package store

import (
	"context"
	"errors"

	"github.com/amaumene/towatch/internal/models"
)

var (
	// ErrConflict is returned by Add when the user already saved the media id
	ErrConflict = errors.New("item already saved")

	// ErrMissingStoreName is returned when no table name or database path is configured
	ErrMissingStoreName = errors.New("store name is not configured")
)

// Repository persists to-watch items keyed by (user id, media id)
type Repository interface {
	// Add stores the item unless the user already has one with the same media id.
	// CreatedAt is set when zero.
	Add(ctx context.Context, item *models.ToWatchItem) error

	// List returns every item saved by the user, in no particular order
	List(ctx context.Context, userID string) ([]models.ToWatchItem, error)

	// Remove deletes the item if present. Removing a missing item is not an error.
	Remove(ctx context.Context, userID, mediaID string) error
}
