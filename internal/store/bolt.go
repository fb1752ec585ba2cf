package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/amaumene/towatch/internal/config"
	"github.com/amaumene/towatch/internal/models"
	"github.com/timshannon/bolthold"
	"go.etcd.io/bbolt"
)

// BoltRepository stores items in an embedded bolthold file
type BoltRepository struct {
	store *bolthold.Store
}

// NewBoltRepository opens (or creates) the database file at path
func NewBoltRepository(path string) (*BoltRepository, error) {
	if path == "" {
		return nil, ErrMissingStoreName
	}

	store, err := bolthold.Open(path, 0600, &bolthold.Options{
		Options: &bbolt.Options{
			Timeout: 1 * time.Second,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return &BoltRepository{store: store}, nil
}

// Close closes the database file
func (r *BoltRepository) Close() error {
	return r.store.Close()
}

// Add implements Repository. The existence check and the write
// happen in the same bolt transaction.
func (r *BoltRepository) Add(_ context.Context, item *models.ToWatchItem) error {
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}

	err := r.store.Insert(item.Key(), item)
	if errors.Is(err, bolthold.ErrKeyExists) {
		return fmt.Errorf("insert %s: %w", item.MediaID, ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("failed to insert item: %w", err)
	}
	return nil
}

// List implements Repository
func (r *BoltRepository) List(_ context.Context, userID string) ([]models.ToWatchItem, error) {
	var items []models.ToWatchItem
	err := r.store.Find(&items, bolthold.Where("UserID").Eq(userID).Index("UserID"))
	if err != nil {
		return nil, fmt.Errorf("failed to find items: %w", err)
	}
	if items == nil {
		items = []models.ToWatchItem{}
	}
	return items, nil
}

// Remove implements Repository
func (r *BoltRepository) Remove(_ context.Context, userID, mediaID string) error {
	key := models.ToWatchKey{UserID: userID, MediaID: mediaID}
	err := r.store.Delete(key, &models.ToWatchItem{})
	if err != nil && !errors.Is(err, bolthold.ErrNotFound) {
		return fmt.Errorf("failed to delete item: %w", err)
	}
	return nil
}

// Backend returns the backend name
func (r *BoltRepository) Backend() string {
	return config.BackendBolt
}
