package controllers

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/amaumene/towatch/internal/models"
	"github.com/amaumene/towatch/internal/store"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
)

// ValidationError is a rejected request payload
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// ToWatchController manages a user's to-watch list
type ToWatchController struct {
	repo     store.Repository
	validate *validator.Validate
	logger   *logrus.Logger
}

// NewToWatchController creates a new to-watch controller
func NewToWatchController(repo store.Repository, logger *logrus.Logger) *ToWatchController {
	validate := validator.New()
	// Report JSON field names so messages match the request body
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	return &ToWatchController{
		repo:     repo,
		validate: validate,
		logger:   logger,
	}
}

// List returns the user's saved items
func (c *ToWatchController) List(ctx context.Context, userID string) ([]models.ToWatchItem, error) {
	items, err := c.repo.List(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	return items, nil
}

// Save validates the payload and stores it for the user.
// Returns a *ValidationError for a bad payload and store.ErrConflict for a duplicate.
func (c *ToWatchController) Save(ctx context.Context, userID string, payload models.ToWatchPayload) error {
	if err := c.Validate(payload); err != nil {
		return err
	}

	item := payload.Item(userID)
	if err := c.repo.Add(ctx, &item); err != nil {
		return fmt.Errorf("failed to save item: %w", err)
	}

	c.logger.WithFields(logrus.Fields{
		"user_id":  userID,
		"media_id": item.MediaID,
	}).Debug("Item saved")
	return nil
}

// Remove deletes the item from the user's list. Unknown ids are ignored.
func (c *ToWatchController) Remove(ctx context.Context, userID, mediaID string) error {
	if mediaID == "" {
		return &ValidationError{Message: "mediaId is required"}
	}

	if err := c.repo.Remove(ctx, userID, mediaID); err != nil {
		return fmt.Errorf("failed to remove item: %w", err)
	}

	c.logger.WithFields(logrus.Fields{
		"user_id":  userID,
		"media_id": mediaID,
	}).Debug("Item removed")
	return nil
}

// Validate checks a save payload. Missing fields are reported before an invalid type.
func (c *ToWatchController) Validate(payload models.ToWatchPayload) error {
	err := c.validate.Struct(payload)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("failed to validate payload: %w", err)
	}

	var missing []string
	badType := false
	for _, fe := range fieldErrs {
		switch {
		case fe.Tag() == "required":
			missing = append(missing, fe.Field())
		case fe.Field() == "type":
			badType = true
		}
	}

	if len(missing) > 0 {
		return &ValidationError{Message: "Missing fields: " + strings.Join(missing, ", ")}
	}
	if badType {
		return &ValidationError{Message: `type must be "movie" or "tv"`}
	}
	return &ValidationError{Message: err.Error()}
}
