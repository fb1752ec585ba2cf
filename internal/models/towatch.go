package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ToWatchItem is one entry of a user's to-watch list.
// Title, Poster, Year and TMDBID are copied from the catalog at save time
// and never refreshed.
type ToWatchItem struct {
	UserID    string    `json:"userId" dynamodbav:"userId" boltholdIndex:"UserID"`
	MediaID   string    `json:"mediaId" dynamodbav:"mediaId"`
	Type      MediaType `json:"type" dynamodbav:"type"`
	Title     string    `json:"title" dynamodbav:"title"`
	Poster    *string   `json:"poster" dynamodbav:"poster"`
	Year      int       `json:"year" dynamodbav:"year"`
	TMDBID    int       `json:"tmdbId" dynamodbav:"tmdbId"`
	CreatedAt time.Time `json:"createdAt" dynamodbav:"createdAt"`
}

// ToWatchKey identifies a stored item
type ToWatchKey struct {
	UserID  string
	MediaID string
}

// Key returns the composite key of the item
func (i *ToWatchItem) Key() ToWatchKey {
	return ToWatchKey{UserID: i.UserID, MediaID: i.MediaID}
}

// NewMediaID builds the "<type>:<tmdbId>" identifier used as the sort key
func NewMediaID(mediaType MediaType, tmdbID int) string {
	return string(mediaType) + ":" + strconv.Itoa(tmdbID)
}

// ParseMediaID splits a media identifier into its type and TMDB id
func ParseMediaID(mediaID string) (MediaType, int, error) {
	rawType, rawID, ok := strings.Cut(mediaID, ":")
	if !ok {
		return "", 0, fmt.Errorf("invalid media id %q", mediaID)
	}

	mediaType, err := ParseMediaType(rawType)
	if err != nil {
		return "", 0, err
	}

	id, err := strconv.Atoi(rawID)
	if err != nil || id <= 0 {
		return "", 0, fmt.Errorf("invalid tmdb id in media id %q", mediaID)
	}

	return mediaType, id, nil
}

// ToWatchPayload is the body accepted when saving an item.
// Pointer fields tell a missing or null field apart from a zero value.
type ToWatchPayload struct {
	MediaID *string `json:"mediaId" validate:"required"`
	Type    *string `json:"type" validate:"required,oneof=movie tv"`
	Title   *string `json:"title" validate:"required"`
	Poster  *string `json:"poster" validate:"required"`
	Year    *int    `json:"year" validate:"required"`
	TMDBID  *int    `json:"tmdbId" validate:"required"`
}

// NewToWatchPayload builds the save payload for an item
func NewToWatchPayload(item ToWatchItem) ToWatchPayload {
	mediaType := string(item.Type)
	return ToWatchPayload{
		MediaID: &item.MediaID,
		Type:    &mediaType,
		Title:   &item.Title,
		Poster:  item.Poster,
		Year:    &item.Year,
		TMDBID:  &item.TMDBID,
	}
}

// Item converts a validated payload into an item owned by userID
func (p ToWatchPayload) Item(userID string) ToWatchItem {
	return ToWatchItem{
		UserID:  userID,
		MediaID: deref(p.MediaID),
		Type:    MediaType(deref(p.Type)),
		Title:   deref(p.Title),
		Poster:  p.Poster,
		Year:    deref(p.Year),
		TMDBID:  deref(p.TMDBID),
	}
}

func deref[T any](v *T) T {
	var zero T
	if v == nil {
		return zero
	}
	return *v
}
