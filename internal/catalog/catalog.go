// Package catalog provides the video catalog: the metadata records that the
// upload pipeline mutates after a successful relocation. It defines the
// Repository interface (port) and a SQLite implementation.
package catalog

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrVideoNotFound is returned when the requested video does not exist.
var ErrVideoNotFound = errors.New("catalog: video not found")

// Video is a catalog entry. The pipeline never creates or deletes entries;
// it only rewrites VideoURL (and the thumbnail handler ThumbnailURL) after a
// confirmed upload.
type Video struct {
	// ID is the unique identifier for this video.
	ID uuid.UUID `json:"id"`
	// CreatedAt is when the entry was created.
	CreatedAt time.Time `json:"created_at"`
	// UpdatedAt is when the entry was last updated.
	UpdatedAt time.Time `json:"updated_at"`
	// Title is the user-supplied title.
	Title string `json:"title"`
	// Description is the user-supplied description.
	Description string `json:"description"`
	// UserID is the owner of this entry. Only the owner may mutate it.
	UserID uuid.UUID `json:"user_id"`
	// ThumbnailURL is the public URL of the thumbnail, if one was uploaded.
	ThumbnailURL *string `json:"thumbnail_url"`
	// VideoURL is the public URL of the relocated video, if one was uploaded.
	VideoURL *string `json:"video_url"`
}

// Repository defines persistence for catalog entries.
type Repository interface {
	// Create inserts a new video entry.
	Create(ctx context.Context, v *Video) error

	// Get returns the video with the given ID.
	// Returns ErrVideoNotFound if it does not exist.
	Get(ctx context.Context, id uuid.UUID) (*Video, error)

	// Update rewrites the mutable fields of an existing entry and sets
	// v.UpdatedAt to the timestamp it persisted.
	// Returns ErrVideoNotFound if it does not exist.
	Update(ctx context.Context, v *Video) error

	// Delete removes the entry with the given ID.
	// Returns ErrVideoNotFound if it does not exist.
	Delete(ctx context.Context, id uuid.UUID) error

	// ListByUser returns all entries owned by the given user, newest first.
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*Video, error)
}
