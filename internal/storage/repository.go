package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"linkstash/internal/domain"
)

var (
	// ErrNotFound is returned when no item matches.
	ErrNotFound = errors.New("item not found")
	// ErrAmbiguousPrefix is returned when an ID prefix matches several items.
	ErrAmbiguousPrefix = errors.New("id prefix matches more than one item")
	// ErrAlreadyResolved is returned by ApplyPreview when the item already
	// holds image bytes.
	ErrAlreadyResolved = errors.New("item already has a preview image")
	// ErrClosed is returned once the repository has been closed.
	ErrClosed = errors.New("repository closed")
)

// Repository defines the interface for saved item storage.
type Repository interface {
	// SaveItem stores a new item or replaces an existing one with the same ID.
	SaveItem(ctx context.Context, item domain.SavedItem) error

	// GetItem returns a single item or ErrNotFound.
	GetItem(ctx context.Context, userID int64, id uuid.UUID) (domain.SavedItem, error)

	// FindItem returns the user's item whose ID starts with idPrefix.
	FindItem(ctx context.Context, userID int64, idPrefix string) (domain.SavedItem, error)

	// GetItemsByUser returns all items saved by a user, newest first.
	GetItemsByUser(ctx context.Context, userID int64) ([]domain.SavedItem, error)

	// DeleteItem removes an item. Deleting a missing item is not an error.
	DeleteItem(ctx context.Context, userID int64, id uuid.UUID) error

	// ApplyPreview merges a resolved preview into the stored item and returns
	// the updated item. It fails with ErrAlreadyResolved when the item
	// already has image bytes, so at most one backfill ever succeeds.
	ApplyPreview(ctx context.Context, userID int64, id uuid.UUID, preview domain.LinkPreview, at time.Time) (domain.SavedItem, error)

	// Close gracefully shuts down the repository.
	Close() error
}
