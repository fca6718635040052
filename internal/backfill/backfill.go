// Package backfill resolves link previews for saved items that do not have
// an image yet.
package backfill

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"linkstash/internal/domain"
	"linkstash/internal/storage"
)

// DefaultConcurrency bounds parallel resolutions in ObserveAll.
const DefaultConcurrency = 4

// Resolver produces a preview for a URL. It never fails.
type Resolver interface {
	Resolve(ctx context.Context, rawURL string) domain.LinkPreview
}

// Store is the part of storage.Repository the backfiller writes through.
type Store interface {
	GetItem(ctx context.Context, userID int64, id uuid.UUID) (domain.SavedItem, error)
	ApplyPreview(ctx context.Context, userID int64, id uuid.UUID, preview domain.LinkPreview, at time.Time) (domain.SavedItem, error)
}

// Backfiller runs the resolution pipeline for observed link items. Items
// that already hold image bytes are skipped; items without are retried on
// every observation. Concurrent observations of one item share a single
// resolution.
type Backfiller struct {
	resolver    Resolver
	store       Store
	group       singleflight.Group
	concurrency int
	now         func() time.Time
	log         logrus.FieldLogger
}

// Option configures a Backfiller.
type Option func(*Backfiller)

// WithConcurrency sets how many items ObserveAll resolves at once.
func WithConcurrency(n int) Option {
	return func(b *Backfiller) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// New creates a Backfiller.
func New(resolver Resolver, store Store, logger logrus.FieldLogger, opts ...Option) *Backfiller {
	b := &Backfiller{
		resolver:    resolver,
		store:       store,
		concurrency: DefaultConcurrency,
		now:         time.Now,
		log:         logger.WithField("component", "backfill"),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Observe resolves item if it needs a preview and returns the item as it is
// stored afterwards. Items that need nothing are returned unchanged.
func (b *Backfiller) Observe(ctx context.Context, item domain.SavedItem) (domain.SavedItem, error) {
	if !item.NeedsPreview() {
		return item, nil
	}

	log := b.log.WithFields(logrus.Fields{
		"item_id": item.ID,
		"user_id": item.UserID,
		"url":     item.Content,
	})

	v, err, shared := b.group.Do(item.ID.String(), func() (interface{}, error) {
		preview := b.resolver.Resolve(ctx, item.Content)
		return b.store.ApplyPreview(ctx, item.UserID, item.ID, preview, b.now())
	})
	if errors.Is(err, storage.ErrAlreadyResolved) {
		log.Debug("Item resolved elsewhere")
		return b.store.GetItem(ctx, item.UserID, item.ID)
	}
	if err != nil {
		log.WithError(err).Warn("Failed to store preview")
		return item, fmt.Errorf("backfill %s: %w", item.ID, err)
	}

	updated := v.(domain.SavedItem)
	log.WithFields(logrus.Fields{
		"shared":    shared,
		"has_image": updated.HasImage(),
	}).Debug("Backfill finished")
	return updated, nil
}

// ObserveAll observes items concurrently and returns them in the same order.
// Items whose backfill failed are returned as they were.
func (b *Backfiller) ObserveAll(ctx context.Context, items []domain.SavedItem) []domain.SavedItem {
	out := make([]domain.SavedItem, len(items))
	copy(out, items)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.concurrency)
	for i, item := range items {
		if !item.NeedsPreview() {
			continue
		}
		g.Go(func() error {
			updated, err := b.Observe(gctx, item)
			if err == nil {
				out[i] = updated
			}
			return nil
		})
	}
	_ = g.Wait()
	return out
}
